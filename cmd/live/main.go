package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/ingest"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/store"
	"main/internal/strategy"
)

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...any)  {}
func (emptyLogger) Debugf(string, ...any) {}
func (emptyLogger) Errorf(string, ...any) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	profile := flag.Bool("profile", false, "Enable continuous profiling")
	profileAddr := flag.String("profile-addr", "http://localhost:4040", "Profiling server address")
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("missing config; use -config")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if loaded.Source.Kind != ops.SourceLive {
		log.Fatalf("config source kind must be %q", ops.SourceLive)
	}

	if *profile {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trading/live",
			ServerAddress:   *profileAddr,
			Tags: map[string]string{
				"env": "local",
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, loaded); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded) error {
	metrics := obs.NewMetrics()
	cfg := loaded.Engine
	cfg.Metrics = metrics
	eng := engine.New(cfg)

	sim, err := exchange.New(loaded.Exchange, loaded.Registry)
	if err != nil {
		return err
	}
	if err := eng.Register(sim); err != nil {
		return err
	}
	if err := eng.Register(account.NewLedger()); err != nil {
		return err
	}
	for _, sc := range loaded.Strategies {
		maker, err := strategy.NewMarketMaker(sc)
		if err != nil {
			return err
		}
		if err := eng.Register(maker); err != nil {
			return err
		}
	}

	feed, err := ingest.NewBinanceFeed(ctx, ingest.Config{
		Endpoint:  loaded.Live.Endpoint,
		Symbol:    loaded.Live.Symbol,
		QueueSize: loaded.Live.QueueSize,
	}, loaded.Registry)
	if err != nil {
		return err
	}
	if err := feed.Start(ctx); err != nil {
		return err
	}
	defer feed.Close()

	tap := bus.NewQueue(loaded.Tap)
	eng.SetTap(tap)

	sinks, finish, err := buildSinks(ctx, loaded)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tap.Run(ctx, func(m bus.Message) {
			for _, sink := range sinks {
				sink(m)
			}
		})
	}()

	runErr := eng.Run(ctx, engine.NewQueueSource(feed.Queue()))

	tap.Close()
	wg.Wait()

	summary := sim.Summary()
	if err := finish(summary); err != nil {
		log.Printf("sink finish failed: %v", err)
	}

	snapshot := metrics.Snapshot()
	log.Printf("live run stopped: failures=%d tap_drops=%d deliver_latency=%+v",
		snapshot.HandlerFailures, snapshot.TapDrops, snapshot.DeliverLatency)
	for _, b := range summary.Balances {
		log.Printf("balance %s=%d locked=%d", b.Asset, b.Balance, b.Locked)
	}
	return runErr
}

// buildSinks wires the optional recorder and store drains, mirroring the
// backtest binary.
func buildSinks(ctx context.Context, loaded ops.Loaded) ([]func(bus.Message), func(exchange.Summary) error, error) {
	var (
		sinks  []func(bus.Message)
		writer *recorder.Writer
		st     *store.Store
	)

	if loaded.Recorder.Enabled {
		cfg := recorder.DefaultConfig(loaded.Recorder.Dir)
		if loaded.Recorder.FilePrefix != "" {
			cfg.FilePrefix = loaded.Recorder.FilePrefix
		}
		cfg.FlushInterval = loaded.Recorder.FlushInterval
		cfg.SyncInterval = loaded.Recorder.SyncInterval

		w, err := recorder.NewWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := w.Start(ctx); err != nil {
			return nil, nil, err
		}
		writer = w
		sinks = append(sinks, recorder.NewTap(w, nil).Record)
	}

	if loaded.Store.Enabled {
		s, err := store.Open(loaded.Store.Config, loaded.Registry)
		if err != nil {
			if writer != nil {
				_ = writer.Close()
			}
			return nil, nil, err
		}
		st = s
		sinks = append(sinks, s.Observe)
	}

	finish := func(summary exchange.Summary) error {
		var firstErr error
		if writer != nil {
			if err := writer.Close(); err != nil {
				firstErr = err
			}
		}
		if st != nil {
			if err := st.SaveSummary(summary.Balances, summary.Fees); err != nil && firstErr == nil {
				firstErr = err
			}
			if err := st.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return sinks, finish, nil
}
