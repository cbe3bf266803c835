package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"main/internal/account"
	"main/internal/bus"
	"main/internal/chaos"
	"main/internal/engine"
	"main/internal/exchange"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/replay"
	"main/internal/schema"
	"main/internal/store"
	"main/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("missing config; use -config")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if loaded.Source.Kind == ops.SourceLive {
		log.Fatalf("live source requires the live binary")
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

	ledger := account.NewLedger()
	if err := eng.Register(ledger); err != nil {
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

	source, closeSource, err := buildSource(loaded)
	if err != nil {
		return err
	}
	defer closeSource()

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

	runErr := eng.Run(ctx, source)

	tap.Close()
	wg.Wait()

	summary := sim.Summary()
	if err := finish(summary); err != nil {
		log.Printf("sink finish failed: %v", err)
	}
	printSummary(loaded.Registry, summary, metrics.Snapshot())
	return runErr
}

func buildSource(loaded ops.Loaded) (engine.Source, func(), error) {
	src, closer, err := buildInnerSource(loaded)
	if err != nil {
		return nil, closer, err
	}
	if loaded.Source.Chaos.Enabled {
		wrapped, err := chaos.NewSource(src, loaded.Source.Chaos.Config)
		if err != nil {
			closer()
			return nil, func() {}, err
		}
		return wrapped, closer, nil
	}
	return src, closer, nil
}

func buildInnerSource(loaded ops.Loaded) (engine.Source, func(), error) {
	noop := func() {}
	switch loaded.Source.Kind {
	case ops.SourceReplay:
		id, ok := loaded.Registry.SymbolIDByName(loaded.Source.Replay.Symbol)
		if !ok {
			return nil, noop, fmt.Errorf("replay symbol not found: %s", loaded.Source.Replay.Symbol)
		}
		sym, _ := loaded.Registry.Symbol(id)
		src, err := replay.NewRepublisher(loaded.Source.Replay, sym)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { _ = src.Close() }, nil
	case ops.SourceSynthetic:
		src, err := mdg.NewSource(loaded.Source.Synthetic, loaded.Registry)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case ops.SourceWAL:
		src, err := recorder.NewSource(recorder.SourceConfig{
			Dir:        loaded.Source.WAL.Dir,
			FilePrefix: loaded.Source.WAL.FilePrefix,
		})
		if err != nil {
			return nil, noop, err
		}
		return src, func() { _ = src.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unsupported source kind: %s", loaded.Source.Kind)
	}
}

// buildSinks wires the optional recorder and store drains. The returned
// finish func flushes both after the run and writes the stored summary.
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
		if loaded.Recorder.SegmentMaxBytes > 0 {
			cfg.SegmentMaxBytes = loaded.Recorder.SegmentMaxBytes
		}
		if loaded.Recorder.SegmentMaxDuration > 0 {
			cfg.SegmentMaxDuration = loaded.Recorder.SegmentMaxDuration
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
		tap := recorder.NewTap(w, nil)
		sinks = append(sinks, tap.Record)
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

func printSummary(registry *schema.Registry, summary exchange.Summary, snapshot obs.Snapshot) {
	fmt.Println("=== Run Summary ===")
	for topic, count := range snapshot.TopicCounts {
		if count > 0 {
			fmt.Printf("delivered %-12s %d\n", topic, count)
		}
	}
	fmt.Printf("handler failures %d, tap drops %d\n", snapshot.HandlerFailures, snapshot.TapDrops)

	fmt.Println("--- Balances ---")
	for _, b := range summary.Balances {
		fmt.Printf("%-8s balance=%d locked=%d\n", b.Asset, b.Balance, b.Locked)
	}
	fmt.Println("--- Fees ---")
	for _, f := range summary.Fees {
		fmt.Printf("%-8s fee=%d\n", f.Asset, f.Balance)
	}
	fmt.Println("--- Positions ---")
	for id, qty := range summary.Positions {
		name := fmt.Sprintf("symbol-%d", id)
		if sym, ok := registry.Symbol(id); ok {
			name = sym.Name
		}
		fmt.Printf("%-12s position=%d last_trade=%d\n", name, qty, summary.LastTrade[id])
	}
}
