package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/bus"
	"main/internal/schema"
	"main/pkg/exception"
)

const (
	defaultBinanceWsURL   = "wss://data-stream.binance.vision/ws"
	defaultBinanceRestURL = "https://api.binance.com"
	defaultQueueSize      = 8192

	// Source value stamped into headers of live feed messages.
	SourceBinance uint16 = 10
)

// Config parameterizes the live feed adapter.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Symbol    string `json:"symbol"`
	QueueSize int    `json:"queueSize"`
}

// BinanceFeed bridges Binance bookTicker and trade streams into an intake
// queue. It stamps each message with the venue event time and the local
// arrival time, then hands ordering off to the engine's source.
type BinanceFeed struct {
	wss   *ws.WebSocket
	sym   schema.Symbol
	queue *bus.Queue

	seq     uint64
	dropped uint64
}

// NewBinanceFeed resolves the symbol and prepares the websocket client.
func NewBinanceFeed(ctx context.Context, cfg Config, registry *schema.Registry) (*BinanceFeed, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("feed symbol is empty")
	}
	id, ok := registry.SymbolIDByName(cfg.Symbol)
	if !ok {
		return nil, errors.Wrapf(exception.ErrSymbolNotFound, "feed symbol %s", cfg.Symbol)
	}
	sym, _ := registry.Symbol(id)

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultBinanceWsURL
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &BinanceFeed{
		wss:   ws.New(ctx, endpoint),
		sym:   sym,
		queue: bus.NewQueue(size),
	}, nil
}

// Queue returns the intake queue the feed publishes into.
func (f *BinanceFeed) Queue() *bus.Queue {
	return f.queue
}

// Start connects, seeds the book from a REST snapshot, subscribes both
// streams and launches the observe loop.
func (f *BinanceFeed) Start(ctx context.Context) error {
	if err := f.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	if err := f.seedSnapshot(ctx); err != nil {
		logs.Warnf("seed book snapshot, err: %+v", err)
	}
	if err := f.subscribe(ctx); err != nil {
		return err
	}
	f.observe(ctx)
	return nil
}

// Close stops the websocket and the intake queue.
func (f *BinanceFeed) Close() {
	f.wss.Close()
	f.queue.Close()
}

type binanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type binanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (f *BinanceFeed) subscribe(ctx context.Context) error {
	lower := strings.ToLower(f.sym.Name)
	appendIntoRegister := true
	if err := f.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := binanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{
					fmt.Sprintf("%s@bookTicker", lower),
					fmt.Sprintf("%s@trade", lower),
				},
				ID: 1,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp binanceSubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != 1 {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe and wait, err: %+v", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

func (f *BinanceFeed) seedSnapshot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/v3/ticker/bookTicker?symbol=%s", defaultBinanceRestURL, f.sym.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var data snapshotResponse
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&data); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}
	ticker, err := data.toBookTicker(f.sym)
	if err != nil {
		return err
	}
	f.push(schema.TopicBookTicker, ticker, time.Now().UnixNano())
	return nil
}

func (f *BinanceFeed) observe(ctx context.Context) {
	ch, cancel := f.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				event, ok := ws.ReadMessage[binanceEvent](m)
				if !ok {
					continue
				}
				f.handle(event)
			}
		}
	}()
}

func (f *BinanceFeed) handle(event binanceEvent) {
	now := time.Now().UnixNano()
	switch {
	case event.isTrade():
		trade, tsEvent, err := event.toTrade(f.sym)
		if err != nil {
			logs.Errorf("convert trade, err: %+v", err)
			return
		}
		if tsEvent <= 0 {
			tsEvent = now
		}
		f.push(schema.TopicTrade, trade, tsEvent)
	case event.isBookTicker():
		ticker, err := event.toBookTicker(f.sym)
		if err != nil {
			logs.Errorf("convert bookticker, err: %+v", err)
			return
		}
		f.push(schema.TopicBookTicker, ticker, now)
	}
}

func (f *BinanceFeed) push(topic schema.Topic, payload schema.Payload, tsEvent int64) {
	f.seq++
	m := bus.Message{
		Header:  schema.NewHeader(topic, SourceBinance, f.seq, tsEvent, time.Now().UnixNano()),
		Payload: payload,
	}
	if err := f.queue.TryPublish(m); err != nil {
		f.dropped++
		if f.dropped%1000 == 1 {
			logs.Warnf("intake queue full, dropped %d messages", f.dropped)
		}
	}
}
