package mdg

import (
	"context"
	"fmt"
	"io"
	"time"

	"main/internal/bus"
	"main/internal/schema"
)

// Config shapes the synthetic feed. The walk is a fixed triangle wave, so
// two runs with the same config produce the same tick sequence.
type Config struct {
	BasePrice    schema.Price    `json:"basePrice"`
	BaseQty      schema.Quantity `json:"baseQty"`
	Spread       schema.Price    `json:"spread"`
	TickInterval time.Duration   `json:"tickInterval"`
	StartTs      int64           `json:"startTs"`
	Count        int             `json:"count"`
}

// Source generates deterministic synthetic ticks for every symbol in the
// registry, alternating bookticker and trade messages.
type Source struct {
	cfg     Config
	symbols []schema.Symbol
	emitted int
}

func NewSource(cfg Config, reg *schema.Registry) (*Source, error) {
	if reg == nil || reg.SymbolCount() == 0 {
		return nil, fmt.Errorf("mdg: registry has no symbols")
	}
	if cfg.BasePrice <= 0 {
		return nil, fmt.Errorf("mdg: base price must be > 0")
	}
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("mdg: count must be > 0")
	}
	if cfg.BaseQty <= 0 {
		cfg.BaseQty = 1
	}
	if cfg.Spread < 0 {
		cfg.Spread = 0
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Millisecond
	}
	symbols := make([]schema.Symbol, 0, reg.SymbolCount())
	for i := 0; i < reg.SymbolCount(); i++ {
		if symbol, ok := reg.SymbolAt(i); ok {
			symbols = append(symbols, symbol)
		}
	}
	return &Source{cfg: cfg, symbols: symbols}, nil
}

func (s *Source) Next(ctx context.Context) (bus.Message, error) {
	if err := ctx.Err(); err != nil {
		return bus.Message{}, err
	}
	if s.emitted >= s.cfg.Count {
		return bus.Message{}, io.EOF
	}

	step := s.emitted
	s.emitted++

	symbol := s.symbols[step%len(s.symbols)]
	price := s.cfg.BasePrice + s.wave(step)
	ts := s.cfg.StartTs + int64(step)*int64(s.cfg.TickInterval)
	header := schema.EventHeader{TsEvent: ts, TsRecv: ts}

	if step%2 == 0 {
		header.Topic = schema.TopicBookTicker
		return bus.Message{
			Header: header,
			Payload: schema.BookTicker{
				SymbolID: symbol.ID,
				BidPrice: price - s.cfg.Spread,
				BidQty:   s.cfg.BaseQty,
				AskPrice: price + s.cfg.Spread,
				AskQty:   s.cfg.BaseQty,
			},
		}, nil
	}

	header.Topic = schema.TopicTrade
	return bus.Message{
		Header: header,
		Payload: schema.Trade{
			SymbolID:   symbol.ID,
			Price:      price,
			Qty:        s.cfg.BaseQty,
			BuyerMaker: step%4 == 1,
		},
	}, nil
}

// wave walks the price up five ticks and back down, one unit per step.
func (s *Source) wave(step int) schema.Price {
	phase := step % 10
	if phase < 5 {
		return schema.Price(phase)
	}
	return schema.Price(10 - phase)
}
