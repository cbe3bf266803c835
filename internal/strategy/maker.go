package strategy

import (
	"fmt"
	"time"

	"main/internal/bus"
	"main/internal/schema"
)

// Config holds the market maker parameters.
type Config struct {
	Symbol          string          `json:"symbol"`
	StrategyID      uint32          `json:"strategyId"`
	SpreadBps       int64           `json:"spreadBps"`
	QuoteQty        schema.Quantity `json:"quoteQty"`
	RequoteInterval time.Duration   `json:"requoteInterval"`
	MaxOrderAge     time.Duration   `json:"maxOrderAge"`

	// resolved from Symbol at wiring time
	SymbolID schema.SymbolID `json:"-"`
}

func (c Config) Validate() error {
	if c.SymbolID == 0 {
		return fmt.Errorf("strategy symbol is not resolved")
	}
	if c.SpreadBps <= 0 {
		return fmt.Errorf("spread must be > 0, got %d bps", c.SpreadBps)
	}
	if c.QuoteQty <= 0 {
		return fmt.Errorf("quote qty must be > 0, got %d", c.QuoteQty)
	}
	if c.RequoteInterval <= 0 {
		return fmt.Errorf("requote interval must be > 0, got %s", c.RequoteInterval)
	}
	return nil
}

// MarketMaker quotes both sides of the book around the mid at a fixed
// spread. It keeps time exclusively from message timestamps, so the same
// input stream produces the same quotes in any run mode.
type MarketMaker struct {
	cfg     Config
	tracker *Tracker

	bidPrice schema.Price
	bidQty   schema.Quantity
	askPrice schema.Price
	askQty   schema.Quantity

	lastQuoteTs int64
	quoted      bool
	orderSeq    uint64
}

func NewMarketMaker(cfg Config) (*MarketMaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("strategy config: %w", err)
	}
	return &MarketMaker{cfg: cfg, tracker: NewTracker()}, nil
}

func (m *MarketMaker) Name() string {
	return fmt.Sprintf("maker-%d", m.cfg.StrategyID)
}

func (m *MarketMaker) Declare() bus.Declaration {
	return bus.Declaration{
		Subscribes: []schema.Topic{
			schema.TopicBookTicker,
			schema.TopicOrderResult,
		},
		Publishes: []bus.Publication{
			{Topic: schema.TopicOrderIntent},
			{Topic: schema.TopicOrderCancel},
		},
	}
}

func (m *MarketMaker) Handle(msg bus.Message) ([]bus.Message, error) {
	ts := msg.Header.TsEvent
	switch p := msg.Payload.(type) {
	case schema.BookTicker:
		if p.SymbolID != m.cfg.SymbolID {
			return nil, nil
		}
		m.bidPrice, m.bidQty = p.BidPrice, p.BidQty
		m.askPrice, m.askQty = p.AskPrice, p.AskQty
		return m.requote(ts), nil
	case schema.OrderResult:
		return m.handleResult(p, ts), nil
	default:
		return nil, nil
	}
}

func (m *MarketMaker) handleResult(r schema.OrderResult, ts int64) []bus.Message {
	if _, mine := m.tracker.Get(r.OrderID); !mine {
		return nil
	}
	switch r.Status {
	case schema.OrderStatusNew:
		// ack, nothing to change
	case schema.OrderStatusPartFilled, schema.OrderStatusFilled:
		m.tracker.ApplyFill(r.OrderID, r.LeavesQty)
		m.tracker.SetStatus(r.OrderID, r.Status)
	default:
		m.tracker.SetStatus(r.OrderID, r.Status)
	}
	m.tracker.SweepTerminal()

	// a fill empties one side, requote as soon as the interval allows
	if r.Status == schema.OrderStatusFilled || r.Status == schema.OrderStatusPartFilled {
		return m.requote(ts)
	}
	return nil
}

// requote cancels stale quotes and places a fresh bid/ask pair around the
// mid. It is a no-op until the interval since the last quote has passed or
// while the book is one-sided.
func (m *MarketMaker) requote(ts int64) []bus.Message {
	if m.bidPrice <= 0 || m.askPrice <= 0 {
		return nil
	}
	var out []bus.Message

	// expire aged quotes regardless of the requote gate
	if m.cfg.MaxOrderAge > 0 {
		for _, o := range m.tracker.Open() {
			if o.Status == schema.OrderStatusCancelled {
				continue
			}
			if ts-o.CreatedAt > int64(m.cfg.MaxOrderAge) {
				out = append(out, m.cancelMsg(ts, o.ID))
				m.tracker.SetStatus(o.ID, schema.OrderStatusCancelled)
			}
		}
		m.tracker.SweepTerminal()
	}

	if m.quoted && ts-m.lastQuoteTs < int64(m.cfg.RequoteInterval) {
		return out
	}

	mid := (m.bidPrice + m.askPrice) / 2
	half := schema.Price(int64(mid) * m.cfg.SpreadBps / 10000 / 2)
	if half <= 0 {
		half = 1
	}
	quoteBid := mid - half
	quoteAsk := mid + half
	// never quote through the displayed book
	if quoteBid > m.bidPrice {
		quoteBid = m.bidPrice
	}
	if quoteAsk < m.askPrice {
		quoteAsk = m.askPrice
	}

	if m.hasQuotesAt(quoteBid, quoteAsk) {
		return out
	}

	// cancel what still rests before quoting the new pair
	for _, o := range m.tracker.Open() {
		if o.Status == schema.OrderStatusCancelled {
			continue
		}
		out = append(out, m.cancelMsg(ts, o.ID))
		m.tracker.SetStatus(o.ID, schema.OrderStatusCancelled)
	}
	m.tracker.SweepTerminal()

	out = append(out,
		m.placeMsg(ts, schema.OrderSideBuy, quoteBid),
		m.placeMsg(ts, schema.OrderSideSell, quoteAsk),
	)
	m.lastQuoteTs = ts
	m.quoted = true
	return out
}

// hasQuotesAt reports whether an unfilled quote already rests on each side
// at the target price.
func (m *MarketMaker) hasQuotesAt(bid, ask schema.Price) bool {
	var haveBid, haveAsk bool
	for _, o := range m.tracker.Open() {
		if o.Status == schema.OrderStatusCancelled || o.Filled > 0 {
			continue
		}
		switch {
		case o.Side == schema.OrderSideBuy && o.Price == bid:
			haveBid = true
		case o.Side == schema.OrderSideSell && o.Price == ask:
			haveAsk = true
		}
	}
	return haveBid && haveAsk
}

func (m *MarketMaker) placeMsg(ts int64, side schema.OrderSide, price schema.Price) bus.Message {
	m.orderSeq++
	id := uint64(m.cfg.StrategyID)<<32 | m.orderSeq
	m.tracker.Upsert(Order{
		ID:        id,
		Side:      side,
		Price:     price,
		Qty:       m.cfg.QuoteQty,
		Status:    schema.OrderStatusNew,
		CreatedAt: ts,
	})
	return bus.Message{
		Header: schema.EventHeader{Topic: schema.TopicOrderIntent, TsEvent: ts, TsRecv: ts},
		Payload: schema.OrderIntent{
			OrderID:     id,
			StrategyID:  m.cfg.StrategyID,
			SymbolID:    m.cfg.SymbolID,
			Side:        side,
			Type:        schema.OrderTypeLimit,
			TimeInForce: schema.TimeInForceGTC,
			Price:       price,
			Qty:         m.cfg.QuoteQty,
		},
	}
}

func (m *MarketMaker) cancelMsg(ts int64, id uint64) bus.Message {
	return bus.Message{
		Header: schema.EventHeader{Topic: schema.TopicOrderCancel, TsEvent: ts, TsRecv: ts},
		Payload: schema.OrderCancel{
			OrderID:  id,
			SymbolID: m.cfg.SymbolID,
		},
	}
}
