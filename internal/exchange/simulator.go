package exchange

import (
	"fmt"

	"main/internal/bus"
	"main/internal/risk"
	"main/internal/schema"
)

// orderRef tracks a live order owned by the venue: which book it rests in
// and the price its balance was locked at.
type orderRef struct {
	symbolID schema.SymbolID
	side     schema.OrderSide
	price    schema.Price
}

// Simulator is the execution venue module. It consumes market data and
// order flow, matches against per-symbol books and settles fills into a
// venue-side wallet. Every output is delayed by the configured latency.
type Simulator struct {
	cfg      Config
	alloc    AllocationPolicy
	registry *schema.Registry
	risk     *risk.Engine

	wallet    *wallet
	feeWallet *wallet
	books     map[schema.SymbolID]*book
	orders    map[uint64]orderRef
	seen      map[uint64]struct{}
	positions map[schema.SymbolID]schema.Quantity
	seq       uint64
}

// New creates a venue simulator. Initial balances are credited immediately.
func New(cfg Config, registry *schema.Registry) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("exchange config: %w", err)
	}
	alloc, err := ParseAllocationPolicy(cfg.Allocation)
	if err != nil {
		return nil, fmt.Errorf("exchange config: %w", err)
	}

	w := newWallet()
	for asset, balance := range cfg.InitialBalances {
		w.get(asset).add(int64(balance))
	}

	return &Simulator{
		cfg:       cfg,
		alloc:     alloc,
		registry:  registry,
		risk:      risk.NewEngine(cfg.Risk),
		wallet:    w,
		feeWallet: newWallet(),
		books:     make(map[schema.SymbolID]*book),
		orders:    make(map[uint64]orderRef),
		seen:      make(map[uint64]struct{}),
		positions: make(map[schema.SymbolID]schema.Quantity),
	}, nil
}

func (s *Simulator) Name() string {
	return "exchange"
}

func (s *Simulator) Declare() bus.Declaration {
	return bus.Declaration{
		Subscribes: []schema.Topic{
			schema.TopicBookTicker,
			schema.TopicTrade,
			schema.TopicOrderIntent,
			schema.TopicOrderCancel,
		},
		Publishes: []bus.Publication{
			{Topic: schema.TopicOrderResult, Delayed: true},
			{Topic: schema.TopicAccount, Delayed: true},
		},
	}
}

func (s *Simulator) Handle(msg bus.Message) ([]bus.Message, error) {
	ts := msg.Header.TsEvent
	switch p := msg.Payload.(type) {
	case schema.BookTicker:
		fills := s.book(p.SymbolID).applyTicker(p)
		return s.settle(p.SymbolID, fills, ts+int64(s.cfg.FillLatency))
	case schema.Trade:
		fills := s.book(p.SymbolID).matchTrade(p.Price, p.Qty, p.BuyerMaker)
		return s.settle(p.SymbolID, fills, ts+int64(s.cfg.FillLatency))
	case schema.OrderIntent:
		return s.handleIntent(p, ts)
	case schema.OrderCancel:
		return s.handleCancel(p, ts)
	default:
		return nil, fmt.Errorf("exchange: unexpected payload %T", msg.Payload)
	}
}

func (s *Simulator) book(id schema.SymbolID) *book {
	b, ok := s.books[id]
	if !ok {
		b = newBook(s.alloc)
		s.books[id] = b
	}
	return b
}

func (s *Simulator) handleIntent(intent schema.OrderIntent, ts int64) ([]bus.Message, error) {
	ackTs := ts + int64(s.cfg.AckLatency)
	reject := func(reason schema.RejectReason) ([]bus.Message, error) {
		return []bus.Message{s.resultMsg(ackTs, schema.OrderResult{
			OrderID:  intent.OrderID,
			SymbolID: intent.SymbolID,
			Side:     intent.Side,
			Status:   schema.OrderStatusRejected,
			Reason:   reason,
			Price:    intent.Price,
		})}, nil
	}

	if intent.Qty <= 0 {
		return reject(schema.RejectReasonInvalidQty)
	}
	sym, ok := s.registry.Symbol(intent.SymbolID)
	if !ok {
		return reject(schema.RejectReasonUnknownSymbol)
	}
	if _, dup := s.seen[intent.OrderID]; dup {
		return reject(schema.RejectReasonDuplicateOrder)
	}

	bk := s.book(intent.SymbolID)

	// resolve the execution price before locking balance: the limit price,
	// or the opposing best adjusted by slippage for market orders
	var lockPrice schema.Price
	switch intent.Type {
	case schema.OrderTypeMarket:
		best, _ := bk.opposingBest(intent.Side)
		if best <= 0 {
			return reject(schema.RejectReasonInvalidPrice)
		}
		lockPrice = applySlippage(best, intent.Side, s.cfg.SlippageBps)
	default:
		if intent.Price <= 0 {
			return reject(schema.RejectReasonInvalidPrice)
		}
		lockPrice = intent.Price
	}

	if reason := s.risk.Evaluate(intent, risk.StateView{
		Position:       s.positions[intent.SymbolID],
		ReferencePrice: bk.referencePrice(),
		Now:            ts,
	}); reason != schema.RejectReasonNone {
		return reject(reason)
	}

	payAsset, payAmt := lockFor(sym, intent.Side, lockPrice, intent.Qty)
	if !s.wallet.get(payAsset).tryLock(payAmt) {
		return reject(schema.RejectReasonInsufficientBalance)
	}

	s.seen[intent.OrderID] = struct{}{}
	s.seq++
	order := &restingOrder{
		id:       intent.OrderID,
		side:     intent.Side,
		price:    lockPrice,
		qty:      intent.Qty,
		activeAt: ackTs,
		seq:      s.seq,
	}
	s.orders[intent.OrderID] = orderRef{
		symbolID: intent.SymbolID,
		side:     intent.Side,
		price:    lockPrice,
	}

	out := []bus.Message{s.resultMsg(ackTs, schema.OrderResult{
		OrderID:   intent.OrderID,
		SymbolID:  intent.SymbolID,
		Side:      intent.Side,
		Status:    schema.OrderStatusNew,
		Price:     lockPrice,
		LeavesQty: intent.Qty,
	})}

	var fills []fill
	switch intent.Type {
	case schema.OrderTypeMarket:
		_, bestQty := bk.opposingBest(intent.Side)
		fillQty := intent.Qty
		if fillQty > bestQty {
			fillQty = bestQty
		}
		if fillQty > 0 {
			order.filled = fillQty
			fills = append(fills, fill{
				orderID: order.id,
				side:    order.side,
				price:   order.price,
				qty:     fillQty,
				leaves:  order.remaining(),
			})
		}
		if order.remaining() > 0 && intent.TimeInForce != schema.TimeInForceIOC {
			bk.add(order)
		}
	default:
		bk.add(order)
		fills = bk.crossOnActivate(order)
		if order.remaining() > 0 && intent.TimeInForce == schema.TimeInForceIOC {
			bk.cancel(order.id)
		}
	}

	settled, err := s.settle(intent.SymbolID, fills, ackTs)
	if err != nil {
		return nil, err
	}
	out = append(out, settled...)

	// IOC remainder and unrestable market remainder cancel immediately
	if order.remaining() > 0 && bk.get(order.id) == nil {
		s.unlockRemaining(sym, order)
		delete(s.orders, order.id)
		out = append(out, s.resultMsg(ackTs, schema.OrderResult{
			OrderID:  order.id,
			SymbolID: intent.SymbolID,
			Side:     order.side,
			Status:   schema.OrderStatusCancelled,
			Price:    order.price,
		}))
	}
	return out, nil
}

func (s *Simulator) handleCancel(cancel schema.OrderCancel, ts int64) ([]bus.Message, error) {
	ackTs := ts + int64(s.cfg.AckLatency)

	ref, ok := s.orders[cancel.OrderID]
	if !ok || ref.symbolID != cancel.SymbolID {
		return []bus.Message{s.resultMsg(ackTs, schema.OrderResult{
			OrderID:  cancel.OrderID,
			SymbolID: cancel.SymbolID,
			Status:   schema.OrderStatusRejected,
			Reason:   schema.RejectReasonUnknownOrder,
		})}, nil
	}

	bk := s.book(ref.symbolID)
	order := bk.get(cancel.OrderID)
	if order == nil {
		return []bus.Message{s.resultMsg(ackTs, schema.OrderResult{
			OrderID:  cancel.OrderID,
			SymbolID: cancel.SymbolID,
			Status:   schema.OrderStatusRejected,
			Reason:   schema.RejectReasonUnknownOrder,
		})}, nil
	}

	sym, _ := s.registry.Symbol(ref.symbolID)
	s.unlockRemaining(sym, order)
	bk.cancel(cancel.OrderID)
	delete(s.orders, cancel.OrderID)

	return []bus.Message{s.resultMsg(ackTs, schema.OrderResult{
		OrderID:  cancel.OrderID,
		SymbolID: cancel.SymbolID,
		Side:     order.side,
		Status:   schema.OrderStatusCancelled,
		Price:    order.price,
	})}, nil
}

// settle applies fills to the wallet and position and emits the order
// result plus an account update for the touched assets.
func (s *Simulator) settle(symbolID schema.SymbolID, fills []fill, outTs int64) ([]bus.Message, error) {
	if len(fills) == 0 {
		return nil, nil
	}
	sym, ok := s.registry.Symbol(symbolID)
	if !ok {
		return nil, fmt.Errorf("exchange: settle for unknown symbol %d", symbolID)
	}

	out := make([]bus.Message, 0, len(fills)*2)
	for _, f := range fills {
		isBuy := f.side == schema.OrderSideBuy
		payAsset, recvAsset := sym.QuoteAsset, sym.BaseAsset
		payQty, recvQty := mulScaled(f.price, f.qty), int64(f.qty)
		if !isBuy {
			payAsset, recvAsset = sym.BaseAsset, sym.QuoteAsset
			payQty, recvQty = int64(f.qty), mulScaled(f.price, f.qty)
		}
		feeQty := recvQty * sym.FeeRateBps / 10000

		s.wallet.get(payAsset).consumeLocked(payQty)
		s.wallet.get(recvAsset).add(recvQty - feeQty)
		s.feeWallet.get(recvAsset).add(feeQty)

		if isBuy {
			s.positions[symbolID] += f.qty
		} else {
			s.positions[symbolID] -= f.qty
		}

		status := schema.OrderStatusPartFilled
		if f.leaves <= 0 {
			status = schema.OrderStatusFilled
			delete(s.orders, f.orderID)
		}
		out = append(out, s.resultMsg(outTs, schema.OrderResult{
			OrderID:   f.orderID,
			SymbolID:  symbolID,
			Side:      f.side,
			Status:    status,
			Price:     f.price,
			FilledQty: f.qty,
			LeavesQty: f.leaves,
		}))
		out = append(out, s.accountMsg(outTs, s.wallet.entries(payAsset, recvAsset)))
	}
	return out, nil
}

func (s *Simulator) unlockRemaining(sym schema.Symbol, order *restingOrder) {
	asset, amt := lockFor(sym, order.side, order.price, order.remaining())
	s.wallet.get(asset).unlock(amt)
}

func (s *Simulator) resultMsg(ts int64, r schema.OrderResult) bus.Message {
	return bus.Message{
		Header:  schema.EventHeader{Topic: schema.TopicOrderResult, TsEvent: ts, TsRecv: ts},
		Payload: r,
	}
}

func (s *Simulator) accountMsg(ts int64, entries []schema.BalanceEntry) bus.Message {
	return bus.Message{
		Header:  schema.EventHeader{Topic: schema.TopicAccount, TsEvent: ts, TsRecv: ts},
		Payload: schema.AccountUpdate{Entries: entries},
	}
}

// Summary is the venue state reported at the end of a run.
type Summary struct {
	Balances  []schema.BalanceEntry
	Fees      []schema.BalanceEntry
	LastTrade map[schema.SymbolID]schema.Price
	Positions map[schema.SymbolID]schema.Quantity
}

// Summary snapshots balances, collected fees, positions and last trade
// prices. Call it after the engine has stopped.
func (s *Simulator) Summary() Summary {
	last := make(map[schema.SymbolID]schema.Price, len(s.books))
	for id, bk := range s.books {
		last[id] = bk.lastTrade
	}
	positions := make(map[schema.SymbolID]schema.Quantity, len(s.positions))
	for id, pos := range s.positions {
		positions[id] = pos
	}
	return Summary{
		Balances:  s.wallet.snapshot(),
		Fees:      s.feeWallet.snapshot(),
		LastTrade: last,
		Positions: positions,
	}
}

// lockFor returns the asset and amount an order reserves: quote notional
// for buys, base quantity for sells.
func lockFor(sym schema.Symbol, side schema.OrderSide, price schema.Price, qty schema.Quantity) (string, int64) {
	if side == schema.OrderSideBuy {
		return sym.QuoteAsset, mulScaled(price, qty)
	}
	return sym.BaseAsset, int64(qty)
}

// mulScaled multiplies price by quantity. The result carries scale
// PriceScale+QuantityScale, the scale quote balances are tracked at.
func mulScaled(price schema.Price, qty schema.Quantity) int64 {
	return int64(price) * int64(qty)
}

func applySlippage(price schema.Price, side schema.OrderSide, bps int64) schema.Price {
	if bps <= 0 {
		return price
	}
	adj := schema.Price(int64(price) * bps / 10000)
	if side == schema.OrderSideBuy {
		return price + adj
	}
	if adj >= price {
		return 1
	}
	return price - adj
}
