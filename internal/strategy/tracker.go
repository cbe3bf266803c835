package strategy

import (
	"sort"

	"main/internal/schema"
)

// Order is one tracked open order on the strategy side.
type Order struct {
	ID        uint64
	Side      schema.OrderSide
	Price     schema.Price
	Qty       schema.Quantity
	Filled    schema.Quantity
	Status    schema.OrderStatus
	CreatedAt int64
}

func (o Order) Remaining() schema.Quantity {
	return o.Qty - o.Filled
}

// Tracker mirrors the strategy's open orders from the result stream.
type Tracker struct {
	orders map[uint64]*Order
}

func NewTracker() *Tracker {
	return &Tracker{orders: make(map[uint64]*Order)}
}

// Upsert inserts or replaces an order. It reports whether the order is new.
func (t *Tracker) Upsert(o Order) bool {
	_, exists := t.orders[o.ID]
	t.orders[o.ID] = &o
	return !exists
}

func (t *Tracker) Get(id uint64) (Order, bool) {
	o, ok := t.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// ApplyFill records a fill by its reported leaves quantity. Deriving the
// filled amount from leaves makes replayed or duplicated reports harmless.
func (t *Tracker) ApplyFill(id uint64, leaves schema.Quantity) {
	o, ok := t.orders[id]
	if !ok {
		return
	}
	filled := o.Qty - leaves
	if filled > o.Filled {
		o.Filled = filled
	}
}

func (t *Tracker) SetStatus(id uint64, status schema.OrderStatus) {
	if o, ok := t.orders[id]; ok {
		o.Status = status
	}
}

// SweepTerminal drops orders that reached a terminal status.
func (t *Tracker) SweepTerminal() {
	for id, o := range t.orders {
		if o.Status.IsTerminal() {
			delete(t.orders, id)
		}
	}
}

func (t *Tracker) Remove(id uint64) {
	delete(t.orders, id)
}

// Open returns the tracked orders sorted by id.
func (t *Tracker) Open() []Order {
	out := make([]Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) Len() int {
	return len(t.orders)
}
