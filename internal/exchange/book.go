package exchange

import (
	"sort"

	"main/internal/schema"
)

// restingOrder is an open limit order with price-time priority. activeAt is
// the activation timestamp (submit time plus ack latency) and seq breaks
// ties between orders activated at the same instant.
type restingOrder struct {
	id       uint64
	side     schema.OrderSide
	price    schema.Price
	qty      schema.Quantity
	filled   schema.Quantity
	activeAt int64
	seq      uint64
}

func (o *restingOrder) remaining() schema.Quantity {
	return o.qty - o.filled
}

// fill is one execution against a resting order. leaves is the remaining
// open quantity after the execution.
type fill struct {
	orderID uint64
	side    schema.OrderSide
	price   schema.Price
	qty     schema.Quantity
	leaves  schema.Quantity
}

// book holds the per-symbol venue state: the displayed best bid/ask, the
// resting orders and the last trade price.
type book struct {
	alloc  AllocationPolicy
	orders []*restingOrder

	bidPrice  schema.Price
	bidQty    schema.Quantity
	askPrice  schema.Price
	askQty    schema.Quantity
	lastTrade schema.Price
}

func newBook(alloc AllocationPolicy) *book {
	return &book{alloc: alloc}
}

// add inserts an order keeping the (price, activeAt, seq) sort. It reports
// false when an order with the same id already rests.
func (b *book) add(o *restingOrder) bool {
	for _, rest := range b.orders {
		if rest.id == o.id {
			return false
		}
	}
	b.orders = append(b.orders, o)
	sort.Slice(b.orders, func(i, j int) bool {
		a, c := b.orders[i], b.orders[j]
		if a.price != c.price {
			return a.price < c.price
		}
		if a.activeAt != c.activeAt {
			return a.activeAt < c.activeAt
		}
		return a.seq < c.seq
	})
	return true
}

func (b *book) get(id uint64) *restingOrder {
	for _, o := range b.orders {
		if o.id == id {
			return o
		}
	}
	return nil
}

func (b *book) cancel(id uint64) bool {
	for i, o := range b.orders {
		if o.id == id {
			b.orders = append(b.orders[:i], b.orders[i+1:]...)
			return true
		}
	}
	return false
}

func (b *book) compact() {
	kept := b.orders[:0]
	for _, o := range b.orders {
		if o.remaining() > 0 {
			kept = append(kept, o)
		}
	}
	b.orders = kept
}

// matchTrade sweeps the passive side with a public trade print. A
// buyer-maker print is an aggressive sell hitting resting buys from the
// highest price down; otherwise an aggressive buy lifts resting sells from
// the lowest price up. Fill quantity is capped by the trade quantity.
func (b *book) matchTrade(price schema.Price, qty schema.Quantity, buyerMaker bool) []fill {
	b.lastTrade = price

	var eligible []*restingOrder
	if buyerMaker {
		for _, o := range b.orders {
			if o.side == schema.OrderSideBuy && o.price >= price {
				eligible = append(eligible, o)
			}
		}
		sortDescByPrice(eligible)
	} else {
		for _, o := range b.orders {
			if o.side == schema.OrderSideSell && o.price <= price {
				eligible = append(eligible, o)
			}
		}
	}

	fills := b.sweep(eligible, qty)
	b.compact()
	return fills
}

// applyTicker updates the displayed best bid/ask and fills resting orders
// the new book crosses, at their limit price, capped by the displayed size.
func (b *book) applyTicker(t schema.BookTicker) []fill {
	b.bidPrice, b.bidQty = t.BidPrice, t.BidQty
	b.askPrice, b.askQty = t.AskPrice, t.AskQty

	var fills []fill
	if b.askPrice > 0 && b.askQty > 0 {
		var eligible []*restingOrder
		for _, o := range b.orders {
			if o.side == schema.OrderSideBuy && o.price >= b.askPrice {
				eligible = append(eligible, o)
			}
		}
		sortDescByPrice(eligible)
		fills = append(fills, b.sweep(eligible, b.askQty)...)
	}
	if b.bidPrice > 0 && b.bidQty > 0 {
		var eligible []*restingOrder
		for _, o := range b.orders {
			if o.side == schema.OrderSideSell && o.price <= b.bidPrice {
				eligible = append(eligible, o)
			}
		}
		fills = append(fills, b.sweep(eligible, b.bidQty)...)
	}
	b.compact()
	return fills
}

// crossOnActivate fills a newly activated order against the current
// displayed best when it crosses, capped by the displayed size.
func (b *book) crossOnActivate(o *restingOrder) []fill {
	var avail schema.Quantity
	switch {
	case o.side == schema.OrderSideBuy && b.askPrice > 0 && o.price >= b.askPrice:
		avail = b.askQty
	case o.side == schema.OrderSideSell && b.bidPrice > 0 && o.price <= b.bidPrice:
		avail = b.bidQty
	default:
		return nil
	}
	fills := b.sweep([]*restingOrder{o}, avail)
	b.compact()
	return fills
}

// opposingBest returns the displayed best quote a marketable order of the
// given side executes against.
func (b *book) opposingBest(side schema.OrderSide) (schema.Price, schema.Quantity) {
	if side == schema.OrderSideBuy {
		return b.askPrice, b.askQty
	}
	return b.bidPrice, b.bidQty
}

// referencePrice is the price band anchor: the last trade, falling back to
// the book mid when no trade has printed yet.
func (b *book) referencePrice() schema.Price {
	if b.lastTrade > 0 {
		return b.lastTrade
	}
	if b.bidPrice > 0 && b.askPrice > 0 {
		return (b.bidPrice + b.askPrice) / 2
	}
	return 0
}

// sweep walks price levels in priority order and allocates avail across
// each level until exhausted. eligible must already be sorted best level
// first with time priority inside each level.
func (b *book) sweep(eligible []*restingOrder, avail schema.Quantity) []fill {
	var fills []fill
	i := 0
	for i < len(eligible) && avail > 0 {
		j := i
		for j < len(eligible) && eligible[j].price == eligible[i].price {
			j++
		}
		avail -= b.allocate(eligible[i:j], avail, &fills)
		i = j
	}
	return fills
}

// allocate grants avail to one price level. Price-time fills in priority
// order; pro-rata splits proportionally by remaining quantity with floor
// division, the rounding remainder going to the earliest orders.
func (b *book) allocate(level []*restingOrder, avail schema.Quantity, fills *[]fill) schema.Quantity {
	var total schema.Quantity
	for _, o := range level {
		total += o.remaining()
	}

	if b.alloc == AllocPriceTime || total <= avail || len(level) == 1 {
		var granted schema.Quantity
		for _, o := range level {
			if avail <= 0 {
				break
			}
			q := o.remaining()
			if q > avail {
				q = avail
			}
			if q <= 0 {
				continue
			}
			o.filled += q
			avail -= q
			granted += q
			*fills = append(*fills, fill{
				orderID: o.id,
				side:    o.side,
				price:   o.price,
				qty:     q,
				leaves:  o.remaining(),
			})
		}
		return granted
	}

	shares := make([]schema.Quantity, len(level))
	var given schema.Quantity
	for k, o := range level {
		s := avail * o.remaining() / total
		shares[k] = s
		given += s
	}
	for k, o := range level {
		rem := avail - given
		if rem <= 0 {
			break
		}
		room := o.remaining() - shares[k]
		if room > rem {
			room = rem
		}
		shares[k] += room
		given += room
	}

	var granted schema.Quantity
	for k, o := range level {
		if shares[k] <= 0 {
			continue
		}
		o.filled += shares[k]
		granted += shares[k]
		*fills = append(*fills, fill{
			orderID: o.id,
			side:    o.side,
			price:   o.price,
			qty:     shares[k],
			leaves:  o.remaining(),
		})
	}
	return granted
}

func sortDescByPrice(orders []*restingOrder) {
	sort.Slice(orders, func(i, j int) bool {
		a, c := orders[i], orders[j]
		if a.price != c.price {
			return a.price > c.price
		}
		if a.activeAt != c.activeAt {
			return a.activeAt < c.activeAt
		}
		return a.seq < c.seq
	})
}
