package account

import (
	"sort"

	"main/internal/bus"
	"main/internal/schema"
)

// Ledger is the passive account view. It folds order results into
// per-symbol positions and mirrors the balances reported by the venue. It
// publishes nothing; readers pull the state through Snapshot after the run.
type Ledger struct {
	balances  map[string]schema.BalanceEntry
	positions map[schema.SymbolID]schema.Quantity
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[string]schema.BalanceEntry),
		positions: make(map[schema.SymbolID]schema.Quantity),
	}
}

func (l *Ledger) Name() string {
	return "account"
}

func (l *Ledger) Declare() bus.Declaration {
	return bus.Declaration{
		Subscribes: []schema.Topic{
			schema.TopicOrderResult,
			schema.TopicAccount,
		},
	}
}

func (l *Ledger) Handle(msg bus.Message) ([]bus.Message, error) {
	switch p := msg.Payload.(type) {
	case schema.OrderResult:
		l.applyResult(p)
	case schema.AccountUpdate:
		for _, e := range p.Entries {
			l.balances[e.Asset] = e
		}
	}
	return nil, nil
}

func (l *Ledger) applyResult(r schema.OrderResult) {
	if r.FilledQty <= 0 {
		return
	}
	switch r.Side {
	case schema.OrderSideBuy:
		l.positions[r.SymbolID] += r.FilledQty
	case schema.OrderSideSell:
		l.positions[r.SymbolID] -= r.FilledQty
	}
}

// Position returns the net filled quantity for a symbol.
func (l *Ledger) Position(symbolID schema.SymbolID) schema.Quantity {
	return l.positions[symbolID]
}

// Balance returns the last reported balance row for an asset.
func (l *Ledger) Balance(asset string) (schema.BalanceEntry, bool) {
	e, ok := l.balances[asset]
	return e, ok
}

// PositionEntry is one symbol row of a ledger snapshot.
type PositionEntry struct {
	SymbolID schema.SymbolID
	Qty      schema.Quantity
}

// Snapshot is a deterministic copy of the ledger state, sorted by asset
// name and symbol id.
type Snapshot struct {
	Balances  []schema.BalanceEntry
	Positions []PositionEntry
}

func (l *Ledger) Snapshot() Snapshot {
	balances := make([]schema.BalanceEntry, 0, len(l.balances))
	for _, e := range l.balances {
		balances = append(balances, e)
	}
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Asset < balances[j].Asset
	})

	positions := make([]PositionEntry, 0, len(l.positions))
	for id, qty := range l.positions {
		positions = append(positions, PositionEntry{SymbolID: id, Qty: qty})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].SymbolID < positions[j].SymbolID
	})

	return Snapshot{Balances: balances, Positions: positions}
}
