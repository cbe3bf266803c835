package exchange

import (
	"sort"

	"main/internal/schema"
)

// assetBalance tracks a single asset. Locked is the portion reserved by
// resting orders; it is always <= balance.
type assetBalance struct {
	balance int64
	locked  int64
}

func (b *assetBalance) free() int64 {
	return b.balance - b.locked
}

// tryLock reserves amount out of the free balance. It reports false without
// mutating when the free balance is insufficient.
func (b *assetBalance) tryLock(amount int64) bool {
	if amount < 0 || b.free() < amount {
		return false
	}
	b.locked += amount
	return true
}

func (b *assetBalance) unlock(amount int64) {
	b.locked -= amount
	if b.locked < 0 {
		b.locked = 0
	}
}

// consumeLocked pays amount out of the locked portion.
func (b *assetBalance) consumeLocked(amount int64) {
	b.locked -= amount
	b.balance -= amount
	if b.locked < 0 {
		b.locked = 0
	}
}

func (b *assetBalance) add(amount int64) {
	b.balance += amount
}

// wallet is the venue-side ledger keyed by asset name. Quote assets carry
// scale PriceScale+QuantityScale, base assets QuantityScale.
type wallet struct {
	assets map[string]*assetBalance
}

func newWallet() *wallet {
	return &wallet{assets: make(map[string]*assetBalance)}
}

func (w *wallet) get(asset string) *assetBalance {
	b, ok := w.assets[asset]
	if !ok {
		b = &assetBalance{}
		w.assets[asset] = b
	}
	return b
}

// entries returns balance rows for the named assets, in the given order.
func (w *wallet) entries(assets ...string) []schema.BalanceEntry {
	out := make([]schema.BalanceEntry, 0, len(assets))
	for _, asset := range assets {
		b := w.get(asset)
		out = append(out, schema.BalanceEntry{
			Asset:   asset,
			Balance: schema.Quantity(b.balance),
			Locked:  schema.Quantity(b.locked),
		})
	}
	return out
}

// snapshot returns all balance rows sorted by asset name.
func (w *wallet) snapshot() []schema.BalanceEntry {
	names := make([]string, 0, len(w.assets))
	for asset := range w.assets {
		names = append(names, asset)
	}
	sort.Strings(names)
	return w.entries(names...)
}
