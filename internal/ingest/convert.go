package ingest

import (
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/schema"
)

// binanceEvent is the union of the stream payloads this feed subscribes to.
// The raw bookTicker stream carries no event type, so an empty EventType
// with a non-zero UpdateID identifies it.
type binanceEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`

	UpdateID int64           `json:"u"`
	BidPrice decimal.Decimal `json:"b"`
	BidQty   decimal.Decimal `json:"B"`
	AskPrice decimal.Decimal `json:"a"`
	AskQty   decimal.Decimal `json:"A"`

	Price      decimal.Decimal `json:"p"`
	Qty        decimal.Decimal `json:"q"`
	TradeTime  int64           `json:"T"`
	BuyerMaker bool            `json:"m"`
}

// snapshotResponse is the REST bookTicker snapshot used to seed the book
// before the stream delivers its first update.
type snapshotResponse struct {
	Symbol   string          `json:"symbol"`
	BidPrice decimal.Decimal `json:"bidPrice"`
	BidQty   decimal.Decimal `json:"bidQty"`
	AskPrice decimal.Decimal `json:"askPrice"`
	AskQty   decimal.Decimal `json:"askQty"`
}

func (e binanceEvent) isTrade() bool {
	return e.EventType == "trade"
}

func (e binanceEvent) isBookTicker() bool {
	return e.EventType == "" && e.UpdateID != 0
}

func (e binanceEvent) toBookTicker(sym schema.Symbol) (schema.BookTicker, error) {
	bidPrice, err := scaled(e.BidPrice, sym.Scale.PriceScale)
	if err != nil {
		return schema.BookTicker{}, errors.Wrap(err, "bid price")
	}
	bidQty, err := scaled(e.BidQty, sym.Scale.QuantityScale)
	if err != nil {
		return schema.BookTicker{}, errors.Wrap(err, "bid qty")
	}
	askPrice, err := scaled(e.AskPrice, sym.Scale.PriceScale)
	if err != nil {
		return schema.BookTicker{}, errors.Wrap(err, "ask price")
	}
	askQty, err := scaled(e.AskQty, sym.Scale.QuantityScale)
	if err != nil {
		return schema.BookTicker{}, errors.Wrap(err, "ask qty")
	}
	return schema.BookTicker{
		SymbolID: sym.ID,
		BidPrice: schema.Price(bidPrice),
		BidQty:   schema.Quantity(bidQty),
		AskPrice: schema.Price(askPrice),
		AskQty:   schema.Quantity(askQty),
	}, nil
}

func (e binanceEvent) toTrade(sym schema.Symbol) (schema.Trade, int64, error) {
	price, err := scaled(e.Price, sym.Scale.PriceScale)
	if err != nil {
		return schema.Trade{}, 0, errors.Wrap(err, "trade price")
	}
	qty, err := scaled(e.Qty, sym.Scale.QuantityScale)
	if err != nil {
		return schema.Trade{}, 0, errors.Wrap(err, "trade qty")
	}
	return schema.Trade{
		SymbolID:   sym.ID,
		Price:      schema.Price(price),
		Qty:        schema.Quantity(qty),
		BuyerMaker: e.BuyerMaker,
	}, e.TradeTime * 1_000_000, nil
}

func (r snapshotResponse) toBookTicker(sym schema.Symbol) (schema.BookTicker, error) {
	return binanceEvent{
		UpdateID: 1,
		BidPrice: r.BidPrice,
		BidQty:   r.BidQty,
		AskPrice: r.AskPrice,
		AskQty:   r.AskQty,
	}.toBookTicker(sym)
}

func scaled(d decimal.Decimal, scale schema.Scale) (int64, error) {
	return schema.ParseScaled(d.String(), scale)
}
