package replay

import (
	"fmt"
	"strconv"
	"strings"

	"main/internal/schema"
)

// tradeLine is one row of a Binance trades csv:
// id,price,qty,quote_qty,time,is_buyer_maker
func parseTradeLine(line string, sym schema.Symbol) (schema.Trade, int64, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return schema.Trade{}, 0, fmt.Errorf("trade line has %d fields", len(fields))
	}
	price, err := schema.ParseScaled(fields[1], sym.Scale.PriceScale)
	if err != nil {
		return schema.Trade{}, 0, fmt.Errorf("trade price: %w", err)
	}
	qty, err := schema.ParseScaled(fields[2], sym.Scale.QuantityScale)
	if err != nil {
		return schema.Trade{}, 0, fmt.Errorf("trade qty: %w", err)
	}
	ms, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return schema.Trade{}, 0, fmt.Errorf("trade time: %w", err)
	}
	return schema.Trade{
		SymbolID:   sym.ID,
		Price:      schema.Price(price),
		Qty:        schema.Quantity(qty),
		BuyerMaker: strings.EqualFold(strings.TrimSpace(fields[5]), "true"),
	}, msToNano(ms), nil
}

// bookLine is one row of a Binance bookTicker csv:
// update_id,bid_price,bid_qty,ask_price,ask_qty,transaction_time,event_time
func parseBookLine(line string, sym schema.Symbol) (schema.BookTicker, int64, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return schema.BookTicker{}, 0, fmt.Errorf("bookticker line has %d fields", len(fields))
	}
	bidPrice, err := schema.ParseScaled(fields[1], sym.Scale.PriceScale)
	if err != nil {
		return schema.BookTicker{}, 0, fmt.Errorf("bid price: %w", err)
	}
	bidQty, err := schema.ParseScaled(fields[2], sym.Scale.QuantityScale)
	if err != nil {
		return schema.BookTicker{}, 0, fmt.Errorf("bid qty: %w", err)
	}
	askPrice, err := schema.ParseScaled(fields[3], sym.Scale.PriceScale)
	if err != nil {
		return schema.BookTicker{}, 0, fmt.Errorf("ask price: %w", err)
	}
	askQty, err := schema.ParseScaled(fields[4], sym.Scale.QuantityScale)
	if err != nil {
		return schema.BookTicker{}, 0, fmt.Errorf("ask qty: %w", err)
	}
	ms, err := strconv.ParseInt(fields[6], 10, 64)
	if err != nil {
		return schema.BookTicker{}, 0, fmt.Errorf("event time: %w", err)
	}
	return schema.BookTicker{
		SymbolID: sym.ID,
		BidPrice: schema.Price(bidPrice),
		BidQty:   schema.Quantity(bidQty),
		AskPrice: schema.Price(askPrice),
		AskQty:   schema.Quantity(askQty),
	}, msToNano(ms), nil
}

func msToNano(ms int64) int64 {
	return ms * 1_000_000
}
