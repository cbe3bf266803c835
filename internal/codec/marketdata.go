package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	BookTickerPayloadSize = 36
	TradePayloadSize      = 21
)

// EncodeBookTicker serializes a best quote snapshot.
func EncodeBookTicker(dst []byte, tick schema.BookTicker) []byte {
	if cap(dst) < BookTickerPayloadSize {
		dst = make([]byte, BookTickerPayloadSize)
	} else {
		dst = dst[:BookTickerPayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(tick.SymbolID))
	binary.LittleEndian.PutUint64(dst[4:12], uint64(tick.BidPrice))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(tick.BidQty))
	binary.LittleEndian.PutUint64(dst[20:28], uint64(tick.AskPrice))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(tick.AskQty))

	return dst
}

// DecodeBookTicker parses a fixed-size book ticker payload.
func DecodeBookTicker(src []byte) (schema.BookTicker, bool) {
	if len(src) < BookTickerPayloadSize {
		return schema.BookTicker{}, false
	}
	return schema.BookTicker{
		SymbolID: schema.SymbolID(binary.LittleEndian.Uint32(src[0:4])),
		BidPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[4:12]))),
		BidQty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[12:20]))),
		AskPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[20:28]))),
		AskQty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[28:36]))),
	}, true
}

// EncodeTrade serializes a public trade print.
func EncodeTrade(dst []byte, trade schema.Trade) []byte {
	if cap(dst) < TradePayloadSize {
		dst = make([]byte, TradePayloadSize)
	} else {
		dst = dst[:TradePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], uint32(trade.SymbolID))
	binary.LittleEndian.PutUint64(dst[4:12], uint64(trade.Price))
	binary.LittleEndian.PutUint64(dst[12:20], uint64(trade.Qty))
	if trade.BuyerMaker {
		dst[20] = 1
	} else {
		dst[20] = 0
	}

	return dst
}

// DecodeTrade parses a fixed-size trade payload.
func DecodeTrade(src []byte) (schema.Trade, bool) {
	if len(src) < TradePayloadSize {
		return schema.Trade{}, false
	}
	return schema.Trade{
		SymbolID:   schema.SymbolID(binary.LittleEndian.Uint32(src[0:4])),
		Price:      schema.Price(int64(binary.LittleEndian.Uint64(src[4:12]))),
		Qty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[12:20]))),
		BuyerMaker: src[20] == 1,
	}, true
}
