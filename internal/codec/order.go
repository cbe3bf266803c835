package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	OrderIntentPayloadSize = 40
	OrderCancelPayloadSize = 12
	OrderResultPayloadSize = 44
)

// EncodeOrderIntent serializes an order intent into a fixed-size payload.
// Bytes 22:24 are reserved.
func EncodeOrderIntent(dst []byte, order schema.OrderIntent) []byte {
	if cap(dst) < OrderIntentPayloadSize {
		dst = make([]byte, OrderIntentPayloadSize)
	} else {
		dst = dst[:OrderIntentPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], order.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], order.StrategyID)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(order.SymbolID))
	binary.LittleEndian.PutUint16(dst[16:18], uint16(order.Side))
	binary.LittleEndian.PutUint16(dst[18:20], uint16(order.Type))
	binary.LittleEndian.PutUint16(dst[20:22], uint16(order.TimeInForce))
	binary.LittleEndian.PutUint16(dst[22:24], 0)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(order.Price))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(order.Qty))

	return dst
}

// DecodeOrderIntent parses a fixed-size order intent payload.
func DecodeOrderIntent(src []byte) (schema.OrderIntent, bool) {
	if len(src) < OrderIntentPayloadSize {
		return schema.OrderIntent{}, false
	}
	return schema.OrderIntent{
		OrderID:     binary.LittleEndian.Uint64(src[0:8]),
		StrategyID:  binary.LittleEndian.Uint32(src[8:12]),
		SymbolID:    schema.SymbolID(binary.LittleEndian.Uint32(src[12:16])),
		Side:        schema.OrderSide(binary.LittleEndian.Uint16(src[16:18])),
		Type:        schema.OrderType(binary.LittleEndian.Uint16(src[18:20])),
		TimeInForce: schema.TimeInForce(binary.LittleEndian.Uint16(src[20:22])),
		Price:       schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Qty:         schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}

// EncodeOrderCancel serializes a cancel request.
func EncodeOrderCancel(dst []byte, cancel schema.OrderCancel) []byte {
	if cap(dst) < OrderCancelPayloadSize {
		dst = make([]byte, OrderCancelPayloadSize)
	} else {
		dst = dst[:OrderCancelPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], cancel.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(cancel.SymbolID))

	return dst
}

// DecodeOrderCancel parses a fixed-size cancel payload.
func DecodeOrderCancel(src []byte) (schema.OrderCancel, bool) {
	if len(src) < OrderCancelPayloadSize {
		return schema.OrderCancel{}, false
	}
	return schema.OrderCancel{
		OrderID:  binary.LittleEndian.Uint64(src[0:8]),
		SymbolID: schema.SymbolID(binary.LittleEndian.Uint32(src[8:12])),
	}, true
}

// EncodeOrderResult serializes an order state transition. Bytes 18:20 are
// reserved.
func EncodeOrderResult(dst []byte, result schema.OrderResult) []byte {
	if cap(dst) < OrderResultPayloadSize {
		dst = make([]byte, OrderResultPayloadSize)
	} else {
		dst = dst[:OrderResultPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], result.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], uint32(result.SymbolID))
	binary.LittleEndian.PutUint16(dst[12:14], uint16(result.Side))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(result.Status))
	binary.LittleEndian.PutUint16(dst[16:18], uint16(result.Reason))
	binary.LittleEndian.PutUint16(dst[18:20], 0)
	binary.LittleEndian.PutUint64(dst[20:28], uint64(result.Price))
	binary.LittleEndian.PutUint64(dst[28:36], uint64(result.FilledQty))
	binary.LittleEndian.PutUint64(dst[36:44], uint64(result.LeavesQty))

	return dst
}

// DecodeOrderResult parses a fixed-size order result payload.
func DecodeOrderResult(src []byte) (schema.OrderResult, bool) {
	if len(src) < OrderResultPayloadSize {
		return schema.OrderResult{}, false
	}
	return schema.OrderResult{
		OrderID:   binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:  schema.SymbolID(binary.LittleEndian.Uint32(src[8:12])),
		Side:      schema.OrderSide(binary.LittleEndian.Uint16(src[12:14])),
		Status:    schema.OrderStatus(binary.LittleEndian.Uint16(src[14:16])),
		Reason:    schema.RejectReason(binary.LittleEndian.Uint16(src[16:18])),
		Price:     schema.Price(int64(binary.LittleEndian.Uint64(src[20:28]))),
		FilledQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[28:36]))),
		LeavesQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[36:44]))),
	}, true
}
