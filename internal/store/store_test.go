package store

import (
	"testing"

	"main/internal/bus"
	"main/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	if _, err := registry.AddSymbol("BTCUSDT", "BTC", "USDT", 10, schema.ScaleSpec{}); err != nil {
		t.Fatalf("add symbol: %v", err)
	}
	return registry
}

func result(status schema.OrderStatus, filled schema.Quantity) bus.Message {
	return bus.Message{
		Header: schema.NewHeader(schema.TopicOrderResult, 2, 1, 5_000, 0),
		Payload: schema.OrderResult{
			OrderID:   9,
			SymbolID:  1,
			Side:      schema.OrderSideSell,
			Status:    status,
			Price:     10_000,
			FilledQty: filled,
			LeavesQty: 3,
		},
	}
}

func TestObserveBatchesFills(t *testing.T) {
	s := &Store{registry: testRegistry(t), runID: "run-test", batchSize: 1024}

	s.Observe(result(schema.OrderStatusFilled, 7))
	s.Observe(result(schema.OrderStatusNew, 0))
	s.Observe(result(schema.OrderStatusRejected, 0))
	s.Observe(bus.Message{
		Header:  schema.NewHeader(schema.TopicTrade, 1, 2, 6_000, 0),
		Payload: schema.Trade{SymbolID: 1, Price: 10_000, Qty: 1},
	})

	if s.messages != 4 || s.fills != 1 || s.rejects != 1 {
		t.Fatalf("counters: messages %d fills %d rejects %d", s.messages, s.fills, s.rejects)
	}
	if len(s.batch) != 1 {
		t.Fatalf("batch len %d", len(s.batch))
	}
	row := s.batch[0]
	if row.RunID != "run-test" || row.Symbol != "BTCUSDT" || row.Side != "sell" {
		t.Fatalf("row %+v", row)
	}
	if row.OrderID != 9 || row.Price != 10_000 || row.FilledQty != 7 || row.LeavesQty != 3 || row.TsEvent != 5_000 {
		t.Fatalf("row %+v", row)
	}
}

func TestObserveFallsBackToSymbolID(t *testing.T) {
	s := &Store{registry: testRegistry(t), runID: "run-test", batchSize: 1024}

	m := result(schema.OrderStatusFilled, 1)
	p := m.Payload.(schema.OrderResult)
	p.SymbolID = 99
	m.Payload = p

	s.Observe(m)
	if len(s.batch) != 1 || s.batch[0].Symbol != "symbol-99" {
		t.Fatalf("batch %+v", s.batch)
	}
}
