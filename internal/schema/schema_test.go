package schema

import "testing"

func TestRegistryAssignsDenseIDs(t *testing.T) {
	reg := NewRegistry()
	btc, err := reg.AddSymbol("BTCUSDT", "BTC", "USDT", 10, ScaleSpec{PriceScale: 2, QuantityScale: 3})
	if err != nil {
		t.Fatalf("add BTCUSDT: %v", err)
	}
	eth, err := reg.AddSymbol("ETHUSDT", "ETH", "USDT", 10, ScaleSpec{PriceScale: 2, QuantityScale: 2})
	if err != nil {
		t.Fatalf("add ETHUSDT: %v", err)
	}
	if btc != 1 || eth != 2 {
		t.Fatalf("ids %d, %d", btc, eth)
	}

	sym, ok := reg.Symbol(eth)
	if !ok || sym.BaseAsset != "ETH" || sym.QuoteAsset != "USDT" {
		t.Fatalf("symbol %+v, ok %v", sym, ok)
	}
	if id, ok := reg.SymbolIDByName("BTCUSDT"); !ok || id != btc {
		t.Fatalf("lookup id %d, ok %v", id, ok)
	}
	if _, ok := reg.Symbol(0); ok {
		t.Fatal("id 0 should not resolve")
	}
	if _, ok := reg.Symbol(3); ok {
		t.Fatal("id 3 should not resolve")
	}
}

func TestRegistryRejectsBadSymbols(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.AddSymbol("", "BTC", "USDT", 0, ScaleSpec{}); err == nil {
		t.Fatal("empty name accepted")
	}
	if _, err := reg.AddSymbol("BTCUSDT", "", "USDT", 0, ScaleSpec{}); err == nil {
		t.Fatal("empty base accepted")
	}
	if _, err := reg.AddSymbol("BTCUSDT", "BTC", "USDT", -1, ScaleSpec{}); err == nil {
		t.Fatal("negative fee accepted")
	}
	if _, err := reg.AddSymbol("BTCUSDT", "BTC", "USDT", 10, ScaleSpec{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := reg.AddSymbol("BTCUSDT", "BTC", "USDT", 10, ScaleSpec{}); err == nil {
		t.Fatal("duplicate accepted")
	}
}

func TestTopicBounds(t *testing.T) {
	if TopicCount <= 0 {
		t.Fatalf("topic count %d", TopicCount)
	}
	for i := 0; i < TopicCount; i++ {
		topic := Topic(i + 1)
		if !topic.IsAvailable() {
			t.Fatalf("topic %d unavailable", topic)
		}
		if topic.String() == "" {
			t.Fatalf("topic %d has no name", topic)
		}
	}
	if Topic(0).IsAvailable() {
		t.Fatal("zero topic available")
	}
	if Topic(TopicCount + 1).IsAvailable() {
		t.Fatal("out of range topic available")
	}
}

func TestParseScaled(t *testing.T) {
	for _, tc := range []struct {
		in    string
		scale Scale
		want  int64
	}{
		{"25100.50", 2, 2_510_050},
		{"0.0012", 3, 1},
		{"10", 3, 10_000},
		{"-1.5", 1, -15},
		{"0", 0, 0},
	} {
		got, err := ParseScaled(tc.in, tc.scale)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q scale %d: got %d, want %d", tc.in, tc.scale, got, tc.want)
		}
	}

	for _, bad := range []string{"", ".", "1.2.3", "abc", "9223372036854775807000"} {
		if _, err := ParseScaled(bad, 2); err == nil {
			t.Fatalf("parse %q: expected error", bad)
		}
	}
}
