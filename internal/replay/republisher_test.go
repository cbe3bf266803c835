package replay

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"main/internal/bus"
	"main/internal/schema"
)

var testSymbol = schema.Symbol{
	ID:         1,
	Name:       "BTCUSDT",
	BaseAsset:  "BTC",
	QuoteAsset: "USDT",
	Scale:      schema.ScaleSpec{PriceScale: 2, QuantityScale: 3},
}

func TestParseScaled(t *testing.T) {
	cases := []struct {
		in    string
		scale schema.Scale
		want  int64
		fail  bool
	}{
		{"100", 2, 10000, false},
		{"100.5", 2, 10050, false},
		{"100.55", 2, 10055, false},
		{"100.559", 2, 10055, false},
		{"-3.5", 1, -35, false},
		{"0.001", 3, 1, false},
		{"", 2, 0, true},
		{"abc", 2, 0, true},
		{"1.2.3", 2, 0, true},
	}
	for _, c := range cases {
		got, err := schema.ParseScaled(c.in, c.scale)
		if c.fail {
			if err == nil {
				t.Fatalf("parse %q: expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: got %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseTradeLine(t *testing.T) {
	trade, ts, err := parseTradeLine("12345,64000.50,0.125,8000.06,1700000000000,true", testSymbol)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if trade.Price != 6400050 || trade.Qty != 125 || !trade.BuyerMaker {
		t.Fatalf("unexpected trade: %+v", trade)
	}
	if ts != 1700000000000*1_000_000 {
		t.Fatalf("ts %d", ts)
	}
}

func TestParseBookLine(t *testing.T) {
	book, ts, err := parseBookLine("99,64000.00,1.5,64000.10,2.25,1700000000001,1700000000002", testSymbol)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if book.BidPrice != 6400000 || book.BidQty != 1500 || book.AskPrice != 6400010 || book.AskQty != 2250 {
		t.Fatalf("unexpected book: %+v", book)
	}
	if ts != 1700000000002*1_000_000 {
		t.Fatalf("ts %d", ts)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRepublisherMergesByTimestamp(t *testing.T) {
	dir := t.TempDir()
	trades := writeFile(t, dir, "BTCUSDT-trades-2024-01-01.csv",
		"1,100.00,1.000,100,1000,true\n"+
			"2,101.00,1.000,101,3000,false\n")
	books := writeFile(t, dir, "BTCUSDT-bookTicker-2024-01-01.csv",
		"10,99.00,1.000,100.00,1.000,999,1000\n"+
			"11,100.00,1.000,101.00,1.000,1999,2000\n")

	r, err := NewRepublisher(Config{Symbol: "BTCUSDT", Files: []string{trades, books}}, testSymbol)
	if err != nil {
		t.Fatalf("new republisher: %v", err)
	}
	defer r.Close()

	var got []bus.Message
	ctx := context.Background()
	for {
		msg, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, msg)
	}

	if len(got) != 4 {
		t.Fatalf("got %d messages", len(got))
	}
	// equal timestamps resolve book first, matching the recorded feed shape
	wantTopics := []schema.Topic{
		schema.TopicBookTicker,
		schema.TopicTrade,
		schema.TopicBookTicker,
		schema.TopicTrade,
	}
	var lastTs int64
	for i, msg := range got {
		if msg.Header.Topic != wantTopics[i] {
			t.Fatalf("message %d topic %v, want %v", i, msg.Header.Topic, wantTopics[i])
		}
		if msg.Header.TsEvent < lastTs {
			t.Fatalf("timestamps went backwards at %d", i)
		}
		lastTs = msg.Header.TsEvent
	}
}

func TestRepublisherSkipsHeaderLines(t *testing.T) {
	dir := t.TempDir()
	trades := writeFile(t, dir, "trades.csv",
		"id,price,qty,quote_qty,time,is_buyer_maker\n"+
			"1,100.00,1.000,100,1000,true\n")

	r, err := NewRepublisher(Config{Files: []string{trades}}, testSymbol)
	if err != nil {
		t.Fatalf("new republisher: %v", err)
	}
	defer r.Close()

	msg, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, ok := msg.Payload.(schema.Trade); !ok {
		t.Fatalf("unexpected payload %T", msg.Payload)
	}
	if _, err := r.Next(context.Background()); err != io.EOF {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestRepublisherRejectsUnclassifiedFile(t *testing.T) {
	if _, err := NewRepublisher(Config{Files: []string{"data/candles.csv"}}, testSymbol); err == nil {
		t.Fatal("expected error")
	}
}
