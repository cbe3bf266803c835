package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

func testMessages() []bus.Message {
	return []bus.Message{
		{
			Header: schema.NewHeader(schema.TopicBookTicker, 1, 1, 1_000, 0),
			Payload: schema.BookTicker{
				SymbolID: 7,
				BidPrice: 10_000, BidQty: 5,
				AskPrice: 10_010, AskQty: 3,
			},
		},
		{
			Header: schema.NewHeader(schema.TopicTrade, 1, 2, 2_000, 0),
			Payload: schema.Trade{
				SymbolID: 7, Price: 10_005, Qty: 2, BuyerMaker: true,
			},
		},
		{
			Header: schema.NewHeader(schema.TopicOrderResult, 2, 3, 3_000, 0),
			Payload: schema.OrderResult{
				OrderID: 42, SymbolID: 7,
				Side: schema.OrderSideBuy, Status: schema.OrderStatusFilled,
				Price: 10_005, FilledQty: 2, LeavesQty: 0,
			},
		},
	}
}

func recordRun(t *testing.T, dir string, msgs []bus.Message) {
	t.Helper()

	writer, err := NewWriter(Config{Dir: dir, QueueSize: 64})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := writer.Start(ctx); err != nil {
		t.Fatalf("start writer: %v", err)
	}

	tap := NewTap(writer, obs.NewMetrics())
	queue := bus.NewQueue(len(msgs))
	for _, m := range msgs {
		if err := queue.TryPublish(m); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	queue.Close()

	done := make(chan struct{})
	go func() {
		tap.Run(ctx, queue)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tap did not drain")
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
}

func TestRecordThenReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	msgs := testMessages()
	recordRun(t, dir, msgs)

	src, err := NewSource(SourceConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	defer src.Close()

	ctx := context.Background()
	for i, want := range msgs {
		got, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if got.Header != want.Header {
			t.Fatalf("header %d: got %+v, want %+v", i, got.Header, want.Header)
		}
		if got.Payload != want.Payload {
			t.Fatalf("payload %d: got %+v, want %+v", i, got.Payload, want.Payload)
		}
	}
	if _, err := src.Next(ctx); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestSourceDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	recordRun(t, dir, testMessages())

	files, err := filepath.Glob(filepath.Join(dir, "*.wal"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one segment, got %v (%v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	data[recordHeaderSize+2] ^= 0xFF
	if err := os.WriteFile(files[0], data, 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	src, err := NewSource(SourceConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	defer src.Close()

	if _, err := src.Next(context.Background()); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestSourceSkipsChecksumWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	msgs := testMessages()
	recordRun(t, dir, msgs)

	src, err := NewSource(SourceConfig{Dir: dir, DisableChecksum: true})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	defer src.Close()

	for i := range msgs {
		if _, err := src.Next(context.Background()); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}
}

func TestNewSourceRejectsEmptyDir(t *testing.T) {
	if _, err := NewSource(SourceConfig{Dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
