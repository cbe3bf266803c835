package chaos

import (
	"context"
	"io"
	"testing"

	"main/internal/bus"
	"main/internal/schema"
)

type sliceSource struct {
	msgs []bus.Message
	idx  int
}

func (s *sliceSource) Next(ctx context.Context) (bus.Message, error) {
	if s.idx >= len(s.msgs) {
		return bus.Message{}, io.EOF
	}
	m := s.msgs[s.idx]
	s.idx++
	return m, nil
}

func trades(n int) []bus.Message {
	msgs := make([]bus.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, bus.Message{
			Header:  schema.NewHeader(schema.TopicTrade, 1, uint64(i+1), int64(i+1)*1000, 0),
			Payload: schema.Trade{SymbolID: 1, Price: 100, Qty: 1},
		})
	}
	return msgs
}

func collect(t *testing.T, src *Source) []bus.Message {
	t.Helper()
	var out []bus.Message
	for {
		m, err := src.Next(context.Background())
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, m)
	}
}

func TestSameSeedSameFaults(t *testing.T) {
	cfg := Config{Seed: 7, DropRate: 0.3, DuplicateRate: 0.3, ReorderWindow: 3}

	first, err := NewSource(&sliceSource{msgs: trades(50)}, cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	second, err := NewSource(&sliceSource{msgs: trades(50)}, cfg)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	a := collect(t, first)
	b := collect(t, second)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Header.Seq != b[i].Header.Seq {
			t.Fatalf("sequence %d differs: %d vs %d", i, a[i].Header.Seq, b[i].Header.Seq)
		}
	}
}

func TestDropRateOneDropsEverything(t *testing.T) {
	src, err := NewSource(&sliceSource{msgs: trades(20)}, Config{Seed: 1, DropRate: 1})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	if out := collect(t, src); len(out) != 0 {
		t.Fatalf("expected empty, got %d", len(out))
	}
}

func TestDuplicateRateOneDoublesEverything(t *testing.T) {
	src, err := NewSource(&sliceSource{msgs: trades(10)}, Config{Seed: 1, DuplicateRate: 1})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	out := collect(t, src)
	if len(out) != 20 {
		t.Fatalf("expected 20, got %d", len(out))
	}
	for i := 0; i < len(out); i += 2 {
		if out[i].Header.Seq != out[i+1].Header.Seq {
			t.Fatalf("pair %d not duplicated: %d vs %d", i, out[i].Header.Seq, out[i+1].Header.Seq)
		}
	}
}

func TestReorderWindowKeepsAllMessages(t *testing.T) {
	src, err := NewSource(&sliceSource{msgs: trades(25)}, Config{Seed: 3, ReorderWindow: 5})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	out := collect(t, src)
	if len(out) != 25 {
		t.Fatalf("expected 25, got %d", len(out))
	}
	seen := make(map[uint64]bool, len(out))
	for _, m := range out {
		seen[m.Header.Seq] = true
	}
	if len(seen) != 25 {
		t.Fatalf("lost messages: %d unique", len(seen))
	}
}

func TestDelayBumpsRecvTimeOnly(t *testing.T) {
	src, err := NewSource(&sliceSource{msgs: trades(10)}, Config{Seed: 2, MaxDelay: 1000})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	for i, m := range collect(t, src) {
		wantEvent := int64(i+1) * 1000
		if m.Header.TsEvent != wantEvent {
			t.Fatalf("event ts mutated: %d, want %d", m.Header.TsEvent, wantEvent)
		}
		if m.Header.TsRecv != 0 && m.Header.TsRecv < m.Header.TsEvent {
			t.Fatalf("recv ts %d before event ts %d", m.Header.TsRecv, m.Header.TsEvent)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	for _, cfg := range []Config{
		{DropRate: -0.1},
		{DropRate: 1.1},
		{DuplicateRate: 2},
		{MaxDelay: -1},
	} {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
