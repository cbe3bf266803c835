package engine

import (
	"context"
	"io"

	"main/internal/bus"
)

// Source is the clock driving a run: a lazy, ordered sequence of timestamped
// input messages. A backtest source returns io.EOF when the historical data
// is exhausted; a live source blocks until the next feed event arrives and
// returns io.EOF only when the feed shuts down. Module code never sees the
// source kind, only message timestamps, so strategy behavior is identical
// between backtest and live runs.
type Source interface {
	Next(ctx context.Context) (bus.Message, error)
}

// QueueSource adapts a bounded bus.Queue into a Source. Live feed adapters
// push pre-ordered messages into the queue from their own goroutine; the
// engine remains the single serialization point.
type QueueSource struct {
	queue  *bus.Queue
	lastTs int64
}

// NewQueueSource wraps an intake queue.
func NewQueueSource(queue *bus.Queue) *QueueSource {
	return &QueueSource{queue: queue}
}

// Next blocks for the next intake message. Timestamps are clamped to be
// monotone non-decreasing so a jittery feed clock cannot violate the
// engine's ordering invariant.
func (s *QueueSource) Next(ctx context.Context) (bus.Message, error) {
	m, ok := s.queue.Receive(ctx)
	if !ok {
		if ctx.Err() != nil {
			return bus.Message{}, ctx.Err()
		}
		return bus.Message{}, io.EOF
	}
	if m.Header.TsEvent < s.lastTs {
		m.Header.TsEvent = s.lastTs
	}
	s.lastTs = m.Header.TsEvent
	return m, nil
}

// SliceSource replays an in-memory message sequence. Test helper and the
// smallest possible backtest source.
type SliceSource struct {
	msgs  []bus.Message
	index int
}

// NewSliceSource creates a source over a pre-ordered message slice.
func NewSliceSource(msgs []bus.Message) *SliceSource {
	return &SliceSource{msgs: msgs}
}

func (s *SliceSource) Next(ctx context.Context) (bus.Message, error) {
	if err := ctx.Err(); err != nil {
		return bus.Message{}, err
	}
	if s.index >= len(s.msgs) {
		return bus.Message{}, io.EOF
	}
	m := s.msgs[s.index]
	s.index++
	return m, nil
}
