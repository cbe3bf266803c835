package recorder

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/obs"
)

// Tap drains delivered messages from an engine tap queue into a WAL writer.
// It runs on its own goroutine so disk stalls never reach the delivery loop;
// a full writer queue drops the record and counts it.
type Tap struct {
	writer  *Writer
	metrics *obs.Metrics
	buf     []byte
}

// NewTap binds a tap queue drain to a started writer. The tap reuses its
// encode buffer between records, so the writer is switched to copy mode.
func NewTap(writer *Writer, metrics *obs.Metrics) *Tap {
	writer.cfg.CopyPayload = true
	return &Tap{writer: writer, metrics: metrics}
}

// Run consumes the queue until the context is done or the queue closes.
func (t *Tap) Run(ctx context.Context, queue *bus.Queue) {
	queue.Run(ctx, t.Record)
}

// Record encodes one delivered message and appends it to the WAL.
func (t *Tap) Record(m bus.Message) {
	encoded, err := codec.EncodePayload(t.buf, m.Header.Topic, m.Payload)
	if err != nil {
		logs.Errorf("encode wal record, topic %s: %v", m.Header.Topic, err)
		t.metrics.IncTapDrop()
		return
	}
	t.buf = encoded

	if err := t.writer.TryAppend(m.Header, encoded); err != nil {
		if t.writer.Err() != nil {
			logs.Errorf("wal writer failed: %v", err)
		}
		t.metrics.IncTapDrop()
	}
}
