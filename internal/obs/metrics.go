package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

// Metrics collects lightweight counters and latency stats for a run.
// All methods are safe for concurrent use and nil-safe so call sites never
// need to guard.
type Metrics struct {
	topicCounts     [schema.TopicCount + 1]uint64
	handlerFailures uint64
	rejects         uint64
	tapDrops        uint64
	tapClosed       uint64

	deliverLatency LatencyStats
	handleLatency  LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	TopicCounts     map[schema.Topic]uint64
	HandlerFailures uint64
	Rejects         uint64
	TapDrops        uint64
	TapClosed       uint64
	DeliverLatency  LatencySnapshot
	HandleLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveDeliver counts a delivered message and tracks feed-to-delivery
// latency when the header carries a receive timestamp.
func (m *Metrics) ObserveDeliver(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Topic)
	if idx >= 0 && idx < len(m.topicCounts) {
		atomic.AddUint64(&m.topicCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.deliverLatency.Observe(time.Duration(delta))
		}
	}
}

// ObserveHandle measures a single handler invocation.
func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleLatency.Observe(d)
}

// IncHandlerFailure records a failed handler invocation.
func (m *Metrics) IncHandlerFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.handlerFailures, 1)
}

// IncReject records a rejected order intent.
func (m *Metrics) IncReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rejects, 1)
}

// IncTapDrop records a tap overflow drop.
func (m *Metrics) IncTapDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tapDrops, 1)
}

// IncTapClosed records a publish attempt on a closed tap.
func (m *Metrics) IncTapClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tapClosed, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	topicCounts := make(map[schema.Topic]uint64)
	for i := range m.topicCounts {
		if v := atomic.LoadUint64(&m.topicCounts[i]); v > 0 {
			topicCounts[schema.Topic(i)] = v
		}
	}
	return Snapshot{
		TopicCounts:     topicCounts,
		HandlerFailures: atomic.LoadUint64(&m.handlerFailures),
		Rejects:         atomic.LoadUint64(&m.rejects),
		TapDrops:        atomic.LoadUint64(&m.tapDrops),
		TapClosed:       atomic.LoadUint64(&m.tapClosed),
		DeliverLatency:  m.deliverLatency.Snapshot(),
		HandleLatency:   m.handleLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
