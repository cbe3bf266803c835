package engine

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

var (
	ErrCyclicTopology    = errors.New("cyclic module topology")
	ErrDuplicateModule   = errors.New("duplicate module name")
	ErrDuplicateTopic    = errors.New("duplicate topic in declaration")
	ErrUnknownTopic      = errors.New("unknown topic")
	ErrUndeclaredPublish = errors.New("publish on undeclared topic")
	ErrPayloadMismatch   = errors.New("payload type does not match topic")
	ErrOrderingViolation = errors.New("output timestamp precedes trigger")
	ErrAlreadyRunning    = errors.New("engine is already running")
)

// FailurePolicy controls how a failed handler invocation is treated.
type FailurePolicy uint8

const (
	// FailFast halts the run on the first handler failure.
	FailFast FailurePolicy = iota
	// BestEffort records the failure and continues with the next message.
	BestEffort
)

// Config holds engine construction parameters.
type Config struct {
	Policy  FailurePolicy
	Metrics *obs.Metrics
}

type moduleContext struct {
	module  bus.Module
	decl    bus.Declaration
	allowed map[schema.Topic]bus.Publication
}

// Engine owns the registered modules, resolves their delivery order, and
// drives time forward by delivering messages from the earliest-timestamped
// pending one. The delivery loop is single-threaded: handlers never run
// concurrently and each runs to completion before the next begins.
type Engine struct {
	cfg     Config
	modules []moduleContext
	names   map[string]struct{}
	topo    *topology
	queue   messageHeap
	seq     uint64
	tap     *bus.Queue
	running bool
}

// New creates an engine with no modules registered.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:   cfg,
		names: make(map[string]struct{}),
	}
}

// Register adds a module. The declaration is read once here and is
// immutable afterwards; it is the sole input to topology resolution.
func (e *Engine) Register(m bus.Module) error {
	if e.running {
		return ErrAlreadyRunning
	}
	name := m.Name()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrDuplicateModule)
	}
	if _, ok := e.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, name)
	}
	decl := m.Declare()
	if err := validateDeclaration(decl); err != nil {
		return fmt.Errorf("module %s: %w", name, err)
	}
	allowed := make(map[schema.Topic]bus.Publication, len(decl.Publishes))
	for _, pub := range decl.Publishes {
		allowed[pub.Topic] = pub
	}
	e.names[name] = struct{}{}
	e.modules = append(e.modules, moduleContext{module: m, decl: decl, allowed: allowed})
	return nil
}

// SetTap attaches a queue receiving a copy of every delivered message.
// Sinks drain it from their own goroutine; overflow drops are counted, the
// delivery loop never blocks on it.
func (e *Engine) SetTap(tap *bus.Queue) {
	e.tap = tap
}

// Run resolves the topology and delivers messages until the source is
// exhausted (backtest) or the context is cancelled (live stop signal).
// On cancellation, pending undelivered messages are flushed to the tap and
// no further deliveries happen.
func (e *Engine) Run(ctx context.Context, source Source) error {
	if e.running {
		return ErrAlreadyRunning
	}
	topo, err := resolveTopology(e.modules)
	if err != nil {
		return err
	}
	e.topo = topo
	e.running = true
	defer func() { e.running = false }()

	var (
		pending    bus.Message
		hasPending bool
		exhausted  bool
	)
	for {
		select {
		case <-ctx.Done():
			e.flush()
			return nil
		default:
		}

		if !hasPending && !exhausted {
			msg, err := source.Next(ctx)
			switch {
			case err == nil:
				if err := e.admit(&msg); err != nil {
					return err
				}
				pending, hasPending = msg, true
			case errors.Is(err, io.EOF):
				exhausted = true
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				e.flush()
				return nil
			default:
				return fmt.Errorf("source: %w", err)
			}
		}

		var msg bus.Message
		switch {
		case e.queue.Len() > 0 && (!hasPending || e.queue.peek().Header.TsEvent <= pending.Header.TsEvent):
			msg = heap.Pop(&e.queue).(bus.Message)
		case hasPending:
			msg, hasPending = pending, false
		default:
			// source exhausted and nothing queued
			return nil
		}

		if err := e.deliver(msg); err != nil {
			return err
		}
	}
}

// admit validates a source message and stamps it into the global sequence.
func (e *Engine) admit(msg *bus.Message) error {
	topic := msg.Header.Topic
	if !topic.IsAvailable() {
		return fmt.Errorf("%w: source topic %d", ErrUnknownTopic, topic)
	}
	if msg.Payload == nil || msg.Payload.PayloadType() != topic.PayloadType() {
		return fmt.Errorf("%w: source message on %s", ErrPayloadMismatch, topic)
	}
	e.seq++
	msg.Header.Seq = e.seq
	return nil
}

// deliver fans a message out to its subscribers in topological order and
// enqueues their validated outputs.
func (e *Engine) deliver(msg bus.Message) error {
	e.cfg.Metrics.ObserveDeliver(msg.Header)

	for _, idx := range e.topo.subscribers[msg.Header.Topic] {
		mctx := &e.modules[idx]
		started := time.Now()
		outs, err := mctx.module.Handle(msg)
		e.cfg.Metrics.ObserveHandle(time.Since(started))
		if err != nil {
			e.cfg.Metrics.IncHandlerFailure()
			logs.Errorf("handler failed, module: %s, topic: %s, ts: %d, err: %+v",
				mctx.module.Name(), msg.Header.Topic, msg.Header.TsEvent, err)
			if e.cfg.Policy == FailFast {
				return fmt.Errorf("module %s on %s at %d: %w",
					mctx.module.Name(), msg.Header.Topic, msg.Header.TsEvent, err)
			}
			continue
		}
		for _, out := range outs {
			if err := e.enqueue(idx, msg.Header.TsEvent, out); err != nil {
				return err
			}
		}
	}

	e.record(msg)
	return nil
}

// enqueue validates one handler output against the publisher's declaration
// and the no-lookahead invariant, then schedules it.
func (e *Engine) enqueue(producer int, triggerTs int64, out bus.Message) error {
	mctx := &e.modules[producer]
	name := mctx.module.Name()
	topic := out.Header.Topic

	pub, ok := mctx.allowed[topic]
	if !ok {
		return fmt.Errorf("%w: module %s topic %s", ErrUndeclaredPublish, name, topic)
	}
	if out.Payload == nil || out.Payload.PayloadType() != topic.PayloadType() {
		return fmt.Errorf("%w: module %s topic %s", ErrPayloadMismatch, name, topic)
	}
	if out.Header.TsEvent < triggerTs {
		return fmt.Errorf("%w: module %s topic %s output %d trigger %d",
			ErrOrderingViolation, name, topic, out.Header.TsEvent, triggerTs)
	}
	if pub.Delayed && out.Header.TsEvent == triggerTs {
		return fmt.Errorf("%w: module %s delayed topic %s output equals trigger %d",
			ErrOrderingViolation, name, topic, triggerTs)
	}

	e.seq++
	out.Header.Version = schema.SchemaVersion
	out.Header.Seq = e.seq
	out.Header.Source = uint16(producer + 1)
	heap.Push(&e.queue, out)
	return nil
}

// record copies a delivered message to the tap, if any.
func (e *Engine) record(msg bus.Message) {
	if e.tap == nil {
		return
	}
	switch err := e.tap.TryPublish(msg); {
	case err == nil:
	case errors.Is(err, bus.ErrQueueFull):
		e.cfg.Metrics.IncTapDrop()
	case errors.Is(err, bus.ErrQueueClosed):
		e.cfg.Metrics.IncTapClosed()
	}
}

// flush drains undelivered pending messages to the tap after a stop signal
// so the run trace stays complete, without issuing further deliveries.
func (e *Engine) flush() {
	var flushed int
	for e.queue.Len() > 0 {
		msg := heap.Pop(&e.queue).(bus.Message)
		e.record(msg)
		flushed++
	}
	if flushed > 0 {
		logs.Infof("engine stopped, flushed %d undelivered messages", flushed)
	}
}

// messageHeap orders pending messages by timestamp, then by sequence number
// so equal-timestamp messages deliver in publication order across runs.
type messageHeap []bus.Message

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].Header.TsEvent != h[j].Header.TsEvent {
		return h[i].Header.TsEvent < h[j].Header.TsEvent
	}
	return h[i].Header.Seq < h[j].Header.Seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) { *h = append(*h, x.(bus.Message)) }

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h messageHeap) peek() bus.Message { return h[0] }
