package engine

import (
	"context"
	"errors"
	"testing"

	"main/internal/bus"
	"main/internal/obs"
	"main/internal/schema"
)

type stubModule struct {
	name   string
	decl   bus.Declaration
	handle func(bus.Message) ([]bus.Message, error)
}

func (m *stubModule) Name() string             { return m.name }
func (m *stubModule) Declare() bus.Declaration { return m.decl }

func (m *stubModule) Handle(msg bus.Message) ([]bus.Message, error) {
	if m.handle == nil {
		return nil, nil
	}
	return m.handle(msg)
}

func payloadFor(topic schema.Topic) schema.Payload {
	switch topic {
	case schema.TopicBookTicker:
		return schema.BookTicker{}
	case schema.TopicTrade:
		return schema.Trade{}
	case schema.TopicOrderIntent:
		return schema.OrderIntent{}
	case schema.TopicOrderCancel:
		return schema.OrderCancel{}
	case schema.TopicOrderResult:
		return schema.OrderResult{}
	case schema.TopicAccount:
		return schema.AccountUpdate{}
	default:
		return nil
	}
}

func msgOn(topic schema.Topic, ts int64) bus.Message {
	return bus.Message{
		Header:  schema.EventHeader{Topic: topic, TsEvent: ts},
		Payload: payloadFor(topic),
	}
}

type traceEntry struct {
	Topic schema.Topic
	Ts    int64
	Seq   uint64
}

func drainTap(t *testing.T, tap *bus.Queue) []traceEntry {
	t.Helper()
	tap.Close()
	var trace []traceEntry
	for {
		m, ok := tap.Receive(context.Background())
		if !ok {
			break
		}
		trace = append(trace, traceEntry{m.Header.Topic, m.Header.TsEvent, m.Header.Seq})
	}
	return trace
}

// echoIntent emits an order intent at the trigger timestamp for every trade.
func echoIntent() *stubModule {
	return &stubModule{
		name: "echo",
		decl: bus.Declaration{
			Subscribes: []schema.Topic{schema.TopicTrade},
			Publishes:  []bus.Publication{{Topic: schema.TopicOrderIntent}},
		},
		handle: func(m bus.Message) ([]bus.Message, error) {
			return []bus.Message{msgOn(schema.TopicOrderIntent, m.Header.TsEvent)}, nil
		},
	}
}

func runTrace(t *testing.T, modules []bus.Module, source Source) []traceEntry {
	t.Helper()
	eng := New(Config{Metrics: obs.NewMetrics()})
	for _, m := range modules {
		if err := eng.Register(m); err != nil {
			t.Fatalf("register %s: %v", m.Name(), err)
		}
	}
	tap := bus.NewQueue(1024)
	eng.SetTap(tap)
	if err := eng.Run(context.Background(), source); err != nil {
		t.Fatalf("run: %v", err)
	}
	return drainTap(t, tap)
}

func TestInternalMessageDeliversBeforeLaterSourceMessage(t *testing.T) {
	source := NewSliceSource([]bus.Message{
		msgOn(schema.TopicTrade, 100),
		msgOn(schema.TopicTrade, 200),
	})
	trace := runTrace(t, []bus.Module{echoIntent()}, source)

	want := []traceEntry{
		{schema.TopicTrade, 100, 1},
		{schema.TopicOrderIntent, 100, 2},
		{schema.TopicTrade, 200, 3},
		{schema.TopicOrderIntent, 200, 4},
	}
	if len(trace) != len(want) {
		t.Fatalf("trace %+v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("entry %d: got %+v, want %+v", i, trace[i], want[i])
		}
	}
}

func TestDeterministicAcrossRuns(t *testing.T) {
	build := func() ([]bus.Module, Source) {
		venue := &stubModule{
			name: "venue",
			decl: bus.Declaration{
				Subscribes: []schema.Topic{schema.TopicOrderIntent},
				Publishes:  []bus.Publication{{Topic: schema.TopicOrderResult, Delayed: true}},
			},
			handle: func(m bus.Message) ([]bus.Message, error) {
				return []bus.Message{msgOn(schema.TopicOrderResult, m.Header.TsEvent+5)}, nil
			},
		}
		source := NewSliceSource([]bus.Message{
			msgOn(schema.TopicTrade, 100),
			msgOn(schema.TopicTrade, 103),
			msgOn(schema.TopicTrade, 200),
		})
		return []bus.Module{echoIntent(), venue}, source
	}

	mods, src := build()
	first := runTrace(t, mods, src)
	mods, src = build()
	second := runTrace(t, mods, src)

	if len(first) != len(second) {
		t.Fatalf("trace lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEqualTimestampsDeliverInPublicationOrder(t *testing.T) {
	fanout := &stubModule{
		name: "fanout",
		decl: bus.Declaration{
			Subscribes: []schema.Topic{schema.TopicTrade},
			Publishes: []bus.Publication{
				{Topic: schema.TopicOrderIntent},
				{Topic: schema.TopicOrderCancel},
			},
		},
		handle: func(m bus.Message) ([]bus.Message, error) {
			return []bus.Message{
				msgOn(schema.TopicOrderIntent, m.Header.TsEvent),
				msgOn(schema.TopicOrderCancel, m.Header.TsEvent),
			}, nil
		},
	}
	source := NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)})
	trace := runTrace(t, []bus.Module{fanout}, source)

	if len(trace) != 3 {
		t.Fatalf("trace %+v", trace)
	}
	if trace[1].Topic != schema.TopicOrderIntent || trace[2].Topic != schema.TopicOrderCancel {
		t.Fatalf("publication order not preserved: %+v", trace)
	}
	if trace[1].Ts != 100 || trace[2].Ts != 100 {
		t.Fatalf("timestamps: %+v", trace)
	}
}

func TestRejectsOutputBeforeTrigger(t *testing.T) {
	rewind := echoIntent()
	rewind.handle = func(m bus.Message) ([]bus.Message, error) {
		return []bus.Message{msgOn(schema.TopicOrderIntent, m.Header.TsEvent-1)}, nil
	}

	eng := New(Config{})
	if err := eng.Register(rewind); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := eng.Run(context.Background(), NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)}))
	if !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("expected ordering violation, got %v", err)
	}
}

func TestRejectsDelayedOutputAtTriggerTime(t *testing.T) {
	venue := &stubModule{
		name: "venue",
		decl: bus.Declaration{
			Subscribes: []schema.Topic{schema.TopicTrade},
			Publishes:  []bus.Publication{{Topic: schema.TopicOrderResult, Delayed: true}},
		},
		handle: func(m bus.Message) ([]bus.Message, error) {
			return []bus.Message{msgOn(schema.TopicOrderResult, m.Header.TsEvent)}, nil
		},
	}
	eng := New(Config{})
	if err := eng.Register(venue); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := eng.Run(context.Background(), NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)}))
	if !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("expected ordering violation, got %v", err)
	}
}

func TestRejectsUndeclaredPublish(t *testing.T) {
	rogue := echoIntent()
	rogue.handle = func(m bus.Message) ([]bus.Message, error) {
		return []bus.Message{msgOn(schema.TopicOrderResult, m.Header.TsEvent)}, nil
	}
	eng := New(Config{})
	if err := eng.Register(rogue); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := eng.Run(context.Background(), NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)}))
	if !errors.Is(err, ErrUndeclaredPublish) {
		t.Fatalf("expected undeclared publish, got %v", err)
	}
}

func TestRejectsPayloadMismatch(t *testing.T) {
	liar := echoIntent()
	liar.handle = func(m bus.Message) ([]bus.Message, error) {
		out := msgOn(schema.TopicOrderIntent, m.Header.TsEvent)
		out.Payload = schema.Trade{}
		return []bus.Message{out}, nil
	}
	eng := New(Config{})
	if err := eng.Register(liar); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := eng.Run(context.Background(), NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)}))
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected payload mismatch, got %v", err)
	}
}

func module(name string, sub schema.Topic, pub schema.Topic, delayed bool) *stubModule {
	return &stubModule{
		name: name,
		decl: bus.Declaration{
			Subscribes: []schema.Topic{sub},
			Publishes:  []bus.Publication{{Topic: pub, Delayed: delayed}},
		},
	}
}

func TestRejectsImmediateCycle(t *testing.T) {
	eng := New(Config{})
	for _, m := range []bus.Module{
		module("a", schema.TopicOrderResult, schema.TopicOrderIntent, false),
		module("b", schema.TopicOrderIntent, schema.TopicOrderResult, false),
	} {
		if err := eng.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	err := eng.Run(context.Background(), NewSliceSource(nil))
	if !errors.Is(err, ErrCyclicTopology) {
		t.Fatalf("expected cyclic topology, got %v", err)
	}
}

func TestRejectsLongImmediateCycle(t *testing.T) {
	eng := New(Config{})
	for _, m := range []bus.Module{
		module("a", schema.TopicOrderResult, schema.TopicOrderIntent, false),
		module("b", schema.TopicOrderIntent, schema.TopicOrderCancel, false),
		module("c", schema.TopicOrderCancel, schema.TopicAccount, false),
		module("d", schema.TopicAccount, schema.TopicOrderResult, false),
	} {
		if err := eng.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	err := eng.Run(context.Background(), NewSliceSource(nil))
	if !errors.Is(err, ErrCyclicTopology) {
		t.Fatalf("expected cyclic topology, got %v", err)
	}
}

func TestDelayedEdgeBreaksCycle(t *testing.T) {
	eng := New(Config{})
	for _, m := range []bus.Module{
		module("strategy", schema.TopicOrderResult, schema.TopicOrderIntent, false),
		module("venue", schema.TopicOrderIntent, schema.TopicOrderResult, true),
	} {
		if err := eng.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if err := eng.Run(context.Background(), NewSliceSource(nil)); err != nil {
		t.Fatalf("expected resolvable topology, got %v", err)
	}
}

func TestDuplicateModuleName(t *testing.T) {
	eng := New(Config{})
	if err := eng.Register(echoIntent()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := eng.Register(echoIntent()); !errors.Is(err, ErrDuplicateModule) {
		t.Fatalf("expected duplicate module, got %v", err)
	}
}

func TestBestEffortContinuesAfterHandlerError(t *testing.T) {
	metrics := obs.NewMetrics()
	failing := &stubModule{
		name: "failing",
		decl: bus.Declaration{Subscribes: []schema.Topic{schema.TopicTrade}},
		handle: func(m bus.Message) ([]bus.Message, error) {
			return nil, errors.New("boom")
		},
	}
	eng := New(Config{Policy: BestEffort, Metrics: metrics})
	if err := eng.Register(failing); err != nil {
		t.Fatalf("register: %v", err)
	}
	source := NewSliceSource([]bus.Message{
		msgOn(schema.TopicTrade, 100),
		msgOn(schema.TopicTrade, 200),
	})
	if err := eng.Run(context.Background(), source); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := metrics.Snapshot().HandlerFailures; got != 2 {
		t.Fatalf("handler failures %d", got)
	}
}

func TestFailFastStopsOnHandlerError(t *testing.T) {
	failing := &stubModule{
		name: "failing",
		decl: bus.Declaration{Subscribes: []schema.Topic{schema.TopicTrade}},
		handle: func(m bus.Message) ([]bus.Message, error) {
			return nil, errors.New("boom")
		},
	}
	eng := New(Config{Policy: FailFast})
	if err := eng.Register(failing); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := eng.Run(context.Background(), NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)})); err == nil {
		t.Fatal("expected handler error")
	}
}

func TestCancelFlushesPendingToTap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	venue := &stubModule{
		name: "venue",
		decl: bus.Declaration{
			Subscribes: []schema.Topic{schema.TopicTrade},
			Publishes:  []bus.Publication{{Topic: schema.TopicOrderResult, Delayed: true}},
		},
		handle: func(m bus.Message) ([]bus.Message, error) {
			cancel()
			return []bus.Message{msgOn(schema.TopicOrderResult, m.Header.TsEvent+10)}, nil
		},
	}
	eng := New(Config{})
	if err := eng.Register(venue); err != nil {
		t.Fatalf("register: %v", err)
	}
	tap := bus.NewQueue(16)
	eng.SetTap(tap)
	if err := eng.Run(ctx, NewSliceSource([]bus.Message{msgOn(schema.TopicTrade, 100)})); err != nil {
		t.Fatalf("run: %v", err)
	}

	trace := drainTap(t, tap)
	if len(trace) != 2 {
		t.Fatalf("trace %+v", trace)
	}
	if trace[0].Topic != schema.TopicTrade || trace[1].Topic != schema.TopicOrderResult {
		t.Fatalf("trace %+v", trace)
	}
}

func TestSourceRejectsUnknownTopic(t *testing.T) {
	eng := New(Config{})
	if err := eng.Register(echoIntent()); err != nil {
		t.Fatalf("register: %v", err)
	}
	bad := bus.Message{Header: schema.EventHeader{Topic: 99, TsEvent: 1}, Payload: schema.Trade{}}
	if err := eng.Run(context.Background(), NewSliceSource([]bus.Message{bad})); !errors.Is(err, ErrUnknownTopic) {
		t.Fatalf("expected unknown topic, got %v", err)
	}
}

func TestQueueSourceClampsTimestamps(t *testing.T) {
	queue := bus.NewQueue(4)
	for _, ts := range []int64{100, 90, 110} {
		if err := queue.TryPublish(msgOn(schema.TopicTrade, ts)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	queue.Close()

	src := NewQueueSource(queue)
	var got []int64
	for i := 0; i < 3; i++ {
		m, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		got = append(got, m.Header.TsEvent)
	}
	want := []int64{100, 100, 110}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("timestamps %v, want %v", got, want)
		}
	}
}
