package chaos

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"main/internal/bus"
)

// Config controls fault injection on an input stream. A fixed Seed makes an
// injected fault sequence reproducible across runs.
type Config struct {
	Seed          int64         `json:"seed"`
	DropRate      float64       `json:"dropRate"`
	DuplicateRate float64       `json:"duplicateRate"`
	ReorderWindow int           `json:"reorderWindow"`
	MaxDelay      time.Duration `json:"maxDelay"`
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.ReorderWindow < 0 {
		return fmt.Errorf("reorderWindow must be >= 0")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Engine applies seeded chaos rules to messages: drops, duplicates,
// receive-time delay and bounded reordering.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	pending []bus.Message
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReorderWindow <= 0 {
		cfg.ReorderWindow = 1
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Process applies chaos to a single message and returns any outputs.
func (e *Engine) Process(m bus.Message) []bus.Message {
	if e == nil {
		return []bus.Message{m}
	}
	if e.shouldDrop() {
		return nil
	}
	m = e.applyDelay(m)
	if e.cfg.ReorderWindow <= 1 {
		return e.applyDuplicate(m)
	}
	e.pending = append(e.pending, m)
	if len(e.pending) < e.cfg.ReorderWindow {
		return nil
	}
	idx := e.rng.Intn(len(e.pending))
	out := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	return e.applyDuplicate(out)
}

// Flush returns any buffered messages after the stream ends.
func (e *Engine) Flush() []bus.Message {
	if e == nil || len(e.pending) == 0 {
		return nil
	}
	out := make([]bus.Message, 0, len(e.pending))
	for len(e.pending) > 0 {
		idx := e.rng.Intn(len(e.pending))
		m := e.pending[idx]
		e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
		out = append(out, e.applyDuplicate(m)...)
	}
	return out
}

func (e *Engine) shouldDrop() bool {
	return e.cfg.DropRate > 0 && e.rng.Float64() < e.cfg.DropRate
}

func (e *Engine) applyDuplicate(m bus.Message) []bus.Message {
	out := []bus.Message{m}
	if e.cfg.DuplicateRate > 0 && e.rng.Float64() < e.cfg.DuplicateRate {
		out = append(out, m)
	}
	return out
}

// applyDelay pushes the receive timestamp forward, simulating a slow feed
// hop. The event timestamp stays untouched so delivery order is preserved.
func (e *Engine) applyDelay(m bus.Message) bus.Message {
	if e.cfg.MaxDelay <= 0 {
		return m
	}
	maxDelay := e.cfg.MaxDelay.Nanoseconds()
	if maxDelay <= 0 {
		return m
	}
	delay := time.Duration(e.rng.Int63n(maxDelay + 1))
	if delay == 0 {
		return m
	}
	if m.Header.TsRecv > 0 {
		m.Header.TsRecv += int64(delay)
		return m
	}
	if m.Header.TsEvent > 0 {
		m.Header.TsRecv = m.Header.TsEvent + int64(delay)
	}
	return m
}

// source is any upstream message sequence. Matches the engine package's
// Source contract without importing it.
type source interface {
	Next(ctx context.Context) (bus.Message, error)
}

// Source decorates an input stream with fault injection, for exercising
// duplicate and gap handling in the modules downstream.
type Source struct {
	inner source
	eng   *Engine
	buf   []bus.Message
	done  bool
}

// NewSource wraps an input stream with a chaos engine.
func NewSource(inner source, cfg Config) (*Source, error) {
	eng, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Source{inner: inner, eng: eng}, nil
}

// Next returns the next message after fault injection. Drops pull more
// input; buffered reorder survivors drain after the inner stream ends.
func (s *Source) Next(ctx context.Context) (bus.Message, error) {
	for len(s.buf) == 0 && !s.done {
		m, err := s.inner.Next(ctx)
		if err == io.EOF {
			s.done = true
			s.buf = s.eng.Flush()
			break
		}
		if err != nil {
			return bus.Message{}, err
		}
		s.buf = s.eng.Process(m)
	}
	if len(s.buf) == 0 {
		return bus.Message{}, io.EOF
	}
	m := s.buf[0]
	s.buf = s.buf[1:]
	return m, nil
}
