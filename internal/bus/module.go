package bus

import (
	"main/internal/schema"
)

// Message is the unit passed between modules: an immutable header plus a
// typed payload matching the topic's payload shape.
type Message struct {
	Header  schema.EventHeader
	Payload schema.Payload
}

// Publication declares one topic a module may publish to. Delayed marks a
// topic whose outputs always carry a timestamp strictly greater than the
// triggering input (modeled venue latency); delayed edges cannot close an
// in-tick cycle and are excluded from the topology cycle check.
type Publication struct {
	Topic   schema.Topic
	Delayed bool
}

// Declaration is a module's immutable topic contract, fixed at registration.
type Declaration struct {
	Subscribes []schema.Topic
	Publishes  []Publication
}

// Module is a unit of strategy or infrastructure logic. The engine owns all
// registered modules and invokes Handle one message at a time, never
// concurrently and never reentrant. Handle must not block and must confine
// side effects to the module's private state and the returned messages.
type Module interface {
	Name() string
	Declare() Declaration
	Handle(msg Message) ([]Message, error)
}
