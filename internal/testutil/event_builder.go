package testutil

import (
	"time"

	"github.com/levysystems/agentarmy/bus"
)

// EventBuilder provides a fluent helper for constructing bus events in tests.
// Example:
//
//	ev := NewEventBuilder().Agent("worker").Error().Payload("error", "boom").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	agentID   string
	eventType bus.EventType
	payload   map[string]any
	seq       uint64
	timestamp time.Time
}

// NewEventBuilder creates a builder with default agent "agent" and type
// action.
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{agentID: "agent", eventType: bus.EventAction}
}

// Agent sets the publishing agent id (chainable).
func (b *EventBuilder) Agent(id string) *EventBuilder { b.agentID = id; return b }

// Type sets the event type (chainable).
func (b *EventBuilder) Type(t bus.EventType) *EventBuilder { b.eventType = t; return b }

// Action sets the event type to action (chainable).
func (b *EventBuilder) Action() *EventBuilder { return b.Type(bus.EventAction) }

// Result sets the event type to result (chainable).
func (b *EventBuilder) Result() *EventBuilder { return b.Type(bus.EventResult) }

// Error sets the event type to error (chainable).
func (b *EventBuilder) Error() *EventBuilder { return b.Type(bus.EventError) }

// Payload sets one payload key (chainable).
func (b *EventBuilder) Payload(key string, value any) *EventBuilder {
	if b.payload == nil {
		b.payload = make(map[string]any)
	}
	b.payload[key] = value
	return b
}

// Seq stamps an explicit sequence number, bypassing the bus (chainable). Use
// in tests that need stamped events without publishing.
func (b *EventBuilder) Seq(seq uint64) *EventBuilder { b.seq = seq; return b }

// At stamps an explicit timestamp (chainable).
func (b *EventBuilder) At(t time.Time) *EventBuilder { b.timestamp = t; return b }

// Build constructs the bus.Event value.
func (b *EventBuilder) Build() bus.Event {
	ev := bus.NewEvent(b.agentID, b.eventType, b.payload)
	ev.Seq = b.seq
	ev.Timestamp = b.timestamp
	return ev
}
