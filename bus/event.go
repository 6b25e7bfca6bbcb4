package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies events exchanged over the bus.
type EventType string

const (
	// EventAction records an agent performing a unit of work.
	EventAction EventType = "action"
	// EventResult records a successful task outcome.
	EventResult EventType = "result"
	// EventError records a failed task outcome.
	EventError EventType = "error"
	// EventAssistanceRequest records an agent asking for help.
	EventAssistanceRequest EventType = "assistance_request"
	// EventAssistanceResponse records a helper's answer to an assistance request.
	EventAssistanceResponse EventType = "assistance_response"
)

// Event is the unit of communication between agents and observers. After
// publication it should be treated as immutable. Seq and Timestamp are
// assigned by the bus at publish time, not by the caller, which guarantees a
// total order over retained history.
type Event struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event authored by the given agent. Seq and Timestamp
// remain zero until the event is published.
func NewEvent(agentID string, eventType EventType, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		AgentID: agentID,
		Type:    eventType,
		Payload: payload,
	}
}
