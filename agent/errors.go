package agent

import (
	"fmt"
	"time"
)

// AgentRegistrationError is returned when agent registration fails. The
// registration is all-or-nothing: any capability registered before the
// failure has been rolled back.
type AgentRegistrationError struct {
	AgentID string
	Cause   error
}

func (e *AgentRegistrationError) Error() string {
	return fmt.Sprintf("registration of agent %q failed: %v", e.AgentID, e.Cause)
}

// Unwrap exposes the underlying registry failure.
func (e *AgentRegistrationError) Unwrap() error { return e.Cause }

// AgentUnavailableError is returned when a capability resolves to an agent
// that cannot accept work (error status or stopped). The handler is not
// invoked.
type AgentUnavailableError struct {
	AgentID    string
	Capability string
	Status     Status
}

func (e *AgentUnavailableError) Error() string {
	return fmt.Sprintf("agent %q owning capability %q is unavailable (status %s)", e.AgentID, e.Capability, e.Status)
}

// TimeoutError classifies a delegation that exceeded the caller-supplied
// deadline. It is just another failure path: the task is marked failed and
// the error event is published exactly as for a handler-raised failure.
type TimeoutError struct {
	Capability string
	Elapsed    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("capability %q timed out after %s", e.Capability, e.Elapsed)
}
