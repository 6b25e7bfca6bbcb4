package agent

import (
	"sort"
	"sync"
)

// Status models the agent lifecycle state machine:
//
//	initializing -> idle <-> busy -> error (repeated failures)
//	any state    -> stopped (explicit deregistration, terminal)
type Status string

const (
	// StatusInitializing marks an agent whose capabilities are still being registered.
	StatusInitializing Status = "initializing"
	// StatusIdle marks an agent ready to accept work.
	StatusIdle Status = "idle"
	// StatusBusy marks an agent currently executing a task.
	StatusBusy Status = "busy"
	// StatusError marks an agent excluded from resolution after repeated
	// failures; it stays excluded until explicitly reset.
	StatusError Status = "error"
	// StatusStopped is the terminal state after deregistration.
	StatusStopped Status = "stopped"
)

// Metrics carries an agent's performance counters.
type Metrics struct {
	TasksCompleted     int `json:"tasks_completed"`
	TasksFailed        int `json:"tasks_failed"`
	AssistanceGiven    int `json:"assistance_given"`
	AssistanceReceived int `json:"assistance_received"`
}

// SuccessRate is the historical completion ratio used to rank assistance
// candidates. An agent with no history rates 0.5 rather than 0 so fresh
// agents are not ranked below ones that have only failed.
func (m Metrics) SuccessRate() float64 {
	total := m.TasksCompleted + m.TasksFailed
	if total == 0 {
		return 0.5
	}
	return float64(m.TasksCompleted) / float64(total)
}

// Descriptor identifies an agent at registration time.
type Descriptor struct {
	// Unique agent identifier
	ID string
	// Human-readable name for dashboards
	DisplayName string
	// Name of the capability other agents invoke when this agent is chosen
	// as an assistance helper. Optional; agents without one are never
	// selected as helpers.
	AssistCapability string
}

// Snapshot is a read-only view of an agent for dashboards and observability
// consumers.
type Snapshot struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Status       Status   `json:"status"`
	Capabilities []string `json:"capabilities"`
	Metrics      Metrics  `json:"metrics"`
}

// state is the manager-internal mutable record for one live agent. Status
// transitions and metric updates are serialized through its mutex.
type state struct {
	mu sync.Mutex

	desc    Descriptor
	status  Status
	metrics Metrics

	capabilities map[string]string // capability name -> category

	consecutiveFailures int
	lastFailedCategory  string
	lastFailedCap       string
}

func newState(desc Descriptor) *state {
	return &state{
		desc:         desc,
		status:       StatusInitializing,
		capabilities: make(map[string]string),
	}
}

func (s *state) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	caps := make([]string, 0, len(s.capabilities))
	for name := range s.capabilities {
		caps = append(caps, name)
	}
	sort.Strings(caps)

	return Snapshot{
		ID:           s.desc.ID,
		DisplayName:  s.desc.DisplayName,
		Status:       s.status,
		Capabilities: caps,
		Metrics:      s.metrics,
	}
}

func (s *state) currentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *state) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// hasCategory reports whether the agent declares at least one capability in
// the given category.
func (s *state) hasCategory(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.capabilities {
		if c == category {
			return true
		}
	}
	return false
}

// hasCapability reports whether the agent declares the named capability.
func (s *state) hasCapability(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.capabilities[name]
	return ok
}
