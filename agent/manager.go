package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levysystems/agentarmy/bus"
	"github.com/levysystems/agentarmy/capability"
	"github.com/levysystems/agentarmy/logging"
)

// DefaultFailureThreshold is the number of consecutive task failures after
// which an agent transitions to error status and is excluded from
// resolution until reset.
const DefaultFailureThreshold = 3

// MatchPolicy selects how assistance candidates are matched against the
// requesting agent's failed task.
type MatchPolicy int

const (
	// MatchByCategory selects helpers declaring at least one capability in
	// the same category as the failed task. This is the default.
	MatchByCategory MatchPolicy = iota
	// MatchByCapability selects helpers declaring the exact capability that
	// failed.
	MatchByCapability
)

// Options configures a Manager instance.
type Options struct {
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
	// FailureThreshold defaults to DefaultFailureThreshold when zero or
	// negative.
	FailureThreshold int
	// Match defaults to MatchByCategory.
	Match MatchPolicy
}

// Manager owns the set of live agents. It resolves which agent should run a
// requested capability, delegates tasks, drives agent status transitions in
// response to delegation outcomes and routes assistance requests to ranked
// candidate helpers. All methods are safe for concurrent use.
type Manager struct {
	registry  *capability.Registry
	bus       *bus.Bus
	logger    logging.Logger
	threshold int
	match     MatchPolicy

	mu     sync.RWMutex
	agents map[string]*state

	errorSubID string
}

// NewManager constructs a Manager bound to a capability registry and a bus.
func NewManager(reg *capability.Registry, b *bus.Bus, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}, FailureThreshold: DefaultFailureThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}

	m := &Manager{
		registry:  reg,
		bus:       b,
		logger:    opts.Logger,
		threshold: opts.FailureThreshold,
		match:     opts.Match,
		agents:    make(map[string]*state),
	}

	// The manager observes failures through the bus like any other
	// subscriber rather than through a private side channel.
	m.errorSubID = b.Subscribe(bus.EventError, func(ev bus.Event) error {
		m.logger.Debug("manager.observed_error", "agent_id", ev.AgentID, "seq", ev.Seq)
		return nil
	})

	return m
}

// Close cancels the manager's own bus subscriptions. Registered agents are
// left untouched; deregister them individually if needed.
func (m *Manager) Close() {
	m.bus.Unsubscribe(m.errorSubID)
}

// RegisterAgent registers an agent and its capability set. Registration is
// all-or-nothing: if any capability name collides with an existing one,
// nothing is registered and an *AgentRegistrationError is returned. The
// OwnerID of every capability descriptor is overwritten with the agent id.
func (m *Manager) RegisterAgent(desc Descriptor, caps []capability.Descriptor) error {
	if desc.ID == "" {
		return &AgentRegistrationError{AgentID: desc.ID, Cause: fmt.Errorf("agent id must not be empty")}
	}

	m.mu.Lock()
	if _, exists := m.agents[desc.ID]; exists {
		m.mu.Unlock()
		return &AgentRegistrationError{AgentID: desc.ID, Cause: fmt.Errorf("agent %q is already registered", desc.ID)}
	}
	st := newState(desc)
	m.agents[desc.ID] = st
	m.mu.Unlock()

	for _, c := range caps {
		c.OwnerID = desc.ID
		if err := m.registry.Register(c); err != nil {
			// Roll back everything registered so far and forget the agent.
			m.registry.UnregisterAll(desc.ID)
			m.mu.Lock()
			delete(m.agents, desc.ID)
			m.mu.Unlock()
			return &AgentRegistrationError{AgentID: desc.ID, Cause: err}
		}
		st.mu.Lock()
		st.capabilities[c.Name] = c.Category
		st.mu.Unlock()
	}

	st.setStatus(StatusIdle)

	m.bus.Publish(bus.NewEvent(desc.ID, bus.EventAction, map[string]any{
		"action":       "agent_registered",
		"display_name": desc.DisplayName,
		"capabilities": len(caps),
	}))
	m.logger.Info("manager.agent_registered", "agent_id", desc.ID, "capabilities", len(caps))

	return nil
}

// DeregisterAgent shuts an agent down: its capabilities are removed from the
// registry, its status becomes stopped and it is forgotten by the manager.
func (m *Manager) DeregisterAgent(id string) error {
	m.mu.Lock()
	st, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("agent %q is not registered", id)
	}
	delete(m.agents, id)
	m.mu.Unlock()

	st.setStatus(StatusStopped)
	m.registry.UnregisterAll(id)

	m.bus.Publish(bus.NewEvent(id, bus.EventAction, map[string]any{
		"action": "agent_deregistered",
	}))
	m.logger.Info("manager.agent_deregistered", "agent_id", id)

	return nil
}

// ResetAgent returns an agent in error status to idle and clears its
// consecutive failure count. It is the manual escape hatch after the
// failure threshold tripped.
func (m *Manager) ResetAgent(id string) error {
	st, ok := m.agent(id)
	if !ok {
		return fmt.Errorf("agent %q is not registered", id)
	}

	st.mu.Lock()
	st.status = StatusIdle
	st.consecutiveFailures = 0
	st.mu.Unlock()

	m.logger.Info("manager.agent_reset", "agent_id", id)
	return nil
}

// Agents returns snapshots of all live agents, ordered by id.
func (m *Manager) Agents() []Snapshot {
	m.mu.RLock()
	states := make([]*state, 0, len(m.agents))
	for _, st := range m.agents {
		states = append(states, st)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(states))
	for _, st := range states {
		out = append(out, st.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Agent returns the snapshot of one agent.
func (m *Manager) Agent(id string) (Snapshot, bool) {
	st, ok := m.agent(id)
	if !ok {
		return Snapshot{}, false
	}
	return st.snapshot(), true
}

func (m *Manager) agent(id string) (*state, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.agents[id]
	return st, ok
}

// DelegateTask resolves the agent owning capabilityName and executes the
// capability on its behalf. Resolution failures (unknown capability, owning
// agent unavailable) are returned as errors; execution failures are captured
// into a failed Task and surfaced as data, never re-thrown.
//
// Parameter validation failures return a failed Task but do not advance the
// agent's TasksFailed counter or its consecutive-failure threshold: the
// handler never ran, so the fault is the caller's, not the agent's.
//
// The result or error event for the task is published on the bus before
// DelegateTask returns, so callers never observe a bus-driven side effect
// ordered after the return.
func (m *Manager) DelegateTask(ctx context.Context, capabilityName string, params map[string]any) (*Task, error) {
	return m.DelegateTaskFrom(ctx, "", capabilityName, params)
}

// DelegateTaskFrom is DelegateTask with an explicit requesting context
// (workflow name, request id) recorded on the task and its events.
func (m *Manager) DelegateTaskFrom(ctx context.Context, requestingContext, capabilityName string, params map[string]any) (*Task, error) {
	desc, err := m.registry.Lookup(capabilityName)
	if err != nil {
		return nil, err
	}

	st, ok := m.agent(desc.OwnerID)
	if !ok {
		return nil, &AgentUnavailableError{AgentID: desc.OwnerID, Capability: capabilityName, Status: StatusStopped}
	}
	if status := st.currentStatus(); status == StatusError || status == StatusStopped {
		return nil, &AgentUnavailableError{AgentID: desc.OwnerID, Capability: capabilityName, Status: status}
	}

	task := newTask(capabilityName, params, requestingContext)
	task.AgentID = desc.OwnerID
	task.Status = TaskRunning
	task.StartedAt = time.Now().UTC()

	st.setStatus(StatusBusy)

	m.bus.Publish(bus.NewEvent(desc.OwnerID, bus.EventAction, map[string]any{
		"action":     "task_started",
		"task_id":    task.ID,
		"capability": capabilityName,
		"context":    requestingContext,
	}))

	result, execErr := m.execute(ctx, capabilityName, params, task.StartedAt)

	task.FinishedAt = time.Now().UTC()

	if execErr == nil {
		task.Status = TaskCompleted
		task.Result = result

		st.mu.Lock()
		st.status = StatusIdle
		st.metrics.TasksCompleted++
		st.consecutiveFailures = 0
		st.mu.Unlock()

		m.bus.Publish(bus.NewEvent(desc.OwnerID, bus.EventResult, map[string]any{
			"task_id":    task.ID,
			"capability": capabilityName,
			"context":    requestingContext,
		}))
		m.logger.Info("manager.delegation_completed", "agent_id", desc.OwnerID, "capability", capabilityName, "duration_ms", task.Duration().Milliseconds())

		return task, nil
	}

	task.Status = TaskFailed
	task.Err = execErr

	tripped := m.recordFailure(st, desc.Category, capabilityName, execErr)

	payload := map[string]any{
		"task_id":    task.ID,
		"capability": capabilityName,
		"context":    requestingContext,
		"error":      execErr.Error(),
	}
	if tripped {
		payload["agent_status"] = string(StatusError)
	}
	m.bus.Publish(bus.NewEvent(desc.OwnerID, bus.EventError, payload))
	m.logger.Error("manager.delegation_failed", "agent_id", desc.OwnerID, "capability", capabilityName, "error", execErr.Error())

	return task, nil
}

// execute runs the capability under the caller-supplied context. When the
// context expires before the handler returns, the failure is classified as
// a *TimeoutError; the handler goroutine is expected to honor ctx and wind
// down on its own.
func (m *Manager) execute(ctx context.Context, name string, params map[string]any, start time.Time) (any, error) {
	type outcome struct {
		result any
		err    error
	}

	ch := make(chan outcome, 1)
	go func() {
		result, err := m.registry.Execute(ctx, name, params)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		return nil, &TimeoutError{Capability: name, Elapsed: time.Since(start)}
	}
}

// recordFailure updates failure bookkeeping for a failed delegation and
// reports whether the consecutive-failure threshold tripped the agent into
// error status. Parameter validation failures do not count: the handler
// never ran, so the agent itself did not fail.
func (m *Manager) recordFailure(st *state, category, capabilityName string, execErr error) bool {
	var invalid *capability.InvalidParametersError
	if errors.As(execErr, &invalid) {
		st.setStatus(StatusIdle)
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.metrics.TasksFailed++
	st.consecutiveFailures++
	st.lastFailedCategory = category
	st.lastFailedCap = capabilityName

	if st.consecutiveFailures >= m.threshold {
		st.status = StatusError
		return true
	}
	st.status = StatusIdle
	return false
}
