// Package agentarmy provides a high-level façade over the collaboration
// framework: the capability registry, the communication bus, the experience
// replay buffer, the agent manager and the workflow coordinator. Most
// applications interact with this package by:
//  1. Creating an Army via New() (optionally supplying a config.Config)
//  2. Registering agents with their capability sets
//  3. Executing capabilities (Execute), running workflows (RunWorkflow) and
//     requesting assistance for struggling agents
//
// The façade wires the replay buffer and the optional SQLite archive as bus
// subscribers so every published event is mirrored automatically. All
// defaults are safe for local development and testing.
package agentarmy

import (
	"context"
	"time"

	"github.com/levysystems/agentarmy/agent"
	"github.com/levysystems/agentarmy/archive"
	"github.com/levysystems/agentarmy/bus"
	"github.com/levysystems/agentarmy/capability"
	"github.com/levysystems/agentarmy/config"
	"github.com/levysystems/agentarmy/logging"
	"github.com/levysystems/agentarmy/replay"
	"github.com/levysystems/agentarmy/workflow"
)

// Options configures the Army instance.
type Options struct {
	// Config supplies tuning for the bus, replay buffer, manager and
	// archive. Defaults to config.Default().
	Config *config.Config
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Result is the uniform outcome of a single capability execution through the
// façade, shaped for dashboards and API responses.
type Result struct {
	Success  bool          `json:"success"`
	TaskID   string        `json:"task_id,omitempty"`
	AgentID  string        `json:"agent_id,omitempty"`
	Value    any           `json:"value,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Dashboard is a read-only aggregate view of the running system.
type Dashboard struct {
	Agents       []agent.Snapshot        `json:"agents"`
	Capabilities []capability.Descriptor `json:"capabilities"`
	Experience   replay.Stats            `json:"experience"`
	RecentEvents []bus.Event             `json:"recent_events"`
}

// Army is the high-level façade aggregating the framework's services.
type Army struct {
	cfg    *config.Config
	logger logging.Logger

	registry    *capability.Registry
	bus         *bus.Bus
	buffer      *replay.Buffer
	manager     *agent.Manager
	coordinator *workflow.Coordinator
	store       *archive.Store

	replaySubID  string
	archiveSubID string
}

// New creates an Army with optional overrides. The replay buffer always
// mirrors bus traffic; the SQLite archive is wired only when enabled in the
// config.
func New(optFns ...func(o *Options)) (*Army, error) {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	cfg := opts.Config

	registry := capability.NewRegistry(func(o *capability.Options) {
		o.Logger = opts.Logger
	})
	eventBus := bus.New(func(o *bus.Options) {
		o.HistorySize = cfg.Bus.HistorySize
		o.Logger = opts.Logger
	})
	buffer := replay.NewBuffer(cfg.Replay.Capacity)

	match := agent.MatchByCategory
	if cfg.Agents.AssistMatch == "capability" {
		match = agent.MatchByCapability
	}
	manager := agent.NewManager(registry, eventBus, func(o *agent.Options) {
		o.Logger = opts.Logger
		o.FailureThreshold = cfg.Agents.FailureThreshold
		o.Match = match
	})
	coordinator := workflow.NewCoordinator(manager, func(o *workflow.Options) {
		o.Logger = opts.Logger
	})

	a := &Army{
		cfg:         cfg,
		logger:      opts.Logger,
		registry:    registry,
		bus:         eventBus,
		buffer:      buffer,
		manager:     manager,
		coordinator: coordinator,
	}
	a.replaySubID = eventBus.SubscribeAll(buffer.Subscriber())

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.Path, func(o *archive.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			manager.Close()
			return nil, err
		}
		a.store = store
		a.archiveSubID = eventBus.SubscribeAll(store.Subscriber())
	}

	return a, nil
}

// Close detaches the façade's bus subscriptions and closes the archive.
func (a *Army) Close() error {
	a.bus.Unsubscribe(a.replaySubID)
	if a.archiveSubID != "" {
		a.bus.Unsubscribe(a.archiveSubID)
	}
	a.manager.Close()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Registry exposes the capability registry.
func (a *Army) Registry() *capability.Registry { return a.registry }

// Bus exposes the communication bus.
func (a *Army) Bus() *bus.Bus { return a.bus }

// Replay exposes the experience replay buffer.
func (a *Army) Replay() *replay.Buffer { return a.buffer }

// Manager exposes the agent manager.
func (a *Army) Manager() *agent.Manager { return a.manager }

// Workflows exposes the workflow coordinator.
func (a *Army) Workflows() *workflow.Coordinator { return a.coordinator }

// Archive exposes the SQLite event archive, or nil when archival is
// disabled.
func (a *Army) Archive() *archive.Store { return a.store }

// RegisterAgent registers an agent and its capabilities with the manager.
func (a *Army) RegisterAgent(desc agent.Descriptor, caps []capability.Descriptor) error {
	return a.manager.RegisterAgent(desc, caps)
}

// Execute delegates one capability under the configured default timeout and
// folds the task outcome into a uniform Result. Resolution failures (unknown
// capability, unavailable agent) are returned as errors.
func (a *Army) Execute(ctx context.Context, capabilityName string, params map[string]any) (Result, error) {
	if timeout := a.cfg.Agents.DefaultTimeout.Std(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	task, err := a.manager.DelegateTask(ctx, capabilityName, params)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Success:  !task.Failed(),
		TaskID:   task.ID,
		AgentID:  task.AgentID,
		Value:    task.Result,
		Duration: task.Duration(),
	}
	if task.Err != nil {
		res.Error = task.Err.Error()
	}
	return res, nil
}

// RequestAssistance routes a help request for the given agent.
func (a *Army) RequestAssistance(ctx context.Context, agentID, reason string, priority float64) (*agent.AssistanceRequest, error) {
	return a.manager.RequestAssistance(ctx, agentID, reason, priority)
}

// RunWorkflow executes a named workflow through the coordinator. The failure
// policy is selectable per run:
//
//	army.RunWorkflow(ctx, "audit", steps, func(o *workflow.RunOptions) {
//		o.Policy = workflow.ContinueAndCollect
//	})
func (a *Army) RunWorkflow(ctx context.Context, name string, steps []workflow.Step, optFns ...func(o *workflow.RunOptions)) (*workflow.Result, error) {
	return a.coordinator.Run(ctx, name, steps, optFns...)
}

// Dashboard assembles the read-only aggregate view: agent fleet, registered
// capabilities, experience statistics and the most recent events.
func (a *Army) Dashboard(recentEvents int) Dashboard {
	return Dashboard{
		Agents:       a.manager.Agents(),
		Capabilities: a.registry.List(),
		Experience:   a.buffer.Stats(),
		RecentEvents: a.bus.History(bus.Filter{Limit: recentEvents}),
	}
}
