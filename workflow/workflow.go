// Package workflow coordinates multi-step capability pipelines on top of the
// agent manager. A workflow is an ordered list of steps; each step delegates
// one capability and may derive its parameters from the results of earlier
// steps. Failure handling is policy-driven: abort on the first failed step
// or run every step and collect the failures.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/levysystems/agentarmy/agent"
	"github.com/levysystems/agentarmy/logging"
)

// Policy controls how a workflow reacts to a failed step.
type Policy int

const (
	// AbortOnFirstFailure stops the workflow at the first failed step and
	// marks the remaining steps skipped. This is the default.
	AbortOnFirstFailure Policy = iota
	// ContinueAndCollect runs every step regardless of failures and reports
	// them all in the result.
	ContinueAndCollect
)

// Step is one unit of a workflow.
type Step struct {
	// Name identifies the step in results; defaults to the capability name.
	Name string
	// Capability to delegate.
	Capability string
	// Params used when Build is nil.
	Params map[string]any
	// Build derives the step's parameters from the results of the steps
	// that already ran. When set it takes precedence over Params.
	Build func(prior []StepResult) map[string]any
}

// StepResult records the outcome of one step.
type StepResult struct {
	Step       string      `json:"step"`
	Capability string      `json:"capability"`
	Task       *agent.Task `json:"task,omitempty"`
	// Err is set for resolution failures (unknown capability, unavailable
	// agent); execution failures live on Task.Err.
	Err error `json:"-"`
	// Skipped marks steps never attempted because an earlier step aborted
	// the workflow.
	Skipped bool `json:"skipped,omitempty"`
}

// Failed reports whether the step counts as a failure. Skipped steps do not.
func (r StepResult) Failed() bool {
	if r.Skipped {
		return false
	}
	if r.Err != nil {
		return true
	}
	return r.Task != nil && r.Task.Failed()
}

// Result is the aggregate outcome of a workflow run.
type Result struct {
	Workflow   string       `json:"workflow"`
	Success    bool         `json:"success"`
	Steps      []StepResult `json:"steps"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Failures returns the results of all failed steps.
func (r *Result) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Options configures a Coordinator.
type Options struct {
	Logger logging.Logger
	// Policy is the default failure policy for runs that do not choose one.
	Policy Policy
}

// RunOptions configure a single workflow run.
type RunOptions struct {
	// Policy overrides the coordinator's default failure policy for this run.
	Policy Policy
}

// Coordinator runs workflows against an agent manager. It holds no per-run
// state and is safe for concurrent use.
type Coordinator struct {
	manager *agent.Manager
	logger  logging.Logger
	policy  Policy
}

// NewCoordinator constructs a Coordinator delegating through the given
// manager.
func NewCoordinator(m *agent.Manager, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Coordinator{manager: m, logger: opts.Logger, policy: opts.Policy}
}

// Run executes the steps in order. The failure policy is selected per run
// and defaults to the coordinator's. The returned error covers malformed
// workflows only (no steps, empty capability); step failures are reported
// through the Result.
func (c *Coordinator) Run(ctx context.Context, name string, steps []Step, optFns ...func(o *RunOptions)) (*Result, error) {
	runOpts := RunOptions{Policy: c.policy}
	for _, fn := range optFns {
		fn(&runOpts)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow %q has no steps", name)
	}
	for i, s := range steps {
		if s.Capability == "" {
			return nil, fmt.Errorf("workflow %q: step %d has no capability", name, i)
		}
	}

	res := &Result{
		Workflow:  name,
		Steps:     make([]StepResult, 0, len(steps)),
		StartedAt: time.Now().UTC(),
	}
	c.logger.Info("workflow.started", "workflow", name, "steps", len(steps))

	aborted := false
	for _, step := range steps {
		stepName := step.Name
		if stepName == "" {
			stepName = step.Capability
		}

		if aborted {
			res.Steps = append(res.Steps, StepResult{Step: stepName, Capability: step.Capability, Skipped: true})
			continue
		}

		params := step.Params
		if step.Build != nil {
			params = step.Build(res.Steps)
		}

		task, err := c.manager.DelegateTaskFrom(ctx, name, step.Capability, params)
		sr := StepResult{Step: stepName, Capability: step.Capability, Task: task, Err: err}
		res.Steps = append(res.Steps, sr)

		if sr.Failed() {
			c.logger.Warn("workflow.step_failed", "workflow", name, "step", stepName)
			if runOpts.Policy == AbortOnFirstFailure {
				aborted = true
			}
		}
	}

	res.FinishedAt = time.Now().UTC()
	res.Success = len(res.Failures()) == 0 && !aborted

	c.logger.Info("workflow.finished", "workflow", name, "success", res.Success, "duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds())

	return res, nil
}

// RunConcurrent runs independent workflows in parallel, one goroutine each,
// and returns their results keyed by workflow name. Run options apply to
// every workflow in the batch. Workflows must not depend on each other's
// steps.
func (c *Coordinator) RunConcurrent(ctx context.Context, workflows map[string][]Step, optFns ...func(o *RunOptions)) map[string]*Result {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	out := make(map[string]*Result, len(workflows))

	for name, steps := range workflows {
		wg.Add(1)
		go func(name string, steps []Step) {
			defer wg.Done()
			res, err := c.Run(ctx, name, steps, optFns...)
			if err != nil {
				res = &Result{Workflow: name, Success: false}
				c.logger.Error("workflow.invalid", "workflow", name, "error", err.Error())
			}
			mu.Lock()
			out[name] = res
			mu.Unlock()
		}(name, steps)
	}

	wg.Wait()
	return out
}
