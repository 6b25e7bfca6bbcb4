package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levysystems/agentarmy/agent"
	"github.com/levysystems/agentarmy/bus"
	"github.com/levysystems/agentarmy/capability"
)

func newTestCoordinator(t *testing.T, optFns ...func(o *Options)) (*Coordinator, *agent.Manager) {
	t.Helper()
	reg := capability.NewRegistry()
	b := bus.New()
	m := agent.NewManager(reg, b)
	t.Cleanup(m.Close)

	require.NoError(t, m.RegisterAgent(agent.Descriptor{ID: "calc"}, []capability.Descriptor{
		{
			Name:     "add",
			Category: "math",
			Params: []capability.Param{
				{Name: "a", Type: "number", Required: true},
				{Name: "b", Type: "number", Required: true},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return args["a"].(float64) + args["b"].(float64), nil
			},
		},
		{
			Name:     "fail",
			Category: "math",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("nope")
			},
		},
	}))

	return NewCoordinator(m, optFns...), m
}

func TestRunChainsStepResults(t *testing.T) {
	c, _ := newTestCoordinator(t)

	res, err := c.Run(context.Background(), "sum-chain", []Step{
		{Capability: "add", Params: map[string]any{"a": float64(1), "b": float64(2)}},
		{Capability: "add", Build: func(prior []StepResult) map[string]any {
			return map[string]any{"a": prior[0].Task.Result, "b": float64(10)}
		}},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, float64(3), res.Steps[0].Task.Result)
	assert.Equal(t, float64(13), res.Steps[1].Task.Result)
	assert.Empty(t, res.Failures())
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	c, _ := newTestCoordinator(t)

	res, err := c.Run(context.Background(), "abort", []Step{
		{Capability: "fail"},
		{Capability: "add", Params: map[string]any{"a": float64(1), "b": float64(1)}},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].Failed())
	assert.True(t, res.Steps[1].Skipped)
	assert.Nil(t, res.Steps[1].Task, "the skipped step never ran")
	assert.Len(t, res.Failures(), 1)
}

func TestRunContinueAndCollect(t *testing.T) {
	c, _ := newTestCoordinator(t, func(o *Options) { o.Policy = ContinueAndCollect })

	res, err := c.Run(context.Background(), "collect", []Step{
		{Capability: "fail"},
		{Capability: "add", Params: map[string]any{"a": float64(2), "b": float64(2)}},
		{Name: "fail-again", Capability: "fail"},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, float64(4), res.Steps[1].Task.Result, "steps after a failure still run")

	failures := res.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "fail", failures[0].Step)
	assert.Equal(t, "fail-again", failures[1].Step)
}

func TestRunPolicySelectedPerRun(t *testing.T) {
	c, _ := newTestCoordinator(t)

	steps := []Step{
		{Capability: "fail"},
		{Capability: "add", Params: map[string]any{"a": float64(1), "b": float64(1)}},
	}

	// Coordinator default aborts.
	res, err := c.Run(context.Background(), "default-abort", steps)
	require.NoError(t, err)
	assert.True(t, res.Steps[1].Skipped)

	// The same coordinator runs the same steps to completion when the run
	// opts into continue-and-collect.
	res, err = c.Run(context.Background(), "per-run-collect", steps, func(o *RunOptions) {
		o.Policy = ContinueAndCollect
	})
	require.NoError(t, err)
	assert.False(t, res.Steps[1].Skipped)
	assert.Equal(t, float64(2), res.Steps[1].Task.Result)
	assert.Len(t, res.Failures(), 1)
}

func TestRunResolutionFailureCountsAsStepFailure(t *testing.T) {
	c, _ := newTestCoordinator(t)

	res, err := c.Run(context.Background(), "missing", []Step{
		{Capability: "does_not_exist"},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	var notFound *capability.CapabilityNotFoundError
	assert.ErrorAs(t, res.Steps[0].Err, &notFound)
}

func TestRunRejectsMalformedWorkflows(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.Run(context.Background(), "empty", nil)
	assert.Error(t, err)

	_, err = c.Run(context.Background(), "blank-step", []Step{{}})
	assert.Error(t, err)
}

func TestRunConcurrent(t *testing.T) {
	c, _ := newTestCoordinator(t)

	results := c.RunConcurrent(context.Background(), map[string][]Step{
		"ok":  {{Capability: "add", Params: map[string]any{"a": float64(1), "b": float64(1)}}},
		"bad": {{Capability: "fail"}},
	})

	require.Len(t, results, 2)
	assert.True(t, results["ok"].Success)
	assert.False(t, results["bad"].Success)
}
