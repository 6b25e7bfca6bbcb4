package agent

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus tracks a delegated task through its lifecycle:
// pending -> running -> completed | failed.
type TaskStatus string

const (
	// TaskPending marks a task created but not yet dispatched.
	TaskPending TaskStatus = "pending"
	// TaskRunning marks a task whose handler is executing.
	TaskRunning TaskStatus = "running"
	// TaskCompleted marks a successfully finished task.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed marks a task that finished with a classified error.
	TaskFailed TaskStatus = "failed"
)

// Task records one delegation call. It is not persisted beyond the call;
// callers that need history keep the returned record themselves.
type Task struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params,omitempty"`
	// Free-form requesting context (workflow name, HTTP request id, ...)
	Context    string     `json:"context,omitempty"`
	AgentID    string     `json:"agent_id"`
	Status     TaskStatus `json:"status"`
	Result     any        `json:"result,omitempty"`
	Err        error      `json:"-"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

func newTask(capabilityName string, params map[string]any, requestingContext string) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Capability: capabilityName,
		Params:     params,
		Context:    requestingContext,
		Status:     TaskPending,
	}
}

// Failed reports whether the task finished with an error.
func (t *Task) Failed() bool { return t.Status == TaskFailed }

// Duration returns the wall time between dispatch and completion.
func (t *Task) Duration() time.Duration {
	if t.StartedAt.IsZero() || t.FinishedAt.IsZero() {
		return 0
	}
	return t.FinishedAt.Sub(t.StartedAt)
}
