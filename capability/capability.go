// Package capability implements the process-wide capability registry that
// lets agents expose structured, schema validated units of executable
// behavior. Capabilities are registered under a globally unique name with a
// declared parameter list, consistent error classification and metadata for
// discovery (owner, category).
package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/levysystems/agentarmy/internal/util"
)

// Handler is the executable body of a capability. Handlers are synchronous
// from the framework's point of view; long-running work should honor ctx
// cancellation. Arguments have already been validated against the declared
// parameter list when a handler is invoked through the registry.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Param describes a single declared capability parameter.
type Param = util.Param

// Violation represents a single parameter validation failure.
type Violation = util.Violation

// ParamsFromStruct derives a parameter list from a Go struct using reflection.
func ParamsFromStruct(structType any) []Param { return util.ParamsFromStruct(structType) }

// Descriptor declares a named capability plus the metadata the registry and
// the agent manager need to route and validate calls to it.
//
// Descriptors are created at agent start-up and removed when the owning agent
// deregisters. Name must be globally unique at registration time.
type Descriptor struct {
	// Unique capability name (snake_case recommended)
	Name string
	// Identifier of the owning agent
	OwnerID string
	// Free-form grouping used for discovery and assistance matching
	Category string
	// Human-readable description
	Description string
	// Declared parameter list, validated before every execution
	Params []Param
	// The capability implementation
	Handler Handler
}

// DuplicateCapabilityError is returned when registering a name that is
// already present. The first registration stays intact.
type DuplicateCapabilityError struct {
	Name string
}

func (e *DuplicateCapabilityError) Error() string {
	return fmt.Sprintf("capability %q is already registered", e.Name)
}

// CapabilityNotFoundError is returned by lookup and execution paths when no
// capability with the requested name exists.
type CapabilityNotFoundError struct {
	Name string
}

func (e *CapabilityNotFoundError) Error() string {
	return fmt.Sprintf("capability %q not found", e.Name)
}

// InvalidParametersError carries every violation found while validating
// arguments against a capability's declared parameter list, not just the
// first. The handler is never invoked when validation fails.
type InvalidParametersError struct {
	Capability string
	Violations []Violation
}

func (e *InvalidParametersError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("invalid parameters for capability %q: %s", e.Capability, strings.Join(msgs, "; "))
}

// CapabilityExecutionError wraps a failure (returned error or panic) raised
// by a capability handler so callers never see a raw, unclassified failure.
type CapabilityExecutionError struct {
	Capability string
	Cause      error
}

func (e *CapabilityExecutionError) Error() string {
	return fmt.Sprintf("capability %q execution failed: %v", e.Capability, e.Cause)
}

// Unwrap exposes the original handler failure.
func (e *CapabilityExecutionError) Unwrap() error { return e.Cause }
