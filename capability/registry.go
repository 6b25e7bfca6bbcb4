package capability

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/levysystems/agentarmy/internal/util"
	"github.com/levysystems/agentarmy/logging"
)

// Options configures a Registry instance.
type Options struct {
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

// Registry is the thread-safe mapping from capability name to descriptor.
//
// The workload is read-mostly: Lookup and Execute take the read lock while
// Register and UnregisterAll serialize through the write lock. Registration
// of a duplicate name fails atomically; no two registrations of the same
// name can both succeed.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]Descriptor
	logger logging.Logger
}

// NewRegistry constructs an empty capability registry.
func NewRegistry(optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{
		caps:   make(map[string]Descriptor),
		logger: opts.Logger,
	}
}

// Register stores a descriptor under its name. It fails with
// *DuplicateCapabilityError if the name is already present, leaving the
// existing registration intact. The check and insert happen under a single
// critical section.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("capability name must not be empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("capability %q has no handler", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.caps[d.Name]; exists {
		return &DuplicateCapabilityError{Name: d.Name}
	}
	r.caps[d.Name] = d

	r.logger.Debug("registry.register", "capability", d.Name, "owner", d.OwnerID, "category", d.Category)
	return nil
}

// UnregisterAll removes every descriptor owned by the given agent and
// returns how many were removed. Used on agent shutdown; removing zero
// descriptors is not an error.
func (r *Registry) UnregisterAll(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, d := range r.caps {
		if d.OwnerID == ownerID {
			delete(r.caps, name)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Debug("registry.unregister_all", "owner", ownerID, "removed", removed)
	}
	return removed
}

// Lookup returns the descriptor registered under name or fails with
// *CapabilityNotFoundError.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.caps[name]
	if !ok {
		return Descriptor{}, &CapabilityNotFoundError{Name: name}
	}
	return d, nil
}

// Execute validates args against the capability's declared parameter list
// and invokes its handler. Validation failures produce an
// *InvalidParametersError listing every missing or mistyped field and the
// handler is never invoked. Handler errors and panics are wrapped as
// *CapabilityExecutionError so callers always receive a classified failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result any, err error) {
	d, lookupErr := r.Lookup(name)
	if lookupErr != nil {
		return nil, lookupErr
	}

	if violations := util.ValidateParameters(args, d.Params); len(violations) > 0 {
		r.logger.Warn("registry.execute.invalid_params", "capability", name, "violations", len(violations))
		return nil, &InvalidParametersError{Capability: name, Violations: violations}
	}

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = &CapabilityExecutionError{Capability: name, Cause: fmt.Errorf("handler panic: %v", rec)}
			r.logger.Error("registry.execute.panic", "capability", name, "panic", rec)
		}
	}()

	result, err = d.Handler(ctx, args)
	if err != nil {
		r.logger.Error("registry.execute.error", "capability", name, "error", err.Error())
		return nil, &CapabilityExecutionError{Capability: name, Cause: err}
	}

	r.logger.Debug("registry.execute.success", "capability", name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// ByCategory produces a lazy, restartable sequence of descriptors in the
// given category, ordered by name. The snapshot is taken when iteration
// starts, so each restart observes the registry state at that moment.
func (r *Registry) ByCategory(category string) iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, d := range r.snapshot() {
			if d.Category != category {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// List returns a name-ordered snapshot of all registered descriptors,
// intended for discovery and dashboards.
func (r *Registry) List() []Descriptor {
	return r.snapshot()
}

// Owner reports the owning agent of a capability, if registered.
func (r *Registry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.caps[name]
	return d.OwnerID, ok
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

func (r *Registry) snapshot() []Descriptor {
	r.mu.RLock()
	out := make([]Descriptor, 0, len(r.caps))
	for _, d := range r.caps {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
