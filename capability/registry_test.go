package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args map[string]any) (any, error) {
	return args["text"], nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	err := r.Register(Descriptor{
		Name:     "echo",
		OwnerID:  "agent-1",
		Category: "text",
		Params:   []Param{{Name: "text", Type: "string", Required: true}},
		Handler:  echoHandler,
	})
	require.NoError(t, err)

	d, err := r.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", d.OwnerID)
	assert.Equal(t, "text", d.Category)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(Descriptor{Handler: echoHandler}))
	assert.Error(t, r.Register(Descriptor{Name: "no_handler"}))
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Descriptor{Name: "echo", OwnerID: "first", Handler: echoHandler}))

	err := r.Register(Descriptor{Name: "echo", OwnerID: "second", Handler: echoHandler})
	var dup *DuplicateCapabilityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "echo", dup.Name)

	d, lookupErr := r.Lookup("echo")
	require.NoError(t, lookupErr)
	assert.Equal(t, "first", d.OwnerID, "the original registration survives")
}

func TestLookupNotFound(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("missing")
	var notFound *CapabilityNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestExecuteSuccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name:    "echo",
		Params:  []Param{{Name: "text", Type: "string", Required: true}},
		Handler: echoHandler,
	}))

	result, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestExecuteReportsAllViolations(t *testing.T) {
	r := NewRegistry()

	invoked := false
	require.NoError(t, r.Register(Descriptor{
		Name: "strict",
		Params: []Param{
			{Name: "name", Type: "string", Required: true},
			{Name: "count", Type: "integer", Required: true},
			{Name: "note", Type: "string", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			invoked = true
			return nil, nil
		},
	}))

	_, err := r.Execute(context.Background(), "strict", map[string]any{
		"count": "not-a-number",
		"note":  42,
	})

	var invalid *InvalidParametersError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Violations, 3, "every violation is reported, not just the first")
	assert.False(t, invoked, "the handler never runs on invalid parameters")
}

func TestExecuteOptionalParamsMayBeAbsent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name:    "loose",
		Params:  []Param{{Name: "note", Type: "string", Required: false}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	}))

	result, err := r.Execute(context.Background(), "loose", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestExecuteWrapsHandlerError(t *testing.T) {
	r := NewRegistry()
	cause := errors.New("backend down")
	require.NoError(t, r.Register(Descriptor{
		Name:    "flaky",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, cause },
	}))

	_, err := r.Execute(context.Background(), "flaky", nil)

	var execErr *CapabilityExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "flaky", execErr.Capability)
	assert.ErrorIs(t, err, cause)
}

func TestExecuteRecoversHandlerPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name:    "panicky",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { panic("kaboom") },
	}))

	_, err := r.Execute(context.Background(), "panicky", nil)

	var execErr *CapabilityExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorContains(t, err, "kaboom")
}

func TestUnregisterAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "a", OwnerID: "x", Handler: echoHandler}))
	require.NoError(t, r.Register(Descriptor{Name: "b", OwnerID: "x", Handler: echoHandler}))
	require.NoError(t, r.Register(Descriptor{Name: "c", OwnerID: "y", Handler: echoHandler}))

	assert.Equal(t, 2, r.UnregisterAll("x"))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.UnregisterAll("x"), "removing nothing is not an error")

	owner, ok := r.Owner("c")
	require.True(t, ok)
	assert.Equal(t, "y", owner)
}

func TestByCategory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{Name: "zeta", Category: "math", Handler: echoHandler}))
	require.NoError(t, r.Register(Descriptor{Name: "alpha", Category: "math", Handler: echoHandler}))
	require.NoError(t, r.Register(Descriptor{Name: "other", Category: "text", Handler: echoHandler}))

	var names []string
	for d := range r.ByCategory("math") {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names, "ordered by name")

	// The sequence is restartable.
	seq := r.ByCategory("math")
	count := 0
	for range seq {
		count++
	}
	for range seq {
		count++
	}
	assert.Equal(t, 4, count)

	// Early break stops iteration cleanly.
	for range r.ByCategory("math") {
		break
	}

	var none []string
	for d := range r.ByCategory("unknown") {
		none = append(none, d.Name)
	}
	assert.Empty(t, none)
}

func TestInvalidParametersErrorMessage(t *testing.T) {
	err := &InvalidParametersError{
		Capability: "strict",
		Violations: []Violation{
			{Field: "name", Message: "required parameter is missing"},
			{Field: "count", Value: "x", Message: "expected type integer, got string"},
		},
	}
	msg := err.Error()
	assert.Contains(t, msg, "strict")
	assert.Contains(t, msg, "name")
	assert.Contains(t, msg, "count")
}
