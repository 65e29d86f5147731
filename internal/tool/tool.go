// Package tool defines the capability registry the planner and worker draw
// from. Each tool carries a typed input schema and a side-effect class that
// drives confirmation gating for irreversible operations.
package tool

import (
	"context"
	"fmt"
)

// SideEffect classifies what invoking a tool does to the outside world.
type SideEffect string

const (
	// SideEffectReadOnly tools observe without changing anything.
	SideEffectReadOnly SideEffect = "read-only"
	// SideEffectMutating tools change state that can be changed back.
	SideEffectMutating SideEffect = "mutating"
	// SideEffectIrreversible tools cannot be undone (sending email). The
	// worker never invokes these without a confirmed draft.
	SideEffectIrreversible SideEffect = "irreversible"
)

// Tool is a capability the worker can invoke while executing a plan step.
type Tool interface {
	// Name returns the capability identifier (e.g. "email.send").
	Name() string

	// Description returns a human-readable description for the planner.
	Description() string

	// InputSchema returns the JSON Schema for the tool's input.
	InputSchema() string

	// SideEffect returns the tool's side-effect class.
	SideEffect() SideEffect

	// Invoke runs the tool with the given JSON input and returns JSON output.
	Invoke(ctx context.Context, input string) (string, error)
}

// InvocationError wraps a failed tool call so callers can distinguish it
// from planner or infrastructure faults.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Definition is a serializable capability schema handed to the planner.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema string     `json:"inputSchema"`
	SideEffect  SideEffect `json:"sideEffect"`
}
