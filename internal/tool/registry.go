package tool

import (
	"context"
	"sort"
	"sync"
)

// Registry holds the available capabilities.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Invoke looks up and runs a tool, wrapping failures in InvocationError.
// Irreversible tools are refused here; they may only run through
// InvokeConfirmed after the user has approved the action.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", &InvocationError{Tool: name, Err: ErrUnknownTool}
	}
	if t.SideEffect() == SideEffectIrreversible {
		return "", &InvocationError{Tool: name, Err: ErrConfirmationRequired}
	}
	return r.run(ctx, t, input)
}

// InvokeConfirmed runs a tool regardless of side-effect class. Callers
// must hold an explicit user confirmation for irreversible tools.
func (r *Registry) InvokeConfirmed(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", &InvocationError{Tool: name, Err: ErrUnknownTool}
	}
	return r.run(ctx, t, input)
}

func (r *Registry) run(ctx context.Context, t Tool, input string) (string, error) {
	out, err := t.Invoke(ctx, input)
	if err != nil {
		return "", &InvocationError{Tool: t.Name(), Err: err}
	}
	return out, nil
}

// Definitions returns capability schemas for all registered tools, sorted
// by name for deterministic planner prompts.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
			SideEffect:  t.SideEffect(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted capability names.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
