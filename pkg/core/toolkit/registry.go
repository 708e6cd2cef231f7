// Package toolkit implements the name→function tool registry the Scheduler
// dispatches against, plus the concrete implementations of the eight
// required tool names, each backed by the Data Provider Facade. A tool
// never lets a data-layer failure escape to the node; it returns a
// structured JSON error payload the model can still reason about.
package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Func is the tool function shape: (json_args) -> json_result_as_string.
type Func func(ctx context.Context, argsJSON string) (string, error)

// Registry is the name→function map the Scheduler dispatches tool-call
// directives against.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Func
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Func)}
}

// Register adds or replaces a tool function under name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Dispatch invokes a registered tool by name. An unregistered name is a
// configuration error, not a data-unavailable condition, so it returns an
// error rather than a degraded JSON payload.
func (r *Registry) Dispatch(ctx context.Context, name, argsJSON string) (string, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("toolkit: no tool registered for %q", name)
	}
	return fn(ctx, argsJSON)
}

func marshalOrError(v any, err error) (string, error) {
	if err != nil {
		// Never raise through to the node: encode the failure as a typed,
		// JSON error envelope the analyst's model can still reason about.
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("toolkit: marshal result failed: %w", err)
	}
	return string(raw), nil
}
