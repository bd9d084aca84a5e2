// Package commands implements the command dispatcher collaborator
// (spec.md §6 "Dispatcher") as a strategy table keyed on the full command
// path (e.g. "docker build") — the "deep-inheritance hierarchies... collapse to
// a single Dispatcher capability" guidance from spec.md §9 — adapted from
// the teacher's registry.ToolRegistry/dispatch package shape
// (Execute(ctx, input) (output, error)) rather than its unused MCP
// protocol plumbing.
package commands

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher routes an internal command path to a concrete handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, commandPath string, params map[string]any, deadline time.Time) (exitCode int, stdout, stderr string, err error)
}

// Handler executes one internal command.
type Handler func(ctx context.Context, params map[string]any, deadline time.Time) (exitCode int, stdout, stderr string, err error)

// Registry is a Dispatcher backed by a flat table of handlers keyed by
// exact command path (e.g. "docker build", "k8s apply"). Unknown commands
// are a DispatchError per spec.md §7.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an empty command registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds or replaces the handler for commandPath.
func (r *Registry) Register(commandPath string, h Handler) {
	r.handlers[commandPath] = h
}

// Dispatch implements Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, commandPath string, params map[string]any, deadline time.Time) (int, string, string, error) {
	h, ok := r.handlers[commandPath]
	if !ok {
		return -1, "", "", fmt.Errorf("no command handler registered for %q", commandPath)
	}
	return h(ctx, params, deadline)
}
