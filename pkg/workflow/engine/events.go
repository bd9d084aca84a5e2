// Package engine implements the Engine Facade (spec.md §4.8): loading a
// document, merging variables, choosing the DAG or Sequential path, and
// aggregating a WorkflowResult while emitting progress events.
package engine

import "github.com/opsctl/opsctl/pkg/workflow/result"

// Observer receives lifecycle events as a workflow runs. Implementations
// must return quickly; the engine calls them synchronously on the
// executing goroutine.
type Observer interface {
	WorkflowStarted(name string)
	StepStarted(name string)
	StepCompleted(r result.StepResult)
	BlockStarted(name string)
	BlockCompleted(r result.BlockResult)
	WorkflowCompleted(r result.WorkflowResult)
}

// NopObserver implements Observer with no-ops, the default when a caller
// doesn't need progress reporting.
type NopObserver struct{}

func (NopObserver) WorkflowStarted(string)                  {}
func (NopObserver) StepStarted(string)                      {}
func (NopObserver) StepCompleted(result.StepResult)          {}
func (NopObserver) BlockStarted(string)                      {}
func (NopObserver) BlockCompleted(result.BlockResult)        {}
func (NopObserver) WorkflowCompleted(result.WorkflowResult)  {}

var _ Observer = NopObserver{}

// MultiObserver fans events out to every observer in the slice, letting
// the CLI progress renderer and a metrics observer run side by side.
type MultiObserver []Observer

func (m MultiObserver) WorkflowStarted(name string) {
	for _, o := range m {
		o.WorkflowStarted(name)
	}
}
func (m MultiObserver) StepStarted(name string) {
	for _, o := range m {
		o.StepStarted(name)
	}
}
func (m MultiObserver) StepCompleted(r result.StepResult) {
	for _, o := range m {
		o.StepCompleted(r)
	}
}
func (m MultiObserver) BlockStarted(name string) {
	for _, o := range m {
		o.BlockStarted(name)
	}
}
func (m MultiObserver) BlockCompleted(r result.BlockResult) {
	for _, o := range m {
		o.BlockCompleted(r)
	}
}
func (m MultiObserver) WorkflowCompleted(r result.WorkflowResult) {
	for _, o := range m {
		o.WorkflowCompleted(r)
	}
}

var _ Observer = MultiObserver{}
