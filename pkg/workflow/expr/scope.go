// Package expr implements the Expression Environment (spec.md §4.2): a
// small, closed mustache-style template grammar — {{ expr }} and
// {{ expr | filter }} — rendered against a Scope of vars/results.
//
// The filter set is intentionally fixed (default, trim, lower, upper,
// strftime); spec.md §9 warns explicitly against growing this into a
// Turing-complete templater, so this package does not reach for
// text/template or Masterminds/sprig even though both are present
// elsewhere in the corpus — their whole purpose is a bigger, composable
// function surface than the spec allows.
package expr

import (
	"sync"

	"github.com/opsctl/opsctl/pkg/workflow/result"
)

// Scope is the evaluation environment passed to Render/RenderBool: vars is
// the merged variable map, results maps step name to the template-visible
// subset of its StepResult. Scope is append-only during execution: once a
// step's result is recorded it is visible to every later reader, and a
// step may never observe a result that hasn't completed.
type Scope struct {
	mu      sync.RWMutex
	vars    map[string]any
	results map[string]result.View
}

// NewScope builds a Scope from the merged variable map. The merge itself
// (caller vars overlaid onto document defaults) is the Engine Facade's
// responsibility (spec.md §4.8 step 2).
func NewScope(vars map[string]any) *Scope {
	return &Scope{
		vars:    vars,
		results: make(map[string]result.View),
	}
}

// SetResult records a completed step's result. This is the executor's
// single result-collection path (spec.md §5 "Shared-resource policy");
// the Step Runner never calls this.
func (s *Scope) SetResult(name string, v result.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[name] = v
}

// Snapshot returns an independent copy of the scope as it stands right
// now, used to give a ParallelBlock's children the view taken at block
// entry (spec.md §3 invariants): peers started concurrently within the
// same block never observe each other's results.
func (s *Scope) Snapshot() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &Scope{
		vars:    s.vars,
		results: make(map[string]result.View, len(s.results)),
	}
	for k, v := range s.results {
		cp.results[k] = v
	}
	return cp
}

func (s *Scope) lookupVar(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[name]
	return v, ok
}

func (s *Scope) lookupResult(name string) (result.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.results[name]
	return v, ok
}
