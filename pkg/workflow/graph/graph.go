// Package graph implements the Dependency Graph (spec.md §4.3): building
// the DAG implied by a step list's depends_on edges, cycle detection, and
// ready-set / layer queries for the executor.
package graph

import "fmt"

// Node carries only what the graph needs from a Step: its name and its
// declared predecessors.
type Node struct {
	Name      string
	DependsOn []string
}

// Graph is the built dependency structure: declaration order plus
// predecessor/successor adjacency.
type Graph struct {
	order        []string
	index        map[string]int
	predecessors map[string][]string
	successors   map[string][]string
}

// CycleError reports one representative cycle found during validation, as
// the sequence of names on the detected back edge.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Cycle)
}

// UnknownDependencyError reports a depends_on reference to a name that was
// never declared.
type UnknownDependencyError struct {
	Step       string
	Unknown    string
	SelfDepend bool
}

func (e *UnknownDependencyError) Error() string {
	if e.SelfDepend {
		return fmt.Sprintf("step %q depends on itself", e.Step)
	}
	return fmt.Sprintf("step %q depends on unknown step %q", e.Step, e.Unknown)
}

// Build constructs the graph and validates that every depends_on reference
// resolves to a declared name, that no step self-depends, and that the
// relation is acyclic. It returns every problem found, since validation
// rules are collected and reported together where possible
// (spec.md §4.1).
func Build(nodes []Node) (*Graph, []error) {
	g := &Graph{
		index:        make(map[string]int, len(nodes)),
		predecessors: make(map[string][]string, len(nodes)),
		successors:   make(map[string][]string, len(nodes)),
	}
	for i, n := range nodes {
		g.order = append(g.order, n.Name)
		g.index[n.Name] = i
	}

	var errs []error
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if dep == n.Name {
				errs = append(errs, &UnknownDependencyError{Step: n.Name, SelfDepend: true})
				continue
			}
			if _, ok := g.index[dep]; !ok {
				errs = append(errs, &UnknownDependencyError{Step: n.Name, Unknown: dep})
				continue
			}
			g.predecessors[n.Name] = append(g.predecessors[n.Name], dep)
			g.successors[dep] = append(g.successors[dep], n.Name)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if cycle := g.detectCycle(); cycle != nil {
		return nil, []error{&CycleError{Cycle: cycle}}
	}
	return g, nil
}

// colour states for the DFS cycle scan.
const (
	white = iota
	gray
	black
)

// detectCycle runs standard DFS with a three-colour marking scheme,
// returning the back-edge path when a cycle is found.
func (g *Graph) detectCycle() []string {
	colour := make(map[string]int, len(g.order))
	var path []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colour[name] = gray
		path = append(path, name)
		for _, dep := range g.successors[name] {
			switch colour[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				// Found the back edge: report the cycle starting at dep.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			}
		}
		path = path[:len(path)-1]
		colour[name] = black
		return false
	}

	for _, n := range g.order {
		if colour[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}

// Ready returns the names whose predecessors are all in completed and
// which are not themselves in completed.
func Ready(g *Graph, completed map[string]bool) []string {
	var ready []string
	for _, name := range g.order {
		if completed[name] {
			continue
		}
		ok := true
		for _, dep := range g.predecessors[name] {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, name)
		}
	}
	return ready
}

// Layers computes a topological layering via Kahn's algorithm: layer i+1
// contains only names whose predecessors all lie in layers 0..i. Ties are
// broken by declaration order so layering is deterministic.
func Layers(g *Graph) [][]string {
	remaining := make(map[string]int, len(g.order))
	for _, name := range g.order {
		remaining[name] = len(g.predecessors[name])
	}

	var layers [][]string
	done := make(map[string]bool, len(g.order))
	for len(done) < len(g.order) {
		var layer []string
		for _, name := range g.order {
			if !done[name] && remaining[name] == 0 {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			// Build() already rejects cycles, so this cannot happen on a
			// validated graph; guard against infinite loop regardless.
			break
		}
		for _, name := range layer {
			done[name] = true
			for _, succ := range g.successors[name] {
				remaining[succ]--
			}
		}
		layers = append(layers, layer)
	}
	return layers
}

// Names returns the graph's nodes in declaration order.
func (g *Graph) Names() []string {
	return append([]string{}, g.order...)
}

// Predecessors returns the direct predecessors of name.
func (g *Graph) Predecessors(name string) []string {
	return append([]string{}, g.predecessors[name]...)
}
