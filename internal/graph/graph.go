// Package graph provides the dependency DAG over agent specs.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fieldmarshal/brigade/pkg/models"
)

// ErrCycleDetected indicates a circular dependency between agent specs.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed graph of agent specs. An edge a -> b means
// a depends on b: b must integrate before a. All iteration follows spec
// insertion order so results are deterministic and reproducible.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps spec ID to the spec itself.
	nodes map[string]*models.AgentSpec
	// order holds spec IDs in insertion order.
	order []string
	// edges maps spec ID to the IDs it depends on.
	edges map[string][]string
	// done tracks which specs have integrated.
	done map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*models.AgentSpec),
		edges: make(map[string][]string),
		done:  make(map[string]bool),
	}
}

// Build constructs the graph from specs, preserving their order. It fails
// on duplicate IDs, references to unknown specs, and cycles. On a cycle
// the returned error wraps ErrCycleDetected and FindCycle names the path.
func (g *DependencyGraph) Build(specs []*models.AgentSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, spec := range specs {
		if _, exists := g.nodes[spec.ID]; exists {
			return fmt.Errorf("duplicate agent id %q", spec.ID)
		}
		g.nodes[spec.ID] = spec
		g.order = append(g.order, spec.ID)
		g.edges[spec.ID] = nil
	}

	for _, spec := range specs {
		for _, depID := range spec.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("agent %s depends on unknown agent %s", spec.ID, depID)
			}
			g.edges[spec.ID] = append(g.edges[spec.ID], depID)
		}
	}

	if cycle := g.findCycleLocked(); cycle != nil {
		return fmt.Errorf("%w: %s", ErrCycleDetected, joinPath(cycle))
	}
	return nil
}

// FindCycle returns one dependency cycle as a path whose first and last
// elements match, or nil when the graph is acyclic. The same graph always
// yields the same cycle.
func (g *DependencyGraph) FindCycle() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findCycleLocked()
}

// findCycleLocked runs a three-color DFS. Colors: 0 unvisited, 1 in
// progress, 2 done. A back edge to an in-progress node is a cycle.
func (g *DependencyGraph) findCycleLocked() []string {
	colors := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = 1
		stack = append(stack, id)

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge: slice the stack from the repeated node.
				for i, n := range stack {
					if n == depID {
						cycle := append([]string(nil), stack[i:]...)
						return append(cycle, depID)
					}
				}
			case 0:
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return nil
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Waves groups spec IDs into topological waves using Kahn's algorithm:
// wave 0 holds specs with no dependencies, wave n+1 holds specs whose
// dependencies all sit in waves <= n. Specs inside a wave keep insertion
// order. Fails if the graph has a cycle.
func (g *DependencyGraph) Waves() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = len(g.edges[id])
	}

	remaining := len(g.nodes)
	assigned := make(map[string]bool, len(g.nodes))
	var waves [][]string

	for remaining > 0 {
		var wave []string
		for _, id := range g.order {
			if !assigned[id] && indegree[id] == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			return nil, ErrCycleDetected
		}
		for _, id := range wave {
			assigned[id] = true
			remaining--
		}
		// Dependents of this wave lose one unmet dependency each.
		for _, id := range g.order {
			if assigned[id] {
				continue
			}
			for _, depID := range g.edges[id] {
				if !assigned[depID] {
					continue
				}
				for _, w := range wave {
					if depID == w {
						indegree[id]--
						break
					}
				}
			}
		}
		waves = append(waves, wave)
	}
	return waves, nil
}

// Ready returns spec IDs whose dependencies are all done and which are
// not themselves done, in insertion order.
func (g *DependencyGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.order {
		if g.done[id] {
			continue
		}
		satisfied := true
		for _, depID := range g.edges[id] {
			if !g.done[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkDone records that a spec integrated, unlocking its dependents for
// subsequent Ready calls.
func (g *DependencyGraph) MarkDone(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done[id] = true
}

// Dependencies returns the IDs the given spec depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs that directly depend on the given spec, in
// insertion order.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(id)
}

func (g *DependencyGraph) dependentsLocked(id string) []string {
	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// TransitiveDependents returns every spec that directly or indirectly
// depends on the given spec, in insertion order. Used to propagate
// blocked status when a dependency never integrates.
func (g *DependencyGraph) TransitiveDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependentsLocked(current) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	var out []string
	for _, candidate := range g.order {
		if candidate != id && seen[candidate] {
			out = append(out, candidate)
		}
	}
	return out
}

// Spec returns the spec for an ID, or nil if absent.
func (g *DependencyGraph) Spec(id string) *models.AgentSpec {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of specs in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func joinPath(path []string) string {
	out := ""
	for i, id := range path {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}
