// Package depgraph tracks inter-worker dependsOn relationships within a
// workflow: registration, completion propagation, cycle detection, and
// failure cascade (§4.3). It holds no reference to worker.Worker beyond the
// IDs and statuses it is told about.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// nodeState is the lifecycle state depgraph tracks per registered node,
// independent of (but fed by) worker.Status.
type nodeState int

const (
	statePending nodeState = iota
	stateStarted
	stateCompleted
	stateFailed
)

type node struct {
	id        string
	workflow  string
	dependsOn []string
	state     nodeState
}

// Graph tracks dependsOn edges between workers within workflows.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]*node
	// dependents is the reverse index: id -> ids that depend on it.
	dependents map[string][]string
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*node),
		dependents: make(map[string][]string),
	}
}

// CycleError reports a dependency cycle detected at registration time,
// naming the offending path (§4.3 invariant: "no cycles").
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// RegisterWorker adds id (in workflow) with the given dependsOn edges. It
// refuses registration -- returning a *CycleError -- if doing so would
// create a cycle; no partial state is committed on failure.
func (g *Graph) RegisterWorker(id, workflow string, dependsOn []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, exists := g.nodes[id]; exists {
		// Report a cycle the new edges would close before the duplicate,
		// probing with the edges added temporarily and then restored.
		saved := existing.dependsOn
		existing.dependsOn = append(append([]string(nil), saved...), dependsOn...)
		path := g.findCycle()
		existing.dependsOn = saved
		if path != nil {
			return &CycleError{Path: path}
		}
		return fmt.Errorf("depgraph: worker %q already registered", id)
	}

	candidate := &node{id: id, workflow: workflow, dependsOn: append([]string(nil), dependsOn...)}
	g.nodes[id] = candidate
	for _, dep := range dependsOn {
		g.dependents[dep] = append(g.dependents[dep], id)
	}

	if path := g.findCycle(); path != nil {
		// Roll back before reporting.
		delete(g.nodes, id)
		for _, dep := range dependsOn {
			g.dependents[dep] = removeString(g.dependents[dep], id)
		}
		return &CycleError{Path: path}
	}
	return nil
}

// findCycle runs DFS with a recursion stack over every registered node and
// returns the first cycle's path, or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = visiting
		path = append(path, id)

		n, ok := g.nodes[id]
		if ok {
			for _, dep := range n.dependsOn {
				switch color[dep] {
				case visiting:
					// Found the cycle; trim path to start at dep.
					start := 0
					for i, p := range path {
						if p == dep {
							start = i
							break
						}
					}
					return append(append([]string(nil), path[start:]...), dep)
				case unvisited:
					if cyc := visit(dep); cyc != nil {
						return cyc
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = done
		return nil
	}

	ids := g.sortedIDs()
	for _, id := range ids {
		if color[id] == unvisited {
			if cyc := visit(id); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarkStarted transitions id to started.
func (g *Graph) MarkStarted(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.state = stateStarted
	}
}

// MarkCompleted transitions id to completed and returns the dependents
// whose dependsOn set is now fully satisfied (§4.3: "dependencies:triggered").
func (g *Graph) MarkCompleted(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.nodes[id]; ok {
		n.state = stateCompleted
	}
	return g.satisfiedDependents(id)
}

// satisfiedDependents returns, among id's dependents, those for which every
// dependsOn edge now points at a completed node.
func (g *Graph) satisfiedDependents(id string) []string {
	var ready []string
	for _, depID := range g.dependents[id] {
		n, ok := g.nodes[depID]
		if !ok || n.state != statePending {
			continue
		}
		if g.allDepsCompletedLocked(n) {
			ready = append(ready, depID)
		}
	}
	sort.Strings(ready)
	return ready
}

// allDepsCompletedLocked reports whether every one of n's dependsOn edges is
// satisfied. A dependency id with no node in the graph is treated as
// already completed (§3/§4.2: missing prerequisites were garbage-collected
// and must not block a dependent forever).
func (g *Graph) allDepsCompletedLocked(n *node) bool {
	for _, dep := range n.dependsOn {
		dn, ok := g.nodes[dep]
		if ok && dn.state != stateCompleted {
			return false
		}
	}
	return true
}

// MarkFailed transitions id to failed and returns every transitive
// dependent that should be cascade-failed as a result (§4.3 failure
// cascade), via breadth-first traversal of the dependents index.
func (g *Graph) MarkFailed(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.nodes[id]; ok {
		n.state = stateFailed
	}

	var cascaded []string
	seen := map[string]bool{id: true}
	queue := append([]string(nil), g.dependents[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		n, ok := g.nodes[cur]
		if !ok || n.state == stateCompleted || n.state == stateFailed {
			continue
		}
		n.state = stateFailed
		cascaded = append(cascaded, cur)
		queue = append(queue, g.dependents[cur]...)
	}
	sort.Strings(cascaded)
	return cascaded
}

// Remove deletes id from the graph and its reverse index entries, used on
// worker teardown.
func (g *Graph) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for _, dep := range n.dependsOn {
		g.dependents[dep] = removeString(g.dependents[dep], id)
	}
	delete(g.dependents, id)
	delete(g.nodes, id)
}

// CleanupFinishedWorkflows removes every node belonging to `workflow` whose
// state is completed or failed, reclaiming the graph's memory (§4.3). Nodes
// are removed one by one whether or not the workflow's other nodes have
// finished.
func (g *Graph) CleanupFinishedWorkflows(workflow string) {
	g.mu.Lock()
	ids := make([]string, 0)
	for id, n := range g.nodes {
		if n.workflow == workflow && (n.state == stateCompleted || n.state == stateFailed) {
			ids = append(ids, id)
		}
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.Remove(id)
	}
}

// ValidateTaskGraph checks that every dependsOn reference among the given
// (id, dependsOn) pairs resolves to another id in the same set and that the
// resulting graph is acyclic, without mutating the Graph. It is used to
// validate a workflow's declared task dependencies before any worker spawns.
func ValidateTaskGraph(edges map[string][]string) error {
	for id, deps := range edges {
		for _, dep := range deps {
			if _, ok := edges[dep]; !ok {
				return fmt.Errorf("depgraph: %q depends on unknown task %q", id, dep)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(edges))
	var path []string

	ids := make([]string, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) error
	visit = func(id string) error {
		color[id] = visiting
		path = append(path, id)
		for _, dep := range edges[id] {
			switch color[dep] {
			case visiting:
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				return &CycleError{Path: append(append([]string(nil), path[start:]...), dep)}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = done
		return nil
	}

	for _, id := range ids {
		if color[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
