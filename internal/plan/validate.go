package plan

import (
	"errors"
	"fmt"
)

// RootID is the implicit synthetic root every graph starts from. Edges may
// name it as a source; it is always treated as already completed.
const RootID = "ROOT"

var (
	// ErrCycleDetected reports that the plan's edges are not acyclic.
	ErrCycleDetected = errors.New("plan: cycle detected, graph is not acyclic")
	// ErrUnknownNode reports an edge endpoint that names no declared step.
	ErrUnknownNode = errors.New("plan: edge references unknown step id")
	// ErrSelfLoop reports an edge whose source and target are the same step.
	ErrSelfLoop = errors.New("plan: step depends on itself")
	// ErrDuplicateStep reports two steps declared with the same id.
	ErrDuplicateStep = errors.New("plan: duplicate step id")
	// ErrEmptyStepID reports a step declared without an id.
	ErrEmptyStepID = errors.New("plan: step with empty id")
)

// Validate checks the plan for structural errors: empty or duplicate step
// ids, edges naming unknown steps, self-loops, and cycles. A malformed plan
// is fatal for the whole run, so this runs before any execution begins.
func (p *Plan) Validate() error {
	known := make(map[string]bool, len(p.Steps)+1)
	known[RootID] = true
	for _, s := range p.Steps {
		if s.ID == "" {
			return ErrEmptyStepID
		}
		if known[s.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateStep, s.ID)
		}
		known[s.ID] = true
	}

	adj := make(map[string][]string, len(p.Steps))
	for _, e := range p.Edges {
		if !known[e.Source] {
			return fmt.Errorf("%w: source %q", ErrUnknownNode, e.Source)
		}
		if !known[e.Target] {
			return fmt.Errorf("%w: target %q", ErrUnknownNode, e.Target)
		}
		if e.Source == e.Target {
			return fmt.Errorf("%w: %q", ErrSelfLoop, e.Source)
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	return detectCycles(p.Steps, adj)
}

// detectCycles runs a three-color DFS over the adjacency lists.
func detectCycles(steps []Step, adj map[string][]string) error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(steps))
	for _, s := range steps {
		state[s.ID] = unvisited
	}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	for _, s := range steps {
		if state[s.ID] == unvisited {
			if dfs(s.ID) {
				return ErrCycleDetected
			}
		}
	}
	return nil
}
