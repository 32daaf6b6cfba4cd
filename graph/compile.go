package graph

import (
	"errors"
	"fmt"
)

// Compile validates the graph and freezes it. Multiple problems are joined
// together so a misconfigured graph reports everything at once.
//
// Validation checks:
//  1. Entry stage must be set and registered
//  2. Every stage has exactly one outgoing rule: an edge or a branch
//  3. Every rule belongs to a registered stage
//  4. Every edge target and branch candidate is a registered stage or END
//  5. Declared loops name candidates of their branch and have Max >= 0
//  6. With loop edges removed, the graph is acyclic
//  7. Every loop target leads back to the branching stage through
//     unconditional edges only
//
// Stages unreachable from the entry are logged as warnings but do not cause
// compilation to fail.
func (e *Engine[S]) Compile() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.compiled {
		return nil
	}

	var errs []error

	if e.startNode == "" {
		errs = append(errs, ErrNoEntry)
	} else if _, ok := e.nodes[e.startNode]; !ok {
		errs = append(errs, fmt.Errorf("%w: entry %s", ErrUnknownStage, e.startNode))
	}

	for _, id := range e.order {
		_, hasEdge := e.edges[id]
		_, hasBranch := e.branches[id]
		switch {
		case hasEdge && hasBranch:
			errs = append(errs, fmt.Errorf("%w: %s has both an edge and a branch", ErrDuplicateRoute, id))
		case !hasEdge && !hasBranch:
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingRoute, id))
		}
	}

	for from, to := range e.edges {
		if _, ok := e.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: edge source %s", ErrUnknownStage, from))
		}
		if !e.isTarget(to) {
			errs = append(errs, fmt.Errorf("%w: edge target %s", ErrUnknownStage, to))
		}
	}

	for from, b := range e.branches {
		if _, ok := e.nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("%w: branch source %s", ErrUnknownStage, from))
		}
		for _, c := range b.candidates {
			if !e.isTarget(c) {
				errs = append(errs, fmt.Errorf("%w: branch candidate %s", ErrUnknownStage, c))
			}
		}
		for to, limit := range b.loops {
			if !b.allows(to) {
				errs = append(errs, fmt.Errorf("%w: loop %s->%s is not a candidate", ErrInvalidLoop, from, to))
			}
			if limit < 0 {
				errs = append(errs, fmt.Errorf("%w: loop %s->%s has max %d", ErrInvalidLoop, from, to, limit))
			}
		}
	}

	// Topology checks only make sense once every reference resolves.
	if len(errs) == 0 {
		if cycle := e.findCycle(); cycle != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrCycle, cycle))
		}
		for from, b := range e.branches {
			for to := range b.loops {
				if !e.closesLoop(from, to) {
					errs = append(errs, fmt.Errorf("%w: %s does not lead back to %s unconditionally", ErrInvalidLoop, to, from))
				}
			}
		}
	}

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		return &EngineError{
			Message: "invalid graph: " + joined.Error(),
			Code:    "INVALID_GRAPH",
			Err:     joined,
		}
	}

	e.warnUnreachable()
	e.compiled = true
	return nil
}

func (e *Engine[S]) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, ok := e.nodes[id]
	return ok
}

// successors lists the forward targets of id, excluding declared loop edges.
func (e *Engine[S]) successors(id string) []string {
	if to, ok := e.edges[id]; ok {
		return []string{to}
	}
	b, ok := e.branches[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(b.candidates))
	for _, c := range b.candidates {
		if _, isLoop := b.loops[c]; !isLoop {
			out = append(out, c)
		}
	}
	return out
}

// findCycle returns the stages of one cycle in the forward graph, or nil.
func (e *Engine[S]) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(e.nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		if id == END {
			return false
		}
		switch mark[id] {
		case visiting:
			for i, p := range path {
				if p == id {
					cycle = append(append([]string(nil), path[i:]...), id)
					break
				}
			}
			return true
		case done:
			return false
		}
		mark[id] = visiting
		path = append(path, id)
		for _, next := range e.successors(id) {
			if visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		mark[id] = done
		return false
	}

	for _, id := range e.order {
		if visit(id) {
			return cycle
		}
	}
	return nil
}

// closesLoop reports whether following unconditional edges from to reaches
// from. A loop whose return path passes through another branch would make the
// loop bound depend on two routers.
func (e *Engine[S]) closesLoop(from, to string) bool {
	seen := make(map[string]bool)
	for cur := to; !seen[cur]; {
		if cur == from {
			return true
		}
		seen[cur] = true
		next, ok := e.edges[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// warnUnreachable logs stages that no path from the entry can reach.
func (e *Engine[S]) warnUnreachable() {
	reachable := map[string]bool{e.startNode: true}
	queue := []string{e.startNode}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		targets := e.successors(cur)
		if b, ok := e.branches[cur]; ok {
			targets = b.candidates
		}
		for _, t := range targets {
			if t != END && !reachable[t] {
				reachable[t] = true
				queue = append(queue, t)
			}
		}
	}
	for _, id := range e.order {
		if !reachable[id] {
			e.logger.Warn("node is unreachable from entry", "node_id", id)
		}
	}
}
