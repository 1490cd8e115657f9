// Package selector implements the structural query language evaluated
// against an assembled shape graph. A selector matches a candidate shape
// when a walk through the typed relationship graph, consistent with the
// selector's combinator sequence, ends at a shape satisfying the final
// simple selector.
package selector

import (
	"iter"

	"anvil/internal/model"
)

// Selector is a parsed, reusable query. Evaluation is read-only and
// deterministic; visited-set-bounded traversal guarantees termination on
// cyclic graphs.
type Selector struct {
	src  string
	segs []segment
}

type combinator uint8

const (
	combNone combinator = iota
	combChild
	combDescendant
)

type segment struct {
	comb   combinator
	simple simple
}

type simple interface {
	matches(g *model.Graph, id model.ShapeID) bool
}

// String returns the original selector text.
func (s *Selector) String() string {
	return s.src
}

// Matches reports whether the candidate shape matches the selector.
func (s *Selector) Matches(g *model.Graph, id model.ShapeID) bool {
	if _, ok := g.Shape(id); !ok {
		return false
	}
	return s.matchSeg(g, id, 0)
}

// matchSeg checks segments idx.. starting from `from`: the segment's
// combinator moves, its simple selector filters, and the rest must match
// from the landing shape.
func (s *Selector) matchSeg(g *model.Graph, from model.ShapeID, idx int) bool {
	seg := s.segs[idx]
	try := func(c model.ShapeID) bool {
		if !seg.simple.matches(g, c) {
			return false
		}
		if idx == len(s.segs)-1 {
			return true
		}
		return s.matchSeg(g, c, idx+1)
	}
	switch seg.comb {
	case combNone:
		return try(from)
	case combChild:
		for _, e := range g.Neighbors(from) {
			if try(e.To) {
				return true
			}
		}
	case combDescendant:
		for _, c := range reachable(g, from) {
			if try(c) {
				return true
			}
		}
	}
	return false
}

// reachable returns every shape reachable from id in one or more edge steps,
// in deterministic (BFS, neighbor-order) order.
func reachable(g *model.Graph, id model.ShapeID) []model.ShapeID {
	var out []model.ShapeID
	visited := map[model.ShapeID]bool{}
	frontier := []model.ShapeID{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, e := range g.Neighbors(next) {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			out = append(out, e.To)
			frontier = append(frontier, e.To)
		}
	}
	return out
}

// Query evaluates a selector over every shape of the graph and lazily yields
// the matching IDs in lexicographic order.
func Query(g *model.Graph, src string) (iter.Seq[model.ShapeID], error) {
	sel, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return sel.Select(g), nil
}

// Select lazily yields all shapes matching the selector, in ID order.
func (s *Selector) Select(g *model.Graph) iter.Seq[model.ShapeID] {
	return func(yield func(model.ShapeID) bool) {
		for _, id := range g.IDs() {
			if s.Matches(g, id) {
				if !yield(id) {
					return
				}
			}
		}
	}
}
