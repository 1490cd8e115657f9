package selector

import (
	"anvil/internal/model"
)

// anyShape implements `*`.
type anyShape struct{}

func (anyShape) matches(*model.Graph, model.ShapeID) bool { return true }

// kindSel matches by shape kind name; aliases expand at parse time.
type kindSel struct {
	kinds []model.ShapeKind
}

func (k kindSel) matches(g *model.Graph, id model.ShapeID) bool {
	s, ok := g.Shape(id)
	if !ok {
		return false
	}
	for _, kind := range k.kinds {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

// traitPresent implements `[trait|id]`. Bare trait names resolve against the
// prelude namespace.
type traitPresent struct {
	trait model.ShapeID
}

func (t traitPresent) matches(g *model.Graph, id model.ShapeID) bool {
	s, ok := g.Shape(id)
	if !ok {
		return false
	}
	return s.HasTrait(t.trait)
}

// attrEq implements `[id|path = value]`: equality on a resolved attribute
// path of the shape's ID.
type attrEq struct {
	path  string // "", "namespace", "name", "member"
	value string
}

func (a attrEq) matches(g *model.Graph, id model.ShapeID) bool {
	switch a.path {
	case "":
		return id.String() == a.value
	case "namespace":
		return id.Namespace == a.value
	case "name":
		return id.Name == a.value
	case "member":
		return id.Member == a.value
	}
	return false
}

// isSel implements `:is(...)`: the shape matches when any alternative
// matches from it.
type isSel struct {
	alts []*Selector
}

func (s isSel) matches(g *model.Graph, id model.ShapeID) bool {
	for _, alt := range s.alts {
		if alt.Matches(g, id) {
			return true
		}
	}
	return false
}

// notSel implements `:not(...)`: the shape matches when no alternative does.
type notSel struct {
	alts []*Selector
}

func (s notSel) matches(g *model.Graph, id model.ShapeID) bool {
	for _, alt := range s.alts {
		if alt.Matches(g, id) {
			return false
		}
	}
	return true
}

// testSel implements `:test(...)`: lookahead. The nested selectors usually
// begin with a combinator; the current shape matches when some walk exists,
// and the walk's endpoint is not consumed as the match result.
type testSel struct {
	alts []*Selector
}

func (s testSel) matches(g *model.Graph, id model.ShapeID) bool {
	for _, alt := range s.alts {
		if alt.Matches(g, id) {
			return true
		}
	}
	return false
}
