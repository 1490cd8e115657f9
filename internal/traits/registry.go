package traits

import (
	"anvil/internal/diag"
	"anvil/internal/model"
)

// Registry maps trait IDs to their decoded definitions. It is built by
// scanning the finished graph, so prelude definitions are always present.
type Registry struct {
	defs map[model.ShapeID]*Definition
}

// BuildRegistry scans the graph for every shape carrying smithy.api#trait.
// Meta-schema problems are reported but never abort registration.
func BuildRegistry(g *model.Graph, r diag.Reporter) *Registry {
	reg := &Registry{defs: make(map[model.ShapeID]*Definition)}
	for _, id := range g.IDs() {
		s, _ := g.Shape(id)
		app, ok := s.Trait(model.TraitTraitID)
		if !ok {
			continue
		}
		reg.defs[id] = decodeDefinition(s, app, r)
	}
	return reg
}

// Get returns the definition of a trait, if registered.
func (r *Registry) Get(id model.ShapeID) (*Definition, bool) {
	def, ok := r.defs[id]
	return def, ok
}

// Len returns the number of registered trait definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}
