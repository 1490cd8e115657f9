package model

// EdgeKind types a directed relationship edge used by selector traversal.
type EdgeKind uint8

const (
	EdgeMember EdgeKind = iota + 1 // aggregate -> member shape
	EdgeTarget                     // member -> target shape
	EdgeInput
	EdgeOutput
	EdgeError
	EdgeOperation
	EdgeCollectionOperation
	EdgeResource
	EdgeIdentifier
	EdgeMixin
)

// Edge is one directed relationship in the graph.
type Edge struct {
	Kind EdgeKind
	To   ShapeID
}

var relEdges = map[RelKind]EdgeKind{
	RelInput:               EdgeInput,
	RelOutput:              EdgeOutput,
	RelError:               EdgeError,
	RelOperation:           EdgeOperation,
	RelCollectionOperation: EdgeCollectionOperation,
	RelResource:            EdgeResource,
	RelIdentifier:          EdgeIdentifier,
	// Lifecycle bindings walk like plain operation bindings.
	RelCreate: EdgeOperation,
	RelRead:   EdgeOperation,
	RelUpdate: EdgeOperation,
	RelDelete: EdgeOperation,
	RelList:   EdgeOperation,
	RelPut:    EdgeOperation,
}

// Neighbors enumerates the outgoing edges of a shape in deterministic order.
// Unresolved references are skipped; the walk never materializes shapes that
// are not in the graph.
func (g *Graph) Neighbors(id ShapeID) []Edge {
	s, ok := g.shapes[id]
	if !ok {
		return nil
	}
	var out []Edge
	for _, name := range s.MemberNames {
		mid := id.WithMember(name)
		if _, ok := g.shapes[mid]; ok {
			out = append(out, Edge{Kind: EdgeMember, To: mid})
		}
	}
	if s.Kind == MemberKind {
		if tid, ok := s.Target.ID(); ok {
			if _, ok := g.shapes[tid]; ok {
				out = append(out, Edge{Kind: EdgeTarget, To: tid})
			}
		}
	}
	for i := range s.Refs {
		kind, ok := relEdges[s.Refs[i].Rel]
		if !ok {
			continue
		}
		if tid, ok := s.Refs[i].Target.ID(); ok {
			if _, ok := g.shapes[tid]; ok {
				out = append(out, Edge{Kind: kind, To: tid})
			}
		}
	}
	for i := range s.Mixins {
		if mid, ok := s.Mixins[i].Mixin.ID(); ok {
			if _, ok := g.shapes[mid]; ok {
				out = append(out, Edge{Kind: EdgeMixin, To: mid})
			}
		}
	}
	return out
}
