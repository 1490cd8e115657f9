package model

import (
	"fmt"
	"sort"

	"anvil/internal/source"
)

// TraitTraitID is the meta-trait marking a shape as a trait definition.
var TraitTraitID = ShapeID{Namespace: PreludeNamespace, Name: "trait"}

// PrivateTraitID hides a shape from relative resolution and cross-namespace
// mixin use.
var PrivateTraitID = ShapeID{Namespace: PreludeNamespace, Name: "private"}

// MixinTraitID marks a shape as a mixin.
var MixinTraitID = ShapeID{Namespace: PreludeNamespace, Name: "mixin"}

// UnitID is the prelude unit type targeted by enum members.
var UnitID = ShapeID{Namespace: PreludeNamespace, Name: "Unit"}

// Graph owns every shape of an assembled model, keyed by ShapeID. It is the
// sole mutable aggregate during loading and becomes logically immutable once
// Freeze is called.
type Graph struct {
	shapes   map[ShapeID]*Shape
	metadata map[string]Node
	files    *source.FileSet
	frozen   bool
}

func NewGraph(files *source.FileSet) *Graph {
	return &Graph{
		shapes:   make(map[ShapeID]*Shape),
		metadata: make(map[string]Node),
		files:    files,
	}
}

// Files returns the FileSet the graph's spans point into.
func (g *Graph) Files() *source.FileSet {
	return g.files
}

// Shape looks up a shape (or member shape) by ID.
func (g *Graph) Shape(id ShapeID) (*Shape, bool) {
	s, ok := g.shapes[id]
	return s, ok
}

// Put inserts a shape. It panics on a frozen graph; freezing bugs must not
// be silently absorbed.
func (g *Graph) Put(s *Shape) {
	if g.frozen {
		panic(fmt.Sprintf("graph is frozen; cannot add %s", s.ID))
	}
	g.shapes[s.ID] = s
}

// Delete removes a shape. Used only when a conflicting definition poisons an
// ID before freezing.
func (g *Graph) Delete(id ShapeID) {
	if g.frozen {
		panic(fmt.Sprintf("graph is frozen; cannot delete %s", id))
	}
	delete(g.shapes, id)
}

// Len returns the number of shapes, members included.
func (g *Graph) Len() int {
	return len(g.shapes)
}

// IDs returns every shape ID in lexicographic order.
func (g *Graph) IDs() []ShapeID {
	out := make([]ShapeID, 0, len(g.shapes))
	for id := range g.shapes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Members returns the member shapes of an aggregate in declaration order.
func (g *Graph) Members(id ShapeID) []*Shape {
	s, ok := g.shapes[id]
	if !ok {
		return nil
	}
	out := make([]*Shape, 0, len(s.MemberNames))
	for _, name := range s.MemberNames {
		if m, ok := g.shapes[id.WithMember(name)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ResolveRelative implements deferred relative-ID resolution: a shape named
// name in namespace ns wins; otherwise a non-private prelude shape of that
// name; otherwise resolution fails.
func (g *Graph) ResolveRelative(rel ShapeID, ns string) (ShapeID, bool) {
	local := ShapeID{Namespace: ns, Name: rel.Name, Member: rel.Member}
	if _, ok := g.shapes[local.WithoutMember()]; ok {
		return local, true
	}
	prelude := ShapeID{Namespace: PreludeNamespace, Name: rel.Name, Member: rel.Member}
	if s, ok := g.shapes[prelude.WithoutMember()]; ok {
		if ns == PreludeNamespace || !s.HasTrait(PrivateTraitID) {
			return prelude, true
		}
	}
	return ShapeID{}, false
}

// Metadata returns the model-level metadata value for key.
func (g *Graph) Metadata(key string) (Node, bool) {
	v, ok := g.metadata[key]
	return v, ok
}

// MetadataKeys returns all metadata keys sorted.
func (g *Graph) MetadataKeys() []string {
	out := make([]string, 0, len(g.metadata))
	for k := range g.metadata {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetMetadata merges a metadata entry. Equal values are idempotent, arrays
// concatenate, anything else conflicts.
func (g *Graph) SetMetadata(key string, value Node) error {
	if g.frozen {
		panic("graph is frozen; cannot set metadata")
	}
	existing, ok := g.metadata[key]
	if !ok {
		g.metadata[key] = value
		return nil
	}
	if existing.Equal(value) {
		return nil
	}
	if existing.Kind == ArrayNode && value.Kind == ArrayNode {
		merged, err := existing.MergeAppend(value)
		if err != nil {
			return err
		}
		g.metadata[key] = merged
		return nil
	}
	return fmt.Errorf("metadata key %q redefined with a different value", key)
}

// Freeze marks the graph immutable. Mutations after this point panic.
func (g *Graph) Freeze() {
	g.frozen = true
}

func (g *Graph) Frozen() bool {
	return g.frozen
}
