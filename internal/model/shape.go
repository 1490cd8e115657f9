package model

import (
	"sort"

	"anvil/internal/source"
)

// ShapeKind tags the variants of a shape.
type ShapeKind uint8

const (
	InvalidKind ShapeKind = iota
	BlobKind
	BooleanKind
	StringKind
	ByteKind
	ShortKind
	IntegerKind
	LongKind
	FloatKind
	DoubleKind
	BigIntegerKind
	BigDecimalKind
	TimestampKind
	DocumentKind
	EnumKind
	IntEnumKind
	ListKind
	SetKind
	MapKind
	StructureKind
	UnionKind
	ServiceKind
	ResourceKind
	OperationKind
	MemberKind
)

var kindNames = map[ShapeKind]string{
	BlobKind:       "blob",
	BooleanKind:    "boolean",
	StringKind:     "string",
	ByteKind:       "byte",
	ShortKind:      "short",
	IntegerKind:    "integer",
	LongKind:       "long",
	FloatKind:      "float",
	DoubleKind:     "double",
	BigIntegerKind: "bigInteger",
	BigDecimalKind: "bigDecimal",
	TimestampKind:  "timestamp",
	DocumentKind:   "document",
	EnumKind:       "enum",
	IntEnumKind:    "intEnum",
	ListKind:       "list",
	SetKind:        "set",
	MapKind:        "map",
	StructureKind:  "structure",
	UnionKind:      "union",
	ServiceKind:    "service",
	ResourceKind:   "resource",
	OperationKind:  "operation",
	MemberKind:     "member",
}

var kindsByName = func() map[string]ShapeKind {
	m := make(map[string]ShapeKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k ShapeKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// KindByName resolves a kind name as it appears in documents and selectors.
func KindByName(name string) (ShapeKind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// IsSimple reports whether the kind is a scalar simple type.
func (k ShapeKind) IsSimple() bool {
	return k >= BlobKind && k <= DocumentKind
}

// HasMembers reports whether shapes of this kind own named members.
func (k ShapeKind) HasMembers() bool {
	switch k {
	case EnumKind, IntEnumKind, ListKind, SetKind, MapKind, StructureKind, UnionKind:
		return true
	}
	return false
}

// RelKind names a typed binding from a service, resource or operation shape.
type RelKind uint8

const (
	RelInput RelKind = iota + 1
	RelOutput
	RelError
	RelOperation
	RelCollectionOperation
	RelResource
	RelIdentifier
	RelCreate
	RelRead
	RelUpdate
	RelDelete
	RelList
	RelPut
)

var relNames = map[RelKind]string{
	RelInput:               "input",
	RelOutput:              "output",
	RelError:               "error",
	RelOperation:           "operation",
	RelCollectionOperation: "collectionOperation",
	RelResource:            "resource",
	RelIdentifier:          "identifier",
	RelCreate:              "create",
	RelRead:                "read",
	RelUpdate:              "update",
	RelDelete:              "delete",
	RelList:                "list",
	RelPut:                 "put",
}

func (r RelKind) String() string {
	if n, ok := relNames[r]; ok {
		return n
	}
	return "invalid"
}

// Reference is one typed binding. Name distinguishes multiple bindings of the
// same kind (identifier names; target shape names for operation/error lists).
type Reference struct {
	Rel    RelKind
	Name   string
	Target Ref
	Span   source.Span
}

// TraitApplication is one trait attached to a shape.
type TraitApplication struct {
	Trait Ref
	Value Node
	Span  source.Span
}

// MixinBinding records one applyMixin operation on a shape.
type MixinBinding struct {
	Mixin               Ref
	LocalTraitOverrides []Ref
	Span                source.Span
}

// Shape is a node of the model graph. Member shapes live in the graph under
// their own member IDs; the enclosing aggregate only keeps the ordered name
// list. The graph is the single owner of every Shape; other components hold
// ShapeIDs and look shapes up on demand.
type Shape struct {
	ID   ShapeID
	Kind ShapeKind
	Span source.Span

	Traits      []TraitApplication
	MemberNames []string
	Target      Ref // member kind only
	Refs        []Reference
	Mixins      []MixinBinding
	Properties  map[string]Node
}

// Trait returns the application of the given trait, if present. Valid only
// after reference resolution.
func (s *Shape) Trait(id ShapeID) (*TraitApplication, bool) {
	for i := range s.Traits {
		if tid, ok := s.Traits[i].Trait.ID(); ok && tid == id {
			return &s.Traits[i], true
		}
	}
	return nil, false
}

func (s *Shape) HasTrait(id ShapeID) bool {
	_, ok := s.Trait(id)
	return ok
}

// SortedTraits returns trait applications ordered by trait ID for
// deterministic iteration.
func (s *Shape) SortedTraits() []TraitApplication {
	out := append([]TraitApplication(nil), s.Traits...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Trait.String() < out[j].Trait.String()
	})
	return out
}

// RefsOf returns the bindings of one kind in declaration order.
func (s *Shape) RefsOf(rel RelKind) []Reference {
	var out []Reference
	for i := range s.Refs {
		if s.Refs[i].Rel == rel {
			out = append(out, s.Refs[i])
		}
	}
	return out
}

// Property returns a scalar shape property (service version and the like).
func (s *Shape) Property(name string) (Node, bool) {
	v, ok := s.Properties[name]
	return v, ok
}
