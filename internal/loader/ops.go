package loader

import (
	"anvil/internal/model"
	"anvil/internal/source"
)

// Op is one record of the syntax-agnostic operation stream every front-end
// lowers into. The assembler interprets ops and never sees surface syntax.
type Op interface {
	Span() source.Span
	// PendingOwner returns the shape the op needs to already exist, or the
	// zero ID when the op can always apply. Ops whose owner is missing are
	// buffered and replayed once the owner is defined.
	PendingOwner() (model.ShapeID, bool)
}

type opSpan struct {
	At source.Span
}

func (o opSpan) Span() source.Span { return o.At }

// DefineShape introduces a shape of a given kind. Defining the same ID twice
// with the same kind merges; a different kind conflicts.
type DefineShape struct {
	opSpan
	ID   model.ShapeID
	Kind model.ShapeKind
}

func (DefineShape) PendingOwner() (model.ShapeID, bool) { return model.ShapeID{}, false }

// AddMember adds a named member to an aggregate shape.
type AddMember struct {
	opSpan
	Owner  model.ShapeID
	Name   string
	Target model.Ref
}

func (o AddMember) PendingOwner() (model.ShapeID, bool) { return o.Owner, true }

// AddTrait attaches a trait application to a shape or member.
type AddTrait struct {
	opSpan
	Target model.ShapeID
	Trait  model.Ref
	Value  model.Node
}

func (o AddTrait) PendingOwner() (model.ShapeID, bool) { return o.Target.WithoutMember(), true }

// ApplyMixin records a mixin binding on a shape.
type ApplyMixin struct {
	opSpan
	Shape               model.ShapeID
	Mixin               model.Ref
	LocalTraitOverrides []model.Ref
}

func (o ApplyMixin) PendingOwner() (model.ShapeID, bool) { return o.Shape, true }

// BindReference attaches a typed service/resource/operation binding.
type BindReference struct {
	opSpan
	Owner  model.ShapeID
	Rel    model.RelKind
	Name   string
	Target model.Ref
}

func (o BindReference) PendingOwner() (model.ShapeID, bool) { return o.Owner, true }

// SetProperty sets a scalar shape property such as a service version.
type SetProperty struct {
	opSpan
	Shape model.ShapeID
	Name  string
	Value model.Node
}

func (o SetProperty) PendingOwner() (model.ShapeID, bool) { return o.Shape, true }

// SetMetadata merges one model-level metadata entry.
type SetMetadata struct {
	opSpan
	Key   string
	Value model.Node
}

func (SetMetadata) PendingOwner() (model.ShapeID, bool) { return model.ShapeID{}, false }

// At builds the embedded span for op literals.
func At(span source.Span) opSpan {
	return opSpan{At: span}
}
