package loader

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"anvil/internal/diag"
	"anvil/internal/model"
	"anvil/internal/source"
	"anvil/internal/traits"
)

// ErrAssembly is returned when a fatal problem (syntax, conflicting
// definitions, unresolved references, cyclic mixins) prevents producing a
// graph. The full diagnostic list is still available on the bag.
var ErrAssembly = errors.New("model assembly failed")

type defRecord struct {
	Kind model.ShapeKind
	Span source.Span
}

// Assembler consumes operation streams from any number of sources and merges
// them into one shape graph. It is the single owner of the graph under
// construction; Add may be called from multiple goroutines and serializes
// internally, and the final graph does not depend on ingestion order.
type Assembler struct {
	mu        sync.Mutex
	files     *source.FileSet
	graph     *model.Graph
	bag       *diag.Bag
	pending   map[model.ShapeID][]Op
	defs      map[model.ShapeID][]defRecord
	dupTarget map[model.ShapeID][]model.Ref
	fatal     bool
	done      bool
}

// NewAssembler creates an assembler over the given FileSet with the prelude
// already loaded.
func NewAssembler(files *source.FileSet, maxDiagnostics int) *Assembler {
	a := &Assembler{
		files:     files,
		graph:     model.NewGraph(files),
		bag:       diag.NewBag(maxDiagnostics),
		pending:   make(map[model.ShapeID][]Op),
		defs:      make(map[model.ShapeID][]defRecord),
		dupTarget: make(map[model.ShapeID][]model.Ref),
	}
	a.loadPrelude()
	return a
}

// Bag exposes the accumulated diagnostics.
func (a *Assembler) Bag() *diag.Bag {
	return a.bag
}

// Files returns the FileSet documents are registered in.
func (a *Assembler) Files() *source.FileSet {
	return a.files
}

// Add applies one source's operation stream. Callable repeatedly before
// Assemble; source order does not affect the assembled graph.
func (a *Assembler) Add(ops []Op) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		panic("assembler already finalized")
	}
	for _, op := range ops {
		a.applyOp(op)
	}
}

// AddSource lowers an in-memory document and applies its operations, for
// hosts that feed the assembler directly instead of going through the
// driver. A document that fails to lower withholds the final graph.
func (a *Assembler) AddSource(name string, content []byte) {
	local := diag.NewBag(a.bag.Cap())
	ops := NewDispatcher(a.files).LowerBytes(name, content, local)
	a.mu.Lock()
	a.bag.Merge(local)
	a.mu.Unlock()
	if local.HasErrors() {
		a.FailSource()
		return
	}
	a.Add(ops)
}

// FailSource records that a source could not be lowered at all. The
// remaining sources still assemble so their findings surface, but the final
// graph is withheld.
func (a *Assembler) FailSource() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fatal = true
}

func (a *Assembler) applyOp(op Op) {
	if owner, needs := op.PendingOwner(); needs {
		if _, ok := a.graph.Shape(owner); !ok {
			a.pending[owner] = append(a.pending[owner], op)
			return
		}
	}
	switch o := op.(type) {
	case DefineShape:
		a.applyDefine(o)
	case AddMember:
		a.applyMember(o)
	case AddTrait:
		a.applyTrait(o)
	case ApplyMixin:
		a.applyMixin(o)
	case BindReference:
		a.applyReference(o)
	case SetProperty:
		a.applyProperty(o)
	case SetMetadata:
		if err := a.graph.SetMetadata(o.Key, o.Value); err != nil {
			a.report(diag.NewError(diag.InvalidMetadataMerge, o.Span(), err.Error()))
			a.fatal = true
		}
	default:
		panic(fmt.Sprintf("unknown operation %T", op))
	}
}

func (a *Assembler) applyDefine(o DefineShape) {
	if o.ID.IsMember() {
		a.report(diag.NewError(diag.InvalidIdentifierSyntax, o.Span(),
			fmt.Sprintf("a member ID cannot be the target of a shape definition: %s", o.ID)).
			OnShape(o.ID.String()))
		return
	}
	a.defs[o.ID] = append(a.defs[o.ID], defRecord{Kind: o.Kind, Span: o.Span()})
	if _, ok := a.graph.Shape(o.ID); !ok {
		a.graph.Put(&model.Shape{ID: o.ID, Kind: o.Kind, Span: o.Span()})
		a.replayPending(o.ID)
	}
}

func (a *Assembler) applyMember(o AddMember) {
	owner, _ := a.graph.Shape(o.Owner)
	mid := o.Owner.WithMember(o.Name)
	if existing, ok := a.graph.Shape(mid); ok {
		// Re-addition: identical targets are idempotent, anything else is
		// settled after reference resolution.
		if !sameRef(existing.Target, o.Target) {
			a.dupTarget[mid] = append(a.dupTarget[mid], o.Target)
		}
		return
	}
	owner.MemberNames = append(owner.MemberNames, o.Name)
	a.graph.Put(&model.Shape{
		ID:     mid,
		Kind:   model.MemberKind,
		Span:   o.Span(),
		Target: o.Target,
	})
	a.replayPending(mid)
}

func (a *Assembler) applyTrait(o AddTrait) {
	s, ok := a.graph.Shape(o.Target)
	if !ok {
		// Owner exists but the member does not yet; wait for it.
		a.pending[o.Target] = append(a.pending[o.Target], o)
		return
	}
	s.Traits = append(s.Traits, model.TraitApplication{Trait: o.Trait, Value: o.Value, Span: o.Span()})
}

func (a *Assembler) applyMixin(o ApplyMixin) {
	s, _ := a.graph.Shape(o.Shape)
	for i := range s.Mixins {
		if s.Mixins[i].Mixin.Raw == o.Mixin.Raw && s.Mixins[i].Mixin.Context == o.Mixin.Context {
			return
		}
	}
	s.Mixins = append(s.Mixins, model.MixinBinding{
		Mixin:               o.Mixin,
		LocalTraitOverrides: o.LocalTraitOverrides,
		Span:                o.Span(),
	})
}

func (a *Assembler) applyReference(o BindReference) {
	s, _ := a.graph.Shape(o.Owner)
	for i := range s.Refs {
		r := &s.Refs[i]
		if r.Rel != o.Rel || r.Name != o.Name {
			continue
		}
		if sameRef(r.Target, o.Target) {
			return
		}
		a.report(diag.NewError(diag.ConflictingShapeDefinition, o.Span(),
			fmt.Sprintf("%s binding %q redefined with a different target (%s vs %s)",
				o.Rel, o.Name, r.Target, o.Target)).
			OnShape(o.Owner.String()).
			WithNote(r.Span, "previous binding"))
		a.fatal = true
		return
	}
	s.Refs = append(s.Refs, model.Reference{Rel: o.Rel, Name: o.Name, Target: o.Target, Span: o.Span()})
}

func (a *Assembler) applyProperty(o SetProperty) {
	s, _ := a.graph.Shape(o.Shape)
	if s.Properties == nil {
		s.Properties = make(map[string]model.Node)
	}
	if existing, ok := s.Properties[o.Name]; ok {
		if !existing.Equal(o.Value) {
			a.report(diag.NewError(diag.ConflictingShapeDefinition, o.Span(),
				fmt.Sprintf("property %q redefined with a different value", o.Name)).
				OnShape(o.Shape.String()))
			a.fatal = true
		}
		return
	}
	s.Properties[o.Name] = o.Value
}

func (a *Assembler) replayPending(id model.ShapeID) {
	ops := a.pending[id]
	if ops == nil {
		return
	}
	delete(a.pending, id)
	for _, op := range ops {
		a.applyOp(op)
	}
}

func (a *Assembler) report(d diag.Diagnostic) {
	a.bag.Add(d)
}

// Assemble finalizes the graph: it fails leftover pending operations,
// reports definition conflicts, resolves deferred references, flattens
// mixins, validates traits, and freezes the graph. Trait validation findings
// never abort assembly; structural failures do.
func (a *Assembler) Assemble() (*model.Graph, *diag.Bag, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		panic("assembler already finalized")
	}
	a.done = true

	a.failPending()
	a.reportDefinitionConflicts()
	a.canonicalizeOrder()
	a.resolveRefs()

	if !a.fatal {
		flattenMixins(a.graph, a.bag, &a.fatal)
	}
	if !a.fatal {
		traits.Validate(a.graph, diag.BagReporter{Bag: a.bag})
	}

	a.bag.Dedup()
	a.bag.Sort()
	if a.fatal {
		return nil, a.bag, fmt.Errorf("%w: %d diagnostics", ErrAssembly, a.bag.Len())
	}
	a.graph.Freeze()
	return a.graph, a.bag, nil
}

// failPending turns every operation still waiting on an undefined shape into
// an UnresolvedShapeId error.
func (a *Assembler) failPending() {
	ids := make([]model.ShapeID, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		ops := a.pending[id]
		d := diag.NewError(diag.UnresolvedShapeID, ops[0].Span(),
			fmt.Sprintf("%d operation(s) target undefined shape %s", len(ops), id)).
			OnShape(id.String())
		for _, op := range ops[1:] {
			d = d.WithNote(op.Span(), "also applied here")
		}
		a.report(d)
		a.fatal = true
	}
}

// reportDefinitionConflicts scans recorded definitions for kind mismatches.
// The diagnostic always names the lexicographically-first two conflicting
// locations so the report does not depend on source order.
func (a *Assembler) reportDefinitionConflicts() {
	ids := make([]model.ShapeID, 0, len(a.defs))
	for id := range a.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		records := append([]defRecord(nil), a.defs[id]...)
		sort.SliceStable(records, func(i, j int) bool {
			return a.files.SpanLess(records[i].Span, records[j].Span)
		})
		first := records[0]
		for _, rec := range records[1:] {
			if rec.Kind == first.Kind {
				continue
			}
			a.report(diag.NewError(diag.ConflictingShapeDefinition, first.Span,
				fmt.Sprintf("shape %s defined as both %s and %s", id, first.Kind, rec.Kind)).
				OnShape(id.String()).
				WithNote(rec.Span, fmt.Sprintf("redefined as %s here", rec.Kind)))
			a.fatal = true
			break
		}
		// Deterministic span for merged shapes: earliest definition wins.
		if s, ok := a.graph.Shape(id); ok {
			s.Span = first.Span
		}
	}
}

// canonicalizeOrder re-orders members, bindings and mixin applications by
// source position so the merged graph is independent of ingestion order.
func (a *Assembler) canonicalizeOrder() {
	for _, id := range a.graph.IDs() {
		s, _ := a.graph.Shape(id)
		sort.SliceStable(s.MemberNames, func(i, j int) bool {
			mi, iok := a.graph.Shape(id.WithMember(s.MemberNames[i]))
			mj, jok := a.graph.Shape(id.WithMember(s.MemberNames[j]))
			if !iok || !jok {
				return s.MemberNames[i] < s.MemberNames[j]
			}
			return a.files.SpanLess(mi.Span, mj.Span)
		})
		sort.SliceStable(s.Refs, func(i, j int) bool {
			return a.files.SpanLess(s.Refs[i].Span, s.Refs[j].Span)
		})
		sort.SliceStable(s.Mixins, func(i, j int) bool {
			return a.files.SpanLess(s.Mixins[i].Span, s.Mixins[j].Span)
		})
	}
}

// resolveRefs resolves every deferred reference in the graph, merges
// duplicate trait applications, and verifies targets exist.
func (a *Assembler) resolveRefs() {
	for _, id := range a.graph.IDs() {
		s, _ := a.graph.Shape(id)
		if s.Kind == model.MemberKind {
			a.resolveMemberTarget(s)
		}
		for i := range s.Refs {
			a.resolveExisting(&s.Refs[i].Target, s.Refs[i].Span, id)
		}
		for i := range s.Mixins {
			a.resolveExisting(&s.Mixins[i].Mixin, s.Mixins[i].Span, id)
			for j := range s.Mixins[i].LocalTraitOverrides {
				a.resolveTraitRef(&s.Mixins[i].LocalTraitOverrides[j], s.Mixins[i].Span, id)
			}
		}
		a.mergeTraits(s)
	}
}

func (a *Assembler) resolveMemberTarget(s *model.Shape) {
	a.resolveExisting(&s.Target, s.Span, s.ID)
	want, ok := s.Target.ID()
	for _, dup := range a.dupTarget[s.ID] {
		r := dup
		a.resolveExisting(&r, s.Span, s.ID)
		if got, dok := r.ID(); ok && dok && got != want {
			a.report(diag.NewError(diag.ConflictingMemberTarget, s.Span,
				fmt.Sprintf("member %s targets both %s and %s", s.ID, want, got)).
				OnShape(s.ID.String()))
			a.fatal = true
		}
	}
}

// resolveExisting resolves a ref and requires its target shape to exist.
func (a *Assembler) resolveExisting(r *model.Ref, span source.Span, on model.ShapeID) {
	target, ok := a.resolve(r, span, on)
	if !ok {
		return
	}
	if target.IsMember() {
		a.report(diag.NewError(diag.InvalidIdentifierSyntax, span,
			fmt.Sprintf("reference %s names a member; member IDs are not valid reference targets", target)).
			OnShape(on.String()))
		a.fatal = true
		return
	}
	if _, exists := a.graph.Shape(target); !exists {
		a.report(diag.NewError(diag.UnresolvedShapeID, span,
			fmt.Sprintf("reference to undefined shape %s", target)).
			OnShape(on.String()))
		a.fatal = true
	}
}

// resolveTraitRef resolves a trait reference. Absolute trait IDs may name
// shapes that do not exist; trait validation reports those as UnknownTrait
// rather than a fatal unresolved reference.
func (a *Assembler) resolveTraitRef(r *model.Ref, span source.Span, on model.ShapeID) {
	a.resolve(r, span, on)
}

func (a *Assembler) resolve(r *model.Ref, span source.Span, on model.ShapeID) (model.ShapeID, bool) {
	if id, ok := r.ID(); ok {
		return id, true
	}
	if id, ok := a.graph.ResolveRelative(r.RelativeID(), r.Context); ok {
		r.SetResolved(id)
		return id, true
	}
	a.report(diag.NewError(diag.UnresolvedShapeID, span,
		fmt.Sprintf("relative ID %q does not resolve in namespace %s or the prelude", r.Raw, r.Context)).
		OnShape(on.String()))
	a.fatal = true
	return model.ShapeID{}, false
}

// mergeTraits groups a shape's trait applications by resolved trait ID:
// identical values are idempotent, applications of list/set/map-valued
// traits merge additively, anything else conflicts. The surviving
// applications are ordered by trait ID for determinism.
func (a *Assembler) mergeTraits(s *model.Shape) {
	for i := range s.Traits {
		a.resolveTraitRef(&s.Traits[i].Trait, s.Traits[i].Span, s.ID)
	}
	byID := make(map[model.ShapeID]*model.TraitApplication)
	order := make([]model.ShapeID, 0, len(s.Traits))
	for i := range s.Traits {
		app := s.Traits[i]
		tid, ok := app.Trait.ID()
		if !ok {
			continue
		}
		existing, seen := byID[tid]
		if !seen {
			copied := app
			byID[tid] = &copied
			order = append(order, tid)
			continue
		}
		if existing.Value.Equal(app.Value) {
			continue
		}
		if a.traitAppendable(tid) {
			if merged, err := existing.Value.MergeAppend(app.Value); err == nil {
				existing.Value = merged
				continue
			}
		}
		a.report(diag.NewError(diag.ConflictingTraitValue, app.Span,
			fmt.Sprintf("trait %s applied to %s with conflicting values", tid, s.ID)).
			OnShape(s.ID.String()).
			WithNote(existing.Span, "previous application"))
		a.fatal = true
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	out := make([]model.TraitApplication, 0, len(order))
	for _, tid := range order {
		out = append(out, *byID[tid])
	}
	s.Traits = out
}

// traitAppendable reports whether a trait's defining shape is list, set or
// map valued. Only those traits merge differing applications; mergeTraits
// runs after all sources are in, so the lookup sees the merged graph.
func (a *Assembler) traitAppendable(tid model.ShapeID) bool {
	def, ok := a.graph.Shape(tid)
	if !ok {
		return false
	}
	switch def.Kind {
	case model.ListKind, model.SetKind, model.MapKind:
		return true
	}
	return false
}

func sameRef(a, b model.Ref) bool {
	if aid, ok := a.ID(); ok {
		if bid, bok := b.ID(); bok {
			return aid == bid
		}
	}
	return a.Raw == b.Raw && a.Context == b.Context
}
