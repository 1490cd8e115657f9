package loader

import (
	"fmt"
	"sort"
	"strings"

	"anvil/internal/diag"
	"anvil/internal/model"
)

// flattenMixins copies members and traits from every mixin into the shapes
// that apply it, processing the mixin-application relation in topological
// order. A cycle is fatal and leaves every shape on the cycle unflattened.
func flattenMixins(g *model.Graph, bag *diag.Bag, fatal *bool) {
	f := &mixinFlattener{graph: g, bag: bag, fatal: fatal, state: make(map[model.ShapeID]uint8)}
	for _, id := range g.IDs() {
		f.visit(id, nil)
	}
}

const (
	mixinWhite uint8 = iota
	mixinGray
	mixinBlack
)

type mixinFlattener struct {
	graph *model.Graph
	bag   *diag.Bag
	fatal *bool
	state map[model.ShapeID]uint8
}

// visit flattens id after all of its mixins, detecting cycles via the gray
// state. path carries the current DFS chain for the cycle message.
func (f *mixinFlattener) visit(id model.ShapeID, path []model.ShapeID) {
	switch f.state[id] {
	case mixinBlack:
		return
	case mixinGray:
		f.reportCycle(id, path)
		return
	}
	s, ok := f.graph.Shape(id)
	if !ok {
		return
	}
	f.state[id] = mixinGray
	for i := range s.Mixins {
		if mid, ok := s.Mixins[i].Mixin.ID(); ok {
			f.visit(mid, append(path, id))
		}
	}
	// A detected cycle downstream may have marked us black to stop flattening.
	if f.state[id] == mixinGray {
		f.flatten(s)
		f.state[id] = mixinBlack
	}
}

func (f *mixinFlattener) reportCycle(id model.ShapeID, path []model.ShapeID) {
	// Trim the path to the cycle itself.
	start := 0
	for i, p := range path {
		if p == id {
			start = i
			break
		}
	}
	cycle := append(append([]model.ShapeID(nil), path[start:]...), id)
	names := make([]string, len(cycle))
	for i, c := range cycle {
		names[i] = c.String()
		// Poison every participant so none of them is partially flattened.
		f.state[c] = mixinBlack
	}
	s, _ := f.graph.Shape(id)
	f.bag.Add(diag.NewError(diag.CyclicMixinDependency, s.Span,
		fmt.Sprintf("mixin cycle: %s", strings.Join(names, " -> "))).
		OnShape(id.String()))
	*f.fatal = true
}

func (f *mixinFlattener) flatten(s *model.Shape) {
	if len(s.Mixins) == 0 {
		return
	}
	for _, binding := range s.Mixins {
		mid, ok := binding.Mixin.ID()
		if !ok {
			continue
		}
		mixin, ok := f.graph.Shape(mid)
		if !ok {
			continue
		}
		if !f.checkMixin(s, mixin, binding) {
			continue
		}
		f.copyMembers(s, mixin)
		f.copyTraits(s, mixin, binding)
	}
}

func (f *mixinFlattener) checkMixin(user, mixin *model.Shape, binding model.MixinBinding) bool {
	if mixin.Kind != model.StructureKind && mixin.Kind != model.UnionKind || !mixin.HasTrait(model.MixinTraitID) {
		f.bag.Add(diag.NewError(diag.InvalidMixinTarget, binding.Span,
			fmt.Sprintf("%s is not a mixin: expected a structure or union carrying %s", mixin.ID, model.MixinTraitID)).
			OnShape(user.ID.String()))
		return false
	}
	if mixin.Kind != user.Kind {
		f.bag.Add(diag.NewError(diag.InvalidMixinTarget, binding.Span,
			fmt.Sprintf("%s mixin %s cannot be applied to %s shape %s", mixin.Kind, mixin.ID, user.Kind, user.ID)).
			OnShape(user.ID.String()))
		return false
	}
	if mixin.ID.Namespace != user.ID.Namespace && mixin.HasTrait(model.PrivateTraitID) {
		// Cross-namespace use of a private mixin: flagged, not silently
		// permitted or rejected.
		f.bag.Add(diag.New(diag.SevDanger, diag.PrivateMixinUse, binding.Span,
			fmt.Sprintf("shape %s applies private mixin %s from another namespace", user.ID, mixin.ID)).
			OnShape(user.ID.String()))
	}
	return true
}

// copyMembers copies every mixin member the user does not define locally.
// Local definitions always win; there is no override conflict.
func (f *mixinFlattener) copyMembers(user, mixin *model.Shape) {
	local := make(map[string]bool, len(user.MemberNames))
	for _, name := range user.MemberNames {
		local[name] = true
	}
	for _, name := range mixin.MemberNames {
		if local[name] {
			continue
		}
		src, ok := f.graph.Shape(mixin.ID.WithMember(name))
		if !ok {
			continue
		}
		copied := &model.Shape{
			ID:     user.ID.WithMember(name),
			Kind:   model.MemberKind,
			Span:   src.Span,
			Target: src.Target,
			Traits: append([]model.TraitApplication(nil), src.Traits...),
		}
		f.graph.Put(copied)
		user.MemberNames = append(user.MemberNames, name)
	}
}

// copyTraits copies mixin traits not present locally and not named in the
// binding's local overrides. The mixin marker itself never propagates.
func (f *mixinFlattener) copyTraits(user, mixin *model.Shape, binding model.MixinBinding) {
	suppressed := map[model.ShapeID]bool{model.MixinTraitID: true}
	for _, ov := range binding.LocalTraitOverrides {
		if tid, ok := ov.ID(); ok {
			suppressed[tid] = true
		}
	}
	changed := false
	for _, app := range mixin.SortedTraits() {
		tid, ok := app.Trait.ID()
		if !ok || suppressed[tid] || user.HasTrait(tid) {
			continue
		}
		user.Traits = append(user.Traits, app)
		changed = true
	}
	if changed {
		sort.SliceStable(user.Traits, func(i, j int) bool {
			return user.Traits[i].Trait.String() < user.Traits[j].Trait.String()
		})
	}
}
