package traits

import (
	"fmt"
	"sort"
	"strings"

	"anvil/internal/diag"
	"anvil/internal/model"
)

// Validate checks every trait application in the graph against its
// definition: known trait, structurally valid value, selector match,
// conflict sets and structural exclusivity. The whole graph is checked and
// every violation reported; nothing short-circuits.
func Validate(g *model.Graph, r diag.Reporter) {
	reg := BuildRegistry(g, r)
	v := &validator{g: g, r: r, reg: reg, seenConflicts: make(map[string]bool)}
	for _, id := range g.IDs() {
		s, _ := g.Shape(id)
		v.checkShape(s)
	}
	v.checkTargetExclusivity()
}

type validator struct {
	g             *model.Graph
	r             diag.Reporter
	reg           *Registry
	seenConflicts map[string]bool
}

func (v *validator) checkShape(s *model.Shape) {
	for i := range s.Traits {
		app := &s.Traits[i]
		tid, ok := app.Trait.ID()
		if !ok {
			continue // unresolved refs were already fatal upstream
		}
		def, known := v.reg.Get(tid)
		if !known {
			v.r.Report(diag.NewError(diag.UnknownTrait, app.Span,
				fmt.Sprintf("trait %s is applied to %s but is not defined as a trait", tid, s.ID)).
				OnShape(s.ID.String()))
			continue
		}
		checker := &valueChecker{g: v.g, r: v.r, on: s.ID.String(), trait: tid}
		checker.check(tid, app.Value)
		if !def.Selector.Matches(v.g, s.ID) {
			v.r.Report(diag.NewError(diag.TraitApplicationNotAllowed, app.Span,
				fmt.Sprintf("trait %s cannot be applied to %s: selector %q does not match",
					tid, s.ID, def.Selector)).
				OnShape(s.ID.String()))
		}
		v.checkConflicts(s, app, tid, def)
	}
	v.checkLocalOverrides(s)
	if s.Kind == model.StructureKind {
		v.checkMemberExclusivity(s)
	}
}

// checkConflicts reports co-occurrence of mutually exclusive traits exactly
// once per shape and pair, regardless of which definition declares the
// conflict.
func (v *validator) checkConflicts(s *model.Shape, app *model.TraitApplication, tid model.ShapeID, def *Definition) {
	for _, cid := range def.Conflicts {
		other, present := s.Trait(cid)
		if !present {
			continue
		}
		a, b := tid.String(), cid.String()
		if b < a {
			a, b = b, a
		}
		key := s.ID.String() + "|" + a + "|" + b
		if v.seenConflicts[key] {
			continue
		}
		v.seenConflicts[key] = true
		v.r.Report(diag.NewError(diag.ConflictingTraits, app.Span,
			fmt.Sprintf("traits %s and %s cannot both be applied to %s", a, b, s.ID)).
			OnShape(s.ID.String()).
			WithNote(other.Span, "conflicting trait applied here"))
	}
}

// checkLocalOverrides verifies that every localTraitOverrides entry of a
// mixin binding names a trait-defining shape.
func (v *validator) checkLocalOverrides(s *model.Shape) {
	for i := range s.Mixins {
		for _, ov := range s.Mixins[i].LocalTraitOverrides {
			tid, ok := ov.ID()
			if !ok {
				continue
			}
			if _, known := v.reg.Get(tid); !known {
				v.r.Report(diag.NewError(diag.UnknownTrait, s.Mixins[i].Span,
					fmt.Sprintf("local trait override %s does not name a trait definition", tid)).
					OnShape(s.ID.String()))
			}
		}
	}
}

// checkMemberExclusivity enforces structurallyExclusive: "member": at most
// one member of the structure may carry the trait. One diagnostic per trait
// references every offending member.
func (v *validator) checkMemberExclusivity(s *model.Shape) {
	carriers := make(map[model.ShapeID][]*model.Shape)
	for _, m := range v.g.Members(s.ID) {
		for i := range m.Traits {
			tid, ok := m.Traits[i].Trait.ID()
			if !ok {
				continue
			}
			if def, known := v.reg.Get(tid); known && def.Exclusivity == ExclusiveMember {
				carriers[tid] = append(carriers[tid], m)
			}
		}
	}
	v.reportExclusivity(carriers, func(tid model.ShapeID, members []*model.Shape) string {
		return fmt.Sprintf("only one member of %s may carry trait %s; found %d: %s",
			s.ID, tid, len(members), memberNames(members))
	})
}

// checkTargetExclusivity enforces structurallyExclusive: "target": at most
// one member across the model may target a shape carrying the trait.
func (v *validator) checkTargetExclusivity() {
	targeting := make(map[model.ShapeID][]*model.Shape) // target shape -> members
	for _, id := range v.g.IDs() {
		s, _ := v.g.Shape(id)
		if s.Kind != model.MemberKind {
			continue
		}
		if target, ok := s.Target.ID(); ok {
			targeting[target] = append(targeting[target], s)
		}
	}
	for _, id := range v.g.IDs() {
		s, _ := v.g.Shape(id)
		members := targeting[id]
		if len(members) < 2 {
			continue
		}
		carriers := make(map[model.ShapeID][]*model.Shape)
		for i := range s.Traits {
			tid, ok := s.Traits[i].Trait.ID()
			if !ok {
				continue
			}
			if def, known := v.reg.Get(tid); known && def.Exclusivity == ExclusiveTarget {
				carriers[tid] = members
			}
		}
		v.reportExclusivity(carriers, func(tid model.ShapeID, members []*model.Shape) string {
			return fmt.Sprintf("only one member may target %s because it carries trait %s; found %d: %s",
				id, tid, len(members), memberNames(members))
		})
	}
}

func (v *validator) reportExclusivity(carriers map[model.ShapeID][]*model.Shape, message func(model.ShapeID, []*model.Shape) string) {
	tids := make([]model.ShapeID, 0, len(carriers))
	for tid := range carriers {
		tids = append(tids, tid)
	}
	sort.Slice(tids, func(i, j int) bool { return tids[i].Less(tids[j]) })
	for _, tid := range tids {
		members := carriers[tid]
		if len(members) < 2 {
			continue
		}
		d := diag.NewError(diag.StructuralExclusivityViolation, members[0].Span,
			message(tid, members)).
			OnShape(members[0].ID.WithoutMember().String())
		for _, m := range members[1:] {
			d = d.WithNote(m.Span, fmt.Sprintf("also on %s", m.ID))
		}
		v.r.Report(d)
	}
}

func memberNames(members []*model.Shape) string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.ID.String()
	}
	return strings.Join(names, ", ")
}
