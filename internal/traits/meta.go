// Package traits interprets trait-defining shapes and validates every trait
// application in an assembled graph. Trait definitions are ordinary shapes
// carrying the reserved smithy.api#trait trait; their applications are
// validated with the same structural rules the definitions themselves
// describe.
package traits

import (
	"fmt"
	"strings"

	"anvil/internal/diag"
	"anvil/internal/model"
	"anvil/internal/selector"
)

// Exclusivity constrains how many siblings may carry or target a trait.
type Exclusivity uint8

const (
	ExclusiveNone Exclusivity = iota
	// ExclusiveMember: at most one member of a structure may carry the trait.
	ExclusiveMember
	// ExclusiveTarget: at most one member may target a shape carrying the trait.
	ExclusiveTarget
)

// BreakingChangeRule is one entry of a trait definition's breakingChanges
// list. The rules are carried for diff tooling and only validated
// structurally here.
type BreakingChangeRule struct {
	Path     string // JSON pointer into the trait value, "" for the whole value
	Change   string // presence | add | remove | update | any
	Severity diag.Severity
	Message  string
}

// Definition is the decoded meta-schema of one trait-defining shape.
type Definition struct {
	ID              model.ShapeID
	Selector        *selector.Selector
	Conflicts       []model.ShapeID
	Exclusivity     Exclusivity
	BreakingChanges []BreakingChangeRule
}

var matchAll = func() *selector.Selector {
	s, err := selector.Parse("*")
	if err != nil {
		panic(err)
	}
	return s
}()

var validChanges = map[string]bool{
	"presence": true,
	"add":      true,
	"remove":   true,
	"update":   true,
	"any":      true,
}

var severityNames = map[string]diag.Severity{
	"NOTE":    diag.SevNote,
	"WARNING": diag.SevWarning,
	"DANGER":  diag.SevDanger,
	"ERROR":   diag.SevError,
}

// decodeDefinition interprets the value of a smithy.api#trait application.
// Malformed pieces are reported and replaced by their defaults so a broken
// meta-value never silently disables validation of the rest of the model.
func decodeDefinition(s *model.Shape, app *model.TraitApplication, r diag.Reporter) *Definition {
	def := &Definition{ID: s.ID, Selector: matchAll}
	v := app.Value
	if v.Kind == model.NullNode {
		return def
	}
	if v.Kind != model.ObjectNode {
		r.Report(diag.NewError(diag.InvalidTraitValue, app.Span,
			fmt.Sprintf("value of %s must be an object, found %s", model.TraitTraitID, v.Kind)).
			OnShape(s.ID.String()))
		return def
	}

	if selText, ok := v.Get("selector"); ok {
		if selText.Kind != model.StringNode {
			r.Report(diag.NewError(diag.InvalidTraitValue, selText.Span,
				"trait selector must be a string").OnShape(s.ID.String()))
		} else if sel, err := selector.Parse(selText.Str); err != nil {
			r.Report(diag.NewError(diag.InvalidSelector, selText.Span, err.Error()).
				OnShape(s.ID.String()))
		} else {
			def.Selector = sel
		}
	}

	if conflicts, ok := v.Get("conflicts"); ok {
		if conflicts.Kind != model.ArrayNode {
			r.Report(diag.NewError(diag.InvalidTraitValue, conflicts.Span,
				"conflicts must be a list of trait references").OnShape(s.ID.String()))
		} else {
			for _, item := range conflicts.Items {
				if item.Kind != model.StringNode {
					r.Report(diag.NewError(diag.InvalidTraitValue, item.Span,
						"conflicts entries must be strings").OnShape(s.ID.String()))
					continue
				}
				cid, err := parseTraitRef(item.Str)
				if err != nil {
					r.Report(diag.NewError(diag.InvalidIdentifierSyntax, item.Span, err.Error()).
						OnShape(s.ID.String()))
					continue
				}
				def.Conflicts = append(def.Conflicts, cid)
			}
		}
	}

	if excl, ok := v.Get("structurallyExclusive"); ok {
		switch {
		case excl.Kind == model.StringNode && excl.Str == "member":
			def.Exclusivity = ExclusiveMember
		case excl.Kind == model.StringNode && excl.Str == "target":
			def.Exclusivity = ExclusiveTarget
		default:
			r.Report(diag.NewError(diag.InvalidTraitValue, excl.Span,
				`structurallyExclusive must be "member" or "target"`).OnShape(s.ID.String()))
		}
	}

	if rules, ok := v.Get("breakingChanges"); ok {
		def.BreakingChanges = decodeBreakingChanges(s, rules, r)
	}
	return def
}

func decodeBreakingChanges(s *model.Shape, rules model.Node, r diag.Reporter) []BreakingChangeRule {
	if rules.Kind != model.ArrayNode {
		r.Report(diag.NewError(diag.InvalidTraitValue, rules.Span,
			"breakingChanges must be a list of rules").OnShape(s.ID.String()))
		return nil
	}
	var out []BreakingChangeRule
	for _, item := range rules.Items {
		if item.Kind != model.ObjectNode {
			r.Report(diag.NewError(diag.InvalidTraitValue, item.Span,
				"breakingChanges entries must be objects").OnShape(s.ID.String()))
			continue
		}
		rule := BreakingChangeRule{
			Path:     item.GetString("path", ""),
			Change:   item.GetString("change", ""),
			Severity: diag.SevError,
			Message:  item.GetString("message", ""),
		}
		if !validChanges[rule.Change] {
			r.Report(diag.NewError(diag.InvalidTraitValue, item.Span,
				fmt.Sprintf("breakingChanges rule has invalid change %q", rule.Change)).
				OnShape(s.ID.String()))
			continue
		}
		if sev, ok := item.Get("severity"); ok {
			named, valid := severityNames[sev.Str]
			if sev.Kind != model.StringNode || !valid {
				r.Report(diag.NewError(diag.InvalidTraitValue, sev.Span,
					"breakingChanges severity must be NOTE, WARNING, DANGER or ERROR").
					OnShape(s.ID.String()))
				continue
			}
			rule.Severity = named
		}
		out = append(out, rule)
	}
	return out
}

// parseTraitRef resolves a textual trait reference; bare names belong to the
// prelude.
func parseTraitRef(raw string) (model.ShapeID, error) {
	if strings.IndexByte(raw, '#') < 0 {
		raw = model.PreludeNamespace + "#" + raw
	}
	return model.ParseShapeID(raw)
}
