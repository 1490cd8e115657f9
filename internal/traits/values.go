package traits

import (
	"fmt"
	"math"

	"anvil/internal/diag"
	"anvil/internal/model"
)

// valueChecker type-checks a trait application's value against the trait
// shape's own structure. Trait definitions are shapes, so their values are
// validated with the same structural rules as any document value.
type valueChecker struct {
	g     *model.Graph
	r     diag.Reporter
	on    string // shape the trait is applied to, for diagnostics
	trait model.ShapeID
}

func (c *valueChecker) fail(v model.Node, format string, args ...any) {
	c.r.Report(diag.NewError(diag.InvalidTraitValue, v.Span,
		fmt.Sprintf("invalid value for trait %s: %s", c.trait, fmt.Sprintf(format, args...))).
		OnShape(c.on))
}

// check validates v against the shape named by typeID. The value tree is
// finite, so recursion terminates even for recursive type definitions.
func (c *valueChecker) check(typeID model.ShapeID, v model.Node) {
	s, ok := c.g.Shape(typeID)
	if !ok {
		c.fail(v, "references undefined shape %s", typeID)
		return
	}
	switch s.Kind {
	case model.StringKind, model.BlobKind, model.TimestampKind:
		if v.Kind != model.StringNode {
			c.fail(v, "expected a string for %s, found %s", typeID, v.Kind)
		}
	case model.BooleanKind:
		if v.Kind != model.BoolNode {
			c.fail(v, "expected a boolean for %s, found %s", typeID, v.Kind)
		}
	case model.ByteKind, model.ShortKind, model.IntegerKind, model.LongKind,
		model.BigIntegerKind:
		if v.Kind != model.NumberNode || v.Number != math.Trunc(v.Number) {
			c.fail(v, "expected an integral number for %s", typeID)
		}
	case model.FloatKind, model.DoubleKind, model.BigDecimalKind:
		if v.Kind != model.NumberNode {
			c.fail(v, "expected a number for %s, found %s", typeID, v.Kind)
		}
	case model.DocumentKind:
		// Any value is a document.
	case model.EnumKind:
		c.checkEnum(s, v)
	case model.IntEnumKind:
		if v.Kind != model.NumberNode || v.Number != math.Trunc(v.Number) {
			c.fail(v, "expected an integral enum value for %s", typeID)
		}
	case model.ListKind, model.SetKind:
		c.checkCollection(s, v)
	case model.MapKind:
		c.checkMap(s, v)
	case model.StructureKind:
		c.checkStructure(s, v)
	case model.UnionKind:
		c.checkUnion(s, v)
	case model.MemberKind:
		if target, ok := s.Target.ID(); ok {
			c.check(target, v)
		}
	default:
		c.fail(v, "%s shapes cannot carry document values", s.Kind)
	}
}

// checkEnum accepts the member name or, when present, the member's enumValue
// string.
func (c *valueChecker) checkEnum(s *model.Shape, v model.Node) {
	if v.Kind != model.StringNode {
		c.fail(v, "expected an enum string for %s, found %s", s.ID, v.Kind)
		return
	}
	enumValueID := model.ShapeID{Namespace: model.PreludeNamespace, Name: "enumValue"}
	for _, m := range c.g.Members(s.ID) {
		if m.ID.Member == v.Str {
			return
		}
		if app, ok := m.Trait(enumValueID); ok && app.Value.Kind == model.StringNode && app.Value.Str == v.Str {
			return
		}
	}
	c.fail(v, "%q is not a value of enum %s", v.Str, s.ID)
}

func (c *valueChecker) checkCollection(s *model.Shape, v model.Node) {
	if v.Kind != model.ArrayNode {
		c.fail(v, "expected an array for %s, found %s", s.ID, v.Kind)
		return
	}
	member, ok := c.g.Shape(s.ID.WithMember("member"))
	if !ok {
		return
	}
	target, ok := member.Target.ID()
	if !ok {
		return
	}
	for i := range v.Items {
		c.check(target, v.Items[i])
	}
}

func (c *valueChecker) checkMap(s *model.Shape, v model.Node) {
	if v.Kind != model.ObjectNode {
		c.fail(v, "expected an object for %s, found %s", s.ID, v.Kind)
		return
	}
	value, ok := c.g.Shape(s.ID.WithMember("value"))
	if !ok {
		return
	}
	target, ok := value.Target.ID()
	if !ok {
		return
	}
	for i := range v.Fields {
		c.check(target, v.Fields[i].Value)
	}
}

func (c *valueChecker) checkStructure(s *model.Shape, v model.Node) {
	// Annotation traits are modelled as empty-ish structures; null stands in
	// for the empty object.
	if v.Kind == model.NullNode {
		empty := model.ObjectValue()
		empty.Span = v.Span
		v = empty
	}
	if v.Kind != model.ObjectNode {
		c.fail(v, "expected an object for %s, found %s", s.ID, v.Kind)
		return
	}
	requiredID := model.ShapeID{Namespace: model.PreludeNamespace, Name: "required"}
	members := make(map[string]*model.Shape, len(s.MemberNames))
	for _, m := range c.g.Members(s.ID) {
		members[m.ID.Member] = m
	}
	for i := range v.Fields {
		f := v.Fields[i]
		m, ok := members[f.Key]
		if !ok {
			c.fail(f.Value, "unknown member %q of %s", f.Key, s.ID)
			continue
		}
		if target, ok := m.Target.ID(); ok {
			c.check(target, f.Value)
		}
	}
	for _, name := range s.MemberNames {
		m := members[name]
		if m == nil || !m.HasTrait(requiredID) {
			continue
		}
		if _, ok := v.Get(name); !ok {
			c.fail(v, "missing required member %q of %s", name, s.ID)
		}
	}
}

func (c *valueChecker) checkUnion(s *model.Shape, v model.Node) {
	if v.Kind != model.ObjectNode || len(v.Fields) != 1 {
		c.fail(v, "expected an object with exactly one member for %s", s.ID)
		return
	}
	f := v.Fields[0]
	m, ok := c.g.Shape(s.ID.WithMember(f.Key))
	if !ok {
		c.fail(f.Value, "unknown variant %q of %s", f.Key, s.ID)
		return
	}
	if target, ok := m.Target.ID(); ok {
		c.check(target, f.Value)
	}
}
