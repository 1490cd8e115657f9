package loader

import (
	"fmt"
	"sort"

	"anvil/internal/diag"
	"anvil/internal/model"
	"anvil/internal/source"
)

// SourceError is a fatal per-document failure raised by a front-end before
// any operation of that document is applied.
type SourceError struct {
	Code diag.Code
	Span source.Span
	Msg  string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Diagnostic renders the error for the bag.
func (e *SourceError) Diagnostic() diag.Diagnostic {
	return diag.NewError(e.Code, e.Span, e.Msg)
}

type astVersion uint8

const (
	astV1 astVersion = 1
	astV2 astVersion = 2
)

// LowerJSON parses a JSON-AST document and lowers it into the operation
// stream. The top-level "smithy" member selects the schema version;
// unrecognized versions fail before any shape is read.
func LowerJSON(f *source.File) ([]Op, error) {
	doc, err := model.ParseJSON(f)
	if err != nil {
		return nil, &SourceError{Code: diag.SyntaxError, Span: source.Span{File: f.ID}, Msg: err.Error()}
	}
	if doc.Kind != model.ObjectNode {
		return nil, &SourceError{Code: diag.SyntaxError, Span: doc.Span,
			Msg: fmt.Sprintf("%s: model documents must be objects, found %s", f.Path, doc.Kind)}
	}
	versionNode, ok := doc.Get("smithy")
	if !ok || versionNode.Kind != model.StringNode {
		return nil, &SourceError{Code: diag.SyntaxError, Span: doc.Span,
			Msg: fmt.Sprintf("%s: missing top-level \"smithy\" version string", f.Path)}
	}
	var version astVersion
	switch versionNode.Str {
	case "1.0":
		version = astV1
	case "2.0":
		version = astV2
	default:
		return nil, &SourceError{Code: diag.UnsupportedModelVersion, Span: versionNode.Span,
			Msg: fmt.Sprintf("unsupported model version %q; expected \"1.0\" or \"2.0\"", versionNode.Str)}
	}
	l := &astLowerer{version: version, path: f.Path}
	if err := l.lower(doc); err != nil {
		return nil, err
	}
	return l.ops, nil
}

type astLowerer struct {
	version astVersion
	path    string
	ops     []Op
}

func (l *astLowerer) emit(op Op) {
	l.ops = append(l.ops, op)
}

func (l *astLowerer) fail(span source.Span, format string, args ...any) error {
	return &SourceError{Code: diag.SyntaxError, Span: span,
		Msg: fmt.Sprintf("%s: %s", l.path, fmt.Sprintf(format, args...))}
}

func (l *astLowerer) lower(doc model.Node) error {
	if metadata, ok := doc.Get("metadata"); ok {
		if metadata.Kind != model.ObjectNode {
			return l.fail(metadata.Span, "metadata must be an object")
		}
		for _, f := range sortedFields(metadata) {
			l.emit(SetMetadata{opSpan: At(f.Value.Span), Key: f.Key, Value: f.Value})
		}
	}
	shapes, ok := doc.Get("shapes")
	if !ok {
		return nil
	}
	if shapes.Kind != model.ObjectNode {
		return l.fail(shapes.Span, "shapes must be an object keyed by shape ID")
	}
	for _, f := range sortedFields(shapes) {
		if err := l.lowerShape(f); err != nil {
			return err
		}
	}
	return nil
}

// sortedFields orders object fields by key so lowering is deterministic and
// independent of document key order.
func sortedFields(n model.Node) []model.Field {
	out := append([]model.Field(nil), n.Fields...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (l *astLowerer) lowerShape(f model.Field) error {
	id, err := model.ParseShapeID(f.Key)
	if err != nil {
		return &SourceError{Code: diag.InvalidIdentifierSyntax, Span: f.KeySpan,
			Msg: fmt.Sprintf("%s: %v", l.path, err)}
	}
	body := f.Value
	if body.Kind != model.ObjectNode {
		return l.fail(body.Span, "definition of %s must be an object", id)
	}
	typeNode, ok := body.Get("type")
	if !ok || typeNode.Kind != model.StringNode {
		return l.fail(body.Span, "shape %s is missing its \"type\"", id)
	}

	// "apply" attaches traits to a shape defined elsewhere, possibly in
	// another document; it never defines anything.
	if typeNode.Str == "apply" {
		return l.lowerTraits(id, body)
	}
	if id.IsMember() {
		return &SourceError{Code: diag.InvalidIdentifierSyntax, Span: f.KeySpan,
			Msg: fmt.Sprintf("%s: member ID %s cannot be defined as a shape", l.path, id)}
	}

	kind, ok := model.KindByName(typeNode.Str)
	if !ok || kind == model.MemberKind {
		return l.fail(typeNode.Span, "unknown shape type %q", typeNode.Str)
	}
	if l.version == astV1 && (kind == model.EnumKind || kind == model.IntEnumKind) {
		return l.fail(typeNode.Span, "%s shapes require model version 2.0", kind)
	}
	l.emit(DefineShape{opSpan: At(f.KeySpan), ID: id, Kind: kind})

	if err := l.lowerMembers(id, kind, body); err != nil {
		return err
	}
	if err := l.lowerBindings(id, kind, body); err != nil {
		return err
	}
	if mixins, ok := body.Get("mixins"); ok {
		if l.version == astV1 {
			return l.fail(mixins.Span, "mixins require model version 2.0")
		}
		if err := l.lowerMixins(id, mixins); err != nil {
			return err
		}
	}
	return l.lowerTraits(id, body)
}

func (l *astLowerer) lowerMembers(id model.ShapeID, kind model.ShapeKind, body model.Node) error {
	// list/set/map spell their members as direct keys; aggregates use a
	// "members" object.
	switch kind {
	case model.ListKind, model.SetKind:
		return l.lowerNamedMember(id, "member", body, true)
	case model.MapKind:
		if err := l.lowerNamedMember(id, "key", body, true); err != nil {
			return err
		}
		return l.lowerNamedMember(id, "value", body, true)
	}
	if !kind.HasMembers() {
		return nil
	}
	members, ok := body.Get("members")
	if !ok {
		return nil
	}
	if members.Kind != model.ObjectNode {
		return l.fail(members.Span, "members of %s must be an object", id)
	}
	for _, f := range members.Fields { // declaration order matters here
		if err := l.lowerMember(id, f.Key, f.Value, f.KeySpan); err != nil {
			return err
		}
	}
	return nil
}

func (l *astLowerer) lowerNamedMember(id model.ShapeID, name string, body model.Node, required bool) error {
	ref, ok := body.Get(name)
	if !ok {
		if required {
			return l.fail(body.Span, "%s shape %s is missing %q", id, id, name)
		}
		return nil
	}
	return l.lowerMember(id, name, ref, ref.Span)
}

func (l *astLowerer) lowerMember(owner model.ShapeID, name string, def model.Node, span source.Span) error {
	target, err := l.shapeRef(def)
	if err != nil {
		return err
	}
	l.emit(AddMember{opSpan: At(span), Owner: owner, Name: name, Target: target})
	return l.lowerTraits(owner.WithMember(name), def)
}

// shapeRef reads {"target": "ns#Shape"} (or a bare string in 1.0 documents).
func (l *astLowerer) shapeRef(def model.Node) (model.Ref, error) {
	raw := def
	if def.Kind == model.ObjectNode {
		t, ok := def.Get("target")
		if !ok {
			return model.Ref{}, l.fail(def.Span, "shape reference is missing \"target\"")
		}
		raw = t
	}
	if raw.Kind != model.StringNode {
		return model.Ref{}, l.fail(raw.Span, "shape reference target must be a string")
	}
	ref, err := model.NewRef(raw.Str, "")
	if err != nil {
		return model.Ref{}, &SourceError{Code: diag.InvalidIdentifierSyntax, Span: raw.Span,
			Msg: fmt.Sprintf("%s: %v", l.path, err)}
	}
	// JSON-AST documents always spell references absolute; relative IDs are
	// a textual-IDL affordance.
	if _, ok := ref.ID(); !ok {
		return model.Ref{}, &SourceError{Code: diag.InvalidIdentifierSyntax, Span: raw.Span,
			Msg: fmt.Sprintf("%s: reference %q must be absolute", l.path, raw.Str)}
	}
	return ref, nil
}

var serviceBindings = []struct {
	key  string
	rel  model.RelKind
	list bool
}{
	{"operations", model.RelOperation, true},
	{"resources", model.RelResource, true},
	{"errors", model.RelError, true},
}

var resourceBindings = []struct {
	key  string
	rel  model.RelKind
	list bool
}{
	{"create", model.RelCreate, false},
	{"read", model.RelRead, false},
	{"update", model.RelUpdate, false},
	{"delete", model.RelDelete, false},
	{"list", model.RelList, false},
	{"put", model.RelPut, false},
	{"operations", model.RelOperation, true},
	{"collectionOperations", model.RelCollectionOperation, true},
	{"resources", model.RelResource, true},
}

var operationBindings = []struct {
	key  string
	rel  model.RelKind
	list bool
}{
	{"input", model.RelInput, false},
	{"output", model.RelOutput, false},
	{"errors", model.RelError, true},
}

func (l *astLowerer) lowerBindings(id model.ShapeID, kind model.ShapeKind, body model.Node) error {
	var bindings []struct {
		key  string
		rel  model.RelKind
		list bool
	}
	switch kind {
	case model.ServiceKind:
		bindings = serviceBindings
		if version, ok := body.Get("version"); ok {
			l.emit(SetProperty{opSpan: At(version.Span), Shape: id, Name: "version", Value: version})
		}
	case model.ResourceKind:
		bindings = resourceBindings
		if identifiers, ok := body.Get("identifiers"); ok {
			if identifiers.Kind != model.ObjectNode {
				return l.fail(identifiers.Span, "identifiers of %s must be an object", id)
			}
			for _, f := range sortedFields(identifiers) {
				target, err := l.shapeRef(f.Value)
				if err != nil {
					return err
				}
				l.emit(BindReference{opSpan: At(f.Value.Span), Owner: id,
					Rel: model.RelIdentifier, Name: f.Key, Target: target})
			}
		}
	case model.OperationKind:
		bindings = operationBindings
	default:
		return nil
	}

	for _, b := range bindings {
		node, ok := body.Get(b.key)
		if !ok {
			continue
		}
		if !b.list {
			target, err := l.shapeRef(node)
			if err != nil {
				return err
			}
			l.emit(BindReference{opSpan: At(node.Span), Owner: id, Rel: b.rel,
				Name: b.key, Target: target})
			continue
		}
		if node.Kind != model.ArrayNode {
			return l.fail(node.Span, "%q of %s must be an array", b.key, id)
		}
		for i := range node.Items {
			target, err := l.shapeRef(node.Items[i])
			if err != nil {
				return err
			}
			// Bindings of list kinds are named by their target so that
			// merging across documents unions rather than collides.
			l.emit(BindReference{opSpan: At(node.Items[i].Span), Owner: id, Rel: b.rel,
				Name: target.Raw, Target: target})
		}
	}
	return nil
}

func (l *astLowerer) lowerMixins(id model.ShapeID, mixins model.Node) error {
	if mixins.Kind != model.ArrayNode {
		return l.fail(mixins.Span, "mixins of %s must be an array", id)
	}
	for i := range mixins.Items {
		item := mixins.Items[i]
		target, err := l.shapeRef(item)
		if err != nil {
			return err
		}
		var overrides []model.Ref
		if locals, ok := item.Get("localTraits"); ok {
			if locals.Kind != model.ArrayNode {
				return l.fail(locals.Span, "localTraits must be an array of trait IDs")
			}
			for j := range locals.Items {
				lt := locals.Items[j]
				if lt.Kind != model.StringNode {
					return l.fail(lt.Span, "localTraits entries must be strings")
				}
				ref, err := model.NewRef(lt.Str, model.PreludeNamespace)
				if err != nil {
					return &SourceError{Code: diag.InvalidIdentifierSyntax, Span: lt.Span,
						Msg: fmt.Sprintf("%s: %v", l.path, err)}
				}
				overrides = append(overrides, ref)
			}
		}
		l.emit(ApplyMixin{opSpan: At(item.Span), Shape: id, Mixin: target,
			LocalTraitOverrides: overrides})
	}
	return nil
}

func (l *astLowerer) lowerTraits(target model.ShapeID, body model.Node) error {
	traits, ok := body.Get("traits")
	if !ok {
		return nil
	}
	if traits.Kind != model.ObjectNode {
		return l.fail(traits.Span, "traits of %s must be an object keyed by trait ID", target)
	}
	for _, f := range sortedFields(traits) {
		ref, err := model.NewRef(f.Key, "")
		if err != nil {
			return &SourceError{Code: diag.InvalidIdentifierSyntax, Span: f.KeySpan,
				Msg: fmt.Sprintf("%s: %v", l.path, err)}
		}
		if _, ok := ref.ID(); !ok {
			return &SourceError{Code: diag.InvalidIdentifierSyntax, Span: f.KeySpan,
				Msg: fmt.Sprintf("%s: trait ID %q must be absolute", l.path, f.Key)}
		}
		l.emit(AddTrait{opSpan: At(f.KeySpan), Target: target, Trait: ref, Value: f.Value})
	}
	return nil
}
