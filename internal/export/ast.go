// Package export serializes assembled shape graphs: a JSON document in the
// interchange format models are loaded from, and a compact binary snapshot
// for caching.
package export

import (
	"encoding/json"
	"io"

	"anvil/internal/model"
)

// ASTOpts configures the JSON document writer.
type ASTOpts struct {
	// IncludePrelude emits the smithy.api shapes alongside user shapes.
	IncludePrelude bool
	Indent         string
}

// WriteAST writes the graph as a version 2.0 JSON document. Output is
// deterministic: shapes, members and metadata are keyed objects and the JSON
// encoder orders object keys.
func WriteAST(w io.Writer, g *model.Graph, opts ASTOpts) error {
	doc := map[string]any{
		"smithy": "2.0",
	}
	if keys := g.MetadataKeys(); len(keys) > 0 {
		metadata := make(map[string]any, len(keys))
		for _, k := range keys {
			v, _ := g.Metadata(k)
			metadata[k] = v.ToAny()
		}
		doc["metadata"] = metadata
	}

	shapes := make(map[string]any)
	for _, id := range g.IDs() {
		if id.IsMember() {
			continue
		}
		if id.Namespace == model.PreludeNamespace && !opts.IncludePrelude {
			continue
		}
		s, _ := g.Shape(id)
		shapes[id.String()] = encodeShape(g, s)
	}
	doc["shapes"] = shapes

	enc := json.NewEncoder(w)
	if opts.Indent != "" {
		enc.SetIndent("", opts.Indent)
	}
	return enc.Encode(doc)
}

func encodeShape(g *model.Graph, s *model.Shape) map[string]any {
	out := map[string]any{
		"type": s.Kind.String(),
	}
	switch s.Kind {
	case model.ListKind, model.SetKind:
		if m, ok := g.Shape(s.ID.WithMember("member")); ok {
			out["member"] = encodeMember(g, m)
		}
	case model.MapKind:
		if m, ok := g.Shape(s.ID.WithMember("key")); ok {
			out["key"] = encodeMember(g, m)
		}
		if m, ok := g.Shape(s.ID.WithMember("value")); ok {
			out["value"] = encodeMember(g, m)
		}
	case model.StructureKind, model.UnionKind, model.EnumKind, model.IntEnumKind:
		members := make(map[string]any, len(s.MemberNames))
		for _, m := range g.Members(s.ID) {
			members[m.ID.Member] = encodeMember(g, m)
		}
		out["members"] = members
	case model.ServiceKind:
		if v, ok := s.Property("version"); ok {
			out["version"] = v.ToAny()
		}
		encodeRefList(out, s, model.RelOperation, "operations")
		encodeRefList(out, s, model.RelResource, "resources")
		encodeRefList(out, s, model.RelError, "errors")
	case model.ResourceKind:
		if ids := s.RefsOf(model.RelIdentifier); len(ids) > 0 {
			identifiers := make(map[string]any, len(ids))
			for _, r := range ids {
				identifiers[r.Name] = refTarget(r.Target)
			}
			out["identifiers"] = identifiers
		}
		encodeRefSingle(out, s, model.RelCreate, "create")
		encodeRefSingle(out, s, model.RelRead, "read")
		encodeRefSingle(out, s, model.RelUpdate, "update")
		encodeRefSingle(out, s, model.RelDelete, "delete")
		encodeRefSingle(out, s, model.RelList, "list")
		encodeRefSingle(out, s, model.RelPut, "put")
		encodeRefList(out, s, model.RelOperation, "operations")
		encodeRefList(out, s, model.RelCollectionOperation, "collectionOperations")
		encodeRefList(out, s, model.RelResource, "resources")
	case model.OperationKind:
		encodeRefSingle(out, s, model.RelInput, "input")
		encodeRefSingle(out, s, model.RelOutput, "output")
		encodeRefList(out, s, model.RelError, "errors")
	}
	if traits := encodeTraits(s); traits != nil {
		out["traits"] = traits
	}
	return out
}

func encodeMember(g *model.Graph, m *model.Shape) map[string]any {
	_ = g
	out := map[string]any{
		"target": m.Target.String(),
	}
	if traits := encodeTraits(m); traits != nil {
		out["traits"] = traits
	}
	return out
}

func encodeTraits(s *model.Shape) map[string]any {
	if len(s.Traits) == 0 {
		return nil
	}
	out := make(map[string]any, len(s.Traits))
	for _, app := range s.SortedTraits() {
		out[app.Trait.String()] = app.Value.ToAny()
	}
	return out
}

func encodeRefSingle(out map[string]any, s *model.Shape, rel model.RelKind, key string) {
	refs := s.RefsOf(rel)
	if len(refs) == 0 {
		return
	}
	out[key] = refTarget(refs[0].Target)
}

func encodeRefList(out map[string]any, s *model.Shape, rel model.RelKind, key string) {
	refs := s.RefsOf(rel)
	if len(refs) == 0 {
		return
	}
	list := make([]any, 0, len(refs))
	for _, r := range refs {
		list = append(list, refTarget(r.Target))
	}
	out[key] = list
}

func refTarget(r model.Ref) map[string]any {
	return map[string]any{"target": r.String()}
}
