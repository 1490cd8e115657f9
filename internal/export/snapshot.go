package export

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"anvil/internal/model"
	"anvil/internal/source"
)

// Current schema version - increment when the snapshot format changes.
const snapshotSchemaVersion uint16 = 1

type refRecord struct {
	Rel    uint8
	Name   string
	Target string
}

type traitRecord struct {
	Trait string
	Value any
}

type shapeRecord struct {
	ID         string
	Kind       uint8
	Members    []string
	Target     string
	Refs       []refRecord
	Traits     []traitRecord
	Properties map[string]any
}

// Snapshot is the binary graph payload. Spans are not cached; a restored
// graph resolves every position to a zero span.
type Snapshot struct {
	Schema   uint16
	Shapes   []shapeRecord
	Metadata map[string]any
}

// WriteSnapshot serializes a frozen graph.
func WriteSnapshot(w io.Writer, g *model.Graph) error {
	snap := Snapshot{
		Schema: snapshotSchemaVersion,
		Shapes: make([]shapeRecord, 0, g.Len()),
	}
	for _, id := range g.IDs() {
		s, _ := g.Shape(id)
		rec := shapeRecord{
			ID:      id.String(),
			Kind:    uint8(s.Kind),
			Members: s.MemberNames,
		}
		if s.Kind == model.MemberKind {
			rec.Target = s.Target.String()
		}
		for _, r := range s.Refs {
			rec.Refs = append(rec.Refs, refRecord{
				Rel:    uint8(r.Rel),
				Name:   r.Name,
				Target: r.Target.String(),
			})
		}
		for _, app := range s.Traits {
			rec.Traits = append(rec.Traits, traitRecord{
				Trait: app.Trait.String(),
				Value: app.Value.ToAny(),
			})
		}
		if len(s.Properties) > 0 {
			rec.Properties = make(map[string]any, len(s.Properties))
			for k, v := range s.Properties {
				rec.Properties[k] = v.ToAny()
			}
		}
		snap.Shapes = append(snap.Shapes, rec)
	}
	if keys := g.MetadataKeys(); len(keys) > 0 {
		snap.Metadata = make(map[string]any, len(keys))
		for _, k := range keys {
			v, _ := g.Metadata(k)
			snap.Metadata[k] = v.ToAny()
		}
	}
	return msgpack.NewEncoder(w).Encode(&snap)
}

// ReadSnapshot restores a frozen graph from a snapshot. A schema mismatch is
// an error; callers treat it as a cache miss.
func ReadSnapshot(r io.Reader) (*model.Graph, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Schema != snapshotSchemaVersion {
		return nil, fmt.Errorf("snapshot schema %d, want %d", snap.Schema, snapshotSchemaVersion)
	}
	g := model.NewGraph(source.NewFileSet())
	for _, rec := range snap.Shapes {
		id, err := model.ParseShapeID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("snapshot shape %q: %w", rec.ID, err)
		}
		s := &model.Shape{
			ID:          id,
			Kind:        model.ShapeKind(rec.Kind),
			MemberNames: rec.Members,
		}
		if rec.Target != "" {
			tid, err := model.ParseShapeID(rec.Target)
			if err != nil {
				return nil, fmt.Errorf("snapshot member target %q: %w", rec.Target, err)
			}
			s.Target = model.AbsRef(tid)
		}
		for _, rr := range rec.Refs {
			tid, err := model.ParseShapeID(rr.Target)
			if err != nil {
				return nil, fmt.Errorf("snapshot binding target %q: %w", rr.Target, err)
			}
			s.Refs = append(s.Refs, model.Reference{
				Rel:    model.RelKind(rr.Rel),
				Name:   rr.Name,
				Target: model.AbsRef(tid),
			})
		}
		for _, tr := range rec.Traits {
			tid, err := model.ParseShapeID(tr.Trait)
			if err != nil {
				return nil, fmt.Errorf("snapshot trait %q: %w", tr.Trait, err)
			}
			value, err := model.FromAny(tr.Value)
			if err != nil {
				return nil, fmt.Errorf("snapshot trait %s value: %w", tr.Trait, err)
			}
			s.Traits = append(s.Traits, model.TraitApplication{
				Trait: model.AbsRef(tid),
				Value: value,
			})
		}
		if len(rec.Properties) > 0 {
			s.Properties = make(map[string]model.Node, len(rec.Properties))
			for k, v := range rec.Properties {
				value, err := model.FromAny(v)
				if err != nil {
					return nil, fmt.Errorf("snapshot property %q: %w", k, err)
				}
				s.Properties[k] = value
			}
		}
		g.Put(s)
	}
	for k, v := range snap.Metadata {
		value, err := model.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("snapshot metadata %q: %w", k, err)
		}
		if err := g.SetMetadata(k, value); err != nil {
			return nil, err
		}
	}
	g.Freeze()
	return g, nil
}
