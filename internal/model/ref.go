package model

import (
	"fmt"
	"strings"
)

// Ref is a possibly-relative reference to a shape. Absolute references
// resolve at construction; relative ones carry the namespace of the document
// that declared them and stay deferred until the graph is complete, when they
// resolve against that namespace first and the prelude second.
type Ref struct {
	Raw     string
	Context string

	id       ShapeID
	resolved bool
}

// NewRef parses raw as a reference declared inside namespace context.
// It fails only on grammar violations; an unresolved relative reference is
// not an error here.
func NewRef(raw, context string) (Ref, error) {
	r := Ref{Raw: raw, Context: context}
	if strings.IndexByte(raw, '#') >= 0 {
		id, err := ParseShapeID(raw)
		if err != nil {
			return Ref{}, err
		}
		r.id = id
		r.resolved = true
		return r, nil
	}
	if _, err := parseRelativeID(raw); err != nil {
		return Ref{}, fmt.Errorf("invalid shape reference %q: %w", raw, err)
	}
	return r, nil
}

// AbsRef wraps an already-resolved ID.
func AbsRef(id ShapeID) Ref {
	return Ref{Raw: id.String(), id: id, resolved: true}
}

// MustRef is a test and prelude helper; it panics on grammar errors.
func MustRef(raw, context string) Ref {
	r, err := NewRef(raw, context)
	if err != nil {
		panic(err)
	}
	return r
}

// ID returns the resolved target, if resolution has happened.
func (r Ref) ID() (ShapeID, bool) {
	return r.id, r.resolved
}

// SetResolved records the resolution result.
func (r *Ref) SetResolved(id ShapeID) {
	r.id = id
	r.resolved = true
}

// RelativeID returns the relative name parsed from Raw; valid only for
// unresolved refs.
func (r Ref) RelativeID() ShapeID {
	id, _ := parseRelativeID(r.Raw)
	return id
}

func (r Ref) String() string {
	if r.resolved {
		return r.id.String()
	}
	return r.Raw
}
