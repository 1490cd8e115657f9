package model

import (
	"fmt"
	"strings"
)

// PreludeNamespace is the reserved namespace that supplies built-in simple
// types and trait definitions. It is always present in an assembled graph.
const PreludeNamespace = "smithy.api"

// ShapeID identifies a shape: "namespace#name" or "namespace#name$member".
// Two IDs are equal iff all three components match exactly, case-sensitive.
type ShapeID struct {
	Namespace string
	Name      string
	Member    string
}

func (id ShapeID) String() string {
	var sb strings.Builder
	sb.Grow(len(id.Namespace) + len(id.Name) + len(id.Member) + 2)
	if id.Namespace != "" {
		sb.WriteString(id.Namespace)
		sb.WriteByte('#')
	}
	sb.WriteString(id.Name)
	if id.Member != "" {
		sb.WriteByte('$')
		sb.WriteString(id.Member)
	}
	return sb.String()
}

func (id ShapeID) IsZero() bool {
	return id == ShapeID{}
}

// IsMember reports whether the ID names a member rather than a shape.
func (id ShapeID) IsMember() bool {
	return id.Member != ""
}

// WithMember returns the ID of a member owned by this shape.
func (id ShapeID) WithMember(name string) ShapeID {
	id.Member = name
	return id
}

// WithoutMember returns the enclosing shape's ID.
func (id ShapeID) WithoutMember() ShapeID {
	id.Member = ""
	return id
}

// Less orders IDs lexicographically by namespace, name, member.
func (id ShapeID) Less(other ShapeID) bool {
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	if id.Name != other.Name {
		return id.Name < other.Name
	}
	return id.Member < other.Member
}

// ParseShapeID parses an absolute shape ID. The namespace is dot-separated
// identifier segments, the name and optional member are single identifiers.
func ParseShapeID(raw string) (ShapeID, error) {
	hash := strings.IndexByte(raw, '#')
	if hash < 0 {
		return ShapeID{}, fmt.Errorf("shape ID %q is not absolute: missing namespace", raw)
	}
	id, err := parseRelativeID(raw[hash+1:])
	if err != nil {
		return ShapeID{}, fmt.Errorf("invalid shape ID %q: %w", raw, err)
	}
	ns := raw[:hash]
	if !validNamespace(ns) {
		return ShapeID{}, fmt.Errorf("invalid shape ID %q: bad namespace %q", raw, ns)
	}
	id.Namespace = ns
	return id, nil
}

// parseRelativeID parses "name" or "name$member".
func parseRelativeID(raw string) (ShapeID, error) {
	name := raw
	member := ""
	if dollar := strings.IndexByte(raw, '$'); dollar >= 0 {
		name, member = raw[:dollar], raw[dollar+1:]
		if !validIdentifier(member) {
			return ShapeID{}, fmt.Errorf("bad member name %q", member)
		}
	}
	if !validIdentifier(name) {
		return ShapeID{}, fmt.Errorf("bad shape name %q", name)
	}
	return ShapeID{Name: name, Member: member}, nil
}

func validNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, seg := range strings.Split(ns, ".") {
		if !validIdentifier(seg) {
			return false
		}
	}
	return true
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
