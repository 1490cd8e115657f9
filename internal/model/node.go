package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"anvil/internal/source"
)

// NodeKind tags the variants of a structured document value.
type NodeKind uint8

const (
	NullNode NodeKind = iota
	BoolNode
	NumberNode
	StringNode
	ArrayNode
	ObjectNode
)

func (k NodeKind) String() string {
	switch k {
	case NullNode:
		return "null"
	case BoolNode:
		return "boolean"
	case NumberNode:
		return "number"
	case StringNode:
		return "string"
	case ArrayNode:
		return "array"
	case ObjectNode:
		return "object"
	}
	return "invalid"
}

// Node is an untyped document value: trait payloads, metadata entries and
// shape properties all use it. Spans point into the document the value was
// read from and are ignored by Equal.
type Node struct {
	Kind   NodeKind
	Span   source.Span
	Bool   bool
	Number float64
	Str    string
	Items  []Node
	Fields []Field
}

// Field is one ordered key/value entry of an object node.
type Field struct {
	Key     string
	KeySpan source.Span
	Value   Node
}

func NullValue() Node                  { return Node{Kind: NullNode} }
func BoolValue(v bool) Node            { return Node{Kind: BoolNode, Bool: v} }
func NumberValue(v float64) Node       { return Node{Kind: NumberNode, Number: v} }
func StringValue(v string) Node        { return Node{Kind: StringNode, Str: v} }
func ArrayValue(items ...Node) Node    { return Node{Kind: ArrayNode, Items: items} }
func ObjectValue(fields ...Field) Node { return Node{Kind: ObjectNode, Fields: fields} }

// Get returns the value of an object field by key.
func (n Node) Get(key string) (Node, bool) {
	if n.Kind != ObjectNode {
		return Node{}, false
	}
	for i := range n.Fields {
		if n.Fields[i].Key == key {
			return n.Fields[i].Value, true
		}
	}
	return Node{}, false
}

// GetString returns a string field, or def when absent.
func (n Node) GetString(key, def string) string {
	if v, ok := n.Get(key); ok && v.Kind == StringNode {
		return v.Str
	}
	return def
}

// Equal compares two nodes structurally, ignoring spans. Object field order
// is not significant.
func (n Node) Equal(other Node) bool {
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case NullNode:
		return true
	case BoolNode:
		return n.Bool == other.Bool
	case NumberNode:
		return n.Number == other.Number
	case StringNode:
		return n.Str == other.Str
	case ArrayNode:
		if len(n.Items) != len(other.Items) {
			return false
		}
		for i := range n.Items {
			if !n.Items[i].Equal(other.Items[i]) {
				return false
			}
		}
		return true
	case ObjectNode:
		if len(n.Fields) != len(other.Fields) {
			return false
		}
		for i := range n.Fields {
			v, ok := other.Get(n.Fields[i].Key)
			if !ok || !n.Fields[i].Value.Equal(v) {
				return false
			}
		}
		return true
	}
	return false
}

// Canon renders a canonical single-line form used for ordering and
// idempotency keys.
func (n Node) Canon() string {
	var sb strings.Builder
	n.canon(&sb)
	return sb.String()
}

func (n Node) canon(sb *strings.Builder) {
	switch n.Kind {
	case NullNode:
		sb.WriteString("null")
	case BoolNode:
		sb.WriteString(strconv.FormatBool(n.Bool))
	case NumberNode:
		sb.WriteString(strconv.FormatFloat(n.Number, 'g', -1, 64))
	case StringNode:
		sb.WriteString(strconv.Quote(n.Str))
	case ArrayNode:
		sb.WriteByte('[')
		for i := range n.Items {
			if i > 0 {
				sb.WriteByte(',')
			}
			n.Items[i].canon(sb)
		}
		sb.WriteByte(']')
	case ObjectNode:
		keys := make([]string, 0, len(n.Fields))
		for i := range n.Fields {
			keys = append(keys, n.Fields[i].Key)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v, _ := n.Get(k)
			v.canon(sb)
		}
		sb.WriteByte('}')
	}
}

func (n Node) String() string {
	return n.Canon()
}

// MergeAppend merges other into n for appendable (array/object valued)
// payloads. Arrays concatenate and are canonically re-ordered so that merge
// order across documents does not matter; objects take the union of keys and
// fail on unequal values for the same key.
func (n Node) MergeAppend(other Node) (Node, error) {
	switch {
	case n.Kind == ArrayNode && other.Kind == ArrayNode:
		items := make([]Node, 0, len(n.Items)+len(other.Items))
		items = append(items, n.Items...)
		items = append(items, other.Items...)
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Canon() < items[j].Canon()
		})
		// Drop exact duplicates so the merge is idempotent.
		out := items[:0]
		for i := range items {
			if i > 0 && items[i].Canon() == items[i-1].Canon() {
				continue
			}
			out = append(out, items[i])
		}
		return Node{Kind: ArrayNode, Span: n.Span, Items: out}, nil
	case n.Kind == ObjectNode && other.Kind == ObjectNode:
		merged := Node{Kind: ObjectNode, Span: n.Span, Fields: append([]Field(nil), n.Fields...)}
		for _, f := range other.Fields {
			existing, ok := merged.Get(f.Key)
			if !ok {
				merged.Fields = append(merged.Fields, f)
				continue
			}
			if !existing.Equal(f.Value) {
				return Node{}, fmt.Errorf("conflicting values for key %q", f.Key)
			}
		}
		return merged, nil
	default:
		return Node{}, fmt.Errorf("cannot merge %s with %s", n.Kind, other.Kind)
	}
}

// ToAny converts the node to plain Go values for serialization.
func (n Node) ToAny() any {
	switch n.Kind {
	case NullNode:
		return nil
	case BoolNode:
		return n.Bool
	case NumberNode:
		return n.Number
	case StringNode:
		return n.Str
	case ArrayNode:
		out := make([]any, len(n.Items))
		for i := range n.Items {
			out[i] = n.Items[i].ToAny()
		}
		return out
	case ObjectNode:
		out := make(map[string]any, len(n.Fields))
		for i := range n.Fields {
			out[n.Fields[i].Key] = n.Fields[i].Value.ToAny()
		}
		return out
	}
	return nil
}

// FromAny converts plain Go values (as produced by msgpack or encoding/json
// decoding) into a Node without spans.
func FromAny(v any) (Node, error) {
	switch t := v.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case string:
		return StringValue(t), nil
	case []any:
		items := make([]Node, len(t))
		for i := range t {
			n, err := FromAny(t[i])
			if err != nil {
				return Node{}, err
			}
			items[i] = n
		}
		return ArrayValue(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(t))
		for _, k := range keys {
			n, err := FromAny(t[k])
			if err != nil {
				return Node{}, err
			}
			fields = append(fields, Field{Key: k, Value: n})
		}
		return ObjectValue(fields...), nil
	default:
		return Node{}, fmt.Errorf("unsupported value type %T", v)
	}
}
