package model

import (
	"strings"
	"testing"

	"anvil/internal/source"
)

func parseDoc(t *testing.T, content string) Node {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("doc.json", []byte(content))
	n, err := ParseJSON(fs.Get(id))
	if err != nil {
		t.Fatalf("ParseJSON(%q): %v", content, err)
	}
	return n
}

func TestParseJSONKinds(t *testing.T) {
	n := parseDoc(t, `{"a": 1, "b": [true, null], "c": "x"}`)
	if n.Kind != ObjectNode || len(n.Fields) != 3 {
		t.Fatalf("top level = %v", n)
	}
	a, _ := n.Get("a")
	if a.Kind != NumberNode || a.Number != 1 {
		t.Fatalf("a = %v", a)
	}
	b, _ := n.Get("b")
	if b.Kind != ArrayNode || len(b.Items) != 2 {
		t.Fatalf("b = %v", b)
	}
	if b.Items[0].Kind != BoolNode || !b.Items[0].Bool {
		t.Fatalf("b[0] = %v", b.Items[0])
	}
	if b.Items[1].Kind != NullNode {
		t.Fatalf("b[1] = %v", b.Items[1])
	}
	c, _ := n.Get("c")
	if c.Kind != StringNode || c.Str != "x" {
		t.Fatalf("c = %v", c)
	}
}

func TestParseJSONSpans(t *testing.T) {
	content := `{"key": "value"}`
	n := parseDoc(t, content)
	v, ok := n.Get("key")
	if !ok {
		t.Fatal("key missing")
	}
	if v.Span.Empty() {
		t.Fatal("value span is empty")
	}
	got := content[v.Span.Start:v.Span.End]
	if !strings.Contains(got, "value") {
		t.Fatalf("value span covers %q", got)
	}
}

func TestParseJSONErrors(t *testing.T) {
	fs := source.NewFileSet()
	for _, content := range []string{`{`, `{"a": }`, `{} trailing`, ``} {
		id := fs.AddVirtual("bad.json", []byte(content))
		if _, err := ParseJSON(fs.Get(id)); err == nil {
			t.Errorf("ParseJSON(%q) succeeded, want error", content)
		}
	}
}

func TestNodeEqual(t *testing.T) {
	a := ObjectValue(
		Field{Key: "x", Value: NumberValue(1)},
		Field{Key: "y", Value: StringValue("s")},
	)
	b := ObjectValue(
		Field{Key: "y", Value: StringValue("s")},
		Field{Key: "x", Value: NumberValue(1)},
	)
	if !a.Equal(b) {
		t.Fatal("field order affected equality")
	}
	c := ObjectValue(
		Field{Key: "x", Value: NumberValue(2)},
		Field{Key: "y", Value: StringValue("s")},
	)
	if a.Equal(c) {
		t.Fatal("unequal objects compared equal")
	}
	if StringValue("1").Equal(NumberValue(1)) {
		t.Fatal("string equal to number")
	}
	if !ArrayValue(BoolValue(true)).Equal(ArrayValue(BoolValue(true))) {
		t.Fatal("equal arrays compared unequal")
	}
	if ArrayValue(BoolValue(true)).Equal(ArrayValue()) {
		t.Fatal("arrays of different length compared equal")
	}
}

func TestMergeAppendArrays(t *testing.T) {
	a := ArrayValue(StringValue("b"), StringValue("a"))
	b := ArrayValue(StringValue("c"), StringValue("a"))

	ab, err := a.MergeAppend(b)
	if err != nil {
		t.Fatalf("MergeAppend: %v", err)
	}
	ba, err := b.MergeAppend(a)
	if err != nil {
		t.Fatalf("MergeAppend reversed: %v", err)
	}
	want := `["a","b","c"]`
	if ab.Canon() != want || ba.Canon() != want {
		t.Fatalf("merge = %s / %s, want %s", ab.Canon(), ba.Canon(), want)
	}

	again, err := ab.MergeAppend(b)
	if err != nil {
		t.Fatalf("MergeAppend idempotency: %v", err)
	}
	if again.Canon() != want {
		t.Fatalf("repeated merge = %s, want %s", again.Canon(), want)
	}
}

func TestMergeAppendObjects(t *testing.T) {
	a := ObjectValue(Field{Key: "x", Value: NumberValue(1)})
	b := ObjectValue(Field{Key: "y", Value: NumberValue(2)})
	merged, err := a.MergeAppend(b)
	if err != nil {
		t.Fatalf("MergeAppend: %v", err)
	}
	if merged.Canon() != `{"x":1,"y":2}` {
		t.Fatalf("merged = %s", merged.Canon())
	}

	conflict := ObjectValue(Field{Key: "x", Value: NumberValue(3)})
	if _, err := a.MergeAppend(conflict); err == nil {
		t.Fatal("conflicting keys merged without error")
	}
}

func TestMergeAppendKindMismatch(t *testing.T) {
	if _, err := StringValue("a").MergeAppend(StringValue("b")); err == nil {
		t.Fatal("scalar merge succeeded")
	}
	if _, err := ArrayValue().MergeAppend(ObjectValue()); err == nil {
		t.Fatal("array/object merge succeeded")
	}
}

func TestFromAnyRoundTrip(t *testing.T) {
	n := ObjectValue(
		Field{Key: "list", Value: ArrayValue(NumberValue(1), StringValue("two"))},
		Field{Key: "nested", Value: ObjectValue(Field{Key: "ok", Value: BoolValue(true)})},
		Field{Key: "none", Value: NullValue()},
	)
	back, err := FromAny(n.ToAny())
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	if !back.Equal(n) {
		t.Fatalf("round trip = %s, want %s", back.Canon(), n.Canon())
	}

	if _, err := FromAny(struct{}{}); err == nil {
		t.Fatal("FromAny accepted a struct")
	}
}

func TestCanonSortsObjectKeys(t *testing.T) {
	n := ObjectValue(
		Field{Key: "b", Value: NumberValue(2)},
		Field{Key: "a", Value: NumberValue(1)},
	)
	if got := n.Canon(); got != `{"a":1,"b":2}` {
		t.Fatalf("Canon = %s", got)
	}
}
