package model

import "testing"

func TestParseShapeID(t *testing.T) {
	tests := []struct {
		raw  string
		want ShapeID
	}{
		{"smithy.api#String", ShapeID{Namespace: "smithy.api", Name: "String"}},
		{"com.example#Foo", ShapeID{Namespace: "com.example", Name: "Foo"}},
		{"com.example#Foo$bar", ShapeID{Namespace: "com.example", Name: "Foo", Member: "bar"}},
		{"a#B", ShapeID{Namespace: "a", Name: "B"}},
		{"a.b.c#D_2$e_f", ShapeID{Namespace: "a.b.c", Name: "D_2", Member: "e_f"}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseShapeID(tt.raw)
			if err != nil {
				t.Fatalf("ParseShapeID(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParseShapeID(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got.String() != tt.raw {
				t.Fatalf("String() = %q, want %q", got.String(), tt.raw)
			}
		})
	}
}

func TestParseShapeIDErrors(t *testing.T) {
	bad := []string{
		"",
		"Foo",
		"#Foo",
		"com.example#",
		"com.example#9Foo",
		"com.example#Foo$",
		"com.example#Foo$9x",
		"com..example#Foo",
		"com.example#Foo#Bar",
		"com example#Foo",
	}
	for _, raw := range bad {
		if _, err := ParseShapeID(raw); err == nil {
			t.Errorf("ParseShapeID(%q) succeeded, want error", raw)
		}
	}
}

func TestShapeIDMember(t *testing.T) {
	id := ShapeID{Namespace: "com.example", Name: "Foo"}
	if id.IsMember() {
		t.Fatal("shape ID reported as member")
	}
	m := id.WithMember("bar")
	if !m.IsMember() || m.String() != "com.example#Foo$bar" {
		t.Fatalf("WithMember = %v", m)
	}
	if m.WithoutMember() != id {
		t.Fatalf("WithoutMember = %v, want %v", m.WithoutMember(), id)
	}
}

func TestShapeIDLess(t *testing.T) {
	ordered := []ShapeID{
		{Namespace: "a", Name: "Z"},
		{Namespace: "b", Name: "A"},
		{Namespace: "b", Name: "A", Member: "m"},
		{Namespace: "b", Name: "B"},
	}
	for i := 0; i < len(ordered)-1; i++ {
		if !ordered[i].Less(ordered[i+1]) {
			t.Errorf("%v not less than %v", ordered[i], ordered[i+1])
		}
		if ordered[i+1].Less(ordered[i]) {
			t.Errorf("%v less than %v", ordered[i+1], ordered[i])
		}
	}
	if ordered[0].Less(ordered[0]) {
		t.Error("ID less than itself")
	}
}

func TestNewRef(t *testing.T) {
	abs, err := NewRef("com.example#Foo", "ignored.ns")
	if err != nil {
		t.Fatalf("NewRef absolute: %v", err)
	}
	id, ok := abs.ID()
	if !ok || id.String() != "com.example#Foo" {
		t.Fatalf("absolute ref resolved = %v, %v", id, ok)
	}

	rel, err := NewRef("Foo", "com.example")
	if err != nil {
		t.Fatalf("NewRef relative: %v", err)
	}
	if _, ok := rel.ID(); ok {
		t.Fatal("relative ref resolved at construction")
	}
	if rel.RelativeID().Name != "Foo" {
		t.Fatalf("RelativeID = %v", rel.RelativeID())
	}
	rel.SetResolved(ShapeID{Namespace: "com.example", Name: "Foo"})
	if rel.String() != "com.example#Foo" {
		t.Fatalf("String after resolution = %q", rel.String())
	}

	for _, raw := range []string{"", "9x", "a#b#c", "Foo$"} {
		if _, err := NewRef(raw, "com.example"); err == nil {
			t.Errorf("NewRef(%q) succeeded, want error", raw)
		}
	}
}
