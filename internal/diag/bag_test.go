package diag

import (
	"testing"

	"anvil/internal/source"
)

func TestBagLimit(t *testing.T) {
	b := NewBag(2)
	if !b.Add(NewError(SyntaxError, source.Span{}, "one")) {
		t.Fatal("first add dropped")
	}
	if !b.Add(NewError(SyntaxError, source.Span{}, "two")) {
		t.Fatal("second add dropped")
	}
	if b.Add(NewError(SyntaxError, source.Span{}, "three")) {
		t.Fatal("add past limit accepted")
	}
	if b.Len() != 2 || b.Cap() != 2 {
		t.Fatalf("Len=%d Cap=%d", b.Len(), b.Cap())
	}
}

func TestBagSeverityQueries(t *testing.T) {
	b := NewBag(10)
	b.Add(New(SevWarning, UnknownTrait, source.Span{}, "w"))
	if b.HasErrors() {
		t.Fatal("warning counted as error")
	}
	b.Add(NewError(UnresolvedShapeID, source.Span{}, "e"))
	if !b.HasErrors() {
		t.Fatal("error not detected")
	}
	if b.Count(SevWarning) != 1 || b.Count(SevError) != 1 {
		t.Fatalf("counts = %d/%d", b.Count(SevWarning), b.Count(SevError))
	}
}

func TestBagMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(SyntaxError, source.Span{}, "a"))
	other := NewBag(2)
	other.Add(NewError(SyntaxError, source.Span{}, "b"))
	other.Add(NewError(SyntaxError, source.Span{}, "c"))
	a.Merge(other)
	if a.Len() != 3 {
		t.Fatalf("Len after merge = %d", a.Len())
	}
	a.Merge(nil)
	if a.Len() != 3 {
		t.Fatal("nil merge changed the bag")
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	late := NewError(UnknownTrait, source.Span{File: 0, Start: 20}, "late")
	early := New(SevWarning, UnknownTrait, source.Span{File: 0, Start: 5}, "early")
	b.Add(late)
	b.Add(early)
	b.Add(late)
	b.Sort()
	b.Dedup()
	items := b.Items()
	if len(items) != 2 {
		t.Fatalf("Len after dedup = %d", len(items))
	}
	if items[0].Message != "early" || items[1].Message != "late" {
		t.Fatalf("order = %q, %q", items[0].Message, items[1].Message)
	}
}

func TestDiagnosticBuilders(t *testing.T) {
	d := NewError(UnknownTrait, source.Span{Start: 1, End: 2}, "msg").
		OnShape("com.example#Foo").
		WithNote(source.Span{Start: 3, End: 4}, "see also")
	if d.Shape != "com.example#Foo" {
		t.Fatalf("Shape = %q", d.Shape)
	}
	if len(d.Notes) != 1 || d.Notes[0].Msg != "see also" {
		t.Fatalf("Notes = %v", d.Notes)
	}
}

func TestCodeString(t *testing.T) {
	if got := UnresolvedShapeID.String(); got != "UnresolvedShapeId" {
		t.Fatalf("UnresolvedShapeID = %q", got)
	}
	if got := Code(9999).String(); got != "ANV9999" {
		t.Fatalf("unknown code = %q", got)
	}
}
