package export_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"anvil/internal/export"
	"anvil/internal/loader"
	"anvil/internal/model"
	"anvil/internal/source"
)

const weatherModel = `{
	"smithy": "2.0",
	"metadata": {"authors": ["ava"]},
	"shapes": {
		"com.weather#Weather": {
			"type": "service",
			"version": "2024-01-01",
			"operations": [{"target": "com.weather#GetForecast"}]
		},
		"com.weather#GetForecast": {
			"type": "operation",
			"input": {"target": "com.weather#GetForecastInput"},
			"output": {"target": "com.weather#GetForecastOutput"}
		},
		"com.weather#GetForecastInput": {
			"type": "structure",
			"members": {
				"city": {"target": "smithy.api#String", "traits": {"smithy.api#required": {}}}
			}
		},
		"com.weather#GetForecastOutput": {
			"type": "structure",
			"members": {"temperature": {"target": "smithy.api#Float"}},
			"traits": {"smithy.api#output": {}}
		},
		"com.weather#Tags": {
			"type": "list",
			"member": {"target": "smithy.api#String"}
		}
	}
}`

func buildGraph(t *testing.T, name, body string) *model.Graph {
	t.Helper()
	fs := source.NewFileSet()
	asm := loader.NewAssembler(fs, 100)
	asm.Add(loader.NewDispatcher(fs).LowerBytes(name, []byte(body), asm.Bag()))
	g, bag, err := asm.Assemble()
	if err != nil || bag.HasErrors() {
		t.Fatalf("Assemble: %v\n%v", err, bag.Items())
	}
	return g
}

func summarize(g *model.Graph) map[string]string {
	out := make(map[string]string)
	for _, id := range g.IDs() {
		if id.Namespace == model.PreludeNamespace {
			continue
		}
		s, _ := g.Shape(id)
		var sb strings.Builder
		sb.WriteString(s.Kind.String())
		if s.Kind == model.MemberKind {
			sb.WriteString(" ->" + s.Target.String())
		}
		for _, name := range s.MemberNames {
			sb.WriteString(" m:" + name)
		}
		for _, app := range s.SortedTraits() {
			sb.WriteString(fmt.Sprintf(" t:%s=%s", app.Trait, app.Value.Canon()))
		}
		for _, r := range s.Refs {
			sb.WriteString(fmt.Sprintf(" r:%s/%s=%s", r.Rel, r.Name, r.Target))
		}
		for k, v := range s.Properties {
			sb.WriteString(fmt.Sprintf(" p:%s=%s", k, v.Canon()))
		}
		out[id.String()] = sb.String()
	}
	return out
}

func TestWriteASTIsStable(t *testing.T) {
	g1 := buildGraph(t, "weather.json", weatherModel)
	var b1 bytes.Buffer
	if err := export.WriteAST(&b1, g1, export.ASTOpts{Indent: "  "}); err != nil {
		t.Fatalf("WriteAST: %v", err)
	}
	if strings.Contains(b1.String(), "smithy.api#String\": {") {
		t.Fatal("prelude shapes emitted without IncludePrelude")
	}

	// Loading the emitted document and emitting again must reproduce it
	// byte for byte.
	g2 := buildGraph(t, "round.json", b1.String())
	var b2 bytes.Buffer
	if err := export.WriteAST(&b2, g2, export.ASTOpts{Indent: "  "}); err != nil {
		t.Fatalf("WriteAST: %v", err)
	}
	if b1.String() != b2.String() {
		t.Fatalf("round trip changed the document:\n%s\n---\n%s", b1.String(), b2.String())
	}
	if diff := cmp.Diff(summarize(g1), summarize(g2)); diff != "" {
		t.Fatalf("round trip changed the graph (-orig +reloaded):\n%s", diff)
	}
}

func TestWriteASTIncludePrelude(t *testing.T) {
	g := buildGraph(t, "weather.json", weatherModel)
	var b bytes.Buffer
	if err := export.WriteAST(&b, g, export.ASTOpts{IncludePrelude: true}); err != nil {
		t.Fatalf("WriteAST: %v", err)
	}
	if !strings.Contains(b.String(), `"smithy.api#trait"`) {
		t.Fatal("prelude shapes missing despite IncludePrelude")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildGraph(t, "weather.json", weatherModel)
	var buf bytes.Buffer
	if err := export.WriteSnapshot(&buf, g); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	restored, err := export.ReadSnapshot(&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if !restored.Frozen() {
		t.Fatal("restored graph is not frozen")
	}
	if diff := cmp.Diff(summarize(g), summarize(restored)); diff != "" {
		t.Fatalf("snapshot changed the graph (-orig +restored):\n%s", diff)
	}
	authors, ok := restored.Metadata("authors")
	if !ok || authors.Canon() != `["ava"]` {
		t.Fatalf("metadata = %v, %v", authors, ok)
	}
	svc, ok := restored.Shape(model.ShapeID{Namespace: "com.weather", Name: "Weather"})
	if !ok {
		t.Fatal("service missing from restored graph")
	}
	if version, ok := svc.Property("version"); !ok || version.Str != "2024-01-01" {
		t.Fatalf("version = %v, %v", version, ok)
	}
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	if _, err := export.ReadSnapshot(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Fatal("garbage accepted as a snapshot")
	}
}
