package project

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWalksUpToManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "anvil.toml"), "[package]\nname = \"weather\"\n")
	nested := filepath.Join(root, "model", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, ok, err := Load(nested)
	if err != nil || !ok {
		t.Fatalf("Load: %v, %v", ok, err)
	}
	if m.Root != root {
		t.Fatalf("Root = %q, want %q", m.Root, root)
	}
	if m.Config.Package.Name != "weather" {
		t.Fatalf("Name = %q", m.Config.Package.Name)
	}
	if !slices.Equal(m.Config.Model.Sources, DefaultSources) {
		t.Fatalf("Sources = %v", m.Config.Model.Sources)
	}
	if m.OutDir() != filepath.Join(root, "build") {
		t.Fatalf("OutDir = %q", m.OutDir())
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, ok, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("manifest found in empty directory tree")
	}
}

func TestLoadRejectsBadManifests(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no package", "[model]\nsources = [\"*.json\"]\n", "missing [package]"},
		{"no name", "[package]\n", "missing [package].name"},
		{"blank name", "[package]\nname = \"  \"\n", "missing [package].name"},
		{"bad pattern", "[package]\nname = \"x\"\n[model]\nsources = [\"a[\"]\n", "invalid source pattern"},
		{"bad toml", "[package\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "anvil.toml"), tt.content)
			_, ok, err := Load(root)
			if !ok {
				t.Fatal("manifest not found")
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestSourcesExpansion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "anvil.toml"),
		"[package]\nname = \"weather\"\n[model]\nsources = [\"model/**/*.json\", \"extra/*.json\"]\n")
	writeFile(t, filepath.Join(root, "model", "a.json"), "{}")
	writeFile(t, filepath.Join(root, "model", "nested", "b.json"), "{}")
	writeFile(t, filepath.Join(root, "model", "readme.md"), "")
	writeFile(t, filepath.Join(root, "extra", "c.json"), "{}")

	m, _, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := m.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	want := []string{
		filepath.Join(root, "extra", "c.json"),
		filepath.Join(root, "model", "a.json"),
		filepath.Join(root, "model", "nested", "b.json"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Sources = %v, want %v", got, want)
	}
}

func TestSourcesDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "anvil.toml"),
		"[package]\nname = \"x\"\n[model]\nsources = [\"model/*.json\", \"model/**/*.json\"]\n")
	writeFile(t, filepath.Join(root, "model", "a.json"), "{}")

	m, _, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := m.Sources()
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Sources = %v", got)
	}
}

func TestOutDirAbsolute(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "artifacts")
	writeFile(t, filepath.Join(root, "anvil.toml"),
		"[package]\nname = \"x\"\n[build]\nout = \""+filepath.ToSlash(out)+"\"\n")
	m, _, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.OutDir() != out {
		t.Fatalf("OutDir = %q, want %q", m.OutDir(), out)
	}
}
