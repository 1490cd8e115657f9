// Package project reads the anvil.toml manifest that names a model build:
// which documents feed the assembly and where artifacts go.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// Manifest is a located, parsed anvil.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the TOML document.
type Config struct {
	Package PackageConfig `toml:"package"`
	Model   ModelConfig   `toml:"model"`
	Build   BuildConfig   `toml:"build"`
}

type PackageConfig struct {
	Name string `toml:"name"`
}

type ModelConfig struct {
	// Sources are doublestar glob patterns relative to the project root.
	Sources []string `toml:"sources"`
}

type BuildConfig struct {
	Out string `toml:"out"`
}

// DefaultSources is used when [model].sources is absent.
var DefaultSources = []string{"model/**/*.json"}

const defaultOut = "build"

// Load finds and parses the manifest by walking up from startDir.
func Load(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return Config{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return Config{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("model", "sources") {
		cfg.Model.Sources = append([]string(nil), DefaultSources...)
	}
	if strings.TrimSpace(cfg.Build.Out) == "" {
		cfg.Build.Out = defaultOut
	}
	for _, pattern := range cfg.Model.Sources {
		if !doublestar.ValidatePattern(pattern) {
			return Config{}, fmt.Errorf("%s: invalid source pattern %q", path, pattern)
		}
	}
	return cfg, nil
}

// Sources expands the manifest's glob patterns against the project root and
// returns the matched files as absolute paths, sorted and deduplicated.
func (m *Manifest) Sources() ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	fsys := os.DirFS(m.Root)
	for _, pattern := range m.Config.Model.Sources {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("source pattern %q: %w", pattern, err)
		}
		for _, rel := range matches {
			abs := filepath.Join(m.Root, filepath.FromSlash(rel))
			info, err := os.Stat(abs)
			if err != nil || info.IsDir() {
				continue
			}
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}
			out = append(out, abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// OutDir returns the artifact directory as an absolute path.
func (m *Manifest) OutDir() string {
	if filepath.IsAbs(m.Config.Build.Out) {
		return m.Config.Build.Out
	}
	return filepath.Join(m.Root, m.Config.Build.Out)
}
