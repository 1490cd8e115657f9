package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"anvil/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new anvil project",
	Long: `Initialize a new anvil project by creating a project manifest (anvil.toml)
and a starter model document (model/main.json). If [path|name] is omitted,
initializes the current directory. If a non-existing name is provided, a
directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	name := strings.TrimSpace(filepath.Base(target))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "anvil-project"
	}

	manifestPath := filepath.Join(target, project.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	if err := os.WriteFile(manifestPath, []byte(buildDefaultManifest(name)), 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	modelPath := filepath.Join(target, "model", "main.json")
	createdModel := false
	if _, err := os.Stat(modelPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(modelPath), 0o755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
		if err := os.WriteFile(modelPath, []byte(defaultModelJSON(name)), 0o600); err != nil {
			return fmt.Errorf("failed to write model/main.json: %w", err)
		}
		createdModel = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(os.Stdout, "Initialized anvil project in %s\n", rel)
	fmt.Fprintf(os.Stdout, "  - %s\n", project.ManifestName)
	if createdModel {
		fmt.Fprintf(os.Stdout, "  - model/main.json\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - model/main.json (existing)\n")
	}
	return nil
}

func buildDefaultManifest(name string) string {
	return fmt.Sprintf(`# Anvil project manifest
[package]
name = "%s"

[model]
sources = ["model/**/*.json"]

[build]
out = "build"
`, name)
}

func defaultModelJSON(name string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if ns == "" || (ns[0] >= '0' && ns[0] <= '9') {
		ns = "example"
	}
	return fmt.Sprintf(`{
    "smithy": "2.0",
    "shapes": {
        "%[1]s#Greeting": {
            "type": "structure",
            "members": {
                "message": {
                    "target": "smithy.api#String",
                    "traits": {
                        "smithy.api#required": {}
                    }
                }
            },
            "traits": {
                "smithy.api#documentation": "A starter shape. Replace it with your model."
            }
        }
    }
}
`, ns)
}
