package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"anvil/internal/diag"
	"anvil/internal/diagfmt"
	"anvil/internal/driver"
	"anvil/internal/project"
)

// globalOpts collects the persistent flags every subcommand consults.
type globalOpts struct {
	useColor       bool
	quiet          bool
	maxDiagnostics int
	jobs           int
}

func readGlobalOpts(cmd *cobra.Command) (globalOpts, error) {
	flags := cmd.Root().PersistentFlags()
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return globalOpts{}, err
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return globalOpts{}, err
	}
	maxDiagnostics, err := flags.GetInt("max-diagnostics")
	if err != nil {
		return globalOpts{}, err
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return globalOpts{}, err
	}
	return globalOpts{
		useColor:       colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stdout)),
		quiet:          quiet,
		maxDiagnostics: maxDiagnostics,
		jobs:           jobs,
	}, nil
}

// findManifest locates the project manifest from an optional path argument.
func findManifest(args []string) (*project.Manifest, error) {
	startDir := "."
	if len(args) > 0 {
		startDir = args[0]
	}
	m, ok, err := project.Load(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s found in %s or any parent directory", project.ManifestName, startDir)
	}
	return m, nil
}

// printDiagnostics renders the bag in the requested format and returns the
// number of error-severity findings.
func printDiagnostics(res *driver.Result, format string, g globalOpts) (int, error) {
	res.Bag.Sort()
	switch format {
	case "pretty":
		diagfmt.Pretty(os.Stdout, res.Bag, res.FileSet, diagfmt.PrettyOpts{
			Color:     g.useColor,
			Context:   true,
			ShowNotes: true,
			Max:       g.maxDiagnostics,
		})
	case "json":
		err := diagfmt.JSON(os.Stdout, res.Bag, res.FileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			Max:              g.maxDiagnostics,
		})
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown format %q (pretty|json)", format)
	}
	return res.Bag.Count(diag.SevError), nil
}
