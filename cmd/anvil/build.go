package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"anvil/internal/driver"
	"anvil/internal/export"
	"anvil/internal/loader"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [path]",
	Short: "Assemble and validate a model project",
	Long: `Assemble a model project using anvil.toml as the source definition.
A clean build writes the merged model and a binary snapshot to [build].out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("format", "pretty", "diagnostic output format (pretty|json)")
	buildCmd.Flags().Bool("no-cache", false, "ignore and do not update the graph cache")
	buildCmd.Flags().Bool("include-prelude", false, "emit prelude shapes in the merged model")
	buildCmd.Flags().Bool("dry-run", false, "assemble and validate without writing artifacts")
}

func runBuild(cmd *cobra.Command, args []string) error {
	g, err := readGlobalOpts(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	includePrelude, err := cmd.Flags().GetBool("include-prelude")
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	manifest, err := findManifest(args)
	if err != nil {
		return err
	}

	var cache *driver.DiskCache
	if !noCache {
		// A cache failure never fails the build.
		cache, _ = driver.OpenDiskCache("anvil")
	}

	res, err := driver.LoadProject(cmd.Context(), manifest, cache, driver.Options{
		MaxDiagnostics: g.maxDiagnostics,
		Jobs:           g.jobs,
	})
	if err != nil && !errors.Is(err, loader.ErrAssembly) {
		return err
	}

	cmd.SilenceUsage = true
	errCount, perr := printDiagnostics(&res.Result, format, g)
	if perr != nil {
		return perr
	}
	if res.Graph == nil || errCount > 0 {
		return fmt.Errorf("build failed with %d error(s)", errCount)
	}

	if dryRun {
		if !g.quiet {
			fmt.Fprintf(os.Stdout, "validated %d source(s), %d shape(s)\n", len(res.Sources), res.Graph.Len())
		}
		return nil
	}

	outDir := manifest.OutDir()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}
	modelPath := filepath.Join(outDir, "model.json")
	mf, err := os.Create(modelPath)
	if err != nil {
		return err
	}
	if err := export.WriteAST(mf, res.Graph, export.ASTOpts{
		IncludePrelude: includePrelude,
		Indent:         "    ",
	}); err != nil {
		mf.Close()
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}

	snapPath := filepath.Join(outDir, "model.mp")
	sf, err := os.Create(snapPath)
	if err != nil {
		return err
	}
	if err := export.WriteSnapshot(sf, res.Graph); err != nil {
		sf.Close()
		return err
	}
	if err := sf.Close(); err != nil {
		return err
	}

	if !g.quiet {
		fmt.Fprintf(os.Stdout, "wrote %s\n", modelPath)
		fmt.Fprintf(os.Stdout, "wrote %s\n", snapPath)
	}
	return nil
}
