package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"anvil/internal/driver"
	"anvil/internal/loader"
	"anvil/internal/model"
	"anvil/internal/selector"
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] <selector> [path]",
	Short: "Select shapes from an assembled model",
	Long: `Assemble the project model and print the IDs of every shape matching
the given selector, one per line.

Examples:
  anvil query "structure"
  anvil query "[trait|smithy.api#deprecated]"
  anvil query "service > operation"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().Bool("include-prelude", false, "match prelude shapes as well")
	queryCmd.Flags().Bool("no-cache", false, "ignore the graph cache")
}

func runQuery(cmd *cobra.Command, args []string) error {
	g, err := readGlobalOpts(cmd)
	if err != nil {
		return err
	}
	includePrelude, err := cmd.Flags().GetBool("include-prelude")
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	// Parse the selector first: a bad query should not trigger a build.
	sel, err := selector.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", args[0], err)
	}

	manifest, err := findManifest(args[1:])
	if err != nil {
		return err
	}

	var cache *driver.DiskCache
	if !noCache {
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
	if res.Graph == nil {
		errCount, perr := printDiagnostics(&res.Result, "pretty", g)
		if perr != nil {
			return perr
		}
		return fmt.Errorf("model failed to assemble with %d error(s)", errCount)
	}

	n := 0
	for id := range sel.Select(res.Graph) {
		if id.Namespace == model.PreludeNamespace && !includePrelude {
			continue
		}
		fmt.Fprintln(os.Stdout, id)
		n++
	}
	if !g.quiet {
		fmt.Fprintf(os.Stderr, "%d shape(s) matched\n", n)
	}
	return nil
}
