package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"anvil/internal/driver"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build artifacts and the graph cache",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().Bool("cache-only", false, "drop the graph cache but keep build artifacts")
}

func runClean(cmd *cobra.Command, args []string) error {
	cacheOnly, err := cmd.Flags().GetBool("cache-only")
	if err != nil {
		return err
	}

	cache, err := driver.OpenDiskCache("anvil")
	if err == nil {
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("failed to drop cache: %w", err)
		}
	}
	if cacheOnly {
		return nil
	}

	manifest, err := findManifest(nil)
	if err != nil {
		// No project here; dropping the cache is all there is to do.
		return nil
	}
	out := manifest.OutDir()
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("failed to remove %s: %w", out, err)
	}
	fmt.Fprintf(os.Stdout, "removed %s\n", out)
	return nil
}
