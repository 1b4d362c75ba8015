package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/store"
)

var pruneOpts struct {
	olderThan string
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove windows that stopped sending heartbeats",
	Long: `Remove windows whose heartbeat is older than the liveness timeout.

Running windows prune stale entries on their own; this is for a registry
left behind after every window was killed.

Examples:
  # Drop windows past the configured liveness timeout
  winsync prune

  # Drop windows not seen for a minute
  winsync prune --older-than 1m

  # Preview what would be removed (dry run)
  winsync prune --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove windows not seen within this duration (default: liveness timeout)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	timeout := cfg.Registry.LivenessTimeout()
	if pruneOpts.olderThan != "" {
		d, err := core.ParseDuration(pruneOpts.olderThan)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		timeout = d
	}

	fs, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = fs.Close() }()

	entries, err := readRegistry(fs)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No windows in registry")
		return nil
	}

	now := time.Now()
	kept, removed := core.PruneStale(entries, now, timeout, "")
	if len(removed) == 0 {
		fmt.Println("No windows to remove")
		return nil
	}

	if pruneOpts.dryRun {
		fmt.Printf("Would remove %d window(s):\n", len(removed))
		for _, id := range removed {
			e := core.LookupByID(entries, id)
			fmt.Printf("  - %s %s (last seen %s ago)\n", id, e.Shape, e.Age(now).Round(time.Second))
		}
		return nil
	}

	data, err := store.EncodeSnapshot(kept)
	if err != nil {
		return err
	}
	if err := fs.Write(data); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}

	fmt.Printf("Removed %d window(s)\n", len(removed))
	return nil
}
