package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearOpts struct {
	yes bool
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the shared registry",
	Long: `Remove every window from the shared registry.

Windows that are still running publish themselves again on their next
heartbeat, so this only resets the registry for a moment unless nothing is
running.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolVarP(&clearOpts.yes, "yes", "y", false,
		"Do not ask for confirmation")
}

func runClear(cmd *cobra.Command, args []string) error {
	fs, err := openRegistry()
	if err != nil {
		return err
	}
	defer func() { _ = fs.Close() }()

	if !clearOpts.yes {
		fmt.Printf("Clear registry %s? [y/N] ", fs.Path())
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := fs.Clear(); err != nil {
		return fmt.Errorf("failed to clear registry: %w", err)
	}
	fmt.Println("Registry cleared")
	return nil
}
