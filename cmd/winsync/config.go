package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/winsync/internal/config"
)

var configInitOpts struct {
	force bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Write a configuration file holding every setting at its default value.

The file goes to --config when given, otherwise to the standard location.
An existing file is left alone unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := writeDefaultConfig(configFilePath(), configInitOpts.force)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), configFilePath())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configPathCmd)

	configInitCmd.Flags().BoolVarP(&configInitOpts.force, "force", "f", false,
		"Overwrite an existing file")
}

func configFilePath() string {
	if globalOpts.configPath != "" {
		return globalOpts.configPath
	}
	return config.ConfigPath()
}

func writeDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		return "", errors.New("no configuration path: set --config or HOME")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
