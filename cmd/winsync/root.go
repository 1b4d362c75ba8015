// Package main provides the CLI entrypoint for winsync.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/model"
	"github.com/jmylchreest/winsync/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose      bool
		registryFile string
		configPath   string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "winsync",
	Short: "Share window positions between cooperating processes",
	Long: `winsync keeps a shared registry of windows on one machine.

Every participating window publishes its position, size and metadata to a
shared file, merges what the others publish, and drops windows that stop
sending heartbeats. There is no leader; any window may come and go.

Running winsync without a subcommand joins the registry (see "winsync join").`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if globalOpts.registryFile != "" {
			cfg.Store.Path = globalOpts.registryFile
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJoin(cmd, args)
	},
}

// Execute adds all child commands to the root command and runs it until
// it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.registryFile, "registry-file", "",
		"Path to the shared registry (default: $XDG_RUNTIME_DIR/winsync/registry.json)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/winsync/config.toml)")

	// join is the default command, so its flags work without naming it
	addJoinFlags(rootCmd)
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// registryPath returns the configured registry path or the default one.
func registryPath() (string, error) {
	if cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}
	return store.RegistryPath()
}

// openRegistry opens the shared registry file for one-shot commands.
func openRegistry() (*store.FileStore, error) {
	path, err := registryPath()
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(path, logger)
}

// readRegistry returns the entries currently published.
func readRegistry(fs *store.FileStore) ([]model.WindowEntry, error) {
	raw, err := fs.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	entries, err := store.DecodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fs.Path(), err)
	}
	return entries, nil
}
