package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/core"
	"github.com/jmylchreest/winsync/internal/daemon"
	"github.com/jmylchreest/winsync/internal/dbus"
	"github.com/jmylchreest/winsync/internal/tui"
)

var joinOpts struct {
	meta     []string
	headless bool
	notify   bool
	noReload bool
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the registry and keep this window published",
	Long: `Join the shared registry as a new window and stay until interrupted.

The window's shape is sampled from X11 when a display is available, from
the controlling terminal otherwise, or taken from the configured fallback.
On a terminal the registry is shown in an interactive browser; with
--headless, or when stdout is not a terminal, the window id is printed and
winsync runs quietly until it receives SIGINT or SIGTERM.

Examples:
  # Join with metadata and browse the other windows
  winsync join --meta role=editor --meta workspace=2

  # Join from a script, printing only the window id
  winsync join --headless

  # Announce windows joining and leaving on the desktop
  winsync join --notify`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addJoinFlags(joinCmd)
}

func addJoinFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&joinOpts.meta, "meta", "m", nil,
		"Metadata to publish as key=value (repeatable)")
	cmd.Flags().BoolVar(&joinOpts.headless, "headless", false,
		"Do not start the interactive browser")
	cmd.Flags().BoolVar(&joinOpts.notify, "notify", false,
		"Show desktop notifications when windows join or leave (overrides config)")
	cmd.Flags().BoolVar(&joinOpts.noReload, "no-reload", false,
		"Do not watch the config file for changes")
}

func runJoin(cmd *cobra.Command, args []string) error {
	pairs, err := core.ParseMetadata(joinOpts.meta)
	if err != nil {
		return err
	}
	metadata := make(map[string]any, len(pairs))
	for k, v := range pairs {
		metadata[k] = v
	}

	if cmd.Flags().Changed("notify") {
		cfg.Notify.Desktop = joinOpts.notify
	}

	opts := daemon.Options{
		Config:   cfg,
		Metadata: metadata,
		Logger:   logger,
	}

	// The notification client is optional; without a session bus the
	// registry works the same, only silently.
	if client, err := dbus.Connect(logger); err != nil {
		if cfg.Notify.Desktop {
			logger.Warn("desktop notifications unavailable", "error", err)
		}
	} else {
		defer func() { _ = client.Close() }()
		opts.Notify = client.Notify
		opts.Dismiss = client.CloseNotification
	}

	session, err := daemon.NewSession(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close registry", "error", err)
		}
	}()

	ctx := cmd.Context()

	if !joinOpts.noReload {
		watcher := daemon.NewConfigWatcher(globalOpts.configPath, logger)
		watcher.SetReloadCallback(func(newConfig *config.Config) {
			if cmd.Flags().Changed("notify") {
				newConfig.Notify.Desktop = joinOpts.notify
			}
			session.ApplyConfig(newConfig)
			session.Notifier().NotifyConfigReloaded()
		})
		watcher.SetErrorCallback(func(err error) {
			session.Notifier().NotifyConfigError(err)
		})
		if err := watcher.Start(cfg); err != nil {
			logger.Debug("config reload disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	if err := session.Start(); err != nil {
		return err
	}

	if joinOpts.headless || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(session.Manager().ID())
		return session.Run(ctx)
	}

	return session.Run(ctx, func(ctx context.Context) error {
		return tui.Run(ctx, tui.RunOptions{
			Config:  cfg.TUI,
			Source:  session.Manager(),
			Changes: session.Changes(),
		})
	})
}
