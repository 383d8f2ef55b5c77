package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/service/monitor"
	"github.com/nodewarden/nodewarden/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// once runs a single probe cycle instead of the polling loop.
	once bool
	// pollInterval is the pause between probe cycles.
	pollInterval time.Duration

	// rootCmd represents the base command for watching node health.
	rootCmd = &cobra.Command{
		Use:   "warden-monitor",
		Short: "Watch node health and alert the operator on sustained problems",
		Long: `Background service that probes the managed validator node on a fixed
interval and drives the alerting lifecycle.

Each cycle checks the managed processes, the ingestion lag, the failure
counter, and free disk space. A critical finding opens an incident: one
notification, pinned in the chat until the node recovers. Sustained
breakage never re-alerts; recovery unpins and sends a resolution message.

With --once a single cycle runs and the process exits, which suits cron
and systemd timers better than a resident loop.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &monitor.Options{
				ConfigPath:   configPath,
				Once:         once,
				PollInterval: pollInterval,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the warden-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVar(&once, "once", false, "run one probe cycle and exit")
	rootCmd.Flags().DurationVar(&pollInterval, "interval", monitor.DefaultPollInterval, "pause between probe cycles")
}
