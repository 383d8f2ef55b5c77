package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/service/status"
	"github.com/nodewarden/nodewarden/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for printing node status.
	rootCmd = &cobra.Command{
		Use:   "warden-status",
		Short: "Print the deployed version, network version, and incident state",
		Long: `Read-only report over the managed validator node.

Shows what version runs now, what the network currently publishes, whether
an update is pending, and whether an incident is active. Nothing is mutated.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return status.Run(ctx, &status.Options{ConfigPath: configPath})
		},
	}
)

// Execute runs the warden-status CLI and exits with non-zero status on error.
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
}
