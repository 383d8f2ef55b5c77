package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/service/upgrader"
	"github.com/nodewarden/nodewarden/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// environment overrides the configured environment name.
	environment string
	// automatic selects the scheduler-driven path with backup and gates.
	automatic bool

	// rootCmd represents the base command for running one upgrade attempt.
	rootCmd = &cobra.Command{
		Use:   "warden-upgrade",
		Short: "Bring the managed node to the current network version",
		Long: `Runs one upgrade attempt against the managed validator node.

Resolves the deployed and network versions, downloads and unpacks the new
release bundle next to the old one, carries configuration over, pre-pulls
images while the old version keeps serving, then cuts over and verifies
health. A failed verification rolls back to the previous version.

With --auto the attempt follows the unattended path: a backup runs first,
releases younger than the configured minimum age are skipped, and a major
or minor version bump blocks with an operator notification instead of
proceeding. Concurrent invocations are serialized through a lock file; a
second invocation exits silently.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upgrader.Options{
				ConfigPath:  configPath,
				Environment: environment,
				Automatic:   automatic,
			}

			return upgrader.Run(ctx, options)
		},
	}
)

// Execute runs the warden-upgrade CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&environment, "env", "e", "", "override the configured environment")
	rootCmd.Flags().BoolVar(&automatic, "auto", false, "unattended mode: backup first, gate young releases and version bumps")
}
