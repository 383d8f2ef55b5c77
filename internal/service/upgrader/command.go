package upgrader

import (
	"context"
	"errors"

	"github.com/nodewarden/nodewarden/internal/artifact"
	"github.com/nodewarden/nodewarden/internal/backup"
	"github.com/nodewarden/nodewarden/internal/bundle"
	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/notify"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
	"github.com/nodewarden/nodewarden/internal/runlock"
	"github.com/nodewarden/nodewarden/internal/service/monitor"
	"github.com/nodewarden/nodewarden/internal/versionsource"
)

// Options are inputs accepted by the upgrade entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Environment overrides the configured environment when non-empty.
	Environment string
	// Automatic selects the scheduler-driven path with the backup step and
	// the release-age and major.minor gates.
	Automatic bool
}

// Run executes one upgrade attempt and is the public entry point for the CLI.
// A concurrent run holding the lock makes this invocation exit silently.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "warden-upgrade")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.Environment != "" {
		cfg.Environment = opts.Environment
		if err = config.Validate(cfg); err != nil {
			return err
		}
	}

	lock := runlock.New(cfg.LockFile)
	if err = lock.TryAcquire(ctx); err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			logger.InfoKV(ctx, "Another upgrade run is active, exiting", "lock", cfg.LockFile)
			return nil
		}

		return err
	}

	// Released on every exit path, including abnormal termination of the run.
	defer lock.Release(ctx)

	orchestrator := New(buildDeps(cfg), opts.Automatic)

	if err = orchestrator.Execute(ctx); err != nil {
		logger.ErrorKV(ctx, "Upgrade run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Upgrade run completed")

	return nil
}

// buildDeps wires the production implementations around the configuration.
func buildDeps(cfg *config.Config) Deps {
	runtime := lifecycle.NewCompose(cfg.BundleRoot, cfg.ComposeProject, cfg.CallTimeout)

	fetcher := artifact.NewHTTPFetcher(cfg.ReleaseURLTemplate, cfg.BundleRoot+"/archives", cfg.CallTimeout)
	store := bundle.NewStore(cfg.BundleRoot, cfg.CurrentPointerFile, fetcher)

	notifier := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.CallTimeout)
	statuses := repo.NewFileRepository(cfg.StatusFile)

	resolver := versionsource.NewHTTPSource(
		cfg.Endpoints(),
		cfg.CatalogURL,
		cfg.CurrentPointerFile,
		runtime,
		primaryService(cfg),
		cfg.CallTimeout,
	)

	var backupRunner BackupRunner = backup.Nop{}
	if len(cfg.BackupCommand) > 0 {
		backupRunner = backup.NewExecRunner(cfg.BackupCommand, cfg.CallTimeout)
	}

	return Deps{
		Config:   cfg,
		Resolver: resolver,
		Store:    store,
		Migrator: bundle.NewMigrator(),
		Runtime:  runtime,
		Notifier: notifier,
		Backup:   backupRunner,
		Statuses: statuses,
		Alerts:   monitor.NewAlertStateMachine(statuses, notifier, nil),
	}
}

// primaryService is the process whose image tag names the node release.
func primaryService(cfg *config.Config) string {
	if len(cfg.NodeServices) == 0 {
		return ""
	}

	return cfg.NodeServices[0]
}
