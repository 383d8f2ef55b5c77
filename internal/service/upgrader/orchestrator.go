package upgrader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/metrics"
	"github.com/nodewarden/nodewarden/internal/notify"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
	"github.com/nodewarden/nodewarden/internal/version"
	"github.com/nodewarden/nodewarden/internal/versionsource"
)

// Step names the orchestrator's position in one upgrade attempt.
type Step int

const (
	// StepIdle means no attempt is running.
	StepIdle Step = iota
	// StepResolving computes deployed and network versions.
	StepResolving
	// StepBackingUp runs the pre-upgrade backup on the automatic path.
	StepBackingUp
	// StepDownloading materializes the new bundle.
	StepDownloading
	// StepMigrating carries config into the new bundle.
	StepMigrating
	// StepPrepulling fetches new images while the old version serves.
	StepPrepulling
	// StepCuttingOver swaps the running process set.
	StepCuttingOver
	// StepVerifying polls health after the cutover.
	StepVerifying
	// StepCommitted is the terminal success state.
	StepCommitted
	// StepRollingBack restores the previous version.
	StepRollingBack
)

// String renders the step for logs.
func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepResolving:
		return "resolving"
	case StepBackingUp:
		return "backing_up"
	case StepDownloading:
		return "downloading"
	case StepMigrating:
		return "migrating"
	case StepPrepulling:
		return "prepulling"
	case StepCuttingOver:
		return "cutting_over"
	case StepVerifying:
		return "verifying"
	case StepCommitted:
		return "committed"
	case StepRollingBack:
		return "rolling_back"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Outcome is the terminal result of one attempt, fed to metrics and alerting.
type Outcome string

const (
	// OutcomeNoop means the attempt terminated without mutating anything.
	OutcomeNoop Outcome = "noop"
	// OutcomeCommitted means the new version is live and the pointer advanced.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRolledBack means the new version failed and the old one serves again.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeRollbackFailed means neither version could be restored.
	OutcomeRollbackFailed Outcome = "rollback_failed"
	// OutcomeManualAction means a major.minor bump needs human review.
	OutcomeManualAction Outcome = "manual_action"
)

// BundleStore is the bundle surface the orchestrator drives.
type BundleStore interface {
	EnsureBundle(ctx context.Context, v version.V) error
	Dir(v version.V) string
	Current() (version.V, error)
	SetCurrent(v version.V) error
}

// ConfigMigrator carries config from the old bundle into the new one.
type ConfigMigrator interface {
	MigrateConfig(fromDir, toDir string) error
	PatchConfig(toDir string, v version.V) error
}

// AlertSink receives the orchestrator's terminal outcome as a health event.
// The monitor's alert state machine implements it, so a failed upgrade raises
// the same deduplicated incident a failed probe would.
type AlertSink interface {
	Evaluate(ctx context.Context, critical bool, message string) error
}

// errRollbackFailed marks the terminal operator-intervention-required state.
var errRollbackFailed = errors.New("rollback failed")

// attempt is the ephemeral state of one orchestrator run. It is discarded at
// terminal success or rollback; the only durable effect lands on the current
// pointer and the bundle set.
type attempt struct {
	// id correlates every log line and notification of this run.
	id string
	// from is the deployed version, zero when unknown.
	from version.V
	// fromKnown reports whether from names a real deployed version.
	fromKnown bool
	// to is the resolved network version.
	to version.V
	// startedAt is when the run began.
	startedAt time.Time
	// step is the current position in the workflow.
	step Step
}

// Orchestrator composes the bundle store, config migrator, container runtime
// and version source into one safe upgrade transaction.
type Orchestrator struct {
	cfg      *config.Config
	resolver versionsource.Resolver
	store    BundleStore
	migrator ConfigMigrator
	runtime  lifecycle.Lifecycle
	notifier notify.Notifier
	backup   BackupRunner
	statuses repo.Repository
	alerts   AlertSink
	metrics  *metrics.Metrics

	// automatic selects the scheduler-driven path: pre-upgrade backup,
	// release-age gate, and a blocking major.minor gate. The manual path
	// skips the age gate and only warns on a major.minor bump. The
	// asymmetry is inherited behavior, preserved on purpose.
	automatic bool

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// BackupRunner executes the pre-upgrade backup.
type BackupRunner interface {
	Run(ctx context.Context) error
}

// Deps carries everything the orchestrator composes.
type Deps struct {
	Config   *config.Config
	Resolver versionsource.Resolver
	Store    BundleStore
	Migrator ConfigMigrator
	Runtime  lifecycle.Lifecycle
	Notifier notify.Notifier
	Backup   BackupRunner
	Statuses repo.Repository
	Alerts   AlertSink
	Metrics  *metrics.Metrics
}

// New creates an orchestrator. Automatic selects the scheduler-driven path.
func New(deps Deps, automatic bool) *Orchestrator {
	return &Orchestrator{
		cfg:       deps.Config,
		resolver:  deps.Resolver,
		store:     deps.Store,
		migrator:  deps.Migrator,
		runtime:   deps.Runtime,
		notifier:  deps.Notifier,
		backup:    deps.Backup,
		statuses:  deps.Statuses,
		alerts:    deps.Alerts,
		metrics:   deps.Metrics,
		automatic: automatic,
		now:       time.Now,
	}
}

// Execute runs one upgrade attempt to a terminal state. Failures before the
// cutover leave the system unchanged and are retryable on a later invocation;
// failures at or after the cutover trigger exactly one rollback attempt.
func (o *Orchestrator) Execute(ctx context.Context) error {
	run := &attempt{
		id:        uuid.NewString(),
		startedAt: o.now(),
		step:      StepResolving,
	}

	ctx = logger.WithKV(ctx, "attempt_id", run.id)

	proceed, err := o.resolve(ctx, run)
	if err != nil || !proceed {
		return err
	}

	if err = o.prepare(ctx, run); err != nil {
		return err
	}

	// The managed processes cannot be safely interrupted mid stop/start:
	// from here the attempt runs to committed or rolled back even if the
	// caller's context is cancelled.
	return o.cutOver(context.WithoutCancel(ctx), run)
}

// resolve computes deployed and network versions and applies the gates.
// It returns false when the attempt terminates with zero mutation.
func (o *Orchestrator) resolve(ctx context.Context, run *attempt) (bool, error) {
	logger.InfoKV(ctx, "Resolving versions", "step", run.step.String())

	deployed, deployedKnown := o.resolver.DeployedVersion(ctx)

	resolution, err := o.resolver.NetworkVersion(ctx)
	if err != nil {
		// Never assume up to date on resolution failure.
		return false, fmt.Errorf("resolve network version: %w", err)
	}

	run.from, run.fromKnown, run.to = deployed, deployedKnown, resolution.Version

	logger.InfoKV(ctx, "Versions resolved",
		"deployed", deployed.String(),
		"deployed_known", deployedKnown,
		"network", resolution.Version.String(),
		"source", resolution.Source)

	if deployedKnown {
		if deployed == run.to {
			logger.Info(ctx, "Already on the network version, nothing to do")
			o.countOutcome(OutcomeNoop)

			return false, nil
		}

		if deployed.GreaterOrEqual(run.to) {
			logger.WarnKV(ctx, "Network version is older than deployed, refusing downgrade",
				"deployed", deployed.String(), "network", run.to.String())
			o.countOutcome(OutcomeNoop)

			return false, nil
		}

		if !deployed.SameMajorMinor(run.to) {
			return o.handleMajorBump(ctx, run), nil
		}
	}

	if o.automatic && !o.releaseOldEnough(ctx, run.to) {
		o.countOutcome(OutcomeNoop)

		return false, nil
	}

	return true, nil
}

// handleMajorBump applies the major.minor gate. The automatic path blocks and
// notifies; the manual path warns and proceeds.
func (o *Orchestrator) handleMajorBump(ctx context.Context, run *attempt) bool {
	if o.automatic {
		logger.WarnKV(ctx, "Major or minor version bump requires human review",
			"deployed", run.from.String(), "network", run.to.String())

		if id, ok := o.notifier.Send(ctx, fmt.Sprintf(
			"Manual action required: network moved from %s to %s, review the release notes and upgrade manually.",
			run.from, run.to)); ok {
			logger.DebugKV(ctx, "Manual-action notification sent", "message_id", id)
		}

		o.countOutcome(OutcomeManualAction)

		return false
	}

	logger.WarnKV(ctx, "Crossing a major.minor boundary on the manual path",
		"deployed", run.from.String(), "network", run.to.String())

	return true
}

// releaseOldEnough applies the automatic-mode release-age gate.
// An unknown publication time does not block the upgrade.
func (o *Orchestrator) releaseOldEnough(ctx context.Context, v version.V) bool {
	if o.cfg.MinReleaseAge <= 0 {
		return true
	}

	releasedAt, ok := o.resolver.ReleasedAt(ctx, v)
	if !ok {
		return true
	}

	age := o.now().Sub(releasedAt)
	if age >= o.cfg.MinReleaseAge {
		return true
	}

	logger.InfoKV(ctx, "Candidate release too young, skipping",
		"version", v.String(), "age", age.String(), "minimum", o.cfg.MinReleaseAge.String())

	return false
}

// prepare runs the retryable steps that never touch the live system:
// backup (automatic path), download, migration, pre-pull.
func (o *Orchestrator) prepare(ctx context.Context, run *attempt) error {
	if o.automatic {
		run.step = StepBackingUp

		if err := o.backup.Run(ctx); err != nil {
			return fmt.Errorf("pre-upgrade backup: %w", err)
		}
	}

	run.step = StepDownloading
	logger.InfoKV(ctx, "Materializing bundle", "step", run.step.String(), "version", run.to.String())

	if err := o.store.EnsureBundle(ctx, run.to); err != nil {
		return fmt.Errorf("ensure bundle %s: %w", run.to, err)
	}

	run.step = StepMigrating
	logger.InfoKV(ctx, "Migrating configuration", "step", run.step.String())

	if run.fromKnown {
		if err := o.migrator.MigrateConfig(o.store.Dir(run.from), o.store.Dir(run.to)); err != nil {
			return fmt.Errorf("migrate config: %w", err)
		}
	}

	if err := o.migrator.PatchConfig(o.store.Dir(run.to), run.to); err != nil {
		return fmt.Errorf("patch config: %w", err)
	}

	run.step = StepPrepulling
	logger.InfoKV(ctx, "Pre-pulling images", "step", run.step.String())

	if err := o.runtime.Pull(ctx, run.to.String()); err != nil {
		return fmt.Errorf("pre-pull %s: %w", run.to, err)
	}

	return nil
}

// cutOver swaps the process set, verifies health, and commits or rolls back.
func (o *Orchestrator) cutOver(ctx context.Context, run *attempt) error {
	run.step = StepCuttingOver
	logger.InfoKV(ctx, "Cutting over", "step", run.step.String(),
		"from", run.from.String(), "to", run.to.String())

	if run.fromKnown {
		if err := o.runtime.Stop(ctx, run.from.String()); err != nil {
			// Best-effort: compose up replaces whatever half-stopped set remains.
			logger.WarnKV(ctx, "Stopping old version failed", "error", err)
		}
	}

	if err := o.runtime.Start(ctx, run.to.String(), o.cfg.IdentityParams); err != nil {
		logger.ErrorKV(ctx, "New version failed to start", "error", err)

		return o.rollBack(ctx, run, fmt.Sprintf("version %s failed to start", run.to))
	}

	run.step = StepVerifying
	if o.verifyHealthy(ctx, run) {
		return o.commit(ctx, run)
	}

	logger.ErrorKV(ctx, "New version never reported healthy",
		"attempts", o.cfg.VerifyAttempts, "interval", o.cfg.VerifyInterval.String())

	if err := o.runtime.Stop(ctx, run.to.String()); err != nil {
		logger.WarnKV(ctx, "Stopping unhealthy new version failed", "error", err)
	}

	return o.rollBack(ctx, run, fmt.Sprintf("version %s never reported healthy", run.to))
}

// verifyHealthy polls the managed processes at a fixed interval for a bounded
// number of attempts. The first fully healthy poll wins.
func (o *Orchestrator) verifyHealthy(ctx context.Context, run *attempt) bool {
	logger.InfoKV(ctx, "Verifying health", "step", run.step.String())

	for poll := 1; poll <= o.cfg.VerifyAttempts; poll++ {
		time.Sleep(o.cfg.VerifyInterval)

		if o.allServicesHealthy(ctx) {
			logger.InfoKV(ctx, "New version is healthy", "polls", poll)
			return true
		}

		logger.DebugKV(ctx, "Not healthy yet", "poll", poll)
	}

	return false
}

// allServicesHealthy reports whether every managed process runs and passes
// its health check.
func (o *Orchestrator) allServicesHealthy(ctx context.Context) bool {
	for _, service := range o.cfg.NodeServices {
		status, err := o.runtime.Status(ctx, service)
		if err != nil || !status.Running || !status.Healthy {
			return false
		}
	}

	return true
}

// commit advances the current pointer, the only durable success mutation,
// and records the new version in the status record.
func (o *Orchestrator) commit(ctx context.Context, run *attempt) error {
	run.step = StepCommitted

	if err := o.store.SetCurrent(run.to); err != nil {
		// The new version is live but the pointer is stale; the next run
		// re-resolves from runtime introspection, so surface and stop.
		return fmt.Errorf("advance current pointer: %w", err)
	}

	o.recordCurrentVersion(ctx, run.to)
	o.countOutcome(OutcomeCommitted)

	if _, ok := o.notifier.Send(ctx, fmt.Sprintf(
		"Upgraded node %s -> %s in %s.",
		o.fromLabel(run), run.to, o.now().Sub(run.startedAt).Round(time.Second))); ok {
		logger.Debug(ctx, "Commit notification sent")
	}

	logger.InfoKV(ctx, "Upgrade committed", "version", run.to.String())

	return nil
}

// rollBack restarts the previous version. It is attempted exactly once; if it
// also fails the attempt is terminal and requires operator intervention.
func (o *Orchestrator) rollBack(ctx context.Context, run *attempt, reason string) error {
	run.step = StepRollingBack

	if !run.fromKnown {
		return o.failRollback(ctx, run, reason+"; no previous version to roll back to")
	}

	logger.InfoKV(ctx, "Rolling back", "step", run.step.String(), "to", run.from.String())

	if err := o.runtime.Start(ctx, run.from.String(), o.cfg.IdentityParams); err != nil {
		logger.ErrorKV(ctx, "Rollback start failed", "error", err)

		return o.failRollback(ctx, run, reason+"; restarting "+run.from.String()+" failed")
	}

	o.countOutcome(OutcomeRolledBack)

	if _, ok := o.notifier.Send(ctx, fmt.Sprintf(
		"Upgrade to %s failed (%s), rolled back to %s.", run.to, reason, run.from)); ok {
		logger.Debug(ctx, "Rollback notification sent")
	}

	logger.WarnKV(ctx, "Upgrade rolled back", "serving", run.from.String(), "reason", reason)

	return nil
}

// failRollback is the most severe terminal state: no version could be
// restored and no further automatic remediation is attempted. The alert
// state machine raises the incident so sustained breakage does not re-alert.
func (o *Orchestrator) failRollback(ctx context.Context, run *attempt, reason string) error {
	o.countOutcome(OutcomeRollbackFailed)

	message := fmt.Sprintf(
		"Operator intervention required: upgrade to %s failed and rollback did not restore %s (%s).",
		run.to, o.fromLabel(run), reason)

	if o.alerts != nil {
		if err := o.alerts.Evaluate(ctx, true, message); err != nil {
			logger.WarnKV(ctx, "Raising incident failed", "error", err)
		}
	} else if _, ok := o.notifier.Send(ctx, message); ok {
		logger.Debug(ctx, "Rollback-failure notification sent")
	}

	return fmt.Errorf("%w: %s", errRollbackFailed, reason)
}

// recordCurrentVersion updates the persisted status record, preserving the
// incident fields the alert state machine owns.
func (o *Orchestrator) recordCurrentVersion(ctx context.Context, v version.V) {
	if o.statuses == nil {
		return
	}

	status, err := o.statuses.Load(ctx)
	if err != nil {
		status = &repo.Status{}
	}

	status.CurrentVersion = v.String()

	if err = o.statuses.Save(ctx, status); err != nil {
		logger.WarnKV(ctx, "Persisting status record failed", "error", err)
	}
}

// fromLabel renders the previous version for humans, tolerating "unknown".
func (o *Orchestrator) fromLabel(run *attempt) string {
	if !run.fromKnown {
		return "unknown"
	}

	return run.from.String()
}

// countOutcome records a terminal outcome when metrics are wired.
func (o *Orchestrator) countOutcome(outcome Outcome) {
	if o.metrics == nil {
		return
	}

	o.metrics.UpgradeOutcomes.WithLabelValues(string(outcome)).Inc()
}
