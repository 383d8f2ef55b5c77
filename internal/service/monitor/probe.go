package monitor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/domain/health"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/metrics"
)

// LagSource answers when the node last ingested a new ledger record.
type LagSource interface {
	LastIngestedAt(ctx context.Context) (time.Time, error)
}

// FailureCounter answers the node tooling's monotonic failure count.
type FailureCounter interface {
	Count(ctx context.Context) (int, error)
}

// DiskUsage answers the free bytes on the filesystem holding path.
type DiskUsage func(path string) (uint64, error)

// Probe collects raw health signals each cycle through four independent,
// gracefully degrading checks. A check that cannot run yields a
// check-unavailable issue rather than failing the cycle: unknown is not
// healthy, but it is not proof of failure either.
type Probe struct {
	cfg      *config.Config
	runtime  lifecycle.Lifecycle
	lag      LagSource
	failures FailureCounter
	disk     DiskUsage
	metrics  *metrics.Metrics

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewProbe creates a probe over the provided signal sources.
// failures may be nil when no failure counter is configured.
func NewProbe(
	cfg *config.Config,
	runtime lifecycle.Lifecycle,
	lag LagSource,
	failures FailureCounter,
	disk DiskUsage,
	m *metrics.Metrics,
) *Probe {
	return &Probe{
		cfg:      cfg,
		runtime:  runtime,
		lag:      lag,
		failures: failures,
		disk:     disk,
		metrics:  m,
		now:      time.Now,
	}
}

// Cycle runs every check once and returns the union of their issues.
func (p *Probe) Cycle(ctx context.Context) health.Report {
	started := p.now()

	report := health.Report{}
	report.Issues = append(report.Issues, p.checkProcesses(ctx)...)
	report.Issues = append(report.Issues, p.checkSyncLag(ctx)...)
	report.Issues = append(report.Issues, p.checkFailures(ctx)...)
	report.Issues = append(report.Issues, p.checkDisk(ctx)...)

	if p.metrics != nil {
		p.metrics.ProbeDuration.Observe(p.now().Sub(started).Seconds())

		for _, issue := range report.Issues {
			p.metrics.ProbeIssues.WithLabelValues(issue.Kind.String()).Inc()
		}
	}

	return report
}

// checkProcesses inspects every managed process, optionally restarting a
// crashed or unhealthy one before reporting so a self-healing blip does not alert.
func (p *Probe) checkProcesses(ctx context.Context) []health.Issue {
	var issues []health.Issue

	for _, service := range p.cfg.NodeServices {
		status, err := p.runtime.Status(ctx, service)
		if err != nil {
			issues = append(issues, health.Issue{
				Kind:   health.CheckUnavailable,
				Detail: fmt.Sprintf("process check for %s: %v", service, err),
			})

			continue
		}

		if status.Running && status.Healthy {
			continue
		}

		if p.cfg.AutoRestart {
			status = p.remediate(ctx, service)
			if status.Running && status.Healthy {
				continue
			}
		}

		if !status.Running {
			issues = append(issues, health.Issue{Kind: health.ContainerDown, Detail: service})
		} else {
			issues = append(issues, health.Issue{Kind: health.ContainerUnhealthy, Detail: service})
		}
	}

	return issues
}

// remediate restarts one process and re-inspects it.
func (p *Probe) remediate(ctx context.Context, service string) lifecycle.Status {
	logger.WarnKV(ctx, "Restarting unhealthy process before reporting", "service", service)

	if err := p.runtime.Restart(ctx, service); err != nil {
		logger.WarnKV(ctx, "Auto-restart failed", "service", service, "error", err)
		return lifecycle.Status{}
	}

	status, err := p.runtime.Status(ctx, service)
	if err != nil {
		return lifecycle.Status{}
	}

	if status.Running && status.Healthy {
		logger.InfoKV(ctx, "Process self-healed after restart", "service", service)
	}

	return status
}

// checkSyncLag classifies the time since the last ingested ledger record.
func (p *Probe) checkSyncLag(ctx context.Context) []health.Issue {
	lastIngested, err := p.lag.LastIngestedAt(ctx)
	if err != nil {
		return []health.Issue{{
			Kind:   health.CheckUnavailable,
			Detail: fmt.Sprintf("sync lag check: %v", err),
		}}
	}

	lag := p.now().Sub(lastIngested)

	if p.metrics != nil {
		p.metrics.SyncLagSeconds.Set(lag.Seconds())
	}

	switch {
	case lag > p.cfg.SyncLagCritical:
		return []health.Issue{{Kind: health.SyncLagCritical, Detail: fmt.Sprintf("lag %s", lag.Round(time.Second))}}
	case lag > p.cfg.SyncLagWarn:
		return []health.Issue{{Kind: health.SyncLagWarn, Detail: fmt.Sprintf("lag %s", lag.Round(time.Second))}}
	default:
		return nil
	}
}

// checkFailures compares the monotonic failure counter to its threshold.
func (p *Probe) checkFailures(ctx context.Context) []health.Issue {
	if p.failures == nil || p.cfg.FailureThreshold <= 0 {
		return nil
	}

	count, err := p.failures.Count(ctx)
	if err != nil {
		return []health.Issue{{
			Kind:   health.CheckUnavailable,
			Detail: fmt.Sprintf("failure counter check: %v", err),
		}}
	}

	if count >= p.cfg.FailureThreshold {
		return []health.Issue{{
			Kind:   health.RetryFailures,
			Detail: fmt.Sprintf("%d failures (threshold %d)", count, p.cfg.FailureThreshold),
		}}
	}

	return nil
}

// checkDisk compares free space on the data disk to the configured floor.
func (p *Probe) checkDisk(_ context.Context) []health.Issue {
	if p.cfg.DiskFloorBytes == 0 {
		return nil
	}

	free, err := p.disk(p.cfg.DataDir)
	if err != nil {
		return []health.Issue{{
			Kind:   health.CheckUnavailable,
			Detail: fmt.Sprintf("disk check: %v", err),
		}}
	}

	if p.metrics != nil {
		p.metrics.DiskFreeBytes.Set(float64(free))
	}

	if free < p.cfg.DiskFloorBytes {
		return []health.Issue{{
			Kind:   health.DiskLow,
			Detail: fmt.Sprintf("%d bytes free (floor %d)", free, p.cfg.DiskFloorBytes),
		}}
	}

	return nil
}

// FileFailureCounter reads the failure count from a plain text file the node
// tooling maintains.
type FileFailureCounter struct {
	// path is the counter file location.
	path string
}

// NewFileFailureCounter creates a counter over the provided file.
func NewFileFailureCounter(path string) *FileFailureCounter {
	return &FileFailureCounter{path: path}
}

// Count implements FailureCounter.
func (c *FileFailureCounter) Count(_ context.Context) (int, error) {
	contents, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("read failure counter: %w", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		return 0, fmt.Errorf("parse failure counter: %w", err)
	}

	return count, nil
}
