package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/domain/incident"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
	"github.com/nodewarden/nodewarden/internal/version"
	"github.com/nodewarden/nodewarden/internal/versionsource"
)

// Options are inputs accepted by the status entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Output receives the rendered report. Defaults to standard output.
	Output io.Writer
}

// Summary is everything the status surface reports in one place.
type Summary struct {
	// Deployed is the version running now; DeployedKnown is false when no
	// pointer exists and runtime introspection failed.
	Deployed      version.V
	DeployedKnown bool

	// Network is the current network release; NetworkKnown is false when no
	// endpoint answered. NetworkSource names the endpoint that answered.
	Network       version.V
	NetworkKnown  bool
	NetworkSource string

	// Incident is the alerting lifecycle state from the status record.
	Incident *incident.Incident

	// RecordUpdatedAt is when the status record was last written; zero when
	// no record exists yet.
	RecordUpdatedAt time.Time
}

// UpdateAvailable reports whether a newer release than the deployed one is out.
func (s *Summary) UpdateAvailable() bool {
	if !s.DeployedKnown || !s.NetworkKnown {
		return false
	}

	return !s.Deployed.GreaterOrEqual(s.Network)
}

// Gatherer collects the summary from the version source and the status record.
type Gatherer struct {
	resolver versionsource.Resolver
	statuses repo.Repository

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewGatherer creates a gatherer over the provided sources.
func NewGatherer(resolver versionsource.Resolver, statuses repo.Repository) *Gatherer {
	return &Gatherer{
		resolver: resolver,
		statuses: statuses,
		now:      time.Now,
	}
}

// Gather collects the summary. Every source degrades gracefully: an
// unreachable network or a missing status record still yields a report.
func (g *Gatherer) Gather(ctx context.Context) *Summary {
	summary := &Summary{
		Incident: &incident.Incident{Phase: incident.PhaseNone},
	}

	summary.Deployed, summary.DeployedKnown = g.resolver.DeployedVersion(ctx)

	resolution, err := g.resolver.NetworkVersion(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Network version unavailable", "error", err)
	} else {
		summary.Network = resolution.Version
		summary.NetworkKnown = true
		summary.NetworkSource = resolution.Source
	}

	record, err := g.statuses.Load(ctx)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			logger.WarnKV(ctx, "Status record unreadable", "error", err)
		}

		return summary
	}

	summary.Incident = record.Incident()
	summary.RecordUpdatedAt = record.UpdatedAt

	return summary
}

// Render writes the summary as a short human-readable report.
func (g *Gatherer) Render(w io.Writer, summary *Summary) {
	fmt.Fprintf(w, "Deployed version: %s\n", label(summary.Deployed, summary.DeployedKnown))

	if summary.NetworkKnown {
		fmt.Fprintf(w, "Network version:  %s (via %s)\n", summary.Network, summary.NetworkSource)
	} else {
		fmt.Fprintf(w, "Network version:  unknown\n")
	}

	switch {
	case summary.UpdateAvailable():
		fmt.Fprintf(w, "Update:           %s available\n", summary.Network)
	case summary.DeployedKnown && summary.NetworkKnown:
		fmt.Fprintf(w, "Update:           up to date\n")
	default:
		fmt.Fprintf(w, "Update:           undetermined\n")
	}

	if summary.Incident.Active() {
		fmt.Fprintf(w, "Incident:         ACTIVE since %s (%s)\n",
			summary.Incident.StartedAt.Format(time.RFC3339),
			g.now().Sub(summary.Incident.StartedAt).Round(time.Second))
	} else {
		fmt.Fprintf(w, "Incident:         none\n")
	}

	if !summary.RecordUpdatedAt.IsZero() {
		fmt.Fprintf(w, "Record updated:   %s\n", summary.RecordUpdatedAt.Format(time.RFC3339))
	}
}

// label renders a version tolerating "unknown".
func label(v version.V, known bool) string {
	if !known {
		return "unknown"
	}

	return v.String()
}

// Run gathers and prints the node status and is the public entry point for
// the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "warden-status")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	runtime := lifecycle.NewCompose(cfg.BundleRoot, cfg.ComposeProject, cfg.CallTimeout)

	resolver := versionsource.NewHTTPSource(
		cfg.Endpoints(),
		cfg.CatalogURL,
		cfg.CurrentPointerFile,
		runtime,
		primaryService(cfg),
		cfg.CallTimeout,
	)

	gatherer := NewGatherer(resolver, repo.NewFileRepository(cfg.StatusFile))
	gatherer.Render(out, gatherer.Gather(ctx))

	return nil
}

// primaryService is the process whose image tag names the node release.
func primaryService(cfg *config.Config) string {
	if len(cfg.NodeServices) == 0 {
		return ""
	}

	return cfg.NodeServices[0]
}
