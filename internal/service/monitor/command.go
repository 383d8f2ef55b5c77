package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/metrics"
	"github.com/nodewarden/nodewarden/internal/notify"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
)

// Options controls the monitor polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Once runs a single probe cycle and exits, for cron-style scheduling.
	Once bool
	// PollInterval defines the interval between probe cycles.
	PollInterval time.Duration
}

// DefaultPollInterval defines the polling interval for probe cycles.
const DefaultPollInterval = 30 * time.Second

// metricsReadTimeout bounds request header reads on the metrics listener.
const metricsReadTimeout = 5 * time.Second

// Run executes the health monitor and is the public entry point for the CLI.
// Each cycle runs the probe and feeds the aggregated critical flag into the
// alert state machine. The probe holds no lock: overlapping runs at worst
// double-count a transient signal.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "warden-monitor")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	m := metrics.New()

	runtime := lifecycle.NewCompose(cfg.BundleRoot, cfg.ComposeProject, cfg.CallTimeout)
	lag := NewHTTPLagSource(cfg.Endpoints(), cfg.CallTimeout)

	var failures FailureCounter
	if cfg.FailureCounterFile != "" {
		failures = NewFileFailureCounter(cfg.FailureCounterFile)
	}

	probe := NewProbe(cfg, runtime, lag, failures, FreeDiskBytes, m)

	machine := NewAlertStateMachine(
		repo.NewFileRepository(cfg.StatusFile),
		notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.CallTimeout),
		m,
	)

	if cfg.MetricsAddress != "" {
		startMetricsListener(ctx, cfg.MetricsAddress, m)
	}

	if opts.Once {
		return cycle(ctx, probe, machine)
	}

	logger.InfoKV(ctx, "Polling node health", "interval", opts.PollInterval.String())

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if err = cycle(ctx, probe, machine); err != nil {
				logger.ErrorKV(ctx, "Probe cycle failed", "error", err)
			}
		}
	}
}

// cycle runs one probe pass and one alert transition.
func cycle(ctx context.Context, probe *Probe, machine *AlertStateMachine) error {
	report := probe.Cycle(ctx)

	if len(report.Issues) == 0 {
		logger.Debug(ctx, "Node healthy")
	} else {
		logger.WarnKV(ctx, "Issues observed", "critical", report.Critical(), "issues", report.Summary())
	}

	return machine.Evaluate(ctx, report.Critical(), report.Summary())
}

// startMetricsListener serves /metrics in the background until the context ends.
func startMetricsListener(ctx context.Context, address string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsReadTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.InfoKV(ctx, "Serving metrics", "address", address)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WarnKV(ctx, "Metrics listener failed", "error", err)
		}
	}()
}
