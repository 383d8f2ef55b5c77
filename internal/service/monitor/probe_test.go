package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/domain/health"
	"github.com/nodewarden/nodewarden/internal/lifecycle"
	"github.com/nodewarden/nodewarden/internal/version"
)

var errRuntimeDown = errors.New("runtime unreachable")

// fakeRuntime scripts per-service statuses and records restarts.
type fakeRuntime struct {
	statuses   map[string]lifecycle.Status
	statusErr  map[string]error
	restarted  []string
	healAfter  map[string]lifecycle.Status
	restartErr error
}

func (f *fakeRuntime) Start(_ context.Context, _ string, _ map[string]string) error { return nil }
func (f *fakeRuntime) Stop(_ context.Context, _ string) error                       { return nil }
func (f *fakeRuntime) Pull(_ context.Context, _ string) error                       { return nil }

func (f *fakeRuntime) ImageVersion(_ context.Context, _ string) (version.V, bool) {
	return version.V{}, false
}

func (f *fakeRuntime) Status(_ context.Context, service string) (lifecycle.Status, error) {
	if err := f.statusErr[service]; err != nil {
		return lifecycle.Status{}, err
	}

	return f.statuses[service], nil
}

func (f *fakeRuntime) Restart(_ context.Context, service string) error {
	f.restarted = append(f.restarted, service)
	if f.restartErr != nil {
		return f.restartErr
	}

	if healed, ok := f.healAfter[service]; ok {
		f.statuses[service] = healed
	}

	return nil
}

// fixedLag answers a constant last-ingested time.
type fixedLag struct {
	at  time.Time
	err error
}

func (f fixedLag) LastIngestedAt(_ context.Context) (time.Time, error) {
	return f.at, f.err
}

// probeConfig is a minimal validated probe configuration.
func probeConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Environment: "mainnet",
		VersionEndpoints: map[string][]string{
			"mainnet": {"https://rpc-1.example.net/status"},
		},
		BundleRoot:   t.TempDir(),
		NodeServices: []string{"node", "events"},
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

// kinds extracts the issue kinds of a report.
func kinds(report health.Report) []health.Kind {
	var out []health.Kind
	for _, issue := range report.Issues {
		out = append(out, issue.Kind)
	}

	return out
}

// TestCycle_AllHealthy yields an empty, non-critical report.
func TestCycle_AllHealthy(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{statuses: map[string]lifecycle.Status{
		"node":   {Running: true, Healthy: true},
		"events": {Running: true, Healthy: true},
	}}

	probe := NewProbe(probeConfig(t), runtime, fixedLag{at: now}, nil, nil, nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Empty(t, report.Issues)
	require.False(t, report.Critical())
}

// TestCycle_DownAndUnhealthyProcesses reports the right kind per state.
func TestCycle_DownAndUnhealthyProcesses(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{statuses: map[string]lifecycle.Status{
		"node":   {Running: false},
		"events": {Running: true, Healthy: false},
	}}

	probe := NewProbe(probeConfig(t), runtime, fixedLag{at: now}, nil, nil, nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Equal(t, []health.Kind{health.ContainerDown, health.ContainerUnhealthy}, kinds(report))
	require.True(t, report.Critical())
}

// TestCycle_AutoRestartSelfHeals does not alert on a blip the restart fixed.
func TestCycle_AutoRestartSelfHeals(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{
		statuses: map[string]lifecycle.Status{
			"node":   {Running: false},
			"events": {Running: true, Healthy: true},
		},
		healAfter: map[string]lifecycle.Status{
			"node": {Running: true, Healthy: true},
		},
	}

	cfg := probeConfig(t)
	cfg.AutoRestart = true

	probe := NewProbe(cfg, runtime, fixedLag{at: now}, nil, nil, nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Empty(t, report.Issues)
	require.Equal(t, []string{"node"}, runtime.restarted)
}

// TestCycle_AutoRestartFailsStillReports alerts when remediation does not help.
func TestCycle_AutoRestartFailsStillReports(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{
		statuses: map[string]lifecycle.Status{
			"node":   {Running: false},
			"events": {Running: true, Healthy: true},
		},
		restartErr: errRuntimeDown,
	}

	cfg := probeConfig(t)
	cfg.AutoRestart = true

	probe := NewProbe(cfg, runtime, fixedLag{at: now}, nil, nil, nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Equal(t, []health.Kind{health.ContainerDown}, kinds(report))
}

// TestCycle_SyncLagClassification covers the OK/WARN/CRITICAL thresholds.
func TestCycle_SyncLagClassification(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{statuses: map[string]lifecycle.Status{
		"node":   {Running: true, Healthy: true},
		"events": {Running: true, Healthy: true},
	}}

	cases := []struct {
		name string
		lag  time.Duration
		want []health.Kind
	}{
		{"ok", 30 * time.Second, nil},
		{"warn", 90 * time.Second, []health.Kind{health.SyncLagWarn}},
		{"critical", 150 * time.Second, []health.Kind{health.SyncLagCritical}},
	}

	for _, tc := range cases {
		probe := NewProbe(probeConfig(t), runtime,
			fixedLag{at: now.Add(-tc.lag)}, nil, nil, nil)
		probe.now = func() time.Time { return now }

		report := probe.Cycle(context.Background())
		require.Equal(t, tc.want, kinds(report), tc.name)
	}

	// Only the critical tier flips the aggregated flag.
	probe := NewProbe(probeConfig(t), runtime, fixedLag{at: now.Add(-90 * time.Second)}, nil, nil, nil)
	probe.now = func() time.Time { return now }
	require.False(t, probe.Cycle(context.Background()).Critical())
}

// TestCycle_ChecksDegradeGracefully turns unreachable checks into
// check-unavailable issues instead of failing the cycle.
func TestCycle_ChecksDegradeGracefully(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{
		statuses:  map[string]lifecycle.Status{"events": {Running: true, Healthy: true}},
		statusErr: map[string]error{"node": errRuntimeDown},
	}

	cfg := probeConfig(t)
	cfg.DiskFloorBytes = 1 << 30

	probe := NewProbe(cfg, runtime,
		fixedLag{err: errRuntimeDown},
		nil,
		func(string) (uint64, error) { return 0, errRuntimeDown },
		nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Equal(t, []health.Kind{
		health.CheckUnavailable, // process check
		health.CheckUnavailable, // lag check
		health.CheckUnavailable, // disk check
	}, kinds(report))

	// Unknown is surfaced but never critical by itself.
	require.False(t, report.Critical())
}

// TestCycle_DiskAndFailureThresholds covers the two remaining checks.
func TestCycle_DiskAndFailureThresholds(t *testing.T) {
	t.Parallel()

	now := time.Now()
	runtime := &fakeRuntime{statuses: map[string]lifecycle.Status{
		"node":   {Running: true, Healthy: true},
		"events": {Running: true, Healthy: true},
	}}

	cfg := probeConfig(t)
	cfg.DiskFloorBytes = 10 << 30
	cfg.FailureThreshold = 5

	counter := fixedCounter{count: 7}
	disk := func(string) (uint64, error) { return 1 << 30, nil }

	probe := NewProbe(cfg, runtime, fixedLag{at: now}, counter, disk, nil)
	probe.now = func() time.Time { return now }

	report := probe.Cycle(context.Background())
	require.Equal(t, []health.Kind{health.RetryFailures, health.DiskLow}, kinds(report))
	require.True(t, report.Critical())
}

// fixedCounter answers a constant failure count.
type fixedCounter struct {
	count int
	err   error
}

func (f fixedCounter) Count(_ context.Context) (int, error) {
	return f.count, f.err
}
