package health

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestKindSeverity pins the severity grading per issue kind.
func TestKindSeverity(t *testing.T) {
	t.Parallel()

	critical := []Kind{ContainerDown, ContainerUnhealthy, SyncLagCritical, RetryFailures, DiskLow}
	for _, k := range critical {
		require.Equal(t, SeverityCritical, k.Severity(), k.String())
	}

	warn := []Kind{SyncLagWarn, CheckUnavailable}
	for _, k := range warn {
		require.Equal(t, SeverityWarn, k.Severity(), k.String())
	}
}

// TestReportCritical verifies warnings alone never flip the critical flag.
func TestReportCritical(t *testing.T) {
	t.Parallel()

	require.False(t, Report{}.Critical())

	warnOnly := Report{Issues: []Issue{
		{Kind: SyncLagWarn, Detail: "lag 75s"},
		{Kind: CheckUnavailable, Detail: "disk check failed"},
	}}
	require.False(t, warnOnly.Critical())

	mixed := Report{Issues: append(warnOnly.Issues, Issue{Kind: DiskLow, Detail: "1.2 GiB free"})}
	require.True(t, mixed.Critical())
}

// TestReportSummary checks notification rendering.
func TestReportSummary(t *testing.T) {
	t.Parallel()

	require.Equal(t, "healthy", Report{}.Summary())

	r := Report{Issues: []Issue{
		{Kind: ContainerDown, Detail: "events"},
		{Kind: SyncLagCritical, Detail: "lag 140s"},
	}}
	require.Equal(t, "container_down: events; sync_lag_critical: lag 140s", r.Summary())
}
