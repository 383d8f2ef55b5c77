package health

import "fmt"

// Severity grades how bad an issue is. It is a property of the issue kind,
// never inferred from message text.
type Severity int

const (
	// SeverityWarn surfaces an issue without declaring the node unhealthy.
	SeverityWarn Severity = iota + 1
	// SeverityCritical declares the node unhealthy and drives alerting.
	SeverityCritical
)

// String renders the severity for logs and notifications.
func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Kind enumerates every condition the probe can report.
type Kind int

const (
	// ContainerDown means a managed process is not running.
	ContainerDown Kind = iota + 1
	// ContainerUnhealthy means a managed process runs but fails its health check.
	ContainerUnhealthy
	// SyncLagWarn means ingestion lag crossed the warning threshold.
	SyncLagWarn
	// SyncLagCritical means ingestion lag crossed the critical threshold.
	SyncLagCritical
	// RetryFailures means the failure counter crossed its threshold.
	RetryFailures
	// DiskLow means free disk space fell under the configured floor.
	DiskLow
	// CheckUnavailable means a check could not run at all. Unknown is not healthy,
	// but it is also not proof of failure, so it only warns.
	CheckUnavailable
)

// String renders the kind for logs and notifications.
func (k Kind) String() string {
	switch k {
	case ContainerDown:
		return "container_down"
	case ContainerUnhealthy:
		return "container_unhealthy"
	case SyncLagWarn:
		return "sync_lag_warn"
	case SyncLagCritical:
		return "sync_lag_critical"
	case RetryFailures:
		return "retry_failures"
	case DiskLow:
		return "disk_low"
	case CheckUnavailable:
		return "check_unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Severity returns the grade attached to the kind.
func (k Kind) Severity() Severity {
	switch k {
	case ContainerDown, ContainerUnhealthy, SyncLagCritical, RetryFailures, DiskLow:
		return SeverityCritical
	case SyncLagWarn, CheckUnavailable:
		return SeverityWarn
	default:
		return SeverityWarn
	}
}

// Issue is one observed problem with human-readable detail.
type Issue struct {
	// Kind identifies the condition and carries its severity.
	Kind Kind
	// Detail is the human-readable specifics (service name, measured lag).
	Detail string
}

// String renders the issue for logs and notifications.
func (i Issue) String() string {
	if i.Detail == "" {
		return i.Kind.String()
	}

	return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
}

// Report is the aggregated outcome of one probe cycle.
type Report struct {
	// Issues is the union of everything the four checks found.
	Issues []Issue
}

// Critical reports whether any critical-severity issue fired.
// Warning issues alone never flip the node to unhealthy.
func (r Report) Critical() bool {
	for _, issue := range r.Issues {
		if issue.Kind.Severity() == SeverityCritical {
			return true
		}
	}

	return false
}

// Summary joins all issues into one notification-ready line.
func (r Report) Summary() string {
	if len(r.Issues) == 0 {
		return "healthy"
	}

	out := ""
	for i, issue := range r.Issues {
		if i > 0 {
			out += "; "
		}

		out += issue.String()
	}

	return out
}
