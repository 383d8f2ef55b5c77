package incident

import "time"

// Phase is the alerting lifecycle of the single per-deployment incident.
type Phase string

const (
	// PhaseNone means no unresolved problem exists.
	PhaseNone Phase = "none"
	// PhaseActive means a problem was alerted and is not yet resolved.
	PhaseActive Phase = "active"
)

// Incident is the alerting system's notion of "an unresolved problem exists",
// independent of which check caused it. Exactly one exists per deployment.
type Incident struct {
	// Phase is the current lifecycle phase.
	Phase Phase
	// PinnedMessageID is the notifier id of the alert pinned while active.
	PinnedMessageID string
	// StartedAt is when the current episode began. Zero when Phase is none.
	StartedAt time.Time
}

// Active reports whether an unresolved episode exists.
func (i *Incident) Active() bool {
	return i != nil && i.Phase == PhaseActive
}

// Clone returns a copy of the incident to avoid leaking internal references.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}

	cloned := *i

	return &cloned
}
