package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nodewarden/nodewarden/internal/domain/incident"
	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/metrics"
	"github.com/nodewarden/nodewarden/internal/notify"
	repo "github.com/nodewarden/nodewarden/internal/repository/state"
)

// AlertStateMachine reduces probe outcomes (and orchestrator outcomes) into
// the single per-deployment incident, deciding whether to notify, dedupe or
// resolve. It is keyed only on the boolean "anything critical": flapping
// between different critical causes while remaining continuously critical
// never re-alerts.
type AlertStateMachine struct {
	// statuses persists the incident across cycles.
	statuses repo.Repository
	// notifier delivers the alert and resolved notifications.
	notifier notify.Notifier
	// metrics mirrors the incident state when wired.
	metrics *metrics.Metrics

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewAlertStateMachine creates the state machine over the status repository.
func NewAlertStateMachine(statuses repo.Repository, notifier notify.Notifier, m *metrics.Metrics) *AlertStateMachine {
	return &AlertStateMachine{
		statuses: statuses,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// Evaluate runs one transition of the incident model:
//
//	none   x healthy  -> no-op
//	none   x critical -> send one alert, pin it, incident active
//	active x critical -> log only
//	active x healthy  -> unpin, send one resolved notification, incident cleared
func (m *AlertStateMachine) Evaluate(ctx context.Context, critical bool, message string) error {
	status, err := m.statuses.Load(ctx)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("load status record: %w", err)
		}

		status = &repo.Status{IncidentPhase: incident.PhaseNone}
	}

	inc := status.Incident()

	switch {
	case !inc.Active() && !critical:
		return nil
	case !inc.Active() && critical:
		return m.raise(ctx, status, message)
	case inc.Active() && critical:
		m.setGauge(true)
		logger.WarnKV(ctx, "Incident still active", "since", inc.StartedAt.Format(time.RFC3339),
			"detail", message)

		return nil
	default:
		return m.resolve(ctx, status)
	}
}

// raise opens a new incident episode: exactly one alert, pinned.
func (m *AlertStateMachine) raise(ctx context.Context, status *repo.Status, message string) error {
	inc := &incident.Incident{
		Phase:     incident.PhaseActive,
		StartedAt: m.now(),
	}

	if id, ok := m.notifier.Send(ctx, "ALERT: "+message); ok {
		m.notifier.Pin(ctx, id)
		inc.PinnedMessageID = id
	}

	status.SetIncident(inc)
	m.setGauge(true)

	logger.ErrorKV(ctx, "Incident raised", "detail", message)

	return m.statuses.Save(ctx, status)
}

// resolve closes the episode: unpin, exactly one resolved notification.
func (m *AlertStateMachine) resolve(ctx context.Context, status *repo.Status) error {
	inc := status.Incident()

	if inc.PinnedMessageID != "" {
		m.notifier.Unpin(ctx, inc.PinnedMessageID)
	}

	duration := m.now().Sub(inc.StartedAt).Round(time.Second)
	if _, ok := m.notifier.Send(ctx, fmt.Sprintf("Resolved: node healthy again after %s.", duration)); ok {
		logger.Debug(ctx, "Resolved notification sent")
	}

	status.SetIncident(&incident.Incident{Phase: incident.PhaseNone})
	m.setGauge(false)

	logger.InfoKV(ctx, "Incident resolved", "duration", duration.String())

	return m.statuses.Save(ctx, status)
}

// setGauge mirrors the incident state into metrics when wired.
func (m *AlertStateMachine) setGauge(active bool) {
	if m.metrics == nil {
		return
	}

	value := 0.0
	if active {
		value = 1.0
	}

	m.metrics.IncidentActive.Set(value)
}
