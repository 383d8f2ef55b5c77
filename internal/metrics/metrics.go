// Package metrics exposes Prometheus instrumentation for the warden.
//
// The monitor updates the gauges every probe cycle; the orchestrator counts
// terminal upgrade outcomes. Handler serves the registry for the optional
// /metrics listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the warden updates.
type Metrics struct {
	registry *prometheus.Registry

	// SyncLagSeconds is the current ingestion lag.
	SyncLagSeconds prometheus.Gauge
	// DiskFreeBytes is the current free space on the data disk.
	DiskFreeBytes prometheus.Gauge
	// IncidentActive is 1 while an incident is active.
	IncidentActive prometheus.Gauge
	// ProbeIssues counts issues observed per kind.
	ProbeIssues *prometheus.CounterVec
	// UpgradeOutcomes counts terminal orchestrator outcomes per result.
	UpgradeOutcomes *prometheus.CounterVec
	// ProbeDuration observes probe cycle duration in seconds.
	ProbeDuration prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SyncLagSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodewarden",
			Subsystem: "probe",
			Name:      "sync_lag_seconds",
			Help:      "Time since the node last ingested a new ledger record",
		}),
		DiskFreeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodewarden",
			Subsystem: "probe",
			Name:      "disk_free_bytes",
			Help:      "Free space on the data disk",
		}),
		IncidentActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodewarden",
			Subsystem: "alert",
			Name:      "incident_active",
			Help:      "Whether an unresolved incident exists (0 or 1)",
		}),
		ProbeIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewarden",
			Subsystem: "probe",
			Name:      "issues_total",
			Help:      "Total issues observed by kind",
		}, []string{"kind"}),
		UpgradeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodewarden",
			Subsystem: "upgrade",
			Name:      "outcomes_total",
			Help:      "Terminal upgrade outcomes by result",
		}, []string{"result"}),
		ProbeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nodewarden",
			Subsystem: "probe",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one probe cycle in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		m.SyncLagSeconds,
		m.DiskFreeBytes,
		m.IncidentActive,
		m.ProbeIssues,
		m.UpgradeOutcomes,
		m.ProbeDuration,
	)

	return m
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
