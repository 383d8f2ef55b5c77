// Package monitor judges node health and decides when to notify an operator.
//
// The Probe collects raw signals each cycle through four independent,
// gracefully degrading checks: process status (with optional auto-restart
// remediation), ingestion lag, the failure counter and free disk. The
// AlertStateMachine reduces the aggregated critical flag into the single
// per-deployment incident: one alert per failure episode, one resolved
// notification per recovery, nothing in between.
package monitor
