// Package versionsource resolves the two versions the upgrade pipeline
// compares: what runs now and what the network runs.
//
// The deployed version comes from the current pointer the orchestrator
// writes on commit, with running-image introspection as a fallback. The
// network version comes from an ordered list of redundant status endpoints
// probed with independent short timeouts, with one release-catalog endpoint
// as last resort. Resolution failure is a distinct outcome from "no update
// available".
package versionsource
