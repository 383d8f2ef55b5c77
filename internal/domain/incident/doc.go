// Package incident contains the core domain type for the alerting lifecycle.
//
// It defines the two-phase Incident record (none/active) with the id of the
// currently pinned notification and a Clone helper to avoid leaking internal
// references.
package incident
