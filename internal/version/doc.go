// Package version exposes build metadata for the project and the ordered
// release version type used by the upgrade pipeline.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The V type
// models a "major.minor.patch" release of the managed node software and
// provides the comparisons the orchestrator relies on: equality,
// anti-downgrade ordering, and major.minor compatibility.
package version
