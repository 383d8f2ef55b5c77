// Package upgrader contains the upgrade orchestrator: one safe upgrade
// transaction over the bundle store, config migrator, container runtime and
// version source.
//
// The workflow is an ordered state machine: resolving, (backup), downloading,
// migrating, pre-pulling, cutting over, verifying, then committed or rolling
// back. Everything before the cutover is retryable and leaves the live system
// untouched; a failure at or after the cutover triggers exactly one rollback
// attempt. The current pointer advances only on commit, so the deployment is
// never left on a broken or downgraded version.
package upgrader
