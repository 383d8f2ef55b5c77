// Package runlock guards the upgrade orchestrator against concurrent runs.
//
// The lock is a plain file holding the owner's pid. A second invocation
// finding a live holder exits immediately; a lock whose holder has died is
// reclaimed so a crashed run never wedges the deployment.
package runlock
