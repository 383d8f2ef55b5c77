// Package lifecycle is the boundary to the container runtime running the node.
//
// The Lifecycle interface covers start/stop/pull/status/introspection for the
// managed process set; Compose implements it by shelling out to the docker
// compose CLI with per-call timeouts.
package lifecycle
