// Package state persists the deployment status record: the current release
// version and the incident lifecycle the alerting state machine maintains.
//
// The record is a plain YAML key/value file; no schema migration is needed.
package state
