// Package status implements the read-only reporting surface: it gathers the
// deployed version, the network version, and the incident state into one
// short report without mutating anything.
package status
