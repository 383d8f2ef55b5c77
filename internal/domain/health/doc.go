// Package health contains core domain types for node health assessment.
//
// An Issue is a tagged variant (Kind plus detail) whose severity is a
// property of the kind. A Report aggregates one probe cycle and decides
// whether anything critical fired.
package health
