// Package workflow drives nights through the pipeline steps.
//
// The Coordinator holds a fixed, ordered list of step handlers resolved at
// construction. For each night it checks the ledger for a memoized outcome,
// takes the per-night lock, discovers participating stations and then runs
// every step inside the requested [start, end] bounds. A step that returns a
// halting reason stops the night for this invocation; benign reasons
// ("nothing to do", "analysis complete") are memoized so later runs at retry
// level 0 skip the night without touching its tree. Unexpected errors and
// panics are caught at the step boundary and reported as an exception against
// the night being processed.
//
// Nights run sequentially. The scheduler snapshot is refreshed only before
// steps that read it, and only once it is older than the poll interval.
package workflow
