// Package main hosts the stereomatch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the structured
// logger and checkpoint ledger, and hands nights to the workflow
// coordinator. Reporting commands (status, steps, check) read the ledger and
// the environment without touching night trees.
//
// Keep this package lean: behavior belongs in the internal packages and is
// only surfaced here through commands and flags.
package main
