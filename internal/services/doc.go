// Package services defines shared utilities consumed by the pipeline steps and
// the external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp night identifiers, combination tags, step
//     names, and run identifiers for logging.
//   - Structured error markers plus the Wrap helper so the coordinator can
//     tell missing input from tool failures when it reports an exception.
//
// Collaborator clients live in subpackages (dsttools, scheduler).
package services
