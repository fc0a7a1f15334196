// Package preflight provides readiness checks for the filesystem roots and
// collaborator programs stereomatch depends on.
//
// These checks run in two contexts:
//   - The coordinator calls RunAll before processing nights. If a required
//     check fails, the invocation stops before touching any night.
//   - The CLI "check" command prints every result.
package preflight
