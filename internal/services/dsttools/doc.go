// Package dsttools wraps the data-bank collaborator programs: the per-station
// detection dump, bulk position extraction, the pairwise plane solver, bank
// inspection, event merge and bank recombination, and the tuple and profile
// text dumpers.
//
// Every output a collaborator writes is produced under a temporary name in
// the destination directory and renamed into place once the run succeeds.
// Non-empty stderr from a successful run is logged as a warning and otherwise
// ignored.
package dsttools
