// Package correlate holds the pure matching algorithms: pairwise coincidence
// search between two station downlists, promotion of events seen by all three
// stations into triple matches, and the calibration-laser contamination
// predicate. Nothing here touches the filesystem.
package correlate
