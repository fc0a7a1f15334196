// Package night models the unit of work: one observing night of one
// calibration, model and source. It derives every on-disk path the pipeline
// reads or writes, discovers which stations have data, and serializes
// concurrent coordinators through a per-night file lock.
package night
