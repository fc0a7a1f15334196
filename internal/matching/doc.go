// Package matching hosts the three steps that turn station downlists into
// active match lists: pairwise correlation, triple isolation and removal of
// calibration laser contamination.
//
// Each step reads the previous step's files from the night tree, computes
// its whole output in memory and writes it through fileutil.WriteFileAtomic
// before marking its checkpoint.
package matching
