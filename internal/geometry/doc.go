// Package geometry runs the pairwise plane solver over extracted events.
//
// A pair combination is solved once per event. A triple is solved for each
// of its three pairings; the primary pairing is kept unless its plane angle
// strays too far from perpendicular, in which case the remaining pairing
// closest to 90 degrees wins. The third station's own solution is then
// recombined with the winning solution.
//
// The chosen pairing and its angle are recorded per event in geometry.txt,
// which the plausibility step reads back.
package geometry
