// Package stereo defines the detector stations, their fixed combinations, and
// the detection and match records exchanged between pipeline steps, together
// with the fixed-field text encoding used for downlists and match lists.
package stereo
