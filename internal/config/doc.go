// Package config loads, normalizes, and validates stereomatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STEREOMATCH_ROOT. The Config type centralizes every knob the coordinator and
// its steps need: directory roots, correlation and filtering thresholds,
// collaborator binaries, and the batch scheduler contract.
package config
