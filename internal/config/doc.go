// Package config holds the scanner configuration: defaults, CLI-facing
// options, per-site overrides loaded from the YAML config file, and
// synchronous validation.
//
// Configuration faults are rejected before any pipeline phase starts;
// a scan never begins against an invalid root URL or out-of-range
// parameter.
package config
