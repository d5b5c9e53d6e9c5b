// Package config loads, normalizes, and validates interact configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files with unknown keys rejected, and honours the
// INTERACT_HOME environment fallback. The Config type centralizes every knob
// the web server, job scripts and CLI need so that project homes, the queue
// location and the inSPIRE binary are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
