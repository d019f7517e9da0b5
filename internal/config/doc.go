// Package config loads, normalizes, and validates evalboard configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EXTERNAL_API_BASE_URL. The Config type centralizes every knob the daemon and
// CLI need so external service endpoints and credentials are discovered in one
// pass.
package config
