// Package config loads, normalizes, and validates pipeline configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for
// secrets (redcap_token, halolink_access_token, uploader credentials),
// optionally sourced from a .env file. The Config type centralizes every
// knob the CLI needs: platform and registry endpoints, escrow study areas,
// journal and report locations, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
