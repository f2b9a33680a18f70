// Package config loads, normalizes, and validates zapzap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment fallbacks the
// service has always accepted (HEYGEN_API_KEY, CLOUDCONVERT_API_KEY,
// DROPBOX_ACCESS_TOKEN, DROPBOX_FOLDER).
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a canonical archive root, and clear validation errors.
package config
