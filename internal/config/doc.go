// Package config loads, normalizes, and validates moviesync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the MOVIESYNC_CATALOG_FILE
// environment fallback. Unknown keys are rejected so typos surface at load time
// instead of silently falling back to defaults.
package config
