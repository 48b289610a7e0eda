// Package config loads, normalizes, and validates ac3mux configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// CONVERT_DIRECTORY and TMDB_API_KEY. The Config type centralizes every knob
// the CLI needs so the conversion batch, trailer downloader, and history store
// discover their settings in one pass.
package config
