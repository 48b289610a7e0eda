// Package services defines shared utilities consumed by the conversion
// pipeline and the auxiliary commands.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, file paths, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent per-file statuses (converted, skipped, failed).
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform across commands.
package services
