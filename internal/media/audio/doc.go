// Package audio chooses which audio and subtitle streams survive a
// conversion.
//
// Audio streams are filtered by the language allow-list (untagged streams
// always pass), commentary tracks are set aside, and the remaining
// candidates are ranked by:
//  1. Channel count, highest first
//  2. Known bitrate, highest first (unknown ranks below any known value)
//  3. Original stream index, lowest first
//
// Key types:
//   - Policy: allow-list and keep options
//   - Selection: kept and dropped streams plus the outcome
//
// Primary entry point:
//   - Select: pure function from streams and policy to Selection
package audio
