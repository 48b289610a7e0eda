// Package preflight provides readiness checks for the external tools,
// services and filesystem paths that ac3mux depends on.
//
// These checks run in two contexts:
//   - The convert command calls RunAll before a batch and refuses to start
//     when a blocking check fails.
//   - The "ac3mux check" command renders every check, including optional
//     ones such as yt-dlp and TMDB, as a table.
package preflight
