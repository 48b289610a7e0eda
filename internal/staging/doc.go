// Package staging manages the per-run directories convert creates under the
// configured temp directory. Runs remove their own directory on exit; the
// helpers here reclaim directories left behind by crashed or killed runs.
package staging
