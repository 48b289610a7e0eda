// Package convert runs the audio normalisation batch.
//
// An Orchestrator processes files with bounded concurrency. Each file is
// handled in isolation: probe, select, plan, transcode into a staging path,
// verify, then swap into place. Per-file failures become Result records and
// never stop the batch; only configuration problems are fatal, and those are
// caught before the first file starts.
package convert
