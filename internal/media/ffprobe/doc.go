// Package ffprobe inspects media containers with ffprobe and converts the
// key-ordered "default" writer output into the media stream model.
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns a media.Probe
//   - Parse: parses already captured output (used by tests and Inspect)
//
// Every failure is a *ProbeError, which matches services.ErrProbe.
package ffprobe
