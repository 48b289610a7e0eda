package ffprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"ac3mux/internal/media"
	"ac3mux/internal/services"
)

// Entries is the -show_entries selector used by Inspect. It requests exactly
// the fields Parse understands.
const Entries = "stream=index,codec_name,codec_type,channels,bit_rate:stream_tags=language,title:format=duration"

// ProbeError reports a failed or unparseable inspection. It matches
// services.ErrProbe under errors.Is.
type ProbeError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	var b strings.Builder
	b.WriteString("ffprobe")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProbeError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrProbe}
	}
	return []error{services.ErrProbe, e.Err}
}

// Args returns the ffprobe argument list for path.
func Args(path string) []string {
	return []string{"-v", "error", "-hide_banner", "-show_entries", Entries, "-of", "default", "-i", path}
}

// Inspect executes ffprobe against path and parses its key-ordered output.
func Inspect(ctx context.Context, binary string, path string) (media.Probe, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return media.Probe{}, &ProbeError{Reason: "empty path"}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, Args(path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		reason := "exit failure"
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			reason = detail
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason = fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), reason)
		}
		return media.Probe{}, &ProbeError{Path: path, Reason: reason, Err: err}
	}

	probe, err := Parse(&stdout)
	if err != nil {
		var perr *ProbeError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return media.Probe{}, err
	}
	probe.Path = path
	return probe, nil
}
