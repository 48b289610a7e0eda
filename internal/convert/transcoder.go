package convert

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"ac3mux/internal/media"
	"ac3mux/internal/media/ffprobe"
	"ac3mux/internal/services"
)

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Probe, error)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context, path string) (media.Probe, error)

func (f ProbeFunc) Probe(ctx context.Context, path string) (media.Probe, error) {
	return f(ctx, path)
}

// FFprobe returns a Prober backed by the ffprobe binary.
func FFprobe(binary string) Prober {
	return ProbeFunc(func(ctx context.Context, path string) (media.Probe, error) {
		return ffprobe.Inspect(ctx, binary, path)
	})
}

// Progress is one ffmpeg -progress block.
type Progress struct {
	OutTime time.Duration
	Speed   string
	Done    bool
}

// Transcoder executes a fully built ffmpeg argument list. Implementations
// must stop the process and return once ctx is cancelled.
type Transcoder interface {
	Transcode(ctx context.Context, args []string, progress func(Progress)) error
}

// TranscodeError is a failed ffmpeg run.
type TranscodeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *TranscodeError) Error() string {
	msg := "ffmpeg failed"
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	}
	if e.Err != nil && e.ExitCode <= 0 {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *TranscodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrTranscode}
	}
	return []error{services.ErrTranscode, e.Err}
}

const stderrTailBytes = 2048

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	Binary string
	// WaitDelay bounds how long Wait blocks on pipes after ffmpeg is killed.
	WaitDelay time.Duration
}

func (f FFmpeg) Transcode(ctx context.Context, args []string, progress func(Progress)) error {
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = f.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &TranscodeError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &TranscodeError{Err: err}
	}

	parseErr := ParseProgress(stdout, progress)
	// Drain whatever is left so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &TranscodeError{Err: ctxErr, Stderr: stderr.String()}
	}
	if waitErr != nil {
		te := &TranscodeError{Err: waitErr, Stderr: stderr.String()}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		return te
	}
	if parseErr != nil {
		return &TranscodeError{Err: fmt.Errorf("read progress: %w", parseErr), Stderr: stderr.String()}
	}
	return nil
}

// ParseProgress reads ffmpeg `-progress` key=value output and calls fn at
// the end of every block. fn may be nil.
func ParseProgress(r io.Reader, fn func(Progress)) error {
	scanner := bufio.NewScanner(r)
	var current Progress
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// ffmpeg reports microseconds under both keys.
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				current.OutTime = time.Duration(us) * time.Microsecond
			}
		case "speed":
			current.Speed = strings.TrimSpace(value)
		case "progress":
			current.Done = value == "end"
			if fn != nil {
				fn(current)
			}
		}
	}
	return scanner.Err()
}

// Percent converts progress into a 0-100 percentage of total. It returns -1
// when total is unknown.
func (p Progress) Percent(total time.Duration) float64 {
	if p.Done {
		return 100
	}
	if total <= 0 {
		return -1
	}
	pct := float64(p.OutTime) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
