package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ac3mux/internal/config"
	"ac3mux/internal/deps"
	"ac3mux/internal/tmdb"
)

// CheckTMDB verifies that the TMDB API is reachable and the key is valid.
// It uses a 15-second timeout and a single attempt.
func CheckTMDB(ctx context.Context, cfg config.TMDB) Result {
	const name = "TMDB"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Optional: true, Detail: "API key missing (trailers disabled)"}
	}
	client, err := tmdb.New(cfg.APIKey, cfg.BaseURL, cfg.Language)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Optional: true, Detail: summarizeNetworkError(err)}
	}
	return Result{Name: name, Optional: true, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEncoders verifies that ffmpeg was built with the ac3 and eac3 encoders.
func CheckEncoders(ctx context.Context, ffmpeg string) Result {
	const name = "AC3 encoders"
	missing, err := deps.MissingEncoders(ctx, ffmpeg, deps.RequiredEncoders)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: "ffmpeg lacks encoders: " + strings.Join(missing, ", ")}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(deps.RequiredEncoders, ", ")}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// yt-dlp is required only when trailers is set.
func CheckSystemDeps(ctx context.Context, cfg *config.Config, trailers bool) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Required for audio conversion",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Required for media inspection",
			VersionArgs: []string{"-hide_banner", "-version"},
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YTDLP,
			Description: "Required for trailer downloads",
			Optional:    !trailers,
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

// FromDependency converts a dependency status to a preflight result.
func FromDependency(status deps.Status) Result {
	detail := status.Detail
	if status.Available {
		detail = status.Path
		if status.Version != "" {
			detail += " (" + status.Version + ")"
		}
	}
	return Result{Name: status.Name, Passed: status.Available, Optional: status.Optional, Detail: detail}
}

// summarizeNetworkError produces a human-readable summary for API check failures.
func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (API unreachable)"
	}
	return err.Error()
}
