package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"ac3mux/internal/fileutil"
	"ac3mux/internal/logging"
	"ac3mux/internal/media"
	"ac3mux/internal/media/ffprobe"
	"ac3mux/internal/services"
	"ac3mux/internal/textutil"
)

const stageName = "subtitles"

type commandRunner func(ctx context.Context, name string, args ...string) error

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, path string) (media.Probe, error)

// Track describes one extracted (or already present) subtitle file.
type Track struct {
	Index    int
	Language string
	Codec    string
	Path     string
	// Existing is set when the output was already present and left alone.
	Existing bool
}

// Extractor writes subtitle streams to disk with ffmpeg.
type Extractor struct {
	ffmpeg string
	probe  ProbeFunc
	run    commandRunner
	logger *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithCommandRunner allows injecting a custom command runner for tests.
func WithCommandRunner(r commandRunner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.run = r
		}
	}
}

// WithProbe replaces the ffprobe-backed inspector.
func WithProbe(fn ProbeFunc) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.probe = fn
		}
	}
}

// NewExtractor constructs an Extractor for the given binaries.
func NewExtractor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		ffmpeg: fallback(ffmpegBinary, "ffmpeg"),
		probe: func(ctx context.Context, path string) (media.Probe, error) {
			return ffprobe.Inspect(ctx, fallback(ffprobeBinary, "ffprobe"), path)
		},
		run:    defaultCommandRunner,
		logger: logging.NewComponentLogger(logger, stageName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes every subtitle stream of input into outDir. A file without
// subtitle streams yields an empty slice and no error.
func (e *Extractor) Extract(ctx context.Context, input, outDir string) ([]Track, error) {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(outDir) == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "extract", "input and output directory are required", nil)
	}
	probe, err := e.probe(ctx, input)
	if err != nil {
		return nil, services.Wrap(services.ErrProbe, stageName, "probe", filepath.Base(input), err)
	}
	streams := probe.Subtitles()
	logger := e.logger.With(logging.String(logging.FieldFile, filepath.Base(input)))
	if len(streams) == 0 {
		logger.Info("no subtitle streams found")
		return []Track{}, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "prepare", "create output directory", err)
	}

	tracks := make([]Track, 0, len(streams))
	for _, stream := range streams {
		track := Track{
			Index:    stream.Index,
			Language: languageLabel(stream.Language),
			Codec:    stream.Codec,
		}
		ext, codecArg := outputFormat(stream.Codec)
		track.Path = filepath.Join(outDir, fmt.Sprintf("subtitle_%d_%s%s", stream.Index, track.Language, ext))
		if fileutil.Exists(track.Path) {
			track.Existing = true
			tracks = append(tracks, track)
			logger.Info("subtitle already extracted", logging.String("output", track.Path))
			continue
		}
		args := Args(input, stream.Index, codecArg, track.Path)
		if err := e.run(ctx, e.ffmpeg, args...); err != nil {
			_ = fileutil.RemoveIfExists(track.Path)
			marker := services.ErrExternalTool
			if ctx.Err() != nil {
				marker = services.ErrCancelled
			}
			return tracks, services.Wrap(marker, stageName, "ffmpeg", fmt.Sprintf("extract stream %d", stream.Index), err)
		}
		tracks = append(tracks, track)
		logger.Info("subtitle extracted",
			logging.Int("stream_index", stream.Index),
			logging.String("language", track.Language),
			logging.String("codec", stream.Codec),
			logging.String("output", track.Path),
		)
	}
	return tracks, nil
}

// Args builds the ffmpeg argument list for extracting one stream.
func Args(input string, index int, codec, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", input,
		"-map", "0:" + strconv.Itoa(index),
		"-c:s", codec,
		output,
	}
}

// outputFormat maps a subtitle codec to a file extension and ffmpeg codec.
// Codecs without a raw standalone format go into a Matroska subtitle file.
func outputFormat(codec string) (string, string) {
	switch strings.ToLower(codec) {
	case "hdmv_pgs_subtitle", "pgssub":
		return ".sup", "copy"
	case "subrip", "srt":
		return ".srt", "copy"
	case "mov_text":
		return ".srt", "srt"
	case "ass":
		return ".ass", "copy"
	case "ssa":
		return ".ssa", "copy"
	case "webvtt":
		return ".vtt", "copy"
	default:
		return ".mks", "copy"
	}
}

func languageLabel(lang media.Language) string {
	tag, _ := lang.Tag()
	return textutil.SanitizeToken(tag)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
