package trailers

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ac3mux/internal/config"
	"ac3mux/internal/fileutil"
	"ac3mux/internal/logging"
	"ac3mux/internal/services"
	"ac3mux/internal/textutil"
	"ac3mux/internal/tmdb"
)

const stageName = "trailers"

// Status is the per-movie outcome of a trailer run.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusExists     Status = "exists"
	StatusDryRun     Status = "dry_run"
	StatusNoMatch    Status = "no_match"
	StatusNoTrailer  Status = "no_trailer"
	StatusFailed     Status = "failed"
)

// Options configures a Downloader.
type Options struct {
	OutputDir         string
	YTDLP             string
	CookiesBrowser    string
	CookiesFile       string
	SubtitleLanguages []string
	Patterns          []string
	DryRun            bool
}

// OptionsFromConfig derives downloader options for moviesDir.
func OptionsFromConfig(cfg *config.Config, moviesDir string) Options {
	return Options{
		OutputDir:         cfg.TrailerOutputDir(moviesDir),
		YTDLP:             cfg.Tools.YTDLP,
		CookiesBrowser:    cfg.Trailers.CookiesBrowser,
		CookiesFile:       cfg.Trailers.CookiesFile,
		SubtitleLanguages: append([]string(nil), cfg.Trailers.SubtitleLanguages...),
		Patterns:          append([]string(nil), cfg.Trailers.Patterns...),
	}
}

// Executor abstracts command execution for yt-dlp.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}

// Result describes what happened for one movie.
type Result struct {
	Movie       string
	Title       string
	TitleSource string
	URL         string
	Output      string
	Status      Status
	Err         error
}

// Summary aggregates a trailer run.
type Summary struct {
	Results    []Result
	Downloaded int
	Skipped    int
	Failed     int
}

// OK reports whether no movie failed.
func (s Summary) OK() bool { return s.Failed == 0 }

func summarize(results []Result) Summary {
	s := Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusDownloaded, StatusDryRun:
			s.Downloaded++
		case StatusFailed:
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}

// Downloader resolves and fetches trailers.
type Downloader struct {
	opts     Options
	searcher tmdb.Searcher
	exec     Executor
	logger   *slog.Logger
}

// Option customises a Downloader.
type Option func(*Downloader)

// WithExecutor replaces the yt-dlp executor.
func WithExecutor(exec Executor) Option {
	return func(d *Downloader) {
		if exec != nil {
			d.exec = exec
		}
	}
}

// New constructs a Downloader.
func New(opts Options, searcher tmdb.Searcher, logger *slog.Logger, options ...Option) *Downloader {
	if strings.TrimSpace(opts.YTDLP) == "" {
		opts.YTDLP = "yt-dlp"
	}
	d := &Downloader{
		opts:     opts,
		searcher: searcher,
		exec:     commandExecutor{},
		logger:   logging.NewComponentLogger(logger, stageName),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Run fetches trailers for every movie under moviesDir. Per-movie failures
// are reported in the summary; the error covers discovery problems only.
func (d *Downloader) Run(ctx context.Context, moviesDir string) (Summary, error) {
	info, err := os.Stat(moviesDir)
	if err != nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, stageName, "scan", "movies directory unavailable", err)
	}
	if !info.IsDir() {
		return Summary{}, services.Wrap(services.ErrConfiguration, stageName, "scan", moviesDir+" is not a directory", nil)
	}
	movies, err := FindMovies(ctx, moviesDir, d.opts.Patterns, d.opts.OutputDir)
	if err != nil {
		if ctx.Err() != nil {
			return Summary{}, services.Wrap(services.ErrCancelled, stageName, "scan", "scan interrupted", err)
		}
		return Summary{}, services.Wrap(services.ErrExternalTool, stageName, "scan", "walk movies directory", err)
	}
	d.logger.Info("trailer scan complete",
		logging.String(logging.FieldEventType, "trailer_scan"),
		logging.String("movies_dir", moviesDir),
		logging.String("output_dir", d.opts.OutputDir),
		logging.Int("movies", len(movies)),
		logging.Bool("dry_run", d.opts.DryRun),
	)
	if !d.opts.DryRun && len(movies) > 0 {
		if err := os.MkdirAll(d.opts.OutputDir, 0o755); err != nil {
			return Summary{}, services.Wrap(services.ErrConfiguration, stageName, "prepare", "create output directory", err)
		}
	}

	results := make([]Result, 0, len(movies))
	for _, movie := range movies {
		if ctx.Err() != nil {
			break
		}
		results = append(results, d.Fetch(ctx, movie))
	}
	summary := summarize(results)
	d.logger.Info("trailer run finished",
		logging.String(logging.FieldEventType, "trailer_summary"),
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	if err := ctx.Err(); err != nil {
		return summary, services.Wrap(services.ErrCancelled, stageName, "download", "trailer run interrupted", err)
	}
	return summary, nil
}

// Fetch resolves and downloads the trailer for a single movie file.
func (d *Downloader) Fetch(ctx context.Context, movie string) Result {
	logger := d.logger.With(logging.String(logging.FieldFile, filepath.Base(movie)))
	title, source, err := ResolveTitle(movie)
	if err != nil {
		logger.Warn("nfo unreadable; using file name",
			logging.Error(err),
			logging.String(logging.FieldEventType, "nfo_parse_failed"),
			logging.String(logging.FieldErrorHint, "check the .nfo is valid XML"),
			logging.String(logging.FieldImpact, "trailer search uses the file name"),
		)
	}
	res := Result{Movie: movie, Title: title, TitleSource: source}
	res.Output = filepath.Join(d.opts.OutputDir, trailerFileName(title))

	if fileutil.Exists(res.Output) {
		res.Status = StatusExists
		logger.Info("trailer already present", logging.String("output", res.Output))
		return res
	}

	url, status, err := d.lookup(ctx, title)
	res.URL = url
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		logger.Warn("trailer lookup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "trailer_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check tmdb.api_key and network access"),
			logging.String(logging.FieldImpact, "movie has no trailer"),
		)
		return res
	}
	if status != "" {
		res.Status = status
		logger.Info("no trailer available",
			logging.Args(logging.DecisionAttrs("trailer_lookup", string(status), title)...)...)
		return res
	}

	if d.opts.DryRun {
		res.Status = StatusDryRun
		logger.Info("dry run: would download trailer",
			logging.String("title", title),
			logging.String("url", url),
			logging.String("output", res.Output),
		)
		return res
	}

	args := DownloadArgs(d.opts, url, res.Output)
	logger.Debug("invoking yt-dlp", logging.String("args", strings.Join(args, " ")))
	output, err := d.exec.Run(ctx, d.opts.YTDLP, args)
	if err != nil {
		_ = fileutil.RemoveIfExists(res.Output)
		_ = fileutil.RemoveIfExists(res.Output + ".part")
		marker := services.ErrExternalTool
		if ctx.Err() != nil {
			marker = services.ErrCancelled
		}
		res.Status = StatusFailed
		res.Err = services.Wrap(marker, stageName, "yt-dlp", tail(output), err)
		logger.Warn("trailer download failed",
			logging.Error(res.Err),
			logging.String(logging.FieldEventType, "trailer_download_failed"),
			logging.String(logging.FieldErrorHint, "update yt-dlp or supply browser cookies"),
			logging.String(logging.FieldImpact, "movie has no trailer"),
		)
		return res
	}
	res.Status = StatusDownloaded
	logger.Info("trailer downloaded",
		logging.String("title", title),
		logging.String("output", res.Output),
	)
	return res
}

func (d *Downloader) lookup(ctx context.Context, title string) (string, Status, error) {
	if d.searcher == nil {
		return "", "", services.Wrap(services.ErrConfiguration, stageName, "tmdb", "tmdb client not configured", nil)
	}
	resp, err := d.searcher.SearchMovie(ctx, title)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "tmdb search", title, err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return "", StatusNoMatch, nil
	}
	videos, err := d.searcher.MovieVideos(ctx, resp.Results[0].ID)
	if err != nil {
		return "", "", services.Wrap(services.ErrExternalTool, stageName, "tmdb videos", title, err)
	}
	trailer, ok := tmdb.FirstTrailer(videos)
	if !ok {
		return "", StatusNoTrailer, nil
	}
	return trailer.YouTubeURL(), "", nil
}

// DownloadArgs builds the yt-dlp argument list.
func DownloadArgs(opts Options, url, output string) []string {
	args := []string{"-f", "mp4"}
	if opts.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", opts.CookiesBrowser)
	}
	if opts.CookiesFile != "" {
		args = append(args, "--cookies", opts.CookiesFile)
	}
	if len(opts.SubtitleLanguages) > 0 {
		args = append(args, "--write-subs", "--sub-langs", strings.Join(opts.SubtitleLanguages, ","))
	}
	return append(args, "-o", output, url)
}

func trailerFileName(title string) string {
	name := textutil.SanitizeFileName(title)
	if name == "" {
		name = "trailer"
	}
	return name + ".mp4"
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "download failed"
	}
	lines := strings.Split(text, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
