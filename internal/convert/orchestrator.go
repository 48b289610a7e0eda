package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ac3mux/internal/config"
	"ac3mux/internal/fileutil"
	"ac3mux/internal/language"
	"ac3mux/internal/logging"
	"ac3mux/internal/media/audio"
	"ac3mux/internal/plan"
	"ac3mux/internal/services"
	"ac3mux/internal/swap"
)

const defaultMaxParallel = 3

// Options controls a batch.
type Options struct {
	Policy        audio.Policy
	TargetBitrate int
	HWAccel       string
	// TempDir, when set, receives ffmpeg output before it is copied next to
	// the original.
	TempDir     string
	MaxParallel int
	// DryRun stops after planning.
	DryRun bool
}

// OptionsFromConfig maps the [convert] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	c := cfg.Convert
	return Options{
		Policy: audio.Policy{
			Allowed:        language.NewSet(c.Languages),
			KeepMultiple:   c.KeepMultipleAudio,
			KeepCommentary: c.KeepCommentary,
			PreferExisting: c.PreferExistingAC3,
		},
		TargetBitrate: c.TargetBitrate,
		HWAccel:       c.HWAccel,
		TempDir:       c.TempDir,
		MaxParallel:   c.MaxParallel,
	}
}

// RunInfo describes a batch when it starts.
type RunInfo struct {
	ID        string
	Root      string
	Files     int
	DryRun    bool
	StartedAt time.Time
}

// Recorder receives batch results as they are produced.
type Recorder interface {
	StartRun(ctx context.Context, run RunInfo) error
	RecordResult(ctx context.Context, runID string, res Result) error
	FinishRun(ctx context.Context, summary Summary) error
}

// Orchestrator runs batches.
type Orchestrator struct {
	opts       Options
	logger     *slog.Logger
	prober     Prober
	transcoder Transcoder
	swapper    *swap.Swapper
	recorder   Recorder
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder streams results to r.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New constructs an Orchestrator.
func New(opts Options, logger *slog.Logger, prober Prober, transcoder Transcoder, options ...Option) *Orchestrator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	o := &Orchestrator{
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "convert"),
		prober:     prober,
		transcoder: transcoder,
		swapper:    swap.New(logger),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run processes files with at most MaxParallel in flight. It never returns
// early on a per-file error. Once ctx is cancelled, files that have not
// started are reported as skipped.
func (o *Orchestrator) Run(ctx context.Context, root string, files []string) Summary {
	start := time.Now()
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("batch started",
		logging.String("root", root),
		logging.Int("files", len(files)),
		logging.Int("max_parallel", o.opts.MaxParallel),
		logging.Bool("dry_run", o.opts.DryRun),
		logging.String(logging.FieldEventType, "batch_started"),
	)

	o.record(ctx, func(r Recorder) error {
		return r.StartRun(ctx, RunInfo{ID: runID, Root: root, Files: len(files), DryRun: o.opts.DryRun, StartedAt: start.UTC()})
	})

	runDir := ""
	if o.opts.TempDir != "" && !o.opts.DryRun {
		runDir = RunStagingDir(o.opts.TempDir, runID)
		defer os.RemoveAll(runDir)
	}

	results := make([]Result, len(files))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxParallel)
	for i, path := range files {
		g.Go(func() error {
			res := o.process(ctx, runDir, path)
			o.record(ctx, func(r Recorder) error { return r.RecordResult(context.WithoutCancel(ctx), runID, res) })
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(runID, results, time.Since(start))
	o.record(ctx, func(r Recorder) error { return r.FinishRun(context.WithoutCancel(ctx), summary) })

	level := slog.LevelInfo
	attrs := []logging.Attr{
		logging.Int("converted", summary.Converted),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Duration),
		logging.String(logging.FieldEventType, "batch_finished"),
	}
	if summary.SwapFailures > 0 {
		level = slog.LevelError
		attrs = append(attrs, logging.Int("swap_failures", summary.SwapFailures), logging.Alert("swap_failures"))
	} else if summary.Failed > 0 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "batch finished", logging.Args(attrs...)...)
	return summary
}

func (o *Orchestrator) record(ctx context.Context, fn func(Recorder) error) {
	if o.recorder == nil {
		return
	}
	if err := fn(o.recorder); err != nil {
		logging.WithContext(ctx, o.logger).Warn("history write failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
	}
}

// ProcessFile runs one file through probe, select, plan, transcode and swap.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) Result {
	runDir := ""
	if o.opts.TempDir != "" && !o.opts.DryRun {
		id, ok := services.RunIDFromContext(ctx)
		if !ok {
			id = uuid.NewString()
		}
		runDir = RunStagingDir(o.opts.TempDir, id)
		defer removeIfEmpty(runDir)
	}
	return o.process(ctx, runDir, path)
}

// Plan probes path and returns the selection and plan without executing.
func (o *Orchestrator) Plan(ctx context.Context, path string) (audio.Selection, plan.Plan, error) {
	probe, err := o.prober.Probe(services.WithStage(ctx, "probe"), path)
	if err != nil {
		return audio.Selection{}, plan.Plan{}, err
	}
	sel := audio.Select(probe.Streams, o.opts.Policy)
	if !sel.OK() {
		return sel, plan.Plan{}, sel.Err()
	}
	p, err := plan.Build(probe, sel, o.planOptions(path, swap.StagedPath(path)))
	return sel, p, err
}

func (o *Orchestrator) planOptions(input, output string) plan.Options {
	return plan.Options{
		InputPath:     input,
		OutputPath:    output,
		TargetBitrate: o.opts.TargetBitrate,
		HWAccel:       o.opts.HWAccel,
	}
}

func (o *Orchestrator) process(ctx context.Context, runDir, path string) Result {
	start := time.Now()
	ctx = services.WithFile(ctx, path)
	logger := logging.WithContext(ctx, o.logger)

	if err := ctx.Err(); err != nil {
		return newResult(path, start, "", "cancelled", services.Wrap(services.ErrCancelled, "convert", "schedule", "batch cancelled before start", err))
	}

	probe, err := o.prober.Probe(services.WithStage(ctx, "probe"), path)
	if err != nil {
		logger.Warn("probe failed", logging.Error(err), logging.String(logging.FieldEventType, "probe_failed"))
		return newResult(path, start, "", "", err)
	}

	sel := audio.Select(probe.Streams, o.opts.Policy)
	logSelection(logger, sel)
	if !sel.OK() {
		return newResult(path, start, "", sel.Outcome.String(), sel.Err())
	}

	output, err := outputPath(runDir, path)
	if err != nil {
		return newResult(path, start, "", "", services.Wrap(services.ErrConfiguration, "convert", "staging", "", err))
	}
	staged := swap.StagedPath(path)

	p, err := plan.Build(probe, sel, o.planOptions(path, output))
	if err != nil {
		removeStagingDir(runDir, output)
		return newResult(path, start, "", "", err)
	}
	logger.Info("transcode plan",
		logging.Args(append(logging.DecisionAttrs("strategy", string(p.Strategy), p.Describe()),
			logging.Int("dropped_streams", p.Dropped),
		)...)...,
	)

	if p.Unchanged() {
		removeStagingDir(runDir, output)
		return skipped(path, start, p.Strategy, "already optimal")
	}
	if o.opts.DryRun {
		return skipped(path, start, p.Strategy, "dry run: "+p.Describe())
	}
	if fileutil.Exists(staged) {
		removeStagingDir(runDir, output)
		return newResult(path, start, p.Strategy, "", services.Wrap(services.ErrValidation, "convert", "staging",
			fmt.Sprintf("%s already exists; run recover or remove it", filepath.Base(staged)), nil))
	}

	cleanup := func() {
		_ = fileutil.RemoveIfExists(output)
		_ = fileutil.RemoveIfExists(staged)
		removeStagingDir(runDir, output)
	}

	sampler := logging.NewProgressSampler(10)
	tctx := services.WithStage(ctx, "transcode")
	err = o.transcoder.Transcode(tctx, p.Args, func(update Progress) {
		pct := update.Percent(probe.Duration)
		if pct < 0 || !sampler.ShouldLog(pct) {
			return
		}
		logging.WithContext(tctx, o.logger).Info("transcode progress",
			logging.Float64("percent", float64(int(pct))),
			logging.String("speed", update.Speed),
		)
	})
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return newResult(path, start, p.Strategy, "cancelled", services.Wrap(services.ErrCancelled, "convert", "transcode", "ffmpeg stopped", ctxErr))
		}
		var te *TranscodeError
		if !errors.As(err, &te) {
			err = &TranscodeError{Err: err}
		}
		logger.Warn("transcode failed", logging.Error(err), logging.String(logging.FieldEventType, "transcode_failed"))
		return newResult(path, start, p.Strategy, "", err)
	}

	if ok, statErr := fileutil.NonEmpty(output); statErr != nil || !ok {
		cleanup()
		te := &TranscodeError{Err: statErr}
		if statErr == nil {
			te.Err = errors.New("output missing or empty")
		}
		logger.Warn("transcode produced no output", logging.Error(te))
		return newResult(path, start, p.Strategy, "", te)
	}

	if output != staged {
		if err := fileutil.CopyFileVerified(ctx, output, staged); err != nil {
			cleanup()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return newResult(path, start, p.Strategy, "cancelled", services.Wrap(services.ErrCancelled, "convert", "copy back", "", ctxErr))
			}
			return newResult(path, start, p.Strategy, "", services.Wrap(services.ErrTranscode, "convert", "copy back", "verified copy from temp dir failed", err))
		}
		_ = fileutil.RemoveIfExists(output)
		removeStagingDir(runDir, output)
	}

	// The swap always runs to completion once started.
	sctx := services.WithStage(context.WithoutCancel(ctx), "swap")
	swapped, err := o.swapper.Swap(sctx, path, staged)
	if err != nil {
		var swapErr *swap.Error
		if !errors.As(err, &swapErr) || swapErr.Phase != swap.PhasePromote || swapErr.RolledBack {
			_ = fileutil.RemoveIfExists(staged)
		}
		logger.Error("swap failed",
			logging.Error(err),
			logging.Alert("swap_failed"),
			logging.String(logging.FieldErrorHint, "run ac3mux recover on the library"),
			logging.String(logging.FieldEventType, "swap_failed"),
		)
		return newResult(path, start, p.Strategy, "", err)
	}

	res := newResult(path, start, p.Strategy, p.Describe(), nil)
	res.Backup = swapped.Backup
	logger.Info("file converted",
		logging.String("strategy", string(p.Strategy)),
		logging.String("backup", swapped.Backup),
		logging.Duration("elapsed", res.Duration),
		logging.String(logging.FieldEventType, "file_converted"),
	)
	return res
}

func skipped(path string, start time.Time, strategy plan.Strategy, reason string) Result {
	return Result{
		Path:     path,
		Status:   services.StatusSkipped,
		Strategy: strategy,
		Reason:   reason,
		Duration: time.Since(start),
	}
}

func logSelection(logger *slog.Logger, sel audio.Selection) {
	result := "selected"
	if !sel.OK() {
		result = "skipped"
	}
	attrs := logging.DecisionAttrs("audio_selection", result, sel.Reason())
	for _, d := range sel.DroppedAudio {
		attrs = append(attrs, logging.String(fmt.Sprintf("dropped_%d", d.Stream.Index), d.Stream.Summary()+" | "+string(d.Reason)))
	}
	logger.Info("audio selection decision", logging.Args(attrs...)...)
}

func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
