package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/config"
	"ac3mux/internal/convert"
	"ac3mux/internal/history"
	"ac3mux/internal/library"
	"ac3mux/internal/logging"
	"ac3mux/internal/notifications"
	"ac3mux/internal/preflight"
	"ac3mux/internal/services"
	"ac3mux/internal/staging"
	"ac3mux/internal/swap"
)

type convertFlags struct {
	dryRun         bool
	maxParallel    int
	tempDir        string
	languages      []string
	hwAccel        string
	targetBitrate  int
	keepMultiple   bool
	keepCommentary bool
	preferExisting bool
	noHistory      bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert [directory|file]",
		Short: "Normalise the audio of every media file under a directory",
		Long: `Convert inspects every media file under the directory (convert.directory by
default), keeps the best audio stream in an allowed language and rewrites the
file so that stream is AC3 or E-AC3. Originals are kept as <name>_old<ext>.

Files that already satisfy the policy are left untouched. Use --dry-run to
print the decisions without running ffmpeg.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyConvertFlags(cmd, cfg, flags); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			root := cfg.Convert.Directory
			if len(args) == 1 {
				if root, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			if strings.TrimSpace(root) == "" {
				return services.Wrap(services.ErrConfiguration, "convert", "resolve root", "no directory given and convert.directory is empty", nil)
			}

			summary, err := runConvert(cmd.Context(), cfg, logger, root, flags)
			if err != nil {
				return err
			}
			notifyBatch(cmd.Context(), notifications.NewService(cfg), logger, root, flags.dryRun, summary)
			if ctx.JSONMode() {
				if err := writeJSON(cmd, summaryJSON(summary)); err != nil {
					return err
				}
			} else {
				printSummary(cmd, summary)
			}
			return summaryError(summary)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&flags.dryRun, "dry-run", "n", false, "Print decisions without running ffmpeg")
	f.IntVarP(&flags.maxParallel, "max-parallel", "j", 0, "Files processed concurrently (convert.max_parallel)")
	f.StringVar(&flags.tempDir, "temp-dir", "", "Scratch directory for ffmpeg output (convert.temp_dir)")
	f.StringSliceVarP(&flags.languages, "languages", "l", nil, "Allowed audio/subtitle languages (convert.languages)")
	f.StringVar(&flags.hwAccel, "hw-accel", "", "Hardware decode: auto, nvenc, qsv, amf, vaapi or none")
	f.IntVar(&flags.targetBitrate, "target-bitrate", 0, "AC3 bitrate in kbps for lossless sources")
	f.BoolVar(&flags.keepMultiple, "keep-multiple", false, "Keep every allowed audio stream, best first")
	f.BoolVar(&flags.keepCommentary, "keep-commentary", false, "Keep commentary tracks")
	f.BoolVar(&flags.preferExisting, "prefer-existing", false, "Prefer an existing AC3/E-AC3 stream over a better source")
	f.BoolVar(&flags.noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

func applyConvertFlags(cmd *cobra.Command, cfg *config.Config, flags convertFlags) error {
	f := cmd.Flags()
	if f.Changed("max-parallel") {
		cfg.Convert.MaxParallel = flags.maxParallel
	}
	if f.Changed("temp-dir") {
		dir, err := config.ExpandPath(flags.tempDir)
		if err != nil {
			return err
		}
		cfg.Convert.TempDir = dir
	}
	if f.Changed("languages") {
		cfg.Convert.Languages = flags.languages
	}
	if f.Changed("hw-accel") {
		cfg.Convert.HWAccel = strings.ToLower(strings.TrimSpace(flags.hwAccel))
		if cfg.Convert.HWAccel == "none" {
			cfg.Convert.HWAccel = ""
		}
	}
	if f.Changed("target-bitrate") {
		cfg.Convert.TargetBitrate = flags.targetBitrate
	}
	if f.Changed("keep-multiple") {
		cfg.Convert.KeepMultipleAudio = flags.keepMultiple
	}
	if f.Changed("keep-commentary") {
		cfg.Convert.KeepCommentary = flags.keepCommentary
	}
	if f.Changed("prefer-existing") {
		cfg.Convert.PreferExistingAC3 = flags.preferExisting
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "convert", "flags", "invalid option", err)
	}
	return cfg.EnsureDirectories()
}

func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger, root string, flags convertFlags) (convert.Summary, error) {
	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, r := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return convert.Summary{}, services.Wrap(services.ErrConfiguration, "convert", "preflight",
			"environment not ready (run `ac3mux check`): "+strings.Join(parts, "; "), nil)
	}

	if _, err := statDir(root); err != nil {
		return convert.Summary{}, services.Wrap(services.ErrConfiguration, "convert", "resolve root", "library root unavailable", err)
	}

	if !flags.dryRun {
		lock, err := convert.AcquireLock(cfg.LockPath())
		if err != nil {
			return convert.Summary{}, err
		}
		defer lock.Release()

		if cfg.Convert.TempDir != "" {
			staging.CleanStale(ctx, cfg.Convert.TempDir, convert.StagingPrefix, staging.DefaultMaxAge, logger)
		}
		if err := recoverInterrupted(ctx, logger, root); err != nil {
			return convert.Summary{}, err
		}
	}

	files, err := library.Scan(ctx, root, cfg.Convert.Extensions)
	if err != nil {
		return convert.Summary{}, err
	}

	opts := convert.OptionsFromConfig(cfg)
	opts.DryRun = flags.dryRun
	var options []convert.Option
	if !flags.noHistory {
		store, err := history.Open(ctx, cfg.HistoryPath())
		if err != nil {
			logger.Warn("history unavailable; run will not be recorded",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_open_failed"),
				logging.String(logging.FieldErrorHint, "check paths.state_dir or delete a corrupt history.db"),
				logging.String(logging.FieldImpact, "run history incomplete"),
			)
		} else {
			defer store.Close()
			options = append(options, convert.WithRecorder(store))
		}
	}

	orchestrator := convert.New(opts, logger,
		convert.FFprobe(cfg.Tools.FFprobe),
		convert.FFmpeg{Binary: cfg.Tools.FFmpeg},
		options...,
	)
	return orchestrator.Run(ctx, root, files), nil
}

// recoverInterrupted resolves swap journals left by a killed run before new
// swaps are attempted in the same tree.
func recoverInterrupted(ctx context.Context, logger *slog.Logger, root string) error {
	recoveries, err := swap.New(logger).Recover(ctx, recoverRoot(root))
	if err != nil {
		return err
	}
	for _, r := range recoveries {
		if r.Resolution == swap.ResolutionNeedsAttention {
			return services.Wrap(services.ErrConfiguration, "convert", "recover",
				fmt.Sprintf("interrupted swap needs attention: %s (%s)", r.Journal.Original, r.Detail), nil)
		}
	}
	return nil
}

func recoverRoot(root string) string {
	if isDir, err := statDir(root); err == nil && !isDir {
		return filepath.Dir(root)
	}
	return root
}

// notifyBatch reports the run and every swap failure. Delivery problems are
// logged and never change the command's outcome.
func notifyBatch(ctx context.Context, notifier notifications.Service, logger *slog.Logger, root string, dryRun bool, summary convert.Summary) {
	if !notifier.Enabled() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	warn := func(err error) {
		logger.Warn("notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
	for _, r := range summary.Results {
		if errors.Is(r.Err, services.ErrSwap) {
			if err := notifier.NotifySwapFailed(ctx, r.Path, r.Err); err != nil {
				warn(err)
			}
		}
	}
	report := notifications.BatchReport{
		Root:         root,
		Converted:    summary.Converted,
		Skipped:      summary.Skipped,
		Failed:       summary.Failed,
		SwapFailures: summary.SwapFailures,
		Duration:     summary.Duration,
		DryRun:       dryRun,
	}
	if err := notifier.NotifyBatchCompleted(ctx, report); err != nil {
		warn(err)
	}
}

func summaryError(summary convert.Summary) error {
	switch {
	case summary.SwapFailures > 0:
		return fmt.Errorf("%w: %d file(s) may be in an intermediate state; run `ac3mux recover`", services.ErrSwap, summary.SwapFailures)
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d file(s) failed", summary.Failed, len(summary.Results))
	}
	return nil
}

func printSummary(cmd *cobra.Command, summary convert.Summary) {
	out := cmd.OutOrStdout()
	if len(summary.Results) == 0 {
		fmt.Fprintln(out, "No media files found")
		return
	}
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		rows = append(rows, []string{
			r.Path,
			string(r.Status),
			string(r.Strategy),
			r.Reason,
			formatDuration(r.Duration),
		})
	}
	fmt.Fprint(out, renderTableWith(
		[]string{"File", "Status", "Strategy", "Reason", "Time"},
		rows,
		tableOptions{
			aligns: []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			wrap:   []int{0, 3},
		},
	))
	fmt.Fprintf(out, "\nRun %s: %d converted, %d skipped, %d failed in %s\n",
		shortID(summary.RunID), summary.Converted, summary.Skipped, summary.Failed, formatDuration(summary.Duration))
}

type resultJSON struct {
	Path     string `json:"path"`
	Status   string `json:"status"`
	Strategy string `json:"strategy,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Kind     string `json:"error_kind,omitempty"`
	Backup   string `json:"backup,omitempty"`
	Millis   int64  `json:"duration_ms"`
}

func summaryJSON(summary convert.Summary) map[string]any {
	results := make([]resultJSON, 0, len(summary.Results))
	for _, r := range summary.Results {
		results = append(results, resultJSON{
			Path:     r.Path,
			Status:   string(r.Status),
			Strategy: string(r.Strategy),
			Reason:   r.Reason,
			Kind:     r.Kind,
			Backup:   r.Backup,
			Millis:   r.Duration.Milliseconds(),
		})
	}
	return map[string]any{
		"run_id":        summary.RunID,
		"converted":     summary.Converted,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
		"swap_failures": summary.SwapFailures,
		"duration_ms":   summary.Duration.Milliseconds(),
		"results":       results,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
