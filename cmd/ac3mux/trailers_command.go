package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/config"
	"ac3mux/internal/logging"
	"ac3mux/internal/notifications"
	"ac3mux/internal/preflight"
	"ac3mux/internal/services"
	"ac3mux/internal/tmdb"
	"ac3mux/internal/trailers"
)

func newTrailersCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "trailers [movies-directory]",
		Short: "Download YouTube trailers for a movie library",
		Long: `Trailers looks up every movie (trailers.patterns) under the directory on
TMDB and downloads the first YouTube trailer with yt-dlp into the output
directory (trailers.output_dir, default <movies>/Trailers). Titles are read
from a sibling .nfo <originaltitle> when present. Existing trailers are kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateTrailers(); err != nil {
				return services.Wrap(services.ErrConfiguration, "trailers", "config", "trailer downloader not configured", err)
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			moviesDir := cfg.Trailers.Directory
			if len(args) == 1 {
				if moviesDir, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			if strings.TrimSpace(moviesDir) == "" {
				return services.Wrap(services.ErrConfiguration, "trailers", "resolve", "no directory given and trailers.directory is empty", nil)
			}

			opts := trailers.OptionsFromConfig(cfg, moviesDir)
			opts.DryRun = dryRun
			if cmd.Flags().Changed("output") {
				if opts.OutputDir, err = config.ExpandPath(outputDir); err != nil {
					return err
				}
			}
			if !dryRun {
				for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg, true) {
					if status.Name == "yt-dlp" && status.Blocking() {
						return services.Wrap(services.ErrConfiguration, "trailers", "preflight", status.Detail, nil)
					}
				}
			}

			client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "trailers", "tmdb", "create client", err)
			}
			summary, err := trailers.New(opts, client, logger).Run(cmd.Context(), moviesDir)
			if err != nil {
				return err
			}
			if notifier := notifications.NewService(cfg); notifier.Enabled() && !dryRun {
				if err := notifier.NotifyTrailersCompleted(context.WithoutCancel(cmd.Context()), summary.Downloaded, summary.Skipped, summary.Failed); err != nil {
					logger.Warn("notification failed", logging.Error(err), logging.String(logging.FieldEventType, "notification_failed"))
				}
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, trailerSummaryJSON(summary)); err != nil {
					return err
				}
			} else {
				printTrailerSummary(cmd, summary)
			}
			if !summary.OK() {
				return fmt.Errorf("%d trailer download(s) failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Resolve trailers without downloading")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Trailer output directory (trailers.output_dir)")
	return cmd
}

func printTrailerSummary(cmd *cobra.Command, summary trailers.Summary) {
	out := cmd.OutOrStdout()
	if len(summary.Results) == 0 {
		fmt.Fprintln(out, "No movies found")
		return
	}
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		detail := r.URL
		if r.Err != nil {
			detail = r.Err.Error()
		}
		rows = append(rows, []string{filepath.Base(r.Movie), r.Title, string(r.Status), detail})
	}
	fmt.Fprint(out, renderTableWith(
		[]string{"Movie", "Title", "Status", "Detail"},
		rows,
		tableOptions{wrap: []int{0, 3}},
	))
	fmt.Fprintf(out, "\n%d downloaded, %d skipped, %d failed\n", summary.Downloaded, summary.Skipped, summary.Failed)
}

func trailerSummaryJSON(summary trailers.Summary) map[string]any {
	results := make([]map[string]any, 0, len(summary.Results))
	for _, r := range summary.Results {
		entry := map[string]any{
			"movie":        r.Movie,
			"title":        r.Title,
			"title_source": r.TitleSource,
			"status":       string(r.Status),
			"url":          r.URL,
			"output":       r.Output,
		}
		if r.Err != nil {
			entry["error"] = r.Err.Error()
		}
		results = append(results, entry)
	}
	return map[string]any{
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
		"results":    results,
	}
}
