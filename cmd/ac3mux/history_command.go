package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"ac3mux/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					out := make([]map[string]any, 0, len(runs))
					for _, r := range runs {
						out = append(out, runJSON(r))
					}
					return writeJSON(cmd, map[string]any{"runs": out})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						shortID(r.ID),
						formatTimestamp(r.StartedAt),
						runState(r),
						strconv.Itoa(r.Files),
						strconv.Itoa(r.Converted),
						strconv.Itoa(r.Skipped),
						strconv.Itoa(r.Failed),
						r.Root,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTableWith(
					[]string{"Run", "Started", "State", "Files", "Converted", "Skipped", "Failed", "Root"},
					rows,
					tableOptions{
						aligns: []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
						wrap:   []int{7},
					},
				))
				return nil
			})
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryFileCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show per-file results of one run (id or unique prefix)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries, err := store.Results(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					payload := runJSON(run)
					payload["results"] = entriesJSON(entries)
					return writeJSON(cmd, payload)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:     %s\n", run.ID)
				fmt.Fprintf(out, "Root:    %s\n", run.Root)
				fmt.Fprintf(out, "Started: %s (%s)\n", formatTimestamp(run.StartedAt), formatAge(run.StartedAt))
				fmt.Fprintf(out, "State:   %s\n", runState(run))
				fmt.Fprintf(out, "Dry run: %s\n\n", yesNo(run.DryRun))
				if len(entries) == 0 {
					fmt.Fprintln(out, "No file results recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{e.Path, string(e.Status), e.Strategy, e.Reason, formatDuration(e.Duration)})
				}
				fmt.Fprint(out, renderTableWith(
					[]string{"File", "Status", "Strategy", "Reason", "Time"},
					rows,
					tableOptions{
						aligns: []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
						wrap:   []int{0, 3},
					},
				))
				return nil
			})
		},
	}
}

func newHistoryFileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Show every recorded result for one media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return withHistory(cmd, ctx, func(store *history.Store) error {
				entries, err := store.FileResults(cmd.Context(), path)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"path": path, "results": entriesJSON(entries)})
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintf(out, "No results recorded for %s\n", path)
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{shortID(e.RunID), formatTimestamp(e.RecordedAt), string(e.Status), e.Strategy, e.Reason})
				}
				fmt.Fprintln(out, path)
				fmt.Fprint(out, renderTableWith(
					[]string{"Run", "Recorded", "Status", "Strategy", "Reason"},
					rows,
					tableOptions{wrap: []int{4}},
				))
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs beyond the newest --keep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, ctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed, "kept": keep})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s), kept the newest %d\n", removed, keep)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "Number of most recent runs to keep")
	return cmd
}

func entriesJSON(entries []history.Entry) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"run_id":      e.RunID,
			"path":        e.Path,
			"status":      string(e.Status),
			"strategy":    e.Strategy,
			"reason":      e.Reason,
			"error_kind":  e.Kind,
			"backup":      e.Backup,
			"duration_ms": e.Duration.Milliseconds(),
			"recorded_at": e.RecordedAt,
		})
	}
	return out
}

func withHistory(cmd *cobra.Command, ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cmd.Context(), cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func runState(r history.Run) string {
	switch {
	case r.FinishedAt == nil:
		return "incomplete"
	case r.DryRun:
		return "dry run"
	case r.Failed > 0:
		return "failed"
	default:
		return "ok"
	}
}

func runJSON(r history.Run) map[string]any {
	out := map[string]any{
		"id":         r.ID,
		"root":       r.Root,
		"files":      r.Files,
		"dry_run":    r.DryRun,
		"started_at": r.StartedAt,
		"converted":  r.Converted,
		"skipped":    r.Skipped,
		"failed":     r.Failed,
		"state":      runState(r),
	}
	if r.FinishedAt != nil {
		out["finished_at"] = *r.FinishedAt
	}
	return out
}
