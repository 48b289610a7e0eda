package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/convert"
	"ac3mux/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage per-run temp directories",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List run directories under convert.temp_dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			tempDir := strings.TrimSpace(cfg.Convert.TempDir)
			if tempDir == "" {
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{
						"temp_dir":         "",
						"directories":      []any{},
						"total_size_bytes": 0,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Temp directory not configured; staging happens next to each file")
				return nil
			}

			dirs, err := staging.ListDirectories(tempDir, convert.StagingPrefix)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}
			totalSize := staging.TotalSize(dirs)

			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.Dir{}
				}
				return writeJSON(cmd, map[string]any{
					"temp_dir":         tempDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No staging directories found")
				return nil
			}
			fmt.Fprintf(out, "Temp directory: %s\n\n", tempDir)

			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					shortID(strings.TrimPrefix(dir.Name, convert.StagingPrefix)),
					formatAge(dir.ModTime),
					formatBytes(dir.Size),
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Run", "Modified", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "\nTotal: %d directories, %s\n", len(dirs), formatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale run directories",
		Long: `Remove run directories under convert.temp_dir that have not been touched
for a day. A crashed run leaves its partial outputs there.

Use --all to remove every run directory. The batch lock is taken first, so a
running conversion is never cleaned out from under itself.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			tempDir := strings.TrimSpace(cfg.Convert.TempDir)
			if tempDir == "" {
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": 0, "errors": []any{}})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Temp directory not configured")
				return nil
			}

			lock, err := convert.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			maxAge := staging.DefaultMaxAge
			label := "stale"
			if cleanAll {
				maxAge = 0
				label = "staging"
			}
			result := staging.CleanStale(cmd.Context(), tempDir, convert.StagingPrefix, maxAge, logger)
			if ctx.JSONMode() {
				return writeStagingCleanJSON(cmd, result)
			}
			printStagingCleanResult(cmd, result, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every run directory regardless of age")

	return cmd
}

func printStagingCleanResult(cmd *cobra.Command, result staging.Report, label string) {
	out := cmd.OutOrStdout()
	switch {
	case len(result.Removed) == 0 && len(result.Failed) == 0:
		fmt.Fprintf(out, "No %s directories to clean\n", label)
	case len(result.Failed) > 0:
		fmt.Fprintf(out, "Removed %d %s directories, %d errors\n", len(result.Removed), label, len(result.Failed))
		for _, e := range result.Failed {
			fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Err)
		}
	default:
		fmt.Fprintf(out, "Removed %d %s directories\n", len(result.Removed), label)
	}
}

func writeStagingCleanJSON(cmd *cobra.Command, result staging.Report) error {
	errs := make([]string, 0, len(result.Failed))
	for _, e := range result.Failed {
		errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Err))
	}
	return writeJSON(cmd, map[string]any{
		"removed": len(result.Removed),
		"errors":  errs,
	})
}
