package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/config"
	"ac3mux/internal/convert"
	"ac3mux/internal/services"
	"ac3mux/internal/swap"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover [directory]",
		Short: "Resolve file swaps left behind by an interrupted run",
		Long: `Recover scans the directory (default convert.directory) for swap journals
written by a run that was killed mid-swap. Each journal is rolled back,
completed or cleared depending on which files survive. States that cannot be
resolved safely are reported and left untouched.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
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
				return services.Wrap(services.ErrConfiguration, "recover", "resolve", "no directory given and convert.directory is empty", nil)
			}
			if _, err := statDir(root); err != nil {
				return services.Wrap(services.ErrConfiguration, "recover", "resolve", "directory unavailable", err)
			}

			lock, err := convert.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			recoveries, err := swap.New(logger).Recover(cmd.Context(), recoverRoot(root))
			if err != nil {
				return err
			}

			attention := 0
			for _, r := range recoveries {
				if r.Resolution == swap.ResolutionNeedsAttention {
					attention++
				}
			}

			if ctx.JSONMode() {
				entries := make([]map[string]any, 0, len(recoveries))
				for _, r := range recoveries {
					entries = append(entries, map[string]any{
						"marker":     r.Marker,
						"original":   r.Journal.Original,
						"backup":     r.Journal.Backup,
						"staged":     r.Journal.Staged,
						"run_id":     r.Journal.RunID,
						"resolution": string(r.Resolution),
						"detail":     r.Detail,
					})
				}
				if err := writeJSON(cmd, map[string]any{"root": root, "recoveries": entries}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if len(recoveries) == 0 {
					fmt.Fprintln(out, "No interrupted swaps found")
					return nil
				}
				rows := make([][]string, 0, len(recoveries))
				for _, r := range recoveries {
					rows = append(rows, []string{r.Journal.Original, string(r.Resolution), r.Detail})
				}
				fmt.Fprint(out, renderTableWith(
					[]string{"File", "Resolution", "Detail"},
					rows,
					tableOptions{wrap: []int{0, 2}},
				))
			}

			if attention > 0 {
				return services.Wrap(services.ErrSwap, "recover", "resolve",
					fmt.Sprintf("%d swap(s) need manual attention", attention), nil)
			}
			return nil
		},
	}
}
