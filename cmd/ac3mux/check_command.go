package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var trailersFlag bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, encoders and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c := cmd.Context()

			sections := []struct {
				title   string
				results []preflight.Result
			}{
				{title: "Tools"},
				{title: "Directories"},
				{title: "Services"},
			}
			for _, status := range preflight.CheckSystemDeps(c, cfg, trailersFlag) {
				sections[0].results = append(sections[0].results, preflight.FromDependency(status))
			}
			sections[0].results = append(sections[0].results, preflight.CheckEncoders(c, cfg.Tools.FFmpeg))
			if cfg.Convert.Directory != "" {
				sections[1].results = append(sections[1].results, preflight.CheckDirectoryAccess("Library directory", cfg.Convert.Directory))
			}
			if cfg.Convert.TempDir != "" {
				sections[1].results = append(sections[1].results, preflight.CheckDirectoryAccess("Temp directory", cfg.Convert.TempDir))
			}
			sections[1].results = append(sections[1].results, preflight.CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
			if cfg.Trailers.Directory != "" {
				r := preflight.CheckDirectoryAccess("Trailer movies directory", cfg.Trailers.Directory)
				r.Optional = !trailersFlag
				sections[1].results = append(sections[1].results, r)
			}
			tmdbResult := preflight.CheckTMDB(c, cfg.TMDB)
			tmdbResult.Optional = !trailersFlag
			sections[2].results = append(sections[2].results, tmdbResult)

			var all []preflight.Result
			for _, s := range sections {
				all = append(all, s.results...)
			}

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{"config": ctx.configPath, "checks": all}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Config: %s\n\n", ctx.configPath)
				printer := newCheckPrinter(out)
				for _, s := range sections {
					printer.section(s.title, s.results)
				}
			}

			if failed := preflight.Failed(all); len(failed) > 0 {
				names := make([]string, 0, len(failed))
				for _, r := range failed {
					names = append(names, r.Name)
				}
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trailersFlag, "trailers", false, "Treat trailer dependencies (yt-dlp, TMDB) as required")
	return cmd
}
