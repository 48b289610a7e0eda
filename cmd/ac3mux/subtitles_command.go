package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ac3mux/internal/config"
	"ac3mux/internal/subtitles"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	subtitlesCmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Subtitle utilities",
	}
	subtitlesCmd.AddCommand(newSubtitlesExtractCommand(ctx))
	return subtitlesCmd
}

func newSubtitlesExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file> <output-directory>",
		Short: "Write every embedded subtitle stream to its own file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			outDir, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}

			extractor := subtitles.NewExtractor(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, logger)
			tracks, err := extractor.Extract(cmd.Context(), input, outDir)
			if ctx.JSONMode() {
				if jsonErr := writeJSON(cmd, map[string]any{"tracks": tracks}); jsonErr != nil {
					return jsonErr
				}
				return err
			}

			out := cmd.OutOrStdout()
			if len(tracks) == 0 && err == nil {
				fmt.Fprintln(out, "No subtitles found in the file")
				return nil
			}
			rows := make([][]string, 0, len(tracks))
			for _, t := range tracks {
				rows = append(rows, []string{fmt.Sprint(t.Index), t.Language, t.Codec, t.Path, yesNo(t.Existing)})
			}
			if len(rows) > 0 {
				fmt.Fprint(out, renderTableWith(
					[]string{"#", "Lang", "Codec", "File", "Existing"},
					rows,
					tableOptions{aligns: []columnAlignment{alignRight}, wrap: []int{3}},
				))
			}
			return err
		},
	}
}
