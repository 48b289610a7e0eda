package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ac3mux/internal/config"
	"ac3mux/internal/convert"
	"ac3mux/internal/media"
	"ac3mux/internal/media/audio"
	"ac3mux/internal/plan"
	"ac3mux/internal/services"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var keepMultiple bool

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Show the stream selection and ffmpeg arguments for one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("languages") {
				cfg.Convert.Languages = languages
			}
			if cmd.Flags().Changed("keep-multiple") {
				cfg.Convert.KeepMultipleAudio = keepMultiple
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			orchestrator := convert.New(convert.OptionsFromConfig(cfg), logger,
				convert.FFprobe(cfg.Tools.FFprobe), convert.FFmpeg{Binary: cfg.Tools.FFmpeg})
			sel, p, err := orchestrator.Plan(cmd.Context(), path)
			if err != nil && !errors.Is(err, services.ErrSelectionImpossible) {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, planJSON(path, sel, p))
			}
			printPlan(cmd, path, sel, p)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&languages, "languages", "l", nil, "Allowed languages (convert.languages)")
	cmd.Flags().BoolVar(&keepMultiple, "keep-multiple", false, "Keep every allowed audio stream")
	return cmd
}

func printPlan(cmd *cobra.Command, path string, sel audio.Selection, p plan.Plan) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n\n", path)

	rows := make([][]string, 0, len(sel.KeptAudio)+len(sel.DroppedAudio)+len(sel.KeptSubtitles)+len(sel.DroppedSubtitles))
	for i, s := range sel.KeptAudio {
		decision := "keep"
		if i == 0 {
			decision = "keep (best)"
		}
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Kind.String(), s.Codec, s.Language.String(), channels(s.Channels), s.Bitrate.String(), decision})
	}
	for _, d := range sel.DroppedAudio {
		s := d.Stream
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Kind.String(), s.Codec, s.Language.String(), channels(s.Channels), s.Bitrate.String(), "drop: " + string(d.Reason)})
	}
	for _, s := range sel.KeptSubtitles {
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Kind.String(), s.Codec, s.Language.String(), "", "", "keep"})
	}
	for _, d := range sel.DroppedSubtitles {
		s := d.Stream
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Kind.String(), s.Codec, s.Language.String(), "", "", "drop: " + string(d.Reason)})
	}
	if len(rows) > 0 {
		fmt.Fprint(out, renderTable(
			[]string{"#", "Type", "Codec", "Lang", "Ch", "Bitrate", "Decision"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
		fmt.Fprintln(out)
	}

	if !sel.OK() {
		fmt.Fprintf(out, "Nothing to do: %s\n", sel.Reason())
		return
	}
	fmt.Fprintf(out, "Strategy: %s\n", p.Describe())
	if p.Unchanged() {
		fmt.Fprintln(out, "File already satisfies the policy; it will be left untouched.")
		return
	}
	fmt.Fprintf(out, "Command:  ffmpeg %s\n", shellJoin(p.Args))
}

func channels(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// shellJoin renders args for display only; quoting follows POSIX sh.
func shellJoin(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\$`!*?[]{}();&|<>#~") {
			parts = append(parts, a)
			continue
		}
		parts = append(parts, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}

type streamJSON struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Codec    string `json:"codec"`
	Language string `json:"language"`
	Channels int    `json:"channels,omitempty"`
	Bitrate  string `json:"bitrate,omitempty"`
	Decision string `json:"decision"`
}

func planJSON(path string, sel audio.Selection, p plan.Plan) map[string]any {
	var streams []streamJSON
	add := func(s media.Stream, decision string) {
		streams = append(streams, streamJSON{
			Index: s.Index, Type: s.Kind.String(), Codec: s.Codec, Language: s.Language.String(),
			Channels: s.Channels, Bitrate: s.Bitrate.String(), Decision: decision,
		})
	}
	for _, s := range sel.KeptAudio {
		add(s, "keep")
	}
	for _, d := range sel.DroppedAudio {
		add(d.Stream, "drop: "+string(d.Reason))
	}
	for _, s := range sel.KeptSubtitles {
		add(s, "keep")
	}
	for _, d := range sel.DroppedSubtitles {
		add(d.Stream, "drop: "+string(d.Reason))
	}
	out := map[string]any{
		"path":    path,
		"outcome": sel.Outcome.String(),
		"reason":  sel.Reason(),
		"streams": streams,
	}
	if sel.OK() {
		out["strategy"] = string(p.Strategy)
		out["unchanged"] = p.Unchanged()
		out["args"] = p.Args
	}
	return out
}
