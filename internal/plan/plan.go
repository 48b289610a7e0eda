package plan

import (
	"fmt"
	"strings"

	"ac3mux/internal/media"
	"ac3mux/internal/media/audio"
	"ac3mux/internal/services"
)

// Strategy is the processing route chosen for a file.
type Strategy string

const (
	StrategyCopy                 Strategy = "copy"
	StrategyConvertSingleToEAC3  Strategy = "convert_single_to_eac3"
	StrategyConvertLosslessToAC3 Strategy = "convert_lossless_to_ac3"
	StrategyStrip                Strategy = "strip"
)

// DefaultTargetBitrate is the AC3 bitrate in kbps used for lossless sources.
const DefaultTargetBitrate = 640

const (
	ac3MaxChannels = 6
	// ffmpeg's eac3 encoder accepts layouts up to 5.1 only; wider sources
	// are downmixed.
	eac3MaxChannels = 6
	eac3MaxBitrate  = 768
)

// Options carries the per-file inputs that are not part of the selection.
type Options struct {
	InputPath  string
	OutputPath string
	// TargetBitrate is in kbps; zero means DefaultTargetBitrate.
	TargetBitrate int
	// HWAccel is one of "", auto, nvenc, qsv, amf, vaapi.
	HWAccel string
}

// Action is the codec operation applied to one kept audio stream.
type Action struct {
	Stream media.Stream
	// Codec is "copy", "ac3" or "eac3".
	Codec string
	// Bitrate is in kbps and zero for copies.
	Bitrate int
	// Channels is the forced output channel count, zero to keep the source.
	Channels int
}

// Copy reports whether the stream is passed through untouched.
func (a Action) Copy() bool { return a.Codec == "copy" }

func (a Action) String() string {
	if a.Copy() {
		return fmt.Sprintf("#%d copy", a.Stream.Index)
	}
	out := fmt.Sprintf("#%d %s→%s %dk", a.Stream.Index, a.Stream.Codec, a.Codec, a.Bitrate)
	if a.Channels > 0 {
		out += fmt.Sprintf(" %dch", a.Channels)
	}
	return out
}

// Plan is the resolved processing plan for one file.
type Plan struct {
	Strategy   Strategy
	InputPath  string
	OutputPath string
	Video      []media.Stream
	Audio      []Action
	Subtitles  []media.Stream
	// Dropped counts the audio and subtitle streams removed by the plan.
	Dropped int
	Args    []string
}

// Unchanged reports whether executing the plan would rewrite the file with
// the same streams, codecs and audio order.
func (p Plan) Unchanged() bool {
	if p.Strategy != StrategyCopy || p.Dropped != 0 {
		return false
	}
	for i, a := range p.Audio {
		if !a.Copy() || (i > 0 && a.Stream.Index < p.Audio[i-1].Stream.Index) {
			return false
		}
	}
	return true
}

// Converts reports whether any audio stream is re-encoded.
func (p Plan) Converts() bool {
	for _, a := range p.Audio {
		if !a.Copy() {
			return true
		}
	}
	return false
}

// Describe renders a short human summary of the plan for logs and tables.
func (p Plan) Describe() string {
	parts := make([]string, 0, len(p.Audio)+1)
	for _, a := range p.Audio {
		parts = append(parts, a.String())
	}
	if p.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("%d dropped", p.Dropped))
	}
	if len(parts) == 0 {
		return string(p.Strategy)
	}
	return string(p.Strategy) + ": " + strings.Join(parts, ", ")
}

// Build resolves the strategy and ffmpeg arguments for a probed file.
// Selections without a best stream are accepted only when the file has
// video, producing a Strip of the video and subtitles.
func Build(probe media.Probe, sel audio.Selection, opts Options) (Plan, error) {
	if _, ok := hwaccelDevice(opts.HWAccel); !ok {
		return Plan{}, services.Wrap(services.ErrPlan, "plan", "hwaccel", fmt.Sprintf("unsupported hardware acceleration %q", opts.HWAccel), nil)
	}
	if strings.TrimSpace(opts.InputPath) == "" {
		opts.InputPath = probe.Path
	}
	if strings.TrimSpace(opts.InputPath) == "" || strings.TrimSpace(opts.OutputPath) == "" {
		return Plan{}, services.Wrap(services.ErrPlan, "plan", "paths", "input and output paths are required", nil)
	}
	if opts.TargetBitrate <= 0 {
		opts.TargetBitrate = DefaultTargetBitrate
	}

	video := probe.Video()
	kept := sel.KeptAudio
	if !sel.OK() {
		kept = nil
	}
	if len(video) == 0 && len(kept) == 0 {
		return Plan{}, services.Wrap(services.ErrPlan, "plan", "streams", "no video stream and no audio stream survived selection", nil)
	}

	p := Plan{
		InputPath:  opts.InputPath,
		OutputPath: opts.OutputPath,
		Video:      video,
		Subtitles:  sel.KeptSubtitles,
		Dropped:    len(probe.Audio()) - len(kept) + len(probe.Subtitles()) - len(sel.KeptSubtitles),
	}

	if len(kept) == 0 {
		p.Strategy = StrategyStrip
		p.Args = buildArgs(p, opts)
		return p, nil
	}

	best := kept[0]
	var primary Action
	switch {
	case media.IsAC3Family(best.Codec) && (len(kept) == 1 || p.Dropped == 0):
		p.Strategy = StrategyCopy
		primary = Action{Stream: best, Codec: "copy"}
	case media.IsLossless(best.Codec):
		p.Strategy = StrategyConvertLosslessToAC3
		primary = losslessAction(best, opts.TargetBitrate)
	case !media.IsAC3Family(best.Codec):
		p.Strategy = StrategyConvertSingleToEAC3
		primary = Action{Stream: best, Codec: "eac3", Bitrate: eac3Tier(best.Channels), Channels: eac3Downmix(best.Channels)}
	default:
		p.Strategy = StrategyStrip
		primary = Action{Stream: best, Codec: "copy"}
	}

	p.Audio = append(p.Audio, primary)
	for _, extra := range kept[1:] {
		p.Audio = append(p.Audio, Action{Stream: extra, Codec: "copy"})
	}
	p.Args = buildArgs(p, opts)
	return p, nil
}

// losslessAction targets AC3 at the configured bitrate, falling back to
// E-AC3 5.1 when the source has more channels than AC3 can carry.
func losslessAction(s media.Stream, target int) Action {
	if s.Channels > ac3MaxChannels {
		return Action{Stream: s, Codec: "eac3", Bitrate: eac3MaxBitrate, Channels: eac3MaxChannels}
	}
	return Action{Stream: s, Codec: "ac3", Bitrate: target}
}

// eac3Downmix returns the forced channel count for an E-AC3 encode, zero
// when the source layout fits.
func eac3Downmix(channels int) int {
	if channels > eac3MaxChannels {
		return eac3MaxChannels
	}
	return 0
}

func eac3Tier(channels int) int {
	switch {
	case channels >= 6:
		return eac3MaxBitrate
	case channels >= 3:
		return 640
	default:
		return 448
	}
}
