package plan

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ac3mux/internal/language"
	"ac3mux/internal/media"
	"ac3mux/internal/media/audio"
	"ac3mux/internal/services"
)

func stream(index int, kind media.Kind, codec, lang string, channels int, bitrate int64) media.Stream {
	s := media.Stream{Index: index, Kind: kind, Codec: codec, Language: media.ParseLanguage(lang), Channels: channels}
	if bitrate > 0 {
		s.Bitrate = media.KnownBitrate(bitrate)
	}
	return s
}

func build(t *testing.T, streams []media.Stream, policy audio.Policy, opts Options) Plan {
	t.Helper()
	probe := media.Probe{Path: "/movies/Film.mkv", Streams: streams}
	if opts.OutputPath == "" {
		opts.OutputPath = "/movies/Film_converted.mkv"
	}
	p, err := Build(probe, audio.Select(streams, policy), opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func englishOnly() audio.Policy {
	return audio.Policy{Allowed: language.NewSet([]string{"eng"})}
}

func TestBuildScenarioAACStereoConvertsToEAC3(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "aac", "eng", 2, 128_000),
	}
	p := build(t, streams, englishOnly(), Options{})
	if p.Strategy != StrategyConvertSingleToEAC3 {
		t.Fatalf("expected convert single to eac3, got %s", p.Strategy)
	}
	want := []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-i", "/movies/Film.mkv",
		"-map", "0:0", "-map", "0:1",
		"-c:v", "copy",
		"-c:a:0", "eac3", "-b:a:0", "448k",
		"-disposition:a:0", "default",
		"-map_metadata", "0", "-map_chapters", "0",
		"-progress", "pipe:1", "-nostats", "/movies/Film_converted.mkv",
	}
	if diff := cmp.Diff(want, p.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildScenarioLanguageDropIsCopy(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "hevc", "", 0, 0),
		stream(1, media.KindAudio, "ac3", "eng", 6, 640_000),
		stream(2, media.KindAudio, "aac", "spa", 2, 128_000),
	}
	p := build(t, streams, englishOnly(), Options{})
	if p.Strategy != StrategyCopy {
		t.Fatalf("expected copy, got %s", p.Strategy)
	}
	if p.Unchanged() {
		t.Fatal("plan dropping a stream must not be unchanged")
	}
	if slices.Contains(p.Args, "0:2") {
		t.Fatalf("dropped stream mapped: %v", p.Args)
	}
	if !slices.Contains(p.Args, "0:1") {
		t.Fatalf("kept stream not mapped: %v", p.Args)
	}
	if p.Converts() {
		t.Fatal("copy plan must not convert")
	}
}

func TestBuildScenarioTrueHDSevenOneTargetsEAC3(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "hevc", "", 0, 0),
		stream(1, media.KindAudio, "truehd", "eng", 8, 0),
	}
	p := build(t, streams, englishOnly(), Options{})
	if p.Strategy != StrategyConvertLosslessToAC3 {
		t.Fatalf("expected lossless conversion, got %s", p.Strategy)
	}
	action := p.Audio[0]
	if action.Codec != "eac3" || action.Bitrate != 768 || action.Channels != 6 {
		t.Fatalf("unexpected action %+v", action)
	}
	joined := slices.Index(p.Args, "-ac:a:0")
	if joined < 0 || p.Args[joined+1] != "6" {
		t.Fatalf("expected -ac:a:0 6 in %v", p.Args)
	}
}

func TestBuildLosslessSixChannelsUsesTargetBitrate(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "dts", "eng", 6, 1_509_000),
	}
	p := build(t, streams, englishOnly(), Options{TargetBitrate: 448})
	if got := p.Audio[0]; got.Codec != "ac3" || got.Bitrate != 448 || got.Channels != 0 {
		t.Fatalf("unexpected action %+v", got)
	}
}

func TestBuildSingleLosslessNeverCopies(t *testing.T) {
	for _, codec := range []string{"truehd", "dts", "flac", "pcm_s24le", "mlp"} {
		for _, channels := range []int{2, 6, 8} {
			streams := []media.Stream{
				stream(0, media.KindVideo, "h264", "", 0, 0),
				stream(1, media.KindAudio, codec, "eng", channels, 0),
			}
			p := build(t, streams, englishOnly(), Options{})
			if p.Strategy != StrategyConvertLosslessToAC3 {
				t.Fatalf("%s %dch: expected lossless conversion, got %s", codec, channels, p.Strategy)
			}
			if channels > 6 && p.Audio[0].Codec != "eac3" {
				t.Fatalf("%s %dch: expected eac3 above six channels", codec, channels)
			}
		}
	}
}

func TestBuildAllAcceptableAllowedYieldsCopy(t *testing.T) {
	cases := [][]media.Stream{
		{stream(1, media.KindAudio, "ac3", "eng", 6, 640_000)},
		{stream(1, media.KindAudio, "eac3", "eng", 6, 0), stream(2, media.KindAudio, "ac3", "und", 2, 192_000)},
		{stream(1, media.KindAudio, "ac3", "", 2, 0), stream(2, media.KindAudio, "ac3", "eng", 2, 0), stream(3, media.KindAudio, "eac3", "eng", 8, 0)},
	}
	keepAll := englishOnly()
	keepAll.KeepMultiple = true
	for i, audioStreams := range cases {
		streams := append([]media.Stream{stream(0, media.KindVideo, "h264", "", 0, 0)}, audioStreams...)
		for _, policy := range []audio.Policy{englishOnly(), keepAll} {
			if p := build(t, streams, policy, Options{}); p.Strategy != StrategyCopy {
				t.Fatalf("case %d (keep multiple %v): expected copy, got %s", i, policy.KeepMultiple, p.Strategy)
			}
		}
	}
}

func TestBuildKeepMultipleInSourceOrderIsUnchanged(t *testing.T) {
	policy := englishOnly()
	policy.KeepMultiple = true

	ordered := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "eac3", "eng", 6, 768_000),
		stream(2, media.KindAudio, "ac3", "eng", 2, 192_000),
	}
	p := build(t, ordered, policy, Options{})
	if p.Strategy != StrategyCopy || len(p.Audio) != 2 || !p.Unchanged() {
		t.Fatalf("expected unchanged copy of both streams, got %s %+v", p.Strategy, p.Audio)
	}

	// best stream second: the remux moves it first, so the file changes
	reordered := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "ac3", "eng", 2, 192_000),
		stream(2, media.KindAudio, "eac3", "eng", 6, 768_000),
	}
	p = build(t, reordered, policy, Options{})
	if p.Strategy != StrategyCopy || p.Unchanged() {
		t.Fatalf("reordering plan must be a changing copy, got %s unchanged=%v", p.Strategy, p.Unchanged())
	}
}

func TestBuildKeepMultipleStripsAndCopiesExtras(t *testing.T) {
	commentary := stream(3, media.KindAudio, "ac3", "eng", 2, 192_000)
	commentary.Title = "Commentary"
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "eac3", "eng", 6, 768_000),
		stream(2, media.KindAudio, "ac3", "eng", 2, 192_000),
		commentary,
		stream(4, media.KindSubtitle, "subrip", "eng", 0, 0),
		stream(5, media.KindSubtitle, "subrip", "ger", 0, 0),
	}
	policy := englishOnly()
	policy.KeepMultiple = true
	policy.KeepCommentary = true
	p := build(t, streams, policy, Options{HWAccel: "qsv"})
	if p.Strategy != StrategyStrip {
		t.Fatalf("expected strip, got %s", p.Strategy)
	}
	want := []string{
		"-hide_banner", "-nostdin", "-y", "-loglevel", "error",
		"-hwaccel", "qsv",
		"-i", "/movies/Film.mkv",
		"-map", "0:0", "-map", "0:1", "-map", "0:2", "-map", "0:3", "-map", "0:4",
		"-c:v", "copy",
		"-c:a:0", "copy", "-c:a:1", "copy", "-c:a:2", "copy",
		"-c:s", "copy",
		"-disposition:a:0", "default", "-disposition:a:1", "0", "-disposition:a:2", "0",
		"-map_metadata", "0", "-map_chapters", "0",
		"-progress", "pipe:1", "-nostats", "/movies/Film_converted.mkv",
	}
	if diff := cmp.Diff(want, p.Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if p.Dropped != 1 {
		t.Fatalf("expected one dropped subtitle, got %d", p.Dropped)
	}
}

func TestBuildConvertsBestAndCopiesExtras(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "dts", "eng", 6, 1_509_000),
		stream(2, media.KindAudio, "ac3", "eng", 2, 192_000),
	}
	policy := englishOnly()
	policy.KeepMultiple = true
	p := build(t, streams, policy, Options{})
	if p.Strategy != StrategyConvertLosslessToAC3 {
		t.Fatalf("expected lossless conversion, got %s", p.Strategy)
	}
	if len(p.Audio) != 2 || !p.Audio[1].Copy() {
		t.Fatalf("expected extra stream copied, got %+v", p.Audio)
	}
}

func TestBuildEAC3Tiers(t *testing.T) {
	cases := map[int]struct{ bitrate, channels int }{
		1: {448, 0}, 2: {448, 0}, 3: {640, 0}, 6: {768, 0}, 7: {768, 6}, 8: {768, 6},
	}
	for channels, want := range cases {
		streams := []media.Stream{stream(1, media.KindAudio, "aac", "eng", channels, 0)}
		p := build(t, streams, englishOnly(), Options{})
		got := p.Audio[0]
		if got.Bitrate != want.bitrate || got.Channels != want.channels {
			t.Fatalf("%dch: expected %dk/%dch, got %dk/%dch", channels, want.bitrate, want.channels, got.Bitrate, got.Channels)
		}
	}
}

func TestBuildNoAudioWithVideoStrips(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindSubtitle, "subrip", "eng", 0, 0),
	}
	p := build(t, streams, englishOnly(), Options{})
	if p.Strategy != StrategyStrip || len(p.Audio) != 0 {
		t.Fatalf("expected audio-less strip, got %+v", p)
	}
	if slices.Contains(p.Args, "-disposition:a:0") {
		t.Fatalf("unexpected audio disposition in %v", p.Args)
	}
}

func TestBuildFailsWithoutVideoOrAudio(t *testing.T) {
	streams := []media.Stream{stream(0, media.KindAudio, "aac", "jpn", 2, 0)}
	probe := media.Probe{Path: "/movies/a.mka", Streams: streams}
	_, err := Build(probe, audio.Select(streams, englishOnly()), Options{OutputPath: "/movies/a_converted.mka"})
	if !errors.Is(err, services.ErrPlan) {
		t.Fatalf("expected plan error, got %v", err)
	}
}

func TestBuildRejectsUnknownHWAccel(t *testing.T) {
	streams := []media.Stream{stream(1, media.KindAudio, "aac", "eng", 2, 0)}
	probe := media.Probe{Path: "/movies/a.mkv", Streams: streams}
	_, err := Build(probe, audio.Select(streams, englishOnly()), Options{OutputPath: "/x.mkv", HWAccel: "cuda-magic"})
	if !errors.Is(err, services.ErrPlan) {
		t.Fatalf("expected plan error, got %v", err)
	}
}

func TestBuildMP4KeepsMetadataTags(t *testing.T) {
	streams := []media.Stream{
		stream(0, media.KindVideo, "h264", "", 0, 0),
		stream(1, media.KindAudio, "aac", "eng", 2, 0),
	}
	p := build(t, streams, englishOnly(), Options{OutputPath: "/movies/Film_converted.mp4"})
	i := slices.Index(p.Args, "-movflags")
	if i < 0 || p.Args[i+1] != "use_metadata_tags" {
		t.Fatalf("expected movflags for mp4 output: %v", p.Args)
	}
}

func TestBuildPathWithSpacesStaysOneArgument(t *testing.T) {
	streams := []media.Stream{stream(1, media.KindAudio, "ac3", "eng", 2, 0)}
	probe := media.Probe{Path: "/movies/My Film (2020)/it's; rm -rf.mkv", Streams: streams}
	p, err := Build(probe, audio.Select(streams, englishOnly()), Options{OutputPath: "/tmp/out file.mkv"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !slices.Contains(p.Args, probe.Path) || p.Args[len(p.Args)-1] != "/tmp/out file.mkv" {
		t.Fatalf("paths must be passed verbatim: %v", p.Args)
	}
	if !p.Unchanged() {
		t.Fatal("single allowed ac3 stream should be unchanged")
	}
}

func TestBuildAnchorsRelativeOutputPath(t *testing.T) {
	streams := []media.Stream{stream(1, media.KindAudio, "aac", "eng", 2, 0)}
	for path, want := range map[string]string{
		"-film_converted.mkv":   "./-film_converted.mkv",
		"out/a:b_converted.mkv": "./out/a:b_converted.mkv",
		"./x_converted.mkv":     "./x_converted.mkv",
		"/abs/x_converted.mkv":  "/abs/x_converted.mkv",
	} {
		p := build(t, streams, englishOnly(), Options{OutputPath: path})
		if got := p.Args[len(p.Args)-1]; got != want {
			t.Fatalf("output %q: got argument %q, want %q", path, got, want)
		}
		if p.OutputPath != path {
			t.Fatalf("plan output path rewritten to %q", p.OutputPath)
		}
	}
}

func TestHWAccelMapping(t *testing.T) {
	cases := map[string]string{"": "", "auto": "cuda", "NVENC": "cuda", "qsv": "qsv", "amf": "d3d11va", "vaapi": "vaapi"}
	for in, want := range cases {
		got, ok := hwaccelDevice(in)
		if !ok || got != want {
			t.Fatalf("hwaccelDevice(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
}
