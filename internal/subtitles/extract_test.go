package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ac3mux/internal/logging"
	"ac3mux/internal/media"
	"ac3mux/internal/services"
	"ac3mux/internal/testsupport"
)

func probeWith(streams ...media.Stream) ProbeFunc {
	return func(_ context.Context, path string) (media.Probe, error) {
		return media.Probe{Path: path, Streams: streams}, nil
	}
}

type recordingRunner struct {
	calls  [][]string
	failOn int
}

func (r *recordingRunner) run(_ context.Context, _ string, args ...string) error {
	r.calls = append(r.calls, args)
	if r.failOn > 0 && len(r.calls) == r.failOn {
		return errors.New("exit status 1: invalid data")
	}
	return os.WriteFile(args[len(args)-1], []byte("sub"), 0o644)
}

func TestExtractWritesEveryStream(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "subs")
	runner := &recordingRunner{}
	extractor := NewExtractor("ffmpeg", "ffprobe", logging.NewNop(),
		WithCommandRunner(runner.run),
		WithProbe(probeWith(
			media.Stream{Index: 0, Kind: media.KindVideo, Codec: "h264"},
			media.Stream{Index: 2, Kind: media.KindSubtitle, Codec: "hdmv_pgs_subtitle", Language: media.ParseLanguage("eng")},
			media.Stream{Index: 3, Kind: media.KindSubtitle, Codec: "subrip", Language: media.ParseLanguage("und")},
			media.Stream{Index: 4, Kind: media.KindSubtitle, Codec: "mov_text", Language: media.ParseLanguage("por")},
			media.Stream{Index: 5, Kind: media.KindSubtitle, Codec: "dvd_subtitle", Language: media.ParseLanguage("fre")},
		)),
	)

	tracks, err := extractor.Extract(context.Background(), "/media/movie file.mkv", outDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	var names []string
	for _, track := range tracks {
		names = append(names, filepath.Base(track.Path))
	}
	want := []string{"subtitle_2_eng.sup", "subtitle_3_unknown.srt", "subtitle_4_por.srt", "subtitle_5_fre.mks"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}

	wantArgs := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", "/media/movie file.mkv",
		"-map", "0:2",
		"-c:s", "copy",
		filepath.Join(outDir, "subtitle_2_eng.sup"),
	}
	if diff := cmp.Diff(wantArgs, runner.calls[0]); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if codec := runner.calls[2][slices.Index(runner.calls[2], "-c:s")+1]; codec != "srt" {
		t.Fatalf("mov_text should be written as srt, got %s", codec)
	}
}

func TestExtractSkipsExistingOutputs(t *testing.T) {
	outDir := t.TempDir()
	testsupport.WriteText(t, filepath.Join(outDir, "subtitle_2_eng.srt"), "keep")
	runner := &recordingRunner{}
	extractor := NewExtractor("", "", logging.NewNop(),
		WithCommandRunner(runner.run),
		WithProbe(probeWith(media.Stream{Index: 2, Kind: media.KindSubtitle, Codec: "subrip", Language: media.ParseLanguage("eng")})),
	)
	tracks, err := extractor.Extract(context.Background(), "in.mkv", outDir)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(runner.calls) != 0 || !tracks[0].Existing {
		t.Fatalf("expected existing output to be kept, calls=%d tracks=%+v", len(runner.calls), tracks)
	}
	if got := testsupport.ReadText(t, tracks[0].Path); got != "keep" {
		t.Fatalf("existing subtitle overwritten: %q", got)
	}
}

func TestExtractWithoutSubtitles(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "subs")
	extractor := NewExtractor("ffmpeg", "ffprobe", logging.NewNop(),
		WithProbe(probeWith(media.Stream{Index: 0, Kind: media.KindVideo, Codec: "hevc"})))
	tracks, err := extractor.Extract(context.Background(), "in.mkv", outDir)
	if err != nil || len(tracks) != 0 {
		t.Fatalf("expected no tracks, got %v %v", tracks, err)
	}
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatal("output directory created for a file without subtitles")
	}
}

func TestExtractStopsOnFailure(t *testing.T) {
	runner := &recordingRunner{failOn: 2}
	extractor := NewExtractor("ffmpeg", "ffprobe", logging.NewNop(),
		WithCommandRunner(runner.run),
		WithProbe(probeWith(
			media.Stream{Index: 1, Kind: media.KindSubtitle, Codec: "subrip"},
			media.Stream{Index: 2, Kind: media.KindSubtitle, Codec: "subrip"},
			media.Stream{Index: 3, Kind: media.KindSubtitle, Codec: "subrip"},
		)),
	)
	tracks, err := extractor.Extract(context.Background(), "in.mkv", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stream 2") {
		t.Fatalf("error should name the stream: %v", err)
	}
	if len(tracks) != 1 || len(runner.calls) != 2 {
		t.Fatalf("unexpected progress tracks=%d calls=%d", len(tracks), len(runner.calls))
	}
}

func TestExtractProbeFailure(t *testing.T) {
	extractor := NewExtractor("ffmpeg", "ffprobe", logging.NewNop(),
		WithProbe(func(context.Context, string) (media.Probe, error) { return media.Probe{}, errors.New("moov atom not found") }))
	_, err := extractor.Extract(context.Background(), "in.mp4", t.TempDir())
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected probe error, got %v", err)
	}
	if _, err := extractor.Extract(context.Background(), "", "out"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDefaultCommandRunnerIncludesOutput(t *testing.T) {
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg", "echo 'Invalid data found' >&2\nexit 1\n")
	err := defaultCommandRunner(context.Background(), bin, "-i", "x")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}
