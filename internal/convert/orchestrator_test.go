package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ac3mux/internal/language"
	"ac3mux/internal/logging"
	"ac3mux/internal/media"
	"ac3mux/internal/media/audio"
	"ac3mux/internal/plan"
	"ac3mux/internal/services"
	"ac3mux/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func aacStereo() []media.Stream {
	return []media.Stream{
		{Index: 0, Kind: media.KindVideo, Codec: "h264"},
		{Index: 1, Kind: media.KindAudio, Codec: "aac", Language: media.ParseLanguage("eng"), Channels: 2, Bitrate: media.KnownBitrate(128_000)},
	}
}

type fakeProber struct {
	streams map[string][]media.Stream
	err     error
}

func (f fakeProber) Probe(_ context.Context, path string) (media.Probe, error) {
	if f.err != nil {
		return media.Probe{}, f.err
	}
	streams, ok := f.streams[path]
	if !ok {
		streams = aacStereo()
	}
	return media.Probe{Path: path, Streams: streams, Duration: 100 * time.Second}, nil
}

// fakeTranscoder writes content to the output path (the last argument).
type fakeTranscoder struct {
	content string
	err     error
	partial bool
	calls   atomic.Int32
	block   bool
	active  atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
	started chan struct{}
	outputs sync.Map
}

func (f *fakeTranscoder) Transcode(ctx context.Context, args []string, progress func(Progress)) error {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	out := args[len(args)-1]
	f.outputs.Store(out, struct{}{})

	if f.partial || f.block {
		if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
			return err
		}
	}
	if f.block {
		if f.started != nil {
			f.started <- struct{}{}
		}
		<-ctx.Done()
		return &TranscodeError{Err: ctx.Err()}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}
	if progress != nil {
		progress(Progress{OutTime: 50 * time.Second, Speed: "10x"})
		progress(Progress{OutTime: 100 * time.Second, Done: true})
	}
	return os.WriteFile(out, []byte(f.content), 0o644)
}

func newOrchestrator(opts Options, prober Prober, transcoder Transcoder, options ...Option) *Orchestrator {
	if opts.Policy.Allowed.Len() == 0 {
		opts.Policy = audio.Policy{Allowed: language.NewSet([]string{"eng"})}
	}
	return New(opts, logging.NewNop(), prober, transcoder, options...)
}

func TestProcessFileConvertsAndSwaps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Movie.mkv")
	testsupport.WriteText(t, path, "original")

	tr := &fakeTranscoder{content: "converted"}
	res := newOrchestrator(Options{}, fakeProber{}, tr).ProcessFile(context.Background(), path)

	if res.Status != services.StatusConverted {
		t.Fatalf("expected converted, got %s (%v)", res.Status, res.Err)
	}
	if res.Strategy != plan.StrategyConvertSingleToEAC3 {
		t.Fatalf("unexpected strategy %s", res.Strategy)
	}
	if got := testsupport.ReadText(t, path); got != "converted" {
		t.Fatalf("original path holds %q", got)
	}
	backup := filepath.Join(cfg.Convert.Directory, "Movie_old.mkv")
	if res.Backup != backup {
		t.Fatalf("unexpected backup %s", res.Backup)
	}
	if got := testsupport.ReadText(t, backup); got != "original" {
		t.Fatalf("backup holds %q", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Convert.Directory, "Movie_converted.mkv")); !os.IsNotExist(err) {
		t.Fatal("staged file left behind")
	}
}

func TestProcessFileViaTempDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTempDir())
	path := filepath.Join(cfg.Convert.Directory, "Movie.mkv")
	testsupport.WriteText(t, path, "original")

	tr := &fakeTranscoder{content: "converted"}
	opts := Options{TempDir: cfg.Convert.TempDir}
	ctx := services.WithRunID(context.Background(), "run-42")
	res := newOrchestrator(opts, fakeProber{}, tr).ProcessFile(ctx, path)
	if res.Status != services.StatusConverted {
		t.Fatalf("expected converted, got %s (%v)", res.Status, res.Err)
	}

	var wrote string
	tr.outputs.Range(func(k, _ any) bool {
		wrote = k.(string)
		return false
	})
	if !strings.HasPrefix(wrote, RunStagingDir(cfg.Convert.TempDir, "run-42")) {
		t.Fatalf("ffmpeg should write into the run staging dir, wrote %s", wrote)
	}
	if got := testsupport.ReadText(t, path); got != "converted" {
		t.Fatalf("original path holds %q", got)
	}
	entries, err := os.ReadDir(cfg.Convert.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir should be empty after success, has %d entries", len(entries))
	}
}

func TestProcessFileTranscodeFailureLeavesOriginal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Movie.mkv")
	testsupport.WriteText(t, path, "original")

	tr := &fakeTranscoder{partial: true, err: &TranscodeError{ExitCode: 1, Stderr: "Invalid data found"}}
	res := newOrchestrator(Options{}, fakeProber{}, tr).ProcessFile(context.Background(), path)

	if res.Status != services.StatusFailed || res.Kind != "transcode" {
		t.Fatalf("expected failed transcode, got %s/%s", res.Status, res.Kind)
	}
	if !strings.Contains(res.Reason, "Invalid data found") {
		t.Fatalf("reason should carry stderr tail: %q", res.Reason)
	}
	assertOnlyOriginal(t, cfg.Convert.Directory, "Movie.mkv", "original")
}

func TestProcessFileEmptyOutputFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Movie.mkv")
	testsupport.WriteText(t, path, "original")

	res := newOrchestrator(Options{}, fakeProber{}, &fakeTranscoder{content: ""}).ProcessFile(context.Background(), path)
	if !errors.Is(res.Err, services.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", res.Err)
	}
	assertOnlyOriginal(t, cfg.Convert.Directory, "Movie.mkv", "original")
}

func TestProcessFileWithoutAudioIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Silent.mkv")
	testsupport.WriteText(t, path, "original")

	prober := fakeProber{streams: map[string][]media.Stream{path: {{Index: 0, Kind: media.KindVideo, Codec: "h264"}}}}
	tr := &fakeTranscoder{content: "x"}
	res := newOrchestrator(Options{}, prober, tr).ProcessFile(context.Background(), path)

	if res.Status != services.StatusSkipped || !errors.Is(res.Err, services.ErrSelectionImpossible) {
		t.Fatalf("expected selection skip, got %s (%v)", res.Status, res.Err)
	}
	if tr.calls.Load() != 0 {
		t.Fatal("transcoder must not run")
	}
	assertOnlyOriginal(t, cfg.Convert.Directory, "Silent.mkv", "original")
}

func TestProcessFileAlreadyOptimal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Good.mkv")
	testsupport.WriteText(t, path, "original")

	prober := fakeProber{streams: map[string][]media.Stream{path: {
		{Index: 0, Kind: media.KindVideo, Codec: "h264"},
		{Index: 1, Kind: media.KindAudio, Codec: "eac3", Language: media.ParseLanguage("eng"), Channels: 6},
	}}}
	tr := &fakeTranscoder{content: "x"}
	res := newOrchestrator(Options{}, prober, tr).ProcessFile(context.Background(), path)
	if res.Status != services.StatusSkipped || res.Reason != "already optimal" {
		t.Fatalf("expected already optimal skip, got %s %q", res.Status, res.Reason)
	}
	if tr.calls.Load() != 0 {
		t.Fatal("transcoder must not run")
	}
}

func TestProcessFileProbeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Broken.mkv")
	testsupport.WriteText(t, path, "original")

	probeErr := services.Wrap(services.ErrProbe, "probe", "ffprobe", "exit status 1", nil)
	res := newOrchestrator(Options{}, fakeProber{err: probeErr}, &fakeTranscoder{}).ProcessFile(context.Background(), path)
	if res.Status != services.StatusFailed || res.Kind != "probe" {
		t.Fatalf("expected probe failure, got %s/%s", res.Status, res.Kind)
	}
}

func TestProcessFileDryRunWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Movie.mkv")
	testsupport.WriteText(t, path, "original")

	tr := &fakeTranscoder{content: "x"}
	res := newOrchestrator(Options{DryRun: true}, fakeProber{}, tr).ProcessFile(context.Background(), path)
	if res.Status != services.StatusSkipped || !strings.HasPrefix(res.Reason, "dry run") {
		t.Fatalf("expected dry run skip, got %s %q", res.Status, res.Reason)
	}
	if tr.calls.Load() != 0 {
		t.Fatal("dry run must not transcode")
	}
	assertOnlyOriginal(t, cfg.Convert.Directory, "Movie.mkv", "original")
}

func TestRunRespectsParallelLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var files []string
	for i := range 6 {
		path := filepath.Join(cfg.Convert.Directory, fmt.Sprintf("Movie %d.mkv", i))
		testsupport.WriteText(t, path, "original")
		files = append(files, path)
	}

	tr := &fakeTranscoder{content: "converted", delay: 20 * time.Millisecond}
	rec := &fakeRecorder{}
	o := newOrchestrator(Options{MaxParallel: 2}, fakeProber{}, tr, WithRecorder(rec))
	summary := o.Run(context.Background(), cfg.Convert.Directory, files)

	if summary.Converted != 6 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if peak := tr.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent transcodes, saw %d", peak)
	}
	if summary.RunID == "" {
		t.Fatal("run id missing")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.started || !rec.finished || len(rec.results) != 6 {
		t.Fatalf("recorder not fed: started=%v finished=%v results=%d", rec.started, rec.finished, len(rec.results))
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	good := filepath.Join(cfg.Convert.Directory, "Good.mkv")
	silent := filepath.Join(cfg.Convert.Directory, "Silent.mkv")
	testsupport.WriteText(t, good, "original")
	testsupport.WriteText(t, silent, "original")

	prober := fakeProber{streams: map[string][]media.Stream{silent: {{Index: 0, Kind: media.KindVideo, Codec: "h264"}}}}
	summary := newOrchestrator(Options{}, prober, &fakeTranscoder{content: "converted"}).Run(context.Background(), cfg.Convert.Directory, []string{silent, good})
	if summary.Converted != 1 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Results[0].Path != silent || summary.Results[1].Path != good {
		t.Fatal("results should keep input order")
	}
}

func TestRunCancellationRemovesPartials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var files []string
	for i := range 3 {
		path := filepath.Join(cfg.Convert.Directory, fmt.Sprintf("Movie %d.mkv", i))
		testsupport.WriteText(t, path, "original")
		files = append(files, path)
	}

	tr := &fakeTranscoder{block: true, started: make(chan struct{}, 3)}
	o := newOrchestrator(Options{MaxParallel: 1}, fakeProber{}, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Summary, 1)
	go func() { done <- o.Run(ctx, cfg.Convert.Directory, files) }()

	<-tr.started
	cancel()
	summary := <-done

	if summary.Skipped != 3 || summary.Converted != 0 || summary.Failed != 0 {
		t.Fatalf("expected every file skipped, got %+v", summary)
	}
	for _, r := range summary.Results {
		if r.Reason != "cancelled" {
			t.Fatalf("expected cancelled reason, got %q", r.Reason)
		}
	}
	if tr.calls.Load() != 1 {
		t.Fatalf("only the first file should have started, got %d", tr.calls.Load())
	}
	entries, err := os.ReadDir(cfg.Convert.Directory)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected only the three originals, got %d entries", len(entries))
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLanguages("eng", "ger"))
	cfg.Convert.KeepCommentary = true
	opts := OptionsFromConfig(cfg)
	if !opts.Policy.Allowed.Allows("deu") || opts.Policy.Allowed.Allows("fre") {
		t.Fatalf("unexpected allow-list %s", opts.Policy.Allowed)
	}
	if !opts.Policy.KeepCommentary || opts.MaxParallel != cfg.Convert.MaxParallel {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := AcquireLock(cfg.LockPath())
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer first.Release()
	if _, err := AcquireLock(cfg.LockPath()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected second lock to fail, got %v", err)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  bool
	finished bool
	results  []Result
}

func (f *fakeRecorder) StartRun(context.Context, RunInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeRecorder) RecordResult(_ context.Context, _ string, res Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

func (f *fakeRecorder) FinishRun(context.Context, Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	return nil
}

func assertOnlyOriginal(t *testing.T, dir, name, content string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != name {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only %s, found %v", name, names)
	}
	if got := testsupport.ReadText(t, filepath.Join(dir, name)); got != content {
		t.Fatalf("original modified: %q", got)
	}
}

func TestKeepMultipleAcceptableStreamsIsStableAcrossRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Convert.Directory, "Film.mkv")
	testsupport.WriteText(t, path, "original")

	reordered := []media.Stream{
		{Index: 0, Kind: media.KindVideo, Codec: "hevc"},
		{Index: 1, Kind: media.KindAudio, Codec: "ac3", Language: media.ParseLanguage("eng"), Channels: 2},
		{Index: 2, Kind: media.KindAudio, Codec: "eac3", Language: media.ParseLanguage("eng"), Channels: 6},
	}
	prober := fakeProber{streams: map[string][]media.Stream{path: reordered}}
	tr := &fakeTranscoder{content: "remuxed"}
	opts := Options{Policy: audio.Policy{Allowed: language.NewSet([]string{"eng"}), KeepMultiple: true}}
	o := newOrchestrator(opts, prober, tr)

	res := o.ProcessFile(context.Background(), path)
	if res.Status != services.StatusConverted || res.Strategy != plan.StrategyCopy {
		t.Fatalf("first run: expected converted copy, got %s %s (%v)", res.Status, res.Strategy, res.Err)
	}

	// after the remux the best stream comes first
	prober.streams[path] = []media.Stream{
		{Index: 0, Kind: media.KindVideo, Codec: "hevc"},
		{Index: 1, Kind: media.KindAudio, Codec: "eac3", Language: media.ParseLanguage("eng"), Channels: 6},
		{Index: 2, Kind: media.KindAudio, Codec: "ac3", Language: media.ParseLanguage("eng"), Channels: 2},
	}
	for run := 2; run <= 3; run++ {
		res = o.ProcessFile(context.Background(), path)
		if res.Status != services.StatusSkipped || res.Reason != "already optimal" {
			t.Fatalf("run %d: expected already optimal skip, got %s %q (%v)", run, res.Status, res.Reason, res.Err)
		}
	}
	if n := tr.calls.Load(); n != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", n)
	}
	entries, err := os.ReadDir(cfg.Convert.Directory)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 2 || names[0] != "Film.mkv" || names[1] != "Film_old.mkv" {
		t.Fatalf("expected one backup only, got %v", names)
	}
}
