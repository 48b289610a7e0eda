package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ac3mux/internal/config"
	"ac3mux/internal/testsupport"
)

const encoderListing = `Encoders:
 ------
 A....D ac3                  ATSC A/52A (AC-3)
 A....D eac3                 ATSC A/52 E-AC-3
`

const probeOutput = `[STREAM]
index=0
codec_name=hevc
codec_type=video
[/STREAM]
[STREAM]
index=1
codec_name=truehd
codec_type=audio
channels=8
bit_rate=N/A
TAG:language=eng
[/STREAM]
[STREAM]
index=2
codec_name=aac
codec_type=audio
channels=2
bit_rate=192000
TAG:language=spa
[/STREAM]
[FORMAT]
duration=60.000000
[/FORMAT]
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config whose tools are shell stubs: ffprobe
// prints probeOutput and ffmpeg writes a few bytes to its last argument.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{
		"CONVERT_DIRECTORY", "CONVERT_TEMP_DIRECTORY", "CONVERT_MAX_PARALLEL", "CONVERT_LANGUAGES",
		"CONVERT_USE_HW_ACCEL", "CONVERT_HW_ACCEL_TYPE", "TMDB_API_KEY", "TRAILER_MOVIES_DIR", "TRAILER_OUTPUT_DIR", "NTFY_TOPIC",
	} {
		t.Setenv(key, "")
	}

	cfg := testsupport.NewConfig(t, testsupport.WithTempDir())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	listing := filepath.Join(base, "encoders.txt")
	testsupport.WriteText(t, listing, encoderListing)
	probe := filepath.Join(base, "probe.txt")
	testsupport.WriteText(t, probe, probeOutput)

	binDir := filepath.Join(base, "bin")
	cfg.Tools.FFmpeg = testsupport.StubBinary(t, binDir, "ffmpeg", `case "$*" in
  *-encoders*) cat '`+listing+`' ;;
  *-version*) echo "ffmpeg version 7.1-test" ;;
  *)
    for last in "$@"; do :; done
    printf 'converted' > "$last"
    ;;
esac
`)
	cfg.Tools.FFprobe = testsupport.StubBinary(t, binDir, "ffprobe", `case "$*" in
  *-version*) echo "ffprobe version 7.1-test" ;;
  *) cat '`+probe+`' ;;
esac
`)
	cfg.Tools.YTDLP = filepath.Join(binDir, "missing-yt-dlp")
	cfg.TMDB.APIKey = ""
	cfg.TMDB.BaseURL = "http://127.0.0.1:1"
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Fatalf("output missing %q:\n%s", w, output)
		}
	}
}

func (e *cliTestEnv) addMovie(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.cfg.Convert.Directory, name)
	testsupport.WriteFile(t, path, 1024)
	return path
}
