package main

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ac3mux/internal/preflight"
)

func TestCheckPrinterAlignsNames(t *testing.T) {
	var buf bytes.Buffer
	p := checkPrinter{out: &buf}
	p.section("Tools", []preflight.Result{
		{Name: "FFmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"},
		{Name: "yt-dlp", Optional: true, Detail: "not found"},
		{Name: "AC3 encoders", Detail: "missing eac3"},
	})
	p.section("Empty", nil)

	want := "Tools\n" +
		"  ok    FFmpeg        /usr/bin/ffmpeg\n" +
		"  warn  yt-dlp        not found\n" +
		"  FAIL  AC3 encoders  missing eac3\n" +
		"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}
