package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"ac3mux/internal/preflight"
)

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

var statusLabels = map[statusKind]struct{ text, color string }{
	statusOK:    {"ok", ansiGreen},
	statusWarn:  {"warn", ansiYellow},
	statusError: {"FAIL", ansiRed},
}

func resultKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// checkPrinter renders preflight results as aligned sections:
//
//	Tools
//	  ok    FFmpeg        /usr/bin/ffmpeg (ffmpeg version 7.1)
//	  warn  yt-dlp        not found in PATH
type checkPrinter struct {
	out      io.Writer
	colorize bool
}

func newCheckPrinter(out io.Writer) checkPrinter {
	return checkPrinter{out: out, colorize: shouldColorize(out)}
}

func (p checkPrinter) section(title string, results []preflight.Result) {
	if len(results) == 0 {
		return
	}
	heading := strings.TrimSpace(title)
	if p.colorize {
		heading = ansiBold + heading + ansiReset
	}
	fmt.Fprintln(p.out, heading)

	width := 0
	for _, r := range results {
		width = max(width, len(r.Name))
	}
	for _, r := range results {
		label := statusLabels[resultKind(r)]
		status := fmt.Sprintf("%-5s", label.text)
		if p.colorize {
			status = label.color + status + ansiReset
		}
		line := fmt.Sprintf("  %s %-*s  %s", status, width, r.Name, r.Detail)
		fmt.Fprintln(p.out, strings.TrimRight(line, " "))
	}
	fmt.Fprintln(p.out)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
