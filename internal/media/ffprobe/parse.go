package ffprobe

import (
	"bufio"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"ac3mux/internal/media"
)

const (
	sectionStream = "STREAM"
	sectionFormat = "FORMAT"
)

type section struct {
	name   string
	line   int
	fields map[string]string
}

// Parse reads ffprobe "default" writer output: one [SECTION] ... [/SECTION]
// block per stream, key=value lines inside. Streams are returned sorted by
// index. Unknown sections are skipped as long as they are balanced.
func Parse(r io.Reader) (media.Probe, error) {
	var (
		probe   media.Probe
		stack   []*section
		seen    = map[int]struct{}{}
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if name, closing, ok := sectionMarker(line); ok {
			if !closing {
				if (name == sectionStream || name == sectionFormat) && len(stack) > 0 {
					return media.Probe{}, &ProbeError{Line: lineNum, Reason: "section [" + name + "] opened inside [" + stack[len(stack)-1].name + "]"}
				}
				stack = append(stack, &section{name: name, line: lineNum, fields: map[string]string{}})
				continue
			}
			if len(stack) == 0 || stack[len(stack)-1].name != name {
				return media.Probe{}, &ProbeError{Line: lineNum, Reason: "unexpected [/" + name + "]"}
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch name {
			case sectionStream:
				stream, err := buildStream(top)
				if err != nil {
					return media.Probe{}, err
				}
				if _, dup := seen[stream.Index]; dup {
					return media.Probe{}, &ProbeError{Line: top.line, Reason: "duplicate stream index " + strconv.Itoa(stream.Index)}
				}
				seen[stream.Index] = struct{}{}
				probe.Streams = append(probe.Streams, stream)
			case sectionFormat:
				probe.Duration = parseDuration(top.fields["duration"])
			}
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) == "" {
			return media.Probe{}, &ProbeError{Line: lineNum, Reason: "malformed line " + strconv.Quote(line)}
		}
		if len(stack) == 0 {
			return media.Probe{}, &ProbeError{Line: lineNum, Reason: "field " + strconv.Quote(key) + " outside of a section"}
		}
		top := stack[len(stack)-1]
		if top.name != sectionStream && top.name != sectionFormat {
			continue
		}
		key = normalizeKey(key)
		if _, dup := top.fields[key]; dup {
			return media.Probe{}, &ProbeError{Line: lineNum, Reason: "duplicate field " + strconv.Quote(key)}
		}
		top.fields[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return media.Probe{}, &ProbeError{Line: lineNum, Reason: "read output", Err: err}
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return media.Probe{}, &ProbeError{Line: open.line, Reason: "unterminated section [" + open.name + "]"}
	}

	slices.SortFunc(probe.Streams, func(a, b media.Stream) int { return a.Index - b.Index })
	return probe, nil
}

func sectionMarker(line string) (name string, closing bool, ok bool) {
	line = strings.TrimSpace(line)
	if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false, false
	}
	inner := line[1 : len(line)-1]
	if strings.HasPrefix(inner, "/") {
		closing = true
		inner = inner[1:]
	}
	if inner == "" || strings.ContainsAny(inner, "=[] ") {
		return "", false, false
	}
	return strings.ToUpper(inner), closing, true
}

// normalizeKey lowercases tag keys so TAG:LANGUAGE and TAG:language collide.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(strings.ToUpper(key), "TAG:") {
		return "tag:" + strings.ToLower(key[4:])
	}
	return strings.ToLower(key)
}

func buildStream(sec *section) (media.Stream, error) {
	fail := func(reason string) error {
		return &ProbeError{Line: sec.line, Reason: reason}
	}

	rawIndex, ok := sec.fields["index"]
	if !ok || rawIndex == "" {
		return media.Stream{}, fail("stream without index")
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		return media.Stream{}, fail("invalid stream index " + strconv.Quote(rawIndex))
	}
	codecType, ok := sec.fields["codec_type"]
	if !ok || codecType == "" || isNA(codecType) {
		return media.Stream{}, fail("stream " + rawIndex + " without codec_type")
	}

	stream := media.Stream{
		Index:    index,
		Kind:     media.ParseKind(codecType),
		Codec:    strings.ToLower(naToEmpty(sec.fields["codec_name"])),
		Language: media.ParseLanguage(sec.fields["tag:language"]),
		Title:    naToEmpty(sec.fields["tag:title"]),
	}

	if raw := naToEmpty(sec.fields["channels"]); raw != "" {
		channels, err := strconv.Atoi(raw)
		if err != nil || channels < 0 {
			return media.Stream{}, fail("stream " + rawIndex + ": invalid channels " + strconv.Quote(raw))
		}
		stream.Channels = channels
	}

	if raw := naToEmpty(sec.fields["bit_rate"]); raw != "" {
		bps, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || bps < 0 {
			return media.Stream{}, fail("stream " + rawIndex + ": invalid bit_rate " + strconv.Quote(raw))
		}
		if bps > 0 {
			stream.Bitrate = media.KnownBitrate(bps)
		}
	}
	return stream, nil
}

func parseDuration(raw string) time.Duration {
	raw = naToEmpty(raw)
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		return 0
	}
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

func isNA(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "N/A")
}

func naToEmpty(value string) string {
	value = strings.TrimSpace(value)
	if isNA(value) {
		return ""
	}
	return value
}
