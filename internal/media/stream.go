package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ac3mux/internal/language"
)

// Kind classifies an elementary stream.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindAudio
	KindSubtitle
)

// ParseKind maps an ffprobe codec_type value to a Kind. Attachments and data
// streams are KindOther.
func ParseKind(codecType string) Kind {
	switch strings.ToLower(strings.TrimSpace(codecType)) {
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	case "subtitle":
		return KindSubtitle
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "other"
	}
}

// Language is a stream language tag that may be unknown. The zero value is
// unknown.
type Language struct {
	tag string
}

// ParseLanguage interprets a raw tag value. Empty, "und", "unknown" and "N/A"
// produce an unknown Language.
func ParseLanguage(raw string) Language {
	if language.IsUndetermined(raw) {
		return Language{}
	}
	return Language{tag: strings.ToLower(strings.TrimSpace(raw))}
}

// Tag returns the raw tag and whether the language is known.
func (l Language) Tag() (string, bool) {
	return l.tag, l.tag != ""
}

// Known reports whether the stream declared a usable language.
func (l Language) Known() bool { return l.tag != "" }

// String renders the tag, or "und" when unknown.
func (l Language) String() string {
	if l.tag == "" {
		return "und"
	}
	return l.tag
}

// Bitrate is a stream bitrate in bits per second that may be unknown. The
// zero value is unknown; a known bitrate of zero is never produced by the
// probe adapter.
type Bitrate struct {
	bps   int64
	known bool
}

// KnownBitrate returns a known bitrate.
func KnownBitrate(bps int64) Bitrate {
	return Bitrate{bps: bps, known: true}
}

// Value returns the bitrate and whether it is known.
func (b Bitrate) Value() (int64, bool) {
	return b.bps, b.known
}

// Known reports whether the bitrate was reported.
func (b Bitrate) Known() bool { return b.known }

// Compare orders bitrates ascending with unknown below every known value.
// It returns -1, 0 or +1.
func (b Bitrate) Compare(other Bitrate) int {
	switch {
	case !b.known && !other.known:
		return 0
	case !b.known:
		return -1
	case !other.known:
		return 1
	case b.bps < other.bps:
		return -1
	case b.bps > other.bps:
		return 1
	default:
		return 0
	}
}

func (b Bitrate) String() string {
	if !b.known {
		return "unknown"
	}
	return strconv.FormatInt(b.bps/1000, 10) + "k"
}

// Stream is one elementary stream of a container. Index is container-global
// and unique within a file.
type Stream struct {
	Index    int
	Kind     Kind
	Codec    string
	Language Language
	// Channels is zero when not reported (and for non-audio streams).
	Channels int
	Bitrate  Bitrate
	Title    string
}

// Summary renders a compact description for logs and tables.
func (s Stream) Summary() string {
	parts := []string{fmt.Sprintf("#%d", s.Index), s.Kind.String(), s.Codec, s.Language.String()}
	if s.Kind == KindAudio {
		if s.Channels > 0 {
			parts = append(parts, fmt.Sprintf("%dch", s.Channels))
		}
		parts = append(parts, s.Bitrate.String())
	}
	if s.Title != "" {
		parts = append(parts, strconv.Quote(s.Title))
	}
	return strings.Join(parts, " ")
}

// Probe is the inspected shape of one container.
type Probe struct {
	Path    string
	Streams []Stream
	// Duration is zero when the container did not report one.
	Duration time.Duration
}

// OfKind returns the streams of kind k in index order.
func (p Probe) OfKind(k Kind) []Stream {
	var out []Stream
	for _, s := range p.Streams {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// Video returns the video streams in index order.
func (p Probe) Video() []Stream { return p.OfKind(KindVideo) }

// Audio returns the audio streams in index order.
func (p Probe) Audio() []Stream { return p.OfKind(KindAudio) }

// Subtitles returns the subtitle streams in index order.
func (p Probe) Subtitles() []Stream { return p.OfKind(KindSubtitle) }
