package audio

import (
	"fmt"
	"slices"
	"strings"

	"ac3mux/internal/language"
	"ac3mux/internal/media"
	"ac3mux/internal/services"
)

// Policy configures audio and subtitle selection.
type Policy struct {
	// Allowed is the language allow-list. Streams without a language tag are
	// always allowed.
	Allowed language.Set
	// KeepMultiple keeps every other allowed AC3/E-AC3 stream next to the best.
	KeepMultiple bool
	// KeepCommentary keeps commentary tracks regardless of language.
	KeepCommentary bool
	// PreferExisting restricts the ranking to AC3/E-AC3 candidates when any
	// exist, avoiding a conversion whenever a playable track is present.
	PreferExisting bool
}

// Outcome classifies a selection.
type Outcome int

const (
	OutcomeSelected Outcome = iota
	OutcomeNoAudio
	OutcomeNoSuitableAudio
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelected:
		return "selected"
	case OutcomeNoAudio:
		return "no audio streams"
	case OutcomeNoSuitableAudio:
		return "no audio stream in an allowed language"
	default:
		return "unknown"
	}
}

// DropReason explains why a stream was left out.
type DropReason string

const (
	DropLanguage DropReason = "language"
	DropRanking  DropReason = "ranking"
)

// Dropped pairs a removed stream with the reason it was removed.
type Dropped struct {
	Stream media.Stream
	Reason DropReason
}

// Selection is the result of Select. Best and KeptAudio are only meaningful
// when Outcome is OutcomeSelected; KeptAudio always starts with Best.
type Selection struct {
	Outcome          Outcome
	Best             media.Stream
	KeptAudio        []media.Stream
	DroppedAudio     []Dropped
	KeptSubtitles    []media.Stream
	DroppedSubtitles []Dropped
}

// OK reports whether a best stream was found.
func (s Selection) OK() bool { return s.Outcome == OutcomeSelected }

// Err returns a services.ErrSelectionImpossible error for selections without
// a best stream, nil otherwise.
func (s Selection) Err() error {
	if s.OK() {
		return nil
	}
	return services.Wrap(services.ErrSelectionImpossible, "select", "audio", s.Outcome.String(), nil)
}

// RankingDrops counts allowed-language audio streams that lost the ranking.
func (s Selection) RankingDrops() int {
	n := 0
	for _, d := range s.DroppedAudio {
		if d.Reason == DropRanking {
			n++
		}
	}
	return n
}

// Unchanged reports whether the selection keeps every audio and subtitle
// stream of the source.
func (s Selection) Unchanged() bool {
	return len(s.DroppedAudio) == 0 && len(s.DroppedSubtitles) == 0
}

// Reason renders a one-line explanation for decision logs.
func (s Selection) Reason() string {
	if !s.OK() {
		return s.Outcome.String()
	}
	parts := []string{"best " + s.Best.Summary()}
	if extra := len(s.KeptAudio) - 1; extra > 0 {
		parts = append(parts, fmt.Sprintf("%d extra kept", extra))
	}
	if n := len(s.DroppedAudio); n > 0 {
		parts = append(parts, fmt.Sprintf("%d audio dropped (%d by ranking)", n, s.RankingDrops()))
	}
	if n := len(s.DroppedSubtitles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d subtitles dropped", n))
	}
	return strings.Join(parts, ", ")
}

// Select decides which audio and subtitle streams to keep. It is pure and
// deterministic: the same streams and policy always produce the same result,
// and selecting again over the kept streams keeps all of them.
func Select(streams []media.Stream, policy Policy) Selection {
	var audio, subtitles []media.Stream
	for _, s := range streams {
		switch s.Kind {
		case media.KindAudio:
			audio = append(audio, s)
		case media.KindSubtitle:
			subtitles = append(subtitles, s)
		}
	}

	sel := Selection{}
	sel.KeptSubtitles, sel.DroppedSubtitles = selectSubtitles(subtitles, policy.Allowed)

	if len(audio) == 0 {
		sel.Outcome = OutcomeNoAudio
		return sel
	}

	// A lone playable track in an allowed language is left alone.
	if len(audio) == 1 && media.IsAC3Family(audio[0].Codec) && allows(policy.Allowed, audio[0]) {
		sel.Best = audio[0]
		sel.KeptAudio = []media.Stream{audio[0]}
		return sel
	}

	candidates := buildCandidates(audio, policy.Allowed)
	main := candidates.filter(func(c candidate) bool { return c.allowed && !c.commentary })
	if len(main) == 0 {
		main = candidates.filter(func(c candidate) bool { return c.allowed })
	}
	if len(main) == 0 {
		sel.Outcome = OutcomeNoSuitableAudio
		for _, c := range candidates {
			sel.DroppedAudio = append(sel.DroppedAudio, Dropped{Stream: c.stream, Reason: DropLanguage})
		}
		return sel
	}
	if policy.PreferExisting {
		if existing := main.filter(func(c candidate) bool { return c.acceptable }); len(existing) > 0 {
			main = existing
		}
	}

	best := main.ranked()[0]
	sel.Best = best.stream

	kept := map[int]struct{}{best.stream.Index: {}}
	var extras []media.Stream
	for _, c := range candidates {
		if c.stream.Index == best.stream.Index {
			continue
		}
		keep := (policy.KeepMultiple && c.allowed && c.acceptable && !c.commentary) ||
			(policy.KeepCommentary && c.commentary)
		if keep {
			kept[c.stream.Index] = struct{}{}
			extras = append(extras, c.stream)
		}
	}
	sel.KeptAudio = append([]media.Stream{best.stream}, extras...)

	for _, c := range candidates {
		if _, ok := kept[c.stream.Index]; ok {
			continue
		}
		reason := DropRanking
		if !c.allowed {
			reason = DropLanguage
		}
		sel.DroppedAudio = append(sel.DroppedAudio, Dropped{Stream: c.stream, Reason: reason})
	}
	return sel
}

// Rank orders audio streams best first: more channels, then higher known
// bitrate (unknown ranks below any known bitrate), then lower index.
func Rank(streams []media.Stream) []media.Stream {
	out := append([]media.Stream(nil), streams...)
	slices.SortStableFunc(out, compareStreams)
	return out
}

func compareStreams(a, b media.Stream) int {
	if a.Channels != b.Channels {
		return b.Channels - a.Channels
	}
	if c := b.Bitrate.Compare(a.Bitrate); c != 0 {
		return c
	}
	return a.Index - b.Index
}

var commentaryKeywords = []string{"commentary", "comentário", "comentario", "director"}

// IsCommentary reports whether the stream title marks it as a commentary track.
func IsCommentary(s media.Stream) bool {
	title := strings.ToLower(s.Title)
	if title == "" {
		return false
	}
	for _, keyword := range commentaryKeywords {
		if strings.Contains(title, keyword) {
			return true
		}
	}
	return false
}

func selectSubtitles(subtitles []media.Stream, allowed language.Set) ([]media.Stream, []Dropped) {
	var kept []media.Stream
	var dropped []Dropped
	for _, s := range subtitles {
		if allows(allowed, s) {
			kept = append(kept, s)
			continue
		}
		dropped = append(dropped, Dropped{Stream: s, Reason: DropLanguage})
	}
	return kept, dropped
}

func allows(allowed language.Set, s media.Stream) bool {
	tag, _ := s.Language.Tag()
	return allowed.Allows(tag)
}

// candidate captures the derived metadata used for audio ranking.
type candidate struct {
	stream     media.Stream
	allowed    bool
	acceptable bool
	commentary bool
}

type candidateList []candidate

func buildCandidates(audio []media.Stream, allowed language.Set) candidateList {
	result := make(candidateList, 0, len(audio))
	for _, s := range audio {
		result = append(result, candidate{
			stream:     s,
			allowed:    allows(allowed, s),
			acceptable: media.IsAC3Family(s.Codec),
			commentary: IsCommentary(s),
		})
	}
	return result
}

func (c candidateList) filter(keep func(candidate) bool) candidateList {
	result := make(candidateList, 0, len(c))
	for _, cand := range c {
		if keep(cand) {
			result = append(result, cand)
		}
	}
	return result
}

func (c candidateList) ranked() candidateList {
	out := append(candidateList(nil), c...)
	slices.SortStableFunc(out, func(a, b candidate) int {
		return compareStreams(a.stream, b.stream)
	})
	return out
}
