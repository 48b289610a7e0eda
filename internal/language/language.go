package language

import (
	"slices"
	"strings"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2/B primary (3-letter)
	alt3    []string // ISO 639-2/T and regional variants
	display string
	words   []string // full word forms, native spellings included
}

var languages = []entry{
	{"en", "eng", nil, "English", []string{"english"}},
	{"pt", "por", []string{"pob"}, "Portuguese", []string{"portuguese", "português", "portugues"}},
	{"es", "spa", nil, "Spanish", []string{"spanish", "español", "espanol"}},
	{"fr", "fre", []string{"fra"}, "French", []string{"french", "français", "francais"}},
	{"de", "ger", []string{"deu"}, "German", []string{"german", "deutsch"}},
	{"it", "ita", nil, "Italian", []string{"italian", "italiano"}},
	{"ja", "jpn", nil, "Japanese", []string{"japanese"}},
	{"ko", "kor", nil, "Korean", []string{"korean"}},
	{"zh", "chi", []string{"zho"}, "Chinese", []string{"chinese", "mandarin"}},
	{"ru", "rus", nil, "Russian", []string{"russian"}},
	{"ar", "ara", nil, "Arabic", []string{"arabic"}},
	{"hi", "hin", nil, "Hindi", []string{"hindi"}},
	{"nl", "dut", []string{"nld"}, "Dutch", []string{"dutch"}},
	{"pl", "pol", nil, "Polish", []string{"polish"}},
	{"sv", "swe", nil, "Swedish", []string{"swedish"}},
	{"da", "dan", nil, "Danish", []string{"danish"}},
	{"no", "nor", []string{"nob", "nno"}, "Norwegian", []string{"norwegian"}},
	{"fi", "fin", nil, "Finnish", []string{"finnish"}},
	{"cs", "cze", []string{"ces"}, "Czech", []string{"czech"}},
	{"hu", "hun", nil, "Hungarian", []string{"hungarian"}},
	{"tr", "tur", nil, "Turkish", []string{"turkish"}},
	{"el", "gre", []string{"ell"}, "Greek", []string{"greek"}},
	{"he", "heb", nil, "Hebrew", []string{"hebrew"}},
	{"th", "tha", nil, "Thai", []string{"thai"}},
}

// undetermined lists tag values that carry no language information. Streams
// tagged with any of them are treated as unknown.
var undetermined = []string{"und", "unknown", "undefined", "n/a", "zxx", "mis", "mul", "xx"}

var lookupIndex = func() map[string]*entry {
	index := make(map[string]*entry, len(languages)*5)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		for _, alt := range e.alt3 {
			index[alt] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
	return index
}()

// clean lowercases a tag and reduces BCP 47 forms ("pt-BR", "en_US") to their
// primary subtag.
func clean(code string) string {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return code
}

func lookup(code string) *entry {
	code = clean(code)
	if code == "" {
		return nil
	}
	return lookupIndex[code]
}

// IsUndetermined reports whether a tag value carries no usable language.
func IsUndetermined(code string) bool {
	code = clean(code)
	return code == "" || slices.Contains(undetermined, code)
}

// Canonical returns the ISO 639-2/B code for any recognized code or word,
// the cleaned input for unrecognized values, and "" for undetermined tags.
func Canonical(code string) string {
	if IsUndetermined(code) {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	return clean(code)
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Unrecognized 2-letter input passes through; anything else returns "".
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.code2
	}
	if c := clean(code); len(c) == 2 && !IsUndetermined(c) {
		return c
	}
	return ""
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for undetermined input, or the uppercased code otherwise.
func DisplayName(code string) string {
	if IsUndetermined(code) {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(clean(code))
}

// Set is an allow-list of languages compared by canonical code, so "en",
// "eng" and "English" all match each other.
type Set struct {
	codes map[string]struct{}
	order []string
}

// NewSet builds a Set from configured language values. Undetermined values
// are dropped: unknown-language streams are admitted by Allows regardless.
func NewSet(values []string) Set {
	s := Set{codes: make(map[string]struct{}, len(values))}
	for _, value := range values {
		code := Canonical(value)
		if code == "" {
			continue
		}
		if _, ok := s.codes[code]; ok {
			continue
		}
		s.codes[code] = struct{}{}
		s.order = append(s.order, code)
	}
	return s
}

// Allows reports whether a stream tagged with code should be kept. An
// undetermined tag is always allowed.
func (s Set) Allows(code string) bool {
	canonical := Canonical(code)
	if canonical == "" {
		return true
	}
	_, ok := s.codes[canonical]
	return ok
}

// Codes returns the canonical codes in configuration order.
func (s Set) Codes() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of distinct languages in the set.
func (s Set) Len() int { return len(s.order) }

func (s Set) String() string {
	return strings.Join(s.order, ",")
}
