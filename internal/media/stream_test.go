package media

import "testing"

func TestBitrateCompareUnknownRanksLowest(t *testing.T) {
	unknown := Bitrate{}
	low := KnownBitrate(1)
	high := KnownBitrate(640_000)

	cases := []struct {
		a, b Bitrate
		want int
	}{
		{unknown, unknown, 0},
		{unknown, low, -1},
		{low, unknown, 1},
		{low, high, -1},
		{high, low, 1},
		{high, KnownBitrate(640_000), 0},
	}
	for _, tc := range cases {
		if got := tc.a.Compare(tc.b); got != tc.want {
			t.Fatalf("%v.Compare(%v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestParseLanguageUnknownForms(t *testing.T) {
	for _, raw := range []string{"", "und", "UND", "unknown", "N/A", "  "} {
		if lang := ParseLanguage(raw); lang.Known() {
			t.Fatalf("ParseLanguage(%q) should be unknown, got %q", raw, lang)
		}
	}
	lang := ParseLanguage(" ENG ")
	tag, ok := lang.Tag()
	if !ok || tag != "eng" {
		t.Fatalf("unexpected tag %q %v", tag, ok)
	}
	if (Language{}).String() != "und" {
		t.Fatal("unknown language should render as und")
	}
}

func TestCodecFamilies(t *testing.T) {
	for _, codec := range []string{"ac3", "EAC3"} {
		if !IsAC3Family(codec) {
			t.Fatalf("%s should be ac3 family", codec)
		}
	}
	for _, codec := range []string{"truehd", "dts", "flac", "pcm_s24le", "alac"} {
		if !IsLossless(codec) {
			t.Fatalf("%s should be lossless", codec)
		}
	}
	for _, codec := range []string{"aac", "opus", "mp3", "ac3"} {
		if IsLossless(codec) {
			t.Fatalf("%s should not be lossless", codec)
		}
	}
}

func TestProbeFiltersByKind(t *testing.T) {
	p := Probe{Streams: []Stream{
		{Index: 0, Kind: KindVideo, Codec: "h264"},
		{Index: 1, Kind: KindAudio, Codec: "ac3"},
		{Index: 2, Kind: KindSubtitle, Codec: "subrip"},
		{Index: 3, Kind: KindAudio, Codec: "aac"},
		{Index: 4, Kind: KindOther, Codec: "ttf"},
	}}
	if got := len(p.Audio()); got != 2 {
		t.Fatalf("expected 2 audio streams, got %d", got)
	}
	if got := p.Audio()[1].Index; got != 3 {
		t.Fatalf("expected audio order by index, got %d", got)
	}
	if len(p.Video()) != 1 || len(p.Subtitles()) != 1 {
		t.Fatalf("unexpected kind split: %+v", p)
	}
}

func TestStreamSummary(t *testing.T) {
	s := Stream{Index: 2, Kind: KindAudio, Codec: "truehd", Language: ParseLanguage("eng"), Channels: 8, Bitrate: KnownBitrate(3_500_000), Title: "Atmos"}
	want := `#2 audio truehd eng 8ch 3500k "Atmos"`
	if got := s.Summary(); got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}
