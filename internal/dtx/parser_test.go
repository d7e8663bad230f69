package dtx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func parseLines(t *testing.T, text string) *Chart {
	t.Helper()
	chart, err := NewParser(DefaultConfig()).Parse(strings.Split(text, "\n"), "charts")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return chart
}

func TestParseMetadataDefaults(t *testing.T) {
	chart := parseLines(t, "#WAV01: kick.wav")
	if chart.Meta.Title != "Untitled" {
		t.Fatalf("default title = %q, want Untitled", chart.Meta.Title)
	}
	if chart.Meta.Artist != "Unknown" {
		t.Fatalf("default artist = %q, want Unknown", chart.Meta.Artist)
	}
	if chart.Meta.Tempo != 120 {
		t.Fatalf("default tempo = %v, want 120", chart.Meta.Tempo)
	}
}

func TestParseMetadataLastWins(t *testing.T) {
	chart := parseLines(t, `#TITLE: First
#ARTIST: Someone
#TITLE: Second
#BPM: 150`)
	if chart.Meta.Title != "Second" {
		t.Fatalf("title = %q, want Second", chart.Meta.Title)
	}
	if chart.Meta.Artist != "Someone" {
		t.Fatalf("artist = %q, want Someone", chart.Meta.Artist)
	}
	if chart.Meta.Tempo != 150 {
		t.Fatalf("tempo = %v, want 150", chart.Meta.Tempo)
	}
}

func TestParseDirectiveSeparators(t *testing.T) {
	// Colon is preferred, space is the fallback, and a bare key carries
	// an empty value.
	chart := parseLines(t, `#BPM 90
#TITLE:NoSpace
#END`)
	if chart.Meta.Tempo != 90 {
		t.Fatalf("space-separated tempo = %v, want 90", chart.Meta.Tempo)
	}
	if chart.Meta.Title != "NoSpace" {
		t.Fatalf("title = %q, want NoSpace", chart.Meta.Title)
	}
}

func TestParseCommentStripped(t *testing.T) {
	chart := parseLines(t, "#BPM: 180 ; halftime feel")
	if chart.Meta.Tempo != 180 {
		t.Fatalf("tempo = %v, want 180", chart.Meta.Tempo)
	}
}

func TestParseMalformedTempoWarnsAndKeepsPrior(t *testing.T) {
	chart := parseLines(t, "#BPM: fast")
	if chart.Meta.Tempo != 120 {
		t.Fatalf("tempo = %v, want default 120 after malformed value", chart.Meta.Tempo)
	}
	if len(chart.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(chart.Warnings))
	}
	w := chart.Warnings[0]
	if w.Line != 1 || w.Field != "BPM" || w.Value != "fast" {
		t.Fatalf("warning context = %+v", w)
	}
}

func TestParseSamplePaths(t *testing.T) {
	chart := parseLines(t, `#WAV01: bgm.ogg
#WAV1A: sounds\cymbal.wav
#WAVZZ: deep/nested.wav`)
	if got := chart.SamplePaths["01"]; got != filepath.Join("charts", "bgm.ogg") {
		t.Fatalf("sample 01 path = %q", got)
	}
	if got := chart.SamplePaths["1A"]; got != filepath.Join("charts", "sounds", "cymbal.wav") {
		t.Fatalf("backslash path not normalized: %q", got)
	}
	if got := chart.SamplePaths["ZZ"]; got != filepath.Join("charts", "deep", "nested.wav") {
		t.Fatalf("sample ZZ path = %q", got)
	}
}

func TestParseSampleKeyNeedsIdentifier(t *testing.T) {
	chart := parseLines(t, "#WAV: orphan.wav")
	if len(chart.SamplePaths) != 0 {
		t.Fatalf("bare WAV key should register nothing, got %v", chart.SamplePaths)
	}
}

func TestParseVolumeTable(t *testing.T) {
	chart := parseLines(t, `#WAV02: snare.wav
#VOLUME02: 60
#VOLUME03: loud`)
	if got := chart.SampleVolume("02"); got != 60 {
		t.Fatalf("volume 02 = %d, want 60", got)
	}
	if got := chart.SampleVolume("02X"); got != 100 {
		t.Fatalf("unset volume should default to 100, got %d", got)
	}
	if len(chart.Warnings) != 1 {
		t.Fatalf("malformed volume should warn, warnings = %v", chart.Warnings)
	}
}

func TestParseTempoTableNeedsSuffix(t *testing.T) {
	chart := parseLines(t, `#BPM01: 200
#BPM02: quick`)
	if got := chart.TempoTable["01"]; got != 200 {
		t.Fatalf("tempo table 01 = %v, want 200", got)
	}
	if _, ok := chart.TempoTable["02"]; ok {
		t.Fatalf("malformed tempo entry should be skipped")
	}
	if len(chart.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(chart.Warnings))
	}
}

func TestParseGridTokens(t *testing.T) {
	chart := parseLines(t, `#WAV01: bgm.wav
#00111: 01000200`)
	if len(chart.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(chart.Notes))
	}
	if chart.Notes[0].Sample != "01" || chart.Notes[1].Sample != "02" {
		t.Fatalf("note samples = %q, %q", chart.Notes[0].Sample, chart.Notes[1].Sample)
	}
	if chart.Notes[0].Channel != "11" || chart.Notes[1].Channel != "11" {
		t.Fatalf("note channels = %q, %q", chart.Notes[0].Channel, chart.Notes[1].Channel)
	}
}

func TestParseGridLowercaseTokens(t *testing.T) {
	chart := parseLines(t, "#00112: 0a")
	if len(chart.Notes) != 1 || chart.Notes[0].Sample != "0A" {
		t.Fatalf("lowercase token should upper-case, notes = %v", chart.Notes)
	}
}

func TestParseBarLengthLine(t *testing.T) {
	chart := parseLines(t, `#00102: 0.5
#00202: 2.0
#00302: wide`)
	if chart.BarLengths[1] != 0.5 || chart.BarLengths[2] != 2.0 {
		t.Fatalf("bar lengths = %v", chart.BarLengths)
	}
	if _, ok := chart.BarLengths[3]; ok {
		t.Fatalf("malformed bar length should be skipped")
	}
	if len(chart.Notes) != 0 {
		t.Fatalf("bar-length lines must not produce notes, got %v", chart.Notes)
	}
	if len(chart.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(chart.Warnings))
	}
}

func TestParseNonNoteChannelsIgnored(t *testing.T) {
	// Visual layer, system marker, and autoplay SE channels produce no
	// events at all.
	chart := parseLines(t, `#00104: 0101
#00150: 01
#00161: 0101
#00190: 01`)
	if len(chart.Notes) != 0 {
		t.Fatalf("ignored channels leaked into notes: %v", chart.Notes)
	}
}

func TestParseUnknownDirectivesIgnored(t *testing.T) {
	chart := parseLines(t, `#PANEL: drums
#DLEVEL: 45
#PREVIEW: pre.ogg
random junk line
#00111: 01`)
	if len(chart.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(chart.Notes))
	}
	if len(chart.Warnings) != 0 {
		t.Fatalf("unknown directives should be silent, warnings = %v", chart.Warnings)
	}
}

func TestParseBackgroundDefaultsToSample01(t *testing.T) {
	chart := parseLines(t, "#WAV01: bgm.ogg")
	if chart.Background.Sample != "01" {
		t.Fatalf("background sample = %q, want 01", chart.Background.Sample)
	}
}

func TestParseBackgroundDirectiveWins(t *testing.T) {
	chart := parseLines(t, `#WAV01: not-bgm.wav
#WAV0A: bgm.ogg
#BGMWAV: 0a`)
	if chart.Background.Sample != "0A" {
		t.Fatalf("background sample = %q, want 0A", chart.Background.Sample)
	}
}

func TestParseNoBackgroundWithoutSample01(t *testing.T) {
	chart := parseLines(t, "#WAV02: snare.wav")
	if chart.Background.Sample != "" {
		t.Fatalf("background sample = %q, want none", chart.Background.Sample)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.dtx")
	content := "#TITLE: Disk Song\n#WAV01: audio/bgm.ogg\n#00111: 01\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write chart: %v", err)
	}
	chart, err := NewParser(DefaultConfig()).Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if chart.Path != path {
		t.Fatalf("chart path = %q, want %q", chart.Path, path)
	}
	if chart.Encoding != "shift-jis" {
		t.Fatalf("ascii chart should score first under shift-jis, got %q", chart.Encoding)
	}
	if got := chart.SamplePaths["01"]; got != filepath.Join(dir, "audio", "bgm.ogg") {
		t.Fatalf("sample path = %q", got)
	}
	if len(chart.Notes) != 1 {
		t.Fatalf("expected 1 note, got %d", len(chart.Notes))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewParser(DefaultConfig()).Load(filepath.Join(t.TempDir(), "absent.dtx"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
