package dtx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	DefaultTitle  string
	DefaultArtist string
	DefaultTempo  float64
}

func DefaultConfig() Config {
	return Config{
		DefaultTitle:  "Untitled",
		DefaultArtist: "Unknown",
		DefaultTempo:  120,
	}
}

type Parser struct{ cfg Config }

func NewParser(cfg Config) *Parser { return &Parser{cfg: cfg} }

// Load reads a chart file, auto-detects its encoding, and parses it.
// Sample paths resolve relative to the file's directory.
func (p *Parser) Load(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, encodingName, err := decodeChart(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	chart, err := p.Parse(lines, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	chart.Path = path
	chart.Encoding = encodingName
	return chart, nil
}

// Parse consumes decoded lines in a single forward pass, then resolves
// event timing. The returned Chart is complete and read-only.
func (p *Parser) Parse(lines []string, dir string) (*Chart, error) {
	b := newChartBuilder(p.cfg, dir)
	for i, raw := range lines {
		b.line(i+1, raw)
	}
	return b.finalize()
}

// chartBuilder accumulates tables during the line pass and is finalized
// exactly once; nothing partially built escapes to callers.
type chartBuilder struct {
	cfg           Config
	dir           string
	meta          Metadata
	samplePaths   map[string]string
	sampleVolumes map[string]int
	tempoTable    map[string]float64
	barLengths    map[int]float64
	background    string
	events        []rawEvent
	warnings      []Warning
}

func newChartBuilder(cfg Config, dir string) *chartBuilder {
	return &chartBuilder{
		cfg: cfg,
		dir: dir,
		meta: Metadata{
			Title:  cfg.DefaultTitle,
			Artist: cfg.DefaultArtist,
			Tempo:  cfg.DefaultTempo,
		},
		samplePaths:   make(map[string]string),
		sampleVolumes: make(map[string]int),
		tempoTable:    make(map[string]float64),
		barLengths:    make(map[int]float64),
	}
}

func (b *chartBuilder) warn(line int, field, value, msg string) {
	b.warnings = append(b.warnings, Warning{Line: line, Field: field, Value: value, Message: msg})
}

func (b *chartBuilder) line(n int, raw string) {
	text := strings.TrimSpace(raw)
	if text == "" || text[0] != '#' {
		return
	}
	key, value := splitDirective(text[1:])
	key = strings.ToUpper(strings.TrimSpace(key))
	value = stripComment(value)

	switch {
	case key == "TITLE":
		b.meta.Title = value
	case key == "ARTIST":
		b.meta.Artist = value
	case key == "BPM" && value != "":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.meta.Tempo = v
		} else {
			b.warn(n, "BPM", value, "invalid tempo")
		}
	case strings.HasPrefix(key, "WAV") && len(key) > 3 && value != "":
		b.samplePaths[key[3:]] = b.resolvePath(value)
	case key == "BGMWAV" && value != "":
		b.background = strings.ToUpper(value)
	case strings.HasPrefix(key, "BPM") && len(key) > 3 && value != "":
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.tempoTable[key[3:]] = v
		} else {
			b.warn(n, "BPM"+key[3:], value, "invalid tempo entry")
		}
	case strings.HasPrefix(key, "VOLUME") && len(key) > 6 && value != "":
		if v, err := strconv.Atoi(value); err == nil {
			b.sampleVolumes[key[6:]] = v
		} else {
			b.warn(n, "VOLUME"+key[6:], value, "invalid volume")
		}
	case isGridKey(key):
		b.gridLine(n, key, value)
	}
	// Anything else is an unrecognized directive; skip it so future
	// format extensions do not break existing charts.
}

func (b *chartBuilder) gridLine(n int, key, value string) {
	bar, _ := strconv.Atoi(key[:3])
	channel := key[3:5]
	kind := classifyChannel(channel)

	switch kind {
	case kindBarLength:
		// Bar length is a direct multiplier, never a token grid.
		if value == "" {
			return
		}
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			b.barLengths[bar] = v
		} else {
			b.warn(n, fmt.Sprintf("bar %d", bar), value, "invalid bar length")
		}
		return
	case kindIgnored:
		return
	}
	if value == "" {
		return
	}

	value = strings.ToUpper(value)
	slots := (len(value) + 1) / 2
	for i := 0; i < len(value); i += 2 {
		end := i + 2
		if end > len(value) {
			end = len(value)
		}
		token := value[i:end]
		if token == "00" {
			continue
		}
		b.events = append(b.events, rawEvent{
			line:    n,
			bar:     bar,
			channel: channel,
			kind:    kind,
			slot:    i / 2,
			slots:   slots,
			value:   token,
		})
	}
}

func (b *chartBuilder) finalize() (*Chart, error) {
	// Charts conventionally use sample 01 as the background track when no
	// directive says otherwise.
	if b.background == "" {
		if _, ok := b.samplePaths["01"]; ok {
			b.background = "01"
		}
	}
	notes, backgroundStart, err := b.resolveTiming()
	if err != nil {
		return nil, err
	}
	chart := &Chart{
		Dir:           b.dir,
		Meta:          b.meta,
		SamplePaths:   b.samplePaths,
		SampleVolumes: b.sampleVolumes,
		TempoTable:    b.tempoTable,
		BarLengths:    b.barLengths,
		Notes:         notes,
		Warnings:      b.warnings,
	}
	if b.background != "" {
		chart.Background = Background{Sample: b.background, StartMS: backgroundStart}
	}
	return chart, nil
}

func (b *chartBuilder) resolvePath(value string) string {
	// Charts written on Windows carry backslash separators.
	normalized := strings.ReplaceAll(value, "\\", "/")
	if filepath.IsAbs(normalized) {
		return filepath.Clean(normalized)
	}
	return filepath.Join(b.dir, normalized)
}

func splitDirective(s string) (key, value string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func stripComment(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// isGridKey reports whether key is a bar/channel event line: three bar
// digits followed by a two-character channel code.
func isGridKey(key string) bool {
	if len(key) != 5 {
		return false
	}
	for i := 0; i < 3; i++ {
		if key[i] < '0' || key[i] > '9' {
			return false
		}
	}
	for i := 3; i < 5; i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
