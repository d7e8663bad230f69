package dtx

import "fmt"

type channelKind int

const (
	kindNote channelKind = iota + 1
	kindBackground
	kindBarLength
	kindTempoDirect
	kindTempoIndexed
	kindIgnored
)

const (
	chBackground  = "01"
	chBarLength   = "02"
	chTempoDirect = "03"
	chTempoIndex  = "08"
)

// Channels that never produce playable notes: visual layers, system
// markers, and autoplay sound-effect layers.
var nonNoteChannels = map[string]bool{
	"04": true, "07": true, "54": true, "5A": true, "C4": true, "C7": true,
	"55": true, "56": true, "57": true, "58": true, "59": true, "60": true,
	"D5": true, "D6": true, "D7": true, "D8": true, "D9": true, "DA": true,
	"DB": true, "DC": true, "DD": true, "DE": true, "DF": true,
	"50": true, "51": true, "C1": true, "C2": true,
	"61": true, "62": true, "63": true, "64": true, "65": true, "66": true,
	"67": true, "68": true, "69": true,
	"70": true, "71": true, "72": true, "73": true, "74": true, "75": true,
	"76": true, "77": true, "78": true, "79": true,
	"80": true, "81": true, "82": true, "83": true, "84": true, "85": true,
	"86": true, "87": true, "88": true, "89": true,
	"90": true, "91": true, "92": true,
}

func classifyChannel(ch string) channelKind {
	switch {
	case ch == chBarLength:
		return kindBarLength
	case ch == chBackground:
		return kindBackground
	case ch == chTempoDirect:
		return kindTempoDirect
	case ch == chTempoIndex:
		return kindTempoIndexed
	case nonNoteChannels[ch]:
		return kindIgnored
	}
	return kindNote
}

type Metadata struct {
	Title  string
	Artist string
	Tempo  float64
}

// TimedNote is one playable event on the resolved timeline. Time is
// absolute milliseconds from chart start.
type TimedNote struct {
	Time    float64
	Channel string
	Sample  string
}

// Background identifies the background track sample and the chart time at
// which its first marker occurs. An empty Sample means the chart has none.
type Background struct {
	Sample  string
	StartMS float64
}

// Warning records a tolerated parse problem. Malformed fields never abort
// parsing; the prior or default value stays in effect.
type Warning struct {
	Line    int
	Field   string
	Value   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s: %s %q", w.Line, w.Field, w.Message, w.Value)
}

// Chart is the finished, read-only result of parsing: metadata, resource
// tables, and the time-sorted note sequence the scheduler consumes.
type Chart struct {
	Path          string
	Dir           string
	Encoding      string
	Meta          Metadata
	SamplePaths   map[string]string
	SampleVolumes map[string]int
	TempoTable    map[string]float64
	BarLengths    map[int]float64
	Notes         []TimedNote
	Background    Background
	Warnings      []Warning
}

// LastNoteMS returns the time of the final note, or 0 for an empty chart.
func (c *Chart) LastNoteMS() float64 {
	if len(c.Notes) == 0 {
		return 0
	}
	return c.Notes[len(c.Notes)-1].Time
}

// SampleVolume returns the chart volume percent for a sample id,
// defaulting to 100 when the chart never set one.
func (c *Chart) SampleVolume(id string) int {
	if v, ok := c.SampleVolumes[id]; ok {
		return v
	}
	return 100
}

// rawEvent is one grid token awaiting timing resolution. slot and slots
// describe its fractional position within the bar; kind is resolved once
// at parse time.
type rawEvent struct {
	line    int
	bar     int
	channel string
	kind    channelKind
	slot    int
	slots   int
	value   string
	beat    float64
}
