// Package midiexport writes a resolved chart as a standard MIDI file
// with the drum notes on the General MIDI percussion channel.
package midiexport

import (
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/lazykern/patazon/internal/dtx"
)

const (
	ticksPerQuarter = 480
	drumChannel     = 9
	noteTicks       = ticksPerQuarter / 8
)

// drumKeys maps DTX drum channels to General MIDI percussion keys.
var drumKeys = map[string]uint8{
	"11": 42, // closed hi-hat
	"12": 38, // snare
	"13": 36, // bass drum
	"14": 48, // high tom
	"15": 45, // low tom
	"16": 49, // crash cymbal
	"17": 41, // floor tom
	"18": 46, // open hi-hat
	"19": 51, // ride cymbal
	"1A": 57, // crash cymbal 2
	"1B": 44, // pedal hi-hat
	"1C": 35, // second bass drum
}

// Write emits the chart as a two-track SMF: a meta track carrying the
// title and tempo, and a percussion track. Mid-song tempo changes are
// already baked into the notes' absolute times, so a single tempo event
// reproduces the chart's timing exactly.
func Write(w io.Writer, chart *dtx.Chart) error {
	tempo := chart.Meta.Tempo
	if tempo <= 0 {
		tempo = 120
	}

	type event struct {
		tick uint32
		off  bool
		key  uint8
		vel  uint8
	}
	var events []event
	for _, note := range chart.Notes {
		key, ok := drumKeys[note.Channel]
		if !ok {
			continue
		}
		tick := msToTicks(note.Time, tempo)
		events = append(events, event{tick: tick, key: key, vel: velocity(chart.SampleVolume(note.Sample))})
		events = append(events, event{tick: tick + noteTicks, off: true, key: key})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName(chart.Meta.Title))
	meta.Add(0, smf.MetaTempo(tempo))
	meta.Close(0)

	var drums smf.Track
	drums.Add(0, smf.MetaInstrument("Drums"))
	last := uint32(0)
	for _, ev := range events {
		delta := ev.tick - last
		last = ev.tick
		if ev.off {
			drums.Add(delta, midi.NoteOff(drumChannel, ev.key))
		} else {
			drums.Add(delta, midi.NoteOn(drumChannel, ev.key, ev.vel))
		}
	}
	drums.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := s.Add(meta); err != nil {
		return err
	}
	if err := s.Add(drums); err != nil {
		return err
	}
	_, err := s.WriteTo(w)
	return err
}

// WriteFile writes the chart to a .mid file.
func WriteFile(path string, chart *dtx.Chart) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, chart); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func msToTicks(ms, tempo float64) uint32 {
	quarterMS := 60000 / tempo
	return uint32(math.Round(ms / quarterMS * ticksPerQuarter))
}

// velocity maps a chart volume percentage onto MIDI velocity.
func velocity(percent int) uint8 {
	if percent < 1 {
		return 1
	}
	if percent > 127 {
		return 127
	}
	return uint8(percent)
}
