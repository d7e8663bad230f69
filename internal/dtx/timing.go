package dtx

import (
	"errors"
	"sort"
	"strconv"
)

// ErrBadTempo is returned when the effective tempo is zero or negative at
// a point where the walk must divide by it. Valid input cannot get here;
// a chart that does is corrupt.
var ErrBadTempo = errors.New("dtx: tempo reached zero or below during timing resolution")

// A bar spans four beats scaled by its length multiplier.
const beatsPerBar = 4.0

func (b *chartBuilder) barLength(bar int) float64 {
	if m, ok := b.barLengths[bar]; ok {
		return m
	}
	return 1
}

// resolveTiming turns bar/slot grid positions into absolute millisecond
// timestamps. Time advances by (delta beats) x (60000 / tempo) before an
// event's own effect applies, so tempo changes are never retroactive.
func (b *chartBuilder) resolveTiming() (notes []TimedNote, backgroundStart float64, err error) {
	if len(b.events) == 0 {
		return nil, 0, nil
	}

	maxBar := 0
	for i := range b.events {
		if b.events[i].bar > maxBar {
			maxBar = b.events[i].bar
		}
	}

	// Each bar starts where the running sum of all prior bars ends.
	barStart := make([]float64, maxBar+2)
	for i := 0; i <= maxBar; i++ {
		barStart[i+1] = barStart[i] + beatsPerBar*b.barLength(i)
	}

	// Slot position is fractional within the bar's beat span, so grids of
	// different resolutions in one bar line up on the same scale.
	events := b.events
	for i := range events {
		e := &events[i]
		span := beatsPerBar * b.barLength(e.bar)
		e.beat = barStart[e.bar] + float64(e.slot)/float64(e.slots)*span
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].beat < events[j].beat })

	var (
		timeMS        float64
		lastBeat      float64
		tempo         = b.meta.Tempo
		sawBackground bool
	)
	for i := range events {
		e := &events[i]
		if tempo <= 0 {
			return nil, 0, ErrBadTempo
		}
		timeMS += (e.beat - lastBeat) * (60000 / tempo)
		lastBeat = e.beat

		switch e.kind {
		case kindBackground:
			// Only the first marker anchors the background track.
			if !sawBackground {
				backgroundStart = timeMS
				sawBackground = true
			}
		case kindTempoDirect:
			if v, perr := strconv.ParseInt(e.value, 16, 64); perr == nil {
				tempo = float64(v)
			} else {
				b.warn(e.line, "channel 03", e.value, "invalid direct tempo")
			}
		case kindTempoIndexed:
			if v, ok := b.tempoTable[e.value]; ok {
				tempo = v
			}
		default:
			notes = append(notes, TimedNote{Time: timeMS, Channel: e.channel, Sample: e.value})
		}
	}

	// The walk already runs in beat order; the stable sort is the safety
	// net that keeps output monotonic by time with parse-order ties.
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Time < notes[j].Time })
	return notes, backgroundStart, nil
}
