package audio

import (
	"bytes"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/lazykern/patazon/internal/dtx"
	"github.com/lazykern/patazon/internal/playback"
)

// voice is one playing sample instance. The envelope lives in the gain
// stream; the listener volume sits on the player itself.
type voice struct {
	player audioPlayer
	gain   *gainStream
}

func (v *voice) FadeOut(d time.Duration) { v.gain.fadeTo(0, d, true) }

func (v *voice) Stop() {
	v.player.Pause()
	v.player.Close()
}

func (v *voice) Playing() bool { return v.player.IsPlaying() }

// audioPlayer is the slice of ebiten's audio player the mixer drives.
type audioPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	Position() time.Duration
	SetVolume(volume float64)
	Close() error
}

// LoadReport summarizes a sample-loading pass. Problem files surface
// here once instead of at every note that references them.
type LoadReport struct {
	Loaded  int
	Defined int
	Missing []string
	Failed  []string
}

// Mixer decodes a chart's samples into memory and starts voices over the
// shared audio context.
type Mixer struct {
	mu      sync.Mutex
	samples map[string]*Sample
	voices  []*voice
}

func NewMixer() *Mixer {
	return &Mixer{samples: make(map[string]*Sample)}
}

// LoadChart decodes every effect sample the chart defines. The
// background sample is the track's, not the mixer's, and is skipped.
func (m *Mixer) LoadChart(chart *dtx.Chart) LoadReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := LoadReport{Defined: len(chart.SamplePaths)}
	for id, path := range chart.SamplePaths {
		if id == chart.Background.Sample {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			report.Missing = append(report.Missing, id)
			continue
		}
		sample, err := LoadSample(path)
		if err != nil {
			report.Failed = append(report.Failed, id)
			continue
		}
		m.samples[id] = sample
		report.Loaded++
	}
	sort.Strings(report.Missing)
	sort.Strings(report.Failed)
	return report
}

func (m *Mixer) HasSample(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.samples[id]
	return ok
}

// StartVoice plays the sample at the given volume with a short fade-in
// and returns a handle the scheduler can release later.
func (m *Mixer) StartVoice(id string, volume float64, fadeIn time.Duration) (playback.Voice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sample, ok := m.samples[id]
	if !ok {
		return nil, false
	}
	m.sweepLocked()

	gain := newGainStream(bytes.NewReader(sample.PCM), fadeIn)
	player, err := sharedContext().NewPlayer(gain)
	if err != nil {
		return nil, false
	}
	player.SetVolume(volume)
	player.Play()

	v := &voice{player: player, gain: gain}
	m.voices = append(m.voices, v)
	return v, true
}

func (m *Mixer) StopAllVoices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.voices {
		v.player.Pause()
		v.player.Close()
	}
	m.voices = m.voices[:0]
}

// sweepLocked drops voices whose players already drained and releases
// their resources. Called with the mutex held.
func (m *Mixer) sweepLocked() {
	kept := m.voices[:0]
	for _, v := range m.voices {
		if v.player.IsPlaying() {
			kept = append(kept, v)
		} else {
			v.player.Close()
		}
	}
	m.voices = kept
}
