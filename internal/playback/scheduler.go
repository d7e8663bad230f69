package playback

import (
	"sort"
	"time"

	"github.com/lazykern/patazon/internal/dtx"
)

// Voice is one playing sample instance, already mixing in the audio
// subsystem. The scheduler only releases or queries it.
type Voice interface {
	FadeOut(d time.Duration)
	Stop()
	Playing() bool
}

// Track is the background music player. Play replaces any current
// playback, fading the old instance out; Position is relative to the
// most recent Play offset.
type Track interface {
	Play(offset, fadeIn time.Duration) error
	Stop()
	Playing() bool
	Position() time.Duration
	SetVolume(v float64)
}

// Mixer supplies voices for sample ids. Load-time problems (missing or
// undecodable files) are the mixer's to report once; the scheduler just
// skips ids the mixer does not carry.
type Mixer interface {
	HasSample(id string) bool
	StartVoice(id string, volume float64, fadeIn time.Duration) (Voice, bool)
	StopAllVoices()
}

type State int

const (
	StateStopped State = iota
	StatePlaying
	StateSeeking
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateSeeking:
		return "seeking"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

const (
	DefaultPolyphonyLimit = 4
	DefaultTickRate       = 240
	DefaultTrackVolume    = 0.7
	DefaultEffectVolume   = 1.0

	effectFadeIn  = 10 * time.Millisecond
	effectFadeOut = 100 * time.Millisecond
	trackFade     = 400 * time.Millisecond

	// Charts keep ringing a little past the final note.
	trailingPadMS = 3000.0

	// Fired notes stay visible to renderers for this long.
	recentHitWindow = 200.0
)

// DefaultChokeMap: closed and pedal hi-hat silence the open hi-hat.
var DefaultChokeMap = map[string][]string{
	"11": {"18"},
	"1B": {"18"},
}

type Options struct {
	PolyphonyLimit int
	TrackVolume    float64
	EffectVolume   float64
	ChokeMap       map[string][]string
	Now            func() time.Time

	OnNote         func(dtx.TimedNote)
	OnClockDemoted func()
	OnFinished     func()
}

// RecentHit is a just-fired note exposed for visualization.
type RecentHit struct {
	Channel string
	TimeMS  float64
}

type playingVoice struct {
	voice   Voice
	started float64
}

// Scheduler walks a chart's timed notes in real time. It owns the master
// clock, the per-channel polyphony and choke tables, and the note
// cursor; Tick never blocks, so the caller decides the polling rate.
type Scheduler struct {
	chart *dtx.Chart
	mixer Mixer
	track Track
	clock *masterClock

	state  State
	cursor int

	polyLimit int
	chokeMap  map[string][]string
	chokeable map[string]bool
	poly      map[string][]playingVoice
	choke     map[string]Voice

	trackVolume  float64
	effectVolume float64

	recent []RecentHit

	onNote         func(dtx.TimedNote)
	onClockDemoted func()
	onFinished     func()
}

// New builds a scheduler over a finished chart. track may be nil when
// the chart has no background audio; the clock then runs timer-driven
// from the start.
func New(chart *dtx.Chart, mixer Mixer, track Track, opts Options) *Scheduler {
	if opts.PolyphonyLimit <= 0 {
		opts.PolyphonyLimit = DefaultPolyphonyLimit
	}
	if opts.TrackVolume == 0 {
		opts.TrackVolume = DefaultTrackVolume
	}
	if opts.EffectVolume == 0 {
		opts.EffectVolume = DefaultEffectVolume
	}
	if opts.ChokeMap == nil {
		opts.ChokeMap = DefaultChokeMap
	}
	chokeable := make(map[string]bool)
	for _, chokedList := range opts.ChokeMap {
		for _, choked := range chokedList {
			chokeable[choked] = true
		}
	}
	return &Scheduler{
		chart:          chart,
		mixer:          mixer,
		track:          track,
		clock:          newMasterClock(opts.Now),
		polyLimit:      opts.PolyphonyLimit,
		chokeMap:       opts.ChokeMap,
		chokeable:      chokeable,
		poly:           make(map[string][]playingVoice),
		choke:          make(map[string]Voice),
		trackVolume:    clamp01(opts.TrackVolume),
		effectVolume:   clamp01(opts.EffectVolume),
		onNote:         opts.OnNote,
		onClockDemoted: opts.OnClockDemoted,
		onFinished:     opts.OnFinished,
	}
}

// Start moves Stopped to Playing. The clock is audio-driven when the
// background track starts successfully, timer-driven otherwise.
func (s *Scheduler) Start() {
	if s.state != StateStopped {
		return
	}
	s.clock.anchor(0)
	if s.track != nil {
		s.track.SetVolume(s.trackVolume)
		if err := s.track.Play(0, trackFade); err == nil {
			s.clock.startAudio(s.track, s.chart.Background.StartMS)
		}
	}
	s.state = StatePlaying
}

// Tick runs one poll iteration: advance the clock, fire every due note
// in order, and detect the end of the chart.
func (s *Scheduler) Tick() {
	if s.state != StatePlaying {
		return
	}
	nowMS, demoted := s.clock.advance()
	if demoted && s.onClockDemoted != nil {
		s.onClockDemoted()
	}
	for s.cursor < len(s.chart.Notes) && s.chart.Notes[s.cursor].Time <= nowMS {
		note := s.chart.Notes[s.cursor]
		s.cursor++
		s.fire(note, nowMS)
	}
	s.pruneRecent(nowMS)
	if s.cursor >= len(s.chart.Notes) && !s.trackPlaying() {
		s.state = StateFinished
		if s.onFinished != nil {
			s.onFinished()
		}
	}
}

func (s *Scheduler) fire(note dtx.TimedNote, nowMS float64) {
	if !s.mixer.HasSample(note.Sample) {
		return
	}

	// A choker releases any active voice on its choked channels.
	for _, choked := range s.chokeMap[note.Channel] {
		if v, ok := s.choke[choked]; ok {
			if v.Playing() {
				v.FadeOut(effectFadeOut)
			}
			delete(s.choke, choked)
		}
	}

	// Polyphony is tracked per channel. Voices that ended naturally drop
	// out first; at the limit, the oldest still-active voice is stolen.
	list := s.poly[note.Channel]
	kept := list[:0]
	for _, pv := range list {
		if pv.voice.Playing() {
			kept = append(kept, pv)
		}
	}
	if len(kept) >= s.polyLimit {
		oldest := 0
		for i := 1; i < len(kept); i++ {
			if kept[i].started < kept[oldest].started {
				oldest = i
			}
		}
		kept[oldest].voice.FadeOut(effectFadeOut)
		kept = append(kept[:oldest], kept[oldest+1:]...)
	}

	volume := s.effectVolume * float64(s.chart.SampleVolume(note.Sample)) / 100
	if v, ok := s.mixer.StartVoice(note.Sample, volume, effectFadeIn); ok {
		kept = append(kept, playingVoice{voice: v, started: nowMS})
		if s.chokeable[note.Channel] {
			s.choke[note.Channel] = v
		}
	}
	s.poly[note.Channel] = kept

	s.recent = append(s.recent, RecentHit{Channel: note.Channel, TimeMS: nowMS})
	if s.onNote != nil {
		s.onNote(note)
	}
}

func (s *Scheduler) pruneRecent(nowMS float64) {
	cut := 0
	for cut < len(s.recent) && nowMS-s.recent[cut].TimeMS > recentHitWindow {
		cut++
	}
	if cut > 0 {
		s.recent = append(s.recent[:0], s.recent[cut:]...)
	}
}

// Seek moves playback by a signed delta in milliseconds and returns the
// clamped target actually applied.
func (s *Scheduler) Seek(deltaMS float64) float64 {
	return s.SeekTo(s.clock.lastMS + deltaMS)
}

// SeekTo jumps to an absolute chart time. The cursor is re-pointed to
// the first note at or after the target, the background track restarts
// at the matching internal offset, and all in-flight voice state is
// dropped; nothing from before the discontinuity carries over.
func (s *Scheduler) SeekTo(targetMS float64) float64 {
	if s.state != StatePlaying {
		return s.clock.lastMS
	}
	s.state = StateSeeking

	target := targetMS
	if target < 0 {
		target = 0
	}
	if d := s.DurationMS(); d > 0 && target > d {
		target = d
	}

	notes := s.chart.Notes
	s.cursor = sort.Search(len(notes), func(i int) bool { return notes[i].Time >= target })

	if s.clock.mode == clockAudio {
		// The track's own timeline starts at the first background
		// marker, never before its beginning.
		trackOffset := target - s.chart.Background.StartMS
		if trackOffset < 0 {
			trackOffset = 0
		}
		if err := s.track.Play(msToDuration(trackOffset), trackFade); err != nil {
			s.clock.mode = clockTimer
		}
	}
	s.clock.seek(target)

	s.mixer.StopAllVoices()
	s.poly = make(map[string][]playingVoice)
	s.choke = make(map[string]Voice)
	s.recent = s.recent[:0]

	s.state = StatePlaying
	return target
}

// Stop ends playback and clears all voice tracking.
func (s *Scheduler) Stop() {
	if s.state == StateStopped {
		return
	}
	s.mixer.StopAllVoices()
	if s.track != nil {
		s.track.Stop()
	}
	s.poly = make(map[string][]playingVoice)
	s.choke = make(map[string]Voice)
	s.recent = nil
	s.state = StateStopped
}

// AdjustTrackVolume shifts the background volume by delta, clamped to
// [0, 1], applying it live, and returns the new value.
func (s *Scheduler) AdjustTrackVolume(delta float64) float64 {
	s.trackVolume = clamp01(s.trackVolume + delta)
	if s.track != nil {
		s.track.SetVolume(s.trackVolume)
	}
	return s.trackVolume
}

// AdjustEffectVolume shifts the sample-effect master volume by delta,
// clamped to [0, 1]. Already-started voices keep their volume.
func (s *Scheduler) AdjustEffectVolume(delta float64) float64 {
	s.effectVolume = clamp01(s.effectVolume + delta)
	return s.effectVolume
}

// DurationMS is the last note's time plus a trailing pad, or 0 for a
// chart with no notes.
func (s *Scheduler) DurationMS() float64 {
	if len(s.chart.Notes) == 0 {
		return 0
	}
	return s.chart.LastNoteMS() + trailingPadMS
}

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) Cursor() int { return s.cursor }

func (s *Scheduler) CurrentMS() float64 { return s.clock.lastMS }

func (s *Scheduler) TrackVolume() float64 { return s.trackVolume }

func (s *Scheduler) EffectVolume() float64 { return s.effectVolume }

// RecentHits returns a copy of the recently fired notes still inside the
// retention window.
func (s *Scheduler) RecentHits() []RecentHit {
	out := make([]RecentHit, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *Scheduler) trackPlaying() bool {
	return s.track != nil && s.track.Playing()
}

// Snapshot is the read-only view renderers poll.
type Snapshot struct {
	State        State
	TimeMS       float64
	Cursor       int
	NoteCount    int
	DurationMS   float64
	AudioClock   bool
	TrackVolume  float64
	EffectVolume float64
	Recent       []RecentHit
}

func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		State:        s.state,
		TimeMS:       s.clock.lastMS,
		Cursor:       s.cursor,
		NoteCount:    len(s.chart.Notes),
		DurationMS:   s.DurationMS(),
		AudioClock:   s.clock.mode == clockAudio,
		TrackVolume:  s.trackVolume,
		EffectVolume: s.effectVolume,
		Recent:       s.RecentHits(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
