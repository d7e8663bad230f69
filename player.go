package patazon

import (
	"errors"
	"sync"
	"time"

	intaudio "github.com/lazykern/patazon/internal/audio"
	intdtx "github.com/lazykern/patazon/internal/dtx"
	intplay "github.com/lazykern/patazon/internal/playback"
)

// PlaybackEvent carries playback notifications from Watch().
type PlaybackEvent struct {
	Kind    int // EventNote, EventClockDemoted, or EventPlaybackEnded
	Channel string
	Sample  string
	TimeMS  float64
}

const (
	EventNote int = iota
	EventClockDemoted
	EventPlaybackEnded
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	polyphonyLimit int
	trackVolume    float64
	effectVolume   float64
	chokeMap       map[string][]string
	tickRate       int
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		polyphonyLimit: intplay.DefaultPolyphonyLimit,
		trackVolume:    intplay.DefaultTrackVolume,
		effectVolume:   intplay.DefaultEffectVolume,
		tickRate:       intplay.DefaultTickRate,
	}
}

// WithPolyphonyLimit caps simultaneous voices per drum channel.
func WithPolyphonyLimit(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.polyphonyLimit = n
	}
}

func WithTrackVolume(v float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.trackVolume = v
	}
}

func WithEffectVolume(v float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.effectVolume = v
	}
}

// WithChokeMap overrides which channels silence which. Keys are choking
// channels, values the channels they cut off.
func WithChokeMap(m map[string][]string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.chokeMap = m
	}
}

// WithTickRate sets the scheduler polling frequency in Hz.
func WithTickRate(hz int) PlayerOption {
	return func(cfg *playerConfig) {
		if hz > 0 {
			cfg.tickRate = hz
		}
	}
}

// LoadChart parses a DTX file from disk, resolving its text encoding and
// note timing.
func LoadChart(path string) (*intdtx.Chart, error) {
	return intdtx.NewParser(intdtx.DefaultConfig()).Load(path)
}

// Player plays one loaded chart. It decodes the chart's samples up
// front, then drives a scheduler from its own tick goroutine; all
// methods are safe for concurrent use.
type Player struct {
	mu        sync.Mutex
	chart     *intdtx.Chart
	cfg       playerConfig
	mixer     *intaudio.Mixer
	track     *intaudio.Track
	report    intaudio.LoadReport
	sched     *intplay.Scheduler
	stop      chan struct{}
	done      chan struct{}
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(chart *intdtx.Chart, opts ...PlayerOption) (*Player, error) {
	if chart == nil {
		return nil, errors.New("nil chart")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	mixer := intaudio.NewMixer()
	report := mixer.LoadChart(chart)

	// A background track that fails to load leaves the player on the
	// timer clock instead of failing the whole chart.
	var track *intaudio.Track
	if path, ok := chart.SamplePaths[chart.Background.Sample]; ok && chart.Background.Sample != "" {
		if t, err := intaudio.NewTrack(path); err == nil {
			track = t
		} else {
			report.Failed = append(report.Failed, chart.Background.Sample)
		}
	}

	return &Player{
		chart:  chart,
		cfg:    cfg,
		mixer:  mixer,
		track:  track,
		report: report,
	}, nil
}

func (p *Player) Chart() *intdtx.Chart { return p.chart }

// LoadReport describes how sample loading went, including the background
// sample under Failed when it could not be decoded.
func (p *Player) LoadReport() intaudio.LoadReport { return p.report }

// Play starts playback from the beginning, replacing any playback
// already in progress.
func (p *Player) Play() error {
	p.mu.Lock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	if p.stop != nil {
		close(p.stop)
	}
	p.stop = make(chan struct{})
	if p.sched != nil {
		p.sched.Stop()
	}

	sched := intplay.New(p.chart, p.mixer, schedulerTrack(p.track), intplay.Options{
		PolyphonyLimit: p.cfg.polyphonyLimit,
		TrackVolume:    p.cfg.trackVolume,
		EffectVolume:   p.cfg.effectVolume,
		ChokeMap:       p.cfg.chokeMap,
		OnNote: func(n intdtx.TimedNote) {
			p.sendEvent(PlaybackEvent{Kind: EventNote, Channel: n.Channel, Sample: n.Sample, TimeMS: n.Time})
		},
		OnClockDemoted: func() {
			p.sendEvent(PlaybackEvent{Kind: EventClockDemoted})
		},
		OnFinished: func() {
			p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		},
	})
	sched.Start()
	p.sched = sched

	interval := time.Second / time.Duration(p.cfg.tickRate)
	stop := p.stop
	p.mu.Unlock()

	go p.run(stop, interval)
	return nil
}

// schedulerTrack keeps a nil *Track from turning into a non-nil
// interface value.
func schedulerTrack(t *intaudio.Track) intplay.Track {
	if t == nil {
		return nil
	}
	return t
}

// run polls the scheduler until playback finishes or stop closes. Tick
// callbacks only touch the event channel, so holding the player mutex
// across Tick is safe.
func (p *Player) run(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			sched := p.sched
			finished := false
			if sched != nil {
				sched.Tick()
				finished = sched.State() == intplay.StateFinished
			}
			p.mu.Unlock()
			if finished {
				p.signalDone()
				return
			}
		}
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// Stop ends playback and releases every active voice.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	if p.sched != nil {
		p.sched.Stop()
	}
	done := p.done
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
}

// Wait blocks until the current playback ends. It returns immediately if
// no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventNote: a note fired (Channel, Sample, TimeMS set)
//   - EventClockDemoted: the master clock fell back to the timer
//   - EventPlaybackEnded: playback finished or was stopped
//
// The channel is buffered (cap 8); receive in a goroutine to avoid
// dropped events. Only the most recent Watch() channel receives events;
// call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// Seek moves playback by a signed delta in milliseconds and returns the
// time actually landed on.
func (p *Player) Seek(deltaMS float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return 0
	}
	return p.sched.Seek(deltaMS)
}

// SeekTo jumps to an absolute chart time in milliseconds, clamped to the
// chart's playable range.
func (p *Player) SeekTo(targetMS float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return 0
	}
	return p.sched.SeekTo(targetMS)
}

// AdjustTrackVolume shifts the background music volume by delta, clamped
// to [0, 1], and returns the new value.
func (p *Player) AdjustTrackVolume(delta float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return p.cfg.trackVolume
	}
	return p.sched.AdjustTrackVolume(delta)
}

// AdjustEffectVolume shifts the drum sample volume by delta, clamped to
// [0, 1], and returns the new value.
func (p *Player) AdjustEffectVolume(delta float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return p.cfg.effectVolume
	}
	return p.sched.AdjustEffectVolume(delta)
}

// Snapshot returns the current playback state for rendering. Before the
// first Play only the note count is populated.
func (p *Player) Snapshot() intplay.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return intplay.Snapshot{NoteCount: len(p.chart.Notes)}
	}
	return p.sched.Snapshot()
}
