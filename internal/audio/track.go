package audio

import (
	"bytes"
	"sync"
	"time"
)

// Track streams the background music. Play replaces the current player
// with one reading from the requested offset, so Position is always
// relative to the most recent restart.
type Track struct {
	mu     sync.Mutex
	pcm    []byte
	volume float64
	player audioPlayer
	gain   *gainStream
}

func NewTrack(path string) (*Track, error) {
	sample, err := LoadSample(path)
	if err != nil {
		return nil, err
	}
	return &Track{pcm: sample.PCM, volume: 1}, nil
}

func (t *Track) Play(offset, fadeIn time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.player != nil {
		old := t.player
		t.gain.fadeTo(0, fadeIn, true)
		time.AfterFunc(fadeIn+100*time.Millisecond, func() { old.Close() })
	}

	start := frameOffset(offset)
	if start > len(t.pcm) {
		start = len(t.pcm)
	}
	gain := newGainStream(bytes.NewReader(t.pcm[start:]), fadeIn)
	player, err := sharedContext().NewPlayer(gain)
	if err != nil {
		return err
	}
	player.SetVolume(t.volume)
	player.Play()

	t.player = player
	t.gain = gain
	return nil
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.player == nil {
		return
	}
	t.player.Pause()
	t.player.Close()
	t.player = nil
	t.gain = nil
}

func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.player != nil && t.player.IsPlaying()
}

func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.player == nil {
		return 0
	}
	return t.player.Position()
}

func (t *Track) SetVolume(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = v
	if t.player != nil {
		t.player.SetVolume(v)
	}
}

// Duration is the full length of the decoded background audio.
func (t *Track) Duration() time.Duration {
	frames := len(t.pcm) / bytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}
