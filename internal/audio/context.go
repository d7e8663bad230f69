package audio

import (
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleRate is the mixing rate of the shared audio context. Every
// decoded sample is resampled to it.
const SampleRate = 44100

// Streams are 16-bit little-endian stereo PCM.
const bytesPerFrame = 4

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
)

func sharedContext() *ebitaudio.Context {
	contextOnce.Do(func() {
		context = ebitaudio.NewContext(SampleRate)
	})
	return context
}

// frameOffset converts a playback offset to a frame-aligned byte index.
func frameOffset(offset time.Duration) int {
	frames := int(offset.Seconds() * SampleRate)
	if frames < 0 {
		frames = 0
	}
	return frames * bytesPerFrame
}
