package playback

import "time"

type clockMode int

const (
	clockTimer clockMode = iota
	clockAudio
)

// masterClock reports chart time in milliseconds. In audio mode the time
// is the background track's playback position plus an offset accumulator;
// in timer mode it is wall-clock elapsed since an anchor instant. An
// audio clock demotes itself to the timer exactly once, when the track
// stops reporting playback, and the timer is anchored so the reading is
// continuous across the seam.
type masterClock struct {
	mode     clockMode
	now      func() time.Time
	start    time.Time
	track    Track
	offsetMS float64
	lastMS   float64
}

func newMasterClock(now func() time.Time) *masterClock {
	if now == nil {
		now = time.Now
	}
	c := &masterClock{now: now}
	c.anchor(0)
	return c
}

func (c *masterClock) startAudio(track Track, offsetMS float64) {
	c.mode = clockAudio
	c.track = track
	c.offsetMS = offsetMS
	c.lastMS = offsetMS
}

// advance returns the current chart time and whether this call demoted
// the clock from audio to timer mode.
func (c *masterClock) advance() (float64, bool) {
	if c.mode == clockAudio {
		if c.track.Playing() {
			ms := durationToMS(c.track.Position()) + c.offsetMS
			c.lastMS = ms
			return ms, false
		}
		c.mode = clockTimer
		c.anchor(c.lastMS)
		return c.read(), true
	}
	return c.read(), false
}

func (c *masterClock) read() float64 {
	c.lastMS = durationToMS(c.now().Sub(c.start))
	return c.lastMS
}

// anchor places the timer so that it currently reads ms.
func (c *masterClock) anchor(ms float64) {
	c.start = c.now().Add(-msToDuration(ms))
}

// seek re-anchors both representations at the target time. The caller is
// responsible for restarting the audio track; after a restart the track
// position starts over from zero, so the accumulator becomes the target.
func (c *masterClock) seek(targetMS float64) {
	c.anchor(targetMS)
	if c.mode == clockAudio {
		c.offsetMS = targetMS
	}
	c.lastMS = targetMS
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func durationToMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
