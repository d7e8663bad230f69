package audio

import (
	"encoding/binary"
	"io"
	"sync"
	"time"
)

// gainStream scales 16-bit stereo PCM by a gain envelope. The gain moves
// linearly toward its target, stepping once per frame. A stream that was
// asked to die reports io.EOF once the fade-out target is reached, which
// shuts its player down after the buffered tail drains.
type gainStream struct {
	mu     sync.Mutex
	src    io.Reader
	gain   float64
	target float64
	step   float64
	dying  bool
	done   bool
}

func newGainStream(src io.Reader, fadeIn time.Duration) *gainStream {
	g := &gainStream{src: src, gain: 1, target: 1}
	if fadeIn > 0 {
		g.gain = 0
		g.fadeTo(1, fadeIn, false)
	}
	return g
}

func (g *gainStream) fadeTo(target float64, d time.Duration, dieAfter bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	frames := d.Seconds() * SampleRate
	if frames < 1 {
		frames = 1
	}
	g.target = target
	g.step = (target - g.gain) / frames
	if dieAfter {
		g.dying = true
	}
}

func (g *gainStream) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return 0, io.EOF
	}
	if len(p) < bytesPerFrame {
		return 0, nil
	}
	n, err := g.src.Read(p[:len(p)-len(p)%bytesPerFrame])
	for i := 0; i+bytesPerFrame <= n; i += bytesPerFrame {
		l := int16(binary.LittleEndian.Uint16(p[i:]))
		r := int16(binary.LittleEndian.Uint16(p[i+2:]))
		binary.LittleEndian.PutUint16(p[i:], uint16(int16(float64(l)*g.gain)))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(int16(float64(r)*g.gain)))
		g.stepGain()
	}
	if g.dying && g.step == 0 && g.gain == g.target {
		g.done = true
	}
	return n, err
}

func (g *gainStream) stepGain() {
	if g.step == 0 {
		return
	}
	g.gain += g.step
	if (g.step > 0 && g.gain >= g.target) || (g.step < 0 && g.gain <= g.target) {
		g.gain = g.target
		g.step = 0
	}
}
