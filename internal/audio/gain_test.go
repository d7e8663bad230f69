package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

func pcmFrames(frames int, value int16) []byte {
	buf := make([]byte, frames*bytesPerFrame)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(value))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(value))
	}
	return buf
}

func frameValue(buf []byte, frame int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[frame*4:]))
}

func TestGainStreamPassthroughWithoutFade(t *testing.T) {
	src := pcmFrames(8, 1000)
	g := newGainStream(bytes.NewReader(src), 0)

	out := make([]byte, len(src))
	n, err := g.Read(out)
	if err != nil || n != len(src) {
		t.Fatalf("read %d, %v", n, err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("unity gain altered samples")
	}
	if _, err := g.Read(out); err != io.EOF {
		t.Fatalf("exhausted source should report EOF, got %v", err)
	}
}

func TestGainStreamFadeInRamps(t *testing.T) {
	const fadeFrames = 441 // 10 ms at 44100 Hz
	src := pcmFrames(1024, 10000)
	g := newGainStream(bytes.NewReader(src), 10*time.Millisecond)

	out := make([]byte, len(src))
	if _, err := io.ReadFull(g, out); err != nil {
		t.Fatalf("read: %v", err)
	}
	if v := frameValue(out, 0); v != 0 {
		t.Fatalf("fade should start silent, frame 0 = %d", v)
	}
	mid := frameValue(out, fadeFrames/2)
	if mid <= 0 || mid >= 10000 {
		t.Fatalf("mid-fade frame = %d, want between 0 and 10000", mid)
	}
	if v := frameValue(out, fadeFrames+10); v != 10000 {
		t.Fatalf("post-fade frame = %d, want full amplitude", v)
	}
}

func TestGainStreamFadeOutReportsEOF(t *testing.T) {
	src := pcmFrames(4096, 10000)
	g := newGainStream(bytes.NewReader(src), 0)

	head := make([]byte, 64*bytesPerFrame)
	if _, err := io.ReadFull(g, head); err != nil {
		t.Fatalf("read: %v", err)
	}
	if v := frameValue(head, 0); v != 10000 {
		t.Fatalf("pre-fade frame = %d", v)
	}

	g.fadeTo(0, time.Millisecond, true)
	tail := make([]byte, 256*bytesPerFrame)
	if _, err := io.ReadFull(g, tail); err != nil {
		t.Fatalf("read: %v", err)
	}
	if v := frameValue(tail, 255); v != 0 {
		t.Fatalf("faded-out frame = %d, want silence", v)
	}
	if _, err := g.Read(tail); err != io.EOF {
		t.Fatalf("dead stream should report EOF, got %v", err)
	}
}

func TestGainStreamImmediateFadeOutDiesSilently(t *testing.T) {
	src := pcmFrames(4096, 10000)
	// A voice faded out before its fade-in ever advanced must die on the
	// first read instead of popping to full volume.
	g := newGainStream(bytes.NewReader(src), 10*time.Millisecond)
	g.fadeTo(0, time.Millisecond, true)

	out := make([]byte, 64*bytesPerFrame)
	n, _ := g.Read(out)
	for i := 0; i < n/bytesPerFrame; i++ {
		if v := frameValue(out, i); v > 300 || v < -300 {
			t.Fatalf("frame %d = %d, want near silence", i, v)
		}
	}
	if _, err := g.Read(out); err != io.EOF {
		t.Fatalf("want EOF after immediate fade-out, got %v", err)
	}
}

func TestFrameOffsetAlignment(t *testing.T) {
	if got := frameOffset(time.Second); got != SampleRate*bytesPerFrame {
		t.Fatalf("one second = %d bytes, want %d", got, SampleRate*bytesPerFrame)
	}
	if got := frameOffset(10 * time.Millisecond); got != 441*bytesPerFrame {
		t.Fatalf("10 ms = %d bytes, want %d", got, 441*bytesPerFrame)
	}
	if got := frameOffset(-time.Second); got != 0 {
		t.Fatalf("negative offset = %d, want 0", got)
	}
	if got := frameOffset(0); got != 0 {
		t.Fatalf("zero offset = %d", got)
	}
}
