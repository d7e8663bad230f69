package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// Sample is one fully decoded sound, held in memory as 16-bit
// little-endian stereo PCM at SampleRate.
type Sample struct {
	PCM []byte
}

func (s *Sample) Duration() time.Duration {
	frames := len(s.PCM) / bytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

// LoadSample reads and decodes one audio file. The decoder is picked by
// file extension; wav, ogg and mp3 are supported.
func LoadSample(path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pcm, err := decodePCM(strings.ToLower(filepath.Ext(path)), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &Sample{PCM: pcm}, nil
}

func decodePCM(ext string, data []byte) ([]byte, error) {
	switch ext {
	case ".wav":
		stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(stream)
	case ".ogg":
		stream, err := vorbis.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(stream)
	case ".mp3":
		stream, err := mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(stream)
	}
	return nil, fmt.Errorf("unsupported audio format %q", ext)
}
