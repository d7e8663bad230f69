package patazon

import (
	"encoding/binary"
	"errors"
	"math"

	intaudio "github.com/lazykern/patazon/internal/audio"
	intdtx "github.com/lazykern/patazon/internal/dtx"
)

// SampleRate is the fixed mixing rate, shared by live playback and
// offline bounces.
const SampleRate = intaudio.SampleRate

// RenderMix bounces a chart to interleaved stereo float32 at the mixing
// rate without touching the audio device. Notes are summed at their
// resolved times under the live volume model, and the background track
// is laid down from its marker position. The mix is clipped to [-1, 1].
func RenderMix(chart *intdtx.Chart, trackVolume, effectVolume float64) ([]float32, error) {
	if chart == nil {
		return nil, errors.New("nil chart")
	}

	type clip struct {
		pcm   []byte
		frame int
		gain  float64
	}
	var clips []clip

	// Samples that fail to load are skipped, the same as in live
	// playback.
	samples := make(map[string]*intaudio.Sample)
	for id, path := range chart.SamplePaths {
		if id == chart.Background.Sample {
			continue
		}
		if s, err := intaudio.LoadSample(path); err == nil {
			samples[id] = s
		}
	}

	for _, note := range chart.Notes {
		s, ok := samples[note.Sample]
		if !ok {
			continue
		}
		clips = append(clips, clip{
			pcm:   s.PCM,
			frame: frameAt(note.Time),
			gain:  effectVolume * float64(chart.SampleVolume(note.Sample)) / 100,
		})
	}
	if path, ok := chart.SamplePaths[chart.Background.Sample]; ok && chart.Background.Sample != "" {
		if s, err := intaudio.LoadSample(path); err == nil {
			clips = append(clips, clip{
				pcm:   s.PCM,
				frame: frameAt(chart.Background.StartMS),
				gain:  trackVolume,
			})
		}
	}

	endFrame := 0
	for _, c := range clips {
		if end := c.frame + len(c.pcm)/4; end > endFrame {
			endFrame = end
		}
	}

	mix := make([]float32, endFrame*2)
	for _, c := range clips {
		base := c.frame * 2
		for i := 0; i+3 < len(c.pcm); i += 4 {
			l := float64(int16(binary.LittleEndian.Uint16(c.pcm[i:]))) / 32768
			r := float64(int16(binary.LittleEndian.Uint16(c.pcm[i+2:]))) / 32768
			mix[base] += float32(l * c.gain)
			mix[base+1] += float32(r * c.gain)
			base += 2
		}
	}
	for i, v := range mix {
		if v > 1 {
			mix[i] = 1
		} else if v < -1 {
			mix[i] = -1
		}
	}
	return mix, nil
}

func frameAt(ms float64) int {
	return int(math.Round(ms / 1000 * intaudio.SampleRate))
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
