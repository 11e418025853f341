package whisper

import (
	"encoding/binary"
	"fmt"

	"github.com/MrWong99/parley/pkg/audio"
)

// pcmToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0]. Any trailing odd byte is
// ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// clipSamples returns clip as the 16 kHz mono float32 samples whisper.cpp
// consumes.
func clipSamples(clip audio.Clip) ([]float32, error) {
	pcm, err := clip.MonoAt(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode clip: %w", err)
	}
	return pcmToFloat32(pcm), nil
}
