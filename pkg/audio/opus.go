package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// MIMEOpus marks a stream of raw Opus packets, one packet per write, as
// produced by a browser's WebCodecs audio encoder.
const MIMEOpus = "audio/opus"

// maxOpusFrameMs is the longest frame an Opus packet may carry.
const maxOpusFrameMs = 120

// OpusDecoder turns consecutive Opus packets of one stream into 16-bit
// little-endian PCM. Decoder state carries across packets, so each stream
// needs its own decoder.
type OpusDecoder struct {
	dec        *gopus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder creates a decoder for the given output format. Opus
// decodes at 8, 12, 16, 24 or 48 kHz with one or two channels.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder (%d Hz, %d ch): %w", sampleRate, channels, err)
	}
	return &OpusDecoder{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// Decode decodes one packet and returns its interleaved PCM bytes.
func (d *OpusDecoder) Decode(packet []byte) ([]byte, error) {
	frameSize := d.sampleRate * maxOpusFrameMs / 1000
	pcm, err := d.dec.Decode(packet, frameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return int16sToBytes(pcm), nil
}

// int16sToBytes converts int16 samples to little-endian bytes.
func int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*bytesPerSample)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
