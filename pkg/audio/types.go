// Package audio defines the audio units exchanged between the conversation
// loop, the capture/playback devices and the speech providers.
//
// A [Clip] is one complete piece of audio: a captured user utterance or a
// synthesized assistant reply. Capture and playback are exclusive per
// session; [Input] and [Output] enforce that by preempting the previous
// holder whenever a new capture or playback starts.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Well-known clip encodings.
const (
	// MIMEPCM is raw 16-bit signed little-endian PCM.
	MIMEPCM = "audio/pcm"
	MIMEWAV = "audio/wav"
	MIMEMP3 = "audio/mpeg"
)

// ErrUnsupportedFormat is returned when a clip cannot be converted to PCM.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Clip is a complete, self-contained piece of audio.
type Clip struct {
	// Data holds the encoded audio bytes.
	Data []byte

	// MIMEType identifies the encoding of Data. An empty value is treated as
	// [MIMEPCM].
	MIMEType string

	// SampleRate in Hz. Required for raw PCM; informational otherwise.
	SampleRate int

	// Channels is the interleaved channel count. Required for raw PCM.
	Channels int
}

// Empty reports whether the clip carries no audio.
func (c Clip) Empty() bool { return len(c.Data) == 0 }

// IsPCM reports whether Data holds raw PCM samples.
func (c Clip) IsPCM() bool { return c.MIMEType == "" || c.MIMEType == MIMEPCM }

// IsWAV reports whether Data is a RIFF/WAV container.
func (c Clip) IsWAV() bool {
	switch c.MIMEType {
	case MIMEWAV, "audio/x-wav", "audio/wave":
		return true
	}
	return false
}

// PCM returns the clip as raw 16-bit PCM, unwrapping WAV containers.
func (c Clip) PCM() (pcm []byte, sampleRate, channels int, err error) {
	switch {
	case c.IsPCM():
		if c.SampleRate <= 0 || c.Channels <= 0 {
			return nil, 0, 0, fmt.Errorf("audio: raw pcm clip without sample rate or channel count")
		}
		return c.Data, c.SampleRate, c.Channels, nil
	case c.IsWAV():
		return DecodeWAV(c.Data)
	default:
		return nil, 0, 0, fmt.Errorf("audio: %w: %s", ErrUnsupportedFormat, c.MIMEType)
	}
}

// WAV returns the clip wrapped in a WAV container. WAV clips are returned
// unchanged; compressed clips yield [ErrUnsupportedFormat].
func (c Clip) WAV() ([]byte, error) {
	if c.IsWAV() {
		return c.Data, nil
	}
	pcm, rate, ch, err := c.PCM()
	if err != nil {
		return nil, err
	}
	return EncodeWAV(pcm, rate, ch), nil
}

// Duration returns the playback length of PCM and WAV clips. Compressed
// clips report zero.
func (c Clip) Duration() time.Duration {
	pcm, rate, ch, err := c.PCM()
	if err != nil {
		return 0
	}
	frames := len(pcm) / (bytesPerSample * ch)
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

// Filename returns an upload file name whose extension matches the clip
// encoding. Speech-to-text endpoints sniff the format from it.
func (c Clip) Filename() string {
	switch {
	case c.IsPCM(), c.IsWAV():
		return "audio.wav"
	case c.MIMEType == MIMEMP3:
		return "audio.mp3"
	case c.MIMEType == "audio/webm":
		return "audio.webm"
	case c.MIMEType == "audio/ogg":
		return "audio.ogg"
	case c.MIMEType == "audio/mp4", c.MIMEType == "audio/m4a":
		return "audio.m4a"
	case c.MIMEType == "audio/flac":
		return "audio.flac"
	default:
		return "audio.bin"
	}
}
