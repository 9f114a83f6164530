package recorder

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/format"
)

// PCMInfo describes the raw sample layout of a recorded payload
type PCMInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// EncodedAudioPayload is the immutable result of a finalized capture
// session: the recorded bytes plus the negotiated MIME tag. Ownership
// transfers to the caller on Stop; duration is computed on first use.
type EncodedAudioPayload struct {
	data     []byte
	mimeType string
	pcm      PCMInfo

	durOnce  sync.Once
	duration time.Duration
}

// NewPayload concatenates chunks in the given order into one payload
// tagged with the negotiated format. A zero-chunk payload is valid.
func NewPayload(chunks [][]byte, mimeType string, pcm PCMInfo) *EncodedAudioPayload {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}

	return &EncodedAudioPayload{
		data:     data,
		mimeType: mimeType,
		pcm:      pcm,
	}
}

// Bytes returns the recorded audio. The slice is owned by the payload
// and must not be modified.
func (p *EncodedAudioPayload) Bytes() []byte {
	return p.data
}

// Len returns the payload size in bytes
func (p *EncodedAudioPayload) Len() int {
	return len(p.data)
}

// MIMEType returns the negotiated format tag
func (p *EncodedAudioPayload) MIMEType() string {
	return p.mimeType
}

// Base64 encodes the payload for gateway transport
func (p *EncodedAudioPayload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.data)
}

// Duration returns the play time of the recording, computed lazily.
// Unknown layouts yield 0.
func (p *EncodedAudioPayload) Duration() time.Duration {
	p.durOnce.Do(func() {
		switch p.mimeType {
		case format.WAV:
			if pcm, rate, channels, err := audio.DecodeWAV(p.data); err == nil {
				p.duration = audio.PCMDuration(len(pcm), rate, channels)
				return
			}
			fallthrough
		default:
			p.duration = audio.PCMDuration(len(p.data), p.pcm.SampleRate, p.pcm.Channels)
		}
	})
	return p.duration
}

// WAV wraps the raw recording in a WAV container for persistence or for
// services that expect a self-describing file. Payloads that already
// carry a container are returned as-is.
func (p *EncodedAudioPayload) WAV() ([]byte, error) {
	if len(p.data) >= 4 && string(p.data[:4]) == "RIFF" {
		return p.data, nil
	}
	return audio.EncodeWAV(p.data, p.pcm.SampleRate, p.pcm.Channels)
}
