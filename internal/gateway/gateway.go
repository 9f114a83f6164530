// Package gateway is the boundary to external speech services: it ships
// a finished recording to a speech-to-text service and text to a
// text-to-speech service. Request shaping, timeouts and error mapping
// live here; the services themselves are collaborators.
package gateway

import (
	"context"
	"errors"

	"github.com/shikkhasathi/voicecore/internal/recorder"
)

var (
	// ErrServiceUnavailable covers network failures, timeouts and
	// non-success responses. Recoverable by caller retry with backoff;
	// no retries happen here.
	ErrServiceUnavailable = errors.New("gateway: speech service unavailable")

	// ErrEmptyResult means transcription succeeded transport-wise but
	// produced no text. A soft failure: the caller should prompt the
	// user to retry speaking.
	ErrEmptyResult = errors.New("gateway: transcription produced no text")
)

// TranscriptionResult is the text produced for a recording
type TranscriptionResult struct {
	Text       string
	Confidence float64
}

// AudioReference is playable audio returned by synthesis: either a URL
// the playback session can fetch or inline audio bytes.
type AudioReference struct {
	URL  string
	Data []byte
	MIME string
}

// Gateway sends recordings and text to external speech services.
// Each call is a single attempt bounded by the configured timeout.
type Gateway interface {
	// Transcribe converts a finished recording to text
	Transcribe(ctx context.Context, payload *recorder.EncodedAudioPayload, language string) (*TranscriptionResult, error)

	// Synthesize converts text to playable audio
	Synthesize(ctx context.Context, text, language string) (*AudioReference, error)
}
