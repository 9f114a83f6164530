// Package player decodes an encoded audio payload and drives playback
// through an output device, with transport controls and a passive
// analysis tap for visualization.
package player

import (
	"context"
	"errors"

	"github.com/shikkhasathi/voicecore/internal/levels"
)

var (
	// ErrInvalidState signals a transport call from a state that does
	// not permit it. It marks a programming error in the caller and is
	// never silently swallowed.
	ErrInvalidState = errors.New("player: operation not valid in current state")

	// ErrLoadFailed signals that the source could not be fetched or
	// decoded. The session moves to the error state and must be cleaned
	// up before reuse.
	ErrLoadFailed = errors.New("player: failed to load source")
)

// Source references the audio to play: a URL to fetch or an in-memory
// blob. Exactly one of URL and Data is set.
type Source struct {
	URL  string
	Data []byte
	MIME string
}

// FromURL returns a source that fetches its audio over HTTP
func FromURL(url string) Source {
	return Source{URL: url}
}

// FromBlob returns a source backed by in-memory audio
func FromBlob(data []byte, mime string) Source {
	return Source{Data: data, MIME: mime}
}

// Element is the decoded playback handle. An element holds the output
// device; at most one element exists per session, and Close releases
// the device. Implementations must make Close idempotent.
type Element interface {
	Play() error
	Pause() error

	// Seek positions playback at the given offset in seconds
	Seek(seconds float64) error

	// Position returns the current offset in seconds
	Position() float64

	// Duration returns the total length in seconds, 0 when unknown
	Duration() float64

	SetRate(rate float64) error
	SetVolume(volume float64) error

	Close() error
}

// ElementFactory opens a decoded element for a source. It returns only
// once enough data is buffered to play through, or with an error on
// fetch/decode failure. The tap receives the produced audio for
// visualization and never interferes with playback.
type ElementFactory func(ctx context.Context, src Source, tap *levels.Analyzer) (Element, error)
