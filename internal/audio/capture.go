package audio

import (
	"context"
	"errors"
	"time"
)

// Capture acquisition failures. Both are fatal to the current attempt;
// retrying is a fresh Start on a fresh capturer.
var (
	// ErrPermissionDenied means the host refused microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrDeviceUnavailable means no usable capture device could be acquired.
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// SampleRate is the number of samples per second (Hz)
	// Common values: 16000 (recommended for transcription), 44100, 48000
	SampleRate uint32

	// Channels is the number of audio channels
	// 1 = mono (recommended for transcription), 2 = stereo
	Channels uint32

	// BitDepth is the number of bits per sample
	BitDepth uint32

	// BufferFrames is the number of frames per buffer
	// Smaller = lower latency, higher CPU usage
	BufferFrames uint32

	// ChunkBufferSize is the size of the channel buffer for captured chunks
	// Larger = more tolerance for a slow consumer, higher memory usage
	ChunkBufferSize int

	// EchoCancellation requests host echo cancellation. The current
	// backend does not take it; the device runs with its defaults.
	EchoCancellation bool

	// NoiseSuppression requests host noise suppression. The current
	// backend does not take it; the device runs with its defaults.
	NoiseSuppression bool

	// DeviceID is the audio device identifier
	// Empty string = use default device
	DeviceID string
}

// DefaultCaptureConfig returns a configuration suitable for voice capture
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       16000, // 16kHz is optimal for speech services
		Channels:         1,     // Mono
		BitDepth:         16,    // 16-bit
		BufferFrames:     480,   // 30ms at 16kHz
		ChunkBufferSize:  50,    // ~1.5 seconds of queued chunks
		EchoCancellation: true,
		NoiseSuppression: true,
		DeviceID:         "",
	}
}

// Chunk represents one block of captured audio data. Chunk size and
// timing are host-determined and must not be assumed fixed.
type Chunk struct {
	Data      []byte    // Raw PCM data, 16-bit little-endian
	Timestamp time.Time // When the chunk was captured
	Frames    uint32    // Number of audio frames in this chunk
}

// Capturer is the interface for capture device adapters.
// Start acquires the device exclusively; Stop releases it. Chunks are
// delivered in arrival order on the Chunks channel, which is closed only
// after the device has been fully released, so draining the channel is
// sufficient to observe every chunk produced before the stop.
type Capturer interface {
	// Start acquires the input device and begins capture
	Start(ctx context.Context) error

	// Stop stops capture and releases the device. Safe to call after a
	// failed Start; no partial state survives a failure.
	Stop() error

	// Chunks returns the channel on which captured chunks arrive
	Chunks() <-chan Chunk

	// Errors returns a channel that receives capture errors
	Errors() <-chan error

	// IsRunning returns true if capture is currently active
	IsRunning() bool
}

// NewCapturer creates a new audio capturer with the given configuration
func NewCapturer(config CaptureConfig) (Capturer, error) {
	return NewMalgoCapturer(config)
}
