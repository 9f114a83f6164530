// Package recorder owns the capture session: it acquires the device,
// negotiates the recording format, accumulates chunks in arrival order
// and finalizes them into a single payload.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/format"
	"github.com/shikkhasathi/voicecore/internal/levels"
	"github.com/shikkhasathi/voicecore/internal/metrics"
)

// Ordering errors in the session state machine. These are surfaced,
// never swallowed, so misuse is visible in tests.
var (
	ErrAlreadyRecording = errors.New("recorder: session is already recording")
	ErrNotRecording     = errors.New("recorder: session is not recording")
)

// State is the encoder session lifecycle state
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CapturerFactory creates the device adapter for a session. Injectable
// so tests can script chunk delivery.
type CapturerFactory func(audio.CaptureConfig) (audio.Capturer, error)

// Session is the audio encoder session. Idle -> Recording -> Finalizing
// -> Idle, with Error reachable from any point. A session may be reused
// for consecutive recordings; re-initialization after a failed start is
// always safe.
type Session struct {
	id          uuid.UUID
	cfg         audio.CaptureConfig
	newCapturer CapturerFactory
	probe       format.SupportProbe
	prefs       []string
	gain        float64
	logger      *slog.Logger
	metrics     *metrics.Metrics
	analyzer    *levels.Analyzer

	mu           sync.Mutex
	state        State
	capturer     audio.Capturer
	chunks       [][]byte
	chosenFormat string
	startedAt    time.Time
	drained      chan struct{}
}

// Option configures a Session
type Option func(*Session)

// WithCapturerFactory substitutes the device adapter constructor
func WithCapturerFactory(f CapturerFactory) Option {
	return func(s *Session) { s.newCapturer = f }
}

// WithFormatProbe substitutes the host capability probe
func WithFormatProbe(p format.SupportProbe) Option {
	return func(s *Session) { s.probe = p }
}

// WithPreferredFormats overrides the format candidate list
func WithPreferredFormats(prefs []string) Option {
	return func(s *Session) { s.prefs = prefs }
}

// WithGain applies a linear gain to captured samples
func WithGain(gain float64) Option {
	return func(s *Session) { s.gain = gain }
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics wires Prometheus instrumentation into the session
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates an idle encoder session
func NewSession(cfg audio.CaptureConfig, opts ...Option) *Session {
	s := &Session{
		id:  uuid.New(),
		cfg: cfg,
		newCapturer: func(c audio.CaptureConfig) (audio.Capturer, error) {
			return audio.NewCapturer(c)
		},
		probe:    format.PCMSupport,
		prefs:    format.Preferred,
		gain:     1,
		logger:   slog.Default(),
		analyzer: levels.NewAnalyzer(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the negotiated format for the current or most recent
// recording, empty before the first Start
func (s *Session) Format() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chosenFormat
}

// Levels returns the session's analysis tap. The tap is passive; it
// never contends with the encoder for the stream.
func (s *Session) Levels() *levels.Analyzer {
	return s.analyzer
}

// Start acquires the capture device, negotiates the recording format and
// begins accumulating chunks. Returns ErrAlreadyRecording when the
// session is already active. After a failure Start may be called again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRecording || s.state == StateFinalizing {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	s.mu.Unlock()

	capturer, err := s.newCapturer(s.cfg)
	if err != nil {
		s.fail()
		return fmt.Errorf("failed to create capturer: %w", err)
	}

	// Device acquisition may block on a host permission prompt; nothing
	// proceeds to encoding until it resolves. The adapter releases all
	// partial state itself on failure.
	if err := capturer.Start(ctx); err != nil {
		s.fail()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	chosen := format.Choose(s.probe, s.prefs)

	s.mu.Lock()
	s.capturer = capturer
	s.chunks = nil
	s.chosenFormat = chosen
	s.startedAt = time.Now()
	s.drained = make(chan struct{})
	s.state = StateRecording
	drained := s.drained
	s.mu.Unlock()

	go s.drain(capturer, drained)
	go s.watchErrors(capturer)

	if s.metrics != nil {
		s.metrics.RecordingsStarted.Inc()
	}
	s.logger.Debug("recording started",
		slog.String("session", s.id.String()),
		slog.String("format", chosen),
	)

	return nil
}

// drain consumes chunks in arrival order until the adapter closes the
// channel. The channel closes only after the device is released, so a
// completed drain has seen every chunk produced before the stop.
func (s *Session) drain(capturer audio.Capturer, drained chan struct{}) {
	defer close(drained)

	for chunk := range capturer.Chunks() {
		data := chunk.Data
		if s.gain != 1 {
			applyGain(data, s.gain)
		}
		s.analyzer.Feed(data)

		s.mu.Lock()
		s.chunks = append(s.chunks, data)
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.ChunksCaptured.Inc()
			s.metrics.BytesCaptured.Add(float64(len(data)))
		}
	}
}

func (s *Session) watchErrors(capturer audio.Capturer) {
	for err := range capturer.Errors() {
		s.logger.Warn("capture error",
			slog.String("session", s.id.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Stop finalizes the recording: it releases the device, waits for every
// chunk delivered before the stop to be incorporated, and returns the
// concatenated payload tagged with the negotiated format. A recording
// with zero chunks yields a valid empty payload. Calling Stop while idle
// returns ErrNotRecording.
func (s *Session) Stop() (*EncodedAudioPayload, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.state = StateFinalizing
	capturer := s.capturer
	drained := s.drained
	startedAt := s.startedAt
	s.mu.Unlock()

	// Release the device, then wait until the drain loop has consumed
	// everything queued before the stop. No trailing chunk is dropped.
	if err := capturer.Stop(); err != nil {
		s.logger.Warn("device release reported an error",
			slog.String("session", s.id.String()),
			slog.String("error", err.Error()),
		)
	}
	<-drained
	s.analyzer.Detach()

	s.mu.Lock()
	chunks := s.chunks
	mimeType := s.chosenFormat
	s.chunks = nil
	s.capturer = nil
	s.state = StateIdle
	s.mu.Unlock()

	payload := NewPayload(chunks, mimeType, PCMInfo{
		SampleRate: int(s.cfg.SampleRate),
		Channels:   int(s.cfg.Channels),
		BitDepth:   int(s.cfg.BitDepth),
	})

	if s.metrics != nil {
		s.metrics.RecordingsEnded.Inc()
		s.metrics.RecordingDuration.Observe(time.Since(startedAt).Seconds())
	}
	s.logger.Debug("recording finalized",
		slog.String("session", s.id.String()),
		slog.Int("bytes", payload.Len()),
		slog.String("format", mimeType),
	)

	return payload, nil
}

// Cleanup releases the device and the analysis tap from any state and
// discards accumulated chunks. It is idempotent and never fails; it is
// the teardown used when a new session must replace this one.
func (s *Session) Cleanup() {
	s.mu.Lock()
	capturer := s.capturer
	drained := s.drained
	s.capturer = nil
	s.chunks = nil
	s.state = StateIdle
	s.mu.Unlock()

	if capturer != nil {
		if err := capturer.Stop(); err != nil {
			s.logger.Warn("device release reported an error",
				slog.String("session", s.id.String()),
				slog.String("error", err.Error()),
			)
		}
		if drained != nil {
			<-drained
		}
	}
	s.analyzer.Detach()
}

// fail moves the session to the error state; a later Start recovers
func (s *Session) fail() {
	s.mu.Lock()
	s.state = StateError
	s.capturer = nil
	s.mu.Unlock()
}

// applyGain scales 16-bit little-endian samples in place, clamping at
// the integer range
func applyGain(pcm []byte, gain float64) {
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(pcm[i])|int16(pcm[i+1])<<8) * gain
		if sample > 32767 {
			sample = 32767
		}
		if sample < -32768 {
			sample = -32768
		}
		v := int16(sample)
		pcm[i] = byte(v)
		pcm[i+1] = byte(uint16(v) >> 8)
	}
}
