package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shikkhasathi/voicecore/internal/levels"
	"github.com/shikkhasathi/voicecore/internal/metrics"
)

// Playback rate and volume bounds
const (
	MinRate   = 0.25
	MaxRate   = 4.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// State is the playback session lifecycle state
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a playback session: Unloaded -> Loading -> Ready ->
// {Playing <-> Paused}, with Error reachable from Loading and Cleanup
// returning to Unloaded from anywhere. At most one decoded element
// exists per session; Load tears the previous one down first.
type Session struct {
	factory  ElementFactory
	logger   *slog.Logger
	metrics  *metrics.Metrics
	analyzer *levels.Analyzer

	mu      sync.Mutex
	state   State
	element Element
	rate    float64
	volume  float64
}

// Option configures a Session
type Option func(*Session)

// WithElementFactory substitutes the decoded-element constructor
func WithElementFactory(f ElementFactory) Option {
	return func(s *Session) { s.factory = f }
}

// WithLogger sets the session logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics wires Prometheus instrumentation into the session
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates an unloaded playback session
func NewSession(opts ...Option) *Session {
	s := &Session{
		factory:  OpenMalgoElement,
		logger:   slog.Default(),
		analyzer: levels.NewAnalyzer(),
		state:    StateUnloaded,
		rate:     1,
		volume:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Levels returns the session's analysis tap
func (s *Session) Levels() *levels.Analyzer {
	return s.analyzer
}

// Load opens a decoded element for the source, tearing down any prior
// element first. It returns once enough data is buffered to play
// through. On fetch or decode failure the session moves to the error
// state and must be cleaned up before reuse.
func (s *Session) Load(ctx context.Context, src Source) error {
	s.teardown()

	s.mu.Lock()
	s.state = StateLoading
	rate := s.rate
	volume := s.volume
	s.mu.Unlock()

	element, err := s.factory(ctx, src, s.analyzer)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.PlaybackErrors.Inc()
		}
		return fmt.Errorf("%w: %s", ErrLoadFailed, err)
	}

	// Rate and volume set before Load are queued against the element
	_ = element.SetRate(rate)
	_ = element.SetVolume(volume)

	s.mu.Lock()
	s.element = element
	s.state = StateReady
	s.mu.Unlock()

	s.analyzer.Attach()

	if s.metrics != nil {
		s.metrics.PlaybackSessions.Inc()
	}
	s.logger.Debug("playback source loaded",
		slog.String("url", src.URL),
		slog.Int("blob_bytes", len(src.Data)),
		slog.Float64("duration_s", element.Duration()),
	)

	return nil
}

// Play starts or resumes playback. Valid from Ready, Playing or Paused.
func (s *Session) Play() error {
	s.mu.Lock()
	if !s.transportValid() {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: play from %s", ErrInvalidState, state)
	}
	element := s.element
	s.state = StatePlaying
	s.mu.Unlock()

	return element.Play()
}

// Pause suspends playback, keeping the position. Valid from Ready,
// Playing or Paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	if !s.transportValid() {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: pause from %s", ErrInvalidState, state)
	}
	element := s.element
	s.state = StatePaused
	s.mu.Unlock()

	return element.Pause()
}

// Stop pauses playback and resets the position to the start, returning
// the session to Ready. Valid from Ready, Playing or Paused.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.transportValid() {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", ErrInvalidState, state)
	}
	element := s.element
	s.state = StateReady
	s.mu.Unlock()

	if err := element.Pause(); err != nil {
		return err
	}
	return element.Seek(0)
}

// SetRate clamps and applies the playback rate. Always valid; before a
// source is loaded the value is queued against the next element.
func (s *Session) SetRate(rate float64) {
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}

	s.mu.Lock()
	s.rate = rate
	element := s.element
	s.mu.Unlock()

	if element != nil {
		_ = element.SetRate(rate)
	}
}

// SetVolume clamps and applies the volume. Always valid; before a
// source is loaded the value is queued against the next element.
func (s *Session) SetVolume(volume float64) {
	if volume < MinVolume {
		volume = MinVolume
	}
	if volume > MaxVolume {
		volume = MaxVolume
	}

	s.mu.Lock()
	s.volume = volume
	element := s.element
	s.mu.Unlock()

	if element != nil {
		_ = element.SetVolume(volume)
	}
}

// Rate returns the effective playback rate
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Volume returns the effective volume
func (s *Session) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Progress returns playback progress in [0,1]. When the duration is
// unknown, including before Ready, it returns 0 rather than failing.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	element := s.element
	s.mu.Unlock()

	if element == nil {
		return 0
	}

	duration := element.Duration()
	if duration <= 0 {
		return 0
	}

	progress := element.Position() / duration
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}

// Cleanup releases the decoded element and the analysis tap and returns
// the session to Unloaded. Idempotent and safe from any state,
// including Error; it never re-acquires resources.
func (s *Session) Cleanup() {
	s.teardown()

	s.mu.Lock()
	s.state = StateUnloaded
	s.mu.Unlock()
}

// teardown releases the current element, if any, running to completion
// even on failure paths so resources never leak
func (s *Session) teardown() {
	s.mu.Lock()
	element := s.element
	s.element = nil
	s.mu.Unlock()

	s.analyzer.Detach()

	if element != nil {
		if err := element.Close(); err != nil {
			s.logger.Warn("playback element release reported an error",
				slog.String("error", err.Error()),
			)
		}
	}
}

// transportValid reports whether transport controls may run now.
// Callers must hold s.mu.
func (s *Session) transportValid() bool {
	return s.element != nil &&
		(s.state == StateReady || s.state == StatePlaying || s.state == StatePaused)
}
