// Package app ties the voice components together for one logical voice
// widget: a single capture session and a single playback session, the
// gateway, and the persisted settings that gate them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shikkhasathi/voicecore/internal/audio"
	"github.com/shikkhasathi/voicecore/internal/gateway"
	"github.com/shikkhasathi/voicecore/internal/levels"
	"github.com/shikkhasathi/voicecore/internal/metrics"
	"github.com/shikkhasathi/voicecore/internal/player"
	"github.com/shikkhasathi/voicecore/internal/recorder"
	"github.com/shikkhasathi/voicecore/internal/settings"
)

var (
	// ErrInputDisabled means voice input is switched off in settings
	ErrInputDisabled = errors.New("app: voice input is disabled in settings")

	// ErrOutputDisabled means voice output is switched off in settings
	ErrOutputDisabled = errors.New("app: voice output is disabled in settings")
)

// WidgetConfig assembles a widget's collaborators. Settings arrive as
// an explicit struct; nothing reads persisted state behind the widget's
// back.
type WidgetConfig struct {
	Settings        settings.VoiceSettings
	Gateway         gateway.Gateway
	CaptureConfig   audio.CaptureConfig
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	RecorderOptions []recorder.Option
	PlayerOptions   []player.Option
}

// VoiceWidget is one logical voice widget instance. It holds at most
// one active capture session and one active playback session; starting
// a new one of either kind fully tears down the prior one first, so no
// two sessions ever hold the same device.
type VoiceWidget struct {
	id      uuid.UUID
	cfg     WidgetConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	settings settings.VoiceSettings
	recorder *recorder.Session
	player   *player.Session
}

// NewVoiceWidget creates a widget with no active sessions
func NewVoiceWidget(cfg WidgetConfig) *VoiceWidget {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceWidget{
		id:       uuid.New(),
		cfg:      cfg,
		logger:   logger,
		metrics:  cfg.Metrics,
		settings: cfg.Settings,
	}
}

// ID returns the widget identifier
func (w *VoiceWidget) ID() uuid.UUID {
	return w.id
}

// Settings returns the widget's current settings
func (w *VoiceWidget) Settings() settings.VoiceSettings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// ApplySettings replaces the widget's settings and pushes live values
// (playback speed) onto the active playback session
func (w *VoiceWidget) ApplySettings(s settings.VoiceSettings) {
	w.mu.Lock()
	w.settings = s
	p := w.player
	w.mu.Unlock()

	if p != nil {
		p.SetRate(s.PlaybackSpeed)
	}
}

// StartCapture begins a new capture session. Any prior capture session
// is fully torn down, device handle released, before the new device is
// acquired.
func (w *VoiceWidget) StartCapture(ctx context.Context) error {
	w.mu.Lock()
	s := w.settings
	prior := w.recorder
	w.mu.Unlock()

	if !s.InputEnabled {
		return ErrInputDisabled
	}

	if prior != nil {
		prior.Cleanup()
	}

	opts := append([]recorder.Option{
		recorder.WithGain(s.MicrophoneGain),
		recorder.WithLogger(w.logger),
	}, w.cfg.RecorderOptions...)
	if w.metrics != nil {
		opts = append(opts, recorder.WithMetrics(w.metrics))
	}
	rec := recorder.NewSession(w.cfg.CaptureConfig, opts...)

	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	w.mu.Lock()
	w.recorder = rec
	w.mu.Unlock()

	return nil
}

// StopCapture finalizes the active capture session and returns the
// recorded payload
func (w *VoiceWidget) StopCapture() (*recorder.EncodedAudioPayload, error) {
	w.mu.Lock()
	rec := w.recorder
	w.mu.Unlock()

	if rec == nil {
		return nil, recorder.ErrNotRecording
	}
	return rec.Stop()
}

// Transcribe ships a finished recording through the gateway using the
// widget's language setting. Retry policy stays with the caller.
func (w *VoiceWidget) Transcribe(ctx context.Context, payload *recorder.EncodedAudioPayload) (*gateway.TranscriptionResult, error) {
	w.mu.Lock()
	language := w.settings.Language
	w.mu.Unlock()

	return w.cfg.Gateway.Transcribe(ctx, payload, language)
}

// StopAndTranscribe finalizes the recording and transcribes it in one
// step
func (w *VoiceWidget) StopAndTranscribe(ctx context.Context) (*gateway.TranscriptionResult, error) {
	payload, err := w.StopCapture()
	if err != nil {
		return nil, err
	}
	return w.Transcribe(ctx, payload)
}

// Speak synthesizes text through the gateway and loads it into a fresh
// playback session, tearing down any prior one first. Playback starts
// immediately when auto-play is enabled.
func (w *VoiceWidget) Speak(ctx context.Context, text string) (*player.Session, error) {
	w.mu.Lock()
	s := w.settings
	prior := w.player
	w.mu.Unlock()

	if !s.OutputEnabled {
		return nil, ErrOutputDisabled
	}

	ref, err := w.cfg.Gateway.Synthesize(ctx, text, s.Language)
	if err != nil {
		return nil, err
	}

	if prior != nil {
		prior.Cleanup()
	}

	opts := append([]player.Option{
		player.WithLogger(w.logger),
	}, w.cfg.PlayerOptions...)
	if w.metrics != nil {
		opts = append(opts, player.WithMetrics(w.metrics))
	}
	p := player.NewSession(opts...)
	p.SetRate(s.PlaybackSpeed)

	var src player.Source
	if ref.URL != "" {
		src = player.FromURL(ref.URL)
	} else {
		src = player.FromBlob(ref.Data, ref.MIME)
	}

	if err := p.Load(ctx, src); err != nil {
		p.Cleanup()
		return nil, err
	}

	w.mu.Lock()
	w.player = p
	w.mu.Unlock()

	if s.AutoPlay {
		if err := p.Play(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Player returns the active playback session, nil when none is loaded
func (w *VoiceWidget) Player() *player.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.player
}

// CaptureLevels returns the capture analysis tap for visualization,
// nil when no capture session exists
func (w *VoiceWidget) CaptureLevels() *levels.Analyzer {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.recorder == nil {
		return nil
	}
	return w.recorder.Levels()
}

// Close tears down both sessions. Idempotent.
func (w *VoiceWidget) Close() {
	w.mu.Lock()
	rec := w.recorder
	p := w.player
	w.recorder = nil
	w.player = nil
	w.mu.Unlock()

	if rec != nil {
		rec.Cleanup()
	}
	if p != nil {
		p.Cleanup()
	}
}
