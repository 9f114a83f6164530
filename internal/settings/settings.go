// Package settings holds the persisted voice configuration. The store
// is an injected port rather than a module-level singleton, so tests
// substitute an in-memory store and every component receives its
// settings explicitly.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// StorageKey is the fixed key under which voice settings persist
const StorageKey = "voice_settings"

// VoiceSettings is the process-wide voice configuration. No component
// reads or writes the persisted form directly; everything goes through
// a Manager.
type VoiceSettings struct {
	InputEnabled   bool    `json:"inputEnabled"`
	OutputEnabled  bool    `json:"outputEnabled"`
	Language       string  `json:"language"`
	PlaybackSpeed  float64 `json:"playbackSpeed"`
	AutoPlay       bool    `json:"autoPlay"`
	ShowVisualizer bool    `json:"showVisualizer"`
	MicrophoneGain float64 `json:"microphoneGain"`
}

// Defaults returns the hard-coded fallback settings used when storage
// is absent or corrupt
func Defaults() VoiceSettings {
	return VoiceSettings{
		InputEnabled:   false,
		OutputEnabled:  false,
		Language:       "auto",
		PlaybackSpeed:  1,
		AutoPlay:       true,
		ShowVisualizer: true,
		MicrophoneGain: 1,
	}
}

// Manager loads and saves settings through an injected store
type Manager struct {
	store  Store
	logger *slog.Logger
}

// NewManager creates a settings manager over the given store
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Load reads settings from storage. Absent or corrupt storage falls
// back to the hard-coded defaults; the corrupt value is overwritten by
// the next Save.
func (m *Manager) Load() VoiceSettings {
	data, err := m.store.Load(StorageKey)
	if err != nil || len(data) == 0 {
		return Defaults()
	}

	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn("stored voice settings are corrupt, using defaults",
			slog.String("error", err.Error()),
		)
		return Defaults()
	}
	return s
}

// Save writes settings to storage under the fixed key
func (m *Manager) Save(s VoiceSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode voice settings: %w", err)
	}
	if err := m.store.Save(StorageKey, data); err != nil {
		return fmt.Errorf("failed to persist voice settings: %w", err)
	}
	return nil
}
