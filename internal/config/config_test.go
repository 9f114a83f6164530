package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "invalid sample rate",
			mutate:   func(c *Config) { c.Capture.SampleRate = 0 },
			errorMsg: "sample_rate",
		},
		{
			name:     "invalid channel count",
			mutate:   func(c *Config) { c.Capture.Channels = 5 },
			errorMsg: "channels",
		},
		{
			name:     "unknown gateway provider",
			mutate:   func(c *Config) { c.Gateway.Provider = "carrier-pigeon" },
			errorMsg: "provider",
		},
		{
			name:     "http provider without endpoint",
			mutate:   func(c *Config) { c.Gateway.Endpoint = "" },
			errorMsg: "endpoint",
		},
		{
			name:     "openai provider needs no endpoint",
			mutate:   func(c *Config) { c.Gateway.Provider = "openai"; c.Gateway.Endpoint = "" },
			errorMsg: "",
		},
		{
			name:     "zero gateway timeout",
			mutate:   func(c *Config) { c.Gateway.TimeoutSeconds = 0 },
			errorMsg: "timeout_seconds",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level",
		},
		{
			name:     "bad log format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Gateway.Endpoint = "https://speech.example.com"
	cfg.Logging.Level = "debug"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://speech.example.com", loaded.Gateway.Endpoint)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestLoadWithFallbackNoFiles(t *testing.T) {
	// Point HOME somewhere empty so no user config is found
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Gateway.Provider, cfg.Gateway.Provider)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capture:\n  sample_rate: -1\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
