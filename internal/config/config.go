package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	// Capture settings
	Capture struct {
		Device           string `yaml:"device"`
		SampleRate       int    `yaml:"sample_rate"`
		Channels         int    `yaml:"channels"`
		EchoCancellation bool   `yaml:"echo_cancellation"`
		NoiseSuppression bool   `yaml:"noise_suppression"`
	} `yaml:"capture"`

	// Gateway settings
	Gateway struct {
		Provider       string `yaml:"provider"` // "http" or "openai"
		Endpoint       string `yaml:"endpoint"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`

	// Settings storage
	Settings struct {
		Dir string `yaml:"dir"`
	} `yaml:"settings"`

	// Logging settings
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Capture.Device = ""
	cfg.Capture.SampleRate = 16000
	cfg.Capture.Channels = 1
	cfg.Capture.EchoCancellation = true
	cfg.Capture.NoiseSuppression = true

	cfg.Gateway.Provider = "http"
	cfg.Gateway.Endpoint = "http://localhost:8080/voice"
	cfg.Gateway.TimeoutSeconds = 30

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	if home, err := os.UserHomeDir(); err == nil {
		cfg.Settings.Dir = filepath.Join(home, ".voicecore")
	} else {
		cfg.Settings.Dir = ".voicecore"
	}

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.voicecorerc > /etc/voicecore/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigPath := filepath.Join(homeDir, ".voicecorerc")
		if _, err := os.Stat(userConfigPath); err == nil {
			if cfg, err := Load(userConfigPath); err == nil {
				return cfg, nil
			}
		}
	}

	systemConfigPath := "/etc/voicecore/config.yaml"
	if _, err := os.Stat(systemConfigPath); err == nil {
		if cfg, err := Load(systemConfigPath); err == nil {
			return cfg, nil
		}
	}

	return DefaultConfig(), nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("capture sample_rate must be positive, got %d", c.Capture.SampleRate)
	}

	if c.Capture.Channels != 1 && c.Capture.Channels != 2 {
		return fmt.Errorf("capture channels must be 1 or 2, got %d", c.Capture.Channels)
	}

	switch c.Gateway.Provider {
	case "http":
		if c.Gateway.Endpoint == "" {
			return fmt.Errorf("gateway endpoint cannot be empty for the http provider")
		}
	case "openai":
	default:
		return fmt.Errorf("gateway provider must be 'http' or 'openai', got '%s'", c.Gateway.Provider)
	}

	if c.Gateway.TimeoutSeconds < 1 {
		return fmt.Errorf("gateway timeout_seconds must be at least 1, got %d", c.Gateway.TimeoutSeconds)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging level must be one of [debug, info, warn, error], got '%s'", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging format must be 'json' or 'text', got '%s'", c.Logging.Format)
	}

	return nil
}

// GatewayTimeout returns the gateway timeout as a duration
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.TimeoutSeconds) * time.Second
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
