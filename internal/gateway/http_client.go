package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shikkhasathi/voicecore/internal/metrics"
	"github.com/shikkhasathi/voicecore/internal/recorder"
)

// Config contains HTTP gateway configuration
type Config struct {
	// Endpoint is the service base URL; transcribe and synthesize are
	// POSTed beneath it
	Endpoint string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout bounds each request. There is no mid-flight cancel beyond
	// the caller's context; a call completes or times out.
	Timeout time.Duration
}

// Client is the HTTP implementation of the Gateway. Audio travels as
// base64 inside JSON bodies; transport errors and non-success statuses
// map to ErrServiceUnavailable.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithMetrics wires Prometheus instrumentation into the client
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an HTTP gateway client
func NewClient(config Config, opts ...ClientOption) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transcribeRequest struct {
	Audio    string `json:"audio"` // base64-encoded recording
	MIMEType string `json:"mime_type,omitempty"`
	Language string `json:"language,omitempty"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

type synthesizeResponse struct {
	AudioReference string `json:"audio_reference"`
}

// Transcribe sends the recording to the speech-to-text service. One
// attempt, no automatic retry; retry policy belongs to the caller.
func (c *Client) Transcribe(ctx context.Context, payload *recorder.EncodedAudioPayload, language string) (*TranscriptionResult, error) {
	body := transcribeRequest{
		Audio:    payload.Base64(),
		MIMEType: payload.MIMEType(),
		Language: language,
	}

	var result transcribeResponse
	if err := c.post(ctx, "transcribe", body, &result); err != nil {
		return nil, err
	}

	if result.Text == "" {
		return nil, ErrEmptyResult
	}

	return &TranscriptionResult{
		Text:       result.Text,
		Confidence: result.Confidence,
	}, nil
}

// Synthesize sends text to the text-to-speech service and returns a
// playable audio reference
func (c *Client) Synthesize(ctx context.Context, text, language string) (*AudioReference, error) {
	body := synthesizeRequest{
		Text:     text,
		Language: language,
	}

	var result synthesizeResponse
	if err := c.post(ctx, "synthesize", body, &result); err != nil {
		return nil, err
	}

	return &AudioReference{URL: result.AudioReference}, nil
}

// post sends one JSON request and decodes the JSON response. All
// transport failures collapse into ErrServiceUnavailable.
func (c *Client) post(ctx context.Context, operation string, body, out any) error {
	start := time.Now()
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(operation).Inc()
	}

	err := c.doPost(ctx, operation, body, out)

	if c.metrics != nil {
		c.metrics.GatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.GatewayFailures.WithLabelValues(operation).Inc()
		}
	}
	if err != nil {
		c.logger.Warn("gateway request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (c *Client) doPost(ctx context.Context, operation string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	url := c.config.Endpoint + "/" + operation
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %s", ErrServiceUnavailable, operation, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %s", ErrServiceUnavailable, operation, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid %s response: %s", ErrServiceUnavailable, operation, err)
	}
	return nil
}
