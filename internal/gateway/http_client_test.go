package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikkhasathi/voicecore/internal/format"
	"github.com/shikkhasathi/voicecore/internal/recorder"
)

func testPayload(data []byte) *recorder.EncodedAudioPayload {
	return recorder.NewPayload([][]byte{data}, format.WAV, recorder.PCMInfo{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	})
}

func TestTranscribeSuccess(t *testing.T) {
	audioBytes := []byte{1, 2, 3, 4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transcribe", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Audio    string `json:"audio"`
			MIMEType string `json:"mime_type"`
			Language string `json:"language"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Audio travels base64-encoded, nothing else
		decoded, err := base64.StdEncoding.DecodeString(req.Audio)
		require.NoError(t, err)
		assert.Equal(t, audioBytes, decoded)
		assert.Equal(t, format.WAV, req.MIMEType)
		assert.Equal(t, "bn", req.Language)

		json.NewEncoder(w).Encode(map[string]any{"text": "hello", "confidence": 0.92})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, APIKey: "test-key"})

	result, err := client.Transcribe(context.Background(), testPayload(audioBytes), "bn")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.InDelta(t, 0.92, result.Confidence, 1e-9)
}

func TestTranscribeServiceUnavailableNoRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})

	_, err := client.Transcribe(context.Background(), testPayload([]byte{1}), "bn")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "a single attempt only; retry policy belongs to the caller")
}

func TestTranscribeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": ""})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})

	_, err := client.Transcribe(context.Background(), testPayload([]byte{1}), "en")
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.NotErrorIs(t, err, ErrServiceUnavailable)
}

func TestTranscribeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(Config{Endpoint: server.URL})

	_, err := client.Transcribe(context.Background(), testPayload([]byte{1}), "en")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestTranscribeTimeout(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	client := NewClient(Config{Endpoint: server.URL, Timeout: 50 * time.Millisecond})

	_, err := client.Transcribe(context.Background(), testPayload([]byte{1}), "en")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestSynthesizeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/synthesize", r.URL.Path)

		var req struct {
			Text     string `json:"text"`
			Language string `json:"language"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)
		assert.Equal(t, "en", req.Language)

		json.NewEncoder(w).Encode(map[string]string{
			"audio_reference": "https://cdn.example.com/speech/abc.wav",
		})
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})

	ref, err := client.Synthesize(context.Background(), "hello world", "en")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/speech/abc.wav", ref.URL)
}

func TestSynthesizeServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})

	_, err := client.Synthesize(context.Background(), "hello", "en")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestInvalidResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL})

	_, err := client.Transcribe(context.Background(), testPayload([]byte{1}), "en")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
