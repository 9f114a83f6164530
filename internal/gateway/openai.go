package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shikkhasathi/voicecore/internal/recorder"
)

// OpenAIGateway implements Gateway against the OpenAI speech APIs:
// Whisper for transcription and the speech endpoint for synthesis.
// Errors map to the same taxonomy as the HTTP client, so callers do not
// care which provider backs the gateway.
type OpenAIGateway struct {
	client *openai.Client
	voice  openai.SpeechVoice
	logger *slog.Logger
}

// NewOpenAIGateway creates a gateway backed by the OpenAI API
func NewOpenAIGateway(apiKey string, logger *slog.Logger) *OpenAIGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIGateway{
		client: openai.NewClient(apiKey),
		voice:  openai.VoiceAlloy,
		logger: logger,
	}
}

// Transcribe sends the recording to Whisper. Whisper expects a
// self-describing file, so raw PCM payloads are containered first.
func (g *OpenAIGateway) Transcribe(ctx context.Context, payload *recorder.EncodedAudioPayload, language string) (*TranscriptionResult, error) {
	wav, err := payload.WAV()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare recording: %w", err)
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "recording.wav",
		Reader:   bytes.NewReader(wav),
	}
	if language != "" && language != "auto" {
		req.Language = language
	}

	resp, err := g.client.CreateTranscription(ctx, req)
	if err != nil {
		g.logger.Warn("transcription request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}

	if resp.Text == "" {
		return nil, ErrEmptyResult
	}

	// Whisper reports no confidence score
	return &TranscriptionResult{Text: resp.Text}, nil
}

// Synthesize sends text to the speech endpoint and returns the audio
// inline
func (g *OpenAIGateway) Synthesize(ctx context.Context, text, language string) (*AudioReference, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          g.voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		g.logger.Warn("synthesis request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading synthesis response: %s", ErrServiceUnavailable, err)
	}

	return &AudioReference{Data: data, MIME: "audio/wav"}, nil
}
