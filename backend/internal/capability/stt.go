package capability

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"voxa/backend/pkg/errors"
)

// Transcriber sends captured WAV segments to an OpenAI-compatible speech
// recognition endpoint.
type Transcriber struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewTranscriber creates a new speech-to-text capability
func NewTranscriber(baseURL, apiKey, model string, logger *zap.Logger) *Transcriber {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &Transcriber{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

// Transcribe returns the recognized text for one audio file. Whitespace-only
// recognitions come back as "", which the pipeline treats as nothing said.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
	})
	if err != nil {
		return "", errors.NewTranscriptionFailed(audioPath, err)
	}

	text := strings.TrimSpace(resp.Text)
	t.logger.Debug("Transcription completed",
		zap.String("path", audioPath),
		zap.Int("chars", len(text)))
	return text, nil
}
