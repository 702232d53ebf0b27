package capability

import (
	"context"
	"io"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
	"voxa/backend/pkg/errors"
)

// Synthesizer turns reply text into a scratch WAV file through an
// OpenAI-compatible speech endpoint. Failures are reported in the result
// rather than raised, so the pipeline can skip a reply without tearing
// anything down.
type Synthesizer struct {
	client  *openai.Client
	model   string
	voiceID string
	scratch *voice.ScratchStore
	logger  *zap.Logger
}

// NewSynthesizer creates a new text-to-speech capability
func NewSynthesizer(baseURL, apiKey, model, voiceID string, scratch *voice.ScratchStore, logger *zap.Logger) *Synthesizer {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &Synthesizer{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		voiceID: voiceID,
		scratch: scratch,
		logger:  logger,
	}
}

// Synthesize writes the spoken reply to a fresh scratch file and returns its
// path. The scratch store's delayed cleanup reclaims the file after playback.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) voice.SynthesisResult {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voiceID),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return voice.SynthesisResult{Err: errors.NewSynthesisFailed(err)}
	}
	defer resp.Close()

	path, err := s.scratch.Allocate("reply.wav")
	if err != nil {
		return voice.SynthesisResult{Err: errors.NewSynthesisFailed(err)}
	}

	f, err := os.Create(path)
	if err != nil {
		return voice.SynthesisResult{Err: errors.NewSynthesisFailed(err)}
	}
	n, err := io.Copy(f, resp)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return voice.SynthesisResult{Err: errors.NewSynthesisFailed(err)}
	}

	s.logger.Debug("Speech synthesized",
		zap.String("path", path),
		zap.Int64("bytes", n))
	return voice.SynthesisResult{Success: true, AudioPath: path}
}
