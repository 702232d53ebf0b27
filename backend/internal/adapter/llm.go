package adapter

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
	"voxa/backend/pkg/errors"
)

const voiceSystemPrompt = `You are a voice assistant participating in a live group call.
Incoming messages are transcribed speech in the form "speaker: utterance".
Reply with short, natural spoken language. Reply with nothing at all when no
response is warranted.`

// LLMAdapter generates the agent's spoken replies through an OpenAI-compatible
// chat endpoint (LiteLLM or upstream).
type LLMAdapter struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(baseURL, apiKey, modelID string, logger *zap.Logger) *LLMAdapter {
	// For LiteLLM, we can use a dummy API key if not provided
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &LLMAdapter{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger,
	}
}

// Reply generates the agent's reply for one transcribed utterance. An empty
// string means the agent chose not to respond; the pipeline treats that as a
// short-circuit, not an error.
func (a *LLMAdapter) Reply(ctx context.Context, route voice.RouteContext, message string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("%s\n\nagent: %s\nconversation: %s\nguild: %s",
					voiceSystemPrompt, route.AgentID, route.ConversationID, route.GuildID),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: message,
			},
		},
		Temperature: 0.7,
		User:        route.ConversationID,
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", errors.NewReplyFailed(a.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	reply := resp.Choices[0].Message.Content
	a.logger.Debug("Reply generated",
		zap.String("model", a.model),
		zap.Int("chars", len(reply)))
	return reply, nil
}
