package adapter

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"voxa/backend/internal/voice"
)

// TestLLMAdapter_Reply requires a running LiteLLM instance
// This is a basic integration test
func TestLLMAdapter_Reply(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	a := NewLLMAdapter("http://localhost:4000", "", "gpt-4o-mini", zap.NewNop())

	route := voice.RouteContext{
		AgentID:        "test-agent",
		ConversationID: "test-conversation",
		GuildID:        "test-guild",
	}
	reply, err := a.Reply(context.Background(), route, "tester: say hello in one sentence")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply == "" {
		t.Error("Expected a non-empty reply")
	}
}
