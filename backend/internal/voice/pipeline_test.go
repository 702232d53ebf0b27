package voice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingTranscriptLog struct {
	mu      sync.Mutex
	err     error
	entries []string
}

func (l *recordingTranscriptLog) LogUtterance(ctx context.Context, guildID, speakerID, label, transcript, reply string) error {
	l.mu.Lock()
	l.entries = append(l.entries, fmt.Sprintf("%s/%s: %s -> %s", guildID, label, transcript, reply))
	l.mu.Unlock()
	return l.err
}

func (l *recordingTranscriptLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func TestStripDirectives(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Hello there", "Hello there"},
		{"bracket directive removed", "Sure [pause] let me check", "Sure let me check"},
		{"stage direction removed", "*clears throat* As I was saying", "As I was saying"},
		{"mixed directives", "[whisper] okay *laughs* done", "okay done"},
		{"directives only", "[pause] *sighs*", ""},
		{"whitespace collapsed", "a   [x]   b", "a b"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripDirectives(tt.in); got != tt.want {
				t.Errorf("StripDirectives(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProcessSegmentShortCircuitsOnEmptyTranscript(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)
	env.transcriber.text = "   "

	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	if env.agent.lastMessage() != "" {
		t.Error("Expected no reply request for an empty transcript")
	}
	if env.player.playCount() != 0 {
		t.Error("Expected nothing to be played")
	}
}

func TestProcessSegmentShortCircuitsOnEmptyReply(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)
	env.agent.reply = ""

	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	if len(env.synth.synthesized()) != 0 {
		t.Error("Expected no synthesis when the agent declines to reply")
	}
}

func TestProcessSegmentShortCircuitsOnDirectiveOnlyReply(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)
	env.agent.reply = "[pause] *nods*"

	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	if len(env.synth.synthesized()) != 0 {
		t.Error("Expected no synthesis for a reply that is all directives")
	}
}

func TestProcessSegmentSkipsPlaybackOnSynthesisFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)
	env.synth.fail = true

	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	time.Sleep(50 * time.Millisecond)
	if env.player.playCount() != 0 {
		t.Error("Expected a failed synthesis to enqueue nothing")
	}
}

func TestProcessSegmentStripsDirectivesBeforeSynthesis(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)
	env.agent.reply = "Sure [pause] I can *smiles* do that"

	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	texts := env.synth.synthesized()
	if len(texts) != 1 || texts[0] != "Sure I can do that" {
		t.Errorf("Expected stripped text to reach synthesis, got %v", texts)
	}
}

func TestProcessSegmentsPlayInOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	sess, _ := joinedSession(t, env)

	// Queue several segments at once; the playback queue must keep arrival
	// order even though each stage takes its own time.
	for i := 0; i < 5; i++ {
		seg := &CapturedSegment{UserID: fmt.Sprintf("user-%d", i), Path: "/nonexistent.wav"}
		if !sess.processing.Enqueue(func() { env.manager.processSegment(sess, seg) }) {
			t.Fatalf("Failed to enqueue segment %d", i)
		}
	}

	waitFor(t, func() bool { return env.player.playCount() == 5 }, "all replies to play")

	env.player.mu.Lock()
	defer env.player.mu.Unlock()
	for i, path := range env.player.plays {
		want := fmt.Sprintf("/tmp/reply-%d.wav", i+1)
		if path != want {
			t.Errorf("Play %d: expected %s, got %s", i, want, path)
		}
	}
}

func TestLogTranscriptIsBestEffort(t *testing.T) {
	log := &recordingTranscriptLog{err: fmt.Errorf("graph down")}
	env := newTestEnv(t, func(o *Options) {
		o.Transcripts = log
	})
	sess, _ := joinedSession(t, env)

	// A failing transcript store must not stop the reply from being spoken.
	env.manager.processSegment(sess, &CapturedSegment{UserID: "user-1", Path: "/nonexistent.wav"})

	waitFor(t, func() bool { return env.player.playCount() == 1 }, "reply playback")
	if log.count() != 1 {
		t.Errorf("Expected 1 transcript write attempt, got %d", log.count())
	}
}
