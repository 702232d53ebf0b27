package voice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Speech-control directives embedded in reply text, e.g. "[pause]" or
// "*sighs*", are stripped before synthesis.
var (
	bracketDirective = regexp.MustCompile(`\[[^\]]*\]`)
	stageDirection   = regexp.MustCompile(`\*[^*]*\*`)
	collapseSpaces   = regexp.MustCompile(`\s+`)
)

// StripDirectives removes embedded speech-control directives from reply text,
// leaving only what should be spoken aloud.
func StripDirectives(text string) string {
	text = bracketDirective.ReplaceAllString(text, " ")
	text = stageDirection.ReplaceAllString(text, " ")
	return strings.TrimSpace(collapseSpaces.ReplaceAllString(text, " "))
}

// processSegment runs one captured segment through transcription, reply
// generation and synthesis. Every stage short-circuits on empty or failed
// output; failures are logged per session and never stop the queue from
// handling the next segment.
func (m *Manager) processSegment(sess *Session, seg *CapturedSegment) {
	ctx := sess.ctx

	transcript, err := m.opts.Transcriber.Transcribe(ctx, seg.Path)
	if err != nil {
		sess.logger.Warn("Transcription failed",
			zap.String("user_id", seg.UserID),
			zap.Error(err))
		return
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return
	}

	label := m.speakerLabel(sess.GuildID, seg.UserID)
	sess.logger.Info("Transcribed utterance",
		zap.String("speaker", label),
		zap.String("transcript", transcript))

	reply, err := m.opts.Agent.Reply(ctx, sess.Route, fmt.Sprintf("%s: %s", label, transcript))
	if err != nil {
		sess.logger.Warn("Reply generation failed",
			zap.String("speaker", label),
			zap.Error(err))
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}

	m.logTranscript(sess, seg.UserID, label, transcript, reply)

	speakable := StripDirectives(reply)
	if speakable == "" {
		return
	}

	res := m.opts.Synthesizer.Synthesize(ctx, speakable)
	if !res.Success {
		sess.logger.Warn("Speech synthesis failed",
			zap.String("speaker", label),
			zap.Error(res.Err))
		return
	}

	pending := &PendingReply{AudioPath: res.AudioPath}
	if !sess.playback.Enqueue(func() { m.playReply(sess, pending) }) {
		sess.logger.Warn("Playback queue rejected reply")
	}
}

// speakerLabel resolves a human-readable label, falling back to the raw id.
func (m *Manager) speakerLabel(guildID, userID string) string {
	if name := m.opts.Resolver.DisplayName(guildID, userID); name != "" {
		return name
	}
	return userID
}

// logTranscript records the exchange in the transcript log, best-effort.
func (m *Manager) logTranscript(sess *Session, speakerID, label, transcript, reply string) {
	if m.opts.Transcripts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.opts.Transcripts.LogUtterance(ctx, sess.GuildID, speakerID, label, transcript, reply); err != nil {
		sess.logger.Debug("Transcript log write failed", zap.Error(err))
	}
}
