package voice

import (
	"os"

	"go.uber.org/zap"
)

// handleSpeaking reacts to a "speaking started" signal for one speaker.
// Duplicate signals while a capture is in flight are ignored, as is the
// agent's own voice identity.
func (m *Manager) handleSpeaking(sess *Session, userID string) {
	if userID == "" || userID == m.opts.SelfUserID {
		return
	}
	if !sess.markSpeaker(userID) {
		return
	}

	// Barge-in: a human speaking interrupts the agent's own playback.
	if sess.player.Playing() {
		if err := sess.player.Stop(); err != nil {
			sess.logger.Debug("Barge-in stop failed", zap.Error(err))
		} else {
			sess.logger.Info("Playback interrupted by speaker", zap.String("user_id", userID))
		}
	}

	go m.captureUtterance(sess, userID)
}

// captureUtterance drains one speaker's stream until the receiver's silence
// gap closes it, decodes it to PCM, writes the utterance to a scratch WAV and
// enqueues it for processing. Capture failures drop the segment; the speaker
// is always cleared from the active set so later utterances get through.
func (m *Manager) captureUtterance(sess *Session, userID string) {
	defer sess.clearSpeaker(userID)

	frames := sess.receiver.OpenStream(userID)

	decoder, err := m.opts.NewDecoder()
	if err != nil {
		sess.logger.Error("Failed to create decoder; discarding capture",
			zap.String("user_id", userID),
			zap.Error(err))
		// Still drain the stream so the receiver can release it.
		for range frames {
		}
		return
	}

	// Malformed or empty frames are skipped rather than failing the whole
	// capture; a stream where every frame fails yields an empty buffer.
	var pcm []int16
	for frame := range frames {
		if len(frame) == 0 {
			continue
		}
		samples, err := decoder.Decode(frame)
		if err != nil || len(samples) == 0 {
			continue
		}
		pcm = append(pcm, samples...)
	}

	select {
	case <-sess.ctx.Done():
		return
	default:
	}

	if len(pcm) == 0 {
		return
	}

	dur := PCMDuration(len(pcm))
	if dur < m.opts.MinUtterance {
		sess.logger.Debug("Discarding sub-threshold segment",
			zap.String("user_id", userID),
			zap.Duration("duration", dur))
		return
	}

	path, err := m.opts.Scratch.Allocate("utterance.wav")
	if err != nil {
		sess.logger.Error("Failed to allocate scratch file", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, EncodeWAV(pcm), 0o644); err != nil {
		sess.logger.Error("Failed to write utterance file",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	seg := &CapturedSegment{UserID: userID, Path: path, Duration: dur}
	sess.logger.Info("Captured utterance",
		zap.String("user_id", userID),
		zap.Duration("duration", dur))

	if !sess.processing.Enqueue(func() { m.processSegment(sess, seg) }) {
		sess.logger.Warn("Processing queue rejected segment", zap.String("user_id", userID))
	}
}
