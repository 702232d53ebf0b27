package voice

import (
	"time"

	"go.uber.org/zap"
)

// playReply plays one synthesized reply and waits for its real start and end
// signals. Both waits are best-effort: a timeout lets the queue move on so a
// stuck playback never blocks the call indefinitely.
func (m *Manager) playReply(sess *Session, reply *PendingReply) {
	select {
	case <-sess.ctx.Done():
		return
	default:
	}

	if err := sess.player.Play(reply.AudioPath); err != nil {
		sess.logger.Warn("Failed to start playback",
			zap.String("path", reply.AudioPath),
			zap.Error(err))
		return
	}

	states := sess.player.States()
	if !waitPlayerState(states, PlayerPlaying, m.opts.PlayingWait) {
		sess.logger.Debug("Timed out waiting for playback to start",
			zap.Duration("timeout", m.opts.PlayingWait))
		return
	}
	if !waitPlayerState(states, PlayerIdle, m.opts.IdleWait) {
		sess.logger.Debug("Timed out waiting for playback to finish",
			zap.Duration("timeout", m.opts.IdleWait))
	}
}

// waitPlayerState consumes player transitions until the wanted state arrives
// or the timeout elapses.
func waitPlayerState(states <-chan PlayerState, want PlayerState, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case st, ok := <-states:
			if !ok {
				return false
			}
			if st == want {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}
