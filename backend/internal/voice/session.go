package voice

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Session is the live state of the agent's participation in one call. Exactly
// one exists per guild; the manager owns the registry and is the only writer.
type Session struct {
	GuildID   string
	ChannelID string
	Route     RouteContext

	conn     Connection
	receiver Receiver
	player   Player

	processing *taskQueue
	playback   *taskQueue

	mu             sync.Mutex
	activeSpeakers map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	teardownOnce sync.Once
}

func newSession(guildID, channelID string, route RouteContext, conn Connection, player Player, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	slog := logger.With(
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
	)
	return &Session{
		GuildID:        guildID,
		ChannelID:      channelID,
		Route:          route,
		conn:           conn,
		receiver:       conn.Receiver(),
		player:         player,
		processing:     newTaskQueue("processing", defaultQueueSize, slog),
		playback:       newTaskQueue("playback", defaultQueueSize, slog),
		activeSpeakers: make(map[string]struct{}),
		ctx:            ctx,
		cancel:         cancel,
		logger:         slog,
	}
}

// markSpeaker records that a speaker's capture is in flight. Returns false if
// the speaker is already being captured, which suppresses re-entrant capture
// from duplicate speaking signals.
func (s *Session) markSpeaker(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, active := s.activeSpeakers[userID]; active {
		return false
	}
	s.activeSpeakers[userID] = struct{}{}
	return true
}

// clearSpeaker always runs when a capture ends, whatever the outcome, so a
// failed capture never permanently blocks a speaker's later utterances.
func (s *Session) clearSpeaker(userID string) {
	s.mu.Lock()
	delete(s.activeSpeakers, userID)
	s.mu.Unlock()
}

func (s *Session) activeSpeakerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeSpeakers)
}

// teardown stops playback, destroys the connection and closes both queues.
// Already-enqueued tasks become harmless no-ops once the handles are gone.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()
		if err := s.player.Stop(); err != nil {
			s.logger.Debug("Player stop during teardown failed", zap.Error(err))
		}
		if err := s.conn.Destroy(); err != nil {
			s.logger.Debug("Connection destroy during teardown failed", zap.Error(err))
		}
		s.processing.Close()
		s.playback.Close()
		s.logger.Info("Voice session torn down")
	})
}
