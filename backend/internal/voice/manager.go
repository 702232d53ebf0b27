package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Timing defaults; all overridable through Options.
const (
	DefaultMinUtterance    = 350 * time.Millisecond
	DefaultPlayingWait     = 15 * time.Second
	DefaultIdleWait        = 60 * time.Second
	DefaultReconnectWindow = 5 * time.Second
	DefaultJoinTimeout     = 10 * time.Second
)

// AutoJoinEntry is one configured (guild, channel) pair joined at startup.
type AutoJoinEntry struct {
	GuildID   string
	ChannelID string
}

// ParseAutoJoinList parses "guild:channel,guild:channel" config values.
// Malformed entries are skipped.
func ParseAutoJoinList(s string) []AutoJoinEntry {
	var entries []AutoJoinEntry
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		entries = append(entries, AutoJoinEntry{
			GuildID:   strings.TrimSpace(parts[0]),
			ChannelID: strings.TrimSpace(parts[1]),
		})
	}
	return entries
}

// Options wires the manager's collaborators. Transport, Channels, NewPlayer,
// NewDecoder and the three capabilities are required.
type Options struct {
	Transport   Transport
	Channels    ChannelResolver
	NewPlayer   func(conn Connection) Player
	NewDecoder  DecoderFactory
	Transcriber Transcriber
	Agent       ReplyAgent
	Synthesizer Synthesizer
	Resolver    Resolver
	Scratch     *ScratchStore
	Transcripts TranscriptLog // optional

	// SelfUserID is the agent's own voice identity; its speaking events are
	// ignored to prevent feedback loops.
	SelfUserID string
	AgentID    string
	AutoJoin   []AutoJoinEntry

	MinUtterance    time.Duration
	PlayingWait     time.Duration
	IdleWait        time.Duration
	ReconnectWindow time.Duration

	Logger *zap.Logger
}

// Manager owns one Session per guild and exposes the join/leave/status/
// autoJoin/destroy surface. All registry mutations go through the manager;
// per-guild locks make "does a session already exist for this guild" a single
// atomic decision per call.
type Manager struct {
	opts Options

	mu         sync.Mutex
	sessions   map[string]*Session
	guildLocks map[string]*sync.Mutex
	destroyed  bool

	flight singleflight.Group
	logger *zap.Logger
}

// NewManager validates options and applies timing defaults.
func NewManager(opts Options) (*Manager, error) {
	if opts.Transport == nil || opts.Channels == nil || opts.NewPlayer == nil || opts.NewDecoder == nil {
		return nil, fmt.Errorf("voice manager: transport, channel resolver, player and decoder factories are required")
	}
	if opts.Transcriber == nil || opts.Agent == nil || opts.Synthesizer == nil {
		return nil, fmt.Errorf("voice manager: transcriber, reply agent and synthesizer are required")
	}
	if opts.Scratch == nil {
		return nil, fmt.Errorf("voice manager: scratch store is required")
	}
	if opts.Resolver == nil {
		opts.Resolver = NoopResolver{}
	}
	if opts.MinUtterance <= 0 {
		opts.MinUtterance = DefaultMinUtterance
	}
	if opts.PlayingWait <= 0 {
		opts.PlayingWait = DefaultPlayingWait
	}
	if opts.IdleWait <= 0 {
		opts.IdleWait = DefaultIdleWait
	}
	if opts.ReconnectWindow <= 0 {
		opts.ReconnectWindow = DefaultReconnectWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		opts:       opts,
		sessions:   make(map[string]*Session),
		guildLocks: make(map[string]*sync.Mutex),
		logger:     opts.Logger,
	}, nil
}

// guildLock serializes join/leave for one guild without blocking other guilds.
func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.guildLocks[guildID]
	if !ok {
		l = &sync.Mutex{}
		m.guildLocks[guildID] = l
	}
	return l
}

func (m *Manager) session(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

// register adds the session to the registry unless the manager has been
// destroyed in the meantime. The destroyed re-check closes the window where a
// join that passed its shutdown check is still mid-handshake when Destroy
// runs: such a session must never outlive Destroy.
func (m *Manager) register(sess *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return false
	}
	m.sessions[sess.GuildID] = sess
	return true
}

// deregister removes the session only if it is still the registered one for
// its guild, so a replacement session is never evicted by its predecessor's
// late teardown.
func (m *Manager) deregister(sess *Session) {
	m.mu.Lock()
	if m.sessions[sess.GuildID] == sess {
		delete(m.sessions, sess.GuildID)
	}
	m.mu.Unlock()
}

// Join connects the agent to a voice channel. Idempotent when already
// connected to the same channel; a join to a different channel in the same
// guild leaves the old one first. Expected input errors come back as
// Result{OK:false}, never as panics.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) Result {
	if guildID == "" || channelID == "" {
		return Result{OK: false, Message: "guild id and channel id are required"}
	}

	ch, err := m.opts.Channels.Channel(channelID)
	if err != nil || ch == nil {
		return Result{OK: false, Message: fmt.Sprintf("channel not found: %s", channelID), GuildID: guildID, ChannelID: channelID}
	}
	if !ch.Voice {
		return Result{OK: false, Message: fmt.Sprintf("channel %s is not a voice channel", channelID), GuildID: guildID, ChannelID: channelID}
	}
	if ch.GuildID != guildID {
		return Result{OK: false, Message: fmt.Sprintf("channel %s does not belong to guild %s", channelID, guildID), GuildID: guildID, ChannelID: channelID}
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	shuttingDown := m.destroyed
	m.mu.Unlock()
	if shuttingDown {
		return Result{OK: false, Message: "voice manager is shutting down", GuildID: guildID, ChannelID: channelID}
	}

	if existing := m.session(guildID); existing != nil {
		if existing.ChannelID == channelID {
			return Result{OK: true, Message: "already connected", GuildID: guildID, ChannelID: channelID}
		}
		// Replacement join: tear the old session down first.
		m.logger.Info("Replacing voice session",
			zap.String("guild_id", guildID),
			zap.String("old_channel_id", existing.ChannelID),
			zap.String("new_channel_id", channelID))
		m.deregister(existing)
		existing.teardown()
	}

	conn, err := m.joinWithRetry(ctx, guildID, channelID)
	if err != nil {
		return Result{OK: false, Message: fmt.Sprintf("failed to join voice channel: %v", err), GuildID: guildID, ChannelID: channelID}
	}

	route := RouteContext{
		AgentID:        m.opts.AgentID,
		ConversationID: uuid.NewString(),
		GuildID:        guildID,
	}
	sess := newSession(guildID, channelID, route, conn, m.opts.NewPlayer(conn), m.logger)
	if !m.register(sess) {
		sess.teardown()
		return Result{OK: false, Message: "voice manager is shutting down", GuildID: guildID, ChannelID: channelID}
	}

	go m.watchConnection(sess)
	go m.watchSpeaking(sess)

	m.logger.Info("Joined voice channel",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.String("channel_name", ch.Name),
		zap.String("conversation_id", route.ConversationID))

	return Result{OK: true, Message: fmt.Sprintf("joined %s", ch.Name), GuildID: guildID, ChannelID: channelID}
}

// joinWithRetry attempts the transport handshake, retrying once on transient
// failure.
func (m *Manager) joinWithRetry(ctx context.Context, guildID, channelID string) (Connection, error) {
	joinCtx, cancel := context.WithTimeout(ctx, DefaultJoinTimeout)
	conn, err := m.opts.Transport.Join(joinCtx, guildID, channelID)
	cancel()
	if err == nil {
		return conn, nil
	}
	m.logger.Warn("Voice join failed; retrying once",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.Error(err))
	joinCtx, cancel = context.WithTimeout(ctx, DefaultJoinTimeout)
	defer cancel()
	return m.opts.Transport.Join(joinCtx, guildID, channelID)
}

// Leave disconnects from a guild's voice channel. When channelID is non-empty
// it must match the active session's channel.
func (m *Manager) Leave(ctx context.Context, guildID, channelID string) Result {
	if guildID == "" {
		return Result{OK: false, Message: "guild id is required"}
	}

	lock := m.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	sess := m.session(guildID)
	if sess == nil {
		return Result{OK: false, Message: "not connected to a voice channel in this guild", GuildID: guildID}
	}
	if channelID != "" && sess.ChannelID != channelID {
		return Result{OK: false, Message: fmt.Sprintf("not connected to channel %s", channelID), GuildID: guildID, ChannelID: channelID}
	}

	m.deregister(sess)
	sess.teardown()

	m.logger.Info("Left voice channel",
		zap.String("guild_id", guildID),
		zap.String("channel_id", sess.ChannelID))
	return Result{OK: true, Message: "left voice channel", GuildID: guildID, ChannelID: sess.ChannelID}
}

// Status returns one summary row per registered session. Read-only.
func (m *Manager) Status() []SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionStatus, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, SessionStatus{GuildID: sess.GuildID, ChannelID: sess.ChannelID})
	}
	return out
}

// AutoJoin joins every configured (guild, channel) pair sequentially,
// de-duplicating by guild. Concurrent calls share one in-flight run.
func (m *Manager) AutoJoin(ctx context.Context) Result {
	v, _, _ := m.flight.Do("autojoin", func() (interface{}, error) {
		return m.autoJoin(ctx), nil
	})
	return v.(Result)
}

func (m *Manager) autoJoin(ctx context.Context) Result {
	seen := make(map[string]struct{})
	joined := 0
	for _, entry := range m.opts.AutoJoin {
		if _, dup := seen[entry.GuildID]; dup {
			m.logger.Warn("Skipping duplicate auto-join entry for guild",
				zap.String("guild_id", entry.GuildID),
				zap.String("channel_id", entry.ChannelID))
			continue
		}
		seen[entry.GuildID] = struct{}{}

		res := m.Join(ctx, entry.GuildID, entry.ChannelID)
		if res.OK {
			joined++
		} else {
			m.logger.Warn("Auto-join failed",
				zap.String("guild_id", entry.GuildID),
				zap.String("channel_id", entry.ChannelID),
				zap.String("reason", res.Message))
		}
	}
	return Result{OK: true, Message: fmt.Sprintf("auto-joined %d of %d configured channels", joined, len(seen))}
}

// Destroy tears down every session; used on process shutdown.
func (m *Manager) Destroy() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.destroyed = true
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.teardown()
	}
	m.logger.Info("All voice sessions destroyed", zap.Int("count", len(sessions)))
}

// watchConnection observes transport state transitions. A disconnect gets a
// bounded recovery window; failing that, or on a terminal destroy, the
// session is removed from the registry.
func (m *Manager) watchConnection(sess *Session) {
	states := sess.conn.States()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				m.deregister(sess)
				sess.teardown()
				return
			}
			switch st {
			case ConnDestroyed:
				sess.logger.Info("Voice connection destroyed")
				m.deregister(sess)
				sess.teardown()
				return
			case ConnDisconnected:
				if !m.awaitRecovery(sess, states) {
					sess.logger.Warn("Voice connection did not recover; destroying session",
						zap.Duration("window", m.opts.ReconnectWindow))
					m.deregister(sess)
					sess.teardown()
					return
				}
				sess.logger.Info("Voice connection recovered")
			}
		}
	}
}

// awaitRecovery waits for the transport to report any connecting/ready state
// within the reconnect window.
func (m *Manager) awaitRecovery(sess *Session, states <-chan ConnState) bool {
	timer := time.NewTimer(m.opts.ReconnectWindow)
	defer timer.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			return false
		case <-timer.C:
			return false
		case st, ok := <-states:
			if !ok || st == ConnDestroyed {
				return false
			}
			if st == ConnSignalling || st == ConnConnecting || st == ConnReady {
				return true
			}
		}
	}
}

// watchSpeaking fans speaking-started events out to per-speaker captures.
func (m *Manager) watchSpeaking(sess *Session) {
	speaking := sess.receiver.Speaking()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case ev, ok := <-speaking:
			if !ok {
				return
			}
			m.handleSpeaking(sess, ev.UserID)
		}
	}
}
