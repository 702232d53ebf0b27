package discordvoice

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
	"voxa/backend/pkg/errors"
)

// DefaultSilenceGap closes a speaker's stream after this much time with no
// further audio.
const DefaultSilenceGap = 1000 * time.Millisecond

// Transport joins Discord voice channels through a discordgo session.
type Transport struct {
	session    *discordgo.Session
	silenceGap time.Duration
	logger     *zap.Logger
}

// NewTransport wraps the given session. silenceGap <= 0 uses the default.
func NewTransport(session *discordgo.Session, silenceGap time.Duration, logger *zap.Logger) *Transport {
	if silenceGap <= 0 {
		silenceGap = DefaultSilenceGap
	}
	return &Transport{session: session, silenceGap: silenceGap, logger: logger}
}

// Join performs the voice handshake. discordgo blocks until the connection is
// ready or its internal timeout fires, so the returned connection is usable
// immediately.
func (t *Transport) Join(ctx context.Context, guildID, channelID string) (voice.Connection, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	done := make(chan joinResult, 1)
	go func() {
		// Not muted (the agent speaks) and not deafened (the agent listens).
		vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, false)
		done <- joinResult{vc: vc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.NewTransportJoinFailed(guildID, channelID, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, errors.NewTransportJoinFailed(guildID, channelID, res.err)
		}
		return newConnection(res.vc, t.silenceGap, t.logger), nil
	}
}

// ChannelResolver validates join targets against discordgo's cached state,
// falling back to the REST API for channels the cache has not seen.
type ChannelResolver struct {
	session *discordgo.Session
}

func NewChannelResolver(session *discordgo.Session) *ChannelResolver {
	return &ChannelResolver{session: session}
}

func (r *ChannelResolver) Channel(channelID string) (*voice.ChannelInfo, error) {
	ch, err := r.session.State.Channel(channelID)
	if err != nil {
		ch, err = r.session.Channel(channelID)
		if err != nil {
			return nil, fmt.Errorf("channel lookup failed: %w", err)
		}
	}
	return &voice.ChannelInfo{
		ID:      ch.ID,
		GuildID: ch.GuildID,
		Name:    ch.Name,
		Voice:   ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice,
	}, nil
}

// Resolver maps speaker ids to display labels: guild nickname, then global
// display name, then username. Returns "" when nothing resolves so callers
// fall back to the raw id.
type Resolver struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewResolver(session *discordgo.Session, logger *zap.Logger) *Resolver {
	return &Resolver{session: session, logger: logger}
}

func (r *Resolver) DisplayName(guildID, userID string) string {
	member, err := r.session.State.Member(guildID, userID)
	if err != nil {
		member, err = r.session.GuildMember(guildID, userID)
	}
	if err == nil && member != nil {
		if member.Nick != "" {
			return member.Nick
		}
		if member.User != nil {
			if member.User.GlobalName != "" {
				return member.User.GlobalName
			}
			if member.User.Username != "" {
				return member.User.Username
			}
		}
	}

	user, err := r.session.User(userID)
	if err != nil || user == nil {
		r.logger.Debug("Speaker name resolution failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID))
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
