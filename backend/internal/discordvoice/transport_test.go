package discordvoice

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func stateSession(t *testing.T) *discordgo.Session {
	t.Helper()
	st := discordgo.NewState()
	if err := st.GuildAdd(&discordgo.Guild{ID: "g1"}); err != nil {
		t.Fatalf("GuildAdd failed: %v", err)
	}
	channels := []*discordgo.Channel{
		{ID: "vc", GuildID: "g1", Name: "General", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "stage", GuildID: "g1", Name: "Stage", Type: discordgo.ChannelTypeGuildStageVoice},
		{ID: "text", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText},
	}
	for _, ch := range channels {
		if err := st.ChannelAdd(ch); err != nil {
			t.Fatalf("ChannelAdd failed: %v", err)
		}
	}
	return &discordgo.Session{State: st, StateEnabled: true}
}

func TestChannelResolverClassifiesVoiceChannels(t *testing.T) {
	r := NewChannelResolver(stateSession(t))

	tests := []struct {
		id    string
		voice bool
	}{
		{"vc", true},
		{"stage", true},
		{"text", false},
	}
	for _, tt := range tests {
		info, err := r.Channel(tt.id)
		if err != nil {
			t.Fatalf("Channel(%s) failed: %v", tt.id, err)
		}
		if info.Voice != tt.voice {
			t.Errorf("Channel(%s): expected voice=%v, got %v", tt.id, tt.voice, info.Voice)
		}
		if info.GuildID != "g1" {
			t.Errorf("Channel(%s): expected guild g1, got %s", tt.id, info.GuildID)
		}
	}
}

func TestResolverPrefersNickname(t *testing.T) {
	sess := stateSession(t)
	if err := sess.State.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		Nick:    "Al",
		User:    &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice"},
	}); err != nil {
		t.Fatalf("MemberAdd failed: %v", err)
	}

	r := NewResolver(sess, zap.NewNop())
	if got := r.DisplayName("g1", "u1"); got != "Al" {
		t.Errorf("Expected nickname 'Al', got %q", got)
	}
}

func TestResolverFallsBackToGlobalName(t *testing.T) {
	sess := stateSession(t)
	if err := sess.State.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		User:    &discordgo.User{ID: "u2", Username: "bob", GlobalName: "Bobby"},
	}); err != nil {
		t.Fatalf("MemberAdd failed: %v", err)
	}

	r := NewResolver(sess, zap.NewNop())
	if got := r.DisplayName("g1", "u2"); got != "Bobby" {
		t.Errorf("Expected global name 'Bobby', got %q", got)
	}
}

func TestResolverFallsBackToUsername(t *testing.T) {
	sess := stateSession(t)
	if err := sess.State.MemberAdd(&discordgo.Member{
		GuildID: "g1",
		User:    &discordgo.User{ID: "u3", Username: "carol"},
	}); err != nil {
		t.Fatalf("MemberAdd failed: %v", err)
	}

	r := NewResolver(sess, zap.NewNop())
	if got := r.DisplayName("g1", "u3"); got != "carol" {
		t.Errorf("Expected username 'carol', got %q", got)
	}
}
