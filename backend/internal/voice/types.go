package voice

import (
	"context"
	"time"
)

// ConnState mirrors the voice gateway connection lifecycle.
type ConnState int

const (
	ConnSignalling ConnState = iota
	ConnConnecting
	ConnReady
	ConnDisconnected
	ConnDestroyed
)

func (s ConnState) String() string {
	switch s {
	case ConnSignalling:
		return "signalling"
	case ConnConnecting:
		return "connecting"
	case ConnReady:
		return "ready"
	case ConnDisconnected:
		return "disconnected"
	case ConnDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// PlayerState mirrors the audio player lifecycle.
type PlayerState int

const (
	PlayerIdle PlayerState = iota
	PlayerBuffering
	PlayerPlaying
	PlayerPaused
)

func (s PlayerState) String() string {
	switch s {
	case PlayerIdle:
		return "idle"
	case PlayerBuffering:
		return "buffering"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	}
	return "unknown"
}

// Result is the structured outcome of the public voice operations.
// Expected policy rejections (wrong channel type, not connected, duplicate
// join) are reported here with OK=false; they are never raised as errors.
type Result struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// SessionStatus is one row of the status() summary.
type SessionStatus struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// RouteContext identifies which agent conversation a call's replies belong to.
// Resolved once per session at join time.
type RouteContext struct {
	AgentID        string
	ConversationID string
	GuildID        string
}

// CapturedSegment is one speaker's utterance, bounded by a silence gap.
// The PCM has already been written to a scratch WAV file by the time a
// segment is enqueued; the file outlives processing only until the scratch
// store's delayed cleanup fires.
type CapturedSegment struct {
	UserID   string
	Path     string
	Duration time.Duration
}

// PendingReply is a synthesized reply waiting for its turn on the playback
// queue.
type PendingReply struct {
	AudioPath string
}

// ChannelInfo describes a channel looked up during join validation.
type ChannelInfo struct {
	ID      string
	GuildID string
	Name    string
	Voice   bool
}

// ChannelResolver validates join targets against the gateway's channel state.
type ChannelResolver interface {
	Channel(channelID string) (*ChannelInfo, error)
}

// SpeakingEvent signals that a speaker started talking.
type SpeakingEvent struct {
	UserID string
}

// Transport establishes voice connections. Join blocks until the connection
// reaches a ready state or the handshake times out.
type Transport interface {
	Join(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is one live voice connection. States delivers connection state
// transitions until the connection is destroyed; Destroy is idempotent.
type Connection interface {
	States() <-chan ConnState
	Receiver() Receiver
	Destroy() error
}

// Receiver yields per-speaker audio from a connection.
type Receiver interface {
	// Speaking emits one event each time a speaker starts talking.
	Speaking() <-chan SpeakingEvent
	// OpenStream returns the speaker's encoded audio frames. The channel is
	// closed once the silence gap elapses with no further audio.
	OpenStream(userID string) <-chan []byte
}

// Player plays one synthesized reply at a time into the call.
type Player interface {
	Play(path string) error
	Stop() error
	States() <-chan PlayerState
	Playing() bool
}

// Decoder decodes one speaker's encoded frames to interleaved 16-bit PCM.
// Decoders are stateful and not safe for concurrent use; the manager creates
// one per capture via its decoder factory.
type Decoder interface {
	Decode(frame []byte) ([]int16, error)
}

// DecoderFactory produces a fresh decoder for one capture.
type DecoderFactory func() (Decoder, error)

// Transcriber converts a captured WAV file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ReplyAgent generates the agent's reply for an incoming utterance.
type ReplyAgent interface {
	Reply(ctx context.Context, route RouteContext, message string) (string, error)
}

// SynthesisResult is the outcome of a text-to-speech request.
type SynthesisResult struct {
	Success   bool
	AudioPath string
	Err       error
}

// Synthesizer turns reply text into a playable audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) SynthesisResult
}

// Resolver maps a speaker id to a human-readable label. Implementations
// return "" when nothing better than the raw id is known.
type Resolver interface {
	DisplayName(guildID, userID string) string
}

// NoopResolver never resolves a label; the pipeline falls back to raw ids.
type NoopResolver struct{}

func (NoopResolver) DisplayName(guildID, userID string) string { return "" }

// TranscriptLog records processed utterances. Best-effort: failures are
// logged by the caller and never stall the pipeline.
type TranscriptLog interface {
	LogUtterance(ctx context.Context, guildID, speakerID, label, transcript, reply string) error
}
