package discordvoice

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
)

const (
	speakingEventBuffer = 16
	streamFrameBuffer   = 256
)

// speakerStream is one speaker's open capture stream. The gap timer is reset
// on every frame; when it fires the stream closes, which is the capture's
// end-of-utterance signal.
type speakerStream struct {
	frames chan []byte
	timer  *time.Timer
	closed bool
}

// receiver demultiplexes the connection's single RTP packet stream into
// per-speaker frame channels, keyed through the SSRC->user mapping that
// speaking updates provide.
type receiver struct {
	vc         *discordgo.VoiceConnection
	silenceGap time.Duration
	logger     *zap.Logger
	done       <-chan struct{}

	speaking chan voice.SpeakingEvent

	mu      sync.Mutex
	ssrcMap map[uint32]string
	streams map[string]*speakerStream
	stopped bool
}

func newReceiver(vc *discordgo.VoiceConnection, silenceGap time.Duration, done <-chan struct{}, logger *zap.Logger) *receiver {
	r := &receiver{
		vc:         vc,
		silenceGap: silenceGap,
		logger:     logger,
		done:       done,
		speaking:   make(chan voice.SpeakingEvent, speakingEventBuffer),
		ssrcMap:    make(map[uint32]string),
		streams:    make(map[string]*speakerStream),
	}
	vc.AddHandler(r.handleSpeakingUpdate)
	go r.demux()
	return r
}

func (r *receiver) Speaking() <-chan voice.SpeakingEvent { return r.speaking }

// handleSpeakingUpdate maps SSRC to user and emits speaking-started events.
func (r *receiver) handleSpeakingUpdate(vc *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
	if su.UserID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.ssrcMap[uint32(su.SSRC)] = su.UserID

	if !su.Speaking {
		return
	}
	select {
	case r.speaking <- voice.SpeakingEvent{UserID: su.UserID}:
	default:
		r.logger.Warn("Dropping speaking event; listener busy",
			zap.String("user_id", su.UserID))
	}
}

// OpenStream returns the speaker's frame channel, opening one if needed. The
// channel closes once the silence gap elapses without audio.
func (r *receiver) OpenStream(userID string) <-chan []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		closed := make(chan []byte)
		close(closed)
		return closed
	}
	if st, ok := r.streams[userID]; ok && !st.closed {
		return st.frames
	}

	st := &speakerStream{frames: make(chan []byte, streamFrameBuffer)}
	st.timer = time.AfterFunc(r.silenceGap, func() { r.closeStream(userID, st) })
	r.streams[userID] = st
	return st.frames
}

func (r *receiver) closeStream(userID string, st *speakerStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	close(st.frames)
	if r.streams[userID] == st {
		delete(r.streams, userID)
	}
}

// demux routes incoming packets to the speaker's open stream. Packets for
// speakers without an open stream, or with an unmapped SSRC, are dropped.
func (r *receiver) demux() {
	for {
		select {
		case <-r.done:
			r.closeAll()
			return
		case p, ok := <-r.vc.OpusRecv:
			if !ok {
				r.closeAll()
				return
			}
			if p == nil || len(p.Opus) == 0 {
				continue
			}
			r.deliver(p)
		}
	}
}

func (r *receiver) deliver(p *discordgo.Packet) {
	frame := make([]byte, len(p.Opus))
	copy(frame, p.Opus)

	// The send happens under the lock so the gap timer can never close the
	// channel out from under it; the channel is buffered and the send
	// non-blocking, so the lock is held only briefly.
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, mapped := r.ssrcMap[p.SSRC]
	if !mapped {
		return
	}
	st, open := r.streams[userID]
	if !open || st.closed {
		return
	}
	st.timer.Reset(r.silenceGap)
	select {
	case st.frames <- frame:
	default:
		// Consumer is behind; dropping one frame beats blocking the demux
		// loop for every speaker.
	}
}

func (r *receiver) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	for userID, st := range r.streams {
		if !st.closed {
			st.closed = true
			st.timer.Stop()
			close(st.frames)
		}
		delete(r.streams, userID)
	}
	close(r.speaking)
}
