package discordvoice

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hraban/opus"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
)

const (
	playFrameSamples = 960 // 20 ms per channel at 48 kHz
	playFrameSize    = playFrameSamples * voice.Channels
	playSendTimeout  = 5 * time.Second
	maxOpusFrameLen  = 4000
)

// Player streams a WAV file into the call as 20 ms opus frames. One play at a
// time; the session's playback queue provides the serialization, Stop cancels
// a play mid-stream for barge-in.
type Player struct {
	vc     *discordgo.VoiceConnection
	logger *zap.Logger
	states chan voice.PlayerState

	mu      sync.Mutex
	playing bool
	cancel  context.CancelFunc
}

// NewPlayer builds one player per connection. The factory shape matches what
// the session manager wires in.
func NewPlayer(logger *zap.Logger) func(conn voice.Connection) voice.Player {
	return func(conn voice.Connection) voice.Player {
		dc, ok := conn.(*connection)
		if !ok {
			// Non-discord connections (tests) never reach this factory.
			return &Player{logger: logger, states: make(chan voice.PlayerState, 8)}
		}
		return &Player{vc: dc.vc, logger: logger, states: make(chan voice.PlayerState, 8)}
	}
}

func (p *Player) States() <-chan voice.PlayerState { return p.states }

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Player) emit(st voice.PlayerState) {
	select {
	case p.states <- st:
	default:
	}
}

// Play starts streaming the file and returns once the stream goroutine is
// launched. Observers follow the Buffering/Playing/Idle transitions on
// States.
func (p *Player) Play(path string) error {
	if p.vc == nil {
		return fmt.Errorf("player: no voice connection")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("player: failed to read audio file: %w", err)
	}
	info, payload, err := voice.ParseWAV(raw)
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if info.BitsPerSample != 16 {
		return fmt.Errorf("player: unsupported bit depth %d", info.BitsPerSample)
	}
	samples := resampleTo48kStereo(voice.BytesToSamples(payload), info.SampleRate, info.Channels)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.playing = true
	p.mu.Unlock()

	p.emit(voice.PlayerBuffering)
	go p.stream(ctx, samples)
	return nil
}

func (p *Player) stream(ctx context.Context, samples []int16) {
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		_ = p.vc.Speaking(false)
		p.emit(voice.PlayerIdle)
	}()

	enc, err := opus.NewEncoder(voice.SampleRate, voice.Channels, opus.AppVoIP)
	if err != nil {
		p.logger.Error("Failed to create opus encoder", zap.Error(err))
		return
	}
	if err := p.vc.Speaking(true); err != nil {
		p.logger.Warn("Failed to set speaking state", zap.Error(err))
	}

	p.emit(voice.PlayerPlaying)

	buf := make([]byte, maxOpusFrameLen)
	frame := make([]int16, playFrameSize)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off < len(samples); off += playFrameSize {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		end := off + playFrameSize
		if end > len(samples) {
			// Pad the final partial frame with silence.
			for i := range frame {
				frame[i] = 0
			}
			copy(frame, samples[off:])
		} else {
			copy(frame, samples[off:end])
		}

		n, err := enc.Encode(frame, buf)
		if err != nil {
			p.logger.Warn("Opus encode failed; stopping playback", zap.Error(err))
			return
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		select {
		case p.vc.OpusSend <- packet:
		case <-ctx.Done():
			return
		case <-time.After(playSendTimeout):
			p.logger.Warn("Timed out sending audio frame; stopping playback")
			return
		}
	}
}

// Stop cancels the in-flight play, if any.
func (p *Player) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// resampleTo48kStereo converts arbitrary-rate mono/stereo PCM to the fixed
// playback format with nearest-sample interpolation. Synthesized speech often
// arrives at 24 kHz mono.
func resampleTo48kStereo(samples []int16, rate, channels int) []int16 {
	if rate <= 0 || channels <= 0 || len(samples) == 0 {
		return nil
	}
	if rate == voice.SampleRate && channels == voice.Channels {
		return samples
	}

	inFrames := len(samples) / channels
	outFrames := int(int64(inFrames) * int64(voice.SampleRate) / int64(rate))
	out := make([]int16, 0, outFrames*voice.Channels)
	for i := 0; i < outFrames; i++ {
		src := int(int64(i) * int64(rate) / int64(voice.SampleRate))
		if src >= inFrames {
			src = inFrames - 1
		}
		left := samples[src*channels]
		right := left
		if channels >= 2 {
			right = samples[src*channels+1]
		}
		out = append(out, left, right)
	}
	return out
}
