package discordvoice

import (
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
)

// readyPollInterval is how often the monitor samples the gateway's ready
// flag; discordgo surfaces reconnects only through that flag.
const readyPollInterval = 500 * time.Millisecond

// connection adapts a discordgo VoiceConnection to the voice.Connection
// contract: state transitions on a channel, a per-speaker receiver and an
// idempotent destroy.
type connection struct {
	vc     *discordgo.VoiceConnection
	states chan voice.ConnState
	recv   *receiver
	logger *zap.Logger

	done    chan struct{}
	destroy sync.Once
	errOnce error
}

func newConnection(vc *discordgo.VoiceConnection, silenceGap time.Duration, logger *zap.Logger) *connection {
	c := &connection{
		vc:     vc,
		states: make(chan voice.ConnState, 8),
		logger: logger,
		done:   make(chan struct{}),
	}
	c.recv = newReceiver(vc, silenceGap, c.done, logger)
	c.emit(voice.ConnReady)
	go c.monitor()
	return c
}

func (c *connection) States() <-chan voice.ConnState { return c.states }
func (c *connection) Receiver() voice.Receiver       { return c.recv }

// emit never blocks; a slow observer misses intermediate transitions rather
// than stalling the monitor. Only the monitor goroutine (and the constructor,
// before the monitor starts) sends on or closes the states channel.
func (c *connection) emit(st voice.ConnState) {
	select {
	case c.states <- st:
	default:
	}
}

// monitor translates discordgo's ready flag into Ready/Disconnected
// transitions, and emits the terminal Destroyed state before closing the
// states channel.
func (c *connection) monitor() {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	last := voice.ConnReady
	for {
		select {
		case <-c.done:
			c.emit(voice.ConnDestroyed)
			close(c.states)
			return
		case <-ticker.C:
			c.vc.RLock()
			ready := c.vc.Ready
			c.vc.RUnlock()

			st := voice.ConnReady
			if !ready {
				st = voice.ConnDisconnected
			}
			if st != last {
				last = st
				c.logger.Debug("Voice connection state change",
					zap.String("guild_id", c.vc.GuildID),
					zap.String("state", st.String()))
				c.emit(st)
			}
		}
	}
}

// Destroy disconnects from the gateway; the monitor reports the terminal
// state.
func (c *connection) Destroy() error {
	c.destroy.Do(func() {
		close(c.done)
		c.errOnce = c.vc.Disconnect()
	})
	return c.errOnce
}
