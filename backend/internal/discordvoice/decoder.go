package discordvoice

import (
	"fmt"

	"github.com/hraban/opus"

	"voxa/backend/internal/voice"
)

// maxDecodedSamples holds the largest legal opus frame: 120 ms at 48 kHz,
// stereo interleaved.
const maxDecodedSamples = 5760 * voice.Channels

// Decoder decodes one speaker's opus frames to 48 kHz stereo PCM. Stateful,
// so the manager creates one per capture through NewDecoder.
type Decoder struct {
	dec *opus.Decoder
	buf []int16
}

// NewDecoder is the voice.DecoderFactory for Discord captures.
func NewDecoder() (voice.Decoder, error) {
	dec, err := opus.NewDecoder(voice.SampleRate, voice.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}
	return &Decoder{dec: dec, buf: make([]int16, maxDecodedSamples)}, nil
}

// Decode returns the frame's interleaved samples, or an error for malformed
// input. Callers skip failed frames rather than aborting the capture.
func (d *Decoder) Decode(frame []byte) ([]int16, error) {
	if len(frame) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(frame, d.buf)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n*voice.Channels)
	copy(out, d.buf[:n*voice.Channels])
	return out, nil
}
