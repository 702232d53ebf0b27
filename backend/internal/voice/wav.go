package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Fixed output format for captured utterances.
const (
	SampleRate     = 48000
	Channels       = 2
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8

	wavHeaderSize = 44
)

// EncodeWAV wraps interleaved 16-bit PCM samples in a RIFF/WAVE container at
// the fixed 48 kHz stereo format. The 44-byte header is byte-exact so any
// standard playback tool accepts the file.
func EncodeWAV(samples []int16) []byte {
	dataSize := len(samples) * BytesPerSample
	byteRate := SampleRate * Channels * BytesPerSample
	blockAlign := Channels * BytesPerSample

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM format tag
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

// PCMDuration computes playback time for a sample count at the fixed format.
func PCMDuration(sampleCount int) time.Duration {
	bytes := sampleCount * BytesPerSample
	perSecond := BytesPerSample * Channels * SampleRate
	return time.Duration(float64(bytes) / float64(perSecond) * float64(time.Second))
}

// WAVInfo is the format declared by a parsed container.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// ParseWAV reads a RIFF/WAVE container and returns its declared format and
// the raw payload of the data chunk.
func ParseWAV(b []byte) (*WAVInfo, []byte, error) {
	if len(b) < wavHeaderSize {
		return nil, nil, fmt.Errorf("wav: file too short (%d bytes)", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("wav: missing RIFF/WAVE magic")
	}

	info := &WAVInfo{}
	var data []byte
	// Walk chunks; tolerate extra chunks (LIST, fact) some encoders emit.
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, nil, fmt.Errorf("wav: fmt chunk too short")
			}
			info.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
		case "data":
			data = b[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + (size & 1)
	}

	if info.SampleRate == 0 || info.Channels == 0 {
		return nil, nil, fmt.Errorf("wav: no fmt chunk")
	}
	if data == nil {
		return nil, nil, fmt.Errorf("wav: no data chunk")
	}
	return info, data, nil
}

// BytesToSamples converts little-endian PCM bytes to int16 samples, dropping
// a trailing odd byte.
func BytesToSamples(b []byte) []int16 {
	n := len(b) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return samples
}
