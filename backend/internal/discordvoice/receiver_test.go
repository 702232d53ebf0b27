package discordvoice

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newTestReceiver(t *testing.T, gap time.Duration) (*receiver, *discordgo.VoiceConnection, chan struct{}) {
	t.Helper()
	vc := &discordgo.VoiceConnection{
		OpusRecv: make(chan *discordgo.Packet, 16),
	}
	done := make(chan struct{})
	r := newReceiver(vc, gap, done, zap.NewNop())
	t.Cleanup(func() {
		select {
		case <-done:
		default:
			close(done)
		}
	})
	return r, vc, done
}

func TestReceiverEmitsSpeakingStarted(t *testing.T) {
	r, vc, _ := newTestReceiver(t, time.Second)

	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 5, Speaking: true})

	select {
	case ev := <-r.Speaking():
		if ev.UserID != "u1" {
			t.Errorf("Expected event for u1, got %s", ev.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a speaking event")
	}
}

func TestReceiverMapsSSRCWithoutEventOnStop(t *testing.T) {
	r, vc, _ := newTestReceiver(t, time.Second)

	// Speaking:false still records the SSRC mapping but emits nothing.
	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 5, Speaking: false})

	select {
	case ev := <-r.Speaking():
		t.Fatalf("Unexpected speaking event: %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ssrcMap[5] != "u1" {
		t.Error("Expected SSRC 5 to be mapped to u1")
	}
}

func TestReceiverDeliversFramesToOpenStream(t *testing.T) {
	r, vc, _ := newTestReceiver(t, time.Second)

	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 5, Speaking: true})
	stream := r.OpenStream("u1")

	vc.OpusRecv <- &discordgo.Packet{SSRC: 5, Opus: []byte{0xde, 0xad}}

	select {
	case frame := <-stream:
		if len(frame) != 2 || frame[0] != 0xde {
			t.Errorf("Unexpected frame: %v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the packet to reach the speaker's stream")
	}
}

func TestReceiverDropsUnmappedSSRC(t *testing.T) {
	r, vc, _ := newTestReceiver(t, time.Second)

	stream := r.OpenStream("u1")
	vc.OpusRecv <- &discordgo.Packet{SSRC: 99, Opus: []byte{0x01}}

	select {
	case frame := <-stream:
		t.Fatalf("Unexpected frame from unmapped SSRC: %v", frame)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestReceiverClosesStreamAfterSilenceGap(t *testing.T) {
	r, vc, _ := newTestReceiver(t, 40*time.Millisecond)

	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 5, Speaking: true})
	stream := r.OpenStream("u1")

	vc.OpusRecv <- &discordgo.Packet{SSRC: 5, Opus: []byte{0x01}}

	var frames int
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				if frames != 1 {
					t.Errorf("Expected 1 frame before close, got %d", frames)
				}
				return
			}
			frames++
		case <-deadline:
			t.Fatal("Stream never closed after the silence gap")
		}
	}
}

func TestReceiverReusesOpenStream(t *testing.T) {
	r, _, _ := newTestReceiver(t, time.Second)

	a := r.OpenStream("u1")
	b := r.OpenStream("u1")
	if a != b {
		t.Error("Expected OpenStream to return the existing open stream")
	}
}

func TestReceiverStopsCleanly(t *testing.T) {
	r, vc, done := newTestReceiver(t, time.Second)

	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 5, Speaking: true})
	<-r.Speaking()
	stream := r.OpenStream("u1")

	close(done)

	for range stream {
	}
	if _, ok := <-r.Speaking(); ok {
		t.Error("Expected speaking channel to close on stop")
	}

	// Late updates after stop must not panic or emit.
	r.handleSpeakingUpdate(vc, &discordgo.VoiceSpeakingUpdate{UserID: "u2", SSRC: 6, Speaking: true})

	// A stream opened after stop is already closed.
	if _, ok := <-r.OpenStream("u3"); ok {
		t.Error("Expected post-stop streams to be closed")
	}
}
