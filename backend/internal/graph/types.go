package graph

import "time"

// Utterance is one recorded voice exchange.
type Utterance struct {
	ID         string    `json:"id"`
	SpeakerID  string    `json:"speaker_id"`
	Label      string    `json:"label"`
	Transcript string    `json:"transcript"`
	Reply      string    `json:"reply"`
	At         time.Time `json:"at"`
}
