package domain

import "time"

// ConsultationID is the caller-supplied identifier that scopes a live room.
type ConsultationID string

// ChatMessage is one entry of a consultation's chat log. The timestamp is
// assigned by the server at receipt so there is a single consistent order.
// Immutable once appended.
type ChatMessage struct {
	Sender    Identity  `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent is one recognized speech segment. Speaker is always the
// identity bound to the originating connection, never taken from the payload.
// Immutable once appended.
type TranscriptEvent struct {
	Speaker   Identity  `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
