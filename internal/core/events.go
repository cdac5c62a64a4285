package core

import "github.com/carewire/teleconsult/internal/domain"

// Outbound wire vocabulary. The transport adapter serializes these as-is,
// so recipient sets and payload shapes stay auditable in one place.
const (
	TypeParticipantJoined = "participant-joined"
	TypeHistory           = "consultation-history"
	TypeMessage           = "message"
	TypeTranscriptUpdate  = "transcript-update"
	TypeParticipantLeft   = "participant-left"
)

type ParticipantJoinedEvent struct {
	Type     string          `json:"type"`
	Identity domain.Identity `json:"identity"`
}

type HistoryEvent struct {
	Type        string                   `json:"type"`
	Messages    []domain.ChatMessage     `json:"messages"`
	Transcripts []domain.TranscriptEvent `json:"transcripts"`
}

type MessageEvent struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

type TranscriptUpdateEvent struct {
	Type       string                 `json:"type"`
	Transcript domain.TranscriptEvent `json:"transcript"`
}

type ParticipantLeftEvent struct {
	Type     string          `json:"type"`
	Identity domain.Identity `json:"identity"`
}

func NewParticipantJoined(id domain.Identity) ParticipantJoinedEvent {
	return ParticipantJoinedEvent{Type: TypeParticipantJoined, Identity: id}
}

// NewHistory always carries non-nil slices so an empty room renders as
// empty arrays, not null.
func NewHistory(messages []domain.ChatMessage, transcripts []domain.TranscriptEvent) HistoryEvent {
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	if transcripts == nil {
		transcripts = []domain.TranscriptEvent{}
	}
	return HistoryEvent{Type: TypeHistory, Messages: messages, Transcripts: transcripts}
}

func NewMessage(m domain.ChatMessage) MessageEvent {
	return MessageEvent{Type: TypeMessage, Message: m}
}

func NewTranscriptUpdate(e domain.TranscriptEvent) TranscriptUpdateEvent {
	return TranscriptUpdateEvent{Type: TypeTranscriptUpdate, Transcript: e}
}

func NewParticipantLeft(id domain.Identity) ParticipantLeftEvent {
	return ParticipantLeftEvent{Type: TypeParticipantLeft, Identity: id}
}
