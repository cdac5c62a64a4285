package core

import "github.com/carewire/teleconsult/internal/domain"

// ConnID identifies one live transport connection.
type ConnID string

// Conn abstracts the outbound half of a participant's transport connection.
// Owned by the adapter; the adapter must Close() it. TrySend must never
// block: implementations drop the event and return an error instead.
type Conn interface {
	TrySend(event any) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// ParticipantDTO is a read-only view for APIs (no transport fields).
type ParticipantDTO struct {
	Name     string         `json:"name"`
	Meta     map[string]any `json:"meta,omitempty"`
	JoinedAt string         `json:"joined_at"`
}

// RoomInfo is the listing view of a live consultation.
type RoomInfo struct {
	ID               domain.ConsultationID `json:"id"`
	ParticipantCount int                   `json:"participant_count"`
}
