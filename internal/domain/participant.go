package domain

import "time"

// Participant is one live connection inside a consultation.
// No transport or lifecycle logic here.
type Participant struct {
	Identity Identity
	JoinedAt time.Time
}

// NewParticipant avoids raw literals in adapters.
func NewParticipant(id Identity) Participant {
	return Participant{Identity: id, JoinedAt: time.Now().UTC()}
}
