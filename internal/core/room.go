package core

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/carewire/teleconsult/internal/domain"
)

type member struct {
	cid  ConnID
	meta domain.Participant
	conn Conn
}

// Room is the live state of one consultation: participants in join order
// plus the append-only chat and transcript logs. It never closes
// adapter-owned connections.
type Room struct {
	id domain.ConsultationID

	mu          sync.RWMutex
	members     []member
	messages    []domain.ChatMessage
	transcripts []domain.TranscriptEvent
}

func NewRoom(id domain.ConsultationID) *Room {
	return &Room{id: id}
}

func (r *Room) ID() domain.ConsultationID { return r.id }

func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) AddParticipant(cid ConnID, p domain.Participant, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, member{cid: cid, meta: p, conn: conn})
}

// RemoveParticipant drops the member with the given connection id,
// preserving join order of the rest. Returns the removed participant and
// its connection so the caller can close transport resources it owns.
func (r *Room) RemoveParticipant(cid ConnID) (domain.Participant, Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.cid == cid {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return m.meta, m.conn, true
		}
	}
	return domain.Participant{}, nil, false
}

func (r *Room) AppendMessage(m domain.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Room) AppendTranscript(e domain.TranscriptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, e)
}

// History returns copies of both logs in append order.
func (r *Room) History() ([]domain.ChatMessage, []domain.TranscriptEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	messages := make([]domain.ChatMessage, len(r.messages))
	copy(messages, r.messages)
	transcripts := make([]domain.TranscriptEvent, len(r.transcripts))
	copy(transcripts, r.transcripts)
	return messages, transcripts
}

// Broadcast fans the event out to every member except exclude. Pass an
// empty ConnID to include everyone. Members whose send buffer is full are
// reported as dropped, never waited on.
func (r *Room) Broadcast(exclude ConnID, event any) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, m := range r.members {
		if m.cid == exclude {
			continue
		}
		if err := m.conn.TrySend(event); err != nil {
			res.Dropped = append(res.Dropped, m.cid)
			continue
		}
		res.SentTo++
	}
	return res
}

func (r *Room) ParticipantsSnapshot() []ParticipantDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.members, func(m member, _ int) ParticipantDTO {
		return ParticipantDTO{
			Name:     m.meta.Identity.Name,
			Meta:     m.meta.Identity.Meta,
			JoinedAt: m.meta.JoinedAt.Format(time.RFC3339),
		}
	})
}
