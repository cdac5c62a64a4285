package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/domain"
)

// Registry maps consultation ids to their live rooms. A room exists here
// iff it has at least one participant: it is created on first join and
// evicted the moment its participant count reaches zero, taking both logs
// with it (history is not persisted anywhere else).
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.ConsultationID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.ConsultationID]*Room)}
}

func (r *Registry) GetOrCreate(id domain.ConsultationID) *Room {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	r.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("consultation", string(id)).Msg("room created")
	return room
}

func (r *Registry) Get(id domain.ConsultationID) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// RemoveParticipant drops the connection from the room and evicts the room
// when it empties. No-op if the room or participant is already gone.
func (r *Registry) RemoveParticipant(id domain.ConsultationID, cid ConnID) (domain.Participant, Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return domain.Participant{}, nil, false
	}
	p, conn, removed := room.RemoveParticipant(cid)
	if !removed {
		return domain.Participant{}, nil, false
	}
	if room.ParticipantCount() == 0 {
		delete(r.rooms, id)
		log.Info().Str("module", "core.registry").Str("consultation", string(id)).Msg("room evicted")
	}
	return p, conn, true
}

// AppendMessage adds to the room's chat log if the room still exists.
// A vanished room is a normal race, not an error.
func (r *Registry) AppendMessage(id domain.ConsultationID, m domain.ChatMessage) bool {
	room, ok := r.Get(id)
	if !ok {
		return false
	}
	room.AppendMessage(m)
	return true
}

func (r *Registry) AppendTranscript(id domain.ConsultationID, e domain.TranscriptEvent) bool {
	room, ok := r.Get(id)
	if !ok {
		return false
	}
	room.AppendTranscript(e)
	return true
}

// List reports the live rooms. A room between GetOrCreate and its first
// AddParticipant has zero participants; those are skipped so callers only
// ever see rooms someone is actually in.
func (r *Registry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		n := room.ParticipantCount()
		if n == 0 {
			continue
		}
		out = append(out, RoomInfo{ID: id, ParticipantCount: n})
	}
	return out
}
