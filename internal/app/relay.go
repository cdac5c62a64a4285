package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/domain"
)

// Engine is the relay state machine. Every transition for every room runs
// under one mutex, so a room's log append and the matching broadcast are
// atomic relative to all other events: timestamp order == append order ==
// delivery order within a room.
//
// Misbehaving input never surfaces an error. A connection that sends before
// joining, joins twice, or races its own disconnect resolves to a no-op;
// callers that care watch the logs.
type Engine struct {
	mu    sync.Mutex
	rooms *core.Registry
	dir   *Directory
	now   func() time.Time
}

func NewEngine(rooms *core.Registry, dir *Directory) *Engine {
	return &Engine{rooms: rooms, dir: dir, now: time.Now}
}

// Join binds the connection, adds it to the room, announces it to everyone
// already there, and replays the room's history to the newcomer. A second
// join for a live connection is a logged anomaly and does nothing.
func (e *Engine) Join(cid core.ConnID, id domain.ConsultationID, identity domain.Identity, conn core.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev, _, ok := e.dir.Resolve(cid); ok {
		log.Warn().Str("module", "app.relay").Str("cid", string(cid)).
			Str("consultation", string(prev)).Msg("duplicate join ignored")
		return
	}

	e.dir.Bind(cid, id, identity)
	room := e.rooms.GetOrCreate(id)

	// Announce before adding so the newcomer never hears about itself.
	res := room.Broadcast("", core.NewParticipantJoined(identity))
	room.AddParticipant(cid, domain.NewParticipant(identity), conn)

	messages, transcripts := room.History()
	if err := conn.TrySend(core.NewHistory(messages, transcripts)); err != nil {
		log.Warn().Str("module", "app.relay").Str("cid", string(cid)).Msg("history replay dropped")
	}
	log.Info().Str("module", "app.relay").Str("cid", string(cid)).
		Str("consultation", string(id)).Str("name", identity.Name).
		Int("participants", room.ParticipantCount()).Msg("joined")
	e.kickDropped(id, res)
}

// Message appends a chat message with a server timestamp and fans it out to
// the whole room, sender included, so every UI renders the authoritative
// copy instead of its local echo.
func (e *Engine) Message(cid core.ConnID, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, identity, ok := e.dir.Resolve(cid)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("cid", string(cid)).Msg("message from unbound connection")
		return
	}
	msg := domain.ChatMessage{Sender: identity, Text: text, Timestamp: e.now().UTC()}
	if !e.rooms.AppendMessage(id, msg) {
		return
	}
	room, ok := e.rooms.Get(id)
	if !ok {
		return
	}
	res := room.Broadcast("", core.NewMessage(msg))
	log.Debug().Str("module", "app.relay").Str("consultation", string(id)).
		Int("sent_to", res.SentTo).Msg("message relayed")
	e.kickDropped(id, res)
}

// TranscriptSegment appends a recognized speech segment and fans it out to
// everyone except the originating connection, which already rendered the
// text locally. The speaker is always the bound identity; a speaker field
// in the inbound payload is never trusted.
func (e *Engine) TranscriptSegment(cid core.ConnID, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, identity, ok := e.dir.Resolve(cid)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("cid", string(cid)).Msg("transcript from unbound connection")
		return
	}
	evt := domain.TranscriptEvent{Speaker: identity, Text: text, Timestamp: e.now().UTC()}
	if !e.rooms.AppendTranscript(id, evt) {
		return
	}
	room, ok := e.rooms.Get(id)
	if !ok {
		return
	}
	res := room.Broadcast(cid, core.NewTranscriptUpdate(evt))
	log.Debug().Str("module", "app.relay").Str("consultation", string(id)).
		Int("sent_to", res.SentTo).Msg("transcript relayed")
	e.kickDropped(id, res)
}

// Disconnect removes the participant, evicts the room if it emptied, and
// tells whoever is left. Safe to call any number of times.
func (e *Engine) Disconnect(cid core.ConnID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, identity, ok := e.dir.Resolve(cid)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("cid", string(cid)).Msg("disconnect for unbound connection")
		return
	}
	e.rooms.RemoveParticipant(id, cid)
	e.dir.Unbind(cid)

	if room, stillThere := e.rooms.Get(id); stillThere {
		room.Broadcast("", core.NewParticipantLeft(identity))
	}
	log.Info().Str("module", "app.relay").Str("cid", string(cid)).
		Str("consultation", string(id)).Str("name", identity.Name).Msg("left")
}

// kickDropped evicts members whose send buffer overflowed. A receiver that
// cannot keep up gets its connection closed rather than stalling the room.
func (e *Engine) kickDropped(id domain.ConsultationID, res core.PublishResult) {
	for _, dcid := range res.Dropped {
		log.Warn().Str("module", "app.relay").Str("cid", string(dcid)).
			Str("consultation", string(id)).Msg("backpressure, kicking member")
		_, conn, ok := e.rooms.RemoveParticipant(id, dcid)
		if !ok {
			continue
		}
		_, identity, bound := e.dir.Resolve(dcid)
		e.dir.Unbind(dcid)
		if conn != nil {
			conn.Close()
		}
		if room, stillThere := e.rooms.Get(id); stillThere && bound {
			room.Broadcast("", core.NewParticipantLeft(identity))
		}
	}
}
