package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	events []any
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("send buffer full")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Events() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.events))
	copy(out, c.events)
	return out
}

func newTestEngine() (*Engine, *core.Registry, *Directory) {
	rooms := core.NewRegistry()
	dir := NewDirectory()
	engine := NewEngine(rooms, dir)
	return engine, rooms, dir
}

func alice() domain.Identity { return domain.Identity{Name: "Alice"} }
func bob() domain.Identity   { return domain.Identity{Name: "Bob"} }

func TestEngine_Join_CreatesRoomAndRepliesWithEmptyHistory(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()
	conn := &fakeConn{}

	engine.Join("conn-a", "R1", alice(), conn)

	room, ok := rooms.Get("R1")
	req.True(ok)
	req.Equal(1, room.ParticipantCount())

	events := conn.Events()
	req.Len(events, 1)
	history, ok := events[0].(core.HistoryEvent)
	req.True(ok)
	req.Empty(history.Messages)
	req.Empty(history.Transcripts)
	req.NotNil(history.Messages)
	req.NotNil(history.Transcripts)
}

func TestEngine_Join_NotifiesOthersButNotJoiner(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}

	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	// Alice hears about Bob.
	eventsA := consultEventsOfType(connA.Events(), core.TypeParticipantJoined)
	req.Len(eventsA, 1)
	req.Equal("Bob", eventsA[0].(core.ParticipantJoinedEvent).Identity.Name)

	// Bob only gets history, never his own arrival.
	for _, e := range connB.Events() {
		_, isJoin := e.(core.ParticipantJoinedEvent)
		req.False(isJoin)
	}
}

func TestEngine_DuplicateJoin_IsNoOp(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()
	conn := &fakeConn{}

	engine.Join("conn-a", "R1", alice(), conn)
	engine.Join("conn-a", "R2", alice(), conn)

	_, ok := rooms.Get("R2")
	req.False(ok)
	room, ok := rooms.Get("R1")
	req.True(ok)
	req.Equal(1, room.ParticipantCount())
}

func TestEngine_Message_IncludesSenderInBroadcast(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	engine.Message("conn-a", "hi")

	for _, conn := range []*fakeConn{connA, connB} {
		msgs := consultEventsOfType(conn.Events(), core.TypeMessage)
		req.Len(msgs, 1)
		evt := msgs[0].(core.MessageEvent)
		req.Equal("Alice", evt.Message.Sender.Name)
		req.Equal("hi", evt.Message.Text)
		req.False(evt.Message.Timestamp.IsZero())
	}
}

func TestEngine_Message_FromUnboundConnection_IsIgnored(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()

	engine.Message("ghost", "boo")

	req.Empty(rooms.List())
}

func TestEngine_Transcript_ExcludesSenderFromBroadcast(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	engine.TranscriptSegment("conn-b", "hello there")

	// Alice receives the transcript.
	updates := consultEventsOfType(connA.Events(), core.TypeTranscriptUpdate)
	req.Len(updates, 1)
	evt := updates[0].(core.TranscriptUpdateEvent)
	req.Equal("Bob", evt.Transcript.Speaker.Name)
	req.Equal("hello there", evt.Transcript.Text)

	// Bob, the origin, does not.
	req.Empty(consultEventsOfType(connB.Events(), core.TypeTranscriptUpdate))
}

func TestEngine_Transcript_SpeakerIsAlwaysBoundIdentity(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	engine.TranscriptSegment("conn-b", "I am definitely Alice")

	room, _ := rooms.Get("R1")
	_, transcripts := room.History()
	req.Len(transcripts, 1)
	req.Equal("Bob", transcripts[0].Speaker.Name)
}

func TestEngine_HistoryReplay_IsExhaustiveAndOrdered(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine()
	connA := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)

	engine.Message("conn-a", "one")
	engine.Message("conn-a", "two")
	engine.TranscriptSegment("conn-a", "spoken")
	engine.Message("conn-a", "three")

	connB := &fakeConn{}
	engine.Join("conn-b", "R1", bob(), connB)

	events := connB.Events()
	req.NotEmpty(events)
	history, ok := events[0].(core.HistoryEvent)
	req.True(ok, "history must precede any broadcast to the joiner")
	req.Len(history.Messages, 3)
	req.Equal([]string{"one", "two", "three"}, []string{
		history.Messages[0].Text, history.Messages[1].Text, history.Messages[2].Text,
	})
	req.Len(history.Transcripts, 1)
	req.Equal("spoken", history.Transcripts[0].Text)
}

func TestEngine_Disconnect_NotifiesRemainingAndEvictsEmptyRoom(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	engine.Disconnect("conn-a")

	left := consultEventsOfType(connB.Events(), core.TypeParticipantLeft)
	req.Len(left, 1)
	req.Equal("Alice", left[0].(core.ParticipantLeftEvent).Identity.Name)

	room, ok := rooms.Get("R1")
	req.True(ok)
	req.Equal(1, room.ParticipantCount())

	engine.Disconnect("conn-b")
	_, ok = rooms.Get("R1")
	req.False(ok, "room must be evicted when the last participant leaves")
}

func TestEngine_Disconnect_IsIdempotent(t *testing.T) {
	req := require.New(t)
	engine, rooms, dir := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R1", bob(), connB)

	engine.Disconnect("conn-a")
	before := connB.Events()
	engine.Disconnect("conn-a")

	req.Equal(before, connB.Events(), "second disconnect must not emit anything")
	_, _, bound := dir.Resolve("conn-a")
	req.False(bound)
	room, _ := rooms.Get("R1")
	req.Equal(1, room.ParticipantCount())
}

func TestEngine_ParticipantCount_MatchesJoinsMinusLeaves(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()

	joins := []core.ConnID{"c1", "c2", "c3", "c4"}
	for _, cid := range joins {
		engine.Join(cid, "R1", alice(), &fakeConn{})
	}
	room, _ := rooms.Get("R1")
	req.Equal(4, room.ParticipantCount())

	engine.Disconnect("c2")
	engine.Disconnect("c4")
	req.Equal(2, room.ParticipantCount())

	engine.Disconnect("c1")
	engine.Disconnect("c3")
	_, ok := rooms.Get("R1")
	req.False(ok)
}

func TestEngine_RoomsAreIndependent(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newTestEngine()
	connA := &fakeConn{}
	connB := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-b", "R2", bob(), connB)

	engine.Message("conn-a", "only for R1")

	req.Empty(consultEventsOfType(connB.Events(), core.TypeMessage))
}

func TestEngine_Backpressure_KicksSlowMember(t *testing.T) {
	req := require.New(t)
	engine, rooms, dir := newTestEngine()
	connA := &fakeConn{}
	slow := &fakeConn{full: true}
	engine.Join("conn-a", "R1", alice(), connA)
	engine.Join("conn-slow", "R1", bob(), slow)

	engine.Message("conn-a", "hi")

	room, _ := rooms.Get("R1")
	req.Equal(1, room.ParticipantCount())
	_, _, bound := dir.Resolve("conn-slow")
	req.False(bound)
	req.True(slow.closed)
}

func TestEngine_Timestamps_FollowAppendOrder(t *testing.T) {
	req := require.New(t)
	engine, rooms, _ := newTestEngine()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
	connA := &fakeConn{}
	engine.Join("conn-a", "R1", alice(), connA)

	engine.Message("conn-a", "first")
	engine.Message("conn-a", "second")

	room, _ := rooms.Get("R1")
	messages, _ := room.History()
	req.Len(messages, 2)
	req.True(messages[0].Timestamp.Before(messages[1].Timestamp))
}

func consultEventsOfType(events []any, eventType string) []any {
	var out []any
	for _, e := range events {
		switch v := e.(type) {
		case core.ParticipantJoinedEvent:
			if v.Type == eventType {
				out = append(out, v)
			}
		case core.ParticipantLeftEvent:
			if v.Type == eventType {
				out = append(out, v)
			}
		case core.MessageEvent:
			if v.Type == eventType {
				out = append(out, v)
			}
		case core.TranscriptUpdateEvent:
			if v.Type == eventType {
				out = append(out, v)
			}
		case core.HistoryEvent:
			if v.Type == eventType {
				out = append(out, v)
			}
		}
	}
	return out
}
