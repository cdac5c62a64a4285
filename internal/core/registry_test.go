package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carewire/teleconsult/internal/domain"
)

func TestRegistry_GetOrCreate_ReturnsSameRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	room := reg.GetOrCreate("R1")
	req.Same(room, reg.GetOrCreate("R1"))

	got, ok := reg.Get("R1")
	req.True(ok)
	req.Same(room, got)
}

func TestRegistry_Get_AbsentRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	_, ok := reg.Get("nope")
	req.False(ok)
}

func TestRegistry_RemoveParticipant_EvictsEmptyRoom(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := reg.GetOrCreate("R1")
	room.AddParticipant("conn-a", domain.NewParticipant(domain.Identity{Name: "Alice"}), nopConn{})
	room.AddParticipant("conn-b", domain.NewParticipant(domain.Identity{Name: "Bob"}), nopConn{})

	p, _, ok := reg.RemoveParticipant("R1", "conn-a")
	req.True(ok)
	req.Equal("Alice", p.Identity.Name)
	_, stillThere := reg.Get("R1")
	req.True(stillThere)

	_, _, ok = reg.RemoveParticipant("R1", "conn-b")
	req.True(ok)
	_, stillThere = reg.Get("R1")
	req.False(stillThere, "empty room must be evicted with its logs")
}

func TestRegistry_RemoveParticipant_AbsentRoomOrParticipant(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	_, _, ok := reg.RemoveParticipant("nope", "conn-a")
	req.False(ok)

	room := reg.GetOrCreate("R1")
	room.AddParticipant("conn-a", domain.NewParticipant(domain.Identity{Name: "Alice"}), nopConn{})
	_, _, ok = reg.RemoveParticipant("R1", "ghost")
	req.False(ok)
	req.Equal(1, room.ParticipantCount())
}

func TestRegistry_Append_IsNoOpWhenRoomVanished(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	req.False(reg.AppendMessage("gone", domain.ChatMessage{Text: "hi"}))
	req.False(reg.AppendTranscript("gone", domain.TranscriptEvent{Text: "hi"}))
	req.Empty(reg.List())
}

func TestRegistry_Append_ReachesRoomLogs(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	room := reg.GetOrCreate("R1")

	req.True(reg.AppendMessage("R1", domain.ChatMessage{Text: "m1"}))
	req.True(reg.AppendTranscript("R1", domain.TranscriptEvent{Text: "t1"}))

	messages, transcripts := room.History()
	req.Len(messages, 1)
	req.Len(transcripts, 1)
}

func TestRegistry_List(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	r1 := reg.GetOrCreate("R1")
	r1.AddParticipant("conn-a", domain.NewParticipant(domain.Identity{Name: "Alice"}), nopConn{})
	r1.AddParticipant("conn-b", domain.NewParticipant(domain.Identity{Name: "Bob"}), nopConn{})
	r2 := reg.GetOrCreate("R2")
	r2.AddParticipant("conn-c", domain.NewParticipant(domain.Identity{Name: "Carol"}), nopConn{})

	infos := reg.List()
	req.Len(infos, 2)
	counts := map[domain.ConsultationID]int{}
	for _, info := range infos {
		counts[info.ID] = info.ParticipantCount
	}
	req.Equal(2, counts["R1"])
	req.Equal(1, counts["R2"])
}

func TestRegistry_List_SkipsRoomsNobodyJoinedYet(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	r1 := reg.GetOrCreate("R1")
	r1.AddParticipant("conn-a", domain.NewParticipant(domain.Identity{Name: "Alice"}), nopConn{})
	reg.GetOrCreate("R2")

	infos := reg.List()
	req.Len(infos, 1)
	req.Equal(domain.ConsultationID("R1"), infos[0].ID)
	req.Equal(1, infos[0].ParticipantCount)
}
