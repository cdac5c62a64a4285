package app

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/stt"
)

// Bridge runs one participant's live transcription. Audio chunks go out to
// the provider in receipt order; recognized text comes back in through the
// engine's transcript path. A provider failure kills only this bridge: the
// room and the other participants never notice beyond the silence.
type Bridge struct {
	engine *Engine
	cid    core.ConnID
	stream stt.Stream

	closeOnce sync.Once
}

// NewBridge opens a provider stream and starts pumping results into the
// engine. Results arriving after the connection unbinds resolve to no-ops
// inside the engine, so no extra synchronization is needed here.
func NewBridge(ctx context.Context, engine *Engine, cid core.ConnID, provider stt.Provider) (*Bridge, error) {
	stream, err := provider.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	b := &Bridge{engine: engine, cid: cid, stream: stream}
	go b.pump()
	log.Info().Str("module", "app.bridge").Str("cid", string(cid)).Msg("transcription stream opened")
	return b, nil
}

// Forward hands one raw audio chunk to the provider. On a send failure the
// bridge shuts itself down; the caller just stops forwarding.
func (b *Bridge) Forward(chunk []byte) error {
	if err := b.stream.Send(chunk); err != nil {
		log.Error().Err(err).Str("module", "app.bridge").Str("cid", string(b.cid)).Msg("audio forward failed, closing bridge")
		b.Close()
		return err
	}
	return nil
}

// Close ends the provider stream. Idempotent; also called implicitly when
// the owning connection disconnects.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if err := b.stream.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.bridge").Str("cid", string(b.cid)).Msg("stream close")
		}
		log.Info().Str("module", "app.bridge").Str("cid", string(b.cid)).Msg("transcription stream closed")
	})
}

func (b *Bridge) pump() {
	for res := range b.stream.Results() {
		if strings.TrimSpace(res.Text) == "" {
			continue
		}
		b.engine.TranscriptSegment(b.cid, res.Text)
	}
	log.Debug().Str("module", "app.bridge").Str("cid", string(b.cid)).Msg("result stream ended")
}

// BridgeSet tracks the live bridge per connection so the transport adapter
// can tear it down from either socket (audio or consult) closing.
type BridgeSet struct {
	mu sync.Mutex
	m  map[core.ConnID]*Bridge
}

func NewBridgeSet() *BridgeSet {
	return &BridgeSet{m: make(map[core.ConnID]*Bridge)}
}

// Put registers the bridge for cid, closing any previous one.
func (s *BridgeSet) Put(cid core.ConnID, b *Bridge) {
	s.mu.Lock()
	prev := s.m[cid]
	s.m[cid] = b
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Remove closes and forgets the bridge for cid, if any.
func (s *BridgeSet) Remove(cid core.ConnID) {
	s.mu.Lock()
	b := s.m[cid]
	delete(s.m, cid)
	s.mu.Unlock()
	if b != nil {
		b.Close()
	}
}
