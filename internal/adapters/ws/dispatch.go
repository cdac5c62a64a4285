package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/domain"
)

func (ctl *Controller) dispatch(cid core.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(cid, c, data)
	case "message":
		ctl.handleMessage(cid, data)
	case "transcript":
		ctl.handleTranscript(cid, data)
	case "ping":
		ctl.sendJSON(c, map[string]any{"type": "pong"})
	default:
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown envelope")
	}
}

func (ctl *Controller) handleJoin(cid core.ConnID, c *wsConn, data []byte) {
	type joinPayload struct {
		Type         string         `json:"type"`
		Consultation string         `json:"consultation"`
		Name         string         `json:"name"`
		Meta         map[string]any `json:"meta,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad join payload")
		ctl.sendJSON(c, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}
	if p.Consultation == "" {
		ctl.sendJSON(c, map[string]any{"type": "error", "error": "missing consultation"})
		return
	}
	identity, err := domain.NewIdentity(p.Name, p.Meta)
	if err != nil {
		ctl.sendJSON(c, map[string]any{"type": "error", "error": err.Error()})
		return
	}

	log.Info().Str("module", "adapters.ws").Str("cid", string(cid)).
		Str("consultation", p.Consultation).Str("name", identity.Name).Msg("join")
	ctl.Engine.Join(cid, domain.ConsultationID(p.Consultation), identity, c)
}

func (ctl *Controller) handleMessage(cid core.ConnID, data []byte) {
	type messagePayload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad message payload")
		return
	}
	if p.Text == "" {
		return
	}
	if !ctl.Limiter.Allow(cid) {
		log.Warn().Str("module", "adapters.ws").Str("cid", string(cid)).Msg("message rate limit, dropping")
		return
	}
	ctl.Engine.Message(cid, p.Text)
}

// handleTranscript accepts browser-side recognition results. Any speaker
// field in the payload is ignored; the engine resolves the speaker from
// the binding.
func (ctl *Controller) handleTranscript(cid core.ConnID, data []byte) {
	type transcriptPayload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var p transcriptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad transcript payload")
		return
	}
	if p.Text == "" {
		return
	}
	ctl.Engine.TranscriptSegment(cid, p.Text)
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	if err := c.TrySend(v); err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("sendJSON dropped")
	}
}
