package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/app"
	"github.com/carewire/teleconsult/internal/core"
)

// HandleAudio upgrades the audio ingest socket and wires it to a
// transcription bridge for the participant behind the same client token.
// Binary frames are opaque audio; they go to the provider untouched. An
// audio socket with no live consult socket has no participant to speak
// for and is refused.
func (ctl *Controller) HandleAudio(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	cid, ok := ctl.tokens.get(token)
	if !ok {
		log.Warn().Str("module", "adapters.ws").Str("token", token).Msg("audio connection without live consult socket")
		c.AbortWithStatus(http.StatusConflict)
		return
	}
	log.Info().Str("module", "adapters.ws").Str("cid", string(cid)).Msg("new audio connection")

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("audio ws upgrade")
		return
	}

	bridge, err := app.NewBridge(ctx, ctl.Engine, cid, ctl.STT)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Str("cid", string(cid)).Msg("open transcription stream")
		_ = socket.Close()
		return
	}
	ctl.Bridges.Put(cid, bridge)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		_ = socket.Close()
	}()
	go func() {
		defer cancel()
		ctl.audioPump(ctx, cid, socket, bridge)
	}()
}

func (ctl *Controller) audioPump(ctx context.Context, cid core.ConnID, socket *websocket.Conn, bridge *app.Bridge) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("cid", string(cid)).Msg("audio pump closing")
		ctl.Bridges.Remove(cid)
		_ = socket.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			msgType, data, err := socket.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "adapters.ws").Str("cid", string(cid)).Msg("audio socket closed")
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			if err := bridge.Forward(data); err != nil {
				return
			}
		}
	}
}
