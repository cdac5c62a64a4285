package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/carewire/teleconsult/internal/app"
	"github.com/carewire/teleconsult/internal/config"
	"github.com/carewire/teleconsult/internal/core"
	"github.com/carewire/teleconsult/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the transport adapter: one consult socket per participant
// for the relay, one optional audio socket feeding the transcription
// bridge. All room logic lives in the engine; this layer only decodes
// envelopes and owns socket lifecycles.
type Controller struct {
	Engine  *app.Engine
	Bridges *app.BridgeSet
	STT     stt.Provider
	Limiter *MessageRateLimiter
	Cfg     *config.Config

	tokens *connTable
}

func NewController(engine *app.Engine, bridges *app.BridgeSet, provider stt.Provider, cfg *config.Config) *Controller {
	return &Controller{
		Engine:  engine,
		Bridges: bridges,
		STT:     provider,
		Limiter: NewMessageRateLimiter(cfg.MessageRateLimit, cfg.MessageRateInterval),
		Cfg:     cfg,
		tokens:  newConnTable(),
	}
}

// HandleConsult upgrades the consult socket and runs the read/write pumps.
// The connection id is minted per socket, so two tabs sharing one browser
// token stay independent live connections; the token only pairs the audio
// socket with the newest consult socket.
func (ctl *Controller) HandleConsult(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	cid := core.ConnID(uuid.NewString())
	log.Info().Str("module", "adapters.ws").Str("cid", string(cid)).Str("token", token).Msg("new consult connection")

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	socket.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := newWSConn(socket, ctl.Cfg.SendBuffer)
	ctl.tokens.put(token, cid)
	ctx, cancel := context.WithCancel(ctx)

	// ReadMessage only unblocks when the socket dies, so shutdown closes
	// the socket to make the pumps exit.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, token, cid, conn)
	}()
}

func (ctl *Controller) readPump(ctx context.Context, token string, cid core.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("cid", string(cid)).Msg("consult read pump closing")
		ctl.Engine.Disconnect(cid)
		ctl.Bridges.Remove(cid)
		ctl.Limiter.Forget(cid)
		ctl.tokens.remove(token, cid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "adapters.ws").Str("cid", string(cid)).Msg("consult socket closed")
				return
			}
			ctl.dispatch(cid, c, data)
		}
	}
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
