package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/config"
	"github.com/beamlink/beamlink/internal/relay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades signaling connections and runs their pumps.
type Controller struct {
	router *relay.Router
	cfg    *config.Config
}

func NewController(router *relay.Router, cfg *config.Config) *Controller {
	return &Controller{router: router, cfg: cfg}
}

// HandleSignal upgrades the request and starts the read/write pumps. Each
// connection gets its own relay.Peer; the router fills in the role after
// hello.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}
	conn := newConn(ws, 32)
	peer := &relay.Peer{Conn: conn}
	log.Info().Str("module", "ws").Str("remote", ws.RemoteAddr().String()).Msg("new connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn, cancel)
	go ctl.readPump(ctx, peer, conn, cancel)
}

func (ctl *Controller) writePump(ctx context.Context, c *Conn, cancel context.CancelFunc) {
	defer cancel()
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("set write deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("write")
				return
			}
		}
	}
}

// readPump processes frames in receipt order; each HandleMessage call runs
// to completion before the next read, so per-connection ordering holds.
func (ctl *Controller) readPump(ctx context.Context, peer *relay.Peer, c *Conn, cancel context.CancelFunc) {
	defer func() {
		cancel()
		ctl.router.HandleClose(peer)
		c.Close("read loop exited")
	}()

	c.ws.SetReadLimit(ctl.cfg.ReadLimit)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "ws").Msg("read")
				}
				return
			}
			ctl.router.HandleMessage(peer, data)
		}
	}
}
