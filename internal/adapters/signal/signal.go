// Package signal serves the group-call signaling protocol over websockets.
package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/protocol"
)

// Dispatcher consumes decoded messages. Messages of one connection are
// delivered sequentially, in arrival order.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn core.ConnID, sink core.SignalConnection, msg protocol.Inbound)
	OnDisconnect(conn core.ConnID)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32 << 10
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

func (o Options) pongWait() time.Duration { return o.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Orch Dispatcher
	opts Options
}

func NewSignalWSController(d Dispatcher, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch: d,
		opts: opts.withDefaults(),
	}
}

// WsSignalConn is the outbound side of one websocket. Frames are queued and
// written by the connection's write pump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the connection until it
// closes or ctx is done.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := core.ConnID(uuid.NewString())
	logger := log.With().
		Str("module", "signal").
		Str("conn", string(id)).
		Str("client", c.GetString("client_token")).
		Logger()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	logger.Info().Str("remote", c.ClientIP()).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	go ctl.writePump(conn, &logger)
	go ctl.readPump(ctx, id, conn, &logger)
}
