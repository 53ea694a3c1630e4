package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/protocol"
)

func (ctl *SignalWSController) writePump(c *WsSignalConn, logger *zerolog.Logger) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				logger.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				logger.Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn().Err(err).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.opts.WriteWait)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Warn().Err(err).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump decodes and dispatches frames one at a time. It owns the
// connection-closed transport event.
func (ctl *SignalWSController) readPump(ctx context.Context, id core.ConnID, c *WsSignalConn, logger *zerolog.Logger) {
	stop := context.AfterFunc(ctx, c.Close)
	defer func() {
		stop()
		c.Close()
		ctl.Orch.OnDisconnect(id)
		logger.Info().Msg("readPump closing")
	}()

	pongWait := ctl.opts.pongWait()
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("readPump read error")
			}
			return
		}
		ctl.handleFrame(ctx, id, c, data, logger)
	}
}

func (ctl *SignalWSController) handleFrame(ctx context.Context, id core.ConnID, c *WsSignalConn, data []byte, logger *zerolog.Logger) {
	msg, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrUnknownKind):
		logger.Debug().Err(err).Msg("unknown message ignored")
		return
	case err != nil:
		logger.Warn().Err(err).Int("size", len(data)).Msg("malformed message dropped")
		return
	}
	logger.Debug().Str("kind", msg.Kind()).Msg("inbound")
	ctl.Orch.Dispatch(ctx, id, c, msg)
}
