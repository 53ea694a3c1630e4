// Package orch routes decoded client messages to rooms and sessions.
package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/idgen"
	"github.com/dkeye/groupcall/internal/protocol"
)

// Orchestrator is the signaling dispatcher. Callers must not dispatch two
// messages of the same connection concurrently.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Engine   core.MediaEngine
	// Chat limits sendChat per sending session. Nil disables the limit.
	Chat *app.RateLimiter

	NewID func() string
	Now   func() time.Time
}

func (o *Orchestrator) Dispatch(ctx context.Context, conn core.ConnID, sink core.SignalConnection, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.JoinRoom:
		o.JoinRoom(conn, sink, m)
	case *protocol.ReceiveVideoFrom:
		o.ReceiveVideoFrom(ctx, conn, m)
	case *protocol.OnIceCandidate:
		o.OnIceCandidate(conn, m)
	case *protocol.LeaveRoom:
		o.LeaveRoom(conn)
	case *protocol.Ban:
		o.Ban(m)
	case *protocol.Mute:
		o.Mute(m)
	case *protocol.RequestMute:
		o.RequestMute(m)
	case *protocol.RequestExit:
		o.RequestExit(m)
	case *protocol.Exit:
		o.Exit(m)
	case *protocol.SendLadderResult:
		o.SendLadderResult(m)
	case *protocol.SendChat:
		o.SendChat(conn, m)
	default:
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Str("kind", msg.Kind()).Msg("unhandled message")
	}
}

// handleFailures applies the send-failure policy to every failed recipient.
func (o *Orchestrator) handleFailures(report core.SendReport) {
	for _, f := range report.Failed {
		action := app.DropMessage
		if o.Policy != nil {
			action = o.Policy.OnSendFailure(f)
		}
		log.Warn().
			Str("module", "orch").
			Str("conn", string(f.Session.Conn())).
			Str("name", string(f.Session.Name())).
			Str("action", action.String()).
			Err(f.Err).
			Msg("send failed")
		if action == app.KickMember {
			f.Session.Disconnect()
		}
	}
}

// sendTo delivers one message to sess under the send-failure policy.
func (o *Orchestrator) sendTo(sess *core.UserSession, msg protocol.Outbound) {
	var report core.SendReport
	if err := sess.Send(msg); err != nil {
		report.Failed = []core.SendFailure{{Session: sess, Err: err}}
	}
	o.handleFailures(report)
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return idgen.NewMessageID()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
