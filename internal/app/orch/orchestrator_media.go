package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

// ReceiveVideoFrom negotiates media from m.Sender to the session of conn.
// Naming oneself negotiates the session's own upstream.
func (o *Orchestrator) ReceiveVideoFrom(ctx context.Context, conn core.ConnID, m *protocol.ReceiveVideoFrom) {
	sess, ok := o.Registry.GetByConnection(conn)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Msg("receiveVideoFrom before join ignored")
		return
	}
	pub := sess
	if sender := domain.UserName(m.Sender); sender != sess.Name() {
		if pub, ok = o.Registry.GetByName(sender); !ok {
			sess.Logger().Info().Str("peer", m.Sender).Msg("publisher not found")
			o.sendTo(sess, protocol.PeerNotFound{Sender: m.Sender})
			return
		}
	}

	err := sess.ReceiveVideoFrom(ctx, pub, m.SDPOffer)
	// The entry is installed by now. A publisher that left before this
	// check missed it in its leave sweep.
	if pub != sess && !o.Registry.Holds(pub) {
		sess.Logger().Info().Str("peer", m.Sender).Msg("publisher left during negotiation")
		sess.CancelVideoFromSession(pub)
	}
	switch {
	case err == nil:
	case errors.Is(err, core.ErrBackpressure), errors.Is(err, core.ErrConnClosed):
		o.handleFailures(core.SendReport{Failed: []core.SendFailure{{Session: sess, Err: err}}})
	case errors.Is(err, core.ErrNegotiationClosed), errors.Is(err, core.ErrSessionClosed):
		sess.Logger().Info().Str("peer", m.Sender).Err(err).Msg("negotiation abandoned")
	default:
		sess.Logger().Warn().Str("peer", m.Sender).Err(err).Msg("negotiation failed")
		o.sendTo(sess, protocol.Error{Code: protocol.CodeNegotiationFailed, Message: err.Error()})
	}
}

func (o *Orchestrator) OnIceCandidate(conn core.ConnID, m *protocol.OnIceCandidate) {
	sess, ok := o.Registry.GetByConnection(conn)
	if !ok {
		return
	}
	if err := sess.AddCandidate(domain.UserName(m.Name), m.Candidate); err != nil {
		sess.Logger().Warn().Str("peer", m.Name).Err(err).Msg("add candidate")
	}
}
