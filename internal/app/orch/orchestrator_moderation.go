package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

// Moderation and room events are routed by room name. A room that is gone
// makes them a silent no-op.

func (o *Orchestrator) Ban(m *protocol.Ban) {
	o.inRoom(m.Kind(), m.Room, func(r *core.Room) core.SendReport {
		return r.TransferBan(domain.UserName(m.Name))
	})
}

func (o *Orchestrator) Mute(m *protocol.Mute) {
	o.inRoom(m.Kind(), m.Room, func(r *core.Room) core.SendReport {
		return r.TransferMute(domain.UserName(m.Name))
	})
}

func (o *Orchestrator) RequestMute(m *protocol.RequestMute) {
	o.inRoom(m.Kind(), m.Room, func(r *core.Room) core.SendReport {
		return r.TransferRequestMute(domain.UserName(m.Name))
	})
}

func (o *Orchestrator) RequestExit(m *protocol.RequestExit) {
	o.inRoom(m.Kind(), m.Room, (*core.Room).TransferRequestExit)
}

func (o *Orchestrator) Exit(m *protocol.Exit) {
	o.inRoom(m.Kind(), m.Room, (*core.Room).TransferExit)
}

func (o *Orchestrator) SendLadderResult(m *protocol.SendLadderResult) {
	o.inRoom(m.Kind(), m.Room, func(r *core.Room) core.SendReport {
		return r.TransferLadderResult(domain.UserName(m.Name), m.Value)
	})
}

// SendChat relays a chat line. Only joined connections may chat, and the
// flood limit applies to the sender's session whatever name it claims.
func (o *Orchestrator) SendChat(conn core.ConnID, m *protocol.SendChat) {
	sess, ok := o.Registry.GetByConnection(conn)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Str("room", m.Room).Msg("sendChat before join dropped")
		return
	}
	if o.Chat != nil && !o.Chat.Allow(sess.Name()) {
		sess.Logger().Warn().Str("claimed", m.Name).Str("to_room", m.Room).Msg("chat rate limited")
		return
	}
	name := domain.UserName(m.Name)
	o.inRoom(m.Kind(), m.Room, func(r *core.Room) core.SendReport {
		return r.TransferChatMessage(protocol.ChatMessage{
			MessageID: o.newID(),
			Name:      name,
			Message:   m.Message,
			SentAt:    o.now().UTC(),
		})
	})
}

func (o *Orchestrator) inRoom(kind, room string, fn func(*core.Room) core.SendReport) {
	r, ok := o.Rooms.Get(domain.RoomName(room))
	if !ok {
		log.Debug().Str("module", "orch").Str("kind", kind).Str("room", room).Msg("room not found")
		return
	}
	o.handleFailures(fn(r))
}
