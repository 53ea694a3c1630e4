package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

// A join only retries when it raced a room that emptied out, which the
// fresh room from the manager cannot do again unless others keep leaving.
const maxJoinAttempts = 8

// JoinRoom binds conn to a new session in the named room. Rejections are
// answered on sink since the connection has no session yet.
func (o *Orchestrator) JoinRoom(conn core.ConnID, sink core.SignalConnection, m *protocol.JoinRoom) {
	logger := log.With().Str("module", "orch").Str("conn", string(conn)).Str("room", m.Room).Str("name", m.Name).Logger()

	if _, ok := o.Registry.GetByConnection(conn); ok {
		logger.Info().Msg("join on a bound connection rejected")
		reply(sink, protocol.Error{Code: protocol.CodeAlreadyJoined, Message: app.ErrAlreadyJoined.Error()})
		return
	}
	name, err := domain.NewUserName(m.Name)
	if err == nil {
		_, err = domain.NewRoomName(m.Room)
	}
	if err != nil {
		logger.Info().Err(err).Msg("join with invalid name rejected")
		reply(sink, protocol.Error{Code: protocol.CodeInvalidName, Message: err.Error()})
		return
	}
	roomName := domain.RoomName(m.Room)

	for range maxJoinAttempts {
		room := o.Rooms.GetOrCreate(roomName)
		sess := core.NewUserSession(conn, name, roomName, sink, o.Engine)
		report, err := room.Join(sess, o.Registry)
		switch {
		case err == nil:
			logger.Info().Msg("joined")
			o.handleFailures(report)
			return
		case errors.Is(err, core.ErrRoomClosed):
			logger.Debug().Msg("room closed during join, retrying")
			continue
		}

		room.CloseIfEmpty(o.Rooms.Remove)
		code := protocol.CodeDuplicateName
		if errors.Is(err, app.ErrAlreadyJoined) {
			code = protocol.CodeAlreadyJoined
		}
		logger.Info().Err(err).Msg("join rejected")
		reply(sink, protocol.Error{Code: code, Message: err.Error()})
		return
	}
	logger.Error().Msg("join gave up on a churning room")
}

// LeaveRoom ends the session of conn and keeps the connection open.
func (o *Orchestrator) LeaveRoom(conn core.ConnID) {
	o.leave(conn, "leave")
}

// OnDisconnect runs when the transport of conn is gone.
func (o *Orchestrator) OnDisconnect(conn core.ConnID) {
	o.leave(conn, "disconnect")
}

func (o *Orchestrator) leave(conn core.ConnID, reason string) {
	sess, ok := o.Registry.RemoveByConnection(conn)
	if !ok {
		return
	}
	if o.Chat != nil {
		o.Chat.Forget(sess.Name())
	}
	if room, ok := o.Rooms.Get(sess.RoomName()); ok {
		remaining, report := room.Leave(sess, o.Rooms.Remove)
		sess.Logger().Info().Str("reason", reason).Int("remaining", remaining).Msg("left room")
		o.handleFailures(report)
	} else {
		sess.Close()
	}
	// Viewers in other rooms may hold entries for sess too.
	for _, viewer := range o.Registry.Sessions() {
		viewer.CancelVideoFromSession(sess)
	}
}

func reply(sink core.SignalConnection, msg protocol.Outbound) {
	b, err := protocol.Encode(msg)
	if err == nil {
		err = sink.TrySend(b)
	}
	if err != nil {
		log.Warn().Str("module", "orch").Str("kind", msg.Kind()).Err(err).Msg("reply failed")
	}
}
