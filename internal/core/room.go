package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/protocol"
)

// ErrRoomClosed is returned by Join on a room that emptied out and was
// removed from its manager. Callers fetch a fresh room and retry.
var ErrRoomClosed = errors.New("room closed")

// Registrar admits a session process-wide. Room.Join calls it under the
// room lock so a session is never live in only one of room and registry.
type Registrar interface {
	Register(s *UserSession) error
}

// SendFailure is one recipient that could not be reached.
type SendFailure struct {
	Session *UserSession
	Err     error
}

// SendReport reports delivery stats to the orchestrator.
type SendReport struct {
	Delivered int
	Failed    []SendFailure
}

func (r *SendReport) merge(o SendReport) {
	r.Delivered += o.Delivered
	r.Failed = append(r.Failed, o.Failed...)
}

// Room is a threadsafe in-memory group of sessions.
// It never closes adapter-owned resources.
type Room struct {
	name   domain.RoomName
	logger zerolog.Logger

	mu      sync.RWMutex
	members map[domain.UserName]*UserSession
	closed  bool
}

func NewRoom(name domain.RoomName) *Room {
	return &Room{
		name:    name,
		logger:  log.With().Str("module", "core.room").Str("room", string(name)).Logger(),
		members: make(map[domain.UserName]*UserSession),
	}
}

func (r *Room) Name() domain.RoomName { return r.name }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns a snapshot of the current membership.
func (r *Room) Members() []*UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked(nil)
}

func (r *Room) MemberNames() []domain.UserName {
	members := r.Members()
	out := make([]domain.UserName, 0, len(members))
	for _, m := range members {
		out = append(out, m.Name())
	}
	return out
}

func (r *Room) snapshotLocked(except *UserSession) []*UserSession {
	out := make([]*UserSession, 0, len(r.members))
	for _, m := range r.members {
		if m != except {
			out = append(out, m)
		}
	}
	return out
}

// Join registers sess and adds it to the room. The joiner gets the names of
// the members already present, and those members are told about the joiner.
func (r *Room) Join(sess *UserSession, reg Registrar) (SendReport, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return SendReport{}, ErrRoomClosed
	}
	if err := reg.Register(sess); err != nil {
		r.mu.Unlock()
		return SendReport{}, err
	}
	existing := r.snapshotLocked(nil)
	r.members[sess.Name()] = sess
	size := len(r.members)
	r.mu.Unlock()

	r.logger.Info().Str("name", string(sess.Name())).Int("members", size).Msg("member joined")

	names := make([]domain.UserName, 0, len(existing))
	for _, m := range existing {
		names = append(names, m.Name())
	}
	var report SendReport
	report.record(sess, sess.Send(protocol.ExistingParticipants{Data: names}))
	report.merge(r.broadcast(existing, protocol.NewParticipantArrived{Name: sess.Name()}))
	return report, nil
}

// Leave removes sess, closes its negotiations and tells every remaining
// member, which also drops its own negotiation with sess. When the room
// becomes empty it is marked closed and onEmpty runs under the room lock.
// Leaving twice is a no-op.
func (r *Room) Leave(sess *UserSession, onEmpty func(*Room)) (int, SendReport) {
	r.mu.Lock()
	if r.members[sess.Name()] != sess {
		size := len(r.members)
		r.mu.Unlock()
		return size, SendReport{}
	}
	delete(r.members, sess.Name())
	remaining := r.snapshotLocked(nil)
	if len(remaining) == 0 {
		r.closed = true
		if onEmpty != nil {
			onEmpty(r)
		}
	}
	r.mu.Unlock()

	r.logger.Info().Str("name", string(sess.Name())).Int("members", len(remaining)).Msg("member left")

	for _, m := range remaining {
		m.CancelVideoFromSession(sess)
	}
	report := r.broadcast(remaining, protocol.ParticipantLeft{Name: sess.Name()})
	sess.Close()
	return len(remaining), report
}

// CloseIfEmpty closes a room nobody managed to join.
func (r *Room) CloseIfEmpty(onEmpty func(*Room)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.members) > 0 {
		return false
	}
	r.closed = true
	if onEmpty != nil {
		onEmpty(r)
	}
	return true
}

func (r *Room) TransferChatMessage(msg protocol.ChatMessage) SendReport {
	return r.broadcast(r.Members(), msg)
}

func (r *Room) TransferLadderResult(target domain.UserName, value string) SendReport {
	return r.deliverTo(target, protocol.LadderResult{Value: value})
}

func (r *Room) TransferRequestMute(name domain.UserName) SendReport {
	return r.broadcast(r.Members(), protocol.RequestMuteNotice{Name: name})
}

func (r *Room) TransferRequestExit() SendReport {
	return r.broadcast(r.Members(), protocol.RequestExitNotice{})
}

func (r *Room) TransferExit() SendReport {
	return r.broadcast(r.Members(), protocol.ExitNotice{})
}

func (r *Room) TransferBan(target domain.UserName) SendReport {
	return r.deliverTo(target, protocol.BanNotice{Name: target})
}

func (r *Room) TransferMute(target domain.UserName) SendReport {
	return r.deliverTo(target, protocol.MuteNotice{Name: target})
}

func (r *Room) deliverTo(target domain.UserName, msg protocol.Outbound) SendReport {
	r.mu.RLock()
	m, ok := r.members[target]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug().Str("name", string(target)).Str("kind", msg.Kind()).Msg("target not in room")
		return SendReport{}
	}
	return r.broadcast([]*UserSession{m}, msg)
}

// broadcast sends msg to every target; one failure never stops the loop.
func (r *Room) broadcast(targets []*UserSession, msg protocol.Outbound) SendReport {
	var report SendReport
	for _, m := range targets {
		report.record(m, m.Send(msg))
	}
	r.logger.Debug().
		Str("kind", msg.Kind()).
		Int("sent_to", report.Delivered).
		Int("dropped", len(report.Failed)).
		Msg("broadcast result")
	return report
}

func (r *SendReport) record(s *UserSession, err error) {
	if err != nil {
		r.Failed = append(r.Failed, SendFailure{Session: s, Err: err})
		return
	}
	r.Delivered++
}
