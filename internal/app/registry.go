package app

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
)

var ErrAlreadyJoined = errors.New("connection already joined a room")

// Registry indexes live sessions by connection and by name. Both maps are
// updated under one lock so they never disagree.
type Registry struct {
	mu     sync.RWMutex
	byConn map[core.ConnID]*core.UserSession
	byName map[domain.UserName]*core.UserSession
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[core.ConnID]*core.UserSession),
		byName: make(map[domain.UserName]*core.UserSession),
	}
}

// Register admits s. It fails with domain.ErrDuplicateName when another
// session holds the name and with ErrAlreadyJoined when the connection is
// already bound.
func (r *Registry) Register(s *core.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byConn[s.Conn()]; ok {
		return ErrAlreadyJoined
	}
	if _, ok := r.byName[s.Name()]; ok {
		return domain.ErrDuplicateName
	}
	r.byConn[s.Conn()] = s
	r.byName[s.Name()] = s
	log.Info().
		Str("module", "app.registry").
		Str("conn", string(s.Conn())).
		Str("name", string(s.Name())).
		Str("room", string(s.RoomName())).
		Msg("registered session")
	return nil
}

func (r *Registry) GetByConnection(conn core.ConnID) (*core.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byConn[conn]
	return s, ok
}

func (r *Registry) GetByName(name domain.UserName) (*core.UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// RemoveByConnection unbinds the session of conn and returns it.
// A second call for the same connection returns false.
func (r *Registry) RemoveByConnection(conn core.ConnID) (*core.UserSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(r.byConn, conn)
	if r.byName[s.Name()] == s {
		delete(r.byName, s.Name())
	}
	log.Info().
		Str("module", "app.registry").
		Str("conn", string(conn)).
		Str("name", string(s.Name())).
		Msg("unregistered session")
	return s, true
}

// Holds reports whether s is still the live session of its connection.
func (r *Registry) Holds(s *core.UserSession) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[s.Conn()] == s
}

// Sessions returns a snapshot of every live session.
func (r *Registry) Sessions() []*core.UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Collect(maps.Values(r.byConn))
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
