package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
)

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// RoomManager owns the name -> room map. Rooms are created lazily on join
// and removed by the room itself when its last member leaves.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*core.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomName]*core.Room)}
}

func (m *RoomManager) GetOrCreate(name domain.RoomName) *core.Room {
	m.mu.RLock()
	room, ok := m.rooms[name]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[name]; ok {
		return room
	}
	room = core.NewRoom(name)
	m.rooms[name] = room
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	return room
}

func (m *RoomManager) Get(name domain.RoomName) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

// Remove deletes room if it is still the one registered under its name.
// It matches Room.Leave's onEmpty signature.
func (m *RoomManager) Remove(room *core.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rooms[room.Name()] != room {
		return
	}
	delete(m.rooms, room.Name())
	log.Info().Str("module", "app.rooms").Str("room", string(room.Name())).Msg("room removed")
}

// List returns rooms sorted by name.
func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*core.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomInfo{Name: r.Name(), MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
