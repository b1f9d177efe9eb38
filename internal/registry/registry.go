package registry

import (
	"sort"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
)

// Registry owns the room-id to Room mapping. It is not safe for concurrent
// use; the room executor is its only caller.
type Registry struct {
	rooms map[string]*domain.Room
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*domain.Room)}
}

// GetOrCreate returns the room for id, creating it on first reference.
// The boolean reports whether the room was created.
func (r *Registry) GetOrCreate(id string) (*domain.Room, bool) {
	id = domain.NormalizeRoomID(id)
	if room, ok := r.rooms[id]; ok {
		return room, false
	}
	room := domain.NewRoom(id)
	r.rooms[id] = room
	return room, true
}

// Get returns the room for id if it exists.
func (r *Registry) Get(id string) (*domain.Room, bool) {
	room, ok := r.rooms[domain.NormalizeRoomID(id)]
	return room, ok
}

// MaybeEvict deletes the room when it is empty. Returns true when evicted.
func (r *Registry) MaybeEvict(id string) bool {
	id = domain.NormalizeRoomID(id)
	room, ok := r.rooms[id]
	if !ok || !room.IsEmpty() {
		return false
	}
	delete(r.rooms, id)
	return true
}

// Restore inserts a room rebuilt from a snapshot. An existing room wins.
func (r *Registry) Restore(room *domain.Room) bool {
	if _, ok := r.rooms[room.ID]; ok {
		return false
	}
	r.rooms[room.ID] = room
	return true
}

// Each calls fn for every room in id order.
func (r *Registry) Each(fn func(*domain.Room)) {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(r.rooms[id])
	}
}

func (r *Registry) Len() int {
	return len(r.rooms)
}
