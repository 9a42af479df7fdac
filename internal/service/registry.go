package service

import (
	"iter"
	"sync"

	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

// Member is a live connection that can receive room events.
type Member interface {
	ID() string
	Identity() domain.Identity
	// Deliver queues an encoded frame without blocking. It reports false
	// when the member is gone or cannot keep up.
	Deliver(data []byte) bool
}

// Registry maps room names to their currently connected members.
// Empty rooms are kept so late joiners never race a deletion.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomMembers
}

type roomMembers struct {
	mu      sync.RWMutex
	members map[string]Member
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomMembers)}
}

func (r *Registry) room(name string) *roomMembers {
	r.mu.RLock()
	room, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[name]; ok {
		return room
	}
	room = &roomMembers{members: make(map[string]Member)}
	r.rooms[name] = room
	return room
}

// Join registers m in the room. Joining twice with the same member is a no-op.
func (r *Registry) Join(roomName string, m Member) {
	room := r.room(roomName)
	room.mu.Lock()
	room.members[m.ID()] = m
	room.mu.Unlock()
}

func (r *Registry) Leave(roomName string, m Member) {
	r.mu.RLock()
	room, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return
	}

	room.mu.Lock()
	if current, ok := room.members[m.ID()]; ok && current == m {
		delete(room.members, m.ID())
	}
	room.mu.Unlock()
}

func (r *Registry) snapshot(roomName string) []Member {
	r.mu.RLock()
	room, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	members := make([]Member, 0, len(room.members))
	for _, m := range room.members {
		members = append(members, m)
	}
	return members
}

// Members iterates over a snapshot of the room taken when iteration starts.
// No lock is held while the caller handles each member.
func (r *Registry) Members(roomName string) iter.Seq[Member] {
	return func(yield func(Member) bool) {
		for _, m := range r.snapshot(roomName) {
			if !yield(m) {
				return
			}
		}
	}
}

func (r *Registry) Count(roomName string) int {
	r.mu.RLock()
	room, ok := r.rooms[roomName]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.members)
}

// HasRoom reports whether the room has ever been joined on this instance.
func (r *Registry) HasRoom(roomName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomName]
	return ok
}

// HasUser reports whether another member than exceptID is connected as userID.
func (r *Registry) HasUser(roomName string, userID int64, exceptID string) bool {
	for m := range r.Members(roomName) {
		if m.ID() != exceptID && m.Identity().UserID == userID {
			return true
		}
	}
	return false
}
