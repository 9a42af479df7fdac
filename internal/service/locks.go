package service

import (
	"strconv"
	"sync"
)

// presenceLocks serializes joins and leaves of one user in one room.
// Entries are dropped once no goroutine holds or waits for them.
type presenceLocks struct {
	mu    sync.Mutex
	locks map[string]*presenceLock
}

type presenceLock struct {
	mu   sync.Mutex
	refs int
}

func newPresenceLocks() *presenceLocks {
	return &presenceLocks{locks: make(map[string]*presenceLock)}
}

func presenceKey(roomName string, userID int64) string {
	return roomName + "\x00" + strconv.FormatInt(userID, 10)
}

func (p *presenceLocks) lock(roomName string, userID int64) (unlock func()) {
	key := presenceKey(roomName, userID)

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &presenceLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
