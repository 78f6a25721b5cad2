// internal/engine/locks.go
package engine

import "sync"

// roomLocks serializes actions per room. Locks are created on first use and
// never discarded; room identifiers are few enough at pilot scale that the
// map does not need eviction.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the room's mutex and returns it for the caller to unlock.
func (rl *roomLocks) acquire(roomID string) *sync.Mutex {
	rl.mu.Lock()
	lock, ok := rl.locks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		rl.locks[roomID] = lock
	}
	rl.mu.Unlock()
	lock.Lock()
	return lock
}
