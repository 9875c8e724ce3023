package nav

import (
	"sync"

	"github.com/google/uuid"
)

// lockRegistry serializes closes per fund. A second concurrent close or
// rollback attempt for the same fund must fail fast instead of queueing, so
// acquisition is a try-lock, never a blocking wait.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// tryAcquire attempts to take the fund's lock. On success it returns a
// release function; on contention it returns ok == false immediately.
func (r *lockRegistry) tryAcquire(fundID uuid.UUID) (release func(), ok bool) {
	r.mu.Lock()
	lock, exists := r.locks[fundID]
	if !exists {
		lock = &sync.Mutex{}
		r.locks[fundID] = lock
	}
	r.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}
