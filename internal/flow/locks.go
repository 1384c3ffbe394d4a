package flow

import "sync"

// userLocks serializes turns per user. Two concurrent turns for the same
// user would otherwise both read question index i and both advance to i+1,
// silently dropping one answer. Turns for different users never contend.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// Acquire blocks until the caller holds the user's lock and returns the
// release function. Lock entries are reference counted so the map does not
// grow without bound.
func (l *userLocks) Acquire(userID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &userLock{}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
