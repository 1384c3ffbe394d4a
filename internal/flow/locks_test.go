package flow

import (
	"sync"
	"testing"
)

func TestUserLocksSerializeSameUser(t *testing.T) {
	locks := newUserLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire("u1")
			counter++
			release()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 serialized increments, got %d", counter)
	}
}

func TestUserLocksCleanUpEntries(t *testing.T) {
	locks := newUserLocks()

	release := locks.Acquire("u1")
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Errorf("expected lock map to be empty after release, got %d entries", len(locks.locks))
	}
}

func TestUserLocksIndependentUsers(t *testing.T) {
	locks := newUserLocks()

	releaseA := locks.Acquire("a")
	defer releaseA()

	// A second user must not block behind the first.
	done := make(chan struct{})
	go func() {
		releaseB := locks.Acquire("b")
		releaseB()
		close(done)
	}()
	<-done
}
