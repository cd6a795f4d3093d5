package agent

import "sync"

// threadLocks serializes turns per thread id. Distinct threads proceed
// concurrently; a second turn on the same thread waits for the first.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// acquire blocks until the caller holds the lock for threadID.
func (t *threadLocks) acquire(threadID string) {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
}

// release unlocks threadID and drops the entry once no turn is waiting.
func (t *threadLocks) release(threadID string) {
	t.mu.Lock()
	l := t.locks[threadID]
	l.refs--
	if l.refs == 0 {
		delete(t.locks, threadID)
	}
	t.mu.Unlock()

	l.mu.Unlock()
}
