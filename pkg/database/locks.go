package database

import "sync"

// WorkerLocks serializes the fetch-validate-persist sequence per worker, so
// two concurrent submissions for the same worker cannot both validate against
// a snapshot missing the other's interval. Different workers never contend.
//
// The lock is process-local; a multi-instance deployment would replace it
// with a serializable transaction keyed on worker identity.
type WorkerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkerLocks creates an empty lock registry
func NewWorkerLocks() *WorkerLocks {
	return &WorkerLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for workerID, creating it on first use, and
// returns the unlock function
func (l *WorkerLocks) Lock(workerID string) func() {
	l.mu.Lock()
	m, ok := l.locks[workerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[workerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
