package services

import "sync"

// ticketLocks serializes operations per ticket id. Both sync
// directions perform read-modify-write against the same file and the
// same remote record, so two operations on one id must not interleave.
// Operations on distinct ids proceed in parallel.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the critical section for one ticket id and returns the
// unlock function.
func (tl *ticketLocks) Lock(id string) func() {
	tl.mu.Lock()
	lock, ok := tl.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		tl.locks[id] = lock
	}
	tl.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
