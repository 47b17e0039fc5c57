package engine

import "sync"

// executionLocks serializes all read-decide-write cycles on a single
// execution: scheduler ticks and control-plane status writes share the same
// lock scope, so overlapping ticks cannot double-fire and a cancel issued
// mid-tick cannot be overwritten by that tick's advance write.
type executionLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newExecutionLocks() *executionLocks {
	return &executionLocks{entries: make(map[string]*lockEntry)}
}

// Lock acquires the lock for an execution id and returns the matching
// unlock function. Entries are reference counted so the map stays bounded
// by the number of executions currently being evaluated.
func (l *executionLocks) Lock(executionID string) func() {
	l.mu.Lock()

	entry, ok := l.entries[executionID]
	if !ok {
		entry = &lockEntry{}
		l.entries[executionID] = entry
	}

	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--

		if entry.refs == 0 {
			delete(l.entries, executionID)
		}
		l.mu.Unlock()
	}
}
