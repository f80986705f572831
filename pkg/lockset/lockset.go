package lockset

import "sync"

type entry struct {
	mu      sync.Mutex
	holders int
}

// LockSet hands out one mutex per key. Entries are removed once nobody
// holds or waits for them, so the set only grows with concurrent keys.
type LockSet struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Lock locks the mutex for key, blocking until it is available.
func (ls *LockSet) Lock(key string) {
	ls.mu.Lock()

	if ls.entries == nil {
		ls.entries = make(map[string]*entry)
	}

	e, ok := ls.entries[key]
	if !ok {
		e = &entry{}
		ls.entries[key] = e
	}

	e.holders++
	ls.mu.Unlock()

	e.mu.Lock()
}

// Unlock unlocks the mutex for key. Unlocking a key that is not locked panics.
func (ls *LockSet) Unlock(key string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	e, ok := ls.entries[key]
	if !ok {
		panic("lockset: unlock of unlocked key " + key)
	}

	e.holders--
	if e.holders == 0 {
		delete(ls.entries, key)
	}

	e.mu.Unlock()
}

// Contains returns a boolean if key is currently held or waited on.
func (ls *LockSet) Contains(key string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	_, ok := ls.entries[key]

	return ok
}

// Len returns the number of keys currently held or waited on.
func (ls *LockSet) Len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	return len(ls.entries)
}
