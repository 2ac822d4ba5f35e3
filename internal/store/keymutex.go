package store

import "sync"

// KeyedMutex serializes work per key. The tutoring service holds the
// learner's mutex for the whole of one message's processing (read,
// oracle call, log append, session write) so concurrent deliveries for
// the same identity cannot lose updates. Different identities proceed
// fully concurrently.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a key, creating it on first use.
// Mutexes are never removed; the key space is bounded by the learner
// population.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for a key. The key must have been locked.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()

	m.Unlock()
}
