package session

import "sync"

// Locker serializes cart mutations per session key. Two concurrent
// requests from the same buyer would otherwise race on the read-
// modify-write of the cart cookie.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// lockEntry is refcounted so idle keys can be evicted; anonymous
// session ids would otherwise accumulate forever.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key and returns the unlock func. The
// entry is dropped once the last holder unlocks.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
