package services

import "sync"

// keyedLocker serializes work per key (tournament id). Entries are reference
// counted and dropped when no goroutine holds or waits on them.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *keyedLocker) Lock(key string) func() {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
