package transfer

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedLock serialises work per key. Waiting honours context cancellation.
type keyedLock struct {
	mu   sync.Mutex
	keys map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{keys: make(map[string]*lockEntry)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *keyedLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			l.release(key, e)
		})
	}, nil
}

func (l *keyedLock) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// held reports how many callers hold or wait for key.
func (l *keyedLock) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.keys[key]; ok {
		return e.refs
	}
	return 0
}
