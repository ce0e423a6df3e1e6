package lock

import (
	"context"
	"sync"
)

// Locker serializes work per key. Lock blocks until the key is free or ctx
// is done, and returns a release function that must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func() error, err error)
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once no caller
// holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func() error, error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-kl.ch
			m.unref(key, kl)
		})
		return nil
	}, nil
}

func (m *KeyedMutex) unref(key string, kl *keyLock) {
	m.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// size reports tracked keys; used by tests.
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
