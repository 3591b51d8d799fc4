// Package lock serializes work on logical resources identified by string keys.
package lock

import (
	"context"
	"slices"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Manager hands out per-key exclusive locks. Keys that nobody holds or waits
// on are forgotten, so the set of tracked keys stays proportional to the
// amount of in-flight work. Waiters are not queued fairly.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]*entry)}
}

// Acquire blocks until key is free or ctx is done. The returned release func
// is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, key string) (func(), error) {
	e := m.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.unref(key)
		})
	}, nil
}

// AcquireMany locks every distinct key in sorted order. Callers that need
// more than one key must go through here so that two overlapping key sets
// can never wait on each other.
func (m *Manager) AcquireMany(ctx context.Context, keys ...string) (func(), error) {
	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range ordered {
		release, err := m.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

// Len reports how many keys are currently held or waited on.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Manager) ref(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(m.locks, key)
	}
}

// AccountKey is the lock key for a single account's balance and holdings.
func AccountKey(accountID string) string {
	return "account:" + accountID
}
