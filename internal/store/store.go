// Package store persists the economy document as one opaque blob.
//
// Backends never interpret the document. Every Save replaces the whole
// document; there are no partial writes.
package store

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("document not found")

type Store interface {
	// Load returns the last saved document, or ErrNotFound if none exists.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the document.
	Save(ctx context.Context, doc []byte) error
	Close() error
}

// Memory keeps the document in process memory. Used by tests and by the
// "memory" store driver.
type Memory struct {
	mu      sync.Mutex
	doc     []byte
	saves   int
	failErr error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.doc...), nil
}

func (m *Memory) Save(_ context.Context, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.doc = append([]byte(nil), doc...)
	m.saves++
	return nil
}

func (m *Memory) Close() error { return nil }

// FailSaves makes every following Save return err. Pass nil to recover.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Saves reports how many saves succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
