package kv

import (
	"bytes"
	"context"
	"slices"
	"sync"
)

// MemStore is an in-process Store for tests and development. Values are
// copied on the way in and out.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[string][]byte{}}
}

// MemOpener opens a fresh MemStore regardless of location.
func MemOpener() Opener {
	return func(context.Context, string, bool) (Store, error) {
		return NewMemStore(), nil
	}
}

func (m *MemStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = bytes.Clone(value)
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return bytes.Clone(v), nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Iterate visits a snapshot of the entries in ascending key order.
func (m *MemStore) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = bytes.Clone(m.data[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k, values[i]) {
			return nil
		}
	}
	return nil
}

func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var (
	_ Store    = (*MemStore)(nil)
	_ Iterable = (*MemStore)(nil)
)
