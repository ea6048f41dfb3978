// Package kv defines the contract between the cache-aside store and the
// durable key-value store behind it.
//
// Keys are strings treated as opaque byte sequences, values are raw bytes.
// Adapters for concrete backends live under adapters/.
package kv

import (
	"context"
	"errors"

	"github.com/codewandler/lrukv-go/internal/codec"
)

var (
	ErrNotFound = errors.New("not found")
)

// Store is a durable key-value store. A Put must be visible to every later
// Get on the same instance. Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Iterable is implemented by stores that can enumerate their entries.
// Iteration order must be deterministic for a given store instance; fn
// returns false to stop early. The key and value passed to fn are owned by
// the callee.
type Iterable interface {
	Iterate(ctx context.Context, fn func(key string, value []byte) bool) error
}

// Opener opens (and with createIfMissing, creates) the store found at
// location. What a location is depends on the backend: a directory, a
// bucket, a table.
type Opener func(ctx context.Context, location string, createIfMissing bool) (Store, error)

func Put[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(ctx, key, data)
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = codec.Default.Unmarshal(data, &out)
	if err != nil {
		return
	}
	return
}
