// Package zstd compresses values on their way into a kv.Store and
// decompresses them on the way out. Keys are left untouched.
package zstd

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/codewandler/lrukv-go/ports/kv"
)

// DefaultLevel balances speed and ratio.
const DefaultLevel = 3

// Store wraps a kv.Store. The wrapper returned by Wrap also implements
// kv.Iterable when the wrapped store does.
type Store struct {
	inner kv.Store
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

type iterableStore struct {
	*Store
	it kv.Iterable
}

// Wrap compresses values written to inner at the given zstd level.
func Wrap(inner kv.Store, level int) (kv.Store, error) {
	if level <= 0 {
		level = DefaultLevel
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	s := &Store{inner: inner, enc: enc, dec: dec}
	if it, ok := inner.(kv.Iterable); ok {
		return &iterableStore{Store: s, it: it}, nil
	}
	return s, nil
}

// Opener wraps every store opened by open.
func Opener(open kv.Opener, level int) kv.Opener {
	return func(ctx context.Context, location string, createIfMissing bool) (kv.Store, error) {
		inner, err := open(ctx, location, createIfMissing)
		if err != nil {
			return nil, err
		}
		s, err := Wrap(inner, level)
		if err != nil {
			if c, ok := inner.(io.Closer); ok {
				_ = c.Close()
			}
			return nil, err
		}
		return s, nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.decode(key, raw)
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.inner.Put(ctx, key, s.enc.EncodeAll(value, make([]byte, 0, len(value)/2+16)))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close releases the codec and closes the wrapped store if it is closable.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) decode(key string, raw []byte) ([]byte, error) {
	v, err := s.dec.DecodeAll(raw, []byte{})
	if err != nil {
		return nil, fmt.Errorf("decompress %q: %w", key, err)
	}
	return v, nil
}

func (s *iterableStore) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	var decErr error
	err := s.it.Iterate(ctx, func(key string, raw []byte) bool {
		v, err := s.decode(key, raw)
		if err != nil {
			decErr = err
			return false
		}
		return fn(key, v)
	})
	if err != nil {
		return err
	}
	return decErr
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*iterableStore)(nil)
)
