// Package leveldb provides a kv.Store on top of a local LevelDB database.
package leveldb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/codewandler/lrukv-go/ports/kv"
)

type Config struct {
	Path            string
	CreateIfMissing bool
	// Sync makes every write fsync before returning.
	Sync bool
}

type Store struct {
	db   *leveldb.DB
	sync bool
}

func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}

	db, err := leveldb.OpenFile(cfg.Path, &opt.Options{
		ErrorIfMissing: !cfg.CreateIfMissing,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open/create database %s: %w", cfg.Path, err)
	}

	return &Store{db: db, sync: cfg.Sync}, nil
}

// Opener opens the database directory named by location.
func Opener() kv.Opener {
	return func(_ context.Context, location string, createIfMissing bool) (kv.Store, error) {
		return Open(Config{Path: location, CreateIfMissing: createIfMissing})
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	return s.db.Put([]byte(key), value, &opt.WriteOptions{Sync: s.sync})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Delete([]byte(key), &opt.WriteOptions{Sync: s.sync})
}

// Iterate walks a snapshot of the database in key order.
func (s *Store) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	it := s.db.NewIterator(nil, nil)
	defer it.Release()

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		// the iterator reuses its buffers
		if !fn(string(it.Key()), bytes.Clone(it.Value())) {
			break
		}
	}
	return it.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*Store)(nil)
)
