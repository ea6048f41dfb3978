package redis

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/codewandler/lrukv-go/ports/kv"
)

const mgetBatch = 256

// Store is a kv.Store in a Redis keyspace. All keys are stored under a
// common prefix, which doubles as the store's location.
type Store struct {
	db            redis.UniversalClient
	prefix        string
	scanBatchSize int64
	owned         bool
}

// NewStore wraps an existing client. The caller keeps ownership of it.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		db:            client,
		prefix:        prefix,
		scanBatchSize: 1000,
	}
}

// Opener connects using cfg and uses location as the key prefix. Redis has
// no notion of a missing keyspace, so createIfMissing is ignored.
func Opener(cfg Config) kv.Opener {
	return func(ctx context.Context, location string, _ bool) (kv.Store, error) {
		client, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s := NewStore(client, location)
		if cfg.ScanBatchSize > 0 {
			s.scanBatchSize = cfg.ScanBatchSize
		}
		s.owned = true
		return s, nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kv.ErrNotFound
	}
	return val, err
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Del(ctx, s.prefix+key).Err()
}

// Iterate collects the prefix's keys with SCAN, sorts them and fetches the
// values in MGET batches. Keys that vanish in between are skipped.
func (s *Store) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	seen := map[string]struct{}{}
	var cursor uint64
	for {
		batch, next, err := s.db.Scan(ctx, cursor, escapeGlob(s.prefix)+"*", s.scanBatchSize).Result()
		if err != nil {
			return err
		}
		// SCAN may return a key more than once
		for _, k := range batch {
			seen[k] = struct{}{}
		}
		if cursor = next; cursor == 0 {
			break
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for chunk := range slices.Chunk(keys, mgetBatch) {
		vals, err := s.db.MGet(ctx, chunk...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			str, ok := v.(string)
			if !ok {
				continue
			}
			if !fn(strings.TrimPrefix(chunk[i], s.prefix), []byte(str)) {
				return nil
			}
		}
	}
	return nil
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	// bytewise: prefixes need not be valid UTF-8
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*Store)(nil)
)
