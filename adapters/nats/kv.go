package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/lrukv-go/internal/keyenc"
	"github.com/codewandler/lrukv-go/ports/kv"
)

const defaultTimeout = 5 * time.Second

type KvConfig struct {
	Connect         Connector    // Connect is used to create the underlying NATS connection. Required.
	Log             *slog.Logger // Log for diagnostics (optional)
	Bucket          string
	CreateIfMissing bool // create the bucket when it does not exist yet

	// Storage defaults to file storage.
	Storage  jetstream.StorageType
	Replicas int
	// MaxBytes limits the bucket size; 0 means unlimited.
	MaxBytes int64
	// Timeout bounds each operation on top of the caller's context (default: 5s).
	Timeout time.Duration
}

// KvStore is a kv.Store backed by a JetStream key-value bucket. Keys are
// hex-encoded since bucket keys are limited to subject-safe characters.
type KvStore struct {
	kv      jetstream.KeyValue
	close   closeFunc
	timeout time.Duration
	log     *slog.Logger
}

func NewKvStore(ctx context.Context, cfg KvConfig) (*KvStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Connect == nil {
		return nil, errors.New("connector is required")
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("bucket", cfg.Bucket))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	nc, closeConn, err := cfg.Connect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeConn()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bucket jetstream.KeyValue
	if cfg.CreateIfMissing {
		maxBytes := cfg.MaxBytes
		if maxBytes == 0 {
			maxBytes = -1
		}
		bucket, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:   cfg.Bucket,
			Storage:  cfg.Storage,
			Replicas: cfg.Replicas,
			MaxBytes: maxBytes,
		})
	} else {
		bucket, err = js.KeyValue(ctx, cfg.Bucket)
	}
	if err != nil {
		closeConn()
		return nil, fmt.Errorf("failed to open bucket %s: %w", cfg.Bucket, err)
	}

	log.Debug("kv bucket opened", slog.Bool("created", cfg.CreateIfMissing))
	return &KvStore{kv: bucket, close: closeConn, timeout: timeout, log: log}, nil
}

// Opener opens the bucket named by location.
func Opener(connect Connector) kv.Opener {
	return func(ctx context.Context, location string, createIfMissing bool) (kv.Store, error) {
		return NewKvStore(ctx, KvConfig{
			Connect:         connect,
			Bucket:          location,
			CreateIfMissing: createIfMissing,
		})
	}
}

func (k *KvStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	e, err := k.kv.Get(ctx, keyenc.Encode(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return e.Value(), nil
}

func (k *KvStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	_, err := k.kv.Put(ctx, keyenc.Encode(key), value)
	return err
}

func (k *KvStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	return k.kv.Delete(ctx, keyenc.Encode(key))
}

// Iterate lists the bucket's keys, sorts them and fetches each value. Keys
// deleted while iterating are skipped.
func (k *KvStore) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	lister, err := k.kv.ListKeys(ctx)
	if err != nil {
		return err
	}

	var keys []string
	for enc := range lister.Keys() {
		key, err := keyenc.Decode(enc)
		if err != nil {
			k.log.Warn("skipping foreign key", slog.String("key", enc))
			continue
		}
		keys = append(keys, key)
	}
	if err := lister.Stop(); err != nil {
		return err
	}
	slices.Sort(keys)

	for _, key := range keys {
		v, err := k.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !fn(key, v) {
			return nil
		}
	}
	return nil
}

func (k *KvStore) Close() error {
	k.close()
	return nil
}

var (
	_ kv.Store    = (*KvStore)(nil)
	_ kv.Iterable = (*KvStore)(nil)
)
