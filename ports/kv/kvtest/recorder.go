// Package kvtest holds test helpers for kv.Store implementations: a
// recording, fault-injecting wrapper and a conformance suite every adapter
// runs against its backend.
package kvtest

import (
	"context"
	"sync"

	"github.com/codewandler/lrukv-go/ports/kv"
)

// Recorder wraps a Store, counts calls per operation and can be told to fail
// them.
type Recorder struct {
	inner kv.Store

	mu      sync.Mutex
	gets    int
	puts    int
	deletes int
	getErr  error
	putErr  error
	delErr  error
	writes  []string
}

func NewRecorder(inner kv.Store) *Recorder {
	return &Recorder{inner: inner}
}

func (r *Recorder) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.Lock()
	r.gets++
	err := r.getErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.inner.Get(ctx, key)
}

func (r *Recorder) Put(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	r.puts++
	r.writes = append(r.writes, key)
	err := r.putErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.inner.Put(ctx, key, value)
}

func (r *Recorder) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	r.deletes++
	err := r.delErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.inner.Delete(ctx, key)
}

// Iterate delegates to the wrapped store when it is iterable and yields
// nothing otherwise.
func (r *Recorder) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	it, ok := r.inner.(kv.Iterable)
	if !ok {
		return nil
	}
	return it.Iterate(ctx, fn)
}

// FailGets makes every following Get return err. nil restores normal behaviour.
func (r *Recorder) FailGets(err error) { r.mu.Lock(); r.getErr = err; r.mu.Unlock() }

// FailPuts makes every following Put return err without writing.
func (r *Recorder) FailPuts(err error) { r.mu.Lock(); r.putErr = err; r.mu.Unlock() }

// FailDeletes makes every following Delete return err without deleting.
func (r *Recorder) FailDeletes(err error) { r.mu.Lock(); r.delErr = err; r.mu.Unlock() }

func (r *Recorder) Gets() int    { r.mu.Lock(); defer r.mu.Unlock(); return r.gets }
func (r *Recorder) Puts() int    { r.mu.Lock(); defer r.mu.Unlock(); return r.puts }
func (r *Recorder) Deletes() int { r.mu.Lock(); defer r.mu.Unlock(); return r.deletes }

// Writes returns the keys passed to Put, in call order.
func (r *Recorder) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

// Reset zeroes the counters and clears injected failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets, r.puts, r.deletes = 0, 0, 0
	r.getErr, r.putErr, r.delErr = nil, nil, nil
	r.writes = nil
}

var (
	_ kv.Store    = (*Recorder)(nil)
	_ kv.Iterable = (*Recorder)(nil)
)
