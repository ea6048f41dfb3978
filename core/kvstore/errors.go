package kvstore

import "errors"

var (
	// ErrOpen is returned when the backing store cannot be opened or the
	// cache cannot be preloaded from it. No store is produced.
	ErrOpen = errors.New("kvstore: open failed")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: store is closed")
)
