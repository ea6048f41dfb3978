// Package kvstore combines an in-memory LRU cache with a durable key-value
// store using the cache-aside pattern.
//
// # Semantics
//
//   - Get consults the cache first. On a miss it reads the backing store and,
//     if the key exists there, fills the cache.
//   - Put writes the backing store first and the cache second. If the cache
//     already holds the exact same bytes for the key, the backing write is
//     skipped (write elision).
//   - Delete removes the key from the backing store, then from the cache.
//
// A failed backing write or delete drops the key from the cache before the
// error is returned, so the cache never holds a value the backing store may
// not.
//
// # Usage
//
//	st, err := kvstore.OpenWith(ctx, leveldb.Opener(), "/var/lib/app/kv", true,
//	    kvstore.WithCapacity(10_000),
//	    kvstore.WithLog(log),
//	)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	_ = st.Put(ctx, "user:123", data)
//	v, ok, err := st.Get(ctx, "user:123")
//
// # Concurrency
//
// [Store] serializes every operation under a single mutex. [Sharded] splits
// the key space over several stores by key hash; the same key always lands
// on the same shard, so per-key behaviour is unchanged while unrelated keys
// proceed in parallel.
package kvstore
