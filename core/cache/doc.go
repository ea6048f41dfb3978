// Package cache provides the volatile half of the store: a bounded,
// recency-ordered key-value container.
//
// The package defines one interface, [Cache], with two implementations:
//
//   - [LRU]: fixed-capacity least-recently-used cache
//   - [Nop]: a cache that holds nothing, useful to disable caching
//
// # LRU
//
// [LRU] keeps its recency list in an arena of nodes addressed by index.
// Get, Put and Delete are O(1); a Get or Put on the entry that is already
// most recently used does not touch the list at all.
//
//	c := cache.NewLRU(cache.LRUOpts[string, []byte]{Size: 1024})
//	c.Put("user:123", data)
//	if v, ok := c.Get("user:123"); ok {
//	    // Use v
//	}
//
// [LRU] performs no locking. The store in package kvstore owns its cache
// and only touches it while holding its own lock.
package cache
