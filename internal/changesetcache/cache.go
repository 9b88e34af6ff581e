// Package changesetcache implements the bounded changeset metadata cache
// from spec §4.2: a capacity-bounded mapping from changeset id to author
// metadata, backed by a loader that runs on its own database session.
//
// The LRU storage is hashicorp/golang-lru/v2.Cache and miss-storm
// deduplication is golang.org/x/sync/singleflight.Group, matching the
// teacher's own in-process cache at internal/rpc/cache.go (hand-rolled
// map + mutex) generalized to a real bounded/evicting structure, since the
// teacher's query cache doesn't need eviction (it has a TTL-based sweep
// instead) but this one does.
package changesetcache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jronak/cgimap-go/internal/osmtypes"
)

// Changeset is the cached projection of a changeset's author metadata.
type Changeset struct {
	DataPublic  bool
	UserID      uint64
	DisplayName string
}

// Loader fetches a changeset's author metadata on a cache miss. It must
// run on a database session distinct from any selection engine's, and
// must never return a nil/error pair that leaves the cache without an
// entry — on a missing row it returns a synthetic private changeset
// rather than an error (spec §4.2, §7).
type Loader func(ctx context.Context, id osmtypes.ChangesetID) (Changeset, error)

// Cache is the shared, concurrency-safe changeset metadata cache. One
// instance is owned by the selection factory and shared across all
// engines it produces.
type Cache struct {
	mu     sync.RWMutex
	lru    *lru.Cache[osmtypes.ChangesetID, Changeset]
	load   Loader
	flight singleflight.Group
}

// New creates a Cache with the given capacity and loader. capacity must
// be > 0.
func New(capacity uint64, load Loader) (*Cache, error) {
	l, err := lru.New[osmtypes.ChangesetID, Changeset](int(capacity))
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, load: load}, nil
}

// Get returns the cached metadata for id, invoking the loader on a miss.
// Concurrent Get calls for the same id that miss together collapse into a
// single loader invocation (spec §5: "a miss storm on a single id
// produces at most one loader call").
func (c *Cache) Get(ctx context.Context, id osmtypes.ChangesetID) (Changeset, error) {
	c.mu.RLock()
	if cs, ok := c.lru.Get(id); ok {
		c.mu.RUnlock()
		return cs, nil
	}
	c.mu.RUnlock()

	key := changesetKey(id)
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key in case another caller
		// populated the cache between our RUnlock above and here.
		c.mu.RLock()
		if cs, ok := c.lru.Get(id); ok {
			c.mu.RUnlock()
			return cs, nil
		}
		c.mu.RUnlock()

		cs, err := c.load(ctx, id)
		if err != nil {
			return Changeset{}, err
		}

		c.mu.Lock()
		c.lru.Add(id, cs)
		c.mu.Unlock()

		return cs, nil
	})
	if err != nil {
		return Changeset{}, err
	}
	return v.(Changeset), nil
}

func changesetKey(id osmtypes.ChangesetID) string {
	// decimal formatting without fmt to keep this hot path allocation-light
	if id == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	n := id
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Len returns the number of entries currently cached, for tests and
// diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}
