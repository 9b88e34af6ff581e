package changesetcache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jronak/cgimap-go/internal/changesetcache"
	"github.com/jronak/cgimap-go/internal/osmtypes"
)

func TestCache_GetPopulatesOnMiss(t *testing.T) {
	var calls int32
	loader := func(ctx context.Context, id osmtypes.ChangesetID) (changesetcache.Changeset, error) {
		atomic.AddInt32(&calls, 1)
		return changesetcache.Changeset{DataPublic: true, UserID: uint64(id), DisplayName: "alice"}, nil
	}

	c, err := changesetcache.New(10, loader)
	require.NoError(t, err)

	cs, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cs.UserID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// second fetch is a cache hit, loader not invoked again
	cs2, err := c.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, cs, cs2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_MissingRowProducesSyntheticPrivateChangeset(t *testing.T) {
	loader := func(ctx context.Context, id osmtypes.ChangesetID) (changesetcache.Changeset, error) {
		// loader never returns an error for a missing row, per spec §4.2
		return changesetcache.Changeset{DataPublic: false}, nil
	}

	c, err := changesetcache.New(10, loader)
	require.NoError(t, err)

	cs, err := c.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, cs.DataPublic)
	assert.Zero(t, cs.UserID)
	assert.Empty(t, cs.DisplayName)
}

func TestCache_ConcurrentMissStormCallsLoaderOnce(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context, id osmtypes.ChangesetID) (changesetcache.Changeset, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return changesetcache.Changeset{DataPublic: true, UserID: 7}, nil
	}

	c, err := changesetcache.New(10, loader)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			cs, err := c.Get(context.Background(), 1)
			assert.NoError(t, err)
			assert.Equal(t, uint64(7), cs.UserID)
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var calls int32
	loader := func(ctx context.Context, id osmtypes.ChangesetID) (changesetcache.Changeset, error) {
		atomic.AddInt32(&calls, 1)
		return changesetcache.Changeset{DataPublic: true, UserID: uint64(id)}, nil
	}

	c, err := changesetcache.New(2, loader)
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = c.Get(ctx, 1)
	_, _ = c.Get(ctx, 2)
	_, _ = c.Get(ctx, 3) // evicts 1 (least recently used)

	assert.Equal(t, 2, c.Len())

	_, _ = c.Get(ctx, 2) // still cached: loader not invoked
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	_, _ = c.Get(ctx, 1) // was evicted: loader invoked again
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}
