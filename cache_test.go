package growthbook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S5: persist-then-hydrate preserves cache entries, including staleAt to ms
// precision.
func TestPersistHydrateRoundTrip(t *testing.T) {
	store := newFakePersistentStore()
	r := NewRepository()
	r.polyfills.PersistentStore = store
	r.polyfills.Fetcher = &fakeFetcher{body: `{}`}

	staleAt1 := now().Add(10 * time.Second).Round(time.Millisecond)
	staleAt2 := now().Add(20 * time.Second).Round(time.Millisecond)

	r.mu.Lock()
	r.cache.set("hostA||keyA", &cacheEntry{
		Data:    Payload{Features: []byte(`{"a":1}`)},
		Version: "v1",
		StaleAt: staleAt1,
		SSE:     true,
	})
	r.cache.set("hostA||keyB", &cacheEntry{
		Data:    Payload{Features: []byte(`{"b":2}`)},
		Version: "v2",
		StaleAt: staleAt2,
	})
	r.persistLocked()
	r.mu.Unlock()

	require.Eventually(t, func() bool {
		v, _ := store.GetItem(context.Background(), r.settings.CacheKey)
		return v != ""
	}, time.Second, 5*time.Millisecond)

	// Simulate a process restart: fresh maps, hydration flag cleared.
	r2 := NewRepository()
	r2.polyfills.PersistentStore = store

	r2.mu.Lock()
	r2.ensureHydrated(context.Background())
	entryA, okA := r2.cache.get("hostA||keyA")
	entryB, okB := r2.cache.get("hostA||keyB")
	r2.mu.Unlock()

	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, "v1", entryA.Version)
	assert.True(t, entryA.SSE)
	assert.WithinDuration(t, staleAt1, entryA.StaleAt, time.Millisecond)
	assert.WithinDuration(t, staleAt2, entryB.StaleAt, time.Millisecond)
	assert.JSONEq(t, `{"a":1}`, string(entryA.Data.Features))
}

func TestEnsureHydrated_OnlyHydratesOnce(t *testing.T) {
	store := newFakePersistentStore()
	store.items[DefaultCacheKey] = `[["k",{"data":{},"version":"","staleAt":"2024-01-01T00:00:00Z","sse":false}]]`

	r := NewRepository()
	r.polyfills.PersistentStore = store

	r.mu.Lock()
	r.ensureHydrated(context.Background())
	_, ok := r.cache.get("k")
	r.mu.Unlock()
	require.True(t, ok)

	// Mutate the store directly; a second ensureHydrated must not reload it.
	store.items[DefaultCacheKey] = `[]`

	r.mu.Lock()
	r.ensureHydrated(context.Background())
	_, stillThere := r.cache.get("k")
	r.mu.Unlock()
	assert.True(t, stillThere)
}

func TestEnsureHydrated_InvalidJSONTreatedAsAbsent(t *testing.T) {
	store := newFakePersistentStore()
	store.items[DefaultCacheKey] = `not json`

	r := NewRepository()
	r.polyfills.PersistentStore = store

	r.mu.Lock()
	r.ensureHydrated(context.Background())
	size := len(r.cache.order)
	r.mu.Unlock()
	assert.Equal(t, 0, size)
}

func TestOrderedCacheStore_PreservesInsertionOrder(t *testing.T) {
	s := newOrderedCacheStore()
	s.set("b", &cacheEntry{})
	s.set("a", &cacheEntry{})
	s.set("b", &cacheEntry{Version: "updated"})

	assert.Equal(t, []string{"b", "a"}, s.order)
	entry, _ := s.get("b")
	assert.Equal(t, "updated", entry.Version)
}
