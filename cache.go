package growthbook

import (
	"context"
	"encoding/json"
)

// orderedCacheStore is a map from repository key to cache entry that
// preserves insertion order, since spec-level iteration (persistence
// serialization, in particular) must be deterministic and Go's map type
// is not.
type orderedCacheStore struct {
	order   []string
	entries map[string]*cacheEntry
}

func newOrderedCacheStore() *orderedCacheStore {
	return &orderedCacheStore{entries: make(map[string]*cacheEntry)}
}

func (s *orderedCacheStore) get(key string) (*cacheEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// set installs entry under key, appending key to the order slice only the
// first time it is seen.
func (s *orderedCacheStore) set(key string, entry *cacheEntry) {
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = entry
}

func (s *orderedCacheStore) clear() {
	s.order = nil
	s.entries = make(map[string]*cacheEntry)
}

func (s *orderedCacheStore) toKeyedEntries() []keyedEntry {
	out := make([]keyedEntry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, keyedEntry{Key: k, Entry: *s.entries[k]})
	}
	return out
}

func (s *orderedCacheStore) loadKeyedEntries(pairs []keyedEntry) {
	s.clear()
	for _, p := range pairs {
		entry := p.Entry
		s.set(p.Key, &entry)
	}
}

// ensureHydrated loads the cache from the persistent store exactly once per
// process (or since the last clearCache/ResetForTest). It must be called
// with r.mu held.
func (r *Repository) ensureHydrated(ctx context.Context) {
	if r.hydrated || r.polyfills.PersistentStore == nil {
		r.hydrated = true
		return
	}
	r.hydrated = true

	raw, err := r.polyfills.PersistentStore.GetItem(ctx, r.settings.CacheKey)
	if err != nil {
		Logger().LogStep(PhaseFetch, "persistent store read failed, starting with empty cache")
		return
	}
	if raw == "" {
		return
	}

	var pairs []keyedEntry
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		Logger().LogStep(PhaseFetch, "persisted cache JSON invalid, treating as absent")
		return
	}
	r.cache.loadKeyedEntries(pairs)
}

// persistLocked serializes the entire cache and writes it to the persistent
// store, if one is configured. The write is fire-and-forget: it runs on its
// own goroutine so a slow or failing store never blocks a caller waiting on
// a cache mutation, per the persistence mirror's write policy.
func (r *Repository) persistLocked() {
	store := r.polyfills.PersistentStore
	if store == nil {
		return
	}
	pairs := r.cache.toKeyedEntries()
	data, err := json.Marshal(pairs)
	if err != nil {
		Logger().LogError(err)
		return
	}
	cacheKey := r.settings.CacheKey

	go func() {
		if err := store.SetItem(context.Background(), cacheKey, string(data)); err != nil {
			Logger().LogStep(PhaseFetch, "persistent store write failed")
			r.obsIncrement("persist_errors", 1, nil)
		}
	}()
}
