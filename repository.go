package growthbook

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CacheSettings holds the global, process-wide knobs the repository
// consults. Constructed with defaults by NewRepository, then merged in
// place by ConfigureCache -- the same partial-merge convention the
// teacher's Options struct uses.
type CacheSettings struct {
	StaleTTL       time.Duration
	CacheKey       string
	BackgroundSync bool
}

func defaultCacheSettings() CacheSettings {
	return CacheSettings{
		StaleTTL:       DefaultStaleTTL,
		CacheKey:       DefaultCacheKey,
		BackgroundSync: true,
	}
}

// CacheSettingsOptions is the partial-override argument to ConfigureCache;
// nil fields leave the current setting untouched.
type CacheSettingsOptions struct {
	StaleTTL       *time.Duration
	CacheKey       *string
	BackgroundSync *bool
}

// RefreshOptions configures a single RefreshFeatures call.
type RefreshOptions struct {
	// Timeout, when non-nil, wraps the fetch in promiseTimeout: a value of
	// 0 resolves immediately with a zero Payload while the fetch keeps
	// running in the background. A nil Timeout means "wait for the fetch",
	// matching a call that never passed a timeout option at all.
	Timeout        *time.Duration
	SkipCache      bool
	AllowStale     bool
	UpdateInstance bool
	// BackgroundSync, if non-nil and false, latches the global
	// CacheSettings.BackgroundSync to false for the whole process -- see
	// §4.I / §9's documented open question, preserved as specified.
	BackgroundSync *bool
}

// Repository is the process-wide cache and refresh engine shared by every
// SDK instance in the process. The zero value is not usable; construct one
// with NewRepository, or use the package-level functions backed by the
// default singleton.
type Repository struct {
	mu sync.Mutex

	cache            *orderedCacheStore
	streamingSupport map[string]bool
	subscriptions    map[string][]Instance
	streams          map[string]*streamChannel

	hydrated bool
	settings CacheSettings

	polyfills Polyfills
	inFlight  singleflight.Group
	diag      *diagnostics
}

// NewRepository constructs an independent Repository. Most programs should
// use the package-level functions instead, which share one process-wide
// instance; NewRepository exists for tests and for hosts that deliberately
// want isolated repositories.
func NewRepository() *Repository {
	return &Repository{
		cache:            newOrderedCacheStore(),
		streamingSupport: make(map[string]bool),
		subscriptions:    make(map[string][]Instance),
		streams:          make(map[string]*streamChannel),
		settings:         defaultCacheSettings(),
		polyfills:        defaultPolyfills(),
		diag:             newDiagnostics(),
	}
}

var defaultRepository = NewRepository()

// ResetForTest discards all state in the default repository: cache,
// in-flight requests, subscriptions, streams and the hydration flag. It
// exists for test isolation between scenarios that share the package-level
// singleton.
func ResetForTest() {
	defaultRepository = NewRepository()
}

func (r *Repository) obsIncrement(name string, value int, tags map[string]interface{}) {
	if tags == nil {
		tags = map[string]interface{}{}
	}
	Logger().Increment(name, value, tags)
}

// RefreshFeatures implements the public refreshFeatures operation (§4.I):
// it runs the fetch-with-cache algorithm and, if UpdateInstance is set and
// a payload was obtained, applies it to instance.
func (r *Repository) RefreshFeatures(ctx context.Context, instance Instance, opts RefreshOptions) (Payload, error) {
	if opts.BackgroundSync != nil && !*opts.BackgroundSync {
		r.mu.Lock()
		r.settings.BackgroundSync = false
		r.tearDownStreamsLocked()
		r.mu.Unlock()
	}

	payload := r.fetchWithCache(ctx, instance, opts)

	if opts.UpdateInstance && !payload.IsZero() {
		if err := refreshInstance(instance, payload, r.polyfills.Decrypter); err != nil {
			return payload, err
		}
	}
	return payload, nil
}

// fetchWithCache implements §4.I's fetch-with-cache algorithm.
func (r *Repository) fetchWithCache(ctx context.Context, instance Instance, opts RefreshOptions) Payload {
	key := computeKey(instance)

	r.mu.Lock()
	r.ensureHydrated(ctx)
	entry, exists := r.cache.get(key)

	if exists && !opts.SkipCache && (opts.AllowStale || !entry.stale()) {
		if entry.SSE {
			r.streamingSupport[key] = true
		}
		payload := entry.Data
		stale := entry.stale()
		r.mu.Unlock()

		if stale {
			go r.fetchFromServer(context.WithoutCancel(ctx), instance)
		} else {
			r.mu.Lock()
			r.maybeStartStreamLocked(key, instance)
			r.mu.Unlock()
		}
		r.obsIncrement("cache_hit", 1, map[string]interface{}{"url": key})
		return payload
	}
	r.mu.Unlock()

	r.obsIncrement("cache_miss", 1, map[string]interface{}{"url": key})

	if opts.Timeout != nil {
		return promiseTimeout(ctx, *opts.Timeout, func(ctx context.Context) Payload {
			return r.fetchFromServer(ctx, instance)
		})
	}
	return r.fetchFromServer(ctx, instance)
}

// promiseTimeout runs fn on its own goroutine (which is never cancelled --
// it keeps running to populate the cache per §4.I) and resolves with its
// result, or with a zero Payload if timeout elapses first. First
// resolution wins.
func promiseTimeout(parent context.Context, timeout time.Duration, fn func(ctx context.Context) Payload) Payload {
	result := make(chan Payload, 1)
	bgCtx := context.WithoutCancel(parent)
	go func() {
		result <- fn(bgCtx)
	}()

	if timeout <= 0 {
		select {
		case p := <-result:
			return p
		default:
			return Payload{}
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p := <-result:
		return p
	case <-timer.C:
		return Payload{}
	}
}

// Subscribe implements the public subscribe operation (§4.H): registers
// instance under its current repository key.
func (r *Repository) Subscribe(instance Instance) {
	key := computeKey(instance)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[key] = append(r.subscriptions[key], instance)
}

// Unsubscribe implements the public unsubscribe operation: removes instance
// from every key's subscriber set, since its key may have changed since it
// subscribed.
func (r *Repository) Unsubscribe(instance Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, instances := range r.subscriptions {
		filtered := instances[:0:0]
		for _, i := range instances {
			if i != instance {
				filtered = append(filtered, i)
			}
		}
		r.subscriptions[key] = filtered
	}
}

// ClearCache implements the public clearCache operation (§4.I): drops every
// map, tears down every stream, resets hydration, and persists the now
// empty cache.
func (r *Repository) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tearDownStreamsLocked()
	r.cache.clear()
	r.inFlight = singleflight.Group{}
	r.subscriptions = make(map[string][]Instance)
	r.streamingSupport = make(map[string]bool)
	r.hydrated = false
	r.persistLocked()
}

// ConfigureCache implements the public configureCache operation: merges
// opts into the global settings, tearing down every stream if
// BackgroundSync becomes false.
func (r *Repository) ConfigureCache(opts CacheSettingsOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.StaleTTL != nil {
		r.settings.StaleTTL = *opts.StaleTTL
	}
	if opts.CacheKey != nil && *opts.CacheKey != "" {
		r.settings.CacheKey = *opts.CacheKey
	}
	if opts.BackgroundSync != nil {
		r.settings.BackgroundSync = *opts.BackgroundSync
		if !*opts.BackgroundSync {
			r.tearDownStreamsLocked()
		}
	}
}

// SetPolyfills implements the public setPolyfills operation: merges any
// non-nil field of opts into the current polyfill set.
func (r *Repository) SetPolyfills(opts PolyfillOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if opts.Fetcher != nil {
		r.polyfills.Fetcher = opts.Fetcher
	}
	if opts.EventSourceFactory != nil {
		r.polyfills.EventSourceFactory = opts.EventSourceFactory
	}
	if opts.PersistentStore != nil {
		r.polyfills.PersistentStore = opts.PersistentStore
	}
	if opts.Decrypter != nil {
		r.polyfills.Decrypter = opts.Decrypter
	}
}

// tearDownStreamsLocked closes every open channel and empties the stream
// map. Caller must hold r.mu.
func (r *Repository) tearDownStreamsLocked() {
	for key := range r.streams {
		r.closeChannelLocked(key)
	}
}

// Package-level surface backed by the default, process-wide Repository.

// RefreshFeatures runs RefreshFeatures against the default repository.
func RefreshFeatures(ctx context.Context, instance Instance, opts RefreshOptions) (Payload, error) {
	return defaultRepository.RefreshFeatures(ctx, instance, opts)
}

// Subscribe registers instance with the default repository.
func Subscribe(instance Instance) { defaultRepository.Subscribe(instance) }

// Unsubscribe removes instance from the default repository.
func Unsubscribe(instance Instance) { defaultRepository.Unsubscribe(instance) }

// ClearCache clears the default repository.
func ClearCache() { defaultRepository.ClearCache() }

// ConfigureCache merges opts into the default repository's settings.
func ConfigureCache(opts CacheSettingsOptions) { defaultRepository.ConfigureCache(opts) }

// SetPolyfills merges opts into the default repository's polyfills.
func SetPolyfills(opts PolyfillOptions) { defaultRepository.SetPolyfills(opts) }
