package growthbook

import (
	"context"
	"net/http"
)

// Fetcher issues the outbound HTTP request built by the fetch path. It is
// the growthbook analogue of the pluggable `fetch` global: swap it in tests
// for a fake, or in production for a client with your own transport,
// timeouts, or tracing.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultFetcher wraps an *http.Client. It is the fallback used when no
// Fetcher polyfill has been supplied.
type DefaultFetcher struct {
	Client *http.Client
}

// Do implements Fetcher.
func (f *DefaultFetcher) Do(req *http.Request) (*http.Response, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// SSEEvent is a single parsed server-sent event.
type SSEEvent struct {
	Name string
	Data []byte
}

// EventSource is a single open server-sent-event connection. Events and
// Errors are read until Close is called or the connection is closed by the
// remote end (in which case Events closes and a final error, if any,
// arrives on Errors).
type EventSource interface {
	Events() <-chan SSEEvent
	Errors() <-chan error
	Close()
}

// EventSourceFactory opens a new EventSource. It is the growthbook analogue
// of the browser's `EventSource` constructor.
type EventSourceFactory interface {
	Open(ctx context.Context, url string, headers map[string]string) (EventSource, error)
}

// PersistentStore is an async key-value store the cache mirrors itself
// into on every mutation, and hydrates itself from once lazily. It is the
// growthbook analogue of `localStorage`. A nil PersistentStore leaves the
// repository in memory-only mode.
type PersistentStore interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key string, value string) error
}

// Decrypter decrypts an encryptedFeatures/encryptedExperiments payload
// field using the instance's decryption key. It is the growthbook analogue
// of a host environment's SubtleCrypto.
type Decrypter interface {
	Decrypt(cipherText string, key string) (string, error)
}

// Polyfills bundles every environment shim the repository consults. All
// fields are independently overridable via SetPolyfills; a missing shim is
// left absent rather than defaulted to a panic.
type Polyfills struct {
	Fetcher            Fetcher
	EventSourceFactory EventSourceFactory
	PersistentStore    PersistentStore
	Decrypter          Decrypter
}

// PolyfillOptions is the partial-override argument to SetPolyfills; only
// non-nil fields replace the current polyfill.
type PolyfillOptions struct {
	Fetcher            Fetcher
	EventSourceFactory EventSourceFactory
	PersistentStore    PersistentStore
	Decrypter          Decrypter
}

// defaultPolyfills resolves the repository's starting shims from whatever
// this process makes available: a stdlib HTTP client, our own SSE client,
// and stdlib AES for decryption. There is no default PersistentStore --
// disk persistence is opt-in.
func defaultPolyfills() Polyfills {
	return Polyfills{
		Fetcher:            &DefaultFetcher{Client: http.DefaultClient},
		EventSourceFactory: &DefaultEventSourceFactory{},
		PersistentStore:    nil,
		Decrypter:          &AESDecrypter{},
	}
}
