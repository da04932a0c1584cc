package growthbook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeInstance is a minimal, concurrency-safe Instance test double.
type fakeInstance struct {
	mu          sync.Mutex
	apiHost     string
	clientKey   string
	userID      string
	remoteEval  bool
	features    json.RawMessage
	experiments json.RawMessage

	refreshes int32
}

func newFakeInstance(apiHost, clientKey string) *fakeInstance {
	return &fakeInstance{apiHost: apiHost, clientKey: clientKey}
}

func (f *fakeInstance) GetAPIInfo() (string, string) { return f.apiHost, f.clientKey }

func (f *fakeInstance) GetAPIHosts() APIHosts {
	return APIHosts{
		APIHost:        f.apiHost,
		FeaturesPath:   "/features",
		RemoteEvalHost: f.apiHost,
		RemoteEvalPath: "/eval",
		StreamingHost:  f.apiHost,
		StreamingPath:  "/sub",
	}
}

func (f *fakeInstance) GetClientKey() string                 { return f.clientKey }
func (f *fakeInstance) IsRemoteEval() bool                    { return f.remoteEval }
func (f *fakeInstance) GetUserID() string                     { return f.userID }
func (f *fakeInstance) GetAttributes() map[string]interface{} { return map[string]interface{}{} }
func (f *fakeInstance) GetDecryptionKey() string               { return "" }

func (f *fakeInstance) SetFeatures(v json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.features = v
	atomic.AddInt32(&f.refreshes, 1)
}

func (f *fakeInstance) GetFeatures() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.features
}

func (f *fakeInstance) SetExperiments(v json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.experiments = v
}

func (f *fakeInstance) GetExperiments() json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.experiments
}

func (f *fakeInstance) SetEncryptedFeatures(cipherText, key string, d Decrypter) error {
	plain, err := d.Decrypt(cipherText, key)
	if err != nil {
		return err
	}
	f.SetFeatures(json.RawMessage(plain))
	return nil
}

func (f *fakeInstance) SetEncryptedExperiments(cipherText, key string, d Decrypter) error {
	plain, err := d.Decrypt(cipherText, key)
	if err != nil {
		return err
	}
	f.SetExperiments(json.RawMessage(plain))
	return nil
}

func (f *fakeInstance) Log(msg string, ctx map[string]interface{}) {}

func (f *fakeInstance) refreshCount() int32 { return atomic.LoadInt32(&f.refreshes) }

// fakeFetcher serves a fixed response body/header/status for every request,
// counting how many times Do was called.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    int
	status   int
	body     string
	sseHdr   string
	err      error
	delay    chan struct{} // if non-nil, Do blocks until this is closed
}

func (f *fakeFetcher) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay != nil {
		<-f.delay
	}
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
	}
	if f.sseHdr != "" {
		resp.Header.Set("x-sse-support", f.sseHdr)
	}
	return resp, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePersistentStore is an in-memory PersistentStore.
type fakePersistentStore struct {
	mu    sync.Mutex
	items map[string]string
}

func newFakePersistentStore() *fakePersistentStore {
	return &fakePersistentStore{items: make(map[string]string)}
}

func (s *fakePersistentStore) GetItem(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[key], nil
}

func (s *fakePersistentStore) SetItem(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[string]string)
	}
	s.items[key] = value
	return nil
}

// fakeEventSourceFactory hands out a manually driven fake stream.
type fakeEventSourceFactory struct {
	mu      sync.Mutex
	opened  int
	streams []*fakeEventSource
	failN   int // fail the first failN Open calls
}

func (f *fakeEventSourceFactory) Open(ctx context.Context, url string, headers map[string]string) (EventSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.failN > 0 {
		f.failN--
		return nil, fmt.Errorf("simulated open failure")
	}
	es := &fakeEventSource{events: make(chan SSEEvent), errs: make(chan error, 8)}
	f.streams = append(f.streams, es)
	return es, nil
}

type fakeEventSource struct {
	events chan SSEEvent
	errs   chan error
	once   sync.Once
}

func (es *fakeEventSource) Events() <-chan SSEEvent { return es.events }
func (es *fakeEventSource) Errors() <-chan error    { return es.errs }
func (es *fakeEventSource) Close() {
	es.once.Do(func() { close(es.events) })
}
