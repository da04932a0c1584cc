package growthbook

import (
	"encoding/json"
	"strings"
	"time"
)

// Payload is the server response body: an opaque bag of feature and
// experiment definitions. Every field is optional; unknown fields are
// ignored (encoding/json already does this for us).
type Payload struct {
	Features             json.RawMessage `json:"features,omitempty"`
	Experiments          json.RawMessage `json:"experiments,omitempty"`
	EncryptedFeatures    string          `json:"encryptedFeatures,omitempty"`
	EncryptedExperiments string          `json:"encryptedExperiments,omitempty"`
	DateUpdated          string          `json:"dateUpdated,omitempty"`
}

// IsZero reports whether the payload carries no data at all -- the shape
// the fetcher resolves with on a network or parse failure per its
// never-reject convention.
func (p Payload) IsZero() bool {
	return len(p.Features) == 0 && len(p.Experiments) == 0 &&
		p.EncryptedFeatures == "" && p.EncryptedExperiments == "" && p.DateUpdated == ""
}

// cacheEntry is the unit of state the cache store, persistence mirror and
// streaming engine all read and write.
type cacheEntry struct {
	Data    Payload   `json:"data"`
	Version string    `json:"version"`
	StaleAt time.Time `json:"staleAt"`
	SSE     bool      `json:"sse"`
}

func (e *cacheEntry) stale() bool {
	return now().After(e.StaleAt)
}

// keyedEntry is a [key, entry] pair, the wire shape the persistent store
// record uses so that insertion order survives a round trip through JSON
// (a plain map does not preserve order).
type keyedEntry struct {
	Key   string
	Entry cacheEntry
}

// MarshalJSON encodes the pair as a two-element array: ["key", {...}].
func (k keyedEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{k.Key, k.Entry})
}

// UnmarshalJSON decodes a two-element array back into the pair.
func (k *keyedEntry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &k.Key); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &k.Entry)
}

// computeKey builds the repository key for an instance: the composite
// identity that lets otherwise-distinct SDK instances share a cache entry,
// an in-flight fetch, and a streaming channel.
func computeKey(instance Instance) string {
	apiHost, clientKey := instance.GetAPIInfo()
	if instance.IsRemoteEval() {
		return strings.Join([]string{apiHost, clientKey, instance.GetUserID()}, keySeparator)
	}
	return strings.Join([]string{apiHost, clientKey}, keySeparator)
}
