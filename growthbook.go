// Package growthbook implements the shared feature repository used by
// GrowthBook SDK instances to fetch, cache, stream and persist feature and
// experiment payloads from a remote GrowthBook API.
//
// A process may host many independent SDK instances; they all share a
// single process-wide repository so that redundant network traffic is
// minimized, cached data is served instantly, and server-pushed updates
// (via server-sent events) reach every subscribed instance.
package growthbook

import "time"

// DefaultStaleTTL is how long a cache entry is considered fresh after it is
// ingested.
const DefaultStaleTTL = 60 * time.Second

// DefaultCacheKey is the record name used to persist the cache mapping.
const DefaultCacheKey = "gbFeaturesCache"

// MaxStreamBackoff is the ceiling on jittered exponential backoff between
// stream reopen attempts.
const MaxStreamBackoff = 5 * time.Minute

// keySeparator joins the components of a repository key. It must not appear
// in an apiHost, clientKey or userID for keys to remain unambiguous; this
// matches the separator used by the original SDK this repository mirrors.
const keySeparator = "||"
