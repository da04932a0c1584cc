package growthbook

import "context"

// ObservabilityClient lets callers plug in their own metrics backend for
// the counters, gauges and distributions this package emits (cache hits and
// misses, fetch successes and errors, ingest fan-out, persistence write
// errors, stream opens and stream errors).
type ObservabilityClient interface {
	// Init initializes the observability client.
	Init(ctx context.Context) error

	// Increment increments a counter metric by value.
	Increment(metricName string, value int, tags map[string]interface{}) error

	// Gauge sets a gauge metric to value.
	Gauge(metricName string, value float64, tags map[string]interface{}) error

	// Distribution records value in a distribution metric.
	Distribution(metricName string, value float64, tags map[string]interface{}) error

	// ShouldEnableHighCardinalityForThisTag reports whether a tag flagged
	// as high-cardinality should still be attached to emitted metrics.
	ShouldEnableHighCardinalityForThisTag(tag string) bool

	// Shutdown releases any resources the client holds.
	Shutdown(ctx context.Context) error
}
