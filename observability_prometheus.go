package growthbook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObservabilityClient is this package's ObservabilityClient
// implementation; none is installed unless one is passed to
// InitializeGlobalOutputLogger. Every metric this package emits is namespaced under
// growthbook_repository and registered lazily on first use, since the tag
// set (and therefore the label set) of a given metric name is fixed only
// after its first call.
type PrometheusObservabilityClient struct {
	Registerer prometheus.Registerer

	// HighCardinalityTags, when true, allows tags the output logger flags
	// as high-cardinality (currently "url") through as Prometheus labels.
	// Left false by default: unbounded label values leak Prometheus series.
	HighCardinalityTags bool

	mu          sync.Mutex
	counters    map[string]*prometheus.CounterVec
	gauges      map[string]*prometheus.GaugeVec
	histograms  map[string]*prometheus.HistogramVec
}

// Init implements ObservabilityClient.
func (c *PrometheusObservabilityClient) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]*prometheus.CounterVec)
	c.gauges = make(map[string]*prometheus.GaugeVec)
	c.histograms = make(map[string]*prometheus.HistogramVec)
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	return nil
}

// Increment implements ObservabilityClient.
func (c *PrometheusObservabilityClient) Increment(metricName string, value int, tags map[string]interface{}) error {
	labels, keys := stringifyTags(tags)
	vec, err := c.counterVec(metricName, keys)
	if err != nil {
		return err
	}
	vec.With(labels).Add(float64(value))
	return nil
}

// Gauge implements ObservabilityClient.
func (c *PrometheusObservabilityClient) Gauge(metricName string, value float64, tags map[string]interface{}) error {
	labels, keys := stringifyTags(tags)
	vec, err := c.gaugeVec(metricName, keys)
	if err != nil {
		return err
	}
	vec.With(labels).Set(value)
	return nil
}

// Distribution implements ObservabilityClient.
func (c *PrometheusObservabilityClient) Distribution(metricName string, value float64, tags map[string]interface{}) error {
	labels, keys := stringifyTags(tags)
	vec, err := c.histogramVec(metricName, keys)
	if err != nil {
		return err
	}
	vec.With(labels).Observe(value)
	return nil
}

// ShouldEnableHighCardinalityForThisTag implements ObservabilityClient.
func (c *PrometheusObservabilityClient) ShouldEnableHighCardinalityForThisTag(tag string) bool {
	return c.HighCardinalityTags
}

// Shutdown implements ObservabilityClient. Prometheus collectors have no
// close step; unregistering them would drop history other scrapers may
// still want, so this is a no-op.
func (c *PrometheusObservabilityClient) Shutdown(ctx context.Context) error {
	return nil
}

func (c *PrometheusObservabilityClient) counterVec(name string, labelKeys []string) (*prometheus.CounterVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metricName := prometheusName(name)
	if vec, ok := c.counters[metricName]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricName,
		Help: "growthbook repository counter " + name,
	}, labelKeys)
	if err := c.Registerer.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	c.counters[metricName] = vec
	return vec, nil
}

func (c *PrometheusObservabilityClient) gaugeVec(name string, labelKeys []string) (*prometheus.GaugeVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metricName := prometheusName(name)
	if vec, ok := c.gauges[metricName]; ok {
		return vec, nil
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricName,
		Help: "growthbook repository gauge " + name,
	}, labelKeys)
	if err := c.Registerer.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	c.gauges[metricName] = vec
	return vec, nil
}

func (c *PrometheusObservabilityClient) histogramVec(name string, labelKeys []string) (*prometheus.HistogramVec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	metricName := prometheusName(name)
	if vec, ok := c.histograms[metricName]; ok {
		return vec, nil
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: metricName,
		Help: "growthbook repository distribution " + name,
	}, labelKeys)
	if err := c.Registerer.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	c.histograms[metricName] = vec
	return vec, nil
}

func prometheusName(name string) string {
	return strings.ReplaceAll(strings.ReplaceAll(name, ".", "_"), "-", "_")
}

// stringifyTags returns both a label map suitable for CounterVec.With and
// the sorted key list needed to declare a vec's label names consistently.
func stringifyTags(tags map[string]interface{}) (prometheus.Labels, []string) {
	labels := make(prometheus.Labels, len(tags))
	keys := make([]string, 0, len(tags))
	for k, v := range tags {
		labels[k] = toLabelValue(v)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return labels, keys
}

func toLabelValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
