package growthbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeObservabilityClient struct {
	initCalls       int
	increments      []string
	shouldEnableTag bool
}

func (f *fakeObservabilityClient) Init(ctx context.Context) error {
	f.initCalls++
	return nil
}

func (f *fakeObservabilityClient) Increment(name string, value int, tags map[string]interface{}) error {
	f.increments = append(f.increments, name)
	return nil
}

func (f *fakeObservabilityClient) Gauge(name string, value float64, tags map[string]interface{}) error {
	return nil
}

func (f *fakeObservabilityClient) Distribution(name string, value float64, tags map[string]interface{}) error {
	return nil
}

func (f *fakeObservabilityClient) ShouldEnableHighCardinalityForThisTag(tag string) bool {
	return f.shouldEnableTag
}

func (f *fakeObservabilityClient) Shutdown(ctx context.Context) error { return nil }

func TestOutputLogger_LogCallbackReceivesSanitizedMessage(t *testing.T) {
	var got string
	var gotErr error
	logger := &OutputLogger{options: OutputLoggerOptions{
		LogCallback: func(msg string, err error) {
			got = msg
			gotErr = err
		},
	}}

	logger.Log("using key sdk-abc123def", errors.New("boom"))
	assert.Contains(t, got, "sdk-****")
	assert.NotContains(t, got, "sdk-abc123def")
	assert.Error(t, gotErr)
}

func TestOutputLogger_IncrementForwardsToObservabilityClient(t *testing.T) {
	obs := &fakeObservabilityClient{}
	logger := &OutputLogger{observabilityClient: obs}

	logger.Increment("cache_hit", 1, map[string]interface{}{"url": "k"})
	assert.Equal(t, []string{metricPrefix + ".cache_hit"}, obs.increments)
}

func TestOutputLogger_FiltersHighCardinalityTagsByDefault(t *testing.T) {
	obs := &fakeObservabilityClient{shouldEnableTag: false}
	logger := &OutputLogger{observabilityClient: obs}

	filtered := logger.filterHighCardinalityTags(map[string]interface{}{"url": "x", "other": "y"})
	_, hasURL := filtered["url"]
	_, hasOther := filtered["other"]
	assert.False(t, hasURL)
	assert.True(t, hasOther)
}

func TestOutputLogger_IsInitializedReflectsNilness(t *testing.T) {
	var logger *OutputLogger
	assert.False(t, logger.isInitialized())
	assert.True(t, (&OutputLogger{}).isInitialized())
}
