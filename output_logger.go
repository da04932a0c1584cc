package growthbook

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// StatsigProcess is retained under its historical name for parity with the
// pack's other SDKs' diagnostic phases; here it labels which repository
// phase a debug step belongs to.
type StatsigProcess string

const (
	// PhaseFetch labels log steps from the fetcher / ingest path.
	PhaseFetch StatsigProcess = "Fetch"
	// PhaseStream labels log steps from the streaming engine.
	PhaseStream StatsigProcess = "Stream"

	metricPrefix = "growthbook.repository"
)

var highCardinalityTags = map[string]bool{
	"url": true,
}

// OutputLogger is the single place every component in this package routes
// diagnostic output and metrics through. It wraps a structured logger
// (logrus) and an optional pluggable ObservabilityClient, following the
// same LogCallback-or-stderr convention and Increment/Gauge/Distribution
// surface the rest of this SDK family exposes.
type OutputLogger struct {
	options             OutputLoggerOptions
	observabilityClient ObservabilityClient
	log                 *logrus.Logger
}

// OutputLoggerOptions configures OutputLogger construction.
type OutputLoggerOptions struct {
	LogCallback func(message string, err error)
	EnableDebug bool
	Level       logrus.Level
}

func (o *OutputLogger) logrus() *logrus.Logger {
	if o.log != nil {
		return o.log
	}
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Log writes msg (and err, if present) through the configured callback, or
// through logrus otherwise.
func (o *OutputLogger) Log(msg string, err error) {
	if o.isInitialized() && o.options.LogCallback != nil {
		o.options.LogCallback(sanitize(msg), err)
		return
	}
	entry := o.logrus().WithField("component", "growthbook")
	if err != nil {
		entry.WithError(err).Error(sanitize(msg))
	} else if msg != "" {
		entry.Info(sanitize(msg))
	}
}

// LogStep records a debug-only diagnostic step; it is a no-op unless
// EnableDebug is set, matching the "non-production verbosity" policy §4.E
// requires for fetcher errors.
func (o *OutputLogger) LogStep(process StatsigProcess, msg string) {
	if !o.isInitialized() || !o.options.EnableDebug {
		return
	}
	o.Log(fmt.Sprintf("%s: %s", process, msg), nil)
}

// LogError normalizes any error-shaped value and logs it, incrementing the
// sdk_exceptions_count metric.
func (o *OutputLogger) LogError(err interface{}) {
	var errMsg error
	switch e := err.(type) {
	case nil:
		return
	case string:
		errMsg = errors.New(e)
	case error:
		errMsg = e
	default:
		errMsg = fmt.Errorf("%v", e)
	}
	o.Increment("sdk_exceptions_count", 1, map[string]interface{}{})
	o.Log(fmt.Sprintf("error: %s", errMsg.Error()), errMsg)
}

// Initialize starts the observability client, if one is configured.
func (o *OutputLogger) Initialize() {
	if o.observabilityClient == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Init panicked", nil)
		}
	}()
	if err := o.observabilityClient.Init(context.Background()); err != nil {
		o.Log("observability client Init failed", err)
	}
}

// Increment forwards a counter metric to the observability client.
func (o *OutputLogger) Increment(metricName string, value int, tags map[string]interface{}) {
	if !o.isInitialized() || o.observabilityClient == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Increment panicked", nil)
		}
	}()
	if err := o.observabilityClient.Increment(metricPrefix+"."+metricName, value, o.filterHighCardinalityTags(tags)); err != nil {
		o.Log("observability client Increment failed", err)
	}
}

// Gauge forwards a gauge metric to the observability client.
func (o *OutputLogger) Gauge(metricName string, value float64, tags map[string]interface{}) {
	if !o.isInitialized() || o.observabilityClient == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Gauge panicked", nil)
		}
	}()
	if err := o.observabilityClient.Gauge(metricPrefix+"."+metricName, value, o.filterHighCardinalityTags(tags)); err != nil {
		o.Log("observability client Gauge failed", err)
	}
}

// Distribution forwards a distribution metric to the observability client.
func (o *OutputLogger) Distribution(metricName string, value float64, tags map[string]interface{}) {
	if !o.isInitialized() || o.observabilityClient == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Distribution panicked", nil)
		}
	}()
	if err := o.observabilityClient.Distribution(metricPrefix+"."+metricName, value, o.filterHighCardinalityTags(tags)); err != nil {
		o.Log("observability client Distribution failed", err)
	}
}

// Shutdown stops the observability client, if one is configured.
func (o *OutputLogger) Shutdown() {
	if !o.isInitialized() || o.observabilityClient == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.Log("observability client Shutdown panicked", nil)
		}
	}()
	if err := o.observabilityClient.Shutdown(context.Background()); err != nil {
		o.Log("observability client Shutdown failed", err)
	}
}

func (o *OutputLogger) isInitialized() bool {
	return o != nil
}

var secretPattern = regexp.MustCompile(`(sdk-|secret-)[a-zA-Z0-9]+`)

func sanitize(s string) string {
	return secretPattern.ReplaceAllString(s, "$1****")
}

func (o *OutputLogger) filterHighCardinalityTags(tags map[string]interface{}) map[string]interface{} {
	if !o.isInitialized() || o.observabilityClient == nil {
		return tags
	}
	filtered := make(map[string]interface{}, len(tags))
	for tag, value := range tags {
		if !highCardinalityTags[tag] || o.safeShouldEnable(tag) {
			filtered[tag] = value
		}
	}
	return filtered
}

func (o *OutputLogger) safeShouldEnable(tag string) (enabled bool) {
	defer func() {
		if r := recover(); r != nil {
			o.Log(fmt.Sprintf("observability client ShouldEnableHighCardinalityForThisTag panicked: %v", r), nil)
			enabled = false
		}
	}()
	return o.observabilityClient.ShouldEnableHighCardinalityForThisTag(tag)
}
