package growthbook

import (
	"fmt"
	"sync"
	"time"
)

// DiagnosticsKey names which repository operation a marker belongs to.
type DiagnosticsKey string

const (
	FetchKey       DiagnosticsKey = "fetch"
	IngestKey      DiagnosticsKey = "ingest"
	StreamOpenKey  DiagnosticsKey = "stream_open"
	StreamErrorKey DiagnosticsKey = "stream_error"
)

// DiagnosticsAction marks whether a marker opens or closes a span.
type DiagnosticsAction string

const (
	StartAction DiagnosticsAction = "start"
	EndAction   DiagnosticsAction = "end"
)

// MaxMarkerSize bounds how many markers a diagnostics instance retains;
// past it the oldest marker is dropped for each new one, so a repository
// left running for a long time doesn't grow this buffer without bound.
const MaxMarkerSize = 50

type marker struct {
	Key        DiagnosticsKey    `json:"key"`
	Action     DiagnosticsAction `json:"action"`
	Timestamp  int64             `json:"timestamp"`
	Success    *bool             `json:"success,omitempty"`
	StatusCode *int              `json:"statusCode,omitempty"`
	URL        *string           `json:"url,omitempty"`
	RepoKey    *string           `json:"repositoryKey,omitempty"`
	Reason     *string           `json:"reason,omitempty"`

	diagnostics *diagnostics
}

// diagnostics accumulates a bounded trail of markers for one Repository, and
// mirrors each one to the output logger's debug step log.
type diagnostics struct {
	mu      sync.Mutex
	markers []marker
}

func newDiagnostics() *diagnostics {
	return &diagnostics{markers: make([]marker, 0, MaxMarkerSize)}
}

func (d *diagnostics) fetch() *marker       { return &marker{Key: FetchKey, diagnostics: d} }
func (d *diagnostics) ingest() *marker      { return &marker{Key: IngestKey, diagnostics: d} }
func (d *diagnostics) streamOpen() *marker  { return &marker{Key: StreamOpenKey, diagnostics: d} }
func (d *diagnostics) streamError() *marker { return &marker{Key: StreamErrorKey, diagnostics: d} }

func (m *marker) start() *marker { m.Action = StartAction; return m }
func (m *marker) end() *marker   { m.Action = EndAction; return m }

func (m *marker) success(v bool) *marker { m.Success = &v; return m }
func (m *marker) statusCode(v int) *marker { m.StatusCode = &v; return m }
func (m *marker) url(v string) *marker     { m.URL = &v; return m }
func (m *marker) repoKey(v string) *marker { m.RepoKey = &v; return m }
func (m *marker) reason(v string) *marker  { m.Reason = &v; return m }

// mark closes the marker: it timestamps it, appends it to the trail (once
// MaxMarkerSize is reached, oldest markers are dropped to make room), and
// emits a human-readable line through the output logger.
func (m *marker) mark() {
	m.Timestamp = time.Now().UnixNano() / int64(time.Millisecond)

	d := m.diagnostics
	d.mu.Lock()
	if len(d.markers) >= MaxMarkerSize {
		d.markers = d.markers[1:]
	}
	d.markers = append(d.markers, *m)
	d.mu.Unlock()

	Logger().LogStep(processFor(m.Key), m.describe())
}

func processFor(key DiagnosticsKey) StatsigProcess {
	switch key {
	case StreamOpenKey, StreamErrorKey:
		return PhaseStream
	default:
		return PhaseFetch
	}
}

func (m *marker) describe() string {
	switch m.Action {
	case StartAction:
		switch m.Key {
		case FetchKey:
			return fmt.Sprintf("fetching %s", derefStr(m.URL))
		case IngestKey:
			return "ingesting payload"
		case StreamOpenKey:
			return fmt.Sprintf("opening stream %s", derefStr(m.URL))
		default:
			return string(m.Key)
		}
	case EndAction:
		if m.Success != nil && !*m.Success {
			return fmt.Sprintf("%s failed: %s", m.Key, derefStr(m.Reason))
		}
		return fmt.Sprintf("%s done", m.Key)
	default:
		return string(m.Key)
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// snapshot returns a copy of the current marker trail, newest last.
func (d *diagnostics) snapshot() []marker {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]marker, len(d.markers))
	copy(out, d.markers)
	return out
}
