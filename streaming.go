package growthbook

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// streamChannel is one live server-sent-event connection for one key, plus
// its error counter, per §3's Streaming channel entry.
type streamChannel struct {
	src    EventSource
	errors int
	cancel context.CancelFunc
}

// maybeStartStreamLocked opens a streaming channel for key if every
// precondition in §4.G holds. Caller must hold r.mu.
func (r *Repository) maybeStartStreamLocked(key string, instance Instance) {
	if !r.settings.BackgroundSync {
		return
	}
	if !r.streamingSupport[key] {
		return
	}
	if r.polyfills.EventSourceFactory == nil {
		return
	}
	if _, exists := r.streams[key]; exists {
		return
	}
	r.openStreamLocked(key, instance)
}

// openStreamLocked creates the event stream and starts its pump goroutine.
// Caller must hold r.mu.
func (r *Repository) openStreamLocked(key string, instance Instance) {
	m := r.diag.streamOpen().start().url(key)

	hosts := instance.GetAPIHosts()
	url := fmt.Sprintf("%s%s/%s", hosts.StreamingHost, hosts.StreamingPath, instance.GetClientKey())

	ctx, cancel := context.WithCancel(context.Background())
	es, err := r.polyfills.EventSourceFactory.Open(ctx, url, hosts.APIRequestHeaders)
	if err != nil {
		// Fall back to constructing without headers, per §7.
		es, err = r.polyfills.EventSourceFactory.Open(ctx, url, nil)
	}
	if err != nil {
		cancel()
		m.end().success(false).reason(err.Error()).mark()
		Logger().LogError(&StreamError{Key: key, Errors: 0, Err: err})
		return
	}

	ch := &streamChannel{src: es, cancel: cancel}
	r.streams[key] = ch
	m.end().success(true).mark()
	r.obsIncrement("stream_open", 1, map[string]interface{}{"url": key})

	go r.pumpStream(key, instance, ch)
}

// pumpStream reads events and errors off ch.src until it is closed, feeding
// each event to handleStreamEvent and each error to handleStreamError.
func (r *Repository) pumpStream(key string, instance Instance, ch *streamChannel) {
	for {
		select {
		case evt, ok := <-ch.src.Events():
			if !ok {
				r.handleStreamClosed(key, instance)
				return
			}
			r.handleStreamEvent(key, instance, evt)
		case err, ok := <-ch.src.Errors():
			if !ok {
				continue
			}
			if r.handleStreamError(key, instance, err) {
				return
			}
		}
	}
}

// handleStreamEvent dispatches a named SSE event per §4.G, resetting the
// error counter on any successful message.
func (r *Repository) handleStreamEvent(key string, instance Instance, evt SSEEvent) {
	var payload Payload
	if evt.Name == "features" {
		if err := json.Unmarshal(evt.Data, &payload); err != nil {
			r.handleStreamError(key, instance, err)
			return
		}
	}

	r.mu.Lock()
	if ch, ok := r.streams[key]; ok {
		ch.errors = 0
	}

	switch evt.Name {
	case "features":
		r.ingestLocked(key, payload)
		r.mu.Unlock()
	case "features-updated":
		r.mu.Unlock()
		go r.fetchFromServer(context.Background(), instance)
	default:
		r.mu.Unlock()
	}
}

// handleStreamError increments the error counter for key and, once past the
// three-free-errors threshold, tears the channel down and schedules a
// reopen with jittered exponential backoff. It reports whether the pump
// goroutine for this channel should exit.
func (r *Repository) handleStreamError(key string, instance Instance, err error) bool {
	r.mu.Lock()
	ch, ok := r.streams[key]
	if !ok {
		r.mu.Unlock()
		return true
	}
	ch.errors++
	errCount := ch.errors
	r.mu.Unlock()

	m := r.diag.streamError().start().url(key)
	m.end().success(false).reason(err.Error()).mark()
	r.obsIncrement("stream_errors", 1, map[string]interface{}{"url": key})
	instance.Log("stream: message error", map[string]interface{}{"url": key, "errors": errCount, "error": err.Error()})

	if errCount <= 3 {
		return false
	}

	r.closeAndScheduleReopen(key, instance, errCount)
	return true
}

// handleStreamClosed reacts to the stream's Events() channel closing -- the
// Go analogue of readyState==2. §4.G treats the closed state as an
// unconditional trigger for close-and-reschedule, independent of the
// error-count threshold that otherwise only gates transient per-message
// errors arriving on Errors().
func (r *Repository) handleStreamClosed(key string, instance Instance) {
	r.mu.Lock()
	ch, ok := r.streams[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	ch.errors++
	errCount := ch.errors
	r.mu.Unlock()

	m := r.diag.streamError().start().url(key)
	m.end().success(false).reason(ErrStreamClosed.Error()).mark()
	r.obsIncrement("stream_errors", 1, map[string]interface{}{"url": key})
	instance.Log("stream: closed", map[string]interface{}{"url": key, "errors": errCount})

	r.closeAndScheduleReopen(key, instance, errCount)
}

// closeAndScheduleReopen tears the channel down and schedules a reopen with
// jittered exponential backoff. Shared by the error-count threshold path
// and the closed-state path, both of which the spec treats as equally
// valid triggers for reconnection.
func (r *Repository) closeAndScheduleReopen(key string, instance Instance, errCount int) {
	r.mu.Lock()
	r.closeChannelLocked(key)
	r.mu.Unlock()

	delay := backoffDelay(errCount)
	time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.settings.BackgroundSync || !r.streamingSupport[key] {
			return
		}
		if _, exists := r.streams[key]; exists {
			return
		}
		r.openStreamLocked(key, instance)
	})
}

// closeChannelLocked closes the channel's source and removes it from the
// stream map. Caller must hold r.mu.
func (r *Repository) closeChannelLocked(key string) {
	ch, ok := r.streams[key]
	if !ok {
		return
	}
	ch.src.Close()
	ch.cancel()
	delete(r.streams, key)
}

// backoffDelay computes the jittered exponential backoff for n consecutive
// stream errors, per §4.G / §8's boundary law. n<=3 never reaches this
// function through handleStreamError's threshold check; it is kept a pure
// function so tests can exercise it directly.
func backoffDelay(n int) time.Duration {
	multiplier := math.Pow(3, float64(n-3))
	ms := multiplier * (1000 + rand.Float64()*1000)
	delay := time.Duration(ms) * time.Millisecond
	if delay > MaxStreamBackoff {
		delay = MaxStreamBackoff
	}
	return delay
}
