package growthbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// fetchFromServer is the fetcher (§4.D/§4.E): it coalesces concurrent
// callers for the same key behind a singleflight.Group, issues the request,
// ingests a successful response, and never returns an error to its
// caller -- a failure resolves as a zero Payload, exactly like every other
// waiter coalesced onto the same in-flight request would see.
func (r *Repository) fetchFromServer(ctx context.Context, instance Instance) Payload {
	key := computeKey(instance)

	v, _, _ := r.inFlight.Do(key, func() (interface{}, error) {
		payload := r.doFetch(ctx, instance, key)
		return payload, nil
	})
	return v.(Payload)
}

// doFetch performs the actual HTTP round trip. It never returns an error:
// on any failure it logs, records the observability counter, and resolves
// with a zero Payload, per the fetch-never-rejects convention.
func (r *Repository) doFetch(ctx context.Context, instance Instance, key string) Payload {
	m := r.diag.fetch().start()

	req, err := r.buildRequest(ctx, instance)
	if err != nil {
		Logger().LogError(&TransportError{Endpoint: key, Err: err})
		instance.Log("fetch: failed to build request", map[string]interface{}{"url": key, "error": err.Error()})
		m.url(key).end().success(false).reason(err.Error()).mark()
		r.obsIncrement("fetch_errors", 1, map[string]interface{}{"url": key})
		return Payload{}
	}
	m.url(req.URL.String())

	resp, err := r.polyfills.Fetcher.Do(req)
	if err != nil {
		Logger().LogError(&TransportError{Endpoint: req.URL.String(), Err: err})
		instance.Log("fetch: request failed", map[string]interface{}{"url": req.URL.String(), "error": err.Error()})
		m.end().success(false).reason(err.Error()).mark()
		r.obsIncrement("fetch_errors", 1, map[string]interface{}{"url": key})
		return Payload{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		Logger().LogError(&TransportError{Endpoint: req.URL.String(), Err: err})
		instance.Log("fetch: unexpected status", map[string]interface{}{"url": req.URL.String(), "status": resp.StatusCode})
		m.end().success(false).statusCode(resp.StatusCode).mark()
		r.obsIncrement("fetch_errors", 1, map[string]interface{}{"url": key})
		return Payload{}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		Logger().LogError(&TransportError{Endpoint: req.URL.String(), Err: err})
		instance.Log("fetch: failed to read body", map[string]interface{}{"url": req.URL.String(), "error": err.Error()})
		m.end().success(false).reason(err.Error()).mark()
		r.obsIncrement("fetch_errors", 1, map[string]interface{}{"url": key})
		return Payload{}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		Logger().LogError(&TransportError{Endpoint: req.URL.String(), Err: err})
		instance.Log("fetch: invalid JSON body", map[string]interface{}{"url": req.URL.String()})
		m.end().success(false).reason("invalid JSON body").mark()
		r.obsIncrement("fetch_errors", 1, map[string]interface{}{"url": key})
		return Payload{}
	}
	m.end().success(true).statusCode(resp.StatusCode).mark()

	sseSupported := resp.Header.Get("x-sse-support") == "enabled"

	r.mu.Lock()
	if sseSupported {
		r.streamingSupport[key] = true
	}
	r.ingestLocked(key, payload)
	r.maybeStartStreamLocked(key, instance)
	r.mu.Unlock()

	r.obsIncrement("fetch_success", 1, map[string]interface{}{"url": key})
	return payload
}

// buildRequest builds the plain GET or remote-eval POST request per §4.D.3.
func (r *Repository) buildRequest(ctx context.Context, instance Instance) (*http.Request, error) {
	hosts := instance.GetAPIHosts()
	clientKey := instance.GetClientKey()

	if instance.IsRemoteEval() {
		body, err := json.Marshal(map[string]interface{}{
			"attributes": instance.GetAttributes(),
		})
		if err != nil {
			return nil, err
		}
		url := fmt.Sprintf("%s%s/%s", hosts.RemoteEvalHost, hosts.RemoteEvalPath, clientKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range hosts.APIRequestHeaders {
			req.Header.Set(k, v)
		}
		return req, nil
	}

	url := fmt.Sprintf("%s%s/%s", hosts.APIHost, hosts.FeaturesPath, clientKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range hosts.APIRequestHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}
