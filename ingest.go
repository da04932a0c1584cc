package growthbook

// ingestLocked installs payload as the new state for key: version-compares
// against the current entry, updates cache/persistence, and fans out to
// every subscribed instance. Caller must hold r.mu.
func (r *Repository) ingestLocked(key string, payload Payload) {
	m := r.diag.ingest().start()

	version := payload.DateUpdated
	newStaleAt := now().Add(r.settings.StaleTTL)

	existing, exists := r.cache.get(key)
	if exists && version != "" && existing.Version == version {
		existing.StaleAt = newStaleAt
		r.persistLocked()
		m.end().success(true).reason("idempotent, no notify").mark()
		return
	}

	entry := &cacheEntry{
		Data:    payload,
		Version: version,
		StaleAt: newStaleAt,
		SSE:     r.streamingSupport[key],
	}
	r.cache.set(key, entry)
	r.persistLocked()

	for _, instance := range r.subscriptions[key] {
		if err := refreshInstance(instance, payload, r.polyfills.Decrypter); err != nil {
			// Background fan-out never propagates: the caller who triggered
			// this ingest (if any) is refreshed separately by
			// RefreshFeatures, which does surface this same error.
			Logger().LogError(err)
		}
	}

	m.end().success(true).mark()
	r.obsIncrement("ingest_notify", len(r.subscriptions[key]), map[string]interface{}{"url": key})
}

// refreshInstance applies a payload's experiments and then its features to
// instance, sequentially. A payload field left empty leaves the instance's
// corresponding current value untouched.
func refreshInstance(instance Instance, payload Payload, decrypter Decrypter) error {
	if payload.EncryptedExperiments != "" {
		if err := instance.SetEncryptedExperiments(payload.EncryptedExperiments, instance.GetDecryptionKey(), decrypter); err != nil {
			return err
		}
	} else if len(payload.Experiments) > 0 {
		instance.SetExperiments(payload.Experiments)
	}

	if payload.EncryptedFeatures != "" {
		if err := instance.SetEncryptedFeatures(payload.EncryptedFeatures, instance.GetDecryptionKey(), decrypter); err != nil {
			return err
		}
	} else if len(payload.Features) > 0 {
		instance.SetFeatures(payload.Features)
	}

	return nil
}
