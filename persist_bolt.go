package growthbook

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketName = []byte("growthbook")

// BoltPersistentStore is this package's disk-backed PersistentStore
// implementation, playing the same "survive a restart" role spec.md's
// persistence mirror describes for a browser's localStorage. It is not
// installed by default; pass it to SetPolyfills to enable persistence.
type BoltPersistentStore struct {
	db *bbolt.DB
}

// OpenBoltPersistentStore opens (creating if necessary) a bbolt database at
// path and returns a PersistentStore backed by it. Callers own the returned
// store's Close.
func OpenBoltPersistentStore(path string) (*BoltPersistentStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltPersistentStore{db: db}, nil
}

// Close releases the underlying bbolt database file.
func (s *BoltPersistentStore) Close() error {
	return s.db.Close()
}

// GetItem implements PersistentStore. bbolt has no async API; ctx is only
// checked before the transaction starts.
func (s *BoltPersistentStore) GetItem(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(key))
		if v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", &PersistError{Op: "get", Key: key, Err: err}
	}
	return value, nil
}

// SetItem implements PersistentStore.
func (s *BoltPersistentStore) SetItem(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return &PersistError{Op: "set", Key: key, Err: err}
	}
	return nil
}
