package storage

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketPersistent = []byte("persistent")

// PersistentStore durably persists proposals, configuration, reputation, and
// insurance records via a single BoltDB file. Records are JSON-encoded under
// one bucket keyed by the caller-supplied byte key.
type PersistentStore struct {
	db *bolt.DB
}

// NewPersistentStore opens (and migrates) the BoltDB file at path.
func NewPersistentStore(path string) (*PersistentStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPersistent)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PersistentStore{db: db}, nil
}

// Close releases the underlying BoltDB handle.
func (s *PersistentStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put JSON-encodes value and writes it under key.
func (s *PersistentStore) Put(key []byte, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPersistent).Put(key, payload)
	})
}

// Get decodes the record stored at key into out, reporting whether it exists.
func (s *PersistentStore) Get(key []byte, out interface{}) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPersistent).Get(key)
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, out)
	})
	return found, err
}

// Delete removes the record stored at key, if any.
func (s *PersistentStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPersistent).Delete(key)
	})
}

// Keys returns every key currently stored, matching the optional prefix.
func (s *PersistentStore) Keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketPersistent).Cursor()
		for k, _ := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cursor.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	return keys, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
