package storage

import (
	"encoding/json"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// TemporaryStore backs the budget and velocity accumulators (spec.md §6,
// §9): records that are safe to lose on restart and benefit from TTL
// expiry, kept out of the durable persistent tier on purpose.
type TemporaryStore struct {
	db *leveldb.DB
}

type temporaryEnvelope struct {
	ExpiresAt int64           `json:"expiresAt"` // unix seconds, 0 = never
	Payload   json.RawMessage `json:"payload"`
}

// NewTemporaryStore opens a goleveldb database at path.
func NewTemporaryStore(path string) (*TemporaryStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &TemporaryStore{db: db}, nil
}

// Close releases the underlying goleveldb handle.
func (s *TemporaryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put JSON-encodes value with a TTL envelope and writes it under key. A zero
// ttl means the record never expires via the sweep, though callers are
// expected to always provide one for budget/velocity keys.
func (s *TemporaryStore) Put(key []byte, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var expiresAt int64
	if ttl != 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}
	envelope, err := json.Marshal(temporaryEnvelope{ExpiresAt: expiresAt, Payload: payload})
	if err != nil {
		return err
	}
	return s.db.Put(key, envelope, nil)
}

// Get decodes the record stored at key into out, reporting whether it exists
// and has not expired. An expired record is treated as absent but is not
// eagerly deleted here; Sweep reclaims it.
func (s *TemporaryStore) Get(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var envelope temporaryEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false, err
	}
	if envelope.ExpiresAt > 0 && time.Now().Unix() >= envelope.ExpiresAt {
		return false, nil
	}
	if len(envelope.Payload) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(envelope.Payload, out)
}

// Sweep removes every record whose TTL has elapsed and reports how many it
// removed. cmd/treasuryd does not call it; until a caller does, expired
// records stay on disk and Get reports them as absent.
func (s *TemporaryStore) Sweep() (int, error) {
	now := time.Now().Unix()
	removed := 0
	iter := s.db.NewIterator(util.BytesPrefix(nil), nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		var envelope temporaryEnvelope
		if err := json.Unmarshal(iter.Value(), &envelope); err != nil {
			continue
		}
		if envelope.ExpiresAt > 0 && now >= envelope.ExpiresAt {
			batch.Delete(append([]byte(nil), iter.Key()...))
			removed++
		}
	}
	if err := iter.Error(); err != nil {
		return removed, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return removed, s.db.Write(batch, nil)
}
