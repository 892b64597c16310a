package storage

import (
	"encoding/json"
	"sync"
)

// InstanceStore is the process-local cache tier: no durability, no TTL,
// cleared on process restart. A stdlib sync.Map is the right primitive here
// (see DESIGN.md) — no third-party KV engine fits an ephemeral, single
// process, non-durable cache better than an in-memory map would.
type InstanceStore struct {
	entries sync.Map
}

// NewInstanceStore constructs an empty instance-tier cache.
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{}
}

// Put stores value under key, JSON round-tripping it so callers observe the
// same (de)serialization semantics as the durable tiers.
func (s *InstanceStore) Put(key []byte, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.entries.Store(string(key), payload)
}

// Get decodes the cached record stored at key into out, reporting whether it
// was present.
func (s *InstanceStore) Get(key []byte, out interface{}) bool {
	raw, ok := s.entries.Load(string(key))
	if !ok {
		return false
	}
	payload, ok := raw.([]byte)
	if !ok {
		return false
	}
	return json.Unmarshal(payload, out) == nil
}

// Delete removes the cached record stored at key.
func (s *InstanceStore) Delete(key []byte) {
	s.entries.Delete(string(key))
}
