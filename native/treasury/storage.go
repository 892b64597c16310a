package treasury

import "time"

// Store abstracts the three-tier persistence model spec.md §6/§9 assumes:
// durable records (proposals, config, reputation, insurance) live in the
// persistent tier; budget and velocity accumulators, which are safe to lose
// on restart and benefit from TTL expiry, live in the temporary tier;
// process-local caches live in the instance tier. The engine never reasons
// about which concrete KV technology backs a tier.
type Store interface {
	PersistentPut(key []byte, value interface{}) error
	PersistentGet(key []byte, out interface{}) (bool, error)
	PersistentDelete(key []byte) error

	TemporaryPut(key []byte, value interface{}, ttl time.Duration) error
	TemporaryGet(key []byte, out interface{}) (bool, error)

	InstancePut(key []byte, value interface{})
	InstanceGet(key []byte, out interface{}) bool
}
