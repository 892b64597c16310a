package storage

import "time"

// CompositeStore binds the three persistence tiers (PersistentStore,
// TemporaryStore, InstanceStore) into the single interface native/treasury
// expects, so the engine never has to know which concrete KV technology
// backs a given tier.
type CompositeStore struct {
	Persistent *PersistentStore
	Temporary  *TemporaryStore
	Instance   *InstanceStore
}

// NewCompositeStore opens the persistent and temporary tiers at the given
// paths and allocates a fresh instance tier.
func NewCompositeStore(persistentPath, temporaryPath string) (*CompositeStore, error) {
	persistent, err := NewPersistentStore(persistentPath)
	if err != nil {
		return nil, err
	}
	temporary, err := NewTemporaryStore(temporaryPath)
	if err != nil {
		_ = persistent.Close()
		return nil, err
	}
	return &CompositeStore{
		Persistent: persistent,
		Temporary:  temporary,
		Instance:   NewInstanceStore(),
	}, nil
}

// Close releases both durable tiers.
func (c *CompositeStore) Close() error {
	if c == nil {
		return nil
	}
	var err error
	if c.Temporary != nil {
		if cerr := c.Temporary.Close(); cerr != nil {
			err = cerr
		}
	}
	if c.Persistent != nil {
		if cerr := c.Persistent.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}

// PersistentPut implements treasury.Store.
func (c *CompositeStore) PersistentPut(key []byte, value interface{}) error {
	return c.Persistent.Put(key, value)
}

// PersistentGet implements treasury.Store.
func (c *CompositeStore) PersistentGet(key []byte, out interface{}) (bool, error) {
	return c.Persistent.Get(key, out)
}

// PersistentDelete implements treasury.Store.
func (c *CompositeStore) PersistentDelete(key []byte) error {
	return c.Persistent.Delete(key)
}

// TemporaryPut implements treasury.Store.
func (c *CompositeStore) TemporaryPut(key []byte, value interface{}, ttl time.Duration) error {
	return c.Temporary.Put(key, value, ttl)
}

// TemporaryGet implements treasury.Store.
func (c *CompositeStore) TemporaryGet(key []byte, out interface{}) (bool, error) {
	return c.Temporary.Get(key, out)
}

// InstancePut implements treasury.Store.
func (c *CompositeStore) InstancePut(key []byte, value interface{}) {
	c.Instance.Put(key, value)
}

// InstanceGet implements treasury.Store.
func (c *CompositeStore) InstanceGet(key []byte, out interface{}) bool {
	return c.Instance.Get(key, out)
}
