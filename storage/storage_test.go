package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordFixture struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

func TestPersistentStoreRoundTripsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treasury.bolt")

	store, err := NewPersistentStore(path)
	require.NoError(t, err)

	key := []byte("proposal/1")
	require.NoError(t, store.Put(key, recordFixture{Name: "alpha", Amount: 42}))
	require.NoError(t, store.Close())

	reopened, err := NewPersistentStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	var got recordFixture
	ok, err := reopened.Get(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, recordFixture{Name: "alpha", Amount: 42}, got)
}

func TestPersistentStoreDeleteRemovesRecord(t *testing.T) {
	store, err := NewPersistentStore(filepath.Join(t.TempDir(), "treasury.bolt"))
	require.NoError(t, err)
	defer store.Close()

	key := []byte("proposal/2")
	require.NoError(t, store.Put(key, recordFixture{Name: "beta"}))
	require.NoError(t, store.Delete(key))

	var got recordFixture
	ok, err := store.Get(key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTemporaryStoreExpiresPastTTL(t *testing.T) {
	store, err := NewTemporaryStore(filepath.Join(t.TempDir(), "ttl.leveldb"))
	require.NoError(t, err)
	defer store.Close()

	key := []byte("velocity/signer-1")
	require.NoError(t, store.Put(key, recordFixture{Name: "gamma"}, -time.Second))

	var got recordFixture
	ok, err := store.Get(key, &got)
	require.NoError(t, err)
	require.False(t, ok, "record with a TTL already in the past must read as absent")
}

func TestTemporaryStoreSweepReclaimsExpired(t *testing.T) {
	store, err := NewTemporaryStore(filepath.Join(t.TempDir(), "ttl.leveldb"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put([]byte("a"), recordFixture{Name: "a"}, -time.Second))
	require.NoError(t, store.Put([]byte("b"), recordFixture{Name: "b"}, time.Hour))

	removed, err := store.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	var got recordFixture
	ok, err := store.Get([]byte("b"), &got)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInstanceStoreIsProcessLocalOnly(t *testing.T) {
	store := NewInstanceStore()
	store.Put([]byte("k"), recordFixture{Name: "cached"})

	var got recordFixture
	require.True(t, store.Get([]byte("k"), &got))
	require.Equal(t, "cached", got.Name)

	fresh := NewInstanceStore()
	require.False(t, fresh.Get([]byte("k"), &got), "a new instance tier must not see another instance's entries")
}

func TestCompositeStoreSatisfiesAllThreeTiers(t *testing.T) {
	dir := t.TempDir()
	composite, err := NewCompositeStore(filepath.Join(dir, "p.bolt"), filepath.Join(dir, "t.leveldb"))
	require.NoError(t, err)
	defer composite.Close()

	require.NoError(t, composite.PersistentPut([]byte("cfg"), recordFixture{Name: "cfg"}))
	var cfg recordFixture
	ok, err := composite.PersistentGet([]byte("cfg"), &cfg)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, composite.TemporaryPut([]byte("budget"), recordFixture{Amount: 10}, time.Minute))
	var budget recordFixture
	ok, err = composite.TemporaryGet([]byte("budget"), &budget)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, budget.Amount)

	composite.InstancePut([]byte("cache"), recordFixture{Name: "cache"})
	var cache recordFixture
	require.True(t, composite.InstanceGet([]byte("cache"), &cache))
}
