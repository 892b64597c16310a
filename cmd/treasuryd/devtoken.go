package main

import (
	"math/big"
	"sync"

	"treasuryvault/crypto"
	"treasuryvault/native/treasury"
	"treasuryvault/observability"
)

// metricsEmitter records raw event-bus publish volume to Prometheus, one
// increment per emitted event topic.
type metricsEmitter struct{}

// Emit implements treasury.Emitter.
func (metricsEmitter) Emit(ev treasury.Event) {
	observability.Events().RecordPublish(ev.Topic)
}

// devTokenAdapter is an in-memory treasury.TokenAdapter for local development
// and demo deployments, standing in for the real ledger integration a
// production treasuryd would dial out to.
type devTokenAdapter struct {
	mu       sync.Mutex
	balances map[string]map[crypto.Address]*big.Int
}

func newDevTokenAdapter() *devTokenAdapter {
	return &devTokenAdapter{balances: make(map[string]map[crypto.Address]*big.Int)}
}

func (d *devTokenAdapter) Fund(token string, addr crypto.Address, amount *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bucket := d.bucket(token)
	cur, ok := bucket[addr]
	if !ok {
		cur = big.NewInt(0)
	}
	bucket[addr] = new(big.Int).Add(cur, amount)
}

func (d *devTokenAdapter) bucket(token string) map[crypto.Address]*big.Int {
	bucket, ok := d.balances[token]
	if !ok {
		bucket = make(map[crypto.Address]*big.Int)
		d.balances[token] = bucket
	}
	return bucket
}

// Transfer implements treasury.TokenAdapter.
func (d *devTokenAdapter) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	bucket := d.bucket(token)
	balance, ok := bucket[from]
	if !ok || balance.Cmp(amount) < 0 {
		return treasury.ErrTransferFailed
	}
	bucket[from] = new(big.Int).Sub(balance, amount)
	dest, ok := bucket[to]
	if !ok {
		dest = big.NewInt(0)
	}
	bucket[to] = new(big.Int).Add(dest, amount)
	return nil
}

// Balance implements treasury.TokenAdapter.
func (d *devTokenAdapter) Balance(token string, addr crypto.Address) (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	balance, ok := d.bucket(token)[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// devPriceOracle reports a fixed price per token for condition evaluation in
// dev deployments; production treasuryd wires a real market-data feed.
type devPriceOracle struct {
	mu     sync.Mutex
	prices map[string]*big.Int
}

func newDevPriceOracle() *devPriceOracle {
	return &devPriceOracle{prices: make(map[string]*big.Int)}
}

func (d *devPriceOracle) Set(token string, price *big.Int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prices[token] = price
}

// Price implements treasury.PriceOracle.
func (d *devPriceOracle) Price(token string) (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	price, ok := d.prices[token]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(price), nil
}
