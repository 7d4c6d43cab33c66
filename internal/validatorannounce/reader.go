// Copyright 2026 Hyperlane Relayer Contributors
//
// Package validatorannounce provides a TTL-cached reader over a chain's
// ValidatorAnnounce contract (spec.md §4.10).
package validatorannounce

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
)

const defaultTTL = 5 * time.Minute

type cacheEntry struct {
	locations []string
	expiresAt time.Time
}

// Reader resolves each validator's announced storage locations on a given
// origin chain, caching results so the metadata builder's per-message
// multisig construction doesn't re-query the chain on every message.
type Reader struct {
	Adapter chainadapter.ChainAdapter
	TTL     time.Duration

	mu    sync.Mutex
	cache map[common.Address]cacheEntry
}

// NewReader constructs a Reader with the default TTL if ttl is zero.
func NewReader(adapter chainadapter.ChainAdapter, ttl time.Duration) *Reader {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Reader{Adapter: adapter, TTL: ttl, cache: make(map[common.Address]cacheEntry)}
}

// StorageLocations returns, per validator in order, the list of announced
// storage location URIs, using cached values where still fresh and
// batching the rest into a single adapter call.
func (r *Reader) StorageLocations(ctx context.Context, validators []common.Address) ([][]string, error) {
	r.mu.Lock()
	now := time.Now()
	out := make([][]string, len(validators))
	var missing []common.Address
	var missingIdx []int
	for i, v := range validators {
		if e, ok := r.cache[v]; ok && now.Before(e.expiresAt) {
			out[i] = e.locations
			continue
		}
		missing = append(missing, v)
		missingIdx = append(missingIdx, i)
	}
	r.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	raw := make([][]byte, len(missing))
	for i, v := range missing {
		raw[i] = v.Bytes()
	}
	fetched, err := r.Adapter.ValidatorAnnounceStorageLocations(ctx, raw)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt := time.Now().Add(r.TTL)
	for i, v := range missing {
		locs := fetched[i]
		r.cache[v] = cacheEntry{locations: locs, expiresAt: expiresAt}
		out[missingIdx[i]] = locs
	}
	return out, nil
}

// Invalidate drops any cached entry for validator, forcing the next
// StorageLocations call to refetch it (used when a validator's checkpoint
// reads consistently fail, suggesting a stale announcement).
func (r *Reader) Invalidate(validator common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, validator)
}
