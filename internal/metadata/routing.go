// Copyright 2026 Hyperlane Relayer Contributors

package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// buildRouting resolves a Routing ISM's sub-ISM for message and recurses.
// Results are cached keyed by (origin_domain, ism_address, message_id)
// with a bounded TTL, per spec.md §4.5.
func (b *Builder) buildRouting(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage, depth int) ([]byte, error) {
	messageID := store.MessageID(message)
	if route, ok := b.routeCache().get(message.Origin, ismAddress, messageID[:]); ok {
		return b.buildAtDepth(ctx, dest, route, message, depth+1)
	}

	route, err := dest.ISMRoute(ctx, ismAddress, encodeMessage(message))
	if err != nil {
		return nil, failedToBuild("route", err)
	}
	b.routeCache().set(message.Origin, ismAddress, messageID[:], route)
	return b.buildAtDepth(ctx, dest, route, message, depth+1)
}

func (b *Builder) routeCache() *routeCache {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.routes == nil {
		ttl := b.RouteCacheTTL
		if ttl <= 0 {
			ttl = defaultRouteCacheTTL
		}
		b.routes = newRouteCache(ttl)
	}
	return b.routes
}

type routeCacheEntry struct {
	sub       []byte
	expiresAt time.Time
}

// routeCache is a bounded-TTL map keyed by (origin, ism_address,
// message_id); no size bound is needed beyond the TTL since each key is
// only ever touched once per in-flight message.
type routeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]routeCacheEntry
}

func newRouteCache(ttl time.Duration) *routeCache {
	return &routeCache{ttl: ttl, entries: make(map[string]routeCacheEntry)}
}

func routeCacheKey(origin uint32, ism, messageID []byte) string {
	return fmt.Sprintf("%d:%x:%x", origin, ism, messageID)
}

func (c *routeCache) get(origin uint32, ism, messageID []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[routeCacheKey(origin, ism, messageID)]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.sub, true
}

func (c *routeCache) set(origin uint32, ism, messageID, sub []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[routeCacheKey(origin, ism, messageID)] = routeCacheEntry{
		sub:       sub,
		expiresAt: time.Now().Add(c.ttl),
	}
}
