// Copyright 2026 Hyperlane Relayer Contributors

package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// RateLimitedWatermarkCursor drives a non-sequenced event stream
// (GasPayment, Delivery): a single monotonic block watermark advanced in
// bounded chunks, gated by a token bucket so a lagging chain's backlog
// can't be drained in one tight loop against a rate-limited RPC provider
// (spec §4.3).
type RateLimitedWatermarkCursor struct {
	Domain    uint32
	Kind      chainadapter.EventKind
	Adapter   chainadapter.ChainAdapter
	Store     *store.Store
	Sink      Sink
	ChunkSize uint64

	// RequestsPerSecond bounds how many FetchLogsInRange calls this
	// cursor may issue per second; 0 disables the limit.
	RequestsPerSecond float64

	bucket     float64
	lastRefill time.Time
}

func (c *RateLimitedWatermarkCursor) chunk() uint64 {
	if c.ChunkSize == 0 {
		return defaultChunkSize
	}
	return c.ChunkSize
}

// allow reports whether the token bucket has a token to spend, refilling
// proportionally to elapsed wall time since the last call.
func (c *RateLimitedWatermarkCursor) allow(now time.Time) bool {
	if c.RequestsPerSecond <= 0 {
		return true
	}
	if c.lastRefill.IsZero() {
		c.lastRefill = now
		c.bucket = 1
	}
	elapsed := now.Sub(c.lastRefill).Seconds()
	c.bucket += elapsed * c.RequestsPerSecond
	if c.bucket > c.RequestsPerSecond {
		c.bucket = c.RequestsPerSecond
	}
	c.lastRefill = now
	if c.bucket < 1 {
		return false
	}
	c.bucket--
	return true
}

func (c *RateLimitedWatermarkCursor) Tick(ctx context.Context) (bool, error) {
	if !c.allow(time.Now()) {
		return false, nil
	}

	tip, err := c.Adapter.FinalizedBlockHeight(ctx)
	if err != nil {
		return false, chainadapter.Retryable("RateLimitedWatermarkCursor.tip", err)
	}
	from, err := c.Store.WatermarkBlock(c.Domain, string(c.Kind))
	if err != nil {
		return false, err
	}
	if from >= tip {
		return true, nil
	}

	to := from + c.chunk()
	if to > tip {
		to = tip
	}
	logs, err := c.Adapter.FetchLogsInRange(ctx, c.Kind, from+1, to)
	if err != nil {
		return false, chainadapter.Retryable("RateLimitedWatermarkCursor.scan", err)
	}
	for _, l := range logs {
		if err := c.Sink.Observe(ctx, l); err != nil {
			return false, fmt.Errorf("indexer: watermark observe: %w", err)
		}
	}
	// The watermark only advances after every write above succeeded
	// (spec §4.3: "a monotonic watermark is only advanced after writes
	// succeed").
	if err := c.Store.SetWatermarkBlock(c.Domain, string(c.Kind), to); err != nil {
		return false, err
	}
	return to >= tip, nil
}
