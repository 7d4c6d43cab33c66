// Copyright 2026 Hyperlane Relayer Contributors
//
// Package indexer owns the contract-sync tasks: one goroutine per
// (chain, event_kind), each driving either a SequenceAwareCursor or a
// RateLimitedWatermarkCursor over a ChainAdapter and writing decoded events
// into the Store (spec.md §4.3).
package indexer

import (
	"context"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
)

// Cursor is the capability a ContractSync task drives on each tick.
// Implementations never poison themselves on adapter error: Tick reports
// the error, the caller sleeps and retries (spec §4.3: "adapter errors
// never poison the cursor").
type Cursor interface {
	// Tick scans the next range of work and persists progress on success.
	// caughtUp reports whether the cursor has no further known gaps to
	// fill (only meaningful for SequenceAwareCursor; always true for
	// RateLimitedWatermarkCursor once the tip is reached).
	Tick(ctx context.Context) (caughtUp bool, err error)
}

// Sink receives decoded logs discovered by a cursor tick for persistence.
// A cursor may call Observe twice for the same log (e.g. after a restart
// mid-chunk); implementations must be idempotent.
type Sink interface {
	Observe(ctx context.Context, entry chainadapter.LogEntry) error
}

const (
	defaultChunkSize    = 2000
	defaultIdlePoll     = 5 * time.Second
	defaultErrorBackoff = 10 * time.Second
)
