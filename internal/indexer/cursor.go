// Copyright 2026 Hyperlane Relayer Contributors

package indexer

import (
	"context"
	"fmt"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// SequenceAwareCursor drives a strictly-sequenced event stream (Dispatch,
// MerkleTreeInsertion). It first runs a backward sub-iterator (from the
// finalized tip seen when it was seeded down to block 0) to completion,
// then runs only a forward sub-iterator (last indexed block toward the
// tip), so that restarts close any gap left by a prior crash before
// reporting caught-up (spec §4.3, invariant 1).
type SequenceAwareCursor struct {
	Domain    uint32
	Kind      chainadapter.EventKind
	Adapter   chainadapter.ChainAdapter
	Store     *store.Store
	Sink      Sink
	ChunkSize uint64

	// backwardDone latches once the backward iterator reaches block 0;
	// from then on every tick is a pure forward scan.
	backwardDone bool
}

func (c *SequenceAwareCursor) chunk() uint64 {
	if c.ChunkSize == 0 {
		return defaultChunkSize
	}
	return c.ChunkSize
}

// Tick advances the backward iterator first (closing gaps takes priority,
// per the invariant that the union of indexed sequences must be contiguous
// before "caught up" is reported), then the forward iterator.
func (c *SequenceAwareCursor) Tick(ctx context.Context) (bool, error) {
	if !c.backwardDone {
		done, err := c.tickBackward(ctx)
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
		c.backwardDone = true
	}
	return c.tickForward(ctx)
}

func (c *SequenceAwareCursor) tickBackward(ctx context.Context) (bool, error) {
	cursor, err := c.Store.BackwardBlock(c.Domain, string(c.Kind))
	if err != nil {
		return false, err
	}
	if cursor == 0 {
		// Never initialized: seed from the current tip so the backward
		// sweep starts at "now" and walks toward genesis.
		tip, err := c.Adapter.FinalizedBlockHeight(ctx)
		if err != nil {
			return false, chainadapter.Retryable("SequenceAwareCursor.seed", err)
		}
		cursor = tip
		if err := c.Store.SetBackwardBlock(c.Domain, string(c.Kind), cursor); err != nil {
			return false, err
		}
	}
	if cursor == 0 {
		return true, nil
	}

	chunk := c.chunk()
	from := uint64(0)
	if cursor > chunk {
		from = cursor - chunk
	}
	logs, err := c.Adapter.FetchLogsInRange(ctx, c.Kind, from, cursor)
	if err != nil {
		return false, chainadapter.Retryable("SequenceAwareCursor.backward", err)
	}
	for _, l := range logs {
		if err := c.Sink.Observe(ctx, l); err != nil {
			return false, fmt.Errorf("indexer: backward observe: %w", err)
		}
	}
	if err := c.Store.SetBackwardBlock(c.Domain, string(c.Kind), from); err != nil {
		return false, err
	}
	return from == 0, nil
}

func (c *SequenceAwareCursor) tickForward(ctx context.Context) (bool, error) {
	tip, err := c.Adapter.FinalizedBlockHeight(ctx)
	if err != nil {
		return false, chainadapter.Retryable("SequenceAwareCursor.tip", err)
	}
	from, err := c.Store.ForwardBlock(c.Domain, string(c.Kind))
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
		return false, chainadapter.Retryable("SequenceAwareCursor.forward", err)
	}
	highest, err := c.Store.CursorHighestSequence(c.Domain, string(c.Kind))
	if err != nil {
		return false, err
	}
	for _, l := range logs {
		if err := c.Sink.Observe(ctx, l); err != nil {
			return false, fmt.Errorf("indexer: forward observe: %w", err)
		}
		if seq, ok := sequenceOf(l); ok && seq+1 > highest {
			highest = seq + 1
		}
	}
	if err := c.Store.SetCursorHighestSequence(c.Domain, string(c.Kind), highest); err != nil {
		return false, err
	}
	if err := c.Store.SetForwardBlock(c.Domain, string(c.Kind), to); err != nil {
		return false, err
	}
	return to >= tip, nil
}

// sequenceOf extracts the per-message nonce (Dispatch) or leaf index
// (MerkleTreeInsertion) that makes a log part of a strictly-ordered
// sequence, for advancing the highest-seen-sequence watermark.
func sequenceOf(l chainadapter.LogEntry) (uint32, bool) {
	switch {
	case l.Dispatch != nil:
		return l.Dispatch.Message.Nonce, true
	case l.Merkle != nil:
		return l.Merkle.LeafIndex, true
	default:
		return 0, false
	}
}
