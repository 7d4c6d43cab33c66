// Copyright 2026 Hyperlane Relayer Contributors
//
// Package dbloader implements the Message DB-Loader: a single task per
// origin domain that discovers unprocessed messages in the Store and
// hydrates them into PendingOperations for the processor's queue
// (spec.md §4.4).
package dbloader

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Enqueuer is the processor-side sink a loaded PendingOperation is handed
// to; kept as an interface so loader.go doesn't import internal/opqueue
// (which in turn depends on dbloader's output shape only loosely).
type Enqueuer interface {
	Enqueue(ctx context.Context, op *store.PendingOperation) error
}

// Loader runs a ForwardBackwardIterator over message_id_by_nonce_<n> for a
// single origin domain, restoring each unprocessed message's retry state
// and pushing it to the processor.
//
// The forward sub-iterator walks nonces upward from wherever it last left
// off (persisted in the Store, so a restart resumes rather than rescans).
// The backward sub-iterator exists only to fill the range *below* the
// forward iterator's starting nonce — the case where the relayer's first
// boot finds highest_seen_message_nonce already far ahead of 0 (replaying
// a chain with history) and the forward pass alone would never reach the
// earliest messages in bounded time. The two ranges never overlap.
type Loader struct {
	Origin uint32
	Store  *store.Store
	Queue  Enqueuer
	Logger *log.Logger

	initialized bool
}

func (l *Loader) logger() *log.Logger {
	if l.Logger == nil {
		l.Logger = log.New(log.Writer(), fmt.Sprintf("[dbloader/%d] ", l.Origin), log.LstdFlags)
	}
	return l.Logger
}

// Run drives the iterator until both directions are exhausted, sleeping
// idlePoll between empty passes, then resuming whenever
// highest_seen_message_nonce advances. It returns when ctx is cancelled.
func (l *Loader) Run(ctx context.Context, idlePoll time.Duration) error {
	if idlePoll == 0 {
		idlePoll = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progressed, err := l.Tick(ctx)
		if err != nil {
			l.logger().Printf("tick error: %v", err)
		}
		if progressed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idlePoll):
		}
	}
}

// Tick advances one step of whichever sub-iterator still has work,
// preferring forward (newest messages first) the way the teacher's
// pkg/intent/discovery.go scans toward the newest unprocessed intent
// before backfilling. It returns whether it made progress, so Run can
// avoid sleeping while there's a backlog.
func (l *Loader) Tick(ctx context.Context) (bool, error) {
	if !l.initialized {
		if err := l.ensureBackwardSeed(ctx); err != nil {
			return false, err
		}
		l.initialized = true
	}

	highest, err := l.Store.HighestSeenMessageNonce(l.Origin)
	if err != nil {
		return false, err
	}

	forwardNext, err := l.Store.DBLoaderForwardNonce(l.Origin)
	if err != nil {
		return false, err
	}
	if forwardNext <= highest {
		found, err := l.loadAt(ctx, forwardNext)
		if err != nil {
			return false, err
		}
		if err := l.Store.SetDBLoaderForwardNonce(l.Origin, forwardNext+1); err != nil {
			return false, err
		}
		return found, nil
	}

	done, err := l.Store.DBLoaderBackwardDone(l.Origin)
	if err != nil {
		return false, err
	}
	if !done {
		nonce, ok, err := l.Store.DBLoaderBackwardNonce(l.Origin)
		if err != nil {
			return false, err
		}
		if !ok || nonce == 0 {
			return false, l.Store.SetDBLoaderBackwardDone(l.Origin)
		}
		nonce--
		found, err := l.loadAt(ctx, nonce)
		if err != nil {
			return false, err
		}
		if err := l.Store.SetDBLoaderBackwardNonce(l.Origin, nonce); err != nil {
			return false, err
		}
		if nonce == 0 {
			if err := l.Store.SetDBLoaderBackwardDone(l.Origin); err != nil {
				return false, err
			}
		}
		return found, nil
	}

	return false, nil
}

// ensureBackwardSeed sets the backward sub-iterator's starting point to
// the forward iterator's current position the first time this Loader
// ticks, so repeated Tick calls within one process lifetime don't re-seed
// it every time (only the very first boot needs this).
func (l *Loader) ensureBackwardSeed(ctx context.Context) error {
	if _, ok, err := l.Store.DBLoaderBackwardNonce(l.Origin); err != nil {
		return err
	} else if ok {
		return nil
	}
	forwardNext, err := l.Store.DBLoaderForwardNonce(l.Origin)
	if err != nil {
		return err
	}
	if forwardNext == 0 {
		return l.Store.SetDBLoaderBackwardDone(l.Origin)
	}
	return l.Store.SetDBLoaderBackwardNonce(l.Origin, forwardNext)
}

// loadAt checks a single nonce, skipping it if already processed, and
// otherwise rebuilds a PendingOperation from persisted retry state.
func (l *Loader) loadAt(ctx context.Context, nonce uint32) (bool, error) {
	processed, err := l.Store.IsNonceProcessed(l.Origin, nonce)
	if err != nil {
		return false, err
	}
	if processed {
		return false, nil
	}

	msg, ok, err := l.Store.MessageByNonce(l.Origin, nonce)
	if err != nil {
		return false, err
	}
	if !ok {
		// Not yet indexed by the contract-sync cursor; try again next pass.
		return false, nil
	}

	id := msg.ID()
	retryCount, err := l.Store.PendingRetryCount(id[:])
	if err != nil {
		return false, err
	}
	status, err := l.Store.Status(id[:])
	if err != nil {
		return false, err
	}
	if status == store.StatusFinalized || status == store.StatusDropped {
		return false, nil
	}

	op := &store.PendingOperation{
		Message:    msg,
		Status:     status,
		RetryCount: retryCount,
		// NextAttemptAfter is deliberately left zero: the queue derives it
		// deterministically from RetryCount on Enqueue (spec §4.7's
		// next_attempt_after = now + f(retry_count, max_retries)), so a
		// restart reproduces the same backoff schedule without a second
		// persisted field to keep in sync.
	}
	if err := l.Queue.Enqueue(ctx, op); err != nil {
		return false, err
	}
	return true, nil
}
