// Copyright 2026 Hyperlane Relayer Contributors

package opqueue

import (
	"context"
	"sync"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Queue is a mutex-guarded priority structure keyed by (status_bucket,
// next_attempt_after, retry_count). It holds at most one PendingOperation
// per message ID at a time, mirroring the teacher's own
// linear-scan-over-a-mutexed-map style rather than reaching for
// container/heap.
type Queue struct {
	mu       sync.Mutex
	ops      map[string]*store.PendingOperation
	maxRetry uint32
}

// NewQueue builds an empty Queue. maxRetries is used to compute each
// enqueued operation's backoff via Backoff.
func NewQueue(maxRetries uint32) *Queue {
	return &Queue{
		ops:      make(map[string]*store.PendingOperation),
		maxRetry: maxRetries,
	}
}

func opKey(op *store.PendingOperation) string {
	id := op.Message.ID()
	return string(id[:])
}

// Enqueue inserts or replaces an operation. If NextAttemptAfter is zero,
// it is derived from RetryCount via Backoff so a restart reproduces the
// same schedule without requiring that field to be separately persisted.
func (q *Queue) Enqueue(ctx context.Context, op *store.PendingOperation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if op.NextAttemptAfter.IsZero() {
		op.NextAttemptAfter = time.Now().Add(Backoff(op.RetryCount, q.maxRetry))
	}
	q.ops[opKey(op)] = op
	return nil
}

// Pop removes and returns the highest-priority op whose NextAttemptAfter
// has elapsed, or nil if none is ready.
func (q *Queue) Pop(now time.Time) *store.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	var bestKey string
	var best *store.PendingOperation
	for k, op := range q.ops {
		if op.NextAttemptAfter.After(now) {
			continue
		}
		if best == nil || less(op, best) {
			best = op
			bestKey = k
		}
	}
	if best == nil {
		return nil
	}
	delete(q.ops, bestKey)
	return best
}

// less reports whether a should be dequeued before b, ordered by
// (status_bucket, next_attempt_after, retry_count).
func less(a, b *store.PendingOperation) bool {
	ba, bb := statusBucket(a.Status), statusBucket(b.Status)
	if ba != bb {
		return ba < bb
	}
	if !a.NextAttemptAfter.Equal(b.NextAttemptAfter) {
		return a.NextAttemptAfter.Before(b.NextAttemptAfter)
	}
	return a.RetryCount < b.RetryCount
}

// Requeue reinserts op after computing a fresh backoff for its current
// RetryCount, used by the Processor after a reprepare.
func (q *Queue) Requeue(op *store.PendingOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op.NextAttemptAfter = time.Now().Add(Backoff(op.RetryCount, q.maxRetry))
	q.ops[opKey(op)] = op
}

// Remove drops an operation from the queue entirely (drop or hand-off to
// the submitter).
func (q *Queue) Remove(messageID []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.ops, string(messageID))
}

// Len reports the number of operations currently queued, ready or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// List returns a snapshot of every queued operation, for the admin
// list_operations endpoint (spec.md §6.3).
func (q *Queue) List() []*store.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*store.PendingOperation, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, op)
	}
	return out
}

// RetryFilter selects operations the retry broadcaster should move to the
// head of the queue; an empty filter field matches any value.
type RetryFilter struct {
	MessageID   []byte
	Sender      []byte
	Recipient   []byte
	Destination *uint32
}

func (f RetryFilter) matches(op *store.PendingOperation) bool {
	if f.MessageID != nil {
		id := op.Message.ID()
		if string(id[:]) != string(f.MessageID) {
			return false
		}
	}
	if f.Sender != nil && string(op.Message.Sender) != string(f.Sender) {
		return false
	}
	if f.Recipient != nil && string(op.Message.Recipient) != string(f.Recipient) {
		return false
	}
	if f.Destination != nil && op.Message.Destination != *f.Destination {
		return false
	}
	return true
}

// Retry moves every operation matching filter to the head of the queue by
// zeroing its NextAttemptAfter and resetting its status bucket to
// ReadyToSubmit-equivalent priority, returning the count moved. An empty
// RetryFilter matches "all".
func (q *Queue) Retry(filter RetryFilter) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	moved := 0
	for _, op := range q.ops {
		if !filter.matches(op) {
			continue
		}
		op.NextAttemptAfter = time.Time{}
		op.Status = store.StatusReadyToSubmit
		moved++
	}
	return moved
}
