// Copyright 2026 Hyperlane Relayer Contributors
//
// Package opqueue implements the Op Queue and its per-destination
// Processor (spec.md §4.7): a mutex-guarded priority structure fed by the
// DB-Loader and drained by a background processing loop that resolves ISM
// metadata, simulates delivery, enforces gas policy, and hands the result
// to the Submitter.
package opqueue

import (
	"time"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// statusBucket orders PendingOperationStatus values into the priority
// queue's coarse bucket: fresh work is dequeued ahead of retried work,
// which is dequeued ahead of work already mid-flight elsewhere.
func statusBucket(status store.PendingOperationStatus) int {
	switch status {
	case store.StatusReadyToSubmit:
		return 0
	case store.StatusRetryable:
		return 1
	case store.StatusPreparing:
		return 2
	case store.StatusConfirming:
		return 3
	default:
		return 4
	}
}

// DropReason enumerates why an operation was dropped rather than retried.
type DropReason string

const (
	DropExceededMaxRetries    DropReason = "ExceededMaxRetries"
	DropNonRetryableMetadata  DropReason = "NonRetryableMetadataError"
	DropPolicyRefusal         DropReason = "PolicyRefusal"
	DropFailedSimulation      DropReason = "FailedSimulation"
	DropUnprofitable          DropReason = "Unprofitable"
)

// backoffBase and backoffCap bound the exponential retry schedule
// referenced by spec.md §4.7's next_attempt_after = now + f(retry_count,
// max_retries).
const (
	backoffBase = 5 * time.Second
	backoffCap  = 10 * time.Minute
)

// Backoff computes f(retry_count, max_retries): an exponential delay
// doubling per retry, capped at backoffCap, and clamped to the cap once
// retryCount reaches maxRetries (the caller is expected to drop the
// operation at that point rather than keep scheduling it).
func Backoff(retryCount, maxRetries uint32) time.Duration {
	if maxRetries > 0 && retryCount >= maxRetries {
		return backoffCap
	}
	d := backoffBase
	for i := uint32(0); i < retryCount; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}
