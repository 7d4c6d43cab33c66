// Copyright 2026 Hyperlane Relayer Contributors
//
// Package metadata implements the relayer's ISM metadata builder
// (spec.md §4.5): given a destination ISM address and a message, it
// recursively dispatches on the ISM's declared module type and returns the
// raw bytes to pass as Mailbox.process's metadata argument.
//
// Grounded on
// original_source/rust/main/hyperlane-base/src/types/multisig.rs (multisig
// quorum fetch, adapted in internal/checkpoint) and
// original_source/rust/main/agents/relayer/src/msg/metadata/ccip_read/mod.rs
// (CCIP-Read flow). The teacher has no analogous recursive-verification
// concept; the control flow here follows spec.md directly, in the
// teacher's error-wrapping and struct-composition style.
package metadata

import (
	"errors"
	"fmt"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
)

// ErrCouldNotFetch means a quorum or response could not be assembled from
// currently-available data; the caller should retry later (spec.md §4.5).
var ErrCouldNotFetch = errors.New("metadata: could not fetch")

// ErrRefused means the ISM explicitly rejected the message; the caller
// should drop it rather than retry.
var ErrRefused = errors.New("metadata: ism refused message")

// ErrMaxDepthExceeded means Routing/Aggregation recursion exceeded
// MaxDepth; the caller should drop the message rather than retry, since a
// deeper ISM tree will never resolve.
var ErrMaxDepthExceeded = errors.New("metadata: max ism recursion depth exceeded")

// BuildError wraps an unexpected failure encountered while building
// metadata (an adapter RPC error, a malformed ISM response). It is
// retryable, distinct from the drop-worthy sentinels above.
type BuildError struct {
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metadata: failed to build (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("metadata: failed to build: %s", e.Reason)
}

func (e *BuildError) Unwrap() error { return e.Err }

func failedToBuild(reason string, err error) error {
	return &BuildError{Reason: reason, Err: err}
}

// Retryable reports whether err should be retried with backoff rather than
// dropped outright (spec.md §4.5 failure taxonomy).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var be *BuildError
	return errors.Is(err, ErrCouldNotFetch) || errors.As(err, &be)
}

// Drop reports whether err means the message should be abandoned.
func Drop(err error) bool {
	return errors.Is(err, ErrRefused) || errors.Is(err, ErrMaxDepthExceeded)
}

// Resolver locates the ChainAdapter for a given domain, so the builder can
// reach the origin chain (merkle proofs, validator announcements) while
// building metadata keyed off a destination-chain ISM.
type Resolver interface {
	Adapter(domain uint32) (chainadapter.ChainAdapter, bool)
}

// MapResolver is the simplest Resolver: a fixed domain -> adapter map,
// wired once at startup in cmd/relayer.
type MapResolver map[uint32]chainadapter.ChainAdapter

func (m MapResolver) Adapter(domain uint32) (chainadapter.ChainAdapter, bool) {
	a, ok := m[domain]
	return a, ok
}
