// Copyright 2026 Hyperlane Relayer Contributors
//
// Package nonce implements the EVM nonce manager (spec.md §4.8.4), ported
// from the Lander's NonceManagerState: a per-signer [lowest_available,
// upper) window of assignable nonces, each slot tracked as Freed / Taken /
// Committed against a specific transaction UUID.
package nonce

import "fmt"

// Status enumerates a nonce's assignment state, carrying the UUID of the
// transaction it belongs to.
type Status struct {
	Kind  Kind
	TxUUID string
}

type Kind string

const (
	Freed     Kind = "Freed"
	Taken     Kind = "Taken"
	Committed Kind = "Committed"
)

func (s Status) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.TxUUID)
}

// Action is the verdict of validating a previously-assigned nonce against
// the tracked record.
type Action int

const (
	// Noop: the assignment is still valid, keep using it.
	Noop Action = iota
	// Assign: the assignment is stale or absent, assign a fresh nonce.
	Assign
)

// ErrAssignedToMultipleTransactions is the fatal condition the Lander
// treats as "external use of the signer outside this process" — the
// caller must quarantine or crash rather than continue, since two
// transactions now believe they own the same nonce.
type ErrAssignedToMultipleTransactions struct {
	Nonce    uint64
	Tracked  string
	Attempted string
}

func (e *ErrAssignedToMultipleTransactions) Error() string {
	return fmt.Sprintf("nonce %d assigned to multiple transactions: tracked=%s attempted=%s", e.Nonce, e.Tracked, e.Attempted)
}
