// Copyright 2026 Hyperlane Relayer Contributors
//
// Package gaspolicy implements the Gas Payment Enforcer (spec.md §4.6): an
// ordered list of matching-list-gated policies evaluated against a
// message's simulated gas limit and cumulative interchain gas payment.
package gaspolicy

import (
	"math/big"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// PolicyKind discriminates the three gas policy behaviors.
type PolicyKind string

const (
	// KindNone always passes, regardless of payment.
	KindNone PolicyKind = "None"
	// KindMinimum requires the cumulative payment to meet a fixed floor.
	KindMinimum PolicyKind = "Minimum"
	// KindOnChainFeeQuoting requires the cumulative gas amount paid for to
	// cover a configured fraction of the simulated gas limit, and caps the
	// gas limit handed to the submitter at that paid-for amount.
	KindOnChainFeeQuoting PolicyKind = "OnChainFeeQuoting"
)

// Match is a single filter within a MatchingList entry. An empty list in
// any of its fields matches any value for that field ("*").
type Match struct {
	Origins      []uint32
	Destinations []uint32
	Senders      [][]byte
	Recipients   [][]byte
}

func matchesDomain(domains []uint32, domain uint32) bool {
	if len(domains) == 0 {
		return true
	}
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

func matchesAddress(addrs [][]byte, addr []byte) bool {
	if len(addrs) == 0 {
		return true
	}
	for _, a := range addrs {
		if string(a) == string(addr) {
			return true
		}
	}
	return false
}

// Matches reports whether m matches every configured field of message.
func (m Match) Matches(message *store.HyperlaneMessage) bool {
	return matchesDomain(m.Origins, message.Origin) &&
		matchesDomain(m.Destinations, message.Destination) &&
		matchesAddress(m.Senders, message.Sender) &&
		matchesAddress(m.Recipients, message.Recipient)
}

// MatchingList is an ordered set of Match filters; a message matches the
// list if it matches any entry, mirroring the on-chain ISM routing idiom of
// "first list that matches wins".
type MatchingList []Match

// Matches reports whether message matches any entry of the list. An empty
// list matches everything (the default catch-all policy entry).
func (l MatchingList) Matches(message *store.HyperlaneMessage) bool {
	if len(l) == 0 {
		return true
	}
	for _, m := range l {
		if m.Matches(message) {
			return true
		}
	}
	return false
}

// Policy is one entry of the ordered policy list: a matching list gate plus
// the behavior to apply once matched.
type Policy struct {
	Matching MatchingList
	Kind     PolicyKind

	// MinimumPayment is used by KindMinimum.
	MinimumPayment *big.Int
	// GasFraction is used by KindOnChainFeeQuoting; it is the minimum
	// fraction (0,1] of the simulated gas limit the cumulative gas amount
	// paid for must cover.
	GasFraction float64
}

// Decision is the enforcer's verdict for one (message, gas_limit, payment)
// evaluation.
type Decision struct {
	// Pass is false if no policy entry matched the message (withheld, not
	// dropped — the caller should reprepare later rather than drop).
	Pass bool
	// CappedGasLimit, if non-nil, is a hint the submitter should use in
	// place of the simulated gas limit (OnChainFeeQuoting only).
	CappedGasLimit *uint64
}
