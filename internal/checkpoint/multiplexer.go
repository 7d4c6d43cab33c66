// Copyright 2026 Hyperlane Relayer Contributors

package checkpoint

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// MultisigSignedCheckpoint is a checkpoint value agreed on by a quorum of
// validators, along with the subset of signatures that formed the quorum
// (in validator order, matching the on-chain multisig ISM's expectation).
type MultisigSignedCheckpoint struct {
	Value      CheckpointValue
	Signatures []SignedCheckpoint
}

// Multiplexer wraps one Syncer per validator address and implements the
// quorum-fetch algorithm every multisig ISM metadata build depends on
// (spec.md §4.5 step 5).
//
// Grounded on
// original_source/rust/main/hyperlane-base/src/types/multisig.rs's
// MultisigCheckpointSyncer.
type Multiplexer struct {
	Syncers map[common.Address]Syncer
}

// NewMultiplexer builds a Multiplexer from a validator-address -> Syncer
// map.
func NewMultiplexer(syncers map[common.Address]Syncer) *Multiplexer {
	return &Multiplexer{Syncers: syncers}
}

// LatestIndices fetches each validator's latest published index,
// tolerating individual failures (the whole call never errors; a
// validator that fails or lacks a syncer is simply absent from the
// result).
func (m *Multiplexer) LatestIndices(ctx context.Context, validators []common.Address) []uint32 {
	indices := make([]uint32, 0, len(validators))
	for _, v := range validators {
		syncer, ok := m.Syncers[v]
		if !ok {
			continue
		}
		idx, err := syncer.LatestIndex(ctx)
		if err != nil || idx == nil {
			continue
		}
		indices = append(indices, *idx)
	}
	return indices
}

// FetchCheckpointInRange finds the highest index in [minimumIndex,
// maximumIndex] for which at least threshold validators (drawn from
// validators, in onchain order) agree on the signed root, walking
// backward from the best candidate implied by validators' latest
// indices. Returns nil if no quorum exists in range.
func (m *Multiplexer) FetchCheckpointInRange(ctx context.Context, validators []common.Address, threshold int, minimumIndex, maximumIndex uint32) (*MultisigSignedCheckpoint, error) {
	latest := m.LatestIndices(ctx, validators)
	if len(latest) == 0 {
		return nil, nil
	}
	sort.Slice(latest, func(i, j int) bool { return latest[i] > latest[j] })
	if threshold > len(latest) {
		return nil, nil
	}
	// The (threshold-1)th highest index (0-indexed) is the highest index
	// for which we supposedly have `threshold` signed checkpoints.
	highestQuorumIndex := latest[threshold-1]
	startIndex := highestQuorumIndex
	if maximumIndex < startIndex {
		startIndex = maximumIndex
	}
	if minimumIndex > startIndex {
		return nil, nil
	}
	for index := startIndex; ; index-- {
		cp, err := m.FetchCheckpoint(ctx, validators, threshold, index)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			return cp, nil
		}
		if index == minimumIndex {
			break
		}
	}
	return nil, nil
}

// FetchCheckpoint looks for a quorum of threshold validators, drawn from
// validators, who signed the same root at index. Validators must be the
// on-chain ordered set; the returned signatures preserve that order so a
// multisig ISM's bitmap-free verification loop lines up.
func (m *Multiplexer) FetchCheckpoint(ctx context.Context, validators []common.Address, threshold int, index uint32) (*MultisigSignedCheckpoint, error) {
	byRoot := map[common.Hash][]SignedCheckpoint{}
	orderByRoot := map[common.Hash][]common.Address{}

	for _, validator := range validators {
		syncer, ok := m.Syncers[validator]
		if !ok {
			continue
		}
		sc, err := syncer.FetchCheckpoint(ctx, index)
		if err != nil || sc == nil {
			continue
		}
		if sc.Value.Index != index {
			continue
		}
		signer, err := sc.Recover()
		if err != nil || signer != validator {
			continue
		}

		root := sc.Value.Root
		byRoot[root] = append(byRoot[root], *sc)
		orderByRoot[root] = append(orderByRoot[root], validator)

		if len(byRoot[root]) >= threshold {
			return &MultisigSignedCheckpoint{
				Value:      sc.Value,
				Signatures: orderedByValidatorSet(byRoot[root], orderByRoot[root], validators),
			}, nil
		}
	}
	return nil, nil
}

// orderedByValidatorSet re-sorts signed checkpoints to match validators'
// on-chain order, the order the multisig ISM expects signatures in.
func orderedByValidatorSet(signed []SignedCheckpoint, signers []common.Address, validators []common.Address) []SignedCheckpoint {
	bySigner := make(map[common.Address]SignedCheckpoint, len(signed))
	for i, s := range signers {
		bySigner[s] = signed[i]
	}
	out := make([]SignedCheckpoint, 0, len(signed))
	for _, v := range validators {
		if sc, ok := bySigner[v]; ok {
			out = append(out, sc)
		}
	}
	return out
}
