// Copyright 2026 Hyperlane Relayer Contributors

package metadata

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// buildMultisig implements spec.md §4.5's multisig construction steps 1-6
// for both the merkle-root and message-id metadata encodings.
func (b *Builder) buildMultisig(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage, merkleRootForm bool) ([]byte, error) {
	rawMessage := encodeMessage(message)

	validators, threshold, err := dest.BuildMultisigISM(ctx, ismAddress, rawMessage)
	if err != nil {
		return nil, failedToBuild("validators_and_threshold", err)
	}
	if threshold == 0 || len(validators) == 0 {
		return nil, ErrRefused
	}

	originAdapter, ok := b.Resolver.Adapter(message.Origin)
	if !ok {
		return nil, failedToBuild("origin_adapter", fmt.Errorf("no adapter registered for origin domain %d", message.Origin))
	}
	hook, ok := b.MerkleTreeHooks[message.Origin]
	if !ok {
		return nil, failedToBuild("merkle_tree_hook", fmt.Errorf("no merkle tree hook configured for origin domain %d", message.Origin))
	}

	valAddrs := make([]common.Address, len(validators))
	for i, v := range validators {
		valAddrs[i] = common.BytesToAddress(v)
	}

	reader := b.announceReader(message.Origin, originAdapter)
	locations, err := reader.StorageLocations(ctx, valAddrs)
	if err != nil {
		return nil, failedToBuild("storage_locations", err)
	}
	syncers := b.syncersFor(valAddrs, locations)
	mux := checkpoint.NewMultiplexer(syncers)

	messageID := store.MessageID(message)
	minIdx, found, err := b.Store.MerkleLeafIndexByMessageID(hook, messageID[:])
	if err != nil {
		return nil, failedToBuild("leaf_index", err)
	}
	if !found {
		// The merkle-tree-hook insertion for this message hasn't been
		// indexed yet; nothing to prove against until it is.
		return nil, ErrCouldNotFetch
	}
	highestSeq, err := b.Store.CursorHighestSequence(message.Origin, string(chainadapter.EventMerkleInsertion))
	if err != nil {
		return nil, failedToBuild("highest_sequence", err)
	}
	if highestSeq == 0 {
		return nil, ErrCouldNotFetch
	}
	maxIdx := highestSeq - 1

	cp, err := mux.FetchCheckpointInRange(ctx, valAddrs, threshold, minIdx, maxIdx)
	if err != nil {
		return nil, failedToBuild("fetch_checkpoint", err)
	}
	if cp == nil {
		return nil, ErrCouldNotFetch
	}

	sigs := make([][]byte, len(cp.Signatures))
	for i, sc := range cp.Signatures {
		sigs[i] = encodeSignature(sc.Signature)
	}

	if merkleRootForm {
		proof, err := originAdapter.GetProof(ctx, hook, minIdx, cp.Value.Index)
		if err != nil {
			return nil, failedToBuild("merkle_proof", err)
		}
		return encodeMerkleRootMetadata(hook, cp.Value.Index, messageID[:], proof, sigs), nil
	}
	return encodeMessageIDMetadata(hook, cp.Value.Root, cp.Value.Index, sigs), nil
}

// encodeSignature renders a checkpoint signature as the 65-byte r‖s‖v form
// the on-chain multisig ISM expects.
func encodeSignature(sig checkpoint.Signature) []byte {
	out := make([]byte, 65)
	copy(out[0:32], sig.R.Bytes())
	copy(out[32:64], sig.S.Bytes())
	out[64] = sig.V
	return out
}

// encodeMerkleRootMetadata builds the MerkleRootMultisig metadata layout
// (spec.md §4.5): origin_merkle_tree_hook ‖ signed_checkpoint_index ‖
// message_id ‖ merkle_proof (32 × 32B) ‖ signed_checkpoint_index (repeat)
// ‖ concat(signatures).
func encodeMerkleRootMetadata(hook []byte, index uint32, messageID []byte, proof [][]byte, signatures [][]byte) []byte {
	out := make([]byte, 0, 32+4+32+32*32+4+65*len(signatures))
	out = append(out, pad32(hook)...)
	out = appendU32(out, index)
	out = append(out, pad32(messageID)...)
	for _, sibling := range proof {
		out = append(out, pad32(sibling)...)
	}
	out = appendU32(out, index)
	for _, sig := range signatures {
		out = append(out, sig...)
	}
	return out
}

// encodeMessageIDMetadata builds the MessageIdMultisig metadata layout
// (spec.md §4.5): origin_merkle_tree_hook ‖ root ‖ index ‖
// concat(signatures).
func encodeMessageIDMetadata(hook []byte, root common.Hash, index uint32, signatures [][]byte) []byte {
	out := make([]byte, 0, 32+32+4+65*len(signatures))
	out = append(out, pad32(hook)...)
	out = append(out, root.Bytes()...)
	out = appendU32(out, index)
	for _, sig := range signatures {
		out = append(out, sig...)
	}
	return out
}
