// Copyright 2026 Hyperlane Relayer Contributors
//
// Package checkpoint implements readers for the per-validator checkpoint
// storage Hyperlane validators publish to (local disk, S3, GCS) and the
// multiplexer that turns many validators' checkpoints into a quorum
// (spec.md §4.9, §6.2).
//
// Grounded on pkg/kvdb/adapter.go's thin storage-backend wrapper idiom and
// original_source/rust/main/hyperlane-base/src/types/multisig.rs (quorum
// fetch algorithm).
package checkpoint

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CheckpointValue is the signed payload a validator commits to: the root of
// the origin merkle-tree-hook at a given leaf index (spec.md §6.2).
type CheckpointValue struct {
	MerkleTreeHookAddress common.Address `json:"merkle_tree_hook_address"`
	MailboxDomain         uint32         `json:"mailbox_domain"`
	Root                  common.Hash    `json:"root"`
	Index                 uint32         `json:"index"`
	MessageID             common.Hash    `json:"message_id"`
}

// Signature is the r/s/v ECDSA signature components, hex-encoded the way
// validator signers publish them.
type Signature struct {
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
	V uint8       `json:"v"`
}

// SignedCheckpoint is the on-disk/on-bucket "checkpoint_<n>_with_id.json"
// shape.
type SignedCheckpoint struct {
	Value     CheckpointValue `json:"value"`
	Signature Signature       `json:"signature"`
}

// SigningHash computes the digest a validator actually signs: an
// EIP-191-prefixed personal-sign hash over the abi-packed checkpoint
// domain separator and fields, matching the on-chain
// StaticMessageIdMultisigIsmFactory verification path.
func (c CheckpointValue) SigningHash() common.Hash {
	domainSeparator := domainHash(c.MailboxDomain, c.MerkleTreeHookAddress)
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], c.Index)
	digest := crypto.Keccak256(domainSeparator.Bytes(), c.Root.Bytes(), idxBuf[:], c.MessageID.Bytes())
	return accounts191Hash(digest)
}

func domainHash(domain uint32, hook common.Address) common.Hash {
	var domainBuf [4]byte
	binary.BigEndian.PutUint32(domainBuf[:], domain)
	return crypto.Keccak256Hash(domainBuf[:], hook.Bytes(), []byte("HYPERLANE"))
}

// accounts191Hash reproduces go-ethereum's accounts.TextHash without
// pulling in the accounts package for one helper: keccak256 of
// "\x19Ethereum Signed Message:\n32" || digest.
func accounts191Hash(digest []byte) common.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))
	return crypto.Keccak256Hash([]byte(prefix), digest)
}

// Recover returns the address that produced Signature over Value's signing
// hash.
func (sc SignedCheckpoint) Recover() (common.Address, error) {
	sig := make([]byte, 65)
	copy(sig[0:32], sc.Signature.R.Bytes())
	copy(sig[32:64], sc.Signature.S.Bytes())
	v := sc.Signature.V
	if v >= 27 {
		v -= 27
	}
	sig[64] = v

	hash := sc.Value.SigningHash()
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("checkpoint: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign produces a SignedCheckpoint for value using key, for use by test
// fixtures and the (non-production) local-signer tooling.
func Sign(value CheckpointValue, key *ecdsa.PrivateKey) (SignedCheckpoint, error) {
	hash := value.SigningHash()
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return SignedCheckpoint{}, err
	}
	return SignedCheckpoint{
		Value: value,
		Signature: Signature{
			R: common.BytesToHash(sig[0:32]),
			S: common.BytesToHash(sig[32:64]),
			V: sig[64] + 27,
		},
	}, nil
}

// Announcement is the "announcement.json" shape a validator publishes
// pointing at its own checkpoint storage location.
type Announcement struct {
	Value     AnnouncementValue `json:"value"`
	Signature Signature         `json:"signature"`
}

type AnnouncementValue struct {
	Validator       common.Address `json:"validator"`
	MailboxAddress  common.Address `json:"mailbox_address"`
	MailboxDomain   uint32         `json:"mailbox_domain"`
	StorageLocation string         `json:"storage_location"`
}

// ReorgStatus is written by a validator that detects a reorg past its last
// signed checkpoint, instructing relayers to stop trusting its history
// below the recorded height until it recovers.
type ReorgStatus struct {
	UnsafeBlockNumber uint64 `json:"unsafe_block_number"`
	Timestamp         uint64 `json:"timestamp"`
}

// Syncer is the read-half of a validator's checkpoint storage (spec.md
// §4.9): the relayer never writes, so unlike the original agent-side
// trait this only exposes what the relayer consumes.
type Syncer interface {
	LatestIndex(ctx context.Context) (*uint32, error)
	FetchCheckpoint(ctx context.Context, index uint32) (*SignedCheckpoint, error)
	AnnouncementLocation() string
	ReorgStatus(ctx context.Context) (*ReorgStatus, error)
}

func unmarshalJSON[T any](data []byte) (T, error) {
	var out T
	err := json.Unmarshal(data, &out)
	return out, err
}
