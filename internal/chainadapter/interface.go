// Copyright 2026 Hyperlane Relayer Contributors
//
// Package chainadapter declares the capability set every origin or
// destination chain is reached through (spec §4.2, §6.1). Concrete
// implementations live in sibling packages (internal/chainadapter/evm);
// the core never imports a chain-specific package directly.
//
// Grounded on pkg/chain/strategy/interface.go's ChainExecutionStrategy
// (see DESIGN.md).
package chainadapter

import (
	"context"
	"math/big"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// EventKind distinguishes the log types the core understands.
type EventKind string

const (
	EventDispatch        EventKind = "Dispatch"
	EventMerkleInsertion  EventKind = "InsertedIntoTree"
	EventGasPayment      EventKind = "GasPayment"
	EventDelivery        EventKind = "Process"
)

// ReorgPeriod expresses how a chain defines "safe from reorg".
type ReorgPeriod struct {
	Blocks uint64 // 0 if Tag is set
	Tag    string // "finalized" | "safe" | "latest" | ""
}

// LogMeta is the idempotency key for a single chain log: enough to dedupe
// re-delivered or re-scanned events.
type LogMeta struct {
	BlockHash string
	BlockNum  uint64
	LogIndex  uint32
	TxHash    string
}

// Bytes renders the LogMeta as the idempotency key store.Store expects.
func (m LogMeta) Bytes() []byte {
	return []byte(m.BlockHash + ":" + m.TxHash + ":" + itoa(m.LogIndex))
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// DispatchEvent is the decoded form of a Mailbox Dispatch log.
type DispatchEvent struct {
	Message *store.HyperlaneMessage
}

// MerkleInsertionEvent is the decoded form of an InsertedIntoTree log.
type MerkleInsertionEvent struct {
	LeafIndex uint32
	MessageID []byte
}

// GasPaymentEvent is the decoded form of a GasPayment log.
type GasPaymentEvent struct {
	MessageID []byte
	GasAmount *big.Int
	Payment   *big.Int
}

// DeliveryEvent is the decoded form of a destination Mailbox Process log.
type DeliveryEvent struct {
	MessageID []byte
	TxHash    string
}

// SimResult is the outcome of simulating a transaction before submission.
type SimResult struct {
	OK       bool
	Reverted string // non-empty iff the simulation reverted
	Skipped  string // non-empty iff simulation was skipped (e.g. already delivered)
	GasLimit uint64
}

// TxHashStatus enumerates what an adapter currently observes for a
// previously-submitted hash.
type TxHashStatus string

const (
	TxHashPendingInclusion TxHashStatus = "PendingInclusion"
	TxHashMempool          TxHashStatus = "Mempool"
	TxHashIncluded         TxHashStatus = "Included"
	TxHashFinalized        TxHashStatus = "Finalized"
	TxHashDropped          TxHashStatus = "Dropped"
)

// TxOutcome describes the result of an executed process() transaction. No
// ChainAdapter method returns it; the submission path returns only a hash
// via Submit.
type TxOutcome struct {
	TxID     string
	Executed bool
	GasUsed  *big.Int
	GasPrice *big.Int
}

// UnsignedTx is the adapter-specific precursor handed to Submit/Simulate;
// the core treats it opaquely aside from the gas-limit hint.
type UnsignedTx struct {
	To           string
	Data         []byte
	GasLimitHint *big.Int
	Nonce        *uint64 // assigned by the submitter's nonce manager, EVM only
}

// ChainAdapter is the capability set consumed by the core (spec §6.1).
// Every method must be safe for concurrent use; adapters are shared
// immutable objects held by every indexer/processor/submitter task for a
// given domain.
type ChainAdapter interface {
	Domain() uint32
	ReorgPeriod() ReorgPeriod
	FinalizedBlockHeight(ctx context.Context) (uint64, error)

	// FetchLogsInRange may return duplicates; callers dedupe via LogMeta.
	FetchLogsInRange(ctx context.Context, kind EventKind, fromBlock, toBlock uint64) ([]LogEntry, error)
	FetchLogsByTxHash(ctx context.Context, txHash string, kind EventKind) ([]LogEntry, error)

	// LatestSequenceCountAndTip reports, for sequenced event kinds, the
	// next sequence not yet emitted and the current chain tip.
	LatestSequenceCountAndTip(ctx context.Context, kind EventKind) (next *uint32, tip uint64, err error)

	DefaultISM(ctx context.Context) ([]byte, error)
	RecipientISM(ctx context.Context, recipient []byte) ([]byte, error)
	Delivered(ctx context.Context, messageID []byte) (bool, error)

	// BuildProcessTx ABI-encodes a mailbox process(metadata, message) call
	// ready for Simulate/EstimateGas/Submit.
	BuildProcessTx(ctx context.Context, rawMessage, metadata []byte) (*UnsignedTx, error)

	Simulate(ctx context.Context, tx *UnsignedTx) (*SimResult, error)
	EstimateGas(ctx context.Context, tx *UnsignedTx) (gasLimit uint64, gasPrice *big.Int, err error)
	Submit(ctx context.Context, tx *UnsignedTx, nonce uint64, gasPrice *big.Int) (txHash string, err error)
	TxHashStatus(ctx context.Context, txHash string) (TxHashStatus, error)

	GetBalance(ctx context.Context, addr string) (*big.Int, error)

	// ValidatorAnnounceStorageLocations returns, per validator address in
	// order, the list of announced storage location URIs.
	ValidatorAnnounceStorageLocations(ctx context.Context, validators [][]byte) ([][]string, error)

	// BuildMultisigISM returns the validator set and threshold configured
	// for a multisig ISM address, as seen for a specific message (the ABI
	// call takes the raw message so a custom ISM may vary the set
	// per-recipient).
	BuildMultisigISM(ctx context.Context, ismAddress []byte, rawMessage []byte) (validators [][]byte, threshold int, err error)

	// GetProof returns an inclusion proof for a leaf against the
	// merkle-tree-hook's on-chain state, as of the given checkpoint index
	// (spec §9: "deliberately excluded from core... backed by the origin
	// MerkleTreeHook's on-chain read").
	GetProof(ctx context.Context, merkleTreeHook []byte, leafIndex uint32, checkpointIndex uint32) ([][]byte, error)

	// ISMModuleType returns the ISM's declared module type (spec §4.5).
	ISMModuleType(ctx context.Context, ismAddress []byte) (ModuleType, error)

	// ISMRoute resolves a Routing ISM's sub-ISM for a given message.
	ISMRoute(ctx context.Context, ismAddress []byte, rawMessage []byte) ([]byte, error)

	// ISMSubModulesAndThreshold returns an Aggregation ISM's constituent
	// sub-ISMs and the number of them that must succeed.
	ISMSubModulesAndThreshold(ctx context.Context, ismAddress []byte, rawMessage []byte) (subISMs [][]byte, threshold int, err error)

	// SimulateOffchainLookup calls getOffchainVerifyInfo on a CCIP-Read ISM,
	// which is expected to revert carrying an EIP-3668 OffchainLookup
	// custom error, and returns the decoded revert payload.
	SimulateOffchainLookup(ctx context.Context, ismAddress []byte, rawMessage []byte) (*OffchainLookup, error)
}

// ModuleType enumerates Hyperlane ISM module type discriminants
// (IInterchainSecurityModule.Types, spec §4.5).
type ModuleType uint8

const (
	ModuleUnused              ModuleType = 0
	ModuleRouting             ModuleType = 1
	ModuleAggregation         ModuleType = 2
	ModuleLegacyMultisig      ModuleType = 3
	ModuleMerkleRootMultisig  ModuleType = 4
	ModuleMessageIDMultisig   ModuleType = 5
	ModuleNull                ModuleType = 6
	ModuleCCIPRead            ModuleType = 7
)

// OffchainLookup is the decoded form of EIP-3668's OffchainLookup custom
// error, the signal a CCIP-Read ISM reverts with.
type OffchainLookup struct {
	Sender   []byte
	URLs     []string
	CallData []byte
}

// LogEntry pairs a decoded event with its idempotency metadata. The event
// payload is one of DispatchEvent / MerkleInsertionEvent / GasPaymentEvent
// / DeliveryEvent depending on the EventKind requested.
type LogEntry struct {
	Kind  EventKind
	Meta  LogMeta
	Block uint64

	Dispatch  *DispatchEvent
	Merkle    *MerkleInsertionEvent
	GasPay    *GasPaymentEvent
	Delivery  *DeliveryEvent
}
