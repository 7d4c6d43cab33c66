// Package store implements the relayer's persistent, prefix-namespaced
// key-value catalog (see DESIGN.md, internal/store entry).
package store

import (
	"math/big"
	"time"
)

// HyperlaneMessage is the canonical cross-chain message, identified by the
// content hash of its fields. Never mutated once indexed.
type HyperlaneMessage struct {
	Version     uint8  `json:"version"`
	Nonce       uint32 `json:"nonce"`
	Origin      uint32 `json:"origin"`
	Sender      []byte `json:"sender"`      // 32 bytes
	Destination uint32 `json:"destination"`
	Recipient   []byte `json:"recipient"`   // 32 bytes
	Body        []byte `json:"body"`
}

// ID returns the 32-byte content hash identifying this message.
func (m *HyperlaneMessage) ID() [32]byte {
	return MessageID(m)
}

// GasPaymentTotal is the accumulated payment for a message_id, summed over
// every InterchainGasPayment log observed for it.
type GasPaymentTotal struct {
	CumulativePayment   *BigInt `json:"cumulative_payment"`
	CumulativeGasAmount *BigInt `json:"cumulative_gas_amount"`
}

// MerkleTreeInsertion records a single InsertedIntoTree log: a message's
// dense, one-to-one leaf index in a given merkle-tree-hook.
type MerkleTreeInsertion struct {
	LeafIndex uint32 `json:"leaf_index"`
	MessageID []byte `json:"message_id"` // 32 bytes
}

// PendingOperationStatus enumerates the lifecycle of a PendingOperation.
type PendingOperationStatus string

const (
	StatusReadyToSubmit  PendingOperationStatus = "ReadyToSubmit"
	StatusPreparing      PendingOperationStatus = "Preparing"
	StatusConfirming     PendingOperationStatus = "Confirming"
	StatusRetryable      PendingOperationStatus = "Retryable"
	StatusDropped        PendingOperationStatus = "Dropped"
	StatusFinalized      PendingOperationStatus = "Finalized"
)

// PendingOperation (aka PendingMessage) is a single instance alive in the
// processor for a (origin, message_id) pair at a time.
type PendingOperation struct {
	Message         *HyperlaneMessage      `json:"message"`
	Status          PendingOperationStatus `json:"status"`
	RetryCount      uint32                 `json:"retry_count"`
	NextAttemptAfter time.Time             `json:"next_attempt_after"`
	AppContext      string                 `json:"app_context,omitempty"`
	DropReason      string                 `json:"drop_reason,omitempty"`
}

// PayloadStatus enumerates FullPayload lifecycle states.
type PayloadStatus string

const (
	PayloadReadyToSubmit PayloadStatus = "ReadyToSubmit"
	PayloadInTransaction PayloadStatus = "InTransaction"
	PayloadDelivered     PayloadStatus = "Delivered"
	PayloadDropped       PayloadStatus = "Dropped"
)

// PayloadDetails references the originating message(s) a payload was built
// from, for classification and metrics after batching.
type PayloadDetails struct {
	MessageID   []byte `json:"message_id"`
	Destination uint32 `json:"destination"`
}

// FullPayload is the relayer-internal unit of work: a prepared
// (message, metadata, gas_limit) not yet committed to a transaction.
type FullPayload struct {
	UUID         string          `json:"uuid"`
	To           string          `json:"to"`   // destination contract address (mailbox)
	Data         []byte          `json:"data"` // serialized call data: process(message, metadata)
	GasLimitHint *BigInt         `json:"gas_limit_hint,omitempty"`
	Status       PayloadStatus   `json:"status"`
	Details      PayloadDetails  `json:"details"`
	DropReason   string          `json:"drop_reason,omitempty"`
}

// TransactionStatus enumerates Transaction lifecycle states. Must only ever
// move forward: PendingInclusion -> Mempool -> Included -> Finalized, with
// "* -> Dropped" always allowed.
type TransactionStatus string

const (
	TxPendingInclusion TransactionStatus = "PendingInclusion"
	TxMempool          TransactionStatus = "Mempool"
	TxIncluded         TransactionStatus = "Included"
	TxFinalized        TransactionStatus = "Finalized"
	TxDropped          TransactionStatus = "Dropped"
)

// Transaction batches one or more payloads into a single destination-chain
// submission, potentially re-broadcast at escalating gas price.
type Transaction struct {
	UUID              string             `json:"uuid"`
	Precursor         []byte             `json:"precursor"` // vm-specific unsigned tx fields
	Payloads          []PayloadDetails   `json:"payloads"`
	TxHashes          []string           `json:"tx_hashes"`
	Status            TransactionStatus  `json:"status"`
	SubmissionAttempts int               `json:"submission_attempts"`
	Nonce             *uint64            `json:"nonce,omitempty"`
	Signer            string             `json:"signer,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	LastSubmittedAt   time.Time          `json:"last_submitted_at"`
	NextAttemptAfter  time.Time          `json:"next_attempt_after"`
}

// BigInt is a JSON-friendly decimal-string wrapper for uint256-scale values;
// the relayer never needs arithmetic precision beyond what big.Int affords,
// so values round-trip as strings rather than introducing a dedicated
// arbitrary-precision codec.
type BigInt struct {
	value string
}

// NewBigInt wraps a decimal string.
func NewBigInt(decimal string) *BigInt {
	if decimal == "" {
		decimal = "0"
	}
	return &BigInt{value: decimal}
}

func (b *BigInt) String() string {
	if b == nil || b.value == "" {
		return "0"
	}
	return b.value
}

// Big returns the decimal value as a math/big.Int, defaulting to zero for a
// nil receiver or an unparseable string.
func (b *BigInt) Big() *big.Int {
	n := new(big.Int)
	if b == nil || b.value == "" {
		return n
	}
	if _, ok := n.SetString(b.value, 10); !ok {
		return big.NewInt(0)
	}
	return n
}

// NewBigIntFromBig wraps a math/big.Int as a BigInt.
func NewBigIntFromBig(n *big.Int) *BigInt {
	if n == nil {
		return NewBigInt("0")
	}
	return NewBigInt(n.String())
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	b.value = s
	return nil
}
