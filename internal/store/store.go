package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// KV is the minimal backing interface the Store requires; Store is
// agnostic to the engine behind it (see internal/kvdb's cometbft-db-backed
// implementation wired in cmd/relayer).
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
}

// Sentinel errors. Readers load-or-default where the data model calls for
// it (counters, lowest_available_nonce); entity lookups surface a typed
// not-found so callers can distinguish "absent" from "corrupt".
var (
	ErrMessageNotFound     = errors.New("store: message not found")
	ErrPayloadNotFound     = errors.New("store: payload not found")
	ErrTransactionNotFound = errors.New("store: transaction not found")
	ErrNonceStatusNotFound = errors.New("store: nonce status not found")
)

// Store is a typed, prefix-namespaced key-value catalog scoped per origin
// domain (see DESIGN.md, internal/store entry; grounded on
// pkg/kvdb/adapter.go + pkg/ledger/store.go).
type Store struct {
	kv KV
}

// New wraps a KV backend.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) getJSON(key []byte, out interface{}) (bool, error) {
	b, err := s.kv.Get(key)
	if err != nil {
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("store: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key []byte, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	return s.kv.Set(key, b)
}

// MessageID computes the stable, globally-unique content hash of a message.
func MessageID(m *HyperlaneMessage) [32]byte {
	buf := make([]byte, 0, 1+4+4+32+4+32+len(m.Body))
	buf = append(buf, m.Version)
	buf = appendU32(buf, m.Nonce)
	buf = appendU32(buf, m.Origin)
	buf = append(buf, pad32(m.Sender)...)
	buf = appendU32(buf, m.Destination)
	buf = append(buf, pad32(m.Recipient)...)
	buf = append(buf, m.Body...)
	return sha256.Sum256(buf)
}

func appendU32(buf []byte, n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return append(buf, b...)
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out, b)
	return out
}

// ---- Messages ----

// PutMessage indexes a newly-dispatched message. Never mutated thereafter.
func (s *Store) PutMessage(origin uint32, m *HyperlaneMessage) error {
	id := MessageID(m)
	if err := s.setJSON(keyMessage(id[:]), m); err != nil {
		return err
	}
	if err := s.kv.Set(keyMessageIDByNonce(origin, m.Nonce), id[:]); err != nil {
		return fmt.Errorf("store: set message_id_by_nonce: %w", err)
	}
	highest, err := s.HighestSeenMessageNonce(origin)
	if err != nil {
		return err
	}
	if m.Nonce >= highest {
		if err := s.kv.Set(keyHighestSeenMessageNonceForOrigin(origin), u32be(m.Nonce)); err != nil {
			return fmt.Errorf("store: set highest_seen_message_nonce: %w", err)
		}
	}
	return nil
}

// MessageByID looks up a message by its content hash.
func (s *Store) MessageByID(id []byte) (*HyperlaneMessage, error) {
	var m HyperlaneMessage
	ok, err := s.getJSON(keyMessage(id), &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &m, nil
}

// MessageIDByNonce resolves the message_id previously indexed for a
// (origin, nonce) pair, or (nil, false) if absent.
func (s *Store) MessageIDByNonce(origin, nonce uint32) ([]byte, bool, error) {
	b, err := s.kv.Get(keyMessageIDByNonce(origin, nonce))
	if err != nil {
		return nil, false, err
	}
	if len(b) == 0 {
		return nil, false, nil
	}
	return b, true, nil
}

// MessageByNonce is the convenience composition used by invariant checks.
func (s *Store) MessageByNonce(origin, nonce uint32) (*HyperlaneMessage, bool, error) {
	id, ok, err := s.MessageIDByNonce(origin, nonce)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := s.MessageByID(id)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// HighestSeenMessageNonce returns the highest nonce dispatched for an
// origin, as reported by the indexer (not necessarily yet processed).
func (s *Store) HighestSeenMessageNonce(origin uint32) (uint32, error) {
	b, err := s.kv.Get(keyHighestSeenMessageNonceForOrigin(origin))
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(b), nil
}

// SetLatestKnownNonceForDestination records the highest nonce dispatched
// toward a given destination domain.
func (s *Store) SetLatestKnownNonceForDestination(dest, nonce uint32) error {
	return s.kv.Set(keyLatestKnownNonceForDest(dest), u32be(nonce))
}

// MarkNonceProcessed flags a (origin, nonce) as processed by the DB-Loader.
func (s *Store) MarkNonceProcessed(origin, nonce uint32) error {
	return s.kv.Set(keyNonceProcessed(origin, nonce), []byte{1})
}

// IsNonceProcessed reports whether a (origin, nonce) has already been
// handed to the processor.
func (s *Store) IsNonceProcessed(origin, nonce uint32) (bool, error) {
	ok, err := s.kv.Has(keyNonceProcessed(origin, nonce))
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ---- Gas payments ----

// RecordGasPayment accumulates a payment for a message, keyed by the log's
// idempotency meta (block-hash+log-index+tx-hash) so replays are no-ops.
func (s *Store) RecordGasPayment(messageID, logMeta []byte, payment, gasAmount *BigInt) error {
	processed, err := s.kv.Has(keyGasPaymentMetaProcessed(logMeta))
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	var total GasPaymentTotal
	ok, err := s.getJSON(keyGasPaymentForMessageID(messageID), &total)
	if err != nil {
		return err
	}
	if !ok {
		total = GasPaymentTotal{CumulativePayment: NewBigInt("0"), CumulativeGasAmount: NewBigInt("0")}
	}
	total.CumulativePayment = addDecimal(total.CumulativePayment, payment)
	total.CumulativeGasAmount = addDecimal(total.CumulativeGasAmount, gasAmount)

	if err := s.setJSON(keyGasPaymentForMessageID(messageID), &total); err != nil {
		return err
	}
	return s.kv.Set(keyGasPaymentMetaProcessed(logMeta), []byte{1})
}

// GasPaymentForMessageID returns the cumulative payment/gas_amount for a
// message, or zero values if none have been recorded.
func (s *Store) GasPaymentForMessageID(messageID []byte) (*GasPaymentTotal, error) {
	var total GasPaymentTotal
	ok, err := s.getJSON(keyGasPaymentForMessageID(messageID), &total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &GasPaymentTotal{CumulativePayment: NewBigInt("0"), CumulativeGasAmount: NewBigInt("0")}, nil
	}
	return &total, nil
}

// RecordGasExpenditure records the amount of native tokens spent submitting
// a message (for cost accounting, not enforcement).
func (s *Store) RecordGasExpenditure(messageID []byte, amount *BigInt) error {
	return s.setJSON(keyGasExpenditureForMessageID(messageID), amount)
}

// ---- Merkle tree insertions ----

// PutMerkleInsertion indexes an InsertedIntoTree log for a merkle-tree-hook.
func (s *Store) PutMerkleInsertion(hook []byte, ins *MerkleTreeInsertion, blockNumber uint64) error {
	if err := s.setJSON(keyMerkleInsertionByLeaf(hook, ins.LeafIndex), ins); err != nil {
		return err
	}
	if err := s.kv.Set(keyMerkleLeafByMessageID(hook, ins.MessageID), u32be(ins.LeafIndex)); err != nil {
		return err
	}
	return s.kv.Set(keyMerkleInsertionBlockNumber(hook, ins.LeafIndex), u64be(blockNumber))
}

// MerkleInsertionByLeafIndex looks up the insertion record for a leaf.
func (s *Store) MerkleInsertionByLeafIndex(hook []byte, leafIndex uint32) (*MerkleTreeInsertion, bool, error) {
	var ins MerkleTreeInsertion
	ok, err := s.getJSON(keyMerkleInsertionByLeaf(hook, leafIndex), &ins)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &ins, true, nil
}

// MerkleLeafIndexByMessageID resolves the dense leaf index for a message
// previously inserted into a given merkle-tree-hook.
func (s *Store) MerkleLeafIndexByMessageID(hook, messageID []byte) (uint32, bool, error) {
	b, err := s.kv.Get(keyMerkleLeafByMessageID(hook, messageID))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(b), true, nil
}

// HighestKnownLeafIndex probes every leaf index from 0 through upperBound
// and returns the highest one with an insertion recorded for a
// merkle-tree-hook; the probe is linear in upperBound.
func (s *Store) HighestKnownLeafIndex(hook []byte, upperBound uint32) (uint32, bool, error) {
	found := false
	var highest uint32
	for i := uint32(0); i <= upperBound; i++ {
		ok, err := s.kv.Has(keyMerkleInsertionByLeaf(hook, i))
		if err != nil {
			return 0, false, err
		}
		if ok {
			highest = i
			found = true
		}
	}
	return highest, found, nil
}

// ---- Pending operation status / retry bookkeeping ----

// SetPendingRetryCount persists the retry count for a message so restarts
// preserve the backoff schedule (invariant 8).
func (s *Store) SetPendingRetryCount(messageID []byte, count uint32) error {
	return s.kv.Set(keyPendingRetryCount(messageID), u32be(count))
}

// PendingRetryCount returns the persisted retry count, 0 if none recorded.
func (s *Store) PendingRetryCount(messageID []byte) (uint32, error) {
	b, err := s.kv.Get(keyPendingRetryCount(messageID))
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(b), nil
}

// SetStatus persists the PendingOperationStatus for a message.
func (s *Store) SetStatus(messageID []byte, status PendingOperationStatus) error {
	return s.kv.Set(keyStatusByMessageID(messageID), []byte(status))
}

// Status returns the persisted status, or StatusReadyToSubmit if none.
func (s *Store) Status(messageID []byte) (PendingOperationStatus, error) {
	b, err := s.kv.Get(keyStatusByMessageID(messageID))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return StatusReadyToSubmit, nil
	}
	return PendingOperationStatus(b), nil
}

// ---- Payloads ----

// PutPayload persists a FullPayload and appends it to the append-only
// index (payload_by_index_<n>) and the per-message reverse index.
func (s *Store) PutPayload(p *FullPayload) error {
	if err := s.setJSON(keyPayload(p.UUID), p); err != nil {
		return err
	}
	existingIdx, err := s.kv.Get(keyPayloadIndexByUUID(p.UUID))
	if err != nil {
		return err
	}
	if len(existingIdx) == 8 {
		// Already indexed; this is a status update, not a new append.
		return s.appendPayloadUUIDForMessage(p)
	}
	n, err := s.nextIndex(keyHighestPayloadIndex)
	if err != nil {
		return err
	}
	if err := s.kv.Set(keyPayloadByIndex(n), []byte(p.UUID)); err != nil {
		return err
	}
	if err := s.kv.Set(keyPayloadIndexByUUID(p.UUID), u64be(n)); err != nil {
		return err
	}
	return s.appendPayloadUUIDForMessage(p)
}

func (s *Store) appendPayloadUUIDForMessage(p *FullPayload) error {
	if len(p.Details.MessageID) == 0 {
		return nil
	}
	var uuids []string
	_, err := s.getJSON(keyPayloadUUIDsByMessageID(p.Details.MessageID), &uuids)
	if err != nil {
		return err
	}
	for _, u := range uuids {
		if u == p.UUID {
			return nil
		}
	}
	uuids = append(uuids, p.UUID)
	return s.setJSON(keyPayloadUUIDsByMessageID(p.Details.MessageID), uuids)
}

// PayloadByUUID loads a persisted payload.
func (s *Store) PayloadByUUID(uuid string) (*FullPayload, error) {
	var p FullPayload
	ok, err := s.getJSON(keyPayload(uuid), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPayloadNotFound
	}
	return &p, nil
}

// PayloadUUIDsByMessageID returns every payload UUID ever built for a
// message (a message may be re-prepared after a drop-and-retry).
func (s *Store) PayloadUUIDsByMessageID(messageID []byte) ([]string, error) {
	var uuids []string
	_, err := s.getJSON(keyPayloadUUIDsByMessageID(messageID), &uuids)
	if err != nil {
		return nil, err
	}
	return uuids, nil
}

func (s *Store) nextIndex(counterKey []byte) (uint64, error) {
	b, err := s.kv.Get(counterKey)
	if err != nil {
		return 0, err
	}
	var n uint64
	if len(b) == 8 {
		n = binary.BigEndian.Uint64(b) + 1
	}
	if err := s.kv.Set(counterKey, u64be(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// ---- Transactions ----

// PutTransaction persists a Transaction, appending to the index on first
// write and overwriting the stable key on every status transition.
func (s *Store) PutTransaction(t *Transaction) error {
	if err := s.setJSON(keyTransaction(t.UUID), t); err != nil {
		return err
	}
	existingIdx, err := s.kv.Get(keyTransactionIndexByUUID(t.UUID))
	if err != nil {
		return err
	}
	if len(existingIdx) == 8 {
		return s.appendTxUUIDsForPayloads(t)
	}
	n, err := s.nextIndex(keyHighestTransactionIndex)
	if err != nil {
		return err
	}
	if err := s.kv.Set(keyTransactionByIndex(n), []byte(t.UUID)); err != nil {
		return err
	}
	if err := s.kv.Set(keyTransactionIndexByUUID(t.UUID), u64be(n)); err != nil {
		return err
	}
	return s.appendTxUUIDsForPayloads(t)
}

func (s *Store) appendTxUUIDsForPayloads(t *Transaction) error {
	for _, pd := range t.Payloads {
		if len(pd.MessageID) == 0 {
			continue
		}
		var uuids []string
		_, err := s.getJSON(keyTxUUIDsByMessageID(pd.MessageID), &uuids)
		if err != nil {
			return err
		}
		found := false
		for _, u := range uuids {
			if u == t.UUID {
				found = true
				break
			}
		}
		if !found {
			uuids = append(uuids, t.UUID)
			if err := s.setJSON(keyTxUUIDsByMessageID(pd.MessageID), uuids); err != nil {
				return err
			}
		}
	}
	return nil
}

// TransactionByUUID loads a persisted transaction.
func (s *Store) TransactionByUUID(uuid string) (*Transaction, error) {
	var t Transaction
	ok, err := s.getJSON(keyTransaction(uuid), &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &t, nil
}

// ---- EVM nonce manager persistence ----

// LowestAvailableNonce returns the persisted lowest-available nonce for a
// signer, defaulting to 0 for a never-used signer.
func (s *Store) LowestAvailableNonce(signer string) (uint64, error) {
	b, err := s.kv.Get(keyLowestAvailableNonce(signer))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}

// SetLowestAvailableNonce persists the signer's lowest-available nonce.
func (s *Store) SetLowestAvailableNonce(signer string, nonce uint64) error {
	return s.kv.Set(keyLowestAvailableNonce(signer), u64be(nonce))
}

// UpperNonce returns the persisted exclusive upper bound for a signer.
func (s *Store) UpperNonce(signer string) (uint64, error) {
	b, err := s.kv.Get(keyUpperNonce(signer))
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}

// SetUpperNonce persists the signer's exclusive upper bound.
func (s *Store) SetUpperNonce(signer string, upper uint64) error {
	return s.kv.Set(keyUpperNonce(signer), u64be(upper))
}

// NonceStatusRecord is the persisted form of a single nonce's assignment.
type NonceStatusRecord struct {
	Status string `json:"status"` // "Freed" | "Taken" | "Committed"
	TxUUID string `json:"tx_uuid"`
}

// SetNonceStatus records a nonce's status for a signer. Each transition
// overwrites the single stable key for (nonce, signer), matching the
// "status fields overwritten under their stable key" rule of §6.5.
func (s *Store) SetNonceStatus(signer string, nonce uint64, rec *NonceStatusRecord) error {
	return s.setJSON(keyNonceStatus(signer, nonce), rec)
}

// NonceStatus returns the persisted status for a (signer, nonce), or
// ErrNonceStatusNotFound if none has ever been assigned.
func (s *Store) NonceStatus(signer string, nonce uint64) (*NonceStatusRecord, error) {
	var rec NonceStatusRecord
	ok, err := s.getJSON(keyNonceStatus(signer, nonce), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNonceStatusNotFound
	}
	return &rec, nil
}

// ForwardBlock returns the contract-sync forward sub-iterator's last
// indexed block for (domain, event kind); 0 if never persisted.
func (s *Store) ForwardBlock(domain uint32, kind string) (uint64, error) {
	return s.getU64(cursorKey(prefixCursorForwardBlock, domain, kind))
}

// SetForwardBlock persists the forward sub-iterator's watermark.
func (s *Store) SetForwardBlock(domain uint32, kind string, block uint64) error {
	return s.kv.Set(cursorKey(prefixCursorForwardBlock, domain, kind), u64be(block))
}

// BackwardBlock returns the sequence-aware cursor's backward sub-iterator
// position (the next block, descending, still to be scanned for gaps).
func (s *Store) BackwardBlock(domain uint32, kind string) (uint64, error) {
	return s.getU64(cursorKey(prefixCursorBackwardBlock, domain, kind))
}

// SetBackwardBlock persists the backward sub-iterator's watermark.
func (s *Store) SetBackwardBlock(domain uint32, kind string, block uint64) error {
	return s.kv.Set(cursorKey(prefixCursorBackwardBlock, domain, kind), u64be(block))
}

// CursorHighestSequence returns the highest sequence number the
// sequence-aware cursor has observed, used to seed the backward
// sub-iterator on first boot.
func (s *Store) CursorHighestSequence(domain uint32, kind string) (uint32, error) {
	b, err := s.kv.Get(cursorKey(prefixCursorHighestSequence, domain, kind))
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(b), nil
}

// SetCursorHighestSequence persists the sequence-aware cursor's watermark.
func (s *Store) SetCursorHighestSequence(domain uint32, kind string, seq uint32) error {
	return s.kv.Set(cursorKey(prefixCursorHighestSequence, domain, kind), u32be(seq))
}

// WatermarkBlock returns the rate-limited cursor's block watermark.
func (s *Store) WatermarkBlock(domain uint32, kind string) (uint64, error) {
	return s.getU64(cursorKey(prefixCursorWatermarkBlock, domain, kind))
}

// SetWatermarkBlock persists the rate-limited cursor's block watermark.
func (s *Store) SetWatermarkBlock(domain uint32, kind string, block uint64) error {
	return s.kv.Set(cursorKey(prefixCursorWatermarkBlock, domain, kind), u64be(block))
}

// DBLoaderForwardNonce returns the DB-loader's forward sub-iterator
// position for an origin: the next nonce not yet considered. 0 if never
// persisted (a fresh loader starts at the genesis nonce).
func (s *Store) DBLoaderForwardNonce(origin uint32) (uint32, error) {
	b, err := s.kv.Get(keyDBLoaderForwardNonce(origin))
	if err != nil {
		return 0, err
	}
	if len(b) != 4 {
		return 0, nil
	}
	return binary.BigEndian.Uint32(b), nil
}

// SetDBLoaderForwardNonce persists the DB-loader's forward position.
func (s *Store) SetDBLoaderForwardNonce(origin, nonce uint32) error {
	return s.kv.Set(keyDBLoaderForwardNonce(origin), u32be(nonce))
}

// DBLoaderBackwardNonce returns the DB-loader's backward sub-iterator
// position: the next nonce (descending) still to be considered below the
// point the forward iterator started from.
func (s *Store) DBLoaderBackwardNonce(origin uint32) (uint32, bool, error) {
	b, err := s.kv.Get(keyDBLoaderBackwardNonce(origin))
	if err != nil {
		return 0, false, err
	}
	if len(b) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(b), true, nil
}

// SetDBLoaderBackwardNonce persists the DB-loader's backward position.
func (s *Store) SetDBLoaderBackwardNonce(origin, nonce uint32) error {
	return s.kv.Set(keyDBLoaderBackwardNonce(origin), u32be(nonce))
}

// DBLoaderBackwardDone reports whether the backward sweep for an origin
// has reached nonce 0.
func (s *Store) DBLoaderBackwardDone(origin uint32) (bool, error) {
	return s.kv.Has(keyDBLoaderBackwardDone(origin))
}

// SetDBLoaderBackwardDone latches the backward sweep as complete.
func (s *Store) SetDBLoaderBackwardDone(origin uint32) error {
	return s.kv.Set(keyDBLoaderBackwardDone(origin), []byte{1})
}

func (s *Store) getU64(key []byte) (uint64, error) {
	b, err := s.kv.Get(key)
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(b), nil
}

func addDecimal(a, b *BigInt) *BigInt {
	// Values are small enough in practice (wei-scale uint256) that a
	// straightforward decimal big-int add via math/big at the call site
	// handled by the caller is unnecessary here; we shell out to the
	// standard library's arbitrary precision type to stay correct for
	// arbitrarily large token amounts.
	return addBig(a, b)
}
