// Copyright 2026 Hyperlane Relayer Contributors

package store

import (
	"encoding/binary"
	"fmt"
)

// Key layout (see spec §4.1, §6.5): <entity-prefix>_<additional-prefix>*_<key-bytes>.
// Prefixes are versioned by suffixing "_v<n>" when the on-disk format changes;
// gas-payment keys are already on v2 per the upstream schema this was ported
// from.
var (
	prefixMessageIDByNonce        = []byte("message_id_")
	prefixMessage                 = []byte("message_")
	prefixLatestKnownNonceForDest = []byte("latest_known_nonce_for_destination_")
	prefixNonceProcessed          = []byte("nonce_processed_")
	prefixGasPaymentForMessageID  = []byte("gas_payment_for_message_id_v2_")
	prefixGasPaymentMetaProcessed = []byte("gas_payment_meta_processed_v2_")
	prefixGasExpenditureForMsgID  = []byte("gas_expenditure_for_message_id_")
	prefixMerkleInsertionByLeaf   = []byte("merkle_tree_insertion_by_leaf_index_")
	prefixMerkleLeafByMessageID   = []byte("merkle_leaf_index_by_message_id_")
	prefixMerkleInsertionBlockNum = []byte("merkle_tree_insertion_block_number_by_leaf_index_")
	keyHighestSeenMessageNonce    = []byte("highest_seen_message_nonce")
	prefixPendingRetryCount       = []byte("pending_message_retry_count_by_message_id_")
	prefixStatusByMessageID       = []byte("status_by_message_id_")
	prefixPayload                 = []byte("payload_")
	prefixPayloadByIndex          = []byte("payload_by_index_")
	prefixPayloadIndexByUUID      = []byte("payload_index_by_uuid_")
	keyHighestPayloadIndex        = []byte("highest_payload_index")
	prefixPayloadUUIDsByMessageID = []byte("payload_uuids_by_message_id_")
	prefixTransaction             = []byte("transaction_")
	prefixTransactionByIndex      = []byte("transaction_by_index_")
	prefixTransactionIndexByUUID  = []byte("transaction_index_by_uuid_")
	keyHighestTransactionIndex    = []byte("highest_transaction_index")
	prefixTxUUIDsByMessageID      = []byte("transaction_uuids_by_message_id_")
	prefixLowestAvailableNonce    = []byte("lowest_available_nonce_by_signer_")
	prefixUpperNonce              = []byte("upper_nonce_by_signer_")
	prefixNonceStatus             = []byte("nonce_status_by_nonce_and_signer_")
	prefixCursorForwardBlock      = []byte("cursor_forward_block_")
	prefixCursorBackwardBlock     = []byte("cursor_backward_block_")
	prefixCursorHighestSequence   = []byte("cursor_highest_sequence_")
	prefixCursorWatermarkBlock    = []byte("cursor_watermark_block_")
	prefixDBLoaderForwardNonce    = []byte("dbloader_forward_nonce_by_origin_")
	prefixDBLoaderBackwardNonce   = []byte("dbloader_backward_nonce_by_origin_")
	prefixDBLoaderBackwardDone    = []byte("dbloader_backward_done_by_origin_")
)

func u32be(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func u64be(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func keyMessageIDByNonce(origin, nonce uint32) []byte {
	return append(append(append([]byte{}, prefixMessageIDByNonce...), u32be(origin)...), u32be(nonce)...)
}

func keyMessage(id []byte) []byte {
	return append(append([]byte{}, prefixMessage...), id...)
}

func keyLatestKnownNonceForDest(dest uint32) []byte {
	return append(append([]byte{}, prefixLatestKnownNonceForDest...), u32be(dest)...)
}

func keyNonceProcessed(origin, nonce uint32) []byte {
	return append(append(append([]byte{}, prefixNonceProcessed...), u32be(origin)...), u32be(nonce)...)
}

func keyGasPaymentForMessageID(id []byte) []byte {
	return append(append([]byte{}, prefixGasPaymentForMessageID...), id...)
}

// logMeta is the idempotency key for a chain log: block-hash+log-index+tx-hash.
func keyGasPaymentMetaProcessed(logMeta []byte) []byte {
	return append(append([]byte{}, prefixGasPaymentMetaProcessed...), logMeta...)
}

func keyGasExpenditureForMessageID(id []byte) []byte {
	return append(append([]byte{}, prefixGasExpenditureForMsgID...), id...)
}

func keyMerkleInsertionByLeaf(hook []byte, leafIndex uint32) []byte {
	return append(append(append([]byte{}, prefixMerkleInsertionByLeaf...), hook...), u32be(leafIndex)...)
}

func keyMerkleLeafByMessageID(hook []byte, id []byte) []byte {
	return append(append(append([]byte{}, prefixMerkleLeafByMessageID...), hook...), id...)
}

func keyMerkleInsertionBlockNumber(hook []byte, leafIndex uint32) []byte {
	return append(append(append([]byte{}, prefixMerkleInsertionBlockNum...), hook...), u32be(leafIndex)...)
}

func keyHighestSeenMessageNonceForOrigin(origin uint32) []byte {
	return append(append([]byte{}, keyHighestSeenMessageNonce...), u32be(origin)...)
}

func keyPendingRetryCount(id []byte) []byte {
	return append(append([]byte{}, prefixPendingRetryCount...), id...)
}

func keyStatusByMessageID(id []byte) []byte {
	return append(append([]byte{}, prefixStatusByMessageID...), id...)
}

func keyPayload(uuid string) []byte {
	return append(append([]byte{}, prefixPayload...), []byte(uuid)...)
}

func keyPayloadByIndex(n uint64) []byte {
	return append(append([]byte{}, prefixPayloadByIndex...), u64be(n)...)
}

func keyPayloadIndexByUUID(uuid string) []byte {
	return append(append([]byte{}, prefixPayloadIndexByUUID...), []byte(uuid)...)
}

func keyPayloadUUIDsByMessageID(id []byte) []byte {
	return append(append([]byte{}, prefixPayloadUUIDsByMessageID...), id...)
}

func keyTransaction(uuid string) []byte {
	return append(append([]byte{}, prefixTransaction...), []byte(uuid)...)
}

func keyTransactionByIndex(n uint64) []byte {
	return append(append([]byte{}, prefixTransactionByIndex...), u64be(n)...)
}

func keyTransactionIndexByUUID(uuid string) []byte {
	return append(append([]byte{}, prefixTransactionIndexByUUID...), []byte(uuid)...)
}

func keyTxUUIDsByMessageID(id []byte) []byte {
	return append(append([]byte{}, prefixTxUUIDsByMessageID...), id...)
}

func keyLowestAvailableNonce(signer string) []byte {
	return append(append([]byte{}, prefixLowestAvailableNonce...), []byte(signer)...)
}

func keyUpperNonce(signer string) []byte {
	return append(append([]byte{}, prefixUpperNonce...), []byte(signer)...)
}

func keyNonceStatus(signer string, nonce uint64) []byte {
	return append(append(append([]byte{}, prefixNonceStatus...), []byte(signer)...), []byte(fmt.Sprintf("_%d", nonce))...)
}

// cursorKey namespaces cursor persistence by (domain, event_kind) so every
// contract-sync task rehydrates independently on restart (spec §4.3).
func cursorKey(prefix []byte, domain uint32, kind string) []byte {
	return append(append(append([]byte{}, prefix...), u32be(domain)...), []byte("_"+kind)...)
}

func keyDBLoaderForwardNonce(origin uint32) []byte {
	return append(append([]byte{}, prefixDBLoaderForwardNonce...), u32be(origin)...)
}

func keyDBLoaderBackwardNonce(origin uint32) []byte {
	return append(append([]byte{}, prefixDBLoaderBackwardNonce...), u32be(origin)...)
}

func keyDBLoaderBackwardDone(origin uint32) []byte {
	return append(append([]byte{}, prefixDBLoaderBackwardDone...), u32be(origin)...)
}
