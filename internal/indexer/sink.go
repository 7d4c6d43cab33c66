// Copyright 2026 Hyperlane Relayer Contributors

package indexer

import (
	"context"
	"fmt"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// StoreSink adapts *store.Store to Sink, writing each decoded log kind
// into its own persisted index (spec §4.1's "Required indexes").
type StoreSink struct {
	Store *store.Store
	// MerkleHook is the configured merkle-tree-hook address for the chain
	// this sink serves; insertions are namespaced under it (spec §4.1).
	MerkleHook []byte
}

func (s *StoreSink) Observe(ctx context.Context, entry chainadapter.LogEntry) error {
	switch entry.Kind {
	case chainadapter.EventDispatch:
		if entry.Dispatch == nil || entry.Dispatch.Message == nil {
			return fmt.Errorf("indexer: dispatch log missing decoded message")
		}
		return s.Store.PutMessage(entry.Dispatch.Message.Origin, entry.Dispatch.Message)
	case chainadapter.EventMerkleInsertion:
		if entry.Merkle == nil {
			return fmt.Errorf("indexer: merkle insertion log missing payload")
		}
		ins := &store.MerkleTreeInsertion{LeafIndex: entry.Merkle.LeafIndex, MessageID: entry.Merkle.MessageID}
		return s.Store.PutMerkleInsertion(s.MerkleHook, ins, entry.Block)
	case chainadapter.EventGasPayment:
		if entry.GasPay == nil {
			return fmt.Errorf("indexer: gas payment log missing payload")
		}
		payment := store.NewBigInt(entry.GasPay.Payment.String())
		gasAmount := store.NewBigInt(entry.GasPay.GasAmount.String())
		return s.Store.RecordGasPayment(entry.GasPay.MessageID, entry.Meta.Bytes(), payment, gasAmount)
	case chainadapter.EventDelivery:
		// Delivery logs are accepted but not recorded; the processor
		// re-checks delivered() directly against the adapter before
		// deciding to drop an in-flight operation (spec §4.7).
		return nil
	default:
		return fmt.Errorf("indexer: unknown event kind %q", entry.Kind)
	}
}
