// Copyright 2026 Hyperlane Relayer Contributors

package submitter

import (
	"context"
	"math/big"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// retryDelay is how long the Inclusion stage waits before re-attempting a
// transient RPC failure (nonce assignment, gas estimation, broadcast).
const retryDelay = 2 * time.Second

// runInclusion drains inclusionCh, assigning a nonce and gas price to each
// transaction and broadcasting it, then handing it to the Finality stage
// for status tracking.
func (p *Pipeline) runInclusion(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case tx := <-p.inclusionCh:
			p.includeOne(ctx, tx)
		}
	}
}

func (p *Pipeline) includeOne(ctx context.Context, tx *store.Transaction) {
	unsigned := p.getUnsignedTx(tx.UUID)
	if unsigned == nil {
		p.cfg.Logger.Printf("no precursor tracked for transaction %s, dropping", tx.UUID)
		p.failTransaction(tx, "MissingPrecursor")
		return
	}

	var assignedNonce uint64
	if tx.Nonce != nil {
		// Re-entering includeOne after a failed broadcast attempt: the
		// nonce was already assigned, reuse it rather than taking a new
		// one out from under the in-flight transaction.
		assignedNonce = *tx.Nonce
	} else if p.Nonce != nil {
		n, err := p.Nonce.AssignNextNonce(tx.UUID)
		if err != nil {
			p.cfg.Logger.Printf("assign nonce failed for transaction %s: %v", tx.UUID, err)
			p.delayedReenqueue(ctx, tx)
			return
		}
		assignedNonce = n
		tx.Nonce = &assignedNonce
		tx.Signer = p.Signer
	}

	gasLimit, gasPrice, err := p.Adapter.EstimateGas(ctx, unsigned)
	if err != nil {
		p.cfg.Logger.Printf("estimate gas failed for transaction %s: %v", tx.UUID, err)
		p.delayedReenqueue(ctx, tx)
		return
	}
	if gasLimit > 0 {
		unsigned.GasLimitHint = new(big.Int).SetUint64(gasLimit)
	}

	p.submit(ctx, tx, unsigned, assignedNonce, gasPrice)
}

// submit broadcasts unsigned at gasPrice, recording the outcome on tx and
// either tracking it for Finality polling or escalating/dropping it.
func (p *Pipeline) submit(ctx context.Context, tx *store.Transaction, unsigned *chainadapter.UnsignedTx, assignedNonce uint64, gasPrice *big.Int) {
	txHash, err := p.Adapter.Submit(ctx, unsigned, assignedNonce, gasPrice)
	if err != nil {
		tx.SubmissionAttempts++
		if tx.SubmissionAttempts >= p.cfg.MaxSubmissionAttempts {
			p.cfg.Logger.Printf("transaction %s exceeded max submission attempts: %v", tx.UUID, err)
			p.failTransaction(tx, "SubmissionFailed")
			return
		}
		p.cfg.Logger.Printf("submit failed for transaction %s (attempt %d): %v", tx.UUID, tx.SubmissionAttempts, err)
		if err := p.Store.PutTransaction(tx); err != nil {
			p.cfg.Logger.Printf("persist transaction %s failed: %v", tx.UUID, err)
		}
		// Not yet broadcast anywhere: pull it out of Finality's tracked set
		// (a no-op if it was never in it) so only the Inclusion stage is
		// ever retrying it at a time.
		p.untrackTransaction(tx.UUID)
		p.delayedReenqueue(ctx, tx)
		return
	}

	tx.TxHashes = append(tx.TxHashes, txHash)
	tx.SubmissionAttempts++
	tx.Status = store.TxMempool
	tx.LastSubmittedAt = now()
	tx.NextAttemptAfter = now().Add(p.cfg.StaleAfter)
	if err := p.Store.PutTransaction(tx); err != nil {
		p.cfg.Logger.Printf("persist transaction %s failed: %v", tx.UUID, err)
	}
	if p.Metrics != nil {
		p.Metrics.TransactionsSubmitted.WithLabelValues(p.destinationLabel()).Inc()
	}
	p.trackTransaction(tx)
}

func (p *Pipeline) delayedReenqueue(ctx context.Context, tx *store.Transaction) {
	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return
	case <-p.stopCh:
		return
	}
	select {
	case p.inclusionCh <- tx:
	case <-ctx.Done():
	case <-p.stopCh:
	}
}

func (p *Pipeline) failTransaction(tx *store.Transaction, reason string) {
	tx.Status = store.TxDropped
	if err := p.Store.PutTransaction(tx); err != nil {
		p.cfg.Logger.Printf("persist failed transaction %s: %v", tx.UUID, err)
	}
	if p.Nonce != nil && tx.Nonce != nil {
		if err := p.Nonce.UpdateNonceStatus(*tx.Nonce, nonceFreed(tx.UUID)); err != nil {
			p.cfg.Logger.Printf("free nonce %d for transaction %s failed: %v", *tx.Nonce, tx.UUID, err)
		}
	}
	if p.Metrics != nil {
		p.Metrics.TransactionsDropped.WithLabelValues(p.destinationLabel(), reason).Inc()
	}
	p.untrackTransaction(tx.UUID)
	p.markPayloads(tx, store.PayloadDropped, reason)
}

// markPayloads updates every payload a transaction carried to the given
// terminal status, looking each up by the message IDs recorded on the
// transaction's PayloadDetails.
func (p *Pipeline) markPayloads(tx *store.Transaction, status store.PayloadStatus, reason string) {
	for _, pd := range tx.Payloads {
		uuids, err := p.Store.PayloadUUIDsByMessageID(pd.MessageID)
		if err != nil {
			p.cfg.Logger.Printf("lookup payloads for message %x failed: %v", pd.MessageID, err)
			continue
		}
		for _, u := range uuids {
			payload, err := p.Store.PayloadByUUID(u)
			if err != nil {
				continue
			}
			if payload.Status == store.PayloadDelivered || payload.Status == store.PayloadDropped {
				continue
			}
			payload.Status = status
			payload.DropReason = reason
			if err := p.Store.PutPayload(payload); err != nil {
				p.cfg.Logger.Printf("persist payload %s failed: %v", payload.UUID, err)
			}
		}
	}
}
