// Copyright 2026 Hyperlane Relayer Contributors

package submitter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// runFinality periodically polls every hash of every tracked transaction
// and classifies it, escalating gas price on stale broadcasts and retiring
// transactions once they reach a terminal state.
func (p *Pipeline) runFinality(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FinalityPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollTracked(ctx)
		}
	}
}

func (p *Pipeline) pollTracked(ctx context.Context) {
	for _, tx := range p.trackedSnapshot() {
		p.pollOne(ctx, tx)
	}
}

func (p *Pipeline) pollOne(ctx context.Context, tx *store.Transaction) {
	if len(tx.TxHashes) == 0 {
		return
	}

	status, err := p.classify(ctx, tx)
	if err != nil {
		p.cfg.Logger.Printf("poll status for transaction %s failed: %v", tx.UUID, err)
		return
	}

	switch status {
	case chainadapter.TxHashFinalized:
		p.finalize(tx)
	case chainadapter.TxHashIncluded:
		p.settleInclusion(tx, store.TxIncluded)
	case chainadapter.TxHashDropped:
		p.escalate(ctx, tx)
	case chainadapter.TxHashMempool, chainadapter.TxHashPendingInclusion:
		if now().After(tx.NextAttemptAfter) {
			p.escalate(ctx, tx)
		}
	}
}

// classify queries every hash ever broadcast for tx (a gas escalation
// leaves earlier hashes live alongside the new one) and folds them by
// precedence: Finalized > Included > PendingInclusion/Mempool > Dropped.
// Dropped is only returned once every hash reports dropped, so a stale
// escalated hash doesn't mask an earlier hash that already mined.
func (p *Pipeline) classify(ctx context.Context, tx *store.Transaction) (chainadapter.TxHashStatus, error) {
	var best chainadapter.TxHashStatus
	var lastErr error
	seen := false
	for _, hash := range tx.TxHashes {
		status, err := p.Adapter.TxHashStatus(ctx, hash)
		if err != nil {
			lastErr = err
			continue
		}
		seen = true
		if txHashPrecedence(status) > txHashPrecedence(best) {
			best = status
		}
		if best == chainadapter.TxHashFinalized {
			break
		}
	}
	if !seen {
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("submitter: no status observed for any hash of transaction %s", tx.UUID)
	}
	return best, nil
}

func txHashPrecedence(status chainadapter.TxHashStatus) int {
	switch status {
	case chainadapter.TxHashFinalized:
		return 5
	case chainadapter.TxHashIncluded:
		return 4
	case chainadapter.TxHashPendingInclusion:
		return 3
	case chainadapter.TxHashMempool:
		return 2
	case chainadapter.TxHashDropped:
		return 1
	default:
		return 0
	}
}

func (p *Pipeline) finalize(tx *store.Transaction) {
	tx.Status = store.TxFinalized
	if err := p.Store.PutTransaction(tx); err != nil {
		p.cfg.Logger.Printf("persist finalized transaction %s failed: %v", tx.UUID, err)
	}
	if p.Nonce != nil && tx.Nonce != nil {
		if err := p.Nonce.UpdateNonceStatus(*tx.Nonce, nonceCommitted(tx.UUID)); err != nil {
			p.cfg.Logger.Printf("commit nonce %d for transaction %s failed: %v", *tx.Nonce, tx.UUID, err)
		}
	}
	if p.Metrics != nil {
		p.Metrics.TransactionsFinalized.WithLabelValues(p.destinationLabel()).Inc()
	}
	p.untrackTransaction(tx.UUID)
	p.markPayloads(tx, store.PayloadDelivered, "")
}

func (p *Pipeline) settleInclusion(tx *store.Transaction, status store.TransactionStatus) {
	if tx.Status == status {
		return
	}
	tx.Status = status
	if err := p.Store.PutTransaction(tx); err != nil {
		p.cfg.Logger.Printf("persist transaction %s failed: %v", tx.UUID, err)
	}
	if p.Nonce != nil && tx.Nonce != nil {
		if err := p.Nonce.UpdateNonceStatus(*tx.Nonce, nonceCommitted(tx.UUID)); err != nil {
			p.cfg.Logger.Printf("commit nonce %d for transaction %s failed: %v", *tx.Nonce, tx.UUID, err)
		}
	}
}

// escalate re-broadcasts tx at a higher gas price after it sat unconfirmed
// past StaleAfter, or after the chain reports every one of its hashes as
// dropped (e.g. evicted from the mempool or replaced). Mirrors the
// teacher's SendContractTransactionWithRetry escalation: the re-estimated
// gas price is raised by GasEscalationPercent per submission already made,
// growing linearly with submission count.
func (p *Pipeline) escalate(ctx context.Context, tx *store.Transaction) {
	if tx.SubmissionAttempts >= p.cfg.MaxSubmissionAttempts {
		p.cfg.Logger.Printf("transaction %s exhausted submission attempts, dropping", tx.UUID)
		p.failTransaction(tx, "MaxSubmissionAttemptsExceeded")
		return
	}

	unsigned := p.getUnsignedTx(tx.UUID)
	if unsigned == nil {
		p.cfg.Logger.Printf("no precursor tracked for transaction %s, dropping", tx.UUID)
		p.failTransaction(tx, "MissingPrecursor")
		return
	}

	_, baseGasPrice, err := p.Adapter.EstimateGas(ctx, unsigned)
	if err != nil {
		p.cfg.Logger.Printf("re-estimate gas failed for transaction %s: %v", tx.UUID, err)
		return
	}

	multiplier := big.NewInt(100 + p.cfg.GasEscalationPercent*int64(tx.SubmissionAttempts))
	escalated := new(big.Int).Mul(baseGasPrice, multiplier)
	escalated.Div(escalated, big.NewInt(100))

	var assignedNonce uint64
	if tx.Nonce != nil {
		assignedNonce = *tx.Nonce
	}
	if p.Metrics != nil {
		p.Metrics.GasPriceEscalations.WithLabelValues(p.destinationLabel()).Inc()
	}
	p.submit(ctx, tx, unsigned, assignedNonce, escalated)
}
