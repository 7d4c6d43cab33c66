// Copyright 2026 Hyperlane Relayer Contributors

package submitter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// runBuilding drains buildCh, turning each FullPayload into an unsigned
// transaction precursor and a final pre-submission simulation. A payload
// is never batched with another: the mailbox has no multicall entry
// point, so one payload maps to exactly one transaction.
func (p *Pipeline) runBuilding(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case payload := <-p.buildCh:
			p.buildOne(ctx, payload)
		}
	}
}

func (p *Pipeline) buildOne(ctx context.Context, payload *store.FullPayload) {
	unsigned := &chainadapter.UnsignedTx{
		To:           payload.To,
		Data:         payload.Data,
		GasLimitHint: payload.GasLimitHint.Big(),
	}

	sim, err := p.Adapter.Simulate(ctx, unsigned)
	if err != nil {
		p.cfg.Logger.Printf("re-simulate failed for payload %s: %v", payload.UUID, err)
		p.dropPayload(payload, "SimulationError")
		return
	}
	if !sim.OK {
		if sim.Reverted != "" {
			p.cfg.Logger.Printf("payload %s reverted on re-simulation: %s", payload.UUID, sim.Reverted)
			p.dropPayload(payload, "Reverted:"+sim.Reverted)
			return
		}
		// Simulation skipped (e.g. already delivered by a competing
		// relayer): the payload is no longer useful, drop it quietly.
		p.dropPayload(payload, "Skipped:"+sim.Skipped)
		return
	}

	precursor, err := json.Marshal(unsigned)
	if err != nil {
		p.cfg.Logger.Printf("marshal precursor failed for payload %s: %v", payload.UUID, err)
		p.dropPayload(payload, "MarshalError")
		return
	}

	tx := &store.Transaction{
		UUID:      uuid.NewString(),
		Precursor: precursor,
		Payloads:  []store.PayloadDetails{payload.Details},
		Status:    store.TxPendingInclusion,
		CreatedAt: now(),
	}

	p.setUnsignedTx(tx.UUID, unsigned)
	payload.Status = store.PayloadInTransaction
	if err := p.Store.PutPayload(payload); err != nil {
		p.cfg.Logger.Printf("persist payload %s failed: %v", payload.UUID, err)
	}
	if err := p.Store.PutTransaction(tx); err != nil {
		p.cfg.Logger.Printf("persist transaction %s failed: %v", tx.UUID, err)
	}

	select {
	case p.inclusionCh <- tx:
	case <-ctx.Done():
	case <-p.stopCh:
	}
}

func (p *Pipeline) dropPayload(payload *store.FullPayload, reason string) {
	payload.Status = store.PayloadDropped
	payload.DropReason = reason
	if err := p.Store.PutPayload(payload); err != nil {
		p.cfg.Logger.Printf("persist dropped payload %s failed: %v", payload.UUID, err)
	}
}

func (p *Pipeline) setUnsignedTx(txUUID string, tx *chainadapter.UnsignedTx) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsigned == nil {
		p.unsigned = make(map[string]*chainadapter.UnsignedTx)
	}
	p.unsigned[txUUID] = tx
}

func (p *Pipeline) getUnsignedTx(txUUID string) *chainadapter.UnsignedTx {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unsigned[txUUID]
}

// now is a seam so tests can avoid depending on wall-clock ordering if
// ever needed; production always uses time.Now.
var now = func() time.Time { return time.Now() }
