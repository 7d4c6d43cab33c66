// Copyright 2026 Hyperlane Relayer Contributors

package submitter

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/metrics"
	"github.com/hyperlane-xyz/relayer/internal/store"
	"github.com/hyperlane-xyz/relayer/internal/submitter/nonce"
)

// Pipeline drives one destination domain's Building -> Inclusion ->
// Finality stages. It implements opqueue.Submitter.
type Pipeline struct {
	Destination uint32
	Adapter     chainadapter.ChainAdapter
	Store       *store.Store
	Nonce       *nonce.Manager
	Signer      string
	Metrics     *metrics.Metrics // optional; nil disables instrumentation
	cfg         *Config

	buildCh     chan *store.FullPayload
	inclusionCh chan *store.Transaction

	mu       sync.RWMutex
	tracked  map[string]*store.Transaction          // txUUID -> last known state, polled by Finality
	unsigned map[string]*chainadapter.UnsignedTx    // txUUID -> live precursor, built before inclusion
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPipeline builds a Pipeline for a single destination domain. nonceMgr
// and signer are required only if adapter submits signed EVM transactions
// directly; adapters that manage their own nonces may pass a nil Manager.
// m may be nil to disable instrumentation.
func NewPipeline(destination uint32, adapter chainadapter.ChainAdapter, st *store.Store, nonceMgr *nonce.Manager, signer string, m *metrics.Metrics, cfg *Config) (*Pipeline, error) {
	if adapter == nil {
		return nil, fmt.Errorf("submitter: adapter cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("submitter: store cannot be nil")
	}
	cfg = cfg.withDefaults()

	return &Pipeline{
		Destination: destination,
		Adapter:     adapter,
		Store:       st,
		Nonce:       nonceMgr,
		Signer:      signer,
		Metrics:     m,
		cfg:         cfg,
		buildCh:     make(chan *store.FullPayload, cfg.BuildQueueSize),
		inclusionCh: make(chan *store.Transaction, cfg.InclusionQueueSize),
		tracked:     make(map[string]*store.Transaction),
	}, nil
}

// Submit enqueues a prepared payload for building into a transaction. It
// satisfies opqueue.Submitter.
func (p *Pipeline) Submit(ctx context.Context, payload *store.FullPayload) error {
	select {
	case p.buildCh <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the Building, Inclusion and Finality goroutines.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); p.runBuilding(ctx) }()
	go func() { defer wg.Done(); p.runInclusion(ctx) }()
	go func() { defer wg.Done(); p.runFinality(ctx) }()
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()

	p.cfg.Logger.Printf("started for destination domain %d", p.Destination)
	return nil
}

// Stop signals every stage to drain and exit, and waits for them to do so.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	<-p.doneCh
	p.cfg.Logger.Printf("stopped for destination domain %d", p.Destination)
	return nil
}

// Running reports whether Start has been called without a matching Stop,
// for the admin server's per-domain health check.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Pipeline) trackTransaction(t *store.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[t.UUID] = t
}

func (p *Pipeline) untrackTransaction(uuid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tracked, uuid)
}

func (p *Pipeline) destinationLabel() string {
	return strconv.FormatUint(uint64(p.Destination), 10)
}

func nonceFreed(txUUID string) nonce.Status {
	return nonce.Status{Kind: nonce.Freed, TxUUID: txUUID}
}

func nonceCommitted(txUUID string) nonce.Status {
	return nonce.Status{Kind: nonce.Committed, TxUUID: txUUID}
}

func (p *Pipeline) trackedSnapshot() []*store.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*store.Transaction, 0, len(p.tracked))
	for _, t := range p.tracked {
		out = append(out, t)
	}
	return out
}
