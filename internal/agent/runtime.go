// Package agent wires together the per-destination-domain Op Queue
// Processor and Submitter Pipeline into a single running relayer process,
// and exposes the admin/metrics HTTP surface (spec.md §6.3).
//
// Grounded on main.go's startValidator/serve wiring: one long-lived struct
// owns every component, Start spawns one goroutine per moving part, and a
// single net/http.ServeMux (pkg/server/ledger_handlers.go's style) answers
// operator queries against that struct's live state.
package agent

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
	"github.com/hyperlane-xyz/relayer/internal/metrics"
	"github.com/hyperlane-xyz/relayer/internal/opqueue"
	"github.com/hyperlane-xyz/relayer/internal/store"
	"github.com/hyperlane-xyz/relayer/internal/submitter"
)

// Domain bundles the Processor and Pipeline driving one destination
// chain's traffic. Both halves are independently optional so a relayer
// can run origin-only indexing for a domain it never delivers into.
type Domain struct {
	Processor *opqueue.Processor
	Pipeline  *submitter.Pipeline
}

// OriginCheckpointHealth answers, for one origin chain, how far behind the
// highest validator-signed checkpoint index this relayer's own indexed
// view (ObservedIndex) has fallen.
//
// Grounded in
// original_source/rust/.../agents/validator/src/server/eigen_node.rs,
// re-targeted from a validator's own signing lag to a relayer's
// observed-vs-signed indexing lag, tracked per origin chain since
// checkpoints (and their validator sets) are themselves per-origin.
type OriginCheckpointHealth struct {
	Multiplexer   *checkpoint.Multiplexer
	Validators    []common.Address
	ObservedIndex func() uint32
}

// Gap returns (observed, signed) indices; signed is the highest index any
// configured validator has published.
func (h *OriginCheckpointHealth) Gap(ctx context.Context) (observed uint32, signed uint32) {
	if h == nil {
		return 0, 0
	}
	if h.ObservedIndex != nil {
		observed = h.ObservedIndex()
	}
	if h.Multiplexer != nil {
		for _, idx := range h.Multiplexer.LatestIndices(ctx, h.Validators) {
			if idx > signed {
				signed = idx
			}
		}
	}
	return observed, signed
}

func gapOf(observed, signed uint32) uint32 {
	if signed > observed {
		return signed - observed
	}
	return 0
}

// Runtime owns every destination domain's Processor/Pipeline pair plus the
// shared Store, Metrics registry and checkpoint health source the admin
// server reports against.
type Runtime struct {
	Store       *store.Store
	Metrics     *metrics.Metrics
	DomainNames map[uint32]string // optional: domain id -> human name
	Logger      *log.Logger

	mu          sync.RWMutex
	domains     map[uint32]*Domain
	checkpoints map[uint32]*OriginCheckpointHealth // origin domain id -> health source

	cancel context.CancelFunc
	wg     sync.WaitGroup
	ctx    context.Context
}

// NewRuntime builds an empty Runtime. m may be nil.
func NewRuntime(st *store.Store, m *metrics.Metrics) *Runtime {
	return &Runtime{
		Store:       st,
		Metrics:     m,
		domains:     make(map[uint32]*Domain),
		checkpoints: make(map[uint32]*OriginCheckpointHealth),
		Logger:      log.New(os.Stderr, "[relayer:agent] ", log.LstdFlags),
	}
}

// RegisterOriginCheckpointHealth attaches an origin chain's
// observed-vs-signed checkpoint health source, reported by the
// /eigen/node* surface.
func (r *Runtime) RegisterOriginCheckpointHealth(origin uint32, h *OriginCheckpointHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[origin] = h
}

// CheckpointHealthByOrigin returns a snapshot of every registered origin
// chain's checkpoint health source.
func (r *Runtime) CheckpointHealthByOrigin() map[uint32]*OriginCheckpointHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]*OriginCheckpointHealth, len(r.checkpoints))
	for k, v := range r.checkpoints {
		out[k] = v
	}
	return out
}

// RegisterDomain attaches a destination domain's Processor/Pipeline pair.
// Must be called before Start.
func (r *Runtime) RegisterDomain(destination uint32, d *Domain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[destination] = d
}

// Domains returns a snapshot of the registered domain ids, sorted is left
// to the caller.
func (r *Runtime) Domains() map[uint32]*Domain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint32]*Domain, len(r.domains))
	for k, v := range r.domains {
		out[k] = v
	}
	return out
}

// Start launches every registered domain's Processor.Run loop and
// Pipeline, all under a single cancellable context derived from ctx.
func (r *Runtime) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.ctx = runCtx

	for destination, d := range r.Domains() {
		destination, d := destination, d
		if d.Pipeline != nil {
			if err := d.Pipeline.Start(runCtx); err != nil {
				cancel()
				return err
			}
		}
		if d.Processor != nil {
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				if err := d.Processor.Run(runCtx, 0); err != nil && err != context.Canceled {
					r.Logger.Printf("processor for destination domain %d exited: %v", destination, err)
				}
			}()
		}
	}

	r.Logger.Printf("started with %d registered domain(s)", len(r.domains))
	return nil
}

// Stop cancels every domain's context and waits for processors to drain,
// then stops each pipeline's own goroutines in turn.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	for _, d := range r.Domains() {
		if d.Pipeline != nil {
			if err := d.Pipeline.Stop(); err != nil {
				r.Logger.Printf("stop pipeline failed: %v", err)
			}
		}
	}
	r.Logger.Printf("stopped")
}

// Running reports whether Start has been called and its context has not
// yet been cancelled.
func (r *Runtime) Running() bool {
	return r.ctx != nil && r.ctx.Err() == nil
}
