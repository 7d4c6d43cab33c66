// Copyright 2026 Hyperlane Relayer Contributors

package opqueue

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/gaspolicy"
	"github.com/hyperlane-xyz/relayer/internal/metadata"
	"github.com/hyperlane-xyz/relayer/internal/metrics"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Submitter is the hand-off point to the submission pipeline once an
// operation clears gas policy; kept as an interface so processor.go
// doesn't import internal/submitter.
type Submitter interface {
	Submit(ctx context.Context, payload *store.FullPayload) error
}

// Processor drives one destination domain's queue: pop, delivered-check,
// ISM resolve, metadata build, simulate, gas policy, hand off.
type Processor struct {
	Destination uint32
	Adapter     chainadapter.ChainAdapter
	Builder     *metadata.Builder
	Enforcer    *gaspolicy.Enforcer
	Store       *store.Store
	Queue       *Queue
	Submitter   Submitter
	MaxRetries  uint32
	Logger      *log.Logger

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Metrics
}

// NewProcessor builds a Processor with a default bracketed logger matching
// the teacher's per-component log.Logger convention. m may be nil to
// disable instrumentation.
func NewProcessor(destination uint32, adapter chainadapter.ChainAdapter, builder *metadata.Builder, enforcer *gaspolicy.Enforcer, st *store.Store, queue *Queue, submitter Submitter, maxRetries uint32, m *metrics.Metrics) *Processor {
	return &Processor{
		Destination: destination,
		Adapter:     adapter,
		Builder:     builder,
		Enforcer:    enforcer,
		Store:       st,
		Queue:       queue,
		Submitter:   submitter,
		MaxRetries:  maxRetries,
		Logger:      log.New(os.Stderr, "[relayer:processor] ", log.LstdFlags),
		Metrics:     m,
	}
}

// Run drains ready operations from the queue until ctx is cancelled,
// sleeping idlePoll between empty pops.
func (p *Processor) Run(ctx context.Context, idlePoll time.Duration) error {
	if idlePoll <= 0 {
		idlePoll = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.Metrics != nil {
			p.Metrics.QueueLength.WithLabelValues(p.destinationLabel()).Set(float64(p.Queue.Len()))
		}

		op := p.Queue.Pop(time.Now())
		if op == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePoll):
			}
			continue
		}
		p.process(ctx, op)
	}
}

// process evaluates a single popped operation, producing exactly one of:
// a hand-off to the Submitter, a requeue with fresh backoff, or a drop.
func (p *Processor) process(ctx context.Context, op *store.PendingOperation) {
	id := op.Message.ID()

	delivered, err := p.Adapter.Delivered(ctx, id[:])
	if err != nil {
		p.reprepare(op, err)
		return
	}
	if delivered {
		if err := p.Store.MarkNonceProcessed(op.Message.Origin, op.Message.Nonce); err != nil {
			p.Logger.Printf("mark processed failed for message %x: %v", id, err)
		}
		if err := p.Store.SetStatus(id[:], store.StatusFinalized); err != nil {
			p.Logger.Printf("set status failed for message %x: %v", id, err)
		}
		p.Queue.Remove(id[:])
		return
	}

	ism, err := p.Adapter.RecipientISM(ctx, op.Message.Recipient)
	if err != nil {
		p.reprepare(op, err)
		return
	}

	md, err := p.Builder.Build(ctx, p.Adapter, ism, op.Message)
	if err != nil {
		if metadata.Drop(err) {
			p.drop(op, DropNonRetryableMetadata)
			return
		}
		p.reprepare(op, err)
		return
	}

	rawMessage := metadata.EncodeMessage(op.Message)
	tx, err := p.Adapter.BuildProcessTx(ctx, rawMessage, md)
	if err != nil {
		p.reprepare(op, err)
		return
	}

	sim, err := p.Adapter.Simulate(ctx, tx)
	if err != nil {
		p.reprepare(op, err)
		return
	}
	if !sim.OK {
		if sim.Reverted != "" {
			p.reprepareWithReason(op, fmt.Errorf("simulation reverted: %s", sim.Reverted), DropFailedSimulation)
			return
		}
		p.reprepare(op, nil)
		return
	}

	payment, err := p.Store.GasPaymentForMessageID(id[:])
	if err != nil {
		p.reprepare(op, err)
		return
	}
	decision := p.Enforcer.Evaluate(op.Message, sim.GasLimit, payment)
	if !decision.Pass {
		if p.Metrics != nil {
			p.Metrics.GasPaymentWithheld.WithLabelValues(p.destinationLabel()).Inc()
		}
		p.reprepare(op, nil)
		return
	}
	gasLimit := sim.GasLimit
	if decision.CappedGasLimit != nil {
		gasLimit = *decision.CappedGasLimit
	}

	payload := &store.FullPayload{
		UUID:         uuid.NewString(),
		To:           tx.To,
		Data:         tx.Data,
		GasLimitHint: store.NewBigIntFromBig(new(big.Int).SetUint64(gasLimit)),
		Status:       store.PayloadReadyToSubmit,
		Details: store.PayloadDetails{
			MessageID:   id[:],
			Destination: op.Message.Destination,
		},
	}
	if err := p.Store.PutPayload(payload); err != nil {
		p.reprepare(op, err)
		return
	}
	if err := p.Submitter.Submit(ctx, payload); err != nil {
		p.reprepare(op, err)
		return
	}
	p.Queue.Remove(id[:])
}

// reprepare requeues op with fresh backoff, dropping it as
// DropExceededMaxRetries once MaxRetries is exhausted.
func (p *Processor) reprepare(op *store.PendingOperation, cause error) {
	p.reprepareWithReason(op, cause, DropExceededMaxRetries)
}

// reprepareWithReason is reprepare's general form: the caller picks the
// DropReason emitted once MaxRetries is exhausted, so a revert that never
// stops reverting is eventually dropped as DropFailedSimulation rather than
// the generic exceeded-retries reason (spec.md §4.7 step 5).
func (p *Processor) reprepareWithReason(op *store.PendingOperation, cause error, onExhausted DropReason) {
	op.RetryCount++
	if p.MaxRetries > 0 && op.RetryCount >= p.MaxRetries {
		p.drop(op, onExhausted)
		return
	}
	op.Status = store.StatusRetryable
	if cause != nil {
		p.Logger.Printf("reprepare message %x (attempt %d): %v", op.Message.ID(), op.RetryCount, cause)
	}
	if p.Metrics != nil {
		p.Metrics.OperationsRetried.WithLabelValues(p.destinationLabel()).Inc()
	}
	if err := p.Store.SetPendingRetryCount(messageIDBytes(op), op.RetryCount); err != nil {
		p.Logger.Printf("persist retry count failed: %v", err)
	}
	if err := p.Store.SetStatus(messageIDBytes(op), op.Status); err != nil {
		p.Logger.Printf("persist status failed: %v", err)
	}
	p.Queue.Requeue(op)
}

func (p *Processor) drop(op *store.PendingOperation, reason DropReason) {
	op.Status = store.StatusDropped
	op.DropReason = string(reason)
	if err := p.Store.SetStatus(messageIDBytes(op), op.Status); err != nil {
		p.Logger.Printf("persist dropped status failed: %v", err)
	}
	p.Logger.Printf("dropped message %x: %s", op.Message.ID(), reason)
	if p.Metrics != nil {
		p.Metrics.OperationsDropped.WithLabelValues(p.destinationLabel(), string(reason)).Inc()
	}
	p.Queue.Remove(messageIDBytes(op))
}

func (p *Processor) destinationLabel() string {
	return strconv.FormatUint(uint64(p.Destination), 10)
}

func messageIDBytes(op *store.PendingOperation) []byte {
	id := op.Message.ID()
	return id[:]
}
