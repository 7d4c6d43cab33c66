// Copyright 2026 Hyperlane Relayer Contributors

package indexer

import (
	"context"
	"log"
	"time"
)

// SyncState mirrors the teacher scheduler's stopped/running lifecycle
// (grounded on pkg/batch/scheduler.go's SchedulerState).
type SyncState string

const (
	SyncStateStopped SyncState = "stopped"
	SyncStateRunning SyncState = "running"
)

// ContractSync is the long-running task for exactly one (chain, event_kind)
// pair: it ticks its Cursor on an interval, backing off on error without
// ever tearing the cursor down (spec §4.3).
type ContractSync struct {
	Name   string // "<domain>/<event_kind>", for logging only
	Cursor Cursor

	IdlePoll     time.Duration
	ErrorBackoff time.Duration
	Logger       *log.Logger

	state  SyncState
	stopCh chan struct{}
	doneCh chan struct{}
}

// Start launches the sync loop in a background goroutine. Calling Start on
// an already-running sync is a no-op.
func (cs *ContractSync) Start(ctx context.Context) {
	if cs.state == SyncStateRunning {
		return
	}
	if cs.IdlePoll == 0 {
		cs.IdlePoll = defaultIdlePoll
	}
	if cs.ErrorBackoff == 0 {
		cs.ErrorBackoff = defaultErrorBackoff
	}
	if cs.Logger == nil {
		cs.Logger = log.New(log.Writer(), "["+cs.Name+"] ", log.LstdFlags)
	}

	cs.stopCh = make(chan struct{})
	cs.doneCh = make(chan struct{})
	cs.state = SyncStateRunning

	go cs.run(ctx)
}

// Stop signals the loop to exit and blocks until it has.
func (cs *ContractSync) Stop() {
	if cs.state != SyncStateRunning {
		return
	}
	close(cs.stopCh)
	<-cs.doneCh
	cs.state = SyncStateStopped
}

func (cs *ContractSync) run(ctx context.Context) {
	defer close(cs.doneCh)

	for {
		select {
		case <-cs.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		caughtUp, err := cs.Cursor.Tick(ctx)
		wait := cs.IdlePoll
		switch {
		case err != nil:
			cs.Logger.Printf("tick error: %v", err)
			wait = cs.ErrorBackoff
		case !caughtUp:
			wait = 0 // more backlog to drain; tick again immediately
		}

		if wait == 0 {
			continue
		}
		select {
		case <-cs.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
