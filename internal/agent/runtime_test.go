// Copyright 2026 Hyperlane Relayer Contributors

package agent

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/opqueue"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

type memKV struct{ data map[string][]byte }

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }
func (m *memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}
func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = append([]byte{}, value...)
	return nil
}
func (m *memKV) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

func TestRuntimeStartStopDrivesRegisteredProcessor(t *testing.T) {
	st := store.New(newMemKV())
	queue := opqueue.NewQueue(10)

	processor := &opqueue.Processor{
		Destination: 2,
		Store:       st,
		Queue:       queue,
		MaxRetries:  10,
		Logger:      log.New(os.Stderr, "[test] ", log.LstdFlags),
	}

	rt := NewRuntime(st, nil)
	rt.RegisterDomain(2, &Domain{Processor: processor})

	ctx, cancel := context.WithCancel(context.Background())
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rt.Running() {
		t.Fatalf("expected runtime to report running after Start")
	}

	cancel()
	rt.Stop()
	time.Sleep(10 * time.Millisecond)
	if rt.Running() {
		t.Fatalf("expected runtime to report stopped after Stop")
	}
}
