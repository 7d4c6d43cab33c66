package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
	"github.com/hyperlane-xyz/relayer/internal/opqueue"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// fakeSyncer reports a fixed latest index, for exercising CheckpointHealth
// without a real checkpoint storage backend.
type fakeSyncer struct{ index uint32 }

func (f fakeSyncer) LatestIndex(ctx context.Context) (*uint32, error) { idx := f.index; return &idx, nil }
func (f fakeSyncer) FetchCheckpoint(ctx context.Context, index uint32) (*checkpoint.SignedCheckpoint, error) {
	return nil, nil
}
func (f fakeSyncer) AnnouncementLocation() string                            { return "" }
func (f fakeSyncer) ReorgStatus(ctx context.Context) (*checkpoint.ReorgStatus, error) { return nil, nil }

func newTestRuntimeWithOp(t *testing.T) (*Runtime, *opqueue.Queue) {
	t.Helper()
	st := store.New(newMemKV())
	queue := opqueue.NewQueue(10)

	msg := &store.HyperlaneMessage{
		Nonce:       1,
		Origin:      1,
		Destination: 2,
		Sender:      bytes.Repeat([]byte{0xAA}, 32),
		Recipient:   bytes.Repeat([]byte{0xBB}, 32),
	}
	op := &store.PendingOperation{Message: msg, Status: store.StatusReadyToSubmit, RetryCount: 3}
	if err := queue.Enqueue(context.Background(), op); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	processor := &opqueue.Processor{Destination: 2, Store: st, Queue: queue, MaxRetries: 10}

	rt := NewRuntime(st, nil)
	rt.RegisterDomain(2, &Domain{Processor: processor})
	return rt, queue
}

func TestListOperationsReturnsQueuedOperation(t *testing.T) {
	rt, _ := newTestRuntimeWithOp(t)
	srv := NewServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/list_operations?destination_domain=2", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ops []listedOperation
	if err := json.Unmarshal(w.Body.Bytes(), &ops); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	if ops[0].Operation.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", ops[0].Operation.RetryCount)
	}
	if ops[0].Operation.DestinationDomainID != 2 {
		t.Fatalf("expected destination domain 2, got %d", ops[0].Operation.DestinationDomainID)
	}
}

func TestListOperationsFiltersByOtherDestination(t *testing.T) {
	rt, _ := newTestRuntimeWithOp(t)
	srv := NewServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/list_operations?destination_domain=99", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var ops []listedOperation
	if err := json.Unmarshal(w.Body.Bytes(), &ops); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected 0 operations for unrelated destination, got %d", len(ops))
	}
}

func TestMessageRetryByDestinationDomainMovesOpToHead(t *testing.T) {
	rt, queue := newTestRuntimeWithOp(t)
	srv := NewServer(rt)

	destination := uint32(2)
	body, _ := json.Marshal(retryRequest{Type: "destinationDomain", DestinationDomain: &destination})

	req := httptest.NewRequest(http.MethodPost, "/message_retry", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["matchedOperations"] != 1 {
		t.Fatalf("expected 1 matched operation, got %d", resp["matchedOperations"])
	}

	popped := queue.Pop(time.Now())
	if popped == nil {
		t.Fatalf("expected retried operation to be immediately poppable")
	}
}

func TestMessageRetryRejectsUnknownType(t *testing.T) {
	rt, _ := newTestRuntimeWithOp(t)
	srv := NewServer(rt)

	body, _ := json.Marshal(retryRequest{Type: "bogus"})
	req := httptest.NewRequest(http.MethodPost, "/message_retry", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown retry type, got %d", w.Code)
	}
}

func TestEigenNodeHealthThresholds(t *testing.T) {
	cases := []struct {
		observed, signed uint32
		wantStatus       int
	}{
		{observed: 10, signed: 10, wantStatus: http.StatusOK},
		{observed: 10, signed: 11, wantStatus: http.StatusOK},
		{observed: 10, signed: 15, wantStatus: http.StatusPartialContent},
		{observed: 10, signed: 25, wantStatus: http.StatusServiceUnavailable},
	}

	validator := common.HexToAddress("0x1")
	for _, c := range cases {
		c := c
		rt, _ := newTestRuntimeWithOp(t)
		rt.RegisterOriginCheckpointHealth(1, &OriginCheckpointHealth{
			Multiplexer:   checkpoint.NewMultiplexer(map[common.Address]checkpoint.Syncer{validator: fakeSyncer{index: c.signed}}),
			Validators:    []common.Address{validator},
			ObservedIndex: func() uint32 { return c.observed },
		})

		srv := NewServer(rt)
		req := httptest.NewRequest(http.MethodGet, "/eigen/node/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		if w.Code != c.wantStatus {
			t.Fatalf("observed=%d signed=%d: expected status %d, got %d", c.observed, c.signed, c.wantStatus, w.Code)
		}
	}
}

func TestEigenNodeServicesListsOriginAndDestination(t *testing.T) {
	rt, _ := newTestRuntimeWithOp(t)
	rt.RegisterOriginCheckpointHealth(1, &OriginCheckpointHealth{ObservedIndex: func() uint32 { return 0 }})
	srv := NewServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/eigen/node/services", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var services []eigenService
	if err := json.Unmarshal(w.Body.Bytes(), &services); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(services) != 2 {
		t.Fatalf("expected 2 services (1 origin + 1 destination), got %d: %+v", len(services), services)
	}
}

func TestEigenNodeServiceHealthForDestinationPipeline(t *testing.T) {
	rt, _ := newTestRuntimeWithOp(t)
	srv := NewServer(rt)

	req := httptest.NewRequest(http.MethodGet, "/eigen/node/services/submitter-destination-2/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// No Pipeline was registered for this domain, so it must report unhealthy.
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for a domain with no running pipeline, got %d", w.Code)
	}
}
