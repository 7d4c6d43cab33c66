// Copyright 2026 Hyperlane Relayer Contributors

package submitter

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
	"github.com/hyperlane-xyz/relayer/internal/submitter/nonce"
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

// fakeAdapter drives only the calls the pipeline exercises. Fields are
// read/written from multiple stage goroutines, so atomics guard the ones
// tests mutate or assert on concurrently.
type fakeAdapter struct {
	chainadapter.ChainAdapter

	simResult *chainadapter.SimResult
	simErr    error

	gasLimit    uint64
	gasPrice    *big.Int
	estimateErr error

	submitErr    error
	submitCalls  int32
	txHashStatus chainadapter.TxHashStatus
}

func (f *fakeAdapter) Simulate(ctx context.Context, tx *chainadapter.UnsignedTx) (*chainadapter.SimResult, error) {
	return f.simResult, f.simErr
}

func (f *fakeAdapter) EstimateGas(ctx context.Context, tx *chainadapter.UnsignedTx) (uint64, *big.Int, error) {
	return f.gasLimit, f.gasPrice, f.estimateErr
}

func (f *fakeAdapter) Submit(ctx context.Context, tx *chainadapter.UnsignedTx, nonce uint64, gasPrice *big.Int) (string, error) {
	n := atomic.AddInt32(&f.submitCalls, 1)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return fakeTxHash(n), nil
}

func (f *fakeAdapter) TxHashStatus(ctx context.Context, txHash string) (chainadapter.TxHashStatus, error) {
	return f.txHashStatus, nil
}

func fakeTxHash(n int32) string {
	return fmt.Sprintf("0xhash%d", n)
}

func testPayload(messageID []byte) *store.FullPayload {
	return &store.FullPayload{
		UUID:         "payload-1",
		To:           "0xmailbox",
		Data:         []byte("calldata"),
		GasLimitHint: store.NewBigInt("50000"),
		Status:       store.PayloadReadyToSubmit,
		Details:      store.PayloadDetails{MessageID: messageID, Destination: 2},
	}
}

func pollUntil(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func payloadStatus(t *testing.T, st *store.Store, messageID []byte) store.PayloadStatus {
	t.Helper()
	uuids, err := st.PayloadUUIDsByMessageID(messageID)
	if err != nil || len(uuids) == 0 {
		return ""
	}
	p, err := st.PayloadByUUID(uuids[len(uuids)-1])
	if err != nil {
		return ""
	}
	return p.Status
}

func TestPipelineHappyPathDeliversPayload(t *testing.T) {
	adapter := &fakeAdapter{
		simResult:    &chainadapter.SimResult{OK: true, GasLimit: 50000},
		gasLimit:     60000,
		gasPrice:     big.NewInt(10),
		txHashStatus: chainadapter.TxHashFinalized,
	}
	st := store.New(newMemKV())
	nonceMgr := nonce.NewManager(st, "0xsigner")
	cfg := DefaultConfig()
	cfg.FinalityPollInterval = 10 * time.Millisecond
	p, err := NewPipeline(2, adapter, st, nonceMgr, "0xsigner", nil, cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { p.Stop() })

	messageID := make([]byte, 32)
	messageID[0] = 0xAB
	payload := testPayload(messageID)
	if err := p.Submit(ctx, payload); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pollUntil(t, 2*time.Second, func() bool {
		return payloadStatus(t, st, messageID) == store.PayloadDelivered
	})
}

func TestPipelineSimulationRevertDropsPayload(t *testing.T) {
	adapter := &fakeAdapter{
		simResult: &chainadapter.SimResult{OK: false, Reverted: "InsufficientBalance"},
	}
	st := store.New(newMemKV())
	nonceMgr := nonce.NewManager(st, "0xsigner")
	p, err := NewPipeline(2, adapter, st, nonceMgr, "0xsigner", nil, DefaultConfig())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { p.Stop() })

	messageID := make([]byte, 32)
	messageID[0] = 0xCD
	payload := testPayload(messageID)
	if err := p.Submit(ctx, payload); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pollUntil(t, 2*time.Second, func() bool {
		return payloadStatus(t, st, messageID) == store.PayloadDropped
	})
	if atomic.LoadInt32(&adapter.submitCalls) != 0 {
		t.Fatalf("a reverted simulation must never reach submission")
	}
}

func TestPipelineStaleMempoolEscalatesThenDrops(t *testing.T) {
	adapter := &fakeAdapter{
		simResult:    &chainadapter.SimResult{OK: true, GasLimit: 50000},
		gasLimit:     60000,
		gasPrice:     big.NewInt(10),
		txHashStatus: chainadapter.TxHashMempool,
	}
	st := store.New(newMemKV())
	nonceMgr := nonce.NewManager(st, "0xsigner")
	cfg := DefaultConfig()
	cfg.FinalityPollInterval = 5 * time.Millisecond
	cfg.StaleAfter = time.Millisecond
	cfg.MaxSubmissionAttempts = 3
	p, err := NewPipeline(2, adapter, st, nonceMgr, "0xsigner", nil, cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { p.Stop() })

	messageID := make([]byte, 32)
	messageID[0] = 0xEF
	payload := testPayload(messageID)
	if err := p.Submit(ctx, payload); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	pollUntil(t, 2*time.Second, func() bool {
		return payloadStatus(t, st, messageID) == store.PayloadDropped
	})
	if atomic.LoadInt32(&adapter.submitCalls) < int32(cfg.MaxSubmissionAttempts) {
		t.Fatalf("expected at least %d submission attempts before drop, got %d", cfg.MaxSubmissionAttempts, adapter.submitCalls)
	}
}
