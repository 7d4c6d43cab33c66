package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// fakeAdapter implements chainadapter.ChainAdapter by embedding a nil
// interface and overriding only the methods cursor.go/watermark.go call;
// any other method panics if exercised, which would indicate the cursor
// reached further than these tests intend to cover.
type fakeAdapter struct {
	chainadapter.ChainAdapter
	tip  uint64
	logs map[[2]uint64][]chainadapter.LogEntry
}

func (f *fakeAdapter) FinalizedBlockHeight(ctx context.Context) (uint64, error) {
	return f.tip, nil
}

func (f *fakeAdapter) FetchLogsInRange(ctx context.Context, kind chainadapter.EventKind, from, to uint64) ([]chainadapter.LogEntry, error) {
	return f.logs[[2]uint64{from, to}], nil
}

type memKV struct {
	data map[string][]byte
}

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

type collectSink struct {
	entries []chainadapter.LogEntry
}

func (c *collectSink) Observe(ctx context.Context, entry chainadapter.LogEntry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestRateLimitedWatermarkCursorAdvances(t *testing.T) {
	adapter := &fakeAdapter{tip: 100}
	s := store.New(newMemKV())
	sink := &collectSink{}
	cur := &RateLimitedWatermarkCursor{
		Domain: 1, Kind: chainadapter.EventGasPayment,
		Adapter: adapter, Store: s, Sink: sink, ChunkSize: 40,
	}

	caughtUp, err := cur.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if caughtUp {
		t.Fatalf("expected not caught up after first chunk")
	}
	wm, err := s.WatermarkBlock(1, string(chainadapter.EventGasPayment))
	if err != nil || wm != 40 {
		t.Fatalf("expected watermark 40, got %d err=%v", wm, err)
	}

	for !caughtUp {
		caughtUp, err = cur.Tick(context.Background())
		if err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	wm, _ = s.WatermarkBlock(1, string(chainadapter.EventGasPayment))
	if wm != 100 {
		t.Fatalf("expected watermark 100 at tip, got %d", wm)
	}
}

func TestRateLimitedWatermarkCursorTokenBucket(t *testing.T) {
	adapter := &fakeAdapter{tip: 1000}
	s := store.New(newMemKV())
	sink := &collectSink{}
	cur := &RateLimitedWatermarkCursor{
		Domain: 1, Kind: chainadapter.EventDelivery,
		Adapter: adapter, Store: s, Sink: sink, ChunkSize: 10,
		RequestsPerSecond: 1,
	}
	if _, err := cur.Tick(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	// Immediately retrying should be throttled: bucket had exactly one
	// token, now spent.
	caughtUp, err := cur.Tick(context.Background())
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if caughtUp {
		t.Fatalf("rate-limited tick should report not caught up, not error")
	}
	wm, _ := s.WatermarkBlock(1, string(chainadapter.EventDelivery))
	if wm != 10 {
		t.Fatalf("expected watermark to stay at 10 while throttled, got %d", wm)
	}
}

func TestSequenceAwareCursorBackwardThenForward(t *testing.T) {
	adapter := &fakeAdapter{
		tip:  20,
		logs: make(map[[2]uint64][]chainadapter.LogEntry),
	}
	s := store.New(newMemKV())
	sink := &collectSink{}
	cur := &SequenceAwareCursor{
		Domain: 7, Kind: chainadapter.EventMerkleInsertion,
		Adapter: adapter, Store: s, Sink: sink, ChunkSize: 5,
	}

	// First tick seeds the backward iterator from tip (20) and scans
	// [15,20]; empty range is fine, cursor still moves to 15.
	if _, err := cur.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	back, _ := s.BackwardBlock(7, string(chainadapter.EventMerkleInsertion))
	if back != 15 {
		t.Fatalf("expected backward cursor at 15, got %d", back)
	}

	// Drive the backward sweep to completion.
	done := false
	var err error
	for !done {
		done, err = cur.Tick(context.Background())
		if err != nil {
			t.Fatalf("backward tick: %v", err)
		}
	}
	back, _ = s.BackwardBlock(7, string(chainadapter.EventMerkleInsertion))
	if back != 0 {
		t.Fatalf("expected backward sweep to reach 0, got %d", back)
	}

	// Now forward iterator should run from 0 toward tip=20.
	fwd, _ := s.ForwardBlock(7, string(chainadapter.EventMerkleInsertion))
	if fwd != 20 {
		t.Fatalf("expected forward cursor to reach tip 20, got %d", fwd)
	}
}

func TestContractSyncStartStop(t *testing.T) {
	adapter := &fakeAdapter{tip: 5}
	s := store.New(newMemKV())
	sink := &collectSink{}
	cur := &RateLimitedWatermarkCursor{
		Domain: 1, Kind: chainadapter.EventGasPayment,
		Adapter: adapter, Store: s, Sink: sink, ChunkSize: 1,
	}
	cs := &ContractSync{Name: "test", Cursor: cur, IdlePoll: time.Millisecond, ErrorBackoff: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cs.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cs.Stop()

	wm, _ := s.WatermarkBlock(1, string(chainadapter.EventGasPayment))
	if wm != 5 {
		t.Fatalf("expected sync to catch up to tip 5, got %d", wm)
	}
}
