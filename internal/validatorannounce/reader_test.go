package validatorannounce

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
)

type fakeAdapter struct {
	chainadapter.ChainAdapter
	calls     int
	locations map[string][]string
}

func (f *fakeAdapter) ValidatorAnnounceStorageLocations(ctx context.Context, validators [][]byte) ([][]string, error) {
	f.calls++
	out := make([][]string, len(validators))
	for i, v := range validators {
		out[i] = f.locations[common.BytesToAddress(v).Hex()]
	}
	return out, nil
}

func TestReaderCachesUntilTTLExpires(t *testing.T) {
	v1 := common.HexToAddress("0x0000000000000000000000000000000000001")
	adapter := &fakeAdapter{locations: map[string][]string{v1.Hex(): {"s3://bucket/a"}}}
	r := NewReader(adapter, 50*time.Millisecond)

	locs, err := r.StorageLocations(context.Background(), []common.Address{v1})
	if err != nil {
		t.Fatalf("StorageLocations: %v", err)
	}
	if len(locs) != 1 || locs[0][0] != "s3://bucket/a" {
		t.Fatalf("unexpected locations: %v", locs)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected 1 adapter call, got %d", adapter.calls)
	}

	if _, err := r.StorageLocations(context.Background(), []common.Address{v1}); err != nil {
		t.Fatalf("StorageLocations (cached): %v", err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected cache hit to avoid a second adapter call, got %d calls", adapter.calls)
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := r.StorageLocations(context.Background(), []common.Address{v1}); err != nil {
		t.Fatalf("StorageLocations (expired): %v", err)
	}
	if adapter.calls != 2 {
		t.Fatalf("expected expiry to trigger a refetch, got %d calls", adapter.calls)
	}
}

func TestReaderInvalidate(t *testing.T) {
	v1 := common.HexToAddress("0x0000000000000000000000000000000000002")
	adapter := &fakeAdapter{locations: map[string][]string{v1.Hex(): {"gs://bucket/b"}}}
	r := NewReader(adapter, time.Hour)

	if _, err := r.StorageLocations(context.Background(), []common.Address{v1}); err != nil {
		t.Fatalf("StorageLocations: %v", err)
	}
	r.Invalidate(v1)
	if _, err := r.StorageLocations(context.Background(), []common.Address{v1}); err != nil {
		t.Fatalf("StorageLocations (post-invalidate): %v", err)
	}
	if adapter.calls != 2 {
		t.Fatalf("expected Invalidate to force a refetch, got %d calls", adapter.calls)
	}
}
