package metadata

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
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

// fakeISMAdapter drives ISM discrimination calls from an in-memory table
// keyed by ISM address, rather than a real chain connection.
type fakeISMAdapter struct {
	chainadapter.ChainAdapter

	moduleTypes map[string]chainadapter.ModuleType
	routes      map[string][]byte
	subModules  map[string][][]byte
	thresholds  map[string]int
	validators  map[string][][]byte
	msValThresh map[string]int

	storageLocations map[string][]string
	proof            [][]byte
}

func key(b []byte) string { return string(b) }

func (f *fakeISMAdapter) ISMModuleType(ctx context.Context, ism []byte) (chainadapter.ModuleType, error) {
	return f.moduleTypes[key(ism)], nil
}

func (f *fakeISMAdapter) ISMRoute(ctx context.Context, ism []byte, rawMessage []byte) ([]byte, error) {
	return f.routes[key(ism)], nil
}

func (f *fakeISMAdapter) ISMSubModulesAndThreshold(ctx context.Context, ism []byte, rawMessage []byte) ([][]byte, int, error) {
	return f.subModules[key(ism)], f.thresholds[key(ism)], nil
}

func (f *fakeISMAdapter) BuildMultisigISM(ctx context.Context, ism []byte, rawMessage []byte) ([][]byte, int, error) {
	return f.validators[key(ism)], f.msValThresh[key(ism)], nil
}

func (f *fakeISMAdapter) ValidatorAnnounceStorageLocations(ctx context.Context, validators [][]byte) ([][]string, error) {
	out := make([][]string, len(validators))
	for i, v := range validators {
		out[i] = f.storageLocations[key(v)]
	}
	return out, nil
}

func (f *fakeISMAdapter) GetProof(ctx context.Context, hook []byte, leafIndex, checkpointIndex uint32) ([][]byte, error) {
	return f.proof, nil
}

// fixedSyncer is a checkpoint.Syncer backed by one pre-signed checkpoint.
type fixedSyncer struct {
	latest *uint32
	cp     *checkpoint.SignedCheckpoint
}

func (s *fixedSyncer) LatestIndex(ctx context.Context) (*uint32, error) { return s.latest, nil }
func (s *fixedSyncer) FetchCheckpoint(ctx context.Context, index uint32) (*checkpoint.SignedCheckpoint, error) {
	if s.cp == nil || s.cp.Value.Index != index {
		return nil, nil
	}
	return s.cp, nil
}
func (s *fixedSyncer) AnnouncementLocation() string { return "fixed://" }
func (s *fixedSyncer) ReorgStatus(ctx context.Context) (*checkpoint.ReorgStatus, error) {
	return nil, nil
}

func testMessage() *store.HyperlaneMessage {
	return &store.HyperlaneMessage{
		Version:     3,
		Nonce:       1,
		Origin:      1,
		Sender:      make([]byte, 32),
		Destination: 2,
		Recipient:   make([]byte, 32),
		Body:        []byte("hello"),
	}
}

func newTestBuilder(adapter chainadapter.ChainAdapter) *Builder {
	resolver := MapResolver{1: adapter, 2: adapter}
	st := store.New(newMemKV())
	return NewBuilder(resolver, st, nil, map[uint32][]byte{}, nil)
}

func TestBuildNullISM(t *testing.T) {
	ism := []byte("null-ism")
	adapter := &fakeISMAdapter{moduleTypes: map[string]chainadapter.ModuleType{key(ism): chainadapter.ModuleNull}}
	b := newTestBuilder(adapter)

	out, err := b.Build(context.Background(), adapter, ism, testMessage())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty metadata, got %x", out)
	}
}

func TestBuildRoutingRecursesAndCaches(t *testing.T) {
	routingISM := []byte("routing-ism")
	nullISM := []byte("null-ism")
	adapter := &fakeISMAdapter{
		moduleTypes: map[string]chainadapter.ModuleType{
			key(routingISM): chainadapter.ModuleRouting,
			key(nullISM):    chainadapter.ModuleNull,
		},
		routes: map[string][]byte{key(routingISM): nullISM},
	}
	b := newTestBuilder(adapter)

	out, err := b.Build(context.Background(), adapter, routingISM, testMessage())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty metadata via routed null ism, got %x", out)
	}

	// Second call should hit the route cache rather than re-calling ISMRoute;
	// flip the route table to confirm the cached value, not a fresh lookup,
	// is what gets used.
	adapter.routes[key(routingISM)] = []byte("different-ism")
	out2, err := b.Build(context.Background(), adapter, routingISM, testMessage())
	if err != nil {
		t.Fatalf("Build (cached): %v", err)
	}
	if len(out2) != 0 {
		t.Fatalf("expected cached route to still resolve to the null ism, got %x", out2)
	}
}

func TestBuildAggregationRequiresThreshold(t *testing.T) {
	aggISM := []byte("agg-ism")
	sub1 := []byte("sub1")
	sub2 := []byte("sub2")
	adapter := &fakeISMAdapter{
		moduleTypes: map[string]chainadapter.ModuleType{
			key(aggISM): chainadapter.ModuleAggregation,
			key(sub1):   chainadapter.ModuleNull,
			key(sub2):   chainadapter.ModuleNull,
		},
		subModules: map[string][][]byte{key(aggISM): {sub1, sub2}},
		thresholds: map[string]int{key(aggISM): 2},
	}
	b := newTestBuilder(adapter)

	out, err := b.Build(context.Background(), adapter, aggISM, testMessage())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Both sub-ISMs are Null (empty metadata); the aggregation wrapper still
	// must emit a well-formed offset table even though every body is empty.
	if len(out) != 16 {
		t.Fatalf("expected a 2-slot offset table (16 bytes) with no bodies, got %d bytes: %x", len(out), out)
	}
}

func TestBuildAggregationFailsBelowThreshold(t *testing.T) {
	aggISM := []byte("agg-ism-2")
	sub1 := []byte("sub1b")
	adapter := &fakeISMAdapter{
		moduleTypes: map[string]chainadapter.ModuleType{
			key(aggISM): chainadapter.ModuleAggregation,
			key(sub1):   chainadapter.ModuleNull,
		},
		subModules: map[string][][]byte{key(aggISM): {sub1}},
		thresholds: map[string]int{key(aggISM): 2},
	}
	b := newTestBuilder(adapter)

	_, err := b.Build(context.Background(), adapter, aggISM, testMessage())
	if err != ErrCouldNotFetch {
		t.Fatalf("expected ErrCouldNotFetch, got %v", err)
	}
}

func TestBuildMaxDepthExceeded(t *testing.T) {
	ism := []byte("self-routing")
	adapter := &fakeISMAdapter{
		moduleTypes: map[string]chainadapter.ModuleType{key(ism): chainadapter.ModuleRouting},
		routes:      map[string][]byte{key(ism): ism}, // routes to itself forever
	}
	b := newTestBuilder(adapter)
	b.MaxDepth = 3

	_, err := b.Build(context.Background(), adapter, ism, testMessage())
	if err != ErrMaxDepthExceeded {
		t.Fatalf("expected ErrMaxDepthExceeded, got %v", err)
	}
}

func setUpMultisigFixture(t *testing.T, moduleType chainadapter.ModuleType) (*Builder, *fakeISMAdapter, []byte, *store.HyperlaneMessage) {
	t.Helper()

	key1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key 1: %v", err)
	}
	key2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key 2: %v", err)
	}
	addr1 := crypto.PubkeyToAddress(key1.PublicKey)
	addr2 := crypto.PubkeyToAddress(key2.PublicKey)

	ismAddr := []byte("multisig-ism")
	hook := common.HexToAddress("0x9999999999999999999999999999999999999999999999").Bytes()

	msg := testMessage()
	msgID := store.MessageID(msg)
	const leafIndex = uint32(7)
	root := common.HexToHash("0xfeedface")

	value := checkpoint.CheckpointValue{
		MerkleTreeHookAddress: common.BytesToAddress(hook),
		MailboxDomain:         msg.Destination,
		Root:                  root,
		Index:                 leafIndex,
		MessageID:             common.BytesToHash(msgID[:]),
	}
	cp1, err := checkpoint.Sign(value, key1)
	if err != nil {
		t.Fatalf("sign cp1: %v", err)
	}
	cp2, err := checkpoint.Sign(value, key2)
	if err != nil {
		t.Fatalf("sign cp2: %v", err)
	}

	syncer1 := &fixedSyncer{latest: &leafIndex, cp: &cp1}
	syncer2 := &fixedSyncer{latest: &leafIndex, cp: &cp2}

	adapter := &fakeISMAdapter{
		moduleTypes: map[string]chainadapter.ModuleType{key(ismAddr): moduleType},
		validators:  map[string][][]byte{key(ismAddr): {addr1.Bytes(), addr2.Bytes()}},
		msValThresh: map[string]int{key(ismAddr): 2},
		storageLocations: map[string][]string{
			key(addr1.Bytes()): {"loc1"},
			key(addr2.Bytes()): {"loc2"},
		},
		proof: make([][]byte, 32),
	}
	for i := range adapter.proof {
		adapter.proof[i] = make([]byte, 32)
	}

	st := store.New(newMemKV())
	if err := st.PutMessage(msg.Origin, msg); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	if err := st.PutMerkleInsertion(hook, &store.MerkleTreeInsertion{LeafIndex: leafIndex, MessageID: msgID[:]}, 100); err != nil {
		t.Fatalf("PutMerkleInsertion: %v", err)
	}
	if err := st.SetCursorHighestSequence(msg.Origin, string(chainadapter.EventMerkleInsertion), leafIndex+1); err != nil {
		t.Fatalf("SetCursorHighestSequence: %v", err)
	}

	resolver := MapResolver{msg.Origin: adapter, msg.Destination: adapter}
	b := NewBuilder(resolver, st, nil, map[uint32][]byte{msg.Origin: hook}, func(loc string) (checkpoint.Syncer, error) {
		switch loc {
		case "loc1":
			return syncer1, nil
		case "loc2":
			return syncer2, nil
		default:
			return nil, fmt.Errorf("unknown location %q", loc)
		}
	})
	return b, adapter, ismAddr, msg
}

func TestBuildMessageIDMultisig(t *testing.T) {
	b, adapter, ismAddr, msg := setUpMultisigFixture(t, chainadapter.ModuleMessageIDMultisig)
	out, err := b.Build(context.Background(), adapter, ismAddr, msg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// hook(32) + root(32) + index(4) + 2*65 signature bytes.
	if want := 32 + 32 + 4 + 2*65; len(out) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(out))
	}
}

func TestBuildMerkleRootMultisig(t *testing.T) {
	b, adapter, ismAddr, msg := setUpMultisigFixture(t, chainadapter.ModuleMerkleRootMultisig)
	out, err := b.Build(context.Background(), adapter, ismAddr, msg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// hook(32) + index(4) + message_id(32) + proof(32*32) + index(4) + 2*65 signatures.
	if want := 32 + 4 + 32 + 32*32 + 4 + 2*65; len(out) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(out))
	}
}

func TestEncodeAggregationMetadataOffsets(t *testing.T) {
	results := [][]byte{[]byte("aaaa"), nil, []byte("bb")}
	out, err := encodeAggregationMetadata(results, 2)
	if err != nil {
		t.Fatalf("encodeAggregationMetadata: %v", err)
	}
	if len(out) != 24+4+2 {
		t.Fatalf("unexpected total length %d", len(out))
	}
}
