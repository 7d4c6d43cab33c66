// Copyright 2026 Hyperlane Relayer Contributors

package metadata

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
	"github.com/hyperlane-xyz/relayer/internal/store"
	"github.com/hyperlane-xyz/relayer/internal/validatorannounce"
)

const defaultMaxDepth = 8
const defaultRouteCacheTTL = 10 * time.Minute

// SyncerFactory turns a validator's announced storage location URI into a
// checkpoint.Syncer (scheme-dispatch: file://, s3://, gs://).
type SyncerFactory func(storageLocation string) (checkpoint.Syncer, error)

// Builder implements the recursive ISM metadata construction described in
// spec.md §4.5.
type Builder struct {
	Resolver Resolver
	Store    *store.Store

	// AnnounceReaders is keyed by origin domain; each reader owns its own
	// TTL cache over that domain's ValidatorAnnounce contract.
	AnnounceReaders map[uint32]*validatorannounce.Reader

	// MerkleTreeHooks maps an origin domain to its merkle-tree-hook
	// contract address, needed to key Store lookups and GetProof calls.
	MerkleTreeHooks map[uint32][]byte

	SyncerFactory SyncerFactory
	HTTPClient    *http.Client
	Signer        *ecdsa.PrivateKey // optional CCIP-Read EIP-712 authentication signer
	MaxDepth      int
	RouteCacheTTL time.Duration

	mu          sync.Mutex
	syncerCache map[common.Address]checkpoint.Syncer
	routes      *routeCache
}

// NewBuilder constructs a Builder with default depth/cache settings where
// unset.
func NewBuilder(resolver Resolver, st *store.Store, announce map[uint32]*validatorannounce.Reader, hooks map[uint32][]byte, syncerFactory SyncerFactory) *Builder {
	return &Builder{
		Resolver:        resolver,
		Store:           st,
		AnnounceReaders: announce,
		MerkleTreeHooks: hooks,
		SyncerFactory:   syncerFactory,
		HTTPClient:      &http.Client{Timeout: 30 * time.Second},
		MaxDepth:        defaultMaxDepth,
		RouteCacheTTL:   defaultRouteCacheTTL,
		syncerCache:     make(map[common.Address]checkpoint.Syncer),
		routes:          newRouteCache(defaultRouteCacheTTL),
	}
}

// Build resolves and constructs metadata for message against ismAddress on
// the destination chain reached through dest.
func (b *Builder) Build(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage) ([]byte, error) {
	return b.buildAtDepth(ctx, dest, ismAddress, message, 0)
}

func (b *Builder) buildAtDepth(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage, depth int) ([]byte, error) {
	maxDepth := b.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if depth > maxDepth {
		return nil, ErrMaxDepthExceeded
	}

	moduleType, err := dest.ISMModuleType(ctx, ismAddress)
	if err != nil {
		return nil, failedToBuild("module_type", err)
	}

	switch moduleType {
	case chainadapter.ModuleUnused, chainadapter.ModuleNull:
		return nil, nil
	case chainadapter.ModuleMerkleRootMultisig:
		return b.buildMultisig(ctx, dest, ismAddress, message, true)
	case chainadapter.ModuleLegacyMultisig, chainadapter.ModuleMessageIDMultisig:
		return b.buildMultisig(ctx, dest, ismAddress, message, false)
	case chainadapter.ModuleAggregation:
		return b.buildAggregation(ctx, dest, ismAddress, message, depth)
	case chainadapter.ModuleRouting:
		return b.buildRouting(ctx, dest, ismAddress, message, depth)
	case chainadapter.ModuleCCIPRead:
		return b.buildCCIPRead(ctx, dest, ismAddress, message)
	default:
		return nil, failedToBuild("module_type", nil)
	}
}

// EncodeMessage renders message in Hyperlane's canonical wire format, the
// same layout internal/chainadapter/evm decodes Dispatch logs from. Exported
// so the processor can encode the same bytes handed to a mailbox process()
// call.
func EncodeMessage(m *store.HyperlaneMessage) []byte {
	return encodeMessage(m)
}

func encodeMessage(m *store.HyperlaneMessage) []byte {
	buf := make([]byte, 0, 1+4+4+32+4+32+len(m.Body))
	buf = append(buf, m.Version)
	buf = appendU32(buf, m.Nonce)
	buf = appendU32(buf, m.Origin)
	buf = append(buf, pad32(m.Sender)...)
	buf = appendU32(buf, m.Destination)
	buf = append(buf, pad32(m.Recipient)...)
	buf = append(buf, m.Body...)
	return buf
}

func appendU32(buf []byte, n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return append(buf, b[:]...)
}

func pad32(b []byte) []byte {
	out := make([]byte, 32)
	copy(out, b)
	return out
}

func (b *Builder) announceReader(origin uint32, adapter chainadapter.ChainAdapter) *validatorannounce.Reader {
	if r, ok := b.AnnounceReaders[origin]; ok {
		return r
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.AnnounceReaders[origin]; ok {
		return r
	}
	r := validatorannounce.NewReader(adapter, 0)
	if b.AnnounceReaders == nil {
		b.AnnounceReaders = make(map[uint32]*validatorannounce.Reader)
	}
	b.AnnounceReaders[origin] = r
	return r
}

// syncersFor resolves each validator's cached (or freshly built) checkpoint
// syncer from its first announced storage location. Validators with no
// announced location, or whose location fails to resolve, are simply
// absent from the result so the caller's quorum search tolerates it.
func (b *Builder) syncersFor(validators []common.Address, locations [][]string) map[common.Address]checkpoint.Syncer {
	out := make(map[common.Address]checkpoint.Syncer, len(validators))
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, v := range validators {
		if s, ok := b.syncerCache[v]; ok {
			out[v] = s
			continue
		}
		locs := locations[i]
		if len(locs) == 0 {
			continue
		}
		syncer, err := b.SyncerFactory(locs[0])
		if err != nil {
			continue
		}
		b.syncerCache[v] = syncer
		out[v] = syncer
	}
	return out
}
