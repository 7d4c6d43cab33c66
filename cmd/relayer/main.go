// Command relayer runs the Hyperlane cross-chain message relayer: one
// origin-side indexing/loading pipeline per configured chain, one
// destination-side op-queue/submitter pipeline per relay chain, and the
// admin/metrics HTTP surface described in spec.md §6.3.
//
// Grounded on main.go's phased-startup-then-signal-wait shape: load
// config, wire every component against it, start background goroutines,
// serve HTTP, then block on SIGINT/SIGTERM and shut down in reverse order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hyperlane-xyz/relayer/internal/agent"
	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/chainadapter/evm"
	"github.com/hyperlane-xyz/relayer/internal/checkpoint"
	"github.com/hyperlane-xyz/relayer/internal/config"
	"github.com/hyperlane-xyz/relayer/internal/dbloader"
	"github.com/hyperlane-xyz/relayer/internal/gaspolicy"
	"github.com/hyperlane-xyz/relayer/internal/indexer"
	"github.com/hyperlane-xyz/relayer/internal/kvdb"
	"github.com/hyperlane-xyz/relayer/internal/metadata"
	"github.com/hyperlane-xyz/relayer/internal/metrics"
	"github.com/hyperlane-xyz/relayer/internal/opqueue"
	"github.com/hyperlane-xyz/relayer/internal/store"
	"github.com/hyperlane-xyz/relayer/internal/submitter"
	"github.com/hyperlane-xyz/relayer/internal/submitter/nonce"
	"github.com/hyperlane-xyz/relayer/internal/validatorannounce"
)

func main() {
	chainsPath := flag.String("chains-config", "", "path to the chain topology YAML file (overrides RELAYER_CHAINS_CONFIG)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("starting hyperlane relayer")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if *chainsPath != "" {
		cfg.ChainsConfigPath = *chainsPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	topology, err := config.LoadTopology(cfg.ChainsConfigPath)
	if err != nil {
		log.Fatalf("load chain topology %s: %v", cfg.ChainsConfigPath, err)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	kv, err := kvdb.Open("relayer", cfg.DBPath)
	if err != nil {
		log.Fatalf("open store at %s: %v", cfg.DBPath, err)
	}
	defer kv.Close()
	st := store.New(kv)

	ctx, cancel := context.WithCancel(context.Background())

	adapters := make(map[uint32]chainadapter.ChainAdapter)
	domainByChainName := make(map[string]uint32)
	chainConfigByDomain := make(map[uint32]config.ChainConfig)
	for name, chain := range topology.Chains {
		if chain.Protocol != "" && chain.Protocol != "ethereum" {
			log.Fatalf("chain %s: unsupported protocol %q (only ethereum-family EVM chains are implemented)", name, chain.Protocol)
		}
		evmCfg, err := chain.EVMAdapterConfig()
		if err != nil {
			log.Fatalf("chain %s: %v", name, err)
		}
		adapter, err := evm.New(ctx, evmCfg)
		if err != nil {
			log.Fatalf("chain %s: dial adapter: %v", name, err)
		}
		adapters[chain.Domain] = adapter
		domainByChainName[name] = chain.Domain
		chainConfigByDomain[chain.Domain] = chain
		log.Printf("chain %s (domain %d): adapter ready", name, chain.Domain)
	}

	resolver := metadata.MapResolver(adapters)

	announceReaders := make(map[uint32]*validatorannounce.Reader)
	merkleHooks := make(map[uint32][]byte)
	for domain, adapter := range adapters {
		announceReaders[domain] = validatorannounce.NewReader(adapter, 10*time.Minute)
		merkleHooks[domain] = chainConfigByDomain[domain].MerkleTreeHookBytes()
	}

	builder := metadata.NewBuilder(resolver, st, announceReaders, merkleHooks, syncerFactory(cfg.AllowLocalCheckpointSyncers))

	policies, err := topology.Policies()
	if err != nil {
		log.Fatalf("parse gasPaymentEnforcement: %v", err)
	}
	enforcer := gaspolicy.NewEnforcer(policies)

	relaySet := map[string]bool{}
	for _, name := range cfg.RelayChains {
		relaySet[name] = true
	}

	rt := agent.NewRuntime(st, m)
	rt.DomainNames = domainByChainName

	destinationQueues := make(map[uint32]*opqueue.Queue)

	for name, chain := range topology.Chains {
		if len(relaySet) > 0 && !relaySet[name] {
			continue
		}
		adapter := adapters[chain.Domain]
		queue := opqueue.NewQueue(10)
		destinationQueues[chain.Domain] = queue

		processor := opqueue.NewProcessor(chain.Domain, adapter, builder, enforcer, st, queue, nil, 10, m)

		nonceMgr := nonce.NewManager(st, chain.Signer.Key)
		pipelineCfg := &submitter.Config{
			FinalityPollInterval: cfg.FinalityPollInterval,
			StaleAfter:           cfg.StaleAfter,
			GasEscalationPercent: cfg.GasEscalationPercent,
		}
		pipeline, err := submitter.NewPipeline(chain.Domain, adapter, st, nonceMgr, chain.Signer.Key, m, pipelineCfg)
		if err != nil {
			log.Fatalf("chain %s: build submitter pipeline: %v", name, err)
		}
		processor.Submitter = pipeline

		rt.RegisterDomain(chain.Domain, &agent.Domain{Processor: processor, Pipeline: pipeline})
		log.Printf("chain %s (domain %d): relaying with a destination pipeline", name, chain.Domain)
	}

	var wg sync.WaitGroup
	router := &routingEnqueuer{queues: destinationQueues}

	for name, chain := range topology.Chains {
		adapter := adapters[chain.Domain]
		chunk := chain.Index.Chunk
		if chunk == 0 {
			chunk = cfg.DefaultChunkSize
		}

		sink := &indexer.StoreSink{Store: st, MerkleHook: chainConfigByDomain[chain.Domain].MerkleTreeHookBytes()}

		dispatchCursor := &indexer.SequenceAwareCursor{Domain: chain.Domain, Kind: chainadapter.EventDispatch, Adapter: adapter, Store: st, Sink: sink, ChunkSize: chunk}
		merkleCursor := &indexer.SequenceAwareCursor{Domain: chain.Domain, Kind: chainadapter.EventMerkleInsertion, Adapter: adapter, Store: st, Sink: sink, ChunkSize: chunk}
		gasCursor := &indexer.RateLimitedWatermarkCursor{Domain: chain.Domain, Kind: chainadapter.EventGasPayment, Adapter: adapter, Store: st, Sink: sink, ChunkSize: chunk, RequestsPerSecond: 5}
		deliveryCursor := &indexer.RateLimitedWatermarkCursor{Domain: chain.Domain, Kind: chainadapter.EventDelivery, Adapter: adapter, Store: st, Sink: sink, ChunkSize: chunk, RequestsPerSecond: 5}

		syncs := []*indexer.ContractSync{
			{Name: fmt.Sprintf("%s/dispatch", name), Cursor: dispatchCursor},
			{Name: fmt.Sprintf("%s/merkle", name), Cursor: merkleCursor},
			{Name: fmt.Sprintf("%s/gas-payment", name), Cursor: gasCursor},
			{Name: fmt.Sprintf("%s/delivery", name), Cursor: deliveryCursor},
		}
		for _, sync := range syncs {
			sync.Start(ctx)
		}

		loader := &dbloader.Loader{Origin: chain.Domain, Store: st, Queue: router}
		wg.Add(1)
		go func(name string, loader *dbloader.Loader) {
			defer wg.Done()
			if err := loader.Run(ctx, 0); err != nil && err != context.Canceled {
				log.Printf("db-loader for %s exited: %v", name, err)
			}
		}(name, loader)
	}

	if err := rt.Start(ctx); err != nil {
		log.Fatalf("start agent runtime: %v", err)
	}

	adminServer := &http.Server{Addr: cfg.AdminListenAddr, Handler: agent.NewServer(rt).Handler()}
	go func() {
		log.Printf("admin server listening on %s", cfg.AdminListenAddr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	cancel()
	rt.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("stopped")
}

// routingEnqueuer fans a single origin's loaded PendingOperations out to
// the destination queue their message.Destination names, since one
// origin's db-loader feeds every destination that chain relays into.
type routingEnqueuer struct {
	queues map[uint32]*opqueue.Queue
}

func (r *routingEnqueuer) Enqueue(ctx context.Context, op *store.PendingOperation) error {
	queue, ok := r.queues[op.Message.Destination]
	if !ok {
		// Not a relayed destination (spec.md §6.4 relayChains scoping); drop
		// silently rather than erroring the db-loader's whole scan.
		return nil
	}
	return queue.Enqueue(ctx, op)
}

// syncerFactory builds the scheme-dispatching checkpoint.SyncerFactory the
// metadata Builder uses to fetch a validator's signed checkpoints from its
// announced storage location (spec.md §4.9).
func syncerFactory(allowLocal bool) metadata.SyncerFactory {
	return func(location string) (checkpoint.Syncer, error) {
		switch {
		case strings.HasPrefix(location, "s3://"):
			parts := strings.SplitN(strings.TrimPrefix(location, "s3://"), "/", 2)
			bucket := parts[0]
			prefix := ""
			if len(parts) > 1 {
				prefix = parts[1]
			}
			return checkpoint.NewS3Storage(context.Background(), bucket, prefix, "")
		case strings.HasPrefix(location, "gs://"):
			parts := strings.SplitN(strings.TrimPrefix(location, "gs://"), "/", 2)
			bucket := parts[0]
			folder := ""
			if len(parts) > 1 {
				folder = parts[1]
			}
			return checkpoint.NewGCSStorage(context.Background(), bucket, folder)
		case strings.HasPrefix(location, "file://"):
			if !allowLocal {
				return nil, fmt.Errorf("checkpoint: local file syncers are disabled (set RELAYER_ALLOW_LOCAL_CHECKPOINT_SYNCERS=true)")
			}
			return &checkpoint.LocalStorage{Path: strings.TrimPrefix(location, "file://")}, nil
		default:
			return nil, fmt.Errorf("checkpoint: unsupported announcement location scheme: %s", location)
		}
	}
}
