// Copyright 2026 Hyperlane Relayer Contributors
//
// Package metrics exposes the relayer's Prometheus gauges and counters
// behind the agent runtime's GET /metrics endpoint (spec.md §6.3).
// github.com/prometheus/client_golang is already a direct dependency in
// the teacher's go.mod; nothing in the teacher's own tree registers any
// collectors with it, so the registry/metric shapes here are this
// package's own, generalized from the quantities the checkpoint
// multiplexer, op queue and submitter pipeline already track in memory
// (see DESIGN.md).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hyperlane_relayer"

// Metrics bundles every collector the agent registers. One instance is
// shared process-wide; per-domain values are distinguished by label.
type Metrics struct {
	Registry *prometheus.Registry

	// Checkpoint syncing (multisig.rs's
	// get_validator_latest_checkpoints_and_update_metrics).
	ValidatorLatestCheckpointIndex *prometheus.GaugeVec
	ObservedCheckpointIndex        *prometheus.GaugeVec

	// Indexing cursors.
	CursorHighestSequence *prometheus.GaugeVec
	IndexedBlockHeight    *prometheus.GaugeVec

	// Op queue / processor.
	QueueLength      *prometheus.GaugeVec
	OperationsDropped *prometheus.CounterVec
	OperationsRetried *prometheus.CounterVec

	// Gas payment enforcement.
	GasPaymentWithheld *prometheus.CounterVec

	// Submitter pipeline.
	TransactionsSubmitted  *prometheus.CounterVec
	TransactionsFinalized  *prometheus.CounterVec
	TransactionsDropped    *prometheus.CounterVec
	GasPriceEscalations    *prometheus.CounterVec
}

// New builds and registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ValidatorLatestCheckpointIndex: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validator_latest_checkpoint_index",
			Help:      "Latest checkpoint index observed from a validator's storage location.",
		}, []string{"origin_chain", "validator"}),

		ObservedCheckpointIndex: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observed_checkpoint_index",
			Help:      "Highest checkpoint index observed on-chain for a domain's merkle tree hook.",
		}, []string{"origin_chain"}),

		CursorHighestSequence: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_highest_sequence",
			Help:      "Highest message sequence indexed so far, per chain and event kind.",
		}, []string{"chain", "event_kind"}),

		IndexedBlockHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_block_height",
			Help:      "Highest block height the indexer has scanned to, per chain.",
		}, []string{"chain"}),

		QueueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_queue_length",
			Help:      "Number of operations currently held in a destination domain's queue.",
		}, []string{"destination_chain"}),

		OperationsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_dropped_total",
			Help:      "Operations dropped from the queue, by reason.",
		}, []string{"destination_chain", "reason"}),

		OperationsRetried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_retried_total",
			Help:      "Operations sent back through the queue with a fresh backoff.",
		}, []string{"destination_chain"}),

		GasPaymentWithheld: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_payment_withheld_total",
			Help:      "Times the gas payment enforcer withheld an operation pending further payment.",
		}, []string{"destination_chain"}),

		TransactionsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_submitted_total",
			Help:      "Transactions broadcast to a destination chain, including re-broadcasts.",
		}, []string{"destination_chain"}),

		TransactionsFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_finalized_total",
			Help:      "Transactions that reached finality.",
		}, []string{"destination_chain"}),

		TransactionsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_dropped_total",
			Help:      "Transactions abandoned before reaching finality, by reason.",
		}, []string{"destination_chain", "reason"}),

		GasPriceEscalations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_price_escalations_total",
			Help:      "Times a stale or dropped transaction was re-broadcast at a higher gas price.",
		}, []string{"destination_chain"}),
	}
}
