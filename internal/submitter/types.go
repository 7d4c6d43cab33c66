// Copyright 2026 Hyperlane Relayer Contributors
//
// Package submitter implements the destination-chain submission pipeline
// (spec.md §4.8): Building, Inclusion and Finality stages connected by
// bounded channels, each running as its own goroutine so a stall in one
// stage (e.g. a slow RPC node during gas estimation) never blocks the
// others from draining their own backlog.
//
// Grounded on pkg/batch/confirmation_tracker.go's Config/Start/Stop idiom
// and pkg/ethereum/client.go's SendContractTransactionWithRetry gas-price
// escalation (see DESIGN.md, internal/submitter entry).
package submitter

import (
	"log"
	"os"
	"time"
)

// Config tunes a Pipeline. Mirrors the teacher's
// Config-struct-plus-Default-function-plus-nil-check constructor idiom.
type Config struct {
	// BuildQueueSize and InclusionQueueSize bound the channels between
	// stages; a full channel makes Submit/the Building stage block,
	// applying natural backpressure rather than growing memory unbounded.
	BuildQueueSize     int
	InclusionQueueSize int

	// FinalityPollInterval is how often the Finality stage re-checks every
	// tracked transaction hash's status.
	FinalityPollInterval time.Duration

	// StaleAfter is how long a transaction may sit in PendingInclusion or
	// Mempool before the Finality stage re-broadcasts it at an escalated
	// gas price.
	StaleAfter time.Duration

	// GasEscalationPercent raises the freshly estimated gas price by this
	// percentage per submission already made on each re-broadcast (e.g. 20
	// means 120%, 140%, 160%, ...), matching the teacher's
	// SendContractTransactionWithRetry convention.
	GasEscalationPercent int64

	// MaxSubmissionAttempts caps re-broadcasts before a transaction's
	// payloads are dropped and returned to the operation queue's caller.
	MaxSubmissionAttempts int

	Logger *log.Logger
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		BuildQueueSize:        256,
		InclusionQueueSize:    256,
		FinalityPollInterval:  10 * time.Second,
		StaleAfter:            2 * time.Minute,
		GasEscalationPercent:  20,
		MaxSubmissionAttempts: 5,
		Logger:                log.New(os.Stderr, "[relayer:submitter] ", log.LstdFlags),
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	if c.BuildQueueSize <= 0 {
		c.BuildQueueSize = d.BuildQueueSize
	}
	if c.InclusionQueueSize <= 0 {
		c.InclusionQueueSize = d.InclusionQueueSize
	}
	if c.FinalityPollInterval <= 0 {
		c.FinalityPollInterval = d.FinalityPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.GasEscalationPercent <= 0 {
		c.GasEscalationPercent = d.GasEscalationPercent
	}
	if c.MaxSubmissionAttempts <= 0 {
		c.MaxSubmissionAttempts = d.MaxSubmissionAttempts
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
