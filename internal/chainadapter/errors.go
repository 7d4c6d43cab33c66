// Copyright 2026 Hyperlane Relayer Contributors

package chainadapter

import "errors"

// Adapters classify every failure as retryable or terminal; the core never
// interprets application semantics beyond this split (spec §4.2).
var (
	ErrSimulationReverted = errors.New("chainadapter: simulation reverted")
	ErrSimulationSkipped  = errors.New("chainadapter: simulation skipped")
)

// RetryableError wraps a transient failure (network timeout, node lag,
// rate limit) that the caller should retry with backoff.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return "chainadapter: retryable error during " + e.Op + ": " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a RetryableError tagged with the operation name.
func Retryable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Op: op, Err: err}
}

// IsRetryable reports whether err (or anything it wraps) was classified
// retryable by an adapter.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
