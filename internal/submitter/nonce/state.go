// Copyright 2026 Hyperlane Relayer Contributors

package nonce

import (
	"fmt"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Manager tracks nonce assignment for a single signer address, backed by
// the persistent Store. Ported near line-for-line from
// NonceManagerState in the Lander's ethereum nonce state machine.
type Manager struct {
	Store  *store.Store
	Signer string
}

// NewManager builds a Manager for signer, reading/writing through st.
func NewManager(st *store.Store, signer string) *Manager {
	return &Manager{Store: st, Signer: signer}
}

// UpdateBoundaryNonces advances the signer's lowest-available nonce and,
// if nonce exceeds the current upper bound, the upper bound too.
func (m *Manager) UpdateBoundaryNonces(nonce uint64) error {
	if err := m.Store.SetLowestAvailableNonce(m.Signer, nonce); err != nil {
		return err
	}
	upper, err := m.Store.UpperNonce(m.Signer)
	if err != nil {
		return err
	}
	if nonce > upper {
		return m.Store.SetUpperNonce(m.Signer, nonce)
	}
	return nil
}

// UpdateNonceStatus records a transition for nonce, enforcing that a
// Taken/Committed nonce is never silently reassigned to a different
// transaction UUID.
func (m *Manager) UpdateNonceStatus(nonce uint64, status Status) error {
	tracked, err := m.getNonceStatus(nonce)
	if err != nil {
		return err
	}
	if tracked == nil {
		return m.insertNonceStatus(nonce, status)
	}
	if *tracked == status {
		return nil
	}

	var trackedTxUUID string
	switch tracked.Kind {
	case Taken, Committed:
		trackedTxUUID = tracked.TxUUID
	case Freed:
		// A Freed slot adopts whatever status comes next unconditionally.
		return m.insertNonceStatus(nonce, status)
	}

	if trackedTxUUID == status.TxUUID {
		return m.insertNonceStatus(nonce, status)
	}

	return &ErrAssignedToMultipleTransactions{Nonce: nonce, Tracked: trackedTxUUID, Attempted: status.TxUUID}
}

// ValidateAssignedNonce decides whether a previously-assigned nonce is
// still usable for txUUID, or whether a fresh nonce must be assigned.
func (m *Manager) ValidateAssignedNonce(nonce uint64, status Status) (Action, error) {
	tracked, err := m.getNonceStatus(nonce)
	if err != nil {
		return Assign, err
	}
	lowest, err := m.Store.LowestAvailableNonce(m.Signer)
	if err != nil {
		return Assign, err
	}

	if tracked == nil {
		return Assign, nil
	}
	if tracked.TxUUID != status.TxUUID {
		return Assign, nil
	}

	switch status.Kind {
	case Freed:
		return Assign, nil
	case Taken:
		if nonce < lowest {
			return Assign, nil
		}
		return Noop, nil
	case Committed:
		return Noop, nil
	default:
		return Assign, fmt.Errorf("nonce: unknown status kind %q", status.Kind)
	}
}

// AssignNextNonce scans [lowest_available, upper) for the first
// unassigned-or-Freed slot, extending upper by one if none is found, and
// marks it Taken for txUUID.
func (m *Manager) AssignNextNonce(txUUID string) (uint64, error) {
	lowest, err := m.Store.LowestAvailableNonce(m.Signer)
	if err != nil {
		return 0, err
	}
	upper, err := m.Store.UpperNonce(m.Signer)
	if err != nil {
		return 0, err
	}

	next := lowest
	for next < upper {
		tracked, err := m.getNonceStatus(next)
		if err != nil {
			return 0, err
		}
		if tracked == nil || tracked.Kind == Freed {
			break
		}
		next++
	}

	if next >= upper {
		if err := m.Store.SetUpperNonce(m.Signer, next+1); err != nil {
			return 0, err
		}
	}

	if err := m.insertNonceStatus(next, Status{Kind: Taken, TxUUID: txUUID}); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) insertNonceStatus(nonce uint64, status Status) error {
	if err := m.Store.SetNonceStatus(m.Signer, nonce, &store.NonceStatusRecord{Status: string(status.Kind), TxUUID: status.TxUUID}); err != nil {
		return err
	}
	upper, err := m.Store.UpperNonce(m.Signer)
	if err != nil {
		return err
	}
	if nonce >= upper {
		return m.Store.SetUpperNonce(m.Signer, nonce+1)
	}
	return nil
}

func (m *Manager) getNonceStatus(nonce uint64) (*Status, error) {
	rec, err := m.Store.NonceStatus(m.Signer, nonce)
	if err == store.ErrNonceStatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{Kind: Kind(rec.Status), TxUUID: rec.TxUUID}, nil
}
