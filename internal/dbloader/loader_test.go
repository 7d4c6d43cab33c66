// Copyright 2026 Hyperlane Relayer Contributors

package dbloader

import (
	"context"
	"testing"

	"github.com/hyperlane-xyz/relayer/internal/store"
)

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

type collectQueue struct {
	ops []*store.PendingOperation
}

func (q *collectQueue) Enqueue(ctx context.Context, op *store.PendingOperation) error {
	q.ops = append(q.ops, op)
	return nil
}

func putMsg(t *testing.T, s *store.Store, origin, nonce uint32) *store.HyperlaneMessage {
	t.Helper()
	msg := &store.HyperlaneMessage{
		Version: 3, Nonce: nonce, Origin: origin, Destination: 99,
		Sender:    make([]byte, 32),
		Recipient: make([]byte, 32),
		Body:      []byte("m"),
	}
	if err := s.PutMessage(origin, msg); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	return msg
}

func TestLoaderForwardDiscoversNewMessages(t *testing.T) {
	s := store.New(newMemKV())
	putMsg(t, s, 1, 0)
	putMsg(t, s, 1, 1)

	q := &collectQueue{}
	l := &Loader{Origin: 1, Store: s, Queue: q}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := l.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(q.ops) != 2 {
		t.Fatalf("expected 2 enqueued ops, got %d", len(q.ops))
	}
}

func TestLoaderSkipsProcessedAndDropped(t *testing.T) {
	s := store.New(newMemKV())
	msg := putMsg(t, s, 1, 0)
	if err := s.MarkNonceProcessed(1, 0); err != nil {
		t.Fatalf("MarkNonceProcessed: %v", err)
	}
	putMsg(t, s, 1, 1)
	id := msg.ID()
	_ = id

	msg2 := putMsg(t, s, 1, 2)
	id2 := msg2.ID()
	if err := s.SetStatus(id2[:], store.StatusDropped); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	q := &collectQueue{}
	l := &Loader{Origin: 1, Store: s, Queue: q}
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if _, err := l.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(q.ops) != 1 {
		t.Fatalf("expected exactly 1 enqueued op (nonce 1), got %d", len(q.ops))
	}
	if q.ops[0].Message.Nonce != 1 {
		t.Fatalf("expected nonce 1 to be the one enqueued, got %d", q.ops[0].Message.Nonce)
	}
}

func TestLoaderBackwardFillsBelowForwardStart(t *testing.T) {
	s := store.New(newMemKV())
	// Simulate a relayer that already advanced its forward cursor past
	// nonce 3 in a prior run (e.g. seeded from a snapshot) without ever
	// having loaded nonces 0-2.
	for n := uint32(0); n <= 3; n++ {
		putMsg(t, s, 1, n)
	}
	if err := s.SetDBLoaderForwardNonce(1, 3); err != nil {
		t.Fatalf("SetDBLoaderForwardNonce: %v", err)
	}

	q := &collectQueue{}
	l := &Loader{Origin: 1, Store: s, Queue: q}
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		if _, err := l.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	seen := map[uint32]bool{}
	for _, op := range q.ops {
		seen[op.Message.Nonce] = true
	}
	for n := uint32(0); n <= 3; n++ {
		if !seen[n] {
			t.Fatalf("expected nonce %d to be enqueued, got ops %v", n, q.ops)
		}
	}
	if len(q.ops) != 4 {
		t.Fatalf("expected exactly 4 enqueued ops (no overlap), got %d", len(q.ops))
	}
}

func TestLoaderRestoresRetryCount(t *testing.T) {
	s := store.New(newMemKV())
	msg := putMsg(t, s, 2, 0)
	id := msg.ID()
	if err := s.SetPendingRetryCount(id[:], 4); err != nil {
		t.Fatalf("SetPendingRetryCount: %v", err)
	}

	q := &collectQueue{}
	l := &Loader{Origin: 2, Store: s, Queue: q}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := l.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(q.ops) != 1 {
		t.Fatalf("expected 1 enqueued op, got %d", len(q.ops))
	}
	if q.ops[0].RetryCount != 4 {
		t.Fatalf("expected restored retry count 4, got %d", q.ops[0].RetryCount)
	}
}
