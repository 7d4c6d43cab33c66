// Copyright 2026 Hyperlane Relayer Contributors

package store

import "testing"

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

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

func TestMessageRoundTrip(t *testing.T) {
	s := New(newMemKV())
	msg := &HyperlaneMessage{
		Version: 3, Nonce: 0, Origin: 1, Destination: 2,
		Sender:    make([]byte, 32),
		Recipient: make([]byte, 32),
		Body:      []byte("hello"),
	}
	if err := s.PutMessage(1, msg); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	id := MessageID(msg)

	got, err := s.MessageByID(id[:])
	if err != nil {
		t.Fatalf("MessageByID: %v", err)
	}
	if got.Nonce != msg.Nonce || got.Origin != msg.Origin || string(got.Body) != string(msg.Body) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, msg)
	}

	byNonce, ok, err := s.MessageByNonce(1, 0)
	if err != nil || !ok {
		t.Fatalf("MessageByNonce: ok=%v err=%v", ok, err)
	}
	if string(byNonce.Body) != "hello" {
		t.Fatalf("MessageByNonce body mismatch: %s", byNonce.Body)
	}
}

func newMessage(origin, nonce, dest uint32) *HyperlaneMessage {
	return &HyperlaneMessage{
		Version: 3, Nonce: nonce, Origin: origin, Destination: dest,
		Sender:    make([]byte, 32),
		Recipient: make([]byte, 32),
		Body:      []byte("hi"),
	}
}

func TestHighestSeenMessageNonceTracksMaxPerOrigin(t *testing.T) {
	s := New(newMemKV())

	if err := s.PutMessage(1, newMessage(1, 0, 2)); err != nil {
		t.Fatalf("PutMessage nonce 0: %v", err)
	}
	if err := s.PutMessage(1, newMessage(1, 1, 2)); err != nil {
		t.Fatalf("PutMessage nonce 1: %v", err)
	}
	if err := s.PutMessage(1, newMessage(1, 2, 2)); err != nil {
		t.Fatalf("PutMessage nonce 2: %v", err)
	}

	highest, err := s.HighestSeenMessageNonce(1)
	if err != nil {
		t.Fatalf("HighestSeenMessageNonce: %v", err)
	}
	if highest != 2 {
		t.Fatalf("expected highest seen nonce 2, got %d", highest)
	}

	// A backward-fill insertion (lower nonce arriving after a higher one)
	// must not clobber the high-water mark.
	if err := s.PutMessage(1, newMessage(1, 1, 2)); err != nil {
		t.Fatalf("PutMessage backfilled nonce 1: %v", err)
	}
	highest, err = s.HighestSeenMessageNonce(1)
	if err != nil {
		t.Fatalf("HighestSeenMessageNonce after backfill: %v", err)
	}
	if highest != 2 {
		t.Fatalf("expected highest seen nonce to remain 2 after a backfill, got %d", highest)
	}
}

func TestHighestSeenMessageNonceIsScopedPerOrigin(t *testing.T) {
	s := New(newMemKV())

	if err := s.PutMessage(1, newMessage(1, 5, 2)); err != nil {
		t.Fatalf("PutMessage origin 1: %v", err)
	}
	if err := s.PutMessage(2, newMessage(2, 1, 3)); err != nil {
		t.Fatalf("PutMessage origin 2: %v", err)
	}

	if highest, err := s.HighestSeenMessageNonce(1); err != nil || highest != 5 {
		t.Fatalf("expected origin 1 highest seen nonce 5, got %d (err=%v)", highest, err)
	}
	if highest, err := s.HighestSeenMessageNonce(2); err != nil || highest != 1 {
		t.Fatalf("expected origin 2 highest seen nonce 1, got %d (err=%v)", highest, err)
	}
}

func TestMessageNotFound(t *testing.T) {
	s := New(newMemKV())
	if _, err := s.MessageByID(make([]byte, 32)); err != ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestGasPaymentIdempotent(t *testing.T) {
	s := New(newMemKV())
	id := []byte("message-1")
	logMeta := []byte("block1-log0-tx1")

	if err := s.RecordGasPayment(id, logMeta, NewBigInt("100"), NewBigInt("50")); err != nil {
		t.Fatalf("RecordGasPayment: %v", err)
	}
	// Replaying the same log (invariant 3) must not change the total.
	if err := s.RecordGasPayment(id, logMeta, NewBigInt("100"), NewBigInt("50")); err != nil {
		t.Fatalf("RecordGasPayment replay: %v", err)
	}

	total, err := s.GasPaymentForMessageID(id)
	if err != nil {
		t.Fatalf("GasPaymentForMessageID: %v", err)
	}
	if total.CumulativePayment.String() != "100" {
		t.Fatalf("expected cumulative payment 100, got %s", total.CumulativePayment.String())
	}

	// A distinct log for the same message_id does accumulate.
	if err := s.RecordGasPayment(id, []byte("block1-log1-tx1"), NewBigInt("25"), NewBigInt("10")); err != nil {
		t.Fatalf("RecordGasPayment second log: %v", err)
	}
	total, err = s.GasPaymentForMessageID(id)
	if err != nil {
		t.Fatalf("GasPaymentForMessageID: %v", err)
	}
	if total.CumulativePayment.String() != "125" {
		t.Fatalf("expected cumulative payment 125, got %s", total.CumulativePayment.String())
	}
}

func TestPayloadIndexAppendOnly(t *testing.T) {
	s := New(newMemKV())
	p1 := &FullPayload{UUID: "p1", Status: PayloadReadyToSubmit, Details: PayloadDetails{MessageID: []byte("m1")}}
	p2 := &FullPayload{UUID: "p2", Status: PayloadReadyToSubmit, Details: PayloadDetails{MessageID: []byte("m1")}}

	if err := s.PutPayload(p1); err != nil {
		t.Fatalf("PutPayload p1: %v", err)
	}
	if err := s.PutPayload(p2); err != nil {
		t.Fatalf("PutPayload p2: %v", err)
	}
	// A status update re-write must not duplicate the message's UUID list.
	p1.Status = PayloadDelivered
	if err := s.PutPayload(p1); err != nil {
		t.Fatalf("PutPayload p1 update: %v", err)
	}

	uuids, err := s.PayloadUUIDsByMessageID([]byte("m1"))
	if err != nil {
		t.Fatalf("PayloadUUIDsByMessageID: %v", err)
	}
	if len(uuids) != 2 {
		t.Fatalf("expected 2 uuids, got %d: %v", len(uuids), uuids)
	}

	got, err := s.PayloadByUUID("p1")
	if err != nil {
		t.Fatalf("PayloadByUUID: %v", err)
	}
	if got.Status != PayloadDelivered {
		t.Fatalf("expected updated status Delivered, got %s", got.Status)
	}
}

func TestNonceStatusRoundTrip(t *testing.T) {
	s := New(newMemKV())
	if _, err := s.NonceStatus("0xsigner", 5); err != ErrNonceStatusNotFound {
		t.Fatalf("expected ErrNonceStatusNotFound, got %v", err)
	}
	if err := s.SetNonceStatus("0xsigner", 5, &NonceStatusRecord{Status: "Taken", TxUUID: "tx-a"}); err != nil {
		t.Fatalf("SetNonceStatus: %v", err)
	}
	rec, err := s.NonceStatus("0xsigner", 5)
	if err != nil {
		t.Fatalf("NonceStatus: %v", err)
	}
	if rec.Status != "Taken" || rec.TxUUID != "tx-a" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
