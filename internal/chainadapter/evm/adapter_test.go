package evm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

func TestDecodeWireMessage(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(3) // version
	var nonce, origin, dest [4]byte
	binary.BigEndian.PutUint32(nonce[:], 7)
	binary.BigEndian.PutUint32(origin[:], 1)
	binary.BigEndian.PutUint32(dest[:], 2)
	buf.Write(nonce[:])
	buf.Write(origin[:])
	sender := make([]byte, 32)
	sender[31] = 0xAA
	buf.Write(sender)
	buf.Write(dest[:])
	recipient := make([]byte, 32)
	recipient[31] = 0xBB
	buf.Write(recipient)
	buf.WriteString("payload")

	msg, err := decodeWireMessage(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeWireMessage: %v", err)
	}
	if msg.Version != 3 || msg.Nonce != 7 || msg.Origin != 1 || msg.Destination != 2 {
		t.Fatalf("unexpected header fields: %+v", msg)
	}
	if string(msg.Body) != "payload" {
		t.Fatalf("unexpected body: %q", msg.Body)
	}
	if msg.Sender[31] != 0xAA || msg.Recipient[31] != 0xBB {
		t.Fatalf("unexpected sender/recipient: %x %x", msg.Sender, msg.Recipient)
	}
}

func TestDecodeWireMessageTooShort(t *testing.T) {
	if _, err := decodeWireMessage(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for short message")
	}
}

func TestDecodeOffchainLookup(t *testing.T) {
	args := abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("string[]")},
		{Type: mustType("bytes")},
		{Type: mustType("bytes4")},
		{Type: mustType("bytes")},
	}
	sender := common.HexToAddress("0x1234000000000000000000000000000000abcd")
	urls := []string{"https://example.com/{sender}/{data}"}
	callData := []byte{0x01, 0x02, 0x03}
	var callback [4]byte
	copy(callback[:], []byte{0xde, 0xad, 0xbe, 0xef})
	extra := []byte{0x09}

	packed, err := args.Pack(sender, urls, callData, callback, extra)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	data := append(append([]byte{}, offchainLookupSelector[:]...), packed...)

	lookup, err := decodeOffchainLookup(data)
	if err != nil {
		t.Fatalf("decodeOffchainLookup: %v", err)
	}
	if !bytes.Equal(lookup.Sender, sender.Bytes()) {
		t.Fatalf("unexpected sender: %x", lookup.Sender)
	}
	if len(lookup.URLs) != 1 || lookup.URLs[0] != urls[0] {
		t.Fatalf("unexpected urls: %v", lookup.URLs)
	}
	if !bytes.Equal(lookup.CallData, callData) {
		t.Fatalf("unexpected callData: %x", lookup.CallData)
	}
}

func TestDecodeOffchainLookupBadSelector(t *testing.T) {
	if _, err := decodeOffchainLookup([]byte{0x00, 0x00, 0x00, 0x00, 0xff}); err == nil {
		t.Fatalf("expected error for wrong selector")
	}
}

func TestTagToBlockNumber(t *testing.T) {
	if tagToBlockNumber("latest") != nil {
		t.Fatalf("expected nil for latest")
	}
	if tagToBlockNumber("finalized").Int64() != -3 {
		t.Fatalf("expected -3 for finalized")
	}
	if tagToBlockNumber("safe").Int64() != -4 {
		t.Fatalf("expected -4 for safe")
	}
}
