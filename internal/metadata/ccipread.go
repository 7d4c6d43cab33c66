// Copyright 2026 Hyperlane Relayer Contributors

package metadata

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// offchainResponse is the gateway's expected JSON response shape, a single
// hex-encoded data field.
type offchainResponse struct {
	Data string `json:"data"`
}

// buildCCIPRead implements spec.md §4.5's CCIP-Read (EIP-3668) flow.
//
// Grounded on
// original_source/rust/main/agents/relayer/src/msg/metadata/ccip_read/mod.rs:
// getOffchainVerifyInfo is expected to revert carrying an OffchainLookup
// custom error; the builder attempts each returned URL in order, POSTing a
// JSON body when the URL lacks a "{data}" placeholder and GETting the
// interpolated URL otherwise, returning the first response's decoded data
// field as metadata.
func (b *Builder) buildCCIPRead(ctx context.Context, dest chainadapter.ChainAdapter, ismAddress []byte, message *store.HyperlaneMessage) ([]byte, error) {
	rawMessage := encodeMessage(message)
	info, err := dest.SimulateOffchainLookup(ctx, ismAddress, rawMessage)
	if err != nil {
		return nil, failedToBuild("offchain_lookup", err)
	}
	if len(info.URLs) == 0 {
		return nil, ErrCouldNotFetch
	}

	signature, err := b.generateCCIPReadSignature(info, message)
	if err != nil {
		return nil, failedToBuild("ccip_read_signature", err)
	}

	senderHex := common.BytesToAddress(info.Sender).Hex()
	dataHex := "0x" + hex.EncodeToString(info.CallData)

	client := b.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	for _, url := range info.URLs {
		interpolated := strings.ReplaceAll(strings.ReplaceAll(url, "{sender}", senderHex), "{data}", dataHex)

		var resp *http.Response
		var err error
		if !strings.Contains(url, "{data}") {
			resp, err = postCCIPRead(ctx, client, interpolated, senderHex, dataHex, signature)
		} else {
			resp, err = getCCIPRead(ctx, client, interpolated)
		}
		if err != nil {
			continue // try the next URL
		}

		var parsed offchainResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}
		data := strings.TrimPrefix(parsed.Data, "0x")
		decoded, hexErr := hex.DecodeString(data)
		if hexErr != nil {
			continue
		}
		return decoded, nil
	}
	return nil, ErrCouldNotFetch
}

func getCCIPRead(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

func postCCIPRead(ctx context.Context, client *http.Client, url, sender, data, signature string) (*http.Response, error) {
	body := map[string]string{"sender": sender, "data": data}
	if signature != "" {
		body["signature"] = signature
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}

// generateCCIPReadSignature produces the optional EIP-712 authentication
// signature proving the relayer authorized this lookup call, matching
// CcipReadIsmMetadataBuilder::generate_signature's domain ("Hyperlane
// CCIPReadAuth", version "1") and Auth{data,sender} struct. Returns "" if
// no signer is configured.
//
// The chain ID used is the destination domain ID, not a real EVM chain
// ID; this mirrors a known discrepancy in the original implementation
// (marked there as "TODO: Get the right chain ID, not domain ID") rather
// than silently diverging from the gateway-side verification it pairs
// with.
func (b *Builder) generateCCIPReadSignature(info *chainadapter.OffchainLookup, message *store.HyperlaneMessage) (string, error) {
	if b.Signer == nil {
		return "", nil
	}
	sender := common.BytesToAddress(info.Sender)
	digest := ccipReadAuthDigest(sender, info.CallData, uint64(message.Destination))
	sig, err := crypto.Sign(digest.Bytes(), b.Signer)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

var (
	eip712DomainTypeHash = crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	ccipReadAuthTypeHash = crypto.Keccak256([]byte("Auth(bytes data,address sender)"))
	ccipReadDomainName   = crypto.Keccak256([]byte("Hyperlane CCIPReadAuth"))
	ccipReadVersion      = crypto.Keccak256([]byte("1"))
)

func ccipReadAuthDigest(verifyingContract common.Address, callData []byte, chainID uint64) common.Hash {
	var chainIDBuf [32]byte
	binary.BigEndian.PutUint64(chainIDBuf[24:], chainID)

	domainSeparator := crypto.Keccak256Hash(
		eip712DomainTypeHash,
		ccipReadDomainName,
		ccipReadVersion,
		chainIDBuf[:],
		pad32(verifyingContract.Bytes()),
	)

	dataHash := crypto.Keccak256(callData)
	structHash := crypto.Keccak256Hash(
		ccipReadAuthTypeHash,
		dataHash,
		pad32(verifyingContract.Bytes()),
	)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}
