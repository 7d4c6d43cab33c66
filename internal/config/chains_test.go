package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperlane-xyz/relayer/internal/gaspolicy"
)

const sampleTopology = `
chains:
  ethereum:
    domain: 1
    protocol: ethereum
    connection:
      rpcUrls:
        - https://eth.example.com
    addresses:
      mailbox: "0x0000000000000000000000000000000000000001"
      interchainGasPaymaster: "0x0000000000000000000000000000000000000002"
      validatorAnnounce: "0x0000000000000000000000000000000000000003"
      merkleTreeHook: "0x0000000000000000000000000000000000000004"
    signer:
      type: hexKey
      key: "0xabc123"
    index:
      from: 1000
      chunk: 500
      mode: sequence
    reorgPeriod: finalized
    transactionOverrides:
      gasPriceCap: "100000000000"
  polygon:
    domain: 137
    protocol: ethereum
    connection:
      rpcUrls:
        - https://polygon.example.com
    addresses:
      mailbox: "0x0000000000000000000000000000000000000005"
    signer:
      type: none
    reorgPeriod: 12
gasPaymentEnforcement:
  - type: minimum
    minimum: "1000000"
    matchingList:
      - destinationDomain: [137]
  - type: none
whitelist:
  - originDomain: [1]
`

func writeTempTopology(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	if err := os.WriteFile(path, []byte(sampleTopology), 0o600); err != nil {
		t.Fatalf("write temp topology: %v", err)
	}
	return path
}

func TestLoadTopologyParsesChainsAndPolicies(t *testing.T) {
	top, err := LoadTopology(writeTempTopology(t))
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	if len(top.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(top.Chains))
	}
	eth, ok := top.Chains["ethereum"]
	if !ok {
		t.Fatalf("expected ethereum chain entry")
	}
	if eth.Domain != 1 {
		t.Fatalf("expected domain 1, got %d", eth.Domain)
	}
	if eth.Index.Chunk != 500 {
		t.Fatalf("expected chunk 500, got %d", eth.Index.Chunk)
	}

	reorg, err := eth.ReorgPeriod()
	if err != nil {
		t.Fatalf("ReorgPeriod: %v", err)
	}
	if reorg.Tag != "finalized" {
		t.Fatalf("expected finalized tag, got %+v", reorg)
	}

	polygon := top.Chains["polygon"]
	polygonReorg, err := polygon.ReorgPeriod()
	if err != nil {
		t.Fatalf("ReorgPeriod: %v", err)
	}
	if polygonReorg.Blocks != 12 {
		t.Fatalf("expected 12 block reorg period, got %+v", polygonReorg)
	}
}

func TestEVMAdapterConfigBuildsAddressesAndOverrides(t *testing.T) {
	top, err := LoadTopology(writeTempTopology(t))
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	eth := top.Chains["ethereum"]
	cfg, err := eth.EVMAdapterConfig()
	if err != nil {
		t.Fatalf("EVMAdapterConfig: %v", err)
	}
	if cfg.Domain != 1 {
		t.Fatalf("expected domain 1, got %d", cfg.Domain)
	}
	if cfg.RPCURL != "https://eth.example.com" {
		t.Fatalf("unexpected rpc url: %s", cfg.RPCURL)
	}
	if cfg.GasPriceCap == nil || cfg.GasPriceCap.String() != "100000000000" {
		t.Fatalf("expected gas price cap 100000000000, got %v", cfg.GasPriceCap)
	}
}

func TestEVMAdapterConfigRejectsMissingRPCUrls(t *testing.T) {
	cfg := ChainConfig{Domain: 9}
	if _, err := cfg.EVMAdapterConfig(); err == nil {
		t.Fatalf("expected error for missing rpcUrls")
	}
}

func TestPoliciesBuildsOrderedGasPolicyList(t *testing.T) {
	top, err := LoadTopology(writeTempTopology(t))
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	policies, err := top.Policies()
	if err != nil {
		t.Fatalf("Policies: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].Kind != gaspolicy.KindMinimum {
		t.Fatalf("expected first policy to be minimum, got %s", policies[0].Kind)
	}
	if policies[0].MinimumPayment == nil || policies[0].MinimumPayment.String() != "1000000" {
		t.Fatalf("expected minimum payment 1000000, got %v", policies[0].MinimumPayment)
	}
	if policies[1].Kind != gaspolicy.KindNone {
		t.Fatalf("expected second policy to be none, got %s", policies[1].Kind)
	}
}

func TestWhitelistMatchingListMatchesConfiguredOrigin(t *testing.T) {
	top, err := LoadTopology(writeTempTopology(t))
	if err != nil {
		t.Fatalf("LoadTopology: %v", err)
	}
	list := top.WhitelistMatchingList()
	if len(list) != 1 {
		t.Fatalf("expected 1 whitelist entry, got %d", len(list))
	}
	if len(list[0].Origins) != 1 || list[0].Origins[0] != 1 {
		t.Fatalf("expected origin domain 1, got %v", list[0].Origins)
	}
}
