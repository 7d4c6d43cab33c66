// Copyright 2026 Hyperlane Relayer Contributors

package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/chainadapter/evm"
	"github.com/hyperlane-xyz/relayer/internal/gaspolicy"
)

// Topology is the parsed chains.yaml (spec.md §6.4): one entry per chain
// plus the gas payment enforcement policy list shared across every
// destination.
type Topology struct {
	Chains                map[string]ChainConfig    `yaml:"chains"`
	GasPaymentEnforcement []GasPolicyConfig         `yaml:"gasPaymentEnforcement"`
	Whitelist             []MatchingListEntryConfig `yaml:"whitelist"`
	Blacklist             []MatchingListEntryConfig `yaml:"blacklist"`
}

// ChainConfig is one chains.<name> entry.
type ChainConfig struct {
	Protocol   string           `yaml:"protocol"`
	Connection ConnectionConfig `yaml:"connection"`
	Addresses  AddressesConfig  `yaml:"addresses"`
	Signer     SignerConfig     `yaml:"signer"`
	Index      IndexConfig      `yaml:"index"`

	// ReorgPeriod is either a block count ("12") or a tag ("finalized",
	// "safe", "latest"); parsed in ReorgPeriod() below.
	ReorgPeriod    yaml.Node `yaml:"reorgPeriod"`
	FinalityBlocks uint64    `yaml:"finalityBlocks"`

	TransactionOverrides TransactionOverridesConfig `yaml:"transactionOverrides"`

	// Domain is the Hyperlane domain id this chain name maps to; spec.md
	// §6.4 leaves the exact key name open, this loader requires it so
	// every other package's uint32-domain APIs have something to key on.
	Domain uint32 `yaml:"domain"`
}

// ConnectionConfig carries the chain's RPC endpoints. Only RPCUrls is
// consumed today; WSUrl is accepted so chains.yaml can be written either
// way without failing to parse.
type ConnectionConfig struct {
	RPCUrls []string `yaml:"rpcUrls"`
	WSUrl   string   `yaml:"wsUrl"`
}

type AddressesConfig struct {
	Mailbox                string `yaml:"mailbox"`
	InterchainGasPaymaster string `yaml:"interchainGasPaymaster"`
	ValidatorAnnounce      string `yaml:"validatorAnnounce"`
	MerkleTreeHook         string `yaml:"merkleTreeHook"`
}

type SignerConfig struct {
	Type     string `yaml:"type"` // "hexKey" | "none"
	Key      string `yaml:"key"`
	Mnemonic string `yaml:"mnemonic"`
}

type IndexConfig struct {
	From  uint64 `yaml:"from"`
	Chunk uint64 `yaml:"chunk"`
	Mode  string `yaml:"mode"` // "sequence" | "block"
}

type TransactionOverridesConfig struct {
	GasPriceCap          string `yaml:"gasPriceCap"`
	MinGasPrice          string `yaml:"minGasPrice"`
	MaxFeePerGas         string `yaml:"maxFeePerGas"`
	MaxPriorityFeePerGas string `yaml:"maxPriorityFeePerGas"`
}

// GasPolicyConfig is one entry of the ordered gasPaymentEnforcement list
// (spec.md §6.4), shaped to construct a gaspolicy.Policy directly.
type GasPolicyConfig struct {
	Type           string                    `yaml:"type"` // "none" | "minimum" | "onChainFeeQuoting"
	MinimumPayment string                    `yaml:"minimum"`
	GasFraction    float64                   `yaml:"gasFraction"`
	Matching       []MatchingListEntryConfig `yaml:"matchingList"`
}

// MatchingListEntryConfig is one entry of a matching list; field values
// are hex addresses or domain ids, CSV-style per spec.md §6.4.
type MatchingListEntryConfig struct {
	OriginDomains      []uint32 `yaml:"originDomain"`
	DestinationDomains []uint32 `yaml:"destinationDomain"`
	SenderAddresses    []string `yaml:"senderAddress"`
	RecipientAddresses []string `yaml:"recipientAddress"`
}

// LoadTopology reads and parses the chain-topology file at path.
func LoadTopology(path string) (*Topology, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read chains file %s: %w", path, err)
	}
	var top Topology
	if err := yaml.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("config: parse chains file %s: %w", path, err)
	}
	return &top, nil
}

// ReorgPeriod parses the chains.<name>.reorgPeriod field, which is either
// a bare integer block count or one of the named tags.
func (c ChainConfig) ReorgPeriod() (chainadapter.ReorgPeriod, error) {
	if c.ReorgPeriod.Kind == 0 {
		return chainadapter.ReorgPeriod{}, nil
	}
	var asString string
	if err := c.ReorgPeriod.Decode(&asString); err == nil {
		switch asString {
		case "finalized", "safe", "latest", "":
			return chainadapter.ReorgPeriod{Tag: asString}, nil
		}
		var blocks uint64
		if _, err := fmt.Sscanf(asString, "%d", &blocks); err == nil {
			return chainadapter.ReorgPeriod{Blocks: blocks}, nil
		}
		return chainadapter.ReorgPeriod{}, fmt.Errorf("config: invalid reorgPeriod %q", asString)
	}
	var asInt uint64
	if err := c.ReorgPeriod.Decode(&asInt); err == nil {
		return chainadapter.ReorgPeriod{Blocks: asInt}, nil
	}
	return chainadapter.ReorgPeriod{}, fmt.Errorf("config: reorgPeriod must be an integer or a tag")
}

func parseBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid integer %q", s)
	}
	return v, nil
}

// EVMAdapterConfig builds an evm.Config for chains whose protocol is
// "ethereum", the only chain adapter implementation this relayer ships.
func (c ChainConfig) EVMAdapterConfig() (evm.Config, error) {
	if len(c.Connection.RPCUrls) == 0 {
		return evm.Config{}, fmt.Errorf("config: chain %d: connection.rpcUrls must not be empty", c.Domain)
	}
	reorg, err := c.ReorgPeriod()
	if err != nil {
		return evm.Config{}, err
	}
	gasPriceCap, err := parseBigInt(c.TransactionOverrides.GasPriceCap)
	if err != nil {
		return evm.Config{}, err
	}
	minGasPrice, err := parseBigInt(c.TransactionOverrides.MinGasPrice)
	if err != nil {
		return evm.Config{}, err
	}

	return evm.Config{
		Domain: c.Domain,
		RPCURL: c.Connection.RPCUrls[0],
		Addresses: evm.Addresses{
			Mailbox:                common.HexToAddress(c.Addresses.Mailbox),
			InterchainGasPaymaster: common.HexToAddress(c.Addresses.InterchainGasPaymaster),
			ValidatorAnnounce:      common.HexToAddress(c.Addresses.ValidatorAnnounce),
			MerkleTreeHook:         common.HexToAddress(c.Addresses.MerkleTreeHook),
		},
		ReorgPeriod: reorg,
		SignerHex:   strings.TrimPrefix(c.Signer.Key, "0x"),
		GasPriceCap: gasPriceCap,
		MinGasPrice: minGasPrice,
	}, nil
}

// MerkleTreeHookBytes returns the configured merkle-tree-hook address in
// the raw-bytes form internal/indexer.StoreSink and internal/store key
// namespacing expect.
func (c ChainConfig) MerkleTreeHookBytes() []byte {
	return parseAddress(c.Addresses.MerkleTreeHook)
}

func parseAddress(s string) []byte {
	if s == "" {
		return nil
	}
	return common.HexToAddress(s).Bytes()
}

func (m MatchingListEntryConfig) toMatch() gaspolicy.Match {
	match := gaspolicy.Match{
		Origins:      m.OriginDomains,
		Destinations: m.DestinationDomains,
	}
	for _, s := range m.SenderAddresses {
		match.Senders = append(match.Senders, parseAddress(s))
	}
	for _, r := range m.RecipientAddresses {
		match.Recipients = append(match.Recipients, parseAddress(r))
	}
	return match
}

func toMatchingList(entries []MatchingListEntryConfig) gaspolicy.MatchingList {
	list := make(gaspolicy.MatchingList, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.toMatch())
	}
	return list
}

// Policies builds the ordered gaspolicy.Policy list the enforcer
// evaluates, in the same order as gasPaymentEnforcement in chains.yaml.
func (t *Topology) Policies() ([]gaspolicy.Policy, error) {
	policies := make([]gaspolicy.Policy, 0, len(t.GasPaymentEnforcement))
	for i, p := range t.GasPaymentEnforcement {
		var kind gaspolicy.PolicyKind
		switch p.Type {
		case "none", "":
			kind = gaspolicy.KindNone
		case "minimum":
			kind = gaspolicy.KindMinimum
		case "onChainFeeQuoting":
			kind = gaspolicy.KindOnChainFeeQuoting
		default:
			return nil, fmt.Errorf("config: gasPaymentEnforcement[%d]: unknown type %q", i, p.Type)
		}
		minPayment, err := parseBigInt(p.MinimumPayment)
		if err != nil {
			return nil, fmt.Errorf("config: gasPaymentEnforcement[%d]: %w", i, err)
		}
		policies = append(policies, gaspolicy.Policy{
			Matching:       toMatchingList(p.Matching),
			Kind:           kind,
			MinimumPayment: minPayment,
			GasFraction:    p.GasFraction,
		})
	}
	return policies, nil
}

// WhitelistMatchingList and BlacklistMatchingList expose the top-level
// allow/deny lists spec.md §6.4 reserves outside gasPaymentEnforcement.
func (t *Topology) WhitelistMatchingList() gaspolicy.MatchingList { return toMatchingList(t.Whitelist) }
func (t *Topology) BlacklistMatchingList() gaspolicy.MatchingList { return toMatchingList(t.Blacklist) }
