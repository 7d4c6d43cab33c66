// Package evm implements chainadapter.ChainAdapter for EVM chains.
//
// Grounded on pkg/ethereum/client.go (ethclient wrapper, ABI pack/unpack in
// CallContract, gas-price-floor + escalation in
// SendContractTransactionWithRetry) and pkg/chain/strategy/evm_strategy.go
// / evm_observer.go (see DESIGN.md).
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hyperlane-xyz/relayer/internal/chainadapter"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Addresses groups the contract addresses configured for a chain (spec §6.4
// chains.<name>.addresses).
type Addresses struct {
	Mailbox                common.Address
	InterchainGasPaymaster common.Address
	ValidatorAnnounce      common.Address
	MerkleTreeHook         common.Address
}

// Adapter implements chainadapter.ChainAdapter against a single EVM chain.
type Adapter struct {
	domain      uint32
	client      *ethclient.Client
	chainID     *big.Int
	addrs       Addresses
	reorg       chainadapter.ReorgPeriod
	signer      *ecdsa.PrivateKey
	signerAddr  common.Address
	gasPriceCap *big.Int
	minGasPrice *big.Int

	mailbox       abi.ABI
	ism           abi.ABI
	igp           abi.ABI
	merkleHook    abi.ABI
	validatorAnn  abi.ABI
}

// Config carries the per-chain construction parameters (spec §6.4).
type Config struct {
	Domain      uint32
	RPCURL      string
	Addresses   Addresses
	ReorgPeriod chainadapter.ReorgPeriod
	SignerHex   string // optional; absent for read-only adapters
	GasPriceCap *big.Int
	MinGasPrice *big.Int
}

// New dials the RPC endpoint and parses the fixed ABI fragments.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}

	a := &Adapter{
		domain:      cfg.Domain,
		client:      client,
		chainID:     chainID,
		addrs:       cfg.Addresses,
		reorg:       cfg.ReorgPeriod,
		gasPriceCap: cfg.GasPriceCap,
		minGasPrice: cfg.MinGasPrice,
	}
	if a.minGasPrice == nil {
		a.minGasPrice = big.NewInt(0)
	}

	var parseErr error
	a.mailbox, parseErr = abi.JSON(strings.NewReader(mailboxABI))
	if parseErr != nil {
		return nil, fmt.Errorf("evm: parse mailbox abi: %w", parseErr)
	}
	a.ism, parseErr = abi.JSON(strings.NewReader(ismABI))
	if parseErr != nil {
		return nil, fmt.Errorf("evm: parse ism abi: %w", parseErr)
	}
	a.igp, parseErr = abi.JSON(strings.NewReader(igpABI))
	if parseErr != nil {
		return nil, fmt.Errorf("evm: parse igp abi: %w", parseErr)
	}
	a.merkleHook, parseErr = abi.JSON(strings.NewReader(merkleTreeHookABI))
	if parseErr != nil {
		return nil, fmt.Errorf("evm: parse merkle tree hook abi: %w", parseErr)
	}
	a.validatorAnn, parseErr = abi.JSON(strings.NewReader(validatorAnnounceABI))
	if parseErr != nil {
		return nil, fmt.Errorf("evm: parse validator announce abi: %w", parseErr)
	}

	if cfg.SignerHex != "" {
		pk, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("evm: parse signer key: %w", err)
		}
		a.signer = pk
		pub, ok := pk.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("evm: signer public key is not ECDSA")
		}
		a.signerAddr = crypto.PubkeyToAddress(*pub)
	}

	return a, nil
}

func (a *Adapter) Domain() uint32 { return a.domain }

func (a *Adapter) ReorgPeriod() chainadapter.ReorgPeriod { return a.reorg }

// FinalizedBlockHeight resolves the adapter's configured reorg period into
// an actual height: the number of the block the configured tag names
// (e.g. "finalized") when a tag is set, otherwise the tip minus the
// configured block count (0 if the tip is lower). A failed tag lookup is
// returned as a retryable error; it does not fall back to tip-minus-blocks.
func (a *Adapter) FinalizedBlockHeight(ctx context.Context) (uint64, error) {
	if a.reorg.Tag != "" {
		var blockNumArg = a.reorg.Tag
		header, err := a.client.HeaderByNumber(ctx, tagToBlockNumber(blockNumArg))
		if err != nil {
			return 0, chainadapter.Retryable("FinalizedBlockHeight", err)
		}
		return header.Number.Uint64(), nil
	}
	tip, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, chainadapter.Retryable("FinalizedBlockHeight", err)
	}
	if tip < a.reorg.Blocks {
		return 0, nil
	}
	return tip - a.reorg.Blocks, nil
}

func tagToBlockNumber(tag string) *big.Int {
	switch tag {
	case "finalized":
		return big.NewInt(-3) // rpc.FinalizedBlockNumber
	case "safe":
		return big.NewInt(-4) // rpc.SafeBlockNumber
	default:
		return nil // latest
	}
}

// FetchLogsInRange filters logs for the given event kind between
// [fromBlock, toBlock] and decodes each into the corresponding event type.
func (a *Adapter) FetchLogsInRange(ctx context.Context, kind chainadapter.EventKind, fromBlock, toBlock uint64) ([]chainadapter.LogEntry, error) {
	addr, topic, err := a.topicFor(kind)
	if err != nil {
		return nil, err
	}
	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		return nil, chainadapter.Retryable("FetchLogsInRange", err)
	}
	return a.decodeLogs(kind, logs)
}

// FetchLogsByTxHash re-derives the receipt for a single transaction and
// filters its logs for the requested event kind, used by cursors that
// short-circuit on a tx hash broadcast by a sibling indexer.
func (a *Adapter) FetchLogsByTxHash(ctx context.Context, txHash string, kind chainadapter.EventKind) ([]chainadapter.LogEntry, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, chainadapter.Retryable("FetchLogsByTxHash", err)
	}
	_, topic, err := a.topicFor(kind)
	if err != nil {
		return nil, err
	}
	var matched []types.Log
	for _, l := range receipt.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == topic {
			matched = append(matched, *l)
		}
	}
	return a.decodeLogs(kind, matched)
}

func (a *Adapter) topicFor(kind chainadapter.EventKind) (common.Address, common.Hash, error) {
	switch kind {
	case chainadapter.EventDispatch:
		return a.addrs.Mailbox, a.mailbox.Events["Dispatch"].ID, nil
	case chainadapter.EventDelivery:
		return a.addrs.Mailbox, a.mailbox.Events["Process"].ID, nil
	case chainadapter.EventGasPayment:
		return a.addrs.InterchainGasPaymaster, a.igp.Events["GasPayment"].ID, nil
	case chainadapter.EventMerkleInsertion:
		return a.addrs.MerkleTreeHook, a.merkleHook.Events["InsertedIntoTree"].ID, nil
	default:
		return common.Address{}, common.Hash{}, fmt.Errorf("evm: unknown event kind %q", kind)
	}
}

func (a *Adapter) decodeLogs(kind chainadapter.EventKind, logs []types.Log) ([]chainadapter.LogEntry, error) {
	out := make([]chainadapter.LogEntry, 0, len(logs))
	for _, l := range logs {
		meta := chainadapter.LogMeta{
			BlockHash: l.BlockHash.Hex(),
			BlockNum:  l.BlockNumber,
			LogIndex:  uint32(l.Index),
			TxHash:    l.TxHash.Hex(),
		}
		entry := chainadapter.LogEntry{Kind: kind, Meta: meta, Block: l.BlockNumber}
		switch kind {
		case chainadapter.EventDispatch:
			msg, err := decodeDispatch(l)
			if err != nil {
				return nil, fmt.Errorf("evm: decode Dispatch log: %w", err)
			}
			entry.Dispatch = &chainadapter.DispatchEvent{Message: msg}
		case chainadapter.EventGasPayment:
			var vals struct {
				DestinationDomain uint32
				GasAmount         *big.Int
				Payment           *big.Int
			}
			if err := a.igp.UnpackIntoInterface(&vals, "GasPayment", l.Data); err != nil {
				return nil, fmt.Errorf("evm: decode GasPayment log: %w", err)
			}
			entry.GasPay = &chainadapter.GasPaymentEvent{
				MessageID: l.Topics[1].Bytes(),
				GasAmount: vals.GasAmount,
				Payment:   vals.Payment,
			}
		case chainadapter.EventMerkleInsertion:
			var vals struct {
				MessageID [32]byte
				Index     uint32
			}
			if err := a.merkleHook.UnpackIntoInterface(&vals, "InsertedIntoTree", l.Data); err != nil {
				return nil, fmt.Errorf("evm: decode InsertedIntoTree log: %w", err)
			}
			entry.Merkle = &chainadapter.MerkleInsertionEvent{LeafIndex: vals.Index, MessageID: vals.MessageID[:]}
		case chainadapter.EventDelivery:
			entry.Delivery = &chainadapter.DeliveryEvent{MessageID: l.Topics[2].Bytes(), TxHash: l.TxHash.Hex()}
		}
		out = append(out, entry)
	}
	return out, nil
}

// decodeDispatch parses the Hyperlane wire-format message packed into the
// Dispatch event's non-indexed "message" field: version(1) | nonce(4) |
// origin(4) | sender(32) | destination(4) | recipient(32) | body.
func decodeDispatch(l types.Log) (*store.HyperlaneMessage, error) {
	vals := struct{ Message []byte }{}
	// The Dispatch event ABI only declares "message" as a non-indexed
	// dynamic field; unpack it directly off the log data.
	parsed, err := abi.JSON(strings.NewReader(mailboxABI))
	if err != nil {
		return nil, err
	}
	if err := parsed.UnpackIntoInterface(&vals, "Dispatch", l.Data); err != nil {
		return nil, err
	}
	return decodeWireMessage(vals.Message)
}

// decodeWireMessage parses Hyperlane's canonical message encoding:
// version(1) | nonce(4) | origin(4) | sender(32) | destination(4) |
// recipient(32) | body(remaining).
func decodeWireMessage(raw []byte) (*store.HyperlaneMessage, error) {
	const headerLen = 1 + 4 + 4 + 32 + 4 + 32
	if len(raw) < headerLen {
		return nil, fmt.Errorf("evm: wire message too short: %d bytes", len(raw))
	}
	msg := &store.HyperlaneMessage{
		Version:     raw[0],
		Nonce:       beUint32(raw[1:5]),
		Origin:      beUint32(raw[5:9]),
		Sender:      append([]byte{}, raw[9:41]...),
		Destination: beUint32(raw[41:45]),
		Recipient:   append([]byte{}, raw[45:77]...),
		Body:        append([]byte{}, raw[77:]...),
	}
	return msg, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (a *Adapter) LatestSequenceCountAndTip(ctx context.Context, kind chainadapter.EventKind) (*uint32, uint64, error) {
	tip, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, 0, chainadapter.Retryable("LatestSequenceCountAndTip", err)
	}
	if kind != chainadapter.EventMerkleInsertion {
		return nil, tip, nil
	}
	out, err := a.callView(ctx, a.addrs.MerkleTreeHook, a.merkleHook, "count")
	if err != nil {
		return nil, tip, err
	}
	count := out[0].(uint32)
	return &count, tip, nil
}

func (a *Adapter) DefaultISM(ctx context.Context) ([]byte, error) {
	out, err := a.callView(ctx, a.addrs.Mailbox, a.mailbox, "defaultIsm")
	if err != nil {
		return nil, err
	}
	addr := out[0].(common.Address)
	return addr.Bytes(), nil
}

func (a *Adapter) RecipientISM(ctx context.Context, recipient []byte) ([]byte, error) {
	out, err := a.callView(ctx, a.addrs.Mailbox, a.mailbox, "recipientIsm", common.BytesToAddress(recipient))
	if err != nil {
		return nil, err
	}
	addr := out[0].(common.Address)
	return addr.Bytes(), nil
}

func (a *Adapter) Delivered(ctx context.Context, messageID []byte) (bool, error) {
	out, err := a.callView(ctx, a.addrs.Mailbox, a.mailbox, "delivered", common.BytesToHash(messageID))
	if err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// BuildProcessTx ABI-encodes a mailbox process(metadata, message) call
// targeting this adapter's Mailbox contract.
func (a *Adapter) BuildProcessTx(ctx context.Context, rawMessage, metadata []byte) (*chainadapter.UnsignedTx, error) {
	data, err := a.mailbox.Pack("process", metadata, rawMessage)
	if err != nil {
		return nil, fmt.Errorf("evm: pack process: %w", err)
	}
	return &chainadapter.UnsignedTx{To: a.addrs.Mailbox.Hex(), Data: data}, nil
}

func (a *Adapter) Simulate(ctx context.Context, tx *chainadapter.UnsignedTx) (*chainadapter.SimResult, error) {
	to := common.HexToAddress(tx.To)
	_, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: tx.Data}, nil)
	if err != nil {
		if isRevert(err) {
			return &chainadapter.SimResult{Reverted: err.Error()}, nil
		}
		return nil, chainadapter.Retryable("Simulate", err)
	}
	return &chainadapter.SimResult{OK: true}, nil
}

func isRevert(err error) bool {
	// go-ethereum surfaces EVM reverts as *rpc.jsonError with a "revert"
	// or "execution reverted" substring rather than a distinguished type;
	// anything else (timeouts, connection errors) is treated as transient.
	msg := err.Error()
	return strings.Contains(msg, "revert") || strings.Contains(msg, "execution reverted")
}

func (a *Adapter) EstimateGas(ctx context.Context, tx *chainadapter.UnsignedTx) (uint64, *big.Int, error) {
	to := common.HexToAddress(tx.To)
	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{To: &to, Data: tx.Data})
	if err != nil {
		if isRevert(err) {
			return 0, nil, fmt.Errorf("evm: %w: %s", chainadapter.ErrSimulationReverted, err)
		}
		return 0, nil, chainadapter.Retryable("EstimateGas", err)
	}
	gasPrice, err := a.suggestGasPrice(ctx)
	if err != nil {
		return 0, nil, err
	}
	return gasLimit, gasPrice, nil
}

// suggestGasPrice floors the node's suggestion at the configured minimum
// and caps it at the configured maximum, mirroring
// pkg/ethereum/client.go's 5-Gwei floor (generalized to a per-chain
// config field, spec §6.4 transactionOverrides.minGasPrice/gasPriceCap).
func (a *Adapter) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, chainadapter.Retryable("SuggestGasPrice", err)
	}
	if a.minGasPrice != nil && price.Cmp(a.minGasPrice) < 0 {
		price = new(big.Int).Set(a.minGasPrice)
	}
	if a.gasPriceCap != nil && a.gasPriceCap.Sign() > 0 && price.Cmp(a.gasPriceCap) > 0 {
		price = new(big.Int).Set(a.gasPriceCap)
	}
	return price, nil
}

// Submit signs and eagerly broadcasts tx at the nonce and gas price chosen
// by the submitter's Inclusion stage / nonce manager; it does not wait for
// a receipt (spec §4.2: "eager; not required to wait for inclusion").
func (a *Adapter) Submit(ctx context.Context, tx *chainadapter.UnsignedTx, nonce uint64, gasPrice *big.Int) (string, error) {
	if a.signer == nil {
		return "", fmt.Errorf("evm: adapter has no signer configured")
	}
	gasLimit := uint64(500_000)
	if tx.GasLimitHint != nil && tx.GasLimitHint.Sign() > 0 {
		gasLimit = tx.GasLimitHint.Uint64()
	}
	to := common.HexToAddress(tx.To)
	raw := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, tx.Data)
	signed, err := types.SignTx(raw, types.NewEIP155Signer(a.chainID), a.signer)
	if err != nil {
		return "", fmt.Errorf("evm: sign transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		if isNonceOrUnderpriced(err) {
			return "", chainadapter.Retryable("Submit", err)
		}
		return "", fmt.Errorf("evm: send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func isNonceOrUnderpriced(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "already known")
}

func (a *Adapter) TxHashStatus(ctx context.Context, txHash string) (chainadapter.TxHashStatus, error) {
	hash := common.HexToHash(txHash)
	receipt, err := a.client.TransactionReceipt(ctx, hash)
	if err != nil {
		_, isPending, pendingErr := a.client.TransactionByHash(ctx, hash)
		if pendingErr == nil {
			if isPending {
				return chainadapter.TxHashMempool, nil
			}
		}
		return chainadapter.TxHashPendingInclusion, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return chainadapter.TxHashDropped, nil
	}
	finalized, err := a.FinalizedBlockHeight(ctx)
	if err != nil {
		return chainadapter.TxHashIncluded, nil
	}
	if receipt.BlockNumber.Uint64() <= finalized {
		return chainadapter.TxHashFinalized, nil
	}
	return chainadapter.TxHashIncluded, nil
}

func (a *Adapter) GetBalance(ctx context.Context, addr string) (*big.Int, error) {
	bal, err := a.client.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, chainadapter.Retryable("GetBalance", err)
	}
	return bal, nil
}

func (a *Adapter) ValidatorAnnounceStorageLocations(ctx context.Context, validators [][]byte) ([][]string, error) {
	addrs := make([]common.Address, len(validators))
	for i, v := range validators {
		addrs[i] = common.BytesToAddress(v)
	}
	out, err := a.callView(ctx, a.addrs.ValidatorAnnounce, a.validatorAnn, "getAnnouncedStorageLocations", addrs)
	if err != nil {
		return nil, err
	}
	return out[0].([][]string), nil
}

func (a *Adapter) BuildMultisigISM(ctx context.Context, ismAddress []byte, rawMessage []byte) ([][]byte, int, error) {
	out, err := a.callView(ctx, common.BytesToAddress(ismAddress), a.ism, "validatorsAndThreshold", rawMessage)
	if err != nil {
		return nil, 0, err
	}
	addrs := out[0].([]common.Address)
	threshold := out[1].(uint8)
	validators := make([][]byte, len(addrs))
	for i, a := range addrs {
		validators[i] = a.Bytes()
	}
	return validators, int(threshold), nil
}

func (a *Adapter) ISMModuleType(ctx context.Context, ismAddress []byte) (chainadapter.ModuleType, error) {
	out, err := a.callView(ctx, common.BytesToAddress(ismAddress), a.ism, "moduleType")
	if err != nil {
		return 0, err
	}
	return chainadapter.ModuleType(out[0].(uint8)), nil
}

func (a *Adapter) ISMRoute(ctx context.Context, ismAddress []byte, rawMessage []byte) ([]byte, error) {
	out, err := a.callView(ctx, common.BytesToAddress(ismAddress), a.ism, "route", rawMessage)
	if err != nil {
		return nil, err
	}
	return out[0].(common.Address).Bytes(), nil
}

func (a *Adapter) ISMSubModulesAndThreshold(ctx context.Context, ismAddress []byte, rawMessage []byte) ([][]byte, int, error) {
	out, err := a.callView(ctx, common.BytesToAddress(ismAddress), a.ism, "modulesAndThreshold", rawMessage)
	if err != nil {
		return nil, 0, err
	}
	addrs := out[0].([]common.Address)
	threshold := out[1].(uint8)
	subISMs := make([][]byte, len(addrs))
	for i, a := range addrs {
		subISMs[i] = a.Bytes()
	}
	return subISMs, int(threshold), nil
}

// SimulateOffchainLookup calls getOffchainVerifyInfo expecting a revert
// carrying the EIP-3668 OffchainLookup custom error, and decodes it.
// go-ethereum's CallContract surfaces revert data as a *jsonError whose
// Data field (hex-encoded) carries the ABI-encoded error payload; the
// typed RPC client used elsewhere in this adapter doesn't expose that
// field generically, so this issues the eth_call directly.
func (a *Adapter) SimulateOffchainLookup(ctx context.Context, ismAddress []byte, rawMessage []byte) (*chainadapter.OffchainLookup, error) {
	addr := common.BytesToAddress(ismAddress)
	data, err := a.ism.Pack("getOffchainVerifyInfo", rawMessage)
	if err != nil {
		return nil, fmt.Errorf("evm: pack getOffchainVerifyInfo: %w", err)
	}
	_, callErr := a.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if callErr == nil {
		return nil, fmt.Errorf("evm: getOffchainVerifyInfo did not revert (misconfigured CCIP-Read ISM)")
	}
	revertData, ok := extractRevertData(callErr)
	if !ok {
		return nil, fmt.Errorf("evm: could not extract revert data from getOffchainVerifyInfo: %w", callErr)
	}
	return decodeOffchainLookup(revertData)
}

// revertDataProvider matches the optional ErrorData() method go-ethereum's
// rpc.jsonError (and compatible providers) expose on call-revert errors.
type revertDataProvider interface {
	ErrorData() interface{}
}

func extractRevertData(err error) ([]byte, bool) {
	rd, ok := err.(revertDataProvider)
	if !ok {
		return nil, false
	}
	switch v := rd.ErrorData().(type) {
	case string:
		b := common.FromHex(v)
		return b, len(b) > 0
	case []byte:
		return v, len(v) > 0
	default:
		return nil, false
	}
}

// decodeOffchainLookup parses the ABI-encoded OffchainLookup(address,
// string[], bytes, bytes4, bytes) custom error: 4-byte selector followed
// by (sender address, urls string[], callData bytes, callbackFunction
// bytes4, extraData bytes).
func decodeOffchainLookup(data []byte) (*chainadapter.OffchainLookup, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("evm: revert data too short for OffchainLookup")
	}
	var selector [4]byte
	copy(selector[:], data[:4])
	if selector != offchainLookupSelector {
		return nil, fmt.Errorf("evm: revert selector %x is not OffchainLookup", selector)
	}

	args := abi.Arguments{
		{Type: mustType("address")},
		{Type: mustType("string[]")},
		{Type: mustType("bytes")},
		{Type: mustType("bytes4")},
		{Type: mustType("bytes")},
	}
	values, err := args.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("evm: unpack OffchainLookup: %w", err)
	}
	return &chainadapter.OffchainLookup{
		Sender:   values[0].(common.Address).Bytes(),
		URLs:     values[1].([]string),
		CallData: values[2].([]byte),
	}, nil
}

func mustType(s string) abi.Type {
	t, err := abi.NewType(s, "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// GetProof reads the merkle-tree-hook's current 32-level sibling branch and
// returns the proof path for leafIndex. Hyperlane's on-chain hook is an
// incremental (Solidity-library) tree; historic per-checkpoint proofs
// require either an archive node or the deprecated subgraph, so this
// implementation serves proofs against the *current* tree only, which is
// sufficient once the checkpoint index has been reached by the hook's
// count (spec §9: treated as an adapter capability, not core logic).
func (a *Adapter) GetProof(ctx context.Context, merkleTreeHook []byte, leafIndex uint32, checkpointIndex uint32) ([][]byte, error) {
	out, err := a.callView(ctx, common.BytesToAddress(merkleTreeHook), a.merkleHook, "tree")
	if err != nil {
		return nil, err
	}
	branch := out[0].([32][32]byte)
	proof := make([][]byte, 32)
	for i := 0; i < 32; i++ {
		b := make([]byte, 32)
		copy(b, branch[i][:])
		proof[i] = b
	}
	return proof, nil
}

func (a *Adapter) callView(ctx context.Context, addr common.Address, parsed abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", method, err)
	}
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("evm: %s reverted: %w", method, err)
		}
		return nil, chainadapter.Retryable(method, err)
	}
	out, err := parsed.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s: %w", method, err)
	}
	return out, nil
}

var _ = time.Second // keeps the time import in use; the adapter sets no timeouts of its own
