// Copyright 2026 Hyperlane Relayer Contributors

package evm

// Minimal ABI fragments for the calls the relayer core actually makes.
// Mirrors pkg/ethereum/client.go's CallContract/SendContractTransaction
// idiom of parsing a narrow ABI string per call site rather than a full
// generated binding.
const (
	mailboxABI = `[
		{"type":"function","name":"recipientIsm","inputs":[{"name":"_recipient","type":"address"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
		{"type":"function","name":"defaultIsm","inputs":[],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
		{"type":"function","name":"delivered","inputs":[{"name":"_id","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
		{"type":"function","name":"process","inputs":[{"name":"_metadata","type":"bytes"},{"name":"_message","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},
		{"type":"event","name":"Dispatch","inputs":[{"name":"sender","type":"address","indexed":true},{"name":"destination","type":"uint32","indexed":true},{"name":"recipient","type":"bytes32","indexed":true},{"name":"message","type":"bytes"}]},
		{"type":"event","name":"Process","inputs":[{"name":"origin","type":"uint32","indexed":true},{"name":"sender","type":"bytes32","indexed":true},{"name":"recipient","type":"address","indexed":true}]}
	]`

	ismABI = `[
		{"type":"function","name":"moduleType","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
		{"type":"function","name":"validatorsAndThreshold","inputs":[{"name":"_message","type":"bytes"}],"outputs":[{"name":"","type":"address[]"},{"name":"","type":"uint8"}],"stateMutability":"view"},
		{"type":"function","name":"route","inputs":[{"name":"_message","type":"bytes"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"},
		{"type":"function","name":"modulesAndThreshold","inputs":[{"name":"_message","type":"bytes"}],"outputs":[{"name":"","type":"address[]"},{"name":"","type":"uint8"}],"stateMutability":"view"},
		{"type":"function","name":"getOffchainVerifyInfo","inputs":[{"name":"_message","type":"bytes"}],"outputs":[],"stateMutability":"view"}
	]`

	igpABI = `[
		{"type":"event","name":"GasPayment","inputs":[{"name":"messageId","type":"bytes32","indexed":true},{"name":"destinationDomain","type":"uint32","indexed":false},{"name":"gasAmount","type":"uint256","indexed":false},{"name":"payment","type":"uint256","indexed":false}]}
	]`

	merkleTreeHookABI = `[
		{"type":"event","name":"InsertedIntoTree","inputs":[{"name":"messageId","type":"bytes32","indexed":false},{"name":"index","type":"uint32","indexed":false}]},
		{"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint32"}],"stateMutability":"view"},
		{"type":"function","name":"root","inputs":[],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view"},
		{"type":"function","name":"tree","inputs":[],"outputs":[{"name":"_branch","type":"bytes32[32]"},{"name":"_count","type":"uint256"}],"stateMutability":"view"}
	]`

	validatorAnnounceABI = `[
		{"type":"function","name":"getAnnouncedStorageLocations","inputs":[{"name":"_validators","type":"address[]"}],"outputs":[{"name":"","type":"string[][]"}],"stateMutability":"view"}
	]`
)

// offchainLookupSelector is keccak256("OffchainLookup(address,string[],bytes,bytes4,bytes)")[:4],
// the custom error CCIP-Read ISMs revert with (EIP-3668).
var offchainLookupSelector = [4]byte{0x55, 0x6f, 0x18, 0x30}
