// Package chain provides the in-memory runtime harness: a thin facade over
// a WASM contract execution engine that stands in for the contracts-pallet
// bare-call API.
package chain

import (
	"math/big"

	"github.com/kevin-valerio/phink/events"
)

// Event is a single contract-emitted event. No host import deposits events,
// so Bridge.Call always returns an empty Events list.
type Event struct {
	Topics []string
	Data   []byte
}

// FullContractResponse is the per-call outcome: either a successful result
// or a dispatch error, plus gas/storage-deposit fields, events, and the
// debug buffer coverage beacons travel in. Gas and storage deposit are not
// measured: GasConsumed is always 0 and StorageDeposit is 0 on every call
// that reaches the contract.
type FullContractResponse struct {
	Result         []byte
	Err            error
	GasConsumed    uint64
	StorageDeposit *big.Int
	Events         []Event
	Debug          []byte
}

// ErrContractTrapped is the dispatch error reported when invoking the WASM
// module's call export returns any error (a panic, an unreachable
// instruction, a cancelled context); there is no gas metering, matching the
// reference's literal "ContractTrapped" dispatch error.
var ErrContractTrapped = errContractTrapped{}

type errContractTrapped struct{}

func (errContractTrapped) Error() string { return "ContractTrapped" }

// errContractReverted is the dispatch error reported when the contract
// returns normally but sets the revert flag on seal_return, carrying the
// returned data along for diagnostics.
type errContractReverted struct {
	data []byte
}

func (e errContractReverted) Error() string { return "ContractReverted" }

// Data returns the bytes the contract passed to seal_return alongside the
// revert flag.
func (e errContractReverted) Data() []byte { return e.data }

// CallExecuted is published after every Bridge.Call, independent of outcome,
// for ambient observability (coverage/bug packages subscribe as needed).
type CallExecuted struct {
	Origin   uint8
	Payload  []byte
	Response FullContractResponse
}

// callExecutedEmitter is the process-wide emitter backing CallExecuted,
// following the teacher's events.EventEmitter pattern.
var callExecutedEmitter events.EventEmitter[CallExecuted]

// SubscribeCallExecuted registers a callback invoked after every call.
func SubscribeCallExecuted(cb events.EventHandler[CallExecuted]) {
	callExecutedEmitter.Subscribe(cb)
}
