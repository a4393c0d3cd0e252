package chain

import (
	"context"
	"math/big"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// hostEnvironment is the per-call state the instantiated WASM module's host
// imports close over: storage (the calling Bridge's genesis storage map
// itself, not a copy, so writes persist across calls on the same Bridge
// value), the call's input payload, the debug buffer
// coverage beacons are written into, the caller/value broadcast into the
// 32-byte account id convention, and the eventual return buffer.
type hostEnvironment struct {
	storage map[[32]byte][]byte
	input   []byte
	debug   []byte
	events  []Event

	origin uint8
	value  *big.Int

	returned bool
	result   []byte
	reverted bool
	trapped  bool
}

func storageKey(raw []byte) [32]byte {
	var key [32]byte
	copy(key[:], raw)
	return key
}

// envRef is the indirection the host module's closures read through. A
// single "env" host module is registered once per Bridge (wazero allows a
// module name to be instantiated only once per runtime); envRef.current is
// repointed at a fresh hostEnvironment before every guest instantiation, so
// one host module serves every call a Bridge (and its clones) makes.
type envRef struct {
	current *hostEnvironment
}

// buildHostModule registers the "env" host imports the instrumented contract
// (or, in tests, a synthetic fixture) calls into. This ABI is a from-scratch
// realization of the contracts-pallet chain extension surface (deploy/call,
// storage get/set, debug_message, value_transferred, caller, seal_return) —
// narrowed to what the instrumentation and bug-detection paths actually
// exercise, not a full pallet_contracts reimplementation.
func buildHostModule(rt wazero.Runtime, ref *envRef) wazero.HostModuleBuilder {
	builder := rt.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			env := ref.current
			if data, ok := m.Memory().Read(ptr, length); ok {
				env.debug = append(env.debug, data...)
			}
		}).Export("debug_message")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, valPtr, valLen uint32) {
			env := ref.current
			key, ok := m.Memory().Read(keyPtr, keyLen)
			if !ok {
				return
			}
			val, ok := m.Memory().Read(valPtr, valLen)
			if !ok {
				return
			}
			buf := make([]byte, len(val))
			copy(buf, val)
			env.storage[storageKey(key)] = buf
		}).Export("set_storage")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, outPtr, outLenPtr uint32) uint32 {
			env := ref.current
			key, ok := m.Memory().Read(keyPtr, keyLen)
			if !ok {
				return 1
			}
			val, found := env.storage[storageKey(key)]
			if !found {
				return 1
			}
			if !m.Memory().Write(outPtr, val) {
				return 1
			}
			lenBytes := make([]byte, 4)
			le32(lenBytes, uint32(len(val)))
			if !m.Memory().Write(outLenPtr, lenBytes) {
				return 1
			}
			return 0
		}).Export("get_storage")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, destPtr, destLenPtr uint32) {
			env := ref.current
			if !m.Memory().Write(destPtr, env.input) {
				return
			}
			lenBytes := make([]byte, 4)
			le32(lenBytes, uint32(len(env.input)))
			m.Memory().Write(destLenPtr, lenBytes)
		}).Export("input_copy")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, flags, ptr, length uint32) {
			env := ref.current
			data, ok := m.Memory().Read(ptr, length)
			if !ok {
				return
			}
			env.returned = true
			env.result = append([]byte(nil), data...)
			// flags bit 0 signals a revert in the contracts-pallet convention;
			// surfaced to the caller via FullContractResponse.Err, not a trap.
			env.reverted = flags&1 != 0
		}).Export("seal_return")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, outPtr uint32) {
			env := ref.current
			buf := make([]byte, 16)
			env.value.FillBytes(buf)
			reverse(buf)
			m.Memory().Write(outPtr, buf)
		}).Export("value_transferred")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, outPtr uint32) {
			env := ref.current
			var id [32]byte
			for i := range id {
				id[i] = env.origin
			}
			m.Memory().Write(outPtr, id[:])
		}).Export("caller")

	return builder
}

func le32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
