package chain

import (
	"context"
	"encoding/hex"
	"math/big"

	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/metadata"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"golang.org/x/crypto/blake2b"
)

// GenesisSnapshot is the immutable-after-initialization storage state a
// Bridge was deployed under. Every call operates on a clone.
type GenesisSnapshot struct {
	Storage  map[[32]byte][]byte
	CodeHash [32]byte
}

// clone deep-copies the storage map; CodeHash is a value type and copies for
// free.
func (g GenesisSnapshot) clone() GenesisSnapshot {
	storage := make(map[[32]byte][]byte, len(g.Storage))
	for k, v := range g.Storage {
		buf := make([]byte, len(v))
		copy(buf, v)
		storage[k] = buf
	}
	return GenesisSnapshot{Storage: storage, CodeHash: g.CodeHash}
}

// Bridge is the deployable contract handle: genesis storage snapshot,
// instantiated contract address, the raw metadata JSON, and the path it was
// loaded from.
type Bridge struct {
	Genesis         GenesisSnapshot
	ContractAddress [32]byte
	MetadataJSON    string
	MetadataPath    string

	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	hostEnv  *envRef
}

// Close releases the underlying wazero runtime. Safe to call once the last
// clone derived from this Bridge is done executing.
func (b *Bridge) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

// Clone deep-copies the genesis snapshot only; the compiled module and
// runtime are immutable shared resources, safe to reuse across clones.
func (b *Bridge) Clone() *Bridge {
	clone := *b
	clone.Genesis = b.Genesis.clone()
	return &clone
}

// Genesis builds a fresh Bridge: compiles the WASM module, deploys it with
// either cfg.ConstructorPayload or the metadata crafter's default, and
// captures the resulting storage as the immutable genesis.
func Genesis(ctx context.Context, wasm []byte, reader *metadata.Reader, cfg config.Contract) (*Bridge, error) {
	cfg = cfg.WithDefaults()

	runtimeConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(err, "unable to compile contract WASM module")
	}

	codeHash := blake2b.Sum256(wasm)

	payload, err := constructorPayload(reader, cfg)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	ref := &envRef{}
	if _, err := buildHostModule(rt, ref).Instantiate(ctx); err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(err, "unable to instantiate host environment")
	}

	env := &hostEnvironment{
		storage: make(map[[32]byte][]byte),
		input:   payload,
		value:   big.NewInt(0),
		origin:  0,
	}
	ref.current = env

	if err := runExportedFunction(ctx, rt, compiled, "deploy"); err != nil {
		rt.Close(ctx)
		return nil, errors.Wrap(err, "constructor call failed")
	}

	if len(env.storage) == 0 {
		rt.Close(ctx)
		return nil, errors.New("deployment left no contract storage — likely a malformed constructor payload")
	}

	bridge := &Bridge{
		Genesis: GenesisSnapshot{
			Storage:  env.storage,
			CodeHash: codeHash,
		},
		ContractAddress: codeHash,
		MetadataJSON:    reader.Raw,
		MetadataPath:    reader.Path,
		runtime:         rt,
		compiled:        compiled,
		hostEnv:         ref,
	}

	return bridge, nil
}

func constructorPayload(reader *metadata.Reader, cfg config.Contract) ([]byte, error) {
	if cfg.ConstructorPayload != "" {
		decoded, err := decodeHex(cfg.ConstructorPayload)
		if err != nil {
			return nil, errors.Wrap(err, "malformed constructor payload in configuration")
		}
		return decoded, nil
	}
	return reader.GetConstructorPayload()
}

func runExportedFunction(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule, name string) error {
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return errors.Wrapf(err, "unable to instantiate contract module to run %q", name)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(name)
	if fn == nil {
		return errors.Errorf("contract module does not export a %q entrypoint", name)
	}
	_, err = fn.Call(ctx)
	return err
}

// Call dispatches payload from origin with the given transferred value. It
// has a value receiver, but the copied Bridge shares its Genesis.Storage map
// with the Bridge it was called on: storage writes land in that Bridge's
// genesis, so successive calls on one Bridge see each other's effects.
// Isolation between iterations comes from calling Clone first. cfg's gas,
// proof-size and storage-deposit limits are not applied to the call.
func (b Bridge) Call(ctx context.Context, payload []byte, origin uint8, value *big.Int, cfg config.Contract) FullContractResponse {
	cfg = cfg.WithDefaults()

	env := &hostEnvironment{
		storage: b.Genesis.Storage,
		input:   payload,
		value:   value,
		origin:  origin,
	}
	b.hostEnv.current = env

	mod, err := b.runtime.InstantiateModule(ctx, b.compiled, wazero.NewModuleConfig())
	if err != nil {
		return FullContractResponse{Err: errors.Wrap(err, "unable to instantiate contract module")}
	}
	defer mod.Close(ctx)

	call := mod.ExportedFunction("call")
	if call == nil {
		return FullContractResponse{Err: errors.New("contract module does not export a call entrypoint")}
	}

	response := FullContractResponse{
		StorageDeposit: big.NewInt(0),
		Events:         env.events,
	}

	if _, err := call.Call(ctx); err != nil {
		response.Err = ErrContractTrapped
		response.Debug = env.debug
		callExecutedEmitter.Publish(CallExecuted{Origin: origin, Payload: payload, Response: response})
		return response
	}

	if env.reverted {
		response.Err = errContractReverted{data: env.result}
	} else {
		response.Result = env.result
	}
	response.Debug = env.debug
	callExecutedEmitter.Publish(CallExecuted{Origin: origin, Payload: payload, Response: response})
	return response
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
