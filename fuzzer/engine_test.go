package fuzzer

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/kevin-valerio/phink/bugs"
	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/decoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fixtures below hand-assemble a small WASM module rather than relying
// on a real `cargo contract`-compiled DNS blob (none is available in this
// environment) — enough surface to exercise the message loop, trap
// detection, invariant checking, and coverage capture end to end.

func uleb128(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7F)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func sleb128(n int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(n & 0x7F)
		n >>= 7
		signBitSet := b&0x40 != 0
		if (n == 0 && !signBitSet) || (n == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func wasmString(s string) []byte {
	return append(uleb128(uint32(len(s))), []byte(s)...)
}

func wasmSection(id byte, content []byte) []byte {
	return append([]byte{id, byte(len(content))}, content...)
}

// buildInvariantAwareModule assembles a module exporting "deploy" (writes a
// storage entry, same as the chain package's own fixture) and "call": call
// reads the invoked selector's first byte via input_copy, sets a storage
// marker when invoked with the vulnerable selector's byte, traps when
// invoked with the invariant selector's byte and that marker is already
// set, and emits one "COV=12" beacon whenever it does not trap. This mirrors a message that
// flips internal state where the invariant trips only afterwards, without
// needing a real compiled contract.
func buildInvariantAwareModule() []byte {
	var mod []byte
	mod = append(mod, 0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00)

	// type0: () -> ()
	// type1: (i32,i32,i32,i32) -> ()     [set_storage]
	// type2: (i32,i32) -> ()             [input_copy / debug_message]
	// type3: (i32,i32,i32,i32) -> i32    [get_storage]
	typeSec := []byte{0x04}
	typeSec = append(typeSec, 0x60, 0x00, 0x00)
	typeSec = append(typeSec, 0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x00)
	typeSec = append(typeSec, 0x60, 0x02, 0x7F, 0x7F, 0x00)
	typeSec = append(typeSec, 0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x01, 0x7F)
	mod = append(mod, wasmSection(1, typeSec)...)

	var importSec []byte
	importSec = append(importSec, 0x04)
	importSec = append(importSec, wasmString("env")...)
	importSec = append(importSec, wasmString("set_storage")...)
	importSec = append(importSec, 0x00, 0x01)
	importSec = append(importSec, wasmString("env")...)
	importSec = append(importSec, wasmString("input_copy")...)
	importSec = append(importSec, 0x00, 0x02)
	importSec = append(importSec, wasmString("env")...)
	importSec = append(importSec, wasmString("debug_message")...)
	importSec = append(importSec, 0x00, 0x02)
	importSec = append(importSec, wasmString("env")...)
	importSec = append(importSec, wasmString("get_storage")...)
	importSec = append(importSec, 0x00, 0x03)
	mod = append(mod, wasmSection(2, importSec)...)

	// Imports occupy indices 0-3; two defined functions follow, both type0:
	// deploy (idx4), call (idx5).
	funcSec := []byte{0x02, 0x00, 0x00}
	mod = append(mod, wasmSection(3, funcSec)...)

	memSec := []byte{0x01, 0x00, 0x01}
	mod = append(mod, wasmSection(5, memSec)...)

	exportSec := []byte{
		0x02,
		0x06, 'd', 'e', 'p', 'l', 'o', 'y', 0x00, 0x04,
		0x04, 'c', 'a', 'l', 'l', 0x00, 0x05,
	}
	mod = append(mod, wasmSection(7, exportSec)...)

	// Three data segments: the marker key bytes at 100, the marker's "set"
	// value at 200, and the "COV=12" debug literal at 300. Built now but
	// appended to the module after the code section below: section ids must
	// appear in increasing order and data (11) follows code (10).
	dataSegment := func(offset int64, content []byte) []byte {
		var seg []byte
		seg = append(seg, 0x00, 0x41)
		seg = append(seg, sleb128(offset)...)
		seg = append(seg, 0x0B)
		seg = append(seg, uleb128(uint32(len(content)))...)
		seg = append(seg, content...)
		return seg
	}
	var dataSec []byte
	dataSec = append(dataSec, 0x03)
	dataSec = append(dataSec, dataSegment(100, []byte{0xDE, 0xAD, 0xBE, 0xEF})...)
	dataSec = append(dataSec, dataSegment(200, []byte{0x01})...)
	dataSec = append(dataSec, dataSegment(300, []byte("COV=12"))...)

	deployBody := []byte{
		0x41, 0x00,
		0x41, 0x04,
		0x41, 0x04,
		0x41, 0x04,
		0x10, 0x00, // call set_storage (idx0)
		0x0B,
	}
	deployEntry := append([]byte{0x00}, deployBody...)
	deployEntry = append(uleb128(uint32(len(deployEntry))), deployEntry...)

	var callBody []byte
	push := func(bs ...byte) { callBody = append(callBody, bs...) }
	constI32 := func(n int64) { push(0x41); push(sleb128(n)...) }
	loadByte := func(addr int64) { constI32(addr); push(0x2D, 0x00, 0x00) }

	constI32(0)  // destPtr
	constI32(63) // destLenPtr
	push(0x10, 0x01) // call input_copy (idx1)

	// if selector[0] == vulnerableSelectorByte: flip the marker.
	loadByte(0)
	constI32(vulnerableSelectorByte)
	push(0x46)       // i32.eq
	push(0x04, 0x40) // if (void)
	constI32(100)    // keyPtr
	constI32(4)      // keyLen
	constI32(200)    // valPtr
	constI32(1)      // valLen
	push(0x10, 0x00) // call set_storage (idx0)
	push(0x0B)       // end if

	// if selector[0] == invariantSelectorByte and the marker is set: trap.
	loadByte(0)
	constI32(invariantSelectorByte)
	push(0x46)
	push(0x04, 0x40) // if (void)
	constI32(100)    // keyPtr
	constI32(4)      // keyLen
	constI32(210)    // outPtr
	constI32(220)    // outLenPtr
	push(0x10, 0x03) // call get_storage (idx3), result left on the stack
	push(0x1A)       // drop
	loadByte(210)
	constI32(0)
	push(0x47)       // i32.ne
	push(0x04, 0x40) // if (void)
	push(0x00)       // unreachable
	push(0x0B)       // end inner if
	push(0x0B)       // end outer if

	// every call that did not trap above emits one coverage beacon.
	constI32(300)
	constI32(6)
	push(0x10, 0x02) // call debug_message (idx2)
	push(0x0B)       // end func

	callEntry := append([]byte{0x00}, callBody...)
	callEntry = append(uleb128(uint32(len(callEntry))), callEntry...)

	codeSec := append([]byte{0x02}, deployEntry...)
	codeSec = append(codeSec, callEntry...)
	mod = append(mod, wasmSection(10, codeSec)...)
	mod = append(mod, wasmSection(11, dataSec)...)

	return mod
}

const (
	regularSelectorHex    = "0x11223344"
	vulnerableSelectorHex = "0x22334455"
	invariantSelectorHex  = "0xaa000000"

	vulnerableSelectorByte = 0x22
	invariantSelectorByte  = 0xAA
)

func writeFixtureMetadata(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json")
	data := `{"spec":{
		"constructors":[{"label":"new","selector":"0x9bae9d5e","args":[]}],
		"messages":[
			{"label":"register","selector":"` + regularSelectorHex + `","args":[],"payable":false,"mutates":true},
			{"label":"transfer","selector":"` + vulnerableSelectorHex + `","args":[],"payable":false,"mutates":true},
			{"label":"phink_assert_ok","selector":"` + invariantSelectorHex + `","args":[],"payable":false,"mutates":false}
		]
	}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	metadataPath := writeFixtureMetadata(t)
	wasmPath := filepath.Join(t.TempDir(), "contract.wasm")
	require.NoError(t, os.WriteFile(wasmPath, buildInvariantAwareModule(), 0o644))

	cfg := config.Defaults()
	cfg.Contract.MetadataPath = metadataPath
	cfg.Contract.WASMPath = wasmPath
	cfg.Fuzz.CorpusDir = filepath.Join(t.TempDir(), "corpus")
	cfg.Fuzz.DictionaryPath = filepath.Join(t.TempDir(), "selectors.dict")
	cfg.Fuzz.CoverageDBPath = filepath.Join(t.TempDir(), "coverage.db")

	engine, err := NewEngine(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close(ctx) })
	return engine
}

func TestHarnessReturnsNilForShortInput(t *testing.T) {
	engine := newTestEngine(t)
	finding := engine.Harness(context.Background(), []byte{0x00, 0x01})
	assert.Nil(t, finding)
}

func TestHarnessSucceedsAndCapturesCoverageForBenignMessage(t *testing.T) {
	engine := newTestEngine(t)

	raw := append([]byte{0x01}, decodeHexSelector(regularSelectorHex)...)
	finding := engine.Harness(context.Background(), raw)

	require.Nil(t, finding, "a benign message must leave the post-sequence invariant passing")
	assert.Contains(t, engine.tracker.Lines(), 12, "the call's COV=12 beacon must be merged into the run-wide tracker")
}

// TestHarnessReportsInvariantFailureAfterVulnerableMessage exercises a
// single message that flips internal state, where the invariant check that
// runs after the sequence (not the message itself) is what reports the
// finding.
func TestHarnessReportsInvariantFailureAfterVulnerableMessage(t *testing.T) {
	engine := newTestEngine(t)

	raw := append([]byte{0x01}, decodeHexSelector(vulnerableSelectorHex)...)
	finding := engine.Harness(context.Background(), raw)

	require.NotNil(t, finding)
	assert.Equal(t, bugs.KindInvariant, finding.Kind)
}

func TestInvariantOnlyTripsAfterVulnerableMessageOnTheSameFork(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	untouched := engine.bridge.Clone()
	passing, err := engine.manager.CheckInvariants(ctx, untouched, 1)
	require.NoError(t, err)
	assert.Nil(t, passing, "the invariant must pass before any vulnerable message has run")

	tripped := engine.bridge.Clone()
	response := tripped.Call(ctx, decodeHexSelector(vulnerableSelectorHex), 1, big.NewInt(0), engine.Config.Contract)
	require.NoError(t, response.Err)

	failing, err := engine.manager.CheckInvariants(ctx, tripped, 1)
	require.NoError(t, err)
	require.NotNil(t, failing)
	assert.Equal(t, bugs.KindInvariant, failing.Kind)
}

func TestHarnessNeverExposesInvariantSelectorThroughDecode(t *testing.T) {
	engine := newTestEngine(t)

	raw := append([]byte{0x01}, decodeHexSelector(invariantSelectorHex)...)
	input := decoder.Decode(raw, engine.selectors, engine.Transcoder)
	assert.True(t, input.Empty(), "an invariant selector must never survive decoding into a fuzzable message (invariant ii)")
}

func decodeHexSelector(hexStr string) []byte {
	trimmed := hexStr[2:]
	out := make([]byte, len(trimmed)/2)
	for i := range out {
		var b byte
		for j := 0; j < 2; j++ {
			c := trimmed[i*2+j]
			b <<= 4
			switch {
			case c >= '0' && c <= '9':
				b |= c - '0'
			case c >= 'a' && c <= 'f':
				b |= c - 'a' + 10
			}
		}
		out[i] = b
	}
	return out
}
