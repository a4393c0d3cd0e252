package chain

import (
	"context"
	"math/big"
	"os"
	"testing"

	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFixtureModule hand-assembles a minimal WASM module exporting "deploy"
// and "call". deploy writes a single zero-valued storage entry via the
// "env.set_storage" host import (enough to pass the post-deployment storage
// check); call is a no-op. This stands in for a real `cargo contract`-built
// blob (no compiled DNS fixture is available here).
func buildFixtureModule() []byte {
	var mod []byte
	mod = append(mod, 0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00) // magic + version

	// Type section: type0 () -> (); type1 (i32,i32,i32,i32) -> ().
	typeSec := []byte{0x02, 0x60, 0x00, 0x00, 0x60, 0x04, 0x7F, 0x7F, 0x7F, 0x7F, 0x00}
	mod = append(mod, section(1, typeSec)...)

	// Import section: env.set_storage, type index 1.
	importSec := []byte{0x01, 0x03, 'e', 'n', 'v', 0x0B, 's', 'e', 't', '_', 's', 't', 'o', 'r', 'a', 'g', 'e', 0x00, 0x01}
	mod = append(mod, section(2, importSec)...)

	// Function section: two functions (deploy, call), both type0.
	funcSec := []byte{0x02, 0x00, 0x00}
	mod = append(mod, section(3, funcSec)...)

	// Memory section: one memory, 1 page minimum.
	memSec := []byte{0x01, 0x00, 0x01}
	mod = append(mod, section(5, memSec)...)

	// Export section: "deploy" -> func index 1, "call" -> func index 2.
	exportSec := []byte{
		0x02,
		0x06, 'd', 'e', 'p', 'l', 'o', 'y', 0x00, 0x01,
		0x04, 'c', 'a', 'l', 'l', 0x00, 0x02,
	}
	mod = append(mod, section(7, exportSec)...)

	// Code section.
	deployBody := []byte{
		0x41, 0x00, // i32.const 0  (key_ptr)
		0x41, 0x04, // i32.const 4  (key_len)
		0x41, 0x04, // i32.const 4  (val_ptr)
		0x41, 0x04, // i32.const 4  (val_len)
		0x10, 0x00, // call 0 (set_storage)
		0x0B, // end
	}
	deployEntry := append([]byte{0x00}, deployBody...) // 0 locals
	deployEntry = append([]byte{byte(len(deployEntry))}, deployEntry...)

	callEntry := []byte{0x02, 0x00, 0x0B} // 0 locals, end
	codeSec := append([]byte{0x02}, deployEntry...)
	codeSec = append(codeSec, callEntry...)
	mod = append(mod, section(10, codeSec)...)

	return mod
}

func section(id byte, content []byte) []byte {
	return append([]byte{id, byte(len(content))}, content...)
}

func loadFixtureMetadata(t *testing.T) *metadata.Reader {
	t.Helper()
	path := t.TempDir() + "/metadata.json"
	data := `{"spec":{"constructors":[{"label":"new","selector":"0x9bae9d5e","args":[]}],"messages":[{"label":"phink_ok","selector":"0x11223344","args":[]}]}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	reader, err := metadata.Load(path)
	require.NoError(t, err)
	return reader
}

func TestGenesisDeploysAndCapturesStorage(t *testing.T) {
	ctx := context.Background()
	reader := loadFixtureMetadata(t)

	bridge, err := Genesis(ctx, buildFixtureModule(), reader, config.Contract{})
	require.NoError(t, err)
	defer bridge.Close(ctx)

	assert.NotEmpty(t, bridge.Genesis.Storage)
}

func TestCloneIsolatesGenesisStorage(t *testing.T) {
	ctx := context.Background()
	reader := loadFixtureMetadata(t)

	bridge, err := Genesis(ctx, buildFixtureModule(), reader, config.Contract{})
	require.NoError(t, err)
	defer bridge.Close(ctx)

	clone := bridge.Clone()
	for k := range clone.Genesis.Storage {
		clone.Genesis.Storage[k] = []byte("mutated")
	}

	for k, v := range bridge.Genesis.Storage {
		assert.NotEqual(t, []byte("mutated"), v, "mutating a clone must not affect the original genesis for key %v", k)
	}
}

func TestCallDoesNotMutateBridgeGenesis(t *testing.T) {
	ctx := context.Background()
	reader := loadFixtureMetadata(t)

	bridge, err := Genesis(ctx, buildFixtureModule(), reader, config.Contract{})
	require.NoError(t, err)
	defer bridge.Close(ctx)

	before := len(bridge.Genesis.Storage)

	clone := bridge.Clone()
	response := clone.Call(ctx, []byte{0x11, 0x22, 0x33, 0x44}, 1, big.NewInt(0), config.Contract{})
	require.NoError(t, response.Err)

	assert.Equal(t, before, len(bridge.Genesis.Storage))
}
