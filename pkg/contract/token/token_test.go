package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

func TestModuleCompiles(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, WASM())
	require.NoError(t, err)

	exports := compiled.ExportedFunctions()
	for _, name := range []string{"initialize", "mint", "transfer", "balance"} {
		require.Contains(t, exports, name)
	}
	require.NotContains(t, exports, "credit")
	require.Contains(t, compiled.ExportedMemories(), "memory")

	var imports []string
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		require.Equal(t, "env", mod)
		imports = append(imports, name)
	}
	require.Equal(t, []string{"storage_get", "storage_has", "storage_put", "require_auth", "emit_event"}, imports)
}

func TestWASMIsStable(t *testing.T) {
	require.Equal(t, WASM(), Module().Encode())
}
