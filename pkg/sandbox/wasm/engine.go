// Package wasm runs WebAssembly contracts on wazero.
//
// Each host owns its own wazero runtime. Contracts import their host
// functions from the "env" module; every guest function entered is charged
// through a function listener, and every host function charges the shared
// sandbox.Env meter. A host function that runs out of units panics with the
// meter error, which wazero turns into the call's error.
package wasm

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/fortiblox/soroscope/internal/types"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// HostModule is the import module name contracts use for host functions.
const HostModule = "env"

// Config configures the wasm engine.
type Config struct {
	// Compiler selects the wazero compiler instead of the interpreter.
	Compiler bool
}

// DefaultConfig returns the interpreter configuration.
func DefaultConfig() Config {
	return Config{Compiler: false}
}

// Engine constructs wazero-backed hosts.
type Engine struct {
	cfg Config
}

// New creates a wasm engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Name returns "wasm".
func (e *Engine) Name() string {
	return "wasm"
}

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

var (
	i64 = api.ValueTypeI64
	i32 = api.ValueTypeI32
)

// hostSignatures are the functions the env module provides.
var hostSignatures = map[string]signature{
	"storage_get":  {params: []api.ValueType{i64}, results: []api.ValueType{i64}},
	"storage_has":  {params: []api.ValueType{i64}, results: []api.ValueType{i32}},
	"storage_put":  {params: []api.ValueType{i64, i64}},
	"storage_del":  {params: []api.ValueType{i64}},
	"require_auth": {params: []api.ValueType{i64}},
	"emit_event":   {params: []api.ValueType{i64, i64}},
}

// Construct compiles and instantiates code in a fresh runtime.
func (e *Engine) Construct(ctx context.Context, code []byte, cfg sandbox.Config) (sandbox.Host, error) {
	contract := types.ContractAddress(types.DeployerAddr, types.ComputeHash(code))
	env, err := sandbox.NewEnv(cfg, contract)
	if err != nil {
		return nil, err
	}

	rtCfg := wazero.NewRuntimeConfigInterpreter()
	if e.cfg.Compiler {
		rtCfg = wazero.NewRuntimeConfigCompiler()
	}
	rtCfg = rtCfg.WithCloseOnContextDone(true)
	if cfg.MaxMemoryPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MaxMemoryPages)
	}

	h := &host{
		rt:        wazero.NewRuntimeWithConfig(ctx, rtCfg),
		env:       env,
		funcs:     make(map[string]api.Function),
		timeLimit: cfg.TimeLimit,
	}

	if err := h.load(ctx, code); err != nil {
		h.Close(ctx)
		return nil, err
	}
	return h, nil
}

func (h *host) load(ctx context.Context, code []byte) error {
	// Listeners must be on the context used for compilation.
	listenCtx := experimental.WithFunctionListenerFactory(ctx, experimental.FunctionListenerFactoryFunc(h.newListener))

	compiled, err := h.rt.CompileModule(listenCtx, code)
	if err != nil {
		return &sandbox.LoadError{Kind: sandbox.KindInvalidModule, Err: err}
	}
	if err := checkImports(compiled); err != nil {
		return &sandbox.LoadError{Kind: sandbox.KindUnsupportedInterface, Err: err}
	}
	if err := checkExports(compiled); err != nil {
		return &sandbox.LoadError{Kind: sandbox.KindUnsupportedInterface, Err: err}
	}

	if err := h.instantiateHostModule(ctx); err != nil {
		return &sandbox.LoadError{Kind: sandbox.KindInvalidModule, Err: fmt.Errorf("host module: %w", err)}
	}

	mod, err := h.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("contract").
		WithStartFunctions())
	if err != nil {
		return &sandbox.LoadError{Kind: sandbox.KindInvalidModule, Err: err}
	}
	h.mod = mod

	for _, ep := range sandbox.Entrypoints {
		h.funcs[ep.Name] = mod.ExportedFunction(ep.Name)
	}
	return nil
}

func checkImports(compiled wazero.CompiledModule) error {
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != HostModule {
			return fmt.Errorf("import %s.%s: unknown module", module, name)
		}
		sig, ok := hostSignatures[name]
		if !ok {
			return fmt.Errorf("import %s.%s: unknown host function", module, name)
		}
		if !slices.Equal(def.ParamTypes(), sig.params) || !slices.Equal(def.ResultTypes(), sig.results) {
			return fmt.Errorf("import %s.%s: signature %s, want %s", module, name,
				formatSig(def.ParamTypes(), def.ResultTypes()), formatSig(sig.params, sig.results))
		}
	}
	if n := len(compiled.ImportedMemories()); n > 0 {
		return fmt.Errorf("module imports %d memories", n)
	}
	return nil
}

func checkExports(compiled wazero.CompiledModule) error {
	exports := compiled.ExportedFunctions()

	var missing []string
	for _, ep := range sandbox.Entrypoints {
		def, ok := exports[ep.Name]
		if !ok {
			missing = append(missing, ep.Name)
			continue
		}
		want := signature{params: make([]api.ValueType, len(ep.Params))}
		for i := range want.params {
			want.params[i] = i64
		}
		if ep.Returns {
			want.results = []api.ValueType{i64}
		}
		if !slices.Equal(def.ParamTypes(), want.params) || !slices.Equal(def.ResultTypes(), want.results) {
			return fmt.Errorf("export %s: signature %s, want %s", ep.Name,
				formatSig(def.ParamTypes(), def.ResultTypes()), formatSig(want.params, want.results))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing exports: %s", strings.Join(missing, ", "))
	}
	return nil
}

func formatSig(params, results []api.ValueType) string {
	name := func(ts []api.ValueType) string {
		parts := make([]string, len(ts))
		for i, t := range ts {
			parts[i] = api.ValueTypeName(t)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("(%s)->(%s)", name(params), name(results))
}

var _ sandbox.Engine = (*Engine)(nil)
