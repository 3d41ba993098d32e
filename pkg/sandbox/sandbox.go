// Package sandbox defines the metered host runtime a contract module is
// benchmarked in.
//
// A Host is one instantiated contract together with its emulated ledger
// state:
// - Contract storage, scoped to the contract address.
// - Named accounts the contract sees as integer handles.
// - A resource Meter with a per-invocation ceiling.
//
// Engines turn module bytes into a Host. The wasm engine runs WebAssembly on
// wazero; the native engine runs contracts built into the binary. Both share
// the same Env, so storage layout, authorization and unit costs match.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fortiblox/soroscope/pkg/ledger"
)

// Engine constructs hosts from module bytes.
type Engine interface {
	// Name identifies the engine ("wasm", "native").
	Name() string

	// Construct instantiates code in a fresh host context.
	// Fails with a *LoadError of kind InvalidModule or UnsupportedInterface.
	Construct(ctx context.Context, code []byte, cfg Config) (Host, error)
}

// Host is an instantiated contract with its own ledger state.
// A Host is not safe for concurrent invocations.
type Host interface {
	// CreateAccount registers a named account.
	CreateAccount(name string) (ledger.Account, error)

	// Invoke runs one operation. Failures are *InvocationError.
	Invoke(ctx context.Context, inv Invocation) (*Outcome, error)

	// Close releases the runtime and storage.
	Close(ctx context.Context) error
}

// Config configures a host context.
type Config struct {
	// ResourceLimit is the per-invocation unit ceiling.
	ResourceLimit uint64

	// TimeLimit bounds the wall-clock time of one invocation. Guest code
	// that makes no calls consumes no units, so this is what stops it.
	// Zero disables the bound.
	TimeLimit time.Duration

	// MaxMemoryPages caps contract linear memory (64 KiB pages). Zero keeps
	// the engine default.
	MaxMemoryPages uint32

	// Storage selects the contract storage backend.
	Storage ledger.Config

	// Logger receives host debug output. Nil discards it.
	Logger *slog.Logger
}

// DefaultTimeLimit is the default per-invocation wall-clock bound.
const DefaultTimeLimit = 10 * time.Second

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		ResourceLimit:  UnitsDefaultLimit,
		TimeLimit:      DefaultTimeLimit,
		MaxMemoryPages: 16, // 1 MiB
		Storage:        ledger.DefaultConfig(),
	}
}

// Entrypoint describes an operation every contract must export.
type Entrypoint struct {
	Name string

	// Params are the argument kinds in order. All cross the boundary as i64.
	Params []ValueKind

	// Returns reports whether the operation returns an i64.
	Returns bool
}

// Entrypoints is the interface a benchmarked contract must implement.
var Entrypoints = []Entrypoint{
	{Name: "initialize", Params: []ValueKind{KindAccount}},
	{Name: "mint", Params: []ValueKind{KindAccount, KindInt}},
	{Name: "transfer", Params: []ValueKind{KindAccount, KindAccount, KindInt}},
	{Name: "balance", Params: []ValueKind{KindAccount}, Returns: true},
}

// LookupEntrypoint returns the entry point with the given name.
func LookupEntrypoint(name string) (Entrypoint, bool) {
	for _, ep := range Entrypoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Entrypoint{}, false
}

// resolveArgs converts invocation arguments to their i64 wire form.
func resolveArgs(reg *ledger.Registry, ep Entrypoint, args []Value) ([]int64, error) {
	if len(args) != len(ep.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", ep.Name, len(ep.Params), len(args))
	}

	out := make([]int64, len(args))
	for i, arg := range args {
		if arg.Kind != ep.Params[i] {
			return nil, fmt.Errorf("argument %d: want %s, got %s", i, ep.Params[i], arg.Kind)
		}
		switch arg.Kind {
		case KindInt:
			out[i] = arg.Int
		case KindAccount:
			acc, err := reg.ByName(arg.Account)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			out[i] = int64(acc.Handle)
		}
	}
	return out, nil
}
