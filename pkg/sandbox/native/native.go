// Package native runs contracts compiled into the harness binary.
//
// A native module is a short header naming a built-in program:
//
//	"\x00nat" | version (1 byte) | program name
//
// Native programs run against the same sandbox.Env as WebAssembly contracts,
// so storage layout, authorization and unit costs are comparable. They are
// useful as a baseline when benchmarking the wasm engine itself.
package native

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fortiblox/soroscope/internal/types"
	"github.com/fortiblox/soroscope/pkg/ledger"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// Header constants.
const (
	Magic   = "\x00nat"
	Version = byte(1)

	maxNameLen = 64
)

var (
	// ErrBadHeader is returned for bytes that are not a native module.
	ErrBadHeader = errors.New("bad native module header")

	// ErrUnknownProgram is returned when the header names no built-in program.
	ErrUnknownProgram = errors.New("unknown native program")
)

// InvokeContext is what a program sees while it runs.
type InvokeContext interface {
	StorageGet(key int64) (int64, error)
	StorageHas(key int64) (bool, error)
	StoragePut(key, value int64) error
	StorageDel(key int64) error
	RequireAuth(account int64) error
	EmitEvent(topic, value int64) error

	// Guest charges one internal function call.
	Guest() error
}

// Program is a built-in contract.
type Program interface {
	// Exports lists the operations the program implements.
	Exports() []string

	// Process runs op with wire-form arguments and returns its result.
	Process(ctx InvokeContext, op string, args []int64) (int64, error)
}

var programs = map[string]func() Program{
	"token": func() Program { return NewTokenProgram() },
}

// Programs returns the names of the built-in programs.
func Programs() []string {
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Module returns the module bytes for a built-in program.
func Module(name string) []byte {
	out := make([]byte, 0, len(Magic)+1+len(name))
	out = append(out, Magic...)
	out = append(out, Version)
	return append(out, name...)
}

// IsModule reports whether code carries the native header.
func IsModule(code []byte) bool {
	return bytes.HasPrefix(code, []byte(Magic))
}

func parseHeader(code []byte) (string, error) {
	if !IsModule(code) {
		return "", ErrBadHeader
	}
	rest := code[len(Magic):]
	if len(rest) < 2 {
		return "", fmt.Errorf("%w: truncated", ErrBadHeader)
	}
	if rest[0] != Version {
		return "", fmt.Errorf("%w: version %d", ErrBadHeader, rest[0])
	}
	name := rest[1:]
	if len(name) > maxNameLen {
		return "", fmt.Errorf("%w: name too long", ErrBadHeader)
	}
	return string(name), nil
}

// Engine constructs hosts for built-in programs.
type Engine struct{}

// New creates a native engine.
func New() *Engine {
	return &Engine{}
}

// Name returns "native".
func (e *Engine) Name() string {
	return "native"
}

// Construct resolves the program named by code.
func (e *Engine) Construct(_ context.Context, code []byte, cfg sandbox.Config) (sandbox.Host, error) {
	name, err := parseHeader(code)
	if err != nil {
		return nil, &sandbox.LoadError{Kind: sandbox.KindInvalidModule, Err: err}
	}
	newProgram, ok := programs[name]
	if !ok {
		return nil, &sandbox.LoadError{Kind: sandbox.KindUnsupportedInterface, Err: fmt.Errorf("%w: %q", ErrUnknownProgram, name)}
	}
	prog := newProgram()

	exports := make(map[string]bool)
	for _, op := range prog.Exports() {
		exports[op] = true
	}
	for _, ep := range sandbox.Entrypoints {
		if !exports[ep.Name] {
			return nil, &sandbox.LoadError{
				Kind: sandbox.KindUnsupportedInterface,
				Err:  fmt.Errorf("program %s does not export %s", name, ep.Name),
			}
		}
	}

	contract := types.ContractAddress(types.DeployerAddr, types.ComputeHash(code))
	env, err := sandbox.NewEnv(cfg, contract)
	if err != nil {
		return nil, err
	}
	return &host{prog: prog, env: env}, nil
}

type host struct {
	prog Program
	env  *sandbox.Env
}

func (h *host) CreateAccount(name string) (ledger.Account, error) {
	return h.env.CreateAccount(name)
}

func (h *host) Invoke(ctx context.Context, inv sandbox.Invocation) (*sandbox.Outcome, error) {
	ep, args, err := h.env.Begin(inv)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, h.env.Fail(ep.Name, err)
	}
	if err := h.env.Guest(); err != nil {
		return nil, h.env.Fail(ep.Name, err)
	}

	ret, err := h.prog.Process(h.env, ep.Name, args)
	if err != nil {
		return nil, h.env.Fail(ep.Name, err)
	}

	var v sandbox.Value
	if ep.Returns {
		v = sandbox.Int(ret)
	}
	return h.env.Finish(ep.Name, v, 0)
}

func (h *host) Close(context.Context) error {
	return h.env.Close()
}

var (
	_ sandbox.Engine = (*Engine)(nil)
	_ sandbox.Host   = (*host)(nil)
	_ InvokeContext  = (*sandbox.Env)(nil)
)
