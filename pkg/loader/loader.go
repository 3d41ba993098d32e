// Package loader locates and reads contract modules from disk.
//
// The loader tries candidate paths in order and reads the first one that
// exists. It does not validate module structure; that is the engine's job when
// the module is instantiated. It does sniff the leading magic bytes so callers
// can pick an engine.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fortiblox/soroscope/internal/types"
	"github.com/fortiblox/soroscope/pkg/sandbox"
)

// MaxModuleSize is the largest module the loader will read.
const MaxModuleSize = 16 * 1024 * 1024 // 16 MB

// DefaultPaths are the build output locations of the reference token contract,
// relative to the repository root and to a crate directory.
var DefaultPaths = []string{
	"target/wasm32-unknown-unknown/release/soroban_token_contract.wasm",
	"../target/wasm32-unknown-unknown/release/soroban_token_contract.wasm",
}

// Module formats.
const (
	FormatUnknown = "unknown"
	FormatWasm    = "wasm"
	FormatNative  = "native"
)

var (
	wasmMagic   = []byte{0x00, 'a', 's', 'm'}
	nativeMagic = []byte{0x00, 'n', 'a', 't'}
)

// Module is a loaded module. Code is never mutated after load.
type Module struct {
	// Path is the path the module was read from.
	Path string

	// Code is the raw module bytes.
	Code []byte

	// Hash is the SHA-256 of Code.
	Hash types.Hash
}

// Format reports the module format from its magic bytes.
func (m *Module) Format() string {
	return DetectFormat(m.Code)
}

// Size returns the module size in bytes.
func (m *Module) Size() int {
	return len(m.Code)
}

// DetectFormat reports the module format of code.
func DetectFormat(code []byte) string {
	switch {
	case bytes.HasPrefix(code, wasmMagic):
		return FormatWasm
	case bytes.HasPrefix(code, nativeMagic):
		return FormatNative
	default:
		return FormatUnknown
	}
}

// Load reads the first candidate path that exists.
//
// Returns a *sandbox.LoadError of kind NotFound when no candidate exists, and
// of kind ReadFailure when the chosen path can't be read.
func Load(paths ...string) (*Module, error) {
	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, &sandbox.LoadError{Kind: sandbox.KindReadFailure, Path: path, Err: err}
		}
		if info.IsDir() {
			return nil, &sandbox.LoadError{Kind: sandbox.KindReadFailure, Path: path, Err: errors.New("is a directory")}
		}
		return read(path)
	}
	return nil, &sandbox.LoadError{
		Kind: sandbox.KindNotFound,
		Err:  fmt.Errorf("tried %d candidate paths %v", len(paths), paths),
	}
}

func read(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &sandbox.LoadError{Kind: sandbox.KindReadFailure, Path: path, Err: err}
	}
	defer f.Close()

	// Read one byte past the cap to detect oversized modules.
	code, err := io.ReadAll(io.LimitReader(f, MaxModuleSize+1))
	if err != nil {
		return nil, &sandbox.LoadError{Kind: sandbox.KindReadFailure, Path: path, Err: err}
	}
	if len(code) > MaxModuleSize {
		return nil, &sandbox.LoadError{
			Kind: sandbox.KindReadFailure,
			Path: path,
			Err:  fmt.Errorf("module exceeds %d bytes", MaxModuleSize),
		}
	}

	return &Module{
		Path: path,
		Code: code,
		Hash: types.ComputeHash(code),
	}, nil
}
