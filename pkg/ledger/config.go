package ledger

import (
	"fmt"
	"os"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config selects and configures the storage backend for a host context.
type Config struct {
	// Backend is BackendMemory or BackendBadger.
	Backend string

	// Badger configures the badger backend.
	Badger BadgerConfig
}

// DefaultConfig returns the in-memory map backend.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Badger:  DefaultBadgerConfig(),
	}
}

// Open creates a fresh, empty store for one benchmark run.
func Open(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendBadger:
		bcfg := cfg.Badger
		if bcfg.InMemory {
			return NewBadgerStorage(bcfg)
		}
		// Each run gets its own directory, removed again on Close.
		if err := os.MkdirAll(bcfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		dir, err := os.MkdirTemp(bcfg.Path, "run-*")
		if err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
		bcfg.Path = dir
		s, err := NewBadgerStorage(bcfg)
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
		s.removeDir = dir
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
