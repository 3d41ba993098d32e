// Package ledger implements the emulated ledger state a contract sees while it
// is being benchmarked.
//
// The ledger holds two things:
// - Contract storage: a key-value store whose keys are scoped to the owning
//   contract address, so two contracts can never observe each other's data.
// - Account identities: named accounts with deterministic addresses and the
//   small integer handles a contract uses to refer to them.
//
// Storage comes in two flavours. MemoryStorage is a plain map and is what a
// benchmark run uses by default. BadgerStorage runs the same interface on
// BadgerDB (in memory or on disk) for measuring contracts against a real LSM
// backend. Every benchmark run opens its own storage; nothing is shared.
package ledger

import (
	"errors"
	"sync"

	"github.com/fortiblox/soroscope/internal/types"
)

var (
	// ErrEntryNotFound is returned when a storage key doesn't exist.
	ErrEntryNotFound = errors.New("storage entry not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("storage closed")

	// ErrInvalidKey is returned for empty or oversized keys.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrValueTooLarge is returned when a value exceeds MaxValueSize.
	ErrValueTooLarge = errors.New("storage value too large")
)

// Storage limits.
const (
	MaxKeySize   = 256
	MaxValueSize = 64 * 1024
)

// Storage is the contract storage interface.
// Implementations must be safe for concurrent read access.
type Storage interface {
	// Get retrieves the value stored under key.
	// Returns ErrEntryNotFound if the key doesn't exist.
	Get(key []byte) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error

	// Delete removes a key. Returns nil if the key doesn't exist.
	Delete(key []byte) error

	// Has checks if a key exists.
	Has(key []byte) (bool, error)

	// Len returns the number of stored entries.
	Len() (uint64, error)

	// SizeBytes returns the total size of stored keys and values.
	SizeBytes() (uint64, error)

	// Close closes the store.
	Close() error
}

// ScopedKey prefixes key with the owning contract address.
func ScopedKey(contract types.Address, key []byte) []byte {
	out := make([]byte, 0, types.AddressSize+len(key))
	out = append(out, contract[:]...)
	return append(out, key...)
}

func validateEntry(key, value []byte) error {
	if len(key) == 0 || len(key) > MaxKeySize {
		return ErrInvalidKey
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}
	return nil
}

// MemoryStorage is an in-memory implementation of Storage.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string][]byte
	size    uint64
	closed  bool
}

// NewMemoryStorage creates a new in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string][]byte),
	}
}

// Get retrieves a value.
func (m *MemoryStorage) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.entries[string(key)]
	if !ok {
		return nil, ErrEntryNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put stores a value.
func (m *MemoryStorage) Put(key, value []byte) error {
	if err := validateEntry(key, value); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if old, ok := m.entries[string(key)]; ok {
		m.size -= uint64(len(key) + len(old))
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.entries[string(key)] = v
	m.size += uint64(len(key) + len(v))
	return nil
}

// Delete removes a key.
func (m *MemoryStorage) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if old, ok := m.entries[string(key)]; ok {
		m.size -= uint64(len(key) + len(old))
		delete(m.entries, string(key))
	}
	return nil
}

// Has checks if a key exists.
func (m *MemoryStorage) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.entries[string(key)]
	return ok, nil
}

// Len returns the number of entries.
func (m *MemoryStorage) Len() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return uint64(len(m.entries)), nil
}

// SizeBytes returns the total size of keys and values.
func (m *MemoryStorage) SizeBytes() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return m.size, nil
}

// Close closes the store.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = nil
	m.size = 0
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
