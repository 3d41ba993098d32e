package ledger

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig contains configuration for BadgerStorage.
type BadgerConfig struct {
	// Path is the directory path for the database. Ignored when InMemory is set.
	Path string

	// InMemory runs the database in memory.
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// Logger is an optional logger. Set to nil to disable logging.
	Logger badger.Logger
}

// DefaultBadgerConfig returns an in-memory configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		InMemory:      true,
		SyncWrites:    false,
		NumCompactors: 2,
		Logger:        nil,
	}
}

// BadgerStorage is a BadgerDB-backed implementation of Storage.
//
// Entry count and byte size are tracked in memory; the store only lives for a
// single benchmark run, so they are never persisted.
type BadgerStorage struct {
	db *badger.DB

	count atomic.Uint64
	size  atomic.Uint64

	// mu serializes writes so count/size stay consistent with the data.
	mu sync.Mutex

	closed atomic.Bool

	// removeDir is deleted on Close when the store owns its directory.
	removeDir string
}

// NewBadgerStorage opens a BadgerDB-backed store.
func NewBadgerStorage(cfg BadgerConfig) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if cfg.NumCompactors < 2 {
		// badger refuses fewer than two compactors
		cfg.NumCompactors = 2
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumCompactors(cfg.NumCompactors).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

// Get retrieves a value.
func (b *BadgerStorage) Get(key []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores a value.
func (b *BadgerStorage) Put(key, value []byte) error {
	if err := validateEntry(key, value); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var oldLen int
	var exists bool
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		oldLen, exists, err = valueLen(txn, key)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return err
	}

	if exists {
		b.size.Add(^uint64(len(key) + oldLen - 1)) // Subtract old entry
	} else {
		b.count.Add(1)
	}
	b.size.Add(uint64(len(key) + len(value)))
	return nil
}

// Delete removes a key.
func (b *BadgerStorage) Delete(key []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var oldLen int
	var exists bool
	err := b.db.Update(func(txn *badger.Txn) error {
		var err error
		oldLen, exists, err = valueLen(txn, key)
		if err != nil || !exists {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil || !exists {
		return err
	}

	b.count.Add(^uint64(0)) // Decrement
	b.size.Add(^uint64(len(key) + oldLen - 1))
	return nil
}

// valueLen reports the length of the value stored under key, if any.
func valueLen(txn *badger.Txn, key []byte) (int, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return 0, false, err
	}
	return len(v), true, nil
}

// Has checks if a key exists.
func (b *BadgerStorage) Has(key []byte) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, ok, err := valueLen(txn, key)
		exists = ok
		return err
	})
	return exists, err
}

// Len returns the number of entries.
func (b *BadgerStorage) Len() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.count.Load(), nil
}

// SizeBytes returns the total size of keys and values.
func (b *BadgerStorage) SizeBytes() (uint64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.size.Load(), nil
}

// Close closes the database.
func (b *BadgerStorage) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	err := b.db.Close()
	if b.removeDir != "" {
		if rmErr := os.RemoveAll(b.removeDir); rmErr != nil && err == nil {
			err = fmt.Errorf("remove storage dir: %w", rmErr)
		}
	}
	return err
}

var _ Storage = (*BadgerStorage)(nil)
