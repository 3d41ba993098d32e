// Package history keeps finished benchmark reports on disk.
//
// Reports live in a BoltDB file. Each report gets a sequence id and is
// indexed by the hash of the module it measured, so runs of the same contract
// can be compared over time.
package history

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/soroscope/pkg/report"
)

var (
	// ErrRunNotFound is returned when a run id doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("history closed")

	// ErrInvalidHash is returned for a malformed module hash.
	ErrInvalidHash = errors.New("invalid module hash")
)

// Bucket names for BoltDB.
var (
	// bucketRuns stores encoded reports keyed by id.
	bucketRuns = []byte("runs")

	// bucketByModule indexes run ids by module hash + id.
	bucketByModule = []byte("by_module")
)

// Config holds history store configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// NoSync disables fsync after each write.
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool

	// Timeout is how long to wait for the file lock.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Store is a BoltDB-backed report history. It is safe for concurrent use.
type Store struct {
	db    *bolt.DB
	codec *codec

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a history store.
func Open(cfg Config) (*Store, error) {
	if !cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{
		Timeout:  cfg.Timeout,
		NoSync:   cfg.NoSync,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if !cfg.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, name := range [][]byte{bucketRuns, bucketByModule} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return fmt.Errorf("create bucket %s: %w", name, err)
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}

	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, codec: c}, nil
}

// Put stores r under a new id, sets r.ID and returns it.
func (s *Store) Put(r *report.Report) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	moduleKey, err := moduleHashBytes(r.ModuleHash)
	if err != nil {
		return 0, err
	}

	var id uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		seq, err := runs.NextSequence()
		if err != nil {
			return err
		}

		stored := *r
		stored.ID = seq
		data, err := s.codec.encode(&stored)
		if err != nil {
			return err
		}
		if err := runs.Put(encodeID(seq), data); err != nil {
			return err
		}
		if moduleKey != nil {
			if err := tx.Bucket(bucketByModule).Put(indexKey(moduleKey, seq), nil); err != nil {
				return err
			}
		}
		id = seq
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store run: %w", err)
	}

	r.ID = id
	return id, nil
}

// Get returns the run with the given id.
func (s *Store) Get(id uint64) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out *report.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(encodeID(id))
		if data == nil {
			return ErrRunNotFound
		}
		r, err := s.codec.decode(data)
		if err != nil {
			return fmt.Errorf("run %d: %w", id, err)
		}
		out = r
		return nil
	})
	return out, err
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []*report.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			r, err := s.codec.decode(v)
			if err != nil {
				return fmt.Errorf("run %d: %w", decodeID(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ListByModule returns up to limit runs of the module with the given hex
// hash, newest first.
func (s *Store) ListByModule(moduleHash string, limit int) ([]*report.Report, error) {
	prefix, err := moduleHashBytes(moduleHash)
	if err != nil {
		return nil, err
	}
	if prefix == nil {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHash)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []*report.Report
	err = s.db.View(func(tx *bolt.Tx) error {
		runs := tx.Bucket(bucketRuns)
		c := tx.Bucket(bucketByModule).Cursor()

		var ids []uint64
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, decodeID(k[len(prefix):]))
		}

		for i := len(ids) - 1; i >= 0; i-- {
			if limit > 0 && len(out) >= limit {
				break
			}
			id := ids[i]
			data := runs.Get(encodeID(id))
			if data == nil {
				continue
			}
			r, err := s.codec.decode(data)
			if err != nil {
				return fmt.Errorf("run %d: %w", id, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Len returns the number of stored runs.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRuns).Stats().KeyN
		return nil
	})
	return n, err
}

// Sink returns a report sink that stores every report it receives.
func (s *Store) Sink() report.Sink {
	return report.SinkFunc(func(_ context.Context, r *report.Report) error {
		_, err := s.Put(r)
		return err
	})
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.codec.close()
	return s.db.Close()
}

func encodeID(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

func decodeID(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func indexKey(module []byte, id uint64) []byte {
	out := make([]byte, 0, len(module)+8)
	out = append(out, module...)
	return binary.BigEndian.AppendUint64(out, id)
}

// moduleHashBytes decodes a hex module hash. An empty hash gives nil.
func moduleHashBytes(h string) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(h)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, h)
	}
	return b, nil
}
