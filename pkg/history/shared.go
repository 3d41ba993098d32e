package history

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/fortiblox/soroscope/pkg/report"
)

// Shared opens the database for every call and closes it before returning,
// so the file lock is only held for the length of one operation. Several
// processes (a server and benchmark runs) can use one history file this way.
// Reads take the shared read-only lock.
type Shared struct {
	cfg Config
}

// NewShared returns a Shared handle for cfg.Path.
func NewShared(cfg Config) *Shared {
	return &Shared{cfg: cfg}
}

// Path returns the database file path.
func (s *Shared) Path() string {
	return s.cfg.Path
}

func (s *Shared) view(fn func(*Store) error) error {
	if _, err := os.Stat(s.cfg.Path); errors.Is(err, fs.ErrNotExist) {
		return errNoDatabase
	}
	cfg := s.cfg
	cfg.ReadOnly = true
	store, err := Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// errNoDatabase marks a read of a history file that was never written.
var errNoDatabase = errors.New("no history database")

// Put stores r, setting r.ID.
func (s *Shared) Put(r *report.Report) (uint64, error) {
	cfg := s.cfg
	cfg.ReadOnly = false
	store, err := Open(cfg)
	if err != nil {
		return 0, err
	}
	id, err := store.Put(r)
	if cerr := store.Close(); err == nil {
		err = cerr
	}
	return id, err
}

// Get returns the run with the given id.
func (s *Shared) Get(id uint64) (*report.Report, error) {
	var out *report.Report
	err := s.view(func(st *Store) (err error) {
		out, err = st.Get(id)
		return err
	})
	if errors.Is(err, errNoDatabase) {
		return nil, ErrRunNotFound
	}
	return out, err
}

// List returns up to limit runs, newest first.
func (s *Shared) List(limit int) ([]*report.Report, error) {
	var out []*report.Report
	err := s.view(func(st *Store) (err error) {
		out, err = st.List(limit)
		return err
	})
	if errors.Is(err, errNoDatabase) {
		return nil, nil
	}
	return out, err
}

// ListByModule returns up to limit runs of one module, newest first.
func (s *Shared) ListByModule(moduleHash string, limit int) ([]*report.Report, error) {
	if _, err := moduleHashBytes(moduleHash); err != nil || moduleHash == "" {
		if err == nil {
			err = ErrInvalidHash
		}
		return nil, err
	}
	var out []*report.Report
	err := s.view(func(st *Store) (err error) {
		out, err = st.ListByModule(moduleHash, limit)
		return err
	})
	if errors.Is(err, errNoDatabase) {
		return nil, nil
	}
	return out, err
}

// Sink returns a report sink that stores every report it receives.
func (s *Shared) Sink() report.Sink {
	return report.SinkFunc(func(_ context.Context, r *report.Report) error {
		_, err := s.Put(r)
		return err
	})
}
