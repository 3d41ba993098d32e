package history

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fortiblox/soroscope/pkg/report"
)

var (
	hashA = strings.Repeat("aa", 32)
	hashB = strings.Repeat("bb", 32)
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history", "runs.db")
	s, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleReport(hash, scenario string) *report.Report {
	return &report.Report{
		Module:     "target/contract.wasm",
		ModuleHash: hash,
		Engine:     "wasm",
		Scenario:   scenario,
		Iterations: 2,
		Created:    time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC),
		Operations: []report.OperationStats{{
			Operation:   "balance",
			Count:       2,
			MinElapsed:  time.Microsecond,
			MeanElapsed: 2 * time.Microsecond,
			MaxElapsed:  3 * time.Microsecond,
			MinUnits:    1200,
			MeanUnits:   1250.5,
			MaxUnits:    1301,
			TotalUnits:  2501,
		}},
		TotalCalls: 2,
		TotalUnits: 2501,
	}
}

func TestPutGet(t *testing.T) {
	s, _ := openStore(t)

	r := sampleReport(hashA, "default")
	id, err := s.Put(r)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.Equal(t, id, r.ID)

	got, err := s.Get(id)
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, r.Module, got.Module)
	require.Equal(t, r.ModuleHash, got.ModuleHash)
	require.Equal(t, r.Scenario, got.Scenario)
	require.Equal(t, r.Iterations, got.Iterations)
	require.True(t, r.Created.Equal(got.Created), "created %v != %v", got.Created, r.Created)
	require.Equal(t, r.Operations, got.Operations)
	require.Equal(t, r.TotalUnits, got.TotalUnits)
}

func TestGetMissing(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.Get(42)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s, _ := openStore(t)
	for _, name := range []string{"first", "second", "third"} {
		_, err := s.Put(sampleReport(hashA, name))
		require.NoError(t, err)
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "third", all[0].Scenario)
	require.Equal(t, "first", all[2].Scenario)

	two, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	require.Equal(t, uint64(3), two[0].ID)
	require.Equal(t, uint64(2), two[1].ID)

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestListByModule(t *testing.T) {
	s, _ := openStore(t)
	for _, r := range []*report.Report{
		sampleReport(hashA, "a1"),
		sampleReport(hashB, "b1"),
		sampleReport(hashA, "a2"),
		sampleReport("", "unhashed"),
		sampleReport(hashB, "b2"),
		sampleReport(hashA, "a3"),
	} {
		_, err := s.Put(r)
		require.NoError(t, err)
	}

	runs, err := s.ListByModule(hashA, 0)
	require.NoError(t, err)
	var names []string
	for _, r := range runs {
		names = append(names, r.Scenario)
	}
	require.Equal(t, []string{"a3", "a2", "a1"}, names)

	runs, err = s.ListByModule(hashB, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "b2", runs[0].Scenario)

	runs, err = s.ListByModule(strings.Repeat("cc", 32), 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestInvalidHash(t *testing.T) {
	s, _ := openStore(t)

	_, err := s.Put(sampleReport("not-hex", "x"))
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = s.ListByModule("abcd", 0)
	require.ErrorIs(t, err, ErrInvalidHash)

	_, err = s.ListByModule("", 0)
	require.ErrorIs(t, err, ErrInvalidHash)

	n, err := s.Len()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSink(t *testing.T) {
	s, _ := openStore(t)

	r := sampleReport(hashA, "sink")
	require.NoError(t, s.Sink().Emit(context.Background(), r))
	require.NotZero(t, r.ID)

	got, err := s.Get(r.ID)
	require.NoError(t, err)
	require.Equal(t, "sink", got.Scenario)
}

func TestClosed(t *testing.T) {
	s, _ := openStore(t)
	require.NoError(t, s.Close())

	_, err := s.Put(sampleReport(hashA, "x"))
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Get(1)
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.List(0)
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Close(), ErrClosed)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	_, err = s.Put(sampleReport(hashA, "persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(DefaultConfig(path))
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListByModule(hashA, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "persisted", runs[0].Scenario)

	// Ids continue from the stored sequence
	id, err := s.Put(sampleReport(hashA, "next"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
}

func TestSharedReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	cfg := DefaultConfig(path)
	cfg.Timeout = 100 * time.Millisecond
	shared := NewShared(cfg)

	// Reads before the first write see an empty history
	runs, err := shared.List(0)
	require.NoError(t, err)
	require.Empty(t, runs)
	_, err = shared.Get(1)
	require.ErrorIs(t, err, ErrRunNotFound)

	id, err := shared.Put(sampleReport(hashA, "shared"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	// Nothing is left holding the file between calls
	s, err := Open(cfg)
	require.NoError(t, err)
	_, err = s.Put(sampleReport(hashB, "direct"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	runs, err = shared.ListByModule(hashA, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "shared", runs[0].Scenario)

	got, err := shared.Get(2)
	require.NoError(t, err)
	require.Equal(t, "direct", got.Scenario)

	_, err = shared.ListByModule("zz", 0)
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestSharedPutWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.db")
	held, err := Open(DefaultConfig(path))
	require.NoError(t, err)
	defer held.Close()

	cfg := DefaultConfig(path)
	cfg.Timeout = 50 * time.Millisecond
	_, err = NewShared(cfg).Put(sampleReport(hashA, "x"))
	require.Error(t, err)
}
