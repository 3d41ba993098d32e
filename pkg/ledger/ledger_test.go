package ledger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/fortiblox/soroscope/internal/types"
)

// testStorage runs the shared Storage contract against one implementation.
func testStorage(t *testing.T, s Storage) {
	t.Helper()

	key := []byte("balance/alice")

	// Missing key
	if _, err := s.Get(key); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Get on empty store: got %v, want ErrEntryNotFound", err)
	}

	// Put and Get
	if err := s.Put(key, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Get = %v, want [1 2 3 4]", got)
	}

	exists, err := s.Has(key)
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !exists {
		t.Error("key should exist")
	}

	// Count and size track entries
	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
	size, _ := s.SizeBytes()
	if want := uint64(len(key) + 4); size != want {
		t.Errorf("SizeBytes = %d, want %d", size, want)
	}

	// Overwrite replaces the size of the old value
	if err := s.Put(key, []byte{9}); err != nil {
		t.Fatalf("Put overwrite failed: %v", err)
	}
	size, _ = s.SizeBytes()
	if want := uint64(len(key) + 1); size != want {
		t.Errorf("SizeBytes after overwrite = %d, want %d", size, want)
	}
	n, _ = s.Len()
	if n != 1 {
		t.Errorf("Len after overwrite = %d, want 1", n)
	}

	// Delete
	if err := s.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, _ = s.Has(key)
	if exists {
		t.Error("key should not exist after deletion")
	}
	n, _ = s.Len()
	size, _ = s.SizeBytes()
	if n != 0 || size != 0 {
		t.Errorf("after delete: Len = %d, SizeBytes = %d, want 0, 0", n, size)
	}

	// Deleting a missing key is not an error
	if err := s.Delete(key); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}

	// Validation
	if err := s.Put(nil, []byte{1}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put empty key: got %v, want ErrInvalidKey", err)
	}
	if err := s.Put(key, make([]byte, MaxValueSize+1)); !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("Put oversized value: got %v, want ErrValueTooLarge", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	defer s.Close()
	testStorage(t, s)
}

func TestBadgerStorage(t *testing.T) {
	s, err := NewBadgerStorage(DefaultBadgerConfig())
	if err != nil {
		t.Fatalf("NewBadgerStorage failed: %v", err)
	}
	defer s.Close()
	testStorage(t, s)
}

func TestStorageClosed(t *testing.T) {
	s := NewMemoryStorage()
	s.Close()

	if _, err := s.Get([]byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after close: got %v, want ErrClosed", err)
	}
	if err := s.Put([]byte("k"), []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after close: got %v, want ErrClosed", err)
	}
}

func TestOpenBackends(t *testing.T) {
	cfg := DefaultConfig()
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := s.(*MemoryStorage); !ok {
		t.Errorf("default backend = %T, want *MemoryStorage", s)
	}
	s.Close()

	cfg.Backend = BackendBadger
	cfg.Badger.Path = t.TempDir()
	cfg.Badger.InMemory = false
	s, err = Open(cfg)
	if err != nil {
		t.Fatalf("Open badger failed: %v", err)
	}
	if _, ok := s.(*BadgerStorage); !ok {
		t.Errorf("badger backend = %T, want *BadgerStorage", s)
	}
	s.Close()

	cfg.Backend = "rocksdb"
	if _, err := Open(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenIsolatesRuns(t *testing.T) {
	s1, _ := Open(DefaultConfig())
	s2, _ := Open(DefaultConfig())
	defer s1.Close()
	defer s2.Close()

	if err := s1.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ok, _ := s2.Has([]byte("k")); ok {
		t.Error("write to one store is visible in another")
	}
}

func TestOpenBadgerDirRemovedOnClose(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Backend = BackendBadger
	cfg.Badger.Path = root
	cfg.Badger.InMemory = false

	for i := 0; i < 3; i++ {
		s, err := Open(cfg)
		if err != nil {
			t.Fatalf("Open badger failed: %v", err)
		}
		if err := s.Put([]byte("k"), []byte("v")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		entries, _ := os.ReadDir(root)
		if len(entries) != 1 {
			t.Fatalf("run %d: %d run dirs while open, want 1", i, len(entries))
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d run dirs left after Close, want 0", len(entries))
	}
}

func TestScopedKey(t *testing.T) {
	c1 := types.AddressFromSeed("c1")
	c2 := types.AddressFromSeed("c2")

	k1 := ScopedKey(c1, []byte("x"))
	k2 := ScopedKey(c2, []byte("x"))

	if bytes.Equal(k1, k2) {
		t.Error("same key under different contracts should differ")
	}
	if len(k1) != types.AddressSize+1 {
		t.Errorf("scoped key length = %d, want %d", len(k1), types.AddressSize+1)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	alice, err := r.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	bob, _ := r.Create("bob")

	if alice.Handle != 1 || bob.Handle != 2 {
		t.Errorf("handles = %d, %d, want 1, 2", alice.Handle, bob.Handle)
	}
	if alice.Address != types.AddressFromSeed("alice") {
		t.Error("address not derived from name")
	}

	if _, err := r.Create("alice"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate Create: got %v, want ErrAccountExists", err)
	}
	if _, err := r.Create(""); err == nil {
		t.Error("expected error for empty name")
	}

	got, err := r.ByHandle(2)
	if err != nil || got.Name != "bob" {
		t.Errorf("ByHandle(2) = %v, %v, want bob", got, err)
	}
	if _, err := r.ByHandle(0); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("ByHandle(0): got %v, want ErrAccountNotFound", err)
	}
	if _, err := r.ByHandle(3); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("ByHandle(3): got %v, want ErrAccountNotFound", err)
	}
	if _, err := r.ByName("carol"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("ByName(carol): got %v, want ErrAccountNotFound", err)
	}

	if r.Len() != 2 || len(r.All()) != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}
