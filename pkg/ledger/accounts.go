package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fortiblox/soroscope/internal/types"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when an account name is already taken.
	ErrAccountExists = errors.New("account already exists")
)

// Account is a named identity a contract can refer to.
//
// The harness never tracks balances itself: a balance is whatever the
// contract keeps in its storage for the account's handle, changed only by
// contract invocations and observed only by invoking the balance operation.
type Account struct {
	// Name is the human-readable name used in scenarios.
	Name string

	// Address is derived from Name and stable across runs.
	Address types.Address

	// Handle is the integer a contract receives in place of the address.
	// Handles start at 1; 0 is never assigned.
	Handle uint32
}

// String returns "name(address-prefix)".
func (a Account) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, a.Address.Short())
}

// Registry holds the accounts known to one host context.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]Account
	byHandle []Account
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Account),
	}
}

// Create registers a new account under name.
func (r *Registry) Create(name string) (Account, error) {
	if name == "" {
		return Account{}, fmt.Errorf("%w: empty name", ErrInvalidKey)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, name)
	}

	acc := Account{
		Name:    name,
		Address: types.AddressFromSeed(name),
		Handle:  uint32(len(r.byHandle) + 1),
	}
	r.byName[name] = acc
	r.byHandle = append(r.byHandle, acc)
	return acc, nil
}

// ByName looks up an account by name.
func (r *Registry) ByName(name string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.byName[name]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	return acc, nil
}

// ByHandle looks up an account by its contract-facing handle.
func (r *Registry) ByHandle(handle uint32) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handle == 0 || int(handle) > len(r.byHandle) {
		return Account{}, fmt.Errorf("%w: handle %d", ErrAccountNotFound, handle)
	}
	return r.byHandle[handle-1], nil
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

// All returns the accounts in creation order.
func (r *Registry) All() []Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Account, len(r.byHandle))
	copy(out, r.byHandle)
	return out
}
