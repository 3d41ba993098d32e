// Package types defines the identifiers shared across SoroScope.
//
// Addresses and hashes are fixed 32-byte values. Addresses render as base58
// (the form users see in reports and logs), hashes render as hex.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Size constants for core types.
const (
	AddressSize = 32
	HashSize    = 32
)

var (
	// ErrInvalidAddress is returned when an address has invalid length.
	ErrInvalidAddress = errors.New("invalid address: must be 32 bytes")

	// ErrInvalidHash is returned when a hash has invalid length.
	ErrInvalidHash = errors.New("invalid hash: must be 32 bytes")
)

// Address identifies an account or a deployed contract.
type Address [AddressSize]byte

// AddressFromSeed derives a deterministic address from a human-readable seed.
// Benchmark accounts are named ("alice", "bob"), so the same name always maps
// to the same address across runs.
func AddressFromSeed(seed string) Address {
	return Address(blake3.Sum256([]byte("soroscope/account/" + seed)))
}

// AddressFromBase58 parses a base58-encoded address.
func AddressFromBase58(s string) (Address, error) {
	var a Address
	data, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("base58 decode: %w", err)
	}
	if len(data) != AddressSize {
		return a, ErrInvalidAddress
	}
	copy(a[:], data)
	return a, nil
}

// String returns the base58-encoded representation.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Short returns the first eight base58 characters, for log lines.
func (a Address) Short() string {
	s := a.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromBase58(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash represents a 32-byte SHA256 hash.
type Hash [HashSize]byte

// ComputeHash computes the SHA256 hash of data. Module code is identified by
// this hash.
func ComputeHash(data []byte) Hash {
	return sha256.Sum256(data)
}

// HashFromHex parses a hex-encoded hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	data, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hex decode: %w", err)
	}
	if len(data) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], data)
	return h, nil
}

// String returns the hex-encoded representation.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ContractAddress derives the address a contract is deployed at from its
// deployer and code hash: keccak256(deployer || code hash).
func ContractAddress(deployer Address, code Hash) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(deployer[:])
	h.Write(code[:])
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}
