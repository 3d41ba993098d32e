package types

import (
	"testing"
)

func TestAddressFromSeedDeterministic(t *testing.T) {
	a1 := AddressFromSeed("alice")
	a2 := AddressFromSeed("alice")
	b := AddressFromSeed("bob")

	if a1 != a2 {
		t.Errorf("AddressFromSeed not deterministic: %s != %s", a1, a2)
	}
	if a1 == b {
		t.Error("different seeds produced the same address")
	}
	if a1.IsZero() {
		t.Error("derived address is zero")
	}
}

func TestAddressBase58RoundTrip(t *testing.T) {
	a := AddressFromSeed("alice")

	parsed, err := AddressFromBase58(a.String())
	if err != nil {
		t.Fatalf("AddressFromBase58 failed: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, a)
	}

	if _, err := AddressFromBase58("abc"); err == nil {
		t.Error("expected error for short address")
	}
	if len(a.Short()) != 8 {
		t.Errorf("Short() length = %d, want 8", len(a.Short()))
	}
}

func TestHashHex(t *testing.T) {
	h := ComputeHash([]byte("module"))

	parsed, err := HashFromHex(h.String())
	if err != nil {
		t.Fatalf("HashFromHex failed: %v", err)
	}
	if parsed != h {
		t.Error("hex round trip mismatch")
	}

	if _, err := HashFromHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestContractAddress(t *testing.T) {
	code := ComputeHash([]byte("code"))

	a1 := ContractAddress(DeployerAddr, code)
	a2 := ContractAddress(DeployerAddr, code)
	other := ContractAddress(DeployerAddr, ComputeHash([]byte("other")))

	if a1 != a2 {
		t.Error("ContractAddress not deterministic")
	}
	if a1 == other {
		t.Error("different code produced the same contract address")
	}
}
