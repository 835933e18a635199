package identity

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDerive_Deterministic(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	a := Derive(addr)
	b := Derive(addr)
	if a != b {
		t.Errorf("same credential must derive the same DID: %s vs %s", a, b)
	}
}

func TestDerive_Injective(t *testing.T) {
	seen := make(map[DID]common.Address)
	addrs := []string{
		"0x1111111111111111111111111111111111111111",
		"0x1111111111111111111111111111111111111112",
		"0x0000000000000000000000000000000000000001",
		"0xffffffffffffffffffffffffffffffffffffffff",
		"0xAbCdEf0123456789aBcDeF0123456789abcdef01",
	}
	for _, hex := range addrs {
		addr := common.HexToAddress(hex)
		did := Derive(addr)
		if prev, ok := seen[did]; ok {
			t.Fatalf("collision: %s and %s both derive %s", prev.Hex(), addr.Hex(), did)
		}
		seen[did] = addr
	}
}

func TestFromCredential_CaseInsensitive(t *testing.T) {
	lower, err := FromCredential("0xabcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatalf("FromCredential failed: %v", err)
	}
	upper, err := FromCredential("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	if err != nil {
		t.Fatalf("FromCredential failed: %v", err)
	}
	if lower != upper {
		t.Errorf("credential casing must not change the DID: %s vs %s", lower, upper)
	}
}

func TestFromCredential_Invalid(t *testing.T) {
	for _, cred := range []string{"", "not-an-address", "0x1234", "did:zia:0x11"} {
		if _, err := FromCredential(cred); err != ErrInvalidCredential {
			t.Errorf("FromCredential(%q): expected ErrInvalidCredential, got %v", cred, err)
		}
	}
}

func TestDID_AddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x2222222222222222222222222222222222222222")
	did := Derive(addr)

	if !did.Valid() {
		t.Fatalf("derived DID should be valid: %s", did)
	}
	got, err := did.Address()
	if err != nil {
		t.Fatalf("Address failed: %v", err)
	}
	if got != addr {
		t.Errorf("round trip mismatch: %s vs %s", got.Hex(), addr.Hex())
	}
}

func TestDID_Valid(t *testing.T) {
	if DID("did:zia:garbage").Valid() {
		t.Error("malformed hex should not validate")
	}
	if DID("did:other:0x1111111111111111111111111111111111111111").Valid() {
		t.Error("wrong method prefix should not validate")
	}
	if !strings.HasPrefix(string(Derive(common.Address{})), Prefix) {
		t.Error("derived DID must carry the method prefix")
	}
}

func TestDeriver_Resolve(t *testing.T) {
	var r Resolver = Deriver{}
	did, err := r.Resolve("0x3333333333333333333333333333333333333333")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want, _ := FromCredential("0x3333333333333333333333333333333333333333")
	if did != want {
		t.Errorf("Resolve mismatch: %s vs %s", did, want)
	}
}
