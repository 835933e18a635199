// Package identity derives canonical marketplace identifiers (DIDs)
// from caller credentials.
//
// The marketplace does not consume a real DID registry: identifiers are
// derived deterministically from the caller's address. The encoding is
// injective — the 20 address bytes embed verbatim as fixed-width hex
// after a constant prefix, so two distinct credentials can never
// collide and the payout address can always be recovered from the DID.
package identity

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Prefix is the DID method prefix for all marketplace identifiers.
const Prefix = "did:zia:"

var (
	ErrInvalidCredential = errors.New("identity: invalid caller credential")
	ErrInvalidDID        = errors.New("identity: malformed identifier")
)

// DID is a canonical marketplace identifier.
type DID string

// Derive maps an address credential to its canonical DID.
func Derive(addr common.Address) DID {
	return DID(Prefix + "0x" + common.Bytes2Hex(addr.Bytes()))
}

// FromCredential validates a hex address credential and derives its DID.
func FromCredential(credential string) (DID, error) {
	if !common.IsHexAddress(credential) {
		return "", ErrInvalidCredential
	}
	return Derive(common.HexToAddress(credential)), nil
}

// Valid reports whether d is a well-formed marketplace DID.
func (d DID) Valid() bool {
	s := string(d)
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	return common.IsHexAddress(s[len(Prefix):])
}

// Address recovers the payout address embedded in the DID.
func (d DID) Address() (common.Address, error) {
	if !d.Valid() {
		return common.Address{}, ErrInvalidDID
	}
	return common.HexToAddress(string(d)[len(Prefix):]), nil
}

func (d DID) String() string { return string(d) }

// Resolver maps caller credentials to DIDs. Production deployments may
// swap the deterministic deriver for an external DID service.
type Resolver interface {
	Resolve(credential string) (DID, error)
}

// Deriver is the default Resolver backed by Derive.
type Deriver struct{}

func (Deriver) Resolve(credential string) (DID, error) {
	return FromCredential(credential)
}
