// Package address implements the ledger's 32-byte account addresses
// and the deterministic derivation of program-owned addresses from
// ordered seed tuples.
//
// A derived address is sha256(seed_0 ‖ … ‖ seed_n ‖ bump ‖ programID ‖
// "ProgramDerivedAddress"). A candidate is only valid if it does NOT
// decode to a point on the ed25519 curve, so no private key can ever
// sign for it. FindProgramAddress searches bumps from 255 down to 0
// and returns the first valid candidate.
package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Length is the byte length of an address.
const Length = 32

const (
	// MaxSeeds is the maximum number of seeds, including the bump.
	MaxSeeds = 16
	// MaxSeedLen is the maximum byte length of a single seed.
	MaxSeedLen = 32
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrMaxSeedLengthExceeded is returned when a seed is longer than
	// MaxSeedLen or too many seeds are supplied.
	ErrMaxSeedLengthExceeded = errors.New("address: max seed length exceeded")
	// ErrInvalidSeeds is returned when the seeds hash onto the curve.
	ErrInvalidSeeds = errors.New("address: provided seeds do not result in a valid address")
	// ErrNoViableBump is returned when no bump in [0, 255] yields an
	// off-curve address.
	ErrNoViableBump = errors.New("address: no valid address found")
	// ErrInvalidLength is returned when decoding bytes of the wrong size.
	ErrInvalidLength = errors.New("address: invalid length")
)

// Address is a 32-byte account address.
type Address [Length]byte

// Zero is the all-zero address.
var Zero Address

// String returns the base58 form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Length)
	copy(b, a[:])
	return b
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// FromBytes copies b into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Length {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromBase58 decodes a base58 address.
func FromBase58(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("address: decode %q: %w", s, err)
	}
	return FromBytes(raw)
}

// MustFromBase58 is FromBase58 that panics on error. Intended for
// package-level constants.
func MustFromBase58(s string) Address {
	a, err := FromBase58(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsOnCurve reports whether b is the compressed encoding of a point
// on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != Length {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes seeds and programID into a derived
// address. The seeds are used as given; callers that want a bump must
// append it themselves.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeedLengthExceeded
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return Address{}, ErrInvalidSeeds
	}
	return out, nil
}

// FindProgramAddress returns the first off-curve address for seeds,
// trying bumps from 255 down to 0, together with the bump used.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrMaxSeedLengthExceeded
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	bump := []byte{0}
	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		withBump[len(seeds)] = bump
		addr, err := CreateProgramAddress(withBump, programID)
		switch {
		case err == nil:
			return addr, uint8(b), nil
		case errors.Is(err, ErrInvalidSeeds):
			continue
		default:
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}
