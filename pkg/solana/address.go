package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"hash"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32

	bumpAttempts = math.MaxUint8 + 1
)

var (
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")
	ErrDerivationExhausted   = errors.New("no viable bump seed found for program address")

	ErrInvalidPublicKey = errors.New("invalid public key")
)

// isOnCurve reports whether b decompresses to an ed25519 point. It is a
// variable so tests can force derivation failures.
var isOnCurve = func(b []byte) bool {
	var pub [ed25519.PublicKeySize]byte
	copy(pub[:], b)

	// The extended group element lives in an internal x/crypto package, so
	// decompression goes through the jdgcs fork.
	var A edwards25519.ExtendedGroupElement
	return A.FromBytes(&pub)
}

func hashParts(h hash.Hash, parts ...[]byte) ([]byte, error) {
	for _, part := range parts {
		if _, err := h.Write(part); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}
	return h.Sum(nil), nil
}

// CreateWithSeed mirrors the Solana SDK's Pubkey::create_with_seed. The derived
// address is sha256(base || seed || program), and may lie on the curve.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L137
func CreateWithSeed(base ed25519.PublicKey, seed string, program ed25519.PublicKey) (ed25519.PublicKey, error) {
	if len(base) != ed25519.PublicKeySize || len(program) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	if len(seed) > maxSeedLength {
		return nil, ErrMaxSeedLengthExceeded
	}

	return hashParts(sha256.New(), base, []byte(seed), program)
}

// CreateProgramAddress mirrors the implementation of the Solana SDK's CreateProgramAddress.
//
// ProgramAddresses are public keys that _do not_ lie on the ed25519 curve to ensure that
// there is no associated private key. In the event that the program and seed parameters
// result in a valid public key, ErrInvalidPublicKey is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if len(seeds) > maxSeeds {
		return nil, ErrTooManySeeds
	}

	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return nil, ErrMaxSeedLengthExceeded
		}
	}

	parts := append(append([][]byte{}, seeds...), program, []byte("ProgramDerivedAddress"))
	pub, err := hashParts(sha256.New(), parts...)
	if err != nil {
		return nil, err
	}

	// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L182-L187
	if isOnCurve(pub) {
		return nil, ErrInvalidPublicKey
	}

	return pub, nil
}

// FindProgramAddressAndBump mirrors the implementation of the Solana SDK's
// FindProgramAddress. It returns the address and bump seed.
//
// Every bump from 255 down to 0 is tried. ErrDerivationExhausted is returned
// when all of them land on the curve.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	if len(program) != ed25519.PublicKeySize {
		return nil, 0, ErrInvalidPublicKey
	}

	bumpSeed := []byte{math.MaxUint8}
	for i := 0; i < bumpAttempts; i++ {
		pub, err := CreateProgramAddress(program, append(seeds[:len(seeds):len(seeds)], bumpSeed)...)
		if err == nil {
			return pub, bumpSeed[0], nil
		}
		if err != ErrInvalidPublicKey {
			return nil, 0, err
		}

		bumpSeed[0]--
	}

	return nil, 0, ErrDerivationExhausted
}

// FindProgramAddress mirrors the implementation of the Solana SDK's FindProgramAddress.
// It only returns the address.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}
