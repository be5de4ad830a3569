package simpleswap

import (
	"crypto/ed25519"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

const (
	SwapStoreSeed     = "swapStoreAccount"
	LamportEscrowSeed = "swapLamportsAccount"
)

var authorityPrefix = []byte("mov_swap")

// GetSwapStoreAddress returns the per owner swap store derived from the owner
// key, the store seed and the program.
func GetSwapStoreAddress(program, owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.CreateWithSeed(owner, SwapStoreSeed, program)
}

// GetLamportEscrowAddress returns the escrow that holds the lamports posted by
// a single swap. The nonce scopes the address to one call so concurrent swaps
// by the same owner don't collide. The full seed is returned alongside the
// address since the allocation instruction needs it.
func GetLamportEscrowAddress(program, owner ed25519.PublicKey, nonce string) (ed25519.PublicKey, string, error) {
	seed := LamportEscrowSeed + nonce
	addr, err := solana.CreateWithSeed(owner, seed, program)
	if err != nil {
		return nil, "", err
	}
	return addr, seed, nil
}

// GetAuthorityAddress returns the program derived address the program signs
// token transfers with.
func GetAuthorityAddress(program ed25519.PublicKey) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(program, authorityPrefix)
}
