package resolver

import (
	"crypto/ed25519"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

// Resolution is the outcome of resolving an account: either Resolved, or
// NeedsCreate carrying the instruction that creates it.
type Resolution interface {
	Address() ed25519.PublicKey

	isResolution()
}

// Resolved is an account that already exists in the expected state.
type Resolved struct {
	address ed25519.PublicKey
}

func (r Resolved) Address() ed25519.PublicKey {
	return r.address
}

func (Resolved) isResolution() {}

// NeedsCreate is an account that must be created before use. Reason is
// swap.ErrNotFound or swap.ErrInvalidOwner.
type NeedsCreate struct {
	address     ed25519.PublicKey
	Instruction solana.Instruction
	Reason      error
}

func (r NeedsCreate) Address() ed25519.PublicKey {
	return r.address
}

func (NeedsCreate) isResolution() {}

// CreateInstructions returns the create instructions of every NeedsCreate in
// resolutions, in order.
func CreateInstructions(resolutions ...Resolution) []solana.Instruction {
	var instructions []solana.Instruction
	for _, r := range resolutions {
		if nc, ok := r.(NeedsCreate); ok {
			instructions = append(instructions, nc.Instruction)
		}
	}
	return instructions
}
