package simpleswap

import (
	"crypto/ed25519"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
)

type InitializeInstructionAccounts struct {
	Owner         ed25519.PublicKey
	SwapStore     ed25519.PublicKey
	FundedAccount ed25519.PublicKey
}

// NewInitializeInstruction binds the swap store to its owner and the token
// account swaps are paid out of.
func NewInitializeInstruction(program ed25519.PublicKey, accounts *InitializeInstructionAccounts) solana.Instruction {
	return solana.NewInstruction(
		program,
		[]byte{byte(InstructionTypeInitialize)},
		solana.NewReadonlyAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.SwapStore, false),
		solana.NewAccountMeta(accounts.FundedAccount, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
	)
}
