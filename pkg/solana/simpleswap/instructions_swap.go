package simpleswap

import (
	"crypto/ed25519"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
)

type SwapInstructionAccounts struct {
	Owner           ed25519.PublicKey
	FundedAccount   ed25519.PublicKey
	ReceiverAccount ed25519.PublicKey
	LamportEscrow   ed25519.PublicKey
	SwapStore       ed25519.PublicKey
	Authority       ed25519.PublicKey
}

// NewSwapInstruction pays out tokens from the funded account in exchange for
// the lamports held by the escrow. The authority is the program derived
// address and never signs.
func NewSwapInstruction(program ed25519.PublicKey, accounts *SwapInstructionAccounts) solana.Instruction {
	return solana.NewInstruction(
		program,
		[]byte{byte(InstructionTypeSwap)},
		solana.NewAccountMeta(accounts.Owner, true),
		solana.NewAccountMeta(accounts.FundedAccount, false),
		solana.NewAccountMeta(accounts.ReceiverAccount, false),
		solana.NewAccountMeta(accounts.LamportEscrow, false),
		solana.NewAccountMeta(accounts.SwapStore, false),
		solana.NewReadonlyAccountMeta(token.ProgramKey, false),
		solana.NewReadonlyAccountMeta(accounts.Authority, false),
	)
}
