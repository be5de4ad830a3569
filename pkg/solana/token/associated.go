package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/system"
)

// AssociatedTokenAccountProgramKey is ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL.
var AssociatedTokenAccountProgramKey = ed25519.PublicKey{140, 151, 37, 143, 78, 36, 137, 241, 187, 61, 16, 41, 20, 142, 13, 131, 11, 90, 19, 153, 218, 255, 16, 132, 4, 142, 123, 216, 219, 233, 248, 89}

// Reference: https://github.com/solana-labs/solana-program-library/blob/associated-token-account-v1.1.0/associated-token-account/program/src/instruction.rs#L13-L49
const (
	commandCreate byte = iota
	commandCreateIdempotent
)

const associatedAccountCount = 7

// GetAssociatedAccount returns the canonical token account address for the
// wallet and mint: the program address of [wallet, token program, mint].
//
// Reference: https://spl.solana.com/associated-token-account#finding-the-associated-token-account-address
func GetAssociatedAccount(wallet, mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(AssociatedTokenAccountProgramKey, wallet, ProgramKey, mint)
}

// CreateAssociatedTokenAccount creates the associated account of wallet for
// mint, funded by subsidizer. It fails on chain if the account exists.
func CreateAssociatedTokenAccount(subsidizer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return newCreateAssociated(commandCreate, subsidizer, wallet, mint)
}

// CreateAssociatedTokenAccountIdempotent is CreateAssociatedTokenAccount,
// except that it succeeds when the account already exists and is owned by
// wallet.
func CreateAssociatedTokenAccountIdempotent(subsidizer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	return newCreateAssociated(commandCreateIdempotent, subsidizer, wallet, mint)
}

// Accounts:
//
//  0. [WRITE, SIGNER] subsidizer
//  1. [WRITE] associated account
//  2. [] wallet
//  3. [] mint
//  4. [] system program
//  5. [] token program
//  6. [] rent sysvar
func newCreateAssociated(command byte, subsidizer, wallet, mint ed25519.PublicKey) (solana.Instruction, ed25519.PublicKey, error) {
	addr, err := GetAssociatedAccount(wallet, mint)
	if err != nil {
		return solana.Instruction{}, nil, err
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(subsidizer, true),
		solana.NewAccountMeta(addr, false),
	}
	for _, key := range [][]byte{wallet, mint, system.ProgramKey[:], ProgramKey, system.RentSysVar} {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(key, false))
	}

	return solana.NewInstruction(AssociatedTokenAccountProgramKey, []byte{command}, accounts...), addr, nil
}

type DecompiledCreateAssociatedAccount struct {
	Subsidizer ed25519.PublicKey
	Address    ed25519.PublicKey
	Owner      ed25519.PublicKey
	Mint       ed25519.PublicKey
	Idempotent bool
}

// DecompileCreateAssociatedAccount decompiles either create variant. Empty
// data is the legacy encoding of the non-idempotent variant.
func DecompileCreateAssociatedAccount(m solana.Message, index int) (*DecompiledCreateAssociatedAccount, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	ix := m.Instructions[index]
	if !bytes.Equal(m.Accounts[ix.ProgramIndex], AssociatedTokenAccountProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}

	v := &DecompiledCreateAssociatedAccount{}
	switch {
	case len(ix.Data) == 0 || bytes.Equal(ix.Data, []byte{commandCreate}):
	case bytes.Equal(ix.Data, []byte{commandCreateIdempotent}):
		v.Idempotent = true
	default:
		return nil, solana.ErrIncorrectInstruction
	}

	if len(ix.Accounts) != associatedAccountCount {
		return nil, errors.Errorf("invalid number of accounts: %d (expected %d)", len(ix.Accounts), associatedAccountCount)
	}

	keys := make([]ed25519.PublicKey, associatedAccountCount)
	for i, idx := range ix.Accounts {
		keys[i] = m.Accounts[idx]
	}

	for i, expected := range map[int]struct {
		name string
		key  ed25519.PublicKey
	}{
		4: {"system program", system.ProgramKey[:]},
		5: {"token program", ProgramKey},
		6: {"rent sysvar", system.RentSysVar},
	} {
		if !bytes.Equal(keys[i], expected.key) {
			return nil, errors.Errorf("%s key mismatch", expected.name)
		}
	}

	v.Subsidizer, v.Address, v.Owner, v.Mint = keys[0], keys[1], keys[2], keys[3]
	return v, nil
}
