package solana

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta is an account reference and the roles an instruction needs it
// in.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
	isProgram  bool
}

// NewAccountMeta references a writable account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta references a read-only account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// accountLess orders accounts the way the runtime expects: the payer first,
// then signers before non-signers and writable before read-only within each,
// with invoked programs last. Ties are broken by key.
func accountLess(a, b AccountMeta) bool {
	switch {
	case a.isPayer != b.isPayer:
		return a.isPayer
	case a.isProgram != b.isProgram:
		return b.isProgram
	case a.IsSigner != b.IsSigner:
		return a.IsSigner
	case a.IsWritable != b.IsWritable:
		return a.IsWritable
	}
	return bytes.Compare(a.PublicKey, b.PublicKey) < 0
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// References returns whether the instruction's account list contains the
// provided account.
func (i Instruction) References(account ed25519.PublicKey) bool {
	for _, a := range i.Accounts {
		if bytes.Equal(a.PublicKey, account) {
			return true
		}
	}
	return false
}

// String returns a short description of the instruction for logging.
func (i Instruction) String() string {
	opcode := "none"
	if len(i.Data) > 0 {
		opcode = strconv.Itoa(int(i.Data[0]))
	}
	return fmt.Sprintf("program=%s accounts=%d opcode=%s", base58.Encode(i.Program), len(i.Accounts), opcode)
}

// CompiledInstruction is an instruction whose program and accounts are
// indexes into the message's account list.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
