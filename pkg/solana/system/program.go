// Package system builds and decompiles the system program instructions the
// swap flows use to allocate accounts.
package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

// ProgramKey is the system program, 11111111111111111111111111111111.
var ProgramKey [32]byte

// RentSysVar is the address of the rent sysvar.
var RentSysVar = mustDecode("SysvarRent111111111111111111111111111111111")

func mustDecode(s string) ed25519.PublicKey {
	b, err := base58.Decode(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Instruction discriminators, as the u32 little endian enum index.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/system_instruction.rs#L58
const commandCreateAccountWithSeed uint32 = 3

// Size of the fixed part of CreateAccountWithSeed data, excluding the seed
// bytes: command, base, seed length, lamports, space, owner.
const createWithSeedFixedSize = 4 + 32 + 8 + 8 + 8 + 32

// CreateAccountWithSeed allocates an account at the address derived from
// base, seed and owner. The base key must sign; when it is not the funder it
// is appended as a read-only signer.
//
// Accounts:
//
//  0. [WRITE, SIGNER] funder
//  1. [WRITE] new account
//  2. [SIGNER] base, when distinct from the funder
func CreateAccountWithSeed(funder, address, base ed25519.PublicKey, seed string, lamports, size uint64, owner ed25519.PublicKey) solana.Instruction {
	data := encode(commandCreateAccountWithSeed, func(e *bin.Encoder) error {
		if err := writeKey(e, base); err != nil {
			return err
		}
		if err := e.WriteRustString(seed); err != nil {
			return err
		}
		if err := e.WriteUint64(lamports, binary.LittleEndian); err != nil {
			return err
		}
		if err := e.WriteUint64(size, binary.LittleEndian); err != nil {
			return err
		}
		return writeKey(e, owner)
	})

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, false),
	}
	if !bytes.Equal(funder, base) {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(base, true))
	}

	return solana.NewInstruction(ProgramKey[:], data, accounts...)
}

type DecompiledCreateAccountWithSeed struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey
	Base    ed25519.PublicKey

	Seed     string
	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccountWithSeed(m solana.Message, index int) (*DecompiledCreateAccountWithSeed, error) {
	accounts, d, err := decompile(m, index, commandCreateAccountWithSeed, 2, 3)
	if err != nil {
		return nil, err
	}

	dataSize := 4 + d.Remaining()
	if dataSize < createWithSeedFixedSize {
		return nil, errors.Errorf("invalid instruction data size: %d", dataSize)
	}

	v := &DecompiledCreateAccountWithSeed{
		Funder:  accounts[0],
		Address: accounts[1],
	}
	if v.Base, err = readKey(d); err != nil {
		return nil, err
	}

	seedLen, err := d.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if seedLen != uint64(dataSize-createWithSeedFixedSize) {
		return nil, errors.Errorf("invalid seed length: %d", seedLen)
	}
	seed, err := d.ReadNBytes(int(seedLen))
	if err != nil {
		return nil, err
	}
	v.Seed = string(seed)

	if v.Lamports, err = d.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if v.Size, err = d.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if v.Owner, err = readKey(d); err != nil {
		return nil, err
	}
	return v, nil
}

func encode(command uint32, body func(*bin.Encoder) error) []byte {
	buf := new(bytes.Buffer)
	e := bin.NewBinEncoder(buf)

	// Writes to a bytes.Buffer cannot fail.
	_ = e.WriteUint32(command, binary.LittleEndian)
	_ = body(e)
	return buf.Bytes()
}

// decompile checks that instruction index invokes command on the system
// program, and returns its accounts and a decoder positioned after the
// command.
func decompile(m solana.Message, index int, command uint32, minAccounts, maxAccounts int) ([]ed25519.PublicKey, *bin.Decoder, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	ix := m.Instructions[index]
	if !bytes.Equal(m.Accounts[ix.ProgramIndex], ProgramKey[:]) {
		return nil, nil, solana.ErrIncorrectProgram
	}
	if len(ix.Data) < 4 || binary.LittleEndian.Uint32(ix.Data) != command {
		return nil, nil, solana.ErrIncorrectInstruction
	}
	if len(ix.Accounts) < minAccounts || len(ix.Accounts) > maxAccounts {
		return nil, nil, errors.Errorf("invalid number of accounts: %d", len(ix.Accounts))
	}

	accounts := make([]ed25519.PublicKey, len(ix.Accounts))
	for i, idx := range ix.Accounts {
		accounts[i] = m.Accounts[idx]
	}

	return accounts, bin.NewBinDecoder(ix.Data[4:]), nil
}

func writeKey(e *bin.Encoder, key ed25519.PublicKey) error {
	var raw [ed25519.PublicKeySize]byte
	copy(raw[:], key)
	return e.WriteBytes(raw[:], false)
}

func readKey(d *bin.Decoder) (ed25519.PublicKey, error) {
	raw, err := d.ReadNBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return append(ed25519.PublicKey(nil), raw...), nil
}
