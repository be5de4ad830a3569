package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

func TestProgramKeys(t *testing.T) {
	assert.Equal(t, "11111111111111111111111111111111", base58.Encode(ProgramKey[:]))
	assert.Equal(t, "SysvarRent111111111111111111111111111111111", base58.Encode(RentSysVar))
}

func TestCreateAccountWithSeed(t *testing.T) {
	keys := generateKeys(t, 3)
	funder, address, owner := keys[0], keys[1], keys[2]
	seed := "swapStoreAccount"

	ix := CreateAccountWithSeed(funder, address, funder, seed, 12345, 129, owner)

	assert.EqualValues(t, ProgramKey[:], ix.Program)
	require.Len(t, ix.Data, createWithSeedFixedSize+len(seed))
	assert.EqualValues(t, 3, binary.LittleEndian.Uint32(ix.Data))
	assert.Equal(t, []byte(funder), ix.Data[4:36])
	assert.EqualValues(t, len(seed), binary.LittleEndian.Uint64(ix.Data[36:44]))
	assert.Equal(t, seed, string(ix.Data[44:60]))
	assert.EqualValues(t, 12345, binary.LittleEndian.Uint64(ix.Data[60:68]))
	assert.EqualValues(t, 129, binary.LittleEndian.Uint64(ix.Data[68:76]))
	assert.Equal(t, []byte(owner), ix.Data[76:108])

	// The funder doubles as the base, so only two accounts are referenced
	// and the new account does not sign.
	require.Len(t, ix.Accounts, 2)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.False(t, ix.Accounts[1].IsSigner)
	assert.True(t, ix.Accounts[1].IsWritable)

	m := roundTrip(t, funder, ix)
	decompiled, err := DecompileCreateAccountWithSeed(m, 0)
	require.NoError(t, err)
	assert.Equal(t, &DecompiledCreateAccountWithSeed{
		Funder:   funder,
		Address:  address,
		Base:     funder,
		Seed:     seed,
		Lamports: 12345,
		Size:     129,
		Owner:    owner,
	}, decompiled)
}

func TestCreateAccountWithSeed_SeparateBase(t *testing.T) {
	keys := generateKeys(t, 4)

	ix := CreateAccountWithSeed(keys[0], keys[1], keys[2], "", 1, 1, keys[3])
	require.Len(t, ix.Accounts, 3)
	assert.EqualValues(t, keys[2], ix.Accounts[2].PublicKey)
	assert.True(t, ix.Accounts[2].IsSigner)
	assert.False(t, ix.Accounts[2].IsWritable)

	decompiled, err := DecompileCreateAccountWithSeed(roundTrip(t, keys[0], ix), 0)
	require.NoError(t, err)
	assert.EqualValues(t, keys[2], decompiled.Base)
	assert.Empty(t, decompiled.Seed)
}

func TestDecompile_Invalid(t *testing.T) {
	keys := generateKeys(t, 4)
	valid := CreateAccountWithSeed(keys[0], keys[1], keys[0], "seed", 1, 1, keys[2])

	for _, tc := range []struct {
		name   string
		mutate func(ix *solana.Instruction)
		index  int
		prefix string
		err    error
	}{
		{name: "missing index", index: 1, prefix: "instruction doesn't exist"},
		{name: "other program", mutate: func(ix *solana.Instruction) { ix.Program = keys[3] }, err: solana.ErrIncorrectProgram},
		{name: "short command", mutate: func(ix *solana.Instruction) { ix.Data = ix.Data[:3] }, err: solana.ErrIncorrectInstruction},
		{name: "other command", mutate: func(ix *solana.Instruction) { ix.Data[0] = 8 }, err: solana.ErrIncorrectInstruction},
		{name: "too few accounts", mutate: func(ix *solana.Instruction) { ix.Accounts = ix.Accounts[:1] }, prefix: "invalid number of accounts"},
		{name: "truncated", mutate: func(ix *solana.Instruction) { ix.Data = ix.Data[:10] }, prefix: "invalid instruction data size"},
		{name: "seed length", mutate: func(ix *solana.Instruction) { ix.Data[36] = 9 }, prefix: "invalid seed length"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ix := valid
			ix.Data = append([]byte(nil), valid.Data...)
			ix.Accounts = append([]solana.AccountMeta(nil), valid.Accounts...)
			if tc.mutate != nil {
				tc.mutate(&ix)
			}

			_, err := DecompileCreateAccountWithSeed(solana.NewTransaction(keys[0], ix).Message, tc.index)
			require.Error(t, err)
			if tc.err != nil {
				assert.Equal(t, tc.err, err)
			} else {
				assert.True(t, strings.HasPrefix(err.Error(), tc.prefix), err.Error())
			}
		})
	}
}

func roundTrip(t *testing.T, payer ed25519.PublicKey, ix solana.Instruction) solana.Message {
	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(payer, ix).Marshal()))
	return tx.Message
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)
	for i := range keys {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}
	return keys
}
