package memory

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/system"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
)

func TestLedger_CreateAccountWithSeed(t *testing.T) {
	ctx := context.Background()
	l := New()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	l.Airdrop(pub, 10*RentExemption(129))

	addr, err := solana.CreateWithSeed(pub, "store", program)
	require.NoError(t, err)

	txn := signed(t, l, priv, system.CreateAccountWithSeed(pub, addr, pub, "store", RentExemption(129), 129, program))
	sig, err := l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)
	require.NoError(t, err)

	info, err := l.GetAccountInfo(ctx, addr, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Len(t, info.Data, 129)
	assert.EqualValues(t, program, info.Owner)
	assert.Equal(t, RentExemption(129), info.Lamports)

	status, err := l.GetSignatureStatus(ctx, sig, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.Nil(t, status.ErrorResult)

	// A second creation of the same address is rejected as already in use.
	txn = signed(t, l, priv, system.CreateAccountWithSeed(pub, addr, pub, "store", RentExemption(129), 129, program))
	_, err = l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.True(t, txErr.IsAccountAlreadyInUse())
	assert.True(t, txErr.Retryable())

	assert.Len(t, l.Submitted(), 2)
}

func TestLedger_SeedMismatch(t *testing.T) {
	ctx := context.Background()
	l := New()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	l.Airdrop(pub, 1_000_000_000)

	txn := signed(t, l, priv, system.CreateAccountWithSeed(pub, other, pub, "store", 1, 1, system.ProgramKey[:]))
	_, err = l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	require.NotNil(t, txErr.InstructionError())
	assert.EqualValues(t, solana.SystemErrorAddressWithSeedMismatch, *txErr.InstructionError().CustomError())
	assert.False(t, txErr.Retryable())
}

func TestLedger_AssociatedAccount(t *testing.T) {
	ctx := context.Background()
	l := New()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	l.Airdrop(pub, 1_000_000_000)

	ix, addr, err := token.CreateAssociatedTokenAccount(pub, pub, mint)
	require.NoError(t, err)

	_, err = l.SubmitTransaction(ctx, signed(t, l, priv, ix), solana.CommitmentConfirmed)
	require.NoError(t, err)

	accounts, err := l.GetTokenAccountsByOwner(ctx, pub, mint, solana.CommitmentConfirmed)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.EqualValues(t, addr, accounts[0])

	// Idempotent creation succeeds, the plain variant does not.
	idem, _, err := token.CreateAssociatedTokenAccountIdempotent(pub, pub, mint)
	require.NoError(t, err)
	_, err = l.SubmitTransaction(ctx, signed(t, l, priv, idem), solana.CommitmentConfirmed)
	assert.NoError(t, err)

	_, err = l.SubmitTransaction(ctx, signed(t, l, priv, ix), solana.CommitmentConfirmed)
	assert.Error(t, err)
}

func TestLedger_RejectsStaleBlockhashAndBadSignature(t *testing.T) {
	ctx := context.Background()
	l := New()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	l.Airdrop(pub, 1_000_000_000)

	addr, err := solana.CreateWithSeed(pub, "a", system.ProgramKey[:])
	require.NoError(t, err)
	ix := system.CreateAccountWithSeed(pub, addr, pub, "a", 1, 0, system.ProgramKey[:])

	txn := signed(t, l, priv, ix)
	l.ExpireBlockhashes()

	_, err = l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)
	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, txErr.ErrorKey())
	assert.True(t, txErr.Retryable())

	txn = signed(t, l, priv, ix)
	copy(txn.Signatures[0][:], ed25519.Sign(otherPriv, txn.Message.Marshal()))
	_, err = l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, solana.TransactionErrorSignatureFailure, txErr.ErrorKey())

	_, ok := l.Get(addr)
	assert.False(t, ok)
}

func TestLedger_ProcessorAtomicity(t *testing.T) {
	ctx := context.Background()
	l := New()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	l.Airdrop(pub, 1_000_000_000)

	l.RegisterProcessor(program, func(_ *State, _ []ed25519.PublicKey, data []byte) error {
		if len(data) > 0 && data[0] == 1 {
			return solana.CustomError(7)
		}
		return nil
	})

	addr, err := solana.CreateWithSeed(pub, "x", program)
	require.NoError(t, err)

	txn := signed(t, l, priv,
		system.CreateAccountWithSeed(pub, addr, pub, "x", 10, 1, program),
		solana.NewInstruction(program, []byte{1}, solana.NewAccountMeta(addr, false)),
	)
	_, err = l.SubmitTransaction(ctx, txn, solana.CommitmentConfirmed)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, 1, txErr.InstructionError().Index)

	_, ok := l.Get(addr)
	assert.False(t, ok)
}

func TestLedger_WithoutPreflight(t *testing.T) {
	ctx := context.Background()
	l := New(WithoutPreflight(), WithConfirmationStatus("processed"))

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	l.RegisterProcessor(program, func(*State, []ed25519.PublicKey, []byte) error {
		return solana.CustomError(3)
	})

	sig, err := l.SubmitTransaction(ctx, signed(t, l, priv, solana.NewInstruction(program, nil)), solana.CommitmentConfirmed)
	require.NoError(t, err)

	status, err := l.GetSignatureStatus(ctx, sig, solana.CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, status.ErrorResult)

	l.RegisterProcessor(program, func(*State, []ed25519.PublicKey, []byte) error { return nil })

	sig, err = l.SubmitTransaction(ctx, signed(t, l, priv, solana.NewInstruction(program, []byte{2})), solana.CommitmentConfirmed)
	require.NoError(t, err)

	_, err = l.GetSignatureStatus(ctx, sig, solana.CommitmentConfirmed)
	assert.True(t, solana.IsTransient(err))

	l.SetConfirmationStatus(sig, "confirmed")
	status, err = l.GetSignatureStatus(ctx, sig, solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Nil(t, status.ErrorResult)
}

func TestLedger_FilteredProgramAccounts(t *testing.T) {
	ctx := context.Background()
	l := New()

	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	mint, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	account := token.Account{Mint: mint, Owner: owner, State: token.AccountStateInitialized}
	l.Put(mint, solana.AccountInfo{Owner: token.ProgramKey, Data: account.Marshal()})
	l.Put(owner, solana.AccountInfo{Owner: token.ProgramKey, Data: make([]byte, 10)})

	results, err := l.GetFilteredProgramAccounts(ctx, token.ProgramKey, solana.CommitmentConfirmed,
		solana.DataSizeFilter(token.AccountSize),
		solana.MemcmpAt(32, owner),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, mint, results[0].PublicKey)

	l.FailWith("getProgramAccounts", solana.ErrServiceError)
	_, err = l.GetFilteredProgramAccounts(ctx, token.ProgramKey, solana.CommitmentConfirmed)
	assert.ErrorIs(t, err, solana.ErrServiceError)
}

func signed(t *testing.T, l *Ledger, priv ed25519.PrivateKey, instructions ...solana.Instruction) solana.Transaction {
	bh, err := l.GetLatestBlockhash(context.Background())
	require.NoError(t, err)

	txn := solana.NewTransaction(priv.Public().(ed25519.PublicKey), instructions...)
	txn.SetBlockhash(bh)
	require.NoError(t, txn.Sign(priv))
	return txn
}
