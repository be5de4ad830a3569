package swap

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

func TestIsRetryable(t *testing.T) {
	alreadyInUse, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 0,
		Err:   solana.SystemErrorAccountAlreadyInUse,
	})
	assert.NoError(t, err)

	customFailure, err := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: 1,
		Err:   solana.CustomError(6),
	})
	assert.NoError(t, err)

	for _, tc := range []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"stale blockhash", &LedgerRejectionError{Err: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)}, true},
		{"duplicate create", &LedgerRejectionError{Err: alreadyInUse}, true},
		{"program failure", &LedgerRejectionError{Err: customFailure}, false},
		{"insufficient funds", &LedgerRejectionError{Err: solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)}, false},
		{"wrapped rejection", errors.Wrap(&LedgerRejectionError{Err: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)}, "swap"), true},
		{"rate limited", errors.Wrap(solana.ErrRateLimited, "getAccountInfo"), true},
		{"transport", solana.ErrTransport, true},
		{"timeout", errors.Wrap(context.DeadlineExceeded, "confirm"), true},
		{"cancelled", context.Canceled, false},
		{"user rejected", ErrUserRejected, false},
		{"invalid input", InvalidInput(solana.ErrInvalidPublicKey), false},
		{"no signer", ErrNoSigner, false},
		{"not initialized", errors.Wrap(ErrNotInitialized, "swap store"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, IsRetryable(tc.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	err := Classify(solana.ErrMaxSeedLengthExceeded)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(err, solana.ErrMaxSeedLengthExceeded))

	err = Classify(errors.Wrap(solana.ErrInvalidPublicKey, "owner"))
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = Classify(solana.ErrDerivationExhausted)
	assert.True(t, errors.Is(err, ErrDerivationExhausted))
	assert.False(t, errors.Is(err, ErrInvalidInput))

	other := errors.New("other")
	assert.Equal(t, other, Classify(other))
}

func TestLedgerRejectionError(t *testing.T) {
	txErr := solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	err := error(&LedgerRejectionError{Err: txErr})

	var unwrapped *solana.TransactionError
	assert.True(t, errors.As(err, &unwrapped))
	assert.Equal(t, txErr, unwrapped)
	assert.Contains(t, err.Error(), "BlockhashNotFound")
}
