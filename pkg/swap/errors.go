package swap

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

var (
	// ErrNoSigner indicates there is no connected wallet to pay for and sign
	// the transaction.
	ErrNoSigner = errors.New("no connected signer")

	// ErrUserRejected indicates the user declined the signature request. No
	// transaction was submitted.
	ErrUserRejected = errors.New("user rejected signature request")

	// ErrInvalidInput indicates a malformed identity, seed or amount.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound and ErrInvalidOwner classify an expected account that is
	// missing or owned by an unexpected program. Both are recoverable by
	// issuing a create instruction.
	ErrNotFound     = errors.New("account not found")
	ErrInvalidOwner = errors.New("account has an unexpected owner")

	// ErrNotInitialized indicates a prerequisite account the caller cannot
	// create does not exist.
	ErrNotInitialized = errors.New("account not initialized")

	// ErrDerivationExhausted indicates no program address exists for the
	// seeds and program, which points to a seed or program mismatch.
	ErrDerivationExhausted = errors.New("program address derivation exhausted")
)

// LedgerRejectionError is returned when the ledger rejects a transaction, in
// preflight or once processed.
type LedgerRejectionError struct {
	Signature solana.Signature
	Err       *solana.TransactionError
}

func (e *LedgerRejectionError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %v", e.Signature, e.Err)
}

func (e *LedgerRejectionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether assembling the transaction again with a fresh
// blockhash may succeed.
func (e *LedgerRejectionError) Retryable() bool {
	return e.Err != nil && e.Err.Retryable()
}

// IsRetryable reports whether err is worth retrying the whole assemble, sign
// and submit cycle for. Stale blockhashes, duplicate creates raced by another
// actor, transient RPC failures, dropped transactions and timeouts are
// retryable. Rejected signatures and malformed input are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNoSigner),
		errors.Is(err, ErrNotInitialized),
		errors.Is(err, ErrDerivationExhausted),
		errors.Is(err, context.Canceled):
		return false
	}

	var rejection *LedgerRejectionError
	if errors.As(err, &rejection) {
		return rejection.Retryable()
	}

	return solana.IsTransient(err) || errors.Is(err, solana.ErrSignatureNotFound)
}

// InvalidInput wraps cause so that it matches ErrInvalidInput.
func InvalidInput(cause error) error {
	return &classifiedError{class: ErrInvalidInput, cause: cause}
}

// Classify maps errors from the solana package onto this package's taxonomy.
// Unrecognised errors are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, solana.ErrInvalidPublicKey),
		errors.Is(err, solana.ErrMaxSeedLengthExceeded),
		errors.Is(err, solana.ErrTooManySeeds):
		return InvalidInput(err)
	case errors.Is(err, solana.ErrDerivationExhausted):
		return &classifiedError{class: ErrDerivationExhausted, cause: err}
	}
	return err
}

type classifiedError struct {
	class error
	cause error
}

func (e *classifiedError) Error() string {
	return e.class.Error() + ": " + e.cause.Error()
}

func (e *classifiedError) Is(target error) bool {
	return target == e.class
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}
