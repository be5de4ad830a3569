package wallet

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

var (
	// ErrUserRejected indicates the user declined to approve a connection or
	// signature request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrNotConnected indicates an operation requiring a connected wallet was
	// attempted before Connect succeeded.
	ErrNotConnected = errors.New("wallet not connected")
)

// Wallet is a single signer the client drives transactions through.
//
// Connect and Sign may block while waiting for the user, and must return
// promptly once ctx is done.
type Wallet interface {
	// Connect establishes the session with the wallet.
	Connect(ctx context.Context) error

	// Disconnect ends the session. PublicKey returns nil afterwards.
	Disconnect() error

	// IsConnected returns whether Connect has succeeded and Disconnect has
	// not been called since.
	IsConnected() bool

	// PublicKey returns the connected identity, or nil.
	PublicKey() ed25519.PublicKey

	// Sign adds the wallet's signature to txn. ErrUserRejected is returned
	// if the user declines, in which case txn is left unmodified.
	Sign(ctx context.Context, txn *solana.Transaction) error
}
