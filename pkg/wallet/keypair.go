package wallet

import (
	"context"
	"crypto/ed25519"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

// Approver is asked to approve every signature request. Returning false
// rejects the request.
type Approver func(ctx context.Context, txn *solana.Transaction) (bool, error)

// AutoApprove approves every request.
func AutoApprove(context.Context, *solana.Transaction) (bool, error) {
	return true, nil
}

// KeyLoader produces the private key when the wallet connects.
type KeyLoader func() (ed25519.PrivateKey, error)

// FromPrivateKey returns a KeyLoader for an in memory key.
func FromPrivateKey(key ed25519.PrivateKey) KeyLoader {
	return func() (ed25519.PrivateKey, error) {
		if len(key) != ed25519.PrivateKeySize {
			return nil, errors.Errorf("invalid private key length: %d", len(key))
		}
		return key, nil
	}
}

// FromKeygenFile returns a KeyLoader reading the JSON byte array written by
// solana-keygen.
func FromKeygenFile(path string) KeyLoader {
	return func() (ed25519.PrivateKey, error) {
		key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load keypair from %s", path)
		}
		if len(key) != ed25519.PrivateKeySize {
			return nil, errors.Errorf("invalid keypair length in %s: %d", path, len(key))
		}
		return ed25519.PrivateKey(key), nil
	}
}

// FromBase58 returns a KeyLoader for a base58 encoded 64 byte private key, the
// format most browser wallets export.
func FromBase58(encoded string) KeyLoader {
	return func() (ed25519.PrivateKey, error) {
		key, err := solanago.PrivateKeyFromBase58(encoded)
		if err != nil {
			return nil, errors.Wrap(err, "invalid base58 private key")
		}
		return FromPrivateKey(ed25519.PrivateKey(key))()
	}
}

type keypairWallet struct {
	log      *logrus.Entry
	load     KeyLoader
	approver Approver

	mu  sync.RWMutex
	key ed25519.PrivateKey
}

// NewKeypairWallet returns a Wallet that signs with a local private key.
func NewKeypairWallet(load KeyLoader, approver Approver) Wallet {
	if approver == nil {
		approver = AutoApprove
	}

	return &keypairWallet{
		log:      logrus.StandardLogger().WithField("type", "wallet/keypair"),
		load:     load,
		approver: approver,
	}
}

// Connect implements Wallet.Connect
func (w *keypairWallet) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.key != nil {
		return nil
	}

	key, err := w.load()
	if err != nil {
		return err
	}
	w.key = key

	w.log.WithField("owner", base58.Encode(key.Public().(ed25519.PublicKey))).Debug("wallet connected")
	return nil
}

// Disconnect implements Wallet.Disconnect
func (w *keypairWallet) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.key = nil
	return nil
}

// IsConnected implements Wallet.IsConnected
func (w *keypairWallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.key != nil
}

// PublicKey implements Wallet.PublicKey
func (w *keypairWallet) PublicKey() ed25519.PublicKey {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.key == nil {
		return nil
	}
	return w.key.Public().(ed25519.PublicKey)
}

// Sign implements Wallet.Sign
func (w *keypairWallet) Sign(ctx context.Context, txn *solana.Transaction) error {
	w.mu.RLock()
	key := w.key
	w.mu.RUnlock()

	if key == nil {
		return ErrNotConnected
	}

	type result struct {
		approved bool
		err      error
	}

	// The approver may block on a user prompt that has no notion of ctx.
	ch := make(chan result, 1)
	go func() {
		approved, err := w.approver(ctx, txn)
		ch <- result{approved, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	if r.err != nil {
		return errors.Wrap(r.err, "failed to request approval")
	}
	if !r.approved {
		w.log.Info("signature request rejected")
		return ErrUserRejected
	}

	return txn.Sign(key)
}
