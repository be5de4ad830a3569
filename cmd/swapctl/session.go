package main

import (
	"context"
	"crypto/ed25519"
	"io"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/rate"
	"github.com/hoale58-vl/sol-simple-swap/pkg/retry"
	"github.com/hoale58-vl/sol-simple-swap/pkg/retry/backoff"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/client"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/transaction"
	"github.com/hoale58-vl/sol-simple-swap/pkg/wallet"
)

// openSession connects a wallet and returns a session against the configured
// cluster and swap program.
func openSession(ctx context.Context, config *Config, in io.Reader, out io.Writer) (*client.Session, error) {
	if len(config.ProgramID) == 0 {
		return nil, errors.New("swap program id is not configured (set SWAP_PROGRAM_ID or --program)")
	}
	program, err := parseKey(config.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid swap program id")
	}

	sc := solana.New(
		solana.EndpointFor(config.Cluster),
		solana.WithRateLimiter(rate.NewLocalRateLimiterCtor()(config.RPCRate)),
	)

	load := wallet.FromKeygenFile(config.Keypair)
	if len(config.PrivateKey) > 0 {
		load = wallet.FromBase58(config.PrivateKey)
	}

	approver := promptApprover(in, out)
	if config.AutoApprove {
		approver = wallet.AutoApprove
	}

	session, err := client.NewSession(sc, wallet.NewKeypairWallet(load, approver), program, client.WithEnvConfigs())
	if err != nil {
		return nil, err
	}
	if err := session.Connect(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// withRetries runs op again after a rejection that a fresh transaction may
// avoid, such as an expired blockhash. Failures where the transaction may
// have landed are never retried.
func withRetries(ctx context.Context, retries uint, op func() (*transaction.Outcome, error)) (*transaction.Outcome, error) {
	var outcome *transaction.Outcome
	_, err := retry.Retry(
		ctx,
		func(context.Context) (err error) {
			outcome, err = op()
			return err
		},
		retry.RetriableWhen(isResubmittable),
		retry.Limit(retries+1),
		retry.BackoffWithJitter(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second, 0.2),
	)
	return outcome, err
}

func isResubmittable(err error) bool {
	var rejection *swap.LedgerRejectionError
	return errors.As(err, &rejection) && rejection.Retryable()
}

func parseKey(s string) (ed25519.PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, swap.InvalidInput(errors.Wrapf(err, "invalid base58 key %q", s))
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(errors.Wrapf(solana.ErrInvalidPublicKey, "%q", s))
	}
	return b, nil
}
