package resolver

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/system"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
)

// SeededTarget describes an account allocated at a seed derived address.
type SeededTarget struct {
	// Program owns the account and is part of the address derivation.
	Program ed25519.PublicKey
	// Namespace prefixes the per call nonce to form the seed.
	Namespace string
	// Space is the number of data bytes allocated.
	Space uint64
}

// Funding prices the allocation of space bytes. It is only consulted when an
// account needs to be created.
type Funding func(ctx context.Context, space uint64) (lamports uint64, err error)

// FixedFunding funds every allocation with lamports.
func FixedFunding(lamports uint64) Funding {
	return func(context.Context, uint64) (uint64, error) {
		return lamports, nil
	}
}

// Resolver decides which accounts still need to be created.
//
// The existence check and the create instruction cannot be made atomic, so a
// concurrent creator may still cause the ledger to reject a create. That
// rejection is surfaced as a retryable swap.LedgerRejectionError.
type Resolver struct {
	log        *logrus.Entry
	sc         solana.Client
	tokens     *token.Client
	commitment solana.Commitment
	idempotent bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCommitment sets the commitment account state is read at.
func WithCommitment(c solana.Commitment) Option {
	return func(r *Resolver) {
		r.commitment = c
	}
}

// WithIdempotentAssociatedCreate makes associated account creation use the
// variant that succeeds when the account already exists.
func WithIdempotentAssociatedCreate(enabled bool) Option {
	return func(r *Resolver) {
		r.idempotent = enabled
	}
}

func New(sc solana.Client, opts ...Option) *Resolver {
	r := &Resolver{
		log:        logrus.StandardLogger().WithField("type", "swap/resolver"),
		sc:         sc,
		commitment: solana.CommitmentConfirmed,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tokens = token.NewClient(sc, r.commitment)
	return r
}

// ResolveOrCreateAssociated resolves the associated token account of owner
// for mint. A missing or misowned account yields NeedsCreate. Any other
// failure, including transport errors, is returned as is.
func (r *Resolver) ResolveOrCreateAssociated(ctx context.Context, owner, mint ed25519.PublicKey) (Resolution, error) {
	if len(owner) != ed25519.PublicKeySize || len(mint) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	log := r.log.WithFields(logrus.Fields{
		"method": "ResolveOrCreateAssociated",
		"owner":  base58.Encode(owner),
		"mint":   base58.Encode(mint),
	})

	addr, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return nil, swap.Classify(err)
	}

	var reason error
	_, err = r.tokens.GetAccount(ctx, addr, mint)
	switch {
	case err == nil:
		log.Debug("associated account exists")
		return Resolved{address: addr}, nil
	case errors.Is(err, token.ErrAccountNotFound):
		reason = swap.ErrNotFound
	case errors.Is(err, token.ErrInvalidAccountOwner):
		reason = swap.ErrInvalidOwner
	default:
		log.WithError(err).Warn("failure checking associated account")
		return nil, errors.Wrap(err, "failed to check associated account")
	}

	create := token.CreateAssociatedTokenAccount
	if r.idempotent {
		create = token.CreateAssociatedTokenAccountIdempotent
	}

	instruction, _, err := create(owner, owner, mint)
	if err != nil {
		return nil, swap.Classify(err)
	}

	log.WithField("reason", reason).Debug("associated account needs create")
	return NeedsCreate{address: addr, Instruction: instruction, Reason: reason}, nil
}

// ResolveOrCreateSeeded resolves the account derived from owner and
// target.Namespace+nonce. A missing or misowned account yields NeedsCreate
// funded as priced by funding. The nonce must not be reused while an earlier
// call using it may still be in flight.
func (r *Resolver) ResolveOrCreateSeeded(ctx context.Context, owner ed25519.PublicKey, target SeededTarget, nonce string, funding Funding) (Resolution, error) {
	seed := target.Namespace + nonce

	addr, err := solana.CreateWithSeed(owner, seed, target.Program)
	if err != nil {
		return nil, swap.Classify(err)
	}

	log := r.log.WithFields(logrus.Fields{
		"method":  "ResolveOrCreateSeeded",
		"owner":   base58.Encode(owner),
		"seed":    seed,
		"address": base58.Encode(addr),
	})

	var reason error
	info, err := r.sc.GetAccountInfo(ctx, addr, r.commitment)
	switch {
	case err == nil && bytes.Equal(info.Owner, target.Program):
		log.Debug("seeded account exists")
		return Resolved{address: addr}, nil
	case err == nil:
		reason = swap.ErrInvalidOwner
	case errors.Is(err, solana.ErrNoAccountInfo):
		reason = swap.ErrNotFound
	default:
		log.WithError(err).Warn("failure checking seeded account")
		return nil, errors.Wrap(err, "failed to check seeded account")
	}

	lamports, err := funding(ctx, target.Space)
	if err != nil {
		return nil, errors.Wrap(err, "failed to price seeded account")
	}

	log.WithField("reason", reason).Debug("seeded account needs create")
	return NeedsCreate{
		address:     addr,
		Instruction: system.CreateAccountWithSeed(owner, addr, owner, seed, lamports, target.Space, target.Program),
		Reason:      reason,
	}, nil
}
