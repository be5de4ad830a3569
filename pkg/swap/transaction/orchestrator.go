package transaction

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/computebudget"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/wallet"
)

const defaultConfirmTimeout = 60 * time.Second

// State is the lifecycle position of a Pending transaction.
type State uint8

const (
	StateAssembling State = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAssembling:
		return "assembling"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// Pending is a transaction moving through assemble, sign, submit and
// confirm. It is signed at most once and submitted at most once; recovering
// from a stale blockhash requires assembling a new Pending.
type Pending struct {
	Transaction solana.Transaction

	state     State
	signature solana.Signature
}

func (p *Pending) State() State {
	return p.state
}

// Signature is only set once the transaction has been signed.
func (p *Pending) Signature() solana.Signature {
	return p.signature
}

// Outcome is the ledger's verdict on a submitted transaction. Err is nil when
// the transaction was applied.
type Outcome struct {
	Signature solana.Signature
	Slot      uint64
	Err       *solana.TransactionError
}

// Orchestrator drives instructions through a single wallet and RPC client.
type Orchestrator struct {
	log            *logrus.Entry
	sc             solana.Client
	wallet         wallet.Wallet
	commitment     solana.Commitment
	confirmTimeout time.Duration
	unitPrice      uint64
	unitLimit      uint32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCommitment sets the commitment submissions are preflighted against and
// confirmations wait for.
func WithCommitment(c solana.Commitment) Option {
	return func(o *Orchestrator) {
		o.commitment = c
	}
}

// WithConfirmTimeout bounds how long Confirm waits.
func WithConfirmTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.confirmTimeout = d
	}
}

// WithComputeUnitPrice prepends a priority fee, in micro-lamports per compute
// unit, to every assembled transaction. Zero disables it.
func WithComputeUnitPrice(microLamports uint64) Option {
	return func(o *Orchestrator) {
		o.unitPrice = microLamports
	}
}

// WithComputeUnitLimit prepends a compute unit limit to every assembled
// transaction. Zero leaves the ledger's default in place. Limits beyond
// math.MaxUint32 are capped.
func WithComputeUnitLimit(units uint64) Option {
	return func(o *Orchestrator) {
		if units > math.MaxUint32 {
			units = math.MaxUint32
		}
		o.unitLimit = uint32(units)
	}
}

func New(sc solana.Client, w wallet.Wallet, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:            logrus.StandardLogger().WithField("type", "swap/transaction"),
		sc:             sc,
		wallet:         w,
		commitment:     solana.CommitmentConfirmed,
		confirmTimeout: defaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Assemble compiles instructions, in order, into a transaction paid for by
// payer and stamped with the latest blockhash.
func (o *Orchestrator) Assemble(ctx context.Context, instructions []solana.Instruction, payer ed25519.PublicKey) (*Pending, error) {
	if len(payer) == 0 {
		return nil, swap.ErrNoSigner
	}
	if len(payer) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}
	if len(instructions) == 0 {
		return nil, swap.InvalidInput(solana.ErrNoInstructions)
	}

	bh, err := o.sc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest blockhash")
	}

	var budget []solana.Instruction
	if o.unitLimit > 0 {
		budget = append(budget, computebudget.SetComputeUnitLimit(o.unitLimit))
	}
	if o.unitPrice > 0 {
		budget = append(budget, computebudget.SetComputeUnitPrice(o.unitPrice))
	}
	if len(budget) > 0 {
		instructions = append(budget, instructions...)
	}

	txn := solana.NewTransaction(payer, instructions...)
	txn.SetBlockhash(bh)

	o.log.WithFields(logrus.Fields{
		"method":       "Assemble",
		"payer":        base58.Encode(payer),
		"instructions": len(instructions),
		"blockhash":    bh.String(),
	}).Debug("transaction assembled")

	return &Pending{
		Transaction: txn,
		state:       StateAssembling,
	}, nil
}

// SignAndSubmit asks the wallet to sign p and submits it. If the wallet
// rejects the request nothing is submitted and swap.ErrUserRejected is
// returned. A ledger rejection moves p to StateRejected and is returned as a
// *swap.LedgerRejectionError.
func (o *Orchestrator) SignAndSubmit(ctx context.Context, p *Pending) (solana.Signature, error) {
	if p.state != StateAssembling {
		return solana.Signature{}, errors.Errorf("cannot sign transaction in state %s", p.state)
	}
	if o.wallet == nil || !o.wallet.IsConnected() {
		return solana.Signature{}, swap.ErrNoSigner
	}
	if !bytes.Equal(o.wallet.PublicKey(), p.Transaction.Payer()) {
		return solana.Signature{}, errors.Wrap(swap.ErrNoSigner, "connected wallet is not the fee payer")
	}

	log := o.log.WithFields(logrus.Fields{
		"method": "SignAndSubmit",
		"payer":  base58.Encode(p.Transaction.Payer()),
	})

	signed := p.Transaction
	signed.Signatures = make([]solana.Signature, len(p.Transaction.Signatures))
	copy(signed.Signatures, p.Transaction.Signatures)

	if err := o.wallet.Sign(ctx, &signed); err != nil {
		if errors.Is(err, wallet.ErrUserRejected) {
			log.Info("signature request rejected by user")
			return solana.Signature{}, errors.Wrap(swap.ErrUserRejected, err.Error())
		}
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}
	if !signed.IsSigned() {
		return solana.Signature{}, errors.New("wallet returned an unsigned transaction")
	}

	p.Transaction = signed
	p.signature = signed.Signatures[0]
	p.state = StateSigned

	log = log.WithField("signature", p.signature.String())

	sig, err := o.sc.SubmitTransaction(ctx, p.Transaction, o.commitment)
	if err != nil {
		var txErr *solana.TransactionError
		if errors.As(err, &txErr) {
			p.state = StateRejected
			log.WithError(txErr).Info("transaction rejected")
			return sig, &swap.LedgerRejectionError{Signature: sig, Err: txErr}
		}

		log.WithError(err).Warn("failure submitting transaction")
		return sig, errors.Wrap(err, "failed to submit transaction")
	}

	p.state = StateSubmitted
	log.WithField("state", p.state).Debug("transaction submitted")
	return sig, nil
}

// Confirm waits for a submitted transaction to reach the configured
// commitment. A transaction the ledger failed yields an Outcome with Err set
// and a nil error. Confirm never resubmits.
func (o *Orchestrator) Confirm(ctx context.Context, p *Pending) (*Outcome, error) {
	if p.state != StateSubmitted {
		return nil, errors.Errorf("cannot confirm transaction in state %s", p.state)
	}

	log := o.log.WithFields(logrus.Fields{
		"method":    "Confirm",
		"signature": p.signature.String(),
	})

	ctx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	status, err := o.sc.GetSignatureStatus(ctx, p.signature, o.commitment)
	if err != nil {
		log.WithError(err).Warn("failure confirming transaction")
		return nil, errors.Wrapf(err, "failed to confirm %s", p.signature)
	}

	outcome := &Outcome{
		Signature: p.signature,
		Slot:      status.Slot,
		Err:       status.ErrorResult,
	}

	if outcome.Err != nil {
		p.state = StateRejected
		log.WithError(outcome.Err).Info("transaction failed")
	} else {
		p.state = StateConfirmed
		log.Debug("transaction confirmed")
	}
	return outcome, nil
}

// Execute runs instructions through assemble, sign, submit and confirm with
// the connected wallet as payer. A failed transaction is returned as a
// *swap.LedgerRejectionError alongside its Outcome.
func (o *Orchestrator) Execute(ctx context.Context, instructions []solana.Instruction) (*Outcome, error) {
	if o.wallet == nil || !o.wallet.IsConnected() {
		return nil, swap.ErrNoSigner
	}

	p, err := o.Assemble(ctx, instructions, o.wallet.PublicKey())
	if err != nil {
		return nil, err
	}

	if _, err := o.SignAndSubmit(ctx, p); err != nil {
		return nil, err
	}

	outcome, err := o.Confirm(ctx, p)
	if err != nil {
		return nil, err
	}
	if outcome.Err != nil {
		return outcome, &swap.LedgerRejectionError{Signature: outcome.Signature, Err: outcome.Err}
	}
	return outcome, nil
}
