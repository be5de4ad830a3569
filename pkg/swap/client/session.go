package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hoale58-vl/sol-simple-swap/pkg/cache"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/simpleswap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/resolver"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap/transaction"
	"github.com/hoale58-vl/sol-simple-swap/pkg/wallet"
)

// escrowNonceLength keeps the escrow seed within the 32 byte seed limit.
const escrowNonceLength = 12

// escrowSpace is the data allocation of a lamport escrow account.
const escrowSpace = 1

// rentCacheBudget bounds the number of account sizes with a cached rent
// exemption.
const rentCacheBudget = 16

// Session binds a wallet and an RPC client to a deployed swap program. It is
// created when the user connects and torn down with Close. Account state is
// always read from the ledger. Only rent exemptions, which depend on size
// alone, are cached. Calls may be issued concurrently.
type Session struct {
	log     *logrus.Entry
	conf    *conf
	sc      solana.Client
	wallet  wallet.Wallet
	program ed25519.PublicKey
	rent    cache.Cache[uint64, uint64]
}

// NewSession returns a Session for the swap program at program.
func NewSession(sc solana.Client, w wallet.Wallet, program ed25519.PublicKey, configProvider ConfigProvider) (*Session, error) {
	if len(program) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	return &Session{
		log:     logrus.StandardLogger().WithField("type", "swap/client"),
		conf:    configProvider(),
		sc:      sc,
		wallet:  w,
		program: program,
		rent:    cache.New[uint64, uint64](rentCacheBudget),
	}, nil
}

// Connect asks the wallet to connect. It is a no-op if already connected.
func (s *Session) Connect(ctx context.Context) error {
	if s.wallet.IsConnected() {
		return nil
	}

	if err := s.wallet.Connect(ctx); err != nil {
		if errors.Is(err, wallet.ErrUserRejected) {
			return errors.Wrap(swap.ErrUserRejected, err.Error())
		}
		return errors.Wrap(err, "failed to connect wallet")
	}

	s.log.WithFields(logrus.Fields{
		"method": "Connect",
		"owner":  base58.Encode(s.wallet.PublicKey()),
	}).Info("wallet connected")
	return nil
}

// Close disconnects the wallet and ends the session.
func (s *Session) Close() error {
	return s.wallet.Disconnect()
}

// Program returns the swap program the session targets.
func (s *Session) Program() ed25519.PublicKey {
	return s.program
}

// GetAddress returns the connected owner.
func (s *Session) GetAddress() (ed25519.PublicKey, error) {
	if !s.wallet.IsConnected() {
		return nil, swap.ErrNoSigner
	}

	owner := s.wallet.PublicKey()
	if owner == nil {
		return nil, swap.ErrNoSigner
	}
	return owner, nil
}

// GetBalance returns the owner's balance in lamports.
func (s *Session) GetBalance(ctx context.Context) (uint64, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return 0, err
	}

	balance, err := s.sc.GetBalance(ctx, owner, s.commitment(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "failed to get balance")
	}
	return balance, nil
}

// ListOwnedTokenMints returns the distinct mints the owner holds token
// accounts for.
func (s *Session) ListOwnedTokenMints(ctx context.Context) ([]ed25519.PublicKey, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, err
	}

	mints, err := token.NewClient(s.sc, s.commitment(ctx)).GetMintsByOwner(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list owned token mints")
	}
	return mints, nil
}

// ListTokenAccounts returns every token account of mint held by the owner,
// including any that are not the associated account.
func (s *Session) ListTokenAccounts(ctx context.Context, mint ed25519.PublicKey) ([]ed25519.PublicKey, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, err
	}
	if len(mint) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	accounts, err := token.NewClient(s.sc, s.commitment(ctx)).GetAccountAddressesByOwnerAndMint(ctx, owner, mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list token accounts")
	}
	return accounts, nil
}

// GetAssociatedAccount returns the owner's associated token account for mint.
// The address is returned even when the account is missing (swap.ErrNotFound)
// or misowned (swap.ErrInvalidOwner).
func (s *Session) GetAssociatedAccount(ctx context.Context, mint ed25519.PublicKey) (ed25519.PublicKey, *token.Account, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, nil, err
	}

	addr, err := token.GetAssociatedAccount(owner, mint)
	if err != nil {
		return nil, nil, swap.Classify(err)
	}

	account, err := token.NewClient(s.sc, s.commitment(ctx)).GetAccount(ctx, addr, mint)
	switch {
	case err == nil:
		return addr, account, nil
	case errors.Is(err, token.ErrAccountNotFound):
		return addr, nil, swap.ErrNotFound
	case errors.Is(err, token.ErrInvalidAccountOwner):
		return addr, nil, swap.ErrInvalidOwner
	default:
		return addr, nil, errors.Wrap(err, "failed to get associated account")
	}
}

// GetSwapStoreAddress returns the swap store owned by initializer.
func (s *Session) GetSwapStoreAddress(ctx context.Context, initializer ed25519.PublicKey) (ed25519.PublicKey, error) {
	addr, err := solana.CreateWithSeed(initializer, s.conf.swapStoreSeed.Get(ctx), s.program)
	if err != nil {
		return nil, swap.Classify(err)
	}
	return addr, nil
}

// GetSwapStore reads the swap store owned by initializer. A store that does
// not exist, is not owned by the program or is not initialized yields
// swap.ErrNotInitialized.
func (s *Session) GetSwapStore(ctx context.Context, initializer ed25519.PublicKey) (ed25519.PublicKey, *simpleswap.SwapStoreAccount, error) {
	addr, err := s.GetSwapStoreAddress(ctx, initializer)
	if err != nil {
		return nil, nil, err
	}

	info, err := s.sc.GetAccountInfo(ctx, addr, s.commitment(ctx))
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return addr, nil, errors.Wrap(swap.ErrNotInitialized, "swap store does not exist")
	} else if err != nil {
		return addr, nil, errors.Wrap(err, "failed to get swap store")
	}

	if !bytes.Equal(info.Owner, s.program) {
		return addr, nil, errors.Wrap(swap.ErrNotInitialized, "swap store is not owned by the swap program")
	}

	var store simpleswap.SwapStoreAccount
	if err := store.Unmarshal(info.Data); err != nil {
		return addr, nil, errors.Wrap(swap.ErrNotInitialized, err.Error())
	}
	if !store.IsInitialized {
		return addr, nil, errors.Wrap(swap.ErrNotInitialized, "swap store is not initialized")
	}
	return addr, &store, nil
}

// Initialize creates the owner's swap store if needed and initializes it with
// fundedAccount as the token source for swaps.
func (s *Session) Initialize(ctx context.Context, fundedAccount ed25519.PublicKey) (*transaction.Outcome, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, err
	}
	if len(fundedAccount) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	log := s.log.WithFields(logrus.Fields{
		"method": "Initialize",
		"owner":  base58.Encode(owner),
		"funded": base58.Encode(fundedAccount),
	})

	store, err := s.resolver(ctx).ResolveOrCreateSeeded(ctx, owner, resolver.SeededTarget{
		Program:   s.program,
		Namespace: s.conf.swapStoreSeed.Get(ctx),
		Space:     s.conf.swapStoreSize.Get(ctx),
	}, "", s.rentExemption)
	if err != nil {
		return nil, err
	}

	instructions := append(
		resolver.CreateInstructions(store),
		simpleswap.NewInitializeInstruction(s.program, &simpleswap.InitializeInstructionAccounts{
			Owner:         owner,
			SwapStore:     store.Address(),
			FundedAccount: fundedAccount,
		}),
	)

	log = log.WithFields(logrus.Fields{
		"store":        base58.Encode(store.Address()),
		"instructions": len(instructions),
	})

	outcome, err := s.orchestrator(ctx).Execute(ctx, instructions)
	if err != nil {
		log.WithError(err).Info("initialize failed")
		return outcome, err
	}

	log.WithField("signature", outcome.Signature.String()).Info("swap store initialized")
	return outcome, nil
}

// Swap exchanges amount lamports for tokens of mint from the swap store
// owned by initializer. The tokens are received into the caller's associated
// account, which is created if needed.
func (s *Session) Swap(ctx context.Context, initializer, mint ed25519.PublicKey, amount uint64) (*transaction.Outcome, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, err
	}
	if len(initializer) != ed25519.PublicKeySize || len(mint) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	log := s.log.WithFields(logrus.Fields{
		"method":      "Swap",
		"owner":       base58.Encode(owner),
		"initializer": base58.Encode(initializer),
		"mint":        base58.Encode(mint),
		"amount":      amount,
	})

	storeAddress, store, err := s.GetSwapStore(ctx, initializer)
	if err != nil {
		return nil, err
	}

	rent, err := s.rentExemption(ctx, escrowSpace)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get escrow rent exemption")
	}
	if amount < rent {
		return nil, swap.InvalidInput(errors.Errorf("amount %d is below the escrow rent exemption of %d", amount, rent))
	}

	r := s.resolver(ctx)

	nonce := newEscrowNonce()
	escrow, err := r.ResolveOrCreateSeeded(ctx, owner, resolver.SeededTarget{
		Program:   s.program,
		Namespace: s.conf.lamportEscrowSeed.Get(ctx),
		Space:     escrowSpace,
	}, nonce, resolver.FixedFunding(amount))
	if err != nil {
		return nil, err
	}

	receiver, err := r.ResolveOrCreateAssociated(ctx, owner, mint)
	if err != nil {
		return nil, err
	}

	authority, _, err := simpleswap.GetAuthorityAddress(s.program)
	if err != nil {
		return nil, swap.Classify(err)
	}

	instructions := append(
		resolver.CreateInstructions(escrow, receiver),
		simpleswap.NewSwapInstruction(s.program, &simpleswap.SwapInstructionAccounts{
			Owner:           owner,
			FundedAccount:   store.TokenFundedAccount,
			ReceiverAccount: receiver.Address(),
			LamportEscrow:   escrow.Address(),
			SwapStore:       storeAddress,
			Authority:       authority,
		}),
	)

	log = log.WithFields(logrus.Fields{
		"escrow":       base58.Encode(escrow.Address()),
		"receiver":     base58.Encode(receiver.Address()),
		"instructions": len(instructions),
	})

	outcome, err := s.orchestrator(ctx).Execute(ctx, instructions)
	if err != nil {
		log.WithError(err).Info("swap failed")
		return outcome, err
	}

	log.WithField("signature", outcome.Signature.String()).Info("swap confirmed")
	return outcome, nil
}

// Withdraw withdraws amount lamports from swapStore to the owner.
func (s *Session) Withdraw(ctx context.Context, swapStore ed25519.PublicKey, amount uint64) (*transaction.Outcome, error) {
	owner, err := s.GetAddress()
	if err != nil {
		return nil, err
	}
	if len(swapStore) != ed25519.PublicKeySize {
		return nil, swap.InvalidInput(solana.ErrInvalidPublicKey)
	}

	log := s.log.WithFields(logrus.Fields{
		"method": "Withdraw",
		"owner":  base58.Encode(owner),
		"store":  base58.Encode(swapStore),
		"amount": amount,
	})

	instruction, err := simpleswap.NewWithdrawInstruction(s.program, &simpleswap.WithdrawInstructionAccounts{
		SwapStore: swapStore,
		Owner:     owner,
	}, &simpleswap.WithdrawRequest{Amount: amount})
	if err != nil {
		return nil, swap.InvalidInput(err)
	}

	outcome, err := s.orchestrator(ctx).Execute(ctx, []solana.Instruction{instruction})
	if err != nil {
		log.WithError(err).Info("withdraw failed")
		return outcome, err
	}

	log.WithField("signature", outcome.Signature.String()).Info("withdraw confirmed")
	return outcome, nil
}

func (s *Session) commitment(ctx context.Context) solana.Commitment {
	return solana.CommitmentFromString(s.conf.commitment.Get(ctx))
}

func (s *Session) resolver(ctx context.Context) *resolver.Resolver {
	return resolver.New(
		s.sc,
		resolver.WithCommitment(s.commitment(ctx)),
		resolver.WithIdempotentAssociatedCreate(s.conf.idempotentAssociatedCreate.Get(ctx)),
	)
}

func (s *Session) orchestrator(ctx context.Context) *transaction.Orchestrator {
	return transaction.New(
		s.sc,
		s.wallet,
		transaction.WithCommitment(s.commitment(ctx)),
		transaction.WithConfirmTimeout(s.conf.confirmTimeout.Get(ctx)),
		transaction.WithComputeUnitPrice(s.conf.computeUnitPrice.Get(ctx)),
		transaction.WithComputeUnitLimit(s.conf.computeUnitLimit.Get(ctx)),
	)
}

func newEscrowNonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:escrowNonceLength]
}

func (s *Session) rentExemption(ctx context.Context, size uint64) (uint64, error) {
	if lamports, ok := s.rent.Retrieve(size); ok {
		return lamports, nil
	}

	lamports, err := s.sc.GetMinimumBalanceForRentExemption(ctx, size)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rent exemption")
	}

	// A concurrent caller may have filled the entry first.
	_ = s.rent.Insert(size, lamports, 1)
	return lamports, nil
}
