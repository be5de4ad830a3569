package token

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

// ownerOffset is the position of the owner key within a token account.
const ownerOffset = ed25519.PublicKeySize

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidAccountOwner indicates that a Solana account exists at the
	// given address, but it is not owned by the token program.
	ErrInvalidAccountOwner = errors.New("account not owned by token program")
	// ErrInvalidTokenAccount indicates that a Solana account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
)

// Client provides utilities for accessing token accounts.
type Client struct {
	sc         solana.Client
	commitment solana.Commitment
}

// NewClient creates a new Client.
func NewClient(sc solana.Client, commitment solana.Commitment) *Client {
	return &Client{
		sc:         sc,
		commitment: commitment,
	}
}

// GetAccount returns the token account info for the specified account.
//
// If the account is not initialized, or belongs to a different
// mint, then ErrInvalidTokenAccount is returned. Errors unrelated to the
// account's state are returned wrapped and unclassified.
func (c *Client) GetAccount(ctx context.Context, accountID, mint ed25519.PublicKey) (*Account, error) {
	accountInfo, err := c.sc.GetAccountInfo(ctx, accountID, c.commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, ProgramKey) {
		return nil, ErrInvalidAccountOwner
	}

	var account Account
	if !account.Unmarshal(accountInfo.Data) {
		return nil, ErrInvalidTokenAccount
	}
	if account.State == AccountStateUninitialized {
		return nil, ErrInvalidTokenAccount
	}

	if mint != nil && !bytes.Equal(mint, account.Mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetAccountsByOwner returns every token account whose owner is owner.
func (c *Client) GetAccountsByOwner(ctx context.Context, owner ed25519.PublicKey) ([]Account, error) {
	results, err := c.sc.GetFilteredProgramAccounts(
		ctx,
		ProgramKey,
		c.commitment,
		solana.DataSizeFilter(AccountSize),
		solana.MemcmpAt(ownerOffset, owner),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get program accounts")
	}

	accounts := make([]Account, 0, len(results))
	for _, result := range results {
		var account Account
		if !account.Unmarshal(result.Account.Data) {
			continue
		}
		if !bytes.Equal(account.Owner, owner) {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// GetAccountAddressesByOwnerAndMint returns the addresses of every token
// account of mint owned by owner, associated or not.
func (c *Client) GetAccountAddressesByOwnerAndMint(ctx context.Context, owner, mint ed25519.PublicKey) ([]ed25519.PublicKey, error) {
	addresses, err := c.sc.GetTokenAccountsByOwner(ctx, owner, mint, c.commitment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get token accounts by owner")
	}
	return addresses, nil
}

// GetMintsByOwner returns the distinct mints of the token accounts owned by
// owner, in the order they were returned by the RPC node.
func (c *Client) GetMintsByOwner(ctx context.Context, owner ed25519.PublicKey) ([]ed25519.PublicKey, error) {
	accounts, err := c.GetAccountsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	var mints []ed25519.PublicKey
	for _, account := range accounts {
		var seen bool
		for _, mint := range mints {
			if bytes.Equal(mint, account.Mint) {
				seen = true
				break
			}
		}
		if !seen {
			mints = append(mints, account.Mint)
		}
	}
	return mints, nil
}
