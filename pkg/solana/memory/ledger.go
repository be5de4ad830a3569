package memory

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/computebudget"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/system"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/token"
)

const (
	// Reference: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/rent.rs#L28-L37
	rentOverhead         = 128
	rentLamportsPerByte  = 3480
	rentExemptionYears   = 2
	defaultBlockhashLife = 150
)

// Processor executes an instruction addressed to a program registered with
// the Ledger. Returned errors fail the whole transaction.
type Processor func(state *State, accounts []ed25519.PublicKey, data []byte) error

// State is the account view an instruction executes against. Writes are only
// committed when every instruction in the transaction succeeds.
type State struct {
	accounts map[string]solana.AccountInfo
}

// Get returns the account stored at key.
func (s *State) Get(key ed25519.PublicKey) (solana.AccountInfo, bool) {
	info, ok := s.accounts[base58.Encode(key)]
	return info, ok
}

// Put stores info at key.
func (s *State) Put(key ed25519.PublicKey, info solana.AccountInfo) {
	s.accounts[base58.Encode(key)] = copyAccountInfo(info)
}

// Ledger is an in memory solana.Client. It executes system account creation
// and associated token account creation natively, and defers every other
// program to a registered Processor.
type Ledger struct {
	mu sync.Mutex

	state      *State
	processors map[string]Processor
	failures   map[string]error

	blockhashes   []solana.Blockhash
	blockhashLife int
	slot          uint64
	skipPreflight bool
	submitted     []solana.Transaction
	statuses      map[solana.Signature]*solana.SignatureStatus
	pendingStatus string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithoutPreflight makes SubmitTransaction accept every well formed
// transaction. Execution failures are reported through the signature status
// instead of being returned from SubmitTransaction.
func WithoutPreflight() Option {
	return func(l *Ledger) {
		l.skipPreflight = true
	}
}

// WithConfirmationStatus sets the status reported for newly processed
// transactions. The default is finalized.
func WithConfirmationStatus(status string) Option {
	return func(l *Ledger) {
		l.pendingStatus = status
	}
}

// New returns a new in memory ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		state:         &State{accounts: make(map[string]solana.AccountInfo)},
		processors:    make(map[string]Processor),
		failures:      make(map[string]error),
		blockhashLife: defaultBlockhashLife,
		statuses:      make(map[solana.Signature]*solana.SignatureStatus),
		pendingStatus: "finalized",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RegisterProcessor routes instructions for program to p.
func (l *Ledger) RegisterProcessor(program ed25519.PublicKey, p Processor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.processors[base58.Encode(program)] = p
}

// FailWith makes every call to the named RPC method return err until cleared
// with a nil err.
func (l *Ledger) FailWith(method string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		delete(l.failures, method)
		return
	}
	l.failures[method] = err
}

// Put stores an account directly, bypassing execution.
func (l *Ledger) Put(key ed25519.PublicKey, info solana.AccountInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Put(key, info)
}

// Get returns the account stored at key.
func (l *Ledger) Get(key ed25519.PublicKey) (solana.AccountInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state.Get(key)
}

// Airdrop credits lamports to a system owned account, creating it if needed.
func (l *Ledger) Airdrop(key ed25519.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.state.Get(key)
	if !ok {
		info = solana.AccountInfo{Owner: system.ProgramKey[:]}
	}
	info.Lamports += lamports
	l.state.Put(key, info)
}

// ExpireBlockhashes invalidates every previously issued blockhash.
func (l *Ledger) ExpireBlockhashes() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.blockhashes = nil
}

// SetConfirmationStatus overrides the status of a processed signature.
func (l *Ledger) SetConfirmationStatus(sig solana.Signature, status string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.statuses[sig]; ok {
		s.ConfirmationStatus = status
		s.Confirmations = confirmationsFor(status)
	}
}

// Submitted returns every transaction passed to SubmitTransaction, in order.
func (l *Ledger) Submitted() []solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	txns := make([]solana.Transaction, len(l.submitted))
	copy(txns, l.submitted)
	return txns
}

// RentExemption returns the rent exempt minimum for an account of size bytes.
func RentExemption(size uint64) uint64 {
	return (rentOverhead + size) * rentLamportsPerByte * rentExemptionYears
}

func (l *Ledger) failure(method string) error {
	return l.failures[method]
}

// GetAccountInfo implements solana.Client.GetAccountInfo
func (l *Ledger) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return solana.AccountInfo{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getAccountInfo"); err != nil {
		return solana.AccountInfo{}, err
	}

	info, ok := l.state.Get(account)
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return copyAccountInfo(info), nil
}

// GetBalance implements solana.Client.GetBalance
func (l *Ledger) GetBalance(ctx context.Context, account ed25519.PublicKey, _ solana.Commitment) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getBalance"); err != nil {
		return 0, err
	}

	info, _ := l.state.Get(account)
	return info.Lamports, nil
}

// GetFilteredProgramAccounts implements solana.Client.GetFilteredProgramAccounts
func (l *Ledger) GetFilteredProgramAccounts(ctx context.Context, program ed25519.PublicKey, _ solana.Commitment, filters ...solana.ProgramAccountFilter) ([]solana.ProgramAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getProgramAccounts"); err != nil {
		return nil, err
	}

	var res []solana.ProgramAccount
	for key, info := range l.state.accounts {
		if !bytes.Equal(info.Owner, program) || !matches(info.Data, filters) {
			continue
		}

		pub, err := base58.Decode(key)
		if err != nil {
			return nil, errors.Wrap(err, "invalid stored key")
		}
		res = append(res, solana.ProgramAccount{
			PublicKey: pub,
			Account:   copyAccountInfo(info),
		})
	}
	return res, nil
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash
func (l *Ledger) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Blockhash{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getLatestBlockhash"); err != nil {
		return solana.Blockhash{}, err
	}

	l.slot++

	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], l.slot)
	bh := solana.Blockhash(sha256.Sum256(seed[:]))

	l.blockhashes = append(l.blockhashes, bh)
	if len(l.blockhashes) > l.blockhashLife {
		l.blockhashes = l.blockhashes[1:]
	}
	return bh, nil
}

// GetMinimumBalanceForRentExemption implements solana.Client.GetMinimumBalanceForRentExemption
func (l *Ledger) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getMinimumBalanceForRentExemption"); err != nil {
		return 0, err
	}
	return RentExemption(size), nil
}

// GetSignatureStatus implements solana.Client.GetSignatureStatus. The
// status is checked once rather than polled.
func (l *Ledger) GetSignatureStatus(ctx context.Context, sig solana.Signature, commitment solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := l.GetSignatureStatuses(ctx, []solana.Signature{sig})
	if err != nil {
		return nil, err
	}

	s := statuses[0]
	if s == nil {
		return nil, solana.ErrSignatureNotFound
	}
	if s.ErrorResult == nil && !s.Reached(commitment) {
		return s, errors.Wrapf(context.DeadlineExceeded, "signature %s did not reach %s", sig, commitment.Commitment)
	}
	return s, nil
}

// GetSignatureStatuses implements solana.Client.GetSignatureStatuses
func (l *Ledger) GetSignatureStatuses(ctx context.Context, sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getSignatureStatuses"); err != nil {
		return nil, err
	}

	res := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if s, ok := l.statuses[sig]; ok {
			cloned := *s
			res[i] = &cloned
		}
	}
	return res, nil
}

// GetTokenAccountsByOwner implements solana.Client.GetTokenAccountsByOwner
func (l *Ledger) GetTokenAccountsByOwner(ctx context.Context, owner, mint ed25519.PublicKey, _ solana.Commitment) ([]ed25519.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.failure("getTokenAccountsByOwner"); err != nil {
		return nil, err
	}

	var res []ed25519.PublicKey
	for key, info := range l.state.accounts {
		if !bytes.Equal(info.Owner, token.ProgramKey) {
			continue
		}

		var account token.Account
		if !account.Unmarshal(info.Data) {
			continue
		}
		if !bytes.Equal(account.Owner, owner) || !bytes.Equal(account.Mint, mint) {
			continue
		}

		pub, err := base58.Decode(key)
		if err != nil {
			return nil, errors.Wrap(err, "invalid stored key")
		}
		res = append(res, pub)
	}
	return res, nil
}

// SubmitTransaction implements solana.Client.SubmitTransaction. Signatures,
// the blockhash and every instruction are checked before the transaction is
// applied atomically.
func (l *Ledger) SubmitTransaction(ctx context.Context, txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	if len(txn.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sig := txn.Signatures[0]
	l.submitted = append(l.submitted, txn)

	if err := l.failure("sendTransaction"); err != nil {
		return sig, err
	}
	if len(txn.Marshal()) > solana.MaxTransactionSize {
		return sig, solana.ErrTransactionTooLarge
	}

	if s, ok := l.statuses[sig]; ok && s.ErrorResult == nil {
		return sig, solana.NewTransactionError(solana.TransactionErrorAlreadyProcessed)
	}

	txErr := l.verify(txn)
	if txErr == nil {
		txErr = l.execute(txn)
	}

	if txErr != nil && !l.skipPreflight {
		return sig, txErr
	}

	l.slot++
	l.statuses[sig] = &solana.SignatureStatus{
		Slot:               l.slot,
		ErrorResult:        txErr,
		Confirmations:      confirmationsFor(l.pendingStatus),
		ConfirmationStatus: l.pendingStatus,
	}
	return sig, nil
}

func (l *Ledger) verify(txn solana.Transaction) *solana.TransactionError {
	m := txn.Message
	if int(m.Header.NumSignatures) != len(txn.Signatures) || len(m.Accounts) < len(txn.Signatures) {
		return solana.NewTransactionError(solana.TransactionErrorMissingSignatureForFee)
	}

	msg := m.Marshal()
	for i, sig := range txn.Signatures {
		if !ed25519.Verify(m.Accounts[i], msg, sig[:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	for _, bh := range l.blockhashes {
		if bh == m.RecentBlockhash {
			return nil
		}
	}
	return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
}

func (l *Ledger) execute(txn solana.Transaction) *solana.TransactionError {
	working := &State{accounts: make(map[string]solana.AccountInfo, len(l.state.accounts))}
	for k, v := range l.state.accounts {
		working.accounts[k] = copyAccountInfo(v)
	}

	m := txn.Message
	for i, ci := range m.Instructions {
		if int(ci.ProgramIndex) >= len(m.Accounts) {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}

		program := m.Accounts[ci.ProgramIndex]

		var err error
		switch {
		case bytes.Equal(program, system.ProgramKey[:]):
			err = executeSystem(working, m, i)
		case bytes.Equal(program, token.AssociatedTokenAccountProgramKey):
			err = executeAssociated(working, m, i)
		case bytes.Equal(program, computebudget.ProgramKey):
			// Fees are not modelled, so a well formed request is a no-op.
			if _, decodeErr := computebudget.Decode(ci.Data); decodeErr != nil {
				err = errors.New(string(solana.InstructionErrorInvalidInstructionData))
			}
		default:
			p, ok := l.processors[base58.Encode(program)]
			if !ok {
				return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
			}

			accounts := make([]ed25519.PublicKey, len(ci.Accounts))
			for j, idx := range ci.Accounts {
				accounts[j] = m.Accounts[idx]
			}
			err = p(working, accounts, ci.Data)
		}

		if err != nil {
			txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
				Index: i,
				Err:   err,
			})
			if convErr != nil {
				return solana.NewTransactionError(solana.TransactionErrorInstructionError)
			}
			return txErr
		}
	}

	l.state = working
	return nil
}

func executeSystem(s *State, m solana.Message, index int) error {
	ix, err := system.DecompileCreateAccountWithSeed(m, index)
	if err != nil {
		return errors.New(string(solana.InstructionErrorInvalidInstructionData))
	}

	expected, err := solana.CreateWithSeed(ix.Base, ix.Seed, ix.Owner)
	if errors.Is(err, solana.ErrMaxSeedLengthExceeded) {
		return solana.SystemErrorMaxSeedLengthExceeded
	} else if err != nil {
		return errors.New(string(solana.InstructionErrorInvalidArgument))
	}
	if !bytes.Equal(expected, ix.Address) {
		return solana.SystemErrorAddressWithSeedMismatch
	}

	return allocate(s, ix.Funder, ix.Address, ix.Owner, ix.Lamports, ix.Size)
}

func executeAssociated(s *State, m solana.Message, index int) error {
	ix, err := token.DecompileCreateAssociatedAccount(m, index)
	if err != nil {
		return errors.New(string(solana.InstructionErrorInvalidInstructionData))
	}

	expected, err := token.GetAssociatedAccount(ix.Owner, ix.Mint)
	if err != nil || !bytes.Equal(expected, ix.Address) {
		return errors.New(string(solana.InstructionErrorInvalidSeeds))
	}

	if existing, ok := s.Get(ix.Address); ok && bytes.Equal(existing.Owner, token.ProgramKey) {
		if ix.Idempotent {
			var account token.Account
			if account.Unmarshal(existing.Data) && bytes.Equal(account.Owner, ix.Owner) {
				return nil
			}
		}
		return errors.New(string(solana.InstructionErrorIllegalOwner))
	}

	if err := allocate(s, ix.Subsidizer, ix.Address, token.ProgramKey, RentExemption(token.AccountSize), token.AccountSize); err != nil {
		return err
	}

	account := token.Account{
		Mint:  ix.Mint,
		Owner: ix.Owner,
		State: token.AccountStateInitialized,
	}

	info, _ := s.Get(ix.Address)
	info.Data = account.Marshal()
	s.Put(ix.Address, info)
	return nil
}

func allocate(s *State, funder, address, owner ed25519.PublicKey, lamports, size uint64) error {
	existing, ok := s.Get(address)
	if ok && (len(existing.Data) > 0 || !bytes.Equal(existing.Owner, system.ProgramKey[:])) {
		return solana.SystemErrorAccountAlreadyInUse
	}

	payer, _ := s.Get(funder)
	if payer.Lamports < lamports {
		return solana.SystemErrorResultWithNegativeLamports
	}
	payer.Lamports -= lamports
	s.Put(funder, payer)

	created := solana.AccountInfo{
		Data:     make([]byte, size),
		Owner:    owner,
		Lamports: existing.Lamports + lamports,
	}
	s.Put(address, created)
	return nil
}

func matches(data []byte, filters []solana.ProgramAccountFilter) bool {
	for _, f := range filters {
		if f.DataSize != nil && uint64(len(data)) != *f.DataSize {
			return false
		}
		if f.Memcmp != nil {
			end := int(f.Memcmp.Offset) + len(f.Memcmp.Bytes)
			if end > len(data) || !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
				return false
			}
		}
	}
	return true
}

func confirmationsFor(status string) *int {
	switch status {
	case "finalized":
		return nil
	case "confirmed":
		v := 1
		return &v
	default:
		v := 0
		return &v
	}
}

func copyAccountInfo(info solana.AccountInfo) solana.AccountInfo {
	cloned := info
	if info.Data != nil {
		cloned.Data = append([]byte(nil), info.Data...)
	}
	if info.Owner != nil {
		cloned.Owner = append(ed25519.PublicKey(nil), info.Owner...)
	}
	return cloned
}
