package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/hoale58-vl/sol-simple-swap/pkg/rate"
	"github.com/hoale58-vl/sol-simple-swap/pkg/retry"
	"github.com/hoale58-vl/sol-simple-swap/pkg/retry/backoff"
)

const (
	// Slot timing from the default genesis config: 160 ticks per second,
	// 64 ticks per slot.
	slotDuration = 64 * time.Second / 160

	// PollRate is how often signature statuses are polled, twice per slot.
	PollRate = slotDuration / 2

	// Statuses are polled for about 32 slots before giving up.
	defaultPollTimeout = 32 * slotDuration

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L7
	sendTransactionPreflightFailureCode = -32002

	defaultHTTPTimeout = 30 * time.Second
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString maps a commitment level name to a Commitment,
// defaulting to confirmed.
func CommitmentFromString(s string) Commitment {
	switch s {
	case confirmationStatusProcessed:
		return CommitmentProcessed
	case confirmationStatusFinalized:
		return CommitmentFinalized
	default:
		return CommitmentConfirmed
	}
}

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")

	// ErrRateLimited, ErrServiceError and ErrTransport are transient: the
	// request may succeed if issued again.
	ErrRateLimited  = errors.New("rate limited")
	ErrServiceError = errors.New("service error")
	ErrTransport    = errors.New("rpc transport failure")
)

// IsTransient reports whether err is an RPC failure unrelated to ledger
// state, such as an unreachable node or an expired deadline.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceError) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, context.DeadlineExceeded)
}

// AccountInfo contains the Solana account information (not to be confused with a TokenAccount)
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// ProgramAccount is an account returned from a program account query.
type ProgramAccount struct {
	PublicKey ed25519.PublicKey
	Account   AccountInfo
}

// ProgramAccountFilter narrows getProgramAccounts results. Exactly one of
// DataSize or Memcmp should be set.
type ProgramAccountFilter struct {
	DataSize *uint64
	Memcmp   *MemcmpFilter
}

type MemcmpFilter struct {
	Offset uint
	Bytes  []byte
}

// DataSizeFilter matches accounts whose data is exactly size bytes.
func DataSizeFilter(size uint64) ProgramAccountFilter {
	return ProgramAccountFilter{DataSize: &size}
}

// MemcmpAt matches accounts whose data contains value at offset.
func MemcmpAt(offset uint, value []byte) ProgramAccountFilter {
	return ProgramAccountFilter{Memcmp: &MemcmpFilter{Offset: offset, Bytes: value}}
}

func (f ProgramAccountFilter) MarshalJSON() ([]byte, error) {
	if f.DataSize != nil {
		return json.Marshal(struct {
			DataSize uint64 `json:"dataSize"`
		}{*f.DataSize})
	}
	if f.Memcmp != nil {
		type memcmp struct {
			Offset uint   `json:"offset"`
			Bytes  string `json:"bytes"`
		}
		return json.Marshal(struct {
			Memcmp memcmp `json:"memcmp"`
		}{memcmp{Offset: f.Memcmp.Offset, Bytes: base58.Encode(f.Memcmp.Bytes)}})
	}
	return nil, errors.New("empty program account filter")
}

// SignatureStatus is a transaction's position on the way to finality. A nil
// Confirmations means the slot has been rooted.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *int
	ConfirmationStatus string

	// ErrorResult is set when the transaction landed but failed.
	ErrorResult *TransactionError
}

// Finalized reports whether the transaction's slot is rooted.
func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// Confirmed reports whether a supermajority has voted on the slot. Older
// nodes omit the status, in which case any confirmation counts.
func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized(), s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	default:
		return *s.Confirmations > 0
	}
}

// Reached reports whether the status satisfies the commitment level.
func (s SignatureStatus) Reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentProcessed:
		return true
	case CommitmentFinalized:
		return s.Finalized()
	default:
		return s.Confirmed()
	}
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Every call honours the provided context. A cancelled or expired context
// aborts the call even while a request is in flight.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error)
	GetBalance(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (uint64, error)
	GetFilteredProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...ProgramAccountFilter) ([]ProgramAccount, error)
	GetLatestBlockhash(ctx context.Context) (Blockhash, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (lamports uint64, err error)
	GetSignatureStatus(ctx context.Context, sig Signature, commitment Commitment) (*SignatureStatus, error)
	GetSignatureStatuses(ctx context.Context, sigs []Signature) ([]*SignatureStatus, error)
	GetTokenAccountsByOwner(ctx context.Context, owner, mint ed25519.PublicKey, commitment Commitment) ([]ed25519.PublicKey, error)
	SubmitTransaction(ctx context.Context, txn Transaction, commitment Commitment) (Signature, error)
}

type options struct {
	rpcOpts     *jsonrpc.RPCClientOpts
	limiter     rate.Limiter
	strategies  []retry.Strategy
	pollRate    time.Duration
	pollTimeout time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithRPCOptions sets the underlying JSON RPC client options.
func WithRPCOptions(opts *jsonrpc.RPCClientOpts) Option {
	return func(o *options) {
		o.rpcOpts = opts
	}
}

// WithRateLimiter throttles outgoing requests. Requests wait for capacity
// rather than fail.
func WithRateLimiter(l rate.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithRetryStrategies replaces the strategies used for retrying rate limited
// and unhealthy node responses.
func WithRetryStrategies(strategies ...retry.Strategy) Option {
	return func(o *options) {
		o.strategies = strategies
	}
}

// WithSignaturePolling sets how often, and for how long, GetSignatureStatus
// polls for a commitment level.
func WithSignaturePolling(every, timeout time.Duration) Option {
	return func(o *options) {
		o.pollRate = every
		o.pollTimeout = timeout
	}
}

type client struct {
	log         *logrus.Entry
	client      jsonrpc.RPCClient
	retrier     retry.Retrier
	limiter     rate.Limiter
	pollRate    time.Duration
	pollTimeout time.Duration
}

// New returns a client using the specified endpoint.
func New(endpoint string, opts ...Option) Client {
	o := &options{
		rpcOpts: &jsonrpc.RPCClientOpts{
			HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
		},
		limiter: &rate.NoLimiter{},
		strategies: []retry.Strategy{
			retry.RetriableErrors(ErrRateLimited, ErrServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		},
		pollRate:    PollRate,
		pollTimeout: defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &client{
		log:         logrus.StandardLogger().WithField("type", "solana/client"),
		client:      jsonrpc.NewClientWithOpts(endpoint, o.rpcOpts),
		retrier:     retry.NewRetrier(o.strategies...),
		limiter:     o.limiter,
		pollRate:    o.pollRate,
		pollTimeout: o.pollTimeout,
	}
}

func (c *client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx, method); err != nil {
			return err
		}

		// The v2 RPC client has no context support, so the call is raced
		// against ctx. The HTTP client timeout bounds the abandoned request.
		result := make(chan error, 1)
		go func() {
			result <- c.client.CallFor(out, method, params...)
		}()

		select {
		case err := <-result:
			if err == nil {
				return nil
			}
			return c.handleRpcError(method, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return err
}

func (c *client) handleRpcError(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		c.log.WithError(err).WithField("method", method).Warn("rpc transport failure")
		return &transportError{cause: err}
	}
	if rpcErr.Code == http.StatusTooManyRequests {
		c.log.WithField("method", method).Error("rate limited")
		return ErrRateLimited
	}
	if rpcErr.Code >= http.StatusInternalServerError || rpcErr.Code == rpcNodeUnhealthyCode {
		return ErrServiceError
	}

	return err
}

type transportError struct {
	cause error
}

func (e *transportError) Error() string {
	return ErrTransport.Error() + ": " + e.cause.Error()
}

func (e *transportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *transportError) Unwrap() error {
	return e.cause
}

// rpcAccount is the base64 encoded account shape shared by getAccountInfo
// and getProgramAccounts.
type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
}

func (a *rpcAccount) decode() (info AccountInfo, err error) {
	if info.Owner, err = decodeKey(a.Owner, "owner"); err != nil {
		return info, err
	}

	// Data is a [payload, encoding] pair.
	if len(a.Data) > 0 {
		if info.Data, err = base64.StdEncoding.DecodeString(a.Data[0]); err != nil {
			return info, errors.Wrap(err, "invalid base64 encoded data")
		}
	}

	info.Lamports = a.Lamports
	info.Executable = a.Executable
	return info, nil
}

type accountConfig struct {
	Commitment string                 `json:"commitment"`
	Encoding   string                 `json:"encoding"`
	Filters    []ProgramAccountFilter `json:"filters,omitempty"`
}

func base64Config(commitment Commitment, filters ...ProgramAccountFilter) accountConfig {
	return accountConfig{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
		Filters:    filters,
	}
}

func decodeKey(s, what string) (ed25519.PublicKey, error) {
	key, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base58 encoded %s", what)
	}
	return key, nil
}

func (c *client) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (lamports uint64, err error) {
	if err := c.call(ctx, &lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed")
	}
	return lamports, nil
}

func (c *client) GetLatestBlockhash(ctx context.Context) (hash Blockhash, err error) {
	var resp struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getLatestBlockhash", CommitmentFinalized); err != nil {
		return hash, errors.Wrap(err, "getLatestBlockhash() failed")
	}

	raw, err := base58.Decode(resp.Value.Blockhash)
	switch {
	case err != nil:
		return hash, errors.Wrap(err, "invalid base58 encoded blockhash")
	case len(raw) != len(hash):
		return hash, errors.Errorf("invalid blockhash length: %d", len(raw))
	}

	copy(hash[:], raw)
	return hash, nil
}

func (c *client) GetBalance(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (uint64, error) {
	var resp struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, &resp, "getBalance", base58.Encode(account), commitment); err != nil {
		return 0, errors.Wrap(err, "getBalance() failed")
	}
	return resp.Value, nil
}

// SubmitTransaction sends the signed transaction with preflight enabled, so
// that ledger rejections surface as a *TransactionError before the
// transaction is broadcast.
func (c *client) SubmitTransaction(ctx context.Context, txn Transaction, commitment Commitment) (Signature, error) {
	if len(txn.Signatures) == 0 {
		return Signature{}, errors.New("transaction has no signatures")
	}

	sig := txn.Signatures[0]
	encoded := txn.Marshal()
	if len(encoded) > MaxTransactionSize {
		return sig, ErrTransactionTooLarge
	}

	opts := struct {
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(ctx, &ignored, "sendTransaction", base58.Encode(encoded), opts)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := errors.Cause(err).(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed")
	}

	var rejection *TransactionError
	if rpcErr.Code == sendTransactionPreflightFailureCode {
		rejection, _ = ParseRPCError(rpcErr)
	}
	if rejection == nil {
		return sig, errors.Wrapf(err, "sendTransaction() failed with code %d", rpcErr.Code)
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
		"code":      rpcErr.Code,
	}).WithError(rejection).Info("transaction rejected in preflight")

	return sig, rejection
}

func (c *client) GetAccountInfo(ctx context.Context, account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	var resp struct {
		Value *rpcAccount `json:"value"`
	}
	if err := c.call(ctx, &resp, "getAccountInfo", base58.Encode(account), base64Config(commitment)); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed")
	}

	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}
	return resp.Value.decode()
}

// GetSignatureStatus polls until the signature reaches the commitment level,
// the transaction fails, or polling times out. A ctx deadline bounds polling
// on its own; without one the poll timeout applies. A failed transaction is
// returned as a status with ErrorResult set, not as an error.
func (c *client) GetSignatureStatus(ctx context.Context, sig Signature, commitment Commitment) (*SignatureStatus, error) {
	errPending := errors.New("commitment not reached")

	strategies := []retry.Strategy{retry.RetriableErrors(ErrSignatureNotFound, errPending)}
	if _, ok := ctx.Deadline(); !ok {
		maxAttempts := uint(c.pollTimeout / c.pollRate)
		if maxAttempts == 0 {
			maxAttempts = 1
		}
		strategies = append(strategies, retry.Limit(maxAttempts))
	}
	strategies = append(strategies, retry.Backoff(backoff.Constant(c.pollRate), c.pollRate))

	var status *SignatureStatus
	_, err := retry.Retry(
		ctx,
		func(ctx context.Context) error {
			statuses, err := c.GetSignatureStatuses(ctx, []Signature{sig})
			if err != nil {
				return err
			}

			switch status = statuses[0]; {
			case status == nil:
				return ErrSignatureNotFound
			case status.ErrorResult != nil, status.Reached(commitment):
				return nil
			default:
				return errPending
			}
		},
		strategies...,
	)
	switch {
	case err == errPending, err == context.DeadlineExceeded && status != nil:
		return status, errors.Wrapf(context.DeadlineExceeded, "signature %s did not reach %s", sig, commitment.Commitment)
	case err == context.DeadlineExceeded:
		return nil, errors.Wrapf(context.DeadlineExceeded, "signature %s not found", sig)
	}
	return status, err
}

// GetSignatureStatuses returns one entry per signature, nil where the node
// has no record of it.
func (c *client) GetSignatureStatuses(ctx context.Context, sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.String()
	}

	opts := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{true}

	var resp struct {
		Value []*struct {
			Slot               uint64      `json:"slot"`
			Confirmations      *int        `json:"confirmations"`
			ConfirmationStatus string      `json:"confirmationStatus"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getSignatureStatuses", encoded, opts); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i := 0; i < len(sigs) && i < len(resp.Value); i++ {
		v := resp.Value[i]
		if v == nil {
			continue
		}

		txErr, err := ParseTransactionError(v.Err)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse transaction result for %s", encoded[i])
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
			ErrorResult:        txErr,
		}
	}

	return statuses, nil
}

func (c *client) GetTokenAccountsByOwner(ctx context.Context, owner, mint ed25519.PublicKey, commitment Commitment) ([]ed25519.PublicKey, error) {
	byMint := map[string]string{"mint": base58.Encode(mint)}

	var resp struct {
		Value []struct {
			PubKey string `json:"pubkey"`
		} `json:"value"`
	}
	if err := c.call(ctx, &resp, "getTokenAccountsByOwner", base58.Encode(owner), byMint, base64Config(commitment)); err != nil {
		return nil, errors.Wrap(err, "getTokenAccountsByOwner() failed")
	}

	keys := make([]ed25519.PublicKey, 0, len(resp.Value))
	for _, v := range resp.Value {
		key, err := decodeKey(v.PubKey, "token account")
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *client) GetFilteredProgramAccounts(ctx context.Context, program ed25519.PublicKey, commitment Commitment, filters ...ProgramAccountFilter) ([]ProgramAccount, error) {
	var resp []struct {
		PubKey  string     `json:"pubkey"`
		Account rpcAccount `json:"account"`
	}
	if err := c.call(ctx, &resp, "getProgramAccounts", base58.Encode(program), base64Config(commitment, filters...)); err != nil {
		return nil, errors.Wrap(err, "getProgramAccounts() failed")
	}

	accounts := make([]ProgramAccount, 0, len(resp))
	for _, v := range resp {
		key, err := decodeKey(v.PubKey, "account")
		if err != nil {
			return nil, err
		}
		info, err := v.Account.decode()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, ProgramAccount{PublicKey: key, Account: info})
	}
	return accounts, nil
}
