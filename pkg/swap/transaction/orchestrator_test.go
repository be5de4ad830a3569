package transaction

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/computebudget"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/memory"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/system"
	"github.com/hoale58-vl/sol-simple-swap/pkg/swap"
	"github.com/hoale58-vl/sol-simple-swap/pkg/wallet"
)

type testEnv struct {
	ledger *memory.Ledger
	wallet wallet.Wallet
	owner  ed25519.PublicKey
	orch   *Orchestrator
}

func setup(t *testing.T, approver wallet.Approver, opts ...memory.Option) *testEnv {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	ledger := memory.New(opts...)
	ledger.Airdrop(pub, 1_000_000_000)

	w := wallet.NewKeypairWallet(wallet.FromPrivateKey(priv), approver)
	require.NoError(t, w.Connect(context.Background()))

	return &testEnv{
		ledger: ledger,
		wallet: w,
		owner:  pub,
		orch:   New(ledger, w, WithConfirmTimeout(time.Second)),
	}
}

func (e *testEnv) createInstruction(t *testing.T, seed string) solana.Instruction {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr, err := solana.CreateWithSeed(e.owner, seed, program)
	require.NoError(t, err)

	return system.CreateAccountWithSeed(e.owner, addr, e.owner, seed, memory.RentExemption(1), 1, program)
}

func TestOrchestrator_Execute(t *testing.T) {
	env := setup(t, nil)

	outcome, err := env.orch.Execute(context.Background(), []solana.Instruction{
		env.createInstruction(t, "a"),
		env.createInstruction(t, "b"),
	})
	require.NoError(t, err)
	assert.Nil(t, outcome.Err)
	assert.NotZero(t, outcome.Slot)

	submitted := env.ledger.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, outcome.Signature, submitted[0].Signatures[0])
	assert.Len(t, submitted[0].Message.Instructions, 2)
}

func TestOrchestrator_ComputeUnitPrice(t *testing.T) {
	env := setup(t, nil)
	orch := New(env.ledger, env.wallet, WithComputeUnitPrice(10_000))

	outcome, err := orch.Execute(context.Background(), []solana.Instruction{env.createInstruction(t, "a")})
	require.NoError(t, err)
	assert.Nil(t, outcome.Err)

	submitted := env.ledger.Submitted()
	require.Len(t, submitted, 1)

	m := submitted[0].Message
	require.Len(t, m.Instructions, 2)
	assert.EqualValues(t, computebudget.ProgramKey, m.Accounts[m.Instructions[0].ProgramIndex])

	req, err := computebudget.Decode(m.Instructions[0].Data)
	require.NoError(t, err)
	require.NotNil(t, req.UnitPrice)
	assert.EqualValues(t, 10_000, *req.UnitPrice)

	_, err = system.DecompileCreateAccountWithSeed(m, 1)
	assert.NoError(t, err)
}

func TestOrchestrator_ComputeUnitLimit(t *testing.T) {
	env := setup(t, nil)
	orch := New(env.ledger, env.wallet, WithComputeUnitLimit(200_000), WithComputeUnitPrice(5))

	p, err := orch.Assemble(context.Background(), []solana.Instruction{env.createInstruction(t, "a")}, env.owner)
	require.NoError(t, err)

	m := p.Transaction.Message
	require.Len(t, m.Instructions, 3)

	limit, err := computebudget.Decode(m.Instructions[0].Data)
	require.NoError(t, err)
	require.NotNil(t, limit.UnitLimit)
	assert.EqualValues(t, 200_000, *limit.UnitLimit)

	price, err := computebudget.Decode(m.Instructions[1].Data)
	require.NoError(t, err)
	require.NotNil(t, price.UnitPrice)
	assert.EqualValues(t, 5, *price.UnitPrice)

	_, err = system.DecompileCreateAccountWithSeed(m, 2)
	assert.NoError(t, err)

	capped := New(env.ledger, env.wallet, WithComputeUnitLimit(1<<40))
	p, err = capped.Assemble(context.Background(), []solana.Instruction{env.createInstruction(t, "b")}, env.owner)
	require.NoError(t, err)

	limit, err = computebudget.Decode(p.Transaction.Message.Instructions[0].Data)
	require.NoError(t, err)
	require.NotNil(t, limit.UnitLimit)
	assert.EqualValues(t, uint32(math.MaxUint32), *limit.UnitLimit)
}

func TestOrchestrator_Lifecycle(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil)

	p, err := env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, env.owner)
	require.NoError(t, err)
	assert.Equal(t, StateAssembling, p.State())
	assert.False(t, p.Transaction.IsSigned())

	_, err = env.orch.Confirm(ctx, p)
	assert.Error(t, err)

	sig, err := env.orch.SignAndSubmit(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, p.State())
	assert.Equal(t, sig, p.Signature())

	// A pending transaction is signed and submitted only once.
	_, err = env.orch.SignAndSubmit(ctx, p)
	assert.Error(t, err)
	assert.Len(t, env.ledger.Submitted(), 1)

	outcome, err := env.orch.Confirm(ctx, p)
	require.NoError(t, err)
	assert.Nil(t, outcome.Err)
	assert.Equal(t, StateConfirmed, p.State())
}

func TestOrchestrator_Assemble_Invalid(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil)

	_, err := env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, nil)
	assert.Equal(t, swap.ErrNoSigner, err)

	_, err = env.orch.Assemble(ctx, nil, env.owner)
	assert.True(t, errors.Is(err, swap.ErrInvalidInput))

	env.ledger.FailWith("getLatestBlockhash", solana.ErrTransport)
	_, err = env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, env.owner)
	assert.True(t, errors.Is(err, solana.ErrTransport))
	assert.True(t, swap.IsRetryable(err))
}

func TestOrchestrator_UserRejected(t *testing.T) {
	env := setup(t, func(context.Context, *solana.Transaction) (bool, error) {
		return false, nil
	})

	_, err := env.orch.Execute(context.Background(), []solana.Instruction{env.createInstruction(t, "a")})
	assert.True(t, errors.Is(err, swap.ErrUserRejected))
	assert.False(t, swap.IsRetryable(err))
	assert.Empty(t, env.ledger.Submitted())
}

func TestOrchestrator_NoSigner(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil)

	other, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	p, err := env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, other)
	require.NoError(t, err)

	_, err = env.orch.SignAndSubmit(ctx, p)
	assert.True(t, errors.Is(err, swap.ErrNoSigner))
	assert.Equal(t, StateAssembling, p.State())

	require.NoError(t, env.wallet.Disconnect())
	_, err = env.orch.Execute(ctx, []solana.Instruction{env.createInstruction(t, "a")})
	assert.Equal(t, swap.ErrNoSigner, err)
	assert.Empty(t, env.ledger.Submitted())
}

func TestOrchestrator_StaleBlockhash(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil)

	p, err := env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, env.owner)
	require.NoError(t, err)

	env.ledger.ExpireBlockhashes()

	_, err = env.orch.SignAndSubmit(ctx, p)
	require.Error(t, err)
	assert.Equal(t, StateRejected, p.State())
	assert.True(t, swap.IsRetryable(err))

	var rejection *swap.LedgerRejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, solana.TransactionErrorBlockhashNotFound, rejection.Err.ErrorKey())
}

func TestOrchestrator_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil)

	ix := env.createInstruction(t, "a")

	_, err := env.orch.Execute(ctx, []solana.Instruction{ix})
	require.NoError(t, err)

	_, err = env.orch.Execute(ctx, []solana.Instruction{ix})
	var rejection *swap.LedgerRejectionError
	require.True(t, errors.As(err, &rejection))
	assert.True(t, rejection.Err.IsAccountAlreadyInUse())
	assert.True(t, swap.IsRetryable(err))
}

func TestOrchestrator_FailedOnLedger(t *testing.T) {
	env := setup(t, nil, memory.WithoutPreflight())

	ix := env.createInstruction(t, "a")
	ix.Accounts[1].PublicKey = env.owner

	outcome, err := env.orch.Execute(context.Background(), []solana.Instruction{ix})
	require.Error(t, err)
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Err)

	var rejection *swap.LedgerRejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, outcome.Err, rejection.Err)
	assert.Len(t, env.ledger.Submitted(), 1)
}

func TestOrchestrator_ConfirmTimeout(t *testing.T) {
	ctx := context.Background()
	env := setup(t, nil, memory.WithConfirmationStatus("processed"))

	p, err := env.orch.Assemble(ctx, []solana.Instruction{env.createInstruction(t, "a")}, env.owner)
	require.NoError(t, err)

	_, err = env.orch.SignAndSubmit(ctx, p)
	require.NoError(t, err)

	_, err = env.orch.Confirm(ctx, p)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, swap.IsRetryable(err))
	assert.Equal(t, StateSubmitted, p.State())

	env.ledger.SetConfirmationStatus(p.Signature(), "confirmed")
	outcome, err := env.orch.Confirm(ctx, p)
	require.NoError(t, err)
	assert.Nil(t, outcome.Err)
	assert.Len(t, env.ledger.Submitted(), 1)
}

// newRPCServer serves the calls Execute makes against a node. Signature
// statuses stay unknown until confirmAfter polls have been answered; a
// negative confirmAfter never confirms.
func newRPCServer(t *testing.T, confirmAfter int32) (*httptest.Server, *int32) {
	var polls int32
	blockhash := base58.Encode(bytes.Repeat([]byte{7}, 32))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string      `json:"method"`
			ID     interface{} `json:"id"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result interface{}
		switch req.Method {
		case "getLatestBlockhash":
			result = map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   map[string]interface{}{"blockhash": blockhash, "lastValidBlockHeight": 150},
			}
		case "sendTransaction":
			result = "ok"
		case "getSignatureStatuses":
			value := []interface{}{nil}
			if n := atomic.AddInt32(&polls, 1); confirmAfter >= 0 && n > confirmAfter {
				value[0] = map[string]interface{}{"slot": 2, "confirmations": 1, "confirmationStatus": "confirmed", "err": nil}
			}
			result = map[string]interface{}{
				"context": map[string]interface{}{"slot": 2},
				"value":   value,
			}
		default:
			t.Errorf("unexpected method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}))
	}))
	t.Cleanup(server.Close)
	return server, &polls
}

func TestOrchestrator_ConfirmTimeoutBoundsPolling(t *testing.T) {
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	w := wallet.NewKeypairWallet(wallet.FromPrivateKey(priv), nil)
	require.NoError(t, w.Connect(ctx))

	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	instructions := []solana.Instruction{solana.NewInstruction(program, []byte{1})}

	// Confirmation lands well after the client's own poll timeout, but
	// inside the orchestrator's confirm timeout.
	server, polls := newRPCServer(t, 10)
	sc := solana.New(server.URL, solana.WithSignaturePolling(5*time.Millisecond, 10*time.Millisecond))

	outcome, err := New(sc, w, WithConfirmTimeout(5*time.Second)).Execute(ctx, instructions)
	require.NoError(t, err)
	assert.Nil(t, outcome.Err)
	assert.EqualValues(t, 11, atomic.LoadInt32(polls))

	// A short confirm timeout cuts off a much longer poll timeout.
	server, _ = newRPCServer(t, -1)
	sc = solana.New(server.URL, solana.WithSignaturePolling(5*time.Millisecond, time.Minute))

	start := time.Now()
	_, err = New(sc, w, WithConfirmTimeout(100*time.Millisecond)).Execute(ctx, instructions)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, swap.IsRetryable(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}
