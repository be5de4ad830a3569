package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/simpleswap"
)

func TestWithEnvConfigs(t *testing.T) {
	ctx := context.Background()

	defaults := WithEnvConfigs()()
	assert.Equal(t, "confirmed", defaults.commitment.Get(ctx))
	assert.Equal(t, 60*time.Second, defaults.confirmTimeout.Get(ctx))
	assert.Equal(t, simpleswap.SwapStoreSeed, defaults.swapStoreSeed.Get(ctx))
	assert.Equal(t, simpleswap.LamportEscrowSeed, defaults.lamportEscrowSeed.Get(ctx))
	assert.EqualValues(t, simpleswap.SwapStoreAccountSize, defaults.swapStoreSize.Get(ctx))
	assert.False(t, defaults.idempotentAssociatedCreate.Get(ctx))
	assert.Zero(t, defaults.computeUnitPrice.Get(ctx))
	assert.Zero(t, defaults.computeUnitLimit.Get(ctx))

	t.Setenv(CommitmentConfigEnvName, "finalized")
	t.Setenv(ConfirmTimeoutConfigEnvName, "5s")
	t.Setenv(IdempotentAssociatedCreateConfigEnvName, "true")
	t.Setenv(ComputeUnitPriceConfigEnvName, "2500")
	t.Setenv(ComputeUnitLimitConfigEnvName, "300000")

	overridden := WithEnvConfigs()()
	assert.Equal(t, "finalized", overridden.commitment.Get(ctx))
	assert.Equal(t, 5*time.Second, overridden.confirmTimeout.Get(ctx))
	assert.True(t, overridden.idempotentAssociatedCreate.Get(ctx))
	assert.EqualValues(t, 2500, overridden.computeUnitPrice.Get(ctx))
	assert.EqualValues(t, 300000, overridden.computeUnitLimit.Get(ctx))

	s := &Session{conf: overridden}
	assert.Equal(t, solana.CommitmentFinalized, s.commitment(ctx))
}
