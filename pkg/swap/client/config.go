package client

import (
	"time"

	"github.com/hoale58-vl/sol-simple-swap/pkg/config"
	"github.com/hoale58-vl/sol-simple-swap/pkg/config/env"
	"github.com/hoale58-vl/sol-simple-swap/pkg/config/memory"
	"github.com/hoale58-vl/sol-simple-swap/pkg/config/wrapper"
	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/simpleswap"
)

const (
	envConfigPrefix = "SWAP_CLIENT_"

	CommitmentConfigEnvName = envConfigPrefix + "COMMITMENT"
	defaultCommitment       = "confirmed"

	ConfirmTimeoutConfigEnvName = envConfigPrefix + "CONFIRM_TIMEOUT"
	defaultConfirmTimeout       = 60 * time.Second

	SwapStoreSeedConfigEnvName = envConfigPrefix + "SWAP_STORE_SEED"
	defaultSwapStoreSeed       = simpleswap.SwapStoreSeed

	LamportEscrowSeedConfigEnvName = envConfigPrefix + "LAMPORT_ESCROW_SEED"
	defaultLamportEscrowSeed       = simpleswap.LamportEscrowSeed

	SwapStoreSizeConfigEnvName = envConfigPrefix + "SWAP_STORE_SIZE"
	defaultSwapStoreSize       = simpleswap.SwapStoreAccountSize

	IdempotentAssociatedCreateConfigEnvName = envConfigPrefix + "IDEMPOTENT_ASSOCIATED_CREATE"
	defaultIdempotentAssociatedCreate       = false

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 0
)

type conf struct {
	commitment                 config.String
	confirmTimeout             config.Duration
	swapStoreSeed              config.String
	lamportEscrowSeed          config.String
	swapStoreSize              config.Uint64
	idempotentAssociatedCreate config.Bool
	computeUnitPrice           config.Uint64
	computeUnitLimit           config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			commitment:                 env.NewStringConfig(CommitmentConfigEnvName, defaultCommitment),
			confirmTimeout:             env.NewDurationConfig(ConfirmTimeoutConfigEnvName, defaultConfirmTimeout),
			swapStoreSeed:              env.NewStringConfig(SwapStoreSeedConfigEnvName, defaultSwapStoreSeed),
			lamportEscrowSeed:          env.NewStringConfig(LamportEscrowSeedConfigEnvName, defaultLamportEscrowSeed),
			swapStoreSize:              env.NewUint64Config(SwapStoreSizeConfigEnvName, defaultSwapStoreSize),
			idempotentAssociatedCreate: env.NewBoolConfig(IdempotentAssociatedCreateConfigEnvName, defaultIdempotentAssociatedCreate),
			computeUnitPrice:           env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			computeUnitLimit:           env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
		}
	}
}

type testOverrides struct {
	commitment                 string
	confirmTimeout             time.Duration
	idempotentAssociatedCreate bool
	computeUnitPrice           uint64
	computeUnitLimit           uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	commitment := defaultCommitment
	if overrides.commitment != "" {
		commitment = overrides.commitment
	}

	confirmTimeout := defaultConfirmTimeout
	if overrides.confirmTimeout > 0 {
		confirmTimeout = overrides.confirmTimeout
	}

	return func() *conf {
		return &conf{
			commitment:                 wrapper.NewStringConfig(memory.NewConfig(commitment), defaultCommitment),
			confirmTimeout:             wrapper.NewDurationConfig(memory.NewConfig(confirmTimeout), defaultConfirmTimeout),
			swapStoreSeed:              wrapper.NewStringConfig(memory.NewConfig(defaultSwapStoreSeed), defaultSwapStoreSeed),
			lamportEscrowSeed:          wrapper.NewStringConfig(memory.NewConfig(defaultLamportEscrowSeed), defaultLamportEscrowSeed),
			swapStoreSize:              wrapper.NewUint64Config(memory.NewConfig(uint64(defaultSwapStoreSize)), defaultSwapStoreSize),
			idempotentAssociatedCreate: wrapper.NewBoolConfig(memory.NewConfig(overrides.idempotentAssociatedCreate), defaultIdempotentAssociatedCreate),
			computeUnitPrice:           wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			computeUnitLimit:           wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitLimit), defaultComputeUnitLimit),
		}
	}
}
