package main

import (
	"math"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// lamportDecimals is the number of decimal places between SOL and lamports.
const lamportDecimals = 9

var maxLamports = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// parseSOL converts a decimal SOL amount, such as "1.5", into lamports.
func parseSOL(amount string) (uint64, error) {
	sol, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid SOL amount %q", amount)
	}
	if sol.IsNegative() {
		return 0, errors.Errorf("SOL amount must not be negative: %s", amount)
	}

	lamports := sol.Shift(lamportDecimals)
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, errors.Errorf("SOL amount has more than %d decimal places: %s", lamportDecimals, amount)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, errors.Errorf("SOL amount is too large: %s", amount)
	}

	return lamports.BigInt().Uint64(), nil
}

// formatSOL renders lamports as a decimal SOL amount.
func formatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportDecimals).String()
}
