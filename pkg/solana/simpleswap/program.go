package simpleswap

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
)

// SwapRatio is the number of token base units the program pays out per
// lamport swapped.
const SwapRatio = 10

// InstructionType is the one byte tag prefixing every instruction's data.
type InstructionType uint8

const (
	InstructionTypeInitialize InstructionType = iota
	InstructionTypeSwap
	InstructionTypeWithdraw
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitialize:
		return "initialize"
	case InstructionTypeSwap:
		return "swap"
	case InstructionTypeWithdraw:
		return "withdraw"
	}
	return "unknown"
}

// GetInstructionType returns the tag of encoded instruction data.
func GetInstructionType(data []byte) (InstructionType, error) {
	if len(data) == 0 {
		return 0, ErrInvalidInstructionData
	}

	t := InstructionType(data[0])
	if t > InstructionTypeWithdraw {
		return 0, ErrInvalidInstructionData
	}
	return t, nil
}

// EstimateTokensOut returns the token amount a swap of lamports pays out.
func EstimateTokensOut(lamports uint64) (uint64, error) {
	if lamports > ^uint64(0)/SwapRatio {
		return 0, errors.New("amount overflows token output")
	}
	return lamports * SwapRatio, nil
}
