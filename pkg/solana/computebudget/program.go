// Package computebudget builds instructions for the compute budget program,
// which sets the compute limit and priority fee of a transaction.
package computebudget

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

// ProgramKey is ComputeBudget111111111111111111111111111111.
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

const (
	// nolint:varcheck,deadcode,unused
	commandRequestUnits uint8 = iota
	// nolint:varcheck,deadcode,unused
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

var ErrInvalidInstructionData = errors.New("computebudget: invalid instruction data")

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 1+4)
	data[0] = commandSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(ProgramKey, data)
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := make([]byte, 1+8)
	data[0] = commandSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(ProgramKey, data)
}

// Request is a decoded compute budget instruction. Exactly one of the fields
// is set.
type Request struct {
	UnitLimit *uint32
	UnitPrice *uint64
}

// Decode parses compute budget instruction data.
func Decode(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstructionData
	}

	switch data[0] {
	case commandSetComputeUnitLimit:
		if len(data) != 5 {
			return nil, ErrInvalidInstructionData
		}
		v := binary.LittleEndian.Uint32(data[1:])
		return &Request{UnitLimit: &v}, nil
	case commandSetComputeUnitPrice:
		if len(data) != 9 {
			return nil, ErrInvalidInstructionData
		}
		v := binary.LittleEndian.Uint64(data[1:])
		return &Request{UnitPrice: &v}, nil
	}
	return nil, errors.Wrapf(ErrInvalidInstructionData, "unsupported command %d", data[0])
}
