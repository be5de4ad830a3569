package simpleswap

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana"
)

const (
	WithdrawRequestSize = 8 // Amount

	WithdrawInstructionDataSize = 1 + WithdrawRequestSize
)

type WithdrawRequest struct {
	Amount uint64
}

func (obj *WithdrawRequest) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.WriteUint64(obj.Amount, binary.LittleEndian)
}

func (obj *WithdrawRequest) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	obj.Amount, err = decoder.ReadUint64(binary.LittleEndian)
	return err
}

type WithdrawInstructionAccounts struct {
	SwapStore ed25519.PublicKey
	Owner     ed25519.PublicKey
}

// NewWithdrawInstruction moves amount lamports from the swap store to its
// admin.
func NewWithdrawInstruction(program ed25519.PublicKey, accounts *WithdrawInstructionAccounts, req *WithdrawRequest) (solana.Instruction, error) {
	data, err := EncodeWithdrawData(req)
	if err != nil {
		return solana.Instruction{}, err
	}

	return solana.NewInstruction(
		program,
		data,
		solana.NewAccountMeta(accounts.SwapStore, false),
		solana.NewReadonlyAccountMeta(accounts.Owner, true),
	), nil
}

// EncodeWithdrawData returns the tagged withdraw payload.
func EncodeWithdrawData(req *WithdrawRequest) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, WithdrawInstructionDataSize))
	buf.WriteByte(byte(InstructionTypeWithdraw))

	if err := bin.NewBorshEncoder(buf).Encode(req); err != nil {
		return nil, errors.Wrap(err, "failed to encode withdraw request")
	}
	return buf.Bytes(), nil
}

// DecodeWithdrawData parses a payload produced by EncodeWithdrawData.
func DecodeWithdrawData(data []byte) (*WithdrawRequest, error) {
	if len(data) != WithdrawInstructionDataSize || data[0] != byte(InstructionTypeWithdraw) {
		return nil, ErrInvalidInstructionData
	}

	var req WithdrawRequest
	if err := bin.NewBorshDecoder(data[1:]).Decode(&req); err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionData, err.Error())
	}
	return &req, nil
}
