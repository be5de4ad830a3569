package simpleswap

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"
)

const (
	// SwapStoreAccountSize is the allocation made for a swap store. The
	// program only uses the leading SwapStoreDataSize bytes.
	SwapStoreAccountSize = 129

	SwapStoreDataSize = (1 + // IsInitialized
		32 + // Admin
		8 + // AmountSwapped
		32) // TokenFundedAccount
)

type SwapStoreAccount struct {
	IsInitialized      bool
	Admin              ed25519.PublicKey
	AmountSwapped      uint64
	TokenFundedAccount ed25519.PublicKey
}

func (obj *SwapStoreAccount) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBool(obj.IsInitialized); err != nil {
		return err
	}
	if err := writeKey(encoder, obj.Admin); err != nil {
		return err
	}
	if err := encoder.WriteUint64(obj.AmountSwapped, binary.LittleEndian); err != nil {
		return err
	}
	return writeKey(encoder, obj.TokenFundedAccount)
}

func (obj *SwapStoreAccount) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if obj.IsInitialized, err = decoder.ReadBool(); err != nil {
		return err
	}
	if obj.Admin, err = readKey(decoder); err != nil {
		return err
	}
	if obj.AmountSwapped, err = decoder.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	obj.TokenFundedAccount, err = readKey(decoder)
	return err
}

// Marshal encodes the store into a buffer of SwapStoreAccountSize bytes.
func (obj *SwapStoreAccount) Marshal() []byte {
	buf := new(bytes.Buffer)
	_ = bin.NewBorshEncoder(buf).Encode(obj)

	data := make([]byte, SwapStoreAccountSize)
	copy(data, buf.Bytes())
	return data
}

// Unmarshal decodes account data. Bytes past SwapStoreDataSize are ignored.
func (obj *SwapStoreAccount) Unmarshal(data []byte) error {
	if len(data) < SwapStoreDataSize {
		return ErrInvalidAccountData
	}

	if err := bin.NewBorshDecoder(data[:SwapStoreDataSize]).Decode(obj); err != nil {
		return errors.Wrap(ErrInvalidAccountData, err.Error())
	}
	return nil
}

func writeKey(encoder *bin.Encoder, key ed25519.PublicKey) error {
	var raw [ed25519.PublicKeySize]byte
	copy(raw[:], key)
	return encoder.WriteBytes(raw[:], false)
}

func readKey(decoder *bin.Decoder) (ed25519.PublicKey, error) {
	raw, err := decoder.ReadNBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return append(ed25519.PublicKey(nil), raw...), nil
}
