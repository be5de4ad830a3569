package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
)

// ProgramKey is the SPL token program, TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA.
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type AccountState byte

const (
	AccountStateUninitialized AccountState = iota
	AccountStateInitialized
	AccountStateFrozen
)

// AccountSize is the packed length of a token account.
const AccountSize = (32 + // Mint
	32 + // Owner
	8 + // Amount
	4 + 32 + // Delegate
	1 + // State
	4 + 8 + // IsNative
	8 + // DelegatedAmount
	4 + 32) // CloseAuthority

// Account is the state held by a token account. Optional fields use the
// program's COption layout: a u32 tag followed by the full width of the value.
type Account struct {
	Mint   ed25519.PublicKey
	Owner  ed25519.PublicKey
	Amount uint64
	// If set, DelegatedAmount is the amount the delegate may transfer.
	Delegate ed25519.PublicKey
	State    AccountState
	// If set, this is a wrapped SOL account and the value is its rent-exempt reserve.
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  ed25519.PublicKey
}

func (a *Account) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeKey(encoder, a.Mint); err != nil {
		return err
	}
	if err := writeKey(encoder, a.Owner); err != nil {
		return err
	}
	if err := encoder.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return err
	}
	if err := writeOptionalKey(encoder, a.Delegate); err != nil {
		return err
	}
	if err := encoder.WriteUint8(uint8(a.State)); err != nil {
		return err
	}

	var native uint64
	if a.IsNative != nil {
		native = *a.IsNative
	}
	if err := writeTag(encoder, a.IsNative != nil); err != nil {
		return err
	}
	if err := encoder.WriteUint64(native, binary.LittleEndian); err != nil {
		return err
	}

	if err := encoder.WriteUint64(a.DelegatedAmount, binary.LittleEndian); err != nil {
		return err
	}
	return writeOptionalKey(encoder, a.CloseAuthority)
}

func (a *Account) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if a.Mint, err = readKey(decoder); err != nil {
		return err
	}
	if a.Owner, err = readKey(decoder); err != nil {
		return err
	}
	if a.Amount, err = decoder.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if a.Delegate, err = readOptionalKey(decoder); err != nil {
		return err
	}

	state, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	a.State = AccountState(state)

	present, err := readTag(decoder)
	if err != nil {
		return err
	}
	native, err := decoder.ReadUint64(binary.LittleEndian)
	if err != nil {
		return err
	}
	if present {
		a.IsNative = &native
	}

	if a.DelegatedAmount, err = decoder.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	a.CloseAuthority, err = readOptionalKey(decoder)
	return err
}

func (a *Account) Marshal() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(AccountSize)
	_ = bin.NewBinEncoder(buf).Encode(a)
	return buf.Bytes()
}

// Unmarshal reports whether b held a well formed token account.
func (a *Account) Unmarshal(b []byte) bool {
	if len(b) != AccountSize {
		return false
	}

	*a = Account{}
	return bin.NewBinDecoder(b).Decode(a) == nil
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

func writeTag(encoder *bin.Encoder, present bool) error {
	var tag uint32
	if present {
		tag = 1
	}
	return encoder.WriteUint32(tag, binary.LittleEndian)
}

func readTag(decoder *bin.Decoder) (bool, error) {
	tag, err := decoder.ReadUint32(binary.LittleEndian)
	if err != nil {
		return false, err
	}
	return tag == 1, nil
}

func writeOptionalKey(encoder *bin.Encoder, key ed25519.PublicKey) error {
	if err := writeTag(encoder, len(key) > 0); err != nil {
		return err
	}
	return writeKey(encoder, key)
}

func readOptionalKey(decoder *bin.Decoder) (ed25519.PublicKey, error) {
	present, err := readTag(decoder)
	if err != nil {
		return nil, err
	}
	key, err := readKey(decoder)
	if err != nil || !present {
		return nil, err
	}
	return key, nil
}
