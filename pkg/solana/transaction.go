package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrNoInstructions      = errors.New("transaction has no instructions")
	ErrTransactionTooLarge = errors.New("transaction exceeds max size")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into a legacy transaction paid for
// by payer. Instruction order is preserved. An account referenced more than
// once takes the union of its roles.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	accounts := mergeAccounts(payer, instructions)
	sort.SliceStable(accounts, func(i, j int) bool {
		return accountLess(accounts[i], accounts[j])
	})

	var m Message
	m.Accounts = make([]ed25519.PublicKey, len(accounts))
	for i, account := range accounts {
		m.Accounts[i] = account.PublicKey

		switch {
		case account.IsSigner && !account.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case account.IsSigner:
			m.Header.NumSignatures++
		case !account.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	m.Instructions = make([]CompiledInstruction, len(instructions))
	for i, ix := range instructions {
		ci := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, ix.Program)),
			Data:         ix.Data,
		}
		for _, a := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}
		m.Instructions[i] = ci
	}

	// Unset keys are encoded as zeros once indexes are resolved.
	for i := range m.Accounts {
		if len(m.Accounts[i]) == 0 {
			m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		}
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Payer returns the fee payer, which is always the first account.
func (t *Transaction) Payer() ed25519.PublicKey {
	if len(t.Message.Accounts) == 0 {
		return nil
	}
	return t.Message.Accounts[0]
}

// Signature returns the payer's signature, which identifies the transaction.
func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// IsSigned returns whether every required signature has been populated.
func (t *Transaction) IsSigned() bool {
	if len(t.Signatures) == 0 {
		return false
	}
	for _, s := range t.Signatures {
		if s == (Signature{}) {
			return false
		}
	}
	return true
}

func (t *Transaction) String() string {
	var sb strings.Builder

	h := t.Message.Header
	fmt.Fprintf(&sb, "blockhash=%s signers=%d readonly_signers=%d readonly=%d\n",
		t.Message.RecentBlockhash, h.NumSignatures, h.NumReadonlySigned, h.NumReadOnly)

	for i, s := range t.Signatures {
		fmt.Fprintf(&sb, "sig[%d] %s\n", i, s)
	}
	for i, a := range t.Message.Accounts {
		fmt.Fprintf(&sb, "key[%d] %s\n", i, base58.Encode(a))
	}
	for i, ci := range t.Message.Instructions {
		fmt.Fprintf(&sb, "ix[%d] program=%d accounts=%v data=%x\n", i, ci.ProgramIndex, ci.Accounts, ci.Data)
	}

	return sb.String()
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each key. Every key must belong to one of the
// message's signers. Signing order is irrelevant.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, key := range signers {
		pub := key.Public().(ed25519.PublicKey)

		index, err := t.signerIndex(pub)
		if err != nil {
			return err
		}
		copy(t.Signatures[index][:], ed25519.Sign(key, message))
	}

	return nil
}

// AddSignature attaches a signature produced outside of the process, such as
// by a hardware or browser wallet. The signature is verified against the
// message before it is stored.
func (t *Transaction) AddSignature(pub ed25519.PublicKey, sig Signature) error {
	index, err := t.signerIndex(pub)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, t.Message.Marshal(), sig[:]) {
		return errors.Errorf("invalid signature for %s", base58.Encode(pub))
	}

	t.Signatures[index] = sig
	return nil
}

func (t *Transaction) signerIndex(pub ed25519.PublicKey) (int, error) {
	index := indexOf(t.Message.Accounts, pub)
	if index < 0 || index >= len(t.Signatures) {
		return 0, errors.Errorf("account %s is not a signer", base58.Encode(pub))
	}
	return index, nil
}

// mergeAccounts collects the payer, every program and every referenced
// account, keeping the first occurrence of each key and promoting its roles.
func mergeAccounts(payer ed25519.PublicKey, instructions []Instruction) []AccountMeta {
	var (
		merged []AccountMeta
		seen   = make(map[string]int)
	)

	add := func(meta AccountMeta) {
		if i, ok := seen[string(meta.PublicKey)]; ok {
			existing := &merged[i]
			existing.IsSigner = existing.IsSigner || meta.IsSigner
			existing.IsWritable = existing.IsWritable || meta.IsWritable
			existing.isPayer = existing.isPayer || meta.isPayer
			return
		}
		seen[string(meta.PublicKey)] = len(merged)
		merged = append(merged, meta)
	}

	add(AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true, isPayer: true})
	for _, ix := range instructions {
		add(AccountMeta{PublicKey: ix.Program, isProgram: true})
		for _, a := range ix.Accounts {
			add(a)
		}
	}

	return merged
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	for i, k := range keys {
		if bytes.Equal(k, key) {
			return i
		}
	}
	return -1
}
