package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/hoale58-vl/sol-simple-swap/pkg/solana/shortvec"
)

// versionPrefix marks a versioned message. Only legacy messages are
// supported.
const versionPrefix = 0x80

var ErrVersionedMessage = errors.New("versioned messages not supported")

// Marshal encodes the signed transaction. The result is what gets submitted
// to the ledger.
func (t Transaction) Marshal() []byte {
	w := &wireWriter{}
	w.len(len(t.Signatures))
	for _, s := range t.Signatures {
		w.raw(s[:])
	}
	w.raw(t.Message.Marshal())
	return w.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := newWireReader(b)

	t.Signatures = make([]Signature, r.len("signature count"))
	for i := range t.Signatures {
		r.fill(t.Signatures[i][:], "signature")
	}
	if r.err != nil {
		return r.err
	}

	return t.Message.Unmarshal(r.rest())
}

// Marshal encodes the message in the legacy wire format. These are the bytes
// that get signed.
func (m Message) Marshal() []byte {
	w := &wireWriter{}
	w.raw([]byte{m.Header.NumSignatures, m.Header.NumReadonlySigned, m.Header.NumReadOnly})

	w.len(len(m.Accounts))
	for _, a := range m.Accounts {
		w.raw(a)
	}

	w.raw(m.RecentBlockhash[:])

	w.len(len(m.Instructions))
	for _, ci := range m.Instructions {
		w.raw([]byte{ci.ProgramIndex})
		w.vec(ci.Accounts)
		w.vec(ci.Data)
	}

	return w.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}
	if b[0]&versionPrefix != 0 {
		return ErrVersionedMessage
	}

	r := newWireReader(b)

	var header [3]byte
	r.fill(header[:], "header")
	m.Header = Header{
		NumSignatures:     header[0],
		NumReadonlySigned: header[1],
		NumReadOnly:       header[2],
	}

	m.Accounts = make([]ed25519.PublicKey, r.len("account count"))
	for i := range m.Accounts {
		m.Accounts[i] = r.next(ed25519.PublicKeySize, "account key")
	}

	r.fill(m.RecentBlockhash[:], "recent blockhash")

	m.Instructions = make([]CompiledInstruction, r.len("instruction count"))
	for i := range m.Instructions {
		ci := &m.Instructions[i]
		ci.ProgramIndex = r.byte("program index")
		ci.Accounts = r.vec("account indexes")
		ci.Data = r.vec("instruction data")
		if r.err != nil {
			return errors.Wrapf(r.err, "instruction %d", i)
		}

		if int(ci.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("instruction %d: program index %d out of range", i, ci.ProgramIndex)
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= len(m.Accounts) {
				return errors.Errorf("instruction %d: account index %d out of range", i, idx)
			}
		}
	}

	return r.err
}

type wireWriter struct {
	bytes.Buffer
}

func (w *wireWriter) raw(b []byte) {
	_, _ = w.Write(b)
}

// len panics on lengths past a u16. Compiled transactions are bounded well
// below that by MaxTransactionSize.
func (w *wireWriter) len(n int) {
	if _, err := shortvec.EncodeLen(w, n); err != nil {
		panic(err)
	}
}

func (w *wireWriter) vec(b []byte) {
	w.len(len(b))
	w.raw(b)
}

// wireReader records the first failure and turns every later read into a
// no-op, so decoders can check the error once.
type wireReader struct {
	r   *bytes.Reader
	err error
}

func newWireReader(b []byte) *wireReader {
	return &wireReader{r: bytes.NewReader(b)}
}

func (r *wireReader) fail(err error, what string) {
	if r.err == nil {
		r.err = errors.Wrapf(err, "failed to read %s", what)
	}
}

func (r *wireReader) len(what string) int {
	if r.err != nil {
		return 0
	}
	n, err := shortvec.DecodeLen(r.r)
	if err != nil {
		r.fail(err, what)
		return 0
	}
	return n
}

func (r *wireReader) fill(dst []byte, what string) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, dst); err != nil {
		r.fail(err, what)
	}
}

func (r *wireReader) next(n int, what string) []byte {
	b := make([]byte, n)
	r.fill(b, what)
	return b
}

func (r *wireReader) vec(what string) []byte {
	return r.next(r.len(what), what)
}

func (r *wireReader) byte(what string) byte {
	var b [1]byte
	r.fill(b[:], what)
	return b[0]
}

func (r *wireReader) rest() []byte {
	b := make([]byte, r.r.Len())
	_, _ = r.r.Read(b)
	return b
}
