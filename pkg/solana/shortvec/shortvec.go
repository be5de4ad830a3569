// Package shortvec implements the compact-u16 length prefix used by the
// transaction wire format. Values are little endian groups of seven bits,
// with the high bit of each byte marking continuation.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedSize is the widest encoding of a length.
const MaxEncodedSize = 3

var (
	ErrLengthOverflow = errors.New("shortvec: length exceeds u16")
	ErrNonCanonical   = errors.New("shortvec: non-canonical encoding")
)

// EncodeLen writes length to w and returns the number of bytes written.
func EncodeLen(w io.Writer, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, errors.Wrapf(ErrLengthOverflow, "%d", length)
	}

	var buf [MaxEncodedSize]byte
	n := 0
	for rem := uint16(length); ; n++ {
		buf[n] = byte(rem & 0x7f)
		rem >>= 7
		if rem == 0 {
			n++
			break
		}
		buf[n] |= 0x80
	}

	return w.Write(buf[:n])
}

// DecodeLen reads a length from r. Encodings that are wider than needed or
// that overflow a u16 are rejected.
func DecodeLen(r io.Reader) (int, error) {
	var (
		val  uint32
		next [1]byte
	)

	for i := 0; i < MaxEncodedSize; i++ {
		if _, err := io.ReadFull(r, next[:]); err != nil {
			if i > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}

		b := next[0]
		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}

		val |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, ErrLengthOverflow
			}
			return int(val), nil
		}
	}

	return 0, ErrLengthOverflow
}
