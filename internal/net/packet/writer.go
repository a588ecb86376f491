package packet

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Writer builds a server buffer. All multi-byte writes are little-endian.
// The final Bytes() output is padded to a 4-byte boundary.
type Writer struct {
	buf []byte
	enc *encoding.Encoder
}

// Codec carries the client string encoding and creates writers with it.
// A Codec is immutable after construction and safe to share across zones.
type Codec struct {
	charset string
	enc     encoding.Encoding
}

// NewCodec resolves a WHATWG encoding label such as "utf-8" or "windows-1252".
func NewCodec(charset string) (*Codec, error) {
	e, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown client charset %q: %w", charset, err)
	}
	return &Codec{charset: charset, enc: e}, nil
}

// Charset returns the label the codec was built with.
func (c *Codec) Charset() string { return c.charset }

func (c *Codec) NewWriter(opcode byte) *Writer {
	w := &Writer{buf: make([]byte, 0, 64), enc: c.enc.NewEncoder()}
	w.WriteC(opcode)
	return w
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes little-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteQ writes 8 bytes little-endian. Object ids go out this way.
func (w *Writer) WriteQ(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteF writes a float32 as its IEEE-754 bits.
func (w *Writer) WriteF(v float64) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(float32(v)))
}

// WriteS writes a null-terminated string in the client charset.
func (w *Writer) WriteS(s string) {
	if len(s) > 0 {
		encoded, err := w.enc.Bytes([]byte(s))
		if err != nil {
			// Fallback: write raw bytes (works for pure ASCII)
			w.buf = append(w.buf, s...)
		} else {
			w.buf = append(w.buf, encoded...)
		}
	}
	w.buf = append(w.buf, 0)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the buffer padded to a 4-byte boundary.
func (w *Writer) Bytes() []byte {
	if pad := len(w.buf) % 4; pad != 0 {
		for i := pad; i < 4; i++ {
			w.buf = append(w.buf, 0)
		}
	}
	return w.buf
}

// Len returns the current unpadded length.
func (w *Writer) Len() int {
	return len(w.buf)
}
