package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/text/encoding"
)

var ErrShortBuffer = errors.New("packet: buffer too short")

// Reader decodes a buffer built by Writer. Byte 0 is always the opcode.
// Reads past the end return zero values and record ErrShortBuffer.
type Reader struct {
	data []byte
	off  int
	dec  *encoding.Decoder
	err  error
}

func (c *Codec) NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1, dec: c.enc.NewDecoder()} // skip opcode byte
}

func (r *Reader) Opcode() byte {
	return Opcode(r.data)
}

// Err reports whether any read ran past the end of the buffer.
func (r *Reader) Err() error { return r.err }

func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		r.err = ErrShortBuffer
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

// ReadD reads 4 bytes as little-endian int32.
func (r *Reader) ReadD() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *Reader) ReadQ() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *Reader) ReadF() float64 {
	if b := r.take(4); b != nil {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

// ReadS reads a null-terminated string in the client charset and returns UTF-8.
func (r *Reader) ReadS() string {
	start := r.off
	for r.off < len(r.data) {
		if r.data[r.off] == 0 {
			raw := r.data[start:r.off]
			r.off++ // skip null terminator
			return r.decode(raw)
		}
		r.off++
	}
	r.err = ErrShortBuffer
	return r.decode(r.data[start:r.off])
}

func (r *Reader) decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	decoded, err := r.dec.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// Remaining returns the number of unread bytes, padding included.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) expect(op byte) error {
	if got := r.Opcode(); got != op {
		return fmt.Errorf("packet: opcode %d, want %d", got, op)
	}
	return nil
}

// ParseSpawn decodes a buffer built by Spawn.
func (c *Codec) ParseSpawn(buf []byte) (ObjectInfo, error) {
	r := c.NewReader(buf)
	if err := r.expect(S_OPCODE_SPAWN); err != nil {
		return ObjectInfo{}, err
	}
	o := ObjectInfo{
		ID:       r.ReadQ(),
		Kind:     r.ReadC(),
		Template: uint32(r.ReadD()),
		Name:     r.ReadS(),
		X:        r.ReadF(),
		Y:        r.ReadF(),
		DestX:    r.ReadF(),
		DestY:    r.ReadF(),
		ETA:      time.Duration(r.ReadD()) * time.Millisecond,
		Owner:    r.ReadQ(),
	}
	return o, r.Err()
}

// ParseMove decodes a buffer built by Move.
func (c *Codec) ParseMove(buf []byte) (id uint64, destX, destY float64, eta time.Duration, err error) {
	r := c.NewReader(buf)
	if err := r.expect(S_OPCODE_MOVE); err != nil {
		return 0, 0, 0, 0, err
	}
	id = r.ReadQ()
	destX = r.ReadF()
	destY = r.ReadF()
	eta = time.Duration(r.ReadD()) * time.Millisecond
	return id, destX, destY, eta, r.Err()
}

// ParseInitState decodes a buffer built by InitState.
func (c *Codec) ParseInitState(buf []byte) (InitInfo, error) {
	r := c.NewReader(buf)
	if err := r.expect(S_OPCODE_INIT_STATE); err != nil {
		return InitInfo{}, err
	}
	i := InitInfo{
		ID:    r.ReadQ(),
		Name:  r.ReadS(),
		MapID: r.ReadD(),
		X:     r.ReadF(),
		Y:     r.ReadF(),
		Speed: r.ReadF(),
	}
	return i, r.Err()
}

// ParseRemoveObject decodes a buffer built by RemoveObject.
func (c *Codec) ParseRemoveObject(buf []byte) (uint64, error) {
	r := c.NewReader(buf)
	if err := r.expect(S_OPCODE_REMOVE_OBJECT); err != nil {
		return 0, err
	}
	id := r.ReadQ()
	return id, r.Err()
}
