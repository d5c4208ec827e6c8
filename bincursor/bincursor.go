// Package bincursor reads and writes little-endian values at explicit positions.
//
// Readers take a position and return the decoded value with the position
// following it, so there is no hidden cursor shared between calls.
package bincursor

import (
	"encoding/binary"
	"math"

	"github.com/binzume/vrmconv/vrmerr"
)

func check(buf []byte, pos, size int) error {
	if pos < 0 || size < 0 || pos > len(buf) || len(buf)-pos < size {
		return vrmerr.New(vrmerr.OutOfBounds, "bincursor", "read of %d bytes at %d exceeds buffer length %d", size, pos, len(buf))
	}
	return nil
}

func ReadU8(buf []byte, pos int) (uint8, int, error) {
	if err := check(buf, pos, 1); err != nil {
		return 0, pos, err
	}
	return buf[pos], pos + 1, nil
}

func ReadI8(buf []byte, pos int) (int8, int, error) {
	v, p, err := ReadU8(buf, pos)
	return int8(v), p, err
}

func ReadU16(buf []byte, pos int) (uint16, int, error) {
	if err := check(buf, pos, 2); err != nil {
		return 0, pos, err
	}
	return binary.LittleEndian.Uint16(buf[pos:]), pos + 2, nil
}

func ReadI16(buf []byte, pos int) (int16, int, error) {
	v, p, err := ReadU16(buf, pos)
	return int16(v), p, err
}

func ReadU32(buf []byte, pos int) (uint32, int, error) {
	if err := check(buf, pos, 4); err != nil {
		return 0, pos, err
	}
	return binary.LittleEndian.Uint32(buf[pos:]), pos + 4, nil
}

func ReadI32(buf []byte, pos int) (int32, int, error) {
	v, p, err := ReadU32(buf, pos)
	return int32(v), p, err
}

func ReadF32(buf []byte, pos int) (float32, int, error) {
	v, p, err := ReadU32(buf, pos)
	return math.Float32frombits(v), p, err
}

// ReadBytes returns a sub-slice of buf; it does not copy.
func ReadBytes(buf []byte, pos, n int) ([]byte, int, error) {
	if err := check(buf, pos, n); err != nil {
		return nil, pos, err
	}
	return buf[pos : pos+n], pos + n, nil
}

// ReadMatrix reads 16 float32 values (a column-major mat4).
func ReadMatrix(buf []byte, pos int) ([16]float32, int, error) {
	var mat [16]float32
	if err := check(buf, pos, 64); err != nil {
		return mat, pos, err
	}
	for i := 0; i < 16; i++ {
		mat[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[pos+i*4:]))
	}
	return mat, pos + 64, nil
}

// Writer appends little-endian values to a growable buffer.
// Every write returns the buffer length after the write.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the underlying buffer; later writes may reallocate it.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) int {
	w.buf = append(w.buf, v)
	return len(w.buf)
}

func (w *Writer) WriteI8(v int8) int { return w.WriteU8(uint8(v)) }

func (w *Writer) WriteU16(v uint16) int {
	w.buf = append(w.buf, byte(v), byte(v>>8))
	return len(w.buf)
}

func (w *Writer) WriteI16(v int16) int { return w.WriteU16(uint16(v)) }

func (w *Writer) WriteU32(v uint32) int {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	return len(w.buf)
}

func (w *Writer) WriteI32(v int32) int { return w.WriteU32(uint32(v)) }

func (w *Writer) WriteF32(v float32) int { return w.WriteU32(math.Float32bits(v)) }

func (w *Writer) WriteBytes(b []byte) int {
	w.buf = append(w.buf, b...)
	return len(w.buf)
}

func (w *Writer) WriteMatrix(mat [16]float32) int {
	for _, v := range mat {
		w.WriteF32(v)
	}
	return len(w.buf)
}

// Align pads the buffer with pad bytes up to a multiple of n.
func (w *Writer) Align(n int, pad byte) int {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, pad)
	}
	return len(w.buf)
}

// Pad4 returns n rounded up to a multiple of 4.
func Pad4(n int) int {
	return (n + 3) &^ 3
}

// PutU16 overwrites a value in place and returns the position after it.
func PutU16(buf []byte, pos int, v uint16) (int, error) {
	if err := check(buf, pos, 2); err != nil {
		return pos, err
	}
	binary.LittleEndian.PutUint16(buf[pos:], v)
	return pos + 2, nil
}

func PutU32(buf []byte, pos int, v uint32) (int, error) {
	if err := check(buf, pos, 4); err != nil {
		return pos, err
	}
	binary.LittleEndian.PutUint32(buf[pos:], v)
	return pos + 4, nil
}

func PutF32(buf []byte, pos int, v float32) (int, error) {
	return PutU32(buf, pos, math.Float32bits(v))
}
