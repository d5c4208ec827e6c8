package mmd

import (
	"bytes"
	"encoding/binary"
	"io"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// baseParser keeps the first read error. Reads after an error are no-ops.
type baseParser struct {
	r   io.Reader
	err error
}

func (p *baseParser) read(v interface{}) {
	if p.err != nil {
		return
	}
	p.err = binary.Read(p.r, binary.LittleEndian, v)
}

func (p *baseParser) readUint8() uint8 {
	var v uint8
	p.read(&v)
	return v
}

func (p *baseParser) readUint32() uint32 {
	var v uint32
	p.read(&v)
	return v
}

func (p *baseParser) readFloat() float32 {
	var v float32
	p.read(&v)
	return v
}

// readCount reads a record count. ok is false at a clean end of input,
// which ends the optional trailing sections.
func (p *baseParser) readCount() (n int, ok bool) {
	if p.err != nil {
		return 0, false
	}
	var v uint32
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		if err != io.EOF {
			p.err = err
		}
		return 0, false
	}
	return int(v), true
}

// readString reads a fixed size, NUL terminated Shift-JIS field.
func (p *baseParser) readString(size int) string {
	b := make([]byte, size)
	p.read(b)
	if p.err != nil {
		return ""
	}
	return decodeShiftJIS(bytes.SplitN(b, []byte{0}, 2)[0])
}

func decodeShiftJIS(b []byte) string {
	s, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// EncodeShiftJIS converts s for fixed size VMD name fields.
func EncodeShiftJIS(s string) ([]byte, error) {
	b, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	return b, err
}
