// Package accessor decodes glTF accessors into typed arrays.
package accessor

import (
	"fmt"

	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

// ComponentSize returns the byte width of one component, or 0 when unsupported.
func ComponentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4
	}
	return 0
}

// ElementSize returns the number of components of an element.
func ElementSize(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

func isUnsigned(c gltf.ComponentType) bool {
	return c == gltf.ComponentUbyte || c == gltf.ComponentUshort || c == gltf.ComponentUint
}

// Accessor is one decoded accessor. Components are stored flat in element
// order. Ints is only populated for unsigned integer component types.
type Accessor struct {
	Index         int
	ComponentType gltf.ComponentType
	Type          gltf.AccessorType
	Count         int
	Normalized    bool
	Floats        []float32
	Ints          []uint32
}

func (a *Accessor) ElementSize() int { return ElementSize(a.Type) }

func (a *Accessor) Scalars() []float32 {
	if a.Type != gltf.AccessorScalar {
		return nil
	}
	return a.Floats
}

// Uints returns unsigned scalar values such as indices.
func (a *Accessor) Uints() []uint32 {
	if a.Type != gltf.AccessorScalar {
		return nil
	}
	return a.Ints
}

func (a *Accessor) Vec2() [][2]float32 {
	if a.Type != gltf.AccessorVec2 {
		return nil
	}
	out := make([][2]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.Floats[i*2:])
	}
	return out
}

func (a *Accessor) Vec3() [][3]float32 {
	if a.Type != gltf.AccessorVec3 {
		return nil
	}
	out := make([][3]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.Floats[i*3:])
	}
	return out
}

func (a *Accessor) Vec4() [][4]float32 {
	if a.Type != gltf.AccessorVec4 {
		return nil
	}
	out := make([][4]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.Floats[i*4:])
	}
	return out
}

// UintVec4 returns unsigned 4-tuples such as JOINTS_0.
func (a *Accessor) UintVec4() [][4]uint32 {
	if a.Type != gltf.AccessorVec4 || a.Ints == nil {
		return nil
	}
	out := make([][4]uint32, a.Count)
	for i := range out {
		copy(out[i][:], a.Ints[i*4:])
	}
	return out
}

func (a *Accessor) Mat4() [][16]float32 {
	if a.Type != gltf.AccessorMat4 {
		return nil
	}
	out := make([][16]float32, a.Count)
	for i := range out {
		copy(out[i][:], a.Floats[i*16:])
	}
	return out
}

type decoder struct {
	doc *gltf.Document
	bin []byte
}

func (d *decoder) bufferData(index uint32) ([]byte, error) {
	if int(index) >= len(d.doc.Buffers) {
		if index == 0 && d.bin != nil {
			return d.bin, nil
		}
		return nil, vrmerr.New(vrmerr.InvalidDocument, "accessor", "buffer %d out of range", index)
	}
	b := d.doc.Buffers[index]
	if index == 0 && d.bin != nil && len(b.Data) == 0 {
		return d.bin, nil
	}
	return b.Data, nil
}

// viewData returns the bytes of a bufferView and its stride.
func (d *decoder) viewData(index uint32) ([]byte, int, error) {
	if int(index) >= len(d.doc.BufferViews) {
		return nil, 0, vrmerr.New(vrmerr.InvalidDocument, "accessor", "bufferView %d out of range", index)
	}
	bv := d.doc.BufferViews[index]
	data, err := d.bufferData(bv.Buffer)
	if err != nil {
		return nil, 0, err
	}
	view, _, err := bincursor.ReadBytes(data, int(bv.ByteOffset), int(bv.ByteLength))
	if err != nil {
		return nil, 0, vrmerr.Wrapf(vrmerr.OutOfBounds, "accessor", err, "bufferView %d", index)
	}
	return view, int(bv.ByteStride), nil
}

func readComponent(buf []byte, pos int, c gltf.ComponentType, normalized bool) (float32, uint32, error) {
	switch c {
	case gltf.ComponentUbyte:
		v, _, err := bincursor.ReadU8(buf, pos)
		if normalized {
			return float32(v) / 255, uint32(v), err
		}
		return float32(v), uint32(v), err
	case gltf.ComponentByte:
		v, _, err := bincursor.ReadI8(buf, pos)
		if normalized {
			return maxf(float32(v)/127, -1), 0, err
		}
		return float32(v), 0, err
	case gltf.ComponentUshort:
		v, _, err := bincursor.ReadU16(buf, pos)
		if normalized {
			return float32(v) / 65535, uint32(v), err
		}
		return float32(v), uint32(v), err
	case gltf.ComponentShort:
		v, _, err := bincursor.ReadI16(buf, pos)
		if normalized {
			return maxf(float32(v)/32767, -1), 0, err
		}
		return float32(v), 0, err
	case gltf.ComponentUint:
		v, _, err := bincursor.ReadU32(buf, pos)
		return float32(v), v, err
	case gltf.ComponentFloat:
		v, _, err := bincursor.ReadF32(buf, pos)
		return v, 0, err
	}
	return 0, 0, vrmerr.New(vrmerr.UnsupportedComponentType, "accessor", "component type %v", c)
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// MaxUnbackedCount limits the element count of accessors without a
// bufferView, which are zero filled before sparse values apply.
const MaxUnbackedCount = 1 << 24

func (d *decoder) decode(index int, acr *gltf.Accessor) (*Accessor, error) {
	csize := ComponentSize(acr.ComponentType)
	if csize == 0 {
		return nil, vrmerr.New(vrmerr.UnsupportedComponentType, "accessor", "accessor %d: component type %d", index, acr.ComponentType)
	}
	esize := ElementSize(acr.Type)
	if esize == 0 {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "accessor", "accessor %d: element type %d", index, acr.Type)
	}
	count := int64(acr.Count)
	elemBytes := csize * esize
	var view []byte
	stride := elemBytes
	if acr.BufferView != nil {
		v, s, err := d.viewData(*acr.BufferView)
		if err != nil {
			return nil, err
		}
		view = v
		if s != 0 {
			stride = s
		}
		if count > 0 {
			last := int64(acr.ByteOffset) + int64(stride)*(count-1) + int64(elemBytes)
			if last > int64(len(view)) {
				return nil, vrmerr.New(vrmerr.OutOfBounds, "accessor", "accessor %d needs %d bytes, bufferView has %d", index, last, len(view))
			}
		}
	} else if count > MaxUnbackedCount {
		return nil, vrmerr.New(vrmerr.OutOfBounds, "accessor", "accessor %d: count %d without bufferView exceeds %d", index, count, MaxUnbackedCount)
	}

	a := &Accessor{
		Index:         index,
		ComponentType: acr.ComponentType,
		Type:          acr.Type,
		Count:         int(count),
		Normalized:    acr.Normalized,
		Floats:        make([]float32, int(count)*esize),
	}
	unsigned := isUnsigned(acr.ComponentType)
	if unsigned {
		a.Ints = make([]uint32, len(a.Floats))
	}

	if view != nil {
		for i := 0; i < a.Count; i++ {
			base := int(acr.ByteOffset) + i*stride
			for j := 0; j < esize; j++ {
				f, u, err := readComponent(view, base+j*csize, acr.ComponentType, acr.Normalized)
				if err != nil {
					return nil, err
				}
				a.Floats[i*esize+j] = f
				if unsigned {
					a.Ints[i*esize+j] = u
				}
			}
		}
	}
	if acr.Sparse != nil {
		if err := d.applySparse(a, acr.Sparse, csize, esize); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (d *decoder) applySparse(a *Accessor, sp *gltf.Sparse, csize, esize int) error {
	n := int(sp.Count)
	indexType := sp.Indices.ComponentType
	if !isUnsigned(indexType) {
		return vrmerr.New(vrmerr.UnsupportedComponentType, "accessor", "accessor %d: sparse index type %v", a.Index, indexType)
	}
	iview, _, err := d.viewData(sp.Indices.BufferView)
	if err != nil {
		return err
	}
	vview, _, err := d.viewData(sp.Values.BufferView)
	if err != nil {
		return err
	}
	isize := ComponentSize(indexType)
	for k := 0; k < n; k++ {
		_, target, err := readComponent(iview, int(sp.Indices.ByteOffset)+k*isize, indexType, false)
		if err != nil {
			return vrmerr.Wrapf(vrmerr.OutOfBounds, "accessor", err, "accessor %d sparse index %d", a.Index, k)
		}
		if int(target) >= a.Count {
			return vrmerr.New(vrmerr.OutOfBounds, "accessor", "accessor %d: sparse index %d >= count %d", a.Index, target, a.Count)
		}
		base := int(sp.Values.ByteOffset) + k*csize*esize
		for j := 0; j < esize; j++ {
			f, u, err := readComponent(vview, base+j*csize, a.ComponentType, a.Normalized)
			if err != nil {
				return vrmerr.Wrapf(vrmerr.OutOfBounds, "accessor", err, "accessor %d sparse value %d", a.Index, k)
			}
			a.Floats[int(target)*esize+j] = f
			if a.Ints != nil {
				a.Ints[int(target)*esize+j] = u
			}
		}
	}
	return nil
}

// DecodeAll decodes every accessor of doc. The result is indexed like
// doc.Accessors. bin is used for buffer 0 when that buffer carries no data.
func DecodeAll(doc *gltf.Document, bin []byte) ([]*Accessor, error) {
	d := &decoder{doc: doc, bin: bin}
	out := make([]*Accessor, len(doc.Accessors))
	for i, acr := range doc.Accessors {
		a, err := d.decode(i, acr)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

// Decode decodes a single accessor.
func Decode(doc *gltf.Document, bin []byte, index uint32) (*Accessor, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "accessor", "accessor %d out of range", index)
	}
	return (&decoder{doc: doc, bin: bin}).decode(int(index), doc.Accessors[index])
}

// Set is the decoded accessor table of one document with checked lookups.
type Set []*Accessor

func (s Set) Get(index uint32, want gltf.AccessorType) (*Accessor, error) {
	if int(index) >= len(s) || s[index] == nil {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "accessor", "accessor %d out of range", index)
	}
	a := s[index]
	if a.Type != want {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "accessor", "accessor %d: type %v, expected %v", index, typeName(a.Type), typeName(want))
	}
	return a, nil
}

func typeName(t gltf.AccessorType) string {
	switch t {
	case gltf.AccessorScalar:
		return "SCALAR"
	case gltf.AccessorVec2:
		return "VEC2"
	case gltf.AccessorVec3:
		return "VEC3"
	case gltf.AccessorVec4:
		return "VEC4"
	case gltf.AccessorMat2:
		return "MAT2"
	case gltf.AccessorMat3:
		return "MAT3"
	case gltf.AccessorMat4:
		return "MAT4"
	}
	return fmt.Sprintf("AccessorType(%d)", int(t))
}
