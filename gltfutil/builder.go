package gltfutil

import (
	"math"

	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/geom"
	"github.com/qmuntal/gltf"
)

// Builder appends bufferViews and accessors to a document backed by a
// single growing binary buffer. Every bufferView starts 4-byte aligned.
type Builder struct {
	Doc *gltf.Document
	w   *bincursor.Writer
}

func NewBuilder(doc *gltf.Document) *Builder {
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	return &Builder{Doc: doc, w: bincursor.NewWriter(1024)}
}

func (b *Builder) Len() int { return b.w.Len() }

// Bytes returns the buffer written so far and records its length on the
// document's first buffer.
func (b *Builder) Bytes() []byte {
	b.w.Align(4, 0)
	b.Doc.Buffers[0].ByteLength = uint32(b.w.Len())
	return b.w.Bytes()
}

func (b *Builder) beginView() int {
	return b.w.Align(4, 0)
}

func (b *Builder) endView(start, stride int, target gltf.Target) uint32 {
	bv := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(start),
		ByteLength: uint32(b.w.Len() - start),
		Target:     target,
	}
	if stride > 0 {
		bv.ByteStride = uint32(stride)
	}
	b.Doc.BufferViews = append(b.Doc.BufferViews, bv)
	return uint32(len(b.Doc.BufferViews) - 1)
}

// WriteBufferView appends raw bytes as a new bufferView.
func (b *Builder) WriteBufferView(data []byte, target gltf.Target) uint32 {
	start := b.beginView()
	b.w.WriteBytes(data)
	return b.endView(start, 0, target)
}

func (b *Builder) addAccessor(view uint32, ct gltf.ComponentType, at gltf.AccessorType, count int) uint32 {
	b.Doc.Accessors = append(b.Doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(view),
		ComponentType: ct,
		Type:          at,
		Count:         uint32(count),
	})
	return uint32(len(b.Doc.Accessors) - 1)
}

func (b *Builder) Accessor(index uint32) *gltf.Accessor {
	return b.Doc.Accessors[index]
}

// WriteScalars appends a FLOAT SCALAR accessor with min/max, as animation
// inputs require.
func (b *Builder) WriteScalars(data []float32) uint32 {
	start := b.beginView()
	min, max := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range data {
		b.w.WriteF32(v)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	view := b.endView(start, 0, gltf.TargetNone)
	a := b.addAccessor(view, gltf.ComponentFloat, gltf.AccessorScalar, len(data))
	if len(data) > 0 {
		b.Doc.Accessors[a].Min = []float32{min}
		b.Doc.Accessors[a].Max = []float32{max}
	}
	return a
}

func (b *Builder) WriteVec2(data [][2]float32, target gltf.Target) uint32 {
	start := b.beginView()
	for _, v := range data {
		b.w.WriteF32(v[0])
		b.w.WriteF32(v[1])
	}
	view := b.endView(start, 0, target)
	return b.addAccessor(view, gltf.ComponentFloat, gltf.AccessorVec2, len(data))
}

// WriteVec3 appends a VEC3 accessor. When bounds is non-nil its min/max
// become the accessor bounds.
func (b *Builder) WriteVec3(data [][3]float32, target gltf.Target, bounds *geom.Bounds) uint32 {
	start := b.beginView()
	for _, v := range data {
		b.w.WriteF32(v[0])
		b.w.WriteF32(v[1])
		b.w.WriteF32(v[2])
	}
	view := b.endView(start, 0, target)
	a := b.addAccessor(view, gltf.ComponentFloat, gltf.AccessorVec3, len(data))
	if bounds != nil {
		b.Doc.Accessors[a].Min, b.Doc.Accessors[a].Max = bounds.MinMax()
	}
	return a
}

func (b *Builder) WriteVec4(data [][4]float32, target gltf.Target) uint32 {
	start := b.beginView()
	for _, v := range data {
		for _, c := range v {
			b.w.WriteF32(c)
		}
	}
	view := b.endView(start, 0, target)
	return b.addAccessor(view, gltf.ComponentFloat, gltf.AccessorVec4, len(data))
}

// WriteJoints appends a USHORT VEC4 accessor.
func (b *Builder) WriteJoints(data [][4]uint16) uint32 {
	start := b.beginView()
	for _, v := range data {
		for _, c := range v {
			b.w.WriteU16(c)
		}
	}
	view := b.endView(start, 0, gltf.TargetArrayBuffer)
	return b.addAccessor(view, gltf.ComponentUshort, gltf.AccessorVec4, len(data))
}

// WriteIndices appends a SCALAR index accessor, USHORT when every index
// fits and UINT otherwise.
func (b *Builder) WriteIndices(data []uint32) uint32 {
	var max uint32
	for _, v := range data {
		if v > max {
			max = v
		}
	}
	start := b.beginView()
	ct := gltf.ComponentUint
	if max < math.MaxUint16 {
		ct = gltf.ComponentUshort
		for _, v := range data {
			b.w.WriteU16(uint16(v))
		}
	} else {
		for _, v := range data {
			b.w.WriteU32(v)
		}
	}
	view := b.endView(start, 0, gltf.TargetElementArrayBuffer)
	return b.addAccessor(view, ct, gltf.AccessorScalar, len(data))
}

func (b *Builder) WriteMatrices(data [][16]float32) uint32 {
	start := b.beginView()
	for _, m := range data {
		b.w.WriteMatrix(m)
	}
	view := b.endView(start, 0, gltf.TargetNone)
	return b.addAccessor(view, gltf.ComponentFloat, gltf.AccessorMat4, len(data))
}

// WriteImage appends an embedded image and returns its image index.
func (b *Builder) WriteImage(name, mimeType string, data []byte) uint32 {
	view := b.WriteBufferView(data, gltf.TargetNone)
	b.Doc.Images = append(b.Doc.Images, &gltf.Image{
		Name:       name,
		MimeType:   mimeType,
		BufferView: gltf.Index(view),
	})
	return uint32(len(b.Doc.Images) - 1)
}
