package accessor

import (
	"reflect"
	"testing"

	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/qmuntal/gltf"
)

// fixture appends one bufferView per accessor.
type fixture struct {
	doc *gltf.Document
	w   *bincursor.Writer
}

func newFixture() *fixture {
	return &fixture{doc: &gltf.Document{Buffers: []*gltf.Buffer{{}}}, w: bincursor.NewWriter(0)}
}

func (f *fixture) add(ct gltf.ComponentType, at gltf.AccessorType, count int, write func(w *bincursor.Writer)) uint32 {
	f.w.Align(4, 0)
	start := f.w.Len()
	write(f.w)
	f.doc.BufferViews = append(f.doc.BufferViews, &gltf.BufferView{
		ByteOffset: uint32(start),
		ByteLength: uint32(f.w.Len() - start),
	})
	f.doc.Accessors = append(f.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(uint32(len(f.doc.BufferViews) - 1)),
		ComponentType: ct,
		Type:          at,
		Count:         uint32(count),
	})
	return uint32(len(f.doc.Accessors) - 1)
}

func (f *fixture) decode(t *testing.T) []*Accessor {
	t.Helper()
	acc, err := DecodeAll(f.doc, f.w.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return acc
}

func TestDecodeCombinations(t *testing.T) {
	f := newFixture()
	ubyte := f.add(gltf.ComponentUbyte, gltf.AccessorScalar, 3, func(w *bincursor.Writer) {
		w.WriteU8(0)
		w.WriteU8(7)
		w.WriteU8(255)
	})
	ushort := f.add(gltf.ComponentUshort, gltf.AccessorScalar, 2, func(w *bincursor.Writer) {
		w.WriteU16(1)
		w.WriteU16(65535)
	})
	ushort4 := f.add(gltf.ComponentUshort, gltf.AccessorVec4, 2, func(w *bincursor.Writer) {
		for _, v := range []uint16{0, 1, 2, 3, 10, 11, 12, 13} {
			w.WriteU16(v)
		}
	})
	uint32s := f.add(gltf.ComponentUint, gltf.AccessorScalar, 2, func(w *bincursor.Writer) {
		w.WriteU32(70000)
		w.WriteU32(3)
	})
	floats := f.add(gltf.ComponentFloat, gltf.AccessorScalar, 2, func(w *bincursor.Writer) {
		w.WriteF32(0.25)
		w.WriteF32(-1)
	})
	vec2 := f.add(gltf.ComponentFloat, gltf.AccessorVec2, 2, func(w *bincursor.Writer) {
		for _, v := range []float32{0, 1, 0.5, 0.75} {
			w.WriteF32(v)
		}
	})
	vec3 := f.add(gltf.ComponentFloat, gltf.AccessorVec3, 1, func(w *bincursor.Writer) {
		w.WriteF32(1)
		w.WriteF32(2)
		w.WriteF32(3)
	})
	vec4 := f.add(gltf.ComponentFloat, gltf.AccessorVec4, 1, func(w *bincursor.Writer) {
		for _, v := range []float32{0.1, 0.2, 0.3, 0.4} {
			w.WriteF32(v)
		}
	})
	mat := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, -1, -2, -3, 1}
	mat4 := f.add(gltf.ComponentFloat, gltf.AccessorMat4, 1, func(w *bincursor.Writer) {
		w.WriteMatrix(mat)
	})

	acc := f.decode(t)
	if got := acc[ubyte].Uints(); !reflect.DeepEqual(got, []uint32{0, 7, 255}) {
		t.Errorf("UBYTE scalar %v", got)
	}
	if got := acc[ushort].Uints(); !reflect.DeepEqual(got, []uint32{1, 65535}) {
		t.Errorf("USHORT scalar %v", got)
	}
	if got := acc[ushort4].UintVec4(); !reflect.DeepEqual(got, [][4]uint32{{0, 1, 2, 3}, {10, 11, 12, 13}}) {
		t.Errorf("USHORT vec4 %v", got)
	}
	if got := acc[uint32s].Uints(); !reflect.DeepEqual(got, []uint32{70000, 3}) {
		t.Errorf("UINT scalar %v", got)
	}
	if got := acc[floats].Scalars(); !reflect.DeepEqual(got, []float32{0.25, -1}) {
		t.Errorf("FLOAT scalar %v", got)
	}
	if got := acc[vec2].Vec2(); !reflect.DeepEqual(got, [][2]float32{{0, 1}, {0.5, 0.75}}) {
		t.Errorf("FLOAT vec2 %v", got)
	}
	if got := acc[vec3].Vec3(); !reflect.DeepEqual(got, [][3]float32{{1, 2, 3}}) {
		t.Errorf("FLOAT vec3 %v", got)
	}
	if got := acc[vec4].Vec4(); !reflect.DeepEqual(got, [][4]float32{{0.1, 0.2, 0.3, 0.4}}) {
		t.Errorf("FLOAT vec4 %v", got)
	}
	if got := acc[mat4].Mat4(); len(got) != 1 || got[0] != mat {
		t.Errorf("FLOAT mat4 %v", got)
	}
	if acc[vec3].Vec4() != nil || acc[floats].Uints() != nil {
		t.Error("typed view of mismatched accessor is not nil")
	}
}

func TestByteStride(t *testing.T) {
	f := newFixture()
	i := f.add(gltf.ComponentFloat, gltf.AccessorVec2, 2, func(w *bincursor.Writer) {
		for _, v := range []float32{1, 2, 99, 3, 4, 99} {
			w.WriteF32(v)
		}
	})
	f.doc.BufferViews[0].ByteStride = 12
	acc := f.decode(t)
	if got := acc[i].Vec2(); !reflect.DeepEqual(got, [][2]float32{{1, 2}, {3, 4}}) {
		t.Errorf("strided vec2 %s", spew.Sdump(got))
	}
}

func TestNormalized(t *testing.T) {
	f := newFixture()
	i := f.add(gltf.ComponentUbyte, gltf.AccessorVec4, 1, func(w *bincursor.Writer) {
		w.WriteBytes([]byte{255, 0, 0, 0})
	})
	f.doc.Accessors[i].Normalized = true
	acc := f.decode(t)
	if got := acc[i].Vec4(); got[0] != [4]float32{1, 0, 0, 0} {
		t.Errorf("normalized %v", got)
	}
}

func TestSparse(t *testing.T) {
	f := newFixture()
	base := f.add(gltf.ComponentFloat, gltf.AccessorScalar, 4, func(w *bincursor.Writer) {
		for _, v := range []float32{1, 1, 1, 1} {
			w.WriteF32(v)
		}
	})
	f.add(gltf.ComponentUshort, gltf.AccessorScalar, 2, func(w *bincursor.Writer) {
		w.WriteU16(1)
		w.WriteU16(3)
	})
	f.add(gltf.ComponentFloat, gltf.AccessorScalar, 2, func(w *bincursor.Writer) {
		w.WriteF32(5)
		w.WriteF32(7)
	})
	f.doc.Accessors[base].Sparse = &gltf.Sparse{
		Count:   2,
		Indices: gltf.SparseIndices{BufferView: 1, ComponentType: gltf.ComponentUshort},
		Values:  gltf.SparseValues{BufferView: 2},
	}
	acc := f.decode(t)
	if got := acc[base].Scalars(); !reflect.DeepEqual(got, []float32{1, 5, 1, 7}) {
		t.Errorf("sparse %v", got)
	}

	f.doc.Accessors[base].BufferView = nil
	acc = f.decode(t)
	if got := acc[base].Scalars(); !reflect.DeepEqual(got, []float32{0, 5, 0, 7}) {
		t.Errorf("sparse without bufferView %v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	f := newFixture()
	f.add(gltf.ComponentFloat, gltf.AccessorVec3, 2, func(w *bincursor.Writer) {
		w.WriteF32(1)
	})
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.OutOfBounds) {
		t.Errorf("short bufferView: %v", err)
	}

	f = newFixture()
	f.add(gltf.ComponentFloat, gltf.AccessorScalar, 1, func(w *bincursor.Writer) {
		w.WriteF32(1)
	})
	f.doc.BufferViews[0].ByteLength = 64
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.OutOfBounds) {
		t.Errorf("bufferView past buffer: %v", err)
	}

	f = newFixture()
	f.add(gltf.ComponentType(99), gltf.AccessorScalar, 1, func(w *bincursor.Writer) {
		w.WriteF32(1)
	})
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.UnsupportedComponentType) {
		t.Errorf("component type: %v", err)
	}
}

func TestDecodeHugeCount(t *testing.T) {
	f := newFixture()
	f.add(gltf.ComponentFloat, gltf.AccessorMat4, 0xFFFFFFF0, func(w *bincursor.Writer) {
		for i := 0; i < 4; i++ {
			w.WriteF32(1)
		}
	})
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.OutOfBounds) {
		t.Errorf("huge count: %v", err)
	}

	f = newFixture()
	f.add(gltf.ComponentFloat, gltf.AccessorVec3, 1, func(w *bincursor.Writer) {
		w.WriteF32(1)
		w.WriteF32(2)
		w.WriteF32(3)
	})
	f.doc.Accessors[0].ByteOffset = 0xFFFFFFF0
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.OutOfBounds) {
		t.Errorf("huge offset: %v", err)
	}

	f = newFixture()
	f.doc.Accessors = []*gltf.Accessor{{ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: MaxUnbackedCount + 1}}
	if _, err := DecodeAll(f.doc, f.w.Bytes()); !vrmerr.Is(err, vrmerr.OutOfBounds) {
		t.Errorf("unbacked count: %v", err)
	}
	f.doc.Accessors[0].Count = 2
	acc := f.decode(t)
	if len(acc[0].Floats) != 6 || acc[0].Floats[5] != 0 {
		t.Errorf("zero filled accessor %s", spew.Sdump(acc[0]))
	}
}

func TestSetGet(t *testing.T) {
	f := newFixture()
	f.add(gltf.ComponentFloat, gltf.AccessorVec3, 1, func(w *bincursor.Writer) {
		w.WriteF32(1)
		w.WriteF32(2)
		w.WriteF32(3)
	})
	s := Set(f.decode(t))
	if _, err := s.Get(0, gltf.AccessorVec3); err != nil {
		t.Error(err)
	}
	if _, err := s.Get(0, gltf.AccessorVec2); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("type mismatch: %v", err)
	}
	if _, err := s.Get(5, gltf.AccessorVec3); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("range: %v", err)
	}
}
