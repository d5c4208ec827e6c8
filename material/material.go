// Package material translates between glTF PBR materials, the VRM 0.x
// legacy shader property dumps and VRMC_materials_mtoon.
package material

import "github.com/binzume/vrmconv/vrm"

type AlphaMode int

const (
	Opaque AlphaMode = iota
	Mask
	Blend
)

func (m AlphaMode) String() string {
	switch m {
	case Mask:
		return "MASK"
	case Blend:
		return "BLEND"
	}
	return "OPAQUE"
}

// Kind tags the Variant a material carries.
type Kind int

const (
	KindGltf Kind = iota
	KindMToon0
	KindMToonUnversioned
	KindTransparentZWrite
	KindMToon1
)

func (k Kind) String() string {
	switch k {
	case KindMToon0:
		return "MToon0"
	case KindMToonUnversioned:
		return "MToonUnversioned"
	case KindTransparentZWrite:
		return "TransparentZWrite"
	case KindMToon1:
		return "MToon1"
	}
	return "Gltf"
}

// TextureRef points at a texture of the owning document.
type TextureRef struct {
	Index     int
	TexCoord  int
	Scale     float64
	Transform *vrm.TextureTransform
}

func NewTextureRef(index int) *TextureRef {
	return &TextureRef{Index: index, Scale: 1}
}

// Properties is a legacy Unity shader property set.
type Properties struct {
	Floats   map[string]float64
	Vectors  map[string][]float64
	Textures map[string]int
	Keywords map[string]bool
	Tags     map[string]string
}

func NewProperties() Properties {
	return Properties{
		Floats:   map[string]float64{},
		Vectors:  map[string][]float64{},
		Textures: map[string]int{},
		Keywords: map[string]bool{},
		Tags:     map[string]string{},
	}
}

func (p Properties) Len() int {
	return len(p.Floats) + len(p.Vectors) + len(p.Textures) + len(p.Keywords) + len(p.Tags)
}

func (p Properties) Float(name string, def float64) float64 {
	if v, ok := p.Floats[name]; ok {
		return v
	}
	return def
}

func (p Properties) Vector(name string, def []float64) []float64 {
	if v, ok := p.Vectors[name]; ok && len(v) >= len(def) {
		return v
	}
	return def
}

// Variant is one of Gltf, *MToon0, *MToonUnversioned, *TransparentZWrite
// or *MToon1.
type Variant interface {
	Kind() Kind
}

// Gltf is a plain glTF PBR (or unlit) material.
type Gltf struct{}

func (Gltf) Kind() Kind { return KindGltf }

// MToon0 is a VRM 0.x "VRM/MToon" material. Props holds the properties
// named by the MToon schema, Unknown everything else.
type MToon0 struct {
	Shader  string
	Props   Properties
	Unknown Properties
}

func (*MToon0) Kind() Kind { return KindMToon0 }

// MToonUnversioned is an MToon material written without _MToonVersion.
type MToonUnversioned struct {
	MToon0
}

func (*MToonUnversioned) Kind() Kind { return KindMToonUnversioned }

// TransparentZWrite is the "VRM/UnlitTransparentZWrite" legacy shader.
type TransparentZWrite struct {
	Props   Properties
	Unknown Properties
}

func (*TransparentZWrite) Kind() Kind { return KindTransparentZWrite }

// MToon1 wraps a VRMC_materials_mtoon extension. Texture indices inside it
// refer to the owning document.
type MToon1 struct {
	MToon *vrm.MToon
}

func (*MToon1) Kind() Kind { return KindMToon1 }

// Material is the host agnostic material. Colors are linear.
type Material struct {
	Name        string
	AlphaMode   AlphaMode
	AlphaCutoff float64
	DoubleSided bool
	Unlit       bool

	BaseColorFactor          [4]float64
	BaseColorTexture         *TextureRef
	MetallicFactor           float64
	RoughnessFactor          float64
	MetallicRoughnessTexture *TextureRef
	NormalTexture            *TextureRef
	OcclusionTexture         *TextureRef
	EmissiveFactor           [3]float64
	EmissiveTexture          *TextureRef
	EmissiveStrength         float64

	// RenderQueue is the legacy render queue, 0 when not known.
	RenderQueue int

	Variant Variant
}

func New(name string) *Material {
	return &Material{
		Name:             name,
		AlphaCutoff:      0.5,
		BaseColorFactor:  [4]float64{1, 1, 1, 1},
		MetallicFactor:   1,
		RoughnessFactor:  1,
		EmissiveStrength: 1,
		Variant:          Gltf{},
	}
}

func (m *Material) Kind() Kind {
	if m.Variant == nil {
		return KindGltf
	}
	return m.Variant.Kind()
}

// TransparentWithZWrite reports whether a BLEND material also writes depth.
func (m *Material) TransparentWithZWrite() bool {
	if m.AlphaMode != Blend {
		return false
	}
	switch v := m.Variant.(type) {
	case *MToon0:
		return v.Props.Float("_BlendMode", 0) == blendModeTransparentZWrite
	case *MToonUnversioned:
		return v.Props.Float("_BlendMode", 0) == blendModeTransparentZWrite
	case *TransparentZWrite:
		return true
	case *MToon1:
		return v.MToon.TransparentWithZWrite
	}
	return false
}

// Textures returns the indices of every texture the material references.
func (m *Material) Textures() []int {
	var ret []int
	for _, t := range []*TextureRef{m.BaseColorTexture, m.MetallicRoughnessTexture, m.NormalTexture, m.OcclusionTexture, m.EmissiveTexture} {
		if t != nil {
			ret = append(ret, t.Index)
		}
	}
	switch v := m.Variant.(type) {
	case *MToon0:
		ret = appendTextureProps(ret, v.Props)
	case *MToonUnversioned:
		ret = appendTextureProps(ret, v.Props)
	case *TransparentZWrite:
		ret = appendTextureProps(ret, v.Props)
	case *MToon1:
		for _, t := range mtoonTextures(v.MToon) {
			ret = append(ret, int(t.Index))
		}
	}
	return ret
}

func appendTextureProps(ret []int, p Properties) []int {
	for _, name := range sortedKeys(p.Textures) {
		ret = append(ret, p.Textures[name])
	}
	return ret
}

func mtoonTextures(m *vrm.MToon) []*vrm.TextureInfo {
	var ret []*vrm.TextureInfo
	for _, t := range []*vrm.TextureInfo{
		m.ShadeMultiplyTexture, m.ShadingShiftTexture, m.MatcapTexture, m.RimMultiplyTexture,
		m.OutlineWidthMultiplyTexture, m.UVAnimationMaskTexture,
	} {
		if t != nil {
			ret = append(ret, t)
		}
	}
	return ret
}
