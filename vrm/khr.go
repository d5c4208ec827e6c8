package vrm

const (
	ExtensionTextureTransform   = "KHR_texture_transform"
	ExtensionUnlit              = "KHR_materials_unlit"
	ExtensionEmissiveStrength   = "KHR_materials_emissive_strength"
	ExtensionDraco              = "KHR_draco_mesh_compression"
	ExtensionMeshopt            = "EXT_meshopt_compression"
	ExtensionMeshQuantization   = "KHR_mesh_quantization"
	ExtensionMeshoptCompression = "KHR_meshopt_compression"
)

// CompressionExtensions lists required extensions the importer cannot decode.
var CompressionExtensions = []string{
	ExtensionDraco,
	ExtensionMeshopt,
	ExtensionMeshoptCompression,
	ExtensionMeshQuantization,
}

type TextureTransform struct {
	Offset   [2]float64 `json:"offset"`
	Rotation float64    `json:"rotation,omitempty"`
	Scale    [2]float64 `json:"scale"`
	TexCoord *uint32    `json:"texCoord,omitempty"`
}

func NewTextureTransform() *TextureTransform {
	return &TextureTransform{Scale: [2]float64{1, 1}}
}

func (t *TextureTransform) IsIdentity() bool {
	return t.Offset == [2]float64{0, 0} && t.Scale == [2]float64{1, 1} && t.Rotation == 0 && t.TexCoord == nil
}

type Unlit struct{}

type EmissiveStrength struct {
	EmissiveStrength float64 `json:"emissiveStrength"`
}
