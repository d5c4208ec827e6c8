package material

import "sort"

const (
	ShaderMToon             = "VRM/MToon"
	ShaderUnlitTexture      = "VRM/UnlitTexture"
	ShaderUnlitCutout       = "VRM/UnlitCutout"
	ShaderUnlitTransparent  = "VRM/UnlitTransparent"
	ShaderTransparentZWrite = "VRM/UnlitTransparentZWrite"
	ShaderStandard          = "Standard"
)

// Schema names the properties a legacy shader family understands.
type Schema struct {
	Shader   string
	Floats   []string
	Vectors  []string
	Textures []string
	Keywords []string
}

// MToonSchema is the MToon 3.x property table.
var MToonSchema = &Schema{
	Shader: ShaderMToon,
	Floats: []string{
		"_Cutoff", "_BumpScale", "_ReceiveShadowRate", "_ShadingGradeRate",
		"_ShadeShift", "_ShadeToony", "_LightColorAttenuation", "_IndirectLightIntensity",
		"_RimLightingMix", "_RimFresnelPower", "_RimLift",
		"_OutlineWidth", "_OutlineScaledMaxDistance", "_OutlineLightingMix",
		"_UvAnimScrollX", "_UvAnimScrollY", "_UvAnimRotation",
		"_MToonVersion", "_DebugMode", "_BlendMode", "_OutlineWidthMode", "_OutlineColorMode",
		"_CullMode", "_OutlineCullMode", "_SrcBlend", "_DstBlend", "_ZWrite", "_AlphaToMask",
	},
	Vectors: []string{
		"_Color", "_ShadeColor", "_RimColor", "_EmissionColor", "_OutlineColor",
		"_MainTex", "_ShadeTexture", "_BumpMap", "_ReceiveShadowTexture", "_ShadingGradeTexture",
		"_RimTexture", "_SphereAdd", "_EmissionMap", "_OutlineWidthTexture", "_UvAnimMaskTexture",
	},
	Textures: []string{
		"_MainTex", "_ShadeTexture", "_BumpMap", "_ReceiveShadowTexture", "_ShadingGradeTexture",
		"_RimTexture", "_SphereAdd", "_EmissionMap", "_OutlineWidthTexture", "_UvAnimMaskTexture",
	},
	Keywords: []string{
		"_NORMALMAP", "_ALPHATEST_ON", "_ALPHABLEND_ON", "_ALPHAPREMULTIPLY_ON",
		"MTOON_OUTLINE_WIDTH_WORLD", "MTOON_OUTLINE_WIDTH_SCREEN",
		"MTOON_OUTLINE_COLOR_FIXED", "MTOON_OUTLINE_COLOR_MIXED",
		"MTOON_DEBUG_NORMAL", "MTOON_DEBUG_LITSHADERATE",
	},
}

var TransparentZWriteSchema = &Schema{
	Shader:   ShaderTransparentZWrite,
	Floats:   []string{"_Cutoff"},
	Vectors:  []string{"_Color", "_MainTex"},
	Textures: []string{"_MainTex"},
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// UnknownProperty is a property name outside the schema.
type UnknownProperty struct {
	Group string
	Name  string
}

// Split buckets p into the properties named by the schema and the rest.
// Tags are always known.
func (s *Schema) Split(p Properties) (known, unknown Properties, names []UnknownProperty) {
	known, unknown = NewProperties(), NewProperties()
	for _, k := range sortedKeys(p.Floats) {
		if contains(s.Floats, k) {
			known.Floats[k] = p.Floats[k]
		} else {
			unknown.Floats[k] = p.Floats[k]
			names = append(names, UnknownProperty{"floatProperties", k})
		}
	}
	for _, k := range sortedKeys(p.Vectors) {
		if contains(s.Vectors, k) {
			known.Vectors[k] = p.Vectors[k]
		} else {
			unknown.Vectors[k] = p.Vectors[k]
			names = append(names, UnknownProperty{"vectorProperties", k})
		}
	}
	for _, k := range sortedKeys(p.Textures) {
		if contains(s.Textures, k) {
			known.Textures[k] = p.Textures[k]
		} else {
			unknown.Textures[k] = p.Textures[k]
			names = append(names, UnknownProperty{"textureProperties", k})
		}
	}
	for _, k := range sortedKeys(p.Keywords) {
		if contains(s.Keywords, k) {
			known.Keywords[k] = p.Keywords[k]
		} else {
			unknown.Keywords[k] = p.Keywords[k]
			names = append(names, UnknownProperty{"keywordMap", k})
		}
	}
	for k, v := range p.Tags {
		known.Tags[k] = v
	}
	return
}

// Merge returns the union of a and b; b wins on conflicts.
func Merge(a, b Properties) Properties {
	r := NewProperties()
	for _, p := range []Properties{a, b} {
		for k, v := range p.Floats {
			r.Floats[k] = v
		}
		for k, v := range p.Vectors {
			r.Vectors[k] = v
		}
		for k, v := range p.Textures {
			r.Textures[k] = v
		}
		for k, v := range p.Keywords {
			r.Keywords[k] = v
		}
		for k, v := range p.Tags {
			r.Tags[k] = v
		}
	}
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
