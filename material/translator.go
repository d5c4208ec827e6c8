package material

import (
	"fmt"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

// TextureMap maps a material texture index to an output texture index.
// ok is false for textures the output does not carry.
type TextureMap func(index int) (uint32, bool)

// IdentityTextures keeps texture indices as they are.
func IdentityTextures(index int) (uint32, bool) {
	return uint32(index), index >= 0
}

func textureRefOf(info *gltf.TextureInfo) *TextureRef {
	if info == nil {
		return nil
	}
	t := NewTextureRef(int(info.Index))
	t.TexCoord = int(info.TexCoord)
	t.Transform = vrm.TextureTransformOf(info.Extensions)
	return t
}

func textureRefOfMToon(info *vrm.TextureInfo) *TextureRef {
	if info == nil {
		return nil
	}
	t := NewTextureRef(int(info.Index))
	t.TexCoord = int(info.TexCoord)
	if info.Scale != nil {
		t.Scale = *info.Scale
	}
	t.Transform = vrm.TextureTransformOf(info.Extensions)
	return t
}

// Import builds a material from a glTF material and its optional VRM 0.x
// property entry. textures is the number of textures in the document.
func Import(mat *gltf.Material, prop *vrm.MaterialProperty, textures int, warn *vrmerr.Warnings) *Material {
	m := New(mat.Name)
	m.DoubleSided = mat.DoubleSided
	m.Unlit = vrm.IsUnlit(mat)
	switch mat.AlphaMode {
	case gltf.AlphaMask:
		m.AlphaMode = Mask
	case gltf.AlphaBlend:
		m.AlphaMode = Blend
	}
	m.AlphaCutoff = float64(mat.AlphaCutoffOrDefault())
	if pbr := mat.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		m.BaseColorFactor = [4]float64{float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3])}
		m.MetallicFactor = float64(pbr.MetallicFactorOrDefault())
		m.RoughnessFactor = float64(pbr.RoughnessFactorOrDefault())
		m.BaseColorTexture = textureRefOf(pbr.BaseColorTexture)
		m.MetallicRoughnessTexture = textureRefOf(pbr.MetallicRoughnessTexture)
	}
	if n := mat.NormalTexture; n != nil && n.Index != nil {
		m.NormalTexture = NewTextureRef(int(*n.Index))
		m.NormalTexture.TexCoord = int(n.TexCoord)
		m.NormalTexture.Scale = float64(n.ScaleOrDefault())
	}
	if o := mat.OcclusionTexture; o != nil && o.Index != nil {
		m.OcclusionTexture = NewTextureRef(int(*o.Index))
		m.OcclusionTexture.TexCoord = int(o.TexCoord)
		m.OcclusionTexture.Scale = float64(o.StrengthOrDefault())
	}
	m.EmissiveFactor = [3]float64{float64(mat.EmissiveFactor[0]), float64(mat.EmissiveFactor[1]), float64(mat.EmissiveFactor[2])}
	m.EmissiveTexture = textureRefOf(mat.EmissiveTexture)
	if es, ok := mat.Extensions[vrm.ExtensionEmissiveStrength]; ok {
		var v vrm.EmissiveStrength
		if err := vrm.DecodeExtension(es, &v); err == nil {
			m.EmissiveStrength = v.EmissiveStrength
		}
	}

	if mtoon := vrm.MaterialMToon(mat); mtoon != nil {
		m.Variant = &MToon1{MToon: mtoon}
		m.RenderQueue = RenderQueue(m.AlphaMode, mtoon.TransparentWithZWrite, mtoon.RenderQueueOffsetNumber)
	} else if prop != nil {
		importProperty(m, prop, warn)
	}

	for _, t := range m.Textures() {
		if t < 0 || t >= textures {
			warn.Add(vrmerr.UnknownTexture, m.Name, "texture %d does not exist", t)
		}
	}
	return m
}

func propertiesOf(p *vrm.MaterialProperty) Properties {
	r := NewProperties()
	for k, v := range p.FloatProperties {
		r.Floats[k] = v
	}
	for k, v := range p.VectorProperties {
		r.Vectors[k] = v
	}
	for k, v := range p.TextureProperties {
		r.Textures[k] = v
	}
	for k, v := range p.KeywordMap {
		r.Keywords[k] = v
	}
	for k, v := range p.TagMap {
		r.Tags[k] = v
	}
	return r
}

func warnUnknown(warn *vrmerr.Warnings, subject string, names []UnknownProperty) {
	for _, n := range names {
		warn.Add(vrmerr.UnknownMaterialProperty, subject, "%s.%s is not a known property", n.Group, n.Name)
	}
}

func importProperty(m *Material, prop *vrm.MaterialProperty, warn *vrmerr.Warnings) {
	m.RenderQueue = prop.RenderQueue
	props := propertiesOf(prop)
	switch prop.Shader {
	case ShaderMToon:
		known, unknown, names := MToonSchema.Split(props)
		warnUnknown(warn, m.Name, names)
		base := MToon0{Shader: prop.Shader, Props: known, Unknown: unknown}
		if _, ok := known.Floats["_MToonVersion"]; ok {
			m.Variant = &base
		} else {
			m.Variant = &MToonUnversioned{MToon0: base}
		}
		applyLegacyProps(m, known)
	case ShaderTransparentZWrite:
		known, unknown, names := TransparentZWriteSchema.Split(props)
		warnUnknown(warn, m.Name, names)
		m.Variant = &TransparentZWrite{Props: known, Unknown: unknown}
		applyLegacyProps(m, known)
		m.AlphaMode = Blend
		m.Unlit = true
	case ShaderUnlitTexture, ShaderUnlitCutout, ShaderUnlitTransparent:
		m.Unlit = true
		m.AlphaMode = map[string]AlphaMode{ShaderUnlitTexture: Opaque, ShaderUnlitCutout: Mask, ShaderUnlitTransparent: Blend}[prop.Shader]
	case vrm.GLTFShaderName, ShaderStandard, "":
	default:
		warn.Add(vrmerr.UnknownMaterialProperty, m.Name, "shader %q imported as glTF material", prop.Shader)
	}
}

// applyLegacyProps fills the non color PBR fields from legacy properties.
// Legacy colors are sRGB and stay in the variant as read; the linear
// factors come from the glTF material.
func applyLegacyProps(m *Material, p Properties) {
	if b, ok := p.Floats["_BlendMode"]; ok {
		m.AlphaMode = alphaModeOfBlendMode(b)
	}
	if c, ok := p.Floats["_Cutoff"]; ok {
		m.AlphaCutoff = c
	}
	if c, ok := p.Floats["_CullMode"]; ok {
		m.DoubleSided = c == 0
	}
	if t, ok := p.Textures["_MainTex"]; ok {
		m.BaseColorTexture = NewTextureRef(t)
		if st, ok := p.Vectors["_MainTex"]; ok && len(st) == 4 {
			tr := vrm.NewTextureTransform()
			tr.Offset = [2]float64{st[0], st[1]}
			tr.Scale = [2]float64{st[2], st[3]}
			if !tr.IsIdentity() {
				m.BaseColorTexture.Transform = tr
			}
		}
	}
	if t, ok := p.Textures["_BumpMap"]; ok {
		m.NormalTexture = NewTextureRef(t)
		m.NormalTexture.Scale = p.Float("_BumpScale", 1)
	}
	if t, ok := p.Textures["_EmissionMap"]; ok {
		m.EmissiveTexture = NewTextureRef(t)
	}
}

func toTextureInfo(t *TextureRef, tex TextureMap) *gltf.TextureInfo {
	if t == nil {
		return nil
	}
	idx, ok := tex(t.Index)
	if !ok {
		return nil
	}
	info := &gltf.TextureInfo{Index: idx, TexCoord: uint32(t.TexCoord)}
	if t.Transform != nil && !t.Transform.IsIdentity() {
		info.Extensions = gltf.Extensions{vrm.ExtensionTextureTransform: t.Transform}
	}
	return info
}

func toMToonTexture(t *TextureRef, tex TextureMap) *vrm.TextureInfo {
	if t == nil {
		return nil
	}
	idx, ok := tex(t.Index)
	if !ok {
		return nil
	}
	info := &vrm.TextureInfo{Index: idx, TexCoord: uint32(t.TexCoord)}
	if t.Scale != 1 {
		s := t.Scale
		info.Scale = &s
	}
	if t.Transform != nil && !t.Transform.IsIdentity() {
		info.Extensions = gltf.Extensions{vrm.ExtensionTextureTransform: t.Transform}
	}
	return info
}

func f32(v float64) *float32 {
	f := float32(v)
	return &f
}

// ToGltf returns the glTF part of m. The returned extension names must be
// added to extensionsUsed by the caller.
func ToGltf(m *Material, tex TextureMap) (*gltf.Material, []string) {
	var used []string
	c := m.BaseColorFactor
	mat := &gltf.Material{
		Name:        m.Name,
		DoubleSided: m.DoubleSided,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor:  &[4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
			MetallicFactor:   f32(m.MetallicFactor),
			RoughnessFactor:  f32(m.RoughnessFactor),
			BaseColorTexture: toTextureInfo(m.BaseColorTexture, tex),

			MetallicRoughnessTexture: toTextureInfo(m.MetallicRoughnessTexture, tex),
		},
		EmissiveFactor:  [3]float32{float32(m.EmissiveFactor[0]), float32(m.EmissiveFactor[1]), float32(m.EmissiveFactor[2])},
		EmissiveTexture: toTextureInfo(m.EmissiveTexture, tex),
	}
	if info := toTextureInfo(m.NormalTexture, tex); info != nil {
		mat.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(info.Index), TexCoord: info.TexCoord, Scale: f32(m.NormalTexture.Scale)}
	}
	if info := toTextureInfo(m.OcclusionTexture, tex); info != nil {
		mat.OcclusionTexture = &gltf.OcclusionTexture{Index: gltf.Index(info.Index), TexCoord: info.TexCoord, Strength: f32(m.OcclusionTexture.Scale)}
	}
	switch m.AlphaMode {
	case Mask:
		mat.AlphaMode = gltf.AlphaMask
		mat.AlphaCutoff = f32(m.AlphaCutoff)
	case Blend:
		mat.AlphaMode = gltf.AlphaBlend
	}
	for _, t := range []*gltf.TextureInfo{mat.PBRMetallicRoughness.BaseColorTexture, mat.EmissiveTexture, mat.PBRMetallicRoughness.MetallicRoughnessTexture} {
		if t != nil && t.Extensions != nil {
			used = append(used, vrm.ExtensionTextureTransform)
			break
		}
	}
	mat.Extensions = gltf.Extensions{}
	if m.Unlit {
		mat.Extensions[vrm.ExtensionUnlit] = &vrm.Unlit{}
		used = append(used, vrm.ExtensionUnlit)
	}
	if m.EmissiveStrength != 1 && m.EmissiveStrength > 0 {
		mat.Extensions[vrm.ExtensionEmissiveStrength] = &vrm.EmissiveStrength{EmissiveStrength: m.EmissiveStrength}
		used = append(used, vrm.ExtensionEmissiveStrength)
	}
	if len(mat.Extensions) == 0 {
		mat.Extensions = nil
	}
	return mat, used
}

func remapProperties(p Properties, tex TextureMap) Properties {
	r := Merge(p, Properties{})
	r.Textures = map[string]int{}
	for k, v := range p.Textures {
		if idx, ok := tex(v); ok {
			r.Textures[k] = int(idx)
		}
	}
	return r
}

func toMaterialProperty(name, shader string, queue int, p Properties) *vrm.MaterialProperty {
	mp := vrm.NewMaterialProperty(name)
	mp.Shader = shader
	mp.RenderQueue = queue
	mp.FloatProperties = p.Floats
	mp.VectorProperties = p.Vectors
	mp.TextureProperties = p.Textures
	mp.KeywordMap = p.Keywords
	mp.TagMap = p.Tags
	return mp
}

func (m *Material) renderQueue() int {
	if m.RenderQueue != 0 {
		return m.RenderQueue
	}
	return RenderQueue(m.AlphaMode, m.TransparentWithZWrite(), 0)
}

// ToProperty returns the VRM 0.x materialProperties entry of m. Legacy
// properties are written back as they were read; MToon 1.0 materials are
// downgraded.
func ToProperty(m *Material, tex TextureMap) *vrm.MaterialProperty {
	switch v := m.Variant.(type) {
	case *MToon0:
		return toMaterialProperty(m.Name, ShaderMToon, m.renderQueue(), remapProperties(Merge(v.Props, v.Unknown), tex))
	case *MToonUnversioned:
		return toMaterialProperty(m.Name, ShaderMToon, m.renderQueue(), remapProperties(Merge(v.Props, v.Unknown), tex))
	case *TransparentZWrite:
		return toMaterialProperty(m.Name, ShaderTransparentZWrite, m.renderQueue(), remapProperties(Merge(v.Props, v.Unknown), tex))
	case *MToon1:
		p := Downgrade(m, v.MToon)
		return toMaterialProperty(m.Name, ShaderMToon, RenderQueue(m.AlphaMode, v.MToon.TransparentWithZWrite, v.MToon.RenderQueueOffsetNumber), remapProperties(p, tex))
	}
	mp := vrm.NewMaterialProperty(m.Name)
	if m.AlphaMode != Opaque {
		mp.RenderQueue = RenderQueue(m.AlphaMode, false, 0)
	}
	return mp
}

func setTexture(p Properties, name string, t *TextureRef) {
	if t == nil {
		return
	}
	p.Textures[name] = t.Index
	st := []float64{0, 0, 1, 1}
	if name == "_MainTex" && t.Transform != nil {
		st = []float64{t.Transform.Offset[0], t.Transform.Offset[1], t.Transform.Scale[0], t.Transform.Scale[1]}
	}
	p.Vectors[name] = st
}

// Downgrade derives MToon 0.x properties from an MToon 1.0 material.
// Texture indices are not remapped.
func Downgrade(m *Material, mt *vrm.MToon) Properties {
	p := NewProperties()
	zwrite := mt.TransparentWithZWrite && m.AlphaMode == Blend
	blendMode := blendModeOf(m.AlphaMode, zwrite)
	widthMode := OutlineWidthMode0(mt.OutlineWidthMode)
	colorMode := float64(outlineColorMixed)
	if mt.OutlineLightingMixFactor == 0 {
		colorMode = outlineColorFixed
	}
	cull := 2.0
	if m.DoubleSided {
		cull = 0
	}

	p.Floats["_Cutoff"] = m.AlphaCutoff
	p.Floats["_BumpScale"] = 1
	if m.NormalTexture != nil {
		p.Floats["_BumpScale"] = m.NormalTexture.Scale
	}
	p.Floats["_ReceiveShadowRate"] = 1
	p.Floats["_ShadingGradeRate"] = 1
	if mt.ShadingShiftTexture != nil && mt.ShadingShiftTexture.Scale != nil {
		p.Floats["_ShadingGradeRate"] = *mt.ShadingShiftTexture.Scale
	}
	p.Floats["_ShadeShift"] = ShadingShift0(mt.ShadingToonyFactor, mt.ShadingShiftFactor)
	p.Floats["_ShadeToony"] = ShadingToony0(mt.ShadingToonyFactor, mt.ShadingShiftFactor)
	p.Floats["_LightColorAttenuation"] = 0
	p.Floats["_IndirectLightIntensity"] = IndirectLightIntensity(mt.GIEqualizationFactor)
	p.Floats["_RimLightingMix"] = mt.RimLightingMixFactor
	p.Floats["_RimFresnelPower"] = mt.ParametricRimFresnelPowerFactor
	p.Floats["_RimLift"] = mt.ParametricRimLiftFactor
	p.Floats["_OutlineWidth"] = mt.OutlineWidthFactor / outlineWidthScale
	p.Floats["_OutlineScaledMaxDistance"] = 1
	p.Floats["_OutlineLightingMix"] = mt.OutlineLightingMixFactor
	p.Floats["_UvAnimScrollX"] = mt.UVAnimationScrollXSpeedFactor
	p.Floats["_UvAnimScrollY"] = -mt.UVAnimationScrollYSpeedFactor
	p.Floats["_UvAnimRotation"] = mt.UVAnimationRotationSpeedFactor
	p.Floats["_MToonVersion"] = 38
	p.Floats["_DebugMode"] = 0
	p.Floats["_BlendMode"] = blendMode
	p.Floats["_OutlineWidthMode"] = widthMode
	p.Floats["_OutlineColorMode"] = colorMode
	p.Floats["_CullMode"] = cull
	p.Floats["_OutlineCullMode"] = 1

	switch m.AlphaMode {
	case Opaque:
		p.Floats["_SrcBlend"], p.Floats["_DstBlend"], p.Floats["_ZWrite"], p.Floats["_AlphaToMask"] = 1, 0, 1, 0
		p.Tags["RenderType"] = "Opaque"
	case Mask:
		p.Floats["_SrcBlend"], p.Floats["_DstBlend"], p.Floats["_ZWrite"], p.Floats["_AlphaToMask"] = 1, 0, 1, 1
		p.Keywords["_ALPHATEST_ON"] = true
		p.Tags["RenderType"] = "TransparentCutout"
	case Blend:
		p.Floats["_SrcBlend"], p.Floats["_DstBlend"], p.Floats["_ZWrite"], p.Floats["_AlphaToMask"] = 5, 10, 0, 0
		if zwrite {
			p.Floats["_ZWrite"] = 1
		}
		p.Keywords["_ALPHABLEND_ON"] = true
		p.Tags["RenderType"] = "Transparent"
	}

	p.Vectors["_Color"] = linearToSRGB4(m.BaseColorFactor)
	p.Vectors["_ShadeColor"] = linearToSRGB3(mt.ShadeColorFactor)
	p.Vectors["_RimColor"] = linearToSRGB3(mt.ParametricRimColorFactor)
	p.Vectors["_EmissionColor"] = linearToSRGB3(m.EmissiveFactor)
	p.Vectors["_OutlineColor"] = linearToSRGB3(mt.OutlineColorFactor)

	setTexture(p, "_MainTex", m.BaseColorTexture)
	setTexture(p, "_ShadeTexture", textureRefOfMToon(mt.ShadeMultiplyTexture))
	setTexture(p, "_BumpMap", m.NormalTexture)
	setTexture(p, "_ShadingGradeTexture", textureRefOfMToon(mt.ShadingShiftTexture))
	setTexture(p, "_SphereAdd", textureRefOfMToon(mt.MatcapTexture))
	setTexture(p, "_RimTexture", textureRefOfMToon(mt.RimMultiplyTexture))
	setTexture(p, "_EmissionMap", m.EmissiveTexture)
	setTexture(p, "_OutlineWidthTexture", textureRefOfMToon(mt.OutlineWidthMultiplyTexture))
	setTexture(p, "_UvAnimMaskTexture", textureRefOfMToon(mt.UVAnimationMaskTexture))
	if m.NormalTexture != nil {
		p.Keywords["_NORMALMAP"] = true
	}
	for k, v := range OutlineKeywords(widthMode, colorMode) {
		p.Keywords[k] = v
	}
	return p
}

func legacyTexture(p Properties, name string) *TextureRef {
	t, ok := p.Textures[name]
	if !ok {
		return nil
	}
	return NewTextureRef(t)
}

// Upgrade derives an MToon 1.0 extension from MToon 0.x properties.
// Texture indices are not remapped.
func Upgrade(m *Material, p Properties) *vrm.MToon {
	mt := vrm.NewMToon()
	toony, shift := p.Float("_ShadeToony", 0.9), p.Float("_ShadeShift", 0)
	mt.TransparentWithZWrite = m.TransparentWithZWrite()
	mt.RenderQueueOffsetNumber = RenderQueueOffset(m.AlphaMode, mt.TransparentWithZWrite, m.RenderQueue)
	mt.ShadeColorFactor = srgbToLinear3(p.Vector("_ShadeColor", []float64{1, 1, 1}))
	mt.ShadingToonyFactor = ShadingToony1(toony, shift)
	mt.ShadingShiftFactor = ShadingShift1(toony, shift)
	mt.GIEqualizationFactor = GIEqualization(p.Float("_IndirectLightIntensity", 0.1))
	mt.ParametricRimColorFactor = srgbToLinear3(p.Vector("_RimColor", []float64{0, 0, 0}))
	mt.RimLightingMixFactor = p.Float("_RimLightingMix", 0)
	mt.ParametricRimFresnelPowerFactor = p.Float("_RimFresnelPower", 1)
	mt.ParametricRimLiftFactor = p.Float("_RimLift", 0)
	mt.OutlineWidthMode = OutlineWidthMode1(p.Float("_OutlineWidthMode", 0))
	mt.OutlineWidthFactor = p.Float("_OutlineWidth", 0) * outlineWidthScale
	mt.OutlineColorFactor = srgbToLinear3(p.Vector("_OutlineColor", []float64{0, 0, 0}))
	mt.OutlineLightingMixFactor = 0
	if p.Float("_OutlineColorMode", 0) == outlineColorMixed {
		mt.OutlineLightingMixFactor = p.Float("_OutlineLightingMix", 1)
	}
	mt.UVAnimationScrollXSpeedFactor = p.Float("_UvAnimScrollX", 0)
	mt.UVAnimationScrollYSpeedFactor = -p.Float("_UvAnimScrollY", 0)
	mt.UVAnimationRotationSpeedFactor = p.Float("_UvAnimRotation", 0)

	tex := func(name string) *vrm.TextureInfo {
		return toMToonTexture(legacyTexture(p, name), IdentityTextures)
	}
	mt.ShadeMultiplyTexture = tex("_ShadeTexture")
	mt.ShadingShiftTexture = tex("_ShadingGradeTexture")
	if mt.ShadingShiftTexture != nil {
		s := p.Float("_ShadingGradeRate", 1)
		mt.ShadingShiftTexture.Scale = &s
	}
	mt.MatcapTexture = tex("_SphereAdd")
	mt.RimMultiplyTexture = tex("_RimTexture")
	mt.OutlineWidthMultiplyTexture = tex("_OutlineWidthTexture")
	mt.UVAnimationMaskTexture = tex("_UvAnimMaskTexture")
	return mt
}

func remapMToon(src *vrm.MToon, tex TextureMap) *vrm.MToon {
	mt := *src
	remap := func(t *vrm.TextureInfo) *vrm.TextureInfo {
		if t == nil {
			return nil
		}
		idx, ok := tex(int(t.Index))
		if !ok {
			return nil
		}
		c := *t
		c.Index = idx
		return &c
	}
	mt.ShadeMultiplyTexture = remap(src.ShadeMultiplyTexture)
	mt.ShadingShiftTexture = remap(src.ShadingShiftTexture)
	mt.MatcapTexture = remap(src.MatcapTexture)
	mt.RimMultiplyTexture = remap(src.RimMultiplyTexture)
	mt.OutlineWidthMultiplyTexture = remap(src.OutlineWidthMultiplyTexture)
	mt.UVAnimationMaskTexture = remap(src.UVAnimationMaskTexture)
	return &mt
}

// ToMToon1 returns the VRMC_materials_mtoon extension for m, or nil for a
// plain glTF material.
func ToMToon1(m *Material, tex TextureMap) *vrm.MToon {
	switch v := m.Variant.(type) {
	case *MToon1:
		return remapMToon(v.MToon, tex)
	case *MToon0:
		return remapMToon(Upgrade(m, v.Props), tex)
	case *MToonUnversioned:
		return remapMToon(Upgrade(m, v.Props), tex)
	case *TransparentZWrite:
		mt := vrm.NewMToon()
		mt.TransparentWithZWrite = true
		mt.ShadingToonyFactor = 1
		mt.GIEqualizationFactor = 1
		mt.RimLightingMixFactor = 0
		mt.RenderQueueOffsetNumber = RenderQueueOffset(Blend, true, m.RenderQueue)
		return mt
	}
	return nil
}

func (m *Material) String() string {
	return fmt.Sprintf("%s(%s %s)", m.Name, m.Kind(), m.AlphaMode)
}
