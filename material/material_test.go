package material

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/qmuntal/gltf"
)

func nearly(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func parseProperty(t *testing.T, src string) *vrm.MaterialProperty {
	t.Helper()
	var p vrm.MaterialProperty
	if err := json.Unmarshal([]byte(src), &p); err != nil {
		t.Fatal(err)
	}
	return &p
}

func TestBlendModeRoundTrip(t *testing.T) {
	prop := parseProperty(t, `{"name":"m","shader":"VRM/MToon","renderQueue":3000,
		"floatProperties":{"_BlendMode":2,"_ZWrite":0}}`)
	warn := vrmerr.NewWarnings(nil)
	m := Import(&gltf.Material{Name: "m"}, prop, 0, warn)
	if m.AlphaMode != Blend || m.TransparentWithZWrite() {
		t.Fatalf("imported %s", spew.Sdump(m))
	}
	if m.Kind() != KindMToonUnversioned {
		t.Errorf("kind %v", m.Kind())
	}
	out := ToProperty(m, IdentityTextures)
	if !reflect.DeepEqual(out.FloatProperties, map[string]float64{"_BlendMode": 2, "_ZWrite": 0}) {
		t.Errorf("floatProperties %v", out.FloatProperties)
	}
	if out.RenderQueue != 3000 || out.Shader != ShaderMToon {
		t.Errorf("property %s", spew.Sdump(out))
	}
	if warn.Len() != 0 {
		t.Errorf("warnings %v", warn.List())
	}
}

func TestPropertyFidelity(t *testing.T) {
	src := `{"name":"body","shader":"VRM/MToon","renderQueue":2000,
		"floatProperties":{"_Cutoff":0.5,"_BumpScale":1,"_ShadeShift":-0.3000000119,"_ShadeToony":0.8999999761581421,
			"_MToonVersion":38,"_BlendMode":0,"_OutlineWidth":0.123456789,"_CullMode":2,"_Custom":7},
		"vectorProperties":{"_Color":[1,0.9,0.8,1],"_ShadeColor":[0.5,0.4,0.3,1],"_MainTex":[0.1,0.2,2,3],"_Extra":[1,2]},
		"textureProperties":{"_MainTex":0,"_ShadeTexture":1,"_Unknown":0},
		"keywordMap":{"_NORMALMAP":true,"CUSTOM_KEYWORD":true},
		"tagMap":{"RenderType":"Opaque"}}`
	prop := parseProperty(t, src)
	warn := vrmerr.NewWarnings(nil)
	m := Import(&gltf.Material{Name: "body"}, prop, 2, warn)
	v, ok := m.Variant.(*MToon0)
	if !ok {
		t.Fatalf("variant %s", spew.Sdump(m.Variant))
	}
	if _, ok := v.Unknown.Floats["_Custom"]; !ok || len(v.Unknown.Vectors) != 1 || len(v.Unknown.Textures) != 1 || len(v.Unknown.Keywords) != 1 {
		t.Errorf("unknown %s", spew.Sdump(v.Unknown))
	}
	if !warn.Has(vrmerr.UnknownMaterialProperty) || warn.Len() != 4 {
		t.Errorf("warnings %v", warn.List())
	}
	if m.BaseColorTexture == nil || m.BaseColorTexture.Transform == nil || m.BaseColorTexture.Transform.Scale != [2]float64{2, 3} {
		t.Errorf("main texture %s", spew.Sdump(m.BaseColorTexture))
	}

	out := ToProperty(m, IdentityTextures)
	want, _ := json.Marshal(prop)
	got, _ := json.Marshal(out)
	var wantMap, gotMap map[string]interface{}
	json.Unmarshal(want, &wantMap)
	json.Unmarshal(got, &gotMap)
	if !reflect.DeepEqual(wantMap, gotMap) {
		t.Errorf("property changed\nwant %s\ngot  %s", want, got)
	}
	for name, f := range prop.FloatProperties {
		a, _ := json.Marshal(f)
		b, _ := json.Marshal(out.FloatProperties[name])
		if string(a) != string(b) {
			t.Errorf("%s: %s != %s", name, a, b)
		}
	}
}

func TestLegacyColorsKeptAsRead(t *testing.T) {
	prop := parseProperty(t, `{"name":"m","shader":"VRM/MToon","floatProperties":{"_MToonVersion":38},
		"vectorProperties":{"_Color":[0.8,0.6,0.4,1],"_ShadeColor":[0.5,0.5,0.5,1],"_EmissionColor":[0.2,0.2,0.2,1]}}`)
	mat := &gltf.Material{Name: "m", PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float32{0.25, 0.5, 0.75, 1}}}
	m := Import(mat, prop, 0, vrmerr.NewWarnings(nil))
	if m.BaseColorFactor != [4]float64{0.25, 0.5, 0.75, 1} || m.EmissiveFactor != [3]float64{} {
		t.Errorf("linear factors %v %v", m.BaseColorFactor, m.EmissiveFactor)
	}
	v := m.Variant.(*MToon0)
	if c := v.Props.Vectors["_Color"]; !reflect.DeepEqual(c, []float64{0.8, 0.6, 0.4, 1}) {
		t.Errorf("_Color %v", c)
	}
	if c := ToProperty(m, IdentityTextures).VectorProperties["_Color"]; !reflect.DeepEqual(c, []float64{0.8, 0.6, 0.4, 1}) {
		t.Errorf("written _Color %v", c)
	}
	if c := Upgrade(m, v.Props).ShadeColorFactor; !nearly(c[0], SRGBToLinear(0.5)) {
		t.Errorf("upgraded shade color %v", c)
	}
}

func TestUnknownTexture(t *testing.T) {
	prop := parseProperty(t, `{"name":"m","shader":"VRM/MToon","textureProperties":{"_MainTex":5}}`)
	warn := vrmerr.NewWarnings(nil)
	Import(&gltf.Material{Name: "m"}, prop, 1, warn)
	if !warn.Has(vrmerr.UnknownTexture) {
		t.Error("missing UnknownTexture warning")
	}
}

func TestRenderQueue(t *testing.T) {
	for _, c := range []struct {
		mode   AlphaMode
		zwrite bool
		offset int
		want   int
	}{
		{Opaque, false, 0, -1},
		{Mask, false, 0, 2450},
		{Blend, false, 0, 3000},
		{Blend, false, -3, 2997},
		{Blend, true, 0, 2501},
		{Blend, true, 4, 2505},
		{Blend, true, 20, 2510},
	} {
		if got := RenderQueue(c.mode, c.zwrite, c.offset); got != c.want {
			t.Errorf("RenderQueue(%v, %v, %d) = %d, want %d", c.mode, c.zwrite, c.offset, got, c.want)
		}
		if c.mode == Blend && c.offset >= -9 && c.offset <= 9 {
			if got := RenderQueueOffset(c.mode, c.zwrite, c.want); got != c.offset {
				t.Errorf("RenderQueueOffset(%d) = %d", c.want, got)
			}
		}
	}
}

func TestShadingConversion(t *testing.T) {
	toony1, shift1 := ShadingToony1(0.9, 0), ShadingShift1(0.9, 0)
	if !nearly(toony1, 0.95) || !nearly(shift1, -0.05) {
		t.Errorf("upgrade %v %v", toony1, shift1)
	}
	if toony0, shift0 := ShadingToony0(toony1, shift1), ShadingShift0(toony1, shift1); !nearly(toony0, 0.9) || !nearly(shift0, 0) {
		t.Errorf("downgrade %v %v", toony0, shift0)
	}
	// 1 - rangeMin == 0
	if v := ShadingToony0(1, -1); v != 0.9 {
		t.Errorf("fallback %v", v)
	}
	if v := IndirectLightIntensity(0.9); !nearly(v, 0.1) {
		t.Error(v)
	}
}

func TestOutlineKeywords(t *testing.T) {
	for _, c := range []struct {
		width, color float64
		want         []string
	}{
		{0, 0, nil},
		{0, 1, nil},
		{1, 0, []string{"MTOON_OUTLINE_WIDTH_WORLD", "MTOON_OUTLINE_COLOR_FIXED"}},
		{1, 1, []string{"MTOON_OUTLINE_WIDTH_WORLD", "MTOON_OUTLINE_COLOR_MIXED"}},
		{2, 0, []string{"MTOON_OUTLINE_WIDTH_SCREEN", "MTOON_OUTLINE_COLOR_FIXED"}},
		{2, 1, []string{"MTOON_OUTLINE_WIDTH_SCREEN", "MTOON_OUTLINE_COLOR_MIXED"}},
	} {
		kw := OutlineKeywords(c.width, c.color)
		if len(kw) != len(c.want) {
			t.Errorf("%v/%v: %v", c.width, c.color, kw)
		}
		for _, k := range c.want {
			if !kw[k] {
				t.Errorf("%v/%v: missing %s", c.width, c.color, k)
			}
		}
	}
	if OutlineWidthMode1(OutlineWidthMode0(vrm.OutlineWidthScreen)) != vrm.OutlineWidthScreen {
		t.Error("outline width mode")
	}
}

func TestColorSpace(t *testing.T) {
	for _, v := range []float64{0, 0.001, 0.2, 0.5, 1} {
		if got := SRGBToLinear(LinearToSRGB(v)); !nearly(got, v) {
			t.Errorf("%v -> %v", v, got)
		}
	}
	if v := LinearToSRGB(0.5); math.Abs(v-0.7354) > 0.001 {
		t.Error(v)
	}
}

func TestDowngradeMToon1(t *testing.T) {
	mt := vrm.NewMToon()
	mt.OutlineWidthMode = vrm.OutlineWidthWorld
	mt.OutlineWidthFactor = 0.002
	mt.OutlineLightingMixFactor = 0
	mt.ShadeMultiplyTexture = &vrm.TextureInfo{Index: 1}
	m := New("m")
	m.AlphaMode = Blend
	m.BaseColorFactor = [4]float64{0.5, 0.5, 0.5, 0.8}
	m.BaseColorTexture = NewTextureRef(0)
	m.BaseColorTexture.Transform = &vrm.TextureTransform{Offset: [2]float64{0.1, 0.2}, Scale: [2]float64{2, 2}}
	m.Variant = &MToon1{MToon: mt}

	remap := func(i int) (uint32, bool) { return uint32(i + 10), true }
	p := ToProperty(m, remap)
	if p.RenderQueue != 3000 || p.FloatProperties["_BlendMode"] != 2 || p.FloatProperties["_ZWrite"] != 0 {
		t.Errorf("blend %s", spew.Sdump(p.FloatProperties))
	}
	if !nearly(p.FloatProperties["_OutlineWidth"], 0.2) || p.FloatProperties["_OutlineColorMode"] != 0 {
		t.Errorf("outline %v %v", p.FloatProperties["_OutlineWidth"], p.FloatProperties["_OutlineColorMode"])
	}
	if !p.KeywordMap["MTOON_OUTLINE_WIDTH_WORLD"] || !p.KeywordMap["MTOON_OUTLINE_COLOR_FIXED"] || !p.KeywordMap["_ALPHABLEND_ON"] {
		t.Errorf("keywords %v", p.KeywordMap)
	}
	if !reflect.DeepEqual(p.VectorProperties["_MainTex"], []float64{0.1, 0.2, 2, 2}) {
		t.Errorf("_MainTex %v", p.VectorProperties["_MainTex"])
	}
	if !reflect.DeepEqual(p.VectorProperties["_ShadeTexture"], []float64{0, 0, 1, 1}) {
		t.Errorf("_ShadeTexture %v", p.VectorProperties["_ShadeTexture"])
	}
	if p.TextureProperties["_MainTex"] != 10 || p.TextureProperties["_ShadeTexture"] != 11 {
		t.Errorf("textures %v", p.TextureProperties)
	}
	if c := p.VectorProperties["_Color"]; !nearly(c[0], LinearToSRGB(0.5)) || c[3] != 0.8 {
		t.Errorf("color %v", c)
	}
}

func TestUpgradeMToon0(t *testing.T) {
	prop := parseProperty(t, `{"name":"m","shader":"VRM/MToon","renderQueue":2503,
		"floatProperties":{"_MToonVersion":38,"_BlendMode":3,"_ShadeToony":0.9,"_ShadeShift":0,"_OutlineWidthMode":2,"_OutlineWidth":0.5,"_OutlineColorMode":1,"_OutlineLightingMix":0.7},
		"vectorProperties":{"_ShadeColor":[1,1,1,1]},
		"textureProperties":{"_MainTex":0,"_SphereAdd":1}}`)
	m := Import(&gltf.Material{Name: "m"}, prop, 2, vrmerr.NewWarnings(nil))
	mt := ToMToon1(m, IdentityTextures)
	if !mt.TransparentWithZWrite || mt.RenderQueueOffsetNumber != 2 {
		t.Errorf("zwrite %s", spew.Sdump(mt))
	}
	if mt.OutlineWidthMode != vrm.OutlineWidthScreen || !nearly(mt.OutlineWidthFactor, 0.005) || mt.OutlineLightingMixFactor != 0.7 {
		t.Errorf("outline %s", spew.Sdump(mt))
	}
	if !nearly(mt.ShadingToonyFactor, 0.95) || mt.MatcapTexture == nil || mt.MatcapTexture.Index != 1 {
		t.Errorf("mtoon %s", spew.Sdump(mt))
	}
	g, _ := ToGltf(m, IdentityTextures)
	if g.AlphaMode != gltf.AlphaBlend || g.PBRMetallicRoughness.BaseColorTexture == nil {
		t.Errorf("gltf %s", spew.Sdump(g))
	}
}

func TestImportMToon1(t *testing.T) {
	src := `{"name":"m","alphaMode":"MASK","alphaCutoff":0.3,
		"pbrMetallicRoughness":{"baseColorTexture":{"index":0,"extensions":{"KHR_texture_transform":{"offset":[0.5,0],"scale":[1,1]}}}},
		"extensions":{"VRMC_materials_mtoon":{"specVersion":"1.0","shadeColorFactor":[0.2,0.2,0.2]},"KHR_materials_unlit":{}}}`
	var mat gltf.Material
	if err := json.Unmarshal([]byte(src), &mat); err != nil {
		t.Fatal(err)
	}
	m := Import(&mat, nil, 1, vrmerr.NewWarnings(nil))
	if m.Kind() != KindMToon1 || m.AlphaMode != Mask || math.Abs(m.AlphaCutoff-0.3) > 1e-6 || !m.Unlit {
		t.Errorf("material %s", spew.Sdump(m))
	}
	if tr := m.BaseColorTexture.Transform; tr == nil || tr.Offset[0] != 0.5 {
		t.Errorf("transform %s", spew.Sdump(m.BaseColorTexture))
	}
	g, used := ToGltf(m, IdentityTextures)
	if g.AlphaMode != gltf.AlphaMask || len(used) != 2 {
		t.Errorf("gltf %s %v", spew.Sdump(g), used)
	}
	if mt := ToMToon1(m, IdentityTextures); mt == nil || mt.ShadeColorFactor[0] != 0.2 {
		t.Errorf("mtoon %s", spew.Sdump(mt))
	}
}

func TestGltfShaderPassthrough(t *testing.T) {
	m := Import(&gltf.Material{Name: "m"}, vrm.NewMaterialProperty("m"), 0, vrmerr.NewWarnings(nil))
	if m.Kind() != KindGltf {
		t.Errorf("kind %v", m.Kind())
	}
	if ToMToon1(m, IdentityTextures) != nil {
		t.Error("glTF material got an MToon extension")
	}
	if p := ToProperty(m, IdentityTextures); p.Shader != vrm.GLTFShaderName {
		t.Errorf("shader %s", p.Shader)
	}
	warn := vrmerr.NewWarnings(nil)
	prop := vrm.NewMaterialProperty("x")
	prop.Shader = "Custom/Shader"
	Import(&gltf.Material{Name: "x"}, prop, 0, warn)
	if !warn.Has(vrmerr.UnknownMaterialProperty) {
		t.Error("unknown shader not reported")
	}
}
