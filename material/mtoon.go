package material

import (
	"math"

	"github.com/binzume/vrmconv/vrm"
)

// Legacy _BlendMode values.
const (
	blendModeOpaque            = 0
	blendModeCutout            = 1
	blendModeTransparent       = 2
	blendModeTransparentZWrite = 3
)

// Legacy render queues.
const (
	RenderQueueOpaque            = -1
	RenderQueueAlphaTest         = 2450
	RenderQueueTransparent       = 3000
	RenderQueueTransparentZWrite = 2501
)

// RenderQueue returns the legacy render queue of an alpha mode. offset is
// VRMC_materials_mtoon renderQueueOffsetNumber.
func RenderQueue(mode AlphaMode, zwrite bool, offset int) int {
	switch mode {
	case Mask:
		return RenderQueueAlphaTest
	case Blend:
		if zwrite {
			return RenderQueueTransparentZWrite + clampInt(offset, 0, 9)
		}
		return RenderQueueTransparent + clampInt(offset, -9, 0)
	}
	return RenderQueueOpaque
}

// RenderQueueOffset is the inverse of RenderQueue for BLEND materials.
func RenderQueueOffset(mode AlphaMode, zwrite bool, queue int) int {
	if mode != Blend || queue <= 0 {
		return 0
	}
	if zwrite {
		return clampInt(queue-RenderQueueTransparentZWrite, 0, 9)
	}
	return clampInt(queue-RenderQueueTransparent, -9, 0)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// alphaModeOfBlendMode maps legacy _BlendMode to an alpha mode.
func alphaModeOfBlendMode(b float64) AlphaMode {
	switch b {
	case blendModeCutout:
		return Mask
	case blendModeTransparent, blendModeTransparentZWrite:
		return Blend
	}
	return Opaque
}

func blendModeOf(mode AlphaMode, zwrite bool) float64 {
	switch mode {
	case Mask:
		return blendModeCutout
	case Blend:
		if zwrite {
			return blendModeTransparentZWrite
		}
		return blendModeTransparent
	}
	return blendModeOpaque
}

// ShadingToony0 converts MToon 1.0 shading parameters to _ShadeToony.
func ShadingToony0(toony1, shift1 float64) float64 {
	rangeMin, rangeMax := shadingRange0(toony1, shift1)
	d := 1 - rangeMin
	if math.Abs(d) < epsilon {
		return 0.9
	}
	return (1 - rangeMax) / d
}

// ShadingShift0 converts MToon 1.0 shading parameters to _ShadeShift.
func ShadingShift0(toony1, shift1 float64) float64 {
	rangeMin, _ := shadingRange0(toony1, shift1)
	return rangeMin
}

const epsilon = 2.220446049250313e-16

func shadingRange0(toony1, shift1 float64) (float64, float64) {
	return -shift1 - (1 - toony1), -shift1 + (1 - toony1)
}

// ShadingToony1 converts _ShadeToony/_ShadeShift to shadingToonyFactor.
func ShadingToony1(toony0, shift0 float64) float64 {
	rangeMin, rangeMax := shadingRange1(toony0, shift0)
	return clamp((2-(rangeMax-rangeMin))*0.5, 0, 1)
}

// ShadingShift1 converts _ShadeToony/_ShadeShift to shadingShiftFactor.
func ShadingShift1(toony0, shift0 float64) float64 {
	rangeMin, rangeMax := shadingRange1(toony0, shift0)
	return clamp(-(rangeMax+rangeMin)*0.5, -1, 1)
}

func shadingRange1(toony0, shift0 float64) (float64, float64) {
	return shift0, 1 + (shift0-1)*toony0
}

func IndirectLightIntensity(giEqualization float64) float64 {
	return 1 - giEqualization
}

func GIEqualization(indirectLightIntensity float64) float64 {
	return clamp(1-indirectLightIntensity, 0, 1)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

// Legacy outline modes.
const (
	outlineWidthNone   = 0
	outlineWidthWorld  = 1
	outlineWidthScreen = 2

	outlineColorFixed = 0
	outlineColorMixed = 1
)

// OutlineWidthMode0 maps outlineWidthMode to _OutlineWidthMode.
func OutlineWidthMode0(mode string) float64 {
	switch mode {
	case vrm.OutlineWidthWorld:
		return outlineWidthWorld
	case vrm.OutlineWidthScreen:
		return outlineWidthScreen
	}
	return outlineWidthNone
}

func OutlineWidthMode1(mode float64) string {
	switch mode {
	case outlineWidthWorld:
		return vrm.OutlineWidthWorld
	case outlineWidthScreen:
		return vrm.OutlineWidthScreen
	}
	return vrm.OutlineWidthNone
}

// OutlineKeywords returns the shader keywords for a width and color mode.
// No outline keywords are set when the width mode is none.
func OutlineKeywords(widthMode, colorMode float64) map[string]bool {
	kw := map[string]bool{}
	switch widthMode {
	case outlineWidthWorld:
		kw["MTOON_OUTLINE_WIDTH_WORLD"] = true
	case outlineWidthScreen:
		kw["MTOON_OUTLINE_WIDTH_SCREEN"] = true
	default:
		return kw
	}
	if colorMode == outlineColorMixed {
		kw["MTOON_OUTLINE_COLOR_MIXED"] = true
	} else {
		kw["MTOON_OUTLINE_COLOR_FIXED"] = true
	}
	return kw
}

// outline widths are centimeters in MToon 0.x and meters in MToon 1.0
const outlineWidthScale = 0.01

// LinearToSRGB converts a linear color component to sRGB.
func LinearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return math.Max(0, c*12.92)
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

// SRGBToLinear converts an sRGB color component to linear.
func SRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return math.Max(0, c/12.92)
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB4(c [4]float64) []float64 {
	return []float64{LinearToSRGB(c[0]), LinearToSRGB(c[1]), LinearToSRGB(c[2]), c[3]}
}

func linearToSRGB3(c [3]float64) []float64 {
	return []float64{LinearToSRGB(c[0]), LinearToSRGB(c[1]), LinearToSRGB(c[2]), 1}
}

func srgbToLinear3(c []float64) [3]float64 {
	var r [3]float64
	for i := 0; i < 3 && i < len(c); i++ {
		r[i] = SRGBToLinear(c[i])
	}
	return r
}
