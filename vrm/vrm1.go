package vrm

// https://github.com/vrm-c/vrm-specification/tree/master/specification/VRMC_vrm-1.0

import (
	"encoding/json"

	"github.com/qmuntal/gltf"
)

const (
	ExtensionVRMC       = "VRMC_vrm"
	ExtensionSpringBone = "VRMC_springBone"
	ExtensionMToon      = "VRMC_materials_mtoon"
	ExtensionConstraint = "VRMC_node_constraint"
	ExtensionAnimation  = "VRMC_vrm_animation"
	SpecVersion1        = "1.0"
)

const (
	AvatarPermissionOnlyAuthor         = "onlyAuthor"
	AvatarPermissionSeparatelyLicensed = "onlySeparatelyLicensedPerson"
	AvatarPermissionEveryone           = "everyone"

	CommercialPersonalNonProfit = "personalNonProfit"
	CommercialPersonalProfit    = "personalProfit"
	CommercialCorporation       = "corporation"

	CreditRequired    = "required"
	CreditUnnecessary = "unnecessary"

	ModificationProhibited          = "prohibited"
	ModificationAllow               = "allowModification"
	ModificationAllowRedistribution = "allowModificationRedistribution"
)

type Meta1 struct {
	Name                           string   `json:"name"`
	Version                        string   `json:"version,omitempty"`
	Authors                        []string `json:"authors"`
	CopyrightInformation           string   `json:"copyrightInformation,omitempty"`
	ContactInformation             string   `json:"contactInformation,omitempty"`
	References                     []string `json:"references,omitempty"`
	ThirdPartyLicenses             string   `json:"thirdPartyLicenses,omitempty"`
	ThumbnailImage                 *int     `json:"thumbnailImage,omitempty"`
	LicenseURL                     string   `json:"licenseUrl"`
	AvatarPermission               string   `json:"avatarPermission,omitempty"`
	AllowExcessivelyViolentUsage   bool     `json:"allowExcessivelyViolentUsage"`
	AllowExcessivelySexualUsage    bool     `json:"allowExcessivelySexualUsage"`
	CommercialUsage                string   `json:"commercialUsage,omitempty"`
	AllowPoliticalOrReligiousUsage bool     `json:"allowPoliticalOrReligiousUsage"`
	AllowAntisocialOrHateUsage     bool     `json:"allowAntisocialOrHateUsage"`
	CreditNotation                 string   `json:"creditNotation,omitempty"`
	AllowRedistribution            bool     `json:"allowRedistribution"`
	Modification                   string   `json:"modification,omitempty"`
	OtherLicenseURL                string   `json:"otherLicenseUrl,omitempty"`
}

type HumanBone1 struct {
	Node int `json:"node"`
}

type Humanoid1 struct {
	HumanBones map[string]*HumanBone1 `json:"humanBones"`
}

type MeshAnnotation1 struct {
	Node int    `json:"node"`
	Type string `json:"type"`
}

type FirstPerson1 struct {
	MeshAnnotations []*MeshAnnotation1 `json:"meshAnnotations,omitempty"`
}

type RangeMap struct {
	InputMaxValue float64 `json:"inputMaxValue"`
	OutputScale   float64 `json:"outputScale"`
}

type LookAt1 struct {
	OffsetFromHeadBone      [3]float64 `json:"offsetFromHeadBone"`
	Type                    string     `json:"type"`
	RangeMapHorizontalInner *RangeMap  `json:"rangeMapHorizontalInner,omitempty"`
	RangeMapHorizontalOuter *RangeMap  `json:"rangeMapHorizontalOuter,omitempty"`
	RangeMapVerticalDown    *RangeMap  `json:"rangeMapVerticalDown,omitempty"`
	RangeMapVerticalUp      *RangeMap  `json:"rangeMapVerticalUp,omitempty"`
}

type MorphTargetBind struct {
	Node   int     `json:"node"`
	Index  int     `json:"index"`
	Weight float64 `json:"weight"`
}

type MaterialColorBind struct {
	Material    int        `json:"material"`
	Type        string     `json:"type"`
	TargetValue [4]float64 `json:"targetValue"`
}

type TextureTransformBind struct {
	Material int        `json:"material"`
	Scale    [2]float64 `json:"scale"`
	Offset   [2]float64 `json:"offset"`
}

type Expression1 struct {
	MorphTargetBinds      []*MorphTargetBind      `json:"morphTargetBinds,omitempty"`
	MaterialColorBinds    []*MaterialColorBind    `json:"materialColorBinds,omitempty"`
	TextureTransformBinds []*TextureTransformBind `json:"textureTransformBinds,omitempty"`
	IsBinary              bool                    `json:"isBinary"`
	OverrideBlink         string                  `json:"overrideBlink,omitempty"`
	OverrideLookAt        string                  `json:"overrideLookAt,omitempty"`
	OverrideMouth         string                  `json:"overrideMouth,omitempty"`
}

type Expressions1 struct {
	Preset map[string]*Expression1 `json:"preset,omitempty"`
	Custom map[string]*Expression1 `json:"custom,omitempty"`
}

// VRMC is the VRMC_vrm extension object.
type VRMC struct {
	SpecVersion string        `json:"specVersion"`
	Meta        Meta1         `json:"meta"`
	Humanoid    Humanoid1     `json:"humanoid"`
	FirstPerson *FirstPerson1 `json:"firstPerson,omitempty"`
	LookAt      *LookAt1      `json:"lookAt,omitempty"`
	Expressions *Expressions1 `json:"expressions,omitempty"`
}

func NewVRMC() *VRMC {
	return &VRMC{
		SpecVersion: SpecVersion1,
		Humanoid:    Humanoid1{HumanBones: map[string]*HumanBone1{}},
	}
}

// BoneNodes returns the human bone mapping keyed by bone name.
func (v *VRMC) BoneNodes() map[string]int {
	m := map[string]int{}
	for name, b := range v.Humanoid.HumanBones {
		if b != nil {
			m[name] = b.Node
		}
	}
	return m
}

type Sphere struct {
	Offset [3]float64 `json:"offset"`
	Radius float64    `json:"radius"`
}

type Capsule struct {
	Offset [3]float64 `json:"offset"`
	Radius float64    `json:"radius"`
	Tail   [3]float64 `json:"tail"`
}

type ColliderShape struct {
	Sphere  *Sphere  `json:"sphere,omitempty"`
	Capsule *Capsule `json:"capsule,omitempty"`
}

type Collider1 struct {
	Node  int           `json:"node"`
	Shape ColliderShape `json:"shape"`
}

type ColliderGroup1 struct {
	Name      string `json:"name,omitempty"`
	Colliders []int  `json:"colliders"`
}

type SpringJoint struct {
	Node         int        `json:"node"`
	HitRadius    float64    `json:"hitRadius"`
	Stiffness    float64    `json:"stiffness"`
	GravityPower float64    `json:"gravityPower"`
	GravityDir   [3]float64 `json:"gravityDir"`
	DragForce    float64    `json:"dragForce"`
}

// UnmarshalJSON applies the schema defaults for omitted joint settings.
func (j *SpringJoint) UnmarshalJSON(data []byte) error {
	type alias SpringJoint
	tmp := alias{Stiffness: 1, GravityDir: [3]float64{0, -1, 0}, DragForce: 0.5}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*j = SpringJoint(tmp)
	return nil
}

type Spring struct {
	Name           string         `json:"name,omitempty"`
	Joints         []*SpringJoint `json:"joints"`
	ColliderGroups []int          `json:"colliderGroups,omitempty"`
	Center         *int           `json:"center,omitempty"`
}

type SpringBone struct {
	SpecVersion    string            `json:"specVersion"`
	Colliders      []*Collider1      `json:"colliders,omitempty"`
	ColliderGroups []*ColliderGroup1 `json:"colliderGroups,omitempty"`
	Springs        []*Spring         `json:"springs,omitempty"`
}

// TextureInfo is a texture reference inside a VRMC extension.
type TextureInfo struct {
	Index      uint32          `json:"index"`
	TexCoord   uint32          `json:"texCoord,omitempty"`
	Scale      *float64        `json:"scale,omitempty"`
	Extensions gltf.Extensions `json:"extensions,omitempty"`
}

const (
	OutlineWidthNone   = "none"
	OutlineWidthWorld  = "worldCoordinates"
	OutlineWidthScreen = "screenCoordinates"
)

// MToon is the VRMC_materials_mtoon extension object.
type MToon struct {
	SpecVersion                     string       `json:"specVersion"`
	TransparentWithZWrite           bool         `json:"transparentWithZWrite"`
	RenderQueueOffsetNumber         int          `json:"renderQueueOffsetNumber"`
	ShadeColorFactor                [3]float64   `json:"shadeColorFactor"`
	ShadeMultiplyTexture            *TextureInfo `json:"shadeMultiplyTexture,omitempty"`
	ShadingShiftFactor              float64      `json:"shadingShiftFactor"`
	ShadingShiftTexture             *TextureInfo `json:"shadingShiftTexture,omitempty"`
	ShadingToonyFactor              float64      `json:"shadingToonyFactor"`
	GIEqualizationFactor            float64      `json:"giEqualizationFactor"`
	MatcapFactor                    [3]float64   `json:"matcapFactor"`
	MatcapTexture                   *TextureInfo `json:"matcapTexture,omitempty"`
	ParametricRimColorFactor        [3]float64   `json:"parametricRimColorFactor"`
	RimMultiplyTexture              *TextureInfo `json:"rimMultiplyTexture,omitempty"`
	RimLightingMixFactor            float64      `json:"rimLightingMixFactor"`
	ParametricRimFresnelPowerFactor float64      `json:"parametricRimFresnelPowerFactor"`
	ParametricRimLiftFactor         float64      `json:"parametricRimLiftFactor"`
	OutlineWidthMode                string       `json:"outlineWidthMode"`
	OutlineWidthFactor              float64      `json:"outlineWidthFactor"`
	OutlineWidthMultiplyTexture     *TextureInfo `json:"outlineWidthMultiplyTexture,omitempty"`
	OutlineColorFactor              [3]float64   `json:"outlineColorFactor"`
	OutlineLightingMixFactor        float64      `json:"outlineLightingMixFactor"`
	UVAnimationMaskTexture          *TextureInfo `json:"uvAnimationMaskTexture,omitempty"`
	UVAnimationScrollXSpeedFactor   float64      `json:"uvAnimationScrollXSpeedFactor"`
	UVAnimationScrollYSpeedFactor   float64      `json:"uvAnimationScrollYSpeedFactor"`
	UVAnimationRotationSpeedFactor  float64      `json:"uvAnimationRotationSpeedFactor"`
}

// NewMToon returns an extension with the schema defaults.
func NewMToon() *MToon {
	return &MToon{
		SpecVersion:                     SpecVersion1,
		ShadeColorFactor:                [3]float64{1, 1, 1},
		ShadingToonyFactor:              0.9,
		GIEqualizationFactor:            0.9,
		MatcapFactor:                    [3]float64{1, 1, 1},
		RimLightingMixFactor:            1,
		ParametricRimFresnelPowerFactor: 5,
		OutlineWidthMode:                OutlineWidthNone,
		OutlineLightingMixFactor:        1,
	}
}

func (m *MToon) UnmarshalJSON(data []byte) error {
	type alias MToon
	tmp := alias(*NewMToon())
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*m = MToon(tmp)
	return nil
}

type RollConstraint struct {
	Source   int     `json:"source"`
	RollAxis string  `json:"rollAxis"`
	Weight   float64 `json:"weight"`
}

func (c *RollConstraint) UnmarshalJSON(data []byte) error {
	type alias RollConstraint
	tmp := alias{Weight: 1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = RollConstraint(tmp)
	return nil
}

type AimConstraint struct {
	Source  int     `json:"source"`
	AimAxis string  `json:"aimAxis"`
	Weight  float64 `json:"weight"`
}

func (c *AimConstraint) UnmarshalJSON(data []byte) error {
	type alias AimConstraint
	tmp := alias{Weight: 1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = AimConstraint(tmp)
	return nil
}

type RotationConstraint struct {
	Source int     `json:"source"`
	Weight float64 `json:"weight"`
}

func (c *RotationConstraint) UnmarshalJSON(data []byte) error {
	type alias RotationConstraint
	tmp := alias{Weight: 1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = RotationConstraint(tmp)
	return nil
}

type Constraint struct {
	Roll     *RollConstraint     `json:"roll,omitempty"`
	Aim      *AimConstraint      `json:"aim,omitempty"`
	Rotation *RotationConstraint `json:"rotation,omitempty"`
}

// NodeConstraint is the node-level VRMC_node_constraint extension.
type NodeConstraint struct {
	SpecVersion string     `json:"specVersion"`
	Constraint  Constraint `json:"constraint"`
}
