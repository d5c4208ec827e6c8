package vrm

// https://github.com/vrm-c/vrm-specification/blob/master/specification/0.0/README.md

import "encoding/json"

const (
	ExtensionName   = "VRM"
	ExporterVersion = "vrmconv-0.1"
	SpecVersion0    = "0.0"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Metadata struct {
	Title              string `json:"title,omitempty"`
	Version            string `json:"version,omitempty"`
	Author             string `json:"author,omitempty"`
	ContactInformation string `json:"contactInformation,omitempty"`
	Reference          string `json:"reference,omitempty"`
	Texture            *int   `json:"texture,omitempty"`

	AllowedUserName      string `json:"allowedUserName,omitempty"`
	ViolentUssageName    string `json:"violentUssageName,omitempty"`
	SexualUssageName     string `json:"sexualUssageName,omitempty"`
	CommercialUssageName string `json:"commercialUssageName,omitempty"`
	OtherPermissionURL   string `json:"otherPermissionUrl,omitempty"`

	LicenseName     string `json:"licenseName,omitempty"`
	OtherLicenseURL string `json:"otherLicenseUrl,omitempty"`
}

type Bone struct {
	Bone             string  `json:"bone"`
	Node             int     `json:"node"`
	UseDefaultValues bool    `json:"useDefaultValues"`
	Min              *Vec3   `json:"min,omitempty"`
	Max              *Vec3   `json:"max,omitempty"`
	Center           *Vec3   `json:"center,omitempty"`
	AxisLength       float64 `json:"axisLength,omitempty"`
}

type Humanoid struct {
	Bones             []*Bone `json:"humanBones"`
	ArmStretch        float64 `json:"armStretch,omitempty"`
	LegStretch        float64 `json:"legStretch,omitempty"`
	UpperArmTwist     float64 `json:"upperArmTwist,omitempty"`
	LowerArmTwist     float64 `json:"lowerArmTwist,omitempty"`
	UpperLegTwist     float64 `json:"upperLegTwist,omitempty"`
	LowerLegTwist     float64 `json:"lowerLegTwist,omitempty"`
	FeetSpacing       float64 `json:"feetSpacing,omitempty"`
	HasTranslationDoF bool    `json:"hasTranslationDoF,omitempty"`
}

type MeshAnnotation struct {
	Mesh            int    `json:"mesh"`
	FirstPersonFlag string `json:"firstPersonFlag"`
}

type DegreeMap struct {
	Curve  []float64 `json:"curve,omitempty"`
	XRange float64   `json:"xRange"`
	YRange float64   `json:"yRange"`
}

type FirstPerson struct {
	FirstPersonBone       int               `json:"firstPersonBone"`
	FirstPersonBoneOffset Vec3              `json:"firstPersonBoneOffset"`
	MeshAnnotations       []*MeshAnnotation `json:"meshAnnotations"`
	LookAtTypeName        string            `json:"lookAtTypeName,omitempty"`
	LookAtHorizontalInner *DegreeMap        `json:"lookAtHorizontalInner,omitempty"`
	LookAtHorizontalOuter *DegreeMap        `json:"lookAtHorizontalOuter,omitempty"`
	LookAtVerticalDown    *DegreeMap        `json:"lookAtVerticalDown,omitempty"`
	LookAtVerticalUp      *DegreeMap        `json:"lookAtVerticalUp,omitempty"`
}

// UnmarshalJSON defaults FirstPersonBone to -1 (unset).
func (f *FirstPerson) UnmarshalJSON(data []byte) error {
	type alias FirstPerson
	tmp := alias{FirstPersonBone: -1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*f = FirstPerson(tmp)
	return nil
}

type BlendShapeBind struct {
	Mesh   int     `json:"mesh"`
	Index  int     `json:"index"`
	Weight float64 `json:"weight"`
}

type MaterialValueBind struct {
	MaterialName string    `json:"materialName"`
	PropertyName string    `json:"propertyName"`
	TargetValue  []float64 `json:"targetValue"`
}

type BlendShapeGroup struct {
	Name           string               `json:"name"`
	PresetName     string               `json:"presetName"`
	Binds          []*BlendShapeBind    `json:"binds"`
	MaterialValues []*MaterialValueBind `json:"materialValues"`
	IsBinary       bool                 `json:"isBinary"`
}

type BlendShapeMaster struct {
	BlendShapeGroups []*BlendShapeGroup `json:"blendShapeGroups"`
}

type SecondaryAnimationBoneGroup struct {
	Comment        string  `json:"comment"`
	Stiffiness     float64 `json:"stiffiness"`
	GravityPower   float64 `json:"gravityPower"`
	GravityDir     Vec3    `json:"gravityDir"`
	DragForce      float64 `json:"dragForce"`
	Center         int     `json:"center"`
	HitRadius      float64 `json:"hitRadius"`
	Bones          []int   `json:"bones"`
	ColliderGroups []int   `json:"colliderGroups"`
}

// UnmarshalJSON defaults Center to -1 (no center node).
func (g *SecondaryAnimationBoneGroup) UnmarshalJSON(data []byte) error {
	type alias SecondaryAnimationBoneGroup
	tmp := alias{Center: -1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*g = SecondaryAnimationBoneGroup(tmp)
	return nil
}

type Collider struct {
	Offset Vec3    `json:"offset"`
	Radius float64 `json:"radius"`
}

type ColliderGroup struct {
	Node      int         `json:"node"`
	Colliders []*Collider `json:"colliders"`
}

type SecondaryAnimation struct {
	BoneGroups     []*SecondaryAnimationBoneGroup `json:"boneGroups"`
	ColliderGroups []*ColliderGroup               `json:"colliderGroups"`
}

// MaterialProperty is a legacy Unity shader property dump.
type MaterialProperty struct {
	Name              string               `json:"name"`
	Shader            string               `json:"shader"`
	RenderQueue       int                  `json:"renderQueue"`
	FloatProperties   map[string]float64   `json:"floatProperties"`
	VectorProperties  map[string][]float64 `json:"vectorProperties"`
	TextureProperties map[string]int       `json:"textureProperties"`
	KeywordMap        map[string]bool      `json:"keywordMap"`
	TagMap            map[string]string    `json:"tagMap"`
}

const GLTFShaderName = "VRM_USE_GLTFSHADER"

func NewMaterialProperty(name string) *MaterialProperty {
	return &MaterialProperty{
		Name:              name,
		Shader:            GLTFShaderName,
		RenderQueue:       2000,
		FloatProperties:   map[string]float64{},
		VectorProperties:  map[string][]float64{},
		TextureProperties: map[string]int{},
		KeywordMap:        map[string]bool{},
		TagMap:            map[string]string{},
	}
}

// VRM is the VRM 0.x extension object.
type VRM struct {
	Meta               Metadata            `json:"meta"`
	Humanoid           Humanoid            `json:"humanoid"`
	FirstPerson        *FirstPerson        `json:"firstPerson,omitempty"`
	BlendShapeMaster   BlendShapeMaster    `json:"blendShapeMaster"`
	SecondaryAnimation *SecondaryAnimation `json:"secondaryAnimation,omitempty"`
	MaterialProperties []*MaterialProperty `json:"materialProperties"`

	ExporterVersion string `json:"exporterVersion,omitempty"`
	SpecVersion     string `json:"specVersion,omitempty"`
}

func NewVRM() *VRM {
	return &VRM{
		Humanoid:           Humanoid{Bones: []*Bone{}},
		BlendShapeMaster:   BlendShapeMaster{BlendShapeGroups: []*BlendShapeGroup{}},
		MaterialProperties: []*MaterialProperty{},
		SpecVersion:        SpecVersion0,
	}
}

func (v *VRM) Title() string {
	return v.Meta.Title
}

func (v *VRM) Author() string {
	return v.Meta.Author
}

// BoneNodes returns the human bone mapping keyed by VRM 0.x bone name.
func (v *VRM) BoneNodes() map[string]int {
	m := map[string]int{}
	for _, b := range v.Humanoid.Bones {
		m[b.Bone] = b.Node
	}
	return m
}

// CheckRequiredBones returns the names of required bones that are not mapped.
func (v *VRM) CheckRequiredBones() []string {
	mapped := v.BoneNodes()
	var missing []string
	for _, name := range RequiredBones0 {
		if _, ok := mapped[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
