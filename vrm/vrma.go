package vrm

// https://github.com/vrm-c/vrm-specification/tree/master/specification/VRMC_vrm_animation-1.0

type AnimationNode struct {
	Node int `json:"node"`
}

type AnimationHumanoid struct {
	HumanBones map[string]*AnimationNode `json:"humanBones"`
}

type AnimationExpressions struct {
	Preset map[string]*AnimationNode `json:"preset,omitempty"`
	Custom map[string]*AnimationNode `json:"custom,omitempty"`
}

type AnimationLookAt struct {
	Node               int         `json:"node"`
	OffsetFromHeadBone *[3]float64 `json:"offsetFromHeadBone,omitempty"`
}

// Animation is the VRMC_vrm_animation extension object.
type Animation struct {
	SpecVersion string                `json:"specVersion"`
	Humanoid    *AnimationHumanoid    `json:"humanoid,omitempty"`
	Expressions *AnimationExpressions `json:"expressions,omitempty"`
	LookAt      *AnimationLookAt      `json:"lookAt,omitempty"`
}
