package vrm

import "strings"

// HumanBones lists the VRM 1.0 human bone names with their schema parent.
// The parent of hips is empty.
var HumanBones = []struct {
	Name   string
	Parent string
}{
	{"hips", ""},
	{"spine", "hips"},
	{"chest", "spine"},
	{"upperChest", "chest"},
	{"neck", "upperChest"},
	{"head", "neck"},
	{"leftEye", "head"},
	{"rightEye", "head"},
	{"jaw", "head"},
	{"leftUpperLeg", "hips"},
	{"leftLowerLeg", "leftUpperLeg"},
	{"leftFoot", "leftLowerLeg"},
	{"leftToes", "leftFoot"},
	{"rightUpperLeg", "hips"},
	{"rightLowerLeg", "rightUpperLeg"},
	{"rightFoot", "rightLowerLeg"},
	{"rightToes", "rightFoot"},
	{"leftShoulder", "upperChest"},
	{"leftUpperArm", "leftShoulder"},
	{"leftLowerArm", "leftUpperArm"},
	{"leftHand", "leftLowerArm"},
	{"rightShoulder", "upperChest"},
	{"rightUpperArm", "rightShoulder"},
	{"rightLowerArm", "rightUpperArm"},
	{"rightHand", "rightLowerArm"},
	{"leftThumbMetacarpal", "leftHand"},
	{"leftThumbProximal", "leftThumbMetacarpal"},
	{"leftThumbDistal", "leftThumbProximal"},
	{"leftIndexProximal", "leftHand"},
	{"leftIndexIntermediate", "leftIndexProximal"},
	{"leftIndexDistal", "leftIndexIntermediate"},
	{"leftMiddleProximal", "leftHand"},
	{"leftMiddleIntermediate", "leftMiddleProximal"},
	{"leftMiddleDistal", "leftMiddleIntermediate"},
	{"leftRingProximal", "leftHand"},
	{"leftRingIntermediate", "leftRingProximal"},
	{"leftRingDistal", "leftRingIntermediate"},
	{"leftLittleProximal", "leftHand"},
	{"leftLittleIntermediate", "leftLittleProximal"},
	{"leftLittleDistal", "leftLittleIntermediate"},
	{"rightThumbMetacarpal", "rightHand"},
	{"rightThumbProximal", "rightThumbMetacarpal"},
	{"rightThumbDistal", "rightThumbProximal"},
	{"rightIndexProximal", "rightHand"},
	{"rightIndexIntermediate", "rightIndexProximal"},
	{"rightIndexDistal", "rightIndexIntermediate"},
	{"rightMiddleProximal", "rightHand"},
	{"rightMiddleIntermediate", "rightMiddleProximal"},
	{"rightMiddleDistal", "rightMiddleIntermediate"},
	{"rightRingProximal", "rightHand"},
	{"rightRingIntermediate", "rightRingProximal"},
	{"rightRingDistal", "rightRingIntermediate"},
	{"rightLittleProximal", "rightHand"},
	{"rightLittleIntermediate", "rightLittleProximal"},
	{"rightLittleDistal", "rightLittleIntermediate"},
}

var humanBoneParent = map[string]string{}

func init() {
	for _, b := range HumanBones {
		humanBoneParent[b.Name] = b.Parent
	}
}

// RequiredBones0 are the bones a VRM 0.x humanoid must map. Unlike 1.0,
// 0.x requires chest and neck.
var RequiredBones0 = []string{
	"hips", "spine", "chest", "neck", "head",
	"leftUpperLeg", "leftLowerLeg", "leftFoot",
	"rightUpperLeg", "rightLowerLeg", "rightFoot",
	"leftUpperArm", "leftLowerArm", "leftHand",
	"rightUpperArm", "rightLowerArm", "rightHand",
}

// RequiredBones1 are the bones a VRM 1.0 humanoid must map.
var RequiredBones1 = []string{
	"hips", "spine", "head",
	"leftUpperLeg", "leftLowerLeg", "leftFoot",
	"rightUpperLeg", "rightLowerLeg", "rightFoot",
	"leftUpperArm", "leftLowerArm", "leftHand",
	"rightUpperArm", "rightLowerArm", "rightHand",
}

// RequiredBones is kept for config files; it names VRM 0.x bones.
var RequiredBones = RequiredBones0

func IsHumanBone(name string) bool {
	_, ok := humanBoneParent[name]
	return ok
}

// HumanBoneParent returns the schema parent of a VRM 1.0 bone.
func HumanBoneParent(name string) (string, bool) {
	p, ok := humanBoneParent[name]
	return p, ok
}

// Bone0To1 converts a VRM 0.x human bone name to its VRM 1.0 name.
func Bone0To1(name string) string {
	for _, side := range []string{"left", "right"} {
		switch name {
		case side + "ThumbProximal":
			return side + "ThumbMetacarpal"
		case side + "ThumbIntermediate":
			return side + "ThumbProximal"
		}
	}
	return name
}

// Bone1To0 converts a VRM 1.0 human bone name to its VRM 0.x name.
func Bone1To0(name string) string {
	for _, side := range []string{"left", "right"} {
		switch name {
		case side + "ThumbMetacarpal":
			return side + "ThumbProximal"
		case side + "ThumbProximal":
			return side + "ThumbIntermediate"
		}
	}
	return name
}

// IsHumanBone0 reports whether name is a VRM 0.x human bone.
func IsHumanBone0(name string) bool {
	if strings.HasSuffix(name, "ThumbMetacarpal") {
		return false
	}
	return IsHumanBone(Bone0To1(name))
}

// MissingBones returns the names in required that are absent from mapped.
func MissingBones(mapped map[string]int, required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := mapped[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// HierarchyViolation is a human bone whose node is not below the node of
// its nearest mapped schema ancestor.
type HierarchyViolation struct {
	Bone     string
	Ancestor string
}

// CheckHierarchy validates a VRM 1.0 bone mapping against the node tree.
// parents[i] is the parent node of node i, or -1 for roots.
func CheckHierarchy(mapped map[string]int, parents []int) []HierarchyViolation {
	var violations []HierarchyViolation
	for _, b := range HumanBones {
		node, ok := mapped[b.Name]
		if !ok {
			continue
		}
		ancestor := b.Parent
		for ancestor != "" {
			if _, ok := mapped[ancestor]; ok {
				break
			}
			ancestor = humanBoneParent[ancestor]
		}
		if ancestor == "" {
			continue
		}
		if !isNodeAncestor(mapped[ancestor], node, parents) {
			violations = append(violations, HierarchyViolation{Bone: b.Name, Ancestor: ancestor})
		}
	}
	return violations
}

func isNodeAncestor(ancestor, node int, parents []int) bool {
	if node < 0 || node >= len(parents) {
		return false
	}
	for steps, n := 0, parents[node]; n >= 0 && n < len(parents) && steps <= len(parents); steps++ {
		if n == ancestor {
			return true
		}
		n = parents[n]
	}
	return false
}
