package converter

import (
	"math"
	"sort"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/mmd"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrma"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMMDScale is the length of one MMD unit in meters.
	DefaultMMDScale = 0.08
	// DefaultArmAngle is the downward slope in degrees of the arms of a
	// standard MMD model at rest.
	DefaultArmAngle = 35
)

type VMDOptions struct {
	Logger logrus.FieldLogger
	// Reference provides the rest pose. A generic humanoid is used when nil.
	Reference *avatar.Avatar
	Scale     float32
	ArmAngle  float64
	// NoArmCorrection keeps arm rotations relative to the MMD rest pose.
	NoArmCorrection bool
	// CustomExpressions keeps morphs with no preset as custom expressions.
	CustomExpressions bool
}

var mmdBones = map[string]string{
	"センター":  "hips",
	"上半身":   "spine",
	"上半身2":  "chest",
	"上半身２":  "chest",
	"首":     "neck",
	"頭":     "head",
}

var mmdMorphs = map[string]string{
	"まばたき":  "blink",
	"ウィンク":  "blinkLeft",
	"ウィンク右": "blinkRight",
	"あ":     "aa",
	"い":     "ih",
	"う":     "ou",
	"え":     "ee",
	"お":     "oh",
	"笑い":    "happy",
	"怒り":    "angry",
	"困る":    "sad",
	"にこり":   "relaxed",
	"びっくり":  "surprised",
}

func init() {
	sides := map[string]string{"左": "left", "右": "right"}
	parts := map[string]string{
		"肩":   "Shoulder",
		"腕":   "UpperArm",
		"ひじ":  "LowerArm",
		"手首":  "Hand",
		"足":   "UpperLeg",
		"ひざ":  "LowerLeg",
		"足首":  "Foot",
		"つま先": "Toes",
		"目":   "Eye",
	}
	fingers := map[string]string{"人指": "Index", "中指": "Middle", "薬指": "Ring", "小指": "Little"}
	digits := []string{"１", "２", "３"}
	segments := []string{"Proximal", "Intermediate", "Distal"}
	for jp, side := range sides {
		for p, bone := range parts {
			mmdBones[jp+p] = side + bone
		}
		for i, seg := range []string{"Metacarpal", "Proximal", "Distal"} {
			mmdBones[jp+"親指"+[]string{"０", "１", "２"}[i]] = side + "Thumb" + seg
		}
		for f, finger := range fingers {
			for i, seg := range segments {
				mmdBones[jp+f+digits[i]] = side + finger + seg
			}
		}
	}
}

// MMDBoneName returns the VRM 1.0 human bone for an MMD bone name.
func MMDBoneName(name string) (string, bool) {
	b, ok := mmdBones[name]
	return b, ok
}

// restOffsets is a generic humanoid in meters, relative to the parent bone.
// Right side bones mirror the left.
var restOffsets = map[string][3]float32{
	"hips":       {0, 0.95, 0},
	"spine":      {0, 0.1, 0},
	"chest":      {0, 0.12, 0},
	"upperChest": {0, 0.12, 0},
	"neck":       {0, 0.12, 0},
	"head":       {0, 0.1, 0},

	"leftEye":       {0.03, 0.06, 0.08},
	"leftUpperLeg":  {0.08, -0.05, 0},
	"leftLowerLeg":  {0, -0.42, 0},
	"leftFoot":      {0, -0.42, 0},
	"leftToes":      {0, -0.08, 0.12},
	"leftShoulder":  {0.03, 0.08, 0},
	"leftUpperArm":  {0.08, 0, 0},
	"leftLowerArm":  {0.25, 0, 0},
	"leftHand":      {0.24, 0, 0},

	"leftThumbMetacarpal":    {0.02, -0.01, 0.02},
	"leftThumbProximal":      {0.03, 0, 0.02},
	"leftThumbDistal":        {0.03, 0, 0.01},
	"leftIndexProximal":      {0.08, 0, 0.03},
	"leftIndexIntermediate":  {0.03, 0, 0},
	"leftIndexDistal":        {0.02, 0, 0},
	"leftMiddleProximal":     {0.08, 0, 0.01},
	"leftMiddleIntermediate": {0.035, 0, 0},
	"leftMiddleDistal":       {0.025, 0, 0},
	"leftRingProximal":       {0.08, 0, -0.01},
	"leftRingIntermediate":   {0.03, 0, 0},
	"leftRingDistal":         {0.02, 0, 0},
	"leftLittleProximal":     {0.07, 0, -0.03},
	"leftLittleIntermediate": {0.025, 0, 0},
	"leftLittleDistal":       {0.02, 0, 0},
}

func defaultRest() map[string][3]float32 {
	rest := map[string][3]float32{}
	for name, v := range restOffsets {
		rest[name] = v
		if len(name) > 4 && name[:4] == "left" {
			rest["right"+name[4:]] = [3]float32{-v[0], v[1], v[2]}
		}
	}
	return rest
}

// mappedParent is the nearest ancestor of bone present in mapped.
func mappedParent(bone string, mapped func(string) bool) string {
	p, _ := vrm.HumanBoneParent(bone)
	for p != "" && !mapped(p) {
		p, _ = vrm.HumanBoneParent(p)
	}
	return p
}

// referenceRest reads bone offsets from an avatar. Node rotations are
// ignored; VRM 0.x avatars are turned to face +Z.
func referenceRest(av *avatar.Avatar) map[string][3]float32 {
	world := func(n int) [3]float32 {
		var w [3]float32
		for ; n >= 0 && n < len(av.Nodes); n = av.Nodes[n].Parent {
			t := av.Nodes[n].Translation
			w = [3]float32{w[0] + t[0], w[1] + t[1], w[2] + t[2]}
		}
		if av.Version == vrm.Version0 {
			w = [3]float32{-w[0], w[1], -w[2]}
		}
		return w
	}
	rest := map[string][3]float32{}
	for name, n := range av.Humanoid.Bones {
		w := world(n)
		if p := mappedParent(name, func(b string) bool { _, ok := av.Humanoid.Bones[b]; return ok }); p != "" {
			pw := world(av.Humanoid.Bones[p])
			w = [3]float32{w[0] - pw[0], w[1] - pw[1], w[2] - pw[2]}
		}
		rest[name] = w
	}
	return rest
}

// armRest is the MMD rest rotation of the arm chain a bone belongs to, or
// nil. upper is set for the upper arm itself.
func armRest(bone string, angle float64) (q *geom.Quaternion, upper bool) {
	side := ""
	for _, s := range []string{"left", "right"} {
		if len(bone) > len(s) && bone[:len(s)] == s {
			side = s
		}
	}
	if side == "" {
		return nil, false
	}
	part := bone[len(side):]
	if part == "UpperArm" {
		upper = true
	} else if part != "LowerArm" && part != "Hand" && mappedParent(bone, func(b string) bool { return b == side+"Hand" }) != side+"Hand" {
		return nil, false
	}
	rad := angle * math.Pi / 180 / 2
	if side == "left" {
		rad = -rad
	}
	return geom.NewQuaternion(0, 0, float32(math.Sin(rad)), float32(math.Cos(rad))), upper
}

func mmdRotation(r mmd.Vector4) *geom.Quaternion {
	return geom.NewQuaternion(-r.X, -r.Y, r.Z, r.W)
}

func nearIdentity(q [4]float32) bool {
	const eps = 1e-6
	return geom.Abs(q[0]) < eps && geom.Abs(q[1]) < eps && geom.Abs(q[2]) < eps && geom.Abs(q[3]) > 1-eps
}

func frameTimes(frames []uint32) []float32 {
	times := make([]float32, len(frames))
	for i, f := range frames {
		times[i] = float32(f) / mmd.FPS
	}
	return times
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ConvertVMD maps the bone and morph channels of an MMD motion onto a VRM
// humanoid. Bones without a human bone counterpart, such as IK bones, are
// dropped.
func ConvertVMD(anim *mmd.Animation, opt *VMDOptions) (*vrma.Animation, error) {
	if opt == nil {
		opt = &VMDOptions{}
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	scale := opt.Scale
	if scale == 0 {
		scale = DefaultMMDScale
	}
	angle := opt.ArmAngle
	if angle == 0 {
		angle = DefaultArmAngle
	}
	rest := defaultRest()
	if opt.Reference != nil {
		rest = referenceRest(opt.Reference)
	}
	if _, ok := rest["hips"]; !ok {
		return nil, vrmerr.New(vrmerr.UnresolvedHumanBone, "vmd2vrma", "reference has no hips")
	}

	out := vrma.New(anim.Name)
	has := func(b string) bool { _, ok := rest[b]; return ok }
	for _, hb := range vrm.HumanBones {
		t, ok := rest[hb.Name]
		if !ok {
			continue
		}
		parent := -1
		if p := mappedParent(hb.Name, has); p != "" {
			parent = out.HumanBones[p]
		}
		out.HumanBones[hb.Name] = out.AddNode(hb.Name, parent, t)
	}

	var skipped []string
	channels := anim.BoneChannels()
	for _, name := range sortedKeys(channels) {
		ch := channels[name]
		bone, ok := mmdBones[name]
		node, mapped := out.HumanBones[bone]
		if !ok || !mapped {
			skipped = append(skipped, name)
			continue
		}
		times := frameTimes(ch.Frames)

		var a, ainv *geom.Quaternion
		var upper bool
		if !opt.NoArmCorrection {
			if a, upper = armRest(bone, angle); a != nil {
				ainv = a.Inverse()
			}
		}
		rotate := false
		rotations := make([][4]float32, len(ch.Rotations))
		for i, r := range ch.Rotations {
			q := mmdRotation(r)
			if a != nil {
				if upper {
					q = q.Mul(a)
				} else {
					q = ainv.Mul(q).Mul(a)
				}
			}
			rotations[i] = q.Normalize().Array()
			if !nearIdentity(rotations[i]) {
				rotate = true
			}
		}
		if rotate {
			out.Rotations[node] = &vrma.QuatTrack{Times: times, Values: rotations}
		}

		if bone != "hips" {
			continue
		}
		translate := false
		base := out.Nodes[node].Translation
		translations := make([][3]float32, len(ch.Positions))
		for i, p := range ch.Positions {
			translations[i] = [3]float32{base[0] + p.X*scale, base[1] + p.Y*scale, base[2] - p.Z*scale}
			if p != (mmd.Vector3{}) {
				translate = true
			}
		}
		if translate {
			out.Translations[node] = &vrma.Vec3Track{Times: times, Values: translations}
		}
	}
	if len(skipped) > 0 {
		log.WithField("bones", skipped).Debug("vmd bones without a human bone")
	}

	morphs := anim.MorphChannels()
	for _, name := range sortedKeys(morphs) {
		ch := morphs[name]
		expr, preset := mmdMorphs[name]
		if !preset {
			if !opt.CustomExpressions {
				continue
			}
			expr = name
		}
		if out.Expression(expr) != nil {
			log.WithField("morph", name).Debug("expression already bound")
			continue
		}
		x := out.AddExpression(expr, preset)
		x.Times = frameTimes(ch.Frames)
		for _, w := range ch.Weights {
			x.Weights = append(x.Weights, float32(geom.Clamp01(float64(w))))
		}
	}

	log.WithFields(logrus.Fields{
		"name":        anim.Name,
		"rotations":   len(out.Rotations),
		"expressions": len(out.Expressions),
		"duration":    out.Duration(),
	}).Info("vmd converted")
	return out, out.Validate()
}

// VMDToVRMA converts a .vmd file into a .vrma file.
func VMDToVRMA(input, output string, opt *VMDOptions) error {
	anim, err := mmd.ReadVMD(input)
	if err != nil {
		return err
	}
	a, err := ConvertVMD(anim, opt)
	if err != nil {
		return err
	}
	return vrma.WriteFile(output, a)
}
