package converter

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/binzume/vrmconv/config"
	"github.com/binzume/vrmconv/importer"
	"github.com/binzume/vrmconv/internal/vrmtest"
	"github.com/binzume/vrmconv/mmd"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrma"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func nearly(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func nearlyQ(a, b [4]float32) bool {
	for i := range a {
		if !nearly(a[i], b[i]) {
			return false
		}
	}
	return true
}

func testVMD() *mmd.Animation {
	sin, cos := float32(math.Sin(math.Pi/8)), float32(math.Cos(math.Pi/8))
	return &mmd.Animation{
		Name: "dance",
		Bone: []*mmd.AnimationBoneSample{
			{Target: "センター", Frame: 30, Position: mmd.Vector3{X: 0, Y: 10, Z: 5}, Rotation: mmd.IdentityRotation},
			{Target: "センター", Frame: 0, Rotation: mmd.IdentityRotation},
			{Target: "頭", Frame: 0, Rotation: mmd.Vector4{X: sin, W: cos}},
			{Target: "左腕", Frame: 0, Rotation: mmd.IdentityRotation},
			{Target: "左ひじ", Frame: 0, Rotation: mmd.IdentityRotation},
			{Target: "右ひじ", Frame: 15, Rotation: mmd.Vector4{Z: sin, W: cos}},
			{Target: "左足ＩＫ", Frame: 0, Position: mmd.Vector3{Y: 1}, Rotation: mmd.IdentityRotation},
		},
		Morph: []*mmd.AnimationMorphSample{
			{Target: "まばたき", Frame: 0, Value: 0},
			{Target: "まばたき", Frame: 6, Value: 1.5},
			{Target: "謎", Frame: 0, Value: 0.5},
		},
	}
}

func TestMMDBoneNames(t *testing.T) {
	for mmdName, bone := range map[string]string{
		"センター":  "hips",
		"左腕":    "leftUpperArm",
		"右ひじ":   "rightLowerArm",
		"左足首":   "leftFoot",
		"右親指０":  "rightThumbMetacarpal",
		"右親指２":  "rightThumbDistal",
		"左人指３":  "leftIndexDistal",
		"右小指１":  "rightLittleProximal",
		"上半身2":  "chest",
	} {
		if b, ok := MMDBoneName(mmdName); !ok || b != bone {
			t.Errorf("%s: got %q, want %q", mmdName, b, bone)
		}
	}
	for _, bone := range mmdBones {
		if !vrm.IsHumanBone(bone) {
			t.Errorf("%s is not a human bone", bone)
		}
	}
	if _, ok := MMDBoneName("左足ＩＫ"); ok {
		t.Error("IK bone mapped")
	}
}

func TestConvertVMD(t *testing.T) {
	a, err := ConvertVMD(testVMD(), &VMDOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	hips := a.HumanBones["hips"]
	if a.Nodes[hips].Parent != -1 || a.Nodes[hips].Translation[1] != 0.95 {
		t.Fatalf("hips %s", spew.Sdump(a.Nodes[hips]))
	}
	if a.Nodes[a.HumanBones["leftLowerArm"]].Parent != a.HumanBones["leftUpperArm"] {
		t.Error("arm hierarchy broken")
	}

	tr := a.Translations[hips]
	if tr == nil || len(tr.Times) != 2 || tr.Times[1] != 1 {
		t.Fatalf("hips translation %s", spew.Sdump(tr))
	}
	if v := tr.Values[1]; !nearly(v[1], 0.95+0.8) || !nearly(v[2], -0.4) {
		t.Errorf("hips translation %v", v)
	}
	if _, ok := a.Rotations[hips]; ok {
		t.Error("identity hips rotation written")
	}

	sin, cos := float32(math.Sin(math.Pi/8)), float32(math.Cos(math.Pi/8))
	if r := a.Rotations[a.HumanBones["head"]]; r == nil || !nearlyQ(r.Values[0], [4]float32{-sin, 0, 0, cos}) {
		t.Errorf("head rotation %s", spew.Sdump(r))
	}

	half := DefaultArmAngle * math.Pi / 360
	arm := [4]float32{0, 0, -float32(math.Sin(half)), float32(math.Cos(half))}
	if r := a.Rotations[a.HumanBones["leftUpperArm"]]; r == nil || !nearlyQ(r.Values[0], arm) {
		t.Errorf("upper arm rotation %s", spew.Sdump(r))
	}
	if _, ok := a.Rotations[a.HumanBones["leftLowerArm"]]; ok {
		t.Error("rest lower arm rotation written")
	}
	if r := a.Rotations[a.HumanBones["rightLowerArm"]]; r == nil || r.Times[0] != 0.5 || !nearlyQ(r.Values[0], [4]float32{0, 0, sin, cos}) {
		t.Errorf("lower arm rotation %s", spew.Sdump(r))
	}

	blink := a.Expression("blink")
	if blink == nil || !blink.Preset || blink.Weights[1] != 1 || blink.Times[1] != 0.2 {
		t.Errorf("blink %s", spew.Sdump(blink))
	}
	if a.Expression("謎") != nil {
		t.Error("custom expression kept without option")
	}
	if _, err := vrma.Encode(a); err != nil {
		t.Error(err)
	}
}

func TestConvertVMDOptions(t *testing.T) {
	doc, bin := vrmtest.Humanoid1()
	av, _, err := importer.Import(vrmtest.Encode(doc, bin), &importer.Options{Logger: quietLogger(), LicenseConfirmed: true})
	if err != nil {
		t.Fatal(err)
	}
	a, err := ConvertVMD(testVMD(), &VMDOptions{
		Logger:            quietLogger(),
		Reference:         av,
		NoArmCorrection:   true,
		CustomExpressions: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(a.HumanBones) != len(av.Humanoid.Bones) {
		t.Errorf("bones %v", a.HumanBones)
	}
	if n := a.Nodes[a.HumanBones["hips"]]; n.Translation != [3]float32{0, 1, 0} {
		t.Errorf("hips rest %v", n.Translation)
	}
	if n := a.Nodes[a.HumanBones["leftUpperArm"]]; !nearly(n.Translation[0], 0.2) || !nearly(n.Translation[1], 0.1) {
		t.Errorf("upper arm rest %v", n.Translation)
	}
	if n := a.Nodes[a.HumanBones["leftUpperArm"]]; n.Parent != a.HumanBones["chest"] {
		t.Errorf("upper arm parent %d", n.Parent)
	}
	if _, ok := a.Rotations[a.HumanBones["leftUpperArm"]]; ok {
		t.Error("arm corrected despite NoArmCorrection")
	}
	if x := a.Expression("謎"); x == nil || x.Preset {
		t.Errorf("custom expression %s", spew.Sdump(x))
	}
}

func TestVMDToVRMA(t *testing.T) {
	dir := t.TempDir()
	if err := VMDToVRMA(filepath.Join(dir, "missing.vmd"), filepath.Join(dir, "out.vrma"), nil); err == nil {
		t.Error("missing input accepted")
	}
	bad := filepath.Join(dir, "bad.vmd")
	os.WriteFile(bad, make([]byte, 64), 0644)
	if err := VMDToVRMA(bad, filepath.Join(dir, "out.vrma"), nil); !vrmerr.Is(err, vrmerr.ContainerFormat) {
		t.Errorf("expected ContainerFormat, got %v", err)
	}
}

func TestGLBToVRM(t *testing.T) {
	data, _, err := GLBToVRM(vrmtest.Plain(), nil, &GLBOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	av, _, err := importer.Import(data, &importer.Options{Logger: quietLogger(), LicenseConfirmed: true})
	if err != nil {
		t.Fatal(err)
	}
	if av.Version != vrm.Version0 || len(av.Humanoid.Bones) != len(vrm.RequiredBones0) {
		t.Errorf("version %v bones %v", av.Version, av.Humanoid.Bones)
	}
}

func TestGLBToVRMWithConfig(t *testing.T) {
	conf, err := config.Parse([]byte(`
meta:
  title: Converted
  author: someone
morphMappings:
  - name: joy
    targetName: smile
`), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	data, _, err := GLBToVRM(vrmtest.Plain(), conf, &GLBOptions{Logger: quietLogger(), Version: vrm.Version1})
	if err != nil {
		t.Fatal(err)
	}
	av, _, err := importer.Import(data, &importer.Options{Logger: quietLogger(), LicenseConfirmed: true})
	if err != nil {
		t.Fatal(err)
	}
	if av.Version != vrm.Version1 || av.Meta.Name != "Converted" {
		t.Errorf("version %v meta %s", av.Version, spew.Sdump(av.Meta))
	}
	if x := av.Expression("happy"); x == nil || len(x.MorphBinds) != 1 {
		t.Errorf("happy %s", spew.Sdump(x))
	}
}

func TestGLBToVRMMissingBones(t *testing.T) {
	doc := vrmtest.Plain()
	doc.Nodes[5].Name = "kopf"
	if _, _, err := GLBToVRM(doc, nil, &GLBOptions{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Errorf("expected UnresolvedHumanBone, got %v", err)
	}
}
