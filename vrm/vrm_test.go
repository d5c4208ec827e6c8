package vrm

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/qmuntal/gltf"
)

const vrm0JSON = `{
	"asset": {"version": "2.0"},
	"nodes": [{"name": "root"}],
	"scenes": [{"nodes": [0]}],
	"extensionsUsed": ["VRM"],
	"extensions": {"VRM": {
		"meta": {"title": "t", "author": "a", "licenseName": "CC0"},
		"humanoid": {"humanBones": [{"bone": "hips", "node": 0, "useDefaultValues": true}]},
		"firstPerson": {},
		"blendShapeMaster": {"blendShapeGroups": []},
		"secondaryAnimation": {"boneGroups": [{"bones": [0]}], "colliderGroups": []}
	}}
}`

func TestUnmarshalVRM0(t *testing.T) {
	var doc gltf.Document
	if err := json.Unmarshal([]byte(vrm0JSON), &doc); err != nil {
		t.Fatal(err)
	}
	vd := (*Document)(&doc)
	if vd.Version() != Version0 {
		t.Fatalf("version %v", vd.Version())
	}
	ext := vd.VRM()
	if ext.Title() != "t" || ext.Author() != "a" || ext.Meta.LicenseName != "CC0" {
		t.Errorf("meta %s", spew.Sdump(ext.Meta))
	}
	if ext.FirstPerson == nil || ext.FirstPerson.FirstPersonBone != -1 {
		t.Errorf("firstPerson default %s", spew.Sdump(ext.FirstPerson))
	}
	if g := ext.SecondaryAnimation.BoneGroups[0]; g.Center != -1 {
		t.Errorf("bone group center default %d", g.Center)
	}
	missing := ext.CheckRequiredBones()
	if len(missing) != len(RequiredBones0)-1 {
		t.Errorf("missing %v", missing)
	}
	if err := vd.ValidateBones(); !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Errorf("ValidateBones: %v", err)
	}
}

func TestUnmarshalVRM1(t *testing.T) {
	src := `{
		"asset": {"version": "2.0"},
		"nodes": [{"name": "hips"}],
		"materials": [{"name": "m", "extensions": {"VRMC_materials_mtoon": {"specVersion": "1.0", "shadingShiftFactor": 0.1}}}],
		"extensions": {
			"VRMC_vrm": {"specVersion": "1.0", "meta": {"name": "n", "authors": ["a"], "licenseUrl": "u", "modification": "prohibited"},
				"humanoid": {"humanBones": {"hips": {"node": 0}}}},
			"VRMC_springBone": {"specVersion": "1.0", "springs": [{"joints": [{"node": 0}]}]}
		}
	}`
	var doc gltf.Document
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	vd := (*Document)(&doc)
	if vd.Version() != Version1 {
		t.Fatalf("version %v", vd.Version())
	}
	v := vd.VRMC()
	if v.Meta.Name != "n" || v.Meta.Modification != ModificationProhibited || v.BoneNodes()["hips"] != 0 {
		t.Errorf("VRMC %s", spew.Sdump(v))
	}
	sb := vd.SpringBone()
	if sb == nil || len(sb.Springs) != 1 {
		t.Fatalf("springBone %s", spew.Sdump(sb))
	}
	j := sb.Springs[0].Joints[0]
	if j.Stiffness != 1 || j.DragForce != 0.5 || j.GravityDir != [3]float64{0, -1, 0} {
		t.Errorf("joint defaults %s", spew.Sdump(j))
	}
	m := MaterialMToon(doc.Materials[0])
	if m == nil || m.ShadingShiftFactor != 0.1 || m.ShadingToonyFactor != 0.9 || m.OutlineWidthMode != OutlineWidthNone {
		t.Errorf("mtoon %s", spew.Sdump(m))
	}
}

func TestVRMCreatesExtension(t *testing.T) {
	doc := &Document{}
	ext := doc.VRM()
	if doc.VRM() != ext || !doc.IsExtensionUsed(ExtensionName) || len(doc.ExtensionsUsed) != 1 {
		t.Error("VRM() did not memoize the extension")
	}
	if _, err := json.Marshal(doc.Gltf()); err != nil {
		t.Error(err)
	}
}

func TestBoneNameConversion(t *testing.T) {
	for v0, v1 := range map[string]string{
		"leftThumbProximal":      "leftThumbMetacarpal",
		"leftThumbIntermediate":  "leftThumbProximal",
		"rightThumbDistal":       "rightThumbDistal",
		"rightThumbIntermediate": "rightThumbProximal",
		"hips":                   "hips",
	} {
		if Bone0To1(v0) != v1 || Bone1To0(v1) != v0 {
			t.Errorf("%s <-> %s: %s %s", v0, v1, Bone0To1(v0), Bone1To0(v1))
		}
	}
	if IsHumanBone0("leftThumbMetacarpal") || !IsHumanBone0("leftThumbIntermediate") {
		t.Error("IsHumanBone0")
	}
	if len(RequiredBones1) != 15 || len(RequiredBones0) != 17 {
		t.Error("required bone counts")
	}
	// chest and neck are required by VRM 0.x only
	required1 := map[string]bool{}
	for _, b := range RequiredBones1 {
		required1[b] = true
	}
	for _, b := range RequiredBones0 {
		if !required1[b] && b != "chest" && b != "neck" {
			t.Error("bone required by 0.x only: ", b)
		}
	}
	for _, b := range append(append([]string{}, RequiredBones0...), RequiredBones1...) {
		if !IsHumanBone(b) {
			t.Error("unknown required bone ", b)
		}
	}
}

func TestCheckHierarchy(t *testing.T) {
	// 0 hips -> 1 spine -> 2 chest -> 3 neck -> 4 head ; 5 detached
	parents := []int{-1, 0, 1, 2, 3, -1}
	ok := map[string]int{"hips": 0, "spine": 1, "chest": 2, "neck": 3, "head": 4}
	if v := CheckHierarchy(ok, parents); len(v) != 0 {
		t.Errorf("valid mapping: %v", v)
	}
	// optional upperChest missing: neck falls back to chest.
	skip := map[string]int{"hips": 0, "spine": 1, "neck": 3, "head": 4}
	if v := CheckHierarchy(skip, parents); len(v) != 0 {
		t.Errorf("mapping with gaps: %v", v)
	}
	bad := map[string]int{"hips": 0, "spine": 1, "head": 5}
	v := CheckHierarchy(bad, parents)
	if len(v) != 1 || v[0] != (HierarchyViolation{Bone: "head", Ancestor: "spine"}) {
		t.Errorf("invalid mapping: %v", v)
	}
	swapped := map[string]int{"hips": 1, "spine": 0}
	if v := CheckHierarchy(swapped, parents); len(v) != 1 {
		t.Errorf("swapped mapping: %v", v)
	}
}

func TestPresets(t *testing.T) {
	var got []string
	for _, p := range []string{"joy", "sorrow", "fun", "a", "blink_l", "lookup"} {
		v, ok := Preset0To1(p)
		if !ok {
			t.Error("no preset for ", p)
		}
		back, _ := Preset1To0(v)
		if back != p {
			t.Errorf("%s -> %s -> %s", p, v, back)
		}
		got = append(got, v)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"aa", "blinkLeft", "happy", "lookUp", "relaxed", "sad"}) {
		t.Error(got)
	}
	if _, ok := Preset1To0("surprised"); ok {
		t.Error("surprised has no VRM 0.x preset")
	}
	if _, ok := Preset0To1("unknown"); ok {
		t.Error("unknown preset mapped")
	}
}

func TestNodeParents(t *testing.T) {
	doc := &Document{Nodes: []*gltf.Node{{Children: []uint32{1}}, {Children: []uint32{2}}, {}}}
	parents, err := doc.NodeParents()
	if err != nil || !reflect.DeepEqual(parents, []int{-1, 0, 1}) {
		t.Errorf("parents %v %v", parents, err)
	}
	doc.Nodes[2].Children = []uint32{0}
	if _, err := doc.NodeParents(); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("cycle: %v", err)
	}
	doc = &Document{Nodes: []*gltf.Node{{Children: []uint32{2}}, {Children: []uint32{2}}, {}}}
	if _, err := doc.NodeParents(); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("shared child: %v", err)
	}
}

func TestRequiredCompression(t *testing.T) {
	doc := &Document{ExtensionsRequired: []string{"KHR_materials_unlit", "KHR_draco_mesh_compression"}}
	if got := doc.RequiredCompression(); !reflect.DeepEqual(got, []string{"KHR_draco_mesh_compression"}) {
		t.Error(got)
	}
}
