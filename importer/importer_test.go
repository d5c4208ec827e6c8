package importer

import (
	"math"
	"testing"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/gltfutil"
	"github.com/binzume/vrmconv/internal/vrmtest"
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func nearly(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestMinimalDocumentMissingBones(t *testing.T) {
	src := `{"asset":{"version":"2.0"},"nodes":[{"name":"root"}],"scenes":[{"nodes":[0]}],` +
		`"extensions":{"VRM":{"meta":{"title":"t","licenseName":"CC0"},"humanoid":{"humanBones":[]},"firstPerson":{},` +
		`"blendShapeMaster":{"blendShapeGroups":[]},"secondaryAnimation":{"boneGroups":[],"colliderGroups":[]}}}}`
	data, err := glb.Build([]byte(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	av, warn, err := Import(data, &Options{Logger: quietLogger()})
	if !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Fatalf("expected UnresolvedHumanBone, got %v", err)
	}
	if warn.Len() != 0 {
		t.Errorf("warnings: %v", warn.List())
	}
	if av == nil || len(av.Nodes) != 1 || av.Nodes[0].Name != "root" || len(av.Meshes) != 0 {
		t.Fatalf("avatar: %s", spew.Sdump(av))
	}
	if av.Meta.Name != "t" || av.Version != vrm.Version0 {
		t.Errorf("meta %+v", av.Meta)
	}
}

func TestImportVRM0(t *testing.T) {
	doc, bin := vrmtest.Humanoid0()
	sink := texture.NewMemorySink()
	av, warn, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger(), ImageSink: sink, ExtractTextures: true})
	if err != nil {
		t.Fatal(err)
	}
	if warn.Len() != 0 {
		t.Errorf("warnings: %v", warn.List())
	}
	if len(av.Nodes) != len(vrmtest.Skeleton)+1 || len(av.Roots) != 1 || av.Roots[0] != 0 {
		t.Fatalf("nodes %d roots %v", len(av.Nodes), av.Roots)
	}
	if n, _ := av.Humanoid.Node("hips"); n != 1 {
		t.Errorf("hips -> %d", n)
	}
	if av.Meta.Name != "test" || av.Meta.Authors[0] != "tester" || av.Meta.Thumbnail != 0 {
		t.Errorf("meta %+v", av.Meta)
	}
	if av.Meta.CommercialUsage != vrm.CommercialPersonalProfit || av.Meta.AvatarPermission != vrm.AvatarPermissionEveryone {
		t.Errorf("permissions %+v", av.Meta)
	}

	prim := av.Meshes[0].Primitives[0]
	if len(prim.Indices) != 1 || prim.Indices[0] != [3]uint32{0, 1, 2} {
		t.Errorf("indices %v", prim.Indices)
	}
	if uv := prim.TexCoords[0][2]; !nearly(uv[1], 0.75) {
		t.Errorf("uv %v not flipped", uv)
	}
	if prim.Targets[0].Name != "smile" || av.Meshes[0].TargetNames[0] != "smile" {
		t.Errorf("targets %v", av.Meshes[0].TargetNames)
	}

	joy := av.Expression("happy")
	if joy == nil || joy.Name != "Joy" || len(joy.MorphBinds) != 1 || joy.MorphBinds[0].Weight != 1 || joy.MorphBinds[0].Target != "smile" {
		t.Fatalf("joy %s", spew.Sdump(joy))
	}
	blush := av.Expression("Blush")
	if blush == nil || blush.Preset != "" || len(blush.MaterialColorBinds) != 1 || blush.MaterialColorBinds[0].Type != "color" {
		t.Fatalf("blush %s", spew.Sdump(blush))
	}

	if av.FirstPerson.Bone != 5 || av.FirstPerson.MeshAnnotations[0].Flag != "auto" || av.LookAt.Type != "bone" {
		t.Errorf("first person %+v look at %+v", av.FirstPerson, av.LookAt)
	}
	if r := av.LookAt.HorizontalInner; r == nil || r.InputMaxValue != 90 || r.OutputScale != 10 || len(r.Curve) != 8 {
		t.Errorf("range map %+v", r)
	}

	sb := av.SpringBone
	if len(sb.Colliders) != 1 || sb.Colliders[0].Node != 5 || len(sb.Springs) != 1 || !sb.Springs[0].ChainRoots {
		t.Fatalf("spring bone %s", spew.Sdump(sb))
	}
	if j := sb.Springs[0].Joints[0]; j.Node != 12 || j.Stiffness != 1 || j.DragForce != 0.4 {
		t.Errorf("joint %+v", j)
	}

	if len(av.Materials) != 1 || av.Materials[0].Kind() != material.KindMToon0 {
		t.Fatalf("materials %v", av.Materials)
	}
	if len(av.Images) != 1 || av.Images[0].Handle != "face.png" || len(sink.Names()) != 1 {
		t.Errorf("images %v sink %v", av.Images, sink.Names())
	}
	if len(av.Skins) != 1 || len(av.Skins[0].InverseBindMatrices) != len(vrmtest.Skeleton)-1 {
		t.Errorf("skins %v", av.Skins)
	}
}

func TestImportVRM1(t *testing.T) {
	doc, bin := vrmtest.Humanoid1()
	av, warn, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if warn.Len() != 0 {
		t.Errorf("warnings: %v", warn.List())
	}
	if av.Version != vrm.Version1 || len(av.Humanoid.Bones) != len(vrmtest.Skeleton)-1 {
		t.Fatalf("version %v bones %v", av.Version, av.Humanoid.Bones)
	}
	happy := av.Expression("happy")
	if happy == nil || happy.MorphBinds[0].Mesh != 0 || happy.MorphBinds[0].Target != "smile" {
		t.Fatalf("happy %s", spew.Sdump(happy))
	}
	if av.Expression("blush") == nil {
		t.Error("custom expression missing")
	}
	if av.FirstPerson.MeshAnnotations[0].Mesh != 0 || av.LookAt.OffsetFromHeadBone[1] != 0.06 {
		t.Errorf("first person %+v", av.FirstPerson)
	}
	sb := av.SpringBone
	if len(sb.Springs) != 1 || sb.Springs[0].Center != 5 || len(sb.Springs[0].Joints) != 2 || sb.Springs[0].ChainRoots {
		t.Errorf("springs %s", spew.Sdump(sb.Springs))
	}
	if av.Materials[0].Kind() != material.KindMToon1 {
		t.Errorf("material kind %v", av.Materials[0].Kind())
	}
	if av.Meta.Thumbnail != 0 || av.Meta.Modification != vrm.ModificationAllow {
		t.Errorf("meta %+v", av.Meta)
	}
}

func TestHierarchyViolation(t *testing.T) {
	doc, bin := vrmtest.Humanoid1()
	ext := doc.Extensions[vrm.ExtensionVRMC].(*vrm.VRMC)
	// spine is mapped to a node outside of the hips subtree.
	ext.Humanoid.HumanBones["spine"] = &vrm.HumanBone1{Node: 0}
	_, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()})
	if !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Errorf("err %v", err)
	}
}

func TestSkipNonTriangles(t *testing.T) {
	doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0"}}
	b := gltfutil.NewBuilder(doc)
	pos := b.WriteVec3([][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, gltf.TargetArrayBuffer, nil)
	doc.Meshes = []*gltf.Mesh{
		{Name: "line", Primitives: []*gltf.Primitive{{
			Attributes: gltf.Attribute{gltf.POSITION: pos},
			Mode:       gltf.PrimitiveLines,
		}}},
		{Name: "tri", Primitives: []*gltf.Primitive{{
			Attributes: gltf.Attribute{gltf.POSITION: pos},
			Mode:       gltf.PrimitiveTriangles,
		}}},
	}
	doc.Nodes = []*gltf.Node{{Name: "line", Mesh: gltf.Index(0)}, {Name: "tri", Mesh: gltf.Index(1)}}
	data, err := glb.Encode(doc, b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	av, warn, err := Import(data, &Options{Logger: quietLogger(), AllowPlainGLTF: true})
	if err != nil {
		t.Fatal(err)
	}
	if !warn.Has(vrmerr.UnsupportedPrimitiveMode) {
		t.Errorf("line primitive not reported: %v", warn.List())
	}
	if len(av.Meshes) != 2 || len(av.Meshes[0].Primitives) != 0 || len(av.Meshes[1].Primitives) != 1 {
		t.Errorf("meshes %s", spew.Sdump(av.Meshes))
	}
	if av.Nodes[1].Mesh != 1 {
		t.Errorf("mesh reference %d", av.Nodes[1].Mesh)
	}
	_, _, err = Import(data, &Options{Logger: quietLogger()})
	if !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("plain glTF accepted: %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	doc, bin := vrmtest.Humanoid0()
	doc.Extensions[vrm.ExtensionName].(*vrm.VRM).Meta.LicenseName = "CC_BY_NC_ND"
	data := vrmtest.Encode(doc, bin)
	if _, _, err := Import(data, &Options{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.LicenseRestricted) {
		t.Errorf("ND license: %v", err)
	}
	if _, _, err := Import(data, &Options{Logger: quietLogger(), LicenseConfirmed: true}); err != nil {
		t.Errorf("confirmed: %v", err)
	}

	doc, bin = vrmtest.Humanoid0()
	doc.Extensions[vrm.ExtensionName].(*vrm.VRM).Meta.OtherPermissionURL = "https://hub.vroid.com/characters/123/models/456"
	if _, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.LicenseRestricted) {
		t.Errorf("VRoid Hub: %v", err)
	}

	doc, bin = vrmtest.Humanoid1()
	doc.Extensions[vrm.ExtensionVRMC].(*vrm.VRMC).Meta.Modification = vrm.ModificationProhibited
	if _, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.LicenseRestricted) {
		t.Errorf("prohibited: %v", err)
	}

	doc, bin = vrmtest.Humanoid0()
	doc.ExtensionsRequired = []string{vrm.ExtensionDraco}
	if _, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.UnsupportedCompression) {
		t.Errorf("draco: %v", err)
	}
}

func TestParseGenerator(t *testing.T) {
	for _, c := range []struct {
		gen    string
		ok     bool
		legacy bool
	}{
		{"UniGLTF-1.15", true, true},
		{"UniGLTF-1.16", true, false},
		{"UniGLTF-1.27", true, false},
		{"UniGLTF-2.0", true, false},
		{"UniGLTF-0.9.1", true, true},
		{"UniGLTF-x.y", false, false},
		{"UniVRM-0.45", true, false},
		{"Khronos glTF Blender I/O v3.6.27", true, false},
		{"", false, false},
	} {
		_, ok := ParseGenerator(c.gen)
		if ok != c.ok || LegacyUVFlip(c.gen) != c.legacy {
			t.Errorf("%q: ok=%v legacy=%v", c.gen, ok, LegacyUVFlip(c.gen))
		}
	}
	v, _ := ParseGenerator("UniGLTF-1.27")
	if v.Name != "UniGLTF" || v.Major != 1 || v.Minor != 27 {
		t.Errorf("%+v", v)
	}
}

func TestLegacyUV(t *testing.T) {
	doc, bin := vrmtest.Humanoid0()
	doc.Asset.Generator = "UniGLTF-1.15"
	av, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if uv := av.Meshes[0].Primitives[0].TexCoords[0][2]; !nearly(uv[1], 1.25) {
		t.Errorf("legacy uv %v", uv)
	}
}

func TestInferBones(t *testing.T) {
	doc, bin := vrmtest.Humanoid0()
	av, _, err := Import(vrmtest.Encode(doc, bin), &Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if len(av.Bones) != len(vrmtest.Skeleton)-1 {
		t.Fatalf("%d bones", len(av.Bones))
	}
	byNode := map[int]*avatar.Bone{}
	for _, b := range av.Bones {
		byNode[b.Node] = b
	}
	if _, ok := byNode[vrmtest.BodyNode]; ok {
		t.Error("mesh leaf became a bone")
	}
	hips := byNode[1]
	if hips.Parent != -1 || hips.Head != [3]float32{0, 0, 1} {
		t.Errorf("hips %+v", hips)
	}
	// glTF +X is host -X.
	arm := byNode[12]
	if !nearly(arm.Head[0], -0.2) || !nearly(arm.Head[2], 1.3) || !nearly(arm.Tail[0], -0.4) {
		t.Errorf("left upper arm %+v", arm)
	}
	head := byNode[5]
	if !nearly(head.Tail[2]-head.Head[2], boneTailOffset) {
		t.Errorf("leaf tail %+v", head)
	}
	if av.Bones[0] != hips {
		t.Error("bones are not in traversal order")
	}
}

func TestRelocateSharedBones(t *testing.T) {
	nodes := []*avatar.Node{avatar.NewNode("a"), avatar.NewNode("b"), avatar.NewNode("c")}
	nodes[0].Translation = [3]float32{0, 2, 0}
	nodes[0].Children = []int{1}
	nodes[1].Parent = 0
	nodes[1].Translation = [3]float32{0, 1, 0}
	nodes[1].Children = []int{2}
	nodes[2].Parent = 1
	nodes[2].Translation = [3]float32{0, 1, 0}
	b := &boneBuilder{nodes: nodes, byNode: map[int]int{}, children: map[int][]int{}}
	// b is built first as a root, then reached again from a.
	b.add(1, -1, &geom.Vector3{})
	b.add(0, -1, &geom.Vector3{})
	b.tails()
	if len(b.bones) != 3 {
		t.Fatalf("%d bones", len(b.bones))
	}
	bb := b.bones[b.byNode[1]]
	if bb.Parent != b.byNode[0] || bb.Head != [3]float32{0, 0, 3} {
		t.Errorf("relocated %+v", bb)
	}
	if c := b.bones[b.byNode[2]]; c.Head != [3]float32{0, 0, 4} || !nearly(c.Tail[2], 4.01) {
		t.Errorf("child %+v", c)
	}
}
