// Package vrmtest builds small VRM documents for tests.
package vrmtest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/gltfutil"
	"github.com/binzume/vrmconv/vrm"
	"github.com/qmuntal/gltf"
)

type Bone struct {
	Name        string
	Parent      int
	Translation [3]float32
}

// Skeleton is a minimal humanoid in glTF space. Node 0 is the scene root,
// every other node is a required human bone.
var Skeleton = []Bone{
	{"root", -1, [3]float32{0, 0, 0}},
	{"hips", 0, [3]float32{0, 1, 0}},
	{"spine", 1, [3]float32{0, 0.1, 0}},
	{"chest", 2, [3]float32{0, 0.1, 0}},
	{"neck", 3, [3]float32{0, 0.2, 0}},
	{"head", 4, [3]float32{0, 0.1, 0}},
	{"leftUpperLeg", 1, [3]float32{0.1, -0.1, 0}},
	{"leftLowerLeg", 6, [3]float32{0, -0.4, 0}},
	{"leftFoot", 7, [3]float32{0, -0.4, 0}},
	{"rightUpperLeg", 1, [3]float32{-0.1, -0.1, 0}},
	{"rightLowerLeg", 9, [3]float32{0, -0.4, 0}},
	{"rightFoot", 10, [3]float32{0, -0.4, 0}},
	{"leftUpperArm", 3, [3]float32{0.2, 0.1, 0}},
	{"leftLowerArm", 12, [3]float32{0.2, 0, 0}},
	{"leftHand", 13, [3]float32{0.2, 0, 0}},
	{"rightUpperArm", 3, [3]float32{-0.2, 0.1, 0}},
	{"rightLowerArm", 15, [3]float32{-0.2, 0, 0}},
	{"rightHand", 16, [3]float32{-0.2, 0, 0}},
}

// BodyNode is the node carrying the skinned mesh.
var BodyNode = len(Skeleton)

// PNG is a 2x2 opaque image.
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		img.Set(i%2, i/2, color.RGBA{uint8(i * 60), 128, 255, 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Positions, UV and weights of the single triangle of the body mesh.
var (
	Positions = [][3]float32{{0, 1, 0}, {0.1, 1, 0}, {0, 1.1, 0}}
	Normals   = [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	TexCoords = [][2]float32{{0, 0}, {1, 0}, {0, 0.25}}
	Smile     = [][3]float32{{0, 0, 0}, {0, 0.01, 0}, {0, 0, 0.02}}
)

func build() (*gltf.Document, *gltfutil.Builder) {
	doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0", Generator: "vrmtest"}}
	b := gltfutil.NewBuilder(doc)
	for i, bone := range Skeleton {
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        bone.Name,
			Translation: bone.Translation,
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
		})
		if bone.Parent >= 0 {
			p := doc.Nodes[bone.Parent]
			p.Children = append(p.Children, uint32(i))
		}
	}
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name:     "body",
		Mesh:     gltf.Index(0),
		Skin:     gltf.Index(0),
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	})
	doc.Nodes[0].Children = append(doc.Nodes[0].Children, uint32(BodyNode))
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(0)

	bounds := geom.NewBounds()
	for _, p := range Positions {
		bounds.Add(p)
	}
	targetBounds := geom.NewBounds()
	for _, p := range Smile {
		targetBounds.Add(p)
	}
	attrs := gltf.Attribute{
		gltf.POSITION:   b.WriteVec3(Positions, gltf.TargetArrayBuffer, bounds),
		gltf.NORMAL:     b.WriteVec3(Normals, gltf.TargetArrayBuffer, nil),
		gltf.TEXCOORD_0: b.WriteVec2(TexCoords, gltf.TargetArrayBuffer),
		gltf.JOINTS_0:   b.WriteJoints([][4]uint16{{0, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 0, 0}}),
		gltf.WEIGHTS_0:  b.WriteVec4([][4]float32{{1, 0, 0, 0}, {0.5, 0.5, 0, 0}, {1, 0, 0, 0}}, gltf.TargetArrayBuffer),
	}
	target := gltf.Attribute{gltf.POSITION: b.WriteVec3(Smile, gltf.TargetArrayBuffer, targetBounds)}
	doc.Meshes = []*gltf.Mesh{{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Attributes: attrs,
			Indices:    gltf.Index(b.WriteIndices([]uint32{0, 1, 2})),
			Material:   gltf.Index(0),
			Targets:    []gltf.Attribute{target},
		}},
		Extras: map[string]interface{}{"targetNames": []string{"smile"}},
	}}

	var joints []uint32
	var ibm [][16]float32
	for i := 1; i < len(Skeleton); i++ {
		joints = append(joints, uint32(i))
		ibm = append(ibm, [16]float32(*geom.NewMatrix4()))
	}
	doc.Skins = []*gltf.Skin{{
		Name:                "skin",
		Joints:              joints,
		InverseBindMatrices: gltf.Index(b.WriteMatrices(ibm)),
	}}

	img := b.WriteImage("face", "image/png", PNG())
	doc.Samplers = []*gltf.Sampler{{MagFilter: gltf.MagLinear, MinFilter: gltf.MinLinear}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(img), Sampler: gltf.Index(0)}}
	doc.Materials = []*gltf.Material{{
		Name: "skin",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
	}}
	return doc, b
}

func humanBones() map[string]int {
	m := map[string]int{}
	for i, b := range Skeleton[1:] {
		m[b.Name] = i + 1
	}
	return m
}

// Humanoid0 returns a VRM 0.x document and its binary chunk.
func Humanoid0() (*gltf.Document, []byte) {
	doc, b := build()
	ext := vrm.NewVRM()
	ext.ExporterVersion = "vrmtest"
	ext.Meta = vrm.Metadata{
		Title:                "test",
		Version:              "1",
		Author:               "tester",
		Texture:              new(int),
		AllowedUserName:      vrm.UserEveryone,
		ViolentUssageName:    vrm.UsageDisallow,
		SexualUssageName:     vrm.UsageDisallow,
		CommercialUssageName: vrm.UsageAllow,
		LicenseName:          "CC0",
	}
	for _, name := range boneNames() {
		ext.Humanoid.Bones = append(ext.Humanoid.Bones, &vrm.Bone{Bone: name, Node: humanBones()[name], UseDefaultValues: true})
	}
	ext.FirstPerson = &vrm.FirstPerson{
		FirstPersonBone:       5,
		FirstPersonBoneOffset: vrm.Vec3{Y: 0.06},
		MeshAnnotations:       []*vrm.MeshAnnotation{{Mesh: 0, FirstPersonFlag: "Auto"}},
		LookAtTypeName:        "Bone",
		LookAtHorizontalInner: &vrm.DegreeMap{Curve: []float64{0, 0, 0, 1, 1, 1, 1, 0}, XRange: 90, YRange: 10},
	}
	ext.BlendShapeMaster.BlendShapeGroups = []*vrm.BlendShapeGroup{
		{Name: "Joy", PresetName: "joy", Binds: []*vrm.BlendShapeBind{{Mesh: 0, Index: 0, Weight: 100}}},
		{Name: "Blush", PresetName: "unknown", MaterialValues: []*vrm.MaterialValueBind{
			{MaterialName: "skin", PropertyName: "_Color", TargetValue: []float64{1, 0.5, 0.5, 1}},
		}},
	}
	ext.SecondaryAnimation = &vrm.SecondaryAnimation{
		ColliderGroups: []*vrm.ColliderGroup{{Node: 5, Colliders: []*vrm.Collider{{Offset: vrm.Vec3{Y: 0.05}, Radius: 0.1}}}},
		BoneGroups: []*vrm.SecondaryAnimationBoneGroup{{
			Comment: "hair", Stiffiness: 1, GravityDir: vrm.Vec3{Y: -1}, DragForce: 0.4, Center: -1,
			HitRadius: 0.02, Bones: []int{12}, ColliderGroups: []int{0},
		}},
	}
	mp := vrm.NewMaterialProperty("skin")
	mp.Shader = "VRM/MToon"
	mp.FloatProperties = map[string]float64{"_MToonVersion": 38, "_BlendMode": 0, "_ShadeShift": 0, "_ShadeToony": 0.9, "_CullMode": 2}
	mp.VectorProperties = map[string][]float64{"_Color": {1, 1, 1, 1}, "_ShadeColor": {0.5, 0.5, 0.5, 1}, "_MainTex": {0, 0, 1, 1}}
	mp.TextureProperties = map[string]int{"_MainTex": 0}
	mp.KeywordMap = map[string]bool{}
	mp.TagMap = map[string]string{"RenderType": "Opaque"}
	ext.MaterialProperties = []*vrm.MaterialProperty{mp}

	doc.Extensions = gltf.Extensions{vrm.ExtensionName: ext}
	doc.ExtensionsUsed = []string{vrm.ExtensionName}
	return doc, b.Bytes()
}

// Humanoid1 returns a VRM 1.0 document and its binary chunk.
func Humanoid1() (*gltf.Document, []byte) {
	doc, b := build()
	ext := vrm.NewVRMC()
	ext.Meta = vrm.Meta1{
		Name:             "test",
		Authors:          []string{"tester"},
		LicenseURL:       vrm.DefaultLicenseURL,
		AvatarPermission: vrm.AvatarPermissionEveryone,
		CommercialUsage:  vrm.CommercialPersonalNonProfit,
		CreditNotation:   vrm.CreditRequired,
		Modification:     vrm.ModificationAllow,
		ThumbnailImage:   new(int),
	}
	for name, n := range humanBones() {
		ext.Humanoid.HumanBones[name] = &vrm.HumanBone1{Node: n}
	}
	ext.FirstPerson = &vrm.FirstPerson1{MeshAnnotations: []*vrm.MeshAnnotation1{{Node: BodyNode, Type: "auto"}}}
	ext.LookAt = &vrm.LookAt1{Type: "bone", OffsetFromHeadBone: [3]float64{0, 0.06, 0}}
	ext.Expressions = &vrm.Expressions1{
		Preset: map[string]*vrm.Expression1{"happy": {MorphTargetBinds: []*vrm.MorphTargetBind{{Node: BodyNode, Index: 0, Weight: 1}}}},
		Custom: map[string]*vrm.Expression1{"blush": {MaterialColorBinds: []*vrm.MaterialColorBind{{Material: 0, Type: "color", TargetValue: [4]float64{1, 0.5, 0.5, 1}}}}},
	}
	mtoon := vrm.NewMToon()
	mtoon.ShadeMultiplyTexture = &vrm.TextureInfo{Index: 0}
	doc.Materials[0].Extensions = gltf.Extensions{vrm.ExtensionMToon: mtoon}
	center := 5
	sb := &vrm.SpringBone{
		SpecVersion:    "1.0",
		Colliders:      []*vrm.Collider1{{Node: 5, Shape: vrm.ColliderShape{Sphere: &vrm.Sphere{Offset: [3]float64{0, 0.05, 0}, Radius: 0.1}}}},
		ColliderGroups: []*vrm.ColliderGroup1{{Name: "head", Colliders: []int{0}}},
		Springs: []*vrm.Spring{{
			Name:           "hair",
			Center:         &center,
			ColliderGroups: []int{0},
			Joints: []*vrm.SpringJoint{
				{Node: 12, HitRadius: 0.02, Stiffness: 1, GravityDir: [3]float64{0, -1, 0}, DragForce: 0.4},
				{Node: 13, HitRadius: 0.02, Stiffness: 1, GravityDir: [3]float64{0, -1, 0}, DragForce: 0.4},
			},
		}},
	}
	doc.Extensions = gltf.Extensions{vrm.ExtensionVRMC: ext, vrm.ExtensionSpringBone: sb}
	doc.ExtensionsUsed = []string{vrm.ExtensionVRMC, vrm.ExtensionSpringBone, vrm.ExtensionMToon}
	return doc, b.Bytes()
}

// Plain returns the fixture without VRM extensions. Its buffer carries the
// binary data.
func Plain() *gltf.Document {
	doc, b := build()
	doc.Buffers[0].Data = b.Bytes()
	return doc
}

func boneNames() []string {
	var names []string
	for _, b := range Skeleton[1:] {
		names = append(names, b.Name)
	}
	return names
}

// Encode packs doc and bin as a GLB file.
func Encode(doc *gltf.Document, bin []byte) []byte {
	data, err := glb.Encode(doc, bin)
	if err != nil {
		panic(err)
	}
	return data
}
