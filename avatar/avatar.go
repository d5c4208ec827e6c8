// Package avatar is the host agnostic avatar model built by the importer
// and consumed by the exporter. Entities live in per-avatar slices and
// refer to each other by index.
package avatar

import (
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/vrm"
	"github.com/qmuntal/gltf"
)

type Node struct {
	Name        string
	Translation [3]float32
	Rotation    [4]float32
	Scale       [3]float32
	Children    []int
	Parent      int
	Mesh        int
	Skin        int
}

func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
		Parent:   -1,
		Mesh:     -1,
		Skin:     -1,
	}
}

type MorphTarget struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32
}

// Primitive vertex data is in glTF space, except TexCoords, whose V axis
// points up as the host expects.
type Primitive struct {
	Indices   [][3]uint32
	Material  int
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][][2]float32
	Colors    [][][4]float32
	Joints    [][4]uint16
	Weights   [][4]float32
	Targets   []*MorphTarget
}

func (p *Primitive) VertexCount() int {
	return len(p.Positions)
}

type Mesh struct {
	Name       string
	Primitives []*Primitive
	// TargetNames are shared by every primitive of the mesh.
	TargetNames []string
	Weights     []float32
}

// TargetIndex returns the position of a morph target name, or -1.
func (m *Mesh) TargetIndex(name string) int {
	for i, n := range m.TargetNames {
		if n == name {
			return i
		}
	}
	return -1
}

type Skin struct {
	Name                string
	Joints              []int
	Skeleton            int
	InverseBindMatrices [][16]float32
}

// Bone is a skeleton bone inferred for the host, in host coordinates.
type Bone struct {
	Name   string
	Node   int
	Parent int
	Head   [3]float32
	Tail   [3]float32
}

type Image struct {
	Name     string
	MimeType string
	Data     []byte
	// Handle is where the image sink stored the image, if it did.
	Handle string
}

type Sampler struct {
	MagFilter gltf.MagFilter
	MinFilter gltf.MinFilter
	WrapS     gltf.WrappingMode
	WrapT     gltf.WrappingMode
}

type Texture struct {
	Image   int
	Sampler int
}

type Meta struct {
	Name                 string
	Version              string
	Authors              []string
	CopyrightInformation string
	ContactInformation   string
	References           []string
	ThirdPartyLicenses   string
	// Thumbnail is an image index, -1 when absent.
	Thumbnail int

	AvatarPermission    string
	CommercialUsage     string
	CreditNotation      string
	Modification        string
	AllowViolent        bool
	AllowSexual         bool
	AllowPolitical      bool
	AllowAntisocial     bool
	AllowRedistribution bool

	LicenseName        string
	LicenseURL         string
	OtherLicenseURL    string
	OtherPermissionURL string
}

// Humanoid maps VRM 1.0 human bone names to node indices.
type Humanoid struct {
	Bones map[string]int
}

// BoneOf returns the human bone name of a node.
func (h *Humanoid) BoneOf(node int) (string, bool) {
	for name, n := range h.Bones {
		if n == node {
			return name, true
		}
	}
	return "", false
}

func (h *Humanoid) Node(bone string) (int, bool) {
	n, ok := h.Bones[bone]
	return n, ok
}

// Nodes returns the inverse mapping, node index to bone name.
func (h *Humanoid) Nodes() map[int]string {
	m := make(map[int]string, len(h.Bones))
	for name, n := range h.Bones {
		m[n] = name
	}
	return m
}

type MeshAnnotation struct {
	Mesh int
	// Flag is a VRM 1.0 annotation type (auto, both, thirdPersonOnly,
	// firstPersonOnly).
	Flag string
}

type FirstPerson struct {
	Bone            int
	BoneOffset      [3]float64
	MeshAnnotations []MeshAnnotation
}

type RangeMap struct {
	InputMaxValue float64
	OutputScale   float64
	Curve         []float64
}

type LookAt struct {
	Type               string
	OffsetFromHeadBone [3]float64
	HorizontalInner    *RangeMap
	HorizontalOuter    *RangeMap
	VerticalDown       *RangeMap
	VerticalUp         *RangeMap
}

type MorphBind struct {
	Mesh   int
	Target string
	// Weight is in 0..1.
	Weight float64
}

type MaterialColorBind struct {
	Material int
	Type     string
	Value    [4]float64
}

type TextureTransformBind struct {
	Material int
	Scale    [2]float64
	Offset   [2]float64
}

type Expression struct {
	Name string
	// Preset is a VRM 1.0 preset name, empty for custom expressions.
	Preset                string
	IsBinary              bool
	MorphBinds            []MorphBind
	MaterialColorBinds    []MaterialColorBind
	TextureTransformBinds []TextureTransformBind
	OverrideBlink         string
	OverrideLookAt        string
	OverrideMouth         string
}

type Collider struct {
	Node    int
	Offset  [3]float64
	Radius  float64
	Capsule bool
	Tail    [3]float64
}

type ColliderGroup struct {
	Name      string
	Colliders []int
}

type SpringJoint struct {
	Node         int
	HitRadius    float64
	Stiffness    float64
	GravityPower float64
	GravityDir   [3]float64
	DragForce    float64
}

type Spring struct {
	Name           string
	Center         int
	ColliderGroups []int
	Joints         []SpringJoint
	// ChainRoots is set for VRM 0.x bone groups, whose joints name the
	// roots of the chains they move.
	ChainRoots bool
}

type SpringBone struct {
	Colliders      []Collider
	ColliderGroups []ColliderGroup
	Springs        []Spring
}

// Avatar is an imported VRM document.
type Avatar struct {
	Version   vrm.Version
	Generator string

	Nodes     []*Node
	Roots     []int
	Meshes    []*Mesh
	Skins     []*Skin
	Materials []*material.Material
	Textures  []*Texture
	Samplers  []*Sampler
	Images    []*Image
	Bones     []*Bone

	Meta        Meta
	Humanoid    Humanoid
	FirstPerson FirstPerson
	LookAt      LookAt
	Expressions []*Expression
	SpringBone  SpringBone
	Constraints map[int]*vrm.Constraint
}

func New() *Avatar {
	return &Avatar{
		Humanoid:    Humanoid{Bones: map[string]int{}},
		FirstPerson: FirstPerson{Bone: -1},
		Meta:        Meta{Thumbnail: -1},
		Constraints: map[int]*vrm.Constraint{},
	}
}

// NodeByName returns the first node with name, or -1.
func (a *Avatar) NodeByName(name string) int {
	for i, n := range a.Nodes {
		if n.Name == name {
			return i
		}
	}
	return -1
}

// Parents returns the parent index of every node.
func (a *Avatar) Parents() []int {
	parents := make([]int, len(a.Nodes))
	for i, n := range a.Nodes {
		parents[i] = n.Parent
	}
	return parents
}

// MeshNode returns the first node that instantiates mesh, or -1.
func (a *Avatar) MeshNode(mesh int) int {
	for i, n := range a.Nodes {
		if n.Mesh == mesh {
			return i
		}
	}
	return -1
}

// Expression returns the expression with a preset or custom name.
func (a *Avatar) Expression(name string) *Expression {
	for _, e := range a.Expressions {
		if e.Preset == name || (e.Preset == "" && e.Name == name) {
			return e
		}
	}
	return nil
}
