package exporter

import (
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/vrm"
)

// MeshHandle identifies a host mesh. The exporter only hands it back to
// the MeshFlattener.
type MeshHandle interface{}

type GroupWeight struct {
	Group  int
	Weight float32
}

// Corner is one triangle corner. Normal and UVs belong to the corner,
// the position to the shared vertex.
type Corner struct {
	Vertex int
	Normal [3]float32
	// UVs has one entry per UV layer, V pointing up.
	UVs [][2]float32
}

type Triangle struct {
	Material int
	Corners  [3]Corner
}

// ShapeKey holds per vertex deltas. Normals may be nil.
type ShapeKey struct {
	Name    string
	Offsets [][3]float32
	Normals [][3]float32
}

// FlatMesh is a triangulated host mesh in host coordinates, relative to
// the node that carries it.
type FlatMesh struct {
	Positions [][3]float32
	// Groups are vertex group names, matched against bone node names.
	Groups    []string
	Weights   [][]GroupWeight
	Triangles []Triangle
	ShapeKeys []ShapeKey
}

type MeshFlattener interface {
	FlattenMesh(handle MeshHandle, applyModifiers bool) (*FlatMesh, error)
}

type ProgressSink interface {
	ReportProgress(ratio float64)
}

type SceneMesh struct {
	Name   string
	Handle MeshHandle
	// Skeleton is the node that receives vertices without weights, -1 to
	// fall back to hips.
	Skeleton int
}

type SceneNode struct {
	Name   string
	Parent int
	// Translation is relative to the parent, in host coordinates.
	Translation [3]float32
	// Bone nodes become joints of the skin. Human bones always do.
	Bone bool
	Mesh *SceneMesh
}

// Settings is the avatar part of a scene. Node references are scene node
// indices; MeshAnnotation.Mesh and MorphBind.Mesh name the node carrying
// the mesh. Meta.Thumbnail is a scene image index.
type Settings struct {
	Meta        avatar.Meta
	Humanoid    avatar.Humanoid
	FirstPerson avatar.FirstPerson
	LookAt      avatar.LookAt
	Expressions []*avatar.Expression
	SpringBone  avatar.SpringBone
	Constraints map[int]*vrm.Constraint
}

// Scene is the host side of an export. Nodes are written in order, so
// node i of the document is Nodes[i].
type Scene struct {
	Generator string
	Nodes     []*SceneNode
	Materials []*material.Material
	Textures  []*avatar.Texture
	Samplers  []*avatar.Sampler
	Images    []*avatar.Image
	Settings  Settings
}

type ExportScene interface {
	MeshFlattener
	Scene() *Scene
}

func (s *Scene) children(node int) []int {
	var ret []int
	for i, n := range s.Nodes {
		if n.Parent == node {
			ret = append(ret, i)
		}
	}
	return ret
}
