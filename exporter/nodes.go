package exporter

import (
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

func (e *exporter) isBone(node int) bool {
	if e.scene.Nodes[node].Bone {
		return true
	}
	_, ok := e.scene.Settings.Humanoid.BoneOf(node)
	return ok
}

// worldPositions returns the glTF space position of every node. Nodes
// carry no rotation, so positions are sums of translations.
func (e *exporter) worldPositions() []*geom.Vector3 {
	world := make([]*geom.Vector3, len(e.scene.Nodes))
	var at func(i int) *geom.Vector3
	at = func(i int) *geom.Vector3 {
		if world[i] != nil {
			return world[i]
		}
		n := e.scene.Nodes[i]
		p := geom.NewVector3FromArray(geom.GltfPosition(n.Translation))
		if n.Parent >= 0 {
			p = at(n.Parent).Add(p)
		}
		world[i] = p
		return p
	}
	for i := range e.scene.Nodes {
		at(i)
	}
	return world
}

// writeNodes writes the node forest and a single skin whose joints are the
// bone nodes in node order. Inverse bind matrices only translate, since
// the skeleton is exported in its bind pose.
func (e *exporter) writeNodes() error {
	s := e.scene
	for _, n := range s.Nodes {
		e.doc.Nodes = append(e.doc.Nodes, &gltf.Node{
			Name:        n.Name,
			Translation: geom.GltfPosition(n.Translation),
			Rotation:    [4]float32{0, 0, 0, 1},
			Scale:       [3]float32{1, 1, 1},
		})
	}
	var roots []uint32
	for i, n := range s.Nodes {
		if n.Parent < 0 {
			roots = append(roots, uint32(i))
			continue
		}
		p := e.doc.Nodes[n.Parent]
		p.Children = append(p.Children, uint32(i))
	}
	e.doc.Scenes = []*gltf.Scene{{Name: "Scene", Nodes: roots}}
	e.doc.Scene = gltf.Index(0)

	world := e.worldPositions()
	var joints []uint32
	var ibm [][16]float32
	var rootBones []int
	for i, n := range s.Nodes {
		if !e.isBone(i) {
			continue
		}
		if n.Parent < 0 || !e.isBone(n.Parent) {
			rootBones = append(rootBones, i)
		}
		e.joints[i] = len(joints)
		joints = append(joints, uint32(i))
		p := world[i]
		ibm = append(ibm, [16]float32(*geom.NewTranslateMatrix4(-p.X, -p.Y, -p.Z)))
	}
	if len(joints) == 0 {
		return nil
	}
	if e.version() == vrm.Version0 && len(rootBones) != 1 {
		return vrmerr.New(vrmerr.InvalidDocument, "exporter", "armature has %d root bones, VRM 0.x needs one", len(rootBones))
	}
	e.doc.Skins = append(e.doc.Skins, &gltf.Skin{
		Name:                "skin",
		Joints:              joints,
		Skeleton:            gltf.Index(uint32(rootBones[0])),
		InverseBindMatrices: gltf.Index(e.b.WriteMatrices(ibm)),
	})
	e.skin = 0
	e.log.WithField("joints", len(joints)).Debug("skin written")
	return nil
}
