package importer

import (
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// nodeTRS returns the local transform of n. A matrix, when given, is
// decomposed.
func nodeTRS(n *gltf.Node) ([3]float32, [4]float32, [3]float32) {
	if n.Matrix != identityMatrix && n.Matrix != [16]float32{} {
		t, r, s := geom.NewMatrix4FromSlice(n.Matrix[:]).Decompose()
		return t.Array(), r.Array(), s.Array()
	}
	r, s := n.Rotation, n.Scale
	if r == [4]float32{} {
		r = [4]float32{0, 0, 0, 1}
	}
	if s == [3]float32{} {
		s = [3]float32{1, 1, 1}
	}
	return n.Translation, r, s
}

func (im *importer) importNodes() error {
	parents, err := im.vrm.NodeParents()
	if err != nil {
		return err
	}
	for i, n := range im.doc.Nodes {
		node := avatar.NewNode(n.Name)
		node.Translation, node.Rotation, node.Scale = nodeTRS(n)
		node.Parent = parents[i]
		for _, c := range n.Children {
			node.Children = append(node.Children, int(c))
		}
		if n.Mesh != nil {
			if int(*n.Mesh) >= len(im.av.Meshes) {
				return vrmerr.New(vrmerr.InvalidDocument, "importer", "node %d: mesh %d out of range", i, *n.Mesh)
			}
			node.Mesh = int(*n.Mesh)
			if n.Skin != nil {
				if int(*n.Skin) >= len(im.doc.Skins) {
					return vrmerr.New(vrmerr.InvalidDocument, "importer", "node %d: skin %d out of range", i, *n.Skin)
				}
				node.Skin = int(*n.Skin)
			}
		}
		if c := vrm.NodeConstraintOf(n); c != nil {
			constraint := c.Constraint
			im.av.Constraints[i] = &constraint
		}
		im.av.Nodes = append(im.av.Nodes, node)
	}

	seen := map[int]bool{}
	if len(im.doc.Scenes) > 0 {
		scene := 0
		if im.doc.Scene != nil && int(*im.doc.Scene) < len(im.doc.Scenes) {
			scene = int(*im.doc.Scene)
		}
		for _, r := range im.doc.Scenes[scene].Nodes {
			if int(r) < len(parents) && parents[r] < 0 && !seen[int(r)] {
				im.av.Roots = append(im.av.Roots, int(r))
				seen[int(r)] = true
			}
		}
	}
	for i, p := range parents {
		if p < 0 && !seen[i] {
			im.av.Roots = append(im.av.Roots, i)
		}
	}
	im.log.WithField("nodes", len(im.av.Nodes)).Debug("nodes imported")
	return nil
}

func (im *importer) importSkins() {
	for i, s := range im.doc.Skins {
		skin := &avatar.Skin{Name: s.Name, Skeleton: -1}
		for _, j := range s.Joints {
			skin.Joints = append(skin.Joints, int(j))
		}
		if s.Skeleton != nil && int(*s.Skeleton) < len(im.av.Nodes) {
			skin.Skeleton = int(*s.Skeleton)
		}
		if s.InverseBindMatrices != nil {
			a, err := im.acc.Get(*s.InverseBindMatrices, gltf.AccessorMat4)
			if err != nil {
				im.warn.AddError(s.Name, err)
			} else if a.Count != len(skin.Joints) {
				im.warn.Add(vrmerr.InvalidDocument, s.Name, "skin %d: %d inverse bind matrices for %d joints", i, a.Count, len(skin.Joints))
			} else {
				skin.InverseBindMatrices = a.Mat4()
			}
		}
		if err := skin.Validate(len(im.av.Nodes)); err != nil {
			im.warn.AddError(s.Name, vrmerr.Wrap(vrmerr.InvalidDocument, "importer", err))
			skin.Joints = uniqueJoints(skin.Joints, len(im.av.Nodes))
			if len(skin.InverseBindMatrices) != len(skin.Joints) {
				skin.InverseBindMatrices = nil
			}
		}
		im.av.Skins = append(im.av.Skins, skin)
	}
}

func uniqueJoints(joints []int, nodes int) []int {
	seen := map[int]bool{}
	var out []int
	for _, j := range joints {
		if j >= 0 && j < nodes && !seen[j] {
			out = append(out, j)
			seen[j] = true
		}
	}
	return out
}
