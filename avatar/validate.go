package avatar

import (
	"sort"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
)

var errAllZeroWeights = errors.New("all weights are zero")

// Validate checks the structural invariants of the primitive.
func (p *Primitive) Validate() error {
	n := len(p.Positions)
	if p.Normals != nil && len(p.Normals) != n {
		return errors.Errorf("NORMAL has %d vertices, POSITION %d", len(p.Normals), n)
	}
	if p.Joints != nil && len(p.Joints) != n {
		return errors.Errorf("JOINTS_0 has %d vertices, POSITION %d", len(p.Joints), n)
	}
	if p.Weights != nil && len(p.Weights) != n {
		return errors.Errorf("WEIGHTS_0 has %d vertices, POSITION %d", len(p.Weights), n)
	}
	for i, uv := range p.TexCoords {
		if len(uv) != n {
			return errors.Errorf("TEXCOORD_%d has %d vertices, POSITION %d", i, len(uv), n)
		}
	}
	for _, t := range p.Indices {
		for _, v := range t {
			if int(v) >= n {
				return errors.Errorf("index %d out of range (%d vertices)", v, n)
			}
		}
	}
	for _, t := range p.Targets {
		if len(t.Positions) != n {
			return errors.Errorf("morph target %q has %d vertices, POSITION %d", t.Name, len(t.Positions), n)
		}
	}
	return nil
}

func (s *Skin) Validate(nodes int) error {
	if s.InverseBindMatrices != nil && len(s.InverseBindMatrices) != len(s.Joints) {
		return errors.Errorf("skin %q: %d joints, %d inverse bind matrices", s.Name, len(s.Joints), len(s.InverseBindMatrices))
	}
	seen := map[int]bool{}
	for _, j := range s.Joints {
		if j < 0 || j >= nodes {
			return errors.Errorf("skin %q: joint %d out of range", s.Name, j)
		}
		if seen[j] {
			return errors.Errorf("skin %q: joint %d listed twice", s.Name, j)
		}
		seen[j] = true
	}
	return nil
}

// Validate checks every index reference and the node forest. It reports
// the first violation as an InvalidDocument error.
func (a *Avatar) Validate() error {
	const op = "avatar.Validate"
	for i, n := range a.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(a.Nodes) || a.Nodes[c].Parent != i {
				return vrmerr.New(vrmerr.InvalidDocument, op, "node %d: inconsistent child %d", i, c)
			}
		}
		if n.Mesh >= len(a.Meshes) || n.Skin >= len(a.Skins) {
			return vrmerr.New(vrmerr.InvalidDocument, op, "node %d: mesh or skin out of range", i)
		}
		depth := 0
		for p := n.Parent; p >= 0; p = a.Nodes[p].Parent {
			if p >= len(a.Nodes) || p == i || depth > len(a.Nodes) {
				return vrmerr.New(vrmerr.InvalidDocument, op, "node %d is its own ancestor", i)
			}
			depth++
		}
	}
	for i, m := range a.Meshes {
		for j, p := range m.Primitives {
			if err := p.Validate(); err != nil {
				return vrmerr.Wrapf(vrmerr.InvalidDocument, op, err, "mesh %d primitive %d", i, j)
			}
			if p.Material >= len(a.Materials) {
				return vrmerr.New(vrmerr.InvalidDocument, op, "mesh %d primitive %d: material %d out of range", i, j, p.Material)
			}
		}
	}
	for _, s := range a.Skins {
		if err := s.Validate(len(a.Nodes)); err != nil {
			return vrmerr.Wrap(vrmerr.InvalidDocument, op, err)
		}
	}
	for name, n := range a.Humanoid.Bones {
		if n < 0 || n >= len(a.Nodes) {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, op, "%s: node %d does not exist", name, n)
		}
	}
	return nil
}

// MissingRequiredBones returns the required bones of version v the
// humanoid does not map.
func (a *Avatar) MissingRequiredBones(v vrm.Version) []string {
	if v == vrm.Version0 {
		mapped := map[string]int{}
		for name, n := range a.Humanoid.Bones {
			mapped[vrm.Bone1To0(name)] = n
		}
		return vrm.MissingBones(mapped, vrm.RequiredBones0)
	}
	return vrm.MissingBones(a.Humanoid.Bones, vrm.RequiredBones1)
}

type weight struct {
	joint  int
	weight float32
}

// NormalizeWeights keeps the four largest weights, ordered by weight with
// ties broken by joint, pads with zero joints and scales the result to sum
// to one. All-zero input is an error.
func NormalizeWeights(joints []int, weights []float32) ([4]uint16, [4]float32, error) {
	var ws []weight
	for i, w := range weights {
		if i < len(joints) && w > 0 {
			ws = append(ws, weight{joints[i], w})
		}
	}
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].weight != ws[j].weight {
			return ws[i].weight > ws[j].weight
		}
		return ws[i].joint < ws[j].joint
	})
	if len(ws) > 4 {
		ws = ws[:4]
	}
	var total float32
	for _, w := range ws {
		total += w.weight
	}
	var j [4]uint16
	var w [4]float32
	if total <= 0 {
		return j, w, errAllZeroWeights
	}
	for i, x := range ws {
		j[i] = uint16(x.joint)
		w[i] = x.weight / total
	}
	return j, w, nil
}
