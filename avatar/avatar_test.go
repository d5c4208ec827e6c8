package avatar

import (
	"math"
	"testing"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
)

func TestNormalizeWeights(t *testing.T) {
	for _, c := range []struct {
		joints  []int
		weights []float32
		want    [4]uint16
	}{
		{[]int{3}, []float32{2}, [4]uint16{3, 0, 0, 0}},
		{[]int{1, 2, 3, 4, 5}, []float32{0.1, 0.5, 0.2, 0.05, 0.15}, [4]uint16{2, 3, 5, 1}},
		{[]int{7, 6}, []float32{0.5, 0.5}, [4]uint16{6, 7, 0, 0}},
		{[]int{1, 2}, []float32{0, 3}, [4]uint16{2, 0, 0, 0}},
	} {
		j, w, err := NormalizeWeights(c.joints, c.weights)
		if err != nil {
			t.Fatal(err)
		}
		if j != c.want {
			t.Errorf("joints %v, want %v", j, c.want)
		}
		sum := w[0] + w[1] + w[2] + w[3]
		if math.Abs(float64(sum-1)) > 1e-6 {
			t.Errorf("weights %v sum to %v", w, sum)
		}
		for i := 1; i < 4; i++ {
			if w[i] > w[i-1] {
				t.Errorf("weights not descending: %v", w)
			}
		}
	}
	if _, _, err := NormalizeWeights([]int{0, 1, 2, 3}, []float32{0, 0, 0, 0}); err == nil {
		t.Error("all zero weights accepted")
	}
}

func testAvatar() *Avatar {
	a := New()
	for _, name := range []string{"root", "hips", "spine"} {
		a.Nodes = append(a.Nodes, NewNode(name))
	}
	a.Nodes[0].Children = []int{1}
	a.Nodes[1].Parent = 0
	a.Nodes[1].Children = []int{2}
	a.Nodes[2].Parent = 1
	a.Roots = []int{0}
	a.Humanoid.Bones["hips"] = 1
	a.Humanoid.Bones["spine"] = 2
	return a
}

func TestValidate(t *testing.T) {
	a := testAvatar()
	if err := a.Validate(); err != nil {
		t.Fatal(err)
	}
	if n, _ := a.Humanoid.BoneOf(2); n != "spine" || a.Humanoid.Nodes()[1] != "hips" {
		t.Error("humanoid lookup")
	}
	if a.NodeByName("spine") != 2 || a.NodeByName("none") != -1 {
		t.Error("NodeByName")
	}

	a.Nodes[0].Parent = 2
	if err := a.Validate(); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("cycle: %v", err)
	}

	a = testAvatar()
	a.Humanoid.Bones["head"] = 9
	if err := a.Validate(); !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Errorf("dangling bone: %v", err)
	}

	a = testAvatar()
	a.Meshes = []*Mesh{{Primitives: []*Primitive{{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}},
		Indices:   [][3]uint32{{0, 1, 2}},
		Material:  -1,
	}}}}
	if err := a.Validate(); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("index out of range: %v", err)
	}
}

func TestSkinValidate(t *testing.T) {
	s := &Skin{Joints: []int{0, 1}, InverseBindMatrices: make([][16]float32, 1)}
	if s.Validate(2) == nil {
		t.Error("matrix count mismatch accepted")
	}
	s = &Skin{Joints: []int{0, 0}}
	if s.Validate(2) == nil {
		t.Error("duplicate joint accepted")
	}
}

func TestMissingRequiredBones(t *testing.T) {
	a := testAvatar()
	if got := len(a.MissingRequiredBones(vrm.Version1)); got != len(vrm.RequiredBones1)-2 {
		t.Errorf("VRM1 missing %d", got)
	}
	if got := len(a.MissingRequiredBones(vrm.Version0)); got != len(vrm.RequiredBones0)-2 {
		t.Errorf("VRM0 missing %d", got)
	}
}
