package preview

import (
	"context"
	"io"
	"math"
	"reflect"
	"testing"

	"github.com/binzume/vrmconv/avatar"
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

// quad is a unit square in the XY plane facing +Z with u along +X.
func quad(offset float32) *avatar.Primitive {
	return &avatar.Primitive{
		Indices:   [][3]uint32{{0, 1, 2}, {0, 2, 3}},
		Positions: [][3]float32{{offset, 0, 0}, {offset + 1, 0, 0}, {offset + 1, 1, 0}, {offset, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		TexCoords: [][][2]float32{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}},
	}
}

func testAvatar() *avatar.Avatar {
	av := avatar.New()
	lifted := quad(0)
	lifted.Targets = []*avatar.MorphTarget{{Name: "up", Positions: [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}}}
	av.Meshes = []*avatar.Mesh{
		{Name: "a", Primitives: []*avatar.Primitive{quad(0), quad(2)}},
		{Name: "b", Primitives: []*avatar.Primitive{lifted}, TargetNames: []string{"up"}, Weights: []float32{0.5}},
	}
	for i := 0; i < 8; i++ {
		p := quad(float32(i))
		p.Normals = nil
		av.Meshes[0].Primitives = append(av.Meshes[0].Primitives, p)
	}
	return av
}

func TestBuildTangents(t *testing.T) {
	prims, err := Build(context.Background(), testAvatar(), &Options{Logger: quietLogger(), Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(prims) != 11 || prims[1].Mesh != 0 || prims[1].Primitive != 1 || prims[10].Mesh != 1 {
		t.Fatalf("unexpected order %s", spew.Sdump(prims))
	}
	p := prims[0]
	if p.VertexCount() != 4 || len(p.Indices) != 6 || len(p.Tangents) != 16 {
		t.Fatalf("unexpected primitive %s", spew.Sdump(p))
	}
	for v := 0; v < 4; v++ {
		tan := p.Tangents[v*4 : v*4+4]
		if !nearly(tan[0], 1) || !nearly(tan[1], 0) || !nearly(tan[2], 0) || tan[3] != 1 {
			t.Errorf("vertex %d tangent %v", v, tan)
		}
	}
	if p.Max != [3]float32{1, 1, 0} || prims[1].Min != [3]float32{2, 0, 0} {
		t.Errorf("bounds %v %v", p.Max, prims[1].Min)
	}

	// Normals are derived from the faces when missing.
	if n := prims[2].Normals; !nearly(n[2], 1) || !nearly(n[0], 0) {
		t.Errorf("face normal %v", n[:3])
	}
	// Default morph weights are applied.
	if z := prims[10].Positions[2]; !nearly(z, 0.5) {
		t.Errorf("morphed z %v", z)
	}
}

func TestBuildMirroredUV(t *testing.T) {
	av := avatar.New()
	p := quad(0)
	p.TexCoords = [][][2]float32{{{1, 0}, {0, 0}, {0, 1}, {1, 1}}}
	av.Meshes = []*avatar.Mesh{{Primitives: []*avatar.Primitive{p}}}
	prims, err := Build(context.Background(), av, &Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	tan := prims[0].Tangents[:4]
	if !nearly(tan[0], -1) || tan[3] != -1 {
		t.Errorf("mirrored tangent %v", tan)
	}
}

func TestBuildDeterministic(t *testing.T) {
	av := testAvatar()
	one, err := Build(context.Background(), av, &Options{Logger: quietLogger(), Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	many, err := Build(context.Background(), av, &Options{Logger: quietLogger(), Workers: 8, MorphWeights: map[int][]float32{}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one, many) {
		t.Error("result depends on worker count")
	}
	override, err := Build(context.Background(), av, &Options{Logger: quietLogger(), MorphWeights: map[int][]float32{1: {1}}})
	if err != nil {
		t.Fatal(err)
	}
	if z := override[10].Positions[2]; !nearly(z, 1) {
		t.Errorf("morph weight override ignored: %v", z)
	}
}

func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Build(ctx, testAvatar(), &Options{Logger: quietLogger()}); !vrmerr.Is(err, vrmerr.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
}
