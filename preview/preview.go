// Package preview builds flat vertex buffers for drawing an imported avatar.
package preview

import (
	"context"
	"runtime"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Primitive holds GPU ready arrays: 3 floats per position and normal, 2 per
// UV and 4 per tangent, the last being the bitangent sign.
type Primitive struct {
	Mesh      int
	Primitive int
	Material  int

	Positions []float32
	Normals   []float32
	UVs       []float32
	Tangents  []float32
	Indices   []uint32

	Min, Max [3]float32
}

func (p *Primitive) VertexCount() int {
	return len(p.Positions) / 3
}

type Options struct {
	Logger logrus.FieldLogger
	// Workers bounds the number of primitives built at once. 0 means one per
	// CPU.
	Workers int
	// MorphWeights overrides the default morph weights of a mesh.
	MorphWeights map[int][]float32
}

type job struct {
	mesh, prim int
}

// Build converts every primitive of av. The result is ordered by mesh and
// primitive and does not depend on the number of workers.
func Build(ctx context.Context, av *avatar.Avatar, opt *Options) ([]*Primitive, error) {
	if opt == nil {
		opt = &Options{}
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var jobs []job
	for mi, m := range av.Meshes {
		for pi := range m.Primitives {
			jobs = append(jobs, job{mi, pi})
		}
	}
	out := make([]*Primitive, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return vrmerr.Wrap(vrmerr.Canceled, "preview", err)
			}
			mesh := av.Meshes[j.mesh]
			weights := mesh.Weights
			if w, ok := opt.MorphWeights[j.mesh]; ok {
				weights = w
			}
			p := buildPrimitive(mesh.Primitives[j.prim], weights)
			p.Mesh, p.Primitive = j.mesh, j.prim
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"primitives": len(out), "workers": workers}).Debug("preview built")
	return out, nil
}

func buildPrimitive(src *avatar.Primitive, weights []float32) *Primitive {
	n := len(src.Positions)
	p := &Primitive{Material: src.Material}

	pos := make([]mgl32.Vec3, n)
	for v, x := range src.Positions {
		pos[v] = mgl32.Vec3(x)
	}
	for t, w := range weights {
		if w == 0 || t >= len(src.Targets) || src.Targets[t] == nil {
			continue
		}
		for v, d := range src.Targets[t].Positions {
			if v < n {
				pos[v] = pos[v].Add(mgl32.Vec3(d).Mul(w))
			}
		}
	}

	for _, tri := range src.Indices {
		if int(tri[0]) < n && int(tri[1]) < n && int(tri[2]) < n {
			p.Indices = append(p.Indices, tri[0], tri[1], tri[2])
		}
	}

	normals := make([]mgl32.Vec3, n)
	if len(src.Normals) >= n {
		for v := range normals {
			normals[v] = mgl32.Vec3(src.Normals[v])
		}
	} else {
		normals = faceNormals(pos, p.Indices)
	}

	uvs := make([]mgl32.Vec2, n)
	if len(src.TexCoords) > 0 {
		for v, uv := range src.TexCoords[0] {
			if v < n {
				uvs[v] = mgl32.Vec2(uv)
			}
		}
	}

	tangents := computeTangents(pos, normals, uvs, p.Indices)

	bounds := geom.NewBounds()
	p.Positions = make([]float32, 0, n*3)
	p.Normals = make([]float32, 0, n*3)
	p.UVs = make([]float32, 0, n*2)
	p.Tangents = make([]float32, 0, n*4)
	for v := 0; v < n; v++ {
		bounds.Add(pos[v])
		p.Positions = append(p.Positions, pos[v][:]...)
		p.Normals = append(p.Normals, normals[v][:]...)
		p.UVs = append(p.UVs, uvs[v][:]...)
		p.Tangents = append(p.Tangents, tangents[v][:]...)
	}
	if n > 0 {
		min, max := bounds.MinMax()
		copy(p.Min[:], min)
		copy(p.Max[:], max)
	}
	return p
}

// faceNormals averages the area weighted normals of adjacent triangles.
func faceNormals(pos []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(pos))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		fn := pos[b].Sub(pos[a]).Cross(pos[c].Sub(pos[a]))
		normals[a] = normals[a].Add(fn)
		normals[b] = normals[b].Add(fn)
		normals[c] = normals[c].Add(fn)
	}
	for v, nv := range normals {
		if nv.Len() > 0 {
			normals[v] = nv.Normalize()
		} else {
			normals[v] = mgl32.Vec3{0, 1, 0}
		}
	}
	return normals
}

// computeTangents derives per vertex tangents from UV gradients and makes
// them orthogonal to the normal.
func computeTangents(pos, normals []mgl32.Vec3, uvs []mgl32.Vec2, indices []uint32) []mgl32.Vec4 {
	tan := make([]mgl32.Vec3, len(pos))
	bitan := make([]mgl32.Vec3, len(pos))
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		e1, e2 := pos[b].Sub(pos[a]), pos[c].Sub(pos[a])
		d1, d2 := uvs[b].Sub(uvs[a]), uvs[c].Sub(uvs[a])
		det := d1.X()*d2.Y() - d2.X()*d1.Y()
		if geom.Abs(det) < 1e-12 {
			continue
		}
		r := 1 / det
		t := e1.Mul(d2.Y()).Sub(e2.Mul(d1.Y())).Mul(r)
		bt := e2.Mul(d1.X()).Sub(e1.Mul(d2.X())).Mul(r)
		for _, v := range []uint32{a, b, c} {
			tan[v] = tan[v].Add(t)
			bitan[v] = bitan[v].Add(bt)
		}
	}

	out := make([]mgl32.Vec4, len(pos))
	for v := range pos {
		n := normals[v]
		t := tan[v].Sub(n.Mul(n.Dot(tan[v])))
		if t.Len() < 1e-12 {
			t = perpendicular(n)
		}
		t = t.Normalize()
		w := float32(1)
		if n.Cross(t).Dot(bitan[v]) < 0 {
			w = -1
		}
		out[v] = t.Vec4(w)
	}
	return out
}

func perpendicular(n mgl32.Vec3) mgl32.Vec3 {
	axis := mgl32.Vec3{1, 0, 0}
	if geom.Abs(n.X()) > 0.9 {
		axis = mgl32.Vec3{0, 1, 0}
	}
	return axis.Sub(n.Mul(n.Dot(axis)))
}
