package geom

import (
	"math"
	"testing"
)

const eps = 0.0001

func TestVector3(t *testing.T) {
	zero := NewVector3(0, 0, 0)
	if zero.Len() != 0 || zero.Dot(zero) != 0 {
		t.Error("len != 0")
	}
	if *zero.Normalize() != *NewVector3(1, 0, 0) {
		t.Error("Normalize should return a unit vector.", zero)
	}
	if *NewVector3(1, 0, 0).Cross(NewVector3(0, 1, 0)) != *NewVector3(0, 0, 1) {
		t.Error("Vector3.Cross()")
	}
}

func TestQuaternion(t *testing.T) {
	s := float32(math.Sqrt2 / 2)
	q := NewQuaternion(0, 0, s, s) // 90deg around Z
	v := q.ApplyTo(NewVector3(1, 0, 0))
	if v.Sub(NewVector3(0, 1, 0)).Len() > eps {
		t.Error("rotate x around z: ", v)
	}
	id := q.Mul(q.Inverse())
	if id.Sub(NewQuaternion(0, 0, 0, 1)).Len() > eps {
		t.Error("q * ~q: ", id)
	}
	if *NewQuaternion(0, 0, 0, 0).Normalize() != *NewQuaternion(0, 0, 0, 1) {
		t.Error("zero quaternion normalize")
	}
}

func rotationMatrix(q *Quaternion) *Matrix4 {
	var (
		x = q.X
		y = q.Y
		z = q.Z
		w = q.W
	)
	return &Matrix4{
		1 - 2*y*y - 2*z*z, 2*x*y + 2*z*w, 2*x*z - 2*y*w, 0,
		2*x*y - 2*z*w, 1 - 2*x*x - 2*z*z, 2*y*z + 2*x*w, 0,
		2*x*z + 2*y*w, 2*y*z - 2*x*w, 1 - 2*x*x - 2*y*y, 0,
		0, 0, 0, 1,
	}
}

// trsMatrix returns T * R * S.
func trsMatrix(t *Vector3, r *Quaternion, s *Vector3) *Matrix4 {
	m := rotationMatrix(r)
	for i := 0; i < 3; i++ {
		m[i] *= s.X
		m[4+i] *= s.Y
		m[8+i] *= s.Z
	}
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

func TestDecomposeMatrix(t *testing.T) {
	pos := NewVector3(1, 2, 3)
	rot := NewQuaternion(0.1, 0.2, 0.3, 0.9).Normalize()
	scale := NewVector3(1.5, 1.6, 1.7)

	mat := trsMatrix(pos, rot, scale)
	pos1, rot1, scale1 := mat.Decompose()
	if pos.Sub(pos1).Len() > eps {
		t.Error("pos: ", pos, pos1)
	}
	if rot.Sub(rot1).Len() > eps && rot.Add(rot1).Len() > eps {
		t.Error("rot: ", rot, rot1)
	}
	if scale.Sub(scale1).Len() > eps {
		t.Error("scale: ", scale, scale1)
	}

	v := NewVector3(0.3, -0.4, 2)
	a := mat.ApplyTo(v)
	b := rot.ApplyTo(&Vector3{v.X * scale.X, v.Y * scale.Y, v.Z * scale.Z}).Add(pos)
	if a.Sub(b).Len() > eps {
		t.Error("matrix and quaternion disagree: ", a, b)
	}

	m2 := NewTranslateMatrix4(1, 0, 0).Mul(NewScaleMatrix4(2, 2, 2))
	if p := m2.ApplyTo(NewVector3(1, 1, 1)); *p != *NewVector3(3, 2, 2) {
		t.Error("Mul order: ", p)
	}

	mirror := NewScaleMatrix4(-1, 1, 1)
	if d := mirror.Det(); d != -1 {
		t.Error("mirror det: ", d)
	}
	if _, r, s := mirror.Decompose(); *s != *NewVector3(-1, 1, 1) || r.Sub(NewQuaternion(0, 0, 0, 1)).Len() > eps {
		t.Error("mirror decompose: ", r, s)
	}
}

func TestAxisRemap(t *testing.T) {
	p := [3]Element{1, 2, 3}
	if h := HostPosition(p); h != [3]Element{-1, 3, 2} {
		t.Error("HostPosition: ", h)
	}
	if GltfPosition(HostPosition(p)) != p {
		t.Error("position remap is not an involution")
	}
}

func TestBounds(t *testing.T) {
	b := NewBounds()
	min, max := b.MinMax()
	if min[0] != 0 || max[0] != 0 {
		t.Error("empty bounds: ", min, max)
	}
	b.Add([3]Element{1, -2, 3})
	b.Add([3]Element{-1, 5, 0})
	min, max = b.MinMax()
	if min[0] != -1 || min[1] != -2 || min[2] != 0 || max[0] != 1 || max[1] != 5 || max[2] != 3 {
		t.Error("bounds: ", min, max)
	}
}
