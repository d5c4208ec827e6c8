// Package geom provides the small float32 vector algebra used by the codec.
package geom

import "math"

type Element = float32

type Vector3 struct {
	X Element
	Y Element
	Z Element
}

func NewVector3(x, y, z float32) *Vector3 {
	return &Vector3{X: x, Y: y, Z: z}
}

func NewVector3FromArray(arr [3]Element) *Vector3 {
	return &Vector3{X: arr[0], Y: arr[1], Z: arr[2]}
}

func NewVector3FromSlice(arr []Element) *Vector3 {
	return &Vector3{X: arr[0], Y: arr[1], Z: arr[2]}
}

func (v *Vector3) Add(v2 *Vector3) *Vector3 {
	return &Vector3{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z}
}

func (v *Vector3) Sub(v2 *Vector3) *Vector3 {
	return &Vector3{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z}
}

func (v *Vector3) Dot(v2 *Vector3) Element {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z
}

func (v *Vector3) Cross(v2 *Vector3) *Vector3 {
	return &Vector3{
		X: v.Y*v2.Z - v.Z*v2.Y,
		Y: v.Z*v2.X - v.X*v2.Z,
		Z: v.X*v2.Y - v.Y*v2.X,
	}
}

func (v *Vector3) Scale(s Element) *Vector3 {
	return &Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v *Vector3) Len() Element {
	return Element(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Normalize normalizes v in place. A zero vector becomes (1,0,0).
func (v *Vector3) Normalize() *Vector3 {
	l := v.Len()
	if l > 0 {
		v.X /= l
		v.Y /= l
		v.Z /= l
	} else {
		v.X = 1
	}
	return v
}

func (v *Vector3) ToArray(array []Element) {
	array[0] = v.X
	array[1] = v.Y
	array[2] = v.Z
}

func (v *Vector3) Array() [3]Element {
	return [3]Element{v.X, v.Y, v.Z}
}

// Bounds accumulates a component-wise min/max.
type Bounds struct {
	Min   [3]Element
	Max   [3]Element
	Empty bool
}

func NewBounds() *Bounds {
	return &Bounds{
		Min:   [3]Element{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max:   [3]Element{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
		Empty: true,
	}
}

func (b *Bounds) Add(v [3]Element) {
	b.Empty = false
	for i, c := range v {
		if c < b.Min[i] {
			b.Min[i] = c
		}
		if c > b.Max[i] {
			b.Max[i] = c
		}
	}
}

// MinMax returns the bounds as accessor min/max slices; zero when empty.
func (b *Bounds) MinMax() ([]float32, []float32) {
	if b.Empty {
		return []float32{0, 0, 0}, []float32{0, 0, 0}
	}
	return []float32{b.Min[0], b.Min[1], b.Min[2]}, []float32{b.Max[0], b.Max[1], b.Max[2]}
}

func Abs(v Element) Element {
	if v < 0 {
		return -v
	}
	return v
}

func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
