package importer

import (
	"fmt"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

func (im *importer) importMeshes() error {
	for i, m := range im.doc.Meshes {
		mesh := &avatar.Mesh{
			Name:        m.Name,
			TargetNames: vrm.TargetNames(m),
			Weights:     append([]float32(nil), m.Weights...),
		}
		for j, p := range m.Primitives {
			prim, err := im.importPrimitive(i, j, p, mesh.TargetNames)
			if vrmerr.Is(err, vrmerr.UnsupportedPrimitiveMode) {
				// the mesh stays in place, empty, so indices remain valid
				im.warn.AddError(m.Name, err)
				mesh.Primitives = nil
				break
			}
			if err != nil {
				return err
			}
			mesh.Primitives = append(mesh.Primitives, prim)
		}
		im.av.Meshes = append(im.av.Meshes, mesh)
	}
	im.log.WithField("meshes", len(im.av.Meshes)).Debug("meshes imported")
	return nil
}

func (im *importer) positions(index uint32) ([][3]float32, error) {
	if v, ok := im.vec3[index]; ok {
		return v, nil
	}
	a, err := im.acc.Get(index, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	v := a.Vec3()
	im.vec3[index] = v
	return v, nil
}

func (im *importer) importPrimitive(mi, pi int, p *gltf.Primitive, names []string) (*avatar.Primitive, error) {
	op := fmt.Sprintf("importer: mesh %d primitive %d", mi, pi)
	if p.Mode != gltf.PrimitiveTriangles {
		return nil, vrmerr.New(vrmerr.UnsupportedPrimitiveMode, op, "mode %d is not TRIANGLES", p.Mode)
	}
	prim := &avatar.Primitive{Material: -1}
	if p.Material != nil {
		prim.Material = int(*p.Material)
	}
	pos, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, vrmerr.New(vrmerr.InvalidDocument, op, "no POSITION")
	}
	var err error
	if prim.Positions, err = im.positions(pos); err != nil {
		return nil, err
	}
	n := len(prim.Positions)

	if p.Indices != nil {
		a, err := im.acc.Get(*p.Indices, gltf.AccessorScalar)
		if err != nil {
			return nil, err
		}
		idx := a.Uints()
		if idx == nil {
			return nil, vrmerr.New(vrmerr.UnsupportedComponentType, op, "indices must be unsigned integers")
		}
		if len(idx)%3 != 0 {
			return nil, vrmerr.New(vrmerr.InvalidDocument, op, "%d indices is not a triangle list", len(idx))
		}
		prim.Indices = make([][3]uint32, len(idx)/3)
		for t := range prim.Indices {
			copy(prim.Indices[t][:], idx[t*3:])
		}
	} else {
		if n%3 != 0 {
			return nil, vrmerr.New(vrmerr.InvalidDocument, op, "%d vertices is not a triangle list", n)
		}
		prim.Indices = make([][3]uint32, n/3)
		for t := range prim.Indices {
			prim.Indices[t] = [3]uint32{uint32(t * 3), uint32(t*3 + 1), uint32(t*3 + 2)}
		}
	}

	if idx, ok := p.Attributes[gltf.NORMAL]; ok {
		if prim.Normals, err = im.positions(idx); err != nil {
			return nil, err
		}
	}
	for k := 0; ; k++ {
		idx, ok := p.Attributes[fmt.Sprintf("TEXCOORD_%d", k)]
		if !ok {
			break
		}
		a, err := im.acc.Get(idx, gltf.AccessorVec2)
		if err != nil {
			return nil, err
		}
		prim.TexCoords = append(prim.TexCoords, im.hostUV(a.Vec2()))
	}
	for k := 0; ; k++ {
		idx, ok := p.Attributes[fmt.Sprintf("COLOR_%d", k)]
		if !ok {
			break
		}
		colors, err := im.colors(idx)
		if err != nil {
			return nil, err
		}
		prim.Colors = append(prim.Colors, colors)
	}
	if idx, ok := p.Attributes[gltf.JOINTS_0]; ok {
		a, err := im.acc.Get(idx, gltf.AccessorVec4)
		if err != nil {
			return nil, err
		}
		joints := a.UintVec4()
		if joints == nil {
			return nil, vrmerr.New(vrmerr.UnsupportedComponentType, op, "JOINTS_0 must be unsigned integers")
		}
		prim.Joints = make([][4]uint16, len(joints))
		for v, j := range joints {
			for c := range j {
				if j[c] > 0xffff {
					return nil, vrmerr.New(vrmerr.InvalidDocument, op, "joint %d out of range", j[c])
				}
				prim.Joints[v][c] = uint16(j[c])
			}
		}
	}
	if idx, ok := p.Attributes[gltf.WEIGHTS_0]; ok {
		a, err := im.acc.Get(idx, gltf.AccessorVec4)
		if err != nil {
			return nil, err
		}
		prim.Weights = a.Vec4()
	}

	for t, target := range p.Targets {
		mt := &avatar.MorphTarget{Name: names[t]}
		if idx, ok := target[gltf.POSITION]; ok {
			if mt.Positions, err = im.positions(idx); err != nil {
				return nil, err
			}
		} else {
			mt.Positions = make([][3]float32, n)
		}
		if idx, ok := target[gltf.NORMAL]; ok {
			if mt.Normals, err = im.positions(idx); err != nil {
				return nil, err
			}
		}
		prim.Targets = append(prim.Targets, mt)
	}
	if err := prim.Validate(); err != nil {
		return nil, vrmerr.Wrap(vrmerr.InvalidDocument, op, err)
	}
	return prim, nil
}

// hostUV flips V. Old UniGLTF exporters wrote V already flipped and
// negated, so their coordinates are shifted by one instead.
func (im *importer) hostUV(uv [][2]float32) [][2]float32 {
	for i := range uv {
		if im.legacyUV {
			uv[i][1] = 1 + uv[i][1]
		} else {
			uv[i][1] = 1 - uv[i][1]
		}
	}
	return uv
}

func (im *importer) colors(index uint32) ([][4]float32, error) {
	if a, err := im.acc.Get(index, gltf.AccessorVec4); err == nil {
		return a.Vec4(), nil
	}
	a, err := im.acc.Get(index, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	rgb := a.Vec3()
	out := make([][4]float32, len(rgb))
	for i, c := range rgb {
		out[i] = [4]float32{c[0], c[1], c[2], 1}
	}
	return out, nil
}
