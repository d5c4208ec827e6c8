package gltfutil

import (
	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

// accessorBytes returns the writable bytes of an accessor's bufferView
// starting at the accessor offset, and the element stride.
func accessorBytes(doc *gltf.Document, acr *gltf.Accessor, elemSize int) ([]byte, int, error) {
	if acr.BufferView == nil {
		return nil, 0, nil
	}
	if int(*acr.BufferView) >= len(doc.BufferViews) {
		return nil, 0, vrmerr.New(vrmerr.InvalidDocument, "gltfutil", "bufferView %d out of range", *acr.BufferView)
	}
	bv := doc.BufferViews[*acr.BufferView]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, 0, vrmerr.New(vrmerr.InvalidDocument, "gltfutil", "buffer %d out of range", bv.Buffer)
	}
	data, _, err := bincursor.ReadBytes(doc.Buffers[bv.Buffer].Data, int(bv.ByteOffset), int(bv.ByteLength))
	if err != nil {
		return nil, 0, err
	}
	data, _, err = bincursor.ReadBytes(data, int(acr.ByteOffset), len(data)-int(acr.ByteOffset))
	if err != nil {
		return nil, 0, err
	}
	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	return data, stride, nil
}

func readMatrixAt(data []byte, pos int) ([16]float32, error) {
	m, _, err := bincursor.ReadMatrix(data, pos)
	return m, err
}

func writeMatrixAt(data []byte, pos int, mat [16]float32) error {
	for i, v := range mat {
		if _, err := bincursor.PutF32(data, pos+i*4, v); err != nil {
			return err
		}
	}
	return nil
}

// ResetJointMatrix rewrites inverse bind matrices as translation-only
// matrices and bakes node rotations into translations of their children,
// leaving every unskinned node with an identity rotation.
func ResetJointMatrix(doc *gltf.Document) error {
	for _, skin := range doc.Skins {
		if skin.InverseBindMatrices == nil {
			continue
		}
		data, stride, err := accessorBytes(doc, doc.Accessors[*skin.InverseBindMatrices], 64)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		for i := range skin.Joints {
			mat, err := readMatrixAt(data, i*stride)
			if err != nil {
				return err
			}
			x := mat[0]*mat[12] + mat[1]*mat[13] + mat[2]*mat[14]
			y := mat[4]*mat[12] + mat[5]*mat[13] + mat[6]*mat[14]
			z := mat[8]*mat[12] + mat[9]*mat[13] + mat[10]*mat[14]
			if err := writeMatrixAt(data, i*stride, [16]float32{
				1, 0, 0, 0,
				0, 1, 0, 0,
				0, 0, 1, 0,
				x, y, z, 1,
			}); err != nil {
				return err
			}
		}
	}

	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(parents) {
				parents[c] = i
			}
		}
	}
	// parents first, so accumulated rotations reach the leaves in one pass
	var order []int
	var visit func(i, depth int)
	visit = func(i, depth int) {
		if depth > len(doc.Nodes) {
			return
		}
		order = append(order, i)
		for _, c := range doc.Nodes[i].Children {
			visit(int(c), depth+1)
		}
	}
	for i, p := range parents {
		if p < 0 {
			visit(i, 0)
		}
	}
	for _, i := range order {
		node := doc.Nodes[i]
		if geom.IsIdentityRotation(node.Rotation) || node.Rotation == [4]float32{} || node.Skin != nil {
			continue
		}
		a := geom.NewQuaternionFromArray(node.Rotation).Normalize()
		node.Rotation = [4]float32{0, 0, 0, 1}
		for _, c := range node.Children {
			child := doc.Nodes[c]
			child.Translation = a.ApplyTo(geom.NewVector3FromArray(child.Translation)).Array()
			child.Rotation = a.Mul(geom.NewQuaternionFromArray(child.Rotation).Normalize()).Array()
		}
	}
	return nil
}

// WidenJoints converts UNSIGNED_BYTE JOINTS_0 accessors to UNSIGNED_SHORT,
// appending the widened data to the accessor's buffer.
func WidenJoints(doc *gltf.Document) error {
	widened := map[uint32]bool{}
	for _, mesh := range doc.Meshes {
		for _, p := range mesh.Primitives {
			attr, ok := p.Attributes["JOINTS_0"]
			if !ok || int(attr) >= len(doc.Accessors) {
				continue
			}
			acr := doc.Accessors[attr]
			if acr.ComponentType != gltf.ComponentUbyte || acr.BufferView == nil {
				continue
			}
			if widened[attr] {
				continue
			}
			widened[attr] = true
			src, stride, err := accessorBytes(doc, acr, 4)
			if err != nil {
				return err
			}
			bv := doc.BufferViews[*acr.BufferView]
			buffer := doc.Buffers[bv.Buffer]
			w := bincursor.NewWriter(int(acr.Count) * 8)
			for i := 0; i < int(acr.Count); i++ {
				for j := 0; j < 4; j++ {
					v, _, err := bincursor.ReadU8(src, i*stride+j)
					if err != nil {
						return err
					}
					w.WriteU16(uint16(v))
				}
			}
			for len(buffer.Data)%4 != 0 {
				buffer.Data = append(buffer.Data, 0)
			}
			doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
				Buffer:     bv.Buffer,
				ByteOffset: uint32(len(buffer.Data)),
				ByteLength: uint32(w.Len()),
				Target:     gltf.TargetArrayBuffer,
			})
			buffer.Data = append(buffer.Data, w.Bytes()...)
			buffer.ByteLength = uint32(len(buffer.Data))
			acr.BufferView = gltf.Index(uint32(len(doc.BufferViews) - 1))
			acr.ByteOffset = 0
			acr.ComponentType = gltf.ComponentUshort
		}
	}
	return nil
}
