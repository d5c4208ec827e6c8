package gltfutil

import (
	"math"
	"path"
	"strings"

	"github.com/binzume/vrmconv/accessor"
	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

// MimeTypeOf guesses an image mime type from a file name.
func MimeTypeOf(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".bmp":
		return "image/bmp"
	case ".gif":
		return "image/gif"
	case ".tga":
		return "image/x-tga"
	case ".psd":
		return "image/vnd.adobe.photoshop"
	}
	return "image/png"
}

// ToSingleFile embeds every image referenced by URI into the first buffer.
// Images that cannot be read are logged and left as they are.
func ToSingleFile(doc *gltf.Document, read func(uri string) ([]byte, error), log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	}
	for _, b := range doc.Buffers {
		b.URI = ""
	}
	buffer := doc.Buffers[0]
	for _, m := range doc.Images {
		if m.BufferView != nil || m.URI == "" || m.IsEmbeddedResource() {
			continue
		}
		data, err := read(m.URI)
		if err != nil {
			log.WithField("uri", m.URI).WithError(err).Warn("image not embedded")
			continue
		}
		if m.MimeType == "" {
			m.MimeType = MimeTypeOf(m.URI)
		}
		for len(buffer.Data)%4 != 0 {
			buffer.Data = append(buffer.Data, 0)
		}
		doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
			Buffer:     0,
			ByteOffset: uint32(len(buffer.Data)),
			ByteLength: uint32(len(data)),
		})
		buffer.Data = append(buffer.Data, data...)
		buffer.ByteLength = uint32(len(buffer.Data))
		m.BufferView = gltf.Index(uint32(len(doc.BufferViews) - 1))
		m.URI = ""
	}
	return nil
}

func writeVec3(doc *gltf.Document, acr *gltf.Accessor, values [][3]float32) error {
	data, stride, err := accessorBytes(doc, acr, 12)
	if err != nil {
		return err
	}
	for i, v := range values {
		for j, c := range v {
			if _, err := bincursor.PutF32(data, i*stride+j*4, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Transform scales and offsets mesh positions, node translations and
// inverse bind matrices in place. Morph target deltas are only scaled.
func Transform(doc *gltf.Document, scale *geom.Vector3, offset *geom.Vector3) error {
	if scale == nil && offset == nil {
		return nil
	}
	scaleMat := geom.NewMatrix4()
	if scale != nil {
		scaleMat = geom.NewScaleMatrix4(scale.X, scale.Y, scale.Z)
	}
	scaleOffsetMat := scaleMat
	if offset != nil {
		scaleOffsetMat = geom.NewTranslateMatrix4(offset.X, offset.Y, offset.Z).Mul(scaleMat)
	}

	accs := map[uint32]bool{}
	for _, m := range doc.Meshes {
		for _, p := range m.Primitives {
			if a, ok := p.Attributes["POSITION"]; ok {
				accs[a] = false
			}
			for _, t := range p.Targets {
				if a, ok := t["POSITION"]; ok {
					accs[a] = true
				}
			}
		}
	}
	for a, diff := range accs {
		acr := doc.Accessors[a]
		if acr.Sparse != nil || acr.ComponentType != gltf.ComponentFloat {
			return vrmerr.New(vrmerr.UnsupportedComponentType, "gltfutil.Transform", "accessor %d: sparse or quantized positions", a)
		}
		decoded, err := accessor.Decode(doc, nil, a)
		if err != nil {
			return errors.Wrapf(err, "accessor %d", a)
		}
		pos := decoded.Vec3()
		acr.Min = []float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
		acr.Max = []float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
		for i := range pos {
			if diff {
				pos[i] = scaleMat.ApplyTo(geom.NewVector3FromArray(pos[i])).Array()
			} else {
				pos[i] = scaleOffsetMat.ApplyTo(geom.NewVector3FromArray(pos[i])).Array()
			}
			for t, v := range pos[i] {
				acr.Min[t] = float32(math.Min(float64(acr.Min[t]), float64(v)))
				acr.Max[t] = float32(math.Max(float64(acr.Max[t]), float64(v)))
			}
		}
		if err := writeVec3(doc, acr, pos); err != nil {
			return err
		}
	}
	for _, node := range doc.Nodes {
		node.Translation = scaleMat.ApplyTo(geom.NewVector3FromArray(node.Translation)).Array()
	}
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
			m := geom.NewMatrix4FromSlice(mat[:]).Mul(scaleMat)
			m.ToArray(mat[:])
			// normalize rotation
			geom.NewVector3FromSlice(mat[0:3]).Normalize().ToArray(mat[0:3])
			geom.NewVector3FromSlice(mat[4:7]).Normalize().ToArray(mat[4:7])
			geom.NewVector3FromSlice(mat[8:11]).Normalize().ToArray(mat[8:11])
			if err := writeMatrixAt(data, i*stride, mat); err != nil {
				return err
			}
		}
	}
	return nil
}
