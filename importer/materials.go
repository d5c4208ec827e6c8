package importer

import (
	"fmt"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

func (im *importer) bufferViewData(index uint32) ([]byte, error) {
	if int(index) >= len(im.doc.BufferViews) {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "importer", "bufferView %d out of range", index)
	}
	bv := im.doc.BufferViews[index]
	if int(bv.Buffer) >= len(im.doc.Buffers) {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "importer", "buffer %d out of range", bv.Buffer)
	}
	buf := im.doc.Buffers[bv.Buffer].Data
	if bv.Buffer == 0 && len(buf) == 0 {
		buf = im.bin
	}
	data, _, err := bincursor.ReadBytes(buf, int(bv.ByteOffset), int(bv.ByteLength))
	return data, err
}

func (im *importer) imageData(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		return im.bufferViewData(*img.BufferView)
	}
	if img.IsEmbeddedResource() {
		data, err := img.MarshalData()
		return data, vrmerr.Wrap(vrmerr.InvalidDocument, "importer", err)
	}
	return nil, vrmerr.New(vrmerr.UnknownTexture, "importer", "external image %q is not embedded", img.URI)
}

// importImages reads every image. Images that cannot be read keep their
// slot with no data so texture indices stay valid.
func (im *importer) importImages() {
	for i, src := range im.doc.Images {
		fallback := fmt.Sprintf("image%d", i)
		img := &avatar.Image{Name: src.Name, MimeType: src.MimeType}
		im.av.Images = append(im.av.Images, img)
		data, err := im.imageData(src)
		if err != nil {
			im.warn.AddError(fallback, err)
			continue
		}
		img.Data = data
		if img.MimeType == "" {
			img.MimeType = texture.MimeTypeOf(data)
		}
		if img.Name == "" {
			img.Name = fallback
		}
		if !im.opt.ExtractTextures || im.opt.ImageSink == nil {
			continue
		}
		name := texture.SanitizeName(src.Name, img.MimeType, fallback)
		handle, err := texture.WriteUnique(im.opt.ImageSink, name, data, img.MimeType)
		if err != nil {
			if vrmerr.KindOf(err) == vrmerr.KindUnknown {
				err = vrmerr.Wrap(vrmerr.ImageWriteCollision, "importer", err)
			}
			im.warn.AddError(name, err)
			continue
		}
		img.Handle = handle
		im.log.WithField("image", handle).Debug("image written")
	}

	for _, s := range im.doc.Samplers {
		im.av.Samplers = append(im.av.Samplers, &avatar.Sampler{
			MagFilter: s.MagFilter,
			MinFilter: s.MinFilter,
			WrapS:     s.WrapS,
			WrapT:     s.WrapT,
		})
	}
	for i, t := range im.doc.Textures {
		tex := &avatar.Texture{Image: -1, Sampler: -1}
		if t.Source != nil && int(*t.Source) < len(im.av.Images) {
			tex.Image = int(*t.Source)
		} else {
			im.warn.Add(vrmerr.UnknownTexture, fmt.Sprintf("texture%d", i), "no image")
		}
		if t.Sampler != nil && int(*t.Sampler) < len(im.av.Samplers) {
			tex.Sampler = int(*t.Sampler)
		}
		im.av.Textures = append(im.av.Textures, tex)
	}
}

// materialProperty finds the VRM 0.x property entry of material i: the
// entry at the same index when its name matches, otherwise the first entry
// with the material's name.
func materialProperty(props []*vrm.MaterialProperty, i int, name string) *vrm.MaterialProperty {
	if i < len(props) && props[i] != nil && props[i].Name == name {
		return props[i]
	}
	for _, p := range props {
		if p != nil && p.Name == name {
			return p
		}
	}
	if i < len(props) && props[i] != nil && props[i].Name == "" {
		return props[i]
	}
	return nil
}

func (im *importer) importMaterials() {
	var props []*vrm.MaterialProperty
	if im.av.Version == vrm.Version0 {
		props = im.vrm.VRM().MaterialProperties
	}
	for i, mat := range im.doc.Materials {
		var prop *vrm.MaterialProperty
		if im.av.Version == vrm.Version0 {
			prop = materialProperty(props, i, mat.Name)
			if prop == nil {
				prop = vrm.NewMaterialProperty(mat.Name)
			}
		}
		m := material.Import(mat, prop, len(im.av.Textures), im.warn)
		im.av.Materials = append(im.av.Materials, m)
		im.log.WithFields(logrus.Fields{"material": m.Name, "kind": m.Kind().String()}).Debug("material imported")
	}
}
