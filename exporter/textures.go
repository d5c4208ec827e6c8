package exporter

import (
	"fmt"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

func (e *exporter) imageData(img *avatar.Image) ([]byte, error) {
	if img.Data != nil {
		return img.Data, nil
	}
	if img.Handle == "" || e.opt.ImageSource == nil {
		return nil, vrmerr.New(vrmerr.UnknownTexture, "exporter", "image %q has no data", img.Name)
	}
	return e.opt.ImageSource.ReadImage(img.Handle)
}

type textureKey struct {
	image   uint32
	sampler int
}

// writeTextures embeds every image and writes samplers and textures.
// Identical samplers and textures share one entry.
func (e *exporter) writeTextures() error {
	s := e.scene
	e.images = make([]int, len(s.Images))
	for i, img := range s.Images {
		e.images[i] = -1
		subject := img.Name
		if subject == "" {
			subject = fmt.Sprintf("image%d", i)
		}
		data, err := e.imageData(img)
		if err != nil {
			e.warn.AddError(subject, err)
			continue
		}
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = texture.MimeTypeOf(data)
		}
		out, outType, err := texture.Normalize(data, mimeType, e.opt.Texture)
		if err != nil {
			e.warn.AddError(subject, vrmerr.Wrap(vrmerr.UnknownTexture, "exporter", err))
			continue
		}
		if outType != mimeType || len(out) != len(data) {
			e.log.WithField("image", subject).WithField("bytes", len(out)).Debug("image re-encoded")
		}
		e.images[i] = int(e.b.WriteImage(img.Name, outType, out))
	}

	samplers := map[avatar.Sampler]int{}
	samplerOf := func(i int) int {
		if i < 0 || i >= len(s.Samplers) {
			return -1
		}
		key := *s.Samplers[i]
		if idx, ok := samplers[key]; ok {
			return idx
		}
		e.doc.Samplers = append(e.doc.Samplers, &gltf.Sampler{
			MagFilter: key.MagFilter,
			MinFilter: key.MinFilter,
			WrapS:     key.WrapS,
			WrapT:     key.WrapT,
		})
		samplers[key] = len(e.doc.Samplers) - 1
		return samplers[key]
	}

	textures := map[textureKey]int{}
	e.textures = make([]int, len(s.Textures))
	for i, t := range s.Textures {
		e.textures[i] = -1
		if t.Image < 0 || t.Image >= len(e.images) || e.images[t.Image] < 0 {
			e.warn.Add(vrmerr.UnknownTexture, fmt.Sprintf("texture%d", i), "image %d was not written", t.Image)
			continue
		}
		key := textureKey{image: uint32(e.images[t.Image]), sampler: samplerOf(t.Sampler)}
		if idx, ok := textures[key]; ok {
			e.textures[i] = idx
			continue
		}
		tex := &gltf.Texture{Source: gltf.Index(key.image)}
		if key.sampler >= 0 {
			tex.Sampler = gltf.Index(uint32(key.sampler))
		}
		e.doc.Textures = append(e.doc.Textures, tex)
		textures[key] = len(e.doc.Textures) - 1
		e.textures[i] = textures[key]
	}
	return nil
}

// textureMap resolves scene texture indices for the material translator.
func (e *exporter) textureMap(index int) (uint32, bool) {
	if index < 0 || index >= len(e.textures) || e.textures[index] < 0 {
		return 0, false
	}
	return uint32(e.textures[index]), true
}

// textureOfImage returns a texture showing a scene image, adding one when
// no texture does. VRM 0.x thumbnails refer to textures.
func (e *exporter) textureOfImage(image int) (int, bool) {
	if image < 0 || image >= len(e.images) || e.images[image] < 0 {
		return 0, false
	}
	src := uint32(e.images[image])
	for i, t := range e.doc.Textures {
		if t.Source != nil && *t.Source == src {
			return i, true
		}
	}
	e.doc.Textures = append(e.doc.Textures, &gltf.Texture{Source: gltf.Index(src)})
	return len(e.doc.Textures) - 1, true
}

// writeMaterials writes the glTF part of every material. VRM 1.0 adds
// VRMC_materials_mtoon; 0.x properties are written with the extension.
func (e *exporter) writeMaterials() error {
	for _, m := range e.scene.Materials {
		mat, used := material.ToGltf(m, e.textureMap)
		for _, ext := range used {
			e.vdoc.AddExtensionUsed(ext)
		}
		if e.version() == vrm.Version1 {
			if mt := material.ToMToon1(m, e.textureMap); mt != nil {
				if mat.Extensions == nil {
					mat.Extensions = gltf.Extensions{}
				}
				mat.Extensions[vrm.ExtensionMToon] = mt
				e.vdoc.AddExtensionUsed(vrm.ExtensionMToon)
			}
		}
		e.doc.Materials = append(e.doc.Materials, mat)
		e.log.WithField("material", m.String()).Debug("material written")
	}
	return nil
}
