package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type Options struct {
	ReCompress      bool
	BytesThreshold  int64 // 0: unlimited
	ResolutionLimit int   // 0: unlimited
	Scale           float32
}

// Decode decodes any registered image format, with TGA as a fallback
// since it has no magic number.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		var err2 error
		img, err2 = tga.Decode(bytes.NewReader(data))
		if err2 != nil {
			return nil, errors.Wrap(err, "decode image")
		}
	}
	return img, nil
}

// HasAlpha reports whether img has any pixel that is not fully opaque.
func HasAlpha(img image.Image) bool {
	switch img.ColorModel() {
	case color.YCbCrModel, color.CMYKModel, color.GrayModel:
		return false
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

// Scale resizes img so that it is scaled by scale and no side exceeds limit.
func Scale(img image.Image, scale float32, limit int) image.Image {
	if scale == 0 {
		scale = 1
	}
	rect := img.Bounds()
	if limit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if h := int(float32(rect.Dy()) * scale); h > sz {
			sz = h
		}
		if sz > limit {
			scale *= float32(limit) / float32(sz)
		}
	}
	if scale == 1.0 {
		return img
	}
	w, h := int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}

func Encode(img image.Image, mimeType string) ([]byte, error) {
	w := new(bytes.Buffer)
	var err error
	if mimeType == "image/jpeg" {
		err = jpeg.Encode(w, img, nil)
	} else {
		err = png.Encode(w, img)
	}
	return w.Bytes(), errors.WithStack(err)
}

// Normalize returns image data glTF viewers can read. PNG and JPEG pass
// through unless re-compression is requested or the data exceeds the
// byte threshold; anything else is decoded and re-encoded as PNG.
func Normalize(data []byte, mimeType string, opt *Options) ([]byte, string, error) {
	if opt == nil {
		opt = &Options{}
	}
	encode := opt.ReCompress || (opt.Scale != 0 && opt.Scale != 1) || opt.ResolutionLimit > 0
	if opt.BytesThreshold > 0 && int64(len(data)) > opt.BytesThreshold {
		encode = true
	}
	if mimeType != "image/png" && mimeType != "image/jpeg" {
		mimeType = "image/png"
		encode = true
	}
	if !encode {
		return data, mimeType, nil
	}
	img, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	out, err := Encode(Scale(img, opt.Scale, opt.ResolutionLimit), mimeType)
	if err != nil {
		return nil, "", err
	}
	return out, mimeType, nil
}

// MimeTypeOf sniffs the mime type of image data.
func MimeTypeOf(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte("8BPS")):
		return "image/vnd.adobe.photoshop"
	}
	return "image/x-tga"
}
