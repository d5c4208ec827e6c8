// Package importer resolves a VRM document into an avatar.
package importer

import (
	"os"

	"github.com/binzume/vrmconv/accessor"
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

type ProgressSink interface {
	ReportProgress(ratio float64)
}

type Options struct {
	Logger    logrus.FieldLogger
	ImageSink texture.ImageSink
	Progress  ProgressSink

	// ExtractTextures writes every image to ImageSink.
	ExtractTextures bool
	// LicenseConfirmed is set when the user accepted a restrictive license.
	LicenseConfirmed bool
	// AllowPlainGLTF accepts documents without a VRM extension.
	AllowPlainGLTF bool
}

type importer struct {
	opt  *Options
	log  logrus.FieldLogger
	warn *vrmerr.Warnings

	doc  *gltf.Document
	vrm  *vrm.Document
	bin  []byte
	acc  accessor.Set
	av   *avatar.Avatar
	errs []error

	legacyUV bool
	vec3     map[uint32][][3]float32
}

const steps = 9

func (im *importer) progress(step int) {
	if im.opt.Progress != nil {
		im.opt.Progress.ReportProgress(float64(step) / steps)
	}
}

// Import parses a .vrm file and resolves it. Recoverable issues are
// returned as warnings. When required human bones are missing the avatar
// built so far is returned together with an UnresolvedHumanBone error.
func Import(data []byte, opt *Options) (*avatar.Avatar, *vrmerr.Warnings, error) {
	doc, c, err := glb.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return ImportDocument(doc, c.BIN, opt)
}

func ImportFile(path string, opt *Options) (*avatar.Avatar, *vrmerr.Warnings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return Import(data, opt)
}

// ImportDocument resolves an already decoded document. bin is the GLB
// binary chunk, or nil when the buffers carry their data.
func ImportDocument(doc *gltf.Document, bin []byte, opt *Options) (*avatar.Avatar, *vrmerr.Warnings, error) {
	if opt == nil {
		opt = &Options{}
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	im := &importer{
		opt:  opt,
		log:  log,
		warn: vrmerr.NewWarnings(log),
		doc:  doc,
		vrm:  (*vrm.Document)(doc),
		bin:  bin,
		av:   avatar.New(),
		vec3: map[uint32][][3]float32{},
	}
	err := im.run()
	if err != nil && !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		return nil, im.warn, err
	}
	return im.av, im.warn, err
}

func (im *importer) run() error {
	if err := im.checkPreconditions(); err != nil {
		return err
	}
	im.av.Version = im.vrm.Version()
	im.av.Generator = im.doc.Asset.Generator
	im.legacyUV = LegacyUVFlip(im.doc.Asset.Generator)
	if im.legacyUV {
		im.log.WithField("generator", im.doc.Asset.Generator).Info("legacy UniGLTF texture coordinates")
	}
	im.progress(1)

	im.importImages()
	im.progress(2)

	acc, err := accessor.DecodeAll(im.doc, im.bin)
	if err != nil {
		return err
	}
	im.acc = acc
	im.progress(3)

	if err := im.importMeshes(); err != nil {
		return err
	}
	im.progress(4)

	if err := im.importNodes(); err != nil {
		return err
	}
	im.progress(5)

	im.importSkins()
	im.progress(6)

	im.inferBones()
	im.progress(7)

	switch im.av.Version {
	case vrm.Version0:
		im.importVRM0(im.vrm.VRM())
	case vrm.Version1:
		im.importVRM1(im.vrm.VRMC())
	}
	im.progress(8)

	im.importMaterials()
	im.progress(9)

	if err := im.av.Validate(); err != nil {
		return err
	}
	im.log.WithFields(logrus.Fields{
		"version": im.av.Version.String(),
		"title":   im.av.Meta.Name,
		"authors": im.av.Meta.Authors,
		"nodes":   len(im.av.Nodes),
		"meshes":  len(im.av.Meshes),
	}).Info("imported")

	if len(im.errs) > 0 {
		return im.errs[0]
	}
	return nil
}

// fail records an error that fails the import once every step has run.
func (im *importer) fail(err error) {
	im.errs = append(im.errs, err)
}

func (im *importer) checkPreconditions() error {
	const op = "importer"
	if c := im.vrm.RequiredCompression(); len(c) > 0 {
		return vrmerr.New(vrmerr.UnsupportedCompression, op, "required extensions %v are not supported", c)
	}
	if im.vrm.Version() == vrm.VersionNone && !im.opt.AllowPlainGLTF {
		return vrmerr.New(vrmerr.InvalidDocument, op, "no VRM extension")
	}
	if im.opt.LicenseConfirmed {
		return nil
	}
	return CheckLicense(im.vrm)
}
