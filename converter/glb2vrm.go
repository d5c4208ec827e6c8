// Package converter turns plain glTF models into VRM avatars and MMD
// motions into VRM animations.
package converter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/binzume/vrmconv/config"
	"github.com/binzume/vrmconv/exporter"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/gltfutil"
	"github.com/binzume/vrmconv/importer"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

type GLBOptions struct {
	Logger  logrus.FieldLogger
	Context context.Context
	// Version of the output. VersionNone means 0.x.
	Version vrm.Version
	// Scale is applied to the model before conversion when not 0 or 1.
	Scale float32
}

// GLBToVRM applies conf to a plain glTF document and exports it as a VRM.
// doc is modified; buffers must carry their data.
func GLBToVRM(doc *gltf.Document, conf *config.Config, opt *GLBOptions) ([]byte, *vrmerr.Warnings, error) {
	if opt == nil {
		opt = &GLBOptions{}
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	warn := vrmerr.NewWarnings(log)

	if err := gltfutil.WidenJoints(doc); err != nil {
		return nil, warn, err
	}
	if err := gltfutil.ResetJointMatrix(doc); err != nil {
		return nil, warn, err
	}
	if opt.Scale != 0 && opt.Scale != 1 {
		if err := gltfutil.Transform(doc, geom.NewVector3(opt.Scale, opt.Scale, opt.Scale), nil); err != nil {
			return nil, warn, err
		}
	}

	vdoc := (*vrm.Document)(doc)
	warn.Merge(config.Apply(vdoc, conf, log))
	log.Info("Title: ", vdoc.VRM().Title())
	log.Info("Author: ", vdoc.VRM().Author())
	if err := vdoc.ValidateBones(); err != nil {
		return nil, warn, err
	}

	av, iw, err := importer.ImportDocument(doc, nil, &importer.Options{
		Logger:           log,
		LicenseConfirmed: true,
		AllowPlainGLTF:   true,
	})
	warn.Merge(iw)
	if err != nil {
		return nil, warn, err
	}
	data, ew, err := exporter.Export(exporter.SceneFromAvatar(av), &exporter.Options{
		Version: opt.Version,
		Logger:  log,
		Context: opt.Context,
	})
	warn.Merge(ew)
	return data, warn, err
}

// GLBToVRMFile converts a .glb or .gltf file. confPath may be empty; a
// missing config file is logged and human bones are then mapped by node name.
func GLBToVRMFile(input, output, confPath string, opt *GLBOptions) (*vrmerr.Warnings, error) {
	log := logrus.FieldLogger(logrus.StandardLogger())
	if opt != nil && opt.Logger != nil {
		log = opt.Logger
	}
	doc, err := gltf.Open(input)
	if err != nil {
		return nil, errors.Wrap(err, input)
	}
	dir := filepath.Dir(input)
	if err := gltfutil.ToSingleFile(doc, func(uri string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, filepath.FromSlash(uri)))
	}, log); err != nil {
		return nil, err
	}

	var conf *config.Config
	if confPath != "" {
		if _, err := os.Stat(confPath); err != nil {
			log.WithError(err).Warn("vrm config not found")
		} else if conf, err = config.Load(confPath); err != nil {
			return nil, err
		}
	}
	data, warn, err := GLBToVRM(doc, conf, opt)
	if err != nil {
		return warn, err
	}
	return warn, errors.WithStack(os.WriteFile(output, data, 0644))
}
