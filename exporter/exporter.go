// Package exporter assembles VRM documents from a host scene.
package exporter

import (
	"context"
	"os"
	"strings"

	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/gltfutil"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Version is vrm.Version0 or vrm.Version1. VersionNone means 0.x.
	Version  vrm.Version
	Logger   logrus.FieldLogger
	Progress ProgressSink
	Context  context.Context

	// ImageSource reads images that carry a handle but no data.
	ImageSource    texture.ImageSource
	Texture        *texture.Options
	ApplyModifiers bool
}

// cancelCheckInterval is the number of triangles between cancellation polls.
const cancelCheckInterval = 4096

type exporter struct {
	opt  *Options
	ctx  context.Context
	log  logrus.FieldLogger
	warn *vrmerr.Warnings

	src   ExportScene
	scene *Scene
	doc   *gltf.Document
	vdoc  *vrm.Document
	b     *gltfutil.Builder

	images   []int
	textures []int
	// meshes maps a node to its output mesh; targets to its morph names.
	meshes  map[int]int
	targets map[int][]string
	joints  map[int]int
	skin    int
	hips    int
}

const steps = 5

func (e *exporter) progress(step int) {
	if e.opt.Progress != nil {
		e.opt.Progress.ReportProgress(float64(step) / steps)
	}
}

func (e *exporter) canceled() error {
	if err := e.ctx.Err(); err != nil {
		return vrmerr.Wrap(vrmerr.Canceled, "exporter", err)
	}
	return nil
}

// Export builds a .vrm file from scene.
func Export(scene ExportScene, opt *Options) ([]byte, *vrmerr.Warnings, error) {
	doc, bin, warn, err := Assemble(scene, opt)
	if err != nil {
		return nil, warn, err
	}
	data, err := glb.Encode(doc, bin)
	return data, warn, err
}

func ExportFile(path string, scene ExportScene, opt *Options) (*vrmerr.Warnings, error) {
	data, warn, err := Export(scene, opt)
	if err != nil {
		return warn, err
	}
	return warn, errors.WithStack(os.WriteFile(path, data, 0644))
}

// Assemble builds the document and its binary buffer without packing them.
func Assemble(scene ExportScene, opt *Options) (*gltf.Document, []byte, *vrmerr.Warnings, error) {
	if opt == nil {
		opt = &Options{}
	}
	log := opt.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx := opt.Context
	if ctx == nil {
		ctx = context.Background()
	}
	doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0", Generator: vrm.ExporterVersion}}
	e := &exporter{
		opt:     opt,
		ctx:     ctx,
		log:     log,
		warn:    vrmerr.NewWarnings(log),
		src:     scene,
		scene:   scene.Scene(),
		doc:     doc,
		vdoc:    (*vrm.Document)(doc),
		b:       gltfutil.NewBuilder(doc),
		meshes:  map[int]int{},
		targets: map[int][]string{},
		joints:  map[int]int{},
		skin:    -1,
		hips:    -1,
	}
	if err := e.run(); err != nil {
		return nil, nil, e.warn, err
	}
	return doc, e.b.Bytes(), e.warn, nil
}

func (e *exporter) version() vrm.Version {
	if e.opt.Version == vrm.Version1 {
		return vrm.Version1
	}
	return vrm.Version0
}

func (e *exporter) run() error {
	if err := e.validate(); err != nil {
		return err
	}
	stages := []func() error{
		e.writeTextures,
		e.writeMaterials,
		e.writeNodes,
		e.writeMeshes,
		e.writeExtension,
	}
	for i, step := range stages {
		if err := e.canceled(); err != nil {
			return err
		}
		if err := step(); err != nil {
			return err
		}
		e.progress(i + 1)
	}
	e.log.WithFields(logrus.Fields{
		"version":   e.version().String(),
		"title":     e.scene.Settings.Meta.Name,
		"nodes":     len(e.doc.Nodes),
		"meshes":    len(e.doc.Meshes),
		"materials": len(e.doc.Materials),
		"bytes":     e.b.Len(),
	}).Info("exported")
	return nil
}

// validate checks the scene references the document depends on.
func (e *exporter) validate() error {
	const op = "exporter"
	s := e.scene
	for i, n := range s.Nodes {
		if n.Parent < -1 || n.Parent >= len(s.Nodes) {
			return vrmerr.New(vrmerr.InvalidDocument, op, "node %d: parent %d out of range", i, n.Parent)
		}
		depth := 0
		for p := n.Parent; p >= 0; p = s.Nodes[p].Parent {
			if p == i || depth > len(s.Nodes) {
				return vrmerr.New(vrmerr.InvalidDocument, op, "node %d is its own ancestor", i)
			}
			depth++
		}
	}
	bones := s.Settings.Humanoid.Bones
	for name, n := range bones {
		if !vrm.IsHumanBone(name) {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, op, "unknown human bone %s", name)
		}
		if n < 0 || n >= len(s.Nodes) {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, op, "%s: node %d does not exist", name, n)
		}
	}
	var missing []string
	if e.version() == vrm.Version0 {
		mapped := map[string]int{}
		for name, n := range bones {
			mapped[vrm.Bone1To0(name)] = n
		}
		missing = vrm.MissingBones(mapped, vrm.RequiredBones0)
	} else {
		missing = vrm.MissingBones(bones, vrm.RequiredBones1)
	}
	if len(missing) > 0 {
		return vrmerr.New(vrmerr.UnresolvedHumanBone, op, "missing required human bones: %s", strings.Join(missing, ","))
	}
	if e.version() == vrm.Version1 {
		parents := make([]int, len(s.Nodes))
		for i, n := range s.Nodes {
			parents[i] = n.Parent
		}
		if vs := vrm.CheckHierarchy(bones, parents); len(vs) > 0 {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, op, "human bone %s is not a descendant of %s", vs[0].Bone, vs[0].Ancestor)
		}
	}
	e.hips = bones["hips"]
	return nil
}
