package config

import (
	"encoding/json"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

type applier struct {
	doc   *vrm.Document
	ext   *vrm.VRM
	warn  *vrmerr.Warnings
	nodes map[string]int
	// targets maps morph target names to mesh and target index.
	targets map[string][2]int
	found   map[string]bool
	shapes  map[string]bool
}

// Apply writes conf into the VRM 0.x extension of doc. Settings of conf
// take precedence over its presets. Human bones the config leaves unmapped
// are taken from nodes named after them.
func Apply(doc *vrm.Document, conf *Config, log logrus.FieldLogger) *vrmerr.Warnings {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if conf == nil {
		conf = &Config{}
	}
	a := &applier{
		doc:     doc,
		ext:     doc.VRM(),
		warn:    vrmerr.NewWarnings(log),
		nodes:   map[string]int{},
		targets: map[string][2]int{},
		found:   map[string]bool{},
		shapes:  map[string]bool{},
	}
	for id, node := range doc.Nodes {
		if _, ok := a.nodes[node.Name]; !ok {
			a.nodes[node.Name] = id
		}
	}
	for mi, mesh := range doc.Meshes {
		for ti, name := range vrm.TargetNames(mesh) {
			if _, ok := a.targets[name]; !ok {
				a.targets[name] = [2]int{mi, ti}
			}
		}
	}

	chain := conf.Chain()
	a.ext.ExporterVersion = vrm.ExporterVersion
	a.ext.Meta = mergeMeta(chain)
	if len(a.ext.MaterialProperties) != len(doc.Materials) {
		a.ext.MaterialProperties = []*vrm.MaterialProperty{}
		for _, mat := range doc.Materials {
			a.ext.MaterialProperties = append(a.ext.MaterialProperties, vrm.NewMaterialProperty(mat.Name))
		}
	}
	a.ext.Humanoid.Bones = []*vrm.Bone{}
	for _, c := range chain {
		a.bones(c)
		a.morphs(c)
		a.boneGroups(c)
	}
	a.materials(chain)
	a.defaultBones()

	log.WithFields(logrus.Fields{
		"title":  a.ext.Title(),
		"author": a.ext.Author(),
		"bones":  len(a.ext.Humanoid.Bones),
	}).Info("vrm config applied")
	return a.warn
}

// mergeMeta overlays the set fields of each config on its presets.
func mergeMeta(chain []*Config) vrm.Metadata {
	var meta vrm.Metadata
	for i := len(chain) - 1; i >= 0; i-- {
		b, err := json.Marshal(&chain[i].Metadata)
		if err == nil {
			json.Unmarshal(b, &meta)
		}
	}
	return meta
}

func (a *applier) bones(conf *Config) {
	for _, mapping := range conf.BoneMappings {
		name := mapping.Bone.Bone
		if a.found[name] {
			continue
		}
		if mapping.NodeName == "" {
			// An empty node name leaves the bone unmapped.
			a.found[name] = true
			continue
		}
		id, ok := a.nodes[mapping.NodeName]
		if !ok {
			a.warn.Add(vrmerr.UnresolvedHumanBone, name, "bone node %s not found", mapping.NodeName)
			continue
		}
		b := mapping.Bone
		b.Node = id
		b.UseDefaultValues = b.UseDefaultValues || b.Min == nil && b.Max == nil && b.Center == nil
		a.found[name] = true
		a.ext.Humanoid.Bones = append(a.ext.Humanoid.Bones, &b)
	}
}

func (a *applier) defaultBones() {
	for _, hb := range vrm.HumanBones {
		name := vrm.Bone1To0(hb.Name)
		if a.found[name] {
			continue
		}
		if id, ok := a.nodes[name]; ok {
			a.found[name] = true
			a.ext.Humanoid.Bones = append(a.ext.Humanoid.Bones, &vrm.Bone{Bone: name, Node: id, UseDefaultValues: true})
		}
	}
}

func (a *applier) morphs(conf *Config) {
	for _, mapping := range conf.MorphMappings {
		if a.shapes[mapping.Name] {
			continue
		}
		bind := &vrm.BlendShapeBind{Weight: 100}
		if mapping.TargetName != "" {
			t, ok := a.targets[mapping.TargetName]
			if !ok {
				a.warn.Add(vrmerr.InvalidDocument, mapping.Name, "morph target %s not found", mapping.TargetName)
				continue
			}
			bind.Mesh, bind.Index = t[0], t[1]
		} else {
			id, ok := a.nodes[mapping.NodeName]
			if !ok || a.doc.Nodes[id].Mesh == nil {
				a.warn.Add(vrmerr.InvalidDocument, mapping.Name, "morph node %s not found", mapping.NodeName)
				continue
			}
			bind.Mesh, bind.Index = int(*a.doc.Nodes[id].Mesh), mapping.TargetIndex
		}
		preset := "unknown"
		if _, ok := vrm.Preset0To1(mapping.Name); ok {
			preset = mapping.Name
		}
		a.shapes[mapping.Name] = true
		a.ext.BlendShapeMaster.BlendShapeGroups = append(a.ext.BlendShapeMaster.BlendShapeGroups, &vrm.BlendShapeGroup{
			Name:       mapping.Name,
			PresetName: preset,
			Binds:      []*vrm.BlendShapeBind{bind},
		})
	}
}

func (a *applier) boneGroups(conf *Config) {
	for _, group := range conf.AnimationBoneGroups {
		b := group.SecondaryAnimationBoneGroup
		b.Bones = append([]int(nil), b.Bones...)
		for _, name := range group.NodeNames {
			if id, ok := a.nodes[name]; ok {
				b.Bones = append(b.Bones, id)
			} else {
				a.warn.Add(vrmerr.InvalidDocument, b.Comment, "spring bone node %s not found", name)
			}
		}
		if len(b.Bones) == 0 {
			continue
		}
		if a.ext.SecondaryAnimation == nil {
			a.ext.SecondaryAnimation = &vrm.SecondaryAnimation{ColliderGroups: []*vrm.ColliderGroup{}}
		}
		a.ext.SecondaryAnimation.BoneGroups = append(a.ext.SecondaryAnimation.BoneGroups, &b)
	}
}

func (a *applier) setting(chain []*Config, name string) *MaterialSetting {
	for _, key := range []string{name, "*"} {
		for _, c := range chain {
			if s := c.MaterialSettings[key]; s != nil {
				return s
			}
		}
	}
	return nil
}

func (a *applier) materials(chain []*Config) {
	for _, mat := range a.doc.Materials {
		s := a.setting(chain, mat.Name)
		if s == nil {
			continue
		}
		if s.ForceUnlit {
			if mat.Extensions == nil {
				mat.Extensions = gltf.Extensions{}
			}
			mat.Extensions[vrm.ExtensionUnlit] = &vrm.Unlit{}
			a.doc.AddExtensionUsed(vrm.ExtensionUnlit)
		}
		switch s.AlphaMode {
		case "blend":
			mat.AlphaMode = gltf.AlphaBlend
		case "mask":
			mat.AlphaMode = gltf.AlphaMask
		case "opaque":
			mat.AlphaMode = gltf.AlphaOpaque
		}
	}
}
