package exporter

import (
	"fmt"
	"strings"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/material"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
)

// defaultCurve is the linear degree map curve Unity writes.
var defaultCurve = []float64{0, 0, 0, 1, 1, 1, 1, 0}

func (e *exporter) writeExtension() error {
	if e.version() == vrm.Version1 {
		return e.writeVRM1()
	}
	return e.writeVRM0()
}

// morphIndex resolves a morph bind to an output mesh and target index.
func (e *exporter) morphIndex(b *avatar.MorphBind, subject string) (int, int, bool) {
	mesh, ok := e.meshes[b.Mesh]
	if !ok {
		e.warn.Add(vrmerr.InvalidDocument, subject, "node %d has no exported mesh", b.Mesh)
		return 0, 0, false
	}
	for i, name := range e.targets[b.Mesh] {
		if name == b.Target {
			return mesh, i, true
		}
	}
	e.warn.Add(vrmerr.InvalidDocument, subject, "mesh %d has no morph target %q", mesh, b.Target)
	return 0, 0, false
}

func (e *exporter) materialIndex(m int, subject string) bool {
	if m < 0 || m >= len(e.scene.Materials) {
		e.warn.Add(vrmerr.InvalidDocument, subject, "material %d does not exist", m)
		return false
	}
	return true
}

func (e *exporter) meta0() vrm.Metadata {
	m := &e.scene.Settings.Meta
	meta := vrm.Metadata{
		Title:                m.Name,
		Version:              m.Version,
		Author:               strings.Join(m.Authors, ", "),
		ContactInformation:   m.ContactInformation,
		Reference:            strings.Join(m.References, ", "),
		AllowedUserName:      vrm.AvatarPermission1To0(m.AvatarPermission),
		ViolentUssageName:    vrm.Usage0(m.AllowViolent),
		SexualUssageName:     vrm.Usage0(m.AllowSexual),
		CommercialUssageName: vrm.Usage0(m.CommercialUsage != "" && m.CommercialUsage != vrm.CommercialPersonalNonProfit),
		OtherPermissionURL:   m.OtherPermissionURL,
		LicenseName:          m.LicenseName,
		OtherLicenseURL:      m.OtherLicenseURL,
	}
	if meta.LicenseName == "" {
		meta.LicenseName = vrm.LicenseOther
		if meta.OtherLicenseURL == "" {
			meta.OtherLicenseURL = m.LicenseURL
		}
	}
	if t, ok := e.textureOfImage(m.Thumbnail); ok {
		meta.Texture = &t
	}
	return meta
}

func degreeMap(r *avatar.RangeMap) *vrm.DegreeMap {
	if r == nil {
		return nil
	}
	curve := r.Curve
	if len(curve) == 0 {
		curve = defaultCurve
	}
	return &vrm.DegreeMap{Curve: curve, XRange: r.InputMaxValue, YRange: r.OutputScale}
}

func (e *exporter) writeVRM0() error {
	s := &e.scene.Settings
	ext := e.vdoc.VRM()
	ext.ExporterVersion = vrm.ExporterVersion
	ext.Meta = e.meta0()

	for _, b := range vrm.HumanBones {
		if n, ok := s.Humanoid.Node(b.Name); ok {
			ext.Humanoid.Bones = append(ext.Humanoid.Bones, &vrm.Bone{Bone: vrm.Bone1To0(b.Name), Node: n, UseDefaultValues: true})
		}
	}

	fp := &vrm.FirstPerson{FirstPersonBone: s.FirstPerson.Bone, MeshAnnotations: []*vrm.MeshAnnotation{}}
	if fp.FirstPersonBone < 0 {
		fp.FirstPersonBone = s.Humanoid.Bones["head"]
	}
	offset := s.FirstPerson.BoneOffset
	fp.FirstPersonBoneOffset = vrm.Vec3{X: offset[0], Y: offset[1], Z: offset[2]}
	for _, a := range s.FirstPerson.MeshAnnotations {
		mesh, ok := e.meshes[a.Mesh]
		if !ok {
			e.warn.Add(vrmerr.InvalidDocument, "firstPerson", "node %d has no exported mesh", a.Mesh)
			continue
		}
		fp.MeshAnnotations = append(fp.MeshAnnotations, &vrm.MeshAnnotation{Mesh: mesh, FirstPersonFlag: vrm.FirstPersonFlag1To0(a.Flag)})
	}
	la := &s.LookAt
	fp.LookAtTypeName = vrm.LookAtType1To0(la.Type)
	fp.LookAtHorizontalInner = degreeMap(la.HorizontalInner)
	fp.LookAtHorizontalOuter = degreeMap(la.HorizontalOuter)
	fp.LookAtVerticalDown = degreeMap(la.VerticalDown)
	fp.LookAtVerticalUp = degreeMap(la.VerticalUp)
	ext.FirstPerson = fp

	for _, x := range s.Expressions {
		ext.BlendShapeMaster.BlendShapeGroups = append(ext.BlendShapeMaster.BlendShapeGroups, e.blendShapeGroup(x))
	}

	ext.SecondaryAnimation = e.secondaryAnimation()

	for _, m := range e.scene.Materials {
		ext.MaterialProperties = append(ext.MaterialProperties, material.ToProperty(m, e.textureMap))
	}
	if len(s.Constraints) > 0 {
		e.warn.Add(vrmerr.InvalidDocument, "constraints", "%d node constraints dropped, VRM 0.x has none", len(s.Constraints))
	}
	return nil
}

func (e *exporter) blendShapeGroup(x *avatar.Expression) *vrm.BlendShapeGroup {
	g := &vrm.BlendShapeGroup{
		Name:           x.Name,
		PresetName:     "unknown",
		Binds:          []*vrm.BlendShapeBind{},
		MaterialValues: []*vrm.MaterialValueBind{},
		IsBinary:       x.IsBinary,
	}
	if p, ok := vrm.Preset1To0(x.Preset); ok {
		g.PresetName = p
	}
	for i := range x.MorphBinds {
		b := &x.MorphBinds[i]
		if mesh, index, ok := e.morphIndex(b, x.Name); ok {
			g.Binds = append(g.Binds, &vrm.BlendShapeBind{Mesh: mesh, Index: index, Weight: b.Weight * 100})
		}
	}
	for _, b := range x.MaterialColorBinds {
		if !e.materialIndex(b.Material, x.Name) {
			continue
		}
		prop, ok := vrm.MaterialColorProperties[b.Type]
		if !ok {
			e.warn.Add(vrmerr.UnknownMaterialProperty, x.Name, "material color %s has no VRM 0.x property", b.Type)
			continue
		}
		g.MaterialValues = append(g.MaterialValues, &vrm.MaterialValueBind{
			MaterialName: e.scene.Materials[b.Material].Name,
			PropertyName: prop,
			TargetValue:  b.Value[:],
		})
	}
	for _, b := range x.TextureTransformBinds {
		if !e.materialIndex(b.Material, x.Name) {
			continue
		}
		g.MaterialValues = append(g.MaterialValues, &vrm.MaterialValueBind{
			MaterialName: e.scene.Materials[b.Material].Name,
			PropertyName: "_MainTex_ST",
			TargetValue:  []float64{b.Offset[0], b.Offset[1], b.Scale[0], b.Scale[1]},
		})
	}
	return g
}

// secondaryAnimation writes spring bones as VRM 0.x bone groups. A 0.x
// collider group sits on one node, so groups spanning nodes are split.
func (e *exporter) secondaryAnimation() *vrm.SecondaryAnimation {
	sb := &e.scene.Settings.SpringBone
	sa := &vrm.SecondaryAnimation{
		BoneGroups:     []*vrm.SecondaryAnimationBoneGroup{},
		ColliderGroups: []*vrm.ColliderGroup{},
	}
	split := make([][]int, len(sb.ColliderGroups))
	for gi, g := range sb.ColliderGroups {
		byNode := map[int]*vrm.ColliderGroup{}
		for _, ci := range g.Colliders {
			if ci < 0 || ci >= len(sb.Colliders) {
				e.warn.Add(vrmerr.InvalidDocument, g.Name, "collider %d does not exist", ci)
				continue
			}
			c := &sb.Colliders[ci]
			if c.Capsule {
				e.warn.Add(vrmerr.InvalidDocument, g.Name, "capsule collider %d written as a sphere", ci)
			}
			cg, ok := byNode[c.Node]
			if !ok {
				cg = &vrm.ColliderGroup{Node: c.Node, Colliders: []*vrm.Collider{}}
				byNode[c.Node] = cg
				split[gi] = append(split[gi], len(sa.ColliderGroups))
				sa.ColliderGroups = append(sa.ColliderGroups, cg)
			}
			cg.Colliders = append(cg.Colliders, &vrm.Collider{
				Offset: vrm.Vec3{X: c.Offset[0], Y: c.Offset[1], Z: c.Offset[2]},
				Radius: c.Radius,
			})
		}
	}
	for i, sp := range sb.Springs {
		if len(sp.Joints) == 0 {
			continue
		}
		j := &sp.Joints[0]
		name := sp.Name
		if name == "" {
			name = fmt.Sprintf("spring%d", i)
		}
		g := &vrm.SecondaryAnimationBoneGroup{
			Comment:        sp.Name,
			Stiffiness:     j.Stiffness,
			GravityPower:   j.GravityPower,
			GravityDir:     vrm.Vec3{X: j.GravityDir[0], Y: j.GravityDir[1], Z: j.GravityDir[2]},
			DragForce:      j.DragForce,
			Center:         sp.Center,
			HitRadius:      j.HitRadius,
			Bones:          []int{},
			ColliderGroups: []int{},
		}
		if sp.ChainRoots {
			for _, j := range sp.Joints {
				g.Bones = append(g.Bones, j.Node)
			}
		} else {
			g.Bones = append(g.Bones, j.Node)
		}
		for _, cg := range sp.ColliderGroups {
			if cg < 0 || cg >= len(split) {
				e.warn.Add(vrmerr.InvalidDocument, name, "collider group %d does not exist", cg)
				continue
			}
			g.ColliderGroups = append(g.ColliderGroups, split[cg]...)
		}
		sa.BoneGroups = append(sa.BoneGroups, g)
	}
	return sa
}
