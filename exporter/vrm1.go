package exporter

import (
	"fmt"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (e *exporter) meta1() vrm.Meta1 {
	m := &e.scene.Settings.Meta
	meta := vrm.Meta1{
		Name:                           m.Name,
		Version:                        m.Version,
		Authors:                        append([]string(nil), m.Authors...),
		CopyrightInformation:           m.CopyrightInformation,
		ContactInformation:             m.ContactInformation,
		References:                     append([]string(nil), m.References...),
		ThirdPartyLicenses:             m.ThirdPartyLicenses,
		LicenseURL:                     orDefault(m.LicenseURL, vrm.DefaultLicenseURL),
		AvatarPermission:               orDefault(m.AvatarPermission, vrm.AvatarPermissionOnlyAuthor),
		AllowExcessivelyViolentUsage:   m.AllowViolent,
		AllowExcessivelySexualUsage:    m.AllowSexual,
		CommercialUsage:                orDefault(m.CommercialUsage, vrm.CommercialPersonalNonProfit),
		AllowPoliticalOrReligiousUsage: m.AllowPolitical,
		AllowAntisocialOrHateUsage:     m.AllowAntisocial,
		CreditNotation:                 orDefault(m.CreditNotation, vrm.CreditRequired),
		AllowRedistribution:            m.AllowRedistribution,
		Modification:                   orDefault(m.Modification, vrm.ModificationProhibited),
		OtherLicenseURL:                m.OtherLicenseURL,
	}
	if len(meta.Authors) == 0 {
		meta.Authors = []string{"unknown"}
	}
	if m.Thumbnail >= 0 && m.Thumbnail < len(e.images) && e.images[m.Thumbnail] >= 0 {
		img := e.images[m.Thumbnail]
		meta.ThumbnailImage = &img
	}
	return meta
}

func rangeMap(r *avatar.RangeMap) *vrm.RangeMap {
	if r == nil {
		return nil
	}
	return &vrm.RangeMap{InputMaxValue: r.InputMaxValue, OutputScale: r.OutputScale}
}

func (e *exporter) writeVRM1() error {
	s := &e.scene.Settings
	ext := e.vdoc.VRMC()
	ext.Meta = e.meta1()
	for name, n := range s.Humanoid.Bones {
		ext.Humanoid.HumanBones[name] = &vrm.HumanBone1{Node: n}
	}

	if len(s.FirstPerson.MeshAnnotations) > 0 {
		ext.FirstPerson = &vrm.FirstPerson1{}
		for _, a := range s.FirstPerson.MeshAnnotations {
			if _, ok := e.meshes[a.Mesh]; !ok {
				e.warn.Add(vrmerr.InvalidDocument, "firstPerson", "node %d has no exported mesh", a.Mesh)
				continue
			}
			ext.FirstPerson.MeshAnnotations = append(ext.FirstPerson.MeshAnnotations, &vrm.MeshAnnotation1{Node: a.Mesh, Type: orDefault(a.Flag, "auto")})
		}
	}
	la := &s.LookAt
	ext.LookAt = &vrm.LookAt1{
		OffsetFromHeadBone:      la.OffsetFromHeadBone,
		Type:                    orDefault(la.Type, "bone"),
		RangeMapHorizontalInner: rangeMap(la.HorizontalInner),
		RangeMapHorizontalOuter: rangeMap(la.HorizontalOuter),
		RangeMapVerticalDown:    rangeMap(la.VerticalDown),
		RangeMapVerticalUp:      rangeMap(la.VerticalUp),
	}

	if len(s.Expressions) > 0 {
		ext.Expressions = &vrm.Expressions1{
			Preset: map[string]*vrm.Expression1{},
			Custom: map[string]*vrm.Expression1{},
		}
		for _, x := range s.Expressions {
			target := ext.Expressions.Custom
			name := x.Name
			if x.Preset != "" {
				target, name = ext.Expressions.Preset, x.Preset
			}
			if _, dup := target[name]; dup {
				e.warn.Add(vrmerr.InvalidDocument, name, "expression defined twice")
				continue
			}
			target[name] = e.expression1(x)
		}
	}

	if sb := e.springBone1(); sb != nil {
		e.vdoc.SetSpringBone(sb)
	}
	e.writeConstraints()
	return nil
}

func (e *exporter) expression1(x *avatar.Expression) *vrm.Expression1 {
	out := &vrm.Expression1{
		IsBinary:       x.IsBinary,
		OverrideBlink:  x.OverrideBlink,
		OverrideLookAt: x.OverrideLookAt,
		OverrideMouth:  x.OverrideMouth,
	}
	for i := range x.MorphBinds {
		b := &x.MorphBinds[i]
		if _, index, ok := e.morphIndex(b, x.Name); ok {
			out.MorphTargetBinds = append(out.MorphTargetBinds, &vrm.MorphTargetBind{Node: b.Mesh, Index: index, Weight: b.Weight})
		}
	}
	for _, b := range x.MaterialColorBinds {
		if e.materialIndex(b.Material, x.Name) {
			out.MaterialColorBinds = append(out.MaterialColorBinds, &vrm.MaterialColorBind{Material: b.Material, Type: b.Type, TargetValue: b.Value})
		}
	}
	for _, b := range x.TextureTransformBinds {
		if e.materialIndex(b.Material, x.Name) {
			out.TextureTransformBinds = append(out.TextureTransformBinds, &vrm.TextureTransformBind{Material: b.Material, Scale: b.Scale, Offset: b.Offset})
		}
	}
	return out
}

// chain follows first children from root.
func (e *exporter) chain(root int) []int {
	nodes := []int{root}
	for n := root; ; {
		children := e.scene.children(n)
		if len(children) == 0 || len(nodes) > len(e.scene.Nodes) {
			return nodes
		}
		n = children[0]
		nodes = append(nodes, n)
	}
}

func joint1(node int, j *avatar.SpringJoint) *vrm.SpringJoint {
	return &vrm.SpringJoint{
		Node:         node,
		HitRadius:    j.HitRadius,
		Stiffness:    j.Stiffness,
		GravityPower: j.GravityPower,
		GravityDir:   j.GravityDir,
		DragForce:    j.DragForce,
	}
}

func newSpring1(name string, center int, groups []int) *vrm.Spring {
	s := &vrm.Spring{Name: name, ColliderGroups: groups}
	if center >= 0 {
		c := center
		s.Center = &c
	}
	return s
}

// springBone1 writes VRMC_springBone. Chain root springs become one
// spring per chain.
func (e *exporter) springBone1() *vrm.SpringBone {
	sb := &e.scene.Settings.SpringBone
	if len(sb.Springs) == 0 && len(sb.Colliders) == 0 {
		return nil
	}
	out := &vrm.SpringBone{SpecVersion: vrm.SpecVersion1}
	for _, c := range sb.Colliders {
		col := &vrm.Collider1{Node: c.Node}
		if c.Capsule {
			col.Shape.Capsule = &vrm.Capsule{Offset: c.Offset, Radius: c.Radius, Tail: c.Tail}
		} else {
			col.Shape.Sphere = &vrm.Sphere{Offset: c.Offset, Radius: c.Radius}
		}
		out.Colliders = append(out.Colliders, col)
	}
	for _, g := range sb.ColliderGroups {
		out.ColliderGroups = append(out.ColliderGroups, &vrm.ColliderGroup1{Name: g.Name, Colliders: append([]int{}, g.Colliders...)})
	}
	for _, sp := range sb.Springs {
		var groups []int
		for _, g := range sp.ColliderGroups {
			if g < 0 || g >= len(sb.ColliderGroups) {
				e.warn.Add(vrmerr.InvalidDocument, sp.Name, "collider group %d does not exist", g)
				continue
			}
			groups = append(groups, g)
		}
		if !sp.ChainRoots {
			s := newSpring1(sp.Name, sp.Center, groups)
			for k := range sp.Joints {
				s.Joints = append(s.Joints, joint1(sp.Joints[k].Node, &sp.Joints[k]))
			}
			out.Springs = append(out.Springs, s)
			continue
		}
		for k := range sp.Joints {
			j := &sp.Joints[k]
			name := sp.Name
			if len(sp.Joints) > 1 {
				name = fmt.Sprintf("%s.%d", sp.Name, k)
			}
			s := newSpring1(name, sp.Center, groups)
			for _, n := range e.chain(j.Node) {
				s.Joints = append(s.Joints, joint1(n, j))
			}
			out.Springs = append(out.Springs, s)
		}
	}
	return out
}

func (e *exporter) writeConstraints() {
	for node, c := range e.scene.Settings.Constraints {
		if node < 0 || node >= len(e.doc.Nodes) || c == nil {
			e.warn.Add(vrmerr.InvalidDocument, "constraints", "node %d does not exist", node)
			continue
		}
		n := e.doc.Nodes[node]
		if n.Extensions == nil {
			n.Extensions = gltf.Extensions{}
		}
		n.Extensions[vrm.ExtensionConstraint] = &vrm.NodeConstraint{SpecVersion: vrm.SpecVersion1, Constraint: *c}
		e.vdoc.AddExtensionUsed(vrm.ExtensionConstraint)
	}
}
