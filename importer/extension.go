package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
)

// ProxyBoneSuffix marks nodes that stand in for another node of the same
// name without the suffix.
const ProxyBoneSuffix = ".vrmaProxyBone"

// nodeRef checks a node reference of the extension and resolves proxy
// bones to the node they stand in for.
func (im *importer) nodeRef(n int, subject string) (int, bool) {
	if n < 0 || n >= len(im.av.Nodes) {
		im.warn.Add(vrmerr.InvalidDocument, subject, "node %d does not exist", n)
		return -1, false
	}
	name := im.av.Nodes[n].Name
	if !strings.HasSuffix(name, ProxyBoneSuffix) {
		return n, true
	}
	orig := im.av.NodeByName(strings.TrimSuffix(name, ProxyBoneSuffix))
	if orig < 0 {
		im.warn.Add(vrmerr.UnresolvedHumanBone, subject, "proxy bone %q has no original node", name)
		return n, true
	}
	return orig, true
}

func (im *importer) setHumanBone(name string, node int, subject string) {
	if !vrm.IsHumanBone(name) {
		im.warn.Add(vrmerr.UnresolvedHumanBone, subject, "unknown human bone")
		return
	}
	n, ok := im.nodeRef(node, subject)
	if !ok {
		return
	}
	if prev, dup := im.av.Humanoid.Bones[name]; dup {
		im.warn.Add(vrmerr.InvalidDocument, subject, "mapped to nodes %d and %d", prev, n)
		return
	}
	im.av.Humanoid.Bones[name] = n
}

func (im *importer) checkRequiredBones(v vrm.Version) {
	if missing := im.av.MissingRequiredBones(v); len(missing) > 0 {
		im.fail(vrmerr.New(vrmerr.UnresolvedHumanBone, "importer", "missing required human bones: %s", strings.Join(missing, ",")))
	}
}

func (im *importer) morphBind(mesh, index int, weight float64, subject string) (avatar.MorphBind, bool) {
	if mesh < 0 || mesh >= len(im.av.Meshes) {
		im.warn.Add(vrmerr.InvalidDocument, subject, "mesh %d does not exist", mesh)
		return avatar.MorphBind{}, false
	}
	names := im.av.Meshes[mesh].TargetNames
	if index < 0 || index >= len(names) {
		im.warn.Add(vrmerr.InvalidDocument, subject, "mesh %d has no morph target %d", mesh, index)
		return avatar.MorphBind{}, false
	}
	return avatar.MorphBind{Mesh: mesh, Target: names[index], Weight: weight}, true
}

func (im *importer) materialByName(name string) int {
	for i, m := range im.doc.Materials {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (im *importer) addExpression(e *avatar.Expression) {
	if e.Preset != "" && im.av.Expression(e.Preset) != nil {
		im.warn.Add(vrmerr.InvalidDocument, e.Name, "preset %s defined twice, kept as custom", e.Preset)
		e.Preset = ""
	}
	im.av.Expressions = append(im.av.Expressions, e)
}

func (im *importer) headBone() int {
	if n, ok := im.av.Humanoid.Node("head"); ok {
		return n
	}
	return -1
}

func (im *importer) importVRM0(ext *vrm.VRM) {
	im.av.Meta = im.meta0(&ext.Meta)
	for _, b := range ext.Humanoid.Bones {
		if b == nil {
			continue
		}
		if !vrm.IsHumanBone0(b.Bone) {
			im.warn.Add(vrmerr.UnresolvedHumanBone, b.Bone, "unknown human bone")
			continue
		}
		im.setHumanBone(vrm.Bone0To1(b.Bone), b.Node, b.Bone)
	}
	im.checkRequiredBones(vrm.Version0)

	im.av.FirstPerson.Bone = im.headBone()
	if fp := ext.FirstPerson; fp != nil {
		if fp.FirstPersonBone >= 0 {
			if n, ok := im.nodeRef(fp.FirstPersonBone, "firstPersonBone"); ok {
				im.av.FirstPerson.Bone = n
			}
		}
		offset := [3]float64{fp.FirstPersonBoneOffset.X, fp.FirstPersonBoneOffset.Y, fp.FirstPersonBoneOffset.Z}
		im.av.FirstPerson.BoneOffset = offset
		for _, a := range fp.MeshAnnotations {
			if a == nil {
				continue
			}
			if a.Mesh < 0 || a.Mesh >= len(im.av.Meshes) {
				im.warn.Add(vrmerr.InvalidDocument, "firstPerson", "mesh %d does not exist", a.Mesh)
				continue
			}
			im.av.FirstPerson.MeshAnnotations = append(im.av.FirstPerson.MeshAnnotations, avatar.MeshAnnotation{
				Mesh: a.Mesh,
				Flag: vrm.FirstPersonFlag0To1(a.FirstPersonFlag),
			})
		}
		im.av.LookAt = avatar.LookAt{
			Type:               vrm.LookAtType0To1(fp.LookAtTypeName),
			OffsetFromHeadBone: offset,
			HorizontalInner:    degreeMap(fp.LookAtHorizontalInner),
			HorizontalOuter:    degreeMap(fp.LookAtHorizontalOuter),
			VerticalDown:       degreeMap(fp.LookAtVerticalDown),
			VerticalUp:         degreeMap(fp.LookAtVerticalUp),
		}
	}

	for _, g := range ext.BlendShapeMaster.BlendShapeGroups {
		if g == nil {
			continue
		}
		e := &avatar.Expression{Name: g.Name, IsBinary: g.IsBinary}
		if p, ok := vrm.Preset0To1(strings.ToLower(g.PresetName)); ok {
			e.Preset = p
		}
		if e.Name == "" {
			e.Name = g.PresetName
		}
		for _, b := range g.Binds {
			if b == nil {
				continue
			}
			if bind, ok := im.morphBind(b.Mesh, b.Index, b.Weight/100, e.Name); ok {
				e.MorphBinds = append(e.MorphBinds, bind)
			}
		}
		for _, mv := range g.MaterialValues {
			if mv != nil {
				im.materialValue(e, mv)
			}
		}
		im.addExpression(e)
	}

	if sa := ext.SecondaryAnimation; sa != nil {
		im.secondaryAnimation(sa)
	}
}

func (im *importer) materialValue(e *avatar.Expression, mv *vrm.MaterialValueBind) {
	mat := im.materialByName(mv.MaterialName)
	if mat < 0 {
		im.warn.Add(vrmerr.InvalidDocument, e.Name, "material %q does not exist", mv.MaterialName)
		return
	}
	if mv.PropertyName == "_MainTex_ST" || mv.PropertyName == "_MainTex" {
		if len(mv.TargetValue) != 4 {
			im.warn.Add(vrmerr.InvalidDocument, e.Name, "%s needs 4 values", mv.PropertyName)
			return
		}
		tv := mv.TargetValue
		e.TextureTransformBinds = append(e.TextureTransformBinds, avatar.TextureTransformBind{
			Material: mat,
			Offset:   [2]float64{tv[0], tv[1]},
			Scale:    [2]float64{tv[2], tv[3]},
		})
		return
	}
	for typ, prop := range vrm.MaterialColorProperties {
		if prop == mv.PropertyName {
			bind := avatar.MaterialColorBind{Material: mat, Type: typ, Value: [4]float64{0, 0, 0, 1}}
			copy(bind.Value[:], mv.TargetValue)
			e.MaterialColorBinds = append(e.MaterialColorBinds, bind)
			return
		}
	}
	im.warn.Add(vrmerr.UnknownMaterialProperty, e.Name, "material value %s is not supported", mv.PropertyName)
}

func degreeMap(m *vrm.DegreeMap) *avatar.RangeMap {
	if m == nil {
		return nil
	}
	return &avatar.RangeMap{InputMaxValue: m.XRange, OutputScale: m.YRange, Curve: m.Curve}
}

func rangeMap(m *vrm.RangeMap) *avatar.RangeMap {
	if m == nil {
		return nil
	}
	return &avatar.RangeMap{InputMaxValue: m.InputMaxValue, OutputScale: m.OutputScale}
}

func (im *importer) secondaryAnimation(sa *vrm.SecondaryAnimation) {
	sb := &im.av.SpringBone
	for gi, g := range sa.ColliderGroups {
		group := avatar.ColliderGroup{Name: fmt.Sprintf("colliderGroup%d", gi)}
		if g == nil {
			sb.ColliderGroups = append(sb.ColliderGroups, group)
			continue
		}
		if node, ok := im.nodeRef(g.Node, group.Name); ok {
			for _, c := range g.Colliders {
				if c == nil {
					continue
				}
				group.Colliders = append(group.Colliders, len(sb.Colliders))
				sb.Colliders = append(sb.Colliders, avatar.Collider{
					Node:   node,
					Offset: [3]float64{c.Offset.X, c.Offset.Y, c.Offset.Z},
					Radius: c.Radius,
				})
			}
		}
		sb.ColliderGroups = append(sb.ColliderGroups, group)
	}
	for _, g := range sa.BoneGroups {
		if g == nil {
			continue
		}
		spring := avatar.Spring{Name: g.Comment, Center: -1, ChainRoots: true}
		if g.Center >= 0 {
			if n, ok := im.nodeRef(g.Center, g.Comment); ok {
				spring.Center = n
			}
		}
		spring.ColliderGroups = im.colliderGroups(g.ColliderGroups, g.Comment)
		for _, b := range g.Bones {
			n, ok := im.nodeRef(b, g.Comment)
			if !ok {
				continue
			}
			spring.Joints = append(spring.Joints, avatar.SpringJoint{
				Node:         n,
				HitRadius:    g.HitRadius,
				Stiffness:    g.Stiffiness,
				GravityPower: g.GravityPower,
				GravityDir:   [3]float64{g.GravityDir.X, g.GravityDir.Y, g.GravityDir.Z},
				DragForce:    g.DragForce,
			})
		}
		sb.Springs = append(sb.Springs, spring)
	}
}

func (im *importer) colliderGroups(groups []int, subject string) []int {
	var out []int
	for _, g := range groups {
		if g < 0 || g >= len(im.av.SpringBone.ColliderGroups) {
			im.warn.Add(vrmerr.InvalidDocument, subject, "collider group %d does not exist", g)
			continue
		}
		out = append(out, g)
	}
	return out
}

func (im *importer) importVRM1(ext *vrm.VRMC) {
	im.av.Meta = im.meta1(&ext.Meta)
	names := make([]string, 0, len(ext.Humanoid.HumanBones))
	for name := range ext.Humanoid.HumanBones {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if b := ext.Humanoid.HumanBones[name]; b != nil {
			im.setHumanBone(name, b.Node, name)
		}
	}
	im.checkRequiredBones(vrm.Version1)
	for _, v := range vrm.CheckHierarchy(im.av.Humanoid.Bones, im.av.Parents()) {
		im.fail(vrmerr.New(vrmerr.UnresolvedHumanBone, "importer", "human bone %s is not a descendant of %s", v.Bone, v.Ancestor))
	}

	im.av.FirstPerson.Bone = im.headBone()
	if fp := ext.FirstPerson; fp != nil {
		for _, a := range fp.MeshAnnotations {
			if a == nil {
				continue
			}
			n, ok := im.nodeRef(a.Node, "firstPerson")
			if !ok {
				continue
			}
			if im.av.Nodes[n].Mesh < 0 {
				im.warn.Add(vrmerr.InvalidDocument, "firstPerson", "node %d has no mesh", n)
				continue
			}
			im.av.FirstPerson.MeshAnnotations = append(im.av.FirstPerson.MeshAnnotations, avatar.MeshAnnotation{
				Mesh: im.av.Nodes[n].Mesh,
				Flag: a.Type,
			})
		}
	}
	if la := ext.LookAt; la != nil {
		im.av.LookAt = avatar.LookAt{
			Type:               la.Type,
			OffsetFromHeadBone: la.OffsetFromHeadBone,
			HorizontalInner:    rangeMap(la.RangeMapHorizontalInner),
			HorizontalOuter:    rangeMap(la.RangeMapHorizontalOuter),
			VerticalDown:       rangeMap(la.RangeMapVerticalDown),
			VerticalUp:         rangeMap(la.RangeMapVerticalUp),
		}
		im.av.FirstPerson.BoneOffset = la.OffsetFromHeadBone
	}

	if ex := ext.Expressions; ex != nil {
		for _, name := range presetOrder(ex.Preset) {
			im.addExpression(im.expression1(name, name, ex.Preset[name]))
		}
		for _, name := range sortedNames(ex.Custom) {
			im.addExpression(im.expression1(name, "", ex.Custom[name]))
		}
	}

	if sb := im.vrm.SpringBone(); sb != nil {
		im.springBone1(sb)
	}
}

func sortedNames(m map[string]*vrm.Expression1) []string {
	names := make([]string, 0, len(m))
	for name, e := range m {
		if e != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// presetOrder lists known presets in schema order, followed by any others.
func presetOrder(m map[string]*vrm.Expression1) []string {
	var names []string
	for _, p := range vrm.ExpressionPresets {
		if m[p] != nil {
			names = append(names, p)
		}
	}
	for _, name := range sortedNames(m) {
		if !vrm.IsExpressionPreset(name) {
			names = append(names, name)
		}
	}
	return names
}

func (im *importer) expression1(name, preset string, x *vrm.Expression1) *avatar.Expression {
	if preset != "" && !vrm.IsExpressionPreset(preset) {
		im.warn.Add(vrmerr.InvalidDocument, name, "unknown preset, kept as custom")
		preset = ""
	}
	e := &avatar.Expression{
		Name:           name,
		Preset:         preset,
		IsBinary:       x.IsBinary,
		OverrideBlink:  x.OverrideBlink,
		OverrideLookAt: x.OverrideLookAt,
		OverrideMouth:  x.OverrideMouth,
	}
	for _, b := range x.MorphTargetBinds {
		if b == nil {
			continue
		}
		if b.Node < 0 || b.Node >= len(im.av.Nodes) || im.av.Nodes[b.Node].Mesh < 0 {
			im.warn.Add(vrmerr.InvalidDocument, name, "node %d has no mesh", b.Node)
			continue
		}
		if bind, ok := im.morphBind(im.av.Nodes[b.Node].Mesh, b.Index, b.Weight, name); ok {
			e.MorphBinds = append(e.MorphBinds, bind)
		}
	}
	for _, b := range x.MaterialColorBinds {
		if b == nil {
			continue
		}
		if b.Material < 0 || b.Material >= len(im.doc.Materials) {
			im.warn.Add(vrmerr.InvalidDocument, name, "material %d does not exist", b.Material)
			continue
		}
		e.MaterialColorBinds = append(e.MaterialColorBinds, avatar.MaterialColorBind{Material: b.Material, Type: b.Type, Value: b.TargetValue})
	}
	for _, b := range x.TextureTransformBinds {
		if b == nil {
			continue
		}
		if b.Material < 0 || b.Material >= len(im.doc.Materials) {
			im.warn.Add(vrmerr.InvalidDocument, name, "material %d does not exist", b.Material)
			continue
		}
		e.TextureTransformBinds = append(e.TextureTransformBinds, avatar.TextureTransformBind{Material: b.Material, Scale: b.Scale, Offset: b.Offset})
	}
	return e
}

func (im *importer) springBone1(ext *vrm.SpringBone) {
	sb := &im.av.SpringBone
	for i, c := range ext.Colliders {
		collider := avatar.Collider{Node: -1}
		if c != nil {
			if n, ok := im.nodeRef(c.Node, fmt.Sprintf("collider%d", i)); ok {
				collider.Node = n
			}
			switch {
			case c.Shape.Capsule != nil:
				collider.Capsule = true
				collider.Offset = c.Shape.Capsule.Offset
				collider.Radius = c.Shape.Capsule.Radius
				collider.Tail = c.Shape.Capsule.Tail
			case c.Shape.Sphere != nil:
				collider.Offset = c.Shape.Sphere.Offset
				collider.Radius = c.Shape.Sphere.Radius
			}
		}
		sb.Colliders = append(sb.Colliders, collider)
	}
	for i, g := range ext.ColliderGroups {
		group := avatar.ColliderGroup{Name: fmt.Sprintf("colliderGroup%d", i)}
		if g != nil {
			if g.Name != "" {
				group.Name = g.Name
			}
			for _, c := range g.Colliders {
				if c < 0 || c >= len(sb.Colliders) || sb.Colliders[c].Node < 0 {
					im.warn.Add(vrmerr.InvalidDocument, group.Name, "collider %d does not exist", c)
					continue
				}
				group.Colliders = append(group.Colliders, c)
			}
		}
		sb.ColliderGroups = append(sb.ColliderGroups, group)
	}
	for _, s := range ext.Springs {
		if s == nil {
			continue
		}
		spring := avatar.Spring{Name: s.Name, Center: -1}
		if s.Center != nil {
			if n, ok := im.nodeRef(*s.Center, s.Name); ok {
				spring.Center = n
			}
		}
		spring.ColliderGroups = im.colliderGroups(s.ColliderGroups, s.Name)
		for _, j := range s.Joints {
			if j == nil {
				continue
			}
			n, ok := im.nodeRef(j.Node, s.Name)
			if !ok {
				continue
			}
			spring.Joints = append(spring.Joints, avatar.SpringJoint{
				Node:         n,
				HitRadius:    j.HitRadius,
				Stiffness:    j.Stiffness,
				GravityPower: j.GravityPower,
				GravityDir:   j.GravityDir,
				DragForce:    j.DragForce,
			})
		}
		sb.Springs = append(sb.Springs, spring)
	}
}
