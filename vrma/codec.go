package vrma

import (
	"os"
	"sort"

	"github.com/binzume/vrmconv/accessor"
	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/gltfutil"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

const generator = "vrmconv-vrma"

type encoder struct {
	doc   *gltf.Document
	b     *gltfutil.Builder
	anim  *gltf.Animation
	times [][]float32
	acc   []uint32
}

func timesEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// input writes keyframe times once per distinct sequence.
func (e *encoder) input(times []float32) uint32 {
	for i, t := range e.times {
		if timesEqual(t, times) {
			return e.acc[i]
		}
	}
	a := e.b.WriteScalars(times)
	e.times = append(e.times, times)
	e.acc = append(e.acc, a)
	return a
}

func (e *encoder) channel(node int, path gltf.TRSProperty, input, output uint32) {
	e.anim.Samplers = append(e.anim.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(input),
		Output:        gltf.Index(output),
		Interpolation: gltf.InterpolationLinear,
	})
	e.anim.Channels = append(e.anim.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(e.anim.Samplers) - 1)),
		Target: gltf.ChannelTarget{
			Node: gltf.Index(uint32(node)),
			Path: path,
		},
	})
}

// Encode writes a as a .vrma file.
func Encode(a *Animation) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	doc := &gltf.Document{Asset: gltf.Asset{Version: "2.0", Generator: generator}}
	e := &encoder{doc: doc, b: gltfutil.NewBuilder(doc), anim: &gltf.Animation{Name: a.Name}}

	var roots []uint32
	for _, n := range a.Nodes {
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        n.Name,
			Translation: n.Translation,
			Rotation:    n.Rotation,
			Scale:       [3]float32{1, 1, 1},
		})
	}
	for i, n := range a.Nodes {
		if n.Parent < 0 {
			roots = append(roots, uint32(i))
			continue
		}
		p := doc.Nodes[n.Parent]
		p.Children = append(p.Children, uint32(i))
	}
	doc.Scenes = []*gltf.Scene{{Nodes: roots}}
	doc.Scene = gltf.Index(0)

	for _, node := range sortedNodes(a.Translations) {
		t := a.Translations[node]
		e.channel(node, gltf.TRSTranslation, e.input(t.Times), e.b.WriteVec3(t.Values, gltf.TargetNone, nil))
	}
	for _, node := range sortedNodes(a.Rotations) {
		t := a.Rotations[node]
		e.channel(node, gltf.TRSRotation, e.input(t.Times), e.b.WriteVec4(t.Values, gltf.TargetNone))
	}

	ext := &vrm.Animation{
		SpecVersion: vrm.SpecVersion1,
		Humanoid:    &vrm.AnimationHumanoid{HumanBones: map[string]*vrm.AnimationNode{}},
	}
	for name, n := range a.HumanBones {
		ext.Humanoid.HumanBones[name] = &vrm.AnimationNode{Node: n}
	}
	for _, x := range a.Expressions {
		if ext.Expressions == nil {
			ext.Expressions = &vrm.AnimationExpressions{}
		}
		target := &ext.Expressions.Custom
		if x.Preset {
			target = &ext.Expressions.Preset
		}
		if *target == nil {
			*target = map[string]*vrm.AnimationNode{}
		}
		(*target)[x.Name] = &vrm.AnimationNode{Node: x.Node}
		values := make([][3]float32, len(x.Weights))
		for i, w := range x.Weights {
			values[i] = [3]float32{w, 0, 0}
		}
		e.channel(x.Node, gltf.TRSTranslation, e.input(x.Times), e.b.WriteVec3(values, gltf.TargetNone, nil))
	}
	if a.LookAt >= 0 {
		ext.LookAt = &vrm.AnimationLookAt{Node: a.LookAt, OffsetFromHeadBone: a.LookAtOffset}
	}
	doc.Extensions = gltf.Extensions{vrm.ExtensionAnimation: ext}
	doc.ExtensionsUsed = []string{vrm.ExtensionAnimation}
	if len(e.anim.Channels) > 0 {
		doc.Animations = []*gltf.Animation{e.anim}
	}
	return glb.Encode(doc, e.b.Bytes())
}

func WriteFile(path string, a *Animation) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

func animationExtension(doc *gltf.Document) (*vrm.Animation, error) {
	raw, ok := doc.Extensions[vrm.ExtensionAnimation]
	if !ok {
		return nil, vrmerr.New(vrmerr.InvalidDocument, "vrma", "no %s extension", vrm.ExtensionAnimation)
	}
	if ext, ok := raw.(*vrm.Animation); ok {
		return ext, nil
	}
	ext := &vrm.Animation{}
	if err := vrm.DecodeExtension(raw, ext); err != nil {
		return nil, vrmerr.Wrap(vrmerr.InvalidDocument, "vrma", err)
	}
	return ext, nil
}

// Decode reads a .vrma file. Only the first animation is read.
func Decode(data []byte) (*Animation, error) {
	doc, c, err := glb.Decode(data)
	if err != nil {
		return nil, err
	}
	ext, err := animationExtension(doc)
	if err != nil {
		return nil, err
	}
	acc, err := accessor.DecodeAll(doc, c.BIN)
	if err != nil {
		return nil, err
	}
	set := accessor.Set(acc)

	a := New("")
	for _, n := range doc.Nodes {
		a.Nodes = append(a.Nodes, &Node{Name: n.Name, Parent: -1, Translation: n.Translation, Rotation: n.Rotation})
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) >= len(a.Nodes) || a.Nodes[c].Parent >= 0 {
				return nil, vrmerr.New(vrmerr.InvalidDocument, "vrma", "node %d: bad child %d", i, c)
			}
			a.Nodes[c].Parent = i
		}
	}
	if ext.Humanoid != nil {
		for name, b := range ext.Humanoid.HumanBones {
			if b != nil {
				a.HumanBones[name] = b.Node
			}
		}
	}
	byNode := map[int]*Expression{}
	if x := ext.Expressions; x != nil {
		for _, group := range []struct {
			m      map[string]*vrm.AnimationNode
			preset bool
		}{{x.Preset, true}, {x.Custom, false}} {
			for _, name := range sortedNames(group.m) {
				e := &Expression{Name: name, Preset: group.preset, Node: group.m[name].Node}
				a.Expressions = append(a.Expressions, e)
				byNode[e.Node] = e
			}
		}
	}
	if ext.LookAt != nil {
		a.LookAt = ext.LookAt.Node
		a.LookAtOffset = ext.LookAt.OffsetFromHeadBone
	}

	if len(doc.Animations) > 0 {
		anim := doc.Animations[0]
		a.Name = anim.Name
		for i, ch := range anim.Channels {
			if err := a.readChannel(anim, ch, set, byNode); err != nil {
				return nil, errors.WithMessagef(err, "channel %d", i)
			}
		}
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func ReadFile(path string) (*Animation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Decode(data)
}

func sortedNames(m map[string]*vrm.AnimationNode) []string {
	var names []string
	for name, n := range m {
		if n != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (a *Animation) readChannel(anim *gltf.Animation, ch *gltf.Channel, set accessor.Set, byNode map[int]*Expression) error {
	if ch.Sampler == nil || int(*ch.Sampler) >= len(anim.Samplers) || ch.Target.Node == nil {
		return vrmerr.New(vrmerr.InvalidDocument, "vrma", "channel without sampler or node")
	}
	s := anim.Samplers[*ch.Sampler]
	if s.Input == nil || s.Output == nil {
		return vrmerr.New(vrmerr.InvalidDocument, "vrma", "sampler without accessors")
	}
	in, err := set.Get(*s.Input, gltf.AccessorScalar)
	if err != nil {
		return err
	}
	node := int(*ch.Target.Node)
	switch ch.Target.Path {
	case gltf.TRSTranslation:
		out, err := set.Get(*s.Output, gltf.AccessorVec3)
		if err != nil {
			return err
		}
		if e, ok := byNode[node]; ok {
			e.Times = in.Scalars()
			for _, v := range out.Vec3() {
				e.Weights = append(e.Weights, v[0])
			}
			return nil
		}
		a.Translations[node] = &Vec3Track{Times: in.Scalars(), Values: out.Vec3()}
	case gltf.TRSRotation:
		out, err := set.Get(*s.Output, gltf.AccessorVec4)
		if err != nil {
			return err
		}
		a.Rotations[node] = &QuatTrack{Times: in.Scalars(), Values: out.Vec4()}
	}
	return nil
}
