package exporter

import (
	"fmt"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/sirupsen/logrus"
)

func (e *exporter) writeMeshes() error {
	for i, n := range e.scene.Nodes {
		if n.Mesh == nil {
			continue
		}
		flat, err := e.src.FlattenMesh(n.Mesh.Handle, e.opt.ApplyModifiers)
		if err == nil {
			err = checkFlatMesh(flat)
		}
		if err != nil {
			e.warn.AddError(n.Name, vrmerr.Wrap(vrmerr.InvalidDocument, "exporter", err))
			continue
		}
		mesh, skinned, err := e.buildMesh(n, flat)
		if err != nil {
			return err
		}
		e.meshes[i] = len(e.doc.Meshes)
		e.doc.Meshes = append(e.doc.Meshes, mesh)
		e.doc.Nodes[i].Mesh = gltf.Index(uint32(e.meshes[i]))
		if skinned {
			e.doc.Nodes[i].Skin = gltf.Index(uint32(e.skin))
		}
		for _, k := range flat.ShapeKeys {
			e.targets[i] = append(e.targets[i], k.Name)
		}
	}
	return nil
}

func checkFlatMesh(m *FlatMesh) error {
	if m == nil {
		return errors.New("no mesh data")
	}
	n := len(m.Positions)
	if m.Weights != nil && len(m.Weights) != n {
		return errors.Errorf("%d weights for %d vertices", len(m.Weights), n)
	}
	for _, t := range m.Triangles {
		for _, c := range t.Corners {
			if c.Vertex < 0 || c.Vertex >= n {
				return errors.Errorf("vertex %d out of range (%d vertices)", c.Vertex, n)
			}
		}
	}
	for _, k := range m.ShapeKeys {
		if len(k.Offsets) != n || (k.Normals != nil && len(k.Normals) != n) {
			return errors.Errorf("shape key %q does not match %d vertices", k.Name, n)
		}
	}
	return nil
}

type vertexKey struct {
	vertex int
	normal [3]float32
	uv     [2]float32
}

// primitiveBuilder collects the vertices of one primitive. A corner is
// emitted once per (source vertex, normal, first UV).
type primitiveBuilder struct {
	material  int
	seen      map[vertexKey]uint32
	source    []int
	positions [][3]float32
	normals   [][3]float32
	uvs       [][][2]float32
	indices   []uint32
	bounds    *geom.Bounds

	// per shape key, in emission order
	targets      [][][3]float32
	targetBounds []*geom.Bounds
}

func newPrimitiveBuilder(material, layers, targets int) *primitiveBuilder {
	p := &primitiveBuilder{
		material:     material,
		seen:         map[vertexKey]uint32{},
		uvs:          make([][][2]float32, layers),
		bounds:       geom.NewBounds(),
		targets:      make([][][3]float32, targets),
		targetBounds: make([]*geom.Bounds, targets),
	}
	for i := range p.targetBounds {
		p.targetBounds[i] = geom.NewBounds()
	}
	return p
}

func (p *primitiveBuilder) add(m *FlatMesh, c *Corner) {
	key := vertexKey{vertex: c.Vertex, normal: c.Normal}
	if len(c.UVs) > 0 {
		key.uv = c.UVs[0]
	}
	if idx, ok := p.seen[key]; ok {
		p.indices = append(p.indices, idx)
		return
	}
	idx := uint32(len(p.positions))
	p.seen[key] = idx
	pos := geom.GltfPosition(m.Positions[c.Vertex])
	p.bounds.Add(pos)
	p.source = append(p.source, c.Vertex)
	p.positions = append(p.positions, pos)
	p.normals = append(p.normals, geom.GltfPosition(c.Normal))
	for l := range p.uvs {
		var uv [2]float32
		if l < len(c.UVs) {
			uv = [2]float32{c.UVs[l][0], 1 - c.UVs[l][1]}
		}
		p.uvs[l] = append(p.uvs[l], uv)
	}
	for k := range p.targets {
		d := geom.GltfPosition(m.ShapeKeys[k].Offsets[c.Vertex])
		p.targetBounds[k].Add(d)
		p.targets[k] = append(p.targets[k], d)
	}
	p.indices = append(p.indices, idx)
}

// fallbackJoint is the joint of the mesh skeleton root, else of hips, or -1.
func (e *exporter) fallbackJoint(n *SceneNode) int {
	if j, ok := e.joints[n.Mesh.Skeleton]; ok {
		return j
	} else if j, ok := e.joints[e.hips]; ok {
		return j
	}
	return -1
}

// weights resolves the skin weights of every source vertex. Vertices
// without any weight, or meshes without weights at all, are bound to the
// fallback joint.
func (e *exporter) weights(n *SceneNode, m *FlatMesh) ([][4]uint16, [][4]float32, error) {
	byName := map[string]int{}
	for j := range e.joints {
		if _, dup := byName[e.scene.Nodes[j].Name]; !dup {
			byName[e.scene.Nodes[j].Name] = j
		}
	}
	groupJoint := make([]int, len(m.Groups))
	for g, name := range m.Groups {
		groupJoint[g] = -1
		if node, ok := byName[name]; ok {
			groupJoint[g] = e.joints[node]
		} else {
			e.warn.Add(vrmerr.UnresolvedHumanBone, n.Name, "vertex group %q has no bone", name)
		}
	}
	fallback := e.fallbackJoint(n)

	joints := make([][4]uint16, len(m.Positions))
	weights := make([][4]float32, len(m.Positions))
	unweighted := 0
	for v := range m.Positions {
		var ws []GroupWeight
		if v < len(m.Weights) {
			ws = m.Weights[v]
		}
		var js []int
		var w []float32
		for _, gw := range ws {
			if gw.Group >= 0 && gw.Group < len(groupJoint) && groupJoint[gw.Group] >= 0 {
				js = append(js, groupJoint[gw.Group])
				w = append(w, gw.Weight)
			}
		}
		j, nw, err := avatar.NormalizeWeights(js, w)
		if err != nil {
			if fallback < 0 {
				return nil, nil, vrmerr.New(vrmerr.UnresolvedHumanBone, "exporter", "%s: vertex %d has no weight and no fallback bone", n.Name, v)
			}
			unweighted++
			j, nw = [4]uint16{uint16(fallback)}, [4]float32{1}
		}
		joints[v], weights[v] = j, nw
	}
	if unweighted > 0 {
		e.log.WithFields(logrus.Fields{"mesh": n.Name, "vertices": unweighted}).Info("unweighted vertices bound to fallback bone")
	}
	return joints, weights, nil
}

func (e *exporter) buildMesh(n *SceneNode, m *FlatMesh) (*gltf.Mesh, bool, error) {
	layers := 0
	for _, t := range m.Triangles {
		for _, c := range t.Corners {
			if len(c.UVs) > layers {
				layers = len(c.UVs)
			}
		}
	}
	skinned := e.skin >= 0 && (len(m.Weights) > 0 || e.fallbackJoint(n) >= 0)
	var joints [][4]uint16
	var weights [][4]float32
	if skinned {
		var err error
		if joints, weights, err = e.weights(n, m); err != nil {
			return nil, false, err
		}
	}

	var prims []*primitiveBuilder
	byMaterial := map[int]*primitiveBuilder{}
	for i := range m.Triangles {
		if i%cancelCheckInterval == 0 {
			if err := e.canceled(); err != nil {
				return nil, false, err
			}
		}
		t := &m.Triangles[i]
		p, ok := byMaterial[t.Material]
		if !ok {
			p = newPrimitiveBuilder(t.Material, layers, len(m.ShapeKeys))
			byMaterial[t.Material] = p
			prims = append(prims, p)
		}
		for c := range t.Corners {
			p.add(m, &t.Corners[c])
		}
	}

	names := make([]string, len(m.ShapeKeys))
	for i, k := range m.ShapeKeys {
		names[i] = k.Name
		if names[i] == "" {
			names[i] = fmt.Sprintf("morph%d", i)
		}
	}
	mesh := &gltf.Mesh{Name: n.Mesh.Name}
	if len(names) > 0 {
		mesh.Extras = map[string]interface{}{"targetNames": names}
	}

	for _, p := range prims {
		attrs := gltf.Attribute{
			gltf.POSITION: e.b.WriteVec3(p.positions, gltf.TargetArrayBuffer, p.bounds),
			gltf.NORMAL:   e.b.WriteVec3(p.normals, gltf.TargetArrayBuffer, nil),
		}
		for l, uv := range p.uvs {
			attrs[fmt.Sprintf("TEXCOORD_%d", l)] = e.b.WriteVec2(uv, gltf.TargetArrayBuffer)
		}
		if skinned {
			pj := make([][4]uint16, len(p.source))
			pw := make([][4]float32, len(p.source))
			for i, v := range p.source {
				pj[i], pw[i] = joints[v], weights[v]
			}
			attrs[gltf.JOINTS_0] = e.b.WriteJoints(pj)
			attrs[gltf.WEIGHTS_0] = e.b.WriteVec4(pw, gltf.TargetArrayBuffer)
		}
		prim := &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(e.b.WriteIndices(p.indices)),
			Mode:       gltf.PrimitiveTriangles,
		}
		if p.material >= 0 && p.material < len(e.doc.Materials) {
			prim.Material = gltf.Index(uint32(p.material))
		}
		for k := range m.ShapeKeys {
			prim.Targets = append(prim.Targets, e.writeTarget(p, k, &m.ShapeKeys[k]))
		}
		if len(names) > 0 {
			prim.Extras = map[string]interface{}{"targetNames": names}
		}
		mesh.Primitives = append(mesh.Primitives, prim)
	}
	e.log.WithFields(logrus.Fields{"mesh": n.Mesh.Name, "primitives": len(prims), "targets": len(names)}).Debug("mesh written")
	return mesh, skinned, nil
}

func (e *exporter) writeTarget(p *primitiveBuilder, index int, k *ShapeKey) gltf.Attribute {
	attr := gltf.Attribute{gltf.POSITION: e.b.WriteVec3(p.targets[index], gltf.TargetArrayBuffer, p.targetBounds[index])}
	if k.Normals != nil {
		normals := make([][3]float32, len(p.source))
		for i, v := range p.source {
			normals[i] = geom.GltfPosition(k.Normals[v])
		}
		attr[gltf.NORMAL] = e.b.WriteVec3(normals, gltf.TargetArrayBuffer, nil)
	}
	return attr
}
