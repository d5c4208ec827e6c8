package exporter

import (
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
	"github.com/pkg/errors"
)

type meshRef struct {
	mesh int
	skin int
}

// AvatarScene exposes an imported avatar as an export scene. Node
// rotations and scales are not carried.
type AvatarScene struct {
	av    *avatar.Avatar
	scene *Scene
}

func (s *AvatarScene) Scene() *Scene {
	return s.scene
}

func SceneFromAvatar(av *avatar.Avatar) *AvatarScene {
	joints := map[int]bool{}
	for _, sk := range av.Skins {
		for _, j := range sk.Joints {
			joints[j] = true
		}
	}
	scene := &Scene{
		Generator: av.Generator,
		Materials: av.Materials,
		Textures:  av.Textures,
		Samplers:  av.Samplers,
		Images:    av.Images,
	}
	for i, n := range av.Nodes {
		_, human := av.Humanoid.BoneOf(i)
		sn := &SceneNode{
			Name:        n.Name,
			Parent:      n.Parent,
			Translation: geom.HostPosition(n.Translation),
			Bone:        joints[i] || human,
		}
		if n.Mesh >= 0 && n.Mesh < len(av.Meshes) {
			sn.Mesh = &SceneMesh{Name: av.Meshes[n.Mesh].Name, Handle: meshRef{mesh: n.Mesh, skin: n.Skin}, Skeleton: -1}
			if n.Skin >= 0 && n.Skin < len(av.Skins) {
				sn.Mesh.Skeleton = av.Skins[n.Skin].Skeleton
			}
		}
		scene.Nodes = append(scene.Nodes, sn)
	}

	st := &scene.Settings
	st.Meta = av.Meta
	st.Humanoid = avatar.Humanoid{Bones: map[string]int{}}
	for name, n := range av.Humanoid.Bones {
		st.Humanoid.Bones[name] = n
	}
	st.FirstPerson = av.FirstPerson
	st.FirstPerson.MeshAnnotations = nil
	for _, a := range av.FirstPerson.MeshAnnotations {
		st.FirstPerson.MeshAnnotations = append(st.FirstPerson.MeshAnnotations, avatar.MeshAnnotation{Mesh: av.MeshNode(a.Mesh), Flag: a.Flag})
	}
	st.LookAt = av.LookAt
	for _, x := range av.Expressions {
		c := *x
		c.MorphBinds = nil
		for _, b := range x.MorphBinds {
			b.Mesh = av.MeshNode(b.Mesh)
			c.MorphBinds = append(c.MorphBinds, b)
		}
		st.Expressions = append(st.Expressions, &c)
	}
	st.SpringBone = av.SpringBone
	st.Constraints = av.Constraints
	return &AvatarScene{av: av, scene: scene}
}

// FlattenMesh concatenates the primitives of a mesh. Vertex groups are the
// joint nodes of the skin, by name.
func (s *AvatarScene) FlattenMesh(handle MeshHandle, applyModifiers bool) (*FlatMesh, error) {
	ref, ok := handle.(meshRef)
	if !ok || ref.mesh < 0 || ref.mesh >= len(s.av.Meshes) {
		return nil, errors.Errorf("unknown mesh handle %v", handle)
	}
	mesh := s.av.Meshes[ref.mesh]
	var skin *avatar.Skin
	if ref.skin >= 0 && ref.skin < len(s.av.Skins) {
		skin = s.av.Skins[ref.skin]
	}
	out := &FlatMesh{}
	if skin != nil {
		for _, j := range skin.Joints {
			out.Groups = append(out.Groups, s.av.Nodes[j].Name)
		}
		out.Weights = [][]GroupWeight{}
	}
	for t, name := range mesh.TargetNames {
		k := ShapeKey{Name: name}
		for _, p := range mesh.Primitives {
			if t >= len(p.Targets) || p.Targets[t] == nil || p.Targets[t].Normals == nil {
				k.Normals = nil
				break
			}
			k.Normals = [][3]float32{}
		}
		out.ShapeKeys = append(out.ShapeKeys, k)
	}

	for _, p := range mesh.Primitives {
		base := len(out.Positions)
		for v, pos := range p.Positions {
			out.Positions = append(out.Positions, geom.HostPosition(pos))
			if skin == nil {
				continue
			}
			var ws []GroupWeight
			if v < len(p.Joints) && v < len(p.Weights) {
				for k := 0; k < 4; k++ {
					if p.Weights[v][k] > 0 && int(p.Joints[v][k]) < len(skin.Joints) {
						ws = append(ws, GroupWeight{Group: int(p.Joints[v][k]), Weight: p.Weights[v][k]})
					}
				}
			}
			out.Weights = append(out.Weights, ws)
		}
		for t := range out.ShapeKeys {
			k := &out.ShapeKeys[t]
			var target *avatar.MorphTarget
			if t < len(p.Targets) {
				target = p.Targets[t]
			}
			for v := range p.Positions {
				var d, n [3]float32
				if target != nil && v < len(target.Positions) {
					d = geom.HostPosition(target.Positions[v])
				}
				k.Offsets = append(k.Offsets, d)
				if k.Normals != nil {
					if v < len(target.Normals) {
						n = geom.HostPosition(target.Normals[v])
					}
					k.Normals = append(k.Normals, n)
				}
			}
		}
		for _, tri := range p.Indices {
			t := Triangle{Material: p.Material}
			for c, v := range tri {
				corner := Corner{Vertex: base + int(v)}
				if int(v) < len(p.Normals) {
					corner.Normal = geom.HostPosition(p.Normals[v])
				}
				for _, layer := range p.TexCoords {
					var uv [2]float32
					if int(v) < len(layer) {
						uv = layer[v]
					}
					corner.UVs = append(corner.UVs, uv)
				}
				t.Corners[c] = corner
			}
			out.Triangles = append(out.Triangles, t)
		}
	}
	return out, nil
}
