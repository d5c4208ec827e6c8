package importer

import (
	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/geom"
)

const (
	// boneTailOffset is the length of bones whose tail cannot be derived
	// from their children. It points up (+Z in host space).
	boneTailOffset = 0.01
	minBoneLength  = 1e-5
)

type boneBuilder struct {
	nodes    []*avatar.Node
	bones    []*avatar.Bone
	byNode   map[int]int
	children map[int][]int
}

// inferBones builds the host skeleton. Heads accumulate node translations
// in host axes; tails point at the mean of the child heads.
func (im *importer) inferBones() {
	b := &boneBuilder{
		nodes:    im.av.Nodes,
		byNode:   map[int]int{},
		children: map[int][]int{},
	}
	for _, start := range im.boneStarts() {
		parent := -1
		for p := b.nodes[start].Parent; p >= 0; p = b.nodes[p].Parent {
			if bi, ok := b.byNode[p]; ok {
				parent = bi
				break
			}
		}
		b.add(start, parent, b.worldHead(b.nodes[start].Parent))
	}
	b.tails()
	im.av.Bones = b.bones
	im.log.WithField("bones", len(b.bones)).Debug("bones inferred")
}

// boneStarts returns skin skeleton roots, or the top-most joints of skins
// without one, or the scene roots when there are no skins.
func (im *importer) boneStarts() []int {
	var starts []int
	seen := map[int]bool{}
	add := func(n int) {
		if !seen[n] {
			starts = append(starts, n)
			seen[n] = true
		}
	}
	for _, s := range im.av.Skins {
		if s.Skeleton >= 0 {
			add(s.Skeleton)
			continue
		}
		joints := map[int]bool{}
		for _, j := range s.Joints {
			joints[j] = true
		}
		for _, j := range s.Joints {
			top := true
			for p := im.av.Nodes[j].Parent; p >= 0; p = im.av.Nodes[p].Parent {
				if joints[p] {
					top = false
					break
				}
			}
			if top {
				add(j)
			}
		}
	}
	if len(starts) == 0 {
		for _, r := range im.av.Roots {
			add(r)
		}
	}
	return starts
}

func hostTranslation(n *avatar.Node) *geom.Vector3 {
	return geom.NewVector3FromArray(geom.HostPosition(n.Translation))
}

func (b *boneBuilder) worldHead(node int) *geom.Vector3 {
	head := &geom.Vector3{}
	for n := node; n >= 0; n = b.nodes[n].Parent {
		head = head.Add(hostTranslation(b.nodes[n]))
	}
	return head
}

func (b *boneBuilder) add(node, parent int, parentHead *geom.Vector3) {
	n := b.nodes[node]
	if n.Mesh >= 0 && len(n.Children) == 0 {
		return
	}
	head := parentHead.Add(hostTranslation(n))
	if bi, ok := b.byNode[node]; ok {
		b.relocate(bi, parent, head)
		return
	}
	bi := len(b.bones)
	b.bones = append(b.bones, &avatar.Bone{Name: n.Name, Node: node, Parent: parent, Head: head.Array()})
	b.byNode[node] = bi
	if parent >= 0 {
		b.children[parent] = append(b.children[parent], bi)
	}
	for _, c := range n.Children {
		b.add(c, bi, head)
	}
}

// relocate moves an already built subtree under parent so that its root
// head lands on head.
func (b *boneBuilder) relocate(bi, parent int, head *geom.Vector3) {
	bone := b.bones[bi]
	if bone.Parent != parent {
		if bone.Parent >= 0 {
			siblings := b.children[bone.Parent]
			for i, c := range siblings {
				if c == bi {
					b.children[bone.Parent] = append(siblings[:i:i], siblings[i+1:]...)
					break
				}
			}
		}
		bone.Parent = parent
		if parent >= 0 {
			b.children[parent] = append(b.children[parent], bi)
		}
	}
	b.shift(bi, head.Sub(geom.NewVector3FromArray(bone.Head)))
}

func (b *boneBuilder) shift(bi int, delta *geom.Vector3) {
	bone := b.bones[bi]
	bone.Head = geom.NewVector3FromArray(bone.Head).Add(delta).Array()
	for _, c := range b.children[bi] {
		b.shift(c, delta)
	}
}

func (b *boneBuilder) tails() {
	for i, bone := range b.bones {
		head := geom.NewVector3FromArray(bone.Head)
		var tail *geom.Vector3
		if cs := b.children[i]; len(cs) > 0 {
			mean := &geom.Vector3{}
			for _, c := range cs {
				mean = mean.Add(geom.NewVector3FromArray(b.bones[c].Head).Sub(head))
			}
			mean = mean.Scale(1 / float32(len(cs)))
			if mean.Len() >= minBoneLength {
				tail = head.Add(mean)
			}
		}
		if tail == nil {
			tail = head.Add(geom.NewVector3(0, 0, boneTailOffset))
		}
		bone.Tail = tail.Array()
	}
}
