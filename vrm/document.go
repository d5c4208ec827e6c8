package vrm

import (
	"strings"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/qmuntal/gltf"
)

// Version identifies which VRM extension a document carries.
type Version int

const (
	VersionNone Version = iota
	Version0
	Version1
)

func (v Version) String() string {
	switch v {
	case Version0:
		return "0.x"
	case Version1:
		return "1.0"
	}
	return "none"
}

type Document gltf.Document

func (doc *Document) Gltf() *gltf.Document {
	return (*gltf.Document)(doc)
}

// Version reports the VRM version; VRMC_vrm takes precedence over VRM.
func (doc *Document) Version() Version {
	if _, ok := doc.Extensions[ExtensionVRMC]; ok {
		return Version1
	}
	if _, ok := doc.Extensions[ExtensionName]; ok {
		return Version0
	}
	return VersionNone
}

func (doc *Document) ensureExtensions() {
	if doc.Extensions == nil {
		doc.Extensions = gltf.Extensions{}
	}
}

// VRM returns the VRM 0.x extension, creating it when absent.
func (doc *Document) VRM() *VRM {
	if ext, ok := doc.Extensions[ExtensionName].(*VRM); ok {
		return ext
	}
	ext := NewVRM()
	if raw, ok := doc.Extensions[ExtensionName]; ok {
		if err := DecodeExtension(raw, ext); err != nil {
			ext = NewVRM()
		}
	}
	doc.ensureExtensions()
	doc.Extensions[ExtensionName] = ext
	doc.AddExtensionUsed(ExtensionName)
	return ext
}

// VRMC returns the VRMC_vrm extension, creating it when absent.
func (doc *Document) VRMC() *VRMC {
	if ext, ok := doc.Extensions[ExtensionVRMC].(*VRMC); ok {
		return ext
	}
	ext := NewVRMC()
	if raw, ok := doc.Extensions[ExtensionVRMC]; ok {
		if err := DecodeExtension(raw, ext); err != nil {
			ext = NewVRMC()
		}
	}
	doc.ensureExtensions()
	doc.Extensions[ExtensionVRMC] = ext
	doc.AddExtensionUsed(ExtensionVRMC)
	return ext
}

// SpringBone returns the VRMC_springBone extension or nil.
func (doc *Document) SpringBone() *SpringBone {
	switch ext := doc.Extensions[ExtensionSpringBone].(type) {
	case nil:
		return nil
	case *SpringBone:
		return ext
	default:
		sb := &SpringBone{}
		if err := DecodeExtension(ext, sb); err != nil {
			return nil
		}
		return sb
	}
}

// SetSpringBone stores sb, or removes the extension when sb is nil.
func (doc *Document) SetSpringBone(sb *SpringBone) {
	if sb == nil {
		delete(doc.Extensions, ExtensionSpringBone)
		return
	}
	doc.ensureExtensions()
	doc.Extensions[ExtensionSpringBone] = sb
	doc.AddExtensionUsed(ExtensionSpringBone)
}

// MaterialMToon returns the VRMC_materials_mtoon extension of a material.
func MaterialMToon(mat *gltf.Material) *MToon {
	if mat == nil {
		return nil
	}
	switch ext := mat.Extensions[ExtensionMToon].(type) {
	case nil:
		return nil
	case *MToon:
		return ext
	default:
		m := NewMToon()
		if err := DecodeExtension(ext, m); err != nil {
			return nil
		}
		return m
	}
}

// NodeConstraintOf returns the VRMC_node_constraint extension of a node.
func NodeConstraintOf(node *gltf.Node) *NodeConstraint {
	if node == nil {
		return nil
	}
	switch ext := node.Extensions[ExtensionConstraint].(type) {
	case nil:
		return nil
	case *NodeConstraint:
		return ext
	default:
		c := &NodeConstraint{}
		if err := DecodeExtension(ext, c); err != nil {
			return nil
		}
		return c
	}
}

// TextureTransformOf returns the KHR_texture_transform of a texture reference.
func TextureTransformOf(ext gltf.Extensions) *TextureTransform {
	switch v := ext[ExtensionTextureTransform].(type) {
	case nil:
		return nil
	case *TextureTransform:
		return v
	default:
		t := NewTextureTransform()
		if err := DecodeExtension(v, t); err != nil {
			return nil
		}
		return t
	}
}

// IsUnlit reports whether mat uses KHR_materials_unlit.
func IsUnlit(mat *gltf.Material) bool {
	if mat == nil {
		return false
	}
	_, ok := mat.Extensions[ExtensionUnlit]
	return ok
}

func (doc *Document) IsExtensionUsed(extname string) bool {
	for _, ex := range doc.ExtensionsUsed {
		if ex == extname {
			return true
		}
	}
	return false
}

func (doc *Document) AddExtensionUsed(extname string) {
	if !doc.IsExtensionUsed(extname) {
		doc.ExtensionsUsed = append(doc.ExtensionsUsed, extname)
	}
}

// ValidateBones checks the required bones of the document's VRM version.
func (doc *Document) ValidateBones() error {
	var missing []string
	switch doc.Version() {
	case Version1:
		missing = MissingBones(doc.VRMC().BoneNodes(), RequiredBones1)
	default:
		missing = doc.VRM().CheckRequiredBones()
	}
	if len(missing) > 0 {
		return vrmerr.New(vrmerr.UnresolvedHumanBone, "vrm.ValidateBones", "missing required human bones: %v", strings.Join(missing, ","))
	}
	return nil
}

// RequiredCompression returns the required extensions that name a mesh
// compression scheme.
func (doc *Document) RequiredCompression() []string {
	var found []string
	for _, req := range doc.ExtensionsRequired {
		for _, c := range CompressionExtensions {
			if req == c {
				found = append(found, req)
			}
		}
	}
	return found
}

// NodeParents returns the parent index of every node, -1 for roots.
// A node referenced as a child more than once, or a cycle, is an error.
func (doc *Document) NodeParents() ([]int, error) {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) >= len(doc.Nodes) {
				return nil, vrmerr.New(vrmerr.InvalidDocument, "vrm.NodeParents", "node %d: child %d out of range", i, c)
			}
			if parents[c] >= 0 || int(c) == i {
				return nil, vrmerr.New(vrmerr.InvalidDocument, "vrm.NodeParents", "node %d has more than one parent", c)
			}
			parents[c] = i
		}
	}
	for i := range parents {
		seen := 0
		for p := parents[i]; p >= 0; p = parents[p] {
			if p == i || seen > len(parents) {
				return nil, vrmerr.New(vrmerr.InvalidDocument, "vrm.NodeParents", "node %d is its own ancestor", i)
			}
			seen++
		}
	}
	return parents, nil
}
