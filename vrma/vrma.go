// Package vrma reads and writes VRM animation (.vrma) files.
package vrma

import (
	"sort"

	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrmerr"
)

// Node is a rest pose node in glTF space.
type Node struct {
	Name        string
	Parent      int
	Translation [3]float32
	Rotation    [4]float32
}

type Vec3Track struct {
	Times  []float32
	Values [][3]float32
}

type QuatTrack struct {
	Times  []float32
	Values [][4]float32
}

// Expression is animated through the x translation of its node.
type Expression struct {
	Name    string
	Preset  bool
	Node    int
	Times   []float32
	Weights []float32
}

type Animation struct {
	Name  string
	Nodes []*Node
	// HumanBones maps VRM 1.0 bone names to nodes.
	HumanBones   map[string]int
	Translations map[int]*Vec3Track
	Rotations    map[int]*QuatTrack
	Expressions  []*Expression
	// LookAt is the look at target node, -1 when absent.
	LookAt       int
	LookAtOffset *[3]float64
}

func New(name string) *Animation {
	return &Animation{
		Name:         name,
		HumanBones:   map[string]int{},
		Translations: map[int]*Vec3Track{},
		Rotations:    map[int]*QuatTrack{},
		LookAt:       -1,
	}
}

// AddNode appends a node with identity rotation and returns its index.
func (a *Animation) AddNode(name string, parent int, translation [3]float32) int {
	a.Nodes = append(a.Nodes, &Node{Name: name, Parent: parent, Translation: translation, Rotation: [4]float32{0, 0, 0, 1}})
	return len(a.Nodes) - 1
}

// AddExpression adds an expression with its own root node.
func (a *Animation) AddExpression(name string, preset bool) *Expression {
	e := &Expression{Name: name, Preset: preset, Node: a.AddNode(name, -1, [3]float32{})}
	a.Expressions = append(a.Expressions, e)
	return e
}

// Expression returns the expression with name, or nil.
func (a *Animation) Expression(name string) *Expression {
	for _, e := range a.Expressions {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Duration is the largest keyframe time.
func (a *Animation) Duration() float32 {
	var d float32
	last := func(times []float32) {
		if len(times) > 0 && times[len(times)-1] > d {
			d = times[len(times)-1]
		}
	}
	for _, t := range a.Translations {
		last(t.Times)
	}
	for _, t := range a.Rotations {
		last(t.Times)
	}
	for _, e := range a.Expressions {
		last(e.Times)
	}
	return d
}

func sortedNodes[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func checkTimes(times []float32, values int, node int) error {
	if len(times) != values {
		return vrmerr.New(vrmerr.InvalidDocument, "vrma", "node %d: %d keyframes, %d values", node, len(times), values)
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "node %d: keyframe times decrease at %d", node, i)
		}
	}
	return nil
}

// Validate checks node references and keyframe times.
func (a *Animation) Validate() error {
	n := len(a.Nodes)
	for i, node := range a.Nodes {
		if node.Parent < -1 || node.Parent >= n || node.Parent == i {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "node %d: parent %d out of range", i, node.Parent)
		}
	}
	if _, ok := a.HumanBones["hips"]; !ok {
		return vrmerr.New(vrmerr.UnresolvedHumanBone, "vrma", "hips is not mapped")
	}
	for name, node := range a.HumanBones {
		if !vrm.IsHumanBone(name) {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, "vrma", "unknown human bone %s", name)
		}
		if node < 0 || node >= n {
			return vrmerr.New(vrmerr.UnresolvedHumanBone, "vrma", "%s: node %d does not exist", name, node)
		}
	}
	for _, node := range sortedNodes(a.Translations) {
		if node < 0 || node >= n {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "translation track of missing node %d", node)
		}
		if err := checkTimes(a.Translations[node].Times, len(a.Translations[node].Values), node); err != nil {
			return err
		}
	}
	for _, node := range sortedNodes(a.Rotations) {
		if node < 0 || node >= n {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "rotation track of missing node %d", node)
		}
		if err := checkTimes(a.Rotations[node].Times, len(a.Rotations[node].Values), node); err != nil {
			return err
		}
	}
	for _, e := range a.Expressions {
		if e.Node < 0 || e.Node >= n {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "expression %s: node %d does not exist", e.Name, e.Node)
		}
		if e.Preset && !vrm.IsExpressionPreset(e.Name) {
			return vrmerr.New(vrmerr.InvalidDocument, "vrma", "unknown expression preset %s", e.Name)
		}
		if err := checkTimes(e.Times, len(e.Weights), e.Node); err != nil {
			return err
		}
	}
	if a.LookAt < -1 || a.LookAt >= n {
		return vrmerr.New(vrmerr.InvalidDocument, "vrma", "look at node %d does not exist", a.LookAt)
	}
	return nil
}
