package vrm

import (
	"fmt"

	"github.com/qmuntal/gltf"
)

type meshExtras struct {
	TargetNames []string `json:"targetNames"`
}

// TargetNames reads extras.targetNames from the mesh, or from its first
// primitive as UniVRM writes it. Unnamed targets are called morphN.
func TargetNames(m *gltf.Mesh) []string {
	var names []string
	var ex meshExtras
	if m.Extras != nil && DecodeExtension(m.Extras, &ex) == nil {
		names = ex.TargetNames
	}
	if len(names) == 0 && len(m.Primitives) > 0 && m.Primitives[0].Extras != nil {
		if DecodeExtension(m.Primitives[0].Extras, &ex) == nil {
			names = ex.TargetNames
		}
	}
	n := 0
	for _, p := range m.Primitives {
		if len(p.Targets) > n {
			n = len(p.Targets)
		}
	}
	out := make([]string, n)
	for i := range out {
		if i < len(names) && names[i] != "" {
			out[i] = names[i]
		} else {
			out[i] = fmt.Sprintf("morph%d", i)
		}
	}
	return out
}
