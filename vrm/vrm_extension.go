package vrm

import (
	"encoding/json"

	"github.com/qmuntal/gltf"
)

func init() {
	gltf.RegisterExtension(ExtensionName, Unmarshal)
	gltf.RegisterExtension(ExtensionVRMC, unmarshaler(func() interface{} { return &VRMC{} }))
	gltf.RegisterExtension(ExtensionSpringBone, unmarshaler(func() interface{} { return &SpringBone{} }))
	gltf.RegisterExtension(ExtensionMToon, unmarshaler(func() interface{} { return NewMToon() }))
	gltf.RegisterExtension(ExtensionConstraint, unmarshaler(func() interface{} { return &NodeConstraint{} }))
	gltf.RegisterExtension(ExtensionAnimation, unmarshaler(func() interface{} { return &Animation{} }))
	gltf.RegisterExtension(ExtensionTextureTransform, unmarshaler(func() interface{} { return NewTextureTransform() }))
	gltf.RegisterExtension(ExtensionUnlit, unmarshaler(func() interface{} { return &Unlit{} }))
	gltf.RegisterExtension(ExtensionEmissiveStrength, unmarshaler(func() interface{} { return &EmissiveStrength{} }))
}

// Unmarshal decodes the VRM 0.x extension.
func Unmarshal(data []byte) (interface{}, error) {
	vrmext := NewVRM()
	vrmext.SpecVersion = ""
	if err := json.Unmarshal(data, vrmext); err != nil {
		return nil, err
	}
	return vrmext, nil
}

func unmarshaler(newExt func() interface{}) func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		v := newExt()
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// DecodeExtension stores the extension value ext into out. ext may already
// be the decoded type, or raw JSON / a generic map from documents built
// without the registry.
func DecodeExtension(ext interface{}, out interface{}) error {
	var data []byte
	switch v := ext.(type) {
	case nil:
		return nil
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = b
	}
	return json.Unmarshal(data, out)
}
