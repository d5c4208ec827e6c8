package geom

// The host is right-handed Z-up with -X relative to glTF's Y-up space:
// host = (-x, z, y). The mapping is its own inverse.

func HostPosition(v [3]Element) [3]Element {
	return [3]Element{-v[0], v[2], v[1]}
}

func GltfPosition(v [3]Element) [3]Element {
	return [3]Element{-v[0], v[2], v[1]}
}
