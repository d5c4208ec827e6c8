package importer

import (
	"strconv"
	"strings"
)

// GeneratorVersion is a parsed asset.generator string such as
// "UniGLTF-1.27".
type GeneratorVersion struct {
	Name  string
	Major int
	Minor int
	Patch int
}

// ParseGenerator splits a generator string at its last '-' or ' ' and
// parses the dotted version after it. ok is false when no numeric version
// follows the name.
func ParseGenerator(gen string) (v GeneratorVersion, ok bool) {
	gen = strings.TrimSpace(gen)
	i := strings.LastIndexAny(gen, "- ")
	if i <= 0 || i == len(gen)-1 {
		return v, false
	}
	v.Name = gen[:i]
	parts := strings.Split(strings.TrimPrefix(gen[i+1:], "v"), ".")
	if len(parts) > 3 {
		return v, false
	}
	nums := []*int{&v.Major, &v.Minor, &v.Patch}
	for j, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, false
		}
		*nums[j] = n
	}
	return v, true
}

// Less reports whether v is older than major.minor.
func (v GeneratorVersion) Less(major, minor int) bool {
	if v.Major != major {
		return v.Major < major
	}
	return v.Minor < minor
}

// LegacyUVFlip reports whether gen names a UniGLTF exporter older than
// 1.16, which stored V without the 1-v flip.
func LegacyUVFlip(gen string) bool {
	v, ok := ParseGenerator(gen)
	return ok && v.Name == "UniGLTF" && v.Less(1, 16)
}
