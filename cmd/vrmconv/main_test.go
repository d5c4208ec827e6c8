package main

import (
	"testing"

	"github.com/binzume/vrmconv/vrm"
)

func TestDefaultOutputFile(t *testing.T) {
	for _, c := range []struct {
		input   string
		version vrm.Version
		want    string
	}{
		{"model.glb", vrm.Version0, "model.vrm"},
		{"dir/model.GLTF", vrm.Version1, "dir/model.vrm"},
		{"avatar.vrm", vrm.Version0, "avatar_vrm0.vrm"},
		{"avatar.vrm", vrm.Version1, "avatar_vrm1.vrm"},
		{"dance.vmd", vrm.Version0, "dance.vrma"},
	} {
		if got := defaultOutputFile(c.input, c.version); got != c.want {
			t.Errorf("%s: got %s, want %s", c.input, got, c.want)
		}
	}
}

func TestCommandOf(t *testing.T) {
	for input, want := range map[string]string{
		"a.vmd":  "vmd2vrma",
		"a.VRM":  "convert",
		"a.glb":  "glb2vrm",
		"a.vrma": "vrma-info",
		"a.pmx":  "",
	} {
		if got := commandOf(input); got != want {
			t.Errorf("%s: got %q, want %q", input, got, want)
		}
	}
	if _, err := parseVersion("2"); err == nil {
		t.Error("version 2 accepted")
	}
}
