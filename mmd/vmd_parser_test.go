package mmd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
)

type vmdWriter struct {
	t *testing.T
	bytes.Buffer
}

func (w *vmdWriter) str(s string, size int) {
	b, err := EncodeShiftJIS(s)
	if err != nil {
		w.t.Fatal(err)
	}
	field := make([]byte, size)
	copy(field, b)
	w.Write(field)
}

func (w *vmdWriter) put(v interface{}) {
	binary.Write(w, binary.LittleEndian, v)
}

func (w *vmdWriter) bone(name string, frame uint32, pos Vector3, rot Vector4) {
	w.str(name, 15)
	w.put(frame)
	w.put(pos)
	w.put(rot)
	w.put([64]byte{})
}

func (w *vmdWriter) morph(name string, frame uint32, v float32) {
	w.str(name, 15)
	w.put(frame)
	w.put(v)
}

func testMotion(t *testing.T) *vmdWriter {
	w := &vmdWriter{t: t}
	w.str(vmdFormat2, 30)
	w.str("テスト", 20)
	w.put(uint32(4))
	w.bone("センター", 10, Vector3{0, 1, 0}, IdentityRotation)
	w.bone("センター", 0, Vector3{}, IdentityRotation)
	w.bone("右腕", 5, Vector3{}, Vector4{0, 0, 0.70710677, 0.70710677})
	w.bone("センター", 10, Vector3{0, 2, 0}, IdentityRotation)
	w.put(uint32(2))
	w.morph("まばたき", 0, 0)
	w.morph("まばたき", 15, 1)
	return w
}

func TestParseVMD(t *testing.T) {
	w := testMotion(t)
	anim, err := NewVMDParser(&w.Buffer).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if anim.Name != "テスト" || len(anim.Bone) != 4 || len(anim.Morph) != 2 || anim.Camera != nil {
		t.Fatalf("unexpected animation %s", spew.Sdump(anim))
	}
	if anim.FrameCount() != 15 {
		t.Errorf("frame count %d", anim.FrameCount())
	}

	bones := anim.BoneChannels()
	center := bones["センター"]
	if center == nil || len(center.Frames) != 2 || center.Frames[0] != 0 || center.Frames[1] != 10 {
		t.Fatalf("center channel %s", spew.Sdump(center))
	}
	if center.Positions[1].Y != 2 {
		t.Errorf("later sample on frame 10 should win, got %v", center.Positions[1])
	}
	if arm := bones["右腕"]; arm == nil || arm.Rotations[0].Z != 0.70710677 {
		t.Errorf("arm channel %s", spew.Sdump(arm))
	}

	blink := anim.MorphChannels()["まばたき"]
	if blink == nil || len(blink.Weights) != 2 || blink.Weights[1] != 1 || blink.Frames[1] != 15 {
		t.Errorf("blink channel %s", spew.Sdump(blink))
	}
}

func TestParseVMDCameraAndLight(t *testing.T) {
	w := testMotion(t)
	w.put(uint32(1))
	w.put(uint32(3))
	w.put(float32(-45))
	w.put(Vector3{0, 10, 0})
	w.put(Vector3{})
	w.put([24]byte{})
	w.put(uint32(30))
	w.put(uint8(0))
	w.put(uint32(1))
	w.put(uint32(0))
	w.put(Vector3{0.6, 0.6, 0.6})
	w.put(Vector3{-0.5, -1, 0.5})
	anim, err := NewVMDParser(&w.Buffer).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Camera) != 1 || anim.Camera[0].FoV != 30 || !anim.Camera[0].Perspective || anim.Camera[0].Distance != -45 {
		t.Errorf("camera %s", spew.Sdump(anim.Camera))
	}
	if len(anim.Light) != 1 || anim.Light[0].Position.Y != -1 {
		t.Errorf("light %s", spew.Sdump(anim.Light))
	}
}

func TestParseVMDErrors(t *testing.T) {
	w := &vmdWriter{t: t}
	w.str("Polygon Movie maker 0001", 30)
	w.str("", 20)
	if _, err := NewVMDParser(&w.Buffer).Parse(); !vrmerr.Is(err, vrmerr.ContainerFormat) {
		t.Errorf("expected ContainerFormat, got %v", err)
	}

	full := testMotion(t).Bytes()
	truncated := full[:30+20+4+111+50]
	if _, err := NewVMDParser(bytes.NewReader(truncated)).Parse(); !vrmerr.Is(err, vrmerr.ContainerFormat) {
		t.Errorf("expected ContainerFormat for truncated bones, got %v", err)
	}

	if _, err := NewVMDParser(bytes.NewReader(full[:10])).Parse(); err == nil {
		t.Error("short header accepted")
	}
}

func TestParseVMDWithoutMorphs(t *testing.T) {
	w := &vmdWriter{t: t}
	w.str(vmdFormat2, 30)
	w.str("", 20)
	w.put(uint32(1))
	w.bone("頭", 0, Vector3{}, IdentityRotation)
	anim, err := NewVMDParser(&w.Buffer).Parse()
	if err != nil {
		t.Fatal(err)
	}
	if len(anim.Bone) != 1 || anim.Bone[0].Target != "頭" || anim.Morph != nil {
		t.Errorf("unexpected animation %s", spew.Sdump(anim))
	}
}
