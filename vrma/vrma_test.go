package vrma

import (
	"testing"

	"github.com/binzume/vrmconv/glb"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
)

func testAnimation() *Animation {
	a := New("walk")
	hips := a.AddNode("hips", -1, [3]float32{0, 1, 0})
	spine := a.AddNode("spine", hips, [3]float32{0, 0.1, 0})
	a.HumanBones["hips"] = hips
	a.HumanBones["spine"] = spine
	times := []float32{0, 0.5, 1}
	a.Translations[hips] = &Vec3Track{Times: times, Values: [][3]float32{{0, 1, 0}, {0, 1.1, 0}, {0, 1, 0}}}
	a.Rotations[spine] = &QuatTrack{Times: times, Values: [][4]float32{{0, 0, 0, 1}, {0, 0.38268343, 0, 0.9238795}, {0, 0, 0, 1}}}
	blink := a.AddExpression("blink", true)
	blink.Times = []float32{0, 0.25}
	blink.Weights = []float32{0, 1}
	smile := a.AddExpression("smile", false)
	smile.Times = times
	smile.Weights = []float32{0, 0.5, 0}
	a.LookAt = a.AddNode("lookAt", -1, [3]float32{0, 1.5, 1})
	return a
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(testAnimation())
	if err != nil {
		t.Fatal(err)
	}
	a, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "walk" || len(a.Nodes) != 5 || a.Nodes[1].Parent != 0 || a.Nodes[1].Name != "spine" {
		t.Fatalf("nodes %s", spew.Sdump(a.Nodes))
	}
	if a.HumanBones["hips"] != 0 || a.HumanBones["spine"] != 1 || a.LookAt != 4 {
		t.Errorf("bones %v look at %d", a.HumanBones, a.LookAt)
	}
	if tr := a.Translations[0]; tr == nil || len(tr.Times) != 3 || tr.Values[1] != [3]float32{0, 1.1, 0} {
		t.Errorf("translation %s", spew.Sdump(tr))
	}
	if r := a.Rotations[1]; r == nil || r.Values[1][1] != 0.38268343 {
		t.Errorf("rotation %s", spew.Sdump(r))
	}
	blink := a.Expression("blink")
	if blink == nil || !blink.Preset || len(blink.Weights) != 2 || blink.Weights[1] != 1 {
		t.Fatalf("blink %s", spew.Sdump(blink))
	}
	if smile := a.Expression("smile"); smile == nil || smile.Preset || smile.Weights[1] != 0.5 {
		t.Errorf("smile %s", spew.Sdump(smile))
	}
	if len(a.Translations) != 1 {
		t.Errorf("expression tracks read as translations: %v", a.Translations)
	}
	if a.Duration() != 1 {
		t.Errorf("duration %v", a.Duration())
	}
}

func TestSharedInputs(t *testing.T) {
	data, err := Encode(testAnimation())
	if err != nil {
		t.Fatal(err)
	}
	doc, _, err := glb.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	inputs := map[uint32]bool{}
	for _, s := range doc.Animations[0].Samplers {
		inputs[*s.Input] = true
	}
	// Two distinct time sequences for four channels.
	if len(doc.Animations[0].Channels) != 4 || len(inputs) != 2 {
		t.Errorf("channels %d inputs %v", len(doc.Animations[0].Channels), inputs)
	}
	if acc := doc.Accessors[*doc.Animations[0].Samplers[0].Input]; len(acc.Min) != 1 || acc.Max[0] != 1 {
		t.Errorf("input bounds %v %v", acc.Min, acc.Max)
	}
}

func TestValidate(t *testing.T) {
	for name, edit := range map[string]func(a *Animation){
		"no hips":        func(a *Animation) { delete(a.HumanBones, "hips") },
		"unknown bone":   func(a *Animation) { a.HumanBones["wing"] = 1 },
		"times":          func(a *Animation) { a.Translations[0].Times = []float32{0, 1, 0.5} },
		"length":         func(a *Animation) { a.Rotations[1].Values = a.Rotations[1].Values[:1] },
		"missing node":   func(a *Animation) { a.Rotations[9] = &QuatTrack{} },
		"unknown preset": func(a *Animation) { a.Expression("smile").Preset = true },
	} {
		a := testAnimation()
		edit(a)
		if _, err := Encode(a); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
	a := testAnimation()
	delete(a.HumanBones, "hips")
	if err := a.Validate(); !vrmerr.Is(err, vrmerr.UnresolvedHumanBone) {
		t.Errorf("expected UnresolvedHumanBone, got %v", err)
	}
}

func TestDecodeNotAnimation(t *testing.T) {
	data, err := glb.Build([]byte(`{"asset":{"version":"2.0"}}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(data); !vrmerr.Is(err, vrmerr.InvalidDocument) {
		t.Errorf("expected InvalidDocument, got %v", err)
	}
}
