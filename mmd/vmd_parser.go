package mmd

import (
	"io"
	"os"
	"sort"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
)

const (
	vmdFormat2    = "Vocaloid Motion Data 0002"
	vmdFormat1    = "Vocaloid Motion Data file"
	vmdHeaderSize = 30

	// FPS is the frame rate of VMD key frames.
	FPS = 30
)

var ErrNotVMD = errors.New("not a VMD motion")

// VMDParser is parser for .vmd animation.
type VMDParser struct {
	baseParser
}

type Animation struct {
	Name   string
	Bone   []*AnimationBoneSample
	Morph  []*AnimationMorphSample
	Camera []*AnimationCameraSample
	Light  []*AnimationLightSample
}

type AnimationBoneSample struct {
	Target   string
	Frame    int
	Position Vector3
	Rotation Vector4
	Params   [64]byte
}

type AnimationMorphSample struct {
	Target string
	Frame  int
	Value  float32
}

type AnimationCameraSample struct {
	Frame       int
	Distance    float32
	Position    Vector3
	Rotation    Vector3
	Params      [24]byte
	FoV         int
	Perspective bool
}

type AnimationLightSample struct {
	Frame    int
	Color    Vector3
	Position Vector3
}

// BoneChannel is the key frames of one bone, ordered by frame.
type BoneChannel struct {
	Target    string
	Frames    []uint32
	Positions []Vector3
	Rotations []Vector4
}

type MorphChannel struct {
	Target  string
	Frames  []uint32
	Weights []float32
}

// NewVMDParser returns new parser.
func NewVMDParser(r io.Reader) *VMDParser {
	return &VMDParser{baseParser: baseParser{r: r}}
}

func (p *VMDParser) fail(section string) error {
	return vrmerr.Wrapf(vrmerr.ContainerFormat, "vmd", p.err, "%s section", section)
}

// Parse animation data. Files that end after the morph section are valid.
func (p *VMDParser) Parse() (*Animation, error) {
	var anim Animation

	nameSize := 20
	switch format := p.readString(vmdHeaderSize); format {
	case vmdFormat2:
	case vmdFormat1:
		nameSize = 10
	default:
		if p.err != nil {
			return nil, p.fail("header")
		}
		return nil, vrmerr.Wrapf(vrmerr.ContainerFormat, "vmd", ErrNotVMD, "header %q", format)
	}
	anim.Name = p.readString(nameSize)

	frames, _ := p.readCount()
	for i := 0; i < frames && p.err == nil; i++ {
		sample := &AnimationBoneSample{}
		sample.Target = p.readString(15)
		sample.Frame = int(p.readUint32())
		p.read(&sample.Position)
		p.read(&sample.Rotation)
		p.read(&sample.Params)
		anim.Bone = append(anim.Bone, sample)
	}
	if p.err != nil {
		return nil, p.fail("bone")
	}

	frames, _ = p.readCount()
	for i := 0; i < frames && p.err == nil; i++ {
		sample := &AnimationMorphSample{}
		sample.Target = p.readString(15)
		sample.Frame = int(p.readUint32())
		sample.Value = p.readFloat()
		anim.Morph = append(anim.Morph, sample)
	}
	if p.err != nil {
		return nil, p.fail("morph")
	}

	frames, ok := p.readCount()
	for i := 0; i < frames && p.err == nil; i++ {
		sample := &AnimationCameraSample{}
		sample.Frame = int(p.readUint32())
		sample.Distance = p.readFloat()
		p.read(&sample.Position)
		p.read(&sample.Rotation)
		p.read(&sample.Params)
		sample.FoV = int(p.readUint32())
		sample.Perspective = p.readUint8() == 0
		anim.Camera = append(anim.Camera, sample)
	}
	if p.err != nil {
		return nil, p.fail("camera")
	}
	if !ok {
		return &anim, nil
	}

	frames, _ = p.readCount()
	for i := 0; i < frames && p.err == nil; i++ {
		sample := &AnimationLightSample{}
		sample.Frame = int(p.readUint32())
		p.read(&sample.Color)
		p.read(&sample.Position)
		anim.Light = append(anim.Light, sample)
	}
	if p.err != nil {
		return nil, p.fail("light")
	}
	return &anim, nil
}

func ReadVMD(path string) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return NewVMDParser(f).Parse()
}

// BoneChannels groups bone samples by bone name. A later sample on the
// same frame replaces the earlier one.
func (a *Animation) BoneChannels() map[string]*BoneChannel {
	sort.SliceStable(a.Bone, func(i, j int) bool { return a.Bone[i].Frame < a.Bone[j].Frame })

	r := map[string]*BoneChannel{}
	for _, s := range a.Bone {
		ch, ok := r[s.Target]
		if !ok {
			ch = &BoneChannel{Target: s.Target}
			r[s.Target] = ch
		}
		if n := len(ch.Frames); n > 0 && ch.Frames[n-1] == uint32(s.Frame) {
			ch.Positions[n-1] = s.Position
			ch.Rotations[n-1] = s.Rotation
			continue
		}
		ch.Frames = append(ch.Frames, uint32(s.Frame))
		ch.Positions = append(ch.Positions, s.Position)
		ch.Rotations = append(ch.Rotations, s.Rotation)
	}
	return r
}

func (a *Animation) MorphChannels() map[string]*MorphChannel {
	sort.SliceStable(a.Morph, func(i, j int) bool { return a.Morph[i].Frame < a.Morph[j].Frame })

	r := map[string]*MorphChannel{}
	for _, s := range a.Morph {
		ch, ok := r[s.Target]
		if !ok {
			ch = &MorphChannel{Target: s.Target}
			r[s.Target] = ch
		}
		if n := len(ch.Frames); n > 0 && ch.Frames[n-1] == uint32(s.Frame) {
			ch.Weights[n-1] = s.Value
			continue
		}
		ch.Frames = append(ch.Frames, uint32(s.Frame))
		ch.Weights = append(ch.Weights, s.Value)
	}
	return r
}

// FrameCount is the last key frame number.
func (a *Animation) FrameCount() int {
	n := 0
	for _, s := range a.Bone {
		if s.Frame > n {
			n = s.Frame
		}
	}
	for _, s := range a.Morph {
		if s.Frame > n {
			n = s.Frame
		}
	}
	return n
}
