package glb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/binzume/vrmconv/vrmerr"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

func TestBuildLength(t *testing.T) {
	for _, c := range []struct {
		json, bin int
	}{
		{0, 0}, {1, 0}, {4, 0}, {5, 3}, {13, 16}, {2, 1},
	} {
		js := bytes.Repeat([]byte{'x'}, c.json)
		bin := bytes.Repeat([]byte{0xab}, c.bin)
		out, err := Build(js, bin)
		if err != nil {
			t.Fatal(err)
		}
		want := 12 + 8 + (c.json+3)/4*4
		if c.bin > 0 {
			want += 8 + (c.bin+3)/4*4
		}
		if len(out) != want || Length(c.json, c.bin) != want {
			t.Errorf("json=%d bin=%d: len=%d want %d", c.json, c.bin, len(out), want)
		}
		if int(binary.LittleEndian.Uint32(out[8:])) != want {
			t.Errorf("declared length %d", binary.LittleEndian.Uint32(out[8:]))
		}

		parsed, err := Parse(out)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !bytes.Equal(bytes.TrimRight(parsed.JSON, " "), js) {
			t.Errorf("json mismatch: %q", parsed.JSON)
		}
		if c.bin == 0 && parsed.BIN != nil {
			t.Error("empty BIN chunk was emitted")
		}
		if c.bin > 0 && !bytes.Equal(parsed.BIN[:c.bin], bin) {
			t.Errorf("bin mismatch: %v", parsed.BIN)
		}
	}
}

func TestPadding(t *testing.T) {
	out, _ := Build([]byte("{}"), []byte{1})
	// header(12) + json chunk header(8) + "{}" + 2 spaces
	if !bytes.Equal(out[20:24], []byte{'{', '}', 0x20, 0x20}) {
		t.Errorf("json padding %v", out[20:24])
	}
	if binary.LittleEndian.Uint32(out[24:]) != 4 || binary.LittleEndian.Uint32(out[28:]) != ChunkBIN {
		t.Errorf("bin chunk header %v", out[24:32])
	}
	if !bytes.Equal(out[32:36], []byte{1, 0, 0, 0}) {
		t.Errorf("bin padding %v", out[32:36])
	}
}

func chunk(typ uint32, data []byte) []byte {
	b := make([]byte, 8, 8+len(data))
	binary.LittleEndian.PutUint32(b, uint32(len(data)))
	binary.LittleEndian.PutUint32(b[4:], typ)
	return append(b, data...)
}

func container(magic, version uint32, chunks ...[]byte) []byte {
	body := bytes.Join(chunks, nil)
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b, magic)
	binary.LittleEndian.PutUint32(b[4:], version)
	binary.LittleEndian.PutUint32(b[8:], uint32(12+len(body)))
	return append(b, body...)
}

func TestParseErrors(t *testing.T) {
	js := chunk(ChunkJSON, []byte("{}  "))
	bin := chunk(ChunkBIN, []byte{0, 0, 0, 0})
	truncated := container(Magic, 2, js)
	binary.LittleEndian.PutUint32(truncated[12:], 100)

	for name, c := range map[string]struct {
		data []byte
		err  error
	}{
		"magic":       {container(0x12345678, 2, js), ErrInvalidMagic},
		"version":     {container(Magic, 1, js), ErrUnsupportedVersion},
		"twoJSON":     {container(Magic, 2, js, js), ErrMultipleChunks},
		"twoBIN":      {container(Magic, 2, js, bin, bin), ErrMultipleChunks},
		"unknown":     {container(Magic, 2, js, chunk(0x41424344, nil)), ErrUnknownChunkType},
		"noJSON":      {container(Magic, 2, bin), ErrMissingJSONChunk},
		"truncated":   {truncated, ErrTruncatedChunk},
		"shortHeader": {[]byte("glTF"), ErrTruncatedChunk},
		"badUTF8":     {container(Magic, 2, chunk(ChunkJSON, []byte{0xff, 0xfe, 0x20, 0x20})), ErrInvalidJSONEncoding},
	} {
		_, err := Parse(c.data)
		if !errors.Is(err, c.err) {
			t.Errorf("%s: got %v, want %v", name, err, c.err)
		}
		if !vrmerr.Is(err, vrmerr.ContainerFormat) {
			t.Errorf("%s: kind %v", name, vrmerr.KindOf(err))
		}
	}

	long := container(Magic, 2, js)
	binary.LittleEndian.PutUint32(long[8:], uint32(len(long)+4))
	if _, err := Parse(long); !errors.Is(err, ErrTruncatedChunk) {
		t.Errorf("declared length beyond data: %v", err)
	}
}

func TestParseIgnoresTrailingBytes(t *testing.T) {
	data := append(container(Magic, 2, chunk(ChunkJSON, []byte("{}  "))), 0xde, 0xad)
	c, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(c.JSON) != "{}  " || c.BIN != nil {
		t.Errorf("unexpected container %s", spew.Sdump(c))
	}
}

func TestEncodeDecode(t *testing.T) {
	doc := gltf.NewDocument()
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "root", Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}})
	doc.Scenes[0].Nodes = []uint32{0}
	if len(doc.Buffers) == 0 {
		doc.Buffers = append(doc.Buffers, new(gltf.Buffer))
	}
	bin := []byte{1, 2, 3, 4, 5}

	out, err := Encode(doc, bin)
	if err != nil {
		t.Fatal(err)
	}
	decoded, c, err := Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Nodes) != 1 || decoded.Nodes[0].Name != "root" {
		t.Errorf("nodes %s", spew.Sdump(decoded.Nodes))
	}
	if len(decoded.Buffers) != 1 || decoded.Buffers[0].ByteLength != 5 {
		t.Fatalf("buffers %s", spew.Sdump(decoded.Buffers))
	}
	if !bytes.Equal(decoded.Buffers[0].Data[:5], bin) || len(c.BIN) != 8 {
		t.Errorf("bin %v", decoded.Buffers[0].Data)
	}

	empty := gltf.NewDocument()
	out, err = Encode(empty, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out, []byte("BIN")) || len(out) != Length(len(out)-20, 0) {
		t.Errorf("empty document emitted a BIN chunk")
	}
}
