// Package glb reads and writes the binary glTF container.
package glb

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/binzume/vrmconv/bincursor"
	"github.com/binzume/vrmconv/vrmerr"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

const (
	Magic         = 0x46546C67 // "glTF"
	Version       = 2
	ChunkJSON     = 0x4E4F534A // "JSON"
	ChunkBIN      = 0x004E4942 // "BIN\0"
	HeaderLength  = 12
	ChunkHeader   = 8
	jsonPadding   = 0x20
	binPadding    = 0x00
	maxFileLength = 1<<32 - 1
)

var (
	ErrInvalidMagic          = errors.New("invalid glb magic")
	ErrUnsupportedVersion    = errors.New("unsupported glb version")
	ErrMultipleChunks        = errors.New("multiple chunks of the same type")
	ErrTruncatedChunk        = errors.New("truncated chunk")
	ErrUnknownChunkType      = errors.New("unknown chunk type")
	ErrMissingJSONChunk      = errors.New("missing JSON chunk")
	ErrInvalidJSONEncoding   = errors.New("JSON chunk is not valid UTF-8")
	ErrContainerTooLarge     = errors.New("container exceeds 4GiB")
	ErrTotalLengthMismatched = errors.New("chunk lengths do not add up to the declared total length")
)

// Container is a parsed GLB file. BIN is nil when the file has no BIN chunk.
type Container struct {
	Version     uint32
	TotalLength uint32
	JSON        []byte
	BIN         []byte
}

func formatError(err error, format string, args ...interface{}) error {
	if format == "" {
		return vrmerr.Wrap(vrmerr.ContainerFormat, "glb.Parse", err)
	}
	return vrmerr.Wrapf(vrmerr.ContainerFormat, "glb.Parse", err, format, args...)
}

// Parse splits data into its JSON and BIN chunks.
// The returned slices alias data.
func Parse(data []byte) (*Container, error) {
	magic, pos, err := bincursor.ReadU32(data, 0)
	if err != nil {
		return nil, formatError(ErrTruncatedChunk, "header")
	}
	if magic != Magic {
		return nil, formatError(ErrInvalidMagic, "magic %08x", magic)
	}
	version, pos, err := bincursor.ReadU32(data, pos)
	if err != nil {
		return nil, formatError(ErrTruncatedChunk, "header")
	}
	if version != Version {
		return nil, formatError(ErrUnsupportedVersion, "version %d", version)
	}
	total, pos, err := bincursor.ReadU32(data, pos)
	if err != nil {
		return nil, formatError(ErrTruncatedChunk, "header")
	}
	if int64(total) > int64(len(data)) {
		return nil, formatError(ErrTruncatedChunk, "declared length %d, have %d bytes", total, len(data))
	}

	c := &Container{Version: version, TotalLength: total}
	seenJSON, seenBIN := false, false
	body := data[:total]
	for pos < len(body) {
		var chunkLen, chunkType uint32
		if chunkLen, pos, err = bincursor.ReadU32(body, pos); err != nil {
			return nil, formatError(ErrTruncatedChunk, "chunk header at %d", pos)
		}
		if chunkType, pos, err = bincursor.ReadU32(body, pos); err != nil {
			return nil, formatError(ErrTruncatedChunk, "chunk header at %d", pos)
		}
		var chunk []byte
		if chunk, pos, err = bincursor.ReadBytes(body, pos, int(chunkLen)); err != nil {
			return nil, formatError(ErrTruncatedChunk, "chunk %08x of %d bytes at %d", chunkType, chunkLen, pos)
		}
		switch chunkType {
		case ChunkJSON:
			if seenJSON {
				return nil, formatError(ErrMultipleChunks, "JSON")
			}
			seenJSON = true
			c.JSON = chunk
		case ChunkBIN:
			if seenBIN {
				return nil, formatError(ErrMultipleChunks, "BIN")
			}
			seenBIN = true
			c.BIN = chunk
		default:
			return nil, formatError(ErrUnknownChunkType, "type %08x", chunkType)
		}
	}
	if !seenJSON {
		return nil, formatError(ErrMissingJSONChunk, "")
	}
	if !utf8.Valid(c.JSON) {
		return nil, formatError(ErrInvalidJSONEncoding, "")
	}
	return c, nil
}

// Length returns the container size for the given unpadded chunk sizes.
func Length(jsonLen, binLen int) int {
	n := HeaderLength + ChunkHeader + bincursor.Pad4(jsonLen)
	if binLen > 0 {
		n += ChunkHeader + bincursor.Pad4(binLen)
	}
	return n
}

// Build assembles a container from an encoded JSON document and BIN bytes.
// The BIN chunk is omitted when bin is empty.
func Build(jsonData, bin []byte) ([]byte, error) {
	total := Length(len(jsonData), len(bin))
	if int64(total) > maxFileLength {
		return nil, vrmerr.Wrap(vrmerr.ContainerFormat, "glb.Build", ErrContainerTooLarge)
	}
	w := bincursor.NewWriter(total)
	w.WriteU32(Magic)
	w.WriteU32(Version)
	w.WriteU32(uint32(total))

	w.WriteU32(uint32(bincursor.Pad4(len(jsonData))))
	w.WriteU32(ChunkJSON)
	w.WriteBytes(jsonData)
	w.Align(4, jsonPadding)

	if len(bin) > 0 {
		w.WriteU32(uint32(bincursor.Pad4(len(bin))))
		w.WriteU32(ChunkBIN)
		w.WriteBytes(bin)
		w.Align(4, binPadding)
	}
	if w.Len() != total {
		return nil, vrmerr.Wrapf(vrmerr.ContainerFormat, "glb.Build", ErrTotalLengthMismatched, "wrote %d, expected %d", w.Len(), total)
	}
	return w.Bytes(), nil
}

// Decode parses data and unmarshals its JSON chunk. The BIN chunk, when
// present, becomes the data of the first buffer.
func Decode(data []byte) (*gltf.Document, *Container, error) {
	c, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	doc := &gltf.Document{}
	if err := json.Unmarshal(c.JSON, doc); err != nil {
		return nil, nil, vrmerr.Wrapf(vrmerr.InvalidDocument, "glb.Decode", err, "JSON chunk")
	}
	if c.BIN != nil {
		if len(doc.Buffers) == 0 {
			doc.Buffers = append(doc.Buffers, &gltf.Buffer{ByteLength: uint32(len(c.BIN))})
		}
		if doc.Buffers[0].URI == "" {
			doc.Buffers[0].Data = c.BIN
		}
	}
	return doc, c, nil
}

// Encode marshals doc compactly and packs it with bin. When doc has a
// buffer, its byte length is set to len(bin).
func Encode(doc *gltf.Document, bin []byte) ([]byte, error) {
	if len(doc.Buffers) > 0 {
		doc.Buffers[0].ByteLength = uint32(len(bin))
		doc.Buffers[0].URI = ""
	}
	if len(bin) == 0 && len(doc.Buffers) == 1 {
		doc.Buffers = nil
	}
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return nil, vrmerr.Wrapf(vrmerr.InvalidDocument, "glb.Encode", err, "marshal document")
	}
	return Build(jsonData, bin)
}
