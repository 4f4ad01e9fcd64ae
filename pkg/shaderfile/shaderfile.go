// Package shaderfile reads and writes compiled shader artifacts.
//
// An artifact is a fixed header followed by (type, length, payload) chunks:
//
//	offset  size  field
//	0       8     magic "SHADER.1"
//	8       4     total artifact size in bytes
//	12      4     flags (bytecode dialect)
//	16      ...   chunks
//
// The first chunk is JSON metadata; every following binary chunk holds the
// bytecode of the stage whose buffer index equals its position. All integers
// are little-endian uint32. Readers skip chunk types they do not know by
// trusting the length field.
package shaderfile

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Faultbox/shaderc/pkg/shader"
)

// Magic identifies the container format and version.
const Magic = "SHADER.1"

const (
	headerSize      = 16
	chunkHeaderSize = 8
)

// Flags identifies the bytecode dialect of binary chunks.
type Flags uint32

// Bytecode dialects.
const (
	FlagsDXIL  Flags = 0
	FlagsSPIRV Flags = 1
)

// String returns the dialect name.
func (f Flags) String() string {
	switch f {
	case FlagsDXIL:
		return "DXIL"
	case FlagsSPIRV:
		return "SPIRV"
	default:
		return fmt.Sprintf("Flags(%d)", uint32(f))
	}
}

// ChunkType tags a chunk payload.
type ChunkType uint32

// Chunk types.
const (
	ChunkJSON   ChunkType = 0
	ChunkBinary ChunkType = 1
)

// String returns the chunk type name.
func (t ChunkType) String() string {
	switch t {
	case ChunkJSON:
		return "JSON"
	case ChunkBinary:
		return "BINARY"
	default:
		return fmt.Sprintf("ChunkType(%d)", uint32(t))
	}
}

// Artifact errors.
var (
	ErrInvalidMagic    = errors.New("invalid shader file magic: expected 'SHADER.1'")
	ErrTruncated       = errors.New("truncated shader file")
	ErrSizeMismatch    = errors.New("shader file size does not match header")
	ErrMissingMetadata = errors.New("shader file has no metadata chunk")
	ErrStageMismatch   = errors.New("stage buffer indices do not match binary chunks")
)

// Header is the fixed artifact header.
type Header struct {
	Magic [8]byte
	Size  uint32
	Flags Flags
}

// Chunk is one (type, payload) unit.
type Chunk struct {
	Type ChunkType
	Data []byte
}

// File is a decoded artifact.
type File struct {
	Header   Header
	Metadata *shader.Metadata
	Bytecode [][]byte // indexed by stage buffer index
	Chunks   []Chunk  // every chunk in file order, including unknown types
}

// Encode builds an artifact. bytecode[i] must belong to the stage with
// buffer index i; every stage in md must have a matching entry.
func Encode(flags Flags, md *shader.Metadata, bytecode [][]byte) ([]byte, error) {
	if md == nil {
		return nil, ErrMissingMetadata
	}
	if err := checkStages(md.Stages, len(bytecode)); err != nil {
		return nil, err
	}

	meta, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	chunks := make([]Chunk, 0, len(bytecode)+1)
	chunks = append(chunks, Chunk{Type: ChunkJSON, Data: meta})
	for _, code := range bytecode {
		chunks = append(chunks, Chunk{Type: ChunkBinary, Data: code})
	}
	return EncodeChunks(flags, chunks)
}

// EncodeChunks writes a header and the given chunks. The size field is
// patched once the whole buffer is assembled.
func EncodeChunks(flags Flags, chunks []Chunk) ([]byte, error) {
	buf := new(bytes.Buffer)

	buf.WriteString(Magic)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // size placeholder
	binary.Write(buf, binary.LittleEndian, uint32(flags))

	for _, c := range chunks {
		if uint64(len(c.Data)) > uint64(^uint32(0)) {
			return nil, fmt.Errorf("chunk %s too large: %d bytes", c.Type, len(c.Data))
		}
		binary.Write(buf, binary.LittleEndian, uint32(c.Type))
		binary.Write(buf, binary.LittleEndian, uint32(len(c.Data)))
		buf.Write(c.Data)
	}

	out := buf.Bytes()
	if uint64(len(out)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("artifact too large: %d bytes", len(out))
	}
	binary.LittleEndian.PutUint32(out[len(Magic):], uint32(len(out)))
	return out, nil
}

// Decode parses an artifact from raw bytes.
func Decode(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}

	var f File
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncated)
	}
	if string(f.Header.Magic[:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if int(f.Header.Size) != len(data) {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrSizeMismatch, f.Header.Size, len(data))
	}

	offset := headerSize
	for offset < len(data) {
		if len(data)-offset < chunkHeaderSize {
			return nil, fmt.Errorf("%w: chunk header at offset %d", ErrTruncated, offset)
		}
		typ := ChunkType(binary.LittleEndian.Uint32(data[offset:]))
		length := int(binary.LittleEndian.Uint32(data[offset+4:]))
		offset += chunkHeaderSize
		if length > len(data)-offset {
			return nil, fmt.Errorf("%w: chunk %d (%s) needs %d bytes, %d left",
				ErrTruncated, len(f.Chunks), typ, length, len(data)-offset)
		}
		payload := data[offset : offset+length]
		offset += length

		f.Chunks = append(f.Chunks, Chunk{Type: typ, Data: payload})

		switch typ {
		case ChunkJSON:
			if f.Metadata != nil {
				continue
			}
			var md shader.Metadata
			if err := json.Unmarshal(payload, &md); err != nil {
				return nil, fmt.Errorf("decoding metadata: %w", err)
			}
			f.Metadata = &md
		case ChunkBinary:
			f.Bytecode = append(f.Bytecode, payload)
		}
	}

	if f.Metadata == nil {
		return nil, ErrMissingMetadata
	}
	if err := checkStages(f.Metadata.Stages, len(f.Bytecode)); err != nil {
		return nil, err
	}
	return &f, nil
}

// Open reads and decodes an artifact from disk.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return Decode(data)
}

// StageBytecode returns the bytecode of the given stage.
func (f *File) StageBytecode(kind shader.StageKind) ([]byte, bool) {
	st, ok := f.Metadata.Stages[kind]
	if !ok || st.Buffer < 0 || st.Buffer >= len(f.Bytecode) {
		return nil, false
	}
	return f.Bytecode[st.Buffer], true
}

// checkStages verifies that stage buffer indices are exactly 0..n-1.
func checkStages(stages shader.Stages, n int) error {
	if len(stages) != n {
		return fmt.Errorf("%w: %d stage(s), %d binary chunk(s)", ErrStageMismatch, len(stages), n)
	}
	for i, st := range stages.Ordered() {
		if st.Buffer != i {
			return fmt.Errorf("%w: stage %s has buffer %d, expected %d", ErrStageMismatch, st.Kind, st.Buffer, i)
		}
	}
	return nil
}
