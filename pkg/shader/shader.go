// Package shader defines the metadata model shared by the shader parser,
// the backend compilers and the artifact container.
package shader

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode"
	"unicode/utf8"
)

// StageKind identifies a pipeline stage.
type StageKind uint8

// Stage kinds. The container format allows more; the parser only emits these.
const (
	VertexShader StageKind = iota
	PixelShader

	stageKindCount
)

var stageKindNames = [stageKindCount]string{
	VertexShader: "VERTEX_SHADER",
	PixelShader:  "PIXEL_SHADER",
}

// VertexEntryPoint is always classified as the vertex stage.
const VertexEntryPoint = "vs_main"

// entryPoints maps recognized entry-point identifiers to their stage.
var entryPoints = map[string]StageKind{
	VertexEntryPoint: VertexShader,
	"ps_main":        PixelShader,
}

// StageForEntryPoint returns the stage kind for an entry-point identifier.
func StageForEntryPoint(name string) (StageKind, bool) {
	kind, ok := entryPoints[name]
	return kind, ok
}

// StageKinds returns all known stage kinds in index order.
func StageKinds() []StageKind {
	kinds := make([]StageKind, 0, stageKindCount)
	for k := StageKind(0); k < stageKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// String returns the metadata name, e.g. "VERTEX_SHADER".
func (k StageKind) String() string {
	if k < stageKindCount {
		return stageKindNames[k]
	}
	return fmt.Sprintf("StageKind(%d)", uint8(k))
}

// Valid reports whether k is a known stage kind.
func (k StageKind) Valid() bool {
	return k < stageKindCount
}

// MarshalText implements encoding.TextMarshaler so StageKind can key JSON maps.
func (k StageKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown stage kind %d", uint8(k))
	}
	return []byte(stageKindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StageKind) UnmarshalText(text []byte) error {
	kind, err := ParseStageKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseStageKind parses a metadata stage name.
func ParseStageKind(s string) (StageKind, error) {
	for i, name := range stageKindNames {
		if name == s {
			return StageKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage kind %q", s)
}

// DataType is a scalar, vector or matrix type allowed in annotated structs.
type DataType uint8

// Data types.
const (
	Float DataType = iota
	Float2
	Float3
	Float4
	Float2x2
	Float3x3
	Float4x4
	Uint
	Bool

	dataTypeCount
)

type dataTypeInfo struct {
	keyword string
	tag     string
	size    int
}

// bool is 2 bytes in the engine's layout table.
var dataTypes = [dataTypeCount]dataTypeInfo{
	Float:    {"float", "FLOAT", 4},
	Float2:   {"float2", "FLOAT2", 8},
	Float3:   {"float3", "FLOAT3", 12},
	Float4:   {"float4", "FLOAT4", 16},
	Float2x2: {"float2x2", "FLOAT2x2", 16},
	Float3x3: {"float3x3", "FLOAT3x3", 36},
	Float4x4: {"float4x4", "FLOAT4x4", 64},
	Uint:     {"uint", "UINT", 4},
	Bool:     {"bool", "BOOL", 2},
}

// LookupDataType resolves a source keyword such as "float4".
func LookupDataType(keyword string) (DataType, bool) {
	for i, info := range dataTypes {
		if info.keyword == keyword {
			return DataType(i), true
		}
	}
	return 0, false
}

// Keyword returns the source-language spelling.
func (t DataType) Keyword() string {
	if t < dataTypeCount {
		return dataTypes[t].keyword
	}
	return ""
}

// Size returns the fixed byte size used for layout computation.
func (t DataType) Size() int {
	if t < dataTypeCount {
		return dataTypes[t].size
	}
	return 0
}

// String returns the metadata tag, e.g. "FLOAT4".
func (t DataType) String() string {
	if t < dataTypeCount {
		return dataTypes[t].tag
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	if t >= dataTypeCount {
		return nil, fmt.Errorf("unknown data type %d", uint8(t))
	}
	return []byte(dataTypes[t].tag), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(text []byte) error {
	for i, info := range dataTypes {
		if info.tag == string(text) {
			*t = DataType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown data type tag %q", text)
}

// ResourceType classifies an export.
type ResourceType string

// Resource types.
const (
	NonUniform ResourceType = "non-uniform"
	Uniform    ResourceType = "uniform"
)

// VertexInput is one vertex-input slot, in struct declaration order.
type VertexInput struct {
	Type     DataType `json:"type"`
	Semantic string   `json:"semantic"`
}

// Stage is one pipeline stage discovered in source.
type Stage struct {
	Kind       StageKind `json:"-"`
	EntryPoint string    `json:"entryPoint"`
	Buffer     int       `json:"buffer"`

	// Vertex stage only.
	Inputs              []VertexInput `json:"inputs,omitempty"`
	InputsSizePerVertex *int          `json:"inputsSizePerVertex,omitempty"`
}

// ExportElement is one field of a uniform-buffer export.
type ExportElement struct {
	Name   string   `json:"name"`
	Type   DataType `json:"type"`
	Offset int      `json:"offset"`
}

// Export is a named resource the shader exposes to host code.
type Export struct {
	Binding     *int            `json:"binding,omitempty"`
	Type        ResourceType    `json:"type"`
	Elements    []ExportElement `json:"elements,omitempty"`
	SizeInBytes *int            `json:"sizeInBytes,omitempty"`
}

// Stages maps stage kinds to stages.
type Stages map[StageKind]*Stage

// Ordered returns the stages sorted by ascending buffer index.
func (s Stages) Ordered() []*Stage {
	out := make([]*Stage, 0, len(s))
	for _, st := range s {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Buffer != out[j].Buffer {
			return out[i].Buffer < out[j].Buffer
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// UnmarshalJSON restores Kind from the map key.
func (s *Stages) UnmarshalJSON(data []byte) error {
	var raw map[StageKind]*Stage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for kind, st := range raw {
		if st == nil {
			return fmt.Errorf("stage %s: null entry", kind)
		}
		st.Kind = kind
	}
	*s = raw
	return nil
}

// Exports maps normalized export names to exports.
type Exports map[string]*Export

// Names returns the export names sorted by binding, then name.
func (e Exports) Names() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		bi, bj := bindingOf(e[names[i]]), bindingOf(e[names[j]])
		if bi != bj {
			return bi < bj
		}
		return names[i] < names[j]
	})
	return names
}

func bindingOf(e *Export) int {
	if e == nil || e.Binding == nil {
		return int(^uint(0) >> 1)
	}
	return *e.Binding
}

// Metadata is the JSON chunk of a shader artifact.
type Metadata struct {
	ShaderName string  `json:"shaderName"`
	Stages     Stages  `json:"stages"`
	Exports    Exports `json:"exports"`
}

// NormalizeName upper-cases the first character of an identifier.
// Export names and uniform element names are stored this way.
func NormalizeName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// String renders a short human-readable summary.
func (m *Metadata) String() string {
	return fmt.Sprintf("%s: %d stage(s), %d export(s)", m.ShaderName, len(m.Stages), len(m.Exports))
}
