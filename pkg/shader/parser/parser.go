// Package parser recovers shader structure (stages, vertex-input layout and
// resource exports) from annotated HLSL source.
//
// Parsing is a lightweight lexical scan rather than a full grammar:
//
//   - #include "path" directives are inlined first (see IncludeResolver).
//   - Function definitions named like entry points (vs_main, ps_main, ...)
//     become stages, numbered in discovery order.
//   - Flat struct blocks are collected by name. ShaderResources (or
//     ShaderData) declares exports, VSInput declares the vertex layout, and a
//     struct named after an export supplies its uniform-buffer layout.
//
// Callers depend on the Parser interface so the scan can be replaced by a
// real grammar without touching the serializer.
package parser

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/pkg/shader"
)

// Reserved struct names.
const (
	ResourcesStruct       = "ShaderResources"
	ResourcesStructLegacy = "ShaderData"
	VertexInputStruct     = "VSInput"
	VertexOutputStruct    = "VSOutput"
	PixelOutputStruct     = "PSOutput"
)

// Result is the structure recovered from one shader.
type Result struct {
	Stages    shader.Stages
	Exports   shader.Exports
	Source    string     // merged source text
	SourceMap *SourceMap // merged line -> original file/line
}

// Parser recovers shader structure from source.
type Parser interface {
	// Parse reads path, resolves includes and scans the merged text.
	Parse(path string) (*Result, error)

	// ParseSource scans text whose includes are resolved relative to path.
	ParseSource(path, text string) (*Result, error)
}

// Options configures a Parser.
type Options struct {
	IncludeDirs     []string
	MaxIncludeDepth int

	// StrictExports rejects exports that have no layout struct.
	// By default such exports stay non-uniform (textures, bindless indices).
	StrictExports bool

	Reader FileReader
	Logger *zap.Logger
}

type scanParser struct {
	opts     Options
	includes *IncludeResolver
	log      *zap.Logger
}

var _ Parser = (*scanParser)(nil)

// New creates a Parser.
func New(opts Options) Parser {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &scanParser{
		opts: opts,
		includes: &IncludeResolver{
			IncludeDirs: opts.IncludeDirs,
			MaxDepth:    opts.MaxIncludeDepth,
			Reader:      opts.Reader,
			Logger:      log,
		},
		log: log,
	}
}

// Parse is shorthand for New(Options{}).Parse(path).
func Parse(path string) (*Result, error) {
	return New(Options{}).Parse(path)
}

func (p *scanParser) Parse(path string) (*Result, error) {
	merged, smap, err := p.includes.Resolve(path)
	if err != nil {
		return nil, err
	}
	return p.scan(merged, smap)
}

func (p *scanParser) ParseSource(path, text string) (*Result, error) {
	merged, smap, err := p.includes.ResolveText(path, text)
	if err != nil {
		return nil, err
	}
	return p.scan(merged, smap)
}

// state accumulates one scan.
type state struct {
	sc      *scanner
	smap    *SourceMap
	stages  shader.Stages
	exports shader.Exports
}

func (p *scanParser) scan(merged string, smap *SourceMap) (*Result, error) {
	st := &state{
		sc:      newScanner(merged),
		smap:    smap,
		stages:  make(shader.Stages),
		exports: make(shader.Exports),
	}

	if err := st.discoverStages(); err != nil {
		return nil, err
	}

	// Phase one: every struct body by name.
	structs := st.sc.structs()
	byName := make(map[string]*rawStruct, len(structs))
	var decls []*rawStruct
	for i := range structs {
		s := &structs[i]
		if prev, dup := byName[s.name]; dup {
			return nil, st.errorAt(s.offset, fmt.Errorf("%w: %s (first at line %d)",
				ErrDuplicateStruct, s.name, st.sc.line(prev.offset)))
		}
		byName[s.name] = s

		switch s.name {
		case ResourcesStruct, ResourcesStructLegacy:
			decls = append(decls, s)
		case VertexInputStruct:
			if err := st.vertexInputs(s); err != nil {
				return nil, err
			}
		case VertexOutputStruct, PixelOutputStruct:
			// Inter-stage structs carry no host-visible layout; their bodies
			// may use interpolation modifiers and arrays, so they are not read.
		default:
			if _, err := st.layout(s); err != nil {
				return nil, err
			}
		}
	}

	if len(decls) > 1 {
		return nil, st.errorAt(decls[1].offset, fmt.Errorf("%w: %s and %s both declare resources",
			ErrDuplicateStruct, decls[0].name, decls[1].name))
	}
	for _, d := range decls {
		if err := st.declareExports(d); err != nil {
			return nil, err
		}
	}

	// Phase two: attach uniform layouts to declared exports.
	for _, name := range st.exports.Names() {
		exp := st.exports[name]
		s, ok := byName[name]
		if !ok || s.name == ResourcesStruct || s.name == ResourcesStructLegacy {
			if p.opts.StrictExports {
				return nil, st.errorAt(decls[0].offset, fmt.Errorf("%w: %s", ErrMissingLayout, name))
			}
			p.log.Debug("export has no layout struct", zap.String("export", name))
			continue
		}
		elems, err := st.layout(s)
		if err != nil {
			return nil, err
		}
		size := 0
		for _, e := range elems {
			size += e.Type.Size()
		}
		exp.Type = shader.Uniform
		exp.Elements = elems
		exp.SizeInBytes = shader.IntPtr(size)
	}

	p.log.Debug("shader parsed",
		zap.Int("stages", len(st.stages)),
		zap.Int("exports", len(st.exports)),
		zap.Int("lines", smap.Len()))

	return &Result{
		Stages:    st.stages,
		Exports:   st.exports,
		Source:    merged,
		SourceMap: smap,
	}, nil
}

func (st *state) discoverStages() error {
	buffer := 0
	for _, fn := range st.sc.functions() {
		if !isEntryPointName(fn.name) {
			continue
		}
		kind, ok := shader.StageForEntryPoint(fn.name)
		if !ok {
			return st.errorAt(fn.offset, fmt.Errorf("%w: %s", ErrUnsupportedTarget, fn.name))
		}
		if prev, dup := st.stages[kind]; dup {
			return st.errorAt(fn.offset, fmt.Errorf("%w: %s already declared by %s",
				ErrDuplicateStage, kind, prev.EntryPoint))
		}
		stage := &shader.Stage{Kind: kind, EntryPoint: fn.name, Buffer: buffer}
		if kind == shader.VertexShader {
			stage.InputsSizePerVertex = shader.IntPtr(0)
		}
		st.stages[kind] = stage
		buffer++
	}
	return nil
}

func (st *state) vertexInputs(s *rawStruct) error {
	vs, ok := st.stages[shader.VertexShader]
	if !ok {
		return nil
	}
	fields, err := st.fields(s)
	if err != nil {
		return err
	}
	size := 0
	inputs := make([]shader.VertexInput, 0, len(fields))
	for _, f := range fields {
		t, err := st.fieldType(f)
		if err != nil {
			return err
		}
		if f.semantic == "" {
			return st.errorAt(f.offset, fmt.Errorf("%w: %s.%s", ErrMissingSemantic, s.name, f.name))
		}
		inputs = append(inputs, shader.VertexInput{Type: t, Semantic: f.semantic})
		size += t.Size()
	}
	vs.Inputs = inputs
	vs.InputsSizePerVertex = shader.IntPtr(size)
	return nil
}

func (st *state) declareExports(s *rawStruct) error {
	fields, err := st.fields(s)
	if err != nil {
		return err
	}
	for i, f := range fields {
		t, err := st.fieldType(f)
		if err != nil {
			return err
		}
		if t != shader.Uint {
			return st.errorAt(f.offset, fmt.Errorf("%w: %s.%s is %s",
				ErrNonUintResource, s.name, f.name, f.typeName))
		}
		name := shader.NormalizeName(f.name)
		if _, dup := st.exports[name]; dup {
			return st.errorAt(f.offset, fmt.Errorf("%w: %s", ErrDuplicateExport, name))
		}
		st.exports[name] = &shader.Export{
			Binding: shader.IntPtr(i),
			Type:    shader.NonUniform,
		}
	}
	return nil
}

// layout computes offset-annotated elements for a uniform-buffer struct.
func (st *state) layout(s *rawStruct) ([]shader.ExportElement, error) {
	fields, err := st.fields(s)
	if err != nil {
		return nil, err
	}
	elems := make([]shader.ExportElement, 0, len(fields))
	offset := 0
	for _, f := range fields {
		t, err := st.fieldType(f)
		if err != nil {
			return nil, err
		}
		elems = append(elems, shader.ExportElement{
			Name:   shader.NormalizeName(f.name),
			Type:   t,
			Offset: offset,
		})
		offset += t.Size()
	}
	return elems, nil
}

// fields parses the body of s, locating malformed declarations.
func (st *state) fields(s *rawStruct) ([]rawField, error) {
	fields, err := st.sc.fields(s)
	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			return nil, st.errorAt(fe.offset, fmt.Errorf("%w: %q", ErrMalformedField, fe.decl))
		}
		return nil, err
	}
	return fields, nil
}

func (st *state) fieldType(f rawField) (shader.DataType, error) {
	t, ok := shader.LookupDataType(f.typeName)
	if !ok {
		return 0, st.errorAt(f.offset, fmt.Errorf("%w: %s %s", ErrUnknownType, f.typeName, f.name))
	}
	return t, nil
}

// errorAt locates a merged-text offset in its original file.
func (st *state) errorAt(offset int, err error) error {
	loc, ok := st.smap.Lookup(st.sc.line(offset))
	if !ok {
		return &ParseError{Err: err}
	}
	return &ParseError{File: loc.File, Line: loc.Line, Err: err}
}
