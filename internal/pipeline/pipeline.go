// Package pipeline turns an annotated shader source into a SHADER.1 artifact.
//
// One request runs parse, per-stage compile and serialization in sequence.
// All temporary files live in a directory unique to the request and are
// removed before Encode returns, whatever the outcome.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/pkg/shader"
	"github.com/Faultbox/shaderc/pkg/shader/compiler"
	"github.com/Faultbox/shaderc/pkg/shader/parser"
	"github.com/Faultbox/shaderc/pkg/shaderfile"
)

// ArtifactExt is the extension of written artifacts.
const ArtifactExt = ".bin"

// Options configures a Serializer.
type Options struct {
	Parser   parser.Options
	Compiler compiler.Options

	// TempDir is the parent of per-request work directories.
	// Empty means os.TempDir().
	TempDir string

	Logger *zap.Logger
}

// Serializer compiles shaders into artifacts. It holds no per-request state,
// so one Serializer may serve concurrent requests.
type Serializer struct {
	opts   Options
	parser parser.Parser
	log    *zap.Logger
}

// NewSerializer creates a Serializer.
func NewSerializer(opts Options) *Serializer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Parser.Logger == nil {
		opts.Parser.Logger = log.Named("parser")
	}
	if opts.Compiler.Logger == nil {
		opts.Compiler.Logger = log.Named("compiler")
	}
	return &Serializer{
		opts:   opts,
		parser: parser.New(opts.Parser),
		log:    log,
	}
}

// Compile builds the artifact for one shader and writes it to
// <outputDir>/<lowercased name>.bin with default options.
func Compile(ctx context.Context, name, sourcePath string, backend compiler.Backend, outputDir string) error {
	_, err := NewSerializer(Options{}).Compile(ctx, name, sourcePath, backend, outputDir)
	return err
}

// ArtifactName returns the file name an artifact for name is written to.
func ArtifactName(name string) string {
	return strings.ToLower(name) + ArtifactExt
}

// Compile encodes the shader and writes the artifact into outputDir,
// returning its path. The artifact appears atomically or not at all.
func (s *Serializer) Compile(ctx context.Context, name, sourcePath string, backend compiler.Backend, outputDir string) (string, error) {
	data, err := s.Encode(ctx, name, sourcePath, backend)
	if err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, ArtifactName(name))
	if err := writeAtomic(path, data); err != nil {
		return "", newCompileError(name, err)
	}

	s.log.Info("artifact written",
		zap.String("shader", name),
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return path, nil
}

// Encode parses sourcePath, compiles every stage for backend and returns the
// serialized artifact. Every error is a *CompileError.
func (s *Serializer) Encode(ctx context.Context, name, sourcePath string, backend compiler.Backend) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, newCompileError(name, err)
	}

	start := time.Now()
	log := s.log.With(zap.String("shader", name), zap.Stringer("backend", backend))

	// Unsupported backends fail before any parsing or process spawn.
	comp, err := compiler.New(backend, s.opts.Compiler)
	if err != nil {
		return nil, newCompileError(name, err)
	}
	flags, err := flagsFor(backend)
	if err != nil {
		return nil, newCompileError(name, err)
	}

	res, err := s.parser.Parse(sourcePath)
	if err != nil {
		return nil, newCompileError(name, err)
	}
	log.Debug("shader parsed",
		zap.Int("stages", len(res.Stages)),
		zap.Int("exports", len(res.Exports)),
		zap.Int("files", len(res.SourceMap.Files())))

	bytecode, err := s.compileStages(ctx, comp, name, res)
	if err != nil {
		return nil, newCompileError(name, err)
	}

	md := &shader.Metadata{
		ShaderName: name,
		Stages:     res.Stages,
		Exports:    res.Exports,
	}
	data, err := shaderfile.Encode(flags, md, bytecode)
	if err != nil {
		return nil, newCompileError(name, err)
	}

	log.Debug("shader encoded",
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return data, nil
}

// compileStages compiles each stage in ascending buffer order inside a
// private work directory and returns bytecode indexed by encoding order.
func (s *Serializer) compileStages(ctx context.Context, comp compiler.Compiler, name string, res *parser.Result) ([][]byte, error) {
	dir, err := os.MkdirTemp(s.opts.TempDir, "shaderc-"+strings.ToLower(name)+"-")
	if err != nil {
		return nil, fmt.Errorf("creating work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, strings.ToLower(name)+".hlsl")
	if err := os.WriteFile(src, []byte(res.Source), 0644); err != nil {
		return nil, fmt.Errorf("writing merged source: %w", err)
	}

	ordered := res.Stages.Ordered()
	bytecode := make([][]byte, 0, len(ordered))
	for i, st := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		code, err := compileStage(ctx, comp, st, src, filepath.Join(dir, st.EntryPoint+ArtifactExt))
		if err != nil {
			return nil, remapDiagnostics(err, src, res.SourceMap)
		}

		// Ordered() sorts by buffer, so the encoding index equals the
		// original index for well-formed results.
		st.Buffer = i
		bytecode = append(bytecode, code)
	}
	return bytecode, nil
}

func compileStage(ctx context.Context, comp compiler.Compiler, st *shader.Stage, src, out string) ([]byte, error) {
	path, err := comp.Compile(ctx, st.Kind, st.EntryPoint, src, out)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s bytecode: %w", st.Kind, err)
	}
	return code, nil
}

func flagsFor(backend compiler.Backend) (shaderfile.Flags, error) {
	switch backend {
	case compiler.DirectX12:
		return shaderfile.FlagsDXIL, nil
	case compiler.Vulkan:
		return shaderfile.FlagsSPIRV, nil
	default:
		return 0, fmt.Errorf("%w: %s", compiler.ErrBackendUnsupported, backend)
	}
}

// CheckName reports whether name can be used as a file name component.
func CheckName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// writeAtomic writes data to a temp file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}

// remapDiagnostics rewrites "<merged>:<line>" positions in compiler output to
// the original file and line.
func remapDiagnostics(err error, merged string, smap *parser.SourceMap) error {
	te, ok := err.(*compiler.ToolError)
	if !ok || te.Output == "" || smap.Len() == 0 {
		return err
	}

	pattern := regexp.MustCompile(regexp.QuoteMeta(merged) + `:(\d+)`)
	remapped := *te
	remapped.Output = pattern.ReplaceAllStringFunc(te.Output, func(m string) string {
		line, convErr := strconv.Atoi(m[len(merged)+1:])
		if convErr != nil {
			return m
		}
		loc, found := smap.Lookup(line)
		if !found {
			return m
		}
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	})
	return &remapped
}
