package pipeline

import (
	"errors"
	"fmt"

	"github.com/Faultbox/shaderc/pkg/shader/compiler"
	"github.com/Faultbox/shaderc/pkg/shader/parser"
)

// Kind classifies a compile failure.
type Kind uint8

// Failure kinds.
const (
	KindIO      Kind = iota // source, include or output file problem
	KindParse               // structural error in the shader source
	KindBackend             // no compiler adapter for the backend or stage
	KindTool                // native compiler failed
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	case KindBackend:
		return "backend"
	case KindTool:
		return "tool"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrInvalidName is returned for shader names that cannot become a file name.
var ErrInvalidName = errors.New("invalid shader name")

// CompileError is the single failure type returned by the pipeline.
type CompileError struct {
	Shader string
	Kind   Kind
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling shader %q: %s error: %v", e.Shader, e.Kind, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func newCompileError(name string, err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		return err
	}
	return &CompileError{Shader: name, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, parser.ErrInclude):
		return KindIO
	case errors.Is(err, parser.ErrStructural):
		return KindParse
	case errors.Is(err, compiler.ErrBackendUnsupported), errors.Is(err, compiler.ErrUnsupportedTarget):
		return KindBackend
	case errors.Is(err, compiler.ErrToolFailed):
		return KindTool
	default:
		return KindIO
	}
}
