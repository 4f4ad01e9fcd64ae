package parser

import (
	"errors"
	"fmt"
)

// ErrStructural is the class of every error caused by the shape of the
// shader source (as opposed to missing files).
var ErrStructural = errors.New("structural parse error")

// Structural errors.
var (
	ErrUnknownType       = fmt.Errorf("%w: unknown field type", ErrStructural)
	ErrNonUintResource   = fmt.Errorf("%w: resource declaration fields must be uint", ErrStructural)
	ErrUnsupportedTarget = fmt.Errorf("%w: unsupported entry point", ErrStructural)
	ErrDuplicateStage    = fmt.Errorf("%w: stage declared twice", ErrStructural)
	ErrDuplicateStruct   = fmt.Errorf("%w: struct declared twice", ErrStructural)
	ErrDuplicateExport   = fmt.Errorf("%w: export declared twice", ErrStructural)
	ErrMalformedField    = fmt.Errorf("%w: malformed struct field", ErrStructural)
	ErrMissingSemantic   = fmt.Errorf("%w: vertex input without semantic", ErrStructural)
	ErrMissingLayout     = fmt.Errorf("%w: export declared but layout struct missing", ErrStructural)
)

// ErrInclude is the class of include-resolution failures.
var ErrInclude = errors.New("include error")

// Include errors.
var (
	ErrIncludeNotFound = fmt.Errorf("%w: file not found", ErrInclude)
	ErrIncludeCycle    = fmt.Errorf("%w: circular include", ErrInclude)
	ErrIncludeDepth    = fmt.Errorf("%w: include depth exceeded", ErrInclude)
)

// ParseError carries the source location of a parse failure.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
