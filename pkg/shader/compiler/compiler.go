// Package compiler wraps native shader compilers behind a per-backend adapter.
//
// Each Compile call maps a stage kind to a target profile and runs the
// toolchain once:
//
//	<tool> <source> -T <profile> -E <entry> -Fo <output>
//
// Only the DirectX 12 backend (DXC producing DXIL) is implemented. Asking
// for any other backend fails in New, before a process can be spawned.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/pkg/shader"
)

// Backend selects the target bytecode dialect.
type Backend uint8

// Backends.
const (
	DirectX12 Backend = iota
	Vulkan
)

// String returns the short backend name used on the command line.
func (b Backend) String() string {
	switch b {
	case DirectX12:
		return "DX12"
	case Vulkan:
		return "VK"
	default:
		return fmt.Sprintf("Backend(%d)", uint8(b))
	}
}

// ParseBackend parses "DX12" or "VK" (case-insensitive; "vulkan" and
// "d3d12" are accepted too).
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dx12", "d3d12", "directx12":
		return DirectX12, nil
	case "vk", "vulkan":
		return Vulkan, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBackendUnsupported, s)
	}
}

// UnmarshalText lets backends be read from config files.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Compiler errors.
var (
	ErrBackendUnsupported = errors.New("backend not supported")
	ErrUnsupportedTarget  = errors.New("unsupported shader target")
	ErrToolFailed         = errors.New("shader compiler failed")
)

// ToolError reports a failed compiler process with its diagnostics.
type ToolError struct {
	Tool     string
	Profile  string
	Entry    string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -T %s -E %s", e.Tool, e.Profile, e.Entry)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, ": exit status %d", e.ExitCode)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	return b.String()
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolFailed}
	}
	return []error{ErrToolFailed, e.Err}
}

// Compiler turns one stage entry point into a bytecode file.
type Compiler interface {
	Backend() Backend

	// Compile compiles entryPoint of sourcePath for the given stage and
	// writes bytecode to outputPath, which it returns on success. On failure
	// outputPath does not exist.
	Compile(ctx context.Context, kind shader.StageKind, entryPoint, sourcePath, outputPath string) (string, error)
}

// Default option values.
const (
	DefaultTool        = "dxc"
	DefaultShaderModel = "6_6"
	DefaultTimeout     = 60 * time.Second
)

// Options configures a compiler adapter.
type Options struct {
	Tool        string        // executable, looked up in PATH
	ShaderModel string        // profile suffix, e.g. "6_6"
	Timeout     time.Duration // per invocation
	IncludeDirs []string      // passed as -I
	ExtraArgs   []string      // appended verbatim
	Runner      Runner
	Logger      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Tool == "" {
		o.Tool = DefaultTool
	}
	if o.ShaderModel == "" {
		o.ShaderModel = DefaultShaderModel
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Runner == nil {
		o.Runner = ExecRunner{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New returns the adapter for backend.
func New(backend Backend, opts Options) (Compiler, error) {
	switch backend {
	case DirectX12:
		return newDXC(opts.withDefaults()), nil
	case Vulkan:
		return nil, fmt.Errorf("%w: %s (SPIR-V adapter not implemented)", ErrBackendUnsupported, backend)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBackendUnsupported, backend)
	}
}

// Profile returns the target profile for a stage, e.g. "vs_6_6".
func Profile(kind shader.StageKind, model string) (string, error) {
	switch kind {
	case shader.VertexShader:
		return "vs_" + model, nil
	case shader.PixelShader:
		return "ps_" + model, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedTarget, kind)
	}
}
