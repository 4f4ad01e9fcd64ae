package pipeline

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/Faultbox/shaderc/pkg/shader"
	"github.com/Faultbox/shaderc/pkg/shader/compiler"
	"github.com/Faultbox/shaderc/pkg/shaderfile"
)

// TestCompile_ExecRunner drives the pipeline through a real child process.
func TestCompile_ExecRunner(t *testing.T) {
	src := writeFile(t, t.TempDir(), "basic.hlsl", basicShader)
	exe := compiler.ExecRunner{Env: []string{"SHADERC_FAKE_DXC=1"}}
	runner := compiler.RunnerFunc(func(ctx context.Context, name string, args []string) ([]byte, error) {
		return exe.Run(ctx, os.Args[0], append([]string{"-test.run=TestFakeDXC", "--", name}, args...))
	})

	tmp := t.TempDir()
	s := NewSerializer(Options{
		Compiler: compiler.Options{Runner: runner},
		TempDir:  tmp,
	})

	path, err := s.Compile(context.Background(), "Basic", src, compiler.DirectX12, t.TempDir())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	f, err := shaderfile.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	code, ok := f.StageBytecode(shader.PixelShader)
	if !ok || string(code) != "DXIL ps_6_6 ps_main" {
		t.Errorf("unexpected pixel bytecode %q", code)
	}
	assertEmptyDir(t, tmp)
}

// TestFakeDXC is not a real test; it stands in for dxc.
func TestFakeDXC(t *testing.T) {
	if os.Getenv("SHADERC_FAKE_DXC") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[2:] // "--" and tool name
	}

	data := fmt.Sprintf("DXIL %s %s", argValue(args, "-T"), argValue(args, "-E"))
	if err := os.WriteFile(argValue(args, "-Fo"), []byte(data), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
