package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/shaderc/pkg/shader"
)

// dxc drives the DirectX Shader Compiler.
type dxc struct {
	opts Options
	log  *zap.Logger
}

var _ Compiler = (*dxc)(nil)

func newDXC(opts Options) *dxc {
	return &dxc{opts: opts, log: opts.Logger.Named("dxc")}
}

func (c *dxc) Backend() Backend {
	return DirectX12
}

func (c *dxc) Compile(ctx context.Context, kind shader.StageKind, entryPoint, sourcePath, outputPath string) (string, error) {
	profile, err := Profile(kind, c.opts.ShaderModel)
	if err != nil {
		return "", err
	}

	args := c.args(profile, entryPoint, sourcePath, outputPath)

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	out, runErr := c.opts.Runner.Run(ctx, c.opts.Tool, args)
	elapsed := time.Since(start)

	if runErr != nil {
		os.Remove(outputPath)

		te := &ToolError{
			Tool:    c.opts.Tool,
			Profile: profile,
			Entry:   entryPoint,
			Output:  string(out),
			Err:     runErr,
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		switch ctxErr := ctx.Err(); {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			te.ExitCode = 0
			te.Err = fmt.Errorf("timed out after %s: %w", c.opts.Timeout, ctxErr)
		case ctxErr != nil:
			te.ExitCode = 0
			te.Err = ctxErr
		}

		c.log.Warn("compile failed",
			zap.String("stage", kind.String()),
			zap.String("profile", profile),
			zap.Int("exitCode", te.ExitCode),
			zap.Duration("duration", elapsed),
			zap.Error(te.Err))
		return "", te
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", &ToolError{
			Tool:    c.opts.Tool,
			Profile: profile,
			Entry:   entryPoint,
			Output:  string(out),
			Err:     fmt.Errorf("no bytecode written: %w", err),
		}
	}

	c.log.Debug("stage compiled",
		zap.String("stage", kind.String()),
		zap.String("profile", profile),
		zap.String("entry", entryPoint),
		zap.Duration("duration", elapsed))

	return outputPath, nil
}

func (c *dxc) args(profile, entryPoint, sourcePath, outputPath string) []string {
	args := []string{sourcePath, "-T", profile, "-E", entryPoint, "-Fo", outputPath}
	for _, dir := range c.opts.IncludeDirs {
		args = append(args, "-I", dir)
	}
	return append(args, c.opts.ExtraArgs...)
}
