package compiler

import (
	"context"
	"os/exec"
	"time"
)

// Runner executes an external process and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args []string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args []string) ([]byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	return f(ctx, name, args)
}

// ExecRunner runs processes with os/exec. The process is killed when ctx ends.
type ExecRunner struct {
	Dir string
	Env []string // appended to the current environment
}

// Run starts name with args and waits for it.
func (r ExecRunner) Run(ctx context.Context, name string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	// Do not wait forever on pipes held open by grandchildren after a kill.
	cmd.WaitDelay = 2 * time.Second
	return cmd.CombinedOutput()
}
