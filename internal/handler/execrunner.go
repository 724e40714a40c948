package handler

import (
	"context"
	"os/exec"
)

// ExecRunner is the CommandRunner backed by a real os/exec child
// process, used by grid handlers outside of tests.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	return string(out), err
}
