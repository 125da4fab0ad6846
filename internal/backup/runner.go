// Package backup executes dump pipelines for discovered targets: run the
// engine-specific dump tool, compress the artifact, prune expired files.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command is one external process invocation. Env entries are appended to
// the inherited environment. Stdout, when set, is a file path the process
// output is redirected to.
type Command struct {
	Argv   []string
	Env    []string
	Stdout string
}

// Runner executes external commands. The pipeline depends on this interface
// so tests can substitute a recorder without spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands through os/exec, folding captured stderr into
// the returned error.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Env = append(os.Environ(), cmd.Env...)

	var stderr bytes.Buffer
	c.Stderr = &stderr

	var runErr error
	if cmd.Stdout != "" {
		f, err := os.Create(cmd.Stdout)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", cmd.Stdout, err)
		}
		c.Stdout = f
		runErr = c.Run()
		if closeErr := f.Close(); runErr == nil {
			runErr = closeErr
		}
	} else {
		runErr = c.Run()
	}

	if runErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Argv[0], runErr, msg)
		}
		return fmt.Errorf("%s: %w", cmd.Argv[0], runErr)
	}
	return nil
}
