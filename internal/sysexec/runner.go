// Package sysexec runs external programs (package managers, python, ldconfig)
// behind an interface so callers can be tested without touching the host.
package sysexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/tsukumogami/nativedep/internal/log"
)

// Runner executes commands. Run forwards the child's stdout and stderr;
// Output captures stdout and forwards stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPath(name string) (string, error)
}

// CommandError reports a command that could not start or exited non-zero.
type CommandError struct {
	Command []string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", strings.Join(e.Command, " "), e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exec is the Runner backed by os/exec.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewExec returns an Exec forwarding to the process's own stdout and stderr.
func NewExec(logger log.Logger) *Exec {
	if logger == nil {
		logger = log.Default()
	}
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	e.Logger.Debug("running command", "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return &CommandError{Command: append([]string{name}, args...), Err: err}
	}
	return nil
}

func (e *Exec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = e.Stderr
	e.Logger.Debug("running command", "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &CommandError{Command: append([]string{name}, args...), Err: err}
	}
	return stdout.Bytes(), nil
}

func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
