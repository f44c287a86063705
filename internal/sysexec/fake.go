package sysexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Call is one invocation recorded by Fake.
type Call struct {
	Name string
	Args []string
}

// String renders the call the way it would be typed in a shell.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Fake is a scripted Runner for tests.
//
// Paths lists the executables LookPath should find. Handler, when set,
// decides the result of every Run and Output call; otherwise calls succeed
// with empty output.
type Fake struct {
	Paths   map[string]string
	Handler func(c Call) ([]byte, error)

	mu    sync.Mutex
	calls []Call
}

// NewFake returns a Fake where each named executable resolves to /usr/bin/<name>.
func NewFake(executables ...string) *Fake {
	f := &Fake{Paths: make(map[string]string)}
	for _, e := range executables {
		f.Paths[e] = "/usr/bin/" + e
	}
	return f
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.Output(ctx, name, args...)
	return err
}

func (f *Fake) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := Call{Name: name, Args: append([]string(nil), args...)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	out, err := h(c)
	if err != nil {
		return out, &CommandError{Command: append([]string{name}, args...), Err: err}
	}
	return out, nil
}

func (f *Fake) LookPath(name string) (string, error) {
	if p, ok := f.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// ErrExit stands in for a non-zero exit status in Fake handlers.
var ErrExit = errors.New("exit status 1")
