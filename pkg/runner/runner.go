// Package runner executes external tools synchronously and captures their
// output streams.
//
// The runner applies no retries and no timeout: Run blocks until the process
// exits. The context only aborts a run when it is cancelled (e.g. on SIGINT).
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/kballard/go-shellquote"
)

// Command is one external process invocation.
type Command struct {
	// Path is the executable, either a path or a name looked up in $PATH.
	Path string

	// Args are the arguments, excluding the executable itself.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdout, when non-nil, receives the process's standard output instead
	// of it being captured in [Result.Stdout].
	Stdout io.Writer
}

// String returns the command line quoted with shell word rules, suitable
// for logs.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Result is the outcome of a finished process.
type Result struct {
	// ExitCode is 0 on success. It is -1 when the process could not be
	// started or was terminated by a signal.
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the process exited with status 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner executes a [Command] and waits for it to exit.
type Runner interface {
	// Run executes cmd. A nonzero exit is reported through Result.ExitCode
	// with a nil error; the error is reserved for processes that could not
	// be started or waited for.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exec is the [Runner] backed by os/exec.
type Exec struct{}

var _ Runner = Exec{}

// Run implements [Runner].
func (Exec) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	} else {
		c.Stdout = &stdout
	}
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		// ExitCode is -1 for a process killed by a signal.
		res.ExitCode = exitErr.ExitCode()
		err = nil
	default:
		res.ExitCode = -1
		err = fmt.Errorf("runner: %s: %w", cmd.Path, err)
	}
	return res, err
}
