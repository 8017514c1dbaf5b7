package pipeline

import (
	"errors"
	"fmt"
)

// Failure classes. Every [Failure] wraps exactly one of them.
var (
	// ErrInvalidInput marks an input that does not satisfy a stage's input
	// contract (wrong extension, malformed segment record, out-of-range
	// segment).
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolFailed marks an external tool that could not be started or
	// exited with a nonzero status.
	ErrToolFailed = errors.New("external tool failed")

	// ErrParse marks tool output that lacks the expected result pattern.
	ErrParse = errors.New("unparseable tool output")
)

// Failure describes why a stage stopped processing one input. It is
// terminal for that (input, stage) pair only.
type Failure struct {
	Stage string
	Input string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("stage %q: %s: %v", f.Stage, f.Input, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Kind returns a short label for the failure class, suitable for metric
// attributes and log fields.
func (f *Failure) Kind() string {
	switch {
	case errors.Is(f.Err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(f.Err, ErrToolFailed):
		return "tool_failed"
	case errors.Is(f.Err, ErrParse):
		return "parse"
	default:
		return "io"
	}
}

// ToolError builds an [ErrToolFailed] error carrying the command line and
// exit status, plus optional detail lines from the tool's output.
func ToolError(cmdline string, code int, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w: exit code %d: cmd: %s: %s", ErrToolFailed, code, cmdline, detail)
	}
	return fmt.Errorf("%w: exit code %d: cmd: %s", ErrToolFailed, code, cmdline)
}
