// Package mock provides a test double for the runner package.
//
// Runner records every command it receives and answers with a scripted
// result. RunFunc may produce side effects such as creating the output file
// a real tool would have written:
//
//	r := &mock.Runner{RunFunc: func(_ context.Context, cmd runner.Command) (runner.Result, error) {
//	    return runner.Result{}, os.WriteFile(cmd.Args[len(cmd.Args)-1], nil, 0o644)
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/audioflow/pkg/runner"
)

// Runner is a mock implementation of runner.Runner.
type Runner struct {
	mu sync.Mutex

	// RunFunc, if set, computes the result of Run. Otherwise Run returns
	// Result and Err.
	RunFunc func(ctx context.Context, cmd runner.Command) (runner.Result, error)

	// Result is returned by Run when RunFunc is nil.
	Result runner.Result

	// Err is returned by Run when RunFunc is nil.
	Err error

	// Calls records every command passed to Run.
	Calls []runner.Command
}

var _ runner.Runner = (*Runner)(nil)

// Run records cmd and returns the scripted result.
func (r *Runner) Run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, cmd)
	fn, res, err := r.RunFunc, r.Result, r.Err
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, cmd)
	}
	return res, err
}

// CallCount returns the number of recorded calls. Thread-safe.
func (r *Runner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}
