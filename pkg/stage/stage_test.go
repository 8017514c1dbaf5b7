package stage_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/pipeline/mock"
	"github.com/MrWong99/audioflow/pkg/runner"
	runnermock "github.com/MrWong99/audioflow/pkg/runner/mock"
)

// fakeTool creates a placeholder file standing in for an external executable
// and returns its absolute path. Commands are never really executed: the
// mock runner answers instead.
func fakeTool(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeInput creates a file with some content and returns its path.
func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("input"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// lastArgWriter simulates a tool that creates the file named by its last
// argument.
func lastArgWriter() *runnermock.Runner {
	return &runnermock.Runner{RunFunc: func(_ context.Context, cmd runner.Command) (runner.Result, error) {
		return runner.Result{}, os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("out"), 0o644)
	}}
}

type harness struct {
	sink *mock.Sink
	obs  *mock.Observer
	out  string
}

// setup binds n to a fresh output directory and the given runner and
// connects it to a recording sink.
func setup(t *testing.T, n pipeline.Node, r runner.Runner) harness {
	t.Helper()
	h := harness{sink: &mock.Sink{}, obs: &mock.Observer{}, out: filepath.Join(t.TempDir(), n.Name())}
	err := n.Setup(pipeline.Env{
		OutDir:   h.out,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Runner:   r,
		Observer: h.obs,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	n.Connect(h.sink)
	return h
}

// failure returns the single failure reported to obs.
func (h harness) failure(t *testing.T) *pipeline.Failure {
	t.Helper()
	var fs []*pipeline.Failure
	for _, ev := range h.obs.Events() {
		if ev.Outcome == pipeline.OutcomeFailed {
			fs = append(fs, ev.Failure)
		}
	}
	if len(fs) != 1 {
		t.Fatalf("got %d failures, want 1", len(fs))
	}
	return fs[0]
}
