package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// Shell runs an arbitrary command line such as
// "ffmpeg -y -i {in_file} -ac 1 {out_file}". The template is split into
// words with shell quoting rules; it is not run through a shell.
type Shell struct {
	pipeline.Base
	tmpl   runner.Template
	accept string
	ext    string
	exe    string
}

var _ pipeline.Node = (*Shell)(nil)

// NewShell returns a Shell stage producing files with extension ext. accept,
// when non-empty, restricts inputs to that extension.
func NewShell(name, command, ext, accept string) (*Shell, error) {
	tmpl, err := runner.ParseTemplate(command)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", name, err)
	}
	if !tmpl.Uses("in_file") || !tmpl.Uses("out_file") {
		return nil, fmt.Errorf("stage %q: command must use both {in_file} and {out_file}", name)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return nil, fmt.Errorf("stage %q: output extension is required", name)
	}
	return &Shell{Base: pipeline.NewBase(name), tmpl: tmpl, accept: accept, ext: ext}, nil
}

// Setup implements [pipeline.Node].
func (s *Shell) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	exe, err := runner.LocateExecutable(s.tmpl.Program())
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.exe = exe
	return nil
}

// Run implements [pipeline.Node].
func (s *Shell) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  s.accept,
		Produce: s.ext,
		Work: func(ctx context.Context, in, out string) error {
			cmd := s.tmpl.Expand(s.exe, map[string]string{"in_file": in, "out_file": out})
			_, err := execute(ctx, &s.Base, cmd, nil)
			return err
		},
	})
}
