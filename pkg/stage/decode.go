package stage

import (
	"context"
	"fmt"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// Decode converts mp3 files to wav with `lame --decode`.
type Decode struct {
	pipeline.Base
	lame string
	exe  string
}

var _ pipeline.Node = (*Decode)(nil)

// NewDecode returns a Decode stage. lame is the executable name or path;
// empty selects "lame" from $PATH.
func NewDecode(name, lame string) *Decode {
	if lame == "" {
		lame = "lame"
	}
	return &Decode{Base: pipeline.NewBase(name), lame: lame}
}

// Setup implements [pipeline.Node].
func (s *Decode) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	exe, err := runner.LocateExecutable(s.lame)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.exe = exe
	return nil
}

// Run implements [pipeline.Node].
func (s *Decode) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "mp3",
		Produce: "wav",
		Work: func(ctx context.Context, in, out string) error {
			_, err := execute(ctx, &s.Base, runner.Command{
				Path: s.exe,
				Args: []string{"--decode", in, out},
			}, nil)
			return err
		},
	})
}
