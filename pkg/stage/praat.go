package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// DefaultPraatScript is the syllable-nuclei analysis script run by [Praat]
// when no script is configured.
const DefaultPraatScript = "scripts/syllable_nuclei_v2.praat"

// Praat runs a Praat script on each input and stores the script's standard
// output as a csv artifact.
type Praat struct {
	pipeline.Base
	praat  string
	script string
	exe    string
}

var _ pipeline.Node = (*Praat)(nil)

// NewPraat returns a Praat stage. Empty praat and script select "praat" from
// $PATH and [DefaultPraatScript].
func NewPraat(name, praat, script string) *Praat {
	if praat == "" {
		praat = "praat"
	}
	if script == "" {
		script = DefaultPraatScript
	}
	return &Praat{Base: pipeline.NewBase(name), praat: praat, script: script}
}

// Setup implements [pipeline.Node].
func (s *Praat) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	exe, err := runner.LocateExecutable(s.praat)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	script, err := filepath.Abs(s.script)
	if err != nil {
		return fmt.Errorf("stage %q: script: %w", s.Name(), err)
	}
	if _, err := runner.LocateFile(script); err != nil {
		return fmt.Errorf("stage %q: script: %w", s.Name(), err)
	}
	s.exe, s.script = exe, script
	return nil
}

// Run implements [pipeline.Node].
func (s *Praat) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "wav",
		Produce: "csv",
		Work: func(ctx context.Context, in, out string) error {
			abs, err := filepath.Abs(in)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			_, runErr := execute(ctx, &s.Base, runner.Command{
				Path:   s.exe,
				Args:   []string{"--run", s.script, abs},
				Stdout: f,
			}, nil)
			if err := f.Close(); err != nil && runErr == nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			return runErr
		},
	})
}
