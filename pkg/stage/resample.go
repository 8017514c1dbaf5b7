package stage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// Resample rewrites a wav file at a new sample rate with `sox`.
type Resample struct {
	pipeline.Base
	rate int
	sox  string
	exe  string
}

var _ pipeline.Node = (*Resample)(nil)

// NewResample returns a Resample stage converting to rate Hz. sox is the
// executable name or path; empty selects "sox" from $PATH.
func NewResample(name string, rate int, sox string) (*Resample, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("stage %q: sample rate must be positive, got %d", name, rate)
	}
	if sox == "" {
		sox = "sox"
	}
	return &Resample{Base: pipeline.NewBase(name), rate: rate, sox: sox}, nil
}

// Rate returns the target sample rate in Hz.
func (s *Resample) Rate() int { return s.rate }

// Setup implements [pipeline.Node].
func (s *Resample) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	exe, err := runner.LocateExecutable(s.sox)
	if err != nil {
		return fmt.Errorf("stage %q: %w", s.Name(), err)
	}
	s.exe = exe
	return nil
}

// Run implements [pipeline.Node].
func (s *Resample) Run(ctx context.Context, in pipeline.Artifact) {
	s.Process(ctx, in, pipeline.Step{
		Accept:  "wav",
		Produce: "wav",
		Work: func(ctx context.Context, in, out string) error {
			_, err := execute(ctx, &s.Base, runner.Command{
				Path: s.exe,
				Args: []string{in, "--rate", strconv.Itoa(s.rate), out},
			}, nil)
			return err
		},
	})
}
