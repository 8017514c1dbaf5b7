package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/audioflow/pkg/audio"
	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
	"github.com/MrWong99/audioflow/pkg/segment"
)

// Split cuts each wav input into the clips listed by a [segment.Mapper] and
// emits one artifact per clip, carrying the clip's annotation file as its
// sidecar when the clip has one.
type Split struct {
	pipeline.Base
	mapper segment.Mapper
	mode   audio.ChannelMode
}

var _ pipeline.Node = (*Split)(nil)

// NewSplit returns a Split stage. Multi-channel inputs are reduced to one
// channel according to mode.
func NewSplit(name string, mapper segment.Mapper, mode audio.ChannelMode) (*Split, error) {
	if mapper == nil {
		return nil, fmt.Errorf("stage %q: segment mapper is required", name)
	}
	return &Split{Base: pipeline.NewBase(name), mapper: mapper, mode: mode}, nil
}

// Setup implements [pipeline.Node]. A [segment.Command] mapper without a
// runner of its own is bound to the node's runner, and its program must be
// locatable.
func (s *Split) Setup(env pipeline.Env) error {
	if err := s.Base.Setup(env); err != nil {
		return err
	}
	c, ok := s.mapper.(*segment.Command)
	if !ok {
		return nil
	}
	exe, err := runner.LocateExecutable(c.Template.Program())
	if err != nil {
		return fmt.Errorf("stage %q: segment command: %w", s.Name(), err)
	}
	bound := *c
	bound.Program = exe
	if bound.Runner == nil {
		bound.Runner = s.Runner()
	}
	s.mapper = &bound
	return nil
}

// Run implements [pipeline.Node].
func (s *Split) Run(ctx context.Context, in pipeline.Artifact) {
	clips, ok := s.split(ctx, in)
	if !ok {
		return
	}
	for _, c := range clips {
		s.Emit(ctx, c)
	}
}

func (s *Split) split(ctx context.Context, in pipeline.Artifact) ([]pipeline.Artifact, bool) {
	ctx, span := s.Begin(ctx, in)
	defer span.End()

	if !in.HasExt("wav") {
		s.Fail(ctx, in.Path, fmt.Errorf("%w: not a wav file", pipeline.ErrInvalidInput))
		return nil, false
	}

	start := time.Now()
	w, err := audio.ReadWAV(in.Path, s.mode)
	if err != nil {
		if errors.Is(err, audio.ErrMalformed) || errors.Is(err, audio.ErrUnsupported) {
			err = fmt.Errorf("%w: %w", pipeline.ErrInvalidInput, err)
		}
		s.Fail(ctx, in.Path, err)
		return nil, false
	}

	var descs []segment.Descriptor
	if wm, ok := s.mapper.(segment.WaveformMapper); ok {
		descs, err = wm.MapWaveform(ctx, in.Path, w)
	} else {
		descs, err = s.mapper.Map(ctx, in.Path, w.SampleRate)
	}
	if err != nil {
		s.Fail(ctx, in.Path, fmt.Errorf("map segments: %w", err))
		return nil, false
	}

	eng := segment.Engine{OutDir: s.OutDir()}
	clips, err := eng.Segment(w, descs)
	if err != nil {
		s.Fail(ctx, in.Path, err)
		return nil, false
	}

	paths := make([]string, len(clips))
	for i, c := range clips {
		paths[i] = c.Path
	}
	s.Done(ctx, in.Path, time.Since(start), paths...)
	return clips, true
}
