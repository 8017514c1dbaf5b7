// Package segment cuts a decoded waveform into named sub-clips.
//
// The [Engine] takes a single-channel [audio.Waveform] and a list of
// [Descriptor] values produced by a [Mapper], validates all of them, then
// slices the waveform in memory and writes one wav file per descriptor plus
// an optional annotation sidecar. The source is decoded exactly once per
// input, however many segments it yields.
package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/audioflow/pkg/audio"
	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// Engine writes segments into a fixed output directory.
type Engine struct {
	// OutDir receives <name>.wav and <name>.txt files.
	OutDir string
}

// Segment writes every descriptor in descs as a clip of w and returns the
// resulting artifacts in descriptor order. All descriptors are validated
// before anything is written. Existing clips are always rewritten, and a
// leftover <name>.txt is removed when the annotation is empty. If any write
// fails, the files written by this call are removed and no artifacts are
// returned.
func (e *Engine) Segment(w *audio.Waveform, descs []Descriptor) ([]pipeline.Artifact, error) {
	n := w.Len()
	seen := make(map[string]int, len(descs))
	for i, d := range descs {
		if err := d.Validate(n); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if prev, ok := seen[d.Name]; ok {
			return nil, fmt.Errorf("%w: segment %d reuses name %q of segment %d", pipeline.ErrInvalidInput, i, d.Name, prev)
		}
		seen[d.Name] = i
	}

	var written []string
	rollback := func() {
		for _, p := range written {
			os.Remove(p)
		}
	}

	out := make([]pipeline.Artifact, 0, len(descs))
	for _, d := range descs {
		a := pipeline.Artifact{Path: filepath.Join(e.OutDir, d.Name+".wav")}
		if d.Annotation != "" {
			a.Sidecar = filepath.Join(e.OutDir, d.Name+".txt")
		}
		clip, err := w.Slice(d.Start, d.End)
		if err != nil {
			rollback()
			return nil, err
		}
		if err := audio.WriteWAV(a.Path, clip); err != nil {
			rollback()
			return nil, err
		}
		written = append(written, a.Path)

		if a.Sidecar != "" {
			if err := os.WriteFile(a.Sidecar, []byte(d.Annotation), 0o644); err != nil {
				rollback()
				return nil, fmt.Errorf("segment: write annotation: %w", err)
			}
			written = append(written, a.Sidecar)
		}
		out = append(out, a)
	}

	for _, d := range descs {
		if d.Annotation != "" {
			continue
		}
		stale := filepath.Join(e.OutDir, d.Name+".txt")
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("segment: remove stale annotation: %w", err)
		}
	}
	return out, nil
}
