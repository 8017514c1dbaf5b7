package segment

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/audioflow/pkg/pipeline"
)

// Descriptor names one sub-clip of a waveform by sample index.
type Descriptor struct {
	// Start is the first sample of the clip.
	Start int

	// End is one past the last sample of the clip.
	End int

	// Name is the base name of the written clip, without extension.
	Name string

	// Annotation is written verbatim to <Name>.txt when non-empty.
	Annotation string
}

// Validate checks d against a waveform of n samples.
func (d Descriptor) Validate(n int) error {
	if d.Start < 0 || d.Start >= d.End || d.End > n {
		return fmt.Errorf("%w: segment %q [%d:%d] out of range for %d samples", pipeline.ErrInvalidInput, d.Name, d.Start, d.End, n)
	}
	if d.Name == "" || d.Name == "." || d.Name == ".." || filepath.Base(d.Name) != d.Name {
		return fmt.Errorf("%w: invalid segment name %q", pipeline.ErrInvalidInput, d.Name)
	}
	return nil
}

// ParseRecord builds a Descriptor from a textual record of exactly three
// fields (start, end, name) or four fields (start, end, name, annotation).
// Start and end are sample indices.
func ParseRecord(fields []string) (Descriptor, error) {
	if len(fields) != 3 && len(fields) != 4 {
		return Descriptor{}, fmt.Errorf("%w: segment record must have 3 or 4 fields, got %d", pipeline.ErrInvalidInput, len(fields))
	}
	start, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: segment start %q: %v", pipeline.ErrInvalidInput, fields[0], err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: segment end %q: %v", pipeline.ErrInvalidInput, fields[1], err)
	}
	d := Descriptor{Start: start, End: end, Name: strings.TrimSpace(fields[2])}
	if len(fields) == 4 {
		d.Annotation = fields[3]
	}
	return d, nil
}

// ParseRecords parses tab-separated records, one per line. Blank lines and
// lines starting with '#' are ignored. The first malformed record fails the
// whole input.
func ParseRecords(text string) ([]Descriptor, error) {
	var out []Descriptor
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := ParseRecord(strings.Split(line, "\t"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, d)
	}
	return out, nil
}
