package segment

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/audioflow/pkg/audio"
	"github.com/MrWong99/audioflow/pkg/pipeline"
	"github.com/MrWong99/audioflow/pkg/runner"
)

// Mapper lists the segments of an input file. It is called once per input,
// with the sample rate of the decoded waveform.
type Mapper interface {
	Map(ctx context.Context, path string, sampleRate int) ([]Descriptor, error)
}

// WaveformMapper is implemented by mappers that analyse the signal itself.
// Callers that already hold the decoded waveform use it to avoid decoding
// the file a second time.
type WaveformMapper interface {
	Mapper
	MapWaveform(ctx context.Context, path string, w *audio.Waveform) ([]Descriptor, error)
}

// MapFunc adapts a function to the [Mapper] interface.
type MapFunc func(ctx context.Context, path string, sampleRate int) ([]Descriptor, error)

// Map calls f.
func (f MapFunc) Map(ctx context.Context, path string, sampleRate int) ([]Descriptor, error) {
	return f(ctx, path, sampleRate)
}

var (
	_ WaveformMapper = Window{}
	_ WaveformMapper = Energy{}
	_ Mapper         = List{}
	_ Mapper         = (*Command)(nil)
)

// stem returns the base name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func clipName(path string, i int) string {
	return fmt.Sprintf("%s_%04d", stem(path), i)
}

func samples(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// ---- Window -----------------------------------------------------------------

// Window cuts the input into consecutive windows of Length, advancing by Hop
// (Length when zero). The last window is shortened to the end of the input.
// Clips are named <stem>_0000, <stem>_0001, ...
type Window struct {
	Length time.Duration
	Hop    time.Duration
}

// Map implements [Mapper] by reading only the file header.
func (m Window) Map(_ context.Context, path string, sampleRate int) ([]Descriptor, error) {
	h, err := audio.ReadHeader(path)
	if err != nil {
		return nil, err
	}
	return m.windows(path, h.Frames, sampleRate)
}

// MapWaveform implements [WaveformMapper].
func (m Window) MapWaveform(_ context.Context, path string, w *audio.Waveform) ([]Descriptor, error) {
	return m.windows(path, w.Len(), w.SampleRate)
}

func (m Window) windows(path string, n, sampleRate int) ([]Descriptor, error) {
	length := samples(m.Length, sampleRate)
	hop := samples(m.Hop, sampleRate)
	if hop == 0 {
		hop = length
	}
	if length <= 0 || hop <= 0 {
		return nil, fmt.Errorf("segment: window length %s and hop %s are too short at %d Hz", m.Length, m.Hop, sampleRate)
	}
	var out []Descriptor
	for start := 0; start < n; start += hop {
		end := min(start+length, n)
		out = append(out, Descriptor{Start: start, End: end, Name: clipName(path, len(out))})
		if end == n {
			break
		}
	}
	return out, nil
}

// ---- Energy -----------------------------------------------------------------

// Default parameters of the [Energy] mapper.
const (
	DefaultFrame       = 30 * time.Millisecond
	DefaultThresholdDB = -40.0
	DefaultMinSilence  = 300 * time.Millisecond
	DefaultMinSpeech   = 200 * time.Millisecond
	DefaultPadding     = 100 * time.Millisecond
)

// Energy finds regions of speech by frame RMS level: a frame is active when
// its level exceeds ThresholdDB (dBFS). Active regions separated by less
// than MinSilence are merged, regions shorter than MinSpeech are dropped and
// the rest are widened by Padding on both sides. Zero durations and a nil
// ThresholdDB take the Default* values.
type Energy struct {
	Frame       time.Duration
	ThresholdDB *float64
	MinSilence  time.Duration
	MinSpeech   time.Duration
	Padding     time.Duration
}

// Validate rejects thresholds above full scale, which no frame can exceed.
func (m Energy) Validate() error {
	if m.ThresholdDB != nil && (*m.ThresholdDB > 0 || math.IsNaN(*m.ThresholdDB)) {
		return fmt.Errorf("segment: energy threshold %g dBFS must be at most 0", *m.ThresholdDB)
	}
	return nil
}

func (m Energy) threshold() float64 {
	if m.ThresholdDB == nil {
		return DefaultThresholdDB
	}
	return *m.ThresholdDB
}

func (m Energy) withDefaults() Energy {
	if m.Frame <= 0 {
		m.Frame = DefaultFrame
	}
	if m.MinSilence <= 0 {
		m.MinSilence = DefaultMinSilence
	}
	if m.MinSpeech <= 0 {
		m.MinSpeech = DefaultMinSpeech
	}
	if m.Padding < 0 {
		m.Padding = 0
	}
	return m
}

// Map implements [Mapper] by decoding the first channel of path.
func (m Energy) Map(ctx context.Context, path string, _ int) ([]Descriptor, error) {
	w, err := audio.ReadWAV(path, audio.ChannelFirst)
	if err != nil {
		return nil, err
	}
	return m.MapWaveform(ctx, path, w)
}

// MapWaveform implements [WaveformMapper].
func (m Energy) MapWaveform(_ context.Context, path string, w *audio.Waveform) ([]Descriptor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m = m.withDefaults()
	threshold := m.threshold()
	sr := w.SampleRate
	frame := max(samples(m.Frame, sr), 1)
	n := w.Len()

	type region struct{ start, end int }
	var regions []region
	inSpeech := false
	for start := 0; start < n; start += frame {
		end := min(start+frame, n)
		active := levelDB(audio.RMS(w, start, end)) > threshold
		switch {
		case active && !inSpeech:
			regions = append(regions, region{start, end})
			inSpeech = true
		case active:
			regions[len(regions)-1].end = end
		default:
			inSpeech = false
		}
	}

	gap := samples(m.MinSilence, sr)
	var merged []region
	for _, r := range regions {
		if k := len(merged); k > 0 && r.start-merged[k-1].end < gap {
			merged[k-1].end = r.end
			continue
		}
		merged = append(merged, r)
	}

	minLen := samples(m.MinSpeech, sr)
	pad := samples(m.Padding, sr)
	var out []Descriptor
	prevEnd := 0
	for _, r := range merged {
		if r.end-r.start < minLen {
			continue
		}
		start := max(r.start-pad, prevEnd, 0)
		end := min(r.end+pad, n)
		if start >= end {
			continue
		}
		out = append(out, Descriptor{Start: start, End: end, Name: clipName(path, len(out))})
		prevEnd = end
	}
	return out, nil
}

func levelDB(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// ---- List -------------------------------------------------------------------

// DefaultListExt is the extension of segment list files read by [List].
const DefaultListExt = "segments"

// List reads segment records from a file named <stem>.<Ext> in Dir, or next
// to the input when Dir is empty. Records are tab-separated lines as
// accepted by [ParseRecords].
type List struct {
	Dir string
	Ext string
}

// Map implements [Mapper].
func (m List) Map(_ context.Context, path string, _ int) ([]Descriptor, error) {
	dir := m.Dir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	ext := strings.TrimPrefix(m.Ext, ".")
	if ext == "" {
		ext = DefaultListExt
	}
	listPath := filepath.Join(dir, stem(path)+"."+ext)
	data, err := os.ReadFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("segment: read list: %w", err)
	}
	descs, err := ParseRecords(string(data))
	if err != nil {
		return nil, fmt.Errorf("segment: %s: %w", listPath, err)
	}
	return descs, nil
}

// ---- Command ----------------------------------------------------------------

// Command runs an external program that prints segment records on stdout,
// in the format accepted by [ParseRecords]. The template may use the
// placeholders {in_file} and {sample_rate}.
type Command struct {
	Template runner.Template

	// Program replaces the template's first word when set, e.g. with the
	// path resolved by [runner.LocateExecutable].
	Program string

	// Runner executes the program; nil means [runner.Exec].
	Runner runner.Runner
}

// Map implements [Mapper].
func (m *Command) Map(ctx context.Context, path string, sampleRate int) ([]Descriptor, error) {
	r := m.Runner
	if r == nil {
		r = runner.Exec{}
	}
	cmd := m.Template.Expand(m.Program, map[string]string{
		"in_file":     path,
		"sample_rate": strconv.Itoa(sampleRate),
	})
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrToolFailed, err)
	}
	if !res.Success() {
		return nil, pipeline.ToolError(cmd.String(), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	descs, err := ParseRecords(res.Stdout)
	if err != nil {
		return nil, fmt.Errorf("segment: output of %s: %w", cmd, err)
	}
	return descs, nil
}
