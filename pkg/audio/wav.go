// Package audio decodes and encodes RIFF/WAVE files and provides the
// in-memory single-channel waveform the segmentation stage slices.
//
// Supported encodings are integer PCM with 8, 16, 24 or 32 bits per sample
// and IEEE float with 32 or 64 bits per sample, including files using the
// WAVE_FORMAT_EXTENSIBLE header. Multi-channel input is reduced to one
// channel at decode time, either by keeping the first channel or by
// averaging all channels (see [ChannelMode]).
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Encoding is the WAVE format tag of the sample data.
type Encoding uint16

const (
	// EncodingPCM is linear integer PCM.
	EncodingPCM Encoding = 1

	// EncodingFloat is IEEE 754 floating point.
	EncodingFloat Encoding = 3

	formatExtensible = 0xFFFE
)

func (e Encoding) String() string {
	switch e {
	case EncodingPCM:
		return "pcm"
	case EncodingFloat:
		return "float"
	default:
		return fmt.Sprintf("format(0x%04x)", uint16(e))
	}
}

// ErrUnsupported is returned for well-formed WAVE files whose encoding or
// sample width this package cannot decode.
var ErrUnsupported = errors.New("audio: unsupported wav encoding")

// ErrMalformed is returned for data that is not a valid RIFF/WAVE file.
var ErrMalformed = errors.New("audio: malformed wav")

// SampleFormat describes how one sample is stored.
type SampleFormat struct {
	Encoding      Encoding
	BitsPerSample int
}

// PCM16 is 16-bit signed little-endian integer PCM, the most common format.
var PCM16 = SampleFormat{Encoding: EncodingPCM, BitsPerSample: 16}

// BytesPerSample returns the storage width of one sample.
func (f SampleFormat) BytesPerSample() int { return f.BitsPerSample / 8 }

// Validate reports whether f can be decoded and encoded by this package.
func (f SampleFormat) Validate() error {
	switch f.Encoding {
	case EncodingPCM:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case EncodingFloat:
		switch f.BitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return fmt.Errorf("%w: %s with %d bits per sample", ErrUnsupported, f.Encoding, f.BitsPerSample)
}

// ChannelMode selects how multi-channel input is reduced to one channel.
type ChannelMode int

const (
	// ChannelFirst keeps the first channel and drops the others.
	ChannelFirst ChannelMode = iota

	// ChannelMix averages all channels.
	ChannelMix
)

// ParseChannelMode maps "first" and "mix" to a [ChannelMode]. The empty
// string selects ChannelFirst.
func ParseChannelMode(s string) (ChannelMode, error) {
	switch s {
	case "", "first":
		return ChannelFirst, nil
	case "mix":
		return ChannelMix, nil
	}
	return 0, fmt.Errorf("audio: unknown channel mode %q; valid values: first, mix", s)
}

// Header is the parsed format description of a WAVE file.
type Header struct {
	SampleRate int
	Channels   int
	Format     SampleFormat

	// Frames is the number of samples per channel in the data chunk.
	Frames int
}

// Duration returns the playback length described by h.
func (h Header) Duration() time.Duration {
	if h.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(h.Frames) * int64(time.Second) / int64(h.SampleRate))
}

// Waveform is a decoded single-channel signal. Data holds little-endian
// samples in Format, back to back.
type Waveform struct {
	SampleRate int
	Format     SampleFormat
	Data       []byte
}

// Len returns the number of samples.
func (w *Waveform) Len() int {
	bps := w.Format.BytesPerSample()
	if bps == 0 {
		return 0
	}
	return len(w.Data) / bps
}

// Duration returns the playback length of w.
func (w *Waveform) Duration() time.Duration {
	return Header{SampleRate: w.SampleRate, Frames: w.Len()}.Duration()
}

// Slice returns the samples [start, end) as a new Waveform sharing w's
// backing array. It requires 0 <= start < end <= w.Len().
func (w *Waveform) Slice(start, end int) (*Waveform, error) {
	if start < 0 || end > w.Len() || start >= end {
		return nil, fmt.Errorf("audio: slice [%d:%d] out of range for %d samples", start, end, w.Len())
	}
	bps := w.Format.BytesPerSample()
	return &Waveform{
		SampleRate: w.SampleRate,
		Format:     w.Format,
		Data:       w.Data[start*bps : end*bps : end*bps],
	}, nil
}

// Sample returns sample i scaled to [-1, 1].
func (w *Waveform) Sample(i int) float64 {
	bps := w.Format.BytesPerSample()
	return normalized(w.Data[i*bps:(i+1)*bps], w.Format)
}

// ReadWAV reads and decodes the WAVE file at path.
func ReadWAV(path string, mode ChannelMode) (*Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}
	w, err := ParseWAV(data, mode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// DecodeWAV reads a complete WAVE stream from r and decodes it.
func DecodeWAV(r io.Reader, mode ChannelMode) (*Waveform, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audio: read wav: %w", err)
	}
	return ParseWAV(data, mode)
}

// ReadHeader parses only the format description of the WAVE file at path.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, fmt.Errorf("audio: read %s: %w", path, err)
	}
	h, _, err := parseHeader(data)
	return h, err
}

// ParseWAV decodes an in-memory WAVE file.
func ParseWAV(data []byte, mode ChannelMode) (*Waveform, error) {
	h, pcm, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return &Waveform{
		SampleRate: h.SampleRate,
		Format:     h.Format,
		Data:       downmix(pcm, h, mode),
	}, nil
}

// parseHeader walks the RIFF chunks of data and returns the format together
// with the sample bytes of the data chunk, truncated to whole frames.
func parseHeader(data []byte) (Header, []byte, error) {
	if len(data) < 12 {
		return Header{}, nil, fmt.Errorf("%w: too short to be a RIFF file", ErrMalformed)
	}
	if string(data[0:4]) != "RIFF" {
		return Header{}, nil, fmt.Errorf("%w: missing RIFF header", ErrMalformed)
	}
	if string(data[8:12]) != "WAVE" {
		return Header{}, nil, fmt.Errorf("%w: missing WAVE identifier", ErrMalformed)
	}

	var h Header
	foundFmt := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+size > len(data) {
				return Header{}, nil, fmt.Errorf("%w: short fmt chunk", ErrMalformed)
			}
			f := data[body : body+size]
			tag := binary.LittleEndian.Uint16(f[0:2])
			h.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			h.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			h.Format.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			if tag == formatExtensible {
				if size < 40 {
					return Header{}, nil, fmt.Errorf("%w: short extensible fmt chunk", ErrMalformed)
				}
				// The first two bytes of the sub-format GUID carry the
				// actual format tag.
				tag = binary.LittleEndian.Uint16(f[24:26])
			}
			h.Format.Encoding = Encoding(tag)
			if err := h.Format.Validate(); err != nil {
				return Header{}, nil, err
			}
			if h.Channels < 1 || h.SampleRate < 1 {
				return Header{}, nil, fmt.Errorf("%w: %d channels at %d Hz", ErrMalformed, h.Channels, h.SampleRate)
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return Header{}, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformed)
			}
			// Streaming writers may leave the size unset; take what is there.
			end := body + size
			if size < 0 || end > len(data) || end < body {
				end = len(data)
			}
			frame := h.Channels * h.Format.BytesPerSample()
			h.Frames = (end - body) / frame
			return h, data[body : body+h.Frames*frame], nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return Header{}, nil, fmt.Errorf("%w: missing data chunk", ErrMalformed)
}

// downmix reduces interleaved multi-channel samples to one channel.
func downmix(pcm []byte, h Header, mode ChannelMode) []byte {
	bps := h.Format.BytesPerSample()
	if h.Channels == 1 {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out
	}

	frame := h.Channels * bps
	out := make([]byte, h.Frames*bps)
	for i := range h.Frames {
		src := pcm[i*frame : (i+1)*frame]
		dst := out[i*bps : (i+1)*bps]
		if mode == ChannelFirst {
			copy(dst, src[:bps])
			continue
		}
		if h.Format.Encoding == EncodingFloat {
			var sum float64
			for c := range h.Channels {
				sum += readFloat(src[c*bps:(c+1)*bps], h.Format.BitsPerSample)
			}
			putFloat(dst, h.Format.BitsPerSample, sum/float64(h.Channels))
			continue
		}
		var sum int64
		for c := range h.Channels {
			sum += readInt(src[c*bps:(c+1)*bps], h.Format.BitsPerSample)
		}
		putInt(dst, h.Format.BitsPerSample, sum/int64(h.Channels))
	}
	return out
}

// EncodeWAV writes w as a single-channel WAVE file.
func EncodeWAV(dst io.Writer, w *Waveform) error {
	if err := w.Format.Validate(); err != nil {
		return err
	}
	if _, err := dst.Write(header(w)); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := dst.Write(w.Data); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	if len(w.Data)%2 != 0 {
		if _, err := dst.Write([]byte{0}); err != nil {
			return fmt.Errorf("audio: write wav padding: %w", err)
		}
	}
	return nil
}

// WriteWAV writes w to path. The file is written under a temporary name in
// the same directory and renamed into place, so a reader never observes a
// partially written file.
func WriteWAV(path string, w *Waveform) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := EncodeWAV(tmp, w); err != nil {
		tmp.Close()
		return fmt.Errorf("audio: %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("audio: close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("audio: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("audio: rename into %s: %w", path, err)
	}
	return nil
}

// header builds the RIFF, fmt and data chunk headers for a mono file.
func header(w *Waveform) []byte {
	fmtSize := 16
	if w.Format.Encoding != EncodingPCM {
		// Non-PCM formats carry a cbSize field.
		fmtSize = 18
	}
	bps := w.Format.BytesPerSample()
	dataSize := len(w.Data)
	pad := dataSize % 2

	buf := make([]byte, 12+8+fmtSize+8)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)-8+dataSize+pad))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], uint32(fmtSize))
	binary.LittleEndian.PutUint16(buf[20:22], uint16(w.Format.Encoding))
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(w.SampleRate*bps))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(bps))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(w.Format.BitsPerSample))
	// buf[36:38] is cbSize = 0 when fmtSize is 18.

	d := 20 + fmtSize
	copy(buf[d:d+4], "data")
	binary.LittleEndian.PutUint32(buf[d+4:d+8], uint32(dataSize))
	return buf
}
