package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/audioflow/pkg/audio"
)

// buildWAV assembles a WAVE file by hand. When extensible is set, the fmt
// chunk uses WAVE_FORMAT_EXTENSIBLE with tag as the sub-format.
func buildWAV(tag uint16, channels, rate, bits int, data []byte, extensible bool) []byte {
	var fmtChunk bytes.Buffer
	le := func(v any) { _ = binary.Write(&fmtChunk, binary.LittleEndian, v) }
	if extensible {
		le(uint16(0xFFFE))
	} else {
		le(tag)
	}
	le(uint16(channels))
	le(uint32(rate))
	le(uint32(rate * channels * bits / 8))
	le(uint16(channels * bits / 8))
	le(uint16(bits))
	if extensible {
		le(uint16(22))   // cbSize
		le(uint16(bits)) // valid bits
		le(uint32(0))    // channel mask
		le(tag)          // sub-format GUID, first two bytes
		fmtChunk.Write(make([]byte, 14))
	}

	var out bytes.Buffer
	w := func(v any) { _ = binary.Write(&out, binary.LittleEndian, v) }
	out.WriteString("RIFF")
	w(uint32(4 + 8 + fmtChunk.Len() + 8 + 6 + 8 + len(data)))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	w(uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	// An unrelated chunk before the data must be skipped.
	out.WriteString("LIST")
	w(uint32(6))
	out.WriteString("abcdef")
	out.WriteString("data")
	w(uint32(len(data)))
	out.Write(data)
	return out.Bytes()
}

func int16s(vs ...int16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestRoundTripPCM16(t *testing.T) {
	t.Parallel()
	samples := make([]int16, 16000)
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	w := audio.NewPCM16(16000, samples)

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWAV(path, w); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, err := audio.ReadWAV(path, audio.ChannelFirst)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if diff := cmp.Diff(w, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", got.Duration())
	}

	h, err := audio.ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	want := audio.Header{SampleRate: 16000, Channels: 1, Format: audio.PCM16, Frames: 16000}
	if h != want {
		t.Errorf("ReadHeader = %+v, want %+v", h, want)
	}
}

func TestRoundTripFormats(t *testing.T) {
	t.Parallel()
	formats := []audio.SampleFormat{
		{Encoding: audio.EncodingPCM, BitsPerSample: 8},
		{Encoding: audio.EncodingPCM, BitsPerSample: 24},
		{Encoding: audio.EncodingPCM, BitsPerSample: 32},
		{Encoding: audio.EncodingFloat, BitsPerSample: 32},
		{Encoding: audio.EncodingFloat, BitsPerSample: 64},
	}
	for _, f := range formats {
		t.Run(f.Encoding.String(), func(t *testing.T) {
			t.Parallel()
			data := make([]byte, 5*f.BytesPerSample())
			for i := range data {
				data[i] = byte(i * 37)
			}
			w := &audio.Waveform{SampleRate: 8000, Format: f, Data: data}
			var buf bytes.Buffer
			if err := audio.EncodeWAV(&buf, w); err != nil {
				t.Fatalf("EncodeWAV: %v", err)
			}
			got, err := audio.DecodeWAV(&buf, audio.ChannelFirst)
			if err != nil {
				t.Fatalf("DecodeWAV: %v", err)
			}
			if diff := cmp.Diff(w, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseWAV_24BitSignExtension(t *testing.T) {
	t.Parallel()
	// -1 and +0x400000 (half scale) as 24-bit little endian.
	data := []byte{0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x40}
	w, err := audio.ParseWAV(buildWAV(1, 1, 8000, 24, data, false), audio.ChannelFirst)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if w.Len() != 2 {
		t.Fatalf("Len = %d, want 2", w.Len())
	}
	if got := w.Sample(0); got >= 0 {
		t.Errorf("Sample(0) = %v, want negative", got)
	}
	if got := w.Sample(1); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Sample(1) = %v, want 0.5", got)
	}
}

func TestParseWAV_Extensible(t *testing.T) {
	t.Parallel()
	data := int16s(1, 2, 3, 4)
	w, err := audio.ParseWAV(buildWAV(1, 1, 22050, 16, data, true), audio.ChannelFirst)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if w.Format != audio.PCM16 || w.SampleRate != 22050 || w.Len() != 4 {
		t.Errorf("got format %+v at %d Hz with %d samples", w.Format, w.SampleRate, w.Len())
	}
}

func TestParseWAV_Downmix(t *testing.T) {
	t.Parallel()
	// Stereo frames: (100, 300), (-200, 0), (32767, 32767)
	data := int16s(100, 300, -200, 0, 32767, 32767)
	raw := buildWAV(1, 2, 16000, 16, data, false)

	tests := []struct {
		mode audio.ChannelMode
		want []byte
	}{
		{audio.ChannelFirst, int16s(100, -200, 32767)},
		{audio.ChannelMix, int16s(200, -100, 32767)},
	}
	for _, tt := range tests {
		w, err := audio.ParseWAV(raw, tt.mode)
		if err != nil {
			t.Fatalf("ParseWAV(mode %d): %v", tt.mode, err)
		}
		if !bytes.Equal(w.Data, tt.want) {
			t.Errorf("mode %d: data = %v, want %v", tt.mode, w.Data, tt.want)
		}
	}
}

func TestParseWAV_TruncatedDataChunk(t *testing.T) {
	t.Parallel()
	raw := buildWAV(1, 2, 8000, 16, int16s(1, 2, 3, 4), false)
	// Drop the last three bytes: one whole frame remains.
	w, err := audio.ParseWAV(raw[:len(raw)-3], audio.ChannelFirst)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("Len = %d, want 1", w.Len())
	}
}

func TestParseWAV_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, audio.ErrMalformed},
		{"not riff", []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00\x00"), audio.ErrMalformed},
		{"alaw", buildWAV(6, 1, 8000, 8, []byte{1, 2}, false), audio.ErrUnsupported},
		{"12-bit pcm", buildWAV(1, 1, 8000, 12, []byte{1, 2}, false), audio.ErrUnsupported},
		{"no data chunk", []byte("RIFF\x04\x00\x00\x00WAVE"), audio.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := audio.ParseWAV(tt.data, audio.ChannelFirst); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWaveformSlice(t *testing.T) {
	t.Parallel()
	w := audio.NewPCM16(8000, []int16{0, 1, 2, 3, 4, 5})

	s, err := w.Slice(2, 5)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if !bytes.Equal(s.Data, int16s(2, 3, 4)) {
		t.Errorf("Slice data = %v", s.Data)
	}

	for _, r := range [][2]int{{-1, 2}, {3, 3}, {4, 2}, {0, 7}} {
		if _, err := w.Slice(r[0], r[1]); err == nil {
			t.Errorf("Slice(%d, %d) succeeded, want error", r[0], r[1])
		}
	}
}

func TestWriteWAV_NoTempFilesLeft(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := audio.WriteWAV(filepath.Join(dir, "a.wav"), audio.NewPCM16(8000, []int16{1, 2, 3})); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.wav" {
		t.Errorf("directory holds %v, want only a.wav", entries)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()
	w := audio.NewPCM16(8000, []int16{16384, -16384, 16384, -16384, 0, 0})
	if got := audio.RMS(w, 0, 4); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
	if got := audio.RMS(w, 4, 6); got != 0 {
		t.Errorf("RMS of silence = %v", got)
	}
	if got := audio.RMS(w, 5, 5); got != 0 {
		t.Errorf("RMS of empty range = %v", got)
	}
}

func TestParseChannelMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]audio.ChannelMode{"": audio.ChannelFirst, "first": audio.ChannelFirst, "mix": audio.ChannelMix} {
		got, err := audio.ParseChannelMode(in)
		if err != nil || got != want {
			t.Errorf("ParseChannelMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := audio.ParseChannelMode("left"); err == nil {
		t.Error("ParseChannelMode(left) succeeded")
	}
}
