package audio

import (
	"encoding/binary"
	"math"
)

// readInt decodes one little-endian integer PCM sample. 8-bit samples are
// unsigned with a bias of 128.
func readInt(b []byte, bits int) int64 {
	switch bits {
	case 8:
		return int64(b[0]) - 128
	case 16:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return int64(v)
	case 32:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

// putInt encodes v as one little-endian integer PCM sample, clamping it to
// the range of the sample width.
func putInt(b []byte, bits int, v int64) {
	lim := int64(1) << (bits - 1)
	if v > lim-1 {
		v = lim - 1
	} else if v < -lim {
		v = -lim
	}
	switch bits {
	case 8:
		b[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case 24:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	case 32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	}
}

func readFloat(b []byte, bits int) float64 {
	if bits == 64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func putFloat(b []byte, bits int, v float64) {
	if bits == 64 {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return
	}
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}

// normalized returns one sample scaled to [-1, 1].
func normalized(b []byte, f SampleFormat) float64 {
	if f.Encoding == EncodingFloat {
		return readFloat(b, f.BitsPerSample)
	}
	return float64(readInt(b, f.BitsPerSample)) / float64(int64(1)<<(f.BitsPerSample-1))
}

// RMS returns the root-mean-square level of samples [start, end) of w,
// scaled to [0, 1]. An empty range yields 0.
func RMS(w *Waveform, start, end int) float64 {
	if start < 0 {
		start = 0
	}
	if n := w.Len(); end > n {
		end = n
	}
	if end <= start {
		return 0
	}
	var sum float64
	for i := start; i < end; i++ {
		v := w.Sample(i)
		sum += v * v
	}
	return math.Sqrt(sum / float64(end-start))
}

// NewPCM16 builds a mono 16-bit waveform from samples.
func NewPCM16(sampleRate int, samples []int16) *Waveform {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return &Waveform{SampleRate: sampleRate, Format: PCM16, Data: data}
}
