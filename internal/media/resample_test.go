package media

import (
	"math"
	"testing"
)

func stereoConstant(frames int, value float32) []float32 {
	out := make([]float32, frames*audioChannels)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestResampleSameRatePassesThrough(t *testing.T) {
	r := newResampler(48000, 48000)
	in := stereoConstant(100, 0.25)
	out := r.process(in)
	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	for i := range out {
		if out[i] != in[i] {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResampleConstantSignal(t *testing.T) {
	// Cubic interpolation of a constant signal must reproduce it exactly,
	// at any rate ratio.
	r := newResampler(48000, 44100)
	for chunk := 0; chunk < 10; chunk++ {
		out := r.process(stereoConstant(480, 0.5))
		for i, v := range out {
			if math.Abs(float64(v)-0.5) > 1e-4 {
				t.Fatalf("chunk %d sample %d: got %v, want 0.5", chunk, i, v)
			}
		}
	}
}

func TestResampleOutputLength(t *testing.T) {
	r := newResampler(48000, 24000)
	total := 0
	for chunk := 0; chunk < 10; chunk++ {
		out := r.process(stereoConstant(480, 0.1))
		total += len(out) / audioChannels
	}
	// 4800 input frames at a 2:1 ratio, minus a few frames of kernel
	// context held back at the tail.
	if total < 2390 || total > 2400 {
		t.Fatalf("output frames: got %d, want about 2400", total)
	}
}

func TestResampleUpsampleLength(t *testing.T) {
	r := newResampler(22050, 44100)
	total := 0
	for chunk := 0; chunk < 10; chunk++ {
		out := r.process(stereoConstant(441, 0.1))
		total += len(out) / audioChannels
	}
	if total < 8800 || total > 8820 {
		t.Fatalf("output frames: got %d, want about 8820", total)
	}
}

func TestResampleResetDropsHistory(t *testing.T) {
	r := newResampler(48000, 44100)
	r.process(stereoConstant(480, 0.9))
	r.reset()
	if r.histLen != 0 || r.pos != 0 {
		t.Fatalf("state after reset: histLen=%d pos=%v", r.histLen, r.pos)
	}
	out := r.process(stereoConstant(480, -0.5))
	for i, v := range out {
		if math.Abs(float64(v)+0.5) > 1e-4 {
			t.Fatalf("sample %d after reset: got %v, want -0.5", i, v)
		}
	}
}
