package ui

import "testing"

func TestRenderWaveform(t *testing.T) {
	if got := renderWaveform(nil, 10); got != "" {
		t.Fatalf("empty preview: got %q, want empty string", got)
	}
	if got := renderWaveform([]float32{0.5}, 0); got != "" {
		t.Fatalf("zero width: got %q, want empty string", got)
	}

	// One column per frame: silence maps to the lowest glyph, full scale
	// clamps to the highest, negative peaks count by magnitude.
	got := []rune(renderWaveform([]float32{0, 1.0, -0.99, 0.5}, 4))
	if len(got) != 4 {
		t.Fatalf("width: got %d columns, want 4", len(got))
	}
	if got[0] != waveGlyphs[0] {
		t.Errorf("silent column: got %q, want %q", got[0], waveGlyphs[0])
	}
	if got[1] != waveGlyphs[len(waveGlyphs)-1] {
		t.Errorf("full-scale column: got %q, want %q", got[1], waveGlyphs[len(waveGlyphs)-1])
	}
	if got[2] != waveGlyphs[len(waveGlyphs)-1] {
		t.Errorf("negative peak column: got %q, want %q", got[2], waveGlyphs[len(waveGlyphs)-1])
	}
	if got[3] != waveGlyphs[4] {
		t.Errorf("half-scale column: got %q, want %q", got[3], waveGlyphs[4])
	}
}

func TestRenderWaveformDownsamples(t *testing.T) {
	// More frames than columns: each column takes the peak of its span.
	mono := make([]float32, 100)
	mono[55] = 0.9
	got := []rune(renderWaveform(mono, 10))
	if len(got) != 10 {
		t.Fatalf("width: got %d columns, want 10", len(got))
	}
	for i, r := range got {
		want := waveGlyphs[0]
		if i == 5 {
			want = waveGlyphs[7]
		}
		if r != want {
			t.Errorf("column %d: got %q, want %q", i, r, want)
		}
	}
}
