package media

import (
	"sync"
	"testing"
	"time"
)

// fakeDecoder produces a deterministic ramp of samples so tests can check
// exactly which absolute positions a Read returned.
type fakeDecoder struct {
	cb    AudioCallback
	rate  int
	chunk int // frames per DecodeNextFrame

	mu     sync.Mutex
	total  int64 // total interleaved samples in the stream
	pos    int64 // next interleaved sample to produce
	seeks  []float64
	closed bool
}

func rampValue(pos int64) int16 {
	return int16(pos % 1000)
}

func (f *fakeDecoder) DecodeNextFrame() error {
	f.mu.Lock()
	pos := f.pos
	n := int64(f.chunk * audioChannels)
	if pos+n > f.total {
		n = f.total - pos
	}
	f.mu.Unlock()

	if n <= 0 {
		return ErrEndOfStream
	}
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = rampValue(pos + int64(i))
	}
	f.cb(samples, pos)

	f.mu.Lock()
	f.pos = pos + n
	f.mu.Unlock()
	return nil
}

func (f *fakeDecoder) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	f.pos = int64(seconds*float64(f.rate)) * audioChannels
	return nil
}

func (f *fakeDecoder) Duration() float64 {
	return float64(f.total) / audioChannels / float64(f.rate)
}

func (f *fakeDecoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDecoder) position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fakeDecoder) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// newTestBuffer wires a fakeDecoder into an AudioBuffer. rate is tiny so
// positions stay easy to reason about.
func newTestBuffer(t *testing.T, rate, frames, totalFrames, chunk int) (*AudioBuffer, *fakeDecoder) {
	t.Helper()
	b := newAudioBuffer(rate, frames)
	dec := &fakeDecoder{rate: rate, chunk: chunk, total: int64(totalFrames * audioChannels)}
	dec.cb = b.write
	b.duration = dec.Duration()
	b.start(dec)
	t.Cleanup(b.Close)
	return b, dec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func expectRamp(t *testing.T, out []float32, start int64, volume float32) {
	t.Helper()
	for i, got := range out {
		want := volume * float32(rampValue(start+int64(i))) / 32768.0
		if got != want {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestReadSequential(t *testing.T) {
	b, _ := newTestBuffer(t, 4, 8, 1000, 2)

	waitFor(t, "buffer primed", func() bool { return b.Prepare(0) })

	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read returned false")
	}
	expectRamp(t, out, 0, 1)

	waitFor(t, "second window primed", func() bool { return b.Prepare(8) })
	if !b.Read(out, 8, 1) {
		t.Fatal("Read returned false")
	}
	expectRamp(t, out, 8, 1)
}

func TestReadMixesAdditively(t *testing.T) {
	b, _ := newTestBuffer(t, 4, 8, 1000, 2)
	waitFor(t, "buffer primed", func() bool { return b.Prepare(0) })

	out := make([]float32, 8)
	for i := range out {
		out[i] = 0.25
	}
	if !b.Read(out, 0, 0.5) {
		t.Fatal("Read returned false")
	}
	for i, got := range out {
		want := 0.25 + 0.5*float32(rampValue(int64(i)))/32768.0
		if got != want {
			t.Fatalf("sample %d: got %v, want %v", i, got, want)
		}
	}
}

func TestReadNegativePreroll(t *testing.T) {
	b, _ := newTestBuffer(t, 4, 8, 1000, 2)
	waitFor(t, "buffer primed", func() bool { return b.Prepare(0) })

	// Only the span before position zero is silenced; the rest mixes into
	// whatever the caller already has in the output buffer.
	out := make([]float32, 8)
	for i := range out {
		out[i] = 0.25
	}
	if !b.Read(out, -4, 1) {
		t.Fatal("Read returned false")
	}
	for i := 0; i < 4; i++ {
		if out[i] != 0 {
			t.Fatalf("pre-roll sample %d: got %v, want 0", i, out[i])
		}
	}
	for i, got := range out[4:] {
		want := 0.25 + float32(rampValue(int64(i)))/32768.0
		if got != want {
			t.Fatalf("mixed sample %d: got %v, want %v", i, got, want)
		}
	}

	// A fully negative range is all silence and does not touch cursors.
	for i := range out {
		out[i] = 99
	}
	if !b.Read(out, -100, 1) {
		t.Fatal("Read returned false")
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d: got %v, want 0", i, v)
		}
	}
}

func TestReadPastEndOfStream(t *testing.T) {
	// Stream shorter than the write-ahead window, so the reader reaches the
	// end without any consumption.
	b, _ := newTestBuffer(t, 4, 8, 4, 2)

	waitFor(t, "end of stream", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.eofPos == 8
	})

	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read up to the stream end returned false")
	}
	expectRamp(t, out, 0, 1)

	if b.Read(out, 8, 1) {
		t.Fatal("Read past the stream end returned true")
	}
}

func TestSeekRewindsAfterEndOfStream(t *testing.T) {
	b, dec := newTestBuffer(t, 4, 8, 4, 2)

	waitFor(t, "end of stream", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.eofPos == 8
	})
	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("initial Read returned false")
	}
	if b.Read(out, 8, 1) {
		t.Fatal("Read past the stream end returned true")
	}

	// Jumping back registers a seek; the reader rewinds the decoder,
	// clears the end marker and refills from the start.
	if !b.Prepare(0) && !b.Prepare(0) {
		t.Fatal("Prepare after registering seek returned false twice")
	}
	waitFor(t, "seek committed and refilled", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return !b.seekAsked && b.readPos == 0 && b.eofPos == 8 && b.writePos == 8
	})

	dec.mu.Lock()
	seeks := len(dec.seeks)
	dec.mu.Unlock()
	if seeks == 0 {
		t.Fatal("decoder never received the seek")
	}

	if !b.Read(out, 0, 1) {
		t.Fatal("Read after seek returned false")
	}
	expectRamp(t, out, 0, 1)
	if b.Read(out, 8, 1) {
		t.Fatal("Read past the stream end returned true after seek")
	}
}

func TestSeekTargetUsesOutputClock(t *testing.T) {
	b, dec := newTestBuffer(t, 4, 8, 1000, 2)
	waitFor(t, "buffer primed", func() bool { return b.Prepare(0) })

	// Jump far outside the buffered window: 96 interleaved samples at
	// 4 Hz stereo is 12 seconds.
	out := make([]float32, 8)
	if !b.Read(out, 96, 1) {
		t.Fatal("out-of-window Read returned false")
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d during seek: got %v, want silence", i, v)
		}
	}

	waitFor(t, "seek delivered", func() bool {
		dec.mu.Lock()
		defer dec.mu.Unlock()
		return len(dec.seeks) > 0
	})
	dec.mu.Lock()
	target := dec.seeks[0]
	dec.mu.Unlock()
	if target != 13 {
		t.Fatalf("seek target: got %v seconds, want 13", target)
	}

	waitFor(t, "window after seek primed", func() bool { return b.Prepare(104) })
	if !b.Read(out, 104, 1) {
		t.Fatal("Read after seek returned false")
	}
	expectRamp(t, out, 104, 1)
}

func TestWriteBlocksUntilConsumed(t *testing.T) {
	b, dec := newTestBuffer(t, 4, 8, 10000, 2)

	// The writer runs half a buffer ahead and then stalls.
	waitFor(t, "write-ahead filled", func() bool { return dec.position() >= 8 })
	time.Sleep(20 * time.Millisecond)
	if pos := dec.position(); pos > 12 {
		t.Fatalf("writer ran past the throttle: produced %d samples", pos)
	}

	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read returned false")
	}
	waitFor(t, "writer resumed", func() bool { return dec.position() >= 16 })
}

func TestCloseUnblocksWriter(t *testing.T) {
	b := newAudioBuffer(4, 8)
	dec := &fakeDecoder{rate: 4, chunk: 2, total: 1 << 20}
	dec.cb = b.write
	b.start(dec)

	waitFor(t, "write-ahead filled", func() bool { return dec.position() >= 8 })

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while the writer was blocked")
	}
	if !dec.wasClosed() {
		t.Fatal("decoder was not closed")
	}
}

func TestWriteStalePositionIsNoOp(t *testing.T) {
	// Unstarted buffer: drive the producer side directly.
	b := newAudioBuffer(4, 8)

	samples := make([]int16, 8)
	for i := range samples {
		samples[i] = rampValue(int64(i))
	}
	b.write(samples, 0)

	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read returned false")
	}
	expectRamp(t, out, 0, 1)

	// Everything before the read cursor must be dropped without moving
	// either cursor.
	b.write(samples[:4], 0)
	b.mu.Lock()
	readPos, writePos := b.readPos, b.writePos
	b.mu.Unlock()
	if readPos != 8 || writePos != 8 {
		t.Fatalf("cursors after stale write: read=%d write=%d, want 8/8", readPos, writePos)
	}
}

func TestWriteStaleDoesNotBlockWhenFull(t *testing.T) {
	// Unstarted buffer: drive the producer side directly.
	b := newAudioBuffer(4, 8)

	fresh := make([]int16, 8)
	for i := range fresh {
		fresh[i] = rampValue(int64(i))
	}
	b.write(fresh, 0)

	out := make([]float32, 4)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read returned false")
	}
	b.write(fresh, 8)

	// The buffer is now full. A write behind the read cursor must be
	// dropped up front instead of waiting for space that a stale chunk
	// will never deserve.
	done := make(chan struct{})
	go func() {
		b.write(make([]int16, 4), 0)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale write blocked on a full buffer")
	}

	b.mu.Lock()
	readPos, writePos := b.readPos, b.writePos
	b.mu.Unlock()
	if readPos != 4 || writePos != 16 {
		t.Fatalf("cursors after stale write: read=%d write=%d, want 4/16", readPos, writePos)
	}
}

func TestWriteDiscontinuities(t *testing.T) {
	// Unstarted buffer: drive the producer side directly.
	b := newAudioBuffer(4, 16)

	chunk := func(pos, n int64) []int16 {
		s := make([]int16, n)
		for i := range s {
			s[i] = rampValue(pos + int64(i))
		}
		return s
	}
	b.write(chunk(0, 8), 0)

	// A chunk overlapping already-written data rewinds the write cursor
	// and is written through rather than skipped.
	b.write(chunk(4, 4), 4)
	b.mu.Lock()
	writePos := b.writePos
	b.mu.Unlock()
	if writePos != 8 {
		t.Fatalf("write cursor after overlap: got %d, want 8", writePos)
	}

	// A chunk past the write cursor jumps it forward.
	b.write(chunk(12, 4), 12)
	b.mu.Lock()
	writePos = b.writePos
	b.mu.Unlock()
	if writePos != 16 {
		t.Fatalf("write cursor after gap: got %d, want 16", writePos)
	}

	out := make([]float32, 8)
	if !b.Read(out, 0, 1) {
		t.Fatal("Read returned false")
	}
	expectRamp(t, out, 0, 1)
}

func TestPreviewDownmix(t *testing.T) {
	sink := &previewSink{}
	dec := &fakeDecoder{rate: 4, chunk: 2, total: 16}
	dec.cb = sink.write

	mono, err := drainPreview(dec, sink, 6)
	if err != nil {
		t.Fatalf("drainPreview: %v", err)
	}
	if len(mono) != 6 {
		t.Fatalf("preview length: got %d, want 6", len(mono))
	}
	for i, got := range mono {
		l := float32(rampValue(int64(2*i))) / 32768.0
		r := float32(rampValue(int64(2*i+1))) / 32768.0
		if want := (l + r) / 2; got != want {
			t.Fatalf("frame %d: got %v, want %v", i, got, want)
		}
	}

	// A limit past the stream end stops at the stream end.
	sink = &previewSink{}
	dec = &fakeDecoder{rate: 4, chunk: 2, total: 16}
	dec.cb = sink.write
	mono, err = drainPreview(dec, sink, 100)
	if err != nil {
		t.Fatalf("drainPreview: %v", err)
	}
	if len(mono) != 8 {
		t.Fatalf("preview length at stream end: got %d, want 8", len(mono))
	}
}

func TestPrepareAtEndOfStream(t *testing.T) {
	b, _ := newTestBuffer(t, 4, 8, 4, 2)
	waitFor(t, "end of stream", func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.eofPos == 8
	})

	// Nothing left to buffer, so playback must not wait.
	if !b.Prepare(100) {
		t.Fatal("Prepare past the stream end returned false")
	}
}
