package media

import (
	"sync"
)

// AudioBuffer is a ring buffer of interleaved stereo int16 samples filled by
// a background decode goroutine and drained by a real-time consumer. Both
// cursors are absolute sample positions that never wrap; the physical slot
// for a position is position modulo the buffer size.
//
// The consumer side (Read, Prepare) only takes the lock and never blocks on
// decoder progress, which makes it safe to call from an audio device
// callback. The producer blocks in write whenever the buffer is far enough
// ahead of the read cursor.
type AudioBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	data []int16

	sps      int64 // interleaved samples per second of output
	duration float64

	readPos  int64
	writePos int64
	eofPos   int64 // absolute end of stream, -1 while unknown

	seekAsked bool
	quit      bool
	done      chan struct{}
}

// NewAudioBuffer opens filename for decoding and starts the reader
// goroutine. rate is the output sample rate and frames the ring capacity in
// stereo frames.
func NewAudioBuffer(filename string, rate, frames int) (*AudioBuffer, error) {
	b := newAudioBuffer(rate, frames)
	dec, err := OpenAudioDecoder(filename, rate, b.write)
	if err != nil {
		return nil, err
	}
	b.duration = dec.Duration()
	b.start(dec)
	return b, nil
}

func newAudioBuffer(rate, frames int) *AudioBuffer {
	b := &AudioBuffer{
		data:   make([]int16, frames*audioChannels),
		sps:    int64(rate * audioChannels),
		eofPos: -1,
		done:   make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *AudioBuffer) start(dec Decoder) {
	go b.run(dec)
}

// Duration returns the stream length in seconds.
func (b *AudioBuffer) Duration() float64 {
	return b.duration
}

// wantMore reports whether the producer should keep decoding. The write
// cursor is kept at most half a buffer ahead of the read cursor so seeks
// backwards within the window stay cheap.
func (b *AudioBuffer) wantMore() bool {
	return b.writePos < b.readPos+int64(len(b.data))/2
}

// eofReached reports whether position end runs past the known end of
// stream. Caller holds the lock.
func (b *AudioBuffer) eofReached(end int64) bool {
	return b.eofPos >= 0 && end > b.eofPos
}

// write appends decoded samples at absolute position pos, blocking while the
// buffer is full. It is the AudioCallback handed to the decoder and runs on
// the reader goroutine only.
func (b *AudioBuffer) write(samples []int16, pos int64) {
	if pos < 0 {
		logger.Warn("negative audio position, skipping samples", "pos", pos)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pos < b.readPos {
		// Stale data from before the read cursor, e.g. a decoder that
		// undershot a seek target. Drop it without waiting for space.
		return
	}

	// Wait until the consumer catches up enough, or until something more
	// urgent than writing comes up.
	for !b.quit && !b.seekAsked && !b.wantMore() {
		b.cond.Wait()
	}
	// The consumer may have read past pos while we slept; writing then
	// would rewind the write cursor below the read cursor.
	if b.quit || b.seekAsked || pos < b.readPos {
		return
	}

	if pos != b.writePos {
		logger.Debug("discontinuity in audio stream", "expected", b.writePos, "got", pos)
	}
	b.writePos = pos

	size := int64(len(b.data))
	wrapPos := b.writePos % size
	n := int64(len(samples))
	first := size - wrapPos
	if first > n {
		first = n
	}
	copy(b.data[wrapPos:wrapPos+first], samples[:first])
	copy(b.data[:n-first], samples[first:])
	b.writePos += n

	b.cond.Broadcast()
}

// Read mixes buffered samples into out at the given volume, starting at the
// absolute position pos. It returns false once the stream has ended or the
// buffer is shutting down. A pos outside the buffered window registers a
// seek request and fills out with silence until the reader catches up.
//
// Negative positions are pre-roll: the leading silence is skipped and the
// remainder read from position zero.
func (b *AudioBuffer) Read(out []float32, pos int64, volume float32) bool {
	count := int64(len(out))
	if pos < 0 {
		// Pre-roll: only the span before position zero is silence; the
		// rest mixes normally into the caller's buffer.
		n := -pos
		if n > count {
			n = count
		}
		for i := int64(0); i < n; i++ {
			out[i] = 0
		}
		if -pos >= count {
			return true
		}
		out = out[n:]
		count = int64(len(out))
		pos = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.eofReached(pos+count) || b.quit {
		return false
	}

	size := int64(len(b.data))
	if count > size {
		count = size
		out = out[:count]
	}

	if pos < b.readPos || pos+count > b.readPos+size {
		// Consumer jumped outside the buffered window: ask the reader to
		// seek and play silence meanwhile.
		for i := range out {
			out[i] = 0
		}
		b.readPos = pos + count
		b.seekAsked = true
		for i := range b.data {
			b.data[i] = 0
		}
		b.cond.Broadcast()
		return true
	}

	for i := int64(0); i < count; i++ {
		out[i] += volume * float32(b.data[(b.readPos+i)%size]) / 32768.0
	}
	b.readPos = pos + count
	b.cond.Broadcast()
	return true
}

// Prepare registers pos as the next read position and reports whether
// enough data is buffered to start playback there without an underrun.
func (b *AudioBuffer) Prepare(pos int64) bool {
	if !b.Read(nil, pos, 0) {
		// Stream over: nothing left to wait for.
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	size := int64(len(b.data))
	return b.writePos > b.readPos+size/16 && b.writePos <= b.readPos+size
}

// run is the reader goroutine: it decodes ahead of the consumer, commits
// seek requests and parks at end of stream.
func (b *AudioBuffer) run(dec Decoder) {
	defer close(b.done)
	defer dec.Close()

	errCount := 0
	for {
		b.mu.Lock()
		if b.quit {
			b.mu.Unlock()
			return
		}
		if b.seekAsked {
			b.seekAsked = false
			b.writePos = b.readPos
			b.eofPos = -1
			target := float64(b.readPos) / float64(b.sps)
			b.mu.Unlock()
			if err := dec.Seek(target); err != nil {
				logger.Warn("seek failed", "target", target, "error", err)
			}
			continue
		}
		b.mu.Unlock()

		err := dec.DecodeNextFrame()
		switch {
		case err == nil:
			errCount = 0

		case err == ErrEndOfStream:
			errCount = 0
			b.mu.Lock()
			b.eofPos = b.writePos
			b.cond.Broadcast()
			for !b.quit && !b.seekAsked {
				b.cond.Wait()
			}
			b.mu.Unlock()

		default:
			errCount++
			if errCount > 2 {
				logger.Warn("persistent decode errors", "error", err)
			} else {
				logger.Debug("decode error, continuing", "error", err)
			}
		}
	}
}

// Close stops the reader goroutine and waits for it to exit. The buffer
// must not be used afterwards.
func (b *AudioBuffer) Close() {
	b.mu.Lock()
	b.readPos = 0
	b.writePos = 0
	for i := range b.data {
		b.data[i] = 0
	}
	b.quit = true
	b.cond.Broadcast()
	b.mu.Unlock()
	<-b.done
}

// previewSink accumulates a mono downmix of everything written to it.
type previewSink struct {
	mono []float32
}

func (s *previewSink) write(samples []int16, pos int64) {
	for i := 0; i+1 < len(samples); i += 2 {
		l := float32(samples[i]) / 32768.0
		r := float32(samples[i+1]) / 32768.0
		s.mono = append(s.mono, (l+r)/2)
	}
}

// PreviewBuffer decodes up to maxSeconds from the start of filename into a
// mono float32 buffer, for waveform previews.
func PreviewBuffer(filename string, rate int, maxSeconds float64) ([]float32, error) {
	sink := &previewSink{}
	dec, err := OpenAudioDecoder(filename, rate, sink.write)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return drainPreview(dec, sink, int64(maxSeconds*float64(rate)))
}

func drainPreview(dec Decoder, sink *previewSink, limit int64) ([]float32, error) {
	for int64(len(sink.mono)) < limit {
		if err := dec.DecodeNextFrame(); err != nil {
			if err == ErrEndOfStream {
				break
			}
			return nil, err
		}
	}
	if int64(len(sink.mono)) > limit {
		sink.mono = sink.mono[:limit]
	}
	return sink.mono, nil
}
