package media

// resampler converts interleaved stereo float32 from one sample rate to
// another using cubic interpolation, keeping enough history between chunks
// that frame boundaries do not produce seams.
type resampler struct {
	srcRate int
	dstRate int
	step    float64 // input frames consumed per output frame

	// Tail of the previous chunk, up to 3 frames, prepended to the next
	// input so the cubic kernel always has context.
	hist    [3 * audioChannels]float32
	histLen int // frames

	pos float64 // position of the next output frame in input frames
	buf []float32
	out []float32
}

func newResampler(srcRate, dstRate int) *resampler {
	return &resampler{
		srcRate: srcRate,
		dstRate: dstRate,
		step:    float64(srcRate) / float64(dstRate),
	}
}

// process resamples one chunk. The returned slice is reused across calls.
func (r *resampler) process(in []float32) []float32 {
	if r.srcRate == r.dstRate {
		return in
	}

	r.buf = append(r.buf[:0], r.hist[:r.histLen*audioChannels]...)
	r.buf = append(r.buf, in...)
	frames := len(r.buf) / audioChannels

	r.out = r.out[:0]
	for int(r.pos)+2 < frames {
		index := int(r.pos)
		if index < 1 {
			index = 1
		}
		frac := float32(r.pos) - float32(index)

		for c := 0; c < audioChannels; c++ {
			y0 := r.buf[(index-1)*audioChannels+c]
			y1 := r.buf[index*audioChannels+c]
			y2 := r.buf[(index+1)*audioChannels+c]
			y3 := r.buf[(index+2)*audioChannels+c]

			mu2 := frac * frac
			a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
			a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
			a2 := -0.5*y0 + 0.5*y2
			a3 := y1

			r.out = append(r.out, a0*frac*mu2+a1*mu2+a2*frac+a3)
		}
		r.pos += r.step
	}

	// Keep the last three frames as context for the next chunk.
	keep := 3
	if frames < keep {
		keep = frames
	}
	consumed := frames - keep
	copy(r.hist[:], r.buf[consumed*audioChannels:frames*audioChannels])
	r.histLen = keep
	r.pos -= float64(consumed)
	if r.pos < 0 {
		r.pos = 0
	}

	return r.out
}

// reset drops all carried state, for use after a seek.
func (r *resampler) reset() {
	r.histLen = 0
	r.pos = 0
}
