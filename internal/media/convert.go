package media

// sampleConverter is the output half shared by every audio backend: it
// resamples extracted stereo float samples to the configured output rate,
// converts them to interleaved int16 PCM, and tracks the absolute output
// sample-frame position. The first chunk after construction or after a seek
// (re)seeds the position from the decoder's time position; later chunks
// advance it by their converted frame counts, keeping the time and sample
// clocks independently consistent.
type sampleConverter struct {
	outRate   int
	res       *resampler
	posFrames int64 // output sample frames, -1 until seeded
	cb        AudioCallback
	pcm       []int16
}

func newSampleConverter(srcRate, outRate int, cb AudioCallback) *sampleConverter {
	return &sampleConverter{
		outRate:   outRate,
		res:       newResampler(srcRate, outRate),
		posFrames: -1,
		cb:        cb,
	}
}

// deliver pushes one chunk of interleaved stereo floats decoded at timePos
// seconds through resampling and into the callback. The PCM slice handed to
// the callback is reused; the callback must copy synchronously.
func (c *sampleConverter) deliver(stereo []float32, timePos float64) {
	out := c.res.process(stereo)
	if len(out) == 0 {
		return
	}

	if c.posFrames < 0 {
		c.posFrames = int64(timePos*float64(c.outRate) + 0.5)
	}

	if cap(c.pcm) < len(out) {
		c.pcm = make([]int16, len(out))
	}
	pcm := c.pcm[:len(out)]
	for i, v := range out {
		switch {
		case v > 1:
			pcm[i] = 32767
		case v < -1:
			pcm[i] = -32768
		default:
			pcm[i] = int16(v * 32767)
		}
	}

	c.cb(pcm, c.posFrames*audioChannels)
	c.posFrames += int64(len(out) / audioChannels)
}

// reset kills the carried position so the next chunk reseeds it, and drops
// resampler history. Call after a seek.
func (c *sampleConverter) reset() {
	c.posFrames = -1
	c.res.reset()
}
