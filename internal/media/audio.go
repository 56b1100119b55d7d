package media

import (
	"fmt"
	"unsafe"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

// AudioDecoder decodes the first audio stream of a container and converts
// every frame to interleaved stereo int16 PCM at the configured output rate.
type AudioDecoder struct {
	src      *ffmpegSource
	channels int
	srcRate  int
	conv     *sampleConverter
}

// NewAudioDecoder opens filename for audio decoding. rate is the output
// sample rate; the source is resampled to it. The callback contract is
// described on AudioCallback.
func NewAudioDecoder(filename string, rate int, cb AudioCallback) (*AudioDecoder, error) {
	src, err := openFFmpegSource(filename, ffmpeg.AVMediaTypeAudio)
	if err != nil {
		return nil, err
	}

	sampleFmt := int32(src.codecCtx.SampleFmt())
	supportedFormats := map[int32]bool{
		1: true, // AVSampleFmtS16 - 16-bit signed interleaved
		2: true, // AVSampleFmtS32 - 32-bit signed interleaved
		3: true, // AVSampleFmtFlt - 32-bit float interleaved
		6: true, // AVSampleFmtS16P - 16-bit signed planar
		7: true, // AVSampleFmtS32P - 32-bit signed planar
		8: true, // AVSampleFmtFltp - 32-bit float planar
	}
	if !supportedFormats[sampleFmt] {
		src.close()
		return nil, fmt.Errorf("unsupported sample format: %d", sampleFmt)
	}

	d := &AudioDecoder{
		src:      src,
		channels: src.codecCtx.ChLayout().NbChannels(),
		srcRate:  src.codecCtx.SampleRate(),
		conv:     newSampleConverter(src.codecCtx.SampleRate(), rate, cb),
	}
	src.process = d.processFrame
	return d, nil
}

func (d *AudioDecoder) processFrame(frame *ffmpeg.AVFrame) error {
	stereo, err := extractStereo(frame, d.channels)
	if err != nil {
		return err
	}
	d.conv.deliver(stereo, d.src.position)
	d.src.position += float64(frame.NbSamples()) / float64(d.srcRate)
	return nil
}

// DecodeNextFrame drives one container packet through the decoder.
func (d *AudioDecoder) DecodeNextFrame() error {
	return d.src.handleOneFrame()
}

// Seek repositions the stream and kills the carried sample position so the
// first frame after the seek reseeds it.
func (d *AudioDecoder) Seek(seconds float64) error {
	if err := d.src.seek(seconds); err != nil {
		return err
	}
	d.conv.reset()
	return nil
}

// Duration returns the stream length in seconds.
func (d *AudioDecoder) Duration() float64 {
	return d.src.duration
}

// Close releases all FFmpeg resources.
func (d *AudioDecoder) Close() error {
	d.src.close()
	return nil
}

func frameBytes(ptr unsafe.Pointer, n int) []byte {
	return (*[1 << 30]byte)(unsafe.Pointer(ptr))[:n:n]
}

func s16Sample(b []byte, i int) float32 {
	v := int16(b[i*2]) | int16(b[i*2+1])<<8
	return float32(v) / 32768.0
}

func s32Sample(b []byte, i int) float32 {
	v := int32(b[i*4]) | int32(b[i*4+1])<<8 | int32(b[i*4+2])<<16 | int32(b[i*4+3])<<24
	return float32(float64(v) / 2147483648.0)
}

func fltSample(b []byte, i int) float32 {
	bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	return *(*float32)(unsafe.Pointer(&bits))
}

// extractStereo converts one decoded frame to interleaved stereo float32.
// Mono sources are duplicated into both channels; sources with more than two
// channels contribute their front pair.
func extractStereo(frame *ffmpeg.AVFrame, channels int) ([]float32, error) {
	nbSamples := frame.NbSamples()
	sampleFormat := frame.Format()

	stereo := make([]float32, nbSamples*audioChannels)

	var bytesPer int
	var sample func([]byte, int) float32
	switch sampleFormat {
	case 1, 6: // AVSampleFmtS16 / AVSampleFmtS16P
		bytesPer, sample = 2, s16Sample
	case 2, 7: // AVSampleFmtS32 / AVSampleFmtS32P
		bytesPer, sample = 4, s32Sample
	case 3, 8: // AVSampleFmtFlt / AVSampleFmtFltp
		bytesPer, sample = 4, fltSample
	default:
		return nil, fmt.Errorf("unsupported sample format: %d", sampleFormat)
	}

	// Planar formats start at 5: one data plane per channel.
	isPlanar := sampleFormat >= 5

	switch {
	case isPlanar && channels >= 2:
		leftPtr := frame.Data().Get(0)
		rightPtr := frame.Data().Get(1)
		if leftPtr == nil || rightPtr == nil {
			return nil, fmt.Errorf("missing channel data")
		}
		left := frameBytes(leftPtr, nbSamples*bytesPer)
		right := frameBytes(rightPtr, nbSamples*bytesPer)
		for i := 0; i < nbSamples; i++ {
			stereo[i*2] = sample(left, i)
			stereo[i*2+1] = sample(right, i)
		}

	case channels == 1:
		// Planar mono and interleaved mono share a single plane.
		dataPtr := frame.Data().Get(0)
		if dataPtr == nil {
			return nil, fmt.Errorf("no data in frame")
		}
		data := frameBytes(dataPtr, nbSamples*bytesPer)
		for i := 0; i < nbSamples; i++ {
			v := sample(data, i)
			stereo[i*2] = v
			stereo[i*2+1] = v
		}

	default:
		// Interleaved multi-channel: L R [others] L R [others] ...
		dataPtr := frame.Data().Get(0)
		if dataPtr == nil {
			return nil, fmt.Errorf("no data in frame")
		}
		data := frameBytes(dataPtr, nbSamples*channels*bytesPer)
		for i := 0; i < nbSamples; i++ {
			stereo[i*2] = sample(data, i*channels)
			stereo[i*2+1] = sample(data, i*channels+1)
		}
	}

	return stereo, nil
}
