package media

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC files with a pure Go decoder supporting native
// sample-accurate seeking.
type FLACDecoder struct {
	file    *os.File
	stream  *flac.Stream
	srcRate int
	pos     int64 // next source frame to decode
	conv    *sampleConverter
}

// NewFLACDecoder opens filename as a FLAC stream.
func NewFLACDecoder(filename string, rate int, cb AudioCallback) (*FLACDecoder, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stream, err := flac.NewSeek(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create FLAC decoder: %w", err)
	}

	return &FLACDecoder{
		file:    file,
		stream:  stream,
		srcRate: int(stream.Info.SampleRate),
		conv:    newSampleConverter(int(stream.Info.SampleRate), rate, cb),
	}, nil
}

// DecodeNextFrame parses one FLAC frame and pushes its samples through the
// converter.
func (d *FLACDecoder) DecodeNextFrame() error {
	frame, err := d.stream.ParseNext()
	if err != nil {
		if err == io.EOF {
			return ErrEndOfStream
		}
		return fmt.Errorf("flac decode: %w", err)
	}

	nbSamples := len(frame.Subframes[0].Samples)
	scale := float32(int64(1) << (frame.BitsPerSample - 1))

	stereo := make([]float32, nbSamples*audioChannels)
	left := frame.Subframes[0].Samples
	if len(frame.Subframes) >= 2 {
		right := frame.Subframes[1].Samples
		for i := 0; i < nbSamples; i++ {
			stereo[i*2] = float32(left[i]) / scale
			stereo[i*2+1] = float32(right[i]) / scale
		}
	} else {
		for i := 0; i < nbSamples; i++ {
			v := float32(left[i]) / scale
			stereo[i*2] = v
			stereo[i*2+1] = v
		}
	}

	timePos := float64(d.pos) / float64(d.srcRate)
	d.conv.deliver(stereo, timePos)
	d.pos += int64(nbSamples)
	return nil
}

// Seek repositions the stream to the given time. The underlying library
// lands on the frame boundary at or before the requested sample.
func (d *FLACDecoder) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	target := uint64(seconds * float64(d.srcRate))
	actual, err := d.stream.Seek(target)
	if err != nil {
		return fmt.Errorf("flac seek: %w", err)
	}
	d.pos = int64(actual)
	d.conv.reset()
	return nil
}

// Duration returns the stream length in seconds.
func (d *FLACDecoder) Duration() float64 {
	return float64(d.stream.Info.NSamples) / float64(d.srcRate)
}

// Close releases the underlying file.
func (d *FLACDecoder) Close() error {
	d.stream.Close()
	return d.file.Close()
}
