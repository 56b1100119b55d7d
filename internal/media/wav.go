package media

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes PCM WAV files with a pure Go decoder.
type WAVDecoder struct {
	file        *os.File
	dec         *wav.Decoder
	srcRate     int
	channels    int
	totalFrames int64
	pos         int64 // next source frame to decode
	conv        *sampleConverter
	chunk       *audio.IntBuffer
}

// NewWAVDecoder opens filename as a WAV stream.
func NewWAVDecoder(filename string, rate int, cb AudioCallback) (*WAVDecoder, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	dec, err := newWAVStream(file)
	if err != nil {
		file.Close()
		return nil, err
	}

	channels := int(dec.NumChans)
	d := &WAVDecoder{
		file:        file,
		dec:         dec,
		srcRate:     int(dec.SampleRate),
		channels:    channels,
		totalFrames: int64(dec.PCMLen()) / int64(channels),
		conv:        newSampleConverter(int(dec.SampleRate), rate, cb),
		chunk: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  int(dec.SampleRate),
			},
			Data: make([]int, 4096*channels),
		},
	}
	return d, nil
}

func newWAVStream(file *os.File) (*wav.Decoder, error) {
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate PCM data: %w", err)
	}
	return dec, nil
}

// DecodeNextFrame reads one chunk of PCM and pushes it through the
// converter.
func (d *WAVDecoder) DecodeNextFrame() error {
	n, err := d.dec.PCMBuffer(d.chunk)
	if n == 0 {
		if err == nil || err == io.EOF {
			return ErrEndOfStream
		}
		return fmt.Errorf("wav decode: %w", err)
	}
	n -= n % d.channels

	frames := n / d.channels
	scale := float32(int64(1) << (d.dec.BitDepth - 1))
	stereo := make([]float32, frames*audioChannels)
	for i := 0; i < frames; i++ {
		l := float32(d.chunk.Data[i*d.channels]) / scale
		r := l
		if d.channels >= 2 {
			r = float32(d.chunk.Data[i*d.channels+1]) / scale
		}
		stereo[i*2] = l
		stereo[i*2+1] = r
	}

	timePos := float64(d.pos) / float64(d.srcRate)
	d.conv.deliver(stereo, timePos)
	d.pos += int64(frames)
	return nil
}

// Seek rewinds the file and skips forward to the target frame; the WAV
// decoder has no native seeking.
func (d *WAVDecoder) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	if _, err := d.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav seek: %w", err)
	}
	dec, err := newWAVStream(d.file)
	if err != nil {
		return err
	}
	d.dec = dec
	d.pos = 0

	target := int64(seconds * float64(d.srcRate))
	if target > d.totalFrames {
		target = d.totalFrames
	}
	skip := &audio.IntBuffer{
		Format: d.chunk.Format,
		Data:   make([]int, 4096*d.channels),
	}
	for d.pos < target {
		want := target - d.pos
		if want > 4096 {
			want = 4096
		}
		skip.Data = skip.Data[:want*int64(d.channels)]
		n, err := d.dec.PCMBuffer(skip)
		if n == 0 {
			if err != nil && err != io.EOF {
				return fmt.Errorf("wav seek: %w", err)
			}
			break
		}
		d.pos += int64(n / d.channels)
	}
	d.conv.reset()
	return nil
}

// Duration returns the stream length in seconds.
func (d *WAVDecoder) Duration() float64 {
	return float64(d.totalFrames) / float64(d.srcRate)
}

// Close releases the underlying file.
func (d *WAVDecoder) Close() error {
	return d.file.Close()
}
