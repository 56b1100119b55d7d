package media

import (
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3BytesPerFrame is the size of one decoded stereo frame: go-mp3 always
// outputs 16-bit stereo little-endian regardless of the source layout.
const mp3BytesPerFrame = 4

// MP3Decoder decodes MP3 files with a pure Go decoder, avoiding the FFmpeg
// path for the most common case.
type MP3Decoder struct {
	file    *os.File
	dec     *mp3.Decoder
	srcRate int
	bytePos int64
	conv    *sampleConverter
	buf     []byte
	stereo  []float32
}

// NewMP3Decoder opens filename as an MP3 stream.
func NewMP3Decoder(filename string, rate int, cb AudioCallback) (*MP3Decoder, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	dec, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	return &MP3Decoder{
		file:    file,
		dec:     dec,
		srcRate: dec.SampleRate(),
		conv:    newSampleConverter(dec.SampleRate(), rate, cb),
		buf:     make([]byte, 4096*mp3BytesPerFrame),
		stereo:  make([]float32, 4096*audioChannels),
	}, nil
}

// DecodeNextFrame reads one chunk of decoded PCM and pushes it through the
// converter.
func (d *MP3Decoder) DecodeNextFrame() error {
	n, err := d.dec.Read(d.buf)
	if n == 0 {
		if err == io.EOF {
			return ErrEndOfStream
		}
		if err != nil {
			return fmt.Errorf("mp3 decode: %w", err)
		}
		return nil
	}
	n -= n % mp3BytesPerFrame

	frames := n / mp3BytesPerFrame
	stereo := d.stereo[:frames*audioChannels]
	for i := 0; i < frames*audioChannels; i++ {
		v := int16(d.buf[i*2]) | int16(d.buf[i*2+1])<<8
		stereo[i] = float32(v) / 32768.0
	}

	timePos := float64(d.bytePos) / mp3BytesPerFrame / float64(d.srcRate)
	d.conv.deliver(stereo, timePos)
	d.bytePos += int64(n)
	return nil
}

// Seek repositions the decoded stream. go-mp3 seeks in decoded byte space,
// so the target converts directly from seconds.
func (d *MP3Decoder) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	offset := int64(seconds * float64(d.srcRate) * mp3BytesPerFrame)
	offset -= offset % mp3BytesPerFrame
	if _, err := d.dec.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	d.bytePos = offset
	d.conv.reset()
	return nil
}

// Duration returns the stream length in seconds.
func (d *MP3Decoder) Duration() float64 {
	return float64(d.dec.Length()) / mp3BytesPerFrame / float64(d.srcRate)
}

// Close releases the underlying file.
func (d *MP3Decoder) Close() error {
	return d.file.Close()
}
