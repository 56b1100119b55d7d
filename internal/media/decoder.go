// Package media implements the decode pipeline behind groovebox playback: a
// set of decoders that turn container packets into timestamped, format
// converted frames, and the ring buffer a real-time consumer reads from while
// a background reader keeps decoding into it.
package media

import (
	"errors"
	"path/filepath"
	"strings"
)

// Interleaved stereo everywhere past the decoders.
const audioChannels = 2

// ErrEndOfStream is returned by DecodeNextFrame when the source has no more
// frames. It is a state, not a failure: a later Seek resumes decoding.
var ErrEndOfStream = errors.New("end of stream")

// Decoder is a single demultiplexed stream of one media kind. Frames are
// delivered through the callback given at construction; DecodeNextFrame
// drives exactly one source packet through the pipeline.
//
// A Decoder is not safe for concurrent use. The reader goroutine owns it.
type Decoder interface {
	// DecodeNextFrame reads source packets until one produces decoded
	// output or the end of the stream is reached.
	DecodeNextFrame() error

	// Seek repositions the stream so decoding resumes at or before a
	// keyframe covering the given time. Frames decoded before the wanted
	// position are filtered downstream by their absolute positions.
	Seek(seconds float64) error

	// Duration returns the stream length in seconds, 0 if unknown.
	Duration() float64

	// Close releases decoder resources.
	Close() error
}

// Bitmap is one converted video frame: tightly packed RGB24 rows with the
// width rounded up to a 16 pixel alignment. The callback receiving it takes
// ownership.
type Bitmap struct {
	Pix       []byte
	Width     int
	Height    int
	Timestamp float64
}

// VideoCallback receives converted video frames. It may block the decode
// goroutine until downstream has space.
type VideoCallback func(*Bitmap)

// AudioCallback receives converted PCM: interleaved stereo int16 at the
// configured output rate, plus the absolute sample position of the first
// value. The slice is reused by the decoder; copy before returning.
type AudioCallback func(samples []int16, pos int64)

// OpenAudioDecoder opens the best matching audio decoder for path: the
// pure-Go backends for the formats they cover, the FFmpeg engine for
// everything else. rate is the output sample rate.
func OpenAudioDecoder(path string, rate int, cb AudioCallback) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return NewMP3Decoder(path, rate, cb)
	case ".flac":
		return NewFLACDecoder(path, rate, cb)
	case ".wav":
		return NewWAVDecoder(path, rate, cb)
	default:
		return NewAudioDecoder(path, rate, cb)
	}
}
