package config

// Audio settings
const (
	SampleRate   = 48000
	BufferFrames = SampleRate * 4 // ring capacity: four seconds of stereo
)

// Playback settings
const (
	DefaultVolume  = 1.0
	VolumeStep     = 0.05
	SeekStep       = 5.0  // seconds per arrow-key seek
	PrerollSeconds = 0.25 // silence played before position zero on start
)

// Buffering settings
const (
	// PrimeTimeoutMillis bounds how long playback start waits for the
	// decode goroutine to fill the initial window before playing anyway.
	PrimeTimeoutMillis = 2000
	PrimePollMillis    = 5
)

// Waveform preview settings
const (
	PreviewRate       = 2000 // mono samples per second in the preview decode
	PreviewMaxSeconds = 600  // skip the waveform entirely for longer tracks
)

// Dump settings
const (
	DumpChunkFrames = 4096 // frames drained from the ring per write
	DumpBitDepth    = 16
)
