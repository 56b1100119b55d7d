// Package player drives a playback device from a media.AudioBuffer. The
// device data callback is the real-time consumer: it mixes buffered samples
// straight into the output stream and never blocks on decoder progress.
package player

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/linuxmatters/groovebox/internal/media"
)

const channels = 2

// Config holds playback device settings.
type Config struct {
	Buffer         *media.AudioBuffer
	SampleRate     int
	PrerollSeconds float64 // silence played before position zero on start
	Volume         float32
}

// Player owns the audio device. The consumer position, volume and pause
// state are adjusted concurrently by the UI; the data callback snapshots
// them under the lock.
type Player struct {
	buf  *media.AudioBuffer
	ctx  *malgo.AllocatedContext
	dev  *malgo.Device
	rate int

	mu       sync.Mutex
	pos      int64 // next interleaved sample to read
	volume   float32
	paused   bool
	finished bool
}

// New initializes the playback device. The device does not produce sound
// until Start is called.
func New(cfg Config) (*Player, error) {
	p := &Player{
		buf:    cfg.Buffer,
		rate:   cfg.SampleRate,
		pos:    -int64(cfg.PrerollSeconds*float64(cfg.SampleRate)) * channels,
		volume: cfg.Volume,
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio context init failed: %w", err)
	}
	p.ctx = ctx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: p.onSamples,
	}
	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		ctx.Uninit() //nolint:errcheck
		return nil, fmt.Errorf("playback device init failed: %w", err)
	}
	p.dev = dev
	return p, nil
}

// onSamples runs on the device thread. The output buffer arrives zeroed, so
// pausing or running off the end of the stream plays silence.
func (p *Player) onSamples(out, _ []byte, frameCount uint32) {
	if frameCount == 0 || len(out) == 0 {
		return
	}

	p.mu.Lock()
	pos, volume, paused := p.pos, p.volume, p.paused
	p.mu.Unlock()
	if paused {
		return
	}

	samples := unsafe.Slice((*float32)(unsafe.Pointer(&out[0])), int(frameCount)*channels)
	if !p.buf.Read(samples, pos, volume) {
		p.mu.Lock()
		p.finished = true
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if p.pos == pos {
		// Only advance if no seek landed while we were mixing.
		p.pos = pos + int64(len(samples))
	}
	p.mu.Unlock()
}

// Prime polls the buffer until enough data is ready at the current position
// to start without an underrun, or the timeout passes.
func (p *Player) Prime(timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		pos := p.pos
		p.mu.Unlock()
		if p.buf.Prepare(pos) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// Start begins playback.
func (p *Player) Start() error {
	if err := p.dev.Start(); err != nil {
		return fmt.Errorf("playback start failed: %w", err)
	}
	return nil
}

// Pause silences output while keeping the device running, so Resume is
// glitch-free.
func (p *Player) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume continues playback after Pause.
func (p *Player) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Paused reports whether output is currently silenced.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Position returns the current playback position in seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.pos) / channels / float64(p.rate)
}

// Seek jumps the consumer position. The next device callback registers the
// jump with the buffer, which replays silence until the decoder catches up.
func (p *Player) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if d := p.buf.Duration(); d > 0 && seconds > d {
		seconds = d
	}
	p.mu.Lock()
	p.pos = int64(seconds*float64(p.rate)) * channels
	p.finished = false
	p.mu.Unlock()
}

// SetVolume sets the mixing volume, clamped to [0, 2].
func (p *Player) SetVolume(volume float32) {
	if volume < 0 {
		volume = 0
	}
	if volume > 2 {
		volume = 2
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// Volume returns the current mixing volume.
func (p *Player) Volume() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Finished reports whether playback ran off the end of the stream.
func (p *Player) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Close stops and releases the audio device. The buffer is owned by the
// caller and stays open.
func (p *Player) Close() {
	p.dev.Uninit()
	p.ctx.Uninit() //nolint:errcheck
}
