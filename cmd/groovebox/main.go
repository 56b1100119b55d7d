package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/linuxmatters/groovebox/internal/cli"
	"github.com/linuxmatters/groovebox/internal/config"
	"github.com/linuxmatters/groovebox/internal/media"
	"github.com/linuxmatters/groovebox/internal/player"
	"github.com/linuxmatters/groovebox/internal/ui"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

var CLI struct {
	Play     PlayCmd     `cmd:"" help:"Play an audio file."`
	Dump     DumpCmd     `cmd:"" help:"Decode an audio file into a 16-bit WAV."`
	Probe    ProbeCmd    `cmd:"" help:"Show stream information for a media file."`
	Snapshot SnapshotCmd `cmd:"" help:"Extract one video frame into a PNG."`

	Verbose bool             `help:"Enable debug diagnostics." short:"v"`
	Version kong.VersionFlag `help:"Show version information."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("groovebox"),
		kong.Description("Buffered media decoding and playback for the terminal."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	media.Verbose(CLI.Verbose)

	if err := ctx.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

func requireFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	return nil
}

// PlayCmd plays an audio file with an interactive terminal UI.
type PlayCmd struct {
	Input  string  `arg:"" name:"input" help:"Audio file to play"`
	Volume float64 `help:"Initial volume (0-2)" default:"1.0"`
	Start  float64 `help:"Start position in seconds" default:"0"`
}

func (c *PlayCmd) Run() error {
	if err := requireFile(c.Input); err != nil {
		return err
	}

	buf, err := media.NewAudioBuffer(c.Input, config.SampleRate, config.BufferFrames)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Input, err)
	}
	defer buf.Close()

	p, err := player.New(player.Config{
		Buffer:         buf,
		SampleRate:     config.SampleRate,
		PrerollSeconds: config.PrerollSeconds,
		Volume:         float32(c.Volume),
	})
	if err != nil {
		return err
	}
	defer p.Close()

	if c.Start > 0 {
		p.Seek(c.Start)
	}
	if !p.Prime(config.PrimeTimeoutMillis*time.Millisecond, config.PrimePollMillis*time.Millisecond) {
		cli.PrintWarning("starting before the buffer filled, expect a rough start")
	}
	if err := p.Start(); err != nil {
		return err
	}

	model := ui.NewPlayModel(p, filepath.Base(c.Input), buf.Duration())
	prog := tea.NewProgram(model)

	// Decode the waveform preview in the background and hand it to the UI
	// when it lands. Tracks with an unknown or very long duration skip it
	// rather than show a strip covering only part of the timeline.
	if d := buf.Duration(); d > 0 && d <= config.PreviewMaxSeconds {
		go func() {
			if mono, err := media.PreviewBuffer(c.Input, config.PreviewRate, d); err == nil {
				prog.Send(ui.WaveformMsg(mono))
			}
		}()
	}

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// DumpCmd drains the decode pipeline into a WAV file, as fast as the
// decoder produces.
type DumpCmd struct {
	Input  string `arg:"" name:"input" help:"Audio file to decode"`
	Output string `arg:"" name:"output" help:"Output WAV file"`
}

func (c *DumpCmd) Run() error {
	if err := requireFile(c.Input); err != nil {
		return err
	}

	buf, err := media.NewAudioBuffer(c.Input, config.SampleRate, config.BufferFrames)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Input, err)
	}
	defer buf.Close()

	out, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.Output, err)
	}
	defer out.Close()

	const numChans = 2
	enc := wav.NewEncoder(out, config.SampleRate, config.DumpBitDepth, numChans, 1)

	total := int64(buf.Duration()*config.SampleRate) * numChans
	chunk := make([]float32, config.DumpChunkFrames*numChans)
	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: config.SampleRate},
		SourceBitDepth: config.DumpBitDepth,
	}

	start := time.Now()
	var pos int64
	// A zero duration means the container did not report one; drain until
	// the buffer reports end of stream instead.
	for total <= 0 || pos < total {
		n := int64(len(chunk))
		if total > 0 && pos+n > total {
			n = total - pos
		}
		part := chunk[:n]
		for !buf.Prepare(pos) {
			time.Sleep(config.PrimePollMillis * time.Millisecond)
		}
		for i := range part {
			part[i] = 0
		}
		if !buf.Read(part, pos, 1) {
			break
		}
		samples := make([]int, n)
		for i, v := range part {
			switch {
			case v > 1:
				samples[i] = 32767
			case v < -1:
				samples[i] = -32768
			default:
				samples[i] = int(v * 32767)
			}
		}
		intBuf.Data = samples
		if err := enc.Write(intBuf); err != nil {
			return fmt.Errorf("writing PCM: %w", err)
		}
		pos += n
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing WAV: %w", err)
	}

	cli.PrintSuccess(fmt.Sprintf("wrote %s (%s of audio in %s)",
		c.Output,
		cli.FormatTime(float64(pos)/numChans/config.SampleRate),
		time.Since(start).Round(time.Millisecond)))
	return nil
}

// ProbeCmd prints stream information without decoding.
type ProbeCmd struct {
	Input string `arg:"" name:"input" help:"Media file to inspect"`
}

func (c *ProbeCmd) Run() error {
	if err := requireFile(c.Input); err != nil {
		return err
	}

	meta, err := media.Probe(c.Input)
	if err != nil {
		return err
	}

	cli.PrintSection(filepath.Base(c.Input))
	if st, err := os.Stat(c.Input); err == nil {
		cli.PrintInfo("File Size", cli.FormatBytes(st.Size()))
	}
	if meta.SampleRate > 0 {
		cli.PrintInfo("Duration", cli.FormatTime(meta.Duration))
		cli.PrintInfo("Sample Rate", fmt.Sprintf("%d Hz", meta.SampleRate))
		cli.PrintInfo("Channels", fmt.Sprintf("%d", meta.Channels))
		cli.PrintInfo("Samples", fmt.Sprintf("%d", meta.NumSamples))
	}
	if meta.HasVideo {
		cli.PrintInfo("Video", fmt.Sprintf("%dx%d", meta.Width, meta.Height))
	}
	return nil
}

// SnapshotCmd decodes the first video frame at or after a timestamp and
// writes it as a PNG.
type SnapshotCmd struct {
	Input  string  `arg:"" name:"input" help:"Video file to read"`
	Output string  `arg:"" name:"output" help:"Output PNG file"`
	At     float64 `help:"Timestamp in seconds" default:"0"`
}

func (c *SnapshotCmd) Run() error {
	if err := requireFile(c.Input); err != nil {
		return err
	}

	var frame *media.Bitmap
	dec, err := media.NewVideoDecoder(c.Input, func(bm *media.Bitmap) {
		frame = bm
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Input, err)
	}
	defer dec.Close()

	if c.At > 0 {
		if err := dec.Seek(c.At); err != nil {
			return err
		}
	}
	// Seeking lands on the keyframe before the target, so decode forward
	// until the timestamps catch up.
	for frame == nil || frame.Timestamp < c.At {
		if err := dec.DecodeNextFrame(); err != nil {
			if err == media.ErrEndOfStream {
				break
			}
			return err
		}
	}
	if frame == nil {
		return fmt.Errorf("no video frame found in %s", c.Input)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			src := (y*frame.Width + x) * 3
			dst := img.PixOffset(x, y)
			img.Pix[dst+0] = frame.Pix[src+0]
			img.Pix[dst+1] = frame.Pix[src+1]
			img.Pix[dst+2] = frame.Pix[src+2]
			img.Pix[dst+3] = 0xFF
		}
	}

	out, err := os.Create(c.Output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.Output, err)
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}

	cli.PrintSuccess(fmt.Sprintf("wrote %s (%dx%d frame at %s)",
		c.Output, frame.Width, frame.Height, cli.FormatTime(frame.Timestamp)))
	return nil
}
