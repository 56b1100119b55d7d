package media

import (
	"fmt"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

// Metadata holds stream information about a media file.
type Metadata struct {
	SampleRate int
	Channels   int
	NumSamples int64
	Duration   float64 // in seconds
	HasVideo   bool
	Width      int
	Height     int
}

// Probe uses ffmpeg to extract accurate media file metadata without
// decoding any frames.
func Probe(filename string) (*Metadata, error) {
	var inputCtx *ffmpeg.AVFormatContext
	path := ffmpeg.ToCStr(filename)
	defer path.Free()

	ret, err := ffmpeg.AVFormatOpenInput(&inputCtx, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("failed to open media file: %d", ret)
	}
	defer ffmpeg.AVFormatCloseInput(&inputCtx)

	ret, err = ffmpeg.AVFormatFindStreamInfo(inputCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find stream info: %w", err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("failed to find stream info: %d", ret)
	}

	meta := &Metadata{}
	audioStreamIdx := -1
	streams := inputCtx.Streams()
	for i := uintptr(0); i < uintptr(inputCtx.NbStreams()); i++ {
		stream := streams.Get(i)
		switch stream.Codecpar().CodecType() {
		case ffmpeg.AVMediaTypeAudio:
			if audioStreamIdx == -1 {
				audioStreamIdx = int(i)
			}
		case ffmpeg.AVMediaTypeVideo:
			if !meta.HasVideo {
				meta.HasVideo = true
				meta.Width = int(stream.Codecpar().Width())
				meta.Height = int(stream.Codecpar().Height())
			}
		}
	}
	if audioStreamIdx == -1 && !meta.HasVideo {
		return nil, fmt.Errorf("no audio or video stream found in file")
	}

	if audioStreamIdx >= 0 {
		audioStream := streams.Get(uintptr(audioStreamIdx))
		codecpar := audioStream.Codecpar()

		meta.SampleRate = int(codecpar.SampleRate())
		meta.Channels = codecpar.ChLayout().NbChannels()

		// Duration is in stream time_base units.
		meta.Duration = float64(audioStream.Duration()) * float64(audioStream.TimeBase().Num()) / float64(audioStream.TimeBase().Den())
		meta.NumSamples = int64(meta.Duration * float64(meta.SampleRate))
	}

	return meta, nil
}
