package media

import (
	"errors"
	"fmt"
	"sync"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

// AV_NOPTS_VALUE: timestamps with this value carry no position information.
const avNoPtsValue = int64(-1) << 63

// avcodec_open2 is documented as not thread safe; serialize it across all
// pipeline instances in the process.
var codecOpenMu sync.Mutex

var engineInfoOnce sync.Once

// ffmpegSource is the shared demux/decode skeleton of the FFmpeg-backed
// decoders: it owns the container and codec handles for exactly one stream of
// the requested media kind and tracks the current decode position in seconds.
// The specializations plug in a process func for frame conversion.
type ffmpegSource struct {
	filename    string
	formatCtx   *ffmpeg.AVFormatContext
	codecCtx    *ffmpeg.AVCodecContext
	streamIndex int

	timeBase  float64 // stream time base in seconds per tick
	startTime float64 // stream start offset in seconds, 0 if unknown
	duration  float64

	packet *ffmpeg.AVPacket
	frame  *ffmpeg.AVFrame

	// Position of the most recent frame in seconds, carried forward over
	// frames without a valid timestamp.
	position float64

	process func(*ffmpeg.AVFrame) error
}

// openFFmpegSource opens the container at filename and the codec for its
// first stream of the given media kind. Any failure here is permanent: there
// is no lazy reopen.
func openFFmpegSource(filename string, mediaType ffmpeg.AVMediaType) (*ffmpegSource, error) {
	engineInfoOnce.Do(func() {
		ffmpeg.AVLogSetLevel(ffmpeg.AVLogQuiet)
		logger.Info("ffmpeg engine initialised")
	})

	s := &ffmpegSource{filename: filename}

	path := ffmpeg.ToCStr(filename)
	defer path.Free()

	ret, err := ffmpeg.AVFormatOpenInput(&s.formatCtx, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	if ret < 0 {
		return nil, fmt.Errorf("failed to open %s: error code %d", filename, ret)
	}

	ret, err = ffmpeg.AVFormatFindStreamInfo(s.formatCtx, nil)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to find stream info: %w", err)
	}
	if ret < 0 {
		s.close()
		return nil, fmt.Errorf("failed to find stream info: error code %d", ret)
	}

	s.streamIndex = -1
	streams := s.formatCtx.Streams()
	for i := uintptr(0); i < uintptr(s.formatCtx.NbStreams()); i++ {
		if streams.Get(i).Codecpar().CodecType() == mediaType {
			s.streamIndex = int(i)
			break
		}
	}
	if s.streamIndex == -1 {
		s.close()
		return nil, fmt.Errorf("no stream of the requested kind in %s", filename)
	}

	stream := streams.Get(uintptr(s.streamIndex))
	s.timeBase = float64(stream.TimeBase().Num()) / float64(stream.TimeBase().Den())
	if st := stream.StartTime(); st != avNoPtsValue {
		s.startTime = float64(st) * s.timeBase
	}
	if d := stream.Duration(); d != avNoPtsValue && d > 0 {
		s.duration = float64(d) * s.timeBase
	}

	decoder := ffmpeg.AVCodecFindDecoder(stream.Codecpar().CodecId())
	if decoder == nil {
		s.close()
		return nil, fmt.Errorf("no decoder for codec ID %d", stream.Codecpar().CodecId())
	}

	s.codecCtx = ffmpeg.AVCodecAllocContext3(decoder)
	if s.codecCtx == nil {
		s.close()
		return nil, fmt.Errorf("failed to allocate codec context")
	}

	ret, err = ffmpeg.AVCodecParametersToContext(s.codecCtx, stream.Codecpar())
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to copy codec parameters: %w", err)
	}
	if ret < 0 {
		s.close()
		return nil, fmt.Errorf("failed to copy codec parameters: error code %d", ret)
	}

	codecOpenMu.Lock()
	ret, err = ffmpeg.AVCodecOpen2(s.codecCtx, decoder, nil)
	codecOpenMu.Unlock()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to open codec: %w", err)
	}
	if ret < 0 {
		s.close()
		return nil, fmt.Errorf("failed to open codec: error code %d", ret)
	}

	s.packet = ffmpeg.AVPacketAlloc()
	if s.packet == nil {
		s.close()
		return nil, fmt.Errorf("failed to allocate packet")
	}
	s.frame = ffmpeg.AVFrameAlloc()
	if s.frame == nil {
		s.close()
		return nil, fmt.Errorf("failed to allocate frame")
	}

	logger.Debug("opened stream", "file", filename, "stream", s.streamIndex)
	return s, nil
}

// handleOneFrame reads container packets, discarding any not belonging to the
// selected stream, until one has been driven through the decoder or the end
// of the stream is reached.
func (s *ffmpegSource) handleOneFrame() error {
	for {
		ret, err := ffmpeg.AVReadFrame(s.formatCtx, s.packet)
		if err != nil {
			if errors.Is(err, ffmpeg.AVErrorEOF) {
				return ErrEndOfStream
			}
			return fmt.Errorf("failed to read packet: %w", err)
		}
		if ret < 0 {
			return fmt.Errorf("failed to read packet: error code %d", ret)
		}

		if s.packet.StreamIndex() != s.streamIndex {
			ffmpeg.AVPacketUnref(s.packet)
			continue
		}

		err = s.decodePacket()
		ffmpeg.AVPacketUnref(s.packet)
		return err
	}
}

// decodePacket sends the pending packet to the decoder and processes every
// frame it produces. A packet yielding no frames yet is not an error; the
// decoder just needs more input.
func (s *ffmpegSource) decodePacket() error {
	ret, err := ffmpeg.AVCodecSendPacket(s.codecCtx, s.packet)
	if err != nil {
		if errors.Is(err, ffmpeg.AVErrorEOF) {
			return ErrEndOfStream
		}
		if !errors.Is(err, ffmpeg.EAgain) {
			return fmt.Errorf("failed to send packet to decoder: %w", err)
		}
	} else if ret < 0 {
		return fmt.Errorf("failed to send packet to decoder: error code %d", ret)
	}

	for {
		ret, err = ffmpeg.AVCodecReceiveFrame(s.codecCtx, s.frame)
		if err != nil {
			if errors.Is(err, ffmpeg.AVErrorEOF) {
				return ErrEndOfStream
			}
			if errors.Is(err, ffmpeg.EAgain) {
				return nil
			}
			return fmt.Errorf("failed to receive frame: %w", err)
		}
		if ret < 0 {
			return fmt.Errorf("failed to receive frame: error code %d", ret)
		}

		if pts := s.frame.Pts(); pts != avNoPtsValue {
			s.position = float64(pts)*s.timeBase - s.startTime
		}

		err = s.process(s.frame)
		ffmpeg.AVFrameUnref(s.frame)
		if err != nil {
			return err
		}
	}
}

// seek requests a backward-biased reposition so decoding resumes at or before
// a keyframe covering the given media time. Overshoot frames are filtered by
// their positions downstream, not here.
func (s *ffmpegSource) seek(seconds float64) error {
	timestamp := int64((seconds + s.startTime) / s.timeBase)
	ret, err := ffmpeg.AVSeekFrame(s.formatCtx, s.streamIndex, timestamp, ffmpeg.AVSeekFlagBackward)
	if err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if ret < 0 {
		return fmt.Errorf("failed to seek: error code %d", ret)
	}
	ffmpeg.AVCodecFlushBuffers(s.codecCtx)
	return nil
}

func (s *ffmpegSource) close() {
	if s.frame != nil {
		ffmpeg.AVFrameFree(&s.frame)
	}
	if s.packet != nil {
		ffmpeg.AVPacketFree(&s.packet)
	}
	if s.codecCtx != nil {
		ffmpeg.AVCodecFreeContext(&s.codecCtx)
	}
	if s.formatCtx != nil {
		ffmpeg.AVFormatCloseInput(&s.formatCtx)
	}
}
