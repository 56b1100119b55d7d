package media

import (
	"fmt"
	"unsafe"

	ffmpeg "github.com/linuxmatters/ffmpeg-statigo"
)

// VideoDecoder decodes the first video stream of a container and converts
// every frame to RGB24 at the source resolution, with the width rounded up to
// a 16 pixel alignment for downstream texture uploads.
type VideoDecoder struct {
	src      *ffmpegSource
	swsCtx   *ffmpeg.SwsContext
	dstFrame *ffmpeg.AVFrame
	width    int
	height   int
	cb       VideoCallback
}

// NewVideoDecoder opens filename and prepares the scaling context. The
// callback receives ownership of each converted frame and may block the
// decode goroutine; that is the backpressure point into any renderer.
func NewVideoDecoder(filename string, cb VideoCallback) (*VideoDecoder, error) {
	src, err := openFFmpegSource(filename, ffmpeg.AVMediaTypeVideo)
	if err != nil {
		return nil, err
	}

	srcW := src.codecCtx.Width()
	srcH := src.codecCtx.Height()
	width := (srcW + 15) &^ 15

	swsCtx := ffmpeg.SwsAllocContext()
	if swsCtx == nil {
		src.close()
		return nil, fmt.Errorf("failed to allocate scaling context")
	}
	swsCtx.SetSrcW(srcW)
	swsCtx.SetSrcH(srcH)
	swsCtx.SetSrcFormat(int(src.codecCtx.PixFmt()))
	swsCtx.SetDstW(width)
	swsCtx.SetDstH(srcH)
	swsCtx.SetDstFormat(int(ffmpeg.AVPixFmtRgb24))
	swsCtx.SetFlags(uint(ffmpeg.SwsPoint))
	ffmpeg.SwsInitContext(swsCtx, nil, nil)

	dstFrame := ffmpeg.AVFrameAlloc()
	if dstFrame == nil {
		ffmpeg.SwsFreecontext(swsCtx)
		src.close()
		return nil, fmt.Errorf("failed to allocate conversion frame")
	}
	dstFrame.SetWidth(width)
	dstFrame.SetHeight(srcH)
	dstFrame.SetFormat(int(ffmpeg.AVPixFmtRgb24))
	ret, err := ffmpeg.AVFrameGetBuffer(dstFrame, 0)
	if err != nil || ret < 0 {
		ffmpeg.AVFrameFree(&dstFrame)
		ffmpeg.SwsFreecontext(swsCtx)
		src.close()
		return nil, fmt.Errorf("failed to allocate conversion buffer")
	}

	d := &VideoDecoder{
		src:      src,
		swsCtx:   swsCtx,
		dstFrame: dstFrame,
		width:    width,
		height:   srcH,
		cb:       cb,
	}
	src.process = d.processFrame
	return d, nil
}

func (d *VideoDecoder) processFrame(frame *ffmpeg.AVFrame) error {
	ffmpeg.SwsScaleFrame(d.swsCtx, d.dstFrame, frame)

	bm := &Bitmap{
		Pix:       make([]byte, d.width*d.height*3),
		Width:     d.width,
		Height:    d.height,
		Timestamp: d.src.position,
	}

	linesize := int(d.dstFrame.Linesize().Get(0))
	dataPtr := d.dstFrame.Data().Get(0)
	if dataPtr == nil {
		return fmt.Errorf("no data in converted frame")
	}
	data := (*[1 << 30]byte)(unsafe.Pointer(dataPtr))[: d.height*linesize : d.height*linesize]

	rowBytes := d.width * 3
	for y := 0; y < d.height; y++ {
		copy(bm.Pix[y*rowBytes:(y+1)*rowBytes], data[y*linesize:y*linesize+rowBytes])
	}

	d.cb(bm)
	return nil
}

// DecodeNextFrame drives one container packet through the decoder, invoking
// the callback for every frame it produced.
func (d *VideoDecoder) DecodeNextFrame() error {
	return d.src.handleOneFrame()
}

// Seek repositions the stream; see Decoder.
func (d *VideoDecoder) Seek(seconds float64) error {
	return d.src.seek(seconds)
}

// Duration returns the stream length in seconds.
func (d *VideoDecoder) Duration() float64 {
	return d.src.duration
}

// Width returns the aligned output width in pixels.
func (d *VideoDecoder) Width() int {
	return d.width
}

// Height returns the output height in pixels.
func (d *VideoDecoder) Height() int {
	return d.height
}

// Close releases the scaler and the underlying stream.
func (d *VideoDecoder) Close() error {
	if d.dstFrame != nil {
		ffmpeg.AVFrameFree(&d.dstFrame)
	}
	if d.swsCtx != nil {
		ffmpeg.SwsFreecontext(d.swsCtx)
	}
	d.src.close()
	return nil
}
