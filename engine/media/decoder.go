package media

import (
	"fmt"
	"time"

	"github.com/zergon321/reisen"
)

// VideoDecoder is the minimal surface the pipeline needs from a decoder.
// Implementations wrap an external codec library; the engine never decodes
// compressed bitstreams itself.
type VideoDecoder interface {
	// NextFrame decodes and returns the next frame in presentation order.
	// The boolean is false when the stream is exhausted.
	//
	// Returns:
	//   - *VideoFrame: the decoded frame, or nil at end of stream
	//   - bool: whether a frame was produced
	//   - error: decode failure
	NextFrame() (*VideoFrame, bool, error)

	// Format returns the stream's video format.
	Format() VideoFormat

	// FPS returns the stream's nominal frame rate.
	FPS() float64

	// Duration returns the total stream duration, or 0 when unknown (live sources).
	Duration() time.Duration

	// Rewind seeks the stream back to the given offset.
	//
	// Parameters:
	//   - offset: target position from the start of the stream
	Rewind(offset time.Duration) error

	// Close releases decoder resources. The decoder is unusable afterwards.
	Close() error
}

// fileDecoder wraps a reisen (FFmpeg) media file as a VideoDecoder.
type fileDecoder struct {
	media  *reisen.Media
	stream *reisen.VideoStream
	index  int
	format VideoFormat
	frame  uint64
	path   string
}

var _ VideoDecoder = &fileDecoder{}

// NewFileDecoder opens a media file and prepares its first video stream for
// decoding. Codec probing and open failures are returned as wrapped errors.
//
// Parameters:
//   - path: filesystem path of the media file
//
// Returns:
//   - VideoDecoder: the opened decoder
//   - error: open or probe failure
func NewFileDecoder(path string) (VideoDecoder, error) {
	m, err := reisen.NewMedia(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media %q: %w", path, err)
	}

	streams := m.VideoStreams()
	if len(streams) == 0 {
		m.Close()
		return nil, fmt.Errorf("media %q has no video stream", path)
	}
	stream := streams[0]

	if err := m.OpenDecode(); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to open decode context for %q: %w", path, err)
	}
	if err := stream.Open(); err != nil {
		m.CloseDecode()
		m.Close()
		return nil, fmt.Errorf("failed to open video stream of %q: %w", path, err)
	}

	num, den := stream.FrameRate()
	fps := float32(30)
	if den > 0 && num > 0 {
		fps = float32(num) / float32(den)
	}

	d := &fileDecoder{
		media:  m,
		stream: stream,
		index:  stream.Index(),
		path:   path,
		format: NewVideoFormat(uint32(stream.Width()), uint32(stream.Height()), PixelFormatRGBA8, fps),
	}
	return d, nil
}

func (d *fileDecoder) NextFrame() (*VideoFrame, bool, error) {
	// Walk packets until one belongs to our video stream; audio and data
	// packets are skipped.
	for {
		packet, gotPacket, err := d.media.ReadPacket()
		if err != nil {
			return nil, false, fmt.Errorf("failed to read packet from %q: %w", d.path, err)
		}
		if !gotPacket {
			return nil, false, nil
		}
		if packet.Type() != reisen.StreamVideo || packet.StreamIndex() != d.index {
			continue
		}

		videoFrame, gotFrame, err := d.stream.ReadVideoFrame()
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode frame from %q: %w", d.path, err)
		}
		if !gotFrame {
			return nil, false, nil
		}
		if videoFrame == nil {
			// Decoder needs more packets before it can emit a frame.
			continue
		}

		pts, err := videoFrame.PresentationOffset()
		if err != nil {
			pts = 0
		}

		img := videoFrame.Image()
		frame := NewVideoFrame(img.Pix, d.format, pts)
		frame.Metadata = FrameMetadata{SourceName: d.path, FrameNumber: d.frame}
		d.frame++

		if err := frame.Validate(); err != nil {
			// Drop the malformed frame and keep the decoder alive.
			return nil, false, err
		}
		return &frame, true, nil
	}
}

func (d *fileDecoder) Format() VideoFormat { return d.format }

func (d *fileDecoder) FPS() float64 { return float64(d.format.FrameRate) }

func (d *fileDecoder) Duration() time.Duration {
	dur, err := d.stream.Duration()
	if err != nil {
		return 0
	}
	return dur
}

func (d *fileDecoder) Rewind(offset time.Duration) error {
	if err := d.stream.Rewind(offset); err != nil {
		return fmt.Errorf("failed to rewind %q: %w", d.path, err)
	}
	d.frame = 0
	return nil
}

func (d *fileDecoder) Close() error {
	d.stream.Close()
	d.media.CloseDecode()
	d.media.Close()
	return nil
}

// testPatternDecoder produces synthetic RGBA frames without touching a codec.
// Used by tests; no engine path substitutes it for a file decoder.
type testPatternDecoder struct {
	format   VideoFormat
	duration time.Duration
	elapsed  time.Duration
	frame    uint64
}

var _ VideoDecoder = &testPatternDecoder{}

// NewTestPatternDecoder creates a decoder that emits a moving color ramp.
//
// Parameters:
//   - width, height: frame dimensions in pixels
//   - duration: total stream length; 0 means unbounded
//   - fps: frame rate of the synthetic stream
//
// Returns:
//   - VideoDecoder: the pattern decoder
func NewTestPatternDecoder(width, height uint32, duration time.Duration, fps float32) VideoDecoder {
	return &testPatternDecoder{
		format:   NewVideoFormat(width, height, PixelFormatRGBA8, fps),
		duration: duration,
	}
}

func (d *testPatternDecoder) NextFrame() (*VideoFrame, bool, error) {
	if d.duration > 0 && d.elapsed >= d.duration {
		return nil, false, nil
	}

	data := make([]byte, d.format.BufferSize())
	phase := byte(d.frame % 256)
	w := int(d.format.Width)
	for y := 0; y < int(d.format.Height); y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			data[i] = byte(x) + phase
			data[i+1] = byte(y)
			data[i+2] = phase
			data[i+3] = 255
		}
	}

	frame := NewVideoFrame(data, d.format, d.elapsed)
	frame.Metadata = FrameMetadata{SourceName: "test-pattern", FrameNumber: d.frame}
	d.frame++
	d.elapsed += d.format.FrameDuration()
	return &frame, true, nil
}

func (d *testPatternDecoder) Format() VideoFormat { return d.format }

func (d *testPatternDecoder) FPS() float64 { return float64(d.format.FrameRate) }

func (d *testPatternDecoder) Duration() time.Duration { return d.duration }

func (d *testPatternDecoder) Rewind(offset time.Duration) error {
	d.elapsed = offset
	d.frame = 0
	if fd := d.format.FrameDuration(); fd > 0 {
		d.frame = uint64(offset / fd)
	}
	return nil
}

func (d *testPatternDecoder) Close() error { return nil }
