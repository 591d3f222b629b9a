// Package media provides the video decode and upload pipeline: pixel formats,
// decoder wrappers, per-source playback state, and the multi-threaded
// decode-to-GPU frame pipeline.
package media

import (
	"fmt"
	"time"
)

// PixelFormat identifies the memory layout of a decoded video frame.
type PixelFormat int

const (
	// PixelFormatRGBA8 is 8-bit RGBA, 32 bits per pixel.
	PixelFormatRGBA8 PixelFormat = iota
	// PixelFormatBGRA8 is 8-bit BGRA, 32 bits per pixel (common on Windows capture paths).
	PixelFormatBGRA8
	// PixelFormatRGB8 is 8-bit RGB, 24 bits per pixel.
	PixelFormatRGB8
	// PixelFormatYUV420P is planar YUV 4:2:0.
	PixelFormatYUV420P
	// PixelFormatYUV422P is planar YUV 4:2:2.
	PixelFormatYUV422P
	// PixelFormatUYVY is packed YUV 4:2:2.
	PixelFormatUYVY
	// PixelFormatNV12 is a Y plane followed by an interleaved UV plane.
	PixelFormatNV12
)

// BytesPerPixel returns the number of bytes per pixel for this format.
// For planar formats this is the average across planes.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA8, PixelFormatBGRA8:
		return 4
	case PixelFormatRGB8:
		return 3
	case PixelFormatYUV422P, PixelFormatUYVY:
		return 2
	case PixelFormatYUV420P, PixelFormatNV12:
		return 1
	default:
		return 0
	}
}

// BufferSize returns the total byte count needed for a frame of this format
// at the given dimensions.
//
// Parameters:
//   - width: frame width in pixels
//   - height: frame height in pixels
//
// Returns:
//   - int: required buffer length in bytes
func (f PixelFormat) BufferSize(width, height uint32) int {
	pixels := int(width) * int(height)
	switch f {
	case PixelFormatRGBA8, PixelFormatBGRA8:
		return pixels * 4
	case PixelFormatRGB8:
		return pixels * 3
	case PixelFormatYUV422P, PixelFormatUYVY:
		return pixels * 2
	case PixelFormatYUV420P, PixelFormatNV12:
		return pixels * 3 / 2 // Y plane plus half-resolution chroma
	default:
		return 0
	}
}

// IsPlanar reports whether the format stores channels in separate planes.
func (f PixelFormat) IsPlanar() bool {
	switch f {
	case PixelFormatYUV420P, PixelFormatYUV422P, PixelFormatNV12:
		return true
	}
	return false
}

// IsYUV reports whether the format carries luma/chroma rather than RGB.
func (f PixelFormat) IsYUV() bool {
	switch f {
	case PixelFormatYUV420P, PixelFormatYUV422P, PixelFormatUYVY, PixelFormatNV12:
		return true
	}
	return false
}

// IsRGB reports whether the format carries RGB channels directly.
func (f PixelFormat) IsRGB() bool {
	switch f {
	case PixelFormatRGBA8, PixelFormatBGRA8, PixelFormatRGB8:
		return true
	}
	return false
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8:
		return "RGBA8"
	case PixelFormatBGRA8:
		return "BGRA8"
	case PixelFormatRGB8:
		return "RGB8"
	case PixelFormatYUV420P:
		return "YUV420P"
	case PixelFormatYUV422P:
		return "YUV422P"
	case PixelFormatUYVY:
		return "UYVY"
	case PixelFormatNV12:
		return "NV12"
	default:
		return "Unknown"
	}
}

// VideoFormat describes the complete shape of a video stream: resolution,
// pixel format, and frame rate.
type VideoFormat struct {
	Width       uint32      `yaml:"width"`
	Height      uint32      `yaml:"height"`
	PixelFormat PixelFormat `yaml:"pixel_format"`
	FrameRate   float32     `yaml:"frame_rate"`
}

// NewVideoFormat creates a video format description.
func NewVideoFormat(width, height uint32, pixelFormat PixelFormat, frameRate float32) VideoFormat {
	return VideoFormat{
		Width:       width,
		Height:      height,
		PixelFormat: pixelFormat,
		FrameRate:   frameRate,
	}
}

// HD1080p60RGBA returns a 1920x1080 RGBA format at 60 fps.
func HD1080p60RGBA() VideoFormat { return NewVideoFormat(1920, 1080, PixelFormatRGBA8, 60) }

// HD1080p30RGBA returns a 1920x1080 RGBA format at 30 fps.
func HD1080p30RGBA() VideoFormat { return NewVideoFormat(1920, 1080, PixelFormatRGBA8, 30) }

// HD720p60RGBA returns a 1280x720 RGBA format at 60 fps.
func HD720p60RGBA() VideoFormat { return NewVideoFormat(1280, 720, PixelFormatRGBA8, 60) }

// UHD4K60RGBA returns a 3840x2160 RGBA format at 60 fps.
func UHD4K60RGBA() VideoFormat { return NewVideoFormat(3840, 2160, PixelFormatRGBA8, 60) }

// SD480p30RGBA returns a 640x480 RGBA format at 30 fps.
func SD480p30RGBA() VideoFormat { return NewVideoFormat(640, 480, PixelFormatRGBA8, 30) }

// PixelCount returns width times height.
func (f VideoFormat) PixelCount() int {
	return int(f.Width) * int(f.Height)
}

// BufferSize returns the byte count one frame of this format occupies.
func (f VideoFormat) BufferSize() int {
	return f.PixelFormat.BufferSize(f.Width, f.Height)
}

// FrameDuration returns the nominal duration of one frame.
func (f VideoFormat) FrameDuration() time.Duration {
	if f.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(f.FrameRate))
}

// AspectRatio returns width divided by height.
func (f VideoFormat) AspectRatio() float32 {
	if f.Height == 0 {
		return 0
	}
	return float32(f.Width) / float32(f.Height)
}

// FrameMetadata carries optional provenance for a frame: the originating
// source, a monotonically increasing frame number, and a timecode string.
type FrameMetadata struct {
	SourceName  string
	FrameNumber uint64
	Timecode    string
	Custom      map[string]string
}

// WithSource returns metadata tagged with the given source name.
func WithSource(sourceName string) FrameMetadata {
	return FrameMetadata{SourceName: sourceName}
}

// AddCustom attaches an arbitrary key/value pair to the metadata.
func (m *FrameMetadata) AddCustom(key, value string) {
	if m.Custom == nil {
		m.Custom = make(map[string]string, 1)
	}
	m.Custom[key] = value
}

// VideoFrame is one decoded frame: raw pixel bytes, the format describing
// them, and a presentation timestamp.
type VideoFrame struct {
	Data     []byte
	Format   VideoFormat
	PTS      time.Duration
	Metadata FrameMetadata
}

// NewVideoFrame constructs a frame from raw bytes.
func NewVideoFrame(data []byte, format VideoFormat, pts time.Duration) VideoFrame {
	return VideoFrame{Data: data, Format: format, PTS: pts}
}

// IsValid reports whether the data length matches the format's buffer size.
func (f *VideoFrame) IsValid() bool {
	return len(f.Data) == f.Format.BufferSize()
}

// Validate returns a FrameSizeError when the frame's data does not match its
// declared format. Invalid frames are dropped before entering the pipeline;
// the decoder itself is not torn down.
func (f *VideoFrame) Validate() error {
	if expected := f.Format.BufferSize(); len(f.Data) != expected {
		return &FrameSizeError{Expected: expected, Actual: len(f.Data)}
	}
	return nil
}

// FrameSizeError reports a decoded frame whose byte length disagrees with
// its declared pixel format.
type FrameSizeError struct {
	Expected int
	Actual   int
}

func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame size mismatch: expected %d bytes, got %d", e.Expected, e.Actual)
}
