package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allPixelFormats = []PixelFormat{
	PixelFormatRGBA8,
	PixelFormatBGRA8,
	PixelFormatRGB8,
	PixelFormatYUV420P,
	PixelFormatYUV422P,
	PixelFormatUYVY,
	PixelFormatNV12,
}

func TestBufferSizeCoversBytesPerPixel(t *testing.T) {
	sizes := [][2]uint32{{1, 1}, {2, 2}, {640, 480}, {1920, 1080}, {3840, 2160}}

	for _, f := range allPixelFormats {
		for _, wh := range sizes {
			w, h := wh[0], wh[1]
			pixels := int(w) * int(h)
			got := f.BufferSize(w, h)
			assert.GreaterOrEqual(t, got, pixels*f.BytesPerPixel(),
				"%s %dx%d", f, w, h)
			if !f.IsPlanar() {
				// Packed formats occupy exactly pixels * bpp.
				assert.Equal(t, pixels*f.BytesPerPixel(), got, "%s %dx%d", f, w, h)
			}
		}
	}
}

func TestPlanarBufferSizes(t *testing.T) {
	// Chroma subsampled formats carry fractional per-pixel overheads that
	// BytesPerPixel (an average) underreports.
	assert.Equal(t, 1920*1080*3/2, PixelFormatYUV420P.BufferSize(1920, 1080))
	assert.Equal(t, 1920*1080*3/2, PixelFormatNV12.BufferSize(1920, 1080))
	assert.Equal(t, 1920*1080*2, PixelFormatYUV422P.BufferSize(1920, 1080))
	assert.Equal(t, 1920*1080*2, PixelFormatUYVY.BufferSize(1920, 1080))
}

func TestVideoFrameValidity(t *testing.T) {
	format := SD480p30RGBA()

	valid := NewVideoFrame(make([]byte, format.BufferSize()), format, 0)
	assert.True(t, valid.IsValid())
	assert.NoError(t, valid.Validate())

	short := NewVideoFrame(make([]byte, format.BufferSize()-1), format, 0)
	assert.False(t, short.IsValid())

	err := short.Validate()
	require.Error(t, err)
	var sizeErr *FrameSizeError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, format.BufferSize(), sizeErr.Expected)
	assert.Equal(t, format.BufferSize()-1, sizeErr.Actual)
}

func TestVideoFormatPresets(t *testing.T) {
	f := HD1080p60RGBA()
	assert.Equal(t, uint32(1920), f.Width)
	assert.Equal(t, uint32(1080), f.Height)
	assert.Equal(t, 1920*1080*4, f.BufferSize())
	assert.InDelta(t, 16.0/9.0, float64(f.AspectRatio()), 1e-4)
	assert.Equal(t, time.Second/60, f.FrameDuration())
}

func TestTestPatternDecoderProducesValidFrames(t *testing.T) {
	d := NewTestPatternDecoder(64, 48, time.Second, 30)
	defer d.Close()

	frame, ok, err := d.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, frame.IsValid())
	assert.Equal(t, uint64(0), frame.Metadata.FrameNumber)

	frame2, ok, err := d.NextFrame()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), frame2.Metadata.FrameNumber)
	assert.Greater(t, frame2.PTS, frame.PTS)
}

func TestTestPatternDecoderEndOfStream(t *testing.T) {
	d := NewTestPatternDecoder(8, 8, 200*time.Millisecond, 25)
	defer d.Close()

	frames := 0
	for {
		_, ok, err := d.NextFrame()
		require.NoError(t, err)
		if !ok {
			break
		}
		frames++
		require.Less(t, frames, 100, "decoder never signalled end of stream")
	}
	// 200ms at 25fps (40ms per frame) is 5 whole frames.
	assert.Equal(t, 5, frames)

	require.NoError(t, d.Rewind(0))
	_, ok, err := d.NextFrame()
	require.NoError(t, err)
	assert.True(t, ok)
}
