package ndi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/engine/media"
)

type recordingSender struct {
	frames []media.VideoFrame
	closed bool
}

func (r *recordingSender) Push(frame media.VideoFrame) error {
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingSender) Close() error {
	r.closed = true
	return nil
}

func TestPushFrameValidation(t *testing.T) {
	sender := &recordingSender{}
	out := NewOutput("Stage Left", sender)
	assert.Equal(t, "Stage Left", out.Name())

	bgra := media.NewVideoFormat(4, 4, media.PixelFormatBGRA8, 60)
	frame := media.NewVideoFrame(make([]byte, bgra.BufferSize()), bgra, 0)
	require.NoError(t, out.PushFrame(frame))
	assert.Equal(t, uint64(1), out.FrameCount())
	assert.Len(t, sender.frames, 1)

	// Wrong pixel format is rejected before reaching the sender.
	rgba := media.NewVideoFormat(4, 4, media.PixelFormatRGBA8, 60)
	bad := media.NewVideoFrame(make([]byte, rgba.BufferSize()), rgba, 0)
	require.Error(t, out.PushFrame(bad))

	// Truncated data is rejected.
	short := media.NewVideoFrame(make([]byte, 3), bgra, 0)
	require.Error(t, out.PushFrame(short))
	assert.Equal(t, uint64(1), out.FrameCount())

	require.NoError(t, out.Close())
	assert.True(t, sender.closed)
}

func TestRGBAToBGRA(t *testing.T) {
	pixels := []byte{
		10, 20, 30, 255,
		1, 2, 3, 128,
	}
	RGBAToBGRA(pixels)
	assert.Equal(t, []byte{30, 20, 10, 255, 3, 2, 1, 128}, pixels)
}
