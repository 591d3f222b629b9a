package texture_pool

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool wires the pool's GPU entry points to counters so the slot
// bookkeeping can be exercised without a device.
func newTestPool() (*pool, *testAlloc) {
	alloc := &testAlloc{}
	p := newPoolCore()
	p.create = func(name string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
		if alloc.failCreate {
			return nil, nil, errors.New("out of memory")
		}
		alloc.created++
		return nil, &wgpu.TextureView{}, nil
	}
	p.write = func(s *slot, data []byte, width, height uint32, bytesPerPixel int) {
		alloc.writes++
	}
	p.destroy = func(texture *wgpu.Texture, view *wgpu.TextureView) {
		alloc.destroyed++
	}
	return p, alloc
}

type testAlloc struct {
	created    int
	writes     int
	destroyed  int
	failCreate bool
}

const (
	fmtRGBA = wgpu.TextureFormatRGBA8Unorm
	usageTB = wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
)

func TestEnsureCreatesOnce(t *testing.T) {
	p, alloc := newTestPool()

	view1, err := p.Ensure("part_1_1", 64, 64, fmtRGBA, usageTB)
	require.NoError(t, err)
	require.NotNil(t, view1)
	assert.Equal(t, 1, alloc.created)

	// Unchanged shape returns the identical view pointer.
	view2, err := p.Ensure("part_1_1", 64, 64, fmtRGBA, usageTB)
	require.NoError(t, err)
	assert.Same(t, view1, view2)
	assert.Equal(t, 1, alloc.created)

	assert.True(t, p.Has("part_1_1"))
	assert.Same(t, view1, p.View("part_1_1"))
}

func TestEnsureReallocatesOnShapeChange(t *testing.T) {
	p, alloc := newTestPool()

	view1, err := p.Ensure("slot", 64, 64, fmtRGBA, usageTB)
	require.NoError(t, err)

	view2, err := p.Ensure("slot", 128, 64, fmtRGBA, usageTB)
	require.NoError(t, err)
	assert.NotSame(t, view1, view2)
	assert.Equal(t, 2, alloc.created)

	// The old resource is retired, not destroyed immediately.
	assert.Equal(t, 0, alloc.destroyed)
}

func TestDeferredDestructionAtFramePlusTwo(t *testing.T) {
	p, alloc := newTestPool()

	p.BeginFrame(10)
	_, err := p.Ensure("slot", 64, 64, fmtRGBA, usageTB)
	require.NoError(t, err)

	// Reallocation at frame 10 buries the old texture.
	_, err = p.Ensure("slot", 32, 32, fmtRGBA, usageTB)
	require.NoError(t, err)
	assert.Equal(t, 0, alloc.destroyed)

	p.BeginFrame(11)
	p.Upload("slot", make([]byte, 32*32*4), 32, 32, 4)
	assert.Equal(t, 0, alloc.destroyed, "one frame of grace remains")

	p.BeginFrame(12)
	assert.Equal(t, 1, alloc.destroyed, "buried resource reaped at N+2")
	assert.True(t, p.Has("slot"), "the live slot survives")
}

func TestUntouchedSlotsReaped(t *testing.T) {
	p, _ := newTestPool()

	p.BeginFrame(1)
	_, err := p.Ensure("stale", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)

	// Touched every frame: survives.
	p.BeginFrame(2)
	p.View("stale")
	p.BeginFrame(3)
	p.View("stale")
	p.BeginFrame(4)
	assert.True(t, p.Has("stale"))

	// Untouched for the reap window: collected.
	p.BeginFrame(5)
	p.BeginFrame(6)
	p.BeginFrame(7)
	p.BeginFrame(8)
	assert.False(t, p.Has("stale"))
}

func TestUploadValidation(t *testing.T) {
	p, alloc := newTestPool()

	require.Error(t, p.Upload("missing", nil, 8, 8, 4))

	_, err := p.Ensure("slot", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)

	require.NoError(t, p.Upload("slot", make([]byte, 8*8*4), 8, 8, 4))
	assert.Equal(t, 1, alloc.writes)

	// Mismatched shape invalidates the slot.
	require.Error(t, p.Upload("slot", make([]byte, 16*16*4), 16, 16, 4))
	assert.False(t, p.Has("slot"))

	// The invalidated slot rejects further uploads until recreated.
	require.Error(t, p.Upload("slot", make([]byte, 8*8*4), 8, 8, 4))

	// The next Ensure recreates it transparently.
	_, err = p.Ensure("slot", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)
	assert.True(t, p.Has("slot"))
	require.NoError(t, p.Upload("slot", make([]byte, 8*8*4), 8, 8, 4))
}

func TestUploadRejectsShortBuffer(t *testing.T) {
	p, _ := newTestPool()
	_, err := p.Ensure("slot", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)

	err = p.Upload("slot", make([]byte, 10), 8, 8, 4)
	require.Error(t, err)
	assert.False(t, p.Has("slot"))
}

func TestEnsureAndUpload(t *testing.T) {
	p, alloc := newTestPool()

	err := p.EnsureAndUpload("part_2_3", make([]byte, 16*16*4), 16, 16, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, alloc.created)
	assert.Equal(t, 1, alloc.writes)

	// A frame with a new size reshapes the slot in one call.
	err = p.EnsureAndUpload("part_2_3", make([]byte, 32*32*4), 32, 32, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.created)
}

func TestEnsureFailureSurfaces(t *testing.T) {
	p, alloc := newTestPool()
	alloc.failCreate = true

	_, err := p.Ensure("slot", 8, 8, fmtRGBA, usageTB)
	require.Error(t, err)
	assert.False(t, p.Has("slot"))
}

func TestInvalidateAndRelease(t *testing.T) {
	p, alloc := newTestPool()

	_, err := p.Ensure("a", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)
	_, err = p.Ensure("b", 8, 8, fmtRGBA, usageTB)
	require.NoError(t, err)

	p.Invalidate("a")
	assert.False(t, p.Has("a"))
	assert.True(t, p.Has("b"))

	p.Release()
	assert.False(t, p.Has("b"))
	assert.Equal(t, 2, alloc.destroyed)
}
