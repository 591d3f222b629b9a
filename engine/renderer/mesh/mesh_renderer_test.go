package mesh

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

func TestGpuVertexConversion(t *testing.T) {
	v := mapping.NewMeshVertex(common.Vec2{X: 0.5, Y: 0.5}, common.Vec2{X: 0.25, Y: 0.75})
	gpu := FromMeshVertex(v)

	assert.Equal(t, [3]float32{0.5, 0.5, 0}, gpu.Position)
	assert.Equal(t, [2]float32{0.25, 0.75}, gpu.TexCoords)
}

func TestUniformsLayout(t *testing.T) {
	var u Uniforms
	assert.Equal(t, uniformsSize, len(u.Bytes()), "uniform block must be 96 bytes for the std140 layout")

	var v GpuVertex
	assert.Equal(t, gpuVertexSize, len(common.StructToBytes(&v)))
}

func TestVertexBytesLayout(t *testing.T) {
	quad := mapping.NewQuadMesh()
	data := VertexBytes(&quad)
	assert.Equal(t, len(quad.Vertices)*gpuVertexSize, len(data))

	idx := IndexBytes(&quad)
	assert.Equal(t, len(quad.Indices)*2, len(idx))
}

// newTestRing wires the ring to fakes so the reuse bookkeeping can be
// exercised without a device.
func newTestRing() (*uniformRing, *int, *int) {
	created := 0
	writes := 0
	ring := &uniformRing{
		create: func() (*wgpu.Buffer, *wgpu.BindGroup, error) {
			created++
			return &wgpu.Buffer{}, &wgpu.BindGroup{}, nil
		},
		write: func(buffer *wgpu.Buffer, data []byte) {
			writes++
		},
	}
	return ring, &created, &writes
}

func testUniforms(opacity float32) Uniforms {
	var transform [16]float32
	common.Identity(transform[:])
	return NewUniforms(transform, opacity, false, false, 0, 1, 1, 0)
}

func TestUniformRingReusesBuffersAcrossFrames(t *testing.T) {
	ring, created, writes := newTestRing()

	// Frame 1: three draws allocate three slots.
	ring.reset()
	bg1, err := ring.next(testUniforms(0.1))
	require.NoError(t, err)
	bg2, err := ring.next(testUniforms(0.2))
	require.NoError(t, err)
	bg3, err := ring.next(testUniforms(0.3))
	require.NoError(t, err)
	assert.Equal(t, 3, *created)
	assert.Equal(t, 3, *writes)

	// Frame 2 with identical uniforms: same bind groups, no new buffers,
	// no buffer writes.
	ring.reset()
	again1, err := ring.next(testUniforms(0.1))
	require.NoError(t, err)
	again2, err := ring.next(testUniforms(0.2))
	require.NoError(t, err)
	again3, err := ring.next(testUniforms(0.3))
	require.NoError(t, err)

	assert.Same(t, bg1, again1)
	assert.Same(t, bg2, again2)
	assert.Same(t, bg3, again3)
	assert.Equal(t, 3, *created, "no reallocation across frames")
	assert.Equal(t, 3, *writes, "equal uniforms skip the buffer write")
}

func TestUniformRingWritesOnChange(t *testing.T) {
	ring, created, writes := newTestRing()

	ring.reset()
	_, err := ring.next(testUniforms(0.5))
	require.NoError(t, err)

	ring.reset()
	_, err = ring.next(testUniforms(0.7))
	require.NoError(t, err)

	assert.Equal(t, 1, *created)
	assert.Equal(t, 2, *writes, "changed uniforms rewrite the slot")
}

func TestTextureBindGroupCachePointerIdentity(t *testing.T) {
	created := 0
	cache := textureBindGroupCache{
		create: func(view *wgpu.TextureView) (*wgpu.BindGroup, error) {
			created++
			return &wgpu.BindGroup{}, nil
		},
	}

	view1 := &wgpu.TextureView{}
	view2 := &wgpu.TextureView{}

	bg1, err := cache.get(view1)
	require.NoError(t, err)
	bg1Again, err := cache.get(view1)
	require.NoError(t, err)
	assert.Same(t, bg1, bg1Again, "same view resolves to the cached bind group")
	assert.Equal(t, 1, created)

	bg2, err := cache.get(view2)
	require.NoError(t, err)
	assert.NotSame(t, bg1, bg2)
	assert.Equal(t, 2, created)
}

func TestNormalizationMatrix(t *testing.T) {
	// The normalization maps (0,0) to clip (-1,1) and (1,1) to (1,-1).
	var normalization [16]float32
	common.Identity(normalization[:])
	normalization[0] = 2
	normalization[5] = -2
	normalization[12] = -1
	normalization[13] = 1

	apply := func(x, y float32) (float32, float32) {
		outX := normalization[0]*x + normalization[12]
		outY := normalization[5]*y + normalization[13]
		return outX, outY
	}

	x, y := apply(0, 0)
	assert.Equal(t, float32(-1), x)
	assert.Equal(t, float32(1), y)

	x, y = apply(1, 1)
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(-1), y)

	x, y = apply(0.5, 0.5)
	assert.Equal(t, float32(0), x)
	assert.Equal(t, float32(0), y)
}
