// Package mesh draws one source texture through one warp mesh into one
// render target, with perspective-correct sampling for projective warps.
// The hot path never allocates: uniform buffers live in a per-frame ring
// and bind groups are cached across frames.
package mesh

import (
	"fmt"
	"log"
	"unsafe"
	"weak"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

// Renderer owns the two warp pipelines and their cached GPU resources.
type Renderer struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	pipeline       *wgpu.RenderPipeline // perspective-correct
	pipelineSimple *wgpu.RenderPipeline // affine

	uniformLayout *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout
	sampler       *wgpu.Sampler

	// normalization maps [0,1] UV space to clip space with Y inverted.
	// Precomputed once.
	normalization [16]float32

	ring     uniformRing
	texCache textureBindGroupCache
	buffers  map[meshBufferKey]*MeshBuffers
}

// MeshBuffers is a mesh's uploaded GPU geometry.
type MeshBuffers struct {
	Vertex     *wgpu.Buffer
	Index      *wgpu.Buffer
	IndexCount uint32
}

type meshBufferKey struct {
	layerPartID uint64
	contentHash uint64
}

// NewRenderer creates the warp renderer targeting the given surface format.
//
// Parameters:
//   - device: the GPU device
//   - queue: the submission queue
//   - targetFormat: format of every render target drawn into
//
// Returns:
//   - *Renderer: the renderer
//   - error: shader or pipeline creation failure
func NewRenderer(device *wgpu.Device, queue *wgpu.Queue, targetFormat wgpu.TextureFormat) (*Renderer, error) {
	log.Printf("mesh: creating warp renderer for %v", targetFormat)

	r := &Renderer{
		device:  device,
		queue:   queue,
		buffers: make(map[meshBufferKey]*MeshBuffers),
	}

	// [0,1] with origin top-left to clip [-1,1] with Y up:
	// scale (2, -2), translate (-1, 1).
	common.Identity(r.normalization[:])
	r.normalization[0] = 2
	r.normalization[5] = -2
	r.normalization[12] = -1
	r.normalization[13] = 1

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Mesh Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mesh sampler: %w", err)
	}
	r.sampler = sampler

	r.uniformLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Mesh Uniform Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeUniform,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uniform layout: %w", err)
	}

	r.textureLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Mesh Texture Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture layout: %w", err)
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Mesh Warp Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: warpShaderSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile warp shader: %w", err)
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Mesh Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{r.uniformLayout, r.textureLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	makePipeline := func(label, entryPoint string) (*wgpu.RenderPipeline, error) {
		return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  label,
			Layout: layout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: "vs_main",
				Buffers: []wgpu.VertexBufferLayout{
					{
						ArrayStride: gpuVertexSize,
						StepMode:    wgpu.VertexStepModeVertex,
						Attributes: []wgpu.VertexAttribute{
							{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
							{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
						},
					},
				},
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: entryPoint,
				Targets: []wgpu.ColorTargetState{
					{
						Format:    targetFormat,
						Blend:     alphaBlendState(),
						WriteMask: wgpu.ColorWriteMaskAll,
					},
				},
			},
			Primitive: wgpu.PrimitiveState{
				Topology:  wgpu.PrimitiveTopologyTriangleList,
				FrontFace: wgpu.FrontFaceCCW,
				CullMode:  wgpu.CullModeNone,
			},
			Multisample: wgpu.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
	}

	if r.pipeline, err = makePipeline("Mesh Warp Pipeline", "fs_main"); err != nil {
		return nil, fmt.Errorf("failed to create warp pipeline: %w", err)
	}
	if r.pipelineSimple, err = makePipeline("Mesh Warp Pipeline (Simple)", "fs_main_simple"); err != nil {
		return nil, fmt.Errorf("failed to create simple pipeline: %w", err)
	}

	r.ring = uniformRing{
		create: r.createRingEntry,
		write: func(buffer *wgpu.Buffer, data []byte) {
			queue.WriteBuffer(buffer, 0, data)
		},
	}
	r.texCache = textureBindGroupCache{create: r.createTextureBindGroup}

	return r, nil
}

func (r *Renderer) createRingEntry() (*wgpu.Buffer, *wgpu.BindGroup, error) {
	buffer, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Mesh Uniform Buffer",
		Size:  uniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, nil, err
	}
	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Mesh Uniform Bind Group",
		Layout: r.uniformLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		buffer.Release()
		return nil, nil, err
	}
	return buffer, bindGroup, nil
}

func (r *Renderer) createTextureBindGroup(view *wgpu.TextureView) (*wgpu.BindGroup, error) {
	return r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Mesh Texture Bind Group",
		Layout: r.textureLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: r.sampler},
		},
	})
}

// BeginFrame resets the uniform ring and prunes dead texture bind groups.
// Call once per frame before any UniformBindGroup call.
func (r *Renderer) BeginFrame() {
	r.ring.reset()
	r.texCache.prune()
}

// UniformBindGroup returns a bind group whose buffer holds the requested
// uniforms, composing the normalization matrix with the caller transform.
// Buffers are reused ring-slot by ring-slot across frames; a slot whose
// previous contents equal the request skips the buffer write.
//
// Parameters:
//   - transform: caller transform in [0,1] UV space
//   - opacity: draw opacity
//   - flipH, flipV: source mirroring
//   - brightness, contrast, saturation, hueShift: source adjustments
//
// Returns:
//   - *wgpu.BindGroup: the bind group for group 0
//   - error: buffer or bind group creation failure on ring growth
func (r *Renderer) UniformBindGroup(transform [16]float32, opacity float32, flipH, flipV bool, brightness, contrast, saturation, hueShift float32) (*wgpu.BindGroup, error) {
	var final [16]float32
	common.Mul4(final[:], r.normalization[:], transform[:])
	uniforms := NewUniforms(final, opacity, flipH, flipV, brightness, contrast, saturation, hueShift)
	return r.ring.next(uniforms)
}

// TextureBindGroup returns the cached bind group for a texture view,
// creating it on first sight. The cache key is the view's pointer
// identity, guarded by a weak reference: recreating the view recreates the
// bind group.
//
// Parameters:
//   - view: the source texture view
//
// Returns:
//   - *wgpu.BindGroup: the bind group for group 1
//   - error: bind group creation failure
func (r *Renderer) TextureBindGroup(view *wgpu.TextureView) (*wgpu.BindGroup, error) {
	return r.texCache.get(view)
}

// Buffers returns the GPU geometry for a mesh, uploading it on first use.
// The cache key is (layer part, mesh content hash), so edits allocate new
// buffers and stale geometry ages out with its layer.
//
// Parameters:
//   - layerPartID: owning layer part
//   - m: the mesh to upload
//
// Returns:
//   - *MeshBuffers: the cached geometry
//   - error: buffer creation failure
func (r *Renderer) Buffers(layerPartID uint64, m *mapping.Mesh) (*MeshBuffers, error) {
	key := meshBufferKey{layerPartID: layerPartID, contentHash: m.ContentHash()}
	if cached, ok := r.buffers[key]; ok {
		return cached, nil
	}

	vertexData := VertexBytes(m)
	vertex, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Mesh Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex buffer: %w", err)
	}
	r.queue.WriteBuffer(vertex, 0, vertexData)

	indexData := IndexBytes(m)
	index, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Mesh Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		vertex.Release()
		return nil, fmt.Errorf("failed to create index buffer: %w", err)
	}
	r.queue.WriteBuffer(index, 0, indexData)

	// Drop older geometry of the same layer; the edit that changed the
	// hash orphaned it.
	for k, old := range r.buffers {
		if k.layerPartID == layerPartID && k.contentHash != key.contentHash {
			old.Vertex.Release()
			old.Index.Release()
			delete(r.buffers, k)
		}
	}

	buffers := &MeshBuffers{Vertex: vertex, Index: index, IndexCount: uint32(len(m.Indices))}
	r.buffers[key] = buffers
	return buffers, nil
}

// Draw encodes one warp draw into the pass.
//
// Parameters:
//   - pass: the active render pass
//   - buffers: mesh geometry from Buffers
//   - uniformBindGroup: group 0 from UniformBindGroup
//   - textureBindGroup: group 1 from TextureBindGroup
//   - perspectiveCorrect: true for projective warps, false for rectangles
func (r *Renderer) Draw(pass *wgpu.RenderPassEncoder, buffers *MeshBuffers, uniformBindGroup, textureBindGroup *wgpu.BindGroup, perspectiveCorrect bool) {
	if perspectiveCorrect {
		pass.SetPipeline(r.pipeline)
	} else {
		pass.SetPipeline(r.pipelineSimple)
	}
	pass.SetBindGroup(0, uniformBindGroup, nil)
	pass.SetBindGroup(1, textureBindGroup, nil)
	pass.SetVertexBuffer(0, buffers.Vertex, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(buffers.Index, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	pass.DrawIndexed(buffers.IndexCount, 1, 0, 0, 0)
}

// uniformRing is the per-frame uniform buffer ring. reset rewinds the
// index; next returns the slot for the current draw, growing the ring on
// demand and skipping the GPU write when the slot already holds the
// requested uniforms.
type uniformRing struct {
	entries []ringEntry
	index   int

	create func() (*wgpu.Buffer, *wgpu.BindGroup, error)
	write  func(buffer *wgpu.Buffer, data []byte)

	writes uint64 // buffer writes issued, for profiling
}

type ringEntry struct {
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	last      *Uniforms
}

func (ring *uniformRing) reset() {
	ring.index = 0
}

func (ring *uniformRing) next(uniforms Uniforms) (*wgpu.BindGroup, error) {
	if ring.index >= len(ring.entries) {
		buffer, bindGroup, err := ring.create()
		if err != nil {
			return nil, fmt.Errorf("failed to grow uniform ring: %w", err)
		}
		ring.entries = append(ring.entries, ringEntry{buffer: buffer, bindGroup: bindGroup})
	}

	entry := &ring.entries[ring.index]
	if entry.last == nil || *entry.last != uniforms {
		ring.write(entry.buffer, uniforms.Bytes())
		entry.last = &uniforms
		ring.writes++
	}

	ring.index++
	return entry.bindGroup, nil
}

// textureBindGroupCache maps texture view pointer identity to its bind
// group. Entries whose views have been garbage collected are pruned each
// frame.
type textureBindGroupCache struct {
	entries map[uintptr]texCacheEntry
	create  func(view *wgpu.TextureView) (*wgpu.BindGroup, error)
}

type texCacheEntry struct {
	view      weak.Pointer[wgpu.TextureView]
	bindGroup *wgpu.BindGroup
}

func (c *textureBindGroupCache) get(view *wgpu.TextureView) (*wgpu.BindGroup, error) {
	if c.entries == nil {
		c.entries = make(map[uintptr]texCacheEntry)
	}

	key := uintptr(unsafe.Pointer(view))
	if entry, ok := c.entries[key]; ok {
		// The weak reference guards against a freed view whose address was
		// reused: the bind group is valid only while the original view is
		// still alive.
		if live := entry.view.Value(); live == view {
			return entry.bindGroup, nil
		}
	}

	bindGroup, err := c.create(view)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture bind group: %w", err)
	}
	c.entries[key] = texCacheEntry{view: weak.Make(view), bindGroup: bindGroup}
	return bindGroup, nil
}

// alphaBlendState is standard over-compositing: src alpha blending on
// color, source alpha preserved.
func alphaBlendState() *wgpu.BlendState {
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorSrcAlpha,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
		Alpha: wgpu.BlendComponent{
			Operation: wgpu.BlendOperationAdd,
			SrcFactor: wgpu.BlendFactorOne,
			DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		},
	}
}

func (c *textureBindGroupCache) prune() {
	for key, entry := range c.entries {
		if entry.view.Value() == nil {
			if entry.bindGroup != nil {
				entry.bindGroup.Release()
			}
			delete(c.entries, key)
		}
	}
}
