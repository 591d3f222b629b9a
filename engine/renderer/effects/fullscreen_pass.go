package effects

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// fullscreenVertexWGSL is the shared oversized-triangle vertex stage every
// post-process pass uses.
const fullscreenVertexWGSL = `
struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    let x = f32(i32(index) / 2) * 4.0 - 1.0;
    let y = f32(i32(index) % 2) * 4.0 - 1.0;
    out.clip_position = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = vec2<f32>((x + 1.0) * 0.5, (1.0 - y) * 0.5);
    return out;
}
`

// FullscreenPass is one compiled post-process pipeline: a fullscreen
// triangle sampling the previous stage's output with a small uniform block.
type FullscreenPass struct {
	name     string
	device   *wgpu.Device
	queue    *wgpu.Queue
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	sampler  *wgpu.Sampler

	uniformSize uint64
	buffer      *wgpu.Buffer

	// extraView optionally binds a second texture (the LUT atlas).
	extraView *wgpu.TextureView
}

// NewFullscreenPass compiles a post-process pass from a fragment source.
// The fragment stage sees group 0 with: binding 0 uniforms (when
// uniformSize > 0), binding 1 the input texture, binding 2 a linear
// sampler, and binding 3 an optional extra texture.
//
// Parameters:
//   - device, queue: the GPU entry points
//   - targetFormat: the render target format
//   - name: debug label
//   - fragmentWGSL: fragment stage source defining fs_main
//   - uniformSize: byte size of the uniform block, 0 for none
//   - extraTexture: whether binding 3 is declared
//
// Returns:
//   - *FullscreenPass: the compiled pass
//   - error: shader or pipeline creation failure
func NewFullscreenPass(device *wgpu.Device, queue *wgpu.Queue, targetFormat wgpu.TextureFormat, name, fragmentWGSL string, uniformSize uint64, extraTexture bool) (*FullscreenPass, error) {
	p := &FullscreenPass{
		name:        name,
		device:      device,
		queue:       queue,
		uniformSize: uniformSize,
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         name + " Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler for %q: %w", name, err)
	}
	p.sampler = sampler

	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		},
		{
			Binding:    2,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		},
	}
	if uniformSize > 0 {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
		})
		buffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name + " Uniforms",
			Size:  uniformSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create uniform buffer for %q: %w", name, err)
		}
		p.buffer = buffer
	}
	if extraTexture {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    3,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
			},
		})
	}

	p.layout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   name + " Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create layout for %q: %w", name, err)
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: name + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fullscreenVertexWGSL + fragmentWGSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader for %q: %w", name, err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.layout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline layout for %q: %w", name, err)
	}

	p.pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  name + " Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: targetFormat, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline for %q: %w", name, err)
	}

	return p, nil
}

// Name returns the pass label.
func (p *FullscreenPass) Name() string { return p.name }

// SetExtraTexture binds the optional second texture (LUT atlas).
func (p *FullscreenPass) SetExtraTexture(view *wgpu.TextureView) {
	p.extraView = view
}

// WriteUniforms updates the pass uniform block.
func (p *FullscreenPass) WriteUniforms(data []byte) {
	if p.buffer != nil {
		p.queue.WriteBuffer(p.buffer, 0, data)
	}
}

// Record encodes the pass: one fullscreen draw reading input into target.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - input: the previous stage's output
//   - target: the render target for this stage
//
// Returns:
//   - error: bind group creation failure
func (p *FullscreenPass) Record(encoder *wgpu.CommandEncoder, input, target *wgpu.TextureView) error {
	entries := []wgpu.BindGroupEntry{
		{Binding: 1, TextureView: input},
		{Binding: 2, Sampler: p.sampler},
	}
	if p.buffer != nil {
		entries = append(entries, wgpu.BindGroupEntry{Binding: 0, Buffer: p.buffer, Size: wgpu.WholeSize})
	}
	if p.extraView != nil {
		entries = append(entries, wgpu.BindGroupEntry{Binding: 3, TextureView: p.extraView})
	}

	bindGroup, err := p.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   p.name + " Bind Group",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create bind group for %q: %w", p.name, err)
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: p.name + " Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       target,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	return nil
}
