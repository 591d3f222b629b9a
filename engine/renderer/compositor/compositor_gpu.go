package compositor

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
)

// blitShaderSource draws one layer texture as a fullscreen triangle with a
// single opacity uniform. The blend equation comes from the pipeline.
const blitShaderSource = `
struct LayerUniforms {
    opacity: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> layer: LayerUniforms;
@group(0) @binding(1) var layer_texture: texture_2d<f32>;
@group(0) @binding(2) var layer_sampler: sampler;

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    // Oversized fullscreen triangle.
    var out: VertexOutput;
    let x = f32(i32(index) / 2) * 4.0 - 1.0;
    let y = f32(i32(index) % 2) * 4.0 - 1.0;
    out.clip_position = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = vec2<f32>((x + 1.0) * 0.5, (1.0 - y) * 0.5);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let color = textureSample(layer_texture, layer_sampler, in.uv);
    return vec4<f32>(color.rgb, color.a * layer.opacity);
}
`

// Compositor owns one blit pipeline per blend mode and composites resolved
// layers into a target.
type Compositor struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	layout    *wgpu.BindGroupLayout
	sampler   *wgpu.Sampler
	pipelines map[BlendMode]*wgpu.RenderPipeline
}

// NewCompositor builds the blend pipelines for the given target format.
//
// Parameters:
//   - device: the GPU device
//   - queue: the submission queue
//   - targetFormat: the canvas format
//
// Returns:
//   - *Compositor: the compositor
//   - error: pipeline creation failure
func NewCompositor(device *wgpu.Device, queue *wgpu.Queue, targetFormat wgpu.TextureFormat) (*Compositor, error) {
	log.Printf("compositor: creating blend pipelines for %v", targetFormat)

	c := &Compositor{
		device:    device,
		queue:     queue,
		pipelines: make(map[BlendMode]*wgpu.RenderPipeline),
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Compositor Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor sampler: %w", err)
	}
	c.sampler = sampler

	c.layout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Compositor Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
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
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor layout: %w", err)
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Compositor Blit Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: blitShaderSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile compositor shader: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Compositor Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.layout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create compositor pipeline layout: %w", err)
	}

	for _, mode := range []BlendMode{BlendNormal, BlendAdd, BlendMultiply, BlendScreen} {
		pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:  "Compositor Pipeline " + mode.String(),
			Layout: pipelineLayout,
			Vertex: wgpu.VertexState{
				Module:     module,
				EntryPoint: "vs_main",
			},
			Fragment: &wgpu.FragmentState{
				Module:     module,
				EntryPoint: "fs_main",
				Targets: []wgpu.ColorTargetState{
					{
						Format:    targetFormat,
						Blend:     mode.BlendState(),
						WriteMask: wgpu.ColorWriteMaskAll,
					},
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
			return nil, fmt.Errorf("failed to create %s blend pipeline: %w", mode, err)
		}
		c.pipelines[mode] = pipeline
	}

	return c, nil
}

// LayerInput pairs a resolved layer with its rendered texture.
type LayerInput struct {
	Resolved ResolvedLayer
	View     *wgpu.TextureView
}

// Composite encodes the layer stack blend into targetView. The target is
// cleared to transparent black first so empty layers cannot leak stale
// content.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - layers: resolved layers bottom to top with their textures
//   - targetView: the canvas render target
//
// Returns:
//   - error: bind group creation failure
func (c *Compositor) Composite(encoder *wgpu.CommandEncoder, layers []LayerInput, targetView *wgpu.TextureView) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Composite Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       targetView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	defer pass.End()

	for _, input := range layers {
		if input.View == nil {
			continue
		}
		bindGroup, err := c.layerBindGroup(input)
		if err != nil {
			return err
		}
		mode := input.Resolved.Layer.Blend
		if input.Resolved.FlattenGroup != nil {
			// A layer of a flattened group is drawn straight onto the
			// target with the group's blend mode; no intermediate group
			// target is allocated.
			mode = input.Resolved.FlattenGroup.Blend
		}
		pipeline, ok := c.pipelines[mode]
		if !ok {
			pipeline = c.pipelines[BlendNormal]
		}
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}
	return nil
}

func (c *Compositor) layerBindGroup(input LayerInput) (*wgpu.BindGroup, error) {
	uniforms := [4]float32{input.Resolved.EffectiveOpacity, 0, 0, 0}
	buffer, err := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Layer Uniform Buffer",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create layer uniform buffer: %w", err)
	}
	c.queue.WriteBuffer(buffer, 0, common.SliceToBytes(uniforms[:]))

	bindGroup, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Layer Bind Group",
		Layout: c.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buffer, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: input.View},
			{Binding: 2, Sampler: c.sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create layer bind group: %w", err)
	}
	return bindGroup, nil
}
