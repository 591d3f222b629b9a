// Package postfx applies the per-output post passes that run after
// compositing and before present: edge blending and color calibration.
// Both are fullscreen passes whose uniforms mirror the CPU reference math
// in the output package.
package postfx

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/output"
	"github.com/MrLongNight/mapflow-go/engine/renderer/effects"
)

const edgeBlendFragmentWGSL = `
struct EdgeBlendUniforms {
    // x: width, y: offset, z: enabled per edge
    left: vec4<f32>,
    right: vec4<f32>,
    top: vec4<f32>,
    bottom: vec4<f32>,
    gamma: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> blend: EdgeBlendUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

fn zone_factor(zone: vec4<f32>, d_in: f32) -> f32 {
    if (zone.z < 0.5 || zone.x <= 0.0) {
        return 1.0;
    }
    let d = d_in - zone.y;
    if (d >= zone.x) {
        return 1.0;
    }
    if (d <= 0.0) {
        return 0.0;
    }
    let s = smoothstep(0.0, 1.0, d / zone.x);
    return pow(s, blend.gamma);
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    var color = textureSample(input_texture, input_sampler, in.uv);
    var factor = zone_factor(blend.left, in.uv.x);
    factor = factor * zone_factor(blend.right, 1.0 - in.uv.x);
    factor = factor * zone_factor(blend.top, in.uv.y);
    factor = factor * zone_factor(blend.bottom, 1.0 - in.uv.y);
    return vec4<f32>(color.rgb * factor, color.a * factor);
}
`

const colorCalibFragmentWGSL = `
struct CalibUniforms {
    brightness: f32,
    contrast: f32,
    saturation: f32,
    temp_shift: f32,
    gamma: vec4<f32>, // r, g, b, unused
};

@group(0) @binding(0) var<uniform> calib: CalibUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    var color = textureSample(input_texture, input_sampler, in.uv);
    var c = color.rgb + vec3<f32>(calib.brightness);
    c = (c - vec3<f32>(0.5)) * calib.contrast + vec3<f32>(0.5);
    c = clamp(c, vec3<f32>(0.0), vec3<f32>(1.0));

    c = vec3<f32>(
        pow(c.r, 1.0 / max(calib.gamma.x, 0.01)),
        pow(c.g, 1.0 / max(calib.gamma.y, 0.01)),
        pow(c.b, 1.0 / max(calib.gamma.z, 0.01)),
    );

    // Black-body approximation: shift red and blue around the neutral
    // white point.
    c.r = c.r * (1.0 - 0.2 * calib.temp_shift);
    c.b = c.b * (1.0 + 0.2 * calib.temp_shift);
    c = clamp(c, vec3<f32>(0.0), vec3<f32>(1.0));

    let luma = dot(c, vec3<f32>(0.299, 0.587, 0.114));
    c = clamp(mix(vec3<f32>(luma), c, calib.saturation), vec3<f32>(0.0), vec3<f32>(1.0));
    return vec4<f32>(c, color.a);
}
`

// OutputPost owns the two per-output post passes.
type OutputPost struct {
	edgeBlend *effects.FullscreenPass
	calib     *effects.FullscreenPass
}

// NewOutputPost compiles the edge blend and calibration pipelines.
//
// Parameters:
//   - device, queue: the GPU entry points
//   - format: the output surface format
//
// Returns:
//   - *OutputPost: the post pass pair
//   - error: pipeline creation failure
func NewOutputPost(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat) (*OutputPost, error) {
	edgeBlend, err := effects.NewFullscreenPass(device, queue, format, "Edge Blend", edgeBlendFragmentWGSL, 80, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create edge blend pass: %w", err)
	}
	calib, err := effects.NewFullscreenPass(device, queue, format, "Color Calibration", colorCalibFragmentWGSL, 32, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create calibration pass: %w", err)
	}
	return &OutputPost{edgeBlend: edgeBlend, calib: calib}, nil
}

// EdgeBlendUniforms packs an edge blend configuration for the GPU.
func EdgeBlendUniforms(config output.EdgeBlendConfig) [20]float32 {
	pack := func(zone output.EdgeBlendZone) [4]float32 {
		enabled := float32(0)
		if zone.Enabled {
			enabled = 1
		}
		return [4]float32{zone.Width, zone.Offset, enabled, 0}
	}

	var u [20]float32
	copy(u[0:4], pack(config.Left)[:])
	copy(u[4:8], pack(config.Right)[:])
	copy(u[8:12], pack(config.Top)[:])
	copy(u[12:16], pack(config.Bottom)[:])
	gamma := config.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	u[16] = gamma
	return u
}

// CalibUniforms packs a color calibration for the GPU.
func CalibUniforms(calib output.ColorCalibration) [8]float32 {
	tempShift := common.Clamp((calib.ColorTemp-6500)/3500, -1, 1)
	return [8]float32{
		calib.Brightness,
		calib.Contrast,
		calib.Saturation,
		tempShift,
		calib.GammaR,
		calib.GammaG,
		calib.GammaB,
		0,
	}
}

// Record encodes both passes for one output: input through edge blending
// into the intermediate, then calibration into the surface target. Neutral
// configurations still run; the pass cost is one fullscreen draw each and
// keeping the chain unconditional keeps frame timing flat.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - config: the output's configuration
//   - input: the post-effect canvas view
//   - intermediate: scratch target between the two passes
//   - target: the surface view
//
// Returns:
//   - error: bind group creation failure
func (p *OutputPost) Record(encoder *wgpu.CommandEncoder, config *output.Config, input, intermediate, target *wgpu.TextureView) error {
	blendUniforms := EdgeBlendUniforms(config.EdgeBlend)
	p.edgeBlend.WriteUniforms(common.SliceToBytes(blendUniforms[:]))
	if err := p.edgeBlend.Record(encoder, input, intermediate); err != nil {
		return err
	}

	calibUniforms := CalibUniforms(config.ColorCalibration)
	p.calib.WriteUniforms(common.SliceToBytes(calibUniforms[:]))
	return p.calib.Record(encoder, intermediate, target)
}
