package mesh

// warpShaderSource is the WGSL for both warp pipelines. fs_main samples
// with perspective correction through the interpolated homogeneous
// coordinate; fs_main_simple is the cheaper affine path for rectangular
// meshes.
const warpShaderSource = `
struct Uniforms {
    transform: mat4x4<f32>,
    opacity: f32,
    flip_h: f32,
    flip_v: f32,
    brightness: f32,
    contrast: f32,
    saturation: f32,
    hue_shift: f32,
    _pad: f32,
};

@group(0) @binding(0) var<uniform> uniforms: Uniforms;
@group(1) @binding(0) var source_texture: texture_2d<f32>;
@group(1) @binding(1) var source_sampler: sampler;

struct VertexOutput {
    @builtin(position) clip_position: vec4<f32>,
    @location(0) tex_coords: vec2<f32>,
    @location(1) persp: vec3<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) tex_coords: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.clip_position = uniforms.transform * vec4<f32>(position, 1.0);
    var uv = tex_coords;
    if (uniforms.flip_h > 0.5) {
        uv.x = 1.0 - uv.x;
    }
    if (uniforms.flip_v > 0.5) {
        uv.y = 1.0 - uv.y;
    }
    out.tex_coords = uv;
    // Carry uv * w so the fragment stage can divide by the interpolated w
    // and recover projectively-correct coordinates.
    let w = out.clip_position.w;
    out.persp = vec3<f32>(uv * w, w);
    return out;
}

fn adjust(color: vec3<f32>) -> vec3<f32> {
    var c = color + vec3<f32>(uniforms.brightness);
    c = (c - vec3<f32>(0.5)) * uniforms.contrast + vec3<f32>(0.5);

    // Hue rotation about the gray axis in RGB space.
    let k = vec3<f32>(0.57735);
    let cos_a = cos(uniforms.hue_shift);
    let sin_a = sin(uniforms.hue_shift);
    c = c * cos_a + cross(k, c) * sin_a + k * dot(k, c) * (1.0 - cos_a);

    let luma = dot(c, vec3<f32>(0.299, 0.587, 0.114));
    c = mix(vec3<f32>(luma), c, uniforms.saturation);
    return clamp(c, vec3<f32>(0.0), vec3<f32>(1.0));
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let uv = in.persp.xy / in.persp.z;
    var color = textureSample(source_texture, source_sampler, uv);
    color = vec4<f32>(adjust(color.rgb), color.a);
    return vec4<f32>(color.rgb, color.a * uniforms.opacity);
}

@fragment
fn fs_main_simple(in: VertexOutput) -> @location(0) vec4<f32> {
    var color = textureSample(source_texture, source_sampler, in.tex_coords);
    color = vec4<f32>(adjust(color.rgb), color.a);
    return vec4<f32>(color.rgb, color.a * uniforms.opacity);
}
`
