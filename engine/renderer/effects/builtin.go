package effects

// Fragment sources for the built-in effects. Each is appended to the shared
// fullscreen vertex stage by NewFullscreenPass.

// BlitFragment is the pass-through fragment stage, exported for thumbnail
// and preview passes outside this package.
const BlitFragment = blitFragmentWGSL

const blitFragmentWGSL = `
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(input_texture, input_sampler, in.uv);
}
`

const blurFragmentWGSL = `
struct BlurUniforms {
    radius: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> params: BlurUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let size = vec2<f32>(textureDimensions(input_texture));
    let texel = params.radius / size;
    var sum = vec4<f32>(0.0);
    // 9-tap box kernel scaled by the radius.
    for (var y = -1; y <= 1; y = y + 1) {
        for (var x = -1; x <= 1; x = x + 1) {
            let offset = vec2<f32>(f32(x), f32(y)) * texel;
            sum = sum + textureSample(input_texture, input_sampler, in.uv + offset);
        }
    }
    return sum / 9.0;
}
`

const glowFragmentWGSL = `
struct GlowUniforms {
    intensity: f32,
    threshold: f32,
    _pad0: f32,
    _pad1: f32,
};

@group(0) @binding(0) var<uniform> params: GlowUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let base = textureSample(input_texture, input_sampler, in.uv);
    let size = vec2<f32>(textureDimensions(input_texture));
    let texel = 2.0 / size;
    var halo = vec3<f32>(0.0);
    for (var y = -2; y <= 2; y = y + 1) {
        for (var x = -2; x <= 2; x = x + 1) {
            let offset = vec2<f32>(f32(x), f32(y)) * texel;
            let sample_color = textureSample(input_texture, input_sampler, in.uv + offset).rgb;
            let luma = dot(sample_color, vec3<f32>(0.299, 0.587, 0.114));
            halo = halo + sample_color * max(luma - params.threshold, 0.0);
        }
    }
    halo = halo / 25.0 * params.intensity;
    return vec4<f32>(base.rgb + halo, base.a);
}
`

const edgeDetectFragmentWGSL = `
struct EdgeUniforms {
    strength: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> params: EdgeUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

fn luma_at(uv: vec2<f32>) -> f32 {
    let c = textureSample(input_texture, input_sampler, uv).rgb;
    return dot(c, vec3<f32>(0.299, 0.587, 0.114));
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let size = vec2<f32>(textureDimensions(input_texture));
    let texel = 1.0 / size;

    // Sobel kernels.
    let tl = luma_at(in.uv + vec2<f32>(-texel.x, -texel.y));
    let tc = luma_at(in.uv + vec2<f32>(0.0, -texel.y));
    let tr = luma_at(in.uv + vec2<f32>(texel.x, -texel.y));
    let ml = luma_at(in.uv + vec2<f32>(-texel.x, 0.0));
    let mr = luma_at(in.uv + vec2<f32>(texel.x, 0.0));
    let bl = luma_at(in.uv + vec2<f32>(-texel.x, texel.y));
    let bc = luma_at(in.uv + vec2<f32>(0.0, texel.y));
    let br = luma_at(in.uv + vec2<f32>(texel.x, texel.y));

    let gx = -tl - 2.0 * ml - bl + tr + 2.0 * mr + br;
    let gy = -tl - 2.0 * tc - tr + bl + 2.0 * bc + br;
    let edge = sqrt(gx * gx + gy * gy) * params.strength;

    let alpha = textureSample(input_texture, input_sampler, in.uv).a;
    return vec4<f32>(vec3<f32>(edge), alpha);
}
`

const lutFragmentWGSL = `
struct LutUniforms {
    size: f32,
    mix_amount: f32,
    _pad0: f32,
    _pad1: f32,
};

@group(0) @binding(0) var<uniform> params: LutUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;
@group(0) @binding(3) var lut_atlas: texture_2d<f32>;

// The LUT lives in a size x size^2 atlas: R across a row, G down within a
// slice, slices stacked by B. Sample the two bracketing slices bilinearly
// and mix for the trilinear result.
fn sample_lut(color: vec3<f32>) -> vec3<f32> {
    let n = params.size;
    let b = clamp(color.b, 0.0, 1.0) * (n - 1.0);
    let slice0 = floor(b);
    let slice1 = min(slice0 + 1.0, n - 1.0);
    let bf = b - slice0;

    let u = (clamp(color.r, 0.0, 1.0) * (n - 1.0) + 0.5) / n;
    let row = clamp(color.g, 0.0, 1.0) * (n - 1.0) + 0.5;

    let v0 = (slice0 * n + row) / (n * n);
    let v1 = (slice1 * n + row) / (n * n);

    let c0 = textureSample(lut_atlas, input_sampler, vec2<f32>(u, v0)).rgb;
    let c1 = textureSample(lut_atlas, input_sampler, vec2<f32>(u, v1)).rgb;
    return mix(c0, c1, bf);
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let color = textureSample(input_texture, input_sampler, in.uv);
    let graded = sample_lut(color.rgb);
    return vec4<f32>(mix(color.rgb, graded, params.mix_amount), color.a);
}
`
