package mesh

import (
	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/mapping"
)

// GpuVertex is the vertex layout fed to the warp pipelines: a 3D position
// (Z unused) and the source texture coordinate.
type GpuVertex struct {
	Position  [3]float32
	TexCoords [2]float32
}

// gpuVertexSize is the vertex stride in bytes.
const gpuVertexSize = 20

// FromMeshVertex converts an editor vertex to its GPU layout.
func FromMeshVertex(v mapping.MeshVertex) GpuVertex {
	return GpuVertex{
		Position:  [3]float32{v.Position.X, v.Position.Y, 0},
		TexCoords: [2]float32{v.TexCoords.X, v.TexCoords.Y},
	}
}

// Uniforms is the per-draw uniform block. Field order and the trailing pad
// match the 96-byte std140 layout declared in warpShaderSource.
type Uniforms struct {
	Transform  [16]float32 // 64 bytes
	Opacity    float32
	FlipH      float32
	FlipV      float32
	Brightness float32
	Contrast   float32
	Saturation float32
	HueShift   float32
	_pad       float32 // total 96 bytes
}

// uniformsSize is the uniform block size in bytes.
const uniformsSize = 96

// NewUniforms builds the block from a transform and draw properties.
//
// Parameters:
//   - transform: the final clip-space transform (normalization already applied)
//   - opacity: draw opacity in [0, 1]
//   - flipH, flipV: source mirroring
//   - brightness, contrast, saturation, hueShift: source adjustments
//
// Returns:
//   - Uniforms: the packed block
func NewUniforms(transform [16]float32, opacity float32, flipH, flipV bool, brightness, contrast, saturation, hueShift float32) Uniforms {
	u := Uniforms{
		Transform:  transform,
		Opacity:    opacity,
		Brightness: brightness,
		Contrast:   contrast,
		Saturation: saturation,
		HueShift:   hueShift,
	}
	if flipH {
		u.FlipH = 1
	}
	if flipV {
		u.FlipV = 1
	}
	return u
}

// Bytes returns the block's raw bytes for a buffer write.
func (u *Uniforms) Bytes() []byte {
	return common.StructToBytes(u)
}

// VertexBytes flattens mesh vertices into the GPU vertex buffer layout.
func VertexBytes(m *mapping.Mesh) []byte {
	vertices := make([]GpuVertex, len(m.Vertices))
	for i, v := range m.Vertices {
		vertices[i] = FromMeshVertex(v)
	}
	return common.SliceToBytes(vertices)
}

// IndexBytes returns the mesh index buffer bytes.
func IndexBytes(m *mapping.Mesh) []byte {
	return common.SliceToBytes(m.Indices)
}
