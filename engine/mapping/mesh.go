// Package mapping holds the warp geometry the mesh renderer draws: meshes of
// UV-space vertices produced by the mapping editor and consumed per frame by
// the render pipeline.
package mapping

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/MrLongNight/mapflow-go/common"
)

// MeshVertex pairs a destination position on the output surface with the
// texture coordinate sampled from the source. Both are normalized [0, 1].
type MeshVertex struct {
	Position  common.Vec2 `yaml:"position"`
	TexCoords common.Vec2 `yaml:"tex_coords"`
}

// NewMeshVertex creates a vertex.
func NewMeshVertex(position, texCoords common.Vec2) MeshVertex {
	return MeshVertex{Position: position, TexCoords: texCoords}
}

// Mesh is a triangle-list warp mesh. Vertices are mutated by editing;
// the renderer caches GPU buffers keyed by the mesh content hash.
type Mesh struct {
	Vertices []MeshVertex `yaml:"vertices"`
	Indices  []uint16     `yaml:"indices"`
}

// NewQuadMesh returns a unit quad covering the full output with identity
// texture coordinates.
func NewQuadMesh() Mesh {
	return Mesh{
		Vertices: []MeshVertex{
			{Position: common.Vec2{X: 0, Y: 0}, TexCoords: common.Vec2{X: 0, Y: 0}},
			{Position: common.Vec2{X: 1, Y: 0}, TexCoords: common.Vec2{X: 1, Y: 0}},
			{Position: common.Vec2{X: 1, Y: 1}, TexCoords: common.Vec2{X: 1, Y: 1}},
			{Position: common.Vec2{X: 0, Y: 1}, TexCoords: common.Vec2{X: 0, Y: 1}},
		},
		Indices: []uint16{0, 1, 2, 0, 2, 3},
	}
}

// NewGridMesh returns a subdivided quad with cols x rows cells. Subdivision
// gives warp editing enough control points for curved surfaces.
//
// Parameters:
//   - cols, rows: cell counts per axis (minimum 1)
//
// Returns:
//   - Mesh: the subdivided mesh
func NewGridMesh(cols, rows int) Mesh {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	var mesh Mesh
	for y := 0; y <= rows; y++ {
		for x := 0; x <= cols; x++ {
			u := float32(x) / float32(cols)
			v := float32(y) / float32(rows)
			mesh.Vertices = append(mesh.Vertices, MeshVertex{
				Position:  common.Vec2{X: u, Y: v},
				TexCoords: common.Vec2{X: u, Y: v},
			})
		}
	}

	stride := cols + 1
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := uint16(y*stride + x)
			mesh.Indices = append(mesh.Indices,
				i, i+1, i+uint16(stride),
				i+1, i+uint16(stride)+1, i+uint16(stride),
			)
		}
	}
	return mesh
}

// IsEmpty reports whether the mesh has no triangles.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) < 3 || len(m.Vertices) == 0
}

// ContentHash returns a stable hash over vertices and indices. Identical
// geometry hashes identically, so GPU buffer caches can key on it.
func (m *Mesh) ContentHash() uint64 {
	h := fnv.New64a()
	var buf [4]byte
	writeF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	for _, vert := range m.Vertices {
		writeF32(vert.Position.X)
		writeF32(vert.Position.Y)
		writeF32(vert.TexCoords.X)
		writeF32(vert.TexCoords.Y)
	}
	for _, idx := range m.Indices {
		binary.LittleEndian.PutUint16(buf[:2], idx)
		h.Write(buf[:2])
	}
	return h.Sum64()
}
