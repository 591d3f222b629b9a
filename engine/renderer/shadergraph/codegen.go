package shadergraph

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// GenerateWGSL emits the fragment stage for a validated graph. Each
// reachable node becomes one let-binding with a fresh name; constants are
// inlined and unreachable branches never appear.
//
// Returns:
//   - string: the fragment WGSL (fs_main plus its uniforms)
//   - error: validation failure
func (g *Graph) GenerateWGSL() (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}

	ordered := g.reachableFromOutput()
	output := g.OutputNode()

	var body strings.Builder
	for _, node := range ordered {
		if node.Type == NodeOutput {
			continue
		}
		expr := g.nodeExpression(node)
		outs := node.Outputs()
		if len(outs) == 0 {
			continue
		}
		fmt.Fprintf(&body, "    let %s: %s = %s;\n",
			varName(node.ID, outs[0].Name), outs[0].Type.WGSLType(), expr)
	}

	finalColor := g.inputExpression(output, output.Inputs()[0])

	var src strings.Builder
	src.WriteString(`struct GraphUniforms {
    time: f32,
    _pad0: f32,
    _pad1: f32,
    _pad2: f32,
};

@group(0) @binding(0) var<uniform> graph: GraphUniforms;
@group(0) @binding(1) var input_texture: texture_2d<f32>;
@group(0) @binding(2) var input_sampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
`)
	src.WriteString(body.String())
	fmt.Fprintf(&src, "    return %s;\n}\n", finalColor)
	return src.String(), nil
}

// varName builds the fresh binding name for a node output.
func varName(id NodeID, socket string) string {
	return fmt.Sprintf("n%d_%s", id, socket)
}

// inputExpression resolves what a node input reads: the connected output's
// binding, or the socket's inlined default.
func (g *Graph) inputExpression(node *Node, socket InputSocket) string {
	for _, c := range g.Connections {
		if c.ToNode == node.ID && c.ToSocket == socket.Name {
			return varName(c.FromNode, c.FromSocket)
		}
	}
	// Unconnected: inline the default.
	switch socket.Type {
	case TypeFloat:
		return wgslFloat(socket.Default)
	case TypeVec2:
		return "in.uv"
	case TypeColor, TypeVec4:
		return fmt.Sprintf("vec4<f32>(%s, %s, %s, %s)",
			wgslFloat(socket.DefaultVec[0]), wgslFloat(socket.DefaultVec[1]),
			wgslFloat(socket.DefaultVec[2]), wgslFloat(socket.DefaultVec[3]))
	default:
		return "0.0"
	}
}

// nodeExpression emits the expression computing a node's first output.
func (g *Graph) nodeExpression(node *Node) string {
	in := func(index int) string {
		return g.inputExpression(node, node.Inputs()[index])
	}

	switch node.Type {
	case NodeUV:
		return "in.uv"
	case NodeTime:
		return "graph.time"
	case NodeFloatConst:
		return wgslFloat(node.Params[0])
	case NodeColorConst:
		return fmt.Sprintf("vec4<f32>(%s, %s, %s, %s)",
			wgslFloat(node.Params[0]), wgslFloat(node.Params[1]),
			wgslFloat(node.Params[2]), wgslFloat(node.Params[3]))
	case NodeAdd:
		return fmt.Sprintf("(%s + %s)", in(0), in(1))
	case NodeMultiply:
		return fmt.Sprintf("(%s * %s)", in(0), in(1))
	case NodeMix:
		return fmt.Sprintf("mix(%s, %s, %s)", in(0), in(1), in(2))
	case NodeSin:
		return fmt.Sprintf("sin(%s)", in(0))
	case NodeClamp:
		return fmt.Sprintf("clamp(%s, %s, %s)", in(0), in(1), in(2))
	case NodeGrayscale:
		return fmt.Sprintf("vec4<f32>(vec3<f32>(dot((%s).rgb, vec3<f32>(0.299, 0.587, 0.114))), (%s).a)", in(0), in(0))
	case NodeInvert:
		return fmt.Sprintf("vec4<f32>(vec3<f32>(1.0) - (%s).rgb, (%s).a)", in(0), in(0))
	case NodeTextureSample:
		return fmt.Sprintf("textureSample(input_texture, input_sampler, %s)", in(0))
	case NodePixelate:
		return fmt.Sprintf("(floor(%s * %s) / %s)", in(0), in(1), in(1))
	case NodeWave:
		return fmt.Sprintf("(%s + vec2<f32>(sin((%s).y * 20.0 + %s) * %s, 0.0))", in(0), in(0), in(1), in(2))
	case NodeCombine:
		return fmt.Sprintf("vec4<f32>(%s, %s, %s, 1.0)", in(0), in(1), in(2))
	default:
		return "0.0"
	}
}

// wgslFloat formats a float constant with a decimal point so WGSL treats
// it as f32.
func wgslFloat(v float32) string {
	s := fmt.Sprintf("%g", v)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ContentHash returns a stable hash of the graph's compilable content:
// node types, parameters, and connections. Two graphs that generate the
// same pipeline hash identically.
func (g *Graph) ContentHash() uint64 {
	h := fnv.New64a()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		writeU64(node.ID)
		writeU64(uint64(node.Type))
		for _, p := range node.Params {
			writeU64(uint64(math.Float32bits(p)))
		}
	}
	for _, c := range g.Connections {
		writeU64(c.FromNode)
		writeU64(c.ToNode)
		h.Write([]byte(c.FromSocket))
		h.Write([]byte(c.ToSocket))
	}
	return h.Sum64()
}
