package shadergraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresOutputNode(t *testing.T) {
	graph := NewGraph(1, "empty")
	err := graph.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Messages[0][0], "no Output node")
}

func TestValidateRejectsMultipleOutputs(t *testing.T) {
	graph := NewGraph(1, "double")
	graph.AddNode(NodeOutput)
	graph.AddNode(NodeOutput)

	err := graph.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Messages[0][0], "2 Output nodes")
}

func TestConnectTypeChecking(t *testing.T) {
	graph := NewGraph(1, "types")
	uv := graph.AddNode(NodeUV)
	sample := graph.AddNode(NodeTextureSample)
	add := graph.AddNode(NodeAdd)

	// Vec2 into Vec2: fine.
	require.NoError(t, graph.Connect(Connection{FromNode: uv, FromSocket: "uv", ToNode: sample, ToSocket: "uv"}))

	// Vec2 into Float: rejected.
	err := graph.Connect(Connection{FromNode: uv, FromSocket: "uv", ToNode: add, ToSocket: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type mismatch")

	// Unknown sockets are rejected.
	require.Error(t, graph.Connect(Connection{FromNode: uv, FromSocket: "nope", ToNode: sample, ToSocket: "uv"}))
	require.Error(t, graph.Connect(Connection{FromNode: uv, FromSocket: "uv", ToNode: sample, ToSocket: "nope"}))

	// Occupied input socket.
	uv2 := graph.AddNode(NodeUV)
	err = graph.Connect(Connection{FromNode: uv2, FromSocket: "uv", ToNode: sample, ToSocket: "uv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestColorVec4Interchange(t *testing.T) {
	graph := NewGraph(1, "colors")
	color := graph.AddNode(NodeColorConst)
	invert := graph.AddNode(NodeInvert)
	require.NoError(t, graph.Connect(Connection{FromNode: color, FromSocket: "color", ToNode: invert, ToSocket: "color"}))
}

func TestConnectRejectsCycles(t *testing.T) {
	graph := NewGraph(1, "cycle")
	a := graph.AddNode(NodeAdd)
	b := graph.AddNode(NodeAdd)

	require.NoError(t, graph.Connect(Connection{FromNode: a, FromSocket: "value", ToNode: b, ToSocket: "a"}))
	err := graph.Connect(Connection{FromNode: b, FromSocket: "value", ToNode: a, ToSocket: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	// Self loop.
	require.Error(t, graph.Connect(Connection{FromNode: a, FromSocket: "value", ToNode: a, ToSocket: "b"}))
}

func buildSampleGraph(t *testing.T) *Graph {
	t.Helper()
	graph := NewGraph(7, "grade")
	uv := graph.AddNode(NodeUV)
	sample := graph.AddNode(NodeTextureSample)
	gray := graph.AddNode(NodeGrayscale)
	out := graph.AddNode(NodeOutput)

	require.NoError(t, graph.Connect(Connection{FromNode: uv, FromSocket: "uv", ToNode: sample, ToSocket: "uv"}))
	require.NoError(t, graph.Connect(Connection{FromNode: sample, FromSocket: "color", ToNode: gray, ToSocket: "color"}))
	require.NoError(t, graph.Connect(Connection{FromNode: gray, FromSocket: "color", ToNode: out, ToSocket: "color"}))
	return graph
}

func TestGenerateWGSL(t *testing.T) {
	graph := buildSampleGraph(t)

	source, err := graph.GenerateWGSL()
	require.NoError(t, err)

	assert.Contains(t, source, "fn fs_main")
	assert.Contains(t, source, "textureSample(input_texture, input_sampler")
	assert.Contains(t, source, "dot(", "grayscale emits a luma dot product")
	assert.True(t, strings.Contains(source, "return n3_color"),
		"output returns the grayscale node's binding:\n%s", source)
}

func TestGenerateElidesUnreachableBranches(t *testing.T) {
	graph := buildSampleGraph(t)
	// A stray node wired to nothing must not appear in the source.
	stray := graph.AddNode(NodeSin)

	source, err := graph.GenerateWGSL()
	require.NoError(t, err)
	assert.NotContains(t, source, varName(stray, "value"))
}

func TestGenerateInlinesDefaults(t *testing.T) {
	graph := NewGraph(1, "defaults")
	mix := graph.AddNode(NodeMix)
	out := graph.AddNode(NodeOutput)
	require.NoError(t, graph.Connect(Connection{FromNode: mix, FromSocket: "color", ToNode: out, ToSocket: "color"}))

	source, err := graph.GenerateWGSL()
	require.NoError(t, err)

	// Unconnected t input inlines its default 0.5.
	assert.Contains(t, source, "0.5")
	// Unconnected color inputs inline vec4 constants.
	assert.Contains(t, source, "vec4<f32>(0.0, 0.0, 0.0, 1.0)")
}

func TestFloatConstFormatting(t *testing.T) {
	assert.Equal(t, "1.0", wgslFloat(1))
	assert.Equal(t, "0.5", wgslFloat(0.5))
	assert.Equal(t, "-2.0", wgslFloat(-2))
}

func TestContentHashStability(t *testing.T) {
	graph1 := buildSampleGraph(t)
	graph2 := buildSampleGraph(t)
	assert.Equal(t, graph1.ContentHash(), graph2.ContentHash(),
		"identical graphs hash identically")

	// Changing a parameter changes the hash.
	graph2.Nodes[0].Params[0] = 0.25
	assert.NotEqual(t, graph1.ContentHash(), graph2.ContentHash())

	// Adding a node changes the hash.
	graph3 := buildSampleGraph(t)
	graph3.AddNode(NodeSin)
	assert.NotEqual(t, graph1.ContentHash(), graph3.ContentHash())
}

func TestRemoveNodeDropsConnections(t *testing.T) {
	graph := buildSampleGraph(t)
	require.True(t, graph.RemoveNode(2)) // the texture sample node

	for _, c := range graph.Connections {
		assert.NotEqual(t, NodeID(2), c.FromNode)
		assert.NotEqual(t, NodeID(2), c.ToNode)
	}
}

func TestNodeCatalogCategories(t *testing.T) {
	assert.Equal(t, "Input", NodeUV.Category())
	assert.Equal(t, "Math", NodeMix.Category())
	assert.Equal(t, "Color", NodeGrayscale.Category())
	assert.Equal(t, "Texture", NodeTextureSample.Category())
	assert.Equal(t, "Effects", NodeWave.Category())
	assert.Equal(t, "Utility", NodeCombine.Category())
	assert.Equal(t, "Output", NodeOutput.Category())
}
