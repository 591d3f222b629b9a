package shadergraph

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
	"github.com/MrLongNight/mapflow-go/engine/renderer/effects"
)

// Compiled is a graph turned into a runnable effect pass. It satisfies the
// effect chain's Pass interface: one fullscreen draw with the input texture
// and time uniform bound.
type Compiled struct {
	graphID GraphID
	name    string
	hash    uint64
	pass    *effects.FullscreenPass
	queue   *wgpu.Queue
}

// Name returns the source graph's name.
func (c *Compiled) Name() string { return c.name }

// Hash returns the content hash the pipeline was compiled from.
func (c *Compiled) Hash() uint64 { return c.hash }

// SetTime updates the graph's time uniform before the frame is recorded.
func (c *Compiled) SetTime(seconds float32) {
	params := [4]float32{seconds, 0, 0, 0}
	c.pass.WriteUniforms(common.SliceToBytes(params[:]))
}

// Record encodes the pass.
func (c *Compiled) Record(encoder *wgpu.CommandEncoder, input, target *wgpu.TextureView) error {
	return c.pass.Record(encoder, input, target)
}

// Compiler compiles graphs to pipelines, cached by graph content hash.
type Compiler struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	format wgpu.TextureFormat

	cache map[uint64]*Compiled
	// broken records graphs whose last compilation failed; the effect
	// chain skips them until the graph changes.
	broken map[GraphID]error
}

// NewCompiler creates a compiler targeting the given format.
func NewCompiler(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat) *Compiler {
	return &Compiler{
		device: device,
		queue:  queue,
		format: format,
		cache:  make(map[uint64]*Compiled),
		broken: make(map[GraphID]error),
	}
}

// Compile validates and compiles a graph, reusing the cached pipeline when
// the graph content is unchanged.
//
// Parameters:
//   - graph: the graph to compile
//
// Returns:
//   - *Compiled: the runnable pass
//   - error: *ValidationError for graph problems, or pipeline creation
//     failure (the graph is marked broken either way)
func (c *Compiler) Compile(graph *Graph) (*Compiled, error) {
	hash := graph.ContentHash()
	if compiled, ok := c.cache[hash]; ok {
		delete(c.broken, graph.ID)
		return compiled, nil
	}

	source, err := graph.GenerateWGSL()
	if err != nil {
		c.broken[graph.ID] = err
		return nil, err
	}

	pass, err := effects.NewFullscreenPass(c.device, c.queue, c.format, graph.Name, source, 16, false)
	if err != nil {
		err = fmt.Errorf("shader compilation for graph %q failed: %w", graph.Name, err)
		c.broken[graph.ID] = err
		log.Printf("shadergraph: %v", err)
		return nil, err
	}

	compiled := &Compiled{
		graphID: graph.ID,
		name:    graph.Name,
		hash:    hash,
		pass:    pass,
		queue:   c.queue,
	}
	c.cache[hash] = compiled
	delete(c.broken, graph.ID)
	log.Printf("shadergraph: compiled graph %q (%d nodes)", graph.Name, len(graph.Nodes))
	return compiled, nil
}

// BrokenError returns the last compile error of a graph, or nil.
func (c *Compiler) BrokenError(id GraphID) error {
	return c.broken[id]
}
