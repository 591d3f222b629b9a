package effects

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/MrLongNight/mapflow-go/common"
)

// Pass is one recordable post-process stage. Compiled shader graphs and the
// built-in effects both satisfy it.
type Pass interface {
	// Name returns the pass label.
	Name() string

	// Record encodes one fullscreen draw from input into target.
	Record(encoder *wgpu.CommandEncoder, input, target *wgpu.TextureView) error
}

// BuiltinKind names the effects the chain can instantiate without a shader
// graph.
type BuiltinKind int

const (
	BuiltinBlur BuiltinKind = iota
	BuiltinGlow
	BuiltinEdgeDetect
	BuiltinLut
)

// Effect is one chain entry: an ordered, toggleable pass with parameters.
type Effect struct {
	ID      uint64
	Name    string
	Enabled bool
	Params  map[string]float32
	// LutSelection names the library LUT a LUT effect applies.
	LutSelection string

	pass   Pass
	broken bool
}

// SetParam updates a parameter; the new value reaches the GPU on the next
// Run.
func (e *Effect) SetParam(name string, value float32) {
	if e.Params == nil {
		e.Params = make(map[string]float32)
	}
	e.Params[name] = value
}

// Param reads a parameter with a fallback default.
func (e *Effect) Param(name string, def float32) float32 {
	if v, ok := e.Params[name]; ok {
		return v
	}
	return def
}

// MarkBroken flags the effect after a compile failure; Run skips it until
// it is replaced.
func (e *Effect) MarkBroken() { e.broken = true }

// Broken reports whether the effect is skipped.
func (e *Effect) Broken() bool { return e.broken }

// Chain executes ordered effects by ping-ponging between two intermediate
// targets, ending at the caller's output target.
type Chain struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	format wgpu.TextureFormat

	effects []*Effect
	blit    *FullscreenPass
	library *LutLibrary

	nextID uint64

	// Ping-pong intermediates, reallocated on size change.
	targets     [2]*wgpu.Texture
	targetViews [2]*wgpu.TextureView
	width       uint32
	height      uint32
}

// NewChain creates an empty chain rendering at the given format.
//
// Parameters:
//   - device, queue: the GPU entry points
//   - format: the render target format
//   - library: the LUT catalog for LUT effects
//
// Returns:
//   - *Chain: the chain
//   - error: blit pipeline creation failure
func NewChain(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat, library *LutLibrary) (*Chain, error) {
	blit, err := NewFullscreenPass(device, queue, format, "Chain Blit", blitFragmentWGSL, 0, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain blit pass: %w", err)
	}
	return &Chain{
		device:  device,
		queue:   queue,
		format:  format,
		blit:    blit,
		library: library,
	}, nil
}

// Effects returns the chain entries in execution order.
func (c *Chain) Effects() []*Effect { return c.effects }

// AddBuiltin appends a built-in effect and returns it.
//
// Parameters:
//   - kind: which built-in to instantiate
//
// Returns:
//   - *Effect: the chain entry
//   - error: pipeline creation failure
func (c *Chain) AddBuiltin(kind BuiltinKind) (*Effect, error) {
	var (
		pass *FullscreenPass
		name string
		err  error
	)
	switch kind {
	case BuiltinBlur:
		name = "Blur"
		pass, err = NewFullscreenPass(c.device, c.queue, c.format, name, blurFragmentWGSL, 16, false)
	case BuiltinGlow:
		name = "Glow"
		pass, err = NewFullscreenPass(c.device, c.queue, c.format, name, glowFragmentWGSL, 16, false)
	case BuiltinEdgeDetect:
		name = "Edge Detect"
		pass, err = NewFullscreenPass(c.device, c.queue, c.format, name, edgeDetectFragmentWGSL, 16, false)
	case BuiltinLut:
		name = "LUT"
		pass, err = NewFullscreenPass(c.device, c.queue, c.format, name, lutFragmentWGSL, 16, true)
	default:
		return nil, fmt.Errorf("unknown builtin effect %d", kind)
	}
	if err != nil {
		return nil, err
	}

	c.nextID++
	effect := &Effect{
		ID:      c.nextID,
		Name:    name,
		Enabled: true,
		pass:    pass,
	}
	c.effects = append(c.effects, effect)
	return effect, nil
}

// AddPass appends an externally compiled pass (a shader graph pipeline).
func (c *Chain) AddPass(pass Pass) *Effect {
	c.nextID++
	effect := &Effect{
		ID:      c.nextID,
		Name:    pass.Name(),
		Enabled: true,
		pass:    pass,
	}
	c.effects = append(c.effects, effect)
	return effect
}

// Remove deletes an effect by ID.
func (c *Chain) Remove(id uint64) bool {
	for i, e := range c.effects {
		if e.ID == id {
			c.effects = append(c.effects[:i], c.effects[i+1:]...)
			return true
		}
	}
	return false
}

// activeEffects returns the passes Run will execute.
func (c *Chain) activeEffects() []*Effect {
	var active []*Effect
	for _, e := range c.effects {
		if e.Enabled && !e.broken && e.pass != nil {
			active = append(active, e)
		}
	}
	return active
}

// ensureTargets keeps the ping-pong intermediates matched to the frame size.
func (c *Chain) ensureTargets(width, height uint32) error {
	if c.width == width && c.height == height && c.targetViews[0] != nil {
		return nil
	}
	for i := range c.targets {
		if c.targetViews[i] != nil {
			c.targetViews[i].Release()
		}
		if c.targets[i] != nil {
			c.targets[i].Release()
		}
		texture, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: fmt.Sprintf("Effect Ping-Pong %d", i),
			Size: wgpu.Extent3D{
				Width:              width,
				Height:             height,
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        c.format,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		})
		if err != nil {
			return fmt.Errorf("failed to create effect intermediate: %w", err)
		}
		view, err := texture.CreateView(nil)
		if err != nil {
			texture.Release()
			return fmt.Errorf("failed to create effect intermediate view: %w", err)
		}
		c.targets[i] = texture
		c.targetViews[i] = view
	}
	c.width = width
	c.height = height
	return nil
}

// Run executes the chain: source through every active effect, ending at
// output. With no active effects the source is blitted straight through.
//
// Parameters:
//   - encoder: the frame's command encoder
//   - source: the composited canvas view
//   - output: the final target view
//   - width, height: frame size for the intermediates
//
// Returns:
//   - error: GPU resource failure; the frame should be skipped
func (c *Chain) Run(encoder *wgpu.CommandEncoder, source, output *wgpu.TextureView, width, height uint32) error {
	active := c.activeEffects()
	if len(active) == 0 {
		return c.blit.Record(encoder, source, output)
	}

	if err := c.ensureTargets(width, height); err != nil {
		return err
	}

	c.uploadParams(active)

	input := source
	for i, effect := range active {
		target := output
		if i < len(active)-1 {
			target = c.targetViews[i%2]
		}
		if err := effect.pass.Record(encoder, input, target); err != nil {
			log.Printf("effects: pass %q failed, skipping: %v", effect.Name, err)
			effect.MarkBroken()
			continue
		}
		input = target
	}
	return nil
}

// uploadParams pushes each active effect's parameters into its uniform
// block before any pass is recorded.
func (c *Chain) uploadParams(active []*Effect) {
	for _, effect := range active {
		pass, ok := effect.pass.(*FullscreenPass)
		if !ok {
			continue
		}
		switch effect.Name {
		case "Blur":
			params := [4]float32{effect.Param("radius", 2), 0, 0, 0}
			pass.WriteUniforms(common.SliceToBytes(params[:]))
		case "Glow":
			params := [4]float32{effect.Param("intensity", 1), effect.Param("threshold", 0.7), 0, 0}
			pass.WriteUniforms(common.SliceToBytes(params[:]))
		case "Edge Detect":
			params := [4]float32{effect.Param("strength", 1), 0, 0, 0}
			pass.WriteUniforms(common.SliceToBytes(params[:]))
		case "LUT":
			lutName := "Identity"
			if c.library != nil {
				// The LUT is the one named by the effect's LutSelection;
				// default to identity.
				if name, ok := effect.lutName(); ok {
					lutName = name
				}
			}
			size := float32(LutSize32)
			if lut := c.library.Get(lutName); lut != nil {
				size = float32(lut.Size)
			}
			params := [4]float32{size, effect.Param("mix", 1), 0, 0}
			pass.WriteUniforms(common.SliceToBytes(params[:]))
		}
	}
}

// lutName resolves the selected LUT name, empty when unset.
func (e *Effect) lutName() (string, bool) {
	if e.LutSelection != "" {
		return e.LutSelection, true
	}
	return "", false
}
